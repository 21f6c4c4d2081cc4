package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"fal-mcp-server/internal/infrastructure/falapi"
	"fal-mcp-server/internal/infrastructure/metrics"
)

// Search issues a free-text semantic query against the remote catalog.
// On any remote failure it degrades to case-insensitive substring
// filtering over the cached snapshot and annotates the outcome instead of
// returning an error.
func (r *Registry) Search(ctx context.Context, query, categoryHint string, limit int) *SearchOutcome {
	if limit <= 0 {
		limit = 20
	}
	apiCategory := apiCategoryHints[categoryHint]

	raw, err := r.client.SearchModels(ctx, query, apiCategory, limit)
	if err != nil {
		reason, label := classifyFallback(err)
		log.Warn().Err(err).
			Str("query", query).
			Str("reason", reason).
			Msg("Semantic search failed, falling back to local filtering")
		metrics.SearchFallbacksTotal.WithLabelValues(label).Inc()

		return &SearchOutcome{
			Models:         r.localFilter(ctx, query, categoryHint, limit),
			UsedFallback:   true,
			FallbackReason: reason,
		}
	}

	models := make([]ModelRecord, 0, len(raw))
	for _, item := range raw {
		if record, ok := normalizeRecord(item); ok {
			models = append(models, record)
		}
	}
	sortFeaturedFirst(models)
	if len(models) > limit {
		models = models[:limit]
	}
	return &SearchOutcome{Models: models}
}

// Recommend layers ranked suggestions on top of Search: it considers twice
// the requested number of candidates, truncates, and synthesizes a score
// and a one-line reason per model.
func (r *Registry) Recommend(ctx context.Context, task, categoryHint string, limit int) *RecommendOutcome {
	if limit <= 0 {
		limit = 5
	}
	search := r.Search(ctx, task, categoryHint, limit*2)

	models := search.Models
	if len(models) > limit {
		models = models[:limit]
	}

	recommendations := make([]Recommendation, 0, len(models))
	for rank, model := range models {
		recommendations = append(recommendations, Recommendation{
			Model:  model,
			Score:  scoreFor(rank, model),
			Reason: reasonFor(model),
		})
	}
	return &RecommendOutcome{
		Recommendations: recommendations,
		UsedFallback:    search.UsedFallback,
		FallbackReason:  search.FallbackReason,
	}
}

// localFilter matches query as a case-insensitive substring across name,
// description, and id of the cached snapshot.
func (r *Registry) localFilter(ctx context.Context, query, categoryHint string, limit int) []ModelRecord {
	snapshot := r.cache.Snapshot(ctx)
	needle := strings.ToLower(query)

	var candidates []ModelRecord
	if categoryHint != "" {
		for _, id := range snapshot.ByCategory[categoryHint] {
			if record, ok := snapshot.Models[id]; ok {
				candidates = append(candidates, record)
			}
		}
	} else {
		candidates = make([]ModelRecord, 0, len(snapshot.Models))
		for _, record := range snapshot.Models {
			candidates = append(candidates, record)
		}
	}

	var matched []ModelRecord
	for _, record := range candidates {
		if strings.Contains(strings.ToLower(record.Name), needle) ||
			strings.Contains(strings.ToLower(record.Description), needle) ||
			strings.Contains(strings.ToLower(record.ID), needle) {
			matched = append(matched, record)
		}
	}
	sortFeaturedFirst(matched)
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}

// sortFeaturedFirst orders highlighted models first, ties broken by name.
func sortFeaturedFirst(models []ModelRecord) {
	sort.SliceStable(models, func(i, j int) bool {
		if models[i].Highlighted != models[j].Highlighted {
			return models[i].Highlighted
		}
		return models[i].Name < models[j].Name
	})
}

// classifyFallback maps a remote search failure to the caller-facing
// reason string and the metric label for it.
func classifyFallback(err error) (reason, label string) {
	if code, ok := falapi.StatusCodeOf(err); ok {
		return fmt.Sprintf("API error (HTTP %d)", code), "http_error"
	}
	if falapi.IsTimeout(err) {
		return "API timeout", "timeout"
	}
	if falapi.IsConnectionError(err) {
		return "Connection error", "connection"
	}
	return "Unexpected error", "unexpected"
}

// scoreFor synthesizes a relevance score from rank, with a small boost for
// featured models.
func scoreFor(rank int, model ModelRecord) float64 {
	score := 0.95 - 0.07*float64(rank)
	if model.Highlighted {
		score += 0.04
	}
	if score > 0.99 {
		score = 0.99
	}
	if score < 0.5 {
		score = 0.5
	}
	return score
}

// reasonFor picks the strongest available signal for a recommendation.
func reasonFor(model ModelRecord) string {
	switch {
	case model.Highlighted:
		return "Featured by Fal.ai"
	case model.GroupLabel != "":
		return fmt.Sprintf("Part of the %s model family", model.GroupLabel)
	case model.Category != "":
		return fmt.Sprintf("Strong match in the %s category", model.Category)
	default:
		return "Matches your search"
	}
}
