// Package registry implements model catalog discovery for the Fal.ai
// platform: a TTL-cached snapshot of the remote catalog, alias resolution,
// and semantic search with local fallback.
package registry

import "time"

// ModelRecord is one entry of the model catalog. Records are immutable
// once constructed.
type ModelRecord struct {
	ID           string   `json:"id"` // canonical, e.g. "fal-ai/flux/schnell"
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Category     string   `json:"category"`
	Owner        string   `json:"owner"`
	ThumbnailURL string   `json:"thumbnail_url,omitempty"`
	Highlighted  bool     `json:"highlighted"`
	GroupKey     string   `json:"group_key,omitempty"`
	GroupLabel   string   `json:"group_label,omitempty"`
	Status       string   `json:"status,omitempty"` // active or deprecated
	Tags         []string `json:"tags,omitempty"`
}

// Snapshot is one immutable build of the catalog. A snapshot is replaced
// atomically and in full on every refresh, never mutated in place.
type Snapshot struct {
	Models     map[string]ModelRecord // id -> record
	Aliases    map[string]string      // alias -> id
	ByCategory map[string][]string    // category -> ordered ids
	FetchedAt  time.Time
	TTL        time.Duration
	Fallback   bool // built from the seed table, not the remote catalog
}

// Valid reports whether the snapshot is still fresh at the given instant.
func (s *Snapshot) Valid(now time.Time) bool {
	if s == nil {
		return false
	}
	return now.Sub(s.FetchedAt) < s.TTL
}

// SearchOutcome is the result of a semantic model search. UsedFallback is
// set when the remote query failed and the results came from local
// substring filtering over the cached snapshot.
type SearchOutcome struct {
	Models         []ModelRecord
	UsedFallback   bool
	FallbackReason string
}

// Recommendation is one ranked suggestion produced by Recommend.
type Recommendation struct {
	Model  ModelRecord
	Score  float64
	Reason string
}

// RecommendOutcome carries recommendations plus the degradation flag of
// the underlying search.
type RecommendOutcome struct {
	Recommendations []Recommendation
	UsedFallback    bool
	FallbackReason  string
}
