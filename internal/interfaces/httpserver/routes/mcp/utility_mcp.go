package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"fal-mcp-server/internal/domain/registry"
	"fal-mcp-server/internal/infrastructure/falapi"
	"fal-mcp-server/internal/infrastructure/metrics"
)

// Uploader pushes local files to Fal storage.
type Uploader interface {
	UploadFile(ctx context.Context, path string) (string, error)
}

// UtilityMCP registers the discovery and account tools: model listing,
// recommendations, pricing, usage, and file upload.
type UtilityMCP struct {
	registry *registry.Registry
	uploader Uploader
}

// NewUtilityMCP creates a utility MCP handler.
func NewUtilityMCP(reg *registry.Registry, uploader Uploader) *UtilityMCP {
	return &UtilityMCP{registry: reg, uploader: uploader}
}

// RegisterTools registers all utility tools with the MCP server.
func (u *UtilityMCP) RegisterTools(server *mcp.Server) {
	u.registerListModels(server)
	u.registerRecommendModel(server)
	u.registerGetPricing(server)
	u.registerGetUsage(server)
	u.registerUploadFile(server)

	log.Info().Msg("Utility MCP tools registered")
}

// --- list_models ---

type ListModelsArgs struct {
	Task     string `json:"task,omitempty"`
	Category string `json:"category,omitempty"`
	Search   string `json:"search,omitempty"`
	Limit    *int   `json:"limit,omitempty"`
}

func (u *UtilityMCP) registerListModels(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_models",
		Description: "List available Fal.ai models. Provide 'task' for semantic search (e.g., 'generate a professional headshot'), or filter by category ('image', 'video', 'audio') and a search substring.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input ListModelsArgs) (*mcp.CallToolResult, map[string]any, error) {
		limit := 20
		if input.Limit != nil && *input.Limit > 0 {
			limit = *input.Limit
		}

		var (
			models          []registry.ModelRecord
			title           string
			subtitle        string
			fallbackWarning string
		)

		if input.Task != "" {
			outcome := u.registry.Search(ctx, input.Task, input.Category, limit)
			models = outcome.Models
			title = fmt.Sprintf("## Models for: %q (%d found)\n", input.Task, len(models))
			if outcome.UsedFallback {
				fallbackWarning = fmt.Sprintf("⚠️ *Using cached results (%s). Results may be less relevant.*\n", outcome.FallbackReason)
				subtitle = "💡 *⭐ = Featured by Fal.ai*\n"
			} else {
				subtitle = "💡 *Sorted by relevance. ⭐ = Featured by Fal.ai*\n"
			}
		} else {
			models = u.registry.ListModels(ctx, input.Category, input.Search, limit)
			title = fmt.Sprintf("## Available Models (%d found)\n", len(models))
		}
		metrics.RecordToolCall("list_models", "success")

		if len(models) == 0 {
			return textResult("No models found. Try a different category, task, or search term."), nil, nil
		}

		lines := []string{title}
		if fallbackWarning != "" {
			lines = append(lines, fallbackWarning)
		}
		if subtitle != "" {
			lines = append(lines, subtitle)
		}
		for _, model := range models {
			badge := ""
			if model.Highlighted {
				badge = " ⭐"
			}
			lines = append(lines, fmt.Sprintf("- `%s`%s", model.ID, badge))
			if model.Name != "" && model.Name != model.ID {
				lines = append(lines, fmt.Sprintf("  - **%s**", model.Name))
			}
			if model.Description != "" {
				lines = append(lines, "  - "+truncate(model.Description, 150))
			}
			if input.Task != "" && model.GroupLabel != "" {
				lines = append(lines, fmt.Sprintf("  - *Family: %s*", model.GroupLabel))
			}
		}
		return textResult(strings.Join(lines, "\n")), nil, nil
	})
}

// --- recommend_model ---

type RecommendModelArgs struct {
	Task     string `json:"task"`
	Category string `json:"category,omitempty"`
	Limit    *int   `json:"limit,omitempty"`
}

func (u *UtilityMCP) registerRecommendModel(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "recommend_model",
		Description: "Get ranked model recommendations for a task described in natural language (e.g., 'generate professional headshot').",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input RecommendModelArgs) (*mcp.CallToolResult, map[string]any, error) {
		if strings.TrimSpace(input.Task) == "" {
			return textResult("❌ Please describe your task (e.g., 'generate professional headshot')."), nil, nil
		}
		limit := 5
		if input.Limit != nil && *input.Limit > 0 {
			limit = *input.Limit
		}

		outcome := u.registry.Recommend(ctx, input.Task, input.Category, limit)
		metrics.RecordToolCall("recommend_model", "success")

		if len(outcome.Recommendations) == 0 {
			return textResult(fmt.Sprintf("No models found for task: %q. Try a different description or remove the category filter.", input.Task)), nil, nil
		}

		lines := []string{fmt.Sprintf("## Recommended Models for: %q\n", input.Task)}
		if outcome.UsedFallback {
			lines = append(lines, fmt.Sprintf("⚠️ *Using cached results (%s). Results may be less relevant.*\n", outcome.FallbackReason))
		}
		lines = append(lines, "💡 *Models are ranked by relevance. ⭐ = Featured by Fal.ai*\n")

		for i, rec := range outcome.Recommendations {
			badge := ""
			if rec.Model.Highlighted {
				badge = " ⭐"
			}
			lines = append(lines, fmt.Sprintf("### %d. `%s`%s", i+1, rec.Model.ID, badge))
			if rec.Model.Name != "" {
				lines = append(lines, fmt.Sprintf("**%s**", rec.Model.Name))
			}
			if rec.Model.Description != "" {
				lines = append(lines, rec.Model.Description)
			}
			if rec.Model.GroupLabel != "" {
				lines = append(lines, fmt.Sprintf("*Family: %s*", rec.Model.GroupLabel))
			}
			lines = append(lines, fmt.Sprintf("*Relevance: %.1f%%*\n", rec.Score*100))
		}
		return textResult(strings.Join(lines, "\n")), nil, nil
	})
}

// --- get_pricing ---

type GetPricingArgs struct {
	Models []string `json:"models"`
}

func (u *UtilityMCP) registerGetPricing(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_pricing",
		Description: "Get unit pricing for one or more models. Accepts model IDs or aliases.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input GetPricingArgs) (*mcp.CallToolResult, map[string]any, error) {
		if len(input.Models) == 0 {
			return textResult("❌ No models specified. Provide a list of model IDs or aliases."), nil, nil
		}

		endpointIDs, failed := u.resolveAll(ctx, input.Models)
		if len(failed) > 0 {
			return textResult(fmt.Sprintf("❌ Unknown model(s): %s. Use list_models to see available options.", strings.Join(failed, ", "))), nil, nil
		}

		pricing, err := u.registry.Pricing(ctx, endpointIDs)
		if err != nil {
			metrics.RecordToolCall("get_pricing", "error")
			return apiErrorResult("Pricing", err), nil, nil
		}
		metrics.RecordToolCall("get_pricing", "success")

		if len(pricing.Prices) == 0 {
			return textResult("No pricing information available for the specified models."), nil, nil
		}

		lines := []string{"💰 **Pricing Information**\n"}
		for _, price := range pricing.Prices {
			unit := price.Unit
			if unit == "" {
				unit = "request"
			}
			lines = append(lines, fmt.Sprintf("- **%s**: %s per %s", price.EndpointID, formatMoney(price.UnitPrice, price.Currency), unit))
		}
		return textResult(strings.Join(lines, "\n")), nil, nil
	})
}

// --- get_usage ---

type GetUsageArgs struct {
	Start  string   `json:"start,omitempty"`
	End    string   `json:"end,omitempty"`
	Models []string `json:"models,omitempty"`
}

func (u *UtilityMCP) registerGetUsage(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_usage",
		Description: "Get an API usage and cost report for a date range (defaults to the last 7 days). Optionally filter to specific models.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input GetUsageArgs) (*mcp.CallToolResult, map[string]any, error) {
		today := time.Now()
		start := input.Start
		if start == "" {
			start = today.AddDate(0, 0, -7).Format("2006-01-02")
		}
		end := input.End
		if end == "" {
			end = today.Format("2006-01-02")
		}

		var endpointIDs []string
		if len(input.Models) > 0 {
			var failed []string
			endpointIDs, failed = u.resolveAll(ctx, input.Models)
			if len(failed) > 0 {
				return textResult(fmt.Sprintf("❌ Unknown model(s): %s. Use list_models to see available options.", strings.Join(failed, ", "))), nil, nil
			}
		}

		usage, err := u.registry.Usage(ctx, start, end, endpointIDs)
		if err != nil {
			metrics.RecordToolCall("get_usage", "error")
			if code, ok := falapi.StatusCodeOf(err); ok && code == 403 {
				return textResult("❌ Access denied. Your API key doesn't have permission to view usage data. Contact your workspace admin."), nil, nil
			}
			return apiErrorResult("Usage", err), nil, nil
		}
		metrics.RecordToolCall("get_usage", "success")

		lines := []string{
			fmt.Sprintf("## Usage Report: %s to %s\n", start, end),
			fmt.Sprintf("**Total Cost**: %s\n", formatMoney(usage.TotalCost, usage.Currency)),
		}
		if len(usage.Breakdown) > 0 {
			lines = append(lines, "### Breakdown by Model\n")
			for _, item := range usage.Breakdown {
				lines = append(lines, fmt.Sprintf("- **%s**: %d requests, %s", item.EndpointID, item.Quantity, formatMoney(item.Cost, usage.Currency)))
			}
		}
		return textResult(strings.Join(lines, "\n")), nil, nil
	})
}

// --- upload_file ---

type UploadFileArgs struct {
	FilePath string `json:"file_path"`
}

func (u *UtilityMCP) registerUploadFile(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "upload_file",
		Description: "Upload a local file to Fal storage and get a public URL usable with image-to-video, image-to-image, and audio tools.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input UploadFileArgs) (*mcp.CallToolResult, map[string]any, error) {
		if strings.TrimSpace(input.FilePath) == "" {
			return textResult("❌ No file path specified. Provide the absolute path to the file."), nil, nil
		}

		url, err := u.uploader.UploadFile(ctx, input.FilePath)
		if err != nil {
			metrics.RecordToolCall("upload_file", "error")
			log.Error().Err(err).Str("path", input.FilePath).Msg("File upload failed")
			return textResult(fmt.Sprintf("❌ Upload failed: %v", err)), nil, nil
		}
		metrics.RecordToolCall("upload_file", "success")

		return textResult(fmt.Sprintf("✅ File uploaded successfully!\n\n**URL**: %s\n\nYou can use this URL with image-to-video, image-to-image, or other tools.", url)), nil, nil
	})
}

// --- helpers ---

func (u *UtilityMCP) resolveAll(ctx context.Context, inputs []string) (resolved, failed []string) {
	for _, input := range inputs {
		id, err := u.registry.Resolve(ctx, input)
		if err != nil {
			failed = append(failed, input)
			continue
		}
		resolved = append(resolved, id)
	}
	return resolved, failed
}

// apiErrorResult maps a platform API failure onto caller-facing guidance.
func apiErrorResult(what string, err error) *mcp.CallToolResult {
	if code, ok := falapi.StatusCodeOf(err); ok {
		return textResult(fmt.Sprintf("❌ %s API error (HTTP %d)", what, code))
	}
	if falapi.IsTimeout(err) {
		return textResult(fmt.Sprintf("❌ %s request timed out. Please try again.", what))
	}
	if falapi.IsConnectionError(err) {
		return textResult("❌ Cannot connect to Fal.ai API. Check your network connection.")
	}
	return textResult(fmt.Sprintf("❌ %s request failed: %v", what, err))
}

// formatMoney renders a cost amount, trimming insignificant zeros the way
// the pricing API presents them.
func formatMoney(amount float64, currency string) string {
	value := strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", amount), "0"), ".")
	if value == "" {
		value = "0"
	}
	if currency == "" || currency == "USD" {
		return "$" + value
	}
	return value + " " + currency
}

func truncate(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + "..."
}
