package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Fal MCP server metrics - using explicit registration
var (
	// Request counters
	RequestsTotal *prometheus.CounterVec

	// Tool call counters
	ToolCallsTotal *prometheus.CounterVec

	// Catalog cache refreshes by outcome (refreshed, stale_served, fallback)
	CatalogRefreshesTotal *prometheus.CounterVec

	// Search fallbacks by reason category
	SearchFallbacksTotal *prometheus.CounterVec

	// Job executions by strategy and terminal state
	JobExecutionsTotal *prometheus.CounterVec

	// Job duration histogram
	JobDuration *prometheus.HistogramVec
)

// init creates and registers all metrics with the default registry
func init() {
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fal",
			Subsystem: "mcp",
			Name:      "requests_total",
			Help:      "Total number of MCP requests",
		},
		[]string{"method", "status"},
	)

	ToolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fal",
			Subsystem: "mcp",
			Name:      "tool_calls_total",
			Help:      "Total tool invocations",
		},
		[]string{"tool_name", "status"},
	)

	CatalogRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fal",
			Subsystem: "mcp",
			Name:      "catalog_refreshes_total",
			Help:      "Catalog cache refresh attempts by outcome",
		},
		[]string{"outcome"},
	)

	SearchFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fal",
			Subsystem: "mcp",
			Name:      "search_fallbacks_total",
			Help:      "Semantic search requests degraded to local filtering",
		},
		[]string{"reason"},
	)

	JobExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fal",
			Subsystem: "mcp",
			Name:      "job_executions_total",
			Help:      "Queue job executions by strategy and terminal state",
		},
		[]string{"strategy", "state"},
	)

	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fal",
			Subsystem: "mcp",
			Name:      "job_duration_seconds",
			Help:      "Queue job execution duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"strategy"},
	)

	collectors := map[string]prometheus.Collector{
		"requests_total":          RequestsTotal,
		"tool_calls_total":        ToolCallsTotal,
		"catalog_refreshes_total": CatalogRefreshesTotal,
		"search_fallbacks_total":  SearchFallbacksTotal,
		"job_executions_total":    JobExecutionsTotal,
		"job_duration_seconds":    JobDuration,
	}

	for name, collector := range collectors {
		if err := prometheus.Register(collector); err != nil {
			log.Warn().Err(err).Str("metric", name).Msg("Failed to register metric")
		}
	}
}

// RecordRequest records an HTTP request metric
func RecordRequest(method, status string) {
	RequestsTotal.WithLabelValues(method, status).Inc()
}

// RecordToolCall records a tool invocation metric
func RecordToolCall(toolName, status string) {
	ToolCallsTotal.WithLabelValues(toolName, status).Inc()
}
