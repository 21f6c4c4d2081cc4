// Command stdio runs the MCP server over standard input/output for local
// agent clients (Claude Desktop, IDE integrations). The subscribe strategy
// is the default on this transport unless overridden via
// FAL_MCP_QUEUE_STRATEGY.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"fal-mcp-server/internal/domain/queue"
	"fal-mcp-server/internal/domain/registry"
	"fal-mcp-server/internal/infrastructure"
	"fal-mcp-server/internal/infrastructure/config"
	"fal-mcp-server/internal/infrastructure/logger"
	_ "fal-mcp-server/internal/infrastructure/metrics" // Register Prometheus metrics
	"fal-mcp-server/internal/interfaces/httpserver/routes/mcp"
)

func main() {
	// stdout carries the protocol stream, so all logging goes to stderr.
	logger.InitStderr("info", "console")

	strategyName := os.Getenv("FAL_MCP_QUEUE_STRATEGY")
	if strategyName == "" {
		os.Setenv("FAL_MCP_QUEUE_STRATEGY", "subscribe")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logger.InitStderr(cfg.LogLevel, "console")

	client := infrastructure.ProvideFalClient(cfg)

	seeds, err := registry.SeedAliases(cfg.AliasSeedFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load alias seeds")
	}
	fetcher := registry.NewFetcher(client, cfg.CatalogPageSize, infrastructure.ProvideRetryConfig(cfg))
	cache := registry.NewCache(fetcher, seeds, cfg.NormalTTL(), cfg.FallbackTTL())
	reg := registry.NewRegistry(client, cache)

	strategy, err := queue.New(cfg.QueueStrategy, client, cfg.PollIntervalDuration())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create queue strategy")
	}

	log.Info().
		Str("queue_strategy", strategy.Name()).
		Msg("Starting Fal MCP server on stdio")

	server := mcp.NewToolServer(
		mcp.NewGenerationMCP(reg, strategy),
		mcp.NewUtilityMCP(reg, client),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Warm the catalog so the first tool call doesn't pay for the initial
	// fetch.
	warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	cache.Snapshot(warmCtx)
	cancel()

	if err := server.Run(ctx, &mcpsdk.StdioTransport{}); err != nil {
		log.Fatal().Err(err).Msg("MCP server exited")
	}
}
