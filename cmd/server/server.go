package main

import (
	"context"

	"github.com/rs/zerolog/log"

	"fal-mcp-server/internal/infrastructure/config"
	"fal-mcp-server/internal/infrastructure/logger"
	_ "fal-mcp-server/internal/infrastructure/metrics" // Register Prometheus metrics
	"fal-mcp-server/internal/interfaces/httpserver"
)

type Application struct {
	httpServer *httpserver.HTTPServer
}

func init() {
	// Initialize logger with default settings
	logger.Init("info", "json")
}

func (app *Application) Start(ctx context.Context) error {
	return app.httpServer.Run()
}

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	// Re-initialize logger with config settings
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("http_port", cfg.HTTPPort).
		Str("log_level", cfg.LogLevel).
		Str("queue_strategy", cfg.QueueStrategy).
		Msg("Starting Fal MCP server")

	// Create application with dependency injection
	application, err := CreateApplication(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	// Start application
	if err := application.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}
