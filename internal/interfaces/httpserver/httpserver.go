package httpserver

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fal-mcp-server/internal/infrastructure/config"
	"fal-mcp-server/internal/interfaces/httpserver/middlewares"
	"fal-mcp-server/internal/interfaces/httpserver/routes/mcp"
)

type HTTPServer struct {
	router   *gin.Engine
	config   *config.Config
	mcpRoute *mcp.MCPRoute
}

func NewHTTPServer(
	cfg *config.Config,
	mcpRoute *mcp.MCPRoute,
) *HTTPServer {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middlewares.RequestID())
	router.Use(middlewares.RequestLogger())
	router.Use(middlewares.CORS())
	router.Use(middlewares.MetricsRecorder())

	return &HTTPServer{
		router:   router,
		config:   cfg,
		mcpRoute: mcpRoute,
	}
}

func (s *HTTPServer) setupRoutes() {
	// Health check endpoints
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "fal-mcp-server"})
	})

	s.router.GET("/readyz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ready", "service": "fal-mcp-server"})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Register MCP routes
	v1 := s.router.Group("/v1")
	s.mcpRoute.RegisterRouter(v1)
}

func (s *HTTPServer) Run() error {
	s.setupRoutes()
	addr := fmt.Sprintf(":%s", s.config.HTTPPort)
	return s.router.Run(addr)
}
