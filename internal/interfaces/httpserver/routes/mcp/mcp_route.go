package mcp

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"fal-mcp-server/internal/interfaces/httpserver/responses"
	"fal-mcp-server/utils/platformerrors"
)

var allowedMCPMethods = map[string]bool{
	// Initialization / handshake
	"initialize":                true,
	"notifications/initialized": true,
	"ping":                      true,

	// Tools
	"tools/list": true,
	"tools/call": true,

	// Prompts
	"prompts/list": true,

	// Resources
	"resources/list":           true,
	"resources/templates/list": true,
	"resources/read":           true,
}

// NewToolServer builds the MCP server with every tool registered. Shared
// by the HTTP transport and the stdio entrypoint.
func NewToolServer(generationMCP *GenerationMCP, utilityMCP *UtilityMCP) *mcp.Server {
	impl := &mcp.Implementation{
		Name:    "fal-mcp-server",
		Version: "1.0.0",
	}
	server := mcp.NewServer(impl, nil)

	generationMCP.RegisterTools(server)
	utilityMCP.RegisterTools(server)

	return server
}

// MCPRoute serves the MCP protocol over streamable HTTP.
type MCPRoute struct {
	generationMCP *GenerationMCP
	utilityMCP    *UtilityMCP
	mcpServer     *mcp.Server
	httpHandler   http.Handler
}

func NewMCPRoute(generationMCP *GenerationMCP, utilityMCP *UtilityMCP) *MCPRoute {
	server := NewToolServer(generationMCP, utilityMCP)

	return &MCPRoute{
		generationMCP: generationMCP,
		utilityMCP:    utilityMCP,
		mcpServer:     server,
		httpHandler: mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
			return server
		}, &mcp.StreamableHTTPOptions{Stateless: true}),
	}
}

func (route *MCPRoute) RegisterRouter(router *gin.RouterGroup) {
	router.POST("/mcp",
		MCPMethodGuard(allowedMCPMethods),
		route.serveMCP,
	)
}

// serveMCP streams Model Context Protocol responses using the underlying
// MCP server.
func (route *MCPRoute) serveMCP(reqCtx *gin.Context) {
	// Force acceptable content types for the go-sdk streamable handler even
	// if the client omits Accept.
	reqCtx.Request.Header.Set("Accept", "application/json, text/event-stream")
	route.httpHandler.ServeHTTP(reqCtx.Writer, reqCtx.Request)
}

// MCPMethodGuard rejects malformed payloads and MCP methods outside the
// allow list before they reach the SDK handler.
func MCPMethodGuard(allowedMethods map[string]bool) gin.HandlerFunc {
	return func(reqCtx *gin.Context) {
		bodyBytes, err := io.ReadAll(reqCtx.Request.Body)
		if err != nil {
			responses.HandleNewError(reqCtx, platformerrors.ErrorTypeInternal, "failed to read MCP request body", "0c9a4d2e-50f4-4f6e-9a35-7b1c2f8d4e61")
			return
		}
		_ = reqCtx.Request.Body.Close()

		if len(bodyBytes) == 0 {
			responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "empty MCP request body", "3f7be217-96c4-4f0a-8d52-e48a1b6c9d03")
			return
		}

		reqCtx.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		var payload struct {
			Method string `json:"method"`
		}
		if err := json.Unmarshal(bodyBytes, &payload); err != nil {
			responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid MCP request payload", "b2e64c18-1df3-4b27-8c0a-52f9d7a3e814")
			return
		}
		if payload.Method == "" {
			responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "missing method field in MCP request", "8a51f0c6-73d9-4e4b-b6f2-0dc3e59a7214")
			return
		}
		if !allowedMethods[payload.Method] {
			responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "unsupported MCP method: "+payload.Method, "d4c82a90-6eb5-4f71-9358-1fa6b0c7e425")
			return
		}

		reqCtx.Next()
	}
}
