package routes

import (
	"github.com/google/wire"

	"fal-mcp-server/internal/domain/registry"
	"fal-mcp-server/internal/infrastructure/falapi"
	"fal-mcp-server/internal/interfaces/httpserver/routes/mcp"
)

// RoutesProvider provides all route dependencies
var RoutesProvider = wire.NewSet(
	mcp.NewGenerationMCP,
	ProvideUtilityMCP,
	mcp.NewMCPRoute,
)

// ProvideUtilityMCP creates the utility tool handler with the storage
// client as its uploader
func ProvideUtilityMCP(reg *registry.Registry, client *falapi.Client) *mcp.UtilityMCP {
	return mcp.NewUtilityMCP(reg, client)
}
