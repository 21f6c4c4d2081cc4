package interfaces

import (
	"github.com/google/wire"

	"fal-mcp-server/internal/interfaces/httpserver"
)

// InterfacesProvider provides all interface layer dependencies
var InterfacesProvider = wire.NewSet(
	httpserver.NewHTTPServer,
)
