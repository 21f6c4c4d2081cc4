//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"fal-mcp-server/internal/domain"
	"fal-mcp-server/internal/infrastructure"
	"fal-mcp-server/internal/interfaces"
	"fal-mcp-server/internal/interfaces/httpserver/routes"
)

func CreateApplication(ctx context.Context) (*Application, error) {
	wire.Build(
		domain.DomainProvider,
		infrastructure.InfrastructureProvider,
		routes.RoutesProvider,
		interfaces.InterfacesProvider,
		wire.Struct(new(Application), "*"),
	)
	return nil, nil
}
