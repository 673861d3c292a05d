//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"canvas-engine/infrastructure/config"
)

// InfrastructureProviders builds the logger, telemetry and the remote backends.
var InfrastructureProviders = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideTracer,
	provideAWSClients,
	ProvideDocumentStore,
	ProvideEventPublisher,
)

// ApplicationProviders builds the editing sessions on top of the infrastructure.
var ApplicationProviders = wire.NewSet(
	ProvideSessionManager,
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	InfrastructureProviders,
	ApplicationProviders,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil
}
