//go:build !wireinject
// +build !wireinject

package di

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"canvas-engine/infrastructure/config"
)

// InitializeContainer builds every dependency in the order SuperSet in wire.go
// resolves them, and logs the resulting wiring.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	metrics := ProvideMetrics(cfg)
	tracer, err := ProvideTracer(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	clients := provideAWSClients(cfg)
	store, err := ProvideDocumentStore(ctx, cfg, clients, logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create document store: %w", err)
	}
	publisher, err := ProvideEventPublisher(ctx, cfg, clients, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create event publisher: %w", err)
	}

	logger.Info("container initialized",
		zap.String("environment", cfg.Environment),
		zap.String("store", cfg.StoreBackend),
		zap.Bool("metrics", metrics != nil),
		zap.Bool("events", cfg.PublishEvents))

	return &Container{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Publisher: publisher,
		Sessions:  ProvideSessionManager(cfg, store, publisher, logger, metrics, tracer),
		Metrics:   metrics,
		Tracer:    tracer,
	}, nil
}
