package di

import (
	"context"

	"go.uber.org/zap"

	"canvas-engine/application/ports"
	"canvas-engine/application/session"
	"canvas-engine/infrastructure/config"
	"canvas-engine/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config    *config.Config
	Logger    *zap.Logger
	Store     ports.DocumentStore
	Publisher ports.EventPublisher
	Sessions  *session.Manager
	Metrics   *observability.Collector
	Tracer    *observability.Tracer
}

// Shutdown force-closes open sessions after a final flush attempt and flushes traces.
func (c *Container) Shutdown(ctx context.Context) error {
	c.Sessions.CloseAll(ctx)
	err := c.Tracer.Shutdown(ctx)
	_ = c.Logger.Sync()
	return err
}
