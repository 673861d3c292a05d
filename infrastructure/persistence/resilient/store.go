// Package resilient wraps a DocumentStore in a circuit breaker.
package resilient

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"canvas-engine/application/ports"
	"canvas-engine/domain/core/entities"
	"canvas-engine/domain/core/valueobjects"
	pkgerrors "canvas-engine/pkg/errors"
	"canvas-engine/pkg/observability"
)

// BreakerConfig tunes when the breaker trips and how long it stays open.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the settings used for the remote store.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          20 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// Store forwards to an inner DocumentStore through a circuit breaker. While the
// circuit is open calls fail fast with an Unavailable error, which the sync engine
// treats like any other transient failure.
type Store struct {
	inner   ports.DocumentStore
	breaker *gobreaker.CircuitBreaker
	name    string
}

var _ ports.DocumentStore = (*Store)(nil)

// NewStore wraps inner.
func NewStore(inner ports.DocumentStore, cfg BreakerConfig, logger *zap.Logger, metrics *observability.Collector) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("store circuit breaker changed state",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			metrics.SetBreakerState(name, int(to))
		},
		// A missing document or a rejected payload says nothing about store health.
		IsSuccessful: func(err error) bool {
			return err == nil || pkgerrors.IsNotFound(err) || pkgerrors.IsValidation(err)
		},
	})
	metrics.SetBreakerState(cfg.Name, int(gobreaker.StateClosed))
	return &Store{inner: inner, breaker: breaker, name: cfg.Name}
}

// State reports the current breaker state.
func (s *Store) State() gobreaker.State {
	return s.breaker.State()
}

func (s *Store) call(fn func() error) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return pkgerrors.NewUnavailableError(s.name)
	}
	return err
}

func (s *Store) SelectDocument(ctx context.Context, id valueobjects.DocumentID) (*ports.DocumentRecord, error) {
	var record *ports.DocumentRecord
	err := s.call(func() error {
		var err error
		record, err = s.inner.SelectDocument(ctx, id)
		return err
	})
	return record, err
}

func (s *Store) UpsertNodes(ctx context.Context, docID valueobjects.DocumentID, nodes []*entities.Node) error {
	return s.call(func() error { return s.inner.UpsertNodes(ctx, docID, nodes) })
}

func (s *Store) DeleteNodesExcept(ctx context.Context, docID valueobjects.DocumentID, keep []valueobjects.NodeID) error {
	return s.call(func() error { return s.inner.DeleteNodesExcept(ctx, docID, keep) })
}

func (s *Store) UpsertEdges(ctx context.Context, docID valueobjects.DocumentID, edges []*entities.Edge) error {
	return s.call(func() error { return s.inner.UpsertEdges(ctx, docID, edges) })
}

func (s *Store) DeleteEdgesExcept(ctx context.Context, docID valueobjects.DocumentID, keep []valueobjects.EdgeID) error {
	return s.call(func() error { return s.inner.DeleteEdgesExcept(ctx, docID, keep) })
}

func (s *Store) UpdateDocumentMeta(ctx context.Context, docID valueobjects.DocumentID, meta ports.DocumentMeta) error {
	return s.call(func() error { return s.inner.UpdateDocumentMeta(ctx, docID, meta) })
}
