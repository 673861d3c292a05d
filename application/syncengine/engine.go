// Package syncengine keeps the remote store eventually consistent with an in-memory
// document.
//
// At most one save per document is in flight. Saves requested while one is running are
// coalesced into a single follow-up that reflects the latest state. Unchanged state is
// detected by fingerprint and never written twice. Failed saves are retried with
// exponential backoff up to a ceiling, after which the status stays failed until the
// next trigger. Errors classified as permanent, such as a rejected payload, fail at once.
package syncengine

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"canvas-engine/application/ports"
	"canvas-engine/domain/config"
	"canvas-engine/domain/core/valueobjects"
	"canvas-engine/domain/events"
	pkgerrors "canvas-engine/pkg/errors"
	"canvas-engine/pkg/observability"
)

// Status is the user-facing save indicator.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusPending  Status = "pending"
	StatusSaving   Status = "saving"
	StatusSaved    Status = "saved"
	StatusRetrying Status = "retrying"
	StatusFailed   Status = "failed"
)

// State is the per-document save bookkeeping.
type State struct {
	LastSavedFingerprint       string
	SaveInFlight               bool
	SaveRequestedWhileInFlight bool
}

// Report is a point-in-time view of the engine for status endpoints.
type Report struct {
	Status      Status    `json:"status"`
	Pending     bool      `json:"pending"`
	InFlight    bool      `json:"inFlight"`
	Retries     int       `json:"retries"`
	LastError   string    `json:"lastError,omitempty"`
	LastSavedAt time.Time `json:"lastSavedAt,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
}

// SnapshotFunc returns the current document state. It is called once per save
// attempt and must return data the caller will not mutate afterwards.
type SnapshotFunc func() Snapshot

// Option configures an Engine.
type Option func(*Engine)

// WithPublisher publishes DocumentSaved and SaveFailed events.
func WithPublisher(p ports.EventPublisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithMetrics records save outcomes.
func WithMetrics(c *observability.Collector) Option {
	return func(e *Engine) { e.metrics = c }
}

// WithTracer wraps store round trips in spans.
func WithTracer(t *observability.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithClock overrides the wall clock.
func WithClock(c ports.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// Engine is the save pipeline of one open document.
type Engine struct {
	docID    valueobjects.DocumentID
	store    ports.DocumentStore
	snapshot SnapshotFunc
	cfg      *config.DomainConfig
	logger   *zap.Logger

	publisher ports.EventPublisher
	metrics   *observability.Collector
	tracer    *observability.Tracer
	clock     ports.Clock

	group singleflight.Group

	mu    sync.Mutex
	state State
	// firstSave forces the first save after load past the fingerprint check.
	firstSave bool
	status    Status
	lastErr   error
	lastSaved time.Time
	// seq counts change notifications and save requests; savedSeq is the highest seq
	// covered by a successful save.
	seq        uint64
	savedSeq   uint64
	retries    int
	backoff    *backoff.ExponentialBackOff
	debounce   *time.Timer
	retryTimer *time.Timer
	closed     bool
}

// NewEngine creates the engine for a freshly loaded document.
func NewEngine(
	docID valueobjects.DocumentID,
	store ports.DocumentStore,
	snapshot SnapshotFunc,
	cfg *config.DomainConfig,
	logger *zap.Logger,
	opts ...Option,
) *Engine {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.RetryInitialBackoff
	bo.MaxInterval = cfg.RetryMaxBackoff
	bo.Reset()

	e := &Engine{
		docID:     docID,
		store:     store,
		snapshot:  snapshot,
		cfg:       cfg,
		logger:    logger.With(zap.String("documentID", docID.String())),
		clock:     ports.SystemClock{},
		firstSave: true,
		status:    StatusIdle,
		backoff:   bo,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Save persists the current state, joining an in-flight save if there is one. It
// returns once a save covering every change notified before the call has succeeded,
// or with the error of the attempt that failed.
func (e *Engine) Save(ctx context.Context) error {
	e.mu.Lock()
	// An explicit save covers everything the pending debounce would.
	e.cancelDebounceLocked()
	e.resetRetriesLocked()
	e.mu.Unlock()
	return e.save(ctx)
}

func (e *Engine) save(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return pkgerrors.NewUnavailableError("sync engine closed")
	}
	e.seq++
	ticket := e.seq
	if e.state.SaveInFlight {
		e.state.SaveRequestedWhileInFlight = true
	}
	e.mu.Unlock()

	for {
		// The flight outlives a caller that gives up waiting: saves are never cancelled
		// midway.
		ch := e.group.DoChan(e.docID.String(), func() (interface{}, error) {
			return nil, e.run(context.WithoutCancel(ctx))
		})

		select {
		case res := <-ch:
			if res.Err != nil {
				return res.Err
			}
		case <-ctx.Done():
			return ctx.Err()
		}

		e.mu.Lock()
		covered := e.savedSeq >= ticket
		e.mu.Unlock()
		if covered {
			return nil
		}
		// Joined a flight that was already finishing; start another.
	}
}

// run saves until no request arrived during the last attempt.
func (e *Engine) run(ctx context.Context) error {
	for {
		e.mu.Lock()
		e.state.SaveInFlight = true
		e.state.SaveRequestedWhileInFlight = false
		e.status = StatusSaving
		startSeq := e.seq
		e.mu.Unlock()

		err := e.saveOnce(ctx)

		e.mu.Lock()
		if err != nil {
			e.state.SaveInFlight = false
			e.state.SaveRequestedWhileInFlight = true
			e.lastErr = err
			e.scheduleRetryLocked()
			e.mu.Unlock()
			return err
		}

		if startSeq > e.savedSeq {
			e.savedSeq = startSeq
		}
		e.lastErr = nil
		e.retries = 0
		e.backoff.Reset()
		e.stopRetryLocked()

		if !e.state.SaveRequestedWhileInFlight {
			e.state.SaveInFlight = false
			e.status = StatusSaved
			if e.debounce != nil {
				e.status = StatusPending
			}
			e.mu.Unlock()
			return nil
		}
		e.logger.Debug("follow-up save for changes made during flight")
		e.mu.Unlock()
	}
}

// saveOnce performs one fingerprint check and, if needed, one full write.
func (e *Engine) saveOnce(ctx context.Context) error {
	snap := e.snapshot()
	fingerprint, err := Fingerprint(snap)
	if err != nil {
		return pkgerrors.NewInternalError("failed to fingerprint document").WithCause(err)
	}

	e.mu.Lock()
	unchanged := !e.firstSave && fingerprint == e.state.LastSavedFingerprint
	e.mu.Unlock()
	if unchanged {
		e.metrics.RecordSave(observability.SaveOutcomeSkipped, 0)
		return nil
	}

	start := e.clock.Now()
	err = e.tracer.TraceFunction(ctx, "save", func(ctx context.Context) error {
		return e.write(ctx, snap, start)
	},
		attribute.String("document.id", e.docID.String()),
		attribute.Int("document.nodes", len(snap.Nodes)),
		attribute.Int("document.edges", len(snap.Edges)),
	)
	elapsed := e.clock.Now().Sub(start)
	if err != nil {
		e.metrics.RecordSave(observability.SaveOutcomeFailed, elapsed)
		e.logger.Warn("save failed", zap.Error(err), zap.Duration("elapsed", elapsed))
		return err
	}

	e.mu.Lock()
	e.state.LastSavedFingerprint = fingerprint
	e.firstSave = false
	e.lastSaved = start
	e.mu.Unlock()

	e.metrics.RecordSave(observability.SaveOutcomeWritten, elapsed)
	e.logger.Debug("document saved",
		zap.Int("nodes", len(snap.Nodes)),
		zap.Int("edges", len(snap.Edges)),
		zap.Duration("elapsed", elapsed))

	e.publish(ctx, events.NewDocumentSaved(e.docID, snap.Title, fingerprint, len(snap.Nodes), len(snap.Edges), start))
	return nil
}

// write upserts everything, then deletes what is no longer present. Edges are written
// after nodes and removed before them so a store with referential checks stays valid.
func (e *Engine) write(ctx context.Context, snap Snapshot, now time.Time) error {
	nodeIDs := make([]valueobjects.NodeID, len(snap.Nodes))
	for i, n := range snap.Nodes {
		nodeIDs[i] = n.ID
	}
	edgeIDs := make([]valueobjects.EdgeID, len(snap.Edges))
	for i, edge := range snap.Edges {
		edgeIDs[i] = edge.ID
	}

	if err := e.store.UpsertNodes(ctx, e.docID, snap.Nodes); err != nil {
		return pkgerrors.Wrap(err, "upsert nodes")
	}
	if err := e.store.UpsertEdges(ctx, e.docID, snap.Edges); err != nil {
		return pkgerrors.Wrap(err, "upsert edges")
	}
	if err := e.store.DeleteEdgesExcept(ctx, e.docID, edgeIDs); err != nil {
		return pkgerrors.Wrap(err, "delete stale edges")
	}
	if err := e.store.DeleteNodesExcept(ctx, e.docID, nodeIDs); err != nil {
		return pkgerrors.Wrap(err, "delete stale nodes")
	}
	if err := e.store.UpdateDocumentMeta(ctx, e.docID, ports.DocumentMeta{Title: snap.Title, ModifiedAt: now}); err != nil {
		return pkgerrors.Wrap(err, "update document metadata")
	}
	return nil
}

// scheduleRetryLocked arms the backoff timer, or gives up once the ceiling is reached.
func (e *Engine) scheduleRetryLocked() {
	if e.closed {
		e.status = StatusFailed
		return
	}
	e.retries++
	if !retryable(e.lastErr) {
		e.failLocked("save failed permanently")
		return
	}
	delay := e.backoff.NextBackOff()
	if e.retries > e.cfg.MaxSaveRetries || delay == backoff.Stop {
		e.failLocked("save retries exhausted")
		return
	}

	e.status = StatusRetrying
	e.metrics.RecordRetry()
	e.logger.Info("save retry scheduled", zap.Int("attempt", e.retries), zap.Duration("delay", delay))
	e.stopRetryLocked()
	e.retryTimer = time.AfterFunc(delay, func() {
		e.mu.Lock()
		e.retryTimer = nil
		e.mu.Unlock()
		_ = e.save(context.Background())
	})
}

func (e *Engine) failLocked(msg string) {
	e.status = StatusFailed
	reason := ""
	if e.lastErr != nil {
		reason = e.lastErr.Error()
	}
	e.logger.Error(msg, zap.Int("attempts", e.retries), zap.String("reason", reason))
	go e.publish(context.Background(), events.NewSaveFailed(e.docID, e.retries, reason, e.clock.Now()))
}

// retryable reports whether a failed save may succeed unchanged. Classified errors must
// be transient; unclassified driver errors are assumed to be.
func retryable(err error) bool {
	if err == nil || pkgerrors.GetAppError(err) == nil {
		return true
	}
	return pkgerrors.IsTransient(err)
}

func (e *Engine) stopRetryLocked() {
	if e.retryTimer != nil {
		e.retryTimer.Stop()
		e.retryTimer = nil
	}
}

// resetRetriesLocked gives a new trigger a fresh retry budget after exhaustion.
func (e *Engine) resetRetriesLocked() {
	if e.status == StatusFailed {
		e.retries = 0
		e.backoff.Reset()
	}
}

// Schedule records a change and (re)arms the debounce timer.
func (e *Engine) Schedule() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.resetRetriesLocked()
	e.seq++
	if e.debounce != nil {
		e.debounce.Stop()
	}
	if !e.state.SaveInFlight {
		e.status = StatusPending
	}
	e.debounce = time.AfterFunc(e.cfg.SaveDebounce, e.fireDebounce)
}

func (e *Engine) fireDebounce() {
	e.mu.Lock()
	e.debounce = nil
	e.mu.Unlock()
	if err := e.save(context.Background()); err != nil {
		e.logger.Debug("debounced save failed", zap.Error(err))
	}
}

// Blur saves in the background without waiting for the debounce.
func (e *Engine) Blur() {
	e.mu.Lock()
	e.cancelDebounceLocked()
	e.resetRetriesLocked()
	e.mu.Unlock()
	go func() {
		if err := e.save(context.Background()); err != nil {
			e.logger.Debug("blur save failed", zap.Error(err))
		}
	}()
}

// Flush saves now and waits. Navigation should proceed only on a nil error.
func (e *Engine) Flush(ctx context.Context) error {
	return e.Save(ctx)
}

func (e *Engine) cancelDebounceLocked() {
	if e.debounce != nil {
		e.debounce.Stop()
		e.debounce = nil
	}
}

// HasPendingWork reports whether closing now could lose changes.
func (e *Engine) HasPendingWork() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.SaveInFlight || e.debounce != nil || e.retryTimer != nil || e.seq > e.savedSeq
}

// Status returns the save indicator.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// State returns a copy of the save bookkeeping.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Report summarizes the engine.
func (e *Engine) Report() Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := Report{
		Status:      e.status,
		Pending:     e.state.SaveInFlight || e.debounce != nil || e.retryTimer != nil || e.seq > e.savedSeq,
		InFlight:    e.state.SaveInFlight,
		Retries:     e.retries,
		LastSavedAt: e.lastSaved,
		Fingerprint: e.state.LastSavedFingerprint,
	}
	if e.lastErr != nil {
		r.LastError = e.lastErr.Error()
	}
	return r
}

// Close stops all timers. Later triggers are ignored; call Flush first to persist.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.cancelDebounceLocked()
	e.stopRetryLocked()
}

func (e *Engine) publish(ctx context.Context, event events.DomainEvent) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.Warn("failed to publish event",
			zap.String("eventType", event.GetEventType()),
			zap.Error(err))
	}
}
