// Package session owns the editing state of one open document and turns user actions
// into graph mutations, history snapshots and save triggers.
package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"canvas-engine/application/export"
	"canvas-engine/application/ports"
	"canvas-engine/application/syncengine"
	"canvas-engine/domain/config"
	"canvas-engine/domain/core/aggregates"
	"canvas-engine/domain/core/containment"
	"canvas-engine/domain/core/entities"
	"canvas-engine/domain/core/freehand"
	"canvas-engine/domain/core/history"
	"canvas-engine/domain/core/registry"
	"canvas-engine/domain/core/valueobjects"
	"canvas-engine/domain/events"
	pkgerrors "canvas-engine/pkg/errors"
	"canvas-engine/pkg/observability"
)

// Dependencies are the collaborators shared by every session of a process.
type Dependencies struct {
	Store     ports.DocumentStore
	Config    *config.DomainConfig
	Logger    *zap.Logger
	Metrics   *observability.Collector
	Tracer    *observability.Tracer
	Publisher ports.EventPublisher
	Clock     ports.Clock
	// GUID overrides export identifiers; nil means random.
	GUID export.GUIDFunc
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Config == nil {
		d.Config = config.DefaultDomainConfig()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = ports.SystemClock{}
	}
	return d
}

// EditorSession is the single owner of an open document. All methods are safe for
// concurrent use; they are serialized on one mutex, which stands in for the single
// input thread of an interactive editor.
type EditorSession struct {
	mu sync.Mutex

	id       valueobjects.DocumentID
	doc      *aggregates.Document
	history  *history.Manager
	registry *registry.Registry
	resolver *containment.Resolver
	pen      *freehand.Processor
	engine   *syncengine.Engine
	exporter *export.Exporter

	deps   Dependencies
	logger *zap.Logger
	closed bool
}

// Open loads a document from the store and starts its session. A document that does
// not exist yet starts empty and is created by its first save.
func Open(ctx context.Context, docID valueobjects.DocumentID, deps Dependencies) (*EditorSession, error) {
	if docID.IsZero() {
		return nil, pkgerrors.NewValidationError("document id is required")
	}
	if deps.Store == nil {
		return nil, pkgerrors.NewInternalError("session requires a document store")
	}
	deps = deps.withDefaults()
	logger := deps.Logger.With(zap.String("documentID", docID.String()))

	doc, err := load(ctx, docID, deps, logger)
	if err != nil {
		return nil, err
	}

	reg := registry.New(registry.ThemeByName(deps.Config.Theme))
	if err := reg.NormalizeDocument(doc); err != nil {
		return nil, pkgerrors.Wrap(err, "normalize document")
	}

	s := &EditorSession{
		id:       docID,
		doc:      doc,
		history:  history.NewManager(deps.Config.HistoryLimit),
		registry: reg,
		resolver: containment.NewResolver(deps.Config.ContainmentTieBreak, logger),
		pen:      freehand.NewProcessor(deps.Config),
		exporter: export.NewExporter(reg, logger, deps.GUID, deps.Metrics, deps.Tracer),
		deps:     deps,
		logger:   logger,
	}
	s.engine = syncengine.NewEngine(docID, deps.Store, s.snapshot, deps.Config, logger,
		syncengine.WithPublisher(deps.Publisher),
		syncengine.WithMetrics(deps.Metrics),
		syncengine.WithTracer(deps.Tracer),
		syncengine.WithClock(deps.Clock),
	)

	deps.Metrics.SessionOpened()
	s.publish(ctx, events.NewDocumentOpened(docID, doc.NodeCount(), doc.EdgeCount(), deps.Clock.Now()))
	logger.Info("document opened",
		zap.Int("nodes", doc.NodeCount()),
		zap.Int("edges", doc.EdgeCount()))
	return s, nil
}

func load(ctx context.Context, docID valueobjects.DocumentID, deps Dependencies, logger *zap.Logger) (*aggregates.Document, error) {
	record, err := deps.Store.SelectDocument(ctx, docID)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			logger.Info("document not found, starting empty")
			return aggregates.NewDocument(docID, "", deps.Config), nil
		}
		return nil, pkgerrors.Wrap(err, "load document")
	}

	doc, dropped, err := aggregates.ReconstructDocument(docID, record.Title, record.Nodes, record.Edges, deps.Config)
	if err != nil {
		return nil, err
	}
	for _, e := range dropped {
		logger.Warn("dropping edge with a missing endpoint",
			zap.String("edgeID", e.ID.String()),
			zap.String("source", e.Source.String()),
			zap.String("target", e.Target.String()))
	}
	return doc, nil
}

// snapshot feeds the sync engine. It runs on the engine's goroutines.
func (s *EditorSession) snapshot() syncengine.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return syncengine.Snapshot{
		DocumentID: s.id,
		Title:      s.doc.Title(),
		Nodes:      s.doc.Nodes(),
		Edges:      s.doc.Edges(),
	}
}

// ID returns the document id.
func (s *EditorSession) ID() valueobjects.DocumentID { return s.id }

// mutate runs fn under the session lock. With undoable set, the pre-change graph is
// pushed onto the history, but only when fn succeeds. Every successful mutation
// schedules a save.
func (s *EditorSession) mutate(undoable bool, fn func() error) error {
	if s.closed {
		return pkgerrors.NewConflictError("session is closed")
	}
	var before aggregates.GraphState
	if undoable {
		before = s.doc.Capture()
	}
	if err := fn(); err != nil {
		return err
	}
	if undoable {
		s.history.TakeSnapshot(before)
	}
	s.engine.Schedule()
	return nil
}

// Graph returns a copy of the document for rendering.
func (s *EditorSession) Graph() GraphView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return GraphView{
		ID:       s.id,
		Title:    s.doc.Title(),
		Nodes:    s.doc.Nodes(),
		Edges:    s.doc.Edges(),
		Selected: s.doc.SelectedIDs(),
		CanUndo:  s.history.CanUndo(),
		CanRedo:  s.history.CanRedo(),
	}
}

// SetTitle renames the document.
func (s *EditorSession) SetTitle(title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutate(false, func() error { return s.doc.SetTitle(title) })
}

// AddNode normalizes and inserts a node. A zero id is replaced with a fresh one.
func (s *EditorSession) AddNode(n *entities.Node) (*entities.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node := n.Clone()
	if node.ID.IsZero() {
		node.ID = valueobjects.NewNodeID()
	}
	err := s.mutate(false, func() error {
		if err := s.registry.Prepare(node); err != nil {
			return err
		}
		return s.doc.AddNode(node)
	})
	if err != nil {
		return nil, err
	}
	return s.doc.Node(node.ID)
}

// UpdateNode applies a partial update.
func (s *EditorSession) UpdateNode(id valueobjects.NodeID, patch aggregates.NodePatch) (*entities.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutate(false, func() error { return s.doc.UpdateNode(id, patch) }); err != nil {
		return nil, err
	}
	return s.doc.Node(id)
}

// ChangeLabel edits a node's text.
func (s *EditorSession) ChangeLabel(id valueobjects.NodeID, text string) (*entities.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutate(false, func() error { return s.registry.OnChangeLabel(s.doc, id, text) }); err != nil {
		return nil, err
	}
	return s.doc.Node(id)
}

// ChangeColor recolors a node. Undoable.
func (s *EditorSession) ChangeColor(id valueobjects.NodeID, change registry.ColorChange) (*entities.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mutate(true, func() error { return s.registry.OnChangeColor(s.doc, id, change) }); err != nil {
		return nil, err
	}
	return s.doc.Node(id)
}

// DeleteNodes removes nodes and their edges as one undoable step. Frames detach their
// children.
func (s *EditorSession) DeleteNodes(ids ...valueobjects.NodeID) (*aggregates.RemovalResult, error) {
	return s.DeleteNodesWith(aggregates.RemoveOptions{}, ids...)
}

// DeleteNodesWith is DeleteNodes with explicit removal options. With Cascade set a
// frame takes its whole subtree with it; ids already removed that way are skipped.
func (s *EditorSession) DeleteNodesWith(opts aggregates.RemoveOptions, ids ...valueobjects.NodeID) (*aggregates.RemovalResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteNodesLocked(ids, opts)
}

func (s *EditorSession) deleteNodesLocked(ids []valueobjects.NodeID, opts aggregates.RemoveOptions) (*aggregates.RemovalResult, error) {
	if len(ids) == 0 {
		return &aggregates.RemovalResult{}, nil
	}
	for _, id := range ids {
		if !s.doc.HasNode(id) {
			return nil, pkgerrors.NewNotFoundError("node " + id.String())
		}
	}
	total := &aggregates.RemovalResult{}
	err := s.mutate(true, func() error {
		for _, id := range ids {
			if !s.doc.HasNode(id) {
				continue
			}
			res, err := s.registry.OnDelete(s.doc, id, opts)
			if err != nil {
				return err
			}
			total.RemovedNodes = append(total.RemovedNodes, res.RemovedNodes...)
			total.RemovedEdges = append(total.RemovedEdges, res.RemovedEdges...)
			total.DetachedNodes = append(total.DetachedNodes, res.DetachedNodes...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return total, nil
}

// Duplicate copies a node at a fixed offset. Undoable.
func (s *EditorSession) Duplicate(id valueobjects.NodeID) (*entities.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var dup *entities.Node
	err := s.mutate(true, func() error {
		var err error
		dup, err = s.registry.OnCopy(s.doc, id)
		return err
	})
	return dup, err
}

// Connect adds an edge. A zero id is replaced with a fresh one.
func (s *EditorSession) Connect(e *entities.Edge) (*entities.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	edge := e.Clone()
	if edge.ID.IsZero() {
		edge.ID = valueobjects.NewEdgeID()
	}
	if edge.Routing == "" {
		edge.Routing = entities.RoutingBezier
	}
	if err := s.mutate(false, func() error { return s.doc.AddEdge(edge) }); err != nil {
		return nil, err
	}
	return s.doc.Edge(edge.ID)
}

// Disconnect removes an edge. Undoable.
func (s *EditorSession) Disconnect(id valueobjects.EdgeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutate(true, func() error { return s.doc.RemoveEdge(id) })
}

// DragEnd moves a node to its drop position, expressed in the node's current
// coordinate space, and resolves frame containment. The completed move is undoable;
// intermediate drag positions are never recorded.
func (s *EditorSession) DragEnd(id valueobjects.NodeID, pos valueobjects.Position) (containment.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result containment.Result
	err := s.mutate(true, func() error {
		if err := s.doc.UpdateNode(id, aggregates.NodePatch{Position: &pos}); err != nil {
			return err
		}
		var err error
		result, err = s.resolver.Resolve(s.doc, id)
		return err
	})
	return result, err
}

// Undo restores the previous snapshot. It reports whether anything changed.
func (s *EditorSession) Undo() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.undoLocked()
}

func (s *EditorSession) undoLocked() (bool, error) {
	if s.closed {
		return false, pkgerrors.NewConflictError("session is closed")
	}
	state, ok := s.history.Undo(s.doc.Capture())
	if !ok {
		return false, nil
	}
	return true, s.restoreLocked(state)
}

// Redo re-applies the snapshot undone last. It reports whether anything changed.
func (s *EditorSession) Redo() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.redoLocked()
}

func (s *EditorSession) redoLocked() (bool, error) {
	if s.closed {
		return false, pkgerrors.NewConflictError("session is closed")
	}
	state, ok := s.history.Redo()
	if !ok {
		return false, nil
	}
	return true, s.restoreLocked(state)
}

func (s *EditorSession) restoreLocked(state aggregates.GraphState) error {
	s.pen.Cancel()
	s.doc.Restore(state)
	if err := s.registry.NormalizeDocument(s.doc); err != nil {
		return err
	}
	s.engine.Schedule()
	return nil
}

// Select sets the selection flag of one node. Selection is never saved or snapshotted.
func (s *EditorSession) Select(id valueobjects.NodeID, selected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.SetSelected(id, selected)
}

// ClearSelection deselects everything.
func (s *EditorSession) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.ClearSelection()
}

// SetTheme switches the default color theme and re-normalizes every node.
func (s *EditorSession) SetTheme(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry.SetTheme(registry.ThemeByName(name))
	return s.registry.NormalizeDocument(s.doc)
}

// ExportInterchange renders the document as Blueprint clipboard text.
func (s *EditorSession) ExportInterchange(ctx context.Context) (string, error) {
	s.mu.Lock()
	state := s.doc.Capture()
	s.mu.Unlock()
	return s.exporter.Interchange(ctx, state)
}

// ExportImage renders the area visible in a screen of the given size.
func (s *EditorSession) ExportImage(ctx context.Context, width, height float64, format export.ImageFormat) (string, error) {
	s.mu.Lock()
	state := s.doc.Capture()
	view := s.pen.Viewport().VisibleRect(width, height)
	s.mu.Unlock()
	return s.exporter.Image(ctx, state, view, format)
}

// Save persists now and waits for the result.
func (s *EditorSession) Save(ctx context.Context) error {
	return s.engine.Save(ctx)
}

// Blur starts a background save, as when the window loses focus.
func (s *EditorSession) Blur() {
	s.engine.Blur()
}

// Flush saves before navigating away. Navigation should proceed only on a nil error.
func (s *EditorSession) Flush(ctx context.Context) error {
	return s.engine.Flush(ctx)
}

// HasPendingWork reports whether closing now could lose changes.
func (s *EditorSession) HasPendingWork() bool {
	return s.engine.HasPendingWork()
}

// Status reports the save indicator.
func (s *EditorSession) Status() syncengine.Report {
	return s.engine.Report()
}

// Close flushes and ends the session. When the flush fails the session stays open
// and the error is returned, unless force is set, in which case pending changes are
// abandoned.
func (s *EditorSession) Close(ctx context.Context, force bool) error {
	flushErr := s.engine.Flush(ctx)
	if flushErr != nil && !force {
		return flushErr
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.pen.Cancel()
	s.mu.Unlock()

	dirty := flushErr != nil || s.engine.HasPendingWork()
	s.engine.Close()
	if dirty {
		s.logger.Warn("document closed with unsaved changes", zap.Error(flushErr))
	}
	s.deps.Metrics.SessionClosed()
	s.publish(ctx, events.NewDocumentClosed(s.id, dirty, s.deps.Clock.Now()))
	return nil
}

func (s *EditorSession) publish(ctx context.Context, event events.DomainEvent) {
	if s.deps.Publisher == nil {
		return
	}
	if err := s.deps.Publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event",
			zap.String("eventType", event.GetEventType()),
			zap.Error(err))
	}
}

// GraphView is a read-only copy of a session's document.
type GraphView struct {
	ID       valueobjects.DocumentID `json:"id"`
	Title    string                  `json:"title"`
	Nodes    []*entities.Node        `json:"nodes"`
	Edges    []*entities.Edge        `json:"edges"`
	Selected []valueobjects.NodeID   `json:"selected"`
	CanUndo  bool                    `json:"canUndo"`
	CanRedo  bool                    `json:"canRedo"`
}
