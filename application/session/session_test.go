package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"canvas-engine/application/ports"
	"canvas-engine/application/syncengine"
	"canvas-engine/domain/config"
	"canvas-engine/domain/core/aggregates"
	"canvas-engine/domain/core/containment"
	"canvas-engine/domain/core/entities"
	"canvas-engine/domain/core/freehand"
	"canvas-engine/domain/core/registry"
	"canvas-engine/domain/core/valueobjects"
	"canvas-engine/domain/events"
	"canvas-engine/infrastructure/persistence/memory"
	pkgerrors "canvas-engine/pkg/errors"
)

const docID = valueobjects.DocumentID("board-1")

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *mockPublisher) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	return m.Called(ctx, evts).Error(0)
}

func (m *mockPublisher) published(eventType string) int {
	count := 0
	for _, call := range m.Calls {
		if call.Method != "Publish" {
			continue
		}
		if ev, ok := call.Arguments.Get(1).(events.DomainEvent); ok && ev.GetEventType() == eventType {
			count++
		}
	}
	return count
}

// testConfig keeps timers out of the way; tests save explicitly.
func testConfig() *config.DomainConfig {
	cfg := config.DefaultDomainConfig()
	cfg.SaveDebounce = time.Hour
	cfg.RetryInitialBackoff = time.Hour
	cfg.RetryMaxBackoff = time.Hour
	return cfg
}

func newDeps(store ports.DocumentStore) Dependencies {
	return Dependencies{Store: store, Config: testConfig()}
}

func openSession(t *testing.T, store ports.DocumentStore) *EditorSession {
	t.Helper()
	s, err := Open(context.Background(), docID, newDeps(store))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background(), true) })
	return s
}

func shapeAt(x, y float64) *entities.Node {
	return &entities.Node{
		Variant:  entities.VariantShape,
		Position: valueobjects.Position{X: x, Y: y},
		Payload:  entities.Payload{Label: "box"},
	}
}

func frameAt(x, y, w, h float64) *entities.Node {
	return &entities.Node{
		Variant:  entities.VariantFrame,
		Position: valueobjects.Position{X: x, Y: y},
		Size:     &valueobjects.Size{Width: w, Height: h},
		Payload:  entities.Payload{Label: "frame"},
	}
}

func TestOpen_MissingDocumentStartsEmpty(t *testing.T) {
	// Arrange
	store := memory.NewStore()
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil)
	deps := newDeps(store)
	deps.Publisher = pub

	// Act
	s, err := Open(context.Background(), docID, deps)

	// Assert
	require.NoError(t, err)
	view := s.Graph()
	assert.Equal(t, "Untitled board", view.Title)
	assert.Empty(t, view.Nodes)
	assert.False(t, view.CanUndo)
	assert.Equal(t, 1, pub.published(events.TypeDocumentOpened))

	require.NoError(t, s.Close(context.Background(), false))
	assert.Equal(t, 1, pub.published(events.TypeDocumentClosed))
}

func TestOpen_RequiresIDAndStore(t *testing.T) {
	_, err := Open(context.Background(), "", newDeps(memory.NewStore()))
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = Open(context.Background(), docID, Dependencies{})
	assert.Error(t, err)
}

func TestOpen_LoadErrorsPropagate(t *testing.T) {
	store := memory.NewStore()
	store.FailOn("SelectDocument", pkgerrors.NewNetworkError("down", errors.New("dial")))

	_, err := Open(context.Background(), docID, newDeps(store))

	assert.True(t, pkgerrors.IsTransient(err))
}

func TestSession_SaveAndReopen(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := memory.NewStore()
	s := openSession(t, store)
	a, err := s.AddNode(shapeAt(0, 0))
	require.NoError(t, err)
	b, err := s.AddNode(&entities.Node{Variant: entities.VariantSticky, Payload: entities.Payload{Label: "note"}})
	require.NoError(t, err)
	_, err = s.Connect(entities.NewEdge(a.ID, b.ID))
	require.NoError(t, err)
	require.NoError(t, s.SetTitle("Roadmap"))
	require.Equal(t, syncengine.StatusPending, s.Status().Status)

	// Act
	require.NoError(t, s.Save(ctx))
	reopened, err := Open(ctx, docID, newDeps(store))
	require.NoError(t, err)
	defer func() { _ = reopened.Close(ctx, true) }()

	// Assert
	view := reopened.Graph()
	assert.Equal(t, "Roadmap", view.Title)
	assert.Len(t, view.Nodes, 2)
	assert.Len(t, view.Edges, 1)
	assert.Equal(t, syncengine.StatusSaved, s.Status().Status)
	assert.False(t, s.HasPendingWork())

	// Sticky footprint is fixed and applied on insert.
	stored, err := reopened.doc.Node(b.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Size)
	assert.Equal(t, valueobjects.Size{Width: 200, Height: 200}, *stored.Size)
}

func TestOpen_DropsEdgesWithMissingEndpoints(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	a := shapeAt(0, 0)
	a.ID = valueobjects.NewNodeID()
	require.NoError(t, store.UpsertNodes(ctx, docID, []*entities.Node{a}))
	require.NoError(t, store.UpsertEdges(ctx, docID, []*entities.Edge{entities.NewEdge(a.ID, "gone")}))
	require.NoError(t, store.UpdateDocumentMeta(ctx, docID, ports.DocumentMeta{Title: "Old"}))

	s := openSession(t, store)

	view := s.Graph()
	assert.Len(t, view.Nodes, 1)
	assert.Empty(t, view.Edges)
	assert.Equal(t, entities.ShapeSquare, view.Nodes[0].Payload.Shape, "nodes are normalized on load")
}

func TestSession_ColorChangeUndoRedo(t *testing.T) {
	// Arrange
	s := openSession(t, memory.NewStore())
	n, err := s.AddNode(shapeAt(10, 10))
	require.NoError(t, err)
	border := "#00ff00"

	// Act
	_, err = s.ChangeColor(n.ID, registry.ColorChange{Fill: "#ff0000", Border: &border})
	require.NoError(t, err)
	undone, err := s.Undo()
	require.NoError(t, err)

	// Assert
	assert.True(t, undone)
	after, err := s.doc.Node(n.ID)
	require.NoError(t, err)
	assert.Empty(t, after.Payload.Colors.Fill)
	assert.True(t, s.Graph().CanRedo)

	redone, err := s.Redo()
	require.NoError(t, err)
	assert.True(t, redone)
	after, err = s.doc.Node(n.ID)
	require.NoError(t, err)
	assert.Equal(t, "#ff0000", after.Payload.Colors.Fill)
	assert.Equal(t, "#00ff00", after.Payload.Colors.Border)
	assert.Equal(t, syncengine.StatusPending, s.Status().Status, "undo and redo schedule a save")
}

func TestSession_FailedActionLeavesNoHistory(t *testing.T) {
	s := openSession(t, memory.NewStore())
	n, err := s.AddNode(&entities.Node{Variant: entities.VariantSticky})
	require.NoError(t, err)

	_, err = s.ChangeColor(n.ID, registry.ColorChange{Fill: "#123456"})

	assert.True(t, pkgerrors.IsValidation(err))
	assert.False(t, s.Graph().CanUndo)
}

func TestSession_DeleteFrameDetachesChildrenAndUndoes(t *testing.T) {
	// Arrange
	s := openSession(t, memory.NewStore())
	frame, err := s.AddNode(frameAt(100, 100, 400, 300))
	require.NoError(t, err)
	child := shapeAt(20, 30)
	child.ParentID = frame.ID
	child, err = s.AddNode(child)
	require.NoError(t, err)

	// Act
	res, err := s.DeleteNodes(frame.ID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []valueobjects.NodeID{frame.ID}, res.RemovedNodes)
	assert.Equal(t, []valueobjects.NodeID{child.ID}, res.DetachedNodes)
	detached, err := s.doc.Node(child.ID)
	require.NoError(t, err)
	assert.True(t, detached.ParentID.IsZero())
	assert.Equal(t, valueobjects.Position{X: 120, Y: 130}, detached.Position)

	_, err = s.Undo()
	require.NoError(t, err)
	restored, err := s.doc.Node(child.ID)
	require.NoError(t, err)
	assert.Equal(t, frame.ID, restored.ParentID)
	assert.Equal(t, valueobjects.Position{X: 20, Y: 30}, restored.Position)
}

func TestSession_CascadeDeleteRemovesSubtreeAndUndoes(t *testing.T) {
	// Arrange
	s := openSession(t, memory.NewStore())
	frame, err := s.AddNode(frameAt(100, 100, 400, 300))
	require.NoError(t, err)
	child := shapeAt(20, 30)
	child.ParentID = frame.ID
	child, err = s.AddNode(child)
	require.NoError(t, err)
	other, err := s.AddNode(shapeAt(900, 900))
	require.NoError(t, err)
	link, err := s.Connect(&entities.Edge{Source: child.ID, Target: other.ID})
	require.NoError(t, err)

	// Act
	res, err := s.DeleteNodesWith(aggregates.RemoveOptions{Cascade: true}, frame.ID, child.ID)

	// Assert
	require.NoError(t, err)
	assert.ElementsMatch(t, []valueobjects.NodeID{frame.ID, child.ID}, res.RemovedNodes)
	assert.Equal(t, []valueobjects.EdgeID{link.ID}, res.RemovedEdges)
	assert.Empty(t, res.DetachedNodes)
	assert.False(t, s.doc.HasNode(child.ID))
	assert.Equal(t, 1, s.doc.NodeCount())

	_, err = s.Undo()
	require.NoError(t, err)
	restored, err := s.doc.Node(child.ID)
	require.NoError(t, err)
	assert.Equal(t, frame.ID, restored.ParentID)
	assert.Equal(t, 1, s.doc.EdgeCount())
}

func TestSession_DeleteUnknownNode(t *testing.T) {
	s := openSession(t, memory.NewStore())

	_, err := s.DeleteNodes("nope")

	assert.True(t, pkgerrors.IsNotFound(err))
	assert.False(t, s.Graph().CanUndo)
}

func TestSession_DuplicateAndDisconnect(t *testing.T) {
	s := openSession(t, memory.NewStore())
	a, err := s.AddNode(shapeAt(0, 0))
	require.NoError(t, err)

	dup, err := s.Duplicate(a.ID)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, dup.ID)
	assert.Equal(t, valueobjects.Position{X: 20, Y: 20}, dup.Position)

	e, err := s.Connect(&entities.Edge{Source: a.ID, Target: dup.ID})
	require.NoError(t, err)
	assert.False(t, e.ID.IsZero())
	assert.Equal(t, entities.RoutingBezier, e.Routing)

	require.NoError(t, s.Disconnect(e.ID))
	assert.Empty(t, s.Graph().Edges)

	_, err = s.Undo()
	require.NoError(t, err)
	assert.Len(t, s.Graph().Edges, 1)
}

func TestSession_DragEndReparents(t *testing.T) {
	// Arrange
	s := openSession(t, memory.NewStore())
	frame, err := s.AddNode(frameAt(100, 100, 400, 300))
	require.NoError(t, err)
	n, err := s.AddNode(shapeAt(600, 600))
	require.NoError(t, err)

	// Act
	res, err := s.DragEnd(n.ID, valueobjects.Position{X: 200, Y: 200})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, containment.Reparented, res.Outcome)
	assert.Equal(t, frame.ID, res.NewParent)
	moved, err := s.doc.Node(n.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobjects.Position{X: 100, Y: 100}, moved.Position)

	// Dragging back out de-parents and restores canvas coordinates.
	res, err = s.DragEnd(n.ID, valueobjects.Position{X: 500, Y: 500})
	require.NoError(t, err)
	assert.Equal(t, containment.Deparented, res.Outcome)
	moved, err = s.doc.Node(n.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobjects.Position{X: 600, Y: 600}, moved.Position)
}

func TestSession_PenStrokeAndEraser(t *testing.T) {
	// Arrange
	s := openSession(t, memory.NewStore())
	require.NoError(t, s.SetTool(freehand.ToolPen, freehand.ModePen))

	// Act
	res, err := s.PointerDown(freehand.Pointer{ScreenX: 10, ScreenY: 10})
	require.NoError(t, err)
	assert.Equal(t, freehand.StateDrawing, res.State)
	s.PointerMove(freehand.Pointer{ScreenX: 40, ScreenY: 30})
	up, err := s.PointerUp(freehand.Pointer{ScreenX: 80, ScreenY: 50})
	require.NoError(t, err)

	// Assert
	require.NotNil(t, up.Created)
	assert.Equal(t, freehand.StateIdle, up.State)
	assert.Equal(t, entities.VariantDoodle, up.Created.Variant)
	assert.Equal(t, valueobjects.Position{X: 10, Y: 10}, up.Created.Position)
	assert.True(t, strings.HasPrefix(up.Created.Payload.Path, "M "))
	assert.Len(t, s.Graph().Nodes, 1)

	require.NoError(t, s.SetTool(freehand.ToolEraser, ""))
	miss, err := s.PointerDown(freehand.Pointer{ScreenX: 500, ScreenY: 500})
	require.NoError(t, err)
	assert.True(t, miss.Erased.IsZero())

	hit, err := s.PointerDown(freehand.Pointer{ScreenX: 30, ScreenY: 20})
	require.NoError(t, err)
	assert.Equal(t, up.Created.ID, hit.Erased)
	assert.Empty(t, s.Graph().Nodes)
}

func TestSession_PointerLeaveAbandonsStroke(t *testing.T) {
	s := openSession(t, memory.NewStore())
	require.NoError(t, s.SetTool(freehand.ToolPen, freehand.ModeHighlighter))

	_, err := s.PointerDown(freehand.Pointer{ScreenX: 10, ScreenY: 10})
	require.NoError(t, err)
	res := s.PointerLeave()
	up, err := s.PointerUp(freehand.Pointer{ScreenX: 50, ScreenY: 50})

	require.NoError(t, err)
	assert.Equal(t, freehand.StateIdle, res.State)
	assert.Nil(t, up.Created)
	assert.Empty(t, s.Graph().Nodes)
}

func TestSession_SetToolValidates(t *testing.T) {
	s := openSession(t, memory.NewStore())

	assert.True(t, pkgerrors.IsValidation(s.SetTool("lasso", "")))
	assert.True(t, pkgerrors.IsValidation(s.SetTool(freehand.ToolPen, "spray")))
}

func TestSession_Shortcuts(t *testing.T) {
	// Arrange
	s := openSession(t, memory.NewStore())
	_, err := s.AddNode(shapeAt(0, 0))
	require.NoError(t, err)
	_, err = s.AddNode(shapeAt(200, 0))
	require.NoError(t, err)

	tests := []struct {
		key       Shortcut
		changed   bool
		wantNodes int
	}{
		{key: ShortcutSelectAll, changed: false, wantNodes: 2},
		{key: ShortcutDelete, changed: true, wantNodes: 0},
		{key: ShortcutUndo, changed: true, wantNodes: 2},
		{key: ShortcutRedo, changed: true, wantNodes: 0},
		{key: ShortcutUndo, changed: true, wantNodes: 2},
		{key: ShortcutEscape, changed: false, wantNodes: 2},
		{key: ShortcutDelete, changed: false, wantNodes: 2},
	}
	for _, tt := range tests {
		// Act
		changed, err := s.HandleKey(tt.key)

		// Assert
		require.NoError(t, err, "key %s", tt.key)
		assert.Equal(t, tt.changed, changed, "key %s", tt.key)
		assert.Len(t, s.Graph().Nodes, tt.wantNodes, "key %s", tt.key)
	}

	_, err = s.HandleKey("ctrl+q")
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestSession_Export(t *testing.T) {
	ctx := context.Background()
	s := openSession(t, memory.NewStore())
	a, err := s.AddNode(shapeAt(100, 100))
	require.NoError(t, err)
	b, err := s.AddNode(&entities.Node{Variant: entities.VariantSticky, Position: valueobjects.Position{X: 300, Y: 100}})
	require.NoError(t, err)
	_, err = s.Connect(entities.NewEdge(a.ID, b.ID))
	require.NoError(t, err)

	text, err := s.ExportInterchange(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(text, "Begin Object"))
	assert.Equal(t, 2, strings.Count(text, "LinkedTo="))

	svg, err := s.ExportImage(ctx, 1024, 768, "svg")
	require.NoError(t, err)
	assert.Contains(t, svg, "<svg")

	_, err = s.ExportImage(ctx, 1024, 768, "png")
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestSession_CloseReportsFlushFailure(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := memory.NewStore()
	s, err := Open(ctx, docID, newDeps(store))
	require.NoError(t, err)
	_, err = s.AddNode(shapeAt(0, 0))
	require.NoError(t, err)
	store.FailOn("UpsertNodes", pkgerrors.NewNetworkError("offline", errors.New("dial")))

	// Act
	err = s.Close(ctx, false)

	// Assert
	require.Error(t, err)
	assert.True(t, s.HasPendingWork())
	_, err = s.AddNode(shapeAt(50, 50))
	assert.NoError(t, err, "session stays usable after a failed close")

	require.NoError(t, s.Close(ctx, true))
	_, err = s.AddNode(shapeAt(90, 90))
	assert.True(t, pkgerrors.IsConflict(err))
}
