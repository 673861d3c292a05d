package containment

import (
	"testing"

	"canvas-engine/domain/config"
	"canvas-engine/domain/core/aggregates"
	"canvas-engine/domain/core/entities"
	"canvas-engine/domain/core/valueobjects"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func frameAt(x, y, w, h float64) *entities.Node {
	return &entities.Node{
		ID:       valueobjects.NewNodeID(),
		Variant:  entities.VariantFrame,
		Position: valueobjects.Position{X: x, Y: y},
		Size:     &valueobjects.Size{Width: w, Height: h},
	}
}

func stickyAt(x, y float64) *entities.Node {
	return &entities.Node{
		ID:       valueobjects.NewNodeID(),
		Variant:  entities.VariantSticky,
		Position: valueobjects.Position{X: x, Y: y},
	}
}

// dragTo moves a node so that its absolute position becomes abs, as a drag would.
func dragTo(t *testing.T, doc *aggregates.Document, id valueobjects.NodeID, abs valueobjects.Position) {
	t.Helper()
	node, err := doc.Node(id)
	require.NoError(t, err)
	pos := abs
	if node.HasParent() {
		origin, err := doc.AbsolutePosition(node.ParentID)
		require.NoError(t, err)
		pos = abs.Sub(origin)
	}
	require.NoError(t, doc.UpdateNode(id, aggregates.NodePatch{Position: &pos}))
}

func TestResolve_IntoAndOutOfFrame(t *testing.T) {
	// Arrange
	doc := aggregates.NewDocument("doc-1", "", nil)
	frame := frameAt(0, 0, 400, 400)
	sticky := stickyAt(600, 600)
	require.NoError(t, doc.AddNode(frame))
	require.NoError(t, doc.AddNode(sticky))
	r := NewResolver(config.TieBreakFirstMatch, zap.NewNop())

	// Act: drop at (50,50) inside the frame.
	dragTo(t, doc, sticky.ID, valueobjects.Position{X: 50, Y: 50})
	result, err := r.Resolve(doc, sticky.ID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, Reparented, result.Outcome)
	got, _ := doc.Node(sticky.ID)
	assert.Equal(t, frame.ID, got.ParentID)
	assert.Equal(t, valueobjects.Position{X: 50, Y: 50}, got.Position)

	// Act: drag back outside.
	dragTo(t, doc, sticky.ID, valueobjects.Position{X: 600, Y: 600})
	result, err = r.Resolve(doc, sticky.ID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, Deparented, result.Outcome)
	got, _ = doc.Node(sticky.ID)
	assert.False(t, got.HasParent())
	assert.Equal(t, valueobjects.Position{X: 600, Y: 600}, got.Position)
}

func TestResolve_RoundTripHasNoDrift(t *testing.T) {
	starts := []valueobjects.Position{
		{X: 1000, Y: 1000},
		{X: -250.5, Y: 13.25},
		{X: 0.1, Y: 0.2},
	}
	for _, start := range starts {
		doc := aggregates.NewDocument("doc-1", "", nil)
		frame := frameAt(123.456, 78.9, 300, 300)
		sticky := stickyAt(start.X, start.Y)
		require.NoError(t, doc.AddNode(frame))
		require.NoError(t, doc.AddNode(sticky))
		r := NewResolver(config.TieBreakFirstMatch, nil)

		inside := valueobjects.Position{X: 200.001, Y: 150.3}
		dragTo(t, doc, sticky.ID, inside)
		_, err := r.Resolve(doc, sticky.ID)
		require.NoError(t, err)
		abs, err := doc.AbsolutePosition(sticky.ID)
		require.NoError(t, err)
		assert.InDelta(t, inside.X, abs.X, 1e-9)
		assert.InDelta(t, inside.Y, abs.Y, 1e-9)

		dragTo(t, doc, sticky.ID, start)
		_, err = r.Resolve(doc, sticky.ID)
		require.NoError(t, err)
		abs, err = doc.AbsolutePosition(sticky.ID)
		require.NoError(t, err)
		assert.InDelta(t, start.X, abs.X, 1e-9)
		assert.InDelta(t, start.Y, abs.Y, 1e-9)
	}
}

func TestResolve_NestedFrames(t *testing.T) {
	doc := aggregates.NewDocument("doc-1", "", nil)
	outer := frameAt(100, 100, 500, 500)
	inner := frameAt(50, 50, 100, 100)
	inner.ParentID = outer.ID
	sticky := stickyAt(0, 0)
	require.NoError(t, doc.AddNode(outer))
	require.NoError(t, doc.AddNode(inner))
	require.NoError(t, doc.AddNode(sticky))

	r := NewResolver(config.TieBreakFirstMatch, nil)
	dragTo(t, doc, sticky.ID, valueobjects.Position{X: 170, Y: 170})
	result, err := r.Resolve(doc, sticky.ID)
	require.NoError(t, err)

	// First match in insertion order is the outer frame.
	assert.Equal(t, outer.ID, result.NewParent)
	got, _ := doc.Node(sticky.ID)
	assert.Equal(t, valueobjects.Position{X: 70, Y: 70}, got.Position)

	smallest := NewResolver(config.TieBreakSmallestArea, nil)
	result, err = smallest.Resolve(doc, sticky.ID)
	require.NoError(t, err)
	assert.Equal(t, Reparented, result.Outcome)
	assert.Equal(t, inner.ID, result.NewParent)
	got, _ = doc.Node(sticky.ID)
	assert.Equal(t, valueobjects.Position{X: 20, Y: 20}, got.Position)
	abs, _ := doc.AbsolutePosition(sticky.ID)
	assert.Equal(t, valueobjects.Position{X: 170, Y: 170}, abs)
}

func TestResolve_CycleIsIgnored(t *testing.T) {
	doc := aggregates.NewDocument("doc-1", "", nil)
	outer := frameAt(0, 0, 400, 400)
	inner := frameAt(0, 0, 100, 100)
	inner.ParentID = outer.ID
	require.NoError(t, doc.AddNode(outer))
	require.NoError(t, doc.AddNode(inner))

	r := NewResolver(config.TieBreakFirstMatch, nil)
	result, err := r.Resolve(doc, outer.ID)

	require.NoError(t, err)
	assert.Equal(t, Rejected, result.Outcome)
	got, _ := doc.Node(outer.ID)
	assert.False(t, got.HasParent())
	child, _ := doc.Node(inner.ID)
	assert.Equal(t, outer.ID, child.ParentID)
}

func TestResolve_FrameLeavesParentOverOwnChild(t *testing.T) {
	// Arrange: outer > mid > inner, inner pinned at mid's top-left so it always
	// contains mid's origin.
	doc := aggregates.NewDocument("doc-1", "", nil)
	outer := frameAt(0, 0, 500, 500)
	mid := frameAt(50, 50, 200, 200)
	mid.ParentID = outer.ID
	inner := frameAt(0, 0, 100, 100)
	inner.ParentID = mid.ID
	require.NoError(t, doc.AddNode(outer))
	require.NoError(t, doc.AddNode(mid))
	require.NoError(t, doc.AddNode(inner))

	// Act
	dragTo(t, doc, mid.ID, valueobjects.Position{X: 2000, Y: 2000})
	result, err := NewResolver(config.TieBreakFirstMatch, nil).Resolve(doc, mid.ID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, Deparented, result.Outcome)
	assert.Equal(t, outer.ID, result.OldParent)
	got, _ := doc.Node(mid.ID)
	assert.False(t, got.HasParent())
	assert.Equal(t, valueobjects.Position{X: 2000, Y: 2000}, got.Position)
	child, _ := doc.Node(inner.ID)
	assert.Equal(t, mid.ID, child.ParentID, "children travel with their frame")
}

func TestResolve_StaysInCurrentParent(t *testing.T) {
	doc := aggregates.NewDocument("doc-1", "", nil)
	frame := frameAt(10, 10, 200, 200)
	sticky := stickyAt(5, 5)
	sticky.ParentID = frame.ID
	require.NoError(t, doc.AddNode(frame))
	require.NoError(t, doc.AddNode(sticky))

	result, err := NewResolver("", nil).Resolve(doc, sticky.ID)

	require.NoError(t, err)
	assert.Equal(t, Unchanged, result.Outcome)
	assert.Equal(t, frame.ID, result.NewParent)
}

func TestResolve_UnknownNode(t *testing.T) {
	doc := aggregates.NewDocument("doc-1", "", nil)
	_, err := NewResolver("", nil).Resolve(doc, "missing")
	assert.Error(t, err)
}
