package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvas-engine/application/ports"
	"canvas-engine/domain/core/entities"
	"canvas-engine/domain/core/valueobjects"
	pkgerrors "canvas-engine/pkg/errors"
)

const docID = valueobjects.DocumentID("doc-1")

func sticky(label string) *entities.Node {
	return &entities.Node{
		ID:      valueobjects.NewNodeID(),
		Variant: entities.VariantSticky,
		Payload: entities.Payload{Label: label},
	}
}

func TestStore_MissingDocumentIsNotFound(t *testing.T) {
	s := NewStore()

	_, err := s.SelectDocument(context.Background(), docID)

	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestStore_RoundTripAndExclusionDeletes(t *testing.T) {
	// Arrange
	ctx := context.Background()
	s := NewStore()
	a, b, c := sticky("a"), sticky("b"), sticky("c")
	ab := entities.NewEdge(a.ID, b.ID)
	bc := entities.NewEdge(b.ID, c.ID)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.UpsertNodes(ctx, docID, []*entities.Node{a, b, c}))
	require.NoError(t, s.UpsertEdges(ctx, docID, []*entities.Edge{ab, bc}))
	require.NoError(t, s.UpdateDocumentMeta(ctx, docID, ports.DocumentMeta{Title: "Plan", ModifiedAt: now}))

	// Act
	require.NoError(t, s.DeleteEdgesExcept(ctx, docID, []valueobjects.EdgeID{ab.ID}))
	require.NoError(t, s.DeleteNodesExcept(ctx, docID, []valueobjects.NodeID{a.ID, b.ID}))
	rec, err := s.SelectDocument(ctx, docID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "Plan", rec.Title)
	assert.Equal(t, now, rec.ModifiedAt)
	assert.ElementsMatch(t, []valueobjects.NodeID{a.ID, b.ID}, []valueobjects.NodeID{rec.Nodes[0].ID, rec.Nodes[1].ID})
	require.Len(t, rec.Edges, 1)
	assert.Equal(t, ab.ID, rec.Edges[0].ID)
}

func TestStore_ClonesValues(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	n := sticky("before")
	n.Selected = true
	require.NoError(t, s.UpsertNodes(ctx, docID, []*entities.Node{n}))
	require.NoError(t, s.UpdateDocumentMeta(ctx, docID, ports.DocumentMeta{Title: "t"}))

	n.Payload.Label = "after"
	rec, err := s.SelectDocument(ctx, docID)

	require.NoError(t, err)
	assert.Equal(t, "before", rec.Nodes[0].Payload.Label)
	assert.False(t, rec.Nodes[0].Selected)
}

func TestStore_FailOn(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	boom := pkgerrors.NewNetworkError("connection reset", errors.New("reset"))

	s.FailOn("UpsertNodes", boom)
	err := s.UpsertNodes(ctx, docID, []*entities.Node{sticky("x")})
	assert.ErrorIs(t, err, boom)

	s.FailOn("UpsertNodes", nil)
	assert.NoError(t, s.UpsertNodes(ctx, docID, []*entities.Node{sticky("x")}))
	assert.Equal(t, 2, s.Calls("UpsertNodes"))
}

func TestStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewStore().UpsertEdges(ctx, docID, nil)

	assert.True(t, pkgerrors.IsTransient(err))
}
