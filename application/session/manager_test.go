package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvas-engine/domain/core/valueobjects"
	"canvas-engine/infrastructure/persistence/memory"
	pkgerrors "canvas-engine/pkg/errors"
)

func TestManager_OpenIsSharedPerDocument(t *testing.T) {
	// Arrange
	store := memory.NewStore()
	m := NewManager(newDeps(store))
	defer m.CloseAll(context.Background())

	// Act
	var wg sync.WaitGroup
	got := make([]*EditorSession, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := m.Open(context.Background(), docID)
			assert.NoError(t, err)
			got[i] = s
		}(i)
	}
	wg.Wait()

	// Assert
	for _, s := range got {
		assert.Same(t, got[0], s)
	}
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 1, store.Calls("SelectDocument"))
}

func TestManager_OpenRetriesAfterFailedLoad(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := memory.NewStore()
	m := NewManager(newDeps(store))
	defer m.CloseAll(ctx)
	store.FailOn("SelectDocument", pkgerrors.NewNetworkError("store offline", nil))

	// Act
	_, firstErr := m.Open(ctx, docID)
	store.FailOn("SelectDocument", nil)
	s, err := m.Open(ctx, docID)

	// Assert
	require.Error(t, firstErr)
	assert.True(t, pkgerrors.IsTransient(firstErr))
	require.NoError(t, err)
	assert.NotNil(t, s)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 2, store.Calls("SelectDocument"))
}

func TestManager_GetAndClose(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	m := NewManager(newDeps(store))

	_, err := m.Get(docID)
	assert.True(t, pkgerrors.IsNotFound(err))

	s, err := m.Open(ctx, docID)
	require.NoError(t, err)
	_, err = s.AddNode(shapeAt(0, 0))
	require.NoError(t, err)

	got, err := m.Get(docID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, m.Close(ctx, docID, false))
	assert.Equal(t, 0, m.Len())

	rec, err := store.SelectDocument(ctx, docID)
	require.NoError(t, err)
	assert.Len(t, rec.Nodes, 1, "close flushes pending changes")
}

func TestManager_CloseAll(t *testing.T) {
	ctx := context.Background()
	m := NewManager(newDeps(memory.NewStore()))
	for _, id := range []valueobjects.DocumentID{"a", "b", "c"} {
		_, err := m.Open(ctx, id)
		require.NoError(t, err)
	}

	m.CloseAll(ctx)

	assert.Equal(t, 0, m.Len())
}
