package session

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"canvas-engine/domain/core/valueobjects"
	pkgerrors "canvas-engine/pkg/errors"
)

// Manager tracks the open sessions of a process, one per document id.
type Manager struct {
	deps Dependencies

	mu       sync.Mutex
	sessions map[valueobjects.DocumentID]*EditorSession
	// opening collapses concurrent opens of the same document into one load.
	opening singleflight.Group
}

// NewManager creates an empty manager.
func NewManager(deps Dependencies) *Manager {
	return &Manager{
		deps:     deps.withDefaults(),
		sessions: make(map[valueobjects.DocumentID]*EditorSession),
	}
}

// Open returns the session of docID, loading the document on first use.
func (m *Manager) Open(ctx context.Context, docID valueobjects.DocumentID) (*EditorSession, error) {
	if s, ok := m.lookup(docID); ok {
		return s, nil
	}
	// A failed load leaves nothing behind, so the next call retries it.
	v, err, _ := m.opening.Do(docID.String(), func() (interface{}, error) {
		if s, ok := m.lookup(docID); ok {
			return s, nil
		}
		s, err := Open(ctx, docID, m.deps)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.sessions[docID] = s
		m.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*EditorSession), nil
}

func (m *Manager) lookup(docID valueobjects.DocumentID) (*EditorSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[docID]
	return s, ok
}

// Get returns an open session.
func (m *Manager) Get(docID valueobjects.DocumentID) (*EditorSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[docID]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("open document " + docID.String())
	}
	return s, nil
}

// Close flushes and closes one session. See EditorSession.Close for force.
func (m *Manager) Close(ctx context.Context, docID valueobjects.DocumentID, force bool) error {
	s, err := m.Get(docID)
	if err != nil {
		return err
	}
	if err := s.Close(ctx, force); err != nil {
		return err
	}
	m.mu.Lock()
	if m.sessions[docID] == s {
		delete(m.sessions, docID)
	}
	m.mu.Unlock()
	return nil
}

// CloseAll force-closes every session, flushing each first. Used on shutdown.
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	open := make([]*EditorSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.sessions = make(map[valueobjects.DocumentID]*EditorSession)
	m.mu.Unlock()

	var g errgroup.Group
	for _, s := range open {
		g.Go(func() error {
			if err := s.Close(ctx, true); err != nil {
				m.deps.Logger.Error("failed to close session",
					zap.String("documentID", s.ID().String()),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
