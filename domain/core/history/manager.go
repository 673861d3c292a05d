// Package history implements snapshot-based undo and redo over a document graph.
package history

import (
	"canvas-engine/domain/core/aggregates"
)

// DefaultLimit is the number of snapshots kept when no limit is configured.
const DefaultLimit = 50

// Manager keeps an append-only list of graph snapshots and a cursor into it.
//
// entries[:cursor] are states that Undo can return to. When the cursor sits at the
// end, the live document is newer than every entry; the first Undo stores the live
// state so that Redo can come back to it.
type Manager struct {
	entries []aggregates.GraphState
	cursor  int
	limit   int
}

// NewManager creates a history capped at limit entries.
func NewManager(limit int) *Manager {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Manager{limit: limit}
}

// TakeSnapshot records live as the state to return to on the next Undo. Call it
// immediately before a destructive action. Any redo branch is discarded.
func (m *Manager) TakeSnapshot(live aggregates.GraphState) {
	m.entries = append(m.entries[:m.cursor], live.Clone())
	m.cursor = len(m.entries)
	m.evict()
}

// Undo returns the state to restore, or false when there is nothing to undo.
func (m *Manager) Undo(live aggregates.GraphState) (aggregates.GraphState, bool) {
	if m.cursor == 0 {
		return aggregates.GraphState{}, false
	}
	if m.cursor == len(m.entries) {
		m.entries = append(m.entries, live.Clone())
		if m.evict() {
			// evict shifted the cursor down with the dropped entry
			if m.cursor == 0 {
				return aggregates.GraphState{}, false
			}
		}
	}
	m.cursor--
	return m.entries[m.cursor].Clone(), true
}

// Redo returns the state to restore, or false when there is nothing to redo.
func (m *Manager) Redo() (aggregates.GraphState, bool) {
	if m.cursor+1 >= len(m.entries) {
		return aggregates.GraphState{}, false
	}
	m.cursor++
	return m.entries[m.cursor].Clone(), true
}

// CanUndo reports whether Undo would change the graph.
func (m *Manager) CanUndo() bool {
	return m.cursor > 0
}

// CanRedo reports whether Redo would change the graph.
func (m *Manager) CanRedo() bool {
	return m.cursor+1 < len(m.entries)
}

// Len returns the number of stored snapshots.
func (m *Manager) Len() int {
	return len(m.entries)
}

// Cursor returns the current position in the list.
func (m *Manager) Cursor() int {
	return m.cursor
}

// Clear drops every snapshot.
func (m *Manager) Clear() {
	m.entries = nil
	m.cursor = 0
}

// evict drops the oldest entries beyond the limit.
func (m *Manager) evict() bool {
	over := len(m.entries) - m.limit
	if over <= 0 {
		return false
	}
	m.entries = append(m.entries[:0:0], m.entries[over:]...)
	m.cursor -= over
	if m.cursor < 0 {
		m.cursor = 0
	}
	return true
}
