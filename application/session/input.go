package session

import (
	"canvas-engine/domain/core/aggregates"
	"canvas-engine/domain/core/entities"
	"canvas-engine/domain/core/freehand"
	"canvas-engine/domain/core/valueobjects"
	pkgerrors "canvas-engine/pkg/errors"
)

// Shortcut is a keyboard command.
type Shortcut string

const (
	ShortcutUndo      Shortcut = "undo"
	ShortcutRedo      Shortcut = "redo"
	ShortcutSelectAll Shortcut = "select-all"
	ShortcutDelete    Shortcut = "delete"
	ShortcutEscape    Shortcut = "escape"
)

// PointerResult reports what a pointer event did.
type PointerResult struct {
	State freehand.State `json:"state"`
	// Created is the doodle inserted by a finished stroke.
	Created *entities.Node `json:"created,omitempty"`
	// Erased is the node removed by the eraser.
	Erased valueobjects.NodeID `json:"erased,omitempty"`
}

// SetTool switches the canvas tool. An in-progress stroke is abandoned.
func (s *EditorSession) SetTool(tool freehand.Tool, mode freehand.PenMode) error {
	switch tool {
	case freehand.ToolSelect, freehand.ToolPen, freehand.ToolEraser:
	default:
		return pkgerrors.NewValidationError("unknown tool: " + string(tool))
	}
	switch mode {
	case "", freehand.ModePen, freehand.ModeHighlighter, freehand.ModeShapeAssist:
	default:
		return pkgerrors.NewValidationError("unknown pen mode: " + string(mode))
	}
	if mode == "" {
		mode = freehand.ModePen
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pen.SetTool(tool, mode)
	return nil
}

// SetPenColor sets the fill of future doodles.
func (s *EditorSession) SetPenColor(color string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pen.SetColor(color)
}

// SetViewport updates pan and zoom.
func (s *EditorSession) SetViewport(v freehand.Viewport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pen.SetViewport(v)
}

// PointerDown starts a stroke, or with the eraser removes the node under the pointer.
func (s *EditorSession) PointerDown(ev freehand.Pointer) (PointerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return PointerResult{}, pkgerrors.NewConflictError("session is closed")
	}

	if s.pen.Tool() == freehand.ToolEraser {
		if ev.Button != 0 || ev.OverChrome {
			return PointerResult{State: s.pen.State()}, nil
		}
		id, ok := s.hitTestLocked(s.pen.CanvasPoint(ev))
		if !ok {
			return PointerResult{State: s.pen.State()}, nil
		}
		if _, err := s.deleteNodesLocked([]valueobjects.NodeID{id}, aggregates.RemoveOptions{}); err != nil {
			return PointerResult{}, err
		}
		return PointerResult{State: s.pen.State(), Erased: id}, nil
	}

	s.pen.PointerDown(ev)
	return PointerResult{State: s.pen.State()}, nil
}

// PointerMove extends the stroke in progress.
func (s *EditorSession) PointerMove(ev freehand.Pointer) PointerResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pen.PointerMove(ev)
	return PointerResult{State: s.pen.State()}
}

// PointerUp finishes the stroke and inserts the resulting doodle, if any.
func (s *EditorSession) PointerUp(ev freehand.Pointer) (PointerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doodle := s.pen.PointerUp(ev)
	if doodle == nil {
		return PointerResult{State: s.pen.State()}, nil
	}
	err := s.mutate(false, func() error {
		if err := s.registry.Prepare(doodle); err != nil {
			return err
		}
		return s.doc.AddNode(doodle)
	})
	if err != nil {
		return PointerResult{}, err
	}
	return PointerResult{State: s.pen.State(), Created: doodle.Clone()}, nil
}

// PointerLeave abandons the stroke in progress.
func (s *EditorSession) PointerLeave() PointerResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pen.PointerLeave()
	return PointerResult{State: s.pen.State()}
}

// hitTestLocked returns the topmost node whose footprint contains p. Later nodes
// paint over earlier ones.
func (s *EditorSession) hitTestLocked(p valueobjects.Position) (valueobjects.NodeID, bool) {
	ids := s.doc.NodeIDs()
	for i := len(ids) - 1; i >= 0; i-- {
		n, err := s.doc.Node(ids[i])
		if err != nil {
			continue
		}
		origin, err := s.doc.AbsolutePosition(n.ID)
		if err != nil {
			continue
		}
		rect := valueobjects.Rect{Origin: origin, Size: s.registry.Footprint(n)}
		if rect.Contains(p) {
			return n.ID, true
		}
	}
	return "", false
}

// HandleKey runs a keyboard shortcut. It reports whether the graph changed.
func (s *EditorSession) HandleKey(key Shortcut) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch key {
	case ShortcutUndo:
		return s.undoLocked()
	case ShortcutRedo:
		return s.redoLocked()
	case ShortcutSelectAll:
		s.doc.SelectAll()
		return false, nil
	case ShortcutDelete:
		selected := s.doc.SelectedIDs()
		if len(selected) == 0 {
			return false, nil
		}
		if _, err := s.deleteNodesLocked(selected, aggregates.RemoveOptions{}); err != nil {
			return false, err
		}
		return true, nil
	case ShortcutEscape:
		s.pen.Cancel()
		s.doc.ClearSelection()
		return false, nil
	default:
		return false, pkgerrors.NewValidationError("unknown shortcut: " + string(key))
	}
}
