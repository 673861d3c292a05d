package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"canvas-engine/application/session"
	"canvas-engine/domain/core/freehand"
	pkgerrors "canvas-engine/pkg/errors"
)

// Pointer phases accepted by POST /pointer/{phase}.
const (
	PhaseDown  = "down"
	PhaseMove  = "move"
	PhaseUp    = "up"
	PhaseLeave = "leave"
)

// InputHandler forwards pointer, tool and viewport input to the freehand tools.
type InputHandler struct {
	base
}

// NewInputHandler creates a new input handler
func NewInputHandler(sessions Sessions, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *InputHandler {
	return &InputHandler{base: newBase(sessions, errs, logger)}
}

// ToolRequest is the body of PUT /tool
type ToolRequest struct {
	Tool  string `json:"tool" validate:"required,oneof=select pen eraser"`
	Mode  string `json:"mode,omitempty" validate:"omitempty,oneof=pen highlighter shape-assist"`
	Color string `json:"color,omitempty" validate:"omitempty,hexcolor"`
}

// ViewportRequest is the body of PUT /viewport
type ViewportRequest struct {
	PanX float64 `json:"panX"`
	PanY float64 `json:"panY"`
	Zoom float64 `json:"zoom" validate:"gt=0"`
}

// Pointer handles POST /pointer/{phase}
func (h *InputHandler) Pointer(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var ev freehand.Pointer
	phase := chi.URLParam(r, "phase")
	if phase != PhaseLeave {
		if err := decode(r, &ev); err != nil {
			h.respondError(w, r, err)
			return
		}
	}

	var result session.PointerResult
	switch phase {
	case PhaseDown:
		result, err = s.PointerDown(ev)
	case PhaseMove:
		result = s.PointerMove(ev)
	case PhaseUp:
		result, err = s.PointerUp(ev)
	case PhaseLeave:
		result = s.PointerLeave()
	default:
		err = pkgerrors.NewValidationError("unknown pointer phase: " + phase)
	}
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	status := http.StatusOK
	if result.Created != nil {
		status = http.StatusCreated
	}
	h.respondJSON(w, status, result)
}

// SetTool handles PUT /tool
func (h *InputHandler) SetTool(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req ToolRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := s.SetTool(freehand.Tool(req.Tool), freehand.PenMode(req.Mode)); err != nil {
		h.respondError(w, r, err)
		return
	}
	if req.Color != "" {
		s.SetPenColor(req.Color)
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetViewport handles PUT /viewport
func (h *InputHandler) SetViewport(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req ViewportRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	s.SetViewport(freehand.Viewport{PanX: req.PanX, PanY: req.PanY, Zoom: req.Zoom})
	w.WriteHeader(http.StatusNoContent)
}
