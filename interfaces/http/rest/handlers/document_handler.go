package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"canvas-engine/application/session"
	pkgerrors "canvas-engine/pkg/errors"
)

// DocumentHandler handles session lifecycle, history and sync requests.
type DocumentHandler struct {
	base
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(sessions Sessions, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{base: newBase(sessions, errs, logger)}
}

// CloseRequest is the body of POST /close
type CloseRequest struct {
	// Force closes even when the final save fails, dropping unsaved changes.
	Force bool `json:"force"`
}

// UpdateDocumentRequest is the body of PATCH /
type UpdateDocumentRequest struct {
	Title *string `json:"title,omitempty" validate:"omitempty,max=200"`
	Theme *string `json:"theme,omitempty" validate:"omitempty,oneof=light dark"`
}

// HistoryResponse reports the result of undo or redo.
type HistoryResponse struct {
	Changed bool              `json:"changed"`
	Graph   session.GraphView `json:"graph"`
}

// Open handles POST /open. Opening an already open document returns it unchanged.
func (h *DocumentHandler) Open(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Open(r.Context(), docIDParam(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, s.Graph())
}

// Close handles POST /close
func (h *DocumentHandler) Close(w http.ResponseWriter, r *http.Request) {
	var req CloseRequest
	if r.ContentLength > 0 {
		if err := decode(r, &req); err != nil {
			h.respondError(w, r, err)
			return
		}
	}
	if err := h.sessions.Close(r.Context(), docIDParam(r), req.Force); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetGraph handles GET /
func (h *DocumentHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, s.Graph())
}

// Update handles PATCH / for title and theme.
func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req UpdateDocumentRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if req.Title != nil {
		if err := s.SetTitle(*req.Title); err != nil {
			h.respondError(w, r, err)
			return
		}
	}
	if req.Theme != nil {
		if err := s.SetTheme(*req.Theme); err != nil {
			h.respondError(w, r, err)
			return
		}
	}
	h.respondJSON(w, http.StatusOK, s.Graph())
}

// Undo handles POST /undo
func (h *DocumentHandler) Undo(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, (*session.EditorSession).Undo)
}

// Redo handles POST /redo
func (h *DocumentHandler) Redo(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, (*session.EditorSession).Redo)
}

func (h *DocumentHandler) history(w http.ResponseWriter, r *http.Request, step func(*session.EditorSession) (bool, error)) {
	s, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	changed, err := step(s)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, HistoryResponse{Changed: changed, Graph: s.Graph()})
}

// Key handles POST /keys/{shortcut}
func (h *DocumentHandler) Key(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	changed, err := s.HandleKey(session.Shortcut(chi.URLParam(r, "shortcut")))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, HistoryResponse{Changed: changed, Graph: s.Graph()})
}

// ClearSelection handles DELETE /selection
func (h *DocumentHandler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	s.ClearSelection()
	w.WriteHeader(http.StatusNoContent)
}

// Save handles POST /save and waits for the write to finish.
func (h *DocumentHandler) Save(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := s.Save(r.Context()); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, s.Status())
}

// Blur handles POST /blur, the signal that the editor lost focus.
func (h *DocumentHandler) Blur(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	s.Blur()
	h.respondJSON(w, http.StatusAccepted, s.Status())
}

// Status handles GET /status
func (h *DocumentHandler) Status(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, s.Status())
}
