package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"canvas-engine/domain/core/entities"
	"canvas-engine/domain/core/valueobjects"
	pkgerrors "canvas-engine/pkg/errors"
)

// EdgeHandler handles edge-related HTTP requests
type EdgeHandler struct {
	base
}

// NewEdgeHandler creates a new edge handler
func NewEdgeHandler(sessions Sessions, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *EdgeHandler {
	return &EdgeHandler{base: newBase(sessions, errs, logger)}
}

// CreateEdgeRequest represents the request body for creating an edge
type CreateEdgeRequest struct {
	Source    string `json:"source" validate:"required"`
	SourcePin string `json:"sourcePin,omitempty"`
	Target    string `json:"target" validate:"required"`
	TargetPin string `json:"targetPin,omitempty"`
	Routing   string `json:"routing,omitempty" validate:"omitempty,oneof=bezier straight step smoothstep"`
	Label     string `json:"label,omitempty" validate:"max=200"`
}

// CreateEdge handles POST /edges
func (h *EdgeHandler) CreateEdge(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req CreateEdgeRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	edge, err := s.Connect(&entities.Edge{
		Source:    valueobjects.NodeID(req.Source),
		SourcePin: req.SourcePin,
		Target:    valueobjects.NodeID(req.Target),
		TargetPin: req.TargetPin,
		Routing:   entities.RoutingStyle(req.Routing),
		Label:     req.Label,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, edge)
}

// DeleteEdge handles DELETE /edges/{edgeID}
func (h *EdgeHandler) DeleteEdge(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := s.Disconnect(valueobjects.EdgeID(chi.URLParam(r, "edgeID"))); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
