package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"canvas-engine/application/session"
	"canvas-engine/domain/core/aggregates"
	"canvas-engine/domain/core/entities"
	"canvas-engine/domain/core/registry"
	"canvas-engine/domain/core/valueobjects"
	pkgerrors "canvas-engine/pkg/errors"
)

// NodeHandler handles node-related HTTP requests
type NodeHandler struct {
	base
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(sessions Sessions, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *NodeHandler {
	return &NodeHandler{base: newBase(sessions, errs, logger)}
}

// CreateNodeRequest represents the request body for creating a node
type CreateNodeRequest struct {
	// ID is optional; a fresh id is assigned when empty.
	ID       string           `json:"id,omitempty" validate:"omitempty,max=64"`
	Variant  string           `json:"variant" validate:"required,oneof=sticky shape text frame comment image sticker doodle"`
	X        float64          `json:"x"`
	Y        float64          `json:"y"`
	Width    *float64         `json:"width,omitempty" validate:"omitempty,gte=0"`
	Height   *float64         `json:"height,omitempty" validate:"omitempty,gte=0"`
	ParentID string           `json:"parentId,omitempty"`
	Payload  entities.Payload `json:"payload"`
}

// UpdateNodeRequest represents a partial node update. Absent fields are unchanged.
type UpdateNodeRequest struct {
	X        *float64         `json:"x,omitempty"`
	Y        *float64         `json:"y,omitempty"`
	Width    *float64         `json:"width,omitempty" validate:"omitempty,gte=0"`
	Height   *float64         `json:"height,omitempty" validate:"omitempty,gte=0"`
	ParentID *string          `json:"parentId,omitempty"`
	Shape    *string          `json:"shape,omitempty" validate:"omitempty,oneof=square rounded-rect circle diamond triangle hexagon"`
	Preset   *string          `json:"preset,omitempty"`
	Opacity  *float64         `json:"opacity,omitempty" validate:"omitempty,gte=0,lte=1"`
	Icon     *string          `json:"icon,omitempty"`
	Author   *string          `json:"author,omitempty"`
	Role     *string          `json:"role,omitempty" validate:"omitempty,oneof=event function pure"`
	Colors   *entities.Colors `json:"colors,omitempty"`
}

// LabelRequest is the body of POST /nodes/{nodeID}/label
type LabelRequest struct {
	Label string `json:"label" validate:"max=10000"`
}

// ColorRequest is the body of POST /nodes/{nodeID}/color
type ColorRequest struct {
	Fill   string  `json:"fill" validate:"required,hexcolor"`
	Border *string `json:"border,omitempty" validate:"omitempty,hexcolor"`
	Text   *string `json:"text,omitempty" validate:"omitempty,hexcolor"`
}

// PositionRequest is the body of POST /nodes/{nodeID}/drag-end
type PositionRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SelectRequest is the body of POST /nodes/{nodeID}/select
type SelectRequest struct {
	Selected bool `json:"selected"`
}

// DragEndResponse reports the containment decision of a drop.
type DragEndResponse struct {
	NodeID    string `json:"nodeId"`
	Outcome   string `json:"outcome"`
	OldParent string `json:"oldParent,omitempty"`
	NewParent string `json:"newParent,omitempty"`
}

// DeleteNodeResponse lists everything a delete touched.
type DeleteNodeResponse struct {
	RemovedNodes  []valueobjects.NodeID `json:"removedNodes"`
	RemovedEdges  []valueobjects.EdgeID `json:"removedEdges"`
	DetachedNodes []valueobjects.NodeID `json:"detachedNodes"`
}

func nodeIDParam(r *http.Request) valueobjects.NodeID {
	return valueobjects.NodeID(chi.URLParam(r, "nodeID"))
}

// CreateNode handles POST /nodes
func (h *NodeHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req CreateNodeRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	node := &entities.Node{
		ID:       valueobjects.NodeID(req.ID),
		Variant:  entities.Variant(req.Variant),
		Position: valueobjects.Position{X: req.X, Y: req.Y},
		ParentID: valueobjects.NodeID(req.ParentID),
		Payload:  req.Payload,
	}
	if req.Width != nil && req.Height != nil {
		node.Size = &valueobjects.Size{Width: *req.Width, Height: *req.Height}
	}

	created, err := s.AddNode(node)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.logger.Debug("node created",
		zap.String("documentID", s.ID().String()),
		zap.String("nodeID", created.ID.String()),
		zap.String("variant", string(created.Variant)))
	h.respondJSON(w, http.StatusCreated, created)
}

// UpdateNode handles PATCH /nodes/{nodeID}
func (h *NodeHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req UpdateNodeRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	patch, err := req.toPatch(s.Graph, nodeIDParam(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	updated, err := s.UpdateNode(nodeIDParam(r), patch)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, updated)
}

// toPatch converts the request. A lone x or y is completed from the node's current
// position; likewise for width and height.
func (req UpdateNodeRequest) toPatch(current func() session.GraphView, id valueobjects.NodeID) (aggregates.NodePatch, error) {
	var patch aggregates.NodePatch

	if req.X != nil || req.Y != nil || (req.Width == nil) != (req.Height == nil) {
		node := findNode(current(), id)
		if node == nil {
			return patch, pkgerrors.NewNotFoundError("node " + id.String())
		}
		if req.X != nil || req.Y != nil {
			pos := node.Position
			if req.X != nil {
				pos.X = *req.X
			}
			if req.Y != nil {
				pos.Y = *req.Y
			}
			patch.Position = &pos
		}
		if (req.Width == nil) != (req.Height == nil) {
			var size valueobjects.Size
			if node.Size != nil {
				size = *node.Size
			}
			if req.Width != nil {
				size.Width = *req.Width
			}
			if req.Height != nil {
				size.Height = *req.Height
			}
			patch.Size = &size
		}
	}
	if req.Width != nil && req.Height != nil {
		patch.Size = &valueobjects.Size{Width: *req.Width, Height: *req.Height}
	}
	if req.ParentID != nil {
		parent := valueobjects.NodeID(*req.ParentID)
		patch.ParentID = &parent
	}
	if req.Shape != nil {
		shape := entities.ShapeKind(*req.Shape)
		patch.Shape = &shape
	}
	if req.Preset != nil {
		preset := entities.FramePreset(*req.Preset)
		patch.Preset = &preset
	}
	if req.Role != nil {
		role := entities.ExportRole(*req.Role)
		patch.Role = &role
	}
	patch.Opacity = req.Opacity
	patch.Icon = req.Icon
	patch.Author = req.Author
	patch.Colors = req.Colors
	return patch, nil
}

func findNode(view session.GraphView, id valueobjects.NodeID) *entities.Node {
	for _, n := range view.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// ChangeLabel handles POST /nodes/{nodeID}/label
func (h *NodeHandler) ChangeLabel(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req LabelRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	node, err := s.ChangeLabel(nodeIDParam(r), req.Label)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, node)
}

// ChangeColor handles POST /nodes/{nodeID}/color
func (h *NodeHandler) ChangeColor(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req ColorRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	node, err := s.ChangeColor(nodeIDParam(r), registry.ColorChange{Fill: req.Fill, Border: req.Border, Text: req.Text})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, node)
}

// DeleteNode handles DELETE /nodes/{nodeID}. With ?cascade=true a frame's
// descendants are deleted instead of detached.
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var opts aggregates.RemoveOptions
	if raw := r.URL.Query().Get("cascade"); raw != "" {
		cascade, err := strconv.ParseBool(raw)
		if err != nil {
			h.respondError(w, r, pkgerrors.NewValidationError("cascade must be a boolean"))
			return
		}
		opts.Cascade = cascade
	}
	result, err := s.DeleteNodesWith(opts, nodeIDParam(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, DeleteNodeResponse{
		RemovedNodes:  result.RemovedNodes,
		RemovedEdges:  result.RemovedEdges,
		DetachedNodes: result.DetachedNodes,
	})
}

// Duplicate handles POST /nodes/{nodeID}/duplicate
func (h *NodeHandler) Duplicate(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	copied, err := s.Duplicate(nodeIDParam(r))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, copied)
}

// DragEnd handles POST /nodes/{nodeID}/drag-end
func (h *NodeHandler) DragEnd(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req PositionRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	result, err := s.DragEnd(nodeIDParam(r), valueobjects.Position{X: req.X, Y: req.Y})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, DragEndResponse{
		NodeID:    result.NodeID.String(),
		Outcome:   string(result.Outcome),
		OldParent: result.OldParent.String(),
		NewParent: result.NewParent.String(),
	})
}

// Select handles POST /nodes/{nodeID}/select
func (h *NodeHandler) Select(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req SelectRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := s.Select(nodeIDParam(r), req.Selected); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
