// Package containment decides frame membership when a node is dropped.
package containment

import (
	"canvas-engine/domain/config"
	"canvas-engine/domain/core/aggregates"
	"canvas-engine/domain/core/entities"
	"canvas-engine/domain/core/valueobjects"

	"go.uber.org/zap"
)

// Outcome describes what Resolve did.
type Outcome string

const (
	Unchanged  Outcome = "unchanged"
	Reparented Outcome = "reparented"
	Deparented Outcome = "deparented"
	// Rejected means a top-level node was dropped where only its own descendants
	// contain the point.
	Rejected Outcome = "rejected"
)

// Result reports the outcome of a drag-end resolution.
type Result struct {
	Outcome   Outcome
	NodeID    valueobjects.NodeID
	OldParent valueobjects.NodeID
	NewParent valueobjects.NodeID
}

// Resolver runs once per drag end.
type Resolver struct {
	tieBreak config.ContainmentTieBreak
	logger   *zap.Logger
}

// NewResolver creates a resolver with the given overlap strategy.
func NewResolver(tieBreak config.ContainmentTieBreak, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tieBreak == "" {
		tieBreak = config.TieBreakFirstMatch
	}
	return &Resolver{tieBreak: tieBreak, logger: logger}
}

// Resolve updates the parent of nodeID from its current absolute position. The node's
// Position must already hold the drop location. Cycles are ignored rather than reported:
// the node stays where it is.
func (r *Resolver) Resolve(doc *aggregates.Document, nodeID valueobjects.NodeID) (Result, error) {
	node, err := doc.Node(nodeID)
	if err != nil {
		return Result{}, err
	}
	result := Result{Outcome: Unchanged, NodeID: nodeID, OldParent: node.ParentID, NewParent: node.ParentID}

	abs, err := doc.AbsolutePosition(nodeID)
	if err != nil {
		return Result{}, err
	}

	frameID, sawDescendant := r.containingFrame(doc, nodeID, abs)
	switch {
	case !frameID.IsZero() && frameID == node.ParentID:
		return result, nil

	case !frameID.IsZero():
		frame, err := doc.FrameBounds(frameID)
		if err != nil {
			return Result{}, err
		}
		rel := abs.Sub(frame.Origin)
		if err := doc.UpdateNode(nodeID, aggregates.NodePatch{ParentID: &frameID, Position: &rel}); err != nil {
			return Result{}, err
		}
		r.logger.Debug("node reparented",
			zap.String("nodeID", nodeID.String()),
			zap.String("frameID", frameID.String()))
		result.Outcome = Reparented
		result.NewParent = frameID
		return result, nil

	// The current parent is not a descendant, so reaching here means the point left it.
	case node.HasParent():
		var none valueobjects.NodeID
		if err := doc.UpdateNode(nodeID, aggregates.NodePatch{ParentID: &none, Position: &abs}); err != nil {
			return Result{}, err
		}
		r.logger.Debug("node deparented", zap.String("nodeID", nodeID.String()))
		result.Outcome = Deparented
		result.NewParent = ""
		return result, nil

	case sawDescendant:
		r.logger.Debug("reparent ignored: target frame is a descendant",
			zap.String("nodeID", nodeID.String()))
		result.Outcome = Rejected
		return result, nil
	}

	return result, nil
}

// containingFrame picks the frame whose bounds contain point. Frames nested inside the
// node itself are skipped; sawDescendant reports whether one of them would have matched.
func (r *Resolver) containingFrame(doc *aggregates.Document, nodeID valueobjects.NodeID, point valueobjects.Position) (valueobjects.NodeID, bool) {
	var (
		best          valueobjects.NodeID
		bestArea      float64
		sawDescendant bool
	)
	for _, candidate := range doc.Nodes() {
		if candidate.Variant != entities.VariantFrame || candidate.ID == nodeID {
			continue
		}
		bounds, err := doc.FrameBounds(candidate.ID)
		if err != nil || !bounds.Contains(point) {
			continue
		}
		if doc.IsDescendant(candidate.ID, nodeID) {
			sawDescendant = true
			continue
		}
		if r.tieBreak == config.TieBreakFirstMatch {
			return candidate.ID, sawDescendant
		}
		if area := bounds.Size.Area(); best.IsZero() || area < bestArea {
			best, bestArea = candidate.ID, area
		}
	}
	return best, sawDescendant
}
