package entities

import (
	"canvas-engine/domain/core/valueobjects"
	pkgerrors "canvas-engine/pkg/errors"
)

// Edge is a directed connector between two nodes, optionally between named
// attachment points (pins) on each side.
type Edge struct {
	ID        valueobjects.EdgeID `json:"id"`
	Source    valueobjects.NodeID `json:"source"`
	SourcePin string              `json:"sourcePin,omitempty"`
	Target    valueobjects.NodeID `json:"target"`
	TargetPin string              `json:"targetPin,omitempty"`
	Routing   RoutingStyle        `json:"routing,omitempty"`
	Label     string              `json:"label,omitempty"`
}

// NewEdge creates an edge with a fresh id.
func NewEdge(source, target valueobjects.NodeID) *Edge {
	return &Edge{
		ID:      valueobjects.NewEdgeID(),
		Source:  source,
		Target:  target,
		Routing: RoutingBezier,
	}
}

// Validate checks the edge's own invariants.
func (e *Edge) Validate() error {
	if e.ID.IsZero() {
		return pkgerrors.NewValidationError("edge id cannot be empty")
	}
	if e.Source.IsZero() || e.Target.IsZero() {
		return pkgerrors.NewValidationError("edge endpoints cannot be empty")
	}
	if e.Routing != "" && !e.Routing.IsValid() {
		return pkgerrors.NewValidationError("unknown routing style: " + string(e.Routing))
	}
	return nil
}

// Touches reports whether the edge has id as one of its endpoints.
func (e *Edge) Touches(id valueobjects.NodeID) bool {
	return e.Source == id || e.Target == id
}

// Clone returns a copy of the edge.
func (e *Edge) Clone() *Edge {
	out := *e
	return &out
}
