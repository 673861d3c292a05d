package entities

import (
	"canvas-engine/domain/core/valueobjects"
	pkgerrors "canvas-engine/pkg/errors"
)

// Colors holds the color attributes of a node. Empty strings mean "use the variant default".
type Colors struct {
	Fill   string `json:"fill,omitempty"`
	Border string `json:"border,omitempty"`
	Text   string `json:"text,omitempty"`
}

// Payload carries the variant-specific attributes of a node. Only the fields relevant
// to the node's Variant are populated; the rest stay at their zero value.
type Payload struct {
	Label   string      `json:"label,omitempty"`
	Colors  Colors      `json:"colors,omitempty"`
	Shape   ShapeKind   `json:"shape,omitempty"`
	Preset  FramePreset `json:"preset,omitempty"`
	Path    string      `json:"path,omitempty"`
	Opacity float64     `json:"opacity,omitempty"`
	Image   string      `json:"image,omitempty"`
	Icon    string      `json:"icon,omitempty"`
	Author  string      `json:"author,omitempty"`

	// Export hints consumed by the interchange serializer.
	Role ExportRole `json:"role,omitempty"`
	Pins []PinSpec  `json:"pins,omitempty"`
}

// Clone returns a deep copy of the payload.
func (p Payload) Clone() Payload {
	out := p
	if p.Pins != nil {
		out.Pins = make([]PinSpec, len(p.Pins))
		copy(out.Pins, p.Pins)
	}
	return out
}

// Node is a single placeable unit on the canvas. Nodes are plain data: lifecycle
// behavior lives in the registry and is looked up by Variant.
type Node struct {
	ID       valueobjects.NodeID   `json:"id"`
	Variant  Variant               `json:"variant"`
	Position valueobjects.Position `json:"position"`
	// Size is required for frames and doodles and optional otherwise.
	Size *valueobjects.Size `json:"size,omitempty"`
	// ParentID, when set, references a frame and Position is relative to its origin.
	ParentID valueobjects.NodeID `json:"parentId,omitempty"`
	Payload  Payload             `json:"payload"`

	// Selected is UI state only.
	Selected bool `json:"-"`
}

// NewNode creates a node of the given variant with a fresh id.
func NewNode(variant Variant, position valueobjects.Position, payload Payload) (*Node, error) {
	node := &Node{
		ID:       valueobjects.NewNodeID(),
		Variant:  variant,
		Position: position,
		Payload:  payload,
	}
	if err := node.Validate(); err != nil {
		return nil, err
	}
	return node, nil
}

// Validate checks the node's own invariants. Cross-node invariants (parent exists,
// no cycles) are enforced by the document.
func (n *Node) Validate() error {
	if n.ID.IsZero() {
		return pkgerrors.NewValidationError("node id cannot be empty")
	}
	if !n.Variant.IsValid() {
		return pkgerrors.NewValidationError("unknown node variant: " + string(n.Variant))
	}
	if !n.Position.IsValid() {
		return pkgerrors.NewValidationError("invalid coordinates: must be finite numbers")
	}
	if n.Size != nil && !n.Size.IsValid() {
		return pkgerrors.NewValidationError("invalid size: must be finite and non-negative")
	}
	if n.ParentID == n.ID {
		return pkgerrors.NewValidationError("node cannot be its own parent")
	}

	switch n.Variant {
	case VariantFrame, VariantDoodle:
		if n.Size == nil {
			return pkgerrors.NewValidationError(string(n.Variant) + " nodes require a size")
		}
	case VariantShape:
		if n.Payload.Shape != "" && !n.Payload.Shape.IsValid() {
			return pkgerrors.NewValidationError("unknown shape kind: " + string(n.Payload.Shape))
		}
	}
	return nil
}

// HasParent reports whether the node is nested in a frame.
func (n *Node) HasParent() bool {
	return !n.ParentID.IsZero()
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	out := *n
	if n.Size != nil {
		size := *n.Size
		out.Size = &size
	}
	out.Payload = n.Payload.Clone()
	return &out
}
