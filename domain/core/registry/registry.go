// Package registry binds lifecycle behavior to node variants.
//
// Nodes are plain data. Everything a node can do (rename, recolor, delete, copy) is
// looked up here by variant at the point of use, so a node restored from history or
// loaded from the store needs no rebinding beyond Normalize.
package registry

import (
	"strings"

	"canvas-engine/domain/core/aggregates"
	"canvas-engine/domain/core/entities"
	"canvas-engine/domain/core/valueobjects"
	pkgerrors "canvas-engine/pkg/errors"
	"canvas-engine/pkg/utils"
)

// ColorChange is the argument of OnChangeColor. Border and Text are optional.
type ColorChange struct {
	Fill   string
	Border *string
	Text   *string
}

// Behavior is the per-variant lifecycle contract.
type Behavior interface {
	Variant() entities.Variant
	// Label returns the patch that sets the node's label, or an error if the variant
	// has no editable text.
	Label(n *entities.Node, text string) (aggregates.NodePatch, error)
	// Color returns the patch that applies a color change.
	Color(n *entities.Node, change ColorChange) (aggregates.NodePatch, error)
	// Footprint is the node's size on the canvas, derived from content when the node
	// has no explicit size.
	Footprint(n *entities.Node) valueobjects.Size
	// AttachmentPoints lists the edge handles of a connectable node.
	AttachmentPoints(n *entities.Node) []AttachmentPoint
	// Normalize re-applies variant invariants (fixed footprints, preset sizes) to n.
	Normalize(n *entities.Node)
}

// Registry is the dispatch table from variant to behavior.
type Registry struct {
	behaviors map[entities.Variant]Behavior
	theme     Theme
}

// New returns a registry with the built-in behaviors for every variant.
func New(theme Theme) *Registry {
	r := &Registry{
		behaviors: make(map[entities.Variant]Behavior),
		theme:     theme,
	}
	for _, b := range []Behavior{
		stickyBehavior{},
		shapeBehavior{},
		textBehavior{},
		frameBehavior{},
		commentBehavior{},
		imageBehavior{},
		stickerBehavior{},
		doodleBehavior{},
	} {
		r.Register(b)
	}
	return r
}

// Register installs or replaces the behavior for b.Variant().
func (r *Registry) Register(b Behavior) {
	r.behaviors[b.Variant()] = b
}

// For returns the behavior bound to a variant.
func (r *Registry) For(v entities.Variant) (Behavior, error) {
	b, ok := r.behaviors[v]
	if !ok {
		return nil, pkgerrors.NewValidationError("no behavior registered for variant " + string(v))
	}
	return b, nil
}

// Theme returns the active theme.
func (r *Registry) Theme() Theme {
	return r.theme
}

// SetTheme switches the theme. Default colors are resolved at render time, so no
// node data changes.
func (r *Registry) SetTheme(theme Theme) {
	r.theme = theme
}

// OnChangeLabel sets a node's label according to its variant.
func (r *Registry) OnChangeLabel(doc *aggregates.Document, id valueobjects.NodeID, text string) error {
	node, b, err := r.lookup(doc, id)
	if err != nil {
		return err
	}
	patch, err := b.Label(node, text)
	if err != nil {
		return err
	}
	return doc.UpdateNode(id, patch)
}

// OnChangeColor recolors a node according to its variant.
func (r *Registry) OnChangeColor(doc *aggregates.Document, id valueobjects.NodeID, change ColorChange) error {
	node, b, err := r.lookup(doc, id)
	if err != nil {
		return err
	}
	if err := validateColors(change); err != nil {
		return err
	}
	patch, err := b.Color(node, change)
	if err != nil {
		return err
	}
	return doc.UpdateNode(id, patch)
}

// OnDelete removes a node. Frames detach their children unless opts.Cascade is set.
func (r *Registry) OnDelete(doc *aggregates.Document, id valueobjects.NodeID, opts aggregates.RemoveOptions) (*aggregates.RemovalResult, error) {
	if _, _, err := r.lookup(doc, id); err != nil {
		return nil, err
	}
	return doc.RemoveNode(id, opts)
}

// OnCopy duplicates a node and normalizes the copy.
func (r *Registry) OnCopy(doc *aggregates.Document, id valueobjects.NodeID) (*entities.Node, error) {
	if _, _, err := r.lookup(doc, id); err != nil {
		return nil, err
	}
	return doc.DuplicateNode(id)
}

// Prepare normalizes a node before it is inserted into a document.
func (r *Registry) Prepare(n *entities.Node) error {
	b, err := r.For(n.Variant)
	if err != nil {
		return err
	}
	b.Normalize(n)
	return nil
}

// NormalizeDocument re-applies variant invariants to every node, e.g. after a restore
// from history or a load from the store.
func (r *Registry) NormalizeDocument(doc *aggregates.Document) error {
	for _, n := range doc.Nodes() {
		b, err := r.For(n.Variant)
		if err != nil {
			return err
		}
		normalized := n.Clone()
		b.Normalize(normalized)
		patch := aggregates.NodePatch{}
		changed := false
		if normalized.Size != nil && (n.Size == nil || *n.Size != *normalized.Size) {
			patch.Size = normalized.Size
			changed = true
		}
		if normalized.Payload.Colors != n.Payload.Colors {
			patch.Colors = &normalized.Payload.Colors
			changed = true
		}
		if normalized.Payload.Label != n.Payload.Label {
			patch.Label = &normalized.Payload.Label
			changed = true
		}
		if normalized.Payload.Shape != n.Payload.Shape {
			patch.Shape = &normalized.Payload.Shape
			changed = true
		}
		if normalized.Payload.Icon != n.Payload.Icon {
			patch.Icon = &normalized.Payload.Icon
			changed = true
		}
		if changed {
			if err := doc.UpdateNode(n.ID, patch); err != nil {
				return err
			}
		}
	}
	return nil
}

// Footprint returns the canvas size of a node.
func (r *Registry) Footprint(n *entities.Node) valueobjects.Size {
	b, err := r.For(n.Variant)
	if err != nil {
		if n.Size != nil {
			return *n.Size
		}
		return valueobjects.Size{}
	}
	return b.Footprint(n)
}

// AttachmentPoints returns the edge handles of a node, empty for unconnectable variants.
func (r *Registry) AttachmentPoints(n *entities.Node) []AttachmentPoint {
	b, err := r.For(n.Variant)
	if err != nil {
		return nil
	}
	return b.AttachmentPoints(n)
}

// ResolvedColors fills unset colors with the theme defaults for the node's variant.
func (r *Registry) ResolvedColors(n *entities.Node) entities.Colors {
	defaults := r.theme.Defaults(n.Variant)
	c := n.Payload.Colors
	if c.Fill == "" {
		c.Fill = defaults.Fill
	}
	if c.Border == "" {
		c.Border = defaults.Border
	}
	if c.Text == "" {
		c.Text = defaults.Text
	}
	return c
}

func (r *Registry) lookup(doc *aggregates.Document, id valueobjects.NodeID) (*entities.Node, Behavior, error) {
	node, err := doc.Node(id)
	if err != nil {
		return nil, nil, err
	}
	b, err := r.For(node.Variant)
	if err != nil {
		return nil, nil, err
	}
	return node, b, nil
}

func validateColors(change ColorChange) error {
	if change.Fill != "" && !isColor(change.Fill) {
		return pkgerrors.NewValidationError("invalid fill color: " + change.Fill)
	}
	if change.Border != nil && *change.Border != "" && !isColor(*change.Border) {
		return pkgerrors.NewValidationError("invalid border color: " + *change.Border)
	}
	if change.Text != nil && *change.Text != "" && !isColor(*change.Text) {
		return pkgerrors.NewValidationError("invalid text color: " + *change.Text)
	}
	return nil
}

func isColor(s string) bool {
	return s == "transparent" || utils.IsHexColor(s)
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "\n", " ")), " ")
}
