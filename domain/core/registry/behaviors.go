package registry

import (
	"strings"

	"canvas-engine/domain/core/aggregates"
	"canvas-engine/domain/core/entities"
	"canvas-engine/domain/core/valueobjects"
	pkgerrors "canvas-engine/pkg/errors"
)

var (
	stickySize  = valueobjects.Size{Width: 200, Height: 200}
	shapeSize   = valueobjects.Size{Width: 120, Height: 120}
	commentSize = valueobjects.Size{Width: 240, Height: 80}
	imageSize   = valueobjects.Size{Width: 240, Height: 180}
	stickerSize = valueobjects.Size{Width: 64, Height: 64}
)

const (
	textCharWidth  = 8
	textLineHeight = 24
)

// base carries the defaults shared by most variants: editable label, free colors,
// box attachment points.
type base struct{}

func (base) Label(_ *entities.Node, text string) (aggregates.NodePatch, error) {
	return aggregates.NodePatch{Label: &text}, nil
}

func (base) Color(n *entities.Node, change ColorChange) (aggregates.NodePatch, error) {
	c := mergeColors(n.Payload.Colors, change)
	return aggregates.NodePatch{Colors: &c}, nil
}

func (base) Normalize(*entities.Node) {}

func mergeColors(c entities.Colors, change ColorChange) entities.Colors {
	if change.Fill != "" {
		c.Fill = change.Fill
	}
	if change.Border != nil {
		c.Border = *change.Border
	}
	if change.Text != nil {
		c.Text = *change.Text
	}
	return c
}

func sizeOr(n *entities.Node, fallback valueobjects.Size) valueobjects.Size {
	if n.Size != nil {
		return *n.Size
	}
	return fallback
}

type stickyBehavior struct{ base }

func (stickyBehavior) Variant() entities.Variant { return entities.VariantSticky }

func (stickyBehavior) Color(n *entities.Node, change ColorChange) (aggregates.NodePatch, error) {
	if change.Fill != "" && !inPalette(change.Fill) {
		return aggregates.NodePatch{}, pkgerrors.NewValidationError("sticky fill must come from the palette: " + change.Fill)
	}
	c := mergeColors(n.Payload.Colors, change)
	return aggregates.NodePatch{Colors: &c}, nil
}

func (stickyBehavior) Footprint(*entities.Node) valueobjects.Size { return stickySize }

func (stickyBehavior) AttachmentPoints(n *entities.Node) []AttachmentPoint {
	return attachmentPoints(stickySize, "")
}

func (stickyBehavior) Normalize(n *entities.Node) {
	size := stickySize
	n.Size = &size
	if n.Payload.Colors.Fill != "" && !inPalette(n.Payload.Colors.Fill) {
		n.Payload.Colors.Fill = entities.StickyPalette[0]
	}
}

func inPalette(color string) bool {
	for _, p := range entities.StickyPalette {
		if strings.EqualFold(p, color) {
			return true
		}
	}
	return false
}

type shapeBehavior struct{ base }

func (shapeBehavior) Variant() entities.Variant { return entities.VariantShape }

func (shapeBehavior) Footprint(n *entities.Node) valueobjects.Size { return sizeOr(n, shapeSize) }

func (b shapeBehavior) AttachmentPoints(n *entities.Node) []AttachmentPoint {
	return attachmentPoints(b.Footprint(n), n.Payload.Shape)
}

func (shapeBehavior) Normalize(n *entities.Node) {
	if n.Payload.Shape == "" {
		n.Payload.Shape = entities.ShapeSquare
	}
}

type textBehavior struct{ base }

func (textBehavior) Variant() entities.Variant { return entities.VariantText }

func (textBehavior) Label(_ *entities.Node, text string) (aggregates.NodePatch, error) {
	line := singleLine(text)
	return aggregates.NodePatch{Label: &line}, nil
}

// Text has no fill: the requested fill colors the glyphs.
func (textBehavior) Color(n *entities.Node, change ColorChange) (aggregates.NodePatch, error) {
	c := n.Payload.Colors
	if change.Fill != "" {
		c.Text = change.Fill
	}
	if change.Text != nil {
		c.Text = *change.Text
	}
	c.Fill = ""
	return aggregates.NodePatch{Colors: &c}, nil
}

func (textBehavior) Footprint(n *entities.Node) valueobjects.Size {
	if n.Size != nil {
		return *n.Size
	}
	chars := len([]rune(n.Payload.Label))
	if chars == 0 {
		chars = 1
	}
	return valueobjects.Size{Width: float64(chars * textCharWidth), Height: textLineHeight}
}

func (b textBehavior) AttachmentPoints(n *entities.Node) []AttachmentPoint {
	return attachmentPoints(b.Footprint(n), "")
}

func (textBehavior) Normalize(n *entities.Node) {
	n.Payload.Label = singleLine(n.Payload.Label)
	n.Payload.Colors.Fill = ""
}

type frameBehavior struct{ base }

func (frameBehavior) Variant() entities.Variant { return entities.VariantFrame }

func (frameBehavior) Footprint(n *entities.Node) valueobjects.Size {
	if size, ok := n.Payload.Preset.Size(); ok {
		return size
	}
	return sizeOr(n, valueobjects.Size{})
}

func (frameBehavior) AttachmentPoints(*entities.Node) []AttachmentPoint { return nil }

func (frameBehavior) Normalize(n *entities.Node) {
	if size, ok := n.Payload.Preset.Size(); ok {
		n.Size = &size
	}
}

type commentBehavior struct{ base }

func (commentBehavior) Variant() entities.Variant { return entities.VariantComment }

func (commentBehavior) Footprint(n *entities.Node) valueobjects.Size { return sizeOr(n, commentSize) }

func (b commentBehavior) AttachmentPoints(n *entities.Node) []AttachmentPoint {
	return attachmentPoints(b.Footprint(n), "")
}

type imageBehavior struct{ base }

func (imageBehavior) Variant() entities.Variant { return entities.VariantImage }

func (imageBehavior) Label(*entities.Node, string) (aggregates.NodePatch, error) {
	return aggregates.NodePatch{}, pkgerrors.NewUnsupportedError(string(entities.VariantImage), "label")
}

func (imageBehavior) Color(*entities.Node, ColorChange) (aggregates.NodePatch, error) {
	return aggregates.NodePatch{}, pkgerrors.NewUnsupportedError(string(entities.VariantImage), "color")
}

func (imageBehavior) Footprint(n *entities.Node) valueobjects.Size { return sizeOr(n, imageSize) }

func (b imageBehavior) AttachmentPoints(n *entities.Node) []AttachmentPoint {
	return attachmentPoints(b.Footprint(n), "")
}

func (imageBehavior) Normalize(n *entities.Node) {
	n.Payload.Label = ""
}

type stickerBehavior struct{ base }

func (stickerBehavior) Variant() entities.Variant { return entities.VariantSticker }

func (stickerBehavior) Label(*entities.Node, string) (aggregates.NodePatch, error) {
	return aggregates.NodePatch{}, pkgerrors.NewUnsupportedError(string(entities.VariantSticker), "label")
}

func (stickerBehavior) Color(*entities.Node, ColorChange) (aggregates.NodePatch, error) {
	return aggregates.NodePatch{}, pkgerrors.NewUnsupportedError(string(entities.VariantSticker), "color")
}

func (stickerBehavior) Footprint(*entities.Node) valueobjects.Size { return stickerSize }

func (stickerBehavior) AttachmentPoints(*entities.Node) []AttachmentPoint {
	return attachmentPoints(stickerSize, "")
}

func (stickerBehavior) Normalize(n *entities.Node) {
	size := stickerSize
	n.Size = &size
	n.Payload.Label = ""
	if !IsStickerIcon(n.Payload.Icon) {
		n.Payload.Icon = entities.StickerIcons[0]
	}
}

// IsStickerIcon reports whether icon is in the sticker set.
func IsStickerIcon(icon string) bool {
	for _, known := range entities.StickerIcons {
		if icon == known {
			return true
		}
	}
	return false
}

type doodleBehavior struct{ base }

func (doodleBehavior) Variant() entities.Variant { return entities.VariantDoodle }

func (doodleBehavior) Label(*entities.Node, string) (aggregates.NodePatch, error) {
	return aggregates.NodePatch{}, pkgerrors.NewUnsupportedError(string(entities.VariantDoodle), "label")
}

// A doodle's fill is its ink.
func (doodleBehavior) Color(n *entities.Node, change ColorChange) (aggregates.NodePatch, error) {
	c := n.Payload.Colors
	if change.Fill != "" {
		c.Fill = change.Fill
	}
	return aggregates.NodePatch{Colors: &c}, nil
}

func (doodleBehavior) Footprint(n *entities.Node) valueobjects.Size { return sizeOr(n, valueobjects.Size{}) }

func (doodleBehavior) AttachmentPoints(*entities.Node) []AttachmentPoint { return nil }
