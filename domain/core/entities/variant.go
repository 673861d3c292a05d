package entities

import (
	"canvas-engine/domain/core/valueobjects"
)

// Variant tags the kind of a node. The payload fields that are meaningful depend on it.
type Variant string

const (
	VariantSticky  Variant = "sticky"
	VariantShape   Variant = "shape"
	VariantText    Variant = "text"
	VariantFrame   Variant = "frame"
	VariantComment Variant = "comment"
	VariantImage   Variant = "image"
	VariantSticker Variant = "sticker"
	VariantDoodle  Variant = "doodle"
)

// Variants lists every known variant.
var Variants = []Variant{
	VariantSticky, VariantShape, VariantText, VariantFrame,
	VariantComment, VariantImage, VariantSticker, VariantDoodle,
}

// IsValid reports whether v is a known variant.
func (v Variant) IsValid() bool {
	for _, known := range Variants {
		if v == known {
			return true
		}
	}
	return false
}

// Connectable reports whether nodes of this variant may be edge endpoints.
func (v Variant) Connectable() bool {
	return v != VariantFrame && v != VariantDoodle
}

// ShapeKind is the geometry of a Shape node.
type ShapeKind string

const (
	ShapeSquare      ShapeKind = "square"
	ShapeRoundedRect ShapeKind = "rounded-rect"
	ShapeCircle      ShapeKind = "circle"
	ShapeDiamond     ShapeKind = "diamond"
	ShapeTriangle    ShapeKind = "triangle"
	ShapeHexagon     ShapeKind = "hexagon"
)

// IsValid reports whether k is a known shape kind.
func (k ShapeKind) IsValid() bool {
	switch k {
	case ShapeSquare, ShapeRoundedRect, ShapeCircle, ShapeDiamond, ShapeTriangle, ShapeHexagon:
		return true
	}
	return false
}

// FramePreset fixes the dimensions of a Frame node.
type FramePreset string

const (
	PresetNone     FramePreset = ""
	PresetMobile   FramePreset = "mobile"
	PresetTablet   FramePreset = "tablet"
	PresetDesktop  FramePreset = "desktop"
	PresetA4       FramePreset = "a4"
	PresetLetter   FramePreset = "letter"
	PresetWide     FramePreset = "16:9"
	PresetStandard FramePreset = "4:3"
	PresetSquare   FramePreset = "1:1"
)

var presetSizes = map[FramePreset]valueobjects.Size{
	PresetMobile:   {Width: 390, Height: 844},
	PresetTablet:   {Width: 834, Height: 1194},
	PresetDesktop:  {Width: 1440, Height: 1024},
	PresetA4:       {Width: 595, Height: 842},
	PresetLetter:   {Width: 612, Height: 792},
	PresetWide:     {Width: 800, Height: 450},
	PresetStandard: {Width: 800, Height: 600},
	PresetSquare:   {Width: 600, Height: 600},
}

// Size returns the fixed size of the preset. ok is false for PresetNone and unknown presets.
func (p FramePreset) Size() (valueobjects.Size, bool) {
	s, ok := presetSizes[p]
	return s, ok
}

// IsDevice reports whether the preset renders device chrome (status bar, browser bar).
func (p FramePreset) IsDevice() bool {
	return p == PresetMobile || p == PresetTablet || p == PresetDesktop
}

// IsPaper reports whether the preset is a paper format.
func (p FramePreset) IsPaper() bool {
	return p == PresetA4 || p == PresetLetter
}

// StickyPalette is the fixed set of sticky note background colors.
var StickyPalette = []string{
	"#fff9b1", // yellow
	"#d5f692", // green
	"#a6ccf5", // blue
	"#ffc0e3", // pink
	"#ffcb8f", // orange
	"#d9c5f5", // purple
	"#e6e6e6", // gray
}

// StickerIcons is the icon set available to Sticker nodes.
var StickerIcons = []string{"heart", "star", "thumbs-up", "check", "question", "fire", "smile"}

// RoutingStyle is how an edge is drawn between its endpoints.
type RoutingStyle string

const (
	RoutingBezier     RoutingStyle = "bezier"
	RoutingStraight   RoutingStyle = "straight"
	RoutingStep       RoutingStyle = "step"
	RoutingSmoothStep RoutingStyle = "smoothstep"
)

// IsValid reports whether r is a known routing style.
func (r RoutingStyle) IsValid() bool {
	switch r {
	case RoutingBezier, RoutingStraight, RoutingStep, RoutingSmoothStep:
		return true
	}
	return false
}
