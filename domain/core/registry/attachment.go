package registry

import (
	"canvas-engine/domain/core/entities"
	"canvas-engine/domain/core/valueobjects"
)

// Side names an attachment point.
type Side string

const (
	SideTop    Side = "top"
	SideRight  Side = "right"
	SideBottom Side = "bottom"
	SideLeft   Side = "left"
)

// AttachmentPoint is an edge handle. Offset is relative to the node's top-left corner.
type AttachmentPoint struct {
	Side   Side                  `json:"side"`
	Offset valueobjects.Position `json:"offset"`
}

type anchor struct{ fx, fy float64 }

var boxAnchors = map[Side]anchor{
	SideTop:    {0.5, 0},
	SideRight:  {1, 0.5},
	SideBottom: {0.5, 1},
	SideLeft:   {0, 0.5},
}

// Triangle side handles sit on the slanted edges, halfway up.
var triangleAnchors = map[Side]anchor{
	SideTop:    {0.5, 0},
	SideRight:  {0.75, 0.5},
	SideBottom: {0.5, 1},
	SideLeft:   {0.25, 0.5},
}

var sides = []Side{SideTop, SideRight, SideBottom, SideLeft}

func attachmentPoints(size valueobjects.Size, kind entities.ShapeKind) []AttachmentPoint {
	anchors := boxAnchors
	if kind == entities.ShapeTriangle {
		anchors = triangleAnchors
	}
	out := make([]AttachmentPoint, 0, len(sides))
	for _, s := range sides {
		a := anchors[s]
		out = append(out, AttachmentPoint{
			Side:   s,
			Offset: valueobjects.Position{X: a.fx * size.Width, Y: a.fy * size.Height},
		})
	}
	return out
}
