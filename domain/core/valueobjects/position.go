package valueobjects

import (
	"math"

	pkgerrors "canvas-engine/pkg/errors"
)

// Position is a point in canvas space. For box-like nodes it is the top-left corner.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPosition creates a position with validation
func NewPosition(x, y float64) (Position, error) {
	if !isValidCoordinate(x) || !isValidCoordinate(y) {
		return Position{}, pkgerrors.NewValidationError("invalid coordinates: must be finite numbers")
	}
	return Position{X: x, Y: y}, nil
}

// Add returns p translated by other.
func (p Position) Add(other Position) Position {
	return Position{X: p.X + other.X, Y: p.Y + other.Y}
}

// Sub returns p expressed relative to origin.
func (p Position) Sub(origin Position) Position {
	return Position{X: p.X - origin.X, Y: p.Y - origin.Y}
}

// Translate moves the position by the given offsets
func (p Position) Translate(dx, dy float64) Position {
	return Position{X: p.X + dx, Y: p.Y + dy}
}

// DistanceTo calculates the Euclidean distance to another position
func (p Position) DistanceTo(other Position) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

// Midpoint calculates the midpoint between two positions
func (p Position) Midpoint(other Position) Position {
	return Position{X: (p.X + other.X) / 2, Y: (p.Y + other.Y) / 2}
}

// Equals checks if two positions are equal within floating point tolerance
func (p Position) Equals(other Position) bool {
	const epsilon = 1e-9
	return math.Abs(p.X-other.X) < epsilon && math.Abs(p.Y-other.Y) < epsilon
}

// IsValid reports whether both coordinates are finite.
func (p Position) IsValid() bool {
	return isValidCoordinate(p.X) && isValidCoordinate(p.Y)
}

// Size is a width/height pair.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns width times height.
func (s Size) Area() float64 {
	return s.Width * s.Height
}

// IsValid reports whether the size is finite and non-negative.
func (s Size) IsValid() bool {
	return isValidCoordinate(s.Width) && isValidCoordinate(s.Height) && s.Width >= 0 && s.Height >= 0
}

// Rect is an axis-aligned rectangle in canvas space.
type Rect struct {
	Origin Position `json:"origin"`
	Size   Size     `json:"size"`
}

// Contains reports whether p lies inside the rectangle, edges included.
func (r Rect) Contains(p Position) bool {
	return p.X >= r.Origin.X && p.X <= r.Origin.X+r.Size.Width &&
		p.Y >= r.Origin.Y && p.Y <= r.Origin.Y+r.Size.Height
}

// Intersects reports whether two rectangles overlap.
func (r Rect) Intersects(other Rect) bool {
	return r.Origin.X <= other.Origin.X+other.Size.Width &&
		other.Origin.X <= r.Origin.X+r.Size.Width &&
		r.Origin.Y <= other.Origin.Y+other.Size.Height &&
		other.Origin.Y <= r.Origin.Y+r.Size.Height
}

// isValidCoordinate checks if a coordinate is a valid finite number
func isValidCoordinate(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
