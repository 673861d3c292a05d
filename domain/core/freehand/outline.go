package freehand

import (
	"math"
	"strconv"
	"strings"

	"canvas-engine/domain/core/valueobjects"
)

const (
	defaultPressure = 0.5
	capSegments     = 6
	// Radius never drops below this share of the half size, so tapered ends stay visible.
	minRadiusRatio = 0.1
)

// OutlineOptions parameterizes the variable-width outline.
type OutlineOptions struct {
	Size     float64
	Thinning float64
}

func (o OutlineOptions) radius(pressure, taper float64) float64 {
	if pressure <= 0 {
		pressure = defaultPressure
	}
	r := o.Size * (0.5 - o.Thinning*(0.5-pressure))
	if o.Thinning > 0 {
		r *= taper
	}
	return math.Max(r, o.Size*0.5*minRadiusRatio)
}

// Outline returns the closed polygon around the stroke centerline: the left edge in
// drawing order, a round cap at the end, the right edge reversed, and a round cap at
// the start. Thinning narrows the stroke toward both ends.
func Outline(samples []Sample, opts OutlineOptions) []valueobjects.Position {
	n := len(samples)
	if n == 0 || opts.Size <= 0 {
		return nil
	}

	// Arc length from the start, used to taper both ends over one pen size.
	dist := make([]float64, n)
	for i := 1; i < n; i++ {
		dist[i] = dist[i-1] + samples[i].point().DistanceTo(samples[i-1].point())
	}
	total := dist[n-1]
	taperLen := opts.Size * 2

	left := make([]valueobjects.Position, n)
	right := make([]valueobjects.Position, n)
	radii := make([]float64, n)
	dirX, dirY := 1.0, 0.0
	for i, s := range samples {
		prev, next := samples[max(i-1, 0)], samples[min(i+1, n-1)]
		if dx, dy := next.X-prev.X, next.Y-prev.Y; dx != 0 || dy != 0 {
			l := math.Hypot(dx, dy)
			dirX, dirY = dx/l, dy/l
		}
		taper := 1.0
		if taperLen > 0 {
			taper = math.Min(1, math.Min(dist[i], total-dist[i])/taperLen)
		}
		r := opts.radius(s.Pressure, taper)
		radii[i] = r
		nx, ny := -dirY, dirX
		left[i] = valueobjects.Position{X: s.X + nx*r, Y: s.Y + ny*r}
		right[i] = valueobjects.Position{X: s.X - nx*r, Y: s.Y - ny*r}
	}

	out := make([]valueobjects.Position, 0, 2*n+2*capSegments)
	out = append(out, left...)
	out = append(out, arc(samples[n-1].point(), left[n-1], radii[n-1])...)
	for i := n - 1; i >= 0; i-- {
		out = append(out, right[i])
	}
	out = append(out, arc(samples[0].point(), right[0], radii[0])...)
	return out
}

// arc returns the interior points of a half circle around center starting at from,
// turning clockwise in screen coordinates.
func arc(center, from valueobjects.Position, r float64) []valueobjects.Position {
	start := math.Atan2(from.Y-center.Y, from.X-center.X)
	out := make([]valueobjects.Position, 0, capSegments-1)
	for k := 1; k < capSegments; k++ {
		a := start - math.Pi*float64(k)/capSegments
		out = append(out, valueobjects.Position{X: center.X + r*math.Cos(a), Y: center.Y + r*math.Sin(a)})
	}
	return out
}

// SVGPath smooths a closed polygon into an SVG path: each vertex becomes the control
// point of a quadratic segment ending at the midpoint to the next vertex.
func SVGPath(points []valueobjects.Position) string {
	if len(points) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("M ")
	writePoint(&b, points[0])
	b.WriteString(" Q")
	for i, p := range points {
		next := points[(i+1)%len(points)]
		b.WriteByte(' ')
		writePoint(&b, p)
		b.WriteByte(' ')
		writePoint(&b, p.Midpoint(next))
	}
	b.WriteString(" Z")
	return b.String()
}

func writePoint(b *strings.Builder, p valueobjects.Position) {
	b.WriteString(formatCoord(p.X))
	b.WriteByte(' ')
	b.WriteString(formatCoord(p.Y))
}

func formatCoord(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	if s == "-0.00" {
		return "0.00"
	}
	return s
}
