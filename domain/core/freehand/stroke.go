// Package freehand turns pointer gestures into doodle nodes.
package freehand

import (
	"math"

	"canvas-engine/domain/core/valueobjects"
)

// Sample is one pointer reading in canvas space. Pressure is in [0,1]; zero means the
// device reported none.
type Sample struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Pressure float64 `json:"pressure,omitempty"`
}

func (s Sample) point() valueobjects.Position {
	return valueobjects.Position{X: s.X, Y: s.Y}
}

// Viewport is the pan/zoom state used to map screen coordinates to canvas space.
type Viewport struct {
	PanX float64 `json:"panX"`
	PanY float64 `json:"panY"`
	Zoom float64 `json:"zoom"`
}

// ToCanvas maps a screen point into canvas space.
func (v Viewport) ToCanvas(screenX, screenY float64) (float64, float64) {
	zoom := v.Zoom
	if zoom <= 0 || math.IsNaN(zoom) || math.IsInf(zoom, 0) {
		zoom = 1
	}
	return (screenX - v.PanX) / zoom, (screenY - v.PanY) / zoom
}

// VisibleRect is the canvas-space area shown in a screen of the given size.
func (v Viewport) VisibleRect(width, height float64) valueobjects.Rect {
	x0, y0 := v.ToCanvas(0, 0)
	x1, y1 := v.ToCanvas(width, height)
	return valueobjects.Rect{
		Origin: valueobjects.Position{X: x0, Y: y0},
		Size:   valueobjects.Size{Width: x1 - x0, Height: y1 - y0},
	}
}

// Stroke is the sample sequence of one gesture.
type Stroke struct {
	samples []Sample
}

// Add appends s unless it repeats the last sample's coordinates. It reports whether
// the sample was kept.
func (st *Stroke) Add(s Sample) bool {
	if n := len(st.samples); n > 0 {
		last := st.samples[n-1]
		if last.X == s.X && last.Y == s.Y {
			return false
		}
	}
	st.samples = append(st.samples, s)
	return true
}

// Len returns the number of samples.
func (st *Stroke) Len() int {
	return len(st.samples)
}

// Samples returns a copy of the samples.
func (st *Stroke) Samples() []Sample {
	out := make([]Sample, len(st.samples))
	copy(out, st.samples)
	return out
}

// Bounds is the axis-aligned box of the samples, each side at least minSize.
func (st *Stroke) Bounds(minSize float64) valueobjects.Rect {
	if len(st.samples) == 0 {
		return valueobjects.Rect{Size: valueobjects.Size{Width: minSize, Height: minSize}}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, s := range st.samples {
		minX = math.Min(minX, s.X)
		minY = math.Min(minY, s.Y)
		maxX = math.Max(maxX, s.X)
		maxY = math.Max(maxY, s.Y)
	}
	return valueobjects.Rect{
		Origin: valueobjects.Position{X: minX, Y: minY},
		Size: valueobjects.Size{
			Width:  math.Max(span(minX, maxX), minSize),
			Height: math.Max(span(minY, maxY), minSize),
		},
	}
}

// span is max-min rounded up so that min+span never falls short of max.
func span(min, max float64) float64 {
	d := max - min
	for min+d < max {
		d = math.Nextafter(d, math.Inf(1))
	}
	return d
}

// Localize returns the samples relative to origin.
func (st *Stroke) Localize(origin valueobjects.Position) []Sample {
	out := make([]Sample, len(st.samples))
	for i, s := range st.samples {
		out[i] = Sample{X: s.X - origin.X, Y: s.Y - origin.Y, Pressure: s.Pressure}
	}
	return out
}
