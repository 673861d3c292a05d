package freehand

import (
	"math/rand"
	"strings"
	"testing"

	"canvas-engine/domain/config"
	"canvas-engine/domain/core/entities"
	"canvas-engine/domain/core/valueobjects"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func penProcessor(mode PenMode) *Processor {
	p := NewProcessor(config.DefaultDomainConfig())
	p.SetTool(ToolPen, mode)
	return p
}

func TestProcessor_SingleSampleStrokeIsDiscarded(t *testing.T) {
	p := penProcessor(ModePen)

	require.True(t, p.PointerDown(Pointer{ScreenX: 10, ScreenY: 10}))
	node := p.PointerUp(Pointer{ScreenX: 10, ScreenY: 10})

	assert.Nil(t, node)
	assert.Equal(t, StateIdle, p.State())
}

func TestProcessor_StrokeBecomesDoodle(t *testing.T) {
	// Arrange
	p := penProcessor(ModePen)
	p.SetColor("#ff0000")

	// Act
	p.PointerDown(Pointer{ScreenX: 100, ScreenY: 100, Pressure: 0.5})
	p.PointerMove(Pointer{ScreenX: 120, ScreenY: 110, Pressure: 0.5})
	p.PointerMove(Pointer{ScreenX: 120, ScreenY: 110, Pressure: 0.5})
	p.PointerMove(Pointer{ScreenX: 160, ScreenY: 150, Pressure: 0.5})
	node := p.PointerUp(Pointer{ScreenX: 160, ScreenY: 150})

	// Assert
	require.NotNil(t, node)
	assert.Equal(t, entities.VariantDoodle, node.Variant)
	assert.Equal(t, valueobjects.Position{X: 100, Y: 100}, node.Position)
	require.NotNil(t, node.Size)
	assert.Equal(t, valueobjects.Size{Width: 60, Height: 50}, *node.Size)
	assert.Equal(t, "#ff0000", node.Payload.Colors.Fill)
	assert.Equal(t, 1.0, node.Payload.Opacity)
	assert.True(t, strings.HasPrefix(node.Payload.Path, "M "))
	assert.True(t, strings.HasSuffix(node.Payload.Path, " Z"))
	assert.Contains(t, node.Payload.Path, " Q ")
	assert.NoError(t, node.Validate())
	assert.Equal(t, StateIdle, p.State())
}

func TestProcessor_HighlighterIsTranslucent(t *testing.T) {
	p := penProcessor(ModeHighlighter)

	p.PointerDown(Pointer{ScreenX: 0, ScreenY: 0})
	node := p.PointerUp(Pointer{ScreenX: 50, ScreenY: 0})

	require.NotNil(t, node)
	assert.Equal(t, 0.4, node.Payload.Opacity)
}

func TestProcessor_ViewportTransform(t *testing.T) {
	p := penProcessor(ModePen)
	p.SetViewport(Viewport{PanX: 100, PanY: 50, Zoom: 2})

	p.PointerDown(Pointer{ScreenX: 300, ScreenY: 250})
	node := p.PointerUp(Pointer{ScreenX: 340, ScreenY: 290})

	require.NotNil(t, node)
	assert.Equal(t, valueobjects.Position{X: 100, Y: 100}, node.Position)
	assert.Equal(t, valueobjects.Size{Width: 20, Height: 20}, *node.Size)
}

func TestProcessor_IgnoredPointerDowns(t *testing.T) {
	tests := []struct {
		name string
		tool Tool
		ev   Pointer
	}{
		{name: "select tool", tool: ToolSelect, ev: Pointer{}},
		{name: "eraser tool", tool: ToolEraser, ev: Pointer{}},
		{name: "secondary button", tool: ToolPen, ev: Pointer{Button: 2}},
		{name: "over chrome", tool: ToolPen, ev: Pointer{OverChrome: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProcessor(nil)
			p.SetTool(tt.tool, "")

			assert.False(t, p.PointerDown(tt.ev))
			p.PointerMove(Pointer{ScreenX: 5, ScreenY: 5})
			assert.Nil(t, p.PointerUp(Pointer{ScreenX: 9, ScreenY: 9}))
			assert.Equal(t, StateIdle, p.State())
		})
	}
}

func TestProcessor_PointerLeaveAbandonsStroke(t *testing.T) {
	p := penProcessor(ModePen)

	p.PointerDown(Pointer{ScreenX: 0, ScreenY: 0})
	p.PointerMove(Pointer{ScreenX: 30, ScreenY: 30})
	p.PointerLeave()

	assert.Equal(t, StateIdle, p.State())
	assert.Nil(t, p.PointerUp(Pointer{ScreenX: 40, ScreenY: 40}))
}

func TestStroke_BoundsContainSamples(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	p := penProcessor(ModePen)

	for trial := 0; trial < 200; trial++ {
		stroke := &Stroke{}
		count := 2 + rng.Intn(20)
		spread := 1 + rng.Float64()*40
		for stroke.Len() < count {
			stroke.Add(Sample{
				X:        rng.Float64()*spread - spread/2,
				Y:        rng.Float64()*spread - spread/2,
				Pressure: rng.Float64(),
			})
		}

		node := p.Build(stroke)
		require.NotNil(t, node)
		bounds := valueobjects.Rect{Origin: node.Position, Size: *node.Size}
		for _, s := range stroke.Samples() {
			assert.True(t, bounds.Contains(s.point()), "trial %d: %+v outside %+v", trial, s, bounds)
		}
		assert.GreaterOrEqual(t, node.Size.Width, 10.0)
		assert.GreaterOrEqual(t, node.Size.Height, 10.0)
	}
}

func TestStroke_BoundsReachFarthestSample(t *testing.T) {
	tests := []struct {
		name     string
		min, max float64
	}{
		{name: "straddling zero", min: -11.165336143647217, max: 9.85434722749507},
		{name: "fractional", min: 0.1, max: 0.7},
		{name: "large offset", min: 1e9 + 0.3, max: 1e9 + 42.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stroke := &Stroke{}
			stroke.Add(Sample{X: tt.min, Y: tt.min})
			stroke.Add(Sample{X: tt.max, Y: tt.max})

			bounds := stroke.Bounds(0)

			assert.GreaterOrEqual(t, bounds.Origin.X+bounds.Size.Width, tt.max)
			assert.GreaterOrEqual(t, bounds.Origin.Y+bounds.Size.Height, tt.max)
			assert.InDelta(t, tt.max-tt.min, bounds.Size.Width, 1e-6)
		})
	}
}

func TestStroke_SkipsDuplicateSamples(t *testing.T) {
	stroke := &Stroke{}

	assert.True(t, stroke.Add(Sample{X: 1, Y: 1}))
	assert.False(t, stroke.Add(Sample{X: 1, Y: 1, Pressure: 0.9}))
	assert.True(t, stroke.Add(Sample{X: 2, Y: 1}))
	assert.True(t, stroke.Add(Sample{X: 1, Y: 1}))
	assert.Equal(t, 3, stroke.Len())
}

func TestOutline(t *testing.T) {
	samples := []Sample{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 20, Y: 0}}

	t.Run("constant width without thinning", func(t *testing.T) {
		points := Outline(samples, OutlineOptions{Size: 4})

		require.Len(t, points, 2*len(samples)+2*(capSegments-1))
		for i := range samples {
			assert.InDelta(t, 2, points[i].Y, 1e-9)
		}
	})

	t.Run("thinning tapers the ends", func(t *testing.T) {
		points := Outline(samples, OutlineOptions{Size: 16, Thinning: 0.5})

		startHalfWidth := points[0].Y
		midHalfWidth := points[1].Y
		assert.Less(t, startHalfWidth, midHalfWidth)
		assert.Greater(t, startHalfWidth, 0.0)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Nil(t, Outline(nil, OutlineOptions{Size: 4}))
	})
}

func TestSVGPath(t *testing.T) {
	path := SVGPath([]valueobjects.Position{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}})

	assert.Equal(t,
		"M 0.00 0.00 Q 0.00 0.00 5.00 0.00 10.00 0.00 10.00 5.00 10.00 10.00 5.00 5.00 Z",
		path)
	assert.Empty(t, SVGPath(nil))
}
