package freehand

import (
	"canvas-engine/domain/config"
	"canvas-engine/domain/core/entities"
	"canvas-engine/domain/core/valueobjects"
)

// Tool is the active canvas tool.
type Tool string

const (
	ToolSelect Tool = "select"
	ToolPen    Tool = "pen"
	ToolEraser Tool = "eraser"
)

// PenMode is the sub-mode of the pen tool.
type PenMode string

const (
	ModePen         PenMode = "pen"
	ModeHighlighter PenMode = "highlighter"
	// ModeShapeAssist currently strokes like the pen.
	ModeShapeAssist PenMode = "shape-assist"
)

// State of the gesture state machine.
type State string

const (
	StateIdle    State = "idle"
	StateDrawing State = "drawing"
)

// Pointer is a pointer event in screen coordinates.
type Pointer struct {
	ScreenX  float64 `json:"x"`
	ScreenY  float64 `json:"y"`
	Pressure float64 `json:"pressure,omitempty"`
	Button   int     `json:"button"`
	// OverChrome is set when the pointer is over UI controls rather than the canvas.
	OverChrome bool `json:"overChrome,omitempty"`
}

// Processor is the Idle/Drawing state machine. It is not safe for concurrent use.
type Processor struct {
	cfg      *config.DomainConfig
	tool     Tool
	mode     PenMode
	color    string
	state    State
	stroke   *Stroke
	viewport Viewport
}

// NewProcessor creates an idle processor with the select tool active.
func NewProcessor(cfg *config.DomainConfig) *Processor {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &Processor{
		cfg:      cfg,
		tool:     ToolSelect,
		mode:     ModePen,
		color:    cfg.DefaultPenColor,
		state:    StateIdle,
		viewport: Viewport{Zoom: 1},
	}
}

// SetTool switches tools. An in-progress stroke is abandoned.
func (p *Processor) SetTool(tool Tool, mode PenMode) {
	p.Cancel()
	p.tool = tool
	if mode != "" {
		p.mode = mode
	}
}

// SetColor sets the ink color for subsequent strokes.
func (p *Processor) SetColor(color string) {
	p.color = color
}

// SetViewport updates the pan/zoom used for new samples.
func (p *Processor) SetViewport(v Viewport) {
	p.viewport = v
}

// Tool returns the active tool.
func (p *Processor) Tool() Tool { return p.tool }

// Mode returns the active pen mode.
func (p *Processor) Mode() PenMode { return p.mode }

// State returns the current state.
func (p *Processor) State() State { return p.state }

// Viewport returns the current viewport.
func (p *Processor) Viewport() Viewport { return p.viewport }

// CanvasPoint maps a pointer to canvas space.
func (p *Processor) CanvasPoint(ev Pointer) valueobjects.Position {
	x, y := p.viewport.ToCanvas(ev.ScreenX, ev.ScreenY)
	return valueobjects.Position{X: x, Y: y}
}

// PointerDown starts a stroke when the pen is active and the primary button is
// pressed on the canvas. It reports whether drawing started.
func (p *Processor) PointerDown(ev Pointer) bool {
	if p.tool != ToolPen || ev.Button != 0 || ev.OverChrome {
		return false
	}
	p.stroke = &Stroke{}
	p.stroke.Add(p.sample(ev))
	p.state = StateDrawing
	return true
}

// PointerMove appends a sample while drawing.
func (p *Processor) PointerMove(ev Pointer) {
	if p.state != StateDrawing {
		return
	}
	p.stroke.Add(p.sample(ev))
}

// PointerUp finishes the gesture. It returns the doodle node to insert, or nil when
// the stroke was too short or no stroke was in progress.
func (p *Processor) PointerUp(ev Pointer) *entities.Node {
	if p.state != StateDrawing {
		return nil
	}
	p.stroke.Add(p.sample(ev))
	stroke := p.stroke
	p.reset()
	return p.Build(stroke)
}

// PointerLeave abandons the gesture.
func (p *Processor) PointerLeave() {
	p.Cancel()
}

// Cancel returns to Idle and drops any partial stroke.
func (p *Processor) Cancel() {
	p.reset()
}

func (p *Processor) reset() {
	p.stroke = nil
	p.state = StateIdle
}

func (p *Processor) sample(ev Pointer) Sample {
	x, y := p.viewport.ToCanvas(ev.ScreenX, ev.ScreenY)
	return Sample{X: x, Y: y, Pressure: ev.Pressure}
}

// Build converts a finished stroke into a doodle node using the active pen mode.
// Strokes with fewer than two samples yield nil.
func (p *Processor) Build(stroke *Stroke) *entities.Node {
	if stroke == nil || stroke.Len() < 2 {
		return nil
	}

	bounds := stroke.Bounds(p.cfg.MinDoodleSize)
	local := stroke.Localize(bounds.Origin)
	opts, opacity := p.strokeStyle()
	path := SVGPath(Outline(local, opts))

	size := bounds.Size
	return &entities.Node{
		ID:       valueobjects.NewNodeID(),
		Variant:  entities.VariantDoodle,
		Position: bounds.Origin,
		Size:     &size,
		Payload: entities.Payload{
			Path:    path,
			Opacity: opacity,
			Colors:  entities.Colors{Fill: p.color},
		},
	}
}

func (p *Processor) strokeStyle() (OutlineOptions, float64) {
	if p.mode == ModeHighlighter {
		return OutlineOptions{Size: p.cfg.HighlighterSize, Thinning: p.cfg.HighlighterThinning}, p.cfg.HighlighterOpacity
	}
	return OutlineOptions{Size: p.cfg.PenSize, Thinning: p.cfg.PenThinning}, 1
}
