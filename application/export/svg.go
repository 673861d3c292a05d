package export

import (
	"context"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"canvas-engine/domain/core/aggregates"
	"canvas-engine/domain/core/entities"
	"canvas-engine/domain/core/valueobjects"
	pkgerrors "canvas-engine/pkg/errors"
)

// ImageFormat names an image export format.
type ImageFormat string

const (
	FormatSVG  ImageFormat = "svg"
	FormatPNG  ImageFormat = "png"
	FormatJPEG ImageFormat = "jpeg"
)

// Image renders the part of the graph inside view. Only SVG is produced here;
// raster formats need an external rasterizer and are rejected.
func (x *Exporter) Image(ctx context.Context, state aggregates.GraphState, view valueobjects.Rect, format ImageFormat) (string, error) {
	if format != FormatSVG {
		return "", pkgerrors.NewValidationError("unsupported image format: " + string(format))
	}
	if !view.Size.IsValid() || view.Size.Width <= 0 || view.Size.Height <= 0 {
		return "", pkgerrors.NewValidationError("viewport must have a positive size")
	}

	var out string
	err := x.tracer.TraceFunction(ctx, "export.image", func(context.Context) error {
		out = x.svg(state, view)
		return nil
	}, attribute.String("export.format", string(format)))
	if err != nil {
		return "", err
	}
	x.metrics.RecordExport(string(format))
	return out, nil
}

type placed struct {
	node *entities.Node
	rect valueobjects.Rect
}

func (x *Exporter) svg(state aggregates.GraphState, view valueobjects.Rect) string {
	abs := absolutePositions(state.Nodes)
	byID := make(map[valueobjects.NodeID]placed, len(state.Nodes))
	for _, n := range state.Nodes {
		byID[n.ID] = placed{node: n, rect: valueobjects.Rect{Origin: abs[n.ID], Size: x.footprint(n)}}
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="%s %s %s %s">`,
		num(view.Size.Width), num(view.Size.Height),
		num(view.Origin.X), num(view.Origin.Y), num(view.Size.Width), num(view.Size.Height))
	b.WriteString("\n")

	// Frames first so their children paint on top.
	for _, n := range state.Nodes {
		if p := byID[n.ID]; n.Variant == entities.VariantFrame && p.rect.Intersects(view) {
			x.writeShape(&b, p)
		}
	}
	for _, e := range state.Edges {
		src, okSrc := byID[e.Source]
		dst, okDst := byID[e.Target]
		if !okSrc || !okDst {
			continue
		}
		a, c := center(src.rect), center(dst.rect)
		fmt.Fprintf(&b, `<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="#555555" stroke-width="2"/>`,
			num(a.X), num(a.Y), num(c.X), num(c.Y))
		b.WriteString("\n")
	}
	for _, n := range state.Nodes {
		if p := byID[n.ID]; n.Variant != entities.VariantFrame && p.rect.Intersects(view) {
			x.writeShape(&b, p)
		}
	}
	b.WriteString("</svg>\n")
	return b.String()
}

func (x *Exporter) footprint(n *entities.Node) valueobjects.Size {
	if x.registry != nil {
		return x.registry.Footprint(n)
	}
	if n.Size != nil {
		return *n.Size
	}
	return valueobjects.Size{}
}

func (x *Exporter) colors(n *entities.Node) entities.Colors {
	if x.registry != nil {
		return x.registry.ResolvedColors(n)
	}
	return n.Payload.Colors
}

func (x *Exporter) writeShape(b *strings.Builder, p placed) {
	n, r := p.node, p.rect
	c := x.colors(n)
	fill, border, text := orNone(c.Fill), orNone(c.Border), orNone(c.Text)

	switch n.Variant {
	case entities.VariantDoodle:
		opacity := n.Payload.Opacity
		if opacity <= 0 {
			opacity = 1
		}
		fmt.Fprintf(b, `<path transform="translate(%s %s)" d="%s" fill="%s" fill-opacity="%s"/>`,
			num(r.Origin.X), num(r.Origin.Y), html.EscapeString(n.Payload.Path), fill, num(opacity))
	case entities.VariantImage:
		fmt.Fprintf(b, `<image x="%s" y="%s" width="%s" height="%s" href="%s"/>`,
			num(r.Origin.X), num(r.Origin.Y), num(r.Size.Width), num(r.Size.Height), html.EscapeString(n.Payload.Image))
	case entities.VariantText:
		writeText(b, r, n.Payload.Label, text)
		return
	case entities.VariantSticker:
		writeText(b, r, n.Payload.Icon, text)
		return
	case entities.VariantShape:
		writeGeometry(b, r, n.Payload.Shape, fill, border)
		writeText(b, r, n.Payload.Label, text)
		return
	default:
		fmt.Fprintf(b, `<rect x="%s" y="%s" width="%s" height="%s" fill="%s" stroke="%s"/>`,
			num(r.Origin.X), num(r.Origin.Y), num(r.Size.Width), num(r.Size.Height), fill, border)
		b.WriteString("\n")
		if n.Variant == entities.VariantFrame {
			// Frame titles sit above the frame.
			fmt.Fprintf(b, `<text x="%s" y="%s" fill="%s">%s</text>`,
				num(r.Origin.X), num(r.Origin.Y-6), text, html.EscapeString(n.Payload.Label))
			b.WriteString("\n")
			return
		}
		writeText(b, r, n.Payload.Label, text)
		return
	}
	b.WriteString("\n")
}

func writeGeometry(b *strings.Builder, r valueobjects.Rect, kind entities.ShapeKind, fill, border string) {
	x0, y0, w, h := r.Origin.X, r.Origin.Y, r.Size.Width, r.Size.Height
	switch kind {
	case entities.ShapeCircle:
		fmt.Fprintf(b, `<ellipse cx="%s" cy="%s" rx="%s" ry="%s" fill="%s" stroke="%s"/>`,
			num(x0+w/2), num(y0+h/2), num(w/2), num(h/2), fill, border)
	case entities.ShapeDiamond:
		writePolygon(b, fill, border, x0+w/2, y0, x0+w, y0+h/2, x0+w/2, y0+h, x0, y0+h/2)
	case entities.ShapeTriangle:
		writePolygon(b, fill, border, x0+w/2, y0, x0+w, y0+h, x0, y0+h)
	case entities.ShapeHexagon:
		q := w / 4
		writePolygon(b, fill, border, x0+q, y0, x0+w-q, y0, x0+w, y0+h/2, x0+w-q, y0+h, x0+q, y0+h, x0, y0+h/2)
	case entities.ShapeRoundedRect:
		fmt.Fprintf(b, `<rect x="%s" y="%s" width="%s" height="%s" rx="12" fill="%s" stroke="%s"/>`,
			num(x0), num(y0), num(w), num(h), fill, border)
	default:
		fmt.Fprintf(b, `<rect x="%s" y="%s" width="%s" height="%s" fill="%s" stroke="%s"/>`,
			num(x0), num(y0), num(w), num(h), fill, border)
	}
	b.WriteString("\n")
}

func writePolygon(b *strings.Builder, fill, border string, coords ...float64) {
	pts := make([]string, 0, len(coords)/2)
	for i := 0; i+1 < len(coords); i += 2 {
		pts = append(pts, num(coords[i])+","+num(coords[i+1]))
	}
	fmt.Fprintf(b, `<polygon points="%s" fill="%s" stroke="%s"/>`, strings.Join(pts, " "), fill, border)
}

func writeText(b *strings.Builder, r valueobjects.Rect, label, color string) {
	if label == "" {
		return
	}
	c := center(r)
	fmt.Fprintf(b, `<text x="%s" y="%s" fill="%s" text-anchor="middle" dominant-baseline="middle">%s</text>`,
		num(c.X), num(c.Y), color, html.EscapeString(label))
	b.WriteString("\n")
}

func center(r valueobjects.Rect) valueobjects.Position {
	return valueobjects.Position{X: r.Origin.X + r.Size.Width/2, Y: r.Origin.Y + r.Size.Height/2}
}

func orNone(color string) string {
	if color == "" {
		return "none"
	}
	return html.EscapeString(color)
}

func num(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
