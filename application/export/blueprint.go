// Package export serializes a board into external formats.
package export

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"canvas-engine/domain/core/aggregates"
	"canvas-engine/domain/core/entities"
	"canvas-engine/domain/core/registry"
	"canvas-engine/domain/core/valueobjects"
	"canvas-engine/pkg/observability"
)

const (
	classCallFunction = "/Script/BlueprintGraph.K2Node_CallFunction"
	classCustomEvent  = "/Script/BlueprintGraph.K2Node_CustomEvent"
	classComment      = "/Script/UnrealEd.EdGraphNode_Comment"
)

// GUIDFunc returns a 32 character upper-case hex identifier.
type GUIDFunc func() string

// NewGUID returns a random 128-bit identifier in the interchange format.
func NewGUID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// Exporter renders graphs. It never mutates its input.
type Exporter struct {
	registry *registry.Registry
	logger   *zap.Logger
	guid     GUIDFunc
	metrics  *observability.Collector
	tracer   *observability.Tracer
}

// NewExporter creates an exporter. guid may be nil for random identifiers.
func NewExporter(reg *registry.Registry, logger *zap.Logger, guid GUIDFunc, metrics *observability.Collector, tracer *observability.Tracer) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if guid == nil {
		guid = NewGUID
	}
	return &Exporter{registry: reg, logger: logger, guid: guid, metrics: metrics, tracer: tracer}
}

type exportedPin struct {
	spec   entities.PinSpec
	id     string
	linked []string
}

type exportedNode struct {
	node  *entities.Node
	pos   valueobjects.Position
	role  entities.ExportRole
	name  string
	guid  string
	pins  []*exportedPin
	frame bool
}

// Interchange renders the graph as Blueprint clipboard text. Object identifiers are
// regenerated on every call. Edges whose endpoints or pins cannot be resolved are
// skipped and logged.
func (x *Exporter) Interchange(ctx context.Context, state aggregates.GraphState) (string, error) {
	var out string
	err := x.tracer.TraceFunction(ctx, "export.interchange", func(context.Context) error {
		out = x.interchange(state)
		return nil
	}, attribute.Int("graph.nodes", len(state.Nodes)), attribute.Int("graph.edges", len(state.Edges)))
	if err != nil {
		return "", err
	}
	x.metrics.RecordExport("interchange")
	return out, nil
}

// ExportDocument renders the current state of doc.
func (x *Exporter) ExportDocument(ctx context.Context, doc *aggregates.Document) (string, error) {
	return x.Interchange(ctx, doc.Capture())
}

func (x *Exporter) interchange(state aggregates.GraphState) string {
	incoming := make(map[valueobjects.NodeID]int)
	outgoing := make(map[valueobjects.NodeID]int)
	for _, e := range state.Edges {
		outgoing[e.Source]++
		incoming[e.Target]++
	}

	abs := absolutePositions(state.Nodes)
	byID := make(map[valueobjects.NodeID]*exportedNode, len(state.Nodes))
	ordered := make([]*exportedNode, 0, len(state.Nodes))
	counters := make(map[string]int)
	for _, n := range state.Nodes {
		en := &exportedNode{node: n, pos: abs[n.ID], guid: x.guid()}
		if n.Variant == entities.VariantFrame {
			en.frame = true
			en.name = objectName(counters, "EdGraphNode_Comment")
		} else {
			en.role = resolveRole(n, incoming[n.ID], outgoing[n.ID])
			if en.role == entities.RoleEvent {
				en.name = objectName(counters, "K2Node_CustomEvent")
			} else {
				en.name = objectName(counters, "K2Node_CallFunction")
			}
			for _, spec := range pinsFor(n, en.role) {
				en.pins = append(en.pins, &exportedPin{spec: spec, id: x.guid()})
			}
		}
		byID[n.ID] = en
		ordered = append(ordered, en)
	}

	for _, e := range state.Edges {
		src, okSrc := byID[e.Source]
		dst, okDst := byID[e.Target]
		if !okSrc || !okDst {
			x.logger.Warn("export: edge references a missing node",
				zap.String("edgeID", e.ID.String()),
				zap.String("source", e.Source.String()),
				zap.String("target", e.Target.String()))
			continue
		}
		si, okSrc := findPin(specs(src.pins), e.SourcePin, entities.PinOutput)
		ti, okDst := findPin(specs(dst.pins), e.TargetPin, entities.PinInput)
		if !okSrc || !okDst {
			x.logger.Warn("export: edge references a missing pin",
				zap.String("edgeID", e.ID.String()),
				zap.String("sourcePin", e.SourcePin),
				zap.String("targetPin", e.TargetPin))
			continue
		}
		sp, tp := src.pins[si], dst.pins[ti]
		sp.linked = append(sp.linked, dst.name+" "+tp.id)
		tp.linked = append(tp.linked, src.name+" "+sp.id)
	}

	var b strings.Builder
	for _, en := range ordered {
		if en.frame {
			x.writeComment(&b, en)
		} else {
			x.writeNode(&b, en)
		}
	}
	return b.String()
}

func (x *Exporter) writeNode(b *strings.Builder, en *exportedNode) {
	n := en.node
	class := classCallFunction
	if en.role == entities.RoleEvent {
		class = classCustomEvent
	}
	fmt.Fprintf(b, "Begin Object Class=%s Name=%q\n", class, en.name)

	member := memberName(n)
	switch en.role {
	case entities.RoleEvent:
		fmt.Fprintf(b, "   CustomFunctionName=%q\n", member)
	case entities.RolePure:
		fmt.Fprintf(b, "   bDefaultsToPureFunc=True\n")
		fmt.Fprintf(b, "   FunctionReference=(MemberName=%q,bSelfContext=True)\n", member)
	default:
		fmt.Fprintf(b, "   FunctionReference=(MemberName=%q,bSelfContext=True)\n", member)
	}
	writePosition(b, en.pos)
	fmt.Fprintf(b, "   NodeGuid=%s\n", en.guid)
	for _, p := range en.pins {
		writePin(b, p)
	}
	b.WriteString("End Object\n")
}

func (x *Exporter) writeComment(b *strings.Builder, en *exportedNode) {
	n := en.node
	size := valueobjects.Size{}
	if x.registry != nil {
		size = x.registry.Footprint(n)
	} else if n.Size != nil {
		size = *n.Size
	}
	fmt.Fprintf(b, "Begin Object Class=%s Name=%q\n", classComment, en.name)
	writePosition(b, en.pos)
	fmt.Fprintf(b, "   NodeWidth=%d\n", int(math.Round(size.Width)))
	fmt.Fprintf(b, "   NodeHeight=%d\n", int(math.Round(size.Height)))
	fmt.Fprintf(b, "   NodeComment=%q\n", n.Payload.Label)
	fmt.Fprintf(b, "   NodeGuid=%s\n", en.guid)
	b.WriteString("End Object\n")
}

func writePosition(b *strings.Builder, p valueobjects.Position) {
	fmt.Fprintf(b, "   NodePosX=%d\n", int(math.Round(p.X)))
	fmt.Fprintf(b, "   NodePosY=%d\n", int(math.Round(p.Y)))
}

func writePin(b *strings.Builder, p *exportedPin) {
	cat := categoryFor(p.spec.Type)
	subObject := "None"
	if cat.SubObject != "" {
		subObject = cat.SubObject
	}

	fields := []string{
		"PinId=" + p.id,
		fmt.Sprintf("PinName=%q", p.spec.Name),
	}
	if p.spec.Direction == entities.PinOutput {
		fields = append(fields, `Direction="EGPD_Output"`)
	}
	fields = append(fields,
		fmt.Sprintf("PinType.PinCategory=%q", cat.Category),
		fmt.Sprintf("PinType.PinSubCategory=%q", cat.SubCategory),
		"PinType.PinSubCategoryObject="+subObject,
		"PinType.PinSubCategoryMemberReference=()",
		"PinType.PinValueType=()",
		"PinType.ContainerType=None",
		"PinType.bIsReference=False",
		"PinType.bIsConst=False",
		"PinType.bIsWeakPointer=False",
		"PinType.bIsUObjectWrapper=False",
	)
	if p.spec.Type.IsData() && p.spec.Direction == entities.PinInput && len(p.linked) == 0 && cat.Default != "" {
		fields = append(fields, fmt.Sprintf("DefaultValue=%q", cat.Default))
	}
	if len(p.linked) > 0 {
		fields = append(fields, "LinkedTo=("+strings.Join(p.linked, ",")+",)")
	}
	fields = append(fields,
		"PersistentGuid=00000000000000000000000000000000",
		"bHidden=False",
		"bNotConnectable=False",
		"bDefaultValueIsReadOnly=False",
		"bDefaultValueIsIgnored=False",
		"bAdvancedView=False",
		"bOrphanedPin=False",
	)
	fmt.Fprintf(b, "   CustomProperties Pin (%s,)\n", strings.Join(fields, ","))
}

// absolutePositions resolves canvas-space positions. Parents missing from nodes are
// treated as the canvas origin.
func absolutePositions(nodes []*entities.Node) map[valueobjects.NodeID]valueobjects.Position {
	byID := make(map[valueobjects.NodeID]*entities.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	out := make(map[valueobjects.NodeID]valueobjects.Position, len(nodes))
	for _, n := range nodes {
		pos := n.Position
		seen := map[valueobjects.NodeID]bool{n.ID: true}
		for pid := n.ParentID; !pid.IsZero() && !seen[pid]; {
			seen[pid] = true
			parent, ok := byID[pid]
			if !ok {
				break
			}
			pos = pos.Add(parent.Position)
			pid = parent.ParentID
		}
		out[n.ID] = pos
	}
	return out
}

func objectName(counters map[string]int, prefix string) string {
	i := counters[prefix]
	counters[prefix]++
	return fmt.Sprintf("%s_%d", prefix, i)
}

// memberName turns a label into an identifier: letters, digits and underscores only.
func memberName(n *entities.Node) string {
	var b strings.Builder
	upperNext := true
	for _, r := range n.Payload.Label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			if upperNext && r >= 'a' && r <= 'z' {
				r -= 'a' - 'A'
			}
			b.WriteRune(r)
			upperNext = false
		default:
			upperNext = true
		}
	}
	if b.Len() == 0 {
		return strings.ToUpper(string(n.Variant[:1])) + string(n.Variant[1:])
	}
	return b.String()
}

func specs(pins []*exportedPin) []entities.PinSpec {
	out := make([]entities.PinSpec, len(pins))
	for i, p := range pins {
		out[i] = p.spec
	}
	return out
}
