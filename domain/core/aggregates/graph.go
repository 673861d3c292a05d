package aggregates

import (
	"fmt"

	"canvas-engine/domain/config"
	"canvas-engine/domain/core/entities"
	"canvas-engine/domain/core/valueobjects"
	pkgerrors "canvas-engine/pkg/errors"
)

// Document is the aggregate root of a board: its title, nodes and edges.
// It is mutated only through its methods, which keep the graph invariants:
//   - node and edge ids are unique
//   - a node's ParentID references an existing frame and never forms a cycle
//   - both endpoints of every edge exist and are connectable variants
//
// Mutations are synchronous and have no side effects beyond the in-memory sets;
// history and persistence are the caller's concern. A Document is not safe for
// concurrent use; the editor session serializes access.
type Document struct {
	id    valueobjects.DocumentID
	title string

	nodes     map[valueobjects.NodeID]*entities.Node
	nodeOrder []valueobjects.NodeID
	edges     map[valueobjects.EdgeID]*entities.Edge
	edgeOrder []valueobjects.EdgeID

	cfg *config.DomainConfig
}

// NodePatch describes a partial update. Nil fields are left unchanged.
// ParentID set to a pointer to the zero id detaches the node.
type NodePatch struct {
	Position *valueobjects.Position
	Size     *valueobjects.Size
	ParentID *valueobjects.NodeID
	Label    *string
	Colors   *entities.Colors
	Shape    *entities.ShapeKind
	Preset   *entities.FramePreset
	Path     *string
	Opacity  *float64
	Icon     *string
	Author   *string
	Role     *entities.ExportRole
	Pins     *[]entities.PinSpec
	Selected *bool
}

// RemoveOptions controls RemoveNode.
type RemoveOptions struct {
	// Cascade deletes a frame's descendants instead of detaching its children.
	Cascade bool
}

// RemovalResult reports everything RemoveNode touched.
type RemovalResult struct {
	RemovedNodes  []valueobjects.NodeID
	RemovedEdges  []valueobjects.EdgeID
	DetachedNodes []valueobjects.NodeID
}

// NewDocument creates an empty document.
func NewDocument(id valueobjects.DocumentID, title string, cfg *config.DomainConfig) *Document {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if title == "" {
		title = cfg.DefaultTitle
	}
	return &Document{
		id:    id,
		title: title,
		nodes: make(map[valueobjects.NodeID]*entities.Node),
		edges: make(map[valueobjects.EdgeID]*entities.Edge),
		cfg:   cfg,
	}
}

// ReconstructDocument rebuilds a document from stored rows. Nodes are inserted parents
// first so that ParentID references resolve regardless of storage order; edges whose
// endpoints are missing are dropped and returned so the caller can log them.
func ReconstructDocument(
	id valueobjects.DocumentID,
	title string,
	nodes []*entities.Node,
	edges []*entities.Edge,
	cfg *config.DomainConfig,
) (*Document, []*entities.Edge, error) {
	doc := NewDocument(id, title, cfg)

	pending := make([]*entities.Node, 0, len(nodes))
	for _, n := range nodes {
		pending = append(pending, n)
	}
	for len(pending) > 0 {
		progressed := false
		rest := pending[:0]
		for _, n := range pending {
			if n.HasParent() {
				if _, ok := doc.nodes[n.ParentID]; !ok {
					rest = append(rest, n)
					continue
				}
			}
			if err := doc.AddNode(n); err != nil {
				return nil, nil, pkgerrors.Wrapf(err, "reconstruct node %s", n.ID)
			}
			progressed = true
		}
		pending = rest
		if !progressed {
			// Dangling parents: keep the nodes, but in canvas space.
			for _, n := range pending {
				orphan := n.Clone()
				orphan.ParentID = ""
				if err := doc.AddNode(orphan); err != nil {
					return nil, nil, pkgerrors.Wrapf(err, "reconstruct node %s", n.ID)
				}
			}
			pending = nil
		}
	}

	var dropped []*entities.Edge
	for _, e := range edges {
		if err := doc.AddEdge(e); err != nil {
			dropped = append(dropped, e)
		}
	}

	return doc, dropped, nil
}

// ID returns the document id
func (d *Document) ID() valueobjects.DocumentID {
	return d.id
}

// Title returns the document title
func (d *Document) Title() string {
	return d.title
}

// SetTitle renames the document
func (d *Document) SetTitle(title string) error {
	if title == "" {
		return pkgerrors.NewValidationError("title cannot be empty")
	}
	d.title = title
	return nil
}

// NodeCount returns the number of nodes
func (d *Document) NodeCount() int {
	return len(d.nodes)
}

// EdgeCount returns the number of edges
func (d *Document) EdgeCount() int {
	return len(d.edges)
}

// HasNode checks if a node exists
func (d *Document) HasNode(id valueobjects.NodeID) bool {
	_, ok := d.nodes[id]
	return ok
}

// Node returns a copy of the node with the given id.
func (d *Document) Node(id valueobjects.NodeID) (*entities.Node, error) {
	n, ok := d.nodes[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("node " + id.String())
	}
	return n.Clone(), nil
}

// Edge returns a copy of the edge with the given id.
func (d *Document) Edge(id valueobjects.EdgeID) (*entities.Edge, error) {
	e, ok := d.edges[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("edge " + id.String())
	}
	return e.Clone(), nil
}

// Nodes returns copies of all nodes in insertion order.
func (d *Document) Nodes() []*entities.Node {
	out := make([]*entities.Node, 0, len(d.nodeOrder))
	for _, id := range d.nodeOrder {
		out = append(out, d.nodes[id].Clone())
	}
	return out
}

// Edges returns copies of all edges in insertion order.
func (d *Document) Edges() []*entities.Edge {
	out := make([]*entities.Edge, 0, len(d.edgeOrder))
	for _, id := range d.edgeOrder {
		out = append(out, d.edges[id].Clone())
	}
	return out
}

// NodeIDs returns all node ids in insertion order.
func (d *Document) NodeIDs() []valueobjects.NodeID {
	out := make([]valueobjects.NodeID, len(d.nodeOrder))
	copy(out, d.nodeOrder)
	return out
}

// EdgeIDs returns all edge ids in insertion order.
func (d *Document) EdgeIDs() []valueobjects.EdgeID {
	out := make([]valueobjects.EdgeID, len(d.edgeOrder))
	copy(out, d.edgeOrder)
	return out
}

// AddNode inserts a copy of node.
func (d *Document) AddNode(node *entities.Node) error {
	if node == nil {
		return pkgerrors.NewValidationError("node cannot be nil")
	}
	if err := node.Validate(); err != nil {
		return err
	}
	if _, exists := d.nodes[node.ID]; exists {
		return pkgerrors.NewConflictError("node already exists: " + node.ID.String())
	}
	if len(d.nodes) >= d.cfg.MaxNodesPerDocument {
		return pkgerrors.NewValidationError(fmt.Sprintf("maximum nodes reached: %d", d.cfg.MaxNodesPerDocument))
	}
	if node.HasParent() {
		if err := d.checkParent(node.ID, node.ParentID); err != nil {
			return err
		}
	}

	stored := node.Clone()
	d.nodes[stored.ID] = stored
	d.nodeOrder = append(d.nodeOrder, stored.ID)
	return nil
}

// UpdateNode applies patch to the node with the given id. The patch is applied to a
// copy and committed only if the result is valid.
func (d *Document) UpdateNode(id valueobjects.NodeID, patch NodePatch) error {
	current, ok := d.nodes[id]
	if !ok {
		return pkgerrors.NewNotFoundError("node " + id.String())
	}

	next := current.Clone()
	applyPatch(next, patch)

	if err := next.Validate(); err != nil {
		return err
	}
	if patch.ParentID != nil && next.ParentID != current.ParentID && next.HasParent() {
		if err := d.checkParent(id, next.ParentID); err != nil {
			return err
		}
	}
	d.nodes[id] = next
	return nil
}

func applyPatch(n *entities.Node, patch NodePatch) {
	if patch.Position != nil {
		n.Position = *patch.Position
	}
	if patch.Size != nil {
		size := *patch.Size
		n.Size = &size
	}
	if patch.ParentID != nil {
		n.ParentID = *patch.ParentID
	}
	if patch.Label != nil {
		n.Payload.Label = *patch.Label
	}
	if patch.Colors != nil {
		n.Payload.Colors = *patch.Colors
	}
	if patch.Shape != nil {
		n.Payload.Shape = *patch.Shape
	}
	if patch.Preset != nil {
		n.Payload.Preset = *patch.Preset
	}
	if patch.Path != nil {
		n.Payload.Path = *patch.Path
	}
	if patch.Opacity != nil {
		n.Payload.Opacity = *patch.Opacity
	}
	if patch.Icon != nil {
		n.Payload.Icon = *patch.Icon
	}
	if patch.Author != nil {
		n.Payload.Author = *patch.Author
	}
	if patch.Role != nil {
		n.Payload.Role = *patch.Role
	}
	if patch.Pins != nil {
		pins := make([]entities.PinSpec, len(*patch.Pins))
		copy(pins, *patch.Pins)
		n.Payload.Pins = pins
	}
	if patch.Selected != nil {
		n.Selected = *patch.Selected
	}
}

// RemoveNode deletes a node and every edge touching it. Children of a removed frame
// are detached and rebased to canvas space unless opts.Cascade is set, in which case
// the whole subtree is removed.
func (d *Document) RemoveNode(id valueobjects.NodeID, opts RemoveOptions) (*RemovalResult, error) {
	node, ok := d.nodes[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("node " + id.String())
	}

	result := &RemovalResult{}
	doomed := map[valueobjects.NodeID]bool{id: true}

	if node.Variant == entities.VariantFrame {
		if opts.Cascade {
			for _, descendant := range d.descendants(id) {
				doomed[descendant] = true
			}
		} else {
			for _, childID := range d.Children(id) {
				abs, err := d.AbsolutePosition(childID)
				if err != nil {
					return nil, err
				}
				child := d.nodes[childID]
				child.ParentID = ""
				child.Position = abs
				result.DetachedNodes = append(result.DetachedNodes, childID)
			}
		}
	}

	for _, edgeID := range d.edgeOrder {
		e := d.edges[edgeID]
		if doomed[e.Source] || doomed[e.Target] {
			result.RemovedEdges = append(result.RemovedEdges, edgeID)
		}
	}
	for _, edgeID := range result.RemovedEdges {
		d.deleteEdge(edgeID)
	}

	kept := d.nodeOrder[:0]
	for _, nodeID := range d.nodeOrder {
		if doomed[nodeID] {
			result.RemovedNodes = append(result.RemovedNodes, nodeID)
			delete(d.nodes, nodeID)
			continue
		}
		kept = append(kept, nodeID)
	}
	d.nodeOrder = kept

	return result, nil
}

// AddEdge inserts a copy of edge.
func (d *Document) AddEdge(edge *entities.Edge) error {
	if edge == nil {
		return pkgerrors.NewValidationError("edge cannot be nil")
	}
	if err := edge.Validate(); err != nil {
		return err
	}
	if _, exists := d.edges[edge.ID]; exists {
		return pkgerrors.NewConflictError("edge already exists: " + edge.ID.String())
	}
	if edge.Source == edge.Target {
		return pkgerrors.NewValidationError("cannot connect node to itself")
	}

	source, ok := d.nodes[edge.Source]
	if !ok {
		return pkgerrors.NewNotFoundError("source node " + edge.Source.String())
	}
	target, ok := d.nodes[edge.Target]
	if !ok {
		return pkgerrors.NewNotFoundError("target node " + edge.Target.String())
	}
	if !source.Variant.Connectable() || !target.Variant.Connectable() {
		return pkgerrors.NewValidationError("frames and doodles cannot be connected")
	}
	if len(d.edges) >= d.cfg.MaxEdgesPerDocument {
		return pkgerrors.NewValidationError(fmt.Sprintf("maximum edges reached: %d", d.cfg.MaxEdgesPerDocument))
	}

	stored := edge.Clone()
	if stored.Routing == "" {
		stored.Routing = entities.RoutingBezier
	}
	d.edges[stored.ID] = stored
	d.edgeOrder = append(d.edgeOrder, stored.ID)
	return nil
}

// RemoveEdge deletes an edge.
func (d *Document) RemoveEdge(id valueobjects.EdgeID) error {
	if _, ok := d.edges[id]; !ok {
		return pkgerrors.NewNotFoundError("edge " + id.String())
	}
	d.deleteEdge(id)
	return nil
}

func (d *Document) deleteEdge(id valueobjects.EdgeID) {
	delete(d.edges, id)
	for i, existing := range d.edgeOrder {
		if existing == id {
			d.edgeOrder = append(d.edgeOrder[:i], d.edgeOrder[i+1:]...)
			return
		}
	}
}

// DuplicateNode clones a node's payload under a new id, offset by the configured delta.
// The copy keeps the original's parent and is not selected.
func (d *Document) DuplicateNode(id valueobjects.NodeID) (*entities.Node, error) {
	original, ok := d.nodes[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("node " + id.String())
	}

	dup := original.Clone()
	dup.ID = valueobjects.NewNodeID()
	dup.Position = dup.Position.Translate(d.cfg.DuplicateOffset, d.cfg.DuplicateOffset)
	dup.Selected = false

	if err := d.AddNode(dup); err != nil {
		return nil, err
	}
	return dup.Clone(), nil
}

// AbsolutePosition resolves a node's position in canvas space by walking its parents.
func (d *Document) AbsolutePosition(id valueobjects.NodeID) (valueobjects.Position, error) {
	node, ok := d.nodes[id]
	if !ok {
		return valueobjects.Position{}, pkgerrors.NewNotFoundError("node " + id.String())
	}

	abs := node.Position
	seen := map[valueobjects.NodeID]bool{id: true}
	for parentID := node.ParentID; !parentID.IsZero(); {
		if seen[parentID] {
			return valueobjects.Position{}, pkgerrors.NewInternalError("containment cycle at " + parentID.String())
		}
		seen[parentID] = true
		parent, ok := d.nodes[parentID]
		if !ok {
			break
		}
		abs = abs.Add(parent.Position)
		parentID = parent.ParentID
	}
	return abs, nil
}

// FrameBounds returns the canvas-space rectangle of a frame.
func (d *Document) FrameBounds(id valueobjects.NodeID) (valueobjects.Rect, error) {
	node, ok := d.nodes[id]
	if !ok {
		return valueobjects.Rect{}, pkgerrors.NewNotFoundError("node " + id.String())
	}
	if node.Variant != entities.VariantFrame || node.Size == nil {
		return valueobjects.Rect{}, pkgerrors.NewValidationError("node " + id.String() + " is not a frame")
	}
	origin, err := d.AbsolutePosition(id)
	if err != nil {
		return valueobjects.Rect{}, err
	}
	return valueobjects.Rect{Origin: origin, Size: *node.Size}, nil
}

// Children returns the direct children of a frame in insertion order.
func (d *Document) Children(frameID valueobjects.NodeID) []valueobjects.NodeID {
	var out []valueobjects.NodeID
	for _, id := range d.nodeOrder {
		if d.nodes[id].ParentID == frameID {
			out = append(out, id)
		}
	}
	return out
}

// IsDescendant reports whether candidate is nested, at any depth, inside ancestor.
func (d *Document) IsDescendant(candidate, ancestor valueobjects.NodeID) bool {
	seen := map[valueobjects.NodeID]bool{}
	for cur, ok := d.nodes[candidate]; ok && cur.HasParent(); cur, ok = d.nodes[cur.ParentID] {
		if cur.ParentID == ancestor {
			return true
		}
		if seen[cur.ParentID] {
			return false
		}
		seen[cur.ParentID] = true
	}
	return false
}

func (d *Document) descendants(id valueobjects.NodeID) []valueobjects.NodeID {
	var out []valueobjects.NodeID
	queue := []valueobjects.NodeID{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range d.Children(current) {
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}

// checkParent verifies that parentID may contain childID.
func (d *Document) checkParent(childID, parentID valueobjects.NodeID) error {
	parent, ok := d.nodes[parentID]
	if !ok {
		return pkgerrors.NewNotFoundError("parent frame " + parentID.String())
	}
	if parent.Variant != entities.VariantFrame {
		return pkgerrors.NewValidationError("parent must be a frame")
	}
	if parentID == childID || d.IsDescendant(parentID, childID) {
		return pkgerrors.NewValidationError("containment cycle: frame cannot be nested inside its own descendant")
	}
	return nil
}

// SetSelected toggles the transient selection flag.
func (d *Document) SetSelected(id valueobjects.NodeID, selected bool) error {
	node, ok := d.nodes[id]
	if !ok {
		return pkgerrors.NewNotFoundError("node " + id.String())
	}
	node.Selected = selected
	return nil
}

// SelectAll marks every node selected.
func (d *Document) SelectAll() {
	for _, n := range d.nodes {
		n.Selected = true
	}
}

// ClearSelection unselects every node.
func (d *Document) ClearSelection() {
	for _, n := range d.nodes {
		n.Selected = false
	}
}

// SelectedIDs returns the selected node ids in insertion order.
func (d *Document) SelectedIDs() []valueobjects.NodeID {
	var out []valueobjects.NodeID
	for _, id := range d.nodeOrder {
		if d.nodes[id].Selected {
			out = append(out, id)
		}
	}
	return out
}

// Validate ensures graph invariants
func (d *Document) Validate() error {
	for _, id := range d.nodeOrder {
		n := d.nodes[id]
		if err := n.Validate(); err != nil {
			return err
		}
		if n.HasParent() {
			if err := d.checkParent(id, n.ParentID); err != nil {
				return err
			}
		}
	}
	for _, id := range d.edgeOrder {
		e := d.edges[id]
		if _, ok := d.nodes[e.Source]; !ok {
			return pkgerrors.NewValidationError("edge references non-existent source node")
		}
		if _, ok := d.nodes[e.Target]; !ok {
			return pkgerrors.NewValidationError("edge references non-existent target node")
		}
	}
	if len(d.nodes) != len(d.nodeOrder) || len(d.edges) != len(d.edgeOrder) {
		return pkgerrors.NewInternalError("index mismatch")
	}
	return nil
}
