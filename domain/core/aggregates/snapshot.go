package aggregates

import (
	"canvas-engine/domain/core/entities"
	"canvas-engine/domain/core/valueobjects"
)

// GraphState is a deep copy of a document's nodes and edges. Selection is cleared:
// it is UI state and never part of a snapshot.
type GraphState struct {
	Nodes []*entities.Node
	Edges []*entities.Edge
}

// Capture returns a deep copy of the current graph.
func (d *Document) Capture() GraphState {
	nodes := d.Nodes()
	for _, n := range nodes {
		n.Selected = false
	}
	return GraphState{Nodes: nodes, Edges: d.Edges()}
}

// Restore replaces the graph with a deep copy of state. The state is trusted: it was
// captured from a valid document.
func (d *Document) Restore(state GraphState) {
	d.nodes = make(map[valueobjects.NodeID]*entities.Node, len(state.Nodes))
	d.nodeOrder = make([]valueobjects.NodeID, 0, len(state.Nodes))
	for _, n := range state.Nodes {
		c := n.Clone()
		c.Selected = false
		d.nodes[c.ID] = c
		d.nodeOrder = append(d.nodeOrder, c.ID)
	}

	d.edges = make(map[valueobjects.EdgeID]*entities.Edge, len(state.Edges))
	d.edgeOrder = make([]valueobjects.EdgeID, 0, len(state.Edges))
	for _, e := range state.Edges {
		c := e.Clone()
		d.edges[c.ID] = c
		d.edgeOrder = append(d.edgeOrder, c.ID)
	}
}

// Clone returns a deep copy of the state.
func (s GraphState) Clone() GraphState {
	out := GraphState{
		Nodes: make([]*entities.Node, len(s.Nodes)),
		Edges: make([]*entities.Edge, len(s.Edges)),
	}
	for i, n := range s.Nodes {
		out.Nodes[i] = n.Clone()
	}
	for i, e := range s.Edges {
		out.Edges[i] = e.Clone()
	}
	return out
}
