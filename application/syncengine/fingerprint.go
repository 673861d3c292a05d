package syncengine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"canvas-engine/domain/core/entities"
	"canvas-engine/domain/core/valueobjects"
)

// Snapshot is the document state handed to the engine for one save. The engine
// treats it as read-only.
type Snapshot struct {
	DocumentID valueobjects.DocumentID
	Title      string
	Nodes      []*entities.Node
	Edges      []*entities.Edge
}

type canonicalDocument struct {
	Title string           `json:"title"`
	Nodes []*entities.Node `json:"nodes"`
	Edges []*entities.Edge `json:"edges"`
}

// Fingerprint hashes the canonical form of a snapshot: nodes and edges sorted by id,
// selection excluded. Two snapshots with the same persisted content share a fingerprint
// regardless of insertion order.
func Fingerprint(s Snapshot) (string, error) {
	doc := canonicalDocument{
		Title: s.Title,
		Nodes: make([]*entities.Node, len(s.Nodes)),
		Edges: make([]*entities.Edge, len(s.Edges)),
	}
	copy(doc.Nodes, s.Nodes)
	copy(doc.Edges, s.Edges)
	sort.Slice(doc.Nodes, func(i, j int) bool { return doc.Nodes[i].ID < doc.Nodes[j].ID })
	sort.Slice(doc.Edges, func(i, j int) bool { return doc.Edges[i].ID < doc.Edges[j].ID })

	// Node.Selected carries json:"-", so it never reaches the hash.
	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
