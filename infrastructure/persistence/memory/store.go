// Package memory is an in-process DocumentStore for local development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"canvas-engine/application/ports"
	"canvas-engine/domain/core/entities"
	"canvas-engine/domain/core/valueobjects"
	pkgerrors "canvas-engine/pkg/errors"
)

type document struct {
	title      string
	modifiedAt time.Time
	hasMeta    bool
	nodes      map[valueobjects.NodeID]*entities.Node
	edges      map[valueobjects.EdgeID]*entities.Edge
}

// Store keeps documents in maps. Values are cloned on the way in and out.
type Store struct {
	mu     sync.RWMutex
	docs   map[valueobjects.DocumentID]*document
	calls  map[string]int
	failOn map[string]error
}

var _ ports.DocumentStore = (*Store)(nil)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		docs:   make(map[valueobjects.DocumentID]*document),
		calls:  make(map[string]int),
		failOn: make(map[string]error),
	}
}

// FailOn makes every call of the named operation return err until cleared with a
// nil err. Operation names match the method names, e.g. "UpsertNodes".
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failOn, op)
		return
	}
	s.failOn[op] = err
}

// Calls returns how often the named operation was invoked.
func (s *Store) Calls(op string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[op]
}

func (s *Store) enter(ctx context.Context, op string) error {
	s.calls[op]++
	if err := ctx.Err(); err != nil {
		return pkgerrors.NewNetworkError(op+" cancelled", err)
	}
	if err, ok := s.failOn[op]; ok {
		return err
	}
	return nil
}

func (s *Store) docLocked(id valueobjects.DocumentID) *document {
	d, ok := s.docs[id]
	if !ok {
		d = &document{
			nodes: make(map[valueobjects.NodeID]*entities.Node),
			edges: make(map[valueobjects.EdgeID]*entities.Edge),
		}
		s.docs[id] = d
	}
	return d
}

// SelectDocument returns the stored rows of a document in id order.
func (s *Store) SelectDocument(ctx context.Context, id valueobjects.DocumentID) (*ports.DocumentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "SelectDocument"); err != nil {
		return nil, err
	}
	d, ok := s.docs[id]
	if !ok || !d.hasMeta {
		return nil, pkgerrors.NewNotFoundError("document " + id.String())
	}

	record := &ports.DocumentRecord{
		ID:         id,
		Title:      d.title,
		ModifiedAt: d.modifiedAt,
		Nodes:      make([]*entities.Node, 0, len(d.nodes)),
		Edges:      make([]*entities.Edge, 0, len(d.edges)),
	}
	for _, n := range d.nodes {
		record.Nodes = append(record.Nodes, n.Clone())
	}
	for _, e := range d.edges {
		record.Edges = append(record.Edges, e.Clone())
	}
	sort.Slice(record.Nodes, func(i, j int) bool { return record.Nodes[i].ID < record.Nodes[j].ID })
	sort.Slice(record.Edges, func(i, j int) bool { return record.Edges[i].ID < record.Edges[j].ID })
	return record, nil
}

// UpsertNodes creates or replaces nodes.
func (s *Store) UpsertNodes(ctx context.Context, docID valueobjects.DocumentID, nodes []*entities.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "UpsertNodes"); err != nil {
		return err
	}
	d := s.docLocked(docID)
	for _, n := range nodes {
		c := n.Clone()
		c.Selected = false
		d.nodes[c.ID] = c
	}
	return nil
}

// DeleteNodesExcept removes nodes not listed in keep.
func (s *Store) DeleteNodesExcept(ctx context.Context, docID valueobjects.DocumentID, keep []valueobjects.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "DeleteNodesExcept"); err != nil {
		return err
	}
	d := s.docLocked(docID)
	keepSet := make(map[valueobjects.NodeID]struct{}, len(keep))
	for _, id := range keep {
		keepSet[id] = struct{}{}
	}
	for id := range d.nodes {
		if _, ok := keepSet[id]; !ok {
			delete(d.nodes, id)
		}
	}
	return nil
}

// UpsertEdges creates or replaces edges.
func (s *Store) UpsertEdges(ctx context.Context, docID valueobjects.DocumentID, edges []*entities.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "UpsertEdges"); err != nil {
		return err
	}
	d := s.docLocked(docID)
	for _, e := range edges {
		d.edges[e.ID] = e.Clone()
	}
	return nil
}

// DeleteEdgesExcept removes edges not listed in keep.
func (s *Store) DeleteEdgesExcept(ctx context.Context, docID valueobjects.DocumentID, keep []valueobjects.EdgeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "DeleteEdgesExcept"); err != nil {
		return err
	}
	d := s.docLocked(docID)
	keepSet := make(map[valueobjects.EdgeID]struct{}, len(keep))
	for _, id := range keep {
		keepSet[id] = struct{}{}
	}
	for id := range d.edges {
		if _, ok := keepSet[id]; !ok {
			delete(d.edges, id)
		}
	}
	return nil
}

// UpdateDocumentMeta writes the title and modification time.
func (s *Store) UpdateDocumentMeta(ctx context.Context, docID valueobjects.DocumentID, meta ports.DocumentMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "UpdateDocumentMeta"); err != nil {
		return err
	}
	d := s.docLocked(docID)
	d.title = meta.Title
	d.modifiedAt = meta.ModifiedAt
	d.hasMeta = true
	return nil
}
