// Package supabase stores documents as rows in three PostgREST tables.
package supabase

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"

	"canvas-engine/application/ports"
	"canvas-engine/domain/core/entities"
	"canvas-engine/domain/core/valueobjects"
	pkgerrors "canvas-engine/pkg/errors"
)

const (
	documentsTable = "canvas_documents"
	nodesTable     = "canvas_nodes"
	edgesTable     = "canvas_edges"
)

type documentRow struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	ModifiedAt time.Time `json:"modified_at"`
}

type nodeRow struct {
	ID         string           `json:"id"`
	DocumentID string           `json:"document_id"`
	Variant    string           `json:"variant"`
	X          float64          `json:"x"`
	Y          float64          `json:"y"`
	Width      *float64         `json:"width"`
	Height     *float64         `json:"height"`
	ParentID   *string          `json:"parent_id"`
	Payload    entities.Payload `json:"payload"`
}

type edgeRow struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Source     string `json:"source"`
	SourcePin  string `json:"source_pin"`
	Target     string `json:"target"`
	TargetPin  string `json:"target_pin"`
	Routing    string `json:"routing"`
	Label      string `json:"label"`
}

// DocumentStore implements ports.DocumentStore against Supabase.
//
// The postgrest client is synchronous and takes no context, so cancellation is only
// observed between requests.
type DocumentStore struct {
	client *supabase.Client
	logger *zap.Logger
}

var _ ports.DocumentStore = (*DocumentStore)(nil)

// NewDocumentStore connects to the project at url using a service role key.
func NewDocumentStore(url, key string, logger *zap.Logger) (*DocumentStore, error) {
	client, err := supabase.NewClient(url, key, nil)
	if err != nil {
		return nil, pkgerrors.NewNetworkError("create supabase client", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentStore{client: client, logger: logger}, nil
}

func checkContext(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return pkgerrors.NewNetworkError(op+" cancelled", err)
	}
	return nil
}

// SelectDocument reads the document row and its nodes and edges.
func (s *DocumentStore) SelectDocument(ctx context.Context, id valueobjects.DocumentID) (*ports.DocumentRecord, error) {
	if err := checkContext(ctx, "select document"); err != nil {
		return nil, err
	}

	var docs []documentRow
	body, _, err := s.client.From(documentsTable).Select("*", "", false).Eq("id", id.String()).Execute()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("select document", err)
	}
	if err := json.Unmarshal(body, &docs); err != nil {
		return nil, pkgerrors.NewDatabaseError("decode document", err)
	}
	if len(docs) == 0 {
		return nil, pkgerrors.NewNotFoundError("document " + id.String())
	}

	var nodes []nodeRow
	body, _, err = s.client.From(nodesTable).Select("*", "", false).Eq("document_id", id.String()).Execute()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("select nodes", err)
	}
	if err := json.Unmarshal(body, &nodes); err != nil {
		return nil, pkgerrors.NewDatabaseError("decode nodes", err)
	}

	var edges []edgeRow
	body, _, err = s.client.From(edgesTable).Select("*", "", false).Eq("document_id", id.String()).Execute()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("select edges", err)
	}
	if err := json.Unmarshal(body, &edges); err != nil {
		return nil, pkgerrors.NewDatabaseError("decode edges", err)
	}

	record := &ports.DocumentRecord{
		ID:         id,
		Title:      docs[0].Title,
		ModifiedAt: docs[0].ModifiedAt,
		Nodes:      make([]*entities.Node, 0, len(nodes)),
		Edges:      make([]*entities.Edge, 0, len(edges)),
	}
	for _, r := range nodes {
		record.Nodes = append(record.Nodes, r.toNode())
	}
	for _, r := range edges {
		record.Edges = append(record.Edges, r.toEdge())
	}
	return record, nil
}

// UpsertNodes writes all nodes in one request.
func (s *DocumentStore) UpsertNodes(ctx context.Context, docID valueobjects.DocumentID, nodes []*entities.Node) error {
	if len(nodes) == 0 {
		return checkContext(ctx, "upsert nodes")
	}
	rows := make([]nodeRow, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, newNodeRow(docID, n))
	}
	return s.upsert(ctx, nodesTable, rows)
}

// UpsertEdges writes all edges in one request.
func (s *DocumentStore) UpsertEdges(ctx context.Context, docID valueobjects.DocumentID, edges []*entities.Edge) error {
	if len(edges) == 0 {
		return checkContext(ctx, "upsert edges")
	}
	rows := make([]edgeRow, 0, len(edges))
	for _, e := range edges {
		rows = append(rows, newEdgeRow(docID, e))
	}
	return s.upsert(ctx, edgesTable, rows)
}

// DeleteNodesExcept removes the document's nodes whose id is not in keep.
func (s *DocumentStore) DeleteNodesExcept(ctx context.Context, docID valueobjects.DocumentID, keep []valueobjects.NodeID) error {
	ids := make([]string, 0, len(keep))
	for _, id := range keep {
		ids = append(ids, id.String())
	}
	return s.deleteExcept(ctx, nodesTable, docID, ids)
}

// DeleteEdgesExcept removes the document's edges whose id is not in keep.
func (s *DocumentStore) DeleteEdgesExcept(ctx context.Context, docID valueobjects.DocumentID, keep []valueobjects.EdgeID) error {
	ids := make([]string, 0, len(keep))
	for _, id := range keep {
		ids = append(ids, id.String())
	}
	return s.deleteExcept(ctx, edgesTable, docID, ids)
}

// UpdateDocumentMeta upserts the document row.
func (s *DocumentStore) UpdateDocumentMeta(ctx context.Context, docID valueobjects.DocumentID, meta ports.DocumentMeta) error {
	row := documentRow{ID: docID.String(), Title: meta.Title, ModifiedAt: meta.ModifiedAt.UTC()}
	return s.upsert(ctx, documentsTable, []documentRow{row})
}

func (s *DocumentStore) upsert(ctx context.Context, table string, rows interface{}) error {
	if err := checkContext(ctx, "upsert "+table); err != nil {
		return err
	}
	_, _, err := s.client.From(table).Upsert(rows, "id", "minimal", "").Execute()
	if err != nil {
		return pkgerrors.NewDatabaseError("upsert "+table, err)
	}
	return nil
}

func (s *DocumentStore) deleteExcept(ctx context.Context, table string, docID valueobjects.DocumentID, keep []string) error {
	if err := checkContext(ctx, "delete "+table); err != nil {
		return err
	}
	query := s.client.From(table).Delete("minimal", "").Eq("document_id", docID.String())
	if len(keep) > 0 {
		query = query.Not("id", "in", "("+strings.Join(keep, ",")+")")
	}
	if _, _, err := query.Execute(); err != nil {
		return pkgerrors.NewDatabaseError("delete "+table, err)
	}
	s.logger.Debug("pruned rows", zap.String("table", table), zap.String("documentID", docID.String()), zap.Int("kept", len(keep)))
	return nil
}

func newNodeRow(docID valueobjects.DocumentID, n *entities.Node) nodeRow {
	row := nodeRow{
		ID:         n.ID.String(),
		DocumentID: docID.String(),
		Variant:    string(n.Variant),
		X:          n.Position.X,
		Y:          n.Position.Y,
		Payload:    n.Payload,
	}
	if n.Size != nil {
		w, h := n.Size.Width, n.Size.Height
		row.Width, row.Height = &w, &h
	}
	if n.HasParent() {
		parent := n.ParentID.String()
		row.ParentID = &parent
	}
	return row
}

func (r nodeRow) toNode() *entities.Node {
	n := &entities.Node{
		ID:       valueobjects.NodeID(r.ID),
		Variant:  entities.Variant(r.Variant),
		Position: valueobjects.Position{X: r.X, Y: r.Y},
		Payload:  r.Payload,
	}
	if r.Width != nil && r.Height != nil {
		n.Size = &valueobjects.Size{Width: *r.Width, Height: *r.Height}
	}
	if r.ParentID != nil {
		n.ParentID = valueobjects.NodeID(*r.ParentID)
	}
	return n
}

func newEdgeRow(docID valueobjects.DocumentID, e *entities.Edge) edgeRow {
	return edgeRow{
		ID:         e.ID.String(),
		DocumentID: docID.String(),
		Source:     e.Source.String(),
		SourcePin:  e.SourcePin,
		Target:     e.Target.String(),
		TargetPin:  e.TargetPin,
		Routing:    string(e.Routing),
		Label:      e.Label,
	}
}

func (r edgeRow) toEdge() *entities.Edge {
	return &entities.Edge{
		ID:        valueobjects.EdgeID(r.ID),
		Source:    valueobjects.NodeID(r.Source),
		SourcePin: r.SourcePin,
		Target:    valueobjects.NodeID(r.Target),
		TargetPin: r.TargetPin,
		Routing:   entities.RoutingStyle(r.Routing),
		Label:     r.Label,
	}
}
