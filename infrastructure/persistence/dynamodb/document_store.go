package dynamodb

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"canvas-engine/application/ports"
	"canvas-engine/domain/core/entities"
	"canvas-engine/domain/core/valueobjects"
	pkgerrors "canvas-engine/pkg/errors"
)

// Single-table layout:
//
//	PK = DOC#<documentID>
//	SK = META | NODE#<nodeID> | EDGE#<edgeID>
const (
	skMeta     = "META"
	nodePrefix = "NODE#"
	edgePrefix = "EDGE#"

	entityDocument = "DOCUMENT"
	entityNode     = "NODE"
	entityEdge     = "EDGE"

	// DynamoDB accepts at most 25 requests per BatchWriteItem call.
	batchLimit = 25
	// unprocessedRetries bounds resubmission of throttled batch items.
	unprocessedRetries = 5
)

// API is the subset of the DynamoDB client the store uses.
type API interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

type metaItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	Title      string `dynamodbav:"Title"`
	ModifiedAt string `dynamodbav:"ModifiedAt"`
}

type nodeItem struct {
	PK         string           `dynamodbav:"PK"`
	SK         string           `dynamodbav:"SK"`
	EntityType string           `dynamodbav:"EntityType"`
	NodeID     string           `dynamodbav:"NodeID"`
	Variant    string           `dynamodbav:"Variant"`
	X          float64          `dynamodbav:"X"`
	Y          float64          `dynamodbav:"Y"`
	Width      *float64         `dynamodbav:"Width,omitempty"`
	Height     *float64         `dynamodbav:"Height,omitempty"`
	ParentID   string           `dynamodbav:"ParentID,omitempty"`
	Payload    entities.Payload `dynamodbav:"Payload"`
}

type edgeItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	EdgeID     string `dynamodbav:"EdgeID"`
	Source     string `dynamodbav:"Source"`
	SourcePin  string `dynamodbav:"SourcePin,omitempty"`
	Target     string `dynamodbav:"Target"`
	TargetPin  string `dynamodbav:"TargetPin,omitempty"`
	Routing    string `dynamodbav:"Routing,omitempty"`
	Label      string `dynamodbav:"Label,omitempty"`
}

// DocumentStore implements ports.DocumentStore on a single DynamoDB table.
type DocumentStore struct {
	client    API
	tableName string
	logger    *zap.Logger
}

var _ ports.DocumentStore = (*DocumentStore)(nil)

// NewDocumentStore creates a store on tableName.
func NewDocumentStore(client API, tableName string, logger *zap.Logger) *DocumentStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentStore{client: client, tableName: tableName, logger: logger}
}

func docPK(id valueobjects.DocumentID) string { return "DOC#" + id.String() }

// SelectDocument loads the metadata row and every node and edge of a document.
func (s *DocumentStore) SelectDocument(ctx context.Context, id valueobjects.DocumentID) (*ports.DocumentRecord, error) {
	items, err := s.queryPartition(ctx, id, "", nil)
	if err != nil {
		return nil, err
	}

	record := &ports.DocumentRecord{ID: id}
	found := false
	for _, item := range items {
		sk := stringAttr(item, "SK")
		switch {
		case sk == skMeta:
			var meta metaItem
			if err := attributevalue.UnmarshalMap(item, &meta); err != nil {
				return nil, pkgerrors.NewDatabaseError("unmarshal document", err)
			}
			record.Title = meta.Title
			if meta.ModifiedAt != "" {
				if t, err := time.Parse(time.RFC3339Nano, meta.ModifiedAt); err == nil {
					record.ModifiedAt = t
				}
			}
			found = true
		case strings.HasPrefix(sk, nodePrefix):
			var ni nodeItem
			if err := attributevalue.UnmarshalMap(item, &ni); err != nil {
				return nil, pkgerrors.NewDatabaseError("unmarshal node", err)
			}
			record.Nodes = append(record.Nodes, ni.toNode())
		case strings.HasPrefix(sk, edgePrefix):
			var ei edgeItem
			if err := attributevalue.UnmarshalMap(item, &ei); err != nil {
				return nil, pkgerrors.NewDatabaseError("unmarshal edge", err)
			}
			record.Edges = append(record.Edges, ei.toEdge())
		default:
			s.logger.Warn("skipping unknown item", zap.String("pk", docPK(id)), zap.String("sk", sk))
		}
	}
	if !found {
		return nil, pkgerrors.NewNotFoundError("document " + id.String())
	}
	return record, nil
}

// UpsertNodes writes every node with PutRequests in batches.
func (s *DocumentStore) UpsertNodes(ctx context.Context, docID valueobjects.DocumentID, nodes []*entities.Node) error {
	requests := make([]types.WriteRequest, 0, len(nodes))
	for _, n := range nodes {
		item, err := attributevalue.MarshalMap(newNodeItem(docID, n))
		if err != nil {
			return pkgerrors.NewDatabaseError("marshal node", err)
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}
	return s.batchWrite(ctx, "upsert nodes", requests)
}

// UpsertEdges writes every edge with PutRequests in batches.
func (s *DocumentStore) UpsertEdges(ctx context.Context, docID valueobjects.DocumentID, edges []*entities.Edge) error {
	requests := make([]types.WriteRequest, 0, len(edges))
	for _, e := range edges {
		item, err := attributevalue.MarshalMap(newEdgeItem(docID, e))
		if err != nil {
			return pkgerrors.NewDatabaseError("marshal edge", err)
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}
	return s.batchWrite(ctx, "upsert edges", requests)
}

// DeleteNodesExcept deletes stored nodes whose id is not in keep.
func (s *DocumentStore) DeleteNodesExcept(ctx context.Context, docID valueobjects.DocumentID, keep []valueobjects.NodeID) error {
	keepSK := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		keepSK[nodePrefix+id.String()] = struct{}{}
	}
	return s.deleteExcept(ctx, docID, nodePrefix, keepSK)
}

// DeleteEdgesExcept deletes stored edges whose id is not in keep.
func (s *DocumentStore) DeleteEdgesExcept(ctx context.Context, docID valueobjects.DocumentID, keep []valueobjects.EdgeID) error {
	keepSK := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		keepSK[edgePrefix+id.String()] = struct{}{}
	}
	return s.deleteExcept(ctx, docID, edgePrefix, keepSK)
}

// UpdateDocumentMeta sets the title and modification time, creating the row if needed.
func (s *DocumentStore) UpdateDocumentMeta(ctx context.Context, docID valueobjects.DocumentID, meta ports.DocumentMeta) error {
	update := expression.
		Set(expression.Name("Title"), expression.Value(meta.Title)).
		Set(expression.Name("ModifiedAt"), expression.Value(meta.ModifiedAt.UTC().Format(time.RFC3339Nano))).
		Set(expression.Name("EntityType"), expression.Value(entityDocument))
	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return pkgerrors.NewDatabaseError("build update expression", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: docPK(docID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("update document metadata", err)
	}
	return nil
}

// queryPartition returns every item of the document, optionally restricted to a sort
// key prefix and projected to the given attributes.
func (s *DocumentStore) queryPartition(ctx context.Context, docID valueobjects.DocumentID, skPrefix string, projection []string) ([]map[string]types.AttributeValue, error) {
	key := expression.Key("PK").Equal(expression.Value(docPK(docID)))
	if skPrefix != "" {
		key = key.And(expression.Key("SK").BeginsWith(skPrefix))
	}
	builder := expression.NewBuilder().WithKeyCondition(key)
	if len(projection) > 0 {
		names := make([]expression.NameBuilder, 0, len(projection))
		for _, p := range projection {
			names = append(names, expression.Name(p))
		}
		builder = builder.WithProjection(expression.NamesList(names[0], names[1:]...))
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("build query expression", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ProjectionExpression:      expr.Projection(),
	}

	var items []map[string]types.AttributeValue
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("query document", err)
		}
		items = append(items, result.Items...)
		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	return items, nil
}

func (s *DocumentStore) deleteExcept(ctx context.Context, docID valueobjects.DocumentID, prefix string, keep map[string]struct{}) error {
	items, err := s.queryPartition(ctx, docID, prefix, []string{"PK", "SK"})
	if err != nil {
		return err
	}

	var stale []string
	for _, item := range items {
		sk := stringAttr(item, "SK")
		if _, ok := keep[sk]; !ok {
			stale = append(stale, sk)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	sort.Strings(stale)

	requests := make([]types.WriteRequest, 0, len(stale))
	for _, sk := range stale {
		requests = append(requests, types.WriteRequest{DeleteRequest: &types.DeleteRequest{
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: docPK(docID)},
				"SK": &types.AttributeValueMemberS{Value: sk},
			},
		}})
	}
	s.logger.Debug("deleting stale items",
		zap.String("documentID", docID.String()),
		zap.String("prefix", prefix),
		zap.Int("count", len(stale)))
	return s.batchWrite(ctx, "delete "+strings.ToLower(strings.TrimSuffix(prefix, "#"))+"s", requests)
}

// batchWrite sends requests in chunks and resubmits unprocessed items with backoff.
func (s *DocumentStore) batchWrite(ctx context.Context, op string, requests []types.WriteRequest) error {
	for start := 0; start < len(requests); start += batchLimit {
		end := start + batchLimit
		if end > len(requests) {
			end = len(requests)
		}
		pending := map[string][]types.WriteRequest{s.tableName: requests[start:end]}

		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = 50 * time.Millisecond
		bo.MaxInterval = time.Second
		for attempt := 0; ; attempt++ {
			result, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return pkgerrors.NewDatabaseError(op, err)
			}
			if len(result.UnprocessedItems[s.tableName]) == 0 {
				break
			}
			if attempt >= unprocessedRetries {
				return pkgerrors.NewDatabaseError(op,
					fmt.Errorf("%d items left unprocessed", len(result.UnprocessedItems[s.tableName])))
			}
			pending = result.UnprocessedItems
			select {
			case <-time.After(bo.NextBackOff()):
			case <-ctx.Done():
				return pkgerrors.NewNetworkError(op+" cancelled", ctx.Err())
			}
		}
	}
	return nil
}

func newNodeItem(docID valueobjects.DocumentID, n *entities.Node) nodeItem {
	item := nodeItem{
		PK:         docPK(docID),
		SK:         nodePrefix + n.ID.String(),
		EntityType: entityNode,
		NodeID:     n.ID.String(),
		Variant:    string(n.Variant),
		X:          n.Position.X,
		Y:          n.Position.Y,
		ParentID:   n.ParentID.String(),
		Payload:    n.Payload,
	}
	if n.Size != nil {
		w, h := n.Size.Width, n.Size.Height
		item.Width, item.Height = &w, &h
	}
	return item
}

func (ni nodeItem) toNode() *entities.Node {
	n := &entities.Node{
		ID:       valueobjects.NodeID(ni.NodeID),
		Variant:  entities.Variant(ni.Variant),
		Position: valueobjects.Position{X: ni.X, Y: ni.Y},
		ParentID: valueobjects.NodeID(ni.ParentID),
		Payload:  ni.Payload,
	}
	if ni.Width != nil && ni.Height != nil {
		n.Size = &valueobjects.Size{Width: *ni.Width, Height: *ni.Height}
	}
	return n
}

func newEdgeItem(docID valueobjects.DocumentID, e *entities.Edge) edgeItem {
	return edgeItem{
		PK:         docPK(docID),
		SK:         edgePrefix + e.ID.String(),
		EntityType: entityEdge,
		EdgeID:     e.ID.String(),
		Source:     e.Source.String(),
		SourcePin:  e.SourcePin,
		Target:     e.Target.String(),
		TargetPin:  e.TargetPin,
		Routing:    string(e.Routing),
		Label:      e.Label,
	}
}

func (ei edgeItem) toEdge() *entities.Edge {
	return &entities.Edge{
		ID:        valueobjects.EdgeID(ei.EdgeID),
		Source:    valueobjects.NodeID(ei.Source),
		SourcePin: ei.SourcePin,
		Target:    valueobjects.NodeID(ei.Target),
		TargetPin: ei.TargetPin,
		Routing:   entities.RoutingStyle(ei.Routing),
		Label:     ei.Label,
	}
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}
