package dynamodb

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvas-engine/application/ports"
	"canvas-engine/domain/core/entities"
	"canvas-engine/domain/core/valueobjects"
	pkgerrors "canvas-engine/pkg/errors"
)

const (
	testTable = "canvas-test"
	docID     = valueobjects.DocumentID("doc-1")
)

// fakeClient is a tiny in-memory table that understands the expressions the store builds.
type fakeClient struct {
	mu         sync.Mutex
	items      map[string]map[string]types.AttributeValue
	pageSize   int
	unprocOnce bool
	queryErr   error

	queries      int
	batchCalls   int
	batchSizes   []int
	updateInputs []*dynamodb.UpdateItemInput
}

func newFakeClient() *fakeClient {
	return &fakeClient{items: make(map[string]map[string]types.AttributeValue)}
}

func itemKey(item map[string]types.AttributeValue) string {
	return stringAttr(item, "PK") + "|" + stringAttr(item, "SK")
}

func (f *fakeClient) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.queryErr != nil {
		return nil, f.queryErr
	}

	var pk, prefix string
	for _, v := range in.ExpressionAttributeValues {
		s := v.(*types.AttributeValueMemberS).Value
		if strings.HasPrefix(s, "DOC#") {
			pk = s
		} else {
			prefix = s
		}
	}

	var matched []map[string]types.AttributeValue
	for _, item := range f.items {
		if stringAttr(item, "PK") == pk && strings.HasPrefix(stringAttr(item, "SK"), prefix) {
			matched = append(matched, item)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return stringAttr(matched[i], "SK") < stringAttr(matched[j], "SK") })

	if in.ExclusiveStartKey != nil {
		after := stringAttr(in.ExclusiveStartKey, "SK")
		i := sort.Search(len(matched), func(i int) bool { return stringAttr(matched[i], "SK") > after })
		matched = matched[i:]
	}

	out := &dynamodb.QueryOutput{Items: matched}
	if f.pageSize > 0 && len(matched) > f.pageSize {
		out.Items = matched[:f.pageSize]
		last := out.Items[len(out.Items)-1]
		out.LastEvaluatedKey = map[string]types.AttributeValue{"PK": last["PK"], "SK": last["SK"]}
	}
	return out, nil
}

func (f *fakeClient) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++

	requests := in.RequestItems[testTable]
	f.batchSizes = append(f.batchSizes, len(requests))

	var unprocessed []types.WriteRequest
	if f.unprocOnce && len(requests) > 1 {
		f.unprocOnce = false
		unprocessed = requests[len(requests)-1:]
		requests = requests[:len(requests)-1]
	}
	for _, r := range requests {
		switch {
		case r.PutRequest != nil:
			f.items[itemKey(r.PutRequest.Item)] = r.PutRequest.Item
		case r.DeleteRequest != nil:
			delete(f.items, itemKey(r.DeleteRequest.Key))
		}
	}

	out := &dynamodb.BatchWriteItemOutput{}
	if len(unprocessed) > 0 {
		out.UnprocessedItems = map[string][]types.WriteRequest{testTable: unprocessed}
	}
	return out, nil
}

func (f *fakeClient) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateInputs = append(f.updateInputs, in)

	item := map[string]types.AttributeValue{"PK": in.Key["PK"], "SK": in.Key["SK"]}
	if existing, ok := f.items[itemKey(item)]; ok {
		item = existing
	}
	assignments := strings.TrimPrefix(strings.TrimSpace(*in.UpdateExpression), "SET ")
	for _, assignment := range strings.Split(assignments, ", ") {
		parts := strings.SplitN(assignment, " = ", 2)
		if len(parts) != 2 {
			continue
		}
		item[in.ExpressionAttributeNames[strings.TrimSpace(parts[0])]] = in.ExpressionAttributeValues[strings.TrimSpace(parts[1])]
	}
	f.items[itemKey(item)] = item
	return &dynamodb.UpdateItemOutput{}, nil
}

func newNode(label string) *entities.Node {
	return &entities.Node{
		ID:       valueobjects.NewNodeID(),
		Variant:  entities.VariantSticky,
		Position: valueobjects.Position{X: 10, Y: 20},
		Payload:  entities.Payload{Label: label, Colors: entities.Colors{Fill: "#fff59d"}},
	}
}

func TestDocumentStore_SelectMissingDocument(t *testing.T) {
	store := NewDocumentStore(newFakeClient(), testTable, nil)

	_, err := store.SelectDocument(context.Background(), docID)

	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestDocumentStore_RoundTrip(t *testing.T) {
	// Arrange
	ctx := context.Background()
	client := newFakeClient()
	client.pageSize = 2
	store := NewDocumentStore(client, testTable, nil)

	frame := &entities.Node{
		ID:       valueobjects.NewNodeID(),
		Variant:  entities.VariantFrame,
		Position: valueobjects.Position{X: 0, Y: 0},
		Size:     &valueobjects.Size{Width: 400, Height: 300},
		Payload:  entities.Payload{Label: "Sprint", Preset: entities.FramePreset("custom")},
	}
	child := newNode("inside")
	child.ParentID = frame.ID
	edge := entities.NewEdge(frame.ID, child.ID)
	edge.Label = "owns"
	modified := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

	// Act
	require.NoError(t, store.UpsertNodes(ctx, docID, []*entities.Node{frame, child}))
	require.NoError(t, store.UpsertEdges(ctx, docID, []*entities.Edge{edge}))
	require.NoError(t, store.UpdateDocumentMeta(ctx, docID, ports.DocumentMeta{Title: "Board", ModifiedAt: modified}))
	rec, err := store.SelectDocument(ctx, docID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "Board", rec.Title)
	assert.True(t, modified.Equal(rec.ModifiedAt))
	require.Len(t, rec.Nodes, 2)
	byID := map[valueobjects.NodeID]*entities.Node{}
	for _, n := range rec.Nodes {
		byID[n.ID] = n
	}
	assert.Equal(t, frame, byID[frame.ID])
	assert.Equal(t, child, byID[child.ID])
	require.Len(t, rec.Edges, 1)
	assert.Equal(t, edge, rec.Edges[0])
	assert.Greater(t, client.queries, 1, "query follows LastEvaluatedKey")
}

func TestDocumentStore_UpsertChunksBatches(t *testing.T) {
	client := newFakeClient()
	store := NewDocumentStore(client, testTable, nil)
	nodes := make([]*entities.Node, 60)
	for i := range nodes {
		nodes[i] = newNode("n")
	}

	require.NoError(t, store.UpsertNodes(context.Background(), docID, nodes))

	assert.Equal(t, []int{25, 25, 10}, client.batchSizes)
	assert.Len(t, client.items, 60)
}

func TestDocumentStore_RetriesUnprocessedItems(t *testing.T) {
	client := newFakeClient()
	client.unprocOnce = true
	store := NewDocumentStore(client, testTable, nil)

	require.NoError(t, store.UpsertNodes(context.Background(), docID, []*entities.Node{newNode("a"), newNode("b")}))

	assert.Equal(t, 2, client.batchCalls)
	assert.Len(t, client.items, 2)
}

func TestDocumentStore_DeleteByExclusion(t *testing.T) {
	// Arrange
	ctx := context.Background()
	client := newFakeClient()
	store := NewDocumentStore(client, testTable, nil)
	a, b, c := newNode("a"), newNode("b"), newNode("c")
	ab, bc := entities.NewEdge(a.ID, b.ID), entities.NewEdge(b.ID, c.ID)
	require.NoError(t, store.UpsertNodes(ctx, docID, []*entities.Node{a, b, c}))
	require.NoError(t, store.UpsertEdges(ctx, docID, []*entities.Edge{ab, bc}))
	require.NoError(t, store.UpdateDocumentMeta(ctx, docID, ports.DocumentMeta{Title: "t"}))

	// Act
	require.NoError(t, store.DeleteEdgesExcept(ctx, docID, []valueobjects.EdgeID{ab.ID}))
	require.NoError(t, store.DeleteNodesExcept(ctx, docID, []valueobjects.NodeID{a.ID, b.ID}))

	// Assert
	rec, err := store.SelectDocument(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, "t", rec.Title, "metadata row survives exclusion deletes")
	assert.Len(t, rec.Nodes, 2)
	require.Len(t, rec.Edges, 1)
	assert.Equal(t, ab.ID, rec.Edges[0].ID)
}

func TestDocumentStore_DeleteNothingSkipsBatch(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	store := NewDocumentStore(client, testTable, nil)
	n := newNode("keep")
	require.NoError(t, store.UpsertNodes(ctx, docID, []*entities.Node{n}))
	calls := client.batchCalls

	require.NoError(t, store.DeleteNodesExcept(ctx, docID, []valueobjects.NodeID{n.ID}))

	assert.Equal(t, calls, client.batchCalls)
}

func TestDocumentStore_WrapsClientErrors(t *testing.T) {
	client := newFakeClient()
	client.queryErr = errors.New("throttled")
	store := NewDocumentStore(client, testTable, nil)

	_, err := store.SelectDocument(context.Background(), docID)

	require.Error(t, err)
	assert.True(t, pkgerrors.IsTransient(err))
	assert.Contains(t, err.Error(), "throttled")
}
