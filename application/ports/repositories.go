package ports

import (
	"context"
	"time"

	"canvas-engine/domain/core/entities"
	"canvas-engine/domain/core/valueobjects"
	"canvas-engine/domain/events"
)

// DocumentRecord is a document as stored remotely: one metadata row plus the node and
// edge collections keyed by document id.
type DocumentRecord struct {
	ID         valueobjects.DocumentID
	Title      string
	ModifiedAt time.Time
	Nodes      []*entities.Node
	Edges      []*entities.Edge
}

// DocumentMeta is the document-level metadata written on every save.
type DocumentMeta struct {
	Title      string
	ModifiedAt time.Time
}

// DocumentStore defines the remote row store the sync engine reconciles against.
// This is a port in hexagonal architecture - the domain doesn't know about the implementation.
// Every error is treated as retryable by the caller.
type DocumentStore interface {
	// SelectDocument loads a document. A missing document is a NotFound error.
	SelectDocument(ctx context.Context, id valueobjects.DocumentID) (*DocumentRecord, error)

	// UpsertNodes creates or replaces the given nodes
	UpsertNodes(ctx context.Context, docID valueobjects.DocumentID, nodes []*entities.Node) error

	// DeleteNodesExcept removes every stored node of the document whose id is not in keep
	DeleteNodesExcept(ctx context.Context, docID valueobjects.DocumentID, keep []valueobjects.NodeID) error

	// UpsertEdges creates or replaces the given edges
	UpsertEdges(ctx context.Context, docID valueobjects.DocumentID, edges []*entities.Edge) error

	// DeleteEdgesExcept removes every stored edge of the document whose id is not in keep
	DeleteEdgesExcept(ctx context.Context, docID valueobjects.DocumentID, keep []valueobjects.EdgeID) error

	// UpdateDocumentMeta writes title and modification time, creating the row if needed
	UpdateDocumentMeta(ctx context.Context, docID valueobjects.DocumentID, meta DocumentMeta) error
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
