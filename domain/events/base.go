package events

import (
	"time"

	"canvas-engine/domain/core/valueobjects"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

const (
	TypeDocumentOpened = "document.opened"
	TypeDocumentSaved  = "document.saved"
	TypeSaveFailed     = "document.save_failed"
	TypeDocumentClosed = "document.closed"
)

// DocumentOpened is raised when an editing session loads a document
type DocumentOpened struct {
	BaseEvent
	DocumentID valueobjects.DocumentID `json:"document_id"`
	NodeCount  int                     `json:"node_count"`
	EdgeCount  int                     `json:"edge_count"`
}

// NewDocumentOpened creates a DocumentOpened event
func NewDocumentOpened(docID valueobjects.DocumentID, nodes, edges int, timestamp time.Time) DocumentOpened {
	return DocumentOpened{
		BaseEvent: BaseEvent{
			AggregateID: docID.String(),
			EventType:   TypeDocumentOpened,
			Timestamp:   timestamp,
			Version:     1,
		},
		DocumentID: docID,
		NodeCount:  nodes,
		EdgeCount:  edges,
	}
}

// DocumentSaved is raised after the remote store accepted a save
type DocumentSaved struct {
	BaseEvent
	DocumentID  valueobjects.DocumentID `json:"document_id"`
	Title       string                  `json:"title"`
	Fingerprint string                  `json:"fingerprint"`
	NodeCount   int                     `json:"node_count"`
	EdgeCount   int                     `json:"edge_count"`
}

// NewDocumentSaved creates a DocumentSaved event
func NewDocumentSaved(docID valueobjects.DocumentID, title, fingerprint string, nodes, edges int, timestamp time.Time) DocumentSaved {
	return DocumentSaved{
		BaseEvent: BaseEvent{
			AggregateID: docID.String(),
			EventType:   TypeDocumentSaved,
			Timestamp:   timestamp,
			Version:     1,
		},
		DocumentID:  docID,
		Title:       title,
		Fingerprint: fingerprint,
		NodeCount:   nodes,
		EdgeCount:   edges,
	}
}

// SaveFailed is raised when a save gives up after exhausting its retries
type SaveFailed struct {
	BaseEvent
	DocumentID valueobjects.DocumentID `json:"document_id"`
	Attempts   int                     `json:"attempts"`
	Reason     string                  `json:"reason"`
}

// NewSaveFailed creates a SaveFailed event
func NewSaveFailed(docID valueobjects.DocumentID, attempts int, reason string, timestamp time.Time) SaveFailed {
	return SaveFailed{
		BaseEvent: BaseEvent{
			AggregateID: docID.String(),
			EventType:   TypeSaveFailed,
			Timestamp:   timestamp,
			Version:     1,
		},
		DocumentID: docID,
		Attempts:   attempts,
		Reason:     reason,
	}
}

// DocumentClosed is raised when an editing session ends
type DocumentClosed struct {
	BaseEvent
	DocumentID valueobjects.DocumentID `json:"document_id"`
	// Dirty is set when the session closed with unsaved changes.
	Dirty bool `json:"dirty"`
}

// NewDocumentClosed creates a DocumentClosed event
func NewDocumentClosed(docID valueobjects.DocumentID, dirty bool, timestamp time.Time) DocumentClosed {
	return DocumentClosed{
		BaseEvent: BaseEvent{
			AggregateID: docID.String(),
			EventType:   TypeDocumentClosed,
			Timestamp:   timestamp,
			Version:     1,
		},
		DocumentID: docID,
		Dirty:      dirty,
	}
}
