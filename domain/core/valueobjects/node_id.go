package valueobjects

import (
	"github.com/google/uuid"
)

// NodeID identifies a node on the canvas. Values are opaque: ids produced by this
// package are UUIDs, ids loaded from the store are accepted as-is.
type NodeID string

// NewNodeID creates a new random NodeID
func NewNodeID() NodeID {
	return NodeID(uuid.New().String())
}

// String returns the string representation of the NodeID
func (id NodeID) String() string {
	return string(id)
}

// IsZero checks if the NodeID is the zero value
func (id NodeID) IsZero() bool {
	return id == ""
}

// EdgeID identifies an edge.
type EdgeID string

// NewEdgeID creates a new random EdgeID
func NewEdgeID() EdgeID {
	return EdgeID(uuid.New().String())
}

func (id EdgeID) String() string {
	return string(id)
}

// IsZero checks if the EdgeID is the zero value
func (id EdgeID) IsZero() bool {
	return id == ""
}

// DocumentID identifies a board document in the remote store.
type DocumentID string

func (id DocumentID) String() string {
	return string(id)
}

// IsZero checks if the DocumentID is the zero value
func (id DocumentID) IsZero() bool {
	return id == ""
}

// NodeIDsToStrings converts ids for store calls that take plain keys.
func NodeIDsToStrings(ids []NodeID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// EdgeIDsToStrings converts ids for store calls that take plain keys.
func EdgeIDsToStrings(ids []EdgeID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
