// Package source defines the read-only content hierarchy consumed by
// the extractor, and the error class for unreadable subtrees.
package source

import (
	"context"
	"fmt"
)

// Node is one node of the externally supplied content tree.
type Node struct {
	ID       string
	Title    string
	Text     string
	Children []string
}

// TreeSource resolves node identifiers into nodes. Implementations
// treat the hierarchy as read-only input.
type TreeSource interface {
	Node(ctx context.Context, id string) (*Node, error)
}

// AccessError indicates a node or subtree could not be read (missing,
// permission denied, transport failure). Extraction recovers from it
// by skipping the subtree.
type AccessError struct {
	NodeID string
	Err    error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("access node %s: %v", e.NodeID, e.Err)
}

func (e *AccessError) Unwrap() error { return e.Err }
