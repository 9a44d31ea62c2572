// Package id defines TypeID-based identifiers for pool instances and job
// executions. IDs are K-sortable (UUIDv7-based), globally unique, and
// URL-safe in the format "prefix_suffix"; they exist for log correlation,
// not persistence.
package id

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies what an ID names.
type Prefix string

const (
	// PrefixWorker tags worker pool instance IDs.
	PrefixWorker Prefix = "wkr"
	// PrefixRun tags per-execution run IDs.
	PrefixRun Prefix = "run"
)

// ID is a prefix-qualified, globally unique, sortable identifier.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g., "run_01h2xcejqtf2nbrexx3vqjhp41")
// into an ID. Returns an error if the string is not valid.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{inner: tid, valid: true}, nil
}

// WorkerID identifies one pool instance (prefix: "wkr").
type WorkerID = ID

// RunID identifies one job execution (prefix: "run").
type RunID = ID

// NewWorkerID generates a new unique pool instance ID.
func NewWorkerID() ID { return New(PrefixWorker) }

// NewRunID generates a new unique execution ID.
func NewRunID() ID { return New(PrefixRun) }

// String returns the full TypeID string (prefix_suffix), or "" for Nil.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return i.inner.String()
}

// Prefix returns the ID's prefix, or "" for Nil.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}
	return Prefix(i.inner.Prefix())
}

// IsNil reports whether the ID is the zero value.
func (i ID) IsNil() bool { return !i.valid }
