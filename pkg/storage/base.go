// Package storage provides interfaces and types for record storage backends.
//
// It defines the RecordStore interface that all storage implementations must
// satisfy, along with the Record type they persist.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when no record has the requested ID.
var ErrNotFound = errors.New("record not found")

// Record is a text document with metadata and an embedding.
type Record struct {
	// ID is the unique identifier of the record.
	ID string

	// Text is the content of the record.
	Text string

	// Metadata contains additional structured information.
	Metadata map[string]interface{}

	// ExcludedLLMKeys lists metadata keys hidden from language models.
	ExcludedLLMKeys []string

	// ExcludedEmbedKeys lists metadata keys left out of the embedded text.
	ExcludedEmbedKeys []string

	// Embedding is the vector embedding for similarity search.
	Embedding []float64

	// Searchable is false once the record has been detached from search.
	Searchable bool

	// CreatedAt is when the row was written (wall clock).
	CreatedAt time.Time

	// Score is the similarity score from search operations.
	Score float64
}

// RecordStore defines the interface for record storage backends.
//
// All storage implementations (SQLite, PostgreSQL, OceanBase) must implement this interface.
type RecordStore interface {
	// Insert inserts a record. Inserting an existing ID fails.
	Insert(ctx context.Context, record *Record) error

	// Get retrieves a record by ID, returning ErrNotFound if absent.
	Get(ctx context.Context, id string) (*Record, error)

	// Exists reports whether a record with the ID is stored.
	Exists(ctx context.Context, id string) (bool, error)

	// List returns every record in insertion order.
	List(ctx context.Context) ([]*Record, error)

	// Delete removes the records with the given IDs. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error

	// Detach excludes the records from Search while keeping them stored.
	Detach(ctx context.Context, ids []string) error

	// Search performs vector similarity search over searchable records.
	//
	// Returns matching records sorted by similarity (highest first).
	Search(ctx context.Context, embedding []float64, opts *SearchOptions) ([]*Record, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Close closes the store and releases resources.
	Close() error
}

// Snapshotter is implemented by stores that can copy their data to a file.
type Snapshotter interface {
	// Snapshot writes a consistent copy of the store to path.
	Snapshot(ctx context.Context, path string) error
}

// Restorer is implemented by stores that can read back a file written by
// Snapshot.
type Restorer interface {
	// Restore inserts the records of the snapshot at path. Records whose ID
	// is already stored are kept as they are.
	Restore(ctx context.Context, path string) error
}

// SearchOptions contains options for search operations.
type SearchOptions struct {
	// Limit sets the maximum number of results to return.
	Limit int

	// Filters restricts results to records whose metadata values equal these.
	Filters map[string]interface{}

	// IDs restricts results to these record IDs when non-empty.
	IDs []string
}
