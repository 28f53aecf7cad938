package index

import (
	"errors"
	"fmt"

	"github.com/oceanbase/agentmem-go/pkg/storage"
)

var (
	// ErrNotFound is returned when a record ID is not in the index.
	ErrNotFound = storage.ErrNotFound

	// ErrStorageOperation wraps failures of the embedder or the record store.
	ErrStorageOperation = errors.New("storage operation failed")
)

// IndexError represents an error from an index operation.
//
// It contains the operation name and the underlying error.
type IndexError struct {
	// Op is the operation that failed (e.g., "AddRecord", "Persist").
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a string representation of the error.
func (e *IndexError) Error() string {
	return fmt.Sprintf("index: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *IndexError) Unwrap() error {
	return e.Err
}

func newIndexError(op string, err error) *IndexError {
	return &IndexError{Op: op, Err: err}
}

// storageError marks err as a storage failure while keeping it inspectable.
func storageError(op string, err error) *IndexError {
	return newIndexError(op, fmt.Errorf("%w: %w", ErrStorageOperation, err))
}
