package types

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across layers.
var (
	// ErrNotFound means the project has no collection yet.
	ErrNotFound = errors.New("collection not found")

	// ErrConnectivity means the vector store could not be reached.
	ErrConnectivity = errors.New("vector store unreachable")

	// ErrCancelled means the run was interrupted before it finished.
	ErrCancelled = errors.New("sync cancelled")

	// ErrEmbeddingMismatch means the collection was built with a different
	// embedding function than the one configured.
	ErrEmbeddingMismatch = errors.New("embedding function mismatch")
)

// CollisionError reports a collection whose id matches ours but whose
// recorded owner does not.
type CollisionError struct {
	Collection string
	Reason     string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("collection %s exists but was not created by this user/host (%s); this is likely a hash collision, please file a bug report",
		e.Collection, e.Reason)
}

// FileError wraps a failure that stopped one file from being indexed.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}
