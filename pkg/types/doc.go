// Package types provides shared type definitions for vecindex.
//
// These types cross package boundaries: text chunks produced by the chunker,
// documents written to the vector store, sync statistics reported at the end
// of a run and the error taxonomy every layer wraps with %w.
//
// # Errors
//
// Callers classify failures with errors.Is and errors.As:
//
//	if errors.Is(err, types.ErrNotFound) {
//	    // no collection yet, suggest "vecindex vectorise"
//	}
//
//	var collision *types.CollisionError
//	if errors.As(err, &collision) {
//	    // a collection with our id belongs to someone else
//	}
//
// Per-file failures during a sync are *FileError values joined with
// errors.Join, so each one can still be inspected.
package types
