package identity

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/dshills/vecindex/internal/storage"
)

// Owned returns the collections in store created by owner.
func Owned(ctx context.Context, store storage.CollectionStore, owner Owner) ([]storage.Collection, error) {
	all, err := store.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	var out []storage.Collection
	for _, c := range all {
		if ok, _ := owner.Owns(c.Metadata()); ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// Removed describes one collection deleted by Clean.
type Removed struct {
	Collection string `json:"collection"`
	Path       string `json:"path"`
	Reason     string `json:"reason"`
}

// Clean deletes owner's collections that are empty or whose project
// directory no longer exists. With emptyOnly set, only empty collections
// are removed.
func Clean(ctx context.Context, store storage.CollectionStore, owner Owner, emptyOnly bool) ([]Removed, error) {
	owned, err := Owned(ctx, store, owner)
	if err != nil {
		return nil, err
	}

	var removed []Removed
	for _, c := range owned {
		path := c.Metadata().String(storage.MetaPath)
		reason, err := staleReason(ctx, c, path, emptyOnly)
		if err != nil {
			return removed, err
		}
		if reason == "" {
			continue
		}
		if err := store.DeleteCollection(ctx, c.Name()); err != nil {
			return removed, fmt.Errorf("failed to delete %s: %w", c.Name(), err)
		}
		removed = append(removed, Removed{Collection: c.Name(), Path: path, Reason: reason})
	}
	return removed, nil
}

func staleReason(ctx context.Context, c storage.Collection, path string, emptyOnly bool) (string, error) {
	n, err := c.Count(ctx)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "empty", nil
	}
	if emptyOnly || path == "" {
		return "", nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return "project removed", nil
	}
	return "", nil
}
