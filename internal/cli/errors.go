package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/vecindex/pkg/types"
)

// Describe turns an error into the single-line message shown to users.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var collision *types.CollisionError
	switch {
	case errors.Is(err, types.ErrNotFound):
		return "this project has no collection; run `vecindex vectorise` first"
	case errors.As(err, &collision):
		return collision.Error()
	case errors.Is(err, types.ErrEmbeddingMismatch):
		return oneLine(err)
	case errors.Is(err, types.ErrCancelled):
		return "interrupted; files indexed so far were kept, run `vecindex update` to finish"
	case errors.Is(err, types.ErrConnectivity):
		return "cannot reach the vector store: " + oneLine(err)
	}

	if files := fileErrors(err); len(files) > 0 {
		if len(files) == 1 {
			return "failed to index " + oneLine(files[0])
		}
		return fmt.Sprintf("failed to index %d files, first: %s", len(files), oneLine(files[0]))
	}
	return oneLine(err)
}

// fileErrors collects the per-file failures of a joined sync error.
func fileErrors(err error) []*types.FileError {
	var out []*types.FileError
	var fe *types.FileError
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range j.Unwrap() {
			if errors.As(e, &fe) {
				out = append(out, fe)
			}
		}
		return out
	}
	if errors.As(err, &fe) {
		out = append(out, fe)
	}
	return out
}

func oneLine(err error) string {
	return strings.Join(strings.Fields(err.Error()), " ")
}
