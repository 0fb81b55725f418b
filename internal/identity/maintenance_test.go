package identity

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/vecindex/internal/storage"
	"github.com/dshills/vecindex/pkg/types"
)

func createFor(t *testing.T, store storage.CollectionStore, owner Owner, path string, docs int) storage.Collection {
	t.Helper()
	id, err := ResolveFor(owner, path)
	require.NoError(t, err)
	coll, err := Ensure(t.Context(), store, id, Embedding{Name: "local"}, true)
	require.NoError(t, err)
	for i := range docs {
		require.NoError(t, coll.Upsert(t.Context(), []types.Document{{
			ID: filepath.Base(path) + string(rune('a'+i)), Path: filepath.Join(path, "f.go"), Text: "x", Vector: []float32{1},
		}}))
	}
	return coll
}

func TestOwned(t *testing.T) {
	store := setupStore(t)
	mine := createFor(t, store, testOwner, t.TempDir(), 1)
	createFor(t, store, Owner{User: "mallory", Hostname: "elsewhere"}, t.TempDir(), 1)

	owned, err := Owned(context.Background(), store, testOwner)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, mine.Name(), owned[0].Name())
}

func TestClean(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	live := createFor(t, store, testOwner, t.TempDir(), 2)
	empty := createFor(t, store, testOwner, t.TempDir(), 0)
	gone := createFor(t, store, testOwner, filepath.Join(t.TempDir(), "deleted"), 1)
	foreign := createFor(t, store, Owner{User: "mallory", Hostname: "elsewhere"}, t.TempDir(), 0)

	removed, err := Clean(ctx, store, testOwner, true)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, empty.Name(), removed[0].Collection)
	assert.Equal(t, "empty", removed[0].Reason)

	removed, err = Clean(ctx, store, testOwner, false)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, gone.Name(), removed[0].Collection)
	assert.Equal(t, "project removed", removed[0].Reason)

	_, err = store.GetCollection(ctx, live.Name())
	assert.NoError(t, err)
	_, err = store.GetCollection(ctx, foreign.Name())
	assert.NoError(t, err, "foreign collections are never deleted")
}
