package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/vecindex/internal/embedder"
	"github.com/dshills/vecindex/internal/storage"
	"github.com/dshills/vecindex/pkg/types"
)

var testOwner = Owner{User: "alice", Hostname: "devbox"}

func setupStore(t *testing.T) *storage.SQLiteStore {
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCollectionID_Deterministic(t *testing.T) {
	a := CollectionID(testOwner, "/home/alice/project")
	assert.Equal(t, a, CollectionID(testOwner, "/home/alice/project"))
	assert.Len(t, a, 63)

	assert.NotEqual(t, a, CollectionID(testOwner, "/home/alice/other"))
	assert.NotEqual(t, a, CollectionID(Owner{User: "bob", Hostname: "devbox"}, "/home/alice/project"))
	assert.NotEqual(t, a, CollectionID(Owner{User: "alice", Hostname: "laptop"}, "/home/alice/project"))
}

func TestCollectionID_DistinctPaths(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	seen := map[string]string{}
	for i := 0; i < 1000; i++ {
		p := fmt.Sprintf("/src/%d/%x", i, rng.Int63())
		id := CollectionID(testOwner, p)
		if prev, ok := seen[id]; ok {
			t.Fatalf("paths %s and %s share id %s", prev, p, id)
		}
		seen[id] = p
	}
}

func TestResolveFor_NormalisesPath(t *testing.T) {
	dir := t.TempDir()
	a, err := ResolveFor(testOwner, dir)
	require.NoError(t, err)
	b, err := ResolveFor(testOwner, filepath.Join(dir, "sub", ".."))
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, dir, a.ProjectPath)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandPath("~/code")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "code"), got)

	t.Setenv("VECINDEX_TEST_DIR", "/tmp/vi")
	got, err = ExpandPath("$VECINDEX_TEST_DIR/x")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/vi/x", got)
}

func TestCurrentOwner_UserFallback(t *testing.T) {
	t.Setenv("USER", "")
	t.Setenv("USERNAME", "")
	o, err := CurrentOwner()
	require.NoError(t, err)
	assert.Equal(t, DefaultUser, o.User)

	t.Setenv("USERNAME", "winuser")
	o, err = CurrentOwner()
	require.NoError(t, err)
	assert.Equal(t, "winuser", o.User)

	t.Setenv("USER", "unixuser")
	o, err = CurrentOwner()
	require.NoError(t, err)
	assert.Equal(t, "unixuser", o.User)
}

func TestEnsure_NotFound(t *testing.T) {
	store := setupStore(t)
	id, err := ResolveFor(testOwner, t.TempDir())
	require.NoError(t, err)

	_, err = Ensure(context.Background(), store, id, Embedding{Name: "local"}, false)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestEnsure_CreateStampsMetadata(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	id, err := ResolveFor(testOwner, t.TempDir())
	require.NoError(t, err)

	emb := Embedding{Name: "local", Params: map[string]any{"dimension": 64}}
	coll, err := Ensure(ctx, store, id, emb, true)
	require.NoError(t, err)
	assert.Equal(t, id.ID, coll.Name())

	meta := coll.Metadata()
	assert.Equal(t, id.ProjectPath, meta.String(storage.MetaPath))
	assert.Equal(t, "devbox", meta.String(storage.MetaHostname))
	assert.Equal(t, "alice", meta.String(storage.MetaUsername))
	assert.Equal(t, CreatedBy, meta.String(storage.MetaCreatedBy))
	assert.Equal(t, "local", meta.String(storage.MetaEmbeddingFunction))

	// Second lookup without create finds it
	again, err := Ensure(ctx, store, id, emb, false)
	require.NoError(t, err)
	assert.Equal(t, coll.Name(), again.Name())
}

func TestEnsure_Collision(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	id, err := ResolveFor(testOwner, t.TempDir())
	require.NoError(t, err)

	foreign := storage.Metadata{
		storage.MetaPath:      "/elsewhere",
		storage.MetaHostname:  "otherhost",
		storage.MetaCreatedBy: CreatedBy,
		storage.MetaUsername:  "alice",
	}
	_, err = store.GetOrCreateCollection(ctx, id.ID, foreign)
	require.NoError(t, err)

	for _, create := range []bool{true, false} {
		_, err = Ensure(ctx, store, id, Embedding{Name: "local"}, create)
		var collision *types.CollisionError
		require.True(t, errors.As(err, &collision), "create=%v", create)
		assert.Equal(t, id.ID, collision.Collection)
		assert.Contains(t, collision.Reason, "hostname")
	}

	// Foreign metadata untouched
	coll, err := store.GetCollection(ctx, id.ID)
	require.NoError(t, err)
	assert.Equal(t, "/elsewhere", coll.Metadata().String(storage.MetaPath))
}

func TestOwns(t *testing.T) {
	t.Setenv("USER", "alice")
	t.Setenv("USERNAME", "")
	good := storage.Metadata{
		storage.MetaHostname:  "devbox",
		storage.MetaCreatedBy: CreatedBy,
		storage.MetaUsername:  "alice",
	}
	ok, _ := testOwner.Owns(good)
	assert.True(t, ok)

	asDefault := storage.Metadata{
		storage.MetaHostname:  "devbox",
		storage.MetaCreatedBy: CreatedBy,
		storage.MetaUsername:  DefaultUser,
	}
	ok, _ = testOwner.Owns(asDefault)
	assert.True(t, ok)

	otherTool := storage.Metadata{
		storage.MetaHostname:  "devbox",
		storage.MetaCreatedBy: "SomethingElse",
		storage.MetaUsername:  "alice",
	}
	ok, reason := testOwner.Owns(otherTool)
	assert.False(t, ok)
	assert.Contains(t, reason, "created-by")

	otherUser := storage.Metadata{
		storage.MetaHostname:  "devbox",
		storage.MetaCreatedBy: CreatedBy,
		storage.MetaUsername:  "mallory",
	}
	ok, reason = testOwner.Owns(otherUser)
	assert.False(t, ok)
	assert.Contains(t, reason, "username")
}

func TestEnsure_CredentialsNotStamped(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	id, err := ResolveFor(testOwner, t.TempDir())
	require.NoError(t, err)

	emb := Embedding{Name: "openai", Params: map[string]any{
		embedder.ParamAPIKey: "sk-secret",
		"model":              "text-embedding-3-small",
	}}
	coll, err := Ensure(ctx, store, id, emb, true)
	require.NoError(t, err)

	params := coll.Metadata().Params()
	assert.NotContains(t, params, embedder.ParamAPIKey)
	assert.Equal(t, "text-embedding-3-small", params["model"])

	raw, err := json.Marshal(coll.Metadata())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "sk-secret")

	rotated := Embedding{Name: "openai", Params: map[string]any{
		embedder.ParamAPIKey: "sk-rotated",
		"model":              "text-embedding-3-small",
	}}
	ok, msg := VerifyEmbedding(coll, rotated)
	assert.True(t, ok)
	assert.Empty(t, msg)
}

func TestVerifyEmbedding(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	coll, err := store.GetOrCreateCollection(ctx, "c", storage.Metadata{
		storage.MetaEmbeddingFunction: "local",
		storage.MetaEmbeddingParams:   map[string]any{"dimension": 64},
	})
	require.NoError(t, err)

	ok, msg := VerifyEmbedding(coll, Embedding{Name: "local", Params: map[string]any{"dimension": 64}})
	assert.True(t, ok)
	assert.Empty(t, msg)

	ok, msg = VerifyEmbedding(coll, Embedding{Name: "local", Params: map[string]any{"dimension": 128}})
	assert.True(t, ok)
	assert.Contains(t, msg, "params")

	ok, msg = VerifyEmbedding(coll, Embedding{Name: "openai"})
	assert.False(t, ok)
	assert.Contains(t, msg, "openai")

	bare, err := store.GetOrCreateCollection(ctx, "bare", nil)
	require.NoError(t, err)
	ok, msg = VerifyEmbedding(bare, Embedding{Name: "anything"})
	assert.True(t, ok)
	assert.Empty(t, msg)
}
