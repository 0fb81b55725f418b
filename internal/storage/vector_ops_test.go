package storage

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/vecindex/pkg/types"
)

func TestSerializeVector_RoundTrip(t *testing.T) {
	vec := []float32{0, 1.5, -2.25, math.MaxFloat32, math.SmallestNonzeroFloat32}
	blob := serializeVector(vec)
	assert.Len(t, blob, len(vec)*4)
	assert.Equal(t, vec, deserializeVector(blob))
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch", []float32{1}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestQuery_RankingAndFilter(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	coll, err := store.GetOrCreateCollection(ctx, "c1", nil)
	require.NoError(t, err)

	docs := []types.Document{
		{ID: "a-0", Path: "/a", Text: "a", Vector: []float32{1, 0, 0}},
		{ID: "b-0", Path: "/b", Text: "b", Vector: []float32{0.9, 0.1, 0}},
		{ID: "c-0", Path: "/c", Text: "c", Vector: []float32{0, 0, 1}},
		{ID: "d-0", Path: "/d", Text: "d", Vector: []float32{1, 0}}, // other dimension
	}
	require.NoError(t, coll.Upsert(ctx, docs))

	hits, err := coll.Query(ctx, []float32{1, 0, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "a-0", hits[0].ID)
	assert.Equal(t, "b-0", hits[1].ID)
	assert.Equal(t, "c-0", hits[2].ID)
	assert.InDelta(t, 1, hits[2].Distance, 1e-9)

	hits, err = coll.Query(ctx, []float32{1, 0, 0}, 1, &QueryFilter{ExcludePaths: []string{"/a"}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "/b", hits[0].Path)
}

func TestApplyMigrations_Idempotent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, ApplyMigrations(ctx, store.db))

	v, err := schemaVersion(ctx, store.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v.String())

	var n int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&n))
	assert.Equal(t, len(AllMigrations), n)
}

func TestRollbackMigration(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, RollbackMigration(ctx, store.db))
	v, err := schemaVersion(ctx, store.db)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v.String())

	require.NoError(t, RollbackMigration(ctx, store.db))
	v, err = schemaVersion(ctx, store.db)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0", v.String())

	require.NoError(t, ApplyMigrations(ctx, store.db))
	_, err = store.GetOrCreateCollection(ctx, "c1", nil)
	require.NoError(t, err)
}
