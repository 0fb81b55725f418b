package searcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/vecindex/internal/embedder"
	"github.com/dshills/vecindex/internal/storage"
	"github.com/dshills/vecindex/pkg/types"
)

// mockEmbedder maps query text to fixed vectors.
type mockEmbedder struct {
	vectors map[string][]float32
	calls   atomic.Int32
	err     error
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	v, ok := m.vectors[req.Text]
	if !ok {
		v = []float32{1, 0, 0}
	}
	return &embedder.Embedding{Vector: v, Dimension: len(v), Provider: "mock", Model: "mock-model"}, nil
}

func (m *mockEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	out := make([]*embedder.Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := m.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return &embedder.BatchEmbeddingResponse{Embeddings: out}, nil
}

func (m *mockEmbedder) Dimension() int   { return 3 }
func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return "mock-model" }
func (m *mockEmbedder) Close() error     { return nil }

// setupCollection stores one chunk per entry of vectors, keyed by path.
func setupCollection(t *testing.T, chunks map[string][][]float32) storage.Collection {
	t.Helper()
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	coll, err := store.GetOrCreateCollection(t.Context(), "test", storage.Metadata{})
	require.NoError(t, err)

	var docs []types.Document
	for path, vecs := range chunks {
		for i, v := range vecs {
			docs = append(docs, types.Document{
				ID:     path + "-" + string(rune('0'+i)),
				Path:   path,
				Index:  i,
				Text:   "chunk",
				Vector: v,
			})
		}
	}
	require.NoError(t, coll.Upsert(t.Context(), docs))
	return coll
}

func TestSearch_RanksFilesByBestChunk(t *testing.T) {
	coll := setupCollection(t, map[string][][]float32{
		"/p/a.go": {{0, 1, 0}, {0.9, 0.1, 0}},
		"/p/b.go": {{1, 0, 0}},
		"/p/c.go": {{0, 0, 1}},
	})
	s := NewSearcher(&mockEmbedder{})

	resp, err := s.Search(t.Context(), coll, Request{Query: []string{"x"}, NResult: 2, Multiplier: 2})
	require.NoError(t, err)

	require.Len(t, resp.Results, 2)
	assert.Equal(t, "/p/b.go", resp.Results[0].Path)
	assert.InDelta(t, 0, resp.Results[0].Distance, 1e-6)
	assert.Equal(t, "/p/a.go", resp.Results[1].Path)
	assert.Equal(t, 4, resp.Chunks)
}

func TestSearch_UniquePaths(t *testing.T) {
	coll := setupCollection(t, map[string][][]float32{
		"/p/a.go": {{1, 0, 0}, {1, 0.01, 0}, {1, 0.02, 0}},
		"/p/b.go": {{0, 1, 0}},
	})
	s := NewSearcher(&mockEmbedder{})

	resp, err := s.Search(t.Context(), coll, Request{Query: []string{"x"}, NResult: 5, Multiplier: 10})
	require.NoError(t, err)

	paths := map[string]int{}
	for _, r := range resp.Results {
		paths[r.Path]++
	}
	assert.Equal(t, map[string]int{"/p/a.go": 1, "/p/b.go": 1}, paths)
}

func TestSearch_NoMultiplierFetchesNResultChunks(t *testing.T) {
	coll := setupCollection(t, map[string][][]float32{
		"/p/a.go": {{1, 0, 0}, {1, 0.01, 0}},
		"/p/b.go": {{0, 1, 0}},
	})
	s := NewSearcher(&mockEmbedder{})

	resp, err := s.Search(t.Context(), coll, Request{Query: []string{"x"}, NResult: 2, Multiplier: -1})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Chunks)
	require.Len(t, resp.Results, 1, "both chunks belong to a.go")
	assert.Equal(t, "/p/a.go", resp.Results[0].Path)
}

func TestSearch_Exclude(t *testing.T) {
	coll := setupCollection(t, map[string][][]float32{
		"/p/a.go": {{1, 0, 0}},
		"/p/b.go": {{0.9, 0.1, 0}},
	})
	s := NewSearcher(&mockEmbedder{})

	resp, err := s.Search(t.Context(), coll, Request{
		Query:   []string{"x"},
		NResult: 2,
		Root:    "/p",
		Exclude: []string{"a.go"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "/p/b.go", resp.Results[0].Path)
}

func TestSearch_EmptyCollection(t *testing.T) {
	coll := setupCollection(t, nil)
	s := NewSearcher(&mockEmbedder{})

	resp, err := s.Search(t.Context(), coll, Request{Query: []string{"x"}})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestSearch_EmptyQuery(t *testing.T) {
	coll := setupCollection(t, nil)
	s := NewSearcher(&mockEmbedder{})

	_, err := s.Search(t.Context(), coll, Request{Query: []string{" ", ""}})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestSearch_EmbedderError(t *testing.T) {
	coll := setupCollection(t, nil)
	s := NewSearcher(&mockEmbedder{err: embedder.ErrProviderFailed})

	_, err := s.Search(t.Context(), coll, Request{Query: []string{"x"}})
	assert.True(t, errors.Is(err, embedder.ErrProviderFailed))
}

func TestSearch_JoinsTermsAndCaches(t *testing.T) {
	coll := setupCollection(t, map[string][][]float32{
		"/p/a.go": {{1, 0, 0}},
		"/p/b.go": {{0, 1, 0}},
	})
	emb := &mockEmbedder{vectors: map[string][]float32{"find config": {0, 1, 0}}}
	s := NewSearcher(emb)

	resp, err := s.Search(t.Context(), coll, Request{Query: []string{"find", "config"}})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "/p/b.go", resp.Results[0].Path)
	assert.False(t, resp.CacheHit)

	resp, err = s.Search(t.Context(), coll, Request{Query: []string{"find", "config"}})
	require.NoError(t, err)
	assert.True(t, resp.CacheHit)
	assert.Equal(t, int32(1), emb.calls.Load())

	s.InvalidateCache()
	_, err = s.Search(t.Context(), coll, Request{Query: []string{"find", "config"}})
	require.NoError(t, err)
	assert.Equal(t, int32(2), emb.calls.Load())
}

func TestSearch_WithDocument(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present.go")
	require.NoError(t, os.WriteFile(present, []byte("package present\n"), 0o644))
	missing := filepath.Join(dir, "missing.go")

	coll := setupCollection(t, map[string][][]float32{
		present: {{1, 0, 0}},
		missing: {{0.9, 0.1, 0}},
	})
	s := NewSearcher(&mockEmbedder{})

	resp, err := s.Search(t.Context(), coll, Request{Query: []string{"x"}, NResult: 2, WithDocument: true})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, present, resp.Results[0].Path)
	assert.Equal(t, "package present\n", resp.Results[0].Document)
}

func TestChunkLimit(t *testing.T) {
	assert.Equal(t, 3, chunkLimit(3, 0))
	assert.Equal(t, 3, chunkLimit(3, -1))
	assert.Equal(t, 30, chunkLimit(3, 10))
}

func TestRankFiles_TieBreaksByPath(t *testing.T) {
	got := rankFiles([]storage.Hit{
		{Path: "b", Distance: 0.5},
		{Path: "a", Distance: 0.5},
		{Path: "a", Distance: 0.7},
	}, 10)
	assert.Equal(t, []types.QueryResult{{Path: "a", Distance: 0.5}, {Path: "b", Distance: 0.5}}, got)
}
