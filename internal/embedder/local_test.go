package embedder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot // inputs are unit length
}

func TestLocalProvider_Deterministic(t *testing.T) {
	p, err := NewLocalProvider(nil, NewCache(10))
	require.NoError(t, err)
	ctx := context.Background()

	a, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "func ParseFile(path string) error"})
	require.NoError(t, err)
	b, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "func ParseFile(path string) error"})
	require.NoError(t, err)

	assert.Equal(t, a.Vector, b.Vector)
	assert.Len(t, a.Vector, LocalDimension)
	assert.Equal(t, ProviderLocal, a.Provider)
	assert.InDelta(t, 1.0, cosine(a.Vector, a.Vector), 1e-5)
}

func TestLocalProvider_SharedVocabularyIsCloser(t *testing.T) {
	p, err := NewLocalProvider(nil, nil)
	require.NoError(t, err)
	ctx := context.Background()

	resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{
		"open database connection pool",
		"close the database connection",
		"render html template for the browser",
	}})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 3)

	near := cosine(resp.Embeddings[0].Vector, resp.Embeddings[1].Vector)
	far := cosine(resp.Embeddings[0].Vector, resp.Embeddings[2].Vector)
	assert.Greater(t, near, far)
}

func TestLocalProvider_Dimension(t *testing.T) {
	p, err := NewLocalProvider(map[string]any{ParamDimension: 64.0}, nil)
	require.NoError(t, err)
	assert.Equal(t, 64, p.Dimension())

	emb, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "x"})
	require.NoError(t, err)
	assert.Len(t, emb.Vector, 64)

	_, err = NewLocalProvider(map[string]any{ParamDimension: -1}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewLocalProvider(map[string]any{ParamDimension: "lots"}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLocalProvider_Errors(t *testing.T) {
	p, err := NewLocalProvider(nil, nil)
	require.NoError(t, err)

	_, err = p.GenerateEmbedding(context.Background(), EmbeddingRequest{})
	assert.ErrorIs(t, err, ErrEmptyText)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"a"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalProvider_PunctuationOnly(t *testing.T) {
	p, err := NewLocalProvider(nil, nil)
	require.NoError(t, err)

	emb, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "{}();"})
	require.NoError(t, err)
	for _, v := range emb.Vector {
		assert.Zero(t, v)
	}
}
