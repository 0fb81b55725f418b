package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dshills/vecindex/pkg/types"
)

// DefaultMaxBatchSize is the largest number of documents accepted by a
// single Upsert. It bounds the size of one write transaction.
const DefaultMaxBatchSize = 5461

// CollectionStore manages named collections of embedded documents.
type CollectionStore interface {
	// GetCollection returns types.ErrNotFound (wrapped) if name does not exist.
	GetCollection(ctx context.Context, name string) (Collection, error)
	// GetOrCreateCollection creates the collection with meta if absent.
	// An existing collection keeps its recorded metadata.
	GetOrCreateCollection(ctx context.Context, name string, meta Metadata) (Collection, error)
	ListCollections(ctx context.Context) ([]Collection, error)
	DeleteCollection(ctx context.Context, name string) error
	MaxBatchSize(ctx context.Context) (int, error)
	Heartbeat(ctx context.Context) error
	Close() error
}

// Collection is one project's set of chunk documents.
type Collection interface {
	Name() string
	Metadata() Metadata
	// GetMetadata returns one entry per stored chunk.
	GetMetadata(ctx context.Context) ([]types.DocumentMeta, error)
	// Upsert inserts or replaces documents by ID.
	Upsert(ctx context.Context, docs []types.Document) error
	// Delete removes documents matching any condition in the filter and
	// returns the number removed.
	Delete(ctx context.Context, filter DeleteFilter) (int, error)
	Query(ctx context.Context, vector []float32, limit int, filter *QueryFilter) ([]Hit, error)
	Count(ctx context.Context) (int, error)
}

// DeleteFilter selects documents by path or by ID.
type DeleteFilter struct {
	Paths []string
	IDs   []string
}

// Empty reports whether the filter selects nothing.
func (f DeleteFilter) Empty() bool {
	return len(f.Paths) == 0 && len(f.IDs) == 0
}

// QueryFilter narrows a vector query.
type QueryFilter struct {
	ExcludePaths []string
}

// Hit is one chunk returned by a vector query. Distance is cosine distance,
// lower is closer.
type Hit struct {
	ID       string
	Path     string
	Index    int
	Text     string
	Distance float64
}

// Metadata is the key/value map recorded on a collection.
type Metadata map[string]any

// Collection metadata keys.
const (
	MetaPath              = "path"
	MetaHostname          = "hostname"
	MetaCreatedBy         = "created-by"
	MetaUsername          = "username"
	MetaEmbeddingFunction = "embedding_function"
	MetaEmbeddingParams   = "embedding_params"
)

// String returns the value at key if it is a string.
func (m Metadata) String(key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

// Params returns the embedding params recorded on the collection.
func (m Metadata) Params() map[string]any {
	if m == nil {
		return nil
	}
	p, _ := m[MetaEmbeddingParams].(map[string]any)
	return p
}

func (m Metadata) encode() (string, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode collection metadata: %w", err)
	}
	return string(data), nil
}

func decodeMetadata(raw string) (Metadata, error) {
	meta := Metadata{}
	if raw == "" {
		return meta, nil
	}
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, fmt.Errorf("failed to decode collection metadata: %w", err)
	}
	return meta, nil
}
