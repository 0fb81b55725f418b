package project

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dshills/vecindex/internal/config"
	"github.com/dshills/vecindex/internal/embedder"
	"github.com/dshills/vecindex/internal/files"
	"github.com/dshills/vecindex/internal/identity"
	"github.com/dshills/vecindex/internal/indexer"
	"github.com/dshills/vecindex/internal/searcher"
	"github.com/dshills/vecindex/internal/storage"
	"github.com/dshills/vecindex/pkg/types"
)

// Project ties one project's configuration to a store and an embedder.
type Project struct {
	Config   *config.Config
	Store    storage.CollectionStore
	Embedder embedder.Embedder
	Owner    identity.Owner
	Logger   *slog.Logger

	searcher *searcher.Searcher
}

// New assembles a project. The store is not owned by the project.
func New(cfg *config.Config, store storage.CollectionStore, emb embedder.Embedder, owner identity.Owner, logger *slog.Logger) *Project {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Project{
		Config:   cfg,
		Store:    store,
		Embedder: emb,
		Owner:    owner,
		Logger:   logger.With("project", cfg.ProjectRoot),
		searcher: searcher.NewSearcher(emb),
	}
}

// OpenStore creates the database directory and opens the store for cfg.
func OpenStore(cfg *config.Config) (*storage.SQLiteStore, error) {
	if err := os.MkdirAll(cfg.DBPath, 0o755); err != nil {
		return nil, fmt.Errorf("%w: failed to create %s: %w", types.ErrConnectivity, cfg.DBPath, err)
	}
	return storage.NewSQLiteStore(cfg.DBFile())
}

// NewEmbedder builds the configured embedding function.
func NewEmbedder(cfg *config.Config, reg *embedder.Registry) (embedder.Embedder, error) {
	return reg.New(cfg.EmbeddingFunction, cfg.EmbeddingParams)
}

// Embedding is the embedding function recorded on new collections.
func (p *Project) Embedding() identity.Embedding {
	name := p.Config.EmbeddingFunction
	if name == "" {
		name = embedder.DefaultProvider
	}
	return identity.Embedding{Name: name, Params: p.Config.EmbeddingParams}
}

// Identity resolves the project's collection id.
func (p *Project) Identity() (identity.Identity, error) {
	return identity.ResolveFor(p.Owner, p.Config.ProjectRoot)
}

// Collection returns the project's collection after checking ownership and
// embedding compatibility. It never creates one.
func (p *Project) Collection(ctx context.Context) (storage.Collection, error) {
	id, err := p.Identity()
	if err != nil {
		return nil, err
	}
	coll, err := identity.Ensure(ctx, p.Store, id, p.Embedding(), false)
	if err != nil {
		return nil, err
	}
	ok, msg := identity.VerifyEmbedding(coll, p.Embedding())
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrEmbeddingMismatch, msg)
	}
	if msg != "" {
		p.Logger.Warn(msg)
	}
	return coll, nil
}

// Syncer builds a sync engine for the project.
func (p *Project) Syncer(opts ...indexer.Option) (*indexer.Syncer, error) {
	exp, err := files.NewExpander(p.Config.ProjectRoot, p.Config.Exclude, p.Config.Force)
	if err != nil {
		return nil, err
	}
	base := []indexer.Option{indexer.WithLogger(p.Logger), indexer.WithOwner(p.Owner)}
	return indexer.New(p.Store, p.Embedder, exp, indexer.Config{
		ProjectRoot:  p.Config.ProjectRoot,
		Embedding:    p.Embedding(),
		ChunkSize:    p.Config.ChunkSize,
		OverlapRatio: p.Config.OverlapRatio,
	}, append(base, opts...)...), nil
}

// QueryOptions are the per-call parts of a query.
type QueryOptions struct {
	Terms []string
	// NResult overrides the configured n_result when positive.
	NResult int
	// Exclude lists files, relative to the project root or absolute, to
	// leave out of the results.
	Exclude      []string
	WithDocument bool
}

// Query runs a query against the project's collection using the configured
// n_result and query_multiplier.
func (p *Project) Query(ctx context.Context, opts QueryOptions) ([]types.QueryResult, error) {
	coll, err := p.Collection(ctx)
	if err != nil {
		return nil, err
	}
	nResult := opts.NResult
	if nResult <= 0 {
		nResult = p.Config.NResult
	}
	resp, err := p.searcher.Search(ctx, coll, searcher.Request{
		Query:        opts.Terms,
		NResult:      nResult,
		Multiplier:   p.Config.QueryMultiplier,
		Exclude:      opts.Exclude,
		Root:         p.Config.ProjectRoot,
		WithDocument: opts.WithDocument,
	})
	if err != nil {
		return nil, err
	}
	p.Logger.Debug("query complete", "chunks", resp.Chunks, "files", len(resp.Results),
		"duration", resp.Duration, "cache_hit", resp.CacheHit)
	return resp.Results, nil
}

// Drop deletes the project's collection after checking ownership.
func (p *Project) Drop(ctx context.Context) error {
	id, err := p.Identity()
	if err != nil {
		return err
	}
	if _, err := identity.Ensure(ctx, p.Store, id, p.Embedding(), false); err != nil {
		return err
	}
	return p.Store.DeleteCollection(ctx, id.ID)
}

// Close releases the embedder.
func (p *Project) Close() error {
	return p.Embedder.Close()
}
