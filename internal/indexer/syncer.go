package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/vecindex/internal/chunker"
	"github.com/dshills/vecindex/internal/embedder"
	"github.com/dshills/vecindex/internal/identity"
	"github.com/dshills/vecindex/internal/storage"
	"github.com/dshills/vecindex/pkg/types"
)

// FileExpander resolves user-supplied paths to files.
type FileExpander interface {
	Expand(paths []string, recursive bool) ([]string, error)
}

// StatsReporter receives the final counters of a successful run.
type StatsReporter interface {
	ReportStats(stats types.SyncStats) error
}

// Config holds the per-project settings of a Syncer.
type Config struct {
	ProjectRoot  string
	Embedding    identity.Embedding
	ChunkSize    int
	OverlapRatio float64
	// Parallelism defaults to DefaultParallelism.
	Parallelism int
}

// Request is one sync run.
type Request struct {
	Mode      Mode
	Paths     []string
	Recursive bool
}

// Syncer brings a project's collection in line with the files on disk.
type Syncer struct {
	store    storage.CollectionStore
	embedder embedder.Embedder
	expander FileExpander
	cfg      Config

	logger   *slog.Logger
	reporter StatsReporter
	progress func(done, total int)
	owner    *identity.Owner

	state atomic.Int32
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithLogger sets the logger. The default discards records.
func WithLogger(l *slog.Logger) Option {
	return func(s *Syncer) { s.logger = l }
}

// WithReporter emits final stats in the Reporting stage.
func WithReporter(r StatsReporter) Option {
	return func(s *Syncer) { s.reporter = r }
}

// WithProgress is called after each file finishes.
func WithProgress(fn func(done, total int)) Option {
	return func(s *Syncer) { s.progress = fn }
}

// WithOwner overrides the user/host the collection id is derived from.
func WithOwner(o identity.Owner) Option {
	return func(s *Syncer) { s.owner = &o }
}

// New creates a Syncer.
func New(store storage.CollectionStore, emb embedder.Embedder, exp FileExpander, cfg Config, opts ...Option) *Syncer {
	s := &Syncer{
		store:    store,
		embedder: emb,
		expander: exp,
		cfg:      cfg,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the stage of the current or last run.
func (s *Syncer) State() State {
	return State(s.state.Load())
}

func (s *Syncer) setState(st State, log *slog.Logger) {
	s.state.Store(int32(st))
	log.Debug("sync state", "state", st.String())
}

func (s *Syncer) resolve() (identity.Identity, error) {
	if s.owner != nil {
		return identity.ResolveFor(*s.owner, s.cfg.ProjectRoot)
	}
	return identity.Resolve(s.cfg.ProjectRoot)
}

// plan is the outcome of diffing stored metadata against the disk.
type plan struct {
	targets []string
	// stored maps each path already in the collection to its chunk ids.
	stored  map[string][]types.DocumentMeta
	orphans []string
}

// Run executes one sync. Per-file failures are returned joined after every
// admitted file has finished; files that succeeded stay committed. A
// cancelled ctx returns types.ErrCancelled and skips orphan pruning.
func (s *Syncer) Run(ctx context.Context, req Request) (types.SyncStats, error) {
	log := s.logger.With("run", uuid.NewString(), "mode", req.Mode.String())
	start := time.Now()

	s.setState(StateEnumerating, log)
	id, err := s.resolve()
	if err != nil {
		return types.SyncStats{}, err
	}
	coll, err := identity.Ensure(ctx, s.store, id, s.cfg.Embedding, req.Mode == ModeVectorise)
	if err != nil {
		return types.SyncStats{}, err
	}
	ok, msg := identity.VerifyEmbedding(coll, s.cfg.Embedding)
	if !ok {
		return types.SyncStats{}, fmt.Errorf("%w: %s", types.ErrEmbeddingMismatch, msg)
	}
	if msg != "" {
		log.Warn(msg)
	}
	supplied, err := s.expander.Expand(req.Paths, req.Recursive)
	if err != nil {
		return types.SyncStats{}, fmt.Errorf("failed to expand paths: %w", err)
	}

	s.setState(StateDiffing, log)
	metas, err := coll.GetMetadata(ctx)
	if err != nil {
		return types.SyncStats{}, err
	}
	p := diff(metas, supplied, req.Mode)
	maxBatch, err := s.store.MaxBatchSize(ctx)
	if err != nil {
		return types.SyncStats{}, err
	}
	log.Info("sync planned",
		"collection", coll.Name(), "files", len(p.targets), "orphans", len(p.orphans))

	s.setState(StateProcessingFiles, log)
	ctrl := NewController(s.cfg.Parallelism, maxBatch)
	stats := NewStats()
	fileErrs, err := s.process(ctx, coll, ctrl, stats, p)
	if ctx.Err() != nil {
		return s.abort(ctx, log, stats)
	}
	if err != nil {
		return stats.Snapshot(), err
	}
	if fileErrs != nil {
		log.Error("sync finished with file errors", "error", fileErrs)
		return stats.Snapshot(), fileErrs
	}

	if ctx.Err() != nil {
		return s.abort(ctx, log, stats)
	}
	s.setState(StatePruningOrphans, log)
	if len(p.orphans) > 0 {
		err := ctrl.WithCollectionLock(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, err := coll.Delete(ctx, storage.DeleteFilter{Paths: p.orphans})
			return err
		})
		if ctx.Err() != nil {
			return s.abort(ctx, log, stats)
		}
		if err != nil {
			return stats.Snapshot(), fmt.Errorf("failed to remove orphans: %w", err)
		}
		stats.Add(KindRemoved, len(p.orphans))
	}

	s.setState(StateReporting, log)
	final := stats.Snapshot()
	log.Info("sync complete",
		"added", final.Added, "updated", final.Updated, "removed", final.Removed,
		"duration", time.Since(start))
	if s.reporter != nil {
		if err := s.reporter.ReportStats(final); err != nil {
			return final, fmt.Errorf("failed to report stats: %w", err)
		}
	}

	s.setState(StateDone, log)
	return final, nil
}

// abort ends a cancelled run without touching orphans.
func (s *Syncer) abort(ctx context.Context, log *slog.Logger, stats *Stats) (types.SyncStats, error) {
	s.setState(StateAborted, log)
	log.Warn("sync aborted", "stats", stats.Snapshot())
	return stats.Snapshot(), fmt.Errorf("%w: %w", types.ErrCancelled, ctx.Err())
}

// diff partitions stored paths into live and orphaned and picks the files
// to process.
func diff(metas []types.DocumentMeta, supplied []string, mode Mode) plan {
	p := plan{stored: map[string][]types.DocumentMeta{}}
	for _, m := range metas {
		p.stored[m.Path] = append(p.stored[m.Path], m)
	}

	targets := map[string]bool{}
	for _, f := range supplied {
		targets[f] = true
	}
	for path := range p.stored {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			p.orphans = append(p.orphans, path)
			continue
		}
		if mode == ModeUpdate {
			targets[path] = true
		}
	}

	for f := range targets {
		p.targets = append(p.targets, f)
	}
	sort.Strings(p.targets)
	sort.Strings(p.orphans)
	return p
}

// process runs one goroutine per target file behind the controller's gate.
// The returned fileErrs joins per-file failures; err is a fatal error that
// stopped the run.
func (s *Syncer) process(ctx context.Context, coll storage.Collection, ctrl *Controller, stats *Stats, p plan) (fileErrs error, err error) {
	g, gctx := errgroup.WithContext(ctx)

	var (
		mu   sync.Mutex
		errs []error
		done atomic.Int32
	)
	total := len(p.targets)

	for _, path := range p.targets {
		g.Go(func() error {
			if err := ctrl.Acquire(gctx); err != nil {
				return err
			}
			defer ctrl.Release()

			counted, err := s.processFile(gctx, coll, ctrl, path, p.stored[path])
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if errors.Is(err, types.ErrConnectivity) {
					return err
				}
				mu.Lock()
				errs = append(errs, &types.FileError{Path: path, Err: err})
				mu.Unlock()
				s.logger.Warn("file failed", "path", path, "error", err)
			} else if counted {
				if len(p.stored[path]) > 0 {
					stats.Increment(KindUpdated)
				} else {
					stats.Increment(KindAdded)
				}
			}

			n := int(done.Add(1))
			if s.progress != nil {
				s.progress(n, total)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return errors.Join(errs...), nil
}

// processFile reads, chunks and embeds one file, then writes it under the
// collection lock. It reports false when the collection was left as is:
// the file is new and empty, or its content and chunking are unchanged.
// An emptied file loses all of its chunks.
func (s *Syncer) processFile(ctx context.Context, coll storage.Collection, ctrl *Controller, path string, prior []types.DocumentMeta) (bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read: %w", err)
	}
	if len(content) == 0 {
		if len(prior) == 0 {
			s.logger.Debug("skipping empty file", "path", path)
			return false, nil
		}
		if err := s.dropChunks(ctx, coll, ctrl, prior); err != nil {
			return false, err
		}
		s.logger.Debug("file emptied", "path", path, "stale", len(prior))
		return true, nil
	}

	hash := s.contentHash(content)
	if unchanged(prior, hash) {
		s.logger.Debug("skipping unchanged file", "path", path)
		return false, nil
	}

	chunks := chunker.Collect(chunker.Chunk(string(content), s.cfg.ChunkSize, s.cfg.OverlapRatio))
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := embedder.EmbedAll(ctx, s.embedder, texts)
	if err != nil {
		return false, fmt.Errorf("failed to embed: %w", err)
	}

	docs := make([]types.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = types.Document{
			ID:          chunker.ChunkID(path, c.Index),
			Path:        path,
			Index:       c.Index,
			Start:       c.Start,
			End:         c.End,
			Text:        c.Text,
			ContentHash: hash,
			Vector:      vectors[i],
		}
	}

	var stale []string
	for _, m := range prior {
		if m.Index >= len(docs) {
			stale = append(stale, m.ID)
		}
	}

	err = ctrl.WithCollectionLock(func() error {
		for _, batch := range ctrl.Batches(docs) {
			if err := coll.Upsert(ctx, batch); err != nil {
				return err
			}
		}
		if len(stale) > 0 {
			if _, err := coll.Delete(ctx, storage.DeleteFilter{IDs: stale}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to store: %w", err)
	}

	s.logger.Debug("file indexed", "path", path, "chunks", len(docs), "stale", len(stale))
	return true, nil
}

func (s *Syncer) dropChunks(ctx context.Context, coll storage.Collection, ctrl *Controller, prior []types.DocumentMeta) error {
	ids := make([]string, len(prior))
	for i, m := range prior {
		ids[i] = m.ID
	}
	err := ctrl.WithCollectionLock(func() error {
		_, err := coll.Delete(ctx, storage.DeleteFilter{IDs: ids})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to store: %w", err)
	}
	return nil
}

// contentHash identifies content as chunked and embedded by this Syncer.
// Changing the chunking or the embedding model changes the hash.
func (s *Syncer) contentHash(content []byte) string {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%s\x00%s\x00%d\x00%g\x00",
		s.embedder.Provider(), s.embedder.Model(), s.cfg.ChunkSize, s.cfg.OverlapRatio)
	_, _ = h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// unchanged reports whether every stored chunk of a file was built from
// content with the given hash.
func unchanged(prior []types.DocumentMeta, hash string) bool {
	if len(prior) == 0 {
		return false
	}
	for _, m := range prior {
		if m.ContentHash != hash {
			return false
		}
	}
	return true
}
