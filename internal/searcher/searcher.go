package searcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/vecindex/internal/embedder"
	"github.com/dshills/vecindex/internal/storage"
	"github.com/dshills/vecindex/pkg/types"
)

const (
	// DefaultNResult is the number of files returned when none is asked for.
	DefaultNResult = 1

	// DefaultMultiplier applies when the configured multiplier is not
	// positive: the query fetches n_result * DefaultMultiplier chunks so that
	// several chunks of one file still leave room for other files.
	DefaultMultiplier = 1

	// queryCacheSize bounds the query embedding cache.
	queryCacheSize = 1000
)

// ErrEmptyQuery is returned when no query text is given.
var ErrEmptyQuery = errors.New("query cannot be empty")

// Request describes one query against a collection.
type Request struct {
	// Query terms, joined with spaces before embedding.
	Query []string
	// NResult is the number of files to return.
	NResult int
	// Multiplier scales NResult into the number of chunks fetched. Values
	// <= 0 fetch exactly NResult chunks.
	Multiplier int
	// Exclude lists files left out of the results. Relative entries are
	// resolved against Root.
	Exclude []string
	Root    string
	// WithDocument reads each result file's content into Document.
	WithDocument bool
}

// Response holds ranked files and query metadata.
type Response struct {
	Results  []types.QueryResult
	Chunks   int
	Duration time.Duration
	CacheHit bool
}

// Searcher turns query text into ranked files.
type Searcher struct {
	embedder embedder.Embedder
	cache    *lru.Cache[[32]byte, []float32]
	cacheMu  sync.Mutex
}

// NewSearcher creates a Searcher that embeds queries with emb.
func NewSearcher(emb embedder.Embedder) *Searcher {
	cache, err := lru.New[[32]byte, []float32](queryCacheSize)
	if err != nil {
		// This should never happen with valid size parameter
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}
	return &Searcher{embedder: emb, cache: cache}
}

// Search embeds the query, fetches the nearest chunks from coll and
// returns the files they belong to ranked by their closest chunk.
func (s *Searcher) Search(ctx context.Context, coll storage.Collection, req Request) (*Response, error) {
	start := time.Now()

	if s.embedder == nil {
		return nil, fmt.Errorf("embedder not initialized")
	}
	text, err := validateRequest(&req)
	if err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	vector, hit, err := s.embedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	count, err := coll.Count(ctx)
	if err != nil {
		return nil, err
	}
	limit := min(chunkLimit(req.NResult, req.Multiplier), count)
	if limit == 0 {
		return &Response{Results: []types.QueryResult{}, Duration: time.Since(start), CacheHit: hit}, nil
	}

	exclude := resolveExcludes(req.Root, req.Exclude)
	hits, err := coll.Query(ctx, vector, limit, &storage.QueryFilter{ExcludePaths: exclude})
	if err != nil {
		return nil, err
	}

	results := rankFiles(hits, req.NResult)
	if req.WithDocument {
		results = attachDocuments(results)
	}

	return &Response{
		Results:  results,
		Chunks:   len(hits),
		Duration: time.Since(start),
		CacheHit: hit,
	}, nil
}

// validateRequest fills defaults and returns the query text.
func validateRequest(req *Request) (string, error) {
	var terms []string
	for _, q := range req.Query {
		if q = strings.TrimSpace(q); q != "" {
			terms = append(terms, q)
		}
	}
	if len(terms) == 0 {
		return "", ErrEmptyQuery
	}
	if req.NResult <= 0 {
		req.NResult = DefaultNResult
	}
	return strings.Join(terms, " "), nil
}

// chunkLimit is the number of chunks to fetch for n files.
func chunkLimit(n, multiplier int) int {
	if multiplier <= 0 {
		multiplier = DefaultMultiplier
	}
	return n * multiplier
}

func (s *Searcher) embedQuery(ctx context.Context, text string) ([]float32, bool, error) {
	key := computeQueryHash(s.embedder, text)

	s.cacheMu.Lock()
	vec, ok := s.cache.Get(key)
	s.cacheMu.Unlock()
	if ok {
		return vec, true, nil
	}

	emb, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
	if err != nil {
		return nil, false, err
	}

	s.cacheMu.Lock()
	s.cache.Add(key, emb.Vector)
	s.cacheMu.Unlock()
	return emb.Vector, false, nil
}

// computeQueryHash keys the cache by embedder and text.
func computeQueryHash(e embedder.Embedder, text string) [32]byte {
	var data strings.Builder
	data.WriteString(e.Provider())
	data.WriteString("|")
	data.WriteString(e.Model())
	data.WriteString("|")
	data.WriteString(text)
	return sha256.Sum256([]byte(data.String()))
}

func resolveExcludes(root string, exclude []string) []string {
	out := make([]string, 0, len(exclude))
	for _, p := range exclude {
		if !filepath.IsAbs(p) && root != "" {
			p = filepath.Join(root, p)
		}
		out = append(out, filepath.Clean(p))
	}
	return out
}

// rankFiles keeps the closest chunk of each file and returns the best n
// files, closest first.
func rankFiles(hits []storage.Hit, n int) []types.QueryResult {
	best := make(map[string]float64)
	for _, h := range hits {
		if d, ok := best[h.Path]; !ok || h.Distance < d {
			best[h.Path] = h.Distance
		}
	}

	results := make([]types.QueryResult, 0, len(best))
	for path, d := range best {
		results = append(results, types.QueryResult{Path: path, Distance: d})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Path < results[j].Path
	})

	if len(results) > n {
		results = results[:n]
	}
	return results
}

// attachDocuments reads each file. Files that vanished since indexing are
// dropped.
func attachDocuments(results []types.QueryResult) []types.QueryResult {
	out := results[:0]
	for _, r := range results {
		data, err := os.ReadFile(r.Path)
		if err != nil {
			continue
		}
		r.Document = string(data)
		out = append(out, r)
	}
	return out
}

// InvalidateCache drops every cached query embedding.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}
