package indexer

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/dshills/vecindex/pkg/types"
)

// Controller bounds how many files are processed at once and serialises
// writes to one collection.
type Controller struct {
	parallelism int
	gate        *semaphore.Weighted
	collMu      sync.Mutex
	maxBatch    int
}

// DefaultParallelism is the number of CPUs, at least one.
func DefaultParallelism() int {
	return max(runtime.NumCPU(), 1)
}

// NewController admits at most parallelism files at a time and splits
// upserts into payloads of at most maxBatch documents.
func NewController(parallelism, maxBatch int) *Controller {
	if parallelism <= 0 {
		parallelism = DefaultParallelism()
	}
	if maxBatch <= 0 {
		maxBatch = 1
	}
	return &Controller{
		parallelism: parallelism,
		gate:        semaphore.NewWeighted(int64(parallelism)),
		maxBatch:    maxBatch,
	}
}

// Parallelism returns the gate size.
func (c *Controller) Parallelism() int {
	return c.parallelism
}

// MaxBatch returns the upsert payload limit.
func (c *Controller) MaxBatch() int {
	return c.maxBatch
}

// Acquire blocks until a slot is free or ctx is done.
func (c *Controller) Acquire(ctx context.Context) error {
	return c.gate.Acquire(ctx, 1)
}

// Release frees a slot taken by Acquire.
func (c *Controller) Release() {
	c.gate.Release(1)
}

// WithCollectionLock runs fn while holding the collection mutation lock.
// Only store writes belong inside fn.
func (c *Controller) WithCollectionLock(fn func() error) error {
	c.collMu.Lock()
	defer c.collMu.Unlock()
	return fn()
}

// Batches splits docs into slices of at most MaxBatch documents.
func (c *Controller) Batches(docs []types.Document) [][]types.Document {
	var out [][]types.Document
	for start := 0; start < len(docs); start += c.maxBatch {
		out = append(out, docs[start:min(start+c.maxBatch, len(docs))])
	}
	return out
}
