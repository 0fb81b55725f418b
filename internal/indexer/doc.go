// Package indexer keeps a project's collection in sync with its files.
//
// A Syncer run moves through these states:
//
//	Enumerating -> Diffing -> ProcessingFiles -> PruningOrphans -> Reporting -> Done
//
// ProcessingFiles and PruningOrphans end in Aborted when the context is
// cancelled.
//
// # Basic Usage
//
//	s := indexer.New(store, emb, expander, indexer.Config{
//	    ProjectRoot:  "/path/to/project",
//	    Embedding:    identity.Embedding{Name: "local"},
//	    ChunkSize:    2500,
//	    OverlapRatio: 0.2,
//	}, indexer.WithLogger(logger))
//
//	stats, err := s.Run(ctx, indexer.Request{
//	    Mode:      indexer.ModeVectorise,
//	    Paths:     []string{"src"},
//	    Recursive: true,
//	})
//
// # Modes
//
// ModeVectorise creates the collection if needed and indexes the supplied
// paths. ModeUpdate requires an existing collection and re-indexes every
// stored file still on disk. Both modes remove chunks of files that no
// longer exist.
//
// Each stored chunk records a hash of its file's content, the chunking
// settings and the embedding model. A file whose hash matches is skipped
// without embedding and is not counted. A file emptied since the last run
// loses its chunks and counts as updated.
//
// # Concurrency
//
// Files are processed by one goroutine each, admitted through a
// Controller gate sized to the CPU count. Reading, chunking and embedding
// run unlocked; only the store write for a file holds the collection lock.
//
// # Errors
//
// A file that cannot be read or embedded does not stop other files. The run
// returns every such failure joined as *types.FileError values and skips
// orphan removal. Store connectivity errors stop the run.
package indexer
