// Package searcher answers semantic queries against a project's collection.
//
// A query is embedded with the collection's embedding function and the
// nearest chunks are fetched from the store. Chunks are then grouped by
// file: each file is ranked by the distance of its closest chunk and the
// best NResult files are returned.
//
// # Basic Usage
//
//	s := searcher.NewSearcher(emb)
//
//	resp, err := s.Search(ctx, coll, searcher.Request{
//	    Query:      []string{"parse", "config"},
//	    NResult:    5,
//	    Multiplier: 3,
//	})
//
//	for _, r := range resp.Results {
//	    fmt.Printf("%s (distance %.3f)\n", r.Path, r.Distance)
//	}
//
// # Chunk Budget
//
// With a positive Multiplier the store is asked for NResult * Multiplier
// chunks, capped at the collection size. Large files contribute many
// chunks, so a multiplier above one keeps them from crowding out other
// files.
//
// # Caching
//
// Query embeddings are kept in an LRU cache keyed by provider, model and
// text. Call InvalidateCache after switching embedding configuration.
package searcher
