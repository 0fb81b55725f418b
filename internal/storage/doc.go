// Package storage persists collections of embedded text chunks in SQLite.
//
// A collection belongs to one project. It records owner metadata (path,
// hostname, username, creator marker, embedding function) and holds one
// document per chunk, keyed by a deterministic chunk id, with the chunk's
// vector stored as a little-endian float32 blob.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStore(filepath.Join(dbDir, "vecindex.db"))
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	coll, err := store.GetOrCreateCollection(ctx, id, storage.Metadata{
//	    storage.MetaPath: "/home/me/project",
//	})
//	err = coll.Upsert(ctx, docs)
//	hits, err := coll.Query(ctx, vector, 10, nil)
//
// # Drivers
//
// The default build uses modernc.org/sqlite (pure Go). Building with
// -tags cgo_sqlite switches to github.com/mattn/go-sqlite3, which needs CGO.
//
// # Errors
//
// Missing collections return types.ErrNotFound. Open failures and lost
// connections are wrapped with types.ErrConnectivity.
package storage
