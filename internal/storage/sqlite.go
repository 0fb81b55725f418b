package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dshills/vecindex/pkg/types"
)

// maxDeleteParams bounds the IN list of one DELETE statement, well under
// SQLite's host parameter limit.
const maxDeleteParams = 500

// SQLiteStore implements CollectionStore on a single SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// One connection: SQLite has a single writer, and ":memory:" databases
	// are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and
// applies migrations. Failure to open is reported as types.ErrConnectivity.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %w", types.ErrConnectivity, dbPath, err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Heartbeat checks that the database is reachable.
func (s *SQLiteStore) Heartbeat(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", types.ErrConnectivity, err)
	}
	return nil
}

// MaxBatchSize returns the largest Upsert payload the store accepts.
func (s *SQLiteStore) MaxBatchSize(ctx context.Context) (int, error) {
	if err := s.Heartbeat(ctx); err != nil {
		return 0, err
	}
	return DefaultMaxBatchSize, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// classify maps lost-connection driver errors onto types.ErrConnectivity.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %w", types.ErrConnectivity, err)
	}
	if strings.Contains(err.Error(), "database is closed") {
		return fmt.Errorf("%w: %w", types.ErrConnectivity, err)
	}
	return err
}

func (s *SQLiteStore) getCollection(ctx context.Context, q querier, name string) (*sqliteCollection, error) {
	var (
		id  int64
		raw string
	)
	err := q.QueryRowContext(ctx, "SELECT id, metadata FROM collections WHERE name = ?", name).Scan(&id, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", types.ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection %s: %w", name, classify(err))
	}
	meta, err := decodeMetadata(raw)
	if err != nil {
		return nil, err
	}
	return &sqliteCollection{store: s, id: id, name: name, meta: meta}, nil
}

// GetCollection returns the named collection or types.ErrNotFound.
func (s *SQLiteStore) GetCollection(ctx context.Context, name string) (Collection, error) {
	c, err := s.getCollection(ctx, s.db, name)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetOrCreateCollection returns the named collection, creating it with meta
// when absent.
func (s *SQLiteStore) GetOrCreateCollection(ctx context.Context, name string, meta Metadata) (Collection, error) {
	raw, err := meta.encode()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO collections (name, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, name, raw, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection %s: %w", name, classify(err))
	}

	return s.GetCollection(ctx, name)
}

// ListCollections returns every collection ordered by name.
func (s *SQLiteStore) ListCollections(ctx context.Context) ([]Collection, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, metadata FROM collections ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", classify(err))
	}
	defer func() { _ = rows.Close() }()

	var out []Collection
	for rows.Next() {
		var (
			id        int64
			name, raw string
		)
		if err := rows.Scan(&id, &name, &raw); err != nil {
			return nil, err
		}
		meta, err := decodeMetadata(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, &sqliteCollection{store: s, id: id, name: name, meta: meta})
	}
	return out, rows.Err()
}

// DeleteCollection removes the collection and all of its documents.
func (s *SQLiteStore) DeleteCollection(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", name, classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", types.ErrNotFound, name)
	}
	return nil
}

// sqliteCollection is a Collection backed by the documents and embeddings tables.
type sqliteCollection struct {
	store *SQLiteStore
	id    int64
	name  string
	meta  Metadata
}

func (c *sqliteCollection) Name() string {
	return c.name
}

func (c *sqliteCollection) Metadata() Metadata {
	return c.meta
}

func (c *sqliteCollection) GetMetadata(ctx context.Context) ([]types.DocumentMeta, error) {
	rows, err := c.store.db.QueryContext(ctx, `
		SELECT doc_id, path, chunk_index, content_hash
		FROM documents
		WHERE collection_id = ?
		ORDER BY path, chunk_index
	`, c.id)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata of %s: %w", c.name, classify(err))
	}
	defer func() { _ = rows.Close() }()

	var metas []types.DocumentMeta
	for rows.Next() {
		var m types.DocumentMeta
		if err := rows.Scan(&m.ID, &m.Path, &m.Index, &m.ContentHash); err != nil {
			return nil, err
		}
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

func (c *sqliteCollection) Upsert(ctx context.Context, docs []types.Document) (err error) {
	if len(docs) == 0 {
		return nil
	}
	if len(docs) > DefaultMaxBatchSize {
		return fmt.Errorf("upsert of %d documents exceeds max batch size %d", len(docs), DefaultMaxBatchSize)
	}

	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin upsert: %w", classify(err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now()
	for _, d := range docs {
		if err = c.upsertDocument(ctx, tx, d, now); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", classify(err))
	}
	return nil
}

func (c *sqliteCollection) upsertDocument(ctx context.Context, q querier, d types.Document, now time.Time) error {
	if d.ID == "" {
		return errors.New("document id cannot be empty")
	}
	if len(d.Vector) == 0 {
		return fmt.Errorf("document %s has no vector", d.ID)
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO documents (collection_id, doc_id, path, chunk_index, start_offset, end_offset, content, content_hash, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection_id, doc_id) DO UPDATE SET
			path = excluded.path,
			chunk_index = excluded.chunk_index,
			start_offset = excluded.start_offset,
			end_offset = excluded.end_offset,
			content = excluded.content,
			content_hash = excluded.content_hash,
			updated_at = excluded.updated_at
	`, c.id, d.ID, d.Path, d.Index, d.Start, d.End, d.Text, d.ContentHash, now)
	if err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", d.ID, classify(err))
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO embeddings (collection_id, doc_id, vector, dimension)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(collection_id, doc_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension
	`, c.id, d.ID, serializeVector(d.Vector), len(d.Vector))
	if err != nil {
		return fmt.Errorf("failed to upsert embedding %s: %w", d.ID, classify(err))
	}
	return nil
}

func (c *sqliteCollection) Delete(ctx context.Context, filter DeleteFilter) (n int, err error) {
	if filter.Empty() {
		return 0, nil
	}

	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin delete: %w", classify(err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, sel := range []struct {
		column string
		values []string
	}{
		{"path", filter.Paths},
		{"doc_id", filter.IDs},
	} {
		for part := range slices.Chunk(sel.values, maxDeleteParams) {
			removed, err := c.deleteWhereIn(ctx, tx, sel.column, part)
			if err != nil {
				return 0, err
			}
			n += removed
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit delete: %w", classify(err))
	}
	return n, nil
}

func (c *sqliteCollection) deleteWhereIn(ctx context.Context, q querier, column string, values []string) (int, error) {
	query := "DELETE FROM documents WHERE collection_id = ? AND " + column + " IN (" + placeholders(len(values)) + ")"
	args := make([]interface{}, 0, len(values)+1)
	args = append(args, c.id)
	for _, v := range values {
		args = append(args, v)
	}

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", c.name, classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (c *sqliteCollection) Query(ctx context.Context, vector []float32, limit int, filter *QueryFilter) ([]Hit, error) {
	return searchVector(ctx, c.store.db, c.id, vector, limit, filter)
}

func (c *sqliteCollection) Count(ctx context.Context) (int, error) {
	var n int
	err := c.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE collection_id = ?", c.id).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", c.name, classify(err))
	}
	return n, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}
