package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// searchVector ranks the collection's chunks by cosine distance to
// queryVector. Distances are computed in Go so both drivers behave the same.
func searchVector(ctx context.Context, db *sql.DB, collectionID int64, queryVector []float32, limit int, filter *QueryFilter) ([]Hit, error) {
	query := `
		SELECT d.doc_id, d.path, d.chunk_index, d.content, e.vector
		FROM documents d
		INNER JOIN embeddings e ON e.collection_id = d.collection_id AND e.doc_id = d.doc_id
		WHERE d.collection_id = ?
	`
	args := []interface{}{collectionID}
	query, args = applyQueryFilter(query, args, filter)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", classify(err))
	}
	defer func() { _ = rows.Close() }()

	hits, err := scoreRows(rows, queryVector)
	if err != nil {
		return nil, err
	}
	sortHits(hits)

	if limit > 0 && limit < len(hits) {
		hits = hits[:limit]
	}
	return hits, nil
}

// applyQueryFilter adds WHERE clause filters for vector search
func applyQueryFilter(query string, args []interface{}, filter *QueryFilter) (string, []interface{}) {
	if filter == nil || len(filter.ExcludePaths) == 0 {
		return query, args
	}
	query += " AND d.path NOT IN (" + placeholders(len(filter.ExcludePaths)) + ")"
	for _, p := range filter.ExcludePaths {
		args = append(args, p)
	}
	return query, args
}

// scoreRows computes the cosine distance of every row's vector
func scoreRows(rows *sql.Rows, queryVector []float32) ([]Hit, error) {
	var hits []Hit
	for rows.Next() {
		var (
			h    Hit
			blob []byte
		)
		if err := rows.Scan(&h.ID, &h.Path, &h.Index, &h.Text, &blob); err != nil {
			return nil, err
		}
		vector := deserializeVector(blob)
		if len(vector) != len(queryVector) {
			continue // Dimension mismatch, skip
		}
		h.Distance = 1 - cosineSimilarity(queryVector, vector)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// sortHits orders by distance ascending, ties broken by id for stable output.
func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ID < hits[j].ID
	})
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// CosineSimilarity is an exported helper for callers that rank vectors in memory.
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
