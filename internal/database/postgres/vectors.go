package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-index/internal/database"
	"github.com/kozaktomas/face-index/internal/facematch"
)

// efSearch is the pgvector HNSW candidate pool size used for queries.
const efSearch = 100

// VectorIndex is a database.Index over the face_vectors table.
type VectorIndex struct {
	pool   *Pool
	metric facematch.Metric
	dim    int
}

// NewVectorIndex creates a pgvector-backed index ranking by metric.
func NewVectorIndex(pool *Pool, dim int, metric facematch.Metric) *VectorIndex {
	if metric == "" {
		metric = facematch.MetricEuclidean
	}
	return &VectorIndex{pool: pool, metric: metric, dim: dim}
}

// Name returns the backend name.
func (r *VectorIndex) Name() string {
	return "postgres"
}

// distanceExpr returns the SQL distance for the metric. Euclidean is squared
// so scores are on the same scale as the other backends.
func (r *VectorIndex) distanceExpr() (order, score string) {
	if r.metric == facematch.MetricCosine {
		return "embedding <=> $1::vector", "embedding <=> $1::vector"
	}
	return "embedding <-> $1::vector", "(embedding <-> $1::vector) ^ 2"
}

func (r *VectorIndex) checkDim(id string, v []float32) error {
	if r.dim > 0 && len(v) != r.dim {
		return fmt.Errorf("vector %s has dimension %d, index expects %d", id, len(v), r.dim)
	}
	return nil
}

// Fetch returns the stored entries among ids.
func (r *VectorIndex) Fetch(ctx context.Context, ids []string) (map[string]database.Entry, error) {
	out := make(map[string]database.Entry, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.pool.db.QueryContext(ctx,
		"SELECT id, embedding FROM face_vectors WHERE id = ANY($1)", pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query face vectors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var vec pgvector.Vector
		if err := rows.Scan(&id, &vec); err != nil {
			return nil, fmt.Errorf("scan face vector: %w", err)
		}
		out[id] = database.Entry{ID: id, Vector: vec.Slice()}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate face vectors: %w", err)
	}
	return out, nil
}

// Upsert writes entries in a single transaction, overwriting existing ids.
func (r *VectorIndex) Upsert(ctx context.Context, entries []database.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if err := r.checkDim(e.ID, e.Vector); err != nil {
			return err
		}
	}

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO face_vectors (id, embedding)
		VALUES ($1, $2::vector)
		ON CONFLICT (id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			updated_at = NOW()
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.ID, pgvector.NewVector(e.Vector)); err != nil {
			return fmt.Errorf("upsert face vector %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// InsertIfAbsent inserts entry unless its id exists, in one statement.
func (r *VectorIndex) InsertIfAbsent(ctx context.Context, entry database.Entry) (bool, error) {
	if err := r.checkDim(entry.ID, entry.Vector); err != nil {
		return false, err
	}

	res, err := r.pool.Exec(ctx, `
		INSERT INTO face_vectors (id, embedding)
		VALUES ($1, $2::vector)
		ON CONFLICT (id) DO NOTHING
	`, entry.ID, pgvector.NewVector(entry.Vector))
	if err != nil {
		return false, fmt.Errorf("insert face vector %s: %w", entry.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// Update overwrites the vector of id.
func (r *VectorIndex) Update(ctx context.Context, id string, vector []float32) error {
	return r.Upsert(ctx, []database.Entry{{ID: id, Vector: vector}})
}

// Delete removes ids.
func (r *VectorIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.pool.Exec(ctx, "DELETE FROM face_vectors WHERE id = ANY($1)", pq.Array(ids)); err != nil {
		return fmt.Errorf("delete face vectors: %w", err)
	}
	return nil
}

// Query finds the topK nearest vectors using the pgvector HNSW index.
func (r *VectorIndex) Query(ctx context.Context, vector []float32, topK int, includeValues bool) ([]database.Match, error) {
	if err := r.checkDim("query", vector); err != nil {
		return nil, err
	}

	tx, err := r.pool.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", efSearch)); err != nil {
		return nil, fmt.Errorf("set ef_search: %w", err)
	}

	order, score := r.distanceExpr()
	query := fmt.Sprintf(`
		SELECT id, embedding, %s AS distance
		FROM face_vectors
		ORDER BY %s
		LIMIT $2
	`, score, order)

	rows, err := tx.QueryContext(ctx, query, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("query similar face vectors: %w", err)
	}
	defer rows.Close()

	var matches []database.Match
	for rows.Next() {
		var m database.Match
		var vec pgvector.Vector
		if err := rows.Scan(&m.ID, &vec, &m.Distance); err != nil {
			return nil, fmt.Errorf("scan face vector: %w", err)
		}
		if includeValues {
			m.Values = vec.Slice()
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate face vectors: %w", err)
	}
	return matches, nil
}

// Count returns the total number of stored vectors.
func (r *VectorIndex) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM face_vectors").Scan(&count); err != nil {
		return 0, fmt.Errorf("count face vectors: %w", err)
	}
	return count, nil
}
