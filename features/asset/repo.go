package asset

import (
	"context"
	"database/sql"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Save(ctx context.Context, a *Asset) error {
	query := `INSERT INTO assets (project_id, filename, content_type, ingest_state) VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at`
	return r.db.QueryRowContext(ctx, query, a.ProjectID, a.Filename, a.ContentType, a.IngestState).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Asset, error) {
	a := &Asset{}
	query := `SELECT id, project_id, filename, content_type, ingest_state, ingest_error, chunk_count, total_tokens, created_at, updated_at FROM assets WHERE id = $1 AND deleted_at IS NULL`
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&a.ID, &a.ProjectID, &a.Filename, &a.ContentType, &a.IngestState, &a.IngestError, &a.ChunkCount, &a.TotalTokens, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *PostgresRepo) ListByProject(ctx context.Context, projectID string) ([]Asset, error) {
	query := `SELECT id, project_id, filename, content_type, ingest_state, ingest_error, chunk_count, total_tokens, created_at, updated_at FROM assets WHERE project_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		var a Asset
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.Filename, &a.ContentType, &a.IngestState, &a.IngestError, &a.ChunkCount, &a.TotalTokens, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

func (r *PostgresRepo) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE assets SET deleted_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// TryMarkIngesting is the single-writer guard: the conditional WHERE
// makes the claim atomic, so concurrent ingest requests race on the
// database rather than in process memory.
func (r *PostgresRepo) TryMarkIngesting(ctx context.Context, id string) (bool, error) {
	query := `UPDATE assets SET ingest_state = $1, ingest_error = '', updated_at = NOW() WHERE id = $2 AND ingest_state <> $1 AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, StateIngesting, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PostgresRepo) MarkIngested(ctx context.Context, id string, chunkCount, totalTokens int) error {
	query := `UPDATE assets SET ingest_state = $1, ingest_error = '', chunk_count = $2, total_tokens = $3, updated_at = NOW() WHERE id = $4 AND ingest_state = $5`
	_, err := r.db.ExecContext(ctx, query, StateIngested, chunkCount, totalTokens, id, StateIngesting)
	return err
}

func (r *PostgresRepo) MarkIngestFailed(ctx context.Context, id, errMsg string) error {
	query := `UPDATE assets SET ingest_state = $1, ingest_error = $2, updated_at = NOW() WHERE id = $3 AND ingest_state = $4`
	_, err := r.db.ExecContext(ctx, query, StateFailed, errMsg, id, StateIngesting)
	return err
}

func (r *PostgresRepo) CountIngested(ctx context.Context, projectID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM assets WHERE project_id = $1 AND ingest_state = $2 AND deleted_at IS NULL`
	err := r.db.QueryRowContext(ctx, query, projectID, StateIngested).Scan(&count)
	return count, err
}
