package generation

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Save(ctx context.Context, g *Generation) error {
	query := `INSERT INTO generation_records (project_id, brief, brand_tone, audience, objective, channels, status) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at, updated_at`
	return r.db.QueryRowContext(ctx, query, g.ProjectID, g.Brief, g.BrandTone, g.Audience, g.Objective, pq.Array(g.Channels), g.Status).
		Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Generation, error) {
	g := &Generation{}
	query := `SELECT id, project_id, brief, brand_tone, audience, objective, channels, status, short_form, long_form, cta, model, tokens_used, error, created_at, updated_at FROM generation_records WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&g.ID, &g.ProjectID, &g.Brief, &g.BrandTone, &g.Audience, &g.Objective, pq.Array(&g.Channels), &g.Status, &g.ShortForm, &g.LongForm, &g.CTA, &g.Model, &g.TokensUsed, &g.Error, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (r *PostgresRepo) ListByProject(ctx context.Context, projectID string) ([]Generation, error) {
	query := `SELECT id, project_id, brief, brand_tone, audience, objective, channels, status, short_form, long_form, cta, model, tokens_used, error, created_at, updated_at FROM generation_records WHERE project_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var generations []Generation
	for rows.Next() {
		var g Generation
		if err := rows.Scan(&g.ID, &g.ProjectID, &g.Brief, &g.BrandTone, &g.Audience, &g.Objective, pq.Array(&g.Channels), &g.Status, &g.ShortForm, &g.LongForm, &g.CTA, &g.Model, &g.TokensUsed, &g.Error, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		generations = append(generations, g)
	}
	return generations, rows.Err()
}

// TryMarkProcessing claims the job atomically; with at-least-once message
// delivery the conditional WHERE is what keeps the model call at most once.
func (r *PostgresRepo) TryMarkProcessing(ctx context.Context, id string) (bool, error) {
	query := `UPDATE generation_records SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, StatusProcessing, id, StatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PostgresRepo) MarkCompleted(ctx context.Context, id, shortForm, longForm, cta, model string, tokensUsed int) error {
	query := `UPDATE generation_records SET status = $1, short_form = $2, long_form = $3, cta = $4, model = $5, tokens_used = $6, error = '', updated_at = NOW() WHERE id = $7 AND status = $8`
	_, err := r.db.ExecContext(ctx, query, StatusCompleted, shortForm, longForm, cta, model, tokensUsed, id, StatusProcessing)
	return err
}

func (r *PostgresRepo) MarkFailed(ctx context.Context, id, errMsg string) error {
	query := `UPDATE generation_records SET status = $1, error = $2, updated_at = NOW() WHERE id = $3 AND status IN ($4, $5)`
	_, err := r.db.ExecContext(ctx, query, StatusFailed, errMsg, id, StatusPending, StatusProcessing)
	return err
}

func (r *PostgresRepo) UpdateContent(ctx context.Context, id, shortForm, longForm, cta string) error {
	query := `UPDATE generation_records SET short_form = $1, long_form = $2, cta = $3, updated_at = NOW() WHERE id = $4 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, shortForm, longForm, cta, id, StatusCompleted)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotEditable
	}
	return nil
}
