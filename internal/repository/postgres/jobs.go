package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"FxPipe/internal/domain/models"

	"github.com/google/uuid"
)

const jobRunColumns = `id, function_name, started_at, finished_at, rows_processed, credits_used, error_summary`

func (s *Store) StartJob(ctx context.Context, name string, at time.Time) (string, error) {
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO job_runs (id, function_name, started_at) VALUES ($1, $2, $3)`,
		id, name, at.UTC()); err != nil {
		return "", fmt.Errorf("start job: %w", err)
	}
	return id, nil
}

func (s *Store) FinishJob(ctx context.Context, id string, at time.Time, rows, credits int, errorSummary *string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE job_runs SET finished_at = $2, rows_processed = $3, credits_used = $4, error_summary = $5 WHERE id = $1`,
		id, at.UTC(), rows, credits, errorSummary)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish job %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (s *Store) LatestRun(ctx context.Context, name string) (models.JobRun, error) {
	var r models.JobRun
	err := s.db.GetContext(ctx, &r,
		`SELECT `+jobRunColumns+` FROM job_runs WHERE function_name = $1 ORDER BY started_at DESC LIMIT 1`, name)
	if err != nil {
		return models.JobRun{}, notFound(err)
	}
	return r, nil
}

func (s *Store) RecentRuns(ctx context.Context, name string, limit int) ([]models.JobRun, error) {
	var out []models.JobRun
	err := s.db.SelectContext(ctx, &out,
		`SELECT `+jobRunColumns+` FROM job_runs WHERE ($1 = '' OR function_name = $1)
		 ORDER BY started_at DESC LIMIT $2`, name, limit)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	return out, nil
}

func (s *Store) GetState(ctx context.Context, key string, dst interface{}) error {
	var raw []byte
	if err := s.db.GetContext(ctx, &raw, `SELECT value FROM job_state WHERE key = $1`, key); err != nil {
		return notFound(err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode state %s: %w", key, err)
	}
	return nil
}

func (s *Store) PutState(ctx context.Context, key string, value interface{}) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode state %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO job_state (key, value, updated_at) VALUES ($1, $2::jsonb, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, string(b))
	if err != nil {
		return fmt.Errorf("put state %s: %w", key, err)
	}
	return nil
}
