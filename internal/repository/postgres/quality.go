package postgres

import (
	"context"
	"fmt"

	"FxPipe/internal/domain/models"
	drepo "FxPipe/internal/domain/repository"
)

func (s *Store) Append(ctx context.Context, ev models.QualityEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO data_quality_events (symbol, tf, time, event_type, severity, details)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb)`,
		ev.Symbol, string(ev.Timeframe), ev.Time, string(ev.Kind), string(ev.Severity), ev.Details)
	if err != nil {
		return fmt.Errorf("append quality event: %w", err)
	}
	return nil
}

// Recent lists events newest first. Empty symbol or tf match everything.
func (s *Store) Recent(ctx context.Context, symbol string, tf drepo.Timeframe, limit int) ([]models.QualityEvent, error) {
	var out []models.QualityEvent
	err := s.db.SelectContext(ctx, &out,
		`SELECT id, symbol, tf, time, event_type, severity, details, created_at
		 FROM data_quality_events
		 WHERE ($1 = '' OR symbol = $1) AND ($2 = '' OR tf = $2)
		 ORDER BY created_at DESC, id DESC LIMIT $3`,
		symbol, string(tf), limit)
	if err != nil {
		return nil, fmt.Errorf("recent quality events: %w", err)
	}
	return out, nil
}
