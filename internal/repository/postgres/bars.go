package postgres

import (
	"context"
	"fmt"
	"time"

	"FxPipe/internal/domain/models"
	drepo "FxPipe/internal/domain/repository"
	applogger "FxPipe/pkg/logger"
)

// Rows per multi-row INSERT. Ten columns per bar keeps every statement
// well under the 65535 bind parameter limit.
const upsertChunk = 2000

const barColumns = `symbol, tf, time, open, high, low, close, volume, source, ingested_at`

func (s *Store) UpsertRaw(ctx context.Context, bars []models.Bar) error {
	for start := 0; start < len(bars); start += upsertChunk {
		chunk := bars[start:min(start+upsertChunk, len(bars))]
		args := make([]interface{}, 0, len(chunk)*10)
		for _, b := range chunk {
			args = append(args, b.Symbol, string(b.Timeframe), b.Time.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume, b.Source, b.IngestedAt.UTC())
		}
		q := `INSERT INTO bars_raw (` + barColumns + `) VALUES ` + placeholders(len(chunk), 10) + `
			ON CONFLICT (symbol, tf, time) DO UPDATE SET
				open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low, close = EXCLUDED.close,
				volume = EXCLUDED.volume, source = EXCLUDED.source, ingested_at = EXCLUDED.ingested_at`
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("postgres upsert raw bars failed", applogger.Int("rows", len(chunk)), applogger.Error(err))
			return fmt.Errorf("upsert raw bars: %w", err)
		}
	}
	return nil
}

func (s *Store) UpsertClean(ctx context.Context, bars []models.CleanBar) error {
	for start := 0; start < len(bars); start += upsertChunk {
		chunk := bars[start:min(start+upsertChunk, len(bars))]
		args := make([]interface{}, 0, len(chunk)*12)
		for _, b := range chunk {
			args = append(args, b.Symbol, string(b.Timeframe), b.Time.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume, b.Source, b.IngestedAt.UTC(),
				b.QualityScore, b.ValidatedAt.UTC())
		}
		q := `INSERT INTO bars_clean (` + barColumns + `, quality_score, validated_at) VALUES ` + placeholders(len(chunk), 12) + `
			ON CONFLICT (symbol, tf, time) DO UPDATE SET
				open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low, close = EXCLUDED.close,
				volume = EXCLUDED.volume, source = EXCLUDED.source, ingested_at = EXCLUDED.ingested_at,
				quality_score = EXCLUDED.quality_score, validated_at = EXCLUDED.validated_at`
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("postgres upsert clean bars failed", applogger.Int("rows", len(chunk)), applogger.Error(err))
			return fmt.Errorf("upsert clean bars: %w", err)
		}
	}
	return nil
}

func (s *Store) OldestRawTime(ctx context.Context, symbol string, tf drepo.Timeframe) (time.Time, error) {
	var oldest *time.Time
	err := s.db.GetContext(ctx, &oldest, `SELECT MIN(time) FROM bars_raw WHERE symbol = $1 AND tf = $2`, symbol, string(tf))
	if err != nil {
		return time.Time{}, fmt.Errorf("oldest raw time: %w", err)
	}
	if oldest == nil {
		return time.Time{}, models.ErrNotFound
	}
	return oldest.UTC(), nil
}

func (s *Store) RawTimesSince(ctx context.Context, symbol string, tf drepo.Timeframe, from time.Time) ([]time.Time, error) {
	var out []time.Time
	err := s.db.SelectContext(ctx, &out,
		`SELECT time FROM bars_raw WHERE symbol = $1 AND tf = $2 AND time >= $3 ORDER BY time ASC`,
		symbol, string(tf), from.UTC())
	if err != nil {
		return nil, fmt.Errorf("raw times: %w", err)
	}
	for i := range out {
		out[i] = out[i].UTC()
	}
	return out, nil
}

// RecentRaw reads newest first and reverses so callers see ascending time.
func (s *Store) RecentRaw(ctx context.Context, symbol string, tf drepo.Timeframe, limit int) ([]models.Bar, error) {
	var out []models.Bar
	err := s.db.SelectContext(ctx, &out,
		`SELECT `+barColumns+` FROM bars_raw WHERE symbol = $1 AND tf = $2 ORDER BY time DESC LIMIT $3`,
		symbol, string(tf), limit)
	if err != nil {
		return nil, fmt.Errorf("recent raw: %w", err)
	}
	reverse(out)
	for i := range out {
		out[i].Time = out[i].Time.UTC()
	}
	return out, nil
}

func (s *Store) RecentClean(ctx context.Context, symbol string, tf drepo.Timeframe, limit int) ([]models.CleanBar, error) {
	var out []models.CleanBar
	err := s.db.SelectContext(ctx, &out,
		`SELECT `+barColumns+`, quality_score, validated_at FROM bars_clean
		 WHERE symbol = $1 AND tf = $2 ORDER BY time DESC LIMIT $3`,
		symbol, string(tf), limit)
	if err != nil {
		return nil, fmt.Errorf("recent clean: %w", err)
	}
	reverse(out)
	for i := range out {
		out[i].Time = out[i].Time.UTC()
	}
	return out, nil
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
