package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"FxPipe/internal/domain/models"
	drepo "FxPipe/internal/domain/repository"
	pkgch "FxPipe/pkg/clickhouse"
	applogger "FxPipe/pkg/logger"
)

const insertChunk = 2000

// BarStore implements repository.BarStore backed by ClickHouse.
type BarStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

var _ drepo.BarStore = (*BarStore)(nil)

func NewBarStore(ch *pkgch.Client) *BarStore {
	return &BarStore{db: ch.DB(), database: ch.Database()}
}

// SetLogger injects a structured logger.
func (s *BarStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *BarStore) table(name string) string { return s.database + "." + name }

func (s *BarStore) UpsertRaw(ctx context.Context, bars []models.Bar) error {
	for start := 0; start < len(bars); start += insertChunk {
		chunk := bars[start:min(start+insertChunk, len(bars))]
		values := make([]string, 0, len(chunk))
		args := make([]interface{}, 0, len(chunk)*10)
		for _, b := range chunk {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, b.Symbol, string(b.Timeframe), b.Time.UTC(),
				b.Open, b.High, b.Low, b.Close, b.Volume, b.Source, b.IngestedAt.UTC())
		}
		q := fmt.Sprintf("INSERT INTO %s (symbol, tf, time, open, high, low, close, volume, source, ingested_at) VALUES %s",
			s.table("bars_raw"), strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse upsert_raw error", applogger.Int("rows", len(chunk)), applogger.Error(err))
			return fmt.Errorf("upsert raw bars: %w", err)
		}
	}
	return nil
}

func (s *BarStore) UpsertClean(ctx context.Context, bars []models.CleanBar) error {
	for start := 0; start < len(bars); start += insertChunk {
		chunk := bars[start:min(start+insertChunk, len(bars))]
		values := make([]string, 0, len(chunk))
		args := make([]interface{}, 0, len(chunk)*12)
		for _, b := range chunk {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, b.Symbol, string(b.Timeframe), b.Time.UTC(),
				b.Open, b.High, b.Low, b.Close, b.Volume, b.Source, b.IngestedAt.UTC(),
				uint8(max(0, min(100, b.QualityScore))), b.ValidatedAt.UTC())
		}
		q := fmt.Sprintf("INSERT INTO %s (symbol, tf, time, open, high, low, close, volume, source, ingested_at, quality_score, validated_at) VALUES %s",
			s.table("bars_clean"), strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse upsert_clean error", applogger.Int("rows", len(chunk)), applogger.Error(err))
			return fmt.Errorf("upsert clean bars: %w", err)
		}
	}
	return nil
}

// OldestRawTime checks count() because min() over no rows yields the epoch.
func (s *BarStore) OldestRawTime(ctx context.Context, symbol string, tf drepo.Timeframe) (time.Time, error) {
	var (
		n      uint64
		oldest time.Time
	)
	q := fmt.Sprintf("SELECT count(), min(time) FROM %s WHERE symbol = ? AND tf = ?", s.table("bars_raw"))
	if err := s.db.QueryRowContext(ctx, q, symbol, string(tf)).Scan(&n, &oldest); err != nil {
		return time.Time{}, fmt.Errorf("oldest raw time: %w", err)
	}
	if n == 0 {
		return time.Time{}, models.ErrNotFound
	}
	return oldest.UTC(), nil
}

func (s *BarStore) RawTimesSince(ctx context.Context, symbol string, tf drepo.Timeframe, from time.Time) ([]time.Time, error) {
	q := fmt.Sprintf("SELECT DISTINCT time FROM %s WHERE symbol = ? AND tf = ? AND time >= ? ORDER BY time ASC", s.table("bars_raw"))
	rows, err := s.db.QueryContext(ctx, q, symbol, string(tf), from.UTC())
	if err != nil {
		return nil, fmt.Errorf("raw times: %w", err)
	}
	defer rows.Close()
	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan time: %w", err)
		}
		out = append(out, t.UTC())
	}
	return out, rows.Err()
}

func (s *BarStore) RecentRaw(ctx context.Context, symbol string, tf drepo.Timeframe, limit int) ([]models.Bar, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT symbol, tf, time, open, high, low, close, volume, source, ingested_at
        FROM %s FINAL
        WHERE symbol = ? AND tf = ?
        ORDER BY time DESC
        LIMIT ?`, s.table("bars_raw"))
	rows, err := s.db.QueryContext(ctx, q, symbol, string(tf), limit)
	if err != nil {
		s.l.Error("clickhouse recent_raw query error",
			applogger.String("symbol", symbol), applogger.String("tf", string(tf)), applogger.Error(err))
		return nil, fmt.Errorf("recent raw: %w", err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, limit)
	for rows.Next() {
		var (
			b  models.Bar
			tfs string
		)
		if err := rows.Scan(&b.Symbol, &tfs, &b.Time, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.Source, &b.IngestedAt); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Timeframe = models.Timeframe(tfs)
		b.Time = b.Time.UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	reverse(out)
	s.l.Debug("clickhouse recent_raw ok",
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *BarStore) RecentClean(ctx context.Context, symbol string, tf drepo.Timeframe, limit int) ([]models.CleanBar, error) {
	q := fmt.Sprintf(`
        SELECT symbol, tf, time, open, high, low, close, volume, source, ingested_at, quality_score, validated_at
        FROM %s FINAL
        WHERE symbol = ? AND tf = ?
        ORDER BY time DESC
        LIMIT ?`, s.table("bars_clean"))
	rows, err := s.db.QueryContext(ctx, q, symbol, string(tf), limit)
	if err != nil {
		s.l.Error("clickhouse recent_clean query error",
			applogger.String("symbol", symbol), applogger.String("tf", string(tf)), applogger.Error(err))
		return nil, fmt.Errorf("recent clean: %w", err)
	}
	defer rows.Close()

	out := make([]models.CleanBar, 0, limit)
	for rows.Next() {
		var (
			b     models.CleanBar
			tfs   string
			score uint8
		)
		if err := rows.Scan(&b.Symbol, &tfs, &b.Time, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.Source, &b.IngestedAt, &score, &b.ValidatedAt); err != nil {
			return nil, fmt.Errorf("scan clean bar: %w", err)
		}
		b.Timeframe = models.Timeframe(tfs)
		b.Time = b.Time.UTC()
		b.QualityScore = int(score)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	reverse(out)
	return out, nil
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
