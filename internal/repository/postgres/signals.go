package postgres

import (
	"context"
	"fmt"
	"time"

	"FxPipe/internal/domain/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

func (s *Store) InsertSignal(ctx context.Context, sig *models.Signal) error {
	if sig.ID == "" {
		sig.ID = uuid.NewString()
	}
	sig.BarTime = sig.BarTime.UTC()
	sig.ExpiresAt = sig.ExpiresAt.UTC()
	rows, err := sqlx.NamedQueryContext(ctx, s.db,
		`INSERT INTO signals (id, symbol, tf, side, setup, entry_type, entry_price, stop_price, tp1_price,
			rr_expected, confidence, bar_time, expires_at)
		 VALUES (:id, :symbol, :tf, :side, :setup, :entry_type, :entry_price, :stop_price, :tp1_price,
			:rr_expected, :confidence, :bar_time, :expires_at)
		 RETURNING created_at`, sig)
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		var created time.Time
		if err := rows.Scan(&created); err != nil {
			return fmt.Errorf("insert signal: %w", err)
		}
		sig.CreatedAt = created.UTC()
	}
	return rows.Err()
}

func (s *Store) InsertIntent(ctx context.Context, in *models.TradeIntent) error {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.Status == "" {
		in.Status = models.IntentStatusNew
	}
	rows, err := sqlx.NamedQueryContext(ctx, s.db,
		`INSERT INTO trade_intents (id, signal_id, status, suggested_lots, suggested_entry, suggested_stop,
			suggested_tp1, risk_amount, stop_pips)
		 VALUES (:id, :signal_id, :status, :suggested_lots, :suggested_entry, :suggested_stop,
			:suggested_tp1, :risk_amount, :stop_pips)
		 RETURNING created_at`, in)
	if err != nil {
		return fmt.Errorf("insert intent: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		var created time.Time
		if err := rows.Scan(&created); err != nil {
			return fmt.Errorf("insert intent: %w", err)
		}
		in.CreatedAt = created.UTC()
	}
	return rows.Err()
}
