package postgres

import (
	"context"
	"fmt"

	"FxPipe/internal/domain/models"
)

func (s *Store) Instruments(ctx context.Context) ([]models.Instrument, error) {
	var out []models.Instrument
	if err := s.db.SelectContext(ctx, &out,
		`SELECT symbol, pip_size, digits, contract_size, base_ccy, quote_ccy FROM instruments ORDER BY symbol`); err != nil {
		return nil, fmt.Errorf("instruments: %w", err)
	}
	return out, nil
}

func (s *Store) LatestAccount(ctx context.Context) (models.AccountState, error) {
	var a models.AccountState
	err := s.db.GetContext(ctx, &a,
		`SELECT equity, currency, updated_at FROM account_state ORDER BY updated_at DESC, id DESC LIMIT 1`)
	if err != nil {
		return models.AccountState{}, notFound(err)
	}
	return a, nil
}

// Settings maps NULL columns to zero so Resolved can apply defaults.
func (s *Store) Settings(ctx context.Context) (models.SystemSettings, error) {
	var st models.SystemSettings
	err := s.db.GetContext(ctx, &st,
		`SELECT COALESCE(risk_per_trade, 0) AS risk_per_trade,
		        COALESCE(max_total_risk, 0) AS max_total_risk,
		        COALESCE(min_rr, 0) AS min_rr,
		        COALESCE(max_open_trades, 0) AS max_open_trades
		 FROM system_settings WHERE id = 1`)
	if err != nil {
		return models.SystemSettings{}, notFound(err)
	}
	return st, nil
}

func (s *Store) OpenPositions(ctx context.Context) ([]models.OpenPosition, error) {
	var out []models.OpenPosition
	if err := s.db.SelectContext(ctx, &out,
		`SELECT symbol, risk_amount, status FROM open_positions WHERE status = 'open'`); err != nil {
		return nil, fmt.Errorf("open positions: %w", err)
	}
	return out, nil
}
