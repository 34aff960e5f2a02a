package postgres

// Schema is applied at start-up. Every statement is idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS instruments (
		symbol        TEXT PRIMARY KEY,
		pip_size      DOUBLE PRECISION NOT NULL,
		digits        INTEGER NOT NULL,
		contract_size DOUBLE PRECISION NOT NULL,
		base_ccy      TEXT NOT NULL,
		quote_ccy     TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS account_state (
		id         BIGSERIAL PRIMARY KEY,
		equity     DOUBLE PRECISION NOT NULL,
		currency   TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS system_settings (
		id              INTEGER PRIMARY KEY DEFAULT 1 CHECK (id = 1),
		risk_per_trade  DOUBLE PRECISION,
		max_total_risk  DOUBLE PRECISION,
		max_open_trades INTEGER,
		min_rr          DOUBLE PRECISION
	)`,
	`CREATE TABLE IF NOT EXISTS open_positions (
		id          BIGSERIAL PRIMARY KEY,
		symbol      TEXT NOT NULL,
		risk_amount DOUBLE PRECISION NOT NULL,
		status      TEXT NOT NULL DEFAULT 'open'
	)`,
	`CREATE TABLE IF NOT EXISTS bars_raw (
		symbol      TEXT NOT NULL,
		tf          TEXT NOT NULL,
		time        TIMESTAMPTZ NOT NULL,
		open        DOUBLE PRECISION NOT NULL,
		high        DOUBLE PRECISION NOT NULL,
		low         DOUBLE PRECISION NOT NULL,
		close       DOUBLE PRECISION NOT NULL,
		volume      DOUBLE PRECISION,
		source      TEXT NOT NULL,
		ingested_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (symbol, tf, time)
	)`,
	`CREATE TABLE IF NOT EXISTS bars_clean (
		symbol        TEXT NOT NULL,
		tf            TEXT NOT NULL,
		time          TIMESTAMPTZ NOT NULL,
		open          DOUBLE PRECISION NOT NULL,
		high          DOUBLE PRECISION NOT NULL,
		low           DOUBLE PRECISION NOT NULL,
		close         DOUBLE PRECISION NOT NULL,
		volume        DOUBLE PRECISION,
		source        TEXT NOT NULL,
		ingested_at   TIMESTAMPTZ NOT NULL,
		quality_score INTEGER NOT NULL,
		validated_at  TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (symbol, tf, time)
	)`,
	`CREATE TABLE IF NOT EXISTS data_quality_events (
		id         BIGSERIAL PRIMARY KEY,
		symbol     TEXT NOT NULL,
		tf         TEXT NOT NULL,
		time       TIMESTAMPTZ,
		event_type TEXT NOT NULL,
		severity   TEXT NOT NULL,
		details    JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS data_quality_events_lookup ON data_quality_events (symbol, tf, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS job_runs (
		id             TEXT PRIMARY KEY,
		function_name  TEXT NOT NULL,
		started_at     TIMESTAMPTZ NOT NULL,
		finished_at    TIMESTAMPTZ,
		rows_processed INTEGER NOT NULL DEFAULT 0,
		credits_used   INTEGER NOT NULL DEFAULT 0,
		error_summary  TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS job_runs_by_name ON job_runs (function_name, started_at DESC)`,
	`CREATE TABLE IF NOT EXISTS job_state (
		key        TEXT PRIMARY KEY,
		value      JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS signals (
		id          TEXT PRIMARY KEY,
		symbol      TEXT NOT NULL,
		tf          TEXT NOT NULL,
		side        TEXT NOT NULL,
		setup       TEXT NOT NULL,
		entry_type  TEXT NOT NULL,
		entry_price DOUBLE PRECISION NOT NULL,
		stop_price  DOUBLE PRECISION NOT NULL,
		tp1_price   DOUBLE PRECISION NOT NULL,
		rr_expected DOUBLE PRECISION NOT NULL,
		confidence  DOUBLE PRECISION NOT NULL,
		bar_time    TIMESTAMPTZ NOT NULL,
		expires_at  TIMESTAMPTZ NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS trade_intents (
		id              TEXT PRIMARY KEY,
		signal_id       TEXT NOT NULL REFERENCES signals (id),
		status          TEXT NOT NULL,
		suggested_lots  DOUBLE PRECISION NOT NULL,
		suggested_entry DOUBLE PRECISION NOT NULL,
		suggested_stop  DOUBLE PRECISION NOT NULL,
		suggested_tp1   DOUBLE PRECISION NOT NULL,
		risk_amount     DOUBLE PRECISION NOT NULL,
		stop_pips       DOUBLE PRECISION NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS notification_events (
		id         TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		dedupe_key TEXT NOT NULL UNIQUE,
		payload    JSONB NOT NULL,
		status     TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS notification_events_pending ON notification_events (created_at) WHERE status IN ('pending', 'partial')`,
	`CREATE TABLE IF NOT EXISTS notification_deliveries (
		event_id   TEXT NOT NULL REFERENCES notification_events (id),
		channel    TEXT NOT NULL,
		status     TEXT NOT NULL,
		attempts   INTEGER NOT NULL DEFAULT 0,
		sent_at    TIMESTAMPTZ,
		last_error TEXT,
		PRIMARY KEY (event_id, channel)
	)`,
	`CREATE TABLE IF NOT EXISTS push_subscriptions (
		id       TEXT PRIMARY KEY,
		endpoint TEXT NOT NULL UNIQUE,
		p256dh   TEXT NOT NULL,
		auth     TEXT NOT NULL
	)`,
}
