package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"FxPipe/internal/domain/models"
	drepo "FxPipe/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const eventColumns = `id, event_type, dedupe_key, payload, status, created_at`

// InsertEvent relies on the unique dedupe_key: a conflicting insert
// returns no row and maps to ErrDuplicate.
func (s *Store) InsertEvent(ctx context.Context, ev *models.NotificationEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Status == "" {
		ev.Status = models.EventPending
	}
	var created sql.NullTime
	err := s.db.GetContext(ctx, &created,
		`INSERT INTO notification_events (id, event_type, dedupe_key, payload, status)
		 VALUES ($1, $2, $3, $4::jsonb, $5)
		 ON CONFLICT (dedupe_key) DO NOTHING
		 RETURNING created_at`,
		ev.ID, ev.EventType, ev.DedupeKey, ev.Payload, string(ev.Status))
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	ev.CreatedAt = created.Time.UTC()
	return nil
}

// PendingEvents returns pending and partial events, oldest first. With an
// enabled filter an event is kept only while some channel has neither a
// sent delivery nor exhausted attempts.
func (s *Store) PendingEvents(ctx context.Context, limit int, f drepo.PendingFilter) ([]models.NotificationEvent, error) {
	channels := []string{}
	if f.Enabled() {
		for _, ch := range f.Channels {
			channels = append(channels, string(ch))
		}
	}
	var out []models.NotificationEvent
	err := s.db.SelectContext(ctx, &out,
		`SELECT `+eventColumns+` FROM notification_events e
		 WHERE e.status IN ('pending', 'partial')
		   AND (cardinality($2::text[]) = 0 OR EXISTS (
		     SELECT 1 FROM unnest($2::text[]) AS c(name)
		     WHERE NOT EXISTS (
		       SELECT 1 FROM notification_deliveries d
		       WHERE d.event_id = e.id AND d.channel = c.name
		         AND (d.status = 'sent' OR d.attempts >= $3))))
		 ORDER BY e.created_at ASC LIMIT $1`, limit, pq.Array(channels), f.MaxAttempts)
	if err != nil {
		return nil, fmt.Errorf("pending events: %w", err)
	}
	return out, nil
}

func (s *Store) Deliveries(ctx context.Context, eventID string) ([]models.NotificationDelivery, error) {
	var out []models.NotificationDelivery
	err := s.db.SelectContext(ctx, &out,
		`SELECT event_id, channel, status, attempts, sent_at, last_error
		 FROM notification_deliveries WHERE event_id = $1
		 ORDER BY CASE channel WHEN 'telegram' THEN 0 WHEN 'email' THEN 1 ELSE 2 END`, eventID)
	if err != nil {
		return nil, fmt.Errorf("deliveries: %w", err)
	}
	return out, nil
}

func (s *Store) UpsertDelivery(ctx context.Context, d models.NotificationDelivery) error {
	_, err := sqlx.NamedExecContext(ctx, s.db,
		`INSERT INTO notification_deliveries (event_id, channel, status, attempts, sent_at, last_error)
		 VALUES (:event_id, :channel, :status, :attempts, :sent_at, :last_error)
		 ON CONFLICT (event_id, channel) DO UPDATE SET
			status = EXCLUDED.status, attempts = EXCLUDED.attempts,
			sent_at = EXCLUDED.sent_at, last_error = EXCLUDED.last_error`, d)
	if err != nil {
		return fmt.Errorf("upsert delivery: %w", err)
	}
	return nil
}

func (s *Store) SetEventStatus(ctx context.Context, eventID string, status models.EventStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE notification_events SET status = $2 WHERE id = $1`, eventID, string(status))
	if err != nil {
		return fmt.Errorf("set event status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("event %s: %w", eventID, models.ErrNotFound)
	}
	return nil
}

func (s *Store) PushSubscriptions(ctx context.Context) ([]models.PushSubscription, error) {
	var out []models.PushSubscription
	if err := s.db.SelectContext(ctx, &out, `SELECT id, endpoint, p256dh, auth FROM push_subscriptions`); err != nil {
		return nil, fmt.Errorf("push subscriptions: %w", err)
	}
	return out, nil
}
