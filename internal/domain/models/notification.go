package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Channel names a delivery channel.
type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelEmail    Channel = "email"
	ChannelPush     Channel = "push"
)

// AllChannels is the fixed delivery order.
func AllChannels() []Channel {
	return []Channel{ChannelTelegram, ChannelEmail, ChannelPush}
}

// EventStatus is derived from deliveries except at creation.
type EventStatus string

const (
	EventPending EventStatus = "pending"
	EventPartial EventStatus = "partial"
	EventSent    EventStatus = "sent"
	EventFailed  EventStatus = "failed"
)

// DeliveryStatus of one channel.
type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

const EventTradeIntentCreated = "trade_intent_created"

// AlertPayload is the rendered content of a trade alert.
type AlertPayload struct {
	Title     string  `json:"title"`
	Symbol    string  `json:"symbol"`
	TF        string  `json:"tf"`
	Side      string  `json:"side"`
	Entry     float64 `json:"entry"`
	SL        float64 `json:"sl"`
	TP1       float64 `json:"tp1"`
	RR        float64 `json:"rr"`
	Lots      float64 `json:"lots"`
	ExpiresAt string  `json:"expires_at"`
	URL       string  `json:"url"`
}

func (p AlertPayload) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *AlertPayload) Scan(src interface{}) error { return scanJSON(src, p) }

// NotificationEvent is unique by DedupeKey.
type NotificationEvent struct {
	ID        string       `db:"id" json:"id"`
	EventType string       `db:"event_type" json:"event_type"`
	DedupeKey string       `db:"dedupe_key" json:"dedupe_key"`
	Payload   AlertPayload `db:"payload" json:"payload"`
	Status    EventStatus  `db:"status" json:"status"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}

// NotificationDelivery is unique by (EventID, Channel).
type NotificationDelivery struct {
	EventID   string         `db:"event_id" json:"event_id"`
	Channel   Channel        `db:"channel" json:"channel"`
	Status    DeliveryStatus `db:"status" json:"status"`
	Attempts  int            `db:"attempts" json:"attempts"`
	SentAt    *time.Time     `db:"sent_at" json:"sent_at,omitempty"`
	LastError *string        `db:"last_error" json:"last_error,omitempty"`
}

// PushSubscription is a registered browser endpoint.
type PushSubscription struct {
	ID       string `db:"id" json:"id"`
	Endpoint string `db:"endpoint" json:"endpoint"`
	P256dh   string `db:"p256dh" json:"p256dh"`
	Auth     string `db:"auth" json:"auth"`
}

// AggregateStatus derives the event status from its delivery rows.
func AggregateStatus(deliveries []NotificationDelivery) EventStatus {
	if len(deliveries) == 0 {
		return EventFailed
	}
	sent := 0
	for _, d := range deliveries {
		if d.Status == DeliverySent {
			sent++
		}
	}
	switch {
	case sent == len(deliveries):
		return EventSent
	case sent > 0:
		return EventPartial
	default:
		return EventFailed
	}
}
