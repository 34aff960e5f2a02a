package repository

import (
	"context"
	"fmt"

	"FxPipe/internal/domain/models"
	drepo "FxPipe/internal/domain/repository"
	pkgkafka "FxPipe/pkg/kafka"
	applogger "FxPipe/pkg/logger"
)

// producer is the subset of *pkgkafka.Producer the publisher needs.
type producer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

var _ producer = (*pkgkafka.Producer)(nil)

// KafkaIntentPublisher writes intent events keyed by symbol so every alert
// for one pair keeps its order on a single partition.
type KafkaIntentPublisher struct {
	producer producer
	topic    string
	l        *applogger.Logger
}

var _ drepo.IntentPublisher = (*KafkaIntentPublisher)(nil)

func NewKafkaIntentPublisher(p *pkgkafka.Producer, topic string) *KafkaIntentPublisher {
	return &KafkaIntentPublisher{producer: p, topic: topic}
}

// SetLogger injects a structured logger.
func (p *KafkaIntentPublisher) SetLogger(l *applogger.Logger) { p.l = l }

func (p *KafkaIntentPublisher) PublishIntent(ctx context.Context, ev models.IntentEvent) error {
	if err := p.producer.Publish(ctx, p.topic, []byte(ev.Payload.Symbol), ev); err != nil {
		p.l.Warn("intent publish failed",
			applogger.String("topic", p.topic),
			applogger.String("event_id", ev.EventID),
			applogger.Error(err),
		)
		return fmt.Errorf("publish intent %s: %w", ev.IntentID, err)
	}
	return nil
}

func (p *KafkaIntentPublisher) Close() error { return p.producer.Close() }

// NopIntentPublisher is used when Kafka is disabled; the notify schedule
// still picks up pending events.
type NopIntentPublisher struct{}

var _ drepo.IntentPublisher = NopIntentPublisher{}

func (NopIntentPublisher) PublishIntent(context.Context, models.IntentEvent) error { return nil }

func (NopIntentPublisher) Close() error { return nil }
