package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"FxPipe/internal/domain/models"
	pkgkafka "FxPipe/pkg/kafka"
	applogger "FxPipe/pkg/logger"
)

// AlertTrigger consumes the intents topic and runs the delivery worker as
// soon as a new alert is announced.
type AlertTrigger struct {
	topic  string
	runner *Runner
	job    Job
	logger *applogger.Logger
}

func NewAlertTrigger(topic string, runner *Runner, notifier Job) *AlertTrigger {
	return &AlertTrigger{topic: topic, runner: runner, job: notifier}
}

func (h *AlertTrigger) SetLogger(l *applogger.Logger) { h.logger = l }

func (h *AlertTrigger) Topic() string { return h.topic }

func (h *AlertTrigger) Handle(ctx context.Context, key, value []byte) error {
	var ev models.IntentEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		return fmt.Errorf("decode intent event: %w", err)
	}
	if ev.EventType != models.EventTradeIntentCreated {
		return nil
	}
	h.logger.Debug("alert announced",
		applogger.String("symbol", string(key)),
		applogger.String("event_id", ev.EventID),
	)
	if _, err := h.runner.Run(ctx, h.job); err != nil {
		return fmt.Errorf("notify on %s: %w", ev.EventID, err)
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*AlertTrigger)(nil)
