package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"FxPipe/internal/domain/models"
	drepo "FxPipe/internal/domain/repository"
	"FxPipe/internal/domain/service"
	applogger "FxPipe/pkg/logger"
)

// NotifierConfig bounds one delivery pass.
type NotifierConfig struct {
	MaxAttempts int
	BatchSize   int
}

// Notifier drains pending and partially delivered events through every
// registered channel. Runs are serialized so the cron tick and the Kafka
// fast path never attempt the same delivery concurrently.
type Notifier struct {
	mu       sync.Mutex
	store    drepo.NotificationStore
	channels *service.Registry
	metrics  drepo.Metrics
	cfg      NotifierConfig
	logger   *applogger.Logger
	now      func() time.Time
}

func NewNotifier(store drepo.NotificationStore, channels *service.Registry, metrics drepo.Metrics, cfg NotifierConfig) *Notifier {
	return &Notifier{store: store, channels: channels, metrics: metrics, cfg: cfg, now: time.Now}
}

func (n *Notifier) SetLogger(l *applogger.Logger) { n.logger = l }

func (n *Notifier) SetClock(now func() time.Time) { n.now = now }

func (n *Notifier) Name() string { return JobNotify }

func (n *Notifier) Run(ctx context.Context) (models.JobResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	var res models.JobResult
	filter := drepo.PendingFilter{MaxAttempts: n.cfg.MaxAttempts}
	for _, ch := range n.channels.Ordered() {
		filter.Channels = append(filter.Channels, ch.Name())
	}
	events, err := n.store.PendingEvents(ctx, n.cfg.BatchSize, filter)
	if err != nil {
		return res, fmt.Errorf("load pending events: %w", err)
	}

	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if n.deliver(ctx, ev) {
			res.RowsProcessed++
		}
	}
	return res, nil
}

// deliver attempts every channel that is neither sent nor out of attempts,
// then recomputes the event status from the stored deliveries.
func (n *Notifier) deliver(ctx context.Context, ev models.NotificationEvent) bool {
	log := n.logger.With(applogger.String("event_id", ev.ID))

	existing, err := n.store.Deliveries(ctx, ev.ID)
	if err != nil {
		log.Warn("load deliveries failed", applogger.Error(err))
		return false
	}
	prior := make(map[models.Channel]models.NotificationDelivery, len(existing))
	for _, d := range existing {
		prior[d.Channel] = d
	}

	for _, ch := range n.channels.Ordered() {
		name := ch.Name()
		prev, seen := prior[name]
		if seen && (prev.Status == models.DeliverySent || prev.Attempts >= n.cfg.MaxAttempts) {
			continue
		}

		d := models.NotificationDelivery{
			EventID:  ev.ID,
			Channel:  name,
			Attempts: prev.Attempts + 1,
		}
		if sendErr := ch.Send(ctx, ev); sendErr != nil {
			msg := sendErr.Error()
			d.Status = models.DeliveryFailed
			d.LastError = &msg
			log.Warn("delivery failed", applogger.String("channel", string(name)), applogger.Int("attempts", d.Attempts), applogger.Error(sendErr))
		} else {
			sent := n.now().UTC()
			d.Status = models.DeliverySent
			d.SentAt = &sent
		}
		n.metrics.RecordDelivery(string(name), string(d.Status))

		if err := n.store.UpsertDelivery(ctx, d); err != nil {
			log.Warn("store delivery failed", applogger.String("channel", string(name)), applogger.Error(err))
		}
	}

	after, err := n.store.Deliveries(ctx, ev.ID)
	if err != nil {
		log.Warn("reload deliveries failed", applogger.Error(err))
		return false
	}
	status := models.AggregateStatus(after)
	if err := n.store.SetEventStatus(ctx, ev.ID, status); err != nil {
		log.Warn("set event status failed", applogger.Error(err))
		return false
	}
	log.Debug("event processed", applogger.String("status", string(status)))
	return true
}
