package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"FxPipe/internal/domain/models"
	"FxPipe/internal/domain/service"
	"FxPipe/internal/repository/memory"
	"FxPipe/pkg/metrics"
)

func seedEvent(t *testing.T, store *memory.Store, key string) models.NotificationEvent {
	t.Helper()
	ev := &models.NotificationEvent{
		EventType: models.EventTradeIntentCreated,
		DedupeKey: key,
		Payload:   models.AlertPayload{Title: "TRADE ALERT: EURUSD H1 BUY", Symbol: "EURUSD", Side: "BUY"},
	}
	if err := store.InsertEvent(context.Background(), ev); err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return *ev
}

func channels() (*fakeChannel, *fakeChannel, *fakeChannel, *service.Registry) {
	tg := &fakeChannel{name: models.ChannelTelegram}
	em := &fakeChannel{name: models.ChannelEmail}
	push := &fakeChannel{name: models.ChannelPush}
	return tg, em, push, service.NewRegistry(push, tg, em)
}

func eventStatus(t *testing.T, store *memory.Store, id string) models.EventStatus {
	t.Helper()
	for _, ev := range store.Events() {
		if ev.ID == id {
			return ev.Status
		}
	}
	t.Fatalf("event %s not found", id)
	return ""
}

func TestNotifierAllChannelsSent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	ev := seedEvent(t, store, "k1")
	_, _, _, reg := channels()

	res, err := NewNotifier(store, reg, metrics.Nop{}, NotifierConfig{MaxAttempts: 5, BatchSize: 20}).Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.RowsProcessed != 1 {
		t.Fatalf("rows = %d", res.RowsProcessed)
	}
	if got := eventStatus(t, store, ev.ID); got != models.EventSent {
		t.Fatalf("status = %s, want sent", got)
	}
	ds, _ := store.Deliveries(ctx, ev.ID)
	if len(ds) != 3 {
		t.Fatalf("deliveries = %d", len(ds))
	}
	for _, d := range ds {
		if d.Status != models.DeliverySent || d.Attempts != 1 || d.SentAt == nil || d.LastError != nil {
			t.Fatalf("unexpected delivery %+v", d)
		}
	}
}

func TestNotifierPartialThenRetry(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	ev := seedEvent(t, store, "k1")
	tg, em, push, reg := channels()
	em.failures = 1
	n := NewNotifier(store, reg, metrics.Nop{}, NotifierConfig{MaxAttempts: 5, BatchSize: 20})

	if _, err := n.Run(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if got := eventStatus(t, store, ev.ID); got != models.EventPartial {
		t.Fatalf("status = %s, want partial", got)
	}
	ds, _ := store.Deliveries(ctx, ev.ID)
	for _, d := range ds {
		if d.Channel == models.ChannelEmail && (d.Status != models.DeliveryFailed || d.LastError == nil || *d.LastError != "email down") {
			t.Fatalf("email delivery = %+v", d)
		}
	}

	if _, err := n.Run(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if tg.calls != 1 || push.calls != 1 {
		t.Fatalf("sent channels were retried: telegram=%d push=%d", tg.calls, push.calls)
	}
	if em.calls != 2 {
		t.Fatalf("email calls = %d, want 2", em.calls)
	}
	if got := eventStatus(t, store, ev.ID); got != models.EventSent {
		t.Fatalf("status = %s, want sent", got)
	}
	ds, _ = store.Deliveries(ctx, ev.ID)
	for _, d := range ds {
		if d.Channel == models.ChannelEmail && (d.Attempts != 2 || d.LastError != nil) {
			t.Fatalf("email delivery after retry = %+v", d)
		}
	}
}

func TestNotifierAllFailedIsTerminal(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	ev := seedEvent(t, store, "k1")
	tg, em, push, reg := channels()
	tg.failures, em.failures, push.failures = 9, 9, 9
	n := NewNotifier(store, reg, metrics.Nop{}, NotifierConfig{MaxAttempts: 5, BatchSize: 20})

	if _, err := n.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := eventStatus(t, store, ev.ID); got != models.EventFailed {
		t.Fatalf("status = %s, want failed", got)
	}
	res, _ := n.Run(ctx)
	if res.RowsProcessed != 0 || tg.calls != 1 {
		t.Fatalf("failed events must not be picked up again")
	}
}

func TestNotifierRespectsMaxAttempts(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	ev := seedEvent(t, store, "k1")
	msg := "telegram down"
	_ = store.UpsertDelivery(ctx, models.NotificationDelivery{EventID: ev.ID, Channel: models.ChannelTelegram, Status: models.DeliveryFailed, Attempts: 5, LastError: &msg})
	_ = store.SetEventStatus(ctx, ev.ID, models.EventPartial)
	tg, _, _, reg := channels()

	if _, err := NewNotifier(store, reg, metrics.Nop{}, NotifierConfig{MaxAttempts: 5, BatchSize: 20}).Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if tg.calls != 0 {
		t.Fatalf("exhausted channel was attempted")
	}
	ds, _ := store.Deliveries(ctx, ev.ID)
	for _, d := range ds {
		if d.Channel == models.ChannelTelegram && d.Attempts != 5 {
			t.Fatalf("attempts changed to %d", d.Attempts)
		}
	}
	if got := eventStatus(t, store, ev.ID); got != models.EventPartial {
		t.Fatalf("status = %s, want partial", got)
	}
}

func TestNotifierBatchSizeOldestFirst(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	first := seedEvent(t, store, "k1")
	second := seedEvent(t, store, "k2")
	third := seedEvent(t, store, "k3")
	_, _, _, reg := channels()

	res, _ := NewNotifier(store, reg, metrics.Nop{}, NotifierConfig{MaxAttempts: 5, BatchSize: 2}).Run(ctx)
	if res.RowsProcessed != 2 {
		t.Fatalf("rows = %d, want 2", res.RowsProcessed)
	}
	if eventStatus(t, store, first.ID) != models.EventSent || eventStatus(t, store, second.ID) != models.EventSent {
		t.Fatalf("oldest events should be processed first")
	}
	if eventStatus(t, store, third.ID) != models.EventPending {
		t.Fatalf("third event should wait for the next batch")
	}
}

func TestNotifierSkipsExhaustedPartialEvents(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	stuck := seedEvent(t, store, "k1")
	msg := "email down"
	_ = store.UpsertDelivery(ctx, models.NotificationDelivery{EventID: stuck.ID, Channel: models.ChannelTelegram, Status: models.DeliverySent, Attempts: 1})
	_ = store.UpsertDelivery(ctx, models.NotificationDelivery{EventID: stuck.ID, Channel: models.ChannelEmail, Status: models.DeliveryFailed, Attempts: 5, LastError: &msg})
	_ = store.UpsertDelivery(ctx, models.NotificationDelivery{EventID: stuck.ID, Channel: models.ChannelPush, Status: models.DeliverySent, Attempts: 1})
	_ = store.SetEventStatus(ctx, stuck.ID, models.EventPartial)
	fresh := seedEvent(t, store, "k2")
	tg, em, push, reg := channels()

	res, err := NewNotifier(store, reg, metrics.Nop{}, NotifierConfig{MaxAttempts: 5, BatchSize: 1}).Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.RowsProcessed != 1 || eventStatus(t, store, fresh.ID) != models.EventSent {
		t.Fatalf("newer event should take the batch slot")
	}
	if tg.calls != 1 || em.calls != 1 || push.calls != 1 {
		t.Fatalf("calls telegram=%d email=%d push=%d, want 1 each", tg.calls, em.calls, push.calls)
	}
	if eventStatus(t, store, stuck.ID) != models.EventPartial {
		t.Fatalf("exhausted event status must stay partial")
	}
}

func TestAlertTriggerRunsNotifier(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	ev := seedEvent(t, store, "k1")
	_, _, _, reg := channels()
	notifier := NewNotifier(store, reg, metrics.Nop{}, NotifierConfig{MaxAttempts: 5, BatchSize: 20})
	trigger := NewAlertTrigger("fx.trade-intents", NewRunner(store, metrics.Nop{}), notifier)

	if trigger.Topic() != "fx.trade-intents" {
		t.Fatalf("topic = %s", trigger.Topic())
	}

	other, _ := json.Marshal(models.IntentEvent{EventType: "something_else"})
	if err := trigger.Handle(ctx, []byte("EURUSD"), other); err != nil {
		t.Fatalf("ignored event: %v", err)
	}
	if runs, _ := store.RecentRuns(ctx, JobNotify, 10); len(runs) != 0 {
		t.Fatalf("unrelated events must not trigger delivery")
	}

	msg, _ := json.Marshal(models.IntentEvent{EventType: models.EventTradeIntentCreated, EventID: ev.ID})
	if err := trigger.Handle(ctx, []byte("EURUSD"), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if runs, _ := store.RecentRuns(ctx, JobNotify, 10); len(runs) != 1 {
		t.Fatalf("notify runs = %d, want 1", len(runs))
	}
	if eventStatus(t, store, ev.ID) != models.EventSent {
		t.Fatalf("event not delivered")
	}

	if err := trigger.Handle(ctx, nil, []byte("{")); err == nil {
		t.Fatalf("malformed message should fail")
	}
}
