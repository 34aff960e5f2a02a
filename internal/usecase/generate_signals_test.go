package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"FxPipe/internal/domain/models"
	"FxPipe/internal/repository/memory"
	"FxPipe/internal/services/strategy"
	"FxPipe/pkg/metrics"
)

var eurusd = models.Instrument{Symbol: "EURUSD", PipSize: 0.0001, Digits: 5, ContractSize: 100000, BaseCcy: "EUR", QuoteCcy: "USD"}

func cleanSeries(n int, tf models.Timeframe, f func(i int) (o, h, l, c float64)) []models.CleanBar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.CleanBar, n)
	for i := range out {
		o, h, l, c := f(i)
		out[i] = models.CleanBar{
			Bar:          models.Bar{Symbol: "EURUSD", Timeframe: tf, Time: start.Add(time.Duration(i) * tf.Duration()), Open: o, High: h, Low: l, Close: c},
			QualityScore: 100,
		}
	}
	return out
}

func uptrendH4() []models.CleanBar {
	return cleanSeries(250, models.H4, func(i int) (float64, float64, float64, float64) {
		c := 1.0 + float64(i)*0.001
		return c, c + 0.0005, c - 0.0005, c
	})
}

// pullbackH1 ranges around 1.1000; the last bar closes at lastClose.
// 1.1015 breaks the previous high, 1.1005 does not.
func pullbackH1(n int, lastClose float64) []models.CleanBar {
	return cleanSeries(n, models.H1, func(i int) (float64, float64, float64, float64) {
		if i == n-1 {
			return 1.1, 1.1020, 1.0995, lastClose
		}
		return 1.1, 1.1010, 1.0990, 1.1
	})
}

type signalFixture struct {
	store *memory.Store
	pub   *fakePublisher
	rates fakeRates
	key   bool
}

func newSignalFixture(t *testing.T, h4, h1 []models.CleanBar) *signalFixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	if err := store.UpsertClean(ctx, h4); err != nil {
		t.Fatalf("seed h4: %v", err)
	}
	if err := store.UpsertClean(ctx, h1); err != nil {
		t.Fatalf("seed h1: %v", err)
	}
	store.SetInstruments(eurusd)
	store.AddAccount(models.AccountState{Equity: 10000, Currency: "USD", UpdatedAt: base})
	return &signalFixture{store: store, pub: &fakePublisher{}, rates: fakeRates{rate: 1}, key: true}
}

func (f *signalFixture) job() *SignalGenerator {
	deps := SignalDeps{
		Bars:          f.store,
		Reference:     f.store,
		State:         f.store,
		Signals:       f.store,
		Notifications: f.store,
		Quality:       f.store,
	}
	return NewSignalGenerator(deps, strategy.New(strategy.DefaultConfig()), f.rates, f.pub,
		&fakeProvider{noKey: !f.key}, metrics.Nop{}, []string{"EURUSD", "GBPUSD"}, "https://app.test/")
}

func (f *signalFixture) cursor(t *testing.T) (time.Time, bool) {
	t.Helper()
	var c models.SignalCursor
	err := f.store.GetState(context.Background(), models.SignalCursorKey("EURUSD"), &c)
	if errors.Is(err, models.ErrNotFound) {
		return time.Time{}, false
	}
	if err != nil {
		t.Fatalf("cursor: %v", err)
	}
	return c.LastBarTime, true
}

func TestGenerateSignalsEmitsAlert(t *testing.T) {
	h1 := pullbackH1(300, 1.1015)
	f := newSignalFixture(t, uptrendH4(), h1)
	barTime := h1[len(h1)-1].Time

	res, err := f.job().Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.RowsProcessed != 1 {
		t.Fatalf("rows = %d, want 1", res.RowsProcessed)
	}

	sigs := f.store.Signals()
	if len(sigs) != 1 {
		t.Fatalf("signals = %d", len(sigs))
	}
	sig := sigs[0]
	if sig.Side != models.SideBuy || sig.Setup != "TPC_v1" || sig.RRExpected != 2.5 || sig.Confidence != 1 {
		t.Fatalf("unexpected signal %+v", sig)
	}
	if !sig.ExpiresAt.Equal(barTime.Add(6 * time.Hour)) {
		t.Fatalf("expires = %v", sig.ExpiresAt)
	}

	intents := f.store.Intents()
	if len(intents) != 1 || intents[0].SignalID != sig.ID || intents[0].Status != "new" {
		t.Fatalf("intents = %+v", intents)
	}
	if intents[0].RiskAmount != 50 || intents[0].SuggestedLots <= 0 {
		t.Fatalf("sizing = %+v", intents[0])
	}

	events := f.store.Events()
	if len(events) != 1 {
		t.Fatalf("events = %d", len(events))
	}
	ev := events[0]
	wantKey := "EURUSD_H1_bull_" + barTime.Format(time.RFC3339) + "_TPC_v1"
	if ev.DedupeKey != wantKey || ev.EventType != "trade_intent_created" || ev.Status != models.EventPending {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.Payload.Title != "TRADE ALERT: EURUSD H1 BUY" || ev.Payload.Side != "BUY" {
		t.Fatalf("payload = %+v", ev.Payload)
	}
	if ev.Payload.URL != "https://app.test/signals/"+sig.ID {
		t.Fatalf("url = %s", ev.Payload.URL)
	}
	if ev.Payload.ExpiresAt != "2024-01-13T17:00:00.000Z" {
		t.Fatalf("expires_at = %s", ev.Payload.ExpiresAt)
	}

	if len(f.pub.events) != 1 || f.pub.events[0].IntentID != intents[0].ID {
		t.Fatalf("published = %+v", f.pub.events)
	}
	if c, ok := f.cursor(t); !ok || !c.Equal(barTime) {
		t.Fatalf("cursor = %v (set=%v), want %v", c, ok, barTime)
	}
}

func TestGenerateSignalsIsIdempotentPerBar(t *testing.T) {
	f := newSignalFixture(t, uptrendH4(), pullbackH1(300, 1.1015))
	job := f.job()
	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	res, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.RowsProcessed != 0 || len(f.store.Signals()) != 1 || len(f.store.Events()) != 1 {
		t.Fatalf("second run must not emit again: rows=%d signals=%d", res.RowsProcessed, len(f.store.Signals()))
	}
}

func TestGenerateSignalsRejectAdvancesCursor(t *testing.T) {
	h1 := pullbackH1(300, 1.1005)
	f := newSignalFixture(t, uptrendH4(), h1)

	res, err := f.job().Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.RowsProcessed != 0 || len(f.store.Signals()) != 0 {
		t.Fatalf("no confirmation must not emit")
	}
	if c, ok := f.cursor(t); !ok || !c.Equal(h1[len(h1)-1].Time) {
		t.Fatalf("cursor not advanced: %v %v", c, ok)
	}
}

func TestGenerateSignalsInsufficientHistoryKeepsCursor(t *testing.T) {
	f := newSignalFixture(t, uptrendH4(), pullbackH1(150, 1.1015))
	if _, err := f.job().Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, ok := f.cursor(t); ok {
		t.Fatalf("cursor must not move without enough history")
	}
}

func TestGenerateSignalsFatalPreconditions(t *testing.T) {
	ctx := context.Background()

	f := newSignalFixture(t, uptrendH4(), pullbackH1(300, 1.1015))
	f.key = false
	if _, err := f.job().Run(ctx); !errors.Is(err, models.ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}

	noAccount := memory.New()
	noAccount.SetInstruments(eurusd)
	f = &signalFixture{store: noAccount, pub: &fakePublisher{}, key: true}
	_, err := f.job().Run(ctx)
	if !errors.Is(err, models.ErrMissingAccount) || err.Error() != "Missing account_state" {
		t.Fatalf("err = %v, want Missing account_state", err)
	}

	noInstruments := memory.New()
	noInstruments.AddAccount(models.AccountState{Equity: 1000, Currency: "USD"})
	f = &signalFixture{store: noInstruments, pub: &fakePublisher{}, key: true}
	if _, err := f.job().Run(ctx); !errors.Is(err, models.ErrMissingInstruments) {
		t.Fatalf("err = %v, want ErrMissingInstruments", err)
	}
}

func TestGenerateSignalsMissingFXRate(t *testing.T) {
	h1 := pullbackH1(300, 1.1015)
	f := newSignalFixture(t, uptrendH4(), h1)
	f.store.AddAccount(models.AccountState{Equity: 10000, Currency: "CHF", UpdatedAt: base.Add(time.Hour)})
	f.rates = fakeRates{err: errors.New("Exchange rate unavailable for USD/CHF")}

	res, err := f.job().Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.RowsProcessed != 0 || len(f.store.Signals()) != 0 {
		t.Fatalf("missing rate must not emit")
	}
	events := f.store.QualityEvents()
	if len(events) != 1 {
		t.Fatalf("quality events = %d", len(events))
	}
	ev := events[0]
	if ev.Kind != models.KindIntegrityFail || ev.Severity != models.SeverityWarn || ev.Timeframe != models.H1 || ev.Time != nil {
		t.Fatalf("unexpected event %+v", ev)
	}
	if !strings.HasPrefix(ev.Details.Message, "Missing FX rate USD/CHF: ") {
		t.Fatalf("message = %q", ev.Details.Message)
	}
	if _, ok := f.cursor(t); !ok {
		t.Fatalf("cursor must advance after a missing rate")
	}
}

func TestGenerateSignalsConvertsWithRate(t *testing.T) {
	f := newSignalFixture(t, uptrendH4(), pullbackH1(300, 1.1015))
	f.store.AddAccount(models.AccountState{Equity: 10000, Currency: "CHF", UpdatedAt: base.Add(time.Hour)})
	f.rates = fakeRates{rate: 0.9}

	if res, _ := f.job().Run(context.Background()); res.RowsProcessed != 1 {
		t.Fatalf("rows = %d, want 1", res.RowsProcessed)
	}
}

func TestGenerateSignalsExposureGates(t *testing.T) {
	cases := []struct {
		name string
		open []models.OpenPosition
		set  *models.SystemSettings
	}{
		{"symbol open", []models.OpenPosition{{Symbol: "EURUSD", RiskAmount: 10, Status: "open"}}, nil},
		{"total risk", []models.OpenPosition{{Symbol: "USDCAD", RiskAmount: 150, Status: "open"}}, nil},
		{"group full", []models.OpenPosition{{Symbol: "GBPUSD", RiskAmount: 1}, {Symbol: "AUDUSD", RiskAmount: 1}}, nil},
		{"open trades", []models.OpenPosition{{Symbol: "USDCAD", RiskAmount: 1}}, &models.SystemSettings{MaxOpenTrades: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newSignalFixture(t, uptrendH4(), pullbackH1(300, 1.1015))
			f.store.SetOpenPositions(tc.open...)
			if tc.set != nil {
				f.store.SetSettings(*tc.set)
			}
			res, err := f.job().Run(context.Background())
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if res.RowsProcessed != 0 || len(f.store.Signals()) != 0 {
				t.Fatalf("gate did not close")
			}
			if _, ok := f.cursor(t); !ok {
				t.Fatalf("cursor must advance after a gate rejection")
			}
		})
	}
}

func TestGenerateSignalsClosedPositionsIgnored(t *testing.T) {
	f := newSignalFixture(t, uptrendH4(), pullbackH1(300, 1.1015))
	f.store.SetOpenPositions(models.OpenPosition{Symbol: "EURUSD", RiskAmount: 10, Status: "closed"})
	if res, _ := f.job().Run(context.Background()); res.RowsProcessed != 1 {
		t.Fatalf("closed positions must not block")
	}
}

func TestGenerateSignalsDuplicateEventNotPublished(t *testing.T) {
	h1 := pullbackH1(300, 1.1015)
	f := newSignalFixture(t, uptrendH4(), h1)
	key := DedupeKey("EURUSD", strategy.TrendBull, h1[len(h1)-1].Time, "TPC_v1")
	if err := f.store.InsertEvent(context.Background(), &models.NotificationEvent{DedupeKey: key, EventType: "trade_intent_created"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	res, err := f.job().Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.RowsProcessed != 1 {
		t.Fatalf("rows = %d, the intent was still created", res.RowsProcessed)
	}
	if len(f.store.Events()) != 1 {
		t.Fatalf("dedupe key must stay unique")
	}
	if len(f.pub.events) != 0 {
		t.Fatalf("duplicate alert must not be published")
	}
}

func TestGenerateSignalsInsertFailureAdvancesCursor(t *testing.T) {
	f := newSignalFixture(t, uptrendH4(), pullbackH1(300, 1.1015))
	f.store.FailOn("InsertSignal", errors.New("insert failed"))

	res, err := f.job().Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.RowsProcessed != 0 || len(f.store.Intents()) != 0 {
		t.Fatalf("no intent expected")
	}
	if _, ok := f.cursor(t); !ok {
		t.Fatalf("cursor must advance after an insert failure")
	}
	assertCriticalWrite(t, f.store, "insert failed")
}

func TestGenerateSignalsIntentInsertFailureIsCritical(t *testing.T) {
	f := newSignalFixture(t, uptrendH4(), pullbackH1(300, 1.1015))
	f.store.FailOn("InsertIntent", errors.New("intent write refused"))

	res, err := f.job().Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.RowsProcessed != 0 || len(f.store.Events()) != 0 {
		t.Fatalf("no alert expected without an intent")
	}
	assertCriticalWrite(t, f.store, "intent write refused")
}

func assertCriticalWrite(t *testing.T, store *memory.Store, msg string) {
	t.Helper()
	var critical []models.QualityEvent
	for _, ev := range store.QualityEvents() {
		if ev.Severity == models.SeverityCritical {
			critical = append(critical, ev)
		}
	}
	if len(critical) != 1 {
		t.Fatalf("critical events = %d, want 1", len(critical))
	}
	ev := critical[0]
	if ev.Kind != models.KindIntegrityFail || ev.Symbol != "EURUSD" || !strings.Contains(ev.Details.Message, msg) {
		t.Fatalf("unexpected event %+v", ev)
	}
}
