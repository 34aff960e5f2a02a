package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"FxPipe/internal/domain/models"
	drepo "FxPipe/internal/domain/repository"

	"github.com/google/uuid"
)

type barKey struct {
	symbol string
	tf     models.Timeframe
	ms     int64
}

type deliveryKey struct {
	eventID string
	channel models.Channel
}

// Store implements every store interface in memory with the same keying
// and dedupe rules as the SQL stores.
type Store struct {
	mu sync.RWMutex

	raw   map[barKey]models.Bar
	clean map[barKey]models.CleanBar

	quality []models.QualityEvent

	instruments []models.Instrument
	accounts    []models.AccountState
	settings    *models.SystemSettings
	positions   []models.OpenPosition

	runs  []models.JobRun
	state map[string][]byte

	signals []models.Signal
	intents []models.TradeIntent

	events     []models.NotificationEvent
	dedupe     map[string]string
	deliveries map[deliveryKey]models.NotificationDelivery
	subs       []models.PushSubscription

	failures map[string]error
	now      func() time.Time
	seq      int64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		raw:        make(map[barKey]models.Bar),
		clean:      make(map[barKey]models.CleanBar),
		state:      make(map[string][]byte),
		dedupe:     make(map[string]string),
		deliveries: make(map[deliveryKey]models.NotificationDelivery),
		failures:   make(map[string]error),
		now:        time.Now,
	}
}

// SetClock replaces the time source used for created_at columns.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// FailOn makes the named operation return err until cleared with a nil err.
// Operation names match the method names (e.g. "InsertSignal").
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *Store) fail(op string) error { return s.failures[op] }

// stamp returns a strictly increasing creation time so ordering by
// created_at is stable even with a frozen clock.
func (s *Store) stamp() time.Time {
	s.seq++
	return s.now().UTC().Add(time.Duration(s.seq) * time.Nanosecond)
}

func key(symbol string, tf models.Timeframe, t time.Time) barKey {
	return barKey{symbol: symbol, tf: tf, ms: t.UnixMilli()}
}

// --- BarStore ---

func (s *Store) UpsertRaw(_ context.Context, bars []models.Bar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpsertRaw"); err != nil {
		return err
	}
	for _, b := range bars {
		b.Time = b.Time.UTC()
		s.raw[key(b.Symbol, b.Timeframe, b.Time)] = b
	}
	return nil
}

func (s *Store) UpsertClean(_ context.Context, bars []models.CleanBar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpsertClean"); err != nil {
		return err
	}
	for _, b := range bars {
		b.Time = b.Time.UTC()
		s.clean[key(b.Symbol, b.Timeframe, b.Time)] = b
	}
	return nil
}

func (s *Store) OldestRawTime(_ context.Context, symbol string, tf drepo.Timeframe) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var oldest time.Time
	found := false
	for k, b := range s.raw {
		if k.symbol == symbol && k.tf == tf && (!found || b.Time.Before(oldest)) {
			oldest, found = b.Time, true
		}
	}
	if !found {
		return time.Time{}, models.ErrNotFound
	}
	return oldest, nil
}

func (s *Store) RawTimesSince(_ context.Context, symbol string, tf drepo.Timeframe, from time.Time) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []time.Time
	for k, b := range s.raw {
		if k.symbol == symbol && k.tf == tf && !b.Time.Before(from) {
			out = append(out, b.Time)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (s *Store) RecentRaw(_ context.Context, symbol string, tf drepo.Timeframe, limit int) ([]models.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Bar
	for k, b := range s.raw {
		if k.symbol == symbol && k.tf == tf {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return tail(out, limit), nil
}

func (s *Store) RecentClean(_ context.Context, symbol string, tf drepo.Timeframe, limit int) ([]models.CleanBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.CleanBar
	for k, b := range s.clean {
		if k.symbol == symbol && k.tf == tf {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return tail(out, limit), nil
}

func tail[T any](in []T, limit int) []T {
	if limit > 0 && len(in) > limit {
		return in[len(in)-limit:]
	}
	return in
}

// RawCount and CleanBar are test helpers.
func (s *Store) RawCount(symbol string, tf models.Timeframe) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for k := range s.raw {
		if k.symbol == symbol && k.tf == tf {
			n++
		}
	}
	return n
}

func (s *Store) CleanBar(symbol string, tf models.Timeframe, t time.Time) (models.CleanBar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.clean[key(symbol, tf, t.UTC())]
	return b, ok
}

// --- QualityLog ---

func (s *Store) Append(_ context.Context, ev models.QualityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("Append"); err != nil {
		return err
	}
	ev.ID = int64(len(s.quality) + 1)
	ev.CreatedAt = s.stamp()
	s.quality = append(s.quality, ev)
	return nil
}

func (s *Store) Recent(_ context.Context, symbol string, tf drepo.Timeframe, limit int) ([]models.QualityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.QualityEvent
	for i := len(s.quality) - 1; i >= 0; i-- {
		ev := s.quality[i]
		if (symbol == "" || ev.Symbol == symbol) && (tf == "" || ev.Timeframe == tf) {
			out = append(out, ev)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// QualityEvents returns every logged event in insertion order.
func (s *Store) QualityEvents() []models.QualityEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.QualityEvent(nil), s.quality...)
}

// --- ReferenceStore ---

func (s *Store) SetInstruments(in ...models.Instrument) {
	s.mu.Lock()
	s.instruments = append([]models.Instrument(nil), in...)
	s.mu.Unlock()
}

func (s *Store) AddAccount(a models.AccountState) {
	s.mu.Lock()
	s.accounts = append(s.accounts, a)
	s.mu.Unlock()
}

func (s *Store) SetSettings(st models.SystemSettings) {
	s.mu.Lock()
	s.settings = &st
	s.mu.Unlock()
}

func (s *Store) SetOpenPositions(p ...models.OpenPosition) {
	s.mu.Lock()
	s.positions = append([]models.OpenPosition(nil), p...)
	s.mu.Unlock()
}

func (s *Store) Instruments(context.Context) ([]models.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Instrument(nil), s.instruments...), nil
}

func (s *Store) LatestAccount(context.Context) (models.AccountState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.accounts) == 0 {
		return models.AccountState{}, models.ErrNotFound
	}
	latest := s.accounts[0]
	for _, a := range s.accounts[1:] {
		if !a.UpdatedAt.Before(latest.UpdatedAt) {
			latest = a
		}
	}
	return latest, nil
}

func (s *Store) Settings(context.Context) (models.SystemSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings == nil {
		return models.SystemSettings{}, models.ErrNotFound
	}
	return *s.settings, nil
}

func (s *Store) OpenPositions(context.Context) ([]models.OpenPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.OpenPosition
	for _, p := range s.positions {
		if p.Status == "" || p.Status == "open" {
			out = append(out, p)
		}
	}
	return out, nil
}

// --- JobStore ---

func (s *Store) StartJob(_ context.Context, name string, at time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("StartJob"); err != nil {
		return "", err
	}
	id := uuid.NewString()
	s.runs = append(s.runs, models.JobRun{ID: id, FunctionName: name, StartedAt: at.UTC()})
	return id, nil
}

func (s *Store) FinishJob(_ context.Context, id string, at time.Time, rows, credits int, errorSummary *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.runs {
		if s.runs[i].ID == id {
			fin := at.UTC()
			s.runs[i].FinishedAt = &fin
			s.runs[i].RowsProcessed = rows
			s.runs[i].CreditsUsed = credits
			s.runs[i].ErrorSummary = errorSummary
			return nil
		}
	}
	return fmt.Errorf("finish job %s: %w", id, models.ErrNotFound)
}

func (s *Store) LatestRun(_ context.Context, name string) (models.JobRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.JobRun
	for i := range s.runs {
		r := &s.runs[i]
		if r.FunctionName == name && (latest == nil || !r.StartedAt.Before(latest.StartedAt)) {
			latest = r
		}
	}
	if latest == nil {
		return models.JobRun{}, models.ErrNotFound
	}
	return *latest, nil
}

func (s *Store) RecentRuns(_ context.Context, name string, limit int) ([]models.JobRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.JobRun
	for i := len(s.runs) - 1; i >= 0; i-- {
		if name == "" || s.runs[i].FunctionName == name {
			out = append(out, s.runs[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// --- StateStore ---

func (s *Store) GetState(_ context.Context, k string, dst interface{}) error {
	s.mu.RLock()
	b, ok := s.state[k]
	s.mu.RUnlock()
	if !ok {
		return models.ErrNotFound
	}
	return json.Unmarshal(b, dst)
}

func (s *Store) PutState(_ context.Context, k string, value interface{}) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode state %s: %w", k, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("PutState"); err != nil {
		return err
	}
	s.state[k] = b
	return nil
}

// --- SignalStore ---

func (s *Store) InsertSignal(_ context.Context, sig *models.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("InsertSignal"); err != nil {
		return err
	}
	if sig.ID == "" {
		sig.ID = uuid.NewString()
	}
	sig.CreatedAt = s.stamp()
	s.signals = append(s.signals, *sig)
	return nil
}

func (s *Store) InsertIntent(_ context.Context, in *models.TradeIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("InsertIntent"); err != nil {
		return err
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	in.CreatedAt = s.stamp()
	s.intents = append(s.intents, *in)
	return nil
}

func (s *Store) Signals() []models.Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Signal(nil), s.signals...)
}

func (s *Store) Intents() []models.TradeIntent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.TradeIntent(nil), s.intents...)
}

// --- NotificationStore ---

func (s *Store) InsertEvent(_ context.Context, ev *models.NotificationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("InsertEvent"); err != nil {
		return err
	}
	if _, dup := s.dedupe[ev.DedupeKey]; dup {
		return models.ErrDuplicate
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Status == "" {
		ev.Status = models.EventPending
	}
	ev.CreatedAt = s.stamp()
	s.dedupe[ev.DedupeKey] = ev.ID
	s.events = append(s.events, *ev)
	return nil
}

func (s *Store) PendingEvents(_ context.Context, limit int, f drepo.PendingFilter) ([]models.NotificationEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.NotificationEvent
	for _, ev := range s.events {
		if ev.Status != models.EventPending && ev.Status != models.EventPartial {
			continue
		}
		if f.Enabled() && !s.hasWorkLeft(ev.ID, f) {
			continue
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) hasWorkLeft(eventID string, f drepo.PendingFilter) bool {
	for _, ch := range f.Channels {
		d, ok := s.deliveries[deliveryKey{eventID, ch}]
		if !ok || (d.Status != models.DeliverySent && d.Attempts < f.MaxAttempts) {
			return true
		}
	}
	return false
}

func (s *Store) Deliveries(_ context.Context, eventID string) ([]models.NotificationDelivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.NotificationDelivery
	for _, ch := range models.AllChannels() {
		if d, ok := s.deliveries[deliveryKey{eventID, ch}]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Store) UpsertDelivery(_ context.Context, d models.NotificationDelivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpsertDelivery"); err != nil {
		return err
	}
	s.deliveries[deliveryKey{d.EventID, d.Channel}] = d
	return nil
}

func (s *Store) SetEventStatus(_ context.Context, eventID string, status models.EventStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].ID == eventID {
			s.events[i].Status = status
			return nil
		}
	}
	return fmt.Errorf("event %s: %w", eventID, models.ErrNotFound)
}

func (s *Store) PushSubscriptions(context.Context) ([]models.PushSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.PushSubscription(nil), s.subs...), nil
}

func (s *Store) AddPushSubscription(sub models.PushSubscription) {
	s.mu.Lock()
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	s.subs = append(s.subs, sub)
	s.mu.Unlock()
}

// Events returns every notification event in insertion order.
func (s *Store) Events() []models.NotificationEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.NotificationEvent(nil), s.events...)
}

var (
	_ drepo.BarStore          = (*Store)(nil)
	_ drepo.QualityLog        = (*Store)(nil)
	_ drepo.ReferenceStore    = (*Store)(nil)
	_ drepo.JobStore          = (*Store)(nil)
	_ drepo.StateStore        = (*Store)(nil)
	_ drepo.SignalStore       = (*Store)(nil)
	_ drepo.NotificationStore = (*Store)(nil)
)
