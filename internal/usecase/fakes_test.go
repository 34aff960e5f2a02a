package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"FxPipe/internal/domain/models"
	drepo "FxPipe/internal/domain/repository"
)

var base = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func at(tf models.Timeframe, i int) time.Time { return base.Add(time.Duration(i) * tf.Duration()) }

func bar(symbol string, tf models.Timeframe, t time.Time) models.Bar {
	return models.Bar{
		Symbol: symbol, Timeframe: tf, Time: t,
		Open: 1.1, High: 1.101, Low: 1.099, Close: 1.1,
		Source: "twelvedata", IngestedAt: t,
	}
}

func barsAt(symbol string, tf models.Timeframe, idx ...int) []models.Bar {
	out := make([]models.Bar, 0, len(idx))
	for _, i := range idx {
		out = append(out, bar(symbol, tf, at(tf, i)))
	}
	return out
}

func span(lo, hi int) []int {
	var out []int
	for i := lo; i <= hi; i++ {
		out = append(out, i)
	}
	return out
}

// fakeProvider serves series from a callback and records every query.
type fakeProvider struct {
	mu     sync.Mutex
	noKey  bool
	calls  []drepo.SeriesQuery
	series func(q drepo.SeriesQuery) ([]models.Bar, error)
}

func (p *fakeProvider) TimeSeries(_ context.Context, q drepo.SeriesQuery) ([]models.Bar, error) {
	p.mu.Lock()
	p.calls = append(p.calls, q)
	p.mu.Unlock()
	if p.series == nil {
		return nil, nil
	}
	return p.series(q)
}

func (p *fakeProvider) ExchangeRate(context.Context, string) (float64, error) {
	return 0, errors.New("not used")
}

func (p *fakeProvider) HasCredentials() bool { return !p.noKey }

func (p *fakeProvider) Calls() []drepo.SeriesQuery {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]drepo.SeriesQuery(nil), p.calls...)
}

// rangeSeries returns one bar per step in [from, to] inclusive.
func rangeSeries(q drepo.SeriesQuery, from, to time.Time) []models.Bar {
	var out []models.Bar
	for t := from; !t.After(to); t = t.Add(q.Timeframe.Duration()) {
		out = append(out, bar(q.Symbol, q.Timeframe, t))
	}
	return out
}

type fakeJob struct {
	name  string
	calls int
	res   models.JobResult
	err   error
}

func (j *fakeJob) Name() string { return j.name }

func (j *fakeJob) Run(context.Context) (models.JobResult, error) {
	j.calls++
	return j.res, j.err
}

type fakeRates struct {
	rate float64
	err  error
}

func (r fakeRates) Rate(context.Context, string) (float64, error) { return r.rate, r.err }

type fakePublisher struct {
	mu     sync.Mutex
	events []models.IntentEvent
}

func (p *fakePublisher) PublishIntent(_ context.Context, ev models.IntentEvent) error {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	return nil
}

func (p *fakePublisher) Close() error { return nil }

// fakeChannel fails while failures > 0.
type fakeChannel struct {
	name     models.Channel
	failures int
	calls    int
}

func (c *fakeChannel) Name() models.Channel { return c.name }

func (c *fakeChannel) Send(context.Context, models.NotificationEvent) error {
	c.calls++
	if c.failures > 0 {
		c.failures--
		return errors.New(string(c.name) + " down")
	}
	return nil
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }
