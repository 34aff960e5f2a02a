package fxrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"FxPipe/internal/domain/models"
	drepo "FxPipe/internal/domain/repository"
	"FxPipe/internal/service/cache"
	applogger "FxPipe/pkg/logger"
)

// DefaultTTL is how long a fetched rate is reused.
const DefaultTTL = 10 * time.Minute

// Fetcher is the provider side of the rate lookup.
type Fetcher interface {
	ExchangeRate(ctx context.Context, pair string) (float64, error)
}

// Service resolves conversion rates through an L1 byte cache, the persisted
// job_state entry, and finally the provider. It implements service.RateSource.
type Service struct {
	fetcher Fetcher
	state   drepo.StateStore
	l1      cache.BytesCache
	ttl     time.Duration
	now     func() time.Time
	logger  *applogger.Logger
}

type Option func(*Service)

func WithCache(c cache.BytesCache) Option { return func(s *Service) { s.l1 = c } }

func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func New(fetcher Fetcher, state drepo.StateStore, opts ...Option) *Service {
	s := &Service{fetcher: fetcher, state: state, ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetLogger sets the logger.
func (s *Service) SetLogger(l *applogger.Logger) { s.logger = l }

// Rate returns the rate for "FROM/TO". When the direct pair cannot be
// resolved it tries "TO/FROM" and inverts it.
func (s *Service) Rate(ctx context.Context, pair string) (float64, error) {
	rate, err := s.lookup(ctx, pair)
	if err == nil {
		return rate, nil
	}
	from, to, ok := strings.Cut(pair, "/")
	if !ok {
		return 0, err
	}
	inverse := to + "/" + from
	s.logger.Debug("fx rate: trying inverse pair", applogger.String("pair", pair), applogger.String("inverse", inverse), applogger.Error(err))
	inv, ierr := s.lookup(ctx, inverse)
	if ierr != nil {
		return 0, ierr
	}
	return 1 / inv, nil
}

func (s *Service) lookup(ctx context.Context, pair string) (float64, error) {
	key := models.RateKey(pair)
	now := s.now()

	if s.l1 != nil {
		if b, ok, err := s.l1.GetBytes(ctx, key); err == nil && ok {
			var cr models.CachedRate
			if json.Unmarshal(b, &cr) == nil && cr.Rate != 0 && cr.Fresh(now, s.ttl) {
				return cr.Rate, nil
			}
		}
	}

	var cr models.CachedRate
	err := s.state.GetState(ctx, key, &cr)
	switch {
	case err == nil && cr.Rate != 0 && cr.Fresh(now, s.ttl):
		s.fillL1(ctx, key, cr, now)
		return cr.Rate, nil
	case err != nil && !errors.Is(err, models.ErrNotFound):
		s.logger.Warn("fx rate: state read failed", applogger.String("pair", pair), applogger.Error(err))
	}

	rate, err := s.fetcher.ExchangeRate(ctx, pair)
	if err != nil {
		return 0, fmt.Errorf("Exchange rate unavailable for %s: %w", pair, err)
	}
	if rate == 0 {
		return 0, fmt.Errorf("Exchange rate unavailable for %s", pair)
	}

	fresh := models.CachedRate{Rate: rate, FetchedAt: now.UTC()}
	if err := s.state.PutState(ctx, key, fresh); err != nil {
		s.logger.Warn("fx rate: state write failed", applogger.String("pair", pair), applogger.Error(err))
	}
	s.fillL1(ctx, key, fresh, now)
	return rate, nil
}

func (s *Service) fillL1(ctx context.Context, key string, cr models.CachedRate, now time.Time) {
	if s.l1 == nil {
		return
	}
	remaining := s.ttl - now.Sub(cr.FetchedAt)
	if remaining <= 0 {
		return
	}
	b, err := json.Marshal(cr)
	if err != nil {
		return
	}
	if err := s.l1.SetBytes(ctx, key, b, remaining); err != nil {
		s.logger.Debug("fx rate: cache write failed", applogger.String("key", key), applogger.Error(err))
	}
}
