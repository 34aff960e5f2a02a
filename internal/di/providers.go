package di

import (
	"context"
	"fmt"
	"time"

	drepo "FxPipe/internal/domain/repository"
	"FxPipe/internal/domain/service"
	"FxPipe/internal/handler/api"
	internalrepo "FxPipe/internal/repository"
	chrepo "FxPipe/internal/repository/clickhouse"
	"FxPipe/internal/repository/memory"
	pgrepo "FxPipe/internal/repository/postgres"
	"FxPipe/internal/scheduler"
	"FxPipe/internal/service/cache"
	"FxPipe/internal/service/fxrate"
	"FxPipe/internal/service/notify"
	"FxPipe/internal/service/ratelimit"
	"FxPipe/internal/service/twelvedata"
	"FxPipe/internal/services/strategy"
	"FxPipe/internal/usecase"
	pkgch "FxPipe/pkg/clickhouse"
	"FxPipe/pkg/config"
	xhttp "FxPipe/pkg/http"
	pkgkafka "FxPipe/pkg/kafka"
	applogger "FxPipe/pkg/logger"
	"FxPipe/pkg/metrics"
	pkgpg "FxPipe/pkg/postgres"
	"FxPipe/pkg/server"
)

const initTimeout = 10 * time.Second

// Stores groups the repository interfaces selected by storage config.
type Stores struct {
	Bars          drepo.BarStore
	Quality       drepo.QualityLog
	Reference     drepo.ReferenceStore
	Jobs          drepo.JobStore
	State         drepo.StateStore
	Signals       drepo.SignalStore
	Notifications drepo.NotificationStore
}

// Runtime is what the one-shot CLI needs: the runner and the job set.
type Runtime struct {
	Runner *usecase.Runner
	Jobs   *usecase.JobSet
	Logger *applogger.Logger
}

// ProvideLogger builds the process logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() drepo.Metrics {
	return metrics.New()
}

func needsPostgres(cfg *config.Config) bool {
	return cfg.Storage.Backend == "postgres" || cfg.Storage.Bars == "postgres"
}

// ProvidePostgresClient opens the pool and applies the schema. It returns a
// nil client when no store is configured on Postgres.
func ProvidePostgresClient(cfg *config.Config, l *applogger.Logger) (*pkgpg.Client, func(), error) {
	if !needsPostgres(cfg) {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	client, err := pkgpg.NewClient(ctx,
		pkgpg.WithURL(cfg.Postgres.URL),
		pkgpg.WithHost(cfg.Postgres.Host, cfg.Postgres.Port),
		pkgpg.WithDatabase(cfg.Postgres.Database, cfg.Postgres.SSLMode),
		pkgpg.WithCredentials(cfg.Postgres.User, cfg.Postgres.Password),
		pkgpg.WithPool(cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns, cfg.Postgres.ConnMaxLifetime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres client: %w", err)
	}
	if err := client.InitSchema(ctx, pgrepo.Schema); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("postgres schema: %w", err)
	}
	l.Info("postgres ready", applogger.String("database", cfg.Postgres.Database))

	cleanup := func() {
		if err := client.Close(); err != nil {
			l.Warn("postgres close error", applogger.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvideClickHouseClient connects only when bars live in ClickHouse.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	if cfg.Storage.Bars != "clickhouse" {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if err := client.InitSchema(ctx, chrepo.Schema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse ready", applogger.String("database", cfg.ClickHouse.Database))

	cleanup := func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	return client, cleanup, nil
}

// ProvideStores picks the implementation of every store from storage config.
func ProvideStores(cfg *config.Config, pg *pkgpg.Client, ch *pkgch.Client, l *applogger.Logger) *Stores {
	var s Stores
	switch cfg.Storage.Backend {
	case "postgres":
		store := pgrepo.New(pg)
		store.SetLogger(l)
		s = Stores{store, store, store, store, store, store, store}
	default:
		store := memory.New()
		s = Stores{store, store, store, store, store, store, store}
	}

	switch cfg.Storage.Bars {
	case "clickhouse":
		bars := chrepo.NewBarStore(ch)
		bars.SetLogger(l)
		s.Bars = bars
	case "postgres":
		if cfg.Storage.Backend != "postgres" {
			store := pgrepo.New(pg)
			store.SetLogger(l)
			s.Bars = store
		}
	}
	return &s
}

// ProvideQuoteProvider creates the Twelve Data client.
func ProvideQuoteProvider(cfg *config.Config, m drepo.Metrics, l *applogger.Logger) *twelvedata.Client {
	c := twelvedata.New(cfg.Provider.APIKey,
		twelvedata.WithBaseURL(cfg.Provider.BaseURL),
		twelvedata.WithHTTPClient(xhttp.NewClient(xhttp.WithTimeout(cfg.Provider.Timeout))),
		twelvedata.WithMetrics(m),
	)
	c.SetLogger(l)
	return c
}

// ProvideRateCache returns Redis when enabled, else an in-process TTL cache.
func ProvideRateCache(cfg *config.Config, l *applogger.Logger) (cache.BytesCache, func(), error) {
	if !cfg.Redis.Enabled {
		return cache.NewTTLCache(), func() {}, nil
	}
	rc := cache.NewRedisCache(cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		_ = rc.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	cleanup := func() {
		if err := rc.Close(); err != nil {
			l.Warn("redis close error", applogger.Error(err))
		}
	}
	return rc, cleanup, nil
}

// ProvideRates builds the cached FX rate service.
func ProvideRates(cfg *config.Config, td *twelvedata.Client, stores *Stores, c cache.BytesCache, l *applogger.Logger) service.RateSource {
	s := fxrate.New(td, stores.State, fxrate.WithCache(c), fxrate.WithTTL(cfg.Strategy.FXRateTTL))
	s.SetLogger(l)
	return s
}

// ProvideIntentPublisher publishes to Kafka when enabled, else drops events.
func ProvideIntentPublisher(cfg *config.Config, l *applogger.Logger) (drepo.IntentPublisher, func(), error) {
	if !cfg.Kafka.Enabled {
		return internalrepo.NopIntentPublisher{}, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	pub := internalrepo.NewKafkaIntentPublisher(producer, cfg.Kafka.Topics.Intents)
	pub.SetLogger(l)
	cleanup := func() {
		if err := pub.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	return pub, cleanup, nil
}

// ProvideChannels registers the three delivery channels. A channel with
// missing credentials still registers and fails each send, which the
// delivery worker records per attempt.
func ProvideChannels(cfg *config.Config, stores *Stores) *service.Registry {
	client := xhttp.NewClient(xhttp.WithTimeout(cfg.Notify.Timeout))
	return service.NewRegistry(
		notify.NewTelegram(notify.TelegramConfig{
			BaseURL:  cfg.Notify.Telegram.BaseURL,
			BotToken: cfg.Notify.Telegram.BotToken,
			ChatID:   cfg.Notify.Telegram.ChatID,
		}, client),
		notify.NewEmail(notify.EmailConfig{
			BaseURL: cfg.Notify.Email.BaseURL,
			APIKey:  cfg.Notify.Email.APIKey,
			From:    cfg.Notify.Email.From,
			To:      cfg.Notify.Email.To,
		}, client),
		notify.NewPush(notify.PushConfig{
			VAPIDPublicKey:  cfg.Notify.Push.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.Notify.Push.VAPIDPrivateKey,
			Subject:         cfg.Notify.Push.Subject,
			TTL:             int(cfg.Notify.Push.TTL.Seconds()),
		}, stores.Notifications, client.HTTPClient()),
	)
}

// ProvideJobs builds every pipeline job.
func ProvideJobs(
	cfg *config.Config,
	stores *Stores,
	td *twelvedata.Client,
	rates service.RateSource,
	publisher drepo.IntentPublisher,
	channels *service.Registry,
	m drepo.Metrics,
	l *applogger.Logger,
) *usecase.JobSet {
	universe := usecase.Universe{Symbols: cfg.Strategy.Symbols, Timeframes: usecase.DefaultTimeframes()}

	ingest := usecase.NewBarIngestor(td, stores.Bars, stores.Quality, m, universe,
		cfg.Ingest.OutputSize, ratelimit.NewPacer(cfg.Ingest.RequestDelay))
	history := usecase.NewHistoryBackfiller(td, stores.Bars, stores.Quality, m, universe,
		usecase.BackfillConfig{
			MaxRequests: cfg.History.MaxRequests,
			OutputSize:  cfg.History.OutputSize,
			Window:      time.Duration(cfg.History.WindowDays) * 24 * time.Hour,
		}, ratelimit.NewPacer(cfg.History.RequestDelay))
	gaps := usecase.NewGapFiller(td, stores.Bars, stores.Quality, m, universe,
		usecase.GapConfig{
			MaxRequests: cfg.Gap.MaxRequests,
			OutputSize:  cfg.Gap.OutputSize,
			MaxFillBars: cfg.Gap.MaxFillBars,
		}, ratelimit.NewPacer(cfg.Gap.RequestDelay))
	validate := usecase.NewBarValidator(stores.Bars, stores.Quality, m, universe, cfg.Validation.Lookback)
	signals := usecase.NewSignalGenerator(usecase.SignalDeps{
		Bars:          stores.Bars,
		Reference:     stores.Reference,
		State:         stores.State,
		Signals:       stores.Signals,
		Notifications: stores.Notifications,
		Quality:       stores.Quality,
	}, strategy.New(strategy.DefaultConfig()), rates, publisher, td, m, cfg.Strategy.Symbols, cfg.Strategy.AppBaseURL)
	notifier := usecase.NewNotifier(stores.Notifications, channels, m, usecase.NotifierConfig{
		MaxAttempts: cfg.Notify.MaxAttempts,
		BatchSize:   cfg.Notify.BatchSize,
	})

	for _, j := range []interface{ SetLogger(*applogger.Logger) }{ingest, history, gaps, validate, signals, notifier} {
		j.SetLogger(l)
	}
	return usecase.NewJobSet(ingest, history, gaps, validate, signals, notifier)
}

// ProvideRunner applies the configured minimum intervals.
func ProvideRunner(cfg *config.Config, stores *Stores, m drepo.Metrics, l *applogger.Logger) *usecase.Runner {
	var opts []usecase.RunnerOption
	if cfg.Validation.MinInterval > 0 {
		opts = append(opts, usecase.WithMinInterval(usecase.JobValidateBars, cfg.Validation.MinInterval))
	}
	r := usecase.NewRunner(stores.Jobs, m, opts...)
	r.SetLogger(l)
	return r
}

// ProvideRuntime bundles what cmd/job needs.
func ProvideRuntime(r *usecase.Runner, jobs *usecase.JobSet, l *applogger.Logger) *Runtime {
	return &Runtime{Runner: r, Jobs: jobs, Logger: l}
}

// ProvideJobsHandler creates the trigger surface.
func ProvideJobsHandler(cfg *config.Config, r *usecase.Runner, jobs *usecase.JobSet, stores *Stores, l *applogger.Logger) *api.JobsEchoHandler {
	limiter := ratelimit.New(int(cfg.Cron.TriggerBurst), cfg.Cron.TriggerPerMinute)
	return api.NewJobsEchoHandler(l, r, jobs, stores.Jobs, stores.Quality, limiter, cfg.Cron.Secret)
}

// ProvideScheduler returns nil when the scheduler is disabled.
func ProvideScheduler(cfg *config.Config, r *usecase.Runner, jobs *usecase.JobSet, l *applogger.Logger) (*scheduler.Scheduler, error) {
	if !cfg.Scheduler.Enabled {
		return nil, nil
	}
	s, err := scheduler.New(r, jobs, cfg.Scheduler.Jobs)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	s.SetLogger(l)
	return s, nil
}

// ProvideKafkaConsumer wires the intents topic to the delivery worker. It
// returns nil unless both Kafka and the consumer are enabled.
func ProvideKafkaConsumer(cfg *config.Config, r *usecase.Runner, jobs *usecase.JobSet, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	notifier, ok := jobs.Get(usecase.JobNotify)
	if !ok {
		return nil, fmt.Errorf("kafka consumer: %s job not registered", usecase.JobNotify)
	}
	trigger := usecase.NewAlertTrigger(cfg.Kafka.Topics.Intents, r, notifier)
	trigger.SetLogger(l)
	consumer.RegisterHandler(trigger)
	return consumer, nil
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler *api.JobsEchoHandler,
	sched *scheduler.Scheduler,
	consumer *pkgkafka.Consumer,
) *server.App {
	return server.New(cfg, l, sched, consumer, handler)
}
