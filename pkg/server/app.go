package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"FxPipe/internal/scheduler"
	"FxPipe/pkg/config"
	xhttp "FxPipe/pkg/http"
	pkgkafka "FxPipe/pkg/kafka"
	applogger "FxPipe/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	scheduler  *scheduler.Scheduler
	consumer   *pkgkafka.Consumer
	handlers   []xhttp.Handler
	httpServer *xhttp.Server
}

// New creates a new App. scheduler and consumer may be nil.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	sched *scheduler.Scheduler,
	consumer *pkgkafka.Consumer,
	handlers ...xhttp.Handler,
) *App {
	return &App{
		cfg:       cfg,
		logger:    logger,
		scheduler: sched,
		consumer:  consumer,
		handlers:  handlers,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and shuts down once ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	l := a.logger

	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}
	a.httpServer = xhttp.NewServer(a.handlers,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(l),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.consumer != nil {
		if err := a.consumer.Start(runCtx); err != nil {
			l.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
		l.Info("kafka consumer started", applogger.String("topic", a.cfg.Kafka.Topics.Intents))
	}

	if a.scheduler != nil {
		a.scheduler.Start(runCtx)
	}

	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	l.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops components in reverse start order.
func (a *App) shutdown() error {
	l := a.logger
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
