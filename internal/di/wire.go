//go:build wireinject
// +build wireinject

package di

import (
	"FxPipe/pkg/config"
	"FxPipe/pkg/server"

	"github.com/google/wire"
)

var coreSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,

	// Infrastructure clients
	ProvidePostgresClient,
	ProvideClickHouseClient,
	ProvideRateCache,
	ProvideIntentPublisher,

	// Repositories and services
	ProvideStores,
	ProvideQuoteProvider,
	ProvideRates,
	ProvideChannels,

	// Use cases
	ProvideJobs,
	ProvideRunner,
)

// InitializeApp wires the long-running service.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		coreSet,
		ProvideJobsHandler,
		ProvideScheduler,
		ProvideKafkaConsumer,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeRuntime wires only what a one-shot job run needs.
func InitializeRuntime(cfg *config.Config) (*Runtime, func(), error) {
	wire.Build(
		coreSet,
		ProvideRuntime,
	)
	return nil, nil, nil
}
