//go:build wireinject
// +build wireinject

package di

import (
	"NewsPulse/pkg/config"
	"NewsPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisCache,
		ProvideCacheService,
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// External collaborators
		ProvideEventSource,
		ProvidePriceSeries,
		ProvideScoringClient,
		ProvideEnricher,
		ProvideArchive,
		ProvideSignalBus,

		// Use cases
		ProvidePipeline,
		ProvideLedgerWriter,
		ProvideBacktester,
		ProvideCollector,
		ProvidePredictor,
		ProvideAnomalyDetector,

		// Dispatch
		ProvideQueue,
		ProvideScheduler,
		ProvideIngestHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
