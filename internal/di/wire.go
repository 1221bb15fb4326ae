//go:build wireinject
// +build wireinject

package di

import (
	"PulseScan/pkg/config"
	"PulseScan/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisCache,
		ProvideCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideSignalStore,
		ProvideSignalPublisher,
		ProvideSignalHistory,
		ProvideDedupStore,

		// Services
		ProvideMarketSources,
		ProvideUniverse,
		ProvideBlocklist,
		ProvideNotifier,
		ProvideChartLinker,
		ProvideHub,

		// Use cases
		ProvideResolver,
		ProvideAnalyzer,
		ProvideSignalProcessor,
		ProvideSignalPipeline,
		ProvideArchiveHandler,
		ProvideDispatcher,
		ProvideStats,
		ProvideScanner,

		// Application server
		ProvideStatusHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil
}
