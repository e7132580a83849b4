//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/metaphizix/MetaphizixEA-sub001/pkg/config"
	"github.com/metaphizix/MetaphizixEA-sub001/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Repositories
		ProvideBarSeries,
		ProvideSignalPublisher,
		ProvideWeightStore,
		ProvideInstrumentInfo,
		ProvideQuoteStream,
		ProvideQuoteProvider,

		// Stores and services
		ProvideZoneStore,
		ProvideSignalStore,
		ProvideLimiter,
		ProvideAnalyzer,
		ProvideDetector,
		ProvideGenerator,
		ProvideNewsGate,

		// Use cases
		ProvideCombiner,
		ProvideScanUseCase,

		// HTTP
		ProvideAPIHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
