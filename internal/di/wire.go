//go:build wireinject
// +build wireinject

package di

import (
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/config"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient infrastructure
		ProvideLogger,
		ProvideMetrics,
		ProvideClock,
		ProvideBus,

		// Exchange clients
		ProvideStreamClient,
		ProvideExchangeClient,

		// Pattern memory
		ProvidePersister,
		ProvideStore,

		// Strategies and training
		ProvideTrainer,
		ProvideHeuristicClassifier,
		ProvideSelector,

		// Pipeline stages
		ProvideAnalyzer,
		ProvideMapper,
		ProvideExtractor,
		ProvideShapeRegistry,
		ProvidePredictor,

		// Warehouse
		ProvideClickHouseClient,
		ProvideTradeStats,

		// Kafka egress
		ProvideKafkaProducer,
		ProvideForwarder,

		// HTTP surface
		ProvideHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
