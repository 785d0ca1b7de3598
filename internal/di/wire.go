//go:build wireinject
// +build wireinject

package di

import (
	"ExecCore/pkg/config"
	"ExecCore/pkg/server"

	"github.com/google/wire"
)

var infraSet = wire.NewSet(
	ProvideLogger,
	ProvideRegistry,
	ProvideMetrics,
	ProvideCache,
	ProvideClickHouseClient,
	ProvideKafkaProducer,
)

var domainSet = wire.NewSet(
	ProvideBars,
	ProvideFeed,
	ProvideReferencePrice,
	ProvideForecaster,
	ProvidePolicyChooser,
	ProvideRiskGuard,
	ProvideExecutionAdapter,
	ProvideLedger,
	ProvideSizingSlot,
	ProvideRecordPublisher,
)

var appSet = wire.NewSet(
	ProvidePlanner,
	ProvideRouter,
	ProvideExecutionUseCase,
	ProvideRateLimiter,
	ProvideExecutionHandler,
	ProvideHTTPServer,
	ProvideKafkaConsumer,
	ProvideApp,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(infraSet, domainSet, appSet)
	return nil, nil, nil
}
