package di

import (
	"context"
	"fmt"
	"time"

	drepo "ExecCore/internal/domain/repository"
	domsvc "ExecCore/internal/domain/service"
	"ExecCore/internal/handler/api"
	internalrepo "ExecCore/internal/repository"
	"ExecCore/internal/service/ratelimit"
	"ExecCore/internal/service/riskguard"
	"ExecCore/internal/services/analytics"
	"ExecCore/internal/services/execution"
	"ExecCore/internal/services/microstructure"
	"ExecCore/internal/services/pricing"
	"ExecCore/internal/services/volatility"
	"ExecCore/internal/usecase"
	"ExecCore/pkg/cache"
	pkgch "ExecCore/pkg/clickhouse"
	"ExecCore/pkg/config"
	xhttp "ExecCore/pkg/http"
	"ExecCore/pkg/http/middleware"
	pkgkafka "ExecCore/pkg/kafka"
	applogger "ExecCore/pkg/logger"
	"ExecCore/pkg/metrics"
	"ExecCore/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
)

// Bars is the bar source chosen by config. Observer is nil unless the store
// is fed from the microstructure stream.
type Bars struct {
	Store    drepo.BarStore
	Observer usecase.PriceObserver
}

// ProvideLogger builds the application logger from config.
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

// ProvideRegistry creates the process-wide Prometheus registry.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates the domain metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) *metrics.Recorder {
	return metrics.New(reg)
}

// ProvideCache returns the forecast cache: memory only, or memory in front of
// Redis when redis.enabled is set.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.Service, func(), error) {
	if !cfg.Redis.Enabled {
		mc := cache.NewMemoryCache(cache.WithMemoryMaxSize(10_000), cache.WithMemoryCleanup(time.Minute))
		return mc, func() { _ = mc.Close() }, nil
	}

	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	l.Info("redis cache connected", applogger.String("addr", cfg.Redis.Addr))

	lc := cache.NewLayeredCache(rc,
		cache.WithLayeredMemorySize(10_000),
		cache.WithLayeredMemoryTTL(cfg.Volatility.CacheTTL),
	)
	return lc, func() {
		if err := lc.Close(); err != nil {
			l.Warn("cache close error", applogger.Error(err))
		}
	}, nil
}

// ProvideClickHouseClient connects to ClickHouse and creates the candle tables.
// It returns a nil client when clickhouse.enabled is false.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	if err := client.InitSchema(ctx, internalrepo.BarSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse connected", applogger.String("database", cfg.ClickHouse.Database))

	return client, func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}, nil
}

// ProvideBars picks the bar store for volatility.source.
func ProvideBars(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) Bars {
	if cfg.Volatility.Source == "clickhouse" && ch != nil {
		return Bars{Store: internalrepo.NewCHBarStore(ch, cfg.ClickHouse.Database, l)}
	}
	mem := internalrepo.NewMemoryBarStore(drepo.TF1m, cfg.Volatility.Bars)
	return Bars{Store: mem, Observer: mem}
}

func ProvideFeed(cfg *config.Config) *microstructure.Feed {
	return microstructure.NewFeed(cfg.Microstructure.MaxStaleness)
}

func ProvideReferencePrice(cfg *config.Config, bars Bars, feed *microstructure.Feed, l *applogger.Logger) *pricing.ReferencePrice {
	return pricing.NewReferencePrice(bars.Store, drepo.NormalizeTimeframe(cfg.Volatility.Timeframe), feed, l)
}

func ProvideForecaster(cfg *config.Config, bars Bars, c cache.Service, l *applogger.Logger, m *metrics.Recorder) *volatility.Forecaster {
	return volatility.NewForecaster(bars.Store, c, cfg, l, m)
}

// ProvidePolicyChooser uses the remote policy service when one is configured,
// otherwise the static policy.
func ProvidePolicyChooser(cfg *config.Config, l *applogger.Logger) domsvc.PolicyChooser {
	if cfg.Policy.ServiceURL != "" {
		l.Info("policy chooser: http", applogger.String("url", cfg.Policy.ServiceURL))
		return analytics.NewHTTPPolicyChooser(cfg.Policy.ServiceURL, cfg.Policy.Timeout, cfg.Policy.Retries)
	}
	l.Info("policy chooser: static", applogger.String("policy", cfg.Policy.StaticPolicy))
	return analytics.NewStaticPolicyChooser(cfg.Policy.StaticPolicy)
}

func ProvideRiskGuard(cfg *config.Config) *riskguard.Guard {
	return riskguard.New(cfg.RiskGuard.SymbolCap,
		riskguard.WithSymbolCaps(cfg.RiskGuard.SymbolCaps),
		riskguard.WithGlobalCap(cfg.RiskGuard.GlobalCap),
		riskguard.WithWindow(cfg.RiskGuard.Window),
	)
}

func ProvideExecutionAdapter(cfg *config.Config) *execution.PaperAdapter {
	seed := cfg.Router.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return execution.NewPaperAdapter(cfg.Router.MinFillRatio, cfg.Router.MaxFillRatio, seed)
}

func ProvideLedger(cfg *config.Config) *internalrepo.RingLedger {
	return internalrepo.NewRingLedger(cfg.Router.HistoryCapacity)
}

func ProvideSizingSlot() *internalrepo.SizingSlot {
	return internalrepo.NewSizingSlot()
}

// ProvideKafkaProducer creates the record producer, or nil when no brokers
// are configured. The producer is closed through the record publisher.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, error) {
	if !cfg.KafkaEnabled() {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideRecordPublisher publishes terminal records to Kafka, or drops them
// when Kafka is off.
func ProvideRecordPublisher(cfg *config.Config, producer *pkgkafka.Producer) drepo.RecordPublisher {
	if producer == nil {
		return internalrepo.NoopPublisher{}
	}
	return internalrepo.NewKafkaRecordPublisher(producer, cfg.Kafka.ExecutionTopic)
}

func ProvidePlanner(
	cfg *config.Config,
	chooser domsvc.PolicyChooser,
	vol *volatility.Forecaster,
	feed *microstructure.Feed,
	prices *pricing.ReferencePrice,
	sizing *internalrepo.SizingSlot,
	m *metrics.Recorder,
	l *applogger.Logger,
) *usecase.Planner {
	return usecase.NewPlanner(chooser, vol, feed, prices, sizing, m, l.With(applogger.String("component", "planner")), cfg)
}

func ProvideRouter(
	cfg *config.Config,
	guard *riskguard.Guard,
	adapter *execution.PaperAdapter,
	prices *pricing.ReferencePrice,
	ledger *internalrepo.RingLedger,
	pub drepo.RecordPublisher,
	m *metrics.Recorder,
	l *applogger.Logger,
) (*usecase.Router, func()) {
	r := usecase.NewRouter(guard, adapter, prices, ledger, pub, m, l.With(applogger.String("component", "router")), cfg)
	return r, func() { _ = r.Close() }
}

func ProvideExecutionUseCase(p *usecase.Planner, r *usecase.Router, sizing *internalrepo.SizingSlot) *usecase.ExecutionUseCase {
	return usecase.NewExecutionUseCase(p, r, sizing)
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
}

func ProvideExecutionHandler(
	l *applogger.Logger,
	uc *usecase.ExecutionUseCase,
	vol *volatility.Forecaster,
	guard *riskguard.Guard,
	limiter *ratelimit.Limiter,
) *api.ExecutionEchoHandler {
	return api.NewExecutionEchoHandler(l, uc, vol, guard, limiter)
}

// ProvideHTTPServer builds the Echo server with request metrics, readiness
// checks for the configured stores and, when enabled, the scrape endpoint.
func ProvideHTTPServer(
	cfg *config.Config,
	l *applogger.Logger,
	reg *prometheus.Registry,
	h *api.ExecutionEchoHandler,
	ch *pkgch.Client,
	c cache.Service,
) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMiddleware(middleware.NewHTTPMetrics(reg).Middleware()),
		xhttp.WithReadiness("cache", func(ctx context.Context) error {
			_, err := c.Exists(ctx, "readyz")
			return err
		}),
	}
	if ch != nil {
		opts = append(opts, xhttp.WithReadiness("clickhouse", ch.Health))
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	}
	return xhttp.NewServer(l, []xhttp.Handler{h}, opts...)
}

// ProvideKafkaConsumer builds the microstructure consumer, or nil when no
// brokers are configured.
func ProvideKafkaConsumer(
	cfg *config.Config,
	l *applogger.Logger,
	reg *prometheus.Registry,
	m *metrics.Recorder,
	feed *microstructure.Feed,
	bars Bars,
) (*pkgkafka.Consumer, error) {
	if !cfg.KafkaEnabled() || cfg.Kafka.MicrostructureTopic == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerLogger(l.With(applogger.String("component", "kafka_consumer"))),
		pkgkafka.WithConsumerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}

	consumer.RegisterHandler(usecase.NewMicrostructureFeedHandler(cfg.Kafka.MicrostructureTopic, feed, bars.Observer, m))
	consumer.WithConsumerHook(pkgkafka.HookFuncs{
		Err: func(_ context.Context, topic string, km kafka.Message, _ []byte, err error) {
			m.RecordError("consumer_handler")
			l.Warn("microstructure message dropped",
				applogger.String("topic", topic),
				applogger.Int("partition", km.Partition),
				applogger.Int64("offset", km.Offset),
				applogger.Error(err),
			)
		},
	})
	return consumer, nil
}

// ProvideApp assembles the application lifecycle.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	limiter *ratelimit.Limiter,
	pub drepo.RecordPublisher,
) *server.App {
	return server.New(cfg, l, srv,
		server.WithConsumer(consumer),
		server.WithSweeper(limiter),
		server.WithPublisher(pub),
	)
}
