package di

import (
	"fmt"

	"github.com/benbjohnson/clock"

	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/analyzer"
	domrepo "github.com/RA-CONSULTING/aureon-trading-sub008/internal/domain/repository"
	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/exchange"
	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/extractor"
	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/forwarder"
	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/handler/api"
	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/mapper"
	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/memory"
	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/predictor"
	internalrepo "github.com/RA-CONSULTING/aureon-trading-sub008/internal/repository"
	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/shape"
	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/strategy"
	"github.com/RA-CONSULTING/aureon-trading-sub008/internal/trainer"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/bus"
	pkgch "github.com/RA-CONSULTING/aureon-trading-sub008/pkg/clickhouse"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/config"
	xhttp "github.com/RA-CONSULTING/aureon-trading-sub008/pkg/http"
	pkgkafka "github.com/RA-CONSULTING/aureon-trading-sub008/pkg/kafka"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/logger"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/metrics"
	"github.com/RA-CONSULTING/aureon-trading-sub008/pkg/server"
)

// ProvideLogger creates the root structured logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates the Prometheus recorder.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New()
}

// ProvideClock returns the real clock; tests substitute a mock.
func ProvideClock() clock.Clock {
	return clock.New()
}

// ProvideBus creates the in-process event bus.
func ProvideBus(log *logger.Logger, rec *metrics.Recorder) *bus.Bus {
	return bus.New(log, rec)
}

// ProvideStreamClient creates the websocket depth client, or nil when
// the REST poller is configured.
func ProvideStreamClient(cfg *config.Config, log *logger.Logger) *exchange.StreamClient {
	if cfg.Exchange.Client != "stream" {
		return nil
	}
	return exchange.NewStreamClient(log, cfg.Symbols,
		exchange.WithStreamURL(cfg.Exchange.Stream.URL),
		exchange.WithStreamDepth(cfg.Exchange.DepthLimit),
		exchange.WithMaxReconnectInterval(cfg.Exchange.Stream.ReconnectDelay),
	)
}

// ProvideExchangeClient resolves the order-book source the analyzer
// polls against.
func ProvideExchangeClient(cfg *config.Config, log *logger.Logger, stream *exchange.StreamClient) domrepo.ExchangeClient {
	if stream != nil {
		return stream
	}
	return exchange.NewBinanceClient(log,
		exchange.WithDepthLimit(cfg.Exchange.DepthLimit),
		exchange.WithFetchTimeout(cfg.Exchange.FetchTimeout),
		exchange.WithRequestsPerSec(cfg.Exchange.RequestsPerSec),
	)
}

// ProvidePersister selects the Pattern Memory backend.
func ProvidePersister(cfg *config.Config) (memory.Persister, error) {
	switch cfg.Memory.Backend {
	case "redis":
		return memory.NewRedisPersister(
			cfg.Memory.Redis.Addr,
			cfg.Memory.Redis.Password,
			cfg.Memory.Redis.DB,
			cfg.Memory.Redis.KeyPrefix,
		)
	default:
		return memory.NewFilePersister(cfg.Memory.Path), nil
	}
}

// ProvideStore creates Pattern Memory.
func ProvideStore(p memory.Persister, log *logger.Logger, rec *metrics.Recorder, cfg *config.Config) (*memory.Store, error) {
	return memory.NewStore(p, log, rec, cfg.Memory.FlushInterval)
}

// ProvideTrainer creates the outcome-learning trainer.
func ProvideTrainer(store *memory.Store, log *logger.Logger, cfg *config.Config) *trainer.Trainer {
	return trainer.New(store, log, cfg.Trainer.ModelDir, cfg.Trainer.MinSamples)
}

// ProvideHeuristicClassifier builds the rule-based classifier.
func ProvideHeuristicClassifier(cfg *config.Config) *strategy.HeuristicClassifier {
	return strategy.NewHeuristicClassifier(
		cfg.Analyzer.WallThreshold,
		cfg.Mapper.ManipulationThreshold,
		cfg.Mapper.DepthRatio,
	)
}

// ProvideSelector wires the heuristic/learned strategy switch.
func ProvideSelector(t *trainer.Trainer, h *strategy.HeuristicClassifier) *strategy.Selector {
	return strategy.NewSelector(t, h)
}

// ProvideAnalyzer creates the orderbook analyzer.
func ProvideAnalyzer(
	client domrepo.ExchangeClient,
	b *bus.Bus,
	log *logger.Logger,
	rec *metrics.Recorder,
	clk clock.Clock,
	cfg *config.Config,
) *analyzer.Analyzer {
	return analyzer.New(client, b, log, rec, clk, analyzer.Config{
		PollInterval:    cfg.Analyzer.PollInterval,
		WallThreshold:   cfg.Analyzer.WallThreshold,
		AlertMultiplier: cfg.Analyzer.AlertMultiplier,
		DepthLevels:     cfg.Analyzer.DepthLevels,
		LayeringLevels:  cfg.Analyzer.LayeringLevels,
		HistorySize:     cfg.Analyzer.HistorySize,
	})
}

// ProvideMapper creates the pattern mapper and subscribes it.
func ProvideMapper(
	store *memory.Store,
	sel *strategy.Selector,
	b *bus.Bus,
	log *logger.Logger,
	rec *metrics.Recorder,
	clk clock.Clock,
	cfg *config.Config,
) *mapper.Mapper {
	m := mapper.New(store, sel, b, log, rec, clk, cfg.Analyzer.PollInterval, cfg.Mapper.Timeframe)
	m.Register()
	return m
}

// ProvideClickHouseClient creates the warehouse client, or nil when
// disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, 0),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideTradeStats creates the market-context source; nil falls back
// to the predictor's neutral default.
func ProvideTradeStats(ch *pkgch.Client, cfg *config.Config, log *logger.Logger) domrepo.TradeStats {
	if ch == nil {
		return nil
	}
	return internalrepo.NewCHTradeStats(ch, cfg.ClickHouse.TradesTable, cfg.ClickHouse.CacheTTL, log)
}

// ProvidePredictor creates the behavior predictor and subscribes it.
func ProvidePredictor(
	store *memory.Store,
	stats domrepo.TradeStats,
	sel *strategy.Selector,
	b *bus.Bus,
	log *logger.Logger,
	rec *metrics.Recorder,
	clk clock.Clock,
	cfg *config.Config,
) *predictor.Predictor {
	p := predictor.New(store, stats, sel, b, log, rec, clk, cfg.Predictor.RecentEvents)
	p.Register()
	return p
}

// ProvideExtractor creates the spectral shape extractor and subscribes
// it.
func ProvideExtractor(b *bus.Bus, log *logger.Logger, rec *metrics.Recorder, clk clock.Clock) *extractor.Spectral {
	s := extractor.New(b, log, rec, clk, 0)
	s.Register()
	return s
}

// ProvideShapeRegistry creates the shape registry and subscribes it.
func ProvideShapeRegistry(
	store *memory.Store,
	b *bus.Bus,
	log *logger.Logger,
	rec *metrics.Recorder,
	clk clock.Clock,
	cfg *config.Config,
) *shape.Registry {
	r := shape.New(store, b, log, rec, clk, cfg.Analyzer.PollInterval)
	r.Register()
	return r
}

// ProvideKafkaProducer creates the producer, or nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideForwarder bridges the bus onto Kafka; nil when no producer.
func ProvideForwarder(
	producer *pkgkafka.Producer,
	b *bus.Bus,
	log *logger.Logger,
	rec *metrics.Recorder,
	cfg *config.Config,
) *forwarder.KafkaForwarder {
	if producer == nil {
		return nil
	}
	f := forwarder.New(producer, b, log, rec, cfg.Kafka.TopicPrefix)
	f.Register()
	return f
}

// ProvideHandler creates the HTTP handler and hooks it onto the bus.
func ProvideHandler(log *logger.Logger, store *memory.Store, b *bus.Bus) *api.PatternsHandler {
	h := api.NewPatternsHandler(log, store)
	h.Watch(b)
	return h
}

// ProvideHTTPServer creates the HTTP server.
func ProvideHTTPServer(h *api.PatternsHandler, log *logger.Logger, cfg *config.Config) *xhttp.Server {
	return xhttp.NewServer(h, log,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	a *analyzer.Analyzer,
	stream *exchange.StreamClient,
	store *memory.Store,
	t *trainer.Trainer,
	fwd *forwarder.KafkaForwarder,
	httpServer *xhttp.Server,
	ch *pkgch.Client,
	_ *mapper.Mapper,
	_ *predictor.Predictor,
	_ *extractor.Spectral,
	_ *shape.Registry,
) *server.App {
	return server.New(cfg, log, a, stream, store, t, fwd, httpServer, ch)
}
