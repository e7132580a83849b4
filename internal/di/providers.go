package di

import (
	"context"
	"fmt"
	"time"

	"github.com/metaphizix/MetaphizixEA-sub001/internal/domain/repository"
	"github.com/metaphizix/MetaphizixEA-sub001/internal/handler/api"
	internalrepo "github.com/metaphizix/MetaphizixEA-sub001/internal/repository"
	"github.com/metaphizix/MetaphizixEA-sub001/internal/service/news"
	"github.com/metaphizix/MetaphizixEA-sub001/internal/service/quotes"
	"github.com/metaphizix/MetaphizixEA-sub001/internal/service/ratelimit"
	"github.com/metaphizix/MetaphizixEA-sub001/internal/services/signals"
	"github.com/metaphizix/MetaphizixEA-sub001/internal/services/structure"
	"github.com/metaphizix/MetaphizixEA-sub001/internal/services/zones"
	"github.com/metaphizix/MetaphizixEA-sub001/internal/usecase"
	pkgch "github.com/metaphizix/MetaphizixEA-sub001/pkg/clickhouse"
	"github.com/metaphizix/MetaphizixEA-sub001/pkg/config"
	pkgkafka "github.com/metaphizix/MetaphizixEA-sub001/pkg/kafka"
	applogger "github.com/metaphizix/MetaphizixEA-sub001/pkg/logger"
	"github.com/metaphizix/MetaphizixEA-sub001/pkg/metrics"
	"github.com/metaphizix/MetaphizixEA-sub001/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := cfg.Log.Level
	if level == "" {
		level = "info"
	}
	l, err := applogger.New(&applogger.Config{
		Level:  level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the
// bar tables exist.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.Schema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideBarSeries creates the ClickHouse-backed bar store.
func ProvideBarSeries(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.BarSeries {
	store := internalrepo.NewCHBarStore(chClient, cfg.ClickHouse.Database)
	store.SetLogger(l)
	return store
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.BatchSize),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideSignalPublisher creates the Kafka signal publisher.
func ProvideSignalPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.SignalPublisher {
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.Topic)
}

// ProvideWeightStore creates the ensemble weight store; Redis when
// enabled, in-memory otherwise.
func ProvideWeightStore(cfg *config.Config) repository.WeightStore {
	if cfg.Redis.Enabled {
		return internalrepo.NewRedisWeightStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	}
	return internalrepo.NewMemoryWeightStore()
}

// ProvideInstrumentInfo resolves quote precision from config.
func ProvideInstrumentInfo(cfg *config.Config) repository.InstrumentInfo {
	return internalrepo.NewConfigInstrumentInfo(cfg)
}

// ProvideQuoteStream creates the WebSocket quote stream.
func ProvideQuoteStream(cfg *config.Config, l *applogger.Logger) *quotes.Stream {
	return quotes.New(
		cfg.Quotes.WebSocketURL,
		cfg.Quotes.APIKey,
		cfg.Symbols,
		cfg.Quotes.ReconnectDelay,
		cfg.Quotes.PingInterval,
		l,
	)
}

// ProvideQuoteProvider exposes the stream through the domain interface.
func ProvideQuoteProvider(stream *quotes.Stream) repository.QuoteProvider {
	return stream
}

// ProvideZoneStore creates the zone store.
func ProvideZoneStore() *zones.Store {
	return zones.NewStore()
}

// ProvideSignalStore creates the signal store.
func ProvideSignalStore() *signals.Store {
	return signals.NewStore()
}

// ProvideLimiter creates the scan rate limiter.
func ProvideLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

// ProvideAnalyzer creates the market structure analyzer.
func ProvideAnalyzer(cfg *config.Config) *structure.Analyzer {
	return structure.NewAnalyzer(cfg)
}

// ProvideDetector creates the zone detector.
func ProvideDetector(
	cfg *config.Config,
	bars repository.BarSeries,
	info repository.InstrumentInfo,
	store *zones.Store,
	limiter *ratelimit.Limiter,
	m repository.Metrics,
	l *applogger.Logger,
) *zones.Detector {
	return zones.NewDetector(cfg, bars, info, store, limiter, m, l)
}

// ProvideGenerator creates the signal generator.
func ProvideGenerator(cfg *config.Config, m repository.Metrics, l *applogger.Logger) *signals.Generator {
	return signals.NewGenerator(cfg, m, l)
}

// ProvideNewsGate creates the news gate.
func ProvideNewsGate() *news.Gate {
	return news.NewGate()
}

// ProvideCombiner creates the signal combiner.
func ProvideCombiner(
	cfg *config.Config,
	store *signals.Store,
	weights repository.WeightStore,
	gate *news.Gate,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Combiner {
	return usecase.NewCombiner(cfg, store, weights, gate, m, l)
}

// ProvideScanUseCase wires the full analysis pass.
func ProvideScanUseCase(
	cfg *config.Config,
	detector *zones.Detector,
	analyzer *structure.Analyzer,
	generator *signals.Generator,
	sigStore *signals.Store,
	combiner *usecase.Combiner,
	bars repository.BarSeries,
	quoteProvider repository.QuoteProvider,
	publisher repository.SignalPublisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.ScanUseCase {
	return usecase.NewScanUseCase(cfg, detector, analyzer, generator, sigStore, combiner, bars, quoteProvider, publisher, m, l)
}

// ProvideAPIHandler creates the HTTP handler.
func ProvideAPIHandler(l *applogger.Logger, scan *usecase.ScanUseCase, weights repository.WeightStore, bars repository.BarSeries) *api.Handler {
	return api.NewHandler(l, scan, weights, bars)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	scan *usecase.ScanUseCase,
	stream *quotes.Stream,
	handler *api.Handler,
) *server.App {
	return server.New(cfg, l, scan, stream, handler)
}
