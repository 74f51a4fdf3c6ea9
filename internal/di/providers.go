package di

import (
	"context"
	"fmt"
	"time"

	"NewsPulse/internal/domain/repository"
	"NewsPulse/internal/handler/api"
	internalrepo "NewsPulse/internal/repository"
	"NewsPulse/internal/scheduler"
	"NewsPulse/internal/service/binance"
	"NewsPulse/internal/service/enrich"
	"NewsPulse/internal/service/eventsource"
	"NewsPulse/internal/service/scoring"
	"NewsPulse/internal/usecase"
	"NewsPulse/pkg/cache"
	pkgch "NewsPulse/pkg/clickhouse"
	"NewsPulse/pkg/config"
	xhttp "NewsPulse/pkg/http"
	pkgkafka "NewsPulse/pkg/kafka"
	applogger "NewsPulse/pkg/logger"
	"NewsPulse/pkg/metrics"
	pkgqueue "NewsPulse/pkg/queue"
	"NewsPulse/pkg/retry"
	"NewsPulse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	format := "json"
	if cfg.Environment == "development" {
		level = "debug"
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideMetrics creates the Prometheus recorder, or a no-op when metrics
// are disabled.
func ProvideMetrics(cfg *config.Config) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.New()
}

// ProvideEventSource creates the upstream event store client.
func ProvideEventSource(cfg *config.Config, lgr *applogger.Logger) repository.EventSource {
	return eventsource.New(eventsource.Config{
		BaseURL:    cfg.EventSource.BaseURL,
		FetchPath:  cfg.EventSource.FetchPath,
		UpdatePath: cfg.EventSource.UpdatePath,
		Timeout:    cfg.EventSource.Timeout,
	}, lgr)
}

// ProvideRedisCache creates the Redis cache, or nil when Redis is disabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCacheService selects Redis when available, in-memory otherwise.
func ProvideCacheService(rc *cache.RedisCache) cache.Service {
	if rc != nil {
		return rc
	}
	return cache.NewMemoryCache()
}

// ProvidePriceSeries creates the exchange kline client.
func ProvidePriceSeries(cfg *config.Config, cacheSvc cache.Service, lgr *applogger.Logger) repository.PriceSeries {
	return binance.New(binance.Config{
		BaseURL:  cfg.MarketData.BaseURL,
		Timeout:  cfg.MarketData.Timeout,
		CacheTTL: cfg.MarketData.CacheTTL,
	}, cacheSvc, lgr)
}

// ProvideScoringClient creates the classification/prediction backend client.
// One client serves filtering, scoring, and prediction.
func ProvideScoringClient(cfg *config.Config, lgr *applogger.Logger) *scoring.Client {
	return scoring.New(scoring.Config{
		BaseURL:   cfg.Scoring.BaseURL,
		Timeout:   cfg.Scoring.Timeout,
		Capacity:  cfg.Scoring.RateLimit.Capacity,
		PerSecond: cfg.Scoring.RateLimit.PerSecond,
	}, lgr)
}

// ProvideEnricher creates the page-fetch enricher.
func ProvideEnricher(cfg *config.Config, lgr *applogger.Logger) repository.Enricher {
	return enrich.New(enrich.Config{
		Timeout:  cfg.Enrich.Timeout,
		MaxChars: cfg.Enrich.MaxChars,
	}, lgr)
}

// ProvideClickHouseClient creates the analytical store client, or nil when
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
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.Schema()); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideArchive creates the ClickHouse archive, or nil when the client is
// absent. Callers treat a nil archive as "archiving off".
func ProvideArchive(ch *pkgch.Client, lgr *applogger.Logger) repository.Archive {
	if ch == nil {
		return nil
	}
	a := internalrepo.NewCHArchive(ch)
	a.SetLogger(lgr)
	return a
}

// ProvideKafkaProducer creates the Kafka producer, or nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.ReadTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideSignalBus wraps the producer as a signal broadcaster, or nil.
func ProvideSignalBus(producer *pkgkafka.Producer, cfg *config.Config) repository.SignalBus {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSignalBus(producer, cfg.Kafka.Topic)
}

// ProvidePipeline creates the per-event ingestion pipeline.
func ProvidePipeline(
	source repository.EventSource,
	sc *scoring.Client,
	enricher repository.Enricher,
	archive repository.Archive,
	m repository.Metrics,
	lgr *applogger.Logger,
	cfg *config.Config,
) *usecase.Pipeline {
	return usecase.NewPipeline(source, sc, sc, enricher, archive, m, lgr, usecase.PipelineConfig{
		Retry: retry.Policy{
			MaxAttempts: cfg.Scoring.MaxAttempts,
			Backoff:     retry.Linear(cfg.Scoring.BackoffStep),
		},
		StageTimeout: cfg.Scoring.Timeout,
	})
}

// ProvideLedgerWriter creates the append write-back protocol runner.
func ProvideLedgerWriter(source repository.EventSource, m repository.Metrics, lgr *applogger.Logger, cfg *config.Config) *usecase.LedgerWriter {
	return usecase.NewLedgerWriter(source, m, lgr, usecase.LedgerWriterConfig{
		Retention:   cfg.Ledger.Retention,
		VerifyDelay: cfg.Ledger.VerifyDelay,
	})
}

// ProvideBacktester creates the prediction accuracy evaluator.
func ProvideBacktester(
	source repository.EventSource,
	prices repository.PriceSeries,
	archive repository.Archive,
	m repository.Metrics,
	lgr *applogger.Logger,
	cfg *config.Config,
) *usecase.Backtester {
	return usecase.NewBacktester(source, prices, archive, m, lgr, usecase.BacktestConfig{
		BarWidth: cfg.Backtest.BarWidth,
		Horizon:  cfg.Backtest.Horizon,
		Window:   cfg.Backtest.Window,
		Interval: cfg.MarketData.Interval,
		BarLimit: cfg.MarketData.BarLimit,
	})
}

// ProvideCollector creates the polling collection cycle.
func ProvideCollector(source repository.EventSource, pipeline *usecase.Pipeline, m repository.Metrics, lgr *applogger.Logger, cfg *config.Config) *usecase.Collector {
	return usecase.NewCollector(source, pipeline, m, lgr, usecase.CollectorConfig{
		Lookback:  cfg.EventSource.Lookback,
		Passes:    cfg.Scheduler.CollectionPasses,
		PassDelay: cfg.Scheduler.PassDelay,
	})
}

// ProvidePredictor creates the short- and long-horizon prediction workflows.
func ProvidePredictor(
	source repository.EventSource,
	prices repository.PriceSeries,
	sc *scoring.Client,
	backtester *usecase.Backtester,
	writer *usecase.LedgerWriter,
	bus repository.SignalBus,
	archive repository.Archive,
	m repository.Metrics,
	lgr *applogger.Logger,
	cfg *config.Config,
) *usecase.Predictor {
	return usecase.NewPredictor(source, prices, sc, backtester, writer, bus, archive, m, lgr, usecase.PredictorConfig{
		Interval: cfg.MarketData.Interval,
	})
}

// ProvideAnomalyDetector creates the volume-spike detector.
func ProvideAnomalyDetector(
	source repository.EventSource,
	prices repository.PriceSeries,
	writer *usecase.LedgerWriter,
	bus repository.SignalBus,
	m repository.Metrics,
	lgr *applogger.Logger,
	cfg *config.Config,
) *usecase.AnomalyDetector {
	return usecase.NewAnomalyDetector(source, prices, writer, bus, m, lgr, usecase.AnomalyConfig{
		Interval:     cfg.MarketData.Interval,
		BaselineBars: cfg.Anomaly.BaselineBars,
		Threshold:    cfg.Anomaly.ThresholdPercent / 100,
	})
}

// ProvideQueue creates the Redis work queue with the anomaly job registered,
// or nil when Redis is off. With no queue, anomaly checks run in-process.
func ProvideQueue(cfg *config.Config, lgr *applogger.Logger, rc *cache.RedisCache, detector *usecase.AnomalyDetector) *pkgqueue.RedisQueue {
	if rc == nil {
		return nil
	}
	q := pkgqueue.NewRedisQueue(lgr, &pkgqueue.Config{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, rc.Client(), pkgqueue.ModeProducerConsumer)
	q.RegisterJob(usecase.NewAnomalyJob(detector))
	return q
}

// ProvideScheduler assembles the wall-clock cadence over the workflows.
func ProvideScheduler(
	collector *usecase.Collector,
	predictor *usecase.Predictor,
	detector *usecase.AnomalyDetector,
	q *pkgqueue.RedisQueue,
	m repository.Metrics,
	lgr *applogger.Logger,
) *scheduler.Scheduler {
	anomaly := func(ctx context.Context) {
		if q != nil {
			usecase.EnqueueAnomalyChecks(ctx, q, lgr)
			return
		}
		if err := detector.RunAnomalyCheck(ctx); err != nil {
			lgr.Warn("anomaly check failed", applogger.Error(err))
		}
	}

	return scheduler.New(nil, scheduler.Tasks{
		Collect:      collector.RunIngestionCycle,
		ShortHorizon: predictor.RunShortHorizonPrediction,
		LongHorizon:  predictor.RunLongHorizonPrediction,
		Anomaly:      anomaly,
	}, m, lgr, scheduler.Config{})
}

// ProvideIngestHandler creates the HTTP/WebSocket push surface.
func ProvideIngestHandler(lgr *applogger.Logger, pipeline *usecase.Pipeline) xhttp.Handler {
	return api.NewIngestHandler(lgr, pipeline)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	lgr *applogger.Logger,
	sched *scheduler.Scheduler,
	q *pkgqueue.RedisQueue,
	handler xhttp.Handler,
	chClient *pkgch.Client,
	bus repository.SignalBus,
	cacheSvc cache.Service,
) *server.App {
	return server.New(cfg, lgr, sched, q, handler, chClient, bus, cacheSvc)
}
