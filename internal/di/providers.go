package di

import (
	"context"
	"fmt"
	"time"

	"PulseScan/internal/domain/repository"
	domsvc "PulseScan/internal/domain/service"
	"PulseScan/internal/handler/api"
	"PulseScan/internal/handler/ws"
	mid "PulseScan/internal/middleware"
	internalrepo "PulseScan/internal/repository"
	"PulseScan/internal/service/chart"
	"PulseScan/internal/service/exchange"
	"PulseScan/internal/service/ratelimit"
	"PulseScan/internal/service/telegram"
	"PulseScan/internal/service/universe"
	"PulseScan/internal/services/analysis"
	"PulseScan/internal/usecase"
	"PulseScan/pkg/cache"
	pkgch "PulseScan/pkg/clickhouse"
	"PulseScan/pkg/config"
	xhttp "PulseScan/pkg/http"
	pkgkafka "PulseScan/pkg/kafka"
	"PulseScan/pkg/logger"
	"PulseScan/pkg/metrics"
	"PulseScan/pkg/queue"
	"PulseScan/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
)

// ProvideLogger builds the process logger from the log section.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return log.With(logger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideRedisCache connects to Redis when enabled, nil otherwise.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, cfg.Redis.PoolTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCache returns the shared cache for universe and chart lookups:
// a memory L1 over Redis when Redis is on, memory alone otherwise.
func ProvideCache(rc *cache.RedisCache) cache.Service {
	if rc == nil {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(4096))
	}
	return cache.NewLayeredCache(rc,
		cache.WithLayeredMemorySize(1024),
		cache.WithLayeredL1TTL(5*time.Minute),
	)
}

// ProvideClickHouseClient connects only when something writes to
// ClickHouse: the clickhouse backend, or the kafka archive consumer.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !needsClickHouse(cfg) {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

func needsClickHouse(cfg *config.Config) bool {
	switch cfg.Backend.Type {
	case usecase.BackendClickHouse:
		return true
	case usecase.BackendKafka:
		return cfg.Kafka.Consumer.Enabled
	}
	return false
}

// ProvideSignalStore creates the alert history table. The interface stays
// nil when ClickHouse is not in use.
func ProvideSignalStore(client *pkgch.Client, log *logger.Logger) (repository.SignalStore, error) {
	if client == nil {
		return nil, nil
	}
	store := internalrepo.NewClickHouseSignalStore(client.DB(), log.With(logger.String("component", "clickhouse")))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer for the kafka backend.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Backend.Type != usecase.BackendKafka {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithAutoCreateTopics(cfg.Kafka.AutoCreate),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideSignalPublisher wraps the producer; nil without one.
func ProvideSignalPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.SignalPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.Topic)
}

// ProvideKafkaConsumer creates the archive consumer when the kafka backend
// has it enabled.
func ProvideKafkaConsumer(cfg *config.Config, log *logger.Logger) (*pkgkafka.Consumer, error) {
	if cfg.Backend.Type != usecase.BackendKafka || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(log.With(logger.String("component", "kafka-consumer")),
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideArchiveHandler writes consumed signals to ClickHouse.
func ProvideArchiveHandler(cfg *config.Config, store repository.SignalStore, m repository.Metrics) *usecase.SignalArchiveHandler {
	if store == nil {
		return nil
	}
	return usecase.NewSignalArchiveHandler(cfg.Kafka.Topic, store, m)
}

func ProvideSignalHistory(cfg *config.Config) *internalrepo.MemorySignalStore {
	return internalrepo.NewMemorySignalStore(cfg.Backend.HistorySize)
}

func ProvideHub(log *logger.Logger) *ws.Hub {
	return ws.NewHub(log.With(logger.String("component", "ws")))
}

func ProvideSignalProcessor(
	cfg *config.Config,
	pub repository.SignalPublisher,
	store repository.SignalStore,
	history *internalrepo.MemorySignalStore,
	hub *ws.Hub,
	m repository.Metrics,
) *usecase.SignalProcessor {
	return usecase.NewSignalProcessor(pub, store, history, hub, m, cfg.Backend.Type)
}

// ProvideSignalPipeline puts a retry buffer between dispatch and the
// backend.
func ProvideSignalPipeline(cfg *config.Config, proc *usecase.SignalProcessor, m repository.Metrics, log *logger.Logger) *mid.SignalPipeline {
	return mid.NewSignalPipeline(proc, m,
		mid.WithBufferSize(cfg.Backend.BufferSize),
		mid.WithLogger(log.With(logger.String("component", "pipeline"))),
	)
}

func ProvideMarketSources(cfg *config.Config, log *logger.Logger) ([]repository.MarketSource, error) {
	sources, err := exchange.NewSources(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("exchange sources: %w", err)
	}
	log.Info("market sources ready", logger.Strings("order", cfg.Exchanges.Order))
	return sources, nil
}

func ProvideResolver(cfg *config.Config, sources []repository.MarketSource, log *logger.Logger) *usecase.Resolver {
	return usecase.NewResolver(sources, cfg.Exchanges.Retries, cfg.Exchanges.Backoff, log.With(logger.String("component", "resolver")))
}

func ProvideAnalyzer(cfg *config.Config, resolver *usecase.Resolver, log *logger.Logger) *usecase.Analyzer {
	return usecase.NewAnalyzer(resolver, usecase.AnalyzerConfig{
		Fast:  usecase.TimeframeRequest{Timeframe: cfg.Scanner.FastTimeframe, Limit: cfg.Scanner.FastLimit},
		Slow:  usecase.TimeframeRequest{Timeframe: cfg.Scanner.SlowTimeframe, Limit: cfg.Scanner.SlowLimit},
		Stoch: analysis.DefaultStochRSI(),
	}, log.With(logger.String("component", "analyzer")))
}

// ProvideDedupStore loads the on-disk window. With dedup.mirror set and
// Redis on, sends are also claimed in Redis so two scanners never alert
// the same fingerprint.
func ProvideDedupStore(cfg *config.Config, rc *cache.RedisCache, log *logger.Logger) (*internalrepo.DedupStore, error) {
	dlog := log.With(logger.String("component", "dedup"))
	opts := []internalrepo.DedupOption{
		internalrepo.WithDedupWindow(cfg.Dedup.Window),
		internalrepo.WithDedupLoadCutoff(cfg.Dedup.LoadCutoff),
		internalrepo.WithDedupLogger(dlog),
	}
	if cfg.Dedup.Mirror && rc != nil {
		opts = append(opts, internalrepo.WithDedupMirror(rc))
	}
	store := internalrepo.NewDedupStore(cfg.Dedup.Path, opts...)
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("dedup store: %w", err)
	}
	dlog.Info("dedup cache loaded", logger.Int("records", store.Len()), logger.String("path", cfg.Dedup.Path))
	return store, nil
}

func ProvideNotifier(cfg *config.Config, log *logger.Logger) domsvc.Notifier {
	nlog := log.With(logger.String("component", "telegram"))
	if cfg.Alerts.DryRun {
		return telegram.NewDryRunNotifier(nlog)
	}
	client := xhttp.NewClient(xhttp.WithTimeout(cfg.Alerts.Timeout))
	return telegram.NewNotifier(client, telegram.Options{
		BaseURL:        cfg.Alerts.BaseURL,
		BotToken:       cfg.Alerts.BotToken,
		ChatID:         cfg.Alerts.ChatID,
		HighRiskChatID: cfg.Alerts.HighRiskChatID,
	}, nlog)
}

func ProvideChartLinker(cfg *config.Config, c cache.Service, log *logger.Logger) domsvc.ChartLinker {
	client := xhttp.NewClient(xhttp.WithTimeout(cfg.Chart.ProbeTimeout))
	return chart.NewTradingView(client, chart.Options{
		BaseURL:      cfg.Chart.BaseURL,
		Probe:        cfg.Chart.Probe,
		ProbeTimeout: cfg.Chart.ProbeTimeout,
		CacheTTL:     cfg.Chart.CacheTTL,
	}, c, log.With(logger.String("component", "chart")))
}

func ProvideDispatcher(
	cfg *config.Config,
	dedup *internalrepo.DedupStore,
	notifier domsvc.Notifier,
	charts domsvc.ChartLinker,
	pipeline *mid.SignalPipeline,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.Dispatcher {
	return usecase.NewDispatcher(dedup, notifier, charts, pipeline, cfg.Alerts.Cooldown, m,
		log.With(logger.String("component", "dispatcher")))
}

func ProvideUniverse(cfg *config.Config, c cache.Service, log *logger.Logger) domsvc.UniverseProvider {
	u := cfg.Universe
	client := xhttp.NewClient(xhttp.WithTimeout(u.Timeout))
	return universe.NewCoinGecko(client, universe.Options{
		BaseURL:   u.BaseURL,
		APIKey:    u.APIKey,
		Pages:     u.Pages,
		PerPage:   u.PerPage,
		PageDelay: u.PageDelay,
		CacheTTL:  u.CacheTTL,
		Thresholds: universe.Thresholds{
			StandardMinCap:    u.StandardMinCap,
			StandardMinVolume: u.StandardMinVolume,
			HighRiskMinCap:    u.HighRiskMinCap,
			HighRiskMinVolume: u.HighRiskMinVolume,
		},
		Stablecoins: u.Stablecoins,
	}, c, log.With(logger.String("component", "universe")))
}

func ProvideBlocklist(cfg *config.Config) (*universe.Blocklist, error) {
	bl, err := universe.LoadBlocklist(cfg.Universe.BlocklistPath)
	if err != nil {
		return nil, fmt.Errorf("blocklist: %w", err)
	}
	return bl, nil
}

func ProvideStats() *usecase.Stats {
	return usecase.NewStats()
}

func ProvideScanner(
	cfg *config.Config,
	provider domsvc.UniverseProvider,
	blocklist *universe.Blocklist,
	analyzer *usecase.Analyzer,
	dispatcher *usecase.Dispatcher,
	stats *usecase.Stats,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.Scanner {
	pool := queue.NewPool[*usecase.Candidate](queue.QueueConfig{Workers: cfg.Scanner.Workers})
	return usecase.NewScanner(provider, blocklist, analyzer, dispatcher, pool, stats, m, usecase.ScannerConfig{
		CycleTimeout: cfg.Scanner.CycleTimeout,
		LogFirst:     cfg.Scanner.LogFirst,
		LogEvery:     cfg.Scanner.LogEvery,
	}, log.With(logger.String("component", "scanner")))
}

func ProvideStatusHandler(
	cfg *config.Config,
	stats *usecase.Stats,
	proc *usecase.SignalProcessor,
	dedup *internalrepo.DedupStore,
	ch *pkgch.Client,
	log *logger.Logger,
) *api.StatusEchoHandler {
	var checks []api.HealthCheck
	if ch != nil {
		checks = append(checks, api.HealthCheck{Name: "clickhouse", Check: ch.Health})
	}
	rl := ratelimit.New(cfg.Server.RateLimit, cfg.Server.RateBurst)
	return api.NewStatusEchoHandler(log.With(logger.String("component", "api")), stats, proc, dedup, rl, checks...)
}

// ProvideHTTPServer returns nil when the API is disabled.
func ProvideHTTPServer(cfg *config.Config, status *api.StatusEchoHandler, hub *ws.Hub, log *logger.Logger) *xhttp.Server {
	if !cfg.Server.Enabled {
		return nil
	}
	return xhttp.NewServer(log.With(logger.String("component", "http")), []xhttp.Handler{status, hub},
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
	)
}

// ProvideApp assembles the application. Closers run in reverse order, so
// the log collector drains through the producer before the processor
// closes it, and the database clients go last.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	scanner *usecase.Scanner,
	stats *usecase.Stats,
	pipeline *mid.SignalPipeline,
	dedup *internalrepo.DedupStore,
	blocklist *universe.Blocklist,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	archive *usecase.SignalArchiveHandler,
	proc *usecase.SignalProcessor,
	hub *ws.Hub,
	producer *pkgkafka.Producer,
	ch *pkgch.Client,
	rc *cache.RedisCache,
) *server.App {
	app := server.New(server.Options{
		Interval:        cfg.Scanner.Interval,
		StatsEvery:      cfg.Scanner.StatsEvery,
		FlushInterval:   cfg.Dedup.FlushInterval,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, log, scanner, stats)

	app.SetPipeline(pipeline)
	app.SetDedup(dedup)
	app.SetBlocklist(blocklist)
	if httpServer != nil {
		app.SetHTTPServer(httpServer)
	}
	if consumer != nil && archive != nil {
		consumer.SetHook(pkgkafka.NewHookChain(pkgkafka.RequireValue))
		app.SetConsumer(consumer, archive)
	}

	if ch != nil {
		app.AddCloser("clickhouse", ch)
	}
	if rc != nil {
		app.AddCloser("redis", rc)
	}
	app.AddCloser("signal-processor", server.CloserFunc(func() error {
		proc.Close()
		return nil
	}))
	app.AddCloser("ws-hub", server.CloserFunc(func() error {
		hub.Close()
		return nil
	}))
	if producer != nil && cfg.Kafka.LogTopic != "" {
		log.AddCollector(&logger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogTopic,
			Publisher:      producer,
		})
		app.AddCloser("log-collector", server.CloserFunc(func() error {
			log.RemoveCollector()
			return nil
		}))
	}
	return app
}
