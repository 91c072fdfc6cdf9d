package di

import (
	"context"
	"fmt"
	"time"

	"github.com/google/wire"

	"CoinPulse/internal/domain/models"
	domainrepo "CoinPulse/internal/domain/repository"
	"CoinPulse/internal/handler/api"
	"CoinPulse/internal/handler/ws"
	"CoinPulse/internal/repository"
	"CoinPulse/internal/rollup"
	"CoinPulse/internal/simulator"
	"CoinPulse/internal/usecase"
	"CoinPulse/pkg/cache"
	"CoinPulse/pkg/config"
	apphttp "CoinPulse/pkg/http"
	"CoinPulse/pkg/kafka"
	"CoinPulse/pkg/logger"
	"CoinPulse/pkg/metrics"
	"CoinPulse/pkg/postgres"
	"CoinPulse/pkg/server"
)

// ProviderSet wires the whole application graph.
var ProviderSet = wire.NewSet(
	ProvideConfig,
	ProvideLogger,
	ProvideMetrics,
	ProvidePostgresClient,
	ProvideMarketStore,
	ProvideHub,
	ProvideFeed,
	ProvideCache,
	ProvideScheduler,
	ProvideSimulator,
	ProvideRollupEngine,
	ProvideHistoryService,
	ProvideMarketHandler,
	ProvideHTTPServer,
	ProvideApp,
)

func ProvideConfig(path string) (*config.Config, error) {
	return config.LoadWithEnv(path)
}

func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

func ProvideMetrics() domainrepo.Metrics {
	return metrics.New()
}

func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, error) {
	return postgres.NewClient(
		postgres.WithHost(cfg.Postgres.Host),
		postgres.WithPort(cfg.Postgres.Port),
		postgres.WithDatabase(cfg.Postgres.Database),
		postgres.WithCredentials(cfg.Postgres.User, cfg.Postgres.Password),
		postgres.WithSSLMode(cfg.Postgres.SSLMode),
		postgres.WithMaxConnections(cfg.Postgres.MaxOpenConns, cfg.Postgres.MaxIdleConns),
		postgres.WithConnLifetime(cfg.Postgres.ConnLifetime),
		postgres.WithDialTimeout(cfg.Postgres.DialTimeout),
	)
}

// ProvideMarketStore builds the store, ensures the schema, and seeds
// configured coins.
func ProvideMarketStore(cfg *config.Config, client *postgres.Client, log *logger.Logger) (domainrepo.MarketStore, error) {
	store := repository.NewPostgresMarketStore(client)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	seeds := make([]models.Coin, 0, len(cfg.Simulator.Coins))
	for _, c := range cfg.Simulator.Coins {
		seeds = append(seeds, models.Coin{
			ID:           c.ID,
			CurrentPrice: c.InitialPrice,
			InitialPrice: c.InitialPrice,
		})
	}
	if len(seeds) > 0 {
		if err := store.EnsureCoins(ctx, seeds); err != nil {
			return nil, fmt.Errorf("seed coins: %w", err)
		}
		log.Info("coins ensured", logger.Int("count", len(seeds)))
	}
	return store, nil
}

// ProvideHub returns the websocket hub, or nil when the feed is off.
func ProvideHub(cfg *config.Config, log *logger.Logger) *ws.Hub {
	if !cfg.Feed.WebSocket.Enabled {
		return nil
	}
	return ws.NewHub(log, ws.WithSendBuffer(cfg.Feed.WebSocket.SendBuffer))
}

// ProvideFeed combines the enabled tick publishers. Nil when none are
// configured; the simulator then skips publishing entirely.
func ProvideFeed(cfg *config.Config, hub *ws.Hub, log *logger.Logger) (domainrepo.FeedPublisher, error) {
	var feeds []domainrepo.FeedPublisher

	if cfg.Feed.Kafka.Enabled {
		producer, err := kafka.NewProducer(
			kafka.WithBrokers(cfg.Feed.Kafka.Brokers),
			kafka.WithRequiredAcks(cfg.Feed.Kafka.RequiredAcks),
			kafka.WithCompression(cfg.Feed.Kafka.Compression),
			kafka.WithMaxAttempts(cfg.Feed.Kafka.MaxAttempts),
			kafka.WithTimeouts(cfg.Feed.Kafka.WriteTimeout, 0),
			kafka.WithBatchSize(cfg.Feed.Kafka.BatchSize),
			kafka.WithBatchTimeout(cfg.Feed.Kafka.Linger),
			kafka.WithAsync(cfg.Feed.Kafka.Async),
			kafka.WithHashByKey(true),
		)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		feeds = append(feeds, repository.NewKafkaFeed(producer, cfg.Feed.Kafka.Topic))
		log.Info("kafka tick feed enabled", logger.Strings("brokers", cfg.Feed.Kafka.Brokers))
	}
	if hub != nil {
		feeds = append(feeds, hub)
	}

	switch len(feeds) {
	case 0:
		return nil, nil
	case 1:
		return feeds[0], nil
	default:
		return repository.NewMultiFeed(feeds...), nil
	}
}

// ProvideCache returns the history read cache: memory-only, or layered
// over Redis when configured. Nil when caching is off.
func ProvideCache(cfg *config.Config, log *logger.Logger) (cache.Service, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}

	if cfg.Cache.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(
			cache.WithRedisHost(cfg.Cache.Redis.Host),
			cache.WithRedisPort(cfg.Cache.Redis.Port),
			cache.WithRedisPassword(cfg.Cache.Redis.Password),
			cache.WithRedisDB(cfg.Cache.Redis.DB),
			cache.WithRedisPrefix("coinpulse"),
		)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		log.Info("layered history cache enabled")
		return cache.NewLayeredCache(redisCache, cache.WithLayeredMemorySize(cfg.Cache.MemorySize)), nil
	}

	log.Info("memory history cache enabled")
	return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MemorySize)), nil
}

func ProvideScheduler(log *logger.Logger) *simulator.Scheduler {
	return simulator.NewScheduler(log)
}

func ProvideSimulator(
	cfg *config.Config,
	store domainrepo.MarketStore,
	sched *simulator.Scheduler,
	m domainrepo.Metrics,
	feed domainrepo.FeedPublisher,
	log *logger.Logger,
) *simulator.Simulator {
	opts := []simulator.Option{
		simulator.WithTickInterval(cfg.Simulator.TickInterval),
	}
	if feed != nil {
		opts = append(opts, simulator.WithFeed(feed))
	}
	return simulator.New(store, sched, m, log, opts...)
}

func ProvideRollupEngine(
	cfg *config.Config,
	store domainrepo.MarketStore,
	m domainrepo.Metrics,
	log *logger.Logger,
) *rollup.Engine {
	return rollup.NewEngine(store, m, log,
		rollup.WithRetention(cfg.Rollup.Retention),
		rollup.WithCleanupInterval(cfg.Rollup.CleanupInterval),
	)
}

func ProvideHistoryService(
	cfg *config.Config,
	store domainrepo.MarketStore,
	m domainrepo.Metrics,
	c cache.Service,
	log *logger.Logger,
) *usecase.HistoryService {
	var opts []usecase.HistoryOption
	if c != nil {
		opts = append(opts, usecase.WithHistoryCache(c, cfg.Cache.TTL))
	}
	return usecase.NewHistoryService(store, m, log, opts...)
}

func ProvideMarketHandler(
	sim *simulator.Simulator,
	engine *rollup.Engine,
	history *usecase.HistoryService,
	store domainrepo.MarketStore,
	hub *ws.Hub,
	log *logger.Logger,
) *api.MarketHandler {
	return api.NewMarketHandler(sim, engine, history, store, hub, log)
}

func ProvideHTTPServer(cfg *config.Config, handler *api.MarketHandler) *apphttp.Server {
	return apphttp.NewServer(handler,
		apphttp.WithPort(cfg.Server.Port),
		apphttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		apphttp.WithMetrics(cfg.Metrics.Enabled),
	)
}

// ProvideApp assembles the lifecycle: closers first so they stop last,
// then the HTTP server, then the background engines.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	srv *apphttp.Server,
	sim *simulator.Simulator,
	engine *rollup.Engine,
	store domainrepo.MarketStore,
	feed domainrepo.FeedPublisher,
	c cache.Service,
) *server.App {
	hooks := []server.Hook{
		{Name: "store", Stop: func(context.Context) error { return store.Close() }},
	}
	if c != nil {
		hooks = append(hooks, server.Hook{Name: "cache", Stop: func(context.Context) error { return c.Close() }})
	}
	if feed != nil {
		hooks = append(hooks, server.Hook{Name: "feed", Stop: func(context.Context) error { return feed.Close() }})
	}
	hooks = append(hooks, server.Hook{
		Name:  "http",
		Start: func(context.Context) error { return srv.Start() },
		Stop:  func(ctx context.Context) error { return srv.Stop(ctx) },
	})
	if cfg.Rollup.Enabled {
		hooks = append(hooks, server.Hook{
			Name:  "rollup",
			Start: func(context.Context) error { engine.Start(); return nil },
			Stop:  func(context.Context) error { engine.Stop(); return nil },
		})
	}
	if cfg.Simulator.Enabled {
		hooks = append(hooks, server.Hook{
			Name:  "simulator",
			Start: func(ctx context.Context) error { return sim.Start(ctx) },
			Stop:  func(context.Context) error { sim.Stop(); return nil },
		})
	}

	return server.NewApp(log, hooks, server.WithShutdownTimeout(cfg.Server.ShutdownTimeout))
}
