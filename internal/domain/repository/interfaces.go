package repository

import (
	"context"
	"time"

	"CoinPulse/internal/domain/models"
)

// MarketStore is the persistence boundary for coins, ticks and rollups.
type MarketStore interface {
	// Init creates tables and indexes if they do not exist.
	Init(ctx context.Context) error
	// EnsureCoins seeds coin rows that are missing. Existing rows keep
	// their current price.
	EnsureCoins(ctx context.Context, coins []models.Coin) error
	ListCoins(ctx context.Context) ([]models.Coin, error)
	CoinExists(ctx context.Context, coinID string) (bool, error)
	// OldestPricesSince returns, per coin, the earliest tick price at or
	// after the given instant. Coins with no tick in the window are absent.
	OldestPricesSince(ctx context.Context, since time.Time) (map[string]float64, error)

	// BeginTick opens the transaction one simulation tick writes through.
	BeginTick(ctx context.Context) (TickTx, error)

	// TicksBetween returns ticks with from <= created_at < to, across all
	// coins, ordered by coin then time. Used by the rollup engine.
	TicksBetween(ctx context.Context, from, to time.Time) ([]models.PriceTick, error)
	// TicksSince returns one coin's ticks at or after since, oldest first.
	TicksSince(ctx context.Context, coinID string, since time.Time) ([]models.PriceTick, error)

	// InsertBuckets inserts rollup rows, silently skipping rows whose
	// (coin, interval, bucket start) already exists. Returns rows inserted.
	InsertBuckets(ctx context.Context, buckets []models.OHLCBucket) (int64, error)
	BucketsSince(ctx context.Context, coinID string, interval Interval, since time.Time) ([]models.OHLCBucket, error)
	// DeleteBucketsBefore drops rollup rows older than cutoff, all
	// resolutions. Returns rows removed.
	DeleteBucketsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// CoinStats aggregates latest/high/low per coin since the given
	// instant. A zero since means the full history.
	CoinStats(ctx context.Context, since time.Time) ([]models.CoinStats, error)
	// MarketSeries returns market-wide price totals per tick timestamp.
	MarketSeries(ctx context.Context, since time.Time) ([]models.MarketPoint, error)

	Health(ctx context.Context) error
	Close() error
}

// TickTx scopes the writes of a single simulation tick. Either every
// coin's update and tick row commits, or none do.
type TickTx interface {
	UpdateCoinPrice(ctx context.Context, coinID string, price float64, change24h *float64) error
	InsertTick(ctx context.Context, coinID string, price float64, at time.Time) error
	Commit() error
	Rollback() error
}

// FeedPublisher pushes committed ticks to downstream consumers.
// Publishing is best effort; failures never roll back a tick.
type FeedPublisher interface {
	PublishTicks(ctx context.Context, ticks []models.PriceTick) error
	Close() error
}

// Metrics abstracts the counters the market pipeline records.
type Metrics interface {
	RecordTick(coin string, price float64)
	RecordError(kind string)
	RecordRollup(interval string, buckets int)
	RecordLatency(op string, seconds float64)
}
