package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/domain/repository"
	"CoinPulse/pkg/postgres"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS coins (
		coin_id TEXT PRIMARY KEY,
		current_price DOUBLE PRECISION NOT NULL,
		price_change_24h DOUBLE PRECISION,
		initial_price DOUBLE PRECISION NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS price_history (
		id BIGSERIAL PRIMARY KEY,
		coin_id TEXT NOT NULL REFERENCES coins(coin_id),
		price DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_price_history_coin_time
		ON price_history (coin_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_price_history_time
		ON price_history (created_at)`,
	`CREATE TABLE IF NOT EXISTS price_history_rollups (
		coin_id TEXT NOT NULL,
		interval_type TEXT NOT NULL,
		bucket_start TIMESTAMPTZ NOT NULL,
		open DOUBLE PRECISION NOT NULL,
		high DOUBLE PRECISION NOT NULL,
		low DOUBLE PRECISION NOT NULL,
		close DOUBLE PRECISION NOT NULL,
		tick_count INTEGER NOT NULL,
		UNIQUE (coin_id, interval_type, bucket_start)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rollups_bucket_start
		ON price_history_rollups (bucket_start)`,
}

// PostgresMarketStore implements repository.MarketStore on Postgres.
type PostgresMarketStore struct {
	client *postgres.Client
	db     *sql.DB
}

func NewPostgresMarketStore(client *postgres.Client) *PostgresMarketStore {
	return &PostgresMarketStore{client: client, db: client.DB()}
}

func (s *PostgresMarketStore) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, schemaStatements)
}

// EnsureCoins inserts missing coin rows. Rows that already exist keep
// their current price and anchor.
func (s *PostgresMarketStore) EnsureCoins(ctx context.Context, coins []models.Coin) error {
	const q = `INSERT INTO coins (coin_id, current_price, price_change_24h, initial_price)
		VALUES ($1, $2, NULL, $3)
		ON CONFLICT (coin_id) DO NOTHING`
	for _, c := range coins {
		if _, err := s.db.ExecContext(ctx, q, c.ID, c.CurrentPrice, c.InitialPrice); err != nil {
			return fmt.Errorf("ensure coin %s: %w", c.ID, err)
		}
	}
	return nil
}

func (s *PostgresMarketStore) ListCoins(ctx context.Context) ([]models.Coin, error) {
	const q = `SELECT coin_id, current_price, price_change_24h, initial_price
		FROM coins ORDER BY coin_id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list coins: %w", err)
	}
	defer rows.Close()

	var coins []models.Coin
	for rows.Next() {
		var c models.Coin
		if err := rows.Scan(&c.ID, &c.CurrentPrice, &c.PriceChange24, &c.InitialPrice); err != nil {
			return nil, fmt.Errorf("scan coin: %w", err)
		}
		coins = append(coins, c)
	}
	return coins, rows.Err()
}

func (s *PostgresMarketStore) CoinExists(ctx context.Context, coinID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM coins WHERE coin_id = $1)`
	var exists bool
	if err := s.db.QueryRowContext(ctx, q, coinID).Scan(&exists); err != nil {
		return false, fmt.Errorf("coin exists: %w", err)
	}
	return exists, nil
}

// OldestPricesSince returns the earliest tick price per coin at or
// after the given instant.
func (s *PostgresMarketStore) OldestPricesSince(ctx context.Context, since time.Time) (map[string]float64, error) {
	const q = `SELECT DISTINCT ON (coin_id) coin_id, price
		FROM price_history
		WHERE created_at >= $1
		ORDER BY coin_id, created_at ASC`
	rows, err := s.db.QueryContext(ctx, q, since)
	if err != nil {
		return nil, fmt.Errorf("oldest prices: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var id string
		var price float64
		if err := rows.Scan(&id, &price); err != nil {
			return nil, fmt.Errorf("scan oldest price: %w", err)
		}
		out[id] = price
	}
	return out, rows.Err()
}

func (s *PostgresMarketStore) BeginTick(ctx context.Context) (repository.TickTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &pgTickTx{tx: tx}, nil
}

func (s *PostgresMarketStore) TicksBetween(ctx context.Context, from, to time.Time) ([]models.PriceTick, error) {
	const q = `SELECT coin_id, price, created_at FROM price_history
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY coin_id, created_at`
	rows, err := s.db.QueryContext(ctx, q, from, to)
	if err != nil {
		return nil, fmt.Errorf("ticks between: %w", err)
	}
	defer rows.Close()
	return scanTicks(rows)
}

func (s *PostgresMarketStore) TicksSince(ctx context.Context, coinID string, since time.Time) ([]models.PriceTick, error) {
	const q = `SELECT coin_id, price, created_at FROM price_history
		WHERE coin_id = $1 AND created_at >= $2
		ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, q, coinID, since)
	if err != nil {
		return nil, fmt.Errorf("ticks since: %w", err)
	}
	defer rows.Close()
	return scanTicks(rows)
}

func scanTicks(rows *sql.Rows) ([]models.PriceTick, error) {
	var ticks []models.PriceTick
	for rows.Next() {
		var t models.PriceTick
		if err := rows.Scan(&t.CoinID, &t.Price, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		ticks = append(ticks, t)
	}
	return ticks, rows.Err()
}

// InsertBuckets writes rollup rows in one multi-row statement; existing
// (coin, interval, bucket start) rows are left untouched.
func (s *PostgresMarketStore) InsertBuckets(ctx context.Context, buckets []models.OHLCBucket) (int64, error) {
	if len(buckets) == 0 {
		return 0, nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO price_history_rollups
		(coin_id, interval_type, bucket_start, open, high, low, close, tick_count) VALUES `)
	args := make([]interface{}, 0, len(buckets)*8)
	for i, b := range buckets {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 8
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8)
		args = append(args, b.CoinID, b.IntervalType, b.BucketStart, b.Open, b.High, b.Low, b.Close, b.TickCount)
	}
	sb.WriteString(` ON CONFLICT (coin_id, interval_type, bucket_start) DO NOTHING`)

	res, err := s.db.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("insert buckets: %w", err)
	}
	return res.RowsAffected()
}

func (s *PostgresMarketStore) BucketsSince(ctx context.Context, coinID string, interval repository.Interval, since time.Time) ([]models.OHLCBucket, error) {
	const q = `SELECT coin_id, interval_type, bucket_start, open, high, low, close, tick_count
		FROM price_history_rollups
		WHERE coin_id = $1 AND interval_type = $2 AND bucket_start >= $3
		ORDER BY bucket_start`
	rows, err := s.db.QueryContext(ctx, q, coinID, interval.String(), since)
	if err != nil {
		return nil, fmt.Errorf("buckets since: %w", err)
	}
	defer rows.Close()

	var buckets []models.OHLCBucket
	for rows.Next() {
		var b models.OHLCBucket
		if err := rows.Scan(&b.CoinID, &b.IntervalType, &b.BucketStart,
			&b.Open, &b.High, &b.Low, &b.Close, &b.TickCount); err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

func (s *PostgresMarketStore) DeleteBucketsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM price_history_rollups WHERE bucket_start < $1`
	res, err := s.db.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete buckets: %w", err)
	}
	return res.RowsAffected()
}

// CoinStats aggregates latest/high/low per coin. A zero since spans the
// full history.
func (s *PostgresMarketStore) CoinStats(ctx context.Context, since time.Time) ([]models.CoinStats, error) {
	const q = `SELECT h.coin_id,
		(SELECT price FROM price_history
			WHERE coin_id = h.coin_id AND created_at >= $1
			ORDER BY created_at DESC LIMIT 1) AS latest,
		MAX(h.price), MIN(h.price)
		FROM price_history h
		WHERE h.created_at >= $1
		GROUP BY h.coin_id
		ORDER BY h.coin_id`
	rows, err := s.db.QueryContext(ctx, q, since)
	if err != nil {
		return nil, fmt.Errorf("coin stats: %w", err)
	}
	defer rows.Close()

	var stats []models.CoinStats
	for rows.Next() {
		var cs models.CoinStats
		if err := rows.Scan(&cs.CoinID, &cs.Latest, &cs.High, &cs.Low); err != nil {
			return nil, fmt.Errorf("scan coin stats: %w", err)
		}
		stats = append(stats, cs)
	}
	return stats, rows.Err()
}

// MarketSeries sums all coins' prices per tick timestamp, ascending.
func (s *PostgresMarketStore) MarketSeries(ctx context.Context, since time.Time) ([]models.MarketPoint, error) {
	const q = `SELECT created_at, SUM(price)
		FROM price_history
		WHERE created_at >= $1
		GROUP BY created_at
		ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, q, since)
	if err != nil {
		return nil, fmt.Errorf("market series: %w", err)
	}
	defer rows.Close()

	var points []models.MarketPoint
	for rows.Next() {
		var p models.MarketPoint
		if err := rows.Scan(&p.At, &p.Total); err != nil {
			return nil, fmt.Errorf("scan market point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *PostgresMarketStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

func (s *PostgresMarketStore) Close() error {
	return s.client.Close()
}

// pgTickTx wraps one simulation tick's writes in a transaction.
type pgTickTx struct {
	tx *sql.Tx
}

func (t *pgTickTx) UpdateCoinPrice(ctx context.Context, coinID string, price float64, change24h *float64) error {
	const q = `UPDATE coins SET current_price = $2, price_change_24h = $3 WHERE coin_id = $1`
	if _, err := t.tx.ExecContext(ctx, q, coinID, price, change24h); err != nil {
		return fmt.Errorf("update coin price: %w", err)
	}
	return nil
}

func (t *pgTickTx) InsertTick(ctx context.Context, coinID string, price float64, at time.Time) error {
	const q = `INSERT INTO price_history (coin_id, price, created_at) VALUES ($1, $2, $3)`
	if _, err := t.tx.ExecContext(ctx, q, coinID, price, at); err != nil {
		return fmt.Errorf("insert tick: %w", err)
	}
	return nil
}

func (t *pgTickTx) Commit() error   { return t.tx.Commit() }
func (t *pgTickTx) Rollback() error { return t.tx.Rollback() }
