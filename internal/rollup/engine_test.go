package rollup

import (
	"context"
	"sync"
	"testing"
	"time"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/domain/repository"
	"CoinPulse/pkg/logger"
)

// tickStore is an in-memory MarketStore covering what the engine touches.
type tickStore struct {
	mu      sync.Mutex
	ticks   []models.PriceTick
	buckets map[string]models.OHLCBucket
}

func newTickStore() *tickStore {
	return &tickStore{buckets: map[string]models.OHLCBucket{}}
}

func bucketKey(b models.OHLCBucket) string {
	return b.CoinID + "|" + b.IntervalType + "|" + b.BucketStart.UTC().Format(time.RFC3339)
}

func (s *tickStore) Init(ctx context.Context) error                             { return nil }
func (s *tickStore) EnsureCoins(ctx context.Context, coins []models.Coin) error { return nil }
func (s *tickStore) ListCoins(ctx context.Context) ([]models.Coin, error)       { return nil, nil }
func (s *tickStore) CoinExists(ctx context.Context, coinID string) (bool, error) {
	return false, nil
}
func (s *tickStore) OldestPricesSince(ctx context.Context, since time.Time) (map[string]float64, error) {
	return nil, nil
}
func (s *tickStore) BeginTick(ctx context.Context) (repository.TickTx, error) { return nil, nil }

func (s *tickStore) TicksBetween(ctx context.Context, from, to time.Time) ([]models.PriceTick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PriceTick
	for _, t := range s.ticks {
		if !t.CreatedAt.Before(from) && t.CreatedAt.Before(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *tickStore) TicksSince(ctx context.Context, coinID string, since time.Time) ([]models.PriceTick, error) {
	return nil, nil
}

func (s *tickStore) InsertBuckets(ctx context.Context, buckets []models.OHLCBucket) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var inserted int64
	for _, b := range buckets {
		k := bucketKey(b)
		if _, exists := s.buckets[k]; exists {
			continue
		}
		s.buckets[k] = b
		inserted++
	}
	return inserted, nil
}

func (s *tickStore) BucketsSince(ctx context.Context, coinID string, interval repository.Interval, since time.Time) ([]models.OHLCBucket, error) {
	return nil, nil
}

func (s *tickStore) DeleteBucketsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for k, b := range s.buckets {
		if b.BucketStart.Before(cutoff) {
			delete(s.buckets, k)
			removed++
		}
	}
	return removed, nil
}

func (s *tickStore) CoinStats(ctx context.Context, since time.Time) ([]models.CoinStats, error) {
	return nil, nil
}
func (s *tickStore) MarketSeries(ctx context.Context, since time.Time) ([]models.MarketPoint, error) {
	return nil, nil
}
func (s *tickStore) Health(ctx context.Context) error { return nil }
func (s *tickStore) Close() error                     { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordTick(coin string, price float64)     {}
func (nopMetrics) RecordError(kind string)                   {}
func (nopMetrics) RecordRollup(interval string, buckets int) {}
func (nopMetrics) RecordLatency(op string, seconds float64)  {}

func newTestEngine(store *tickStore, now time.Time) *Engine {
	return NewEngine(store, nopMetrics{}, logger.Nop(),
		WithEngineClock(func() time.Time { return now }))
}

func TestComputeRollupsOHLC(t *testing.T) {
	// "now" sits inside the 10:06 bucket, so the closed window is 10:05-10:06.
	now := time.Date(2024, 10, 10, 10, 6, 2, 0, time.UTC)
	windowStart := time.Date(2024, 10, 10, 10, 5, 0, 0, time.UTC)

	store := newTickStore()
	for i, price := range []float64{100, 102, 99, 101} {
		store.ticks = append(store.ticks, models.PriceTick{
			CoinID:    "btc",
			Price:     price,
			CreatedAt: windowStart.Add(time.Duration(i) * 10 * time.Second),
		})
	}
	// A tick in the still-open bucket must be ignored.
	store.ticks = append(store.ticks, models.PriceTick{
		CoinID:    "btc",
		Price:     999,
		CreatedAt: now.Add(-time.Second),
	})

	e := newTestEngine(store, now)
	n, err := e.ComputeRollups(context.Background(), repository.Interval1m)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if n != 1 {
		t.Fatalf("inserted = %d, want 1", n)
	}

	b, ok := store.buckets[bucketKey(models.OHLCBucket{
		CoinID: "btc", IntervalType: "1m", BucketStart: windowStart,
	})]
	if !ok {
		t.Fatalf("bucket not stored: %+v", store.buckets)
	}
	if b.Open != 100 || b.High != 102 || b.Low != 99 || b.Close != 101 || b.TickCount != 4 {
		t.Fatalf("wrong OHLC: %+v", b)
	}
}

func TestComputeRollupsIdempotent(t *testing.T) {
	now := time.Date(2024, 10, 10, 10, 6, 2, 0, time.UTC)
	windowStart := now.Truncate(time.Minute).Add(-time.Minute)

	store := newTickStore()
	store.ticks = append(store.ticks,
		models.PriceTick{CoinID: "btc", Price: 100, CreatedAt: windowStart},
		models.PriceTick{CoinID: "eth", Price: 10, CreatedAt: windowStart.Add(time.Second)},
	)

	e := newTestEngine(store, now)
	first, err := e.ComputeRollups(context.Background(), repository.Interval1m)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first != 2 {
		t.Fatalf("first run inserted %d, want 2", first)
	}

	second, err := e.ComputeRollups(context.Background(), repository.Interval1m)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second != 0 {
		t.Fatalf("second run inserted %d, want 0", second)
	}
	if len(store.buckets) != 2 {
		t.Fatalf("bucket count = %d, want 2", len(store.buckets))
	}
}

func TestComputeRollupsRejectsRaw(t *testing.T) {
	e := newTestEngine(newTickStore(), time.Now())
	if _, err := e.ComputeRollups(context.Background(), repository.IntervalRaw); err == nil {
		t.Fatalf("expected error for raw interval")
	}
}

func TestComputeRollupsEmptyWindow(t *testing.T) {
	e := newTestEngine(newTickStore(), time.Now())
	n, err := e.ComputeRollups(context.Background(), repository.Interval5m)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if n != 0 {
		t.Fatalf("inserted %d from empty window", n)
	}
}

func TestCleanupOldRollups(t *testing.T) {
	now := time.Date(2024, 10, 10, 10, 0, 0, 0, time.UTC)
	store := newTickStore()

	old := models.OHLCBucket{CoinID: "btc", IntervalType: "1h", BucketStart: now.Add(-25 * time.Hour)}
	fresh := models.OHLCBucket{CoinID: "btc", IntervalType: "1h", BucketStart: now.Add(-2 * time.Hour)}
	store.buckets[bucketKey(old)] = old
	store.buckets[bucketKey(fresh)] = fresh

	e := newTestEngine(store, now)
	removed, err := e.CleanupOldRollups(context.Background())
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed %d, want 1", removed)
	}
	if _, ok := store.buckets[bucketKey(fresh)]; !ok {
		t.Fatalf("fresh bucket was removed")
	}
	if _, ok := store.buckets[bucketKey(old)]; ok {
		t.Fatalf("old bucket survived")
	}
}

func TestEngineStartStopStatus(t *testing.T) {
	e := NewEngine(newTickStore(), nopMetrics{}, logger.Nop())

	st := e.GetStatus()
	if st.Running {
		t.Fatalf("expected stopped before start")
	}

	e.Start()
	e.Start() // no-op
	st = e.GetStatus()
	if !st.Running {
		t.Fatalf("expected running")
	}
	for _, name := range []string{"1m", "5m", "15m", "1h", "cleanup"} {
		if !st.Timers[name] {
			t.Fatalf("timer %s not active: %+v", name, st.Timers)
		}
	}

	e.Stop()
	e.Stop() // no-op
	if e.GetStatus().Running {
		t.Fatalf("expected stopped")
	}
}
