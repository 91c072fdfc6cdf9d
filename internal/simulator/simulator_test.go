package simulator

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/domain/repository"
	"CoinPulse/pkg/logger"
)

// fakeStore is an in-memory MarketStore for simulator tests.
type fakeStore struct {
	mu      sync.Mutex
	coins   []models.Coin
	ticks   []models.PriceTick
	listErr error
	failTx  bool

	commits   int
	rollbacks int

	statsCoins  []models.CoinStats
	statsSeries []models.MarketPoint
}

func newFakeStore(coins ...models.Coin) *fakeStore {
	return &fakeStore{coins: coins}
}

func (f *fakeStore) Init(ctx context.Context) error { return nil }

func (f *fakeStore) EnsureCoins(ctx context.Context, coins []models.Coin) error { return nil }

func (f *fakeStore) ListCoins(ctx context.Context) ([]models.Coin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.Coin, len(f.coins))
	copy(out, f.coins)
	return out, nil
}

func (f *fakeStore) CoinExists(ctx context.Context, coinID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.coins {
		if c.ID == coinID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) OldestPricesSince(ctx context.Context, since time.Time) (map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]float64)
	for _, t := range f.ticks {
		if t.CreatedAt.Before(since) {
			continue
		}
		if _, ok := out[t.CoinID]; !ok {
			out[t.CoinID] = t.Price
		}
	}
	return out, nil
}

func (f *fakeStore) BeginTick(ctx context.Context) (repository.TickTx, error) {
	return &fakeTx{store: f}, nil
}

func (f *fakeStore) TicksBetween(ctx context.Context, from, to time.Time) ([]models.PriceTick, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PriceTick
	for _, t := range f.ticks {
		if !t.CreatedAt.Before(from) && t.CreatedAt.Before(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) TicksSince(ctx context.Context, coinID string, since time.Time) ([]models.PriceTick, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PriceTick
	for _, t := range f.ticks {
		if t.CoinID == coinID && !t.CreatedAt.Before(since) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertBuckets(ctx context.Context, buckets []models.OHLCBucket) (int64, error) {
	return 0, nil
}

func (f *fakeStore) BucketsSince(ctx context.Context, coinID string, interval repository.Interval, since time.Time) ([]models.OHLCBucket, error) {
	return nil, nil
}

func (f *fakeStore) DeleteBucketsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeStore) CoinStats(ctx context.Context, since time.Time) ([]models.CoinStats, error) {
	return f.statsCoins, nil
}

func (f *fakeStore) MarketSeries(ctx context.Context, since time.Time) ([]models.MarketPoint, error) {
	return f.statsSeries, nil
}

func (f *fakeStore) Health(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                     { return nil }

func (f *fakeStore) tickCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ticks)
}

func (f *fakeStore) coinPrice(id string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.coins {
		if c.ID == id {
			return c.CurrentPrice
		}
	}
	return 0
}

// fakeTx buffers writes and applies them on Commit.
type fakeTx struct {
	store   *fakeStore
	updates []models.Coin
	ticks   []models.PriceTick
}

func (tx *fakeTx) UpdateCoinPrice(ctx context.Context, coinID string, price float64, change24h *float64) error {
	tx.updates = append(tx.updates, models.Coin{ID: coinID, CurrentPrice: price, PriceChange24: change24h})
	return nil
}

func (tx *fakeTx) InsertTick(ctx context.Context, coinID string, price float64, at time.Time) error {
	tx.ticks = append(tx.ticks, models.PriceTick{CoinID: coinID, Price: price, CreatedAt: at})
	return nil
}

func (tx *fakeTx) Commit() error {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	if tx.store.failTx {
		return errors.New("commit refused")
	}
	for _, u := range tx.updates {
		for i := range tx.store.coins {
			if tx.store.coins[i].ID == u.ID {
				tx.store.coins[i].CurrentPrice = u.CurrentPrice
				tx.store.coins[i].PriceChange24 = u.PriceChange24
			}
		}
	}
	tx.store.ticks = append(tx.store.ticks, tx.ticks...)
	tx.store.commits++
	return nil
}

func (tx *fakeTx) Rollback() error {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	tx.store.rollbacks++
	return nil
}

// fakeMetrics counts recorded errors, nothing more.
type fakeMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func newFakeMetrics() *fakeMetrics { return &fakeMetrics{errors: map[string]int{}} }

func (m *fakeMetrics) RecordTick(coin string, price float64)       {}
func (m *fakeMetrics) RecordRollup(interval string, buckets int)   {}
func (m *fakeMetrics) RecordLatency(op string, seconds float64)    {}
func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

type fakeFeed struct {
	mu      sync.Mutex
	batches [][]models.PriceTick
}

func (f *fakeFeed) PublishTicks(ctx context.Context, ticks []models.PriceTick) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]models.PriceTick, len(ticks))
	copy(cp, ticks)
	f.batches = append(f.batches, cp)
	return nil
}

func (f *fakeFeed) Close() error { return nil }

func (f *fakeFeed) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func newTestSimulator(store *fakeStore, opts ...Option) *Simulator {
	sched := NewScheduler(logger.Nop())
	base := []Option{WithTickInterval(10 * time.Millisecond)}
	return New(store, sched, newFakeMetrics(), logger.Nop(), append(base, opts...)...)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSimulatorStartStopIdempotent(t *testing.T) {
	store := newFakeStore(models.Coin{ID: "btc", CurrentPrice: 100})
	sim := newTestSimulator(store)

	if err := sim.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := sim.Start(context.Background()); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if !sim.Running() {
		t.Fatalf("expected running")
	}

	sim.Stop()
	sim.Stop()
	if sim.Running() {
		t.Fatalf("expected stopped")
	}
}

func TestSimulatorStartFailureStaysStopped(t *testing.T) {
	store := newFakeStore(models.Coin{ID: "btc", CurrentPrice: 100})
	store.listErr = errors.New("db down")
	sim := newTestSimulator(store)

	if err := sim.Start(context.Background()); err == nil {
		t.Fatalf("expected start error")
	}
	if sim.Running() {
		t.Fatalf("expected stopped after failed start")
	}
}

func TestSimulatorTickPersistsAllCoins(t *testing.T) {
	store := newFakeStore(
		models.Coin{ID: "btc", CurrentPrice: 100},
		models.Coin{ID: "eth", CurrentPrice: 10},
	)
	feed := &fakeFeed{}
	sim := newTestSimulator(store, WithFeed(feed))

	if err := sim.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sim.Stop()

	waitFor(t, func() bool { return store.tickCount() >= 4 }, "two tick batches")

	store.mu.Lock()
	byCoin := map[string]int{}
	for _, tk := range store.ticks {
		byCoin[tk.CoinID]++
		if tk.Price <= 0 {
			t.Errorf("non-positive tick price: %+v", tk)
		}
	}
	store.mu.Unlock()
	if byCoin["btc"] == 0 || byCoin["eth"] == 0 {
		t.Fatalf("expected ticks for both coins, got %v", byCoin)
	}

	if store.coinPrice("btc") <= 0 {
		t.Fatalf("coin price not updated")
	}
	waitFor(t, func() bool { return feed.batchCount() > 0 }, "feed publish")
}

func TestSimulatorFailedTickKeepsLoopRunning(t *testing.T) {
	store := newFakeStore(models.Coin{ID: "btc", CurrentPrice: 100})
	store.failTx = true
	sim := newTestSimulator(store)

	if err := sim.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sim.Stop()

	// Let a few ticks fail.
	time.Sleep(50 * time.Millisecond)
	if store.tickCount() != 0 {
		t.Fatalf("failed commits should persist nothing")
	}
	if !sim.Running() {
		t.Fatalf("failed ticks must not stop the loop")
	}

	store.mu.Lock()
	store.failTx = false
	store.mu.Unlock()
	waitFor(t, func() bool { return store.tickCount() > 0 }, "recovery tick")
}

func TestSimulatorSkipsNonFinitePrice(t *testing.T) {
	store := newFakeStore(
		models.Coin{ID: "btc", CurrentPrice: math.NaN()},
		models.Coin{ID: "eth", CurrentPrice: 10},
	)
	sim := newTestSimulator(store)

	if err := sim.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sim.Stop()

	waitFor(t, func() bool { return store.tickCount() > 0 }, "tick")

	store.mu.Lock()
	defer store.mu.Unlock()
	for _, tk := range store.ticks {
		if tk.CoinID == "btc" {
			t.Fatalf("non-finite coin must be skipped, got tick %+v", tk)
		}
	}
}

func TestSimulatorStoppedStatusShape(t *testing.T) {
	store := newFakeStore(models.Coin{ID: "btc", CurrentPrice: 100})
	sim := newTestSimulator(store)

	got := sim.MarketStatus()
	if got.Status != "STOPPED" {
		t.Fatalf("status = %q", got.Status)
	}
	if got.CurrentCycle != nil {
		t.Fatalf("expected nil cycle, got %+v", got.CurrentCycle)
	}
	if got.TimeRemaining != 0 {
		t.Fatalf("expected zero remaining, got %d", got.TimeRemaining)
	}
	if got.Events == nil || len(got.Events) != 0 {
		t.Fatalf("expected empty (non-nil) events, got %#v", got.Events)
	}
}

func TestSimulatorStatusCountdown(t *testing.T) {
	store := newFakeStore(models.Coin{ID: "btc", CurrentPrice: 100})
	sim := newTestSimulator(store)

	if err := sim.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sim.Stop()

	first := sim.MarketStatus()
	if first.Status != "RUNNING" || first.CurrentCycle == nil {
		t.Fatalf("unexpected running status: %+v", first)
	}
	if first.TimeRemaining <= 0 {
		t.Fatalf("expected positive remaining, got %d", first.TimeRemaining)
	}

	time.Sleep(60 * time.Millisecond)
	second := sim.MarketStatus()
	if second.TimeRemaining >= first.TimeRemaining {
		t.Fatalf("remaining did not decrease: %d -> %d", first.TimeRemaining, second.TimeRemaining)
	}
}

func TestSimulatorMarketStats(t *testing.T) {
	store := newFakeStore(models.Coin{ID: "btc", CurrentPrice: 100})
	store.statsCoins = []models.CoinStats{{CoinID: "btc", Latest: 101, High: 105, Low: 98}}
	store.statsSeries = []models.MarketPoint{
		{Total: 100}, {Total: 110}, {Total: 95}, {Total: 102},
	}
	sim := newTestSimulator(store)

	stats, err := sim.MarketStats(context.Background(), "1H")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TimeRange != "1H" {
		t.Fatalf("time range = %q", stats.TimeRange)
	}
	if len(stats.Coins) != 1 || stats.Coins[0].High != 105 {
		t.Fatalf("unexpected coin stats: %+v", stats.Coins)
	}
	if stats.Market.Current != 102 || stats.Market.High != 110 || stats.Market.Low != 95 {
		t.Fatalf("unexpected market aggregate: %+v", stats.Market)
	}

	if _, err := sim.MarketStats(context.Background(), "5Y"); err == nil {
		t.Fatalf("expected error for unknown range")
	}
}
