package simulator

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/domain/repository"
	"CoinPulse/pkg/logger"
)

const defaultTickInterval = 5 * time.Second

// Simulator orchestrates the market: it owns the scheduler and tick
// generator, runs the periodic price-update loop, and serves status
// and stats reads.
type Simulator struct {
	store   repository.MarketStore
	sched   *Scheduler
	gen     *Generator
	metrics repository.Metrics
	feed    repository.FeedPublisher
	log     *logger.Logger

	now      func() time.Time
	interval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	done    chan struct{}
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithTickInterval sets the period of the price-update loop.
func WithTickInterval(d time.Duration) Option {
	return func(s *Simulator) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRand sets the randomness source for the tick generator.
func WithRand(rnd Rand) Option {
	return func(s *Simulator) {
		if rnd != nil {
			s.gen = NewGenerator(rnd)
		}
	}
}

// WithFeed attaches a publisher that receives every committed tick
// batch. Publish failures are logged and never fail a tick.
func WithFeed(feed repository.FeedPublisher) Option {
	return func(s *Simulator) { s.feed = feed }
}

func New(store repository.MarketStore, sched *Scheduler, metrics repository.Metrics, log *logger.Logger, opts ...Option) *Simulator {
	s := &Simulator{
		store:    store,
		sched:    sched,
		gen:      NewGenerator(NewSystemRand(time.Now().UnixNano())),
		metrics:  metrics,
		log:      log,
		now:      time.Now,
		interval: defaultTickInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start reads the coin list, arms the scheduler and begins the update
// loop. Idempotent. If the initial read fails the simulator stays
// stopped.
func (s *Simulator) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	coins, err := s.store.ListCoins(ctx)
	if err != nil {
		s.metrics.RecordError("simulator_start")
		return fmt.Errorf("list coins: %w", err)
	}
	if len(coins) == 0 {
		return fmt.Errorf("no coins to simulate")
	}

	s.sched.Start(coins)
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	s.running = true
	go s.loop(s.stopCh, s.done)

	s.log.Info("simulator started",
		logger.Int("coins", len(coins)),
		logger.Duration("interval", s.interval))
	return nil
}

// Stop cancels the update loop and all scheduler timers, then discards
// per-coin state. Idempotent. Blocks until the loop goroutine exits.
func (s *Simulator) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.done
	s.mu.Unlock()

	<-done
	s.sched.Stop()
	s.log.Info("simulator stopped")
}

// Running reports whether the update loop is active.
func (s *Simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Simulator) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// Bound each tick so a slow database round-trip cannot pile
			// ticks on top of each other.
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			if err := s.updateAllPrices(ctx); err != nil {
				s.metrics.RecordError("tick")
				s.log.Error("tick failed", logger.Error(err))
			}
			cancel()
		}
	}
}

// updateAllPrices runs one simulation tick: read prices, compute new
// ones, write coin updates plus tick rows in a single transaction.
// A non-finite price skips that coin only; any storage error rolls the
// whole tick back and the loop tries again on the next interval.
func (s *Simulator) updateAllPrices(ctx context.Context) error {
	if !s.sched.CycleActive() {
		return nil
	}
	began := s.now()

	coins, err := s.store.ListCoins(ctx)
	if err != nil {
		return fmt.Errorf("list coins: %w", err)
	}

	baselines, err := s.store.OldestPricesSince(ctx, began.Add(-24*time.Hour))
	if err != nil {
		// 24h change is decorative; price updates proceed without it.
		s.log.Warn("24h baselines unavailable", logger.Error(err))
		baselines = nil
	}

	tx, err := s.store.BeginTick(ctx)
	if err != nil {
		return fmt.Errorf("begin tick: %w", err)
	}

	ticks := make([]models.PriceTick, 0, len(coins))
	for _, coin := range coins {
		profile, cycle, event, ok := s.sched.Inputs(coin.ID)
		if !ok {
			continue
		}
		if !isFinite(coin.CurrentPrice) {
			s.metrics.RecordError("non_finite_price")
			s.log.Warn("skipping coin with non-finite price", logger.String("coin", coin.ID))
			continue
		}
		next := s.gen.NextPrice(coin.CurrentPrice, profile, cycle, event, began)
		if !isFinite(next) {
			s.metrics.RecordError("non_finite_price")
			s.log.Warn("skipping non-finite computed price", logger.String("coin", coin.ID))
			continue
		}

		var change *float64
		if base, ok := baselines[coin.ID]; ok && base > 0 {
			v := (next - base) / base * 100
			change = &v
		}

		if err := tx.UpdateCoinPrice(ctx, coin.ID, next, change); err != nil {
			tx.Rollback()
			return fmt.Errorf("update %s: %w", coin.ID, err)
		}
		if err := tx.InsertTick(ctx, coin.ID, next, began); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert tick %s: %w", coin.ID, err)
		}
		ticks = append(ticks, models.PriceTick{CoinID: coin.ID, Price: next, CreatedAt: began})
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tick: %w", err)
	}

	for _, t := range ticks {
		s.metrics.RecordTick(t.CoinID, t.Price)
	}
	s.metrics.RecordLatency("tick", s.now().Sub(began).Seconds())

	if s.feed != nil && len(ticks) > 0 {
		if err := s.feed.PublishTicks(ctx, ticks); err != nil {
			s.metrics.RecordError("feed_publish")
			s.log.Warn("tick feed publish failed", logger.Error(err))
		}
	}
	return nil
}

// MarketStatus snapshots the cycle and event state. When stopped it
// returns the exact empty shape: STOPPED, null cycle, zero remaining,
// empty events.
func (s *Simulator) MarketStatus() models.MarketStatus {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	cycle, events := s.sched.Snapshot()
	if !running || cycle == nil {
		return models.MarketStatus{
			Status:        "STOPPED",
			CurrentCycle:  nil,
			TimeRemaining: 0,
			Events:        []models.EventStatus{},
		}
	}

	remaining := cycle.Remaining(s.now()).Milliseconds()
	if events == nil {
		events = []models.EventStatus{}
	}
	return models.MarketStatus{
		Status:        "RUNNING",
		CurrentCycle:  &models.CycleStatus{Type: string(cycle.Type), TimeRemaining: remaining},
		TimeRemaining: remaining,
		Events:        events,
	}
}

// MarketStats aggregates per-coin and market-wide price action over the
// named time range. The range is assumed validated by the caller; an
// unknown name still fails cleanly.
func (s *Simulator) MarketStats(ctx context.Context, timeRange string) (*models.MarketStats, error) {
	window, ok := repository.RangeWindow(timeRange)
	if !ok {
		return nil, fmt.Errorf("unknown time range %q", timeRange)
	}
	var since time.Time
	if window > 0 {
		since = s.now().Add(-window)
	}

	coins, err := s.store.CoinStats(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("coin stats: %w", err)
	}
	series, err := s.store.MarketSeries(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("market series: %w", err)
	}

	var agg models.MarketAggregate
	for i, pt := range series {
		if i == 0 || pt.Total > agg.High {
			agg.High = pt.Total
		}
		if i == 0 || pt.Total < agg.Low {
			agg.Low = pt.Total
		}
		agg.Current = pt.Total
	}

	if coins == nil {
		coins = []models.CoinStats{}
	}
	return &models.MarketStats{TimeRange: timeRange, Coins: coins, Market: agg}, nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
