package rollup

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/domain/repository"
	"CoinPulse/pkg/logger"
	"CoinPulse/pkg/util"
)

const (
	defaultRetention       = 24 * time.Hour
	defaultCleanupInterval = 6 * time.Hour
	// Lag after a bucket boundary before aggregating it, so an in-flight
	// tick near the boundary has committed.
	boundaryLag = 2 * time.Second
)

// Engine aggregates raw ticks into OHLC buckets at fixed resolutions,
// one closed window at a time, and prunes buckets past retention. It
// runs independently of the simulator: it only reads ticks and only
// writes buckets.
type Engine struct {
	store   repository.MarketStore
	metrics repository.Metrics
	log     *logger.Logger

	now          func() time.Time
	retention    time.Duration
	cleanupEvery time.Duration
	opTimeout    time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// Status reports which of the engine's timers are active.
type Status struct {
	Running bool            `json:"running"`
	Timers  map[string]bool `json:"timers"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithRetention sets how long buckets are kept.
func WithRetention(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.retention = d
		}
	}
}

// WithCleanupInterval sets the cadence of the retention job.
func WithCleanupInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.cleanupEvery = d
		}
	}
}

// WithEngineClock sets the time source.
func WithEngineClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEngine(store repository.MarketStore, metrics repository.Metrics, log *logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		metrics:      metrics,
		log:          log,
		now:          time.Now,
		retention:    defaultRetention,
		cleanupEvery: defaultCleanupInterval,
		opTimeout:    30 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start arms one timer per resolution plus the cleanup timer. Idempotent.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	e.running = true
	e.stopCh = make(chan struct{})

	for _, iv := range repository.RollupIntervals() {
		e.wg.Add(1)
		go e.runInterval(iv, e.stopCh)
	}
	e.wg.Add(1)
	go e.runCleanup(e.stopCh)

	e.log.Info("rollup engine started",
		logger.Duration("retention", e.retention),
		logger.Duration("cleanup_every", e.cleanupEvery))
}

// Stop cancels all timers and waits for in-flight jobs. Idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopCh)
	e.mu.Unlock()

	e.wg.Wait()
	e.log.Info("rollup engine stopped")
}

// GetStatus reports the engine's timers.
func (e *Engine) GetStatus() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	timers := make(map[string]bool, 5)
	for _, iv := range repository.RollupIntervals() {
		timers[iv.String()] = e.running
	}
	timers["cleanup"] = e.running
	return Status{Running: e.running, Timers: timers}
}

// runInterval fires once per bucket width, shortly after each boundary,
// so the job always sees a fully closed window.
func (e *Engine) runInterval(iv repository.Interval, stop <-chan struct{}) {
	defer e.wg.Done()
	w := iv.Width()

	first := time.NewTimer(time.Until(e.now().Truncate(w).Add(w).Add(boundaryLag)))
	defer first.Stop()
	select {
	case <-stop:
		return
	case <-first.C:
	}
	e.computeLogged(iv)

	ticker := time.NewTicker(w)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.computeLogged(iv)
		}
	}
}

// computeLogged runs one rollup pass and absorbs its error: one
// resolution failing must not affect the others or future runs.
func (e *Engine) computeLogged(iv repository.Interval) {
	ctx, cancel := context.WithTimeout(context.Background(), e.opTimeout)
	defer cancel()
	n, err := e.ComputeRollups(ctx, iv)
	if err != nil {
		e.metrics.RecordError("rollup")
		e.log.Error("rollup failed", logger.String("interval", iv.String()), logger.Error(err))
		return
	}
	if n > 0 {
		e.log.Debug("rollup computed",
			logger.String("interval", iv.String()),
			logger.Int64("buckets", n))
	}
}

func (e *Engine) runCleanup(stop <-chan struct{}) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cleanupEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), e.opTimeout)
			if _, err := e.CleanupOldRollups(ctx); err != nil {
				e.metrics.RecordError("rollup_cleanup")
				e.log.Error("rollup cleanup failed", logger.Error(err))
			}
			cancel()
		}
	}
}

// ComputeRollups aggregates the most recently closed window of the
// given resolution into OHLC buckets. Re-running for the same window is
// a no-op: existing buckets are never overwritten. Returns the number
// of bucket rows actually inserted.
func (e *Engine) ComputeRollups(ctx context.Context, iv repository.Interval) (int64, error) {
	w := iv.Width()
	if w <= 0 {
		return 0, fmt.Errorf("%q is not a rollup resolution", iv)
	}

	windowEnd := util.TruncateToBucket(e.now(), w)
	windowStart := windowEnd.Add(-w)

	ticks, err := e.store.TicksBetween(ctx, windowStart, windowEnd)
	if err != nil {
		return 0, fmt.Errorf("read ticks: %w", err)
	}
	if len(ticks) == 0 {
		return 0, nil
	}

	buckets := buildBuckets(ticks, iv)
	n, err := e.store.InsertBuckets(ctx, buckets)
	if err != nil {
		return 0, fmt.Errorf("insert buckets: %w", err)
	}
	e.metrics.RecordRollup(iv.String(), int(n))
	return n, nil
}

// CleanupOldRollups deletes buckets older than the retention horizon,
// across all resolutions. Returns the number of rows removed.
func (e *Engine) CleanupOldRollups(ctx context.Context) (int64, error) {
	cutoff := e.now().Add(-e.retention)
	n, err := e.store.DeleteBucketsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete buckets: %w", err)
	}
	if n > 0 {
		e.log.Info("rollup retention applied", logger.Int64("removed", n))
	}
	return n, nil
}

// buildBuckets groups ticks by (coin, bucket start) and folds each
// group into one OHLC row. Output is ordered by coin then bucket start.
func buildBuckets(ticks []models.PriceTick, iv repository.Interval) []models.OHLCBucket {
	w := iv.Width()

	type key struct {
		coin  string
		start time.Time
	}
	type acc struct {
		bucket    models.OHLCBucket
		firstSeen time.Time
		lastSeen  time.Time
	}

	groups := make(map[key]*acc)
	for _, t := range ticks {
		k := key{coin: t.CoinID, start: util.TruncateToBucket(t.CreatedAt, w)}
		a, ok := groups[k]
		if !ok {
			groups[k] = &acc{
				bucket: models.OHLCBucket{
					CoinID:       t.CoinID,
					IntervalType: iv.String(),
					BucketStart:  k.start,
					Open:         t.Price,
					High:         t.Price,
					Low:          t.Price,
					Close:        t.Price,
					TickCount:    1,
				},
				firstSeen: t.CreatedAt,
				lastSeen:  t.CreatedAt,
			}
			continue
		}
		a.bucket.TickCount++
		if t.Price > a.bucket.High {
			a.bucket.High = t.Price
		}
		if t.Price < a.bucket.Low {
			a.bucket.Low = t.Price
		}
		if t.CreatedAt.Before(a.firstSeen) {
			a.firstSeen = t.CreatedAt
			a.bucket.Open = t.Price
		}
		if !t.CreatedAt.Before(a.lastSeen) {
			a.lastSeen = t.CreatedAt
			a.bucket.Close = t.Price
		}
	}

	out := make([]models.OHLCBucket, 0, len(groups))
	for _, a := range groups {
		out = append(out, a.bucket)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CoinID != out[j].CoinID {
			return out[i].CoinID < out[j].CoinID
		}
		return out[i].BucketStart.Before(out[j].BucketStart)
	})
	return out
}
