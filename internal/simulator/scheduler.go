package simulator

import (
	"sort"
	"sync"
	"time"

	"CoinPulse/internal/domain/models"
	"CoinPulse/pkg/logger"
)

// Scheduler owns the timer-driven state that modulates tick generation:
// per-coin volatility profiles, the single market cycle, and per-coin
// events. Cycles and events chain themselves through timers until Stop.
type Scheduler struct {
	mu      sync.Mutex
	running bool
	// gen invalidates callbacks armed before the latest Stop. A timer
	// that fires after Stop sees a stale generation and does nothing.
	gen uint64

	rnd   Rand
	now   func() time.Time
	log   *logger.Logger
	scale float64

	profiles map[string]*VolatilityProfile
	cycle    *MarketCycle
	events   map[string]*CoinEvent

	cycleTimer  *time.Timer
	eventTimers map[string]*time.Timer
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerRand sets the randomness source.
func WithSchedulerRand(rnd Rand) SchedulerOption {
	return func(s *Scheduler) {
		if rnd != nil {
			s.rnd = rnd
		}
	}
}

// WithSchedulerClock sets the time source.
func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDurationScale multiplies every drawn cycle/event/trend duration.
// Tests use small scales to force rotations quickly.
func WithDurationScale(scale float64) SchedulerOption {
	return func(s *Scheduler) {
		if scale > 0 {
			s.scale = scale
		}
	}
}

func NewScheduler(log *logger.Logger, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		rnd:   NewSystemRand(time.Now().UnixNano()),
		now:   time.Now,
		log:   log,
		scale: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds fresh profiles for the given coins, draws the initial
// market cycle and one event per coin, and arms their timers. A second
// Start while running is a no-op.
func (s *Scheduler) Start(coins []models.Coin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true

	now := s.now()
	s.profiles = make(map[string]*VolatilityProfile, len(coins))
	s.events = make(map[string]*CoinEvent, len(coins))
	s.eventTimers = make(map[string]*time.Timer, len(coins))

	for _, coin := range coins {
		s.profiles[coin.ID] = NewVolatilityProfile(coin, s.rnd, now)
	}

	s.rotateCycleLocked(now)
	for _, coin := range coins {
		s.rotateEventLocked(coin.ID, now)
	}

	s.log.Info("scheduler started",
		logger.Int("coins", len(coins)),
		logger.String("cycle", string(s.cycle.Type)))
}

// Stop cancels all pending timers and clears cycle/event/profile state.
// Safe to call when not running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.gen++

	if s.cycleTimer != nil {
		s.cycleTimer.Stop()
		s.cycleTimer = nil
	}
	for _, t := range s.eventTimers {
		t.Stop()
	}
	s.eventTimers = nil
	s.cycle = nil
	s.events = nil
	s.profiles = nil

	s.log.Info("scheduler stopped")
}

func (s *Scheduler) scaled(d time.Duration) time.Duration {
	d = time.Duration(float64(d) * s.scale)
	if d <= 0 {
		d = time.Millisecond
	}
	return d
}

// rotateCycleLocked draws a new market cycle and arms its expiry timer.
// Caller holds s.mu.
func (s *Scheduler) rotateCycleLocked(now time.Time) {
	c := drawCycle(s.rnd, now)
	c.Duration = s.scaled(c.Duration)
	s.cycle = &c

	gen := s.gen
	s.cycleTimer = time.AfterFunc(c.Duration, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.running || s.gen != gen {
			return
		}
		s.rotateCycleLocked(s.now())
	})
}

// rotateEventLocked draws a new event for one coin and arms its expiry
// timer. Caller holds s.mu.
func (s *Scheduler) rotateEventLocked(coinID string, now time.Time) {
	e := drawEvent(s.rnd, now)
	e.Duration = s.scaled(e.Duration)
	s.events[coinID] = &e

	gen := s.gen
	if t, ok := s.eventTimers[coinID]; ok {
		t.Stop()
	}
	s.eventTimers[coinID] = time.AfterFunc(e.Duration, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.running || s.gen != gen {
			return
		}
		s.rotateEventLocked(coinID, s.now())
	})
}

// Running reports whether the scheduler has active state.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// CycleActive reports whether a market cycle is currently in effect.
func (s *Scheduler) CycleActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running && s.cycle != nil
}

// Inputs returns one coin's simulation inputs: its live profile, a copy
// of the current cycle, and a copy of its active event (nil if none).
// The bool is false when the scheduler is stopped or the coin unknown.
func (s *Scheduler) Inputs(coinID string) (*VolatilityProfile, MarketCycle, *CoinEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.cycle == nil {
		return nil, MarketCycle{}, nil, false
	}
	p, ok := s.profiles[coinID]
	if !ok {
		return nil, MarketCycle{}, nil, false
	}
	var ev *CoinEvent
	if e, ok := s.events[coinID]; ok {
		cp := *e
		ev = &cp
	}
	return p, *s.cycle, ev, true
}

// Snapshot returns an immutable copy of cycle/event state for status
// reads. The cycle pointer is nil when stopped.
func (s *Scheduler) Snapshot() (*MarketCycle, []models.EventStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.cycle == nil {
		return nil, nil
	}
	now := s.now()
	cycle := *s.cycle

	events := make([]models.EventStatus, 0, len(s.events))
	for coinID, e := range s.events {
		events = append(events, models.EventStatus{
			CoinID:        coinID,
			Type:          e.Type,
			TimeRemaining: e.Remaining(now).Milliseconds(),
			Effect:        e.Effect(),
		})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].CoinID < events[j].CoinID })
	return &cycle, events
}
