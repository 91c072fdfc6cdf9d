package simulator

import (
	"time"

	"CoinPulse/internal/domain/models"
)

// CycleType is a market-wide bias phase.
type CycleType string

const (
	CycleStrongBoom CycleType = "STRONG_BOOM"
	CycleMildBoom   CycleType = "MILD_BOOM"
	CycleStable     CycleType = "STABLE"
	CycleMildBust   CycleType = "MILD_BUST"
	CycleStrongBust CycleType = "STRONG_BUST"
)

type cycleSpec struct {
	Type       CycleType
	BaseEffect float64
}

var cycleCatalogue = []cycleSpec{
	{CycleStrongBoom, 0.003},
	{CycleMildBoom, 0.0015},
	{CycleStable, 0},
	{CycleMildBust, -0.0015},
	{CycleStrongBust, -0.003},
}

const (
	cycleMinDuration = 30 * time.Second
	cycleMaxDuration = 120 * time.Second
)

// MarketCycle is the single active market-wide phase.
type MarketCycle struct {
	Type       CycleType
	BaseEffect float64
	StartTime  time.Time
	Duration   time.Duration
}

// Remaining returns the time until expiry, clamped to zero.
func (c MarketCycle) Remaining(now time.Time) time.Duration {
	r := c.StartTime.Add(c.Duration).Sub(now)
	if r < 0 {
		return 0
	}
	return r
}

func drawCycle(rnd Rand, now time.Time) MarketCycle {
	spec := cycleCatalogue[rnd.Intn(len(cycleCatalogue))]
	span := cycleMaxDuration - cycleMinDuration
	dur := cycleMinDuration + time.Duration(rnd.Float64()*float64(span))
	return MarketCycle{
		Type:       spec.Type,
		BaseEffect: spec.BaseEffect,
		StartTime:  now,
		Duration:   dur,
	}
}

type eventSpec struct {
	Type       string
	Multiplier float64
	MinDur     time.Duration
	MaxDur     time.Duration
}

// Fixed catalogue of coin events. Multipliers above 1 read as positive
// news, below 1 as negative.
var eventCatalogue = []eventSpec{
	{"MAJOR_PARTNERSHIP", 1.06, 20 * time.Second, 40 * time.Second},
	{"MINOR_PARTNERSHIP", 1.02, 10 * time.Second, 25 * time.Second},
	{"REGULATION_CRACKDOWN", 0.93, 20 * time.Second, 40 * time.Second},
	{"REGULATION_EASING", 1.04, 15 * time.Second, 30 * time.Second},
	{"MAJOR_ADOPTION", 1.08, 25 * time.Second, 45 * time.Second},
	{"MINOR_ADOPTION", 1.03, 10 * time.Second, 25 * time.Second},
	{"SCANDAL", 0.90, 25 * time.Second, 45 * time.Second},
	{"POSITIVE_RUMOR", 1.015, 5 * time.Second, 15 * time.Second},
	{"NEGATIVE_RUMOR", 0.985, 5 * time.Second, 15 * time.Second},
}

// CoinEvent is one coin's active event. At most one per coin.
type CoinEvent struct {
	Type       string
	Multiplier float64
	StartTime  time.Time
	Duration   time.Duration
}

// Effect classifies the event by its multiplier.
func (e CoinEvent) Effect() string {
	if e.Multiplier >= 1 {
		return "POSITIVE"
	}
	return "NEGATIVE"
}

// Remaining returns the time until expiry, clamped to zero.
func (e CoinEvent) Remaining(now time.Time) time.Duration {
	r := e.StartTime.Add(e.Duration).Sub(now)
	if r < 0 {
		return 0
	}
	return r
}

func drawEvent(rnd Rand, now time.Time) CoinEvent {
	spec := eventCatalogue[rnd.Intn(len(eventCatalogue))]
	span := spec.MaxDur - spec.MinDur
	dur := spec.MinDur + time.Duration(rnd.Float64()*float64(span))
	return CoinEvent{
		Type:       spec.Type,
		Multiplier: spec.Multiplier,
		StartTime:  now,
		Duration:   dur,
	}
}

const (
	minBaseVolatility = 0.2
	maxBaseVolatility = 0.8
	maxTrendStrength  = 0.002
	minTrendDuration  = 30 * time.Second
	maxTrendDuration  = 60 * time.Second
)

// VolatilityProfile is a coin's in-memory simulation state. It lives
// only while the simulator runs and is rebuilt on every start.
type VolatilityProfile struct {
	CoinID         string
	InitialPrice   float64
	BaseVolatility float64
	TrendDirection float64 // -1 or +1
	TrendStrength  float64
	TrendDuration  time.Duration
	TrendStart     time.Time
}

// NewVolatilityProfile draws a fresh profile anchored at the coin's
// price at simulator start.
func NewVolatilityProfile(coin models.Coin, rnd Rand, now time.Time) *VolatilityProfile {
	dir := 1.0
	if rnd.Intn(2) == 0 {
		dir = -1.0
	}
	span := maxTrendDuration - minTrendDuration
	return &VolatilityProfile{
		CoinID:         coin.ID,
		InitialPrice:   coin.CurrentPrice,
		BaseVolatility: minBaseVolatility + rnd.Float64()*(maxBaseVolatility-minBaseVolatility),
		TrendDirection: dir,
		TrendStrength:  rnd.Float64() * maxTrendStrength,
		TrendDuration:  minTrendDuration + time.Duration(rnd.Float64()*float64(span)),
		TrendStart:     now,
	}
}
