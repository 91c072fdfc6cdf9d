package simulator

import (
	"math"
	"time"
)

const (
	// Per-tick move is hard-capped at half a percent in either direction.
	maxTickEffect = 0.005
	// Price may never leave [0.2x, 5x] of the coin's initial anchor.
	minPriceFactor = 0.2
	maxPriceFactor = 5.0

	randomEffectRange   = 0.002
	eventEffectWeight   = 0.1
	meanReversionWeight = 0.001
)

// Generator computes a coin's next price from its current price and the
// overlapping effect terms. Pure apart from refreshing expired trend
// state on the profile.
type Generator struct {
	rnd Rand
}

func NewGenerator(rnd Rand) *Generator {
	return &Generator{rnd: rnd}
}

// NextPrice applies the five effect terms and returns the rounded,
// clamped next price. The cycle and event may be zero-valued/absent;
// the profile is required and its trend state is refreshed in place
// when its duration has elapsed.
func (g *Generator) NextPrice(current float64, p *VolatilityProfile, cycle MarketCycle, event *CoinEvent, now time.Time) float64 {
	marketEffect := 0.0
	if cycle.Type != CycleStable && cycle.Type != "" {
		marketEffect = cycle.BaseEffect * p.BaseVolatility
	}

	eventEffect := 0.0
	if event != nil {
		eventEffect = (event.Multiplier - 1) * eventEffectWeight * p.BaseVolatility
	}

	randomEffect := (g.rnd.Float64()*2 - 1) * randomEffectRange * p.BaseVolatility

	// Trend flips and re-randomizes exactly on expiry, then the refreshed
	// values are used for this tick.
	if now.Sub(p.TrendStart) >= p.TrendDuration {
		p.TrendDirection = -p.TrendDirection
		p.TrendStrength = g.rnd.Float64() * maxTrendStrength
		span := maxTrendDuration - minTrendDuration
		p.TrendDuration = minTrendDuration + time.Duration(g.rnd.Float64()*float64(span))
		p.TrendStart = now
	}
	trendEffect := p.TrendDirection * p.TrendStrength

	meanReversion := -((current - p.InitialPrice) / p.InitialPrice) * meanReversionWeight

	total := marketEffect + eventEffect + randomEffect + trendEffect + meanReversion
	if total > maxTickEffect {
		total = maxTickEffect
	} else if total < -maxTickEffect {
		total = -maxTickEffect
	}

	next := current * (1 + total)

	floor := p.InitialPrice * minPriceFactor
	ceil := p.InitialPrice * maxPriceFactor
	if next < floor {
		next = floor
	} else if next > ceil {
		next = ceil
	}

	return roundPrice(next)
}

// roundPrice keeps small prices precise and large prices coarse:
// under 1 -> 4 decimals, under 100 -> 2, otherwise 1.
func roundPrice(p float64) float64 {
	switch {
	case p < 1:
		return math.Round(p*10000) / 10000
	case p < 100:
		return math.Round(p*100) / 100
	default:
		return math.Round(p*10) / 10
	}
}
