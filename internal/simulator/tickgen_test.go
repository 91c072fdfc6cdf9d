package simulator

import (
	"testing"
	"time"

	"CoinPulse/internal/domain/models"
)

// scriptedRand replays fixed values so tests control every draw.
type scriptedRand struct {
	floats []float64
	ints   []int
	fi, ii int
}

func (r *scriptedRand) Float64() float64 {
	v := r.floats[r.fi%len(r.floats)]
	r.fi++
	return v
}

func (r *scriptedRand) Intn(n int) int {
	v := r.ints[r.ii%len(r.ints)] % n
	r.ii++
	return v
}

func testProfile(initial float64, now time.Time) *VolatilityProfile {
	return &VolatilityProfile{
		CoinID:         "btc",
		InitialPrice:   initial,
		BaseVolatility: 0.5,
		TrendDirection: 1,
		TrendStrength:  0.001,
		TrendDuration:  time.Minute,
		TrendStart:     now,
	}
}

func TestNextPriceBoundedMovement(t *testing.T) {
	now := time.Date(2024, 10, 10, 10, 0, 0, 0, time.UTC)
	gen := NewGenerator(NewSystemRand(1))
	profile := NewVolatilityProfile(models.Coin{ID: "btc", CurrentPrice: 50}, NewSystemRand(2), now)
	cycle := MarketCycle{Type: CycleStrongBoom, BaseEffect: 0.003, StartTime: now, Duration: time.Minute}
	event := &CoinEvent{Type: "MAJOR_ADOPTION", Multiplier: 1.08, StartTime: now, Duration: 30 * time.Second}

	price := 50.0
	for i := 0; i < 500; i++ {
		at := now.Add(time.Duration(i) * 5 * time.Second)
		next := gen.NextPrice(price, profile, cycle, event, at)
		ratio := next/price - 1
		// 0.005 cap plus rounding slack.
		if ratio > 0.006 || ratio < -0.006 {
			t.Fatalf("tick %d moved %v (from %v to %v)", i, ratio, price, next)
		}
		price = next
	}
}

func TestNextPricePriceBounds(t *testing.T) {
	now := time.Date(2024, 10, 10, 10, 0, 0, 0, time.UTC)
	gen := NewGenerator(NewSystemRand(3))
	const initial = 10.0
	profile := NewVolatilityProfile(models.Coin{ID: "eth", CurrentPrice: initial}, NewSystemRand(4), now)
	cycle := MarketCycle{Type: CycleStrongBust, BaseEffect: -0.003, StartTime: now, Duration: time.Minute}

	price := initial
	for i := 0; i < 2000; i++ {
		price = gen.NextPrice(price, profile, cycle, nil, now.Add(time.Duration(i)*5*time.Second))
		if price < 0.2*initial || price > 5*initial {
			t.Fatalf("tick %d escaped bounds: %v", i, price)
		}
	}
}

func TestNextPriceClampsToFloorAndCeiling(t *testing.T) {
	now := time.Date(2024, 10, 10, 10, 0, 0, 0, time.UTC)
	// Zero random draw, so only deterministic terms apply.
	gen := NewGenerator(&scriptedRand{floats: []float64{0.5}, ints: []int{0}})

	p := testProfile(100, now)
	p.TrendStrength = 0
	got := gen.NextPrice(19, p, MarketCycle{Type: CycleStable}, nil, now)
	if got != 20 {
		t.Fatalf("floor clamp: got %v want 20", got)
	}

	p = testProfile(100, now)
	p.TrendStrength = 0
	got = gen.NextPrice(600, p, MarketCycle{Type: CycleStable}, nil, now)
	if got != 500 {
		t.Fatalf("ceiling clamp: got %v want 500", got)
	}
}

func TestNextPriceStableCycleHasNoMarketEffect(t *testing.T) {
	now := time.Date(2024, 10, 10, 10, 0, 0, 0, time.UTC)
	// Float64 returns 0.5, so the random term is zero.
	gen := NewGenerator(&scriptedRand{floats: []float64{0.5}, ints: []int{0}})

	p := testProfile(100, now)
	p.TrendStrength = 0
	// At the anchor price, stable cycle, no event, no trend: price holds.
	got := gen.NextPrice(100, p, MarketCycle{Type: CycleStable, BaseEffect: 0}, nil, now)
	if got != 100 {
		t.Fatalf("expected price to hold at 100, got %v", got)
	}
}

func TestNextPriceTrendFlipsOnExpiry(t *testing.T) {
	now := time.Date(2024, 10, 10, 10, 0, 0, 0, time.UTC)
	rnd := &scriptedRand{floats: []float64{0.5}, ints: []int{0}}
	gen := NewGenerator(rnd)

	p := testProfile(100, now)
	p.TrendDirection = 1
	p.TrendDuration = 10 * time.Second

	at := now.Add(11 * time.Second)
	gen.NextPrice(100, p, MarketCycle{Type: CycleStable}, nil, at)

	if p.TrendDirection != -1 {
		t.Fatalf("trend direction not flipped: %v", p.TrendDirection)
	}
	if !p.TrendStart.Equal(at) {
		t.Fatalf("trend start not reset: %v", p.TrendStart)
	}
	if p.TrendStrength != 0.5*maxTrendStrength {
		t.Fatalf("trend strength not redrawn: %v", p.TrendStrength)
	}
	if p.TrendDuration != minTrendDuration+time.Duration(0.5*float64(maxTrendDuration-minTrendDuration)) {
		t.Fatalf("trend duration not redrawn: %v", p.TrendDuration)
	}
}

func TestRoundPriceTiers(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0.12345, 0.1235},
		{0.98765, 0.9877},
		{12.345, 12.35},
		{99.999, 100},
		{123.45, 123.5},
		{1234.56, 1234.6},
	}
	for _, c := range cases {
		if got := roundPrice(c.in); got != c.want {
			t.Fatalf("roundPrice(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
