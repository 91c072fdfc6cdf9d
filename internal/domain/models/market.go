package models

import "time"

// Coin is the persisted coin row the simulator reads and writes.
type Coin struct {
	ID            string   `json:"coinId"`
	CurrentPrice  float64  `json:"currentPrice"`
	PriceChange24 *float64 `json:"priceChange24h"`
	// InitialPrice is the anchor used for mean reversion and price clamping.
	InitialPrice float64 `json:"initialPrice"`
}

// PriceTick is one persisted price observation. Append-only.
type PriceTick struct {
	CoinID    string    `json:"coin_id"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

// OHLCBucket is one rollup row, unique per (coin, interval, bucket start).
type OHLCBucket struct {
	CoinID       string    `json:"coinId"`
	IntervalType string    `json:"intervalType"`
	BucketStart  time.Time `json:"bucketStart"`
	Open         float64   `json:"open"`
	High         float64   `json:"high"`
	Low          float64   `json:"low"`
	Close        float64   `json:"close"`
	TickCount    int       `json:"tickCount"`
}

// MarketStatus is the snapshot returned by the status endpoint.
// When the simulator is stopped, CurrentCycle is null, TimeRemaining is 0
// and Events is empty (never null).
type MarketStatus struct {
	Status        string        `json:"status"` // RUNNING or STOPPED
	CurrentCycle  *CycleStatus  `json:"currentCycle"`
	TimeRemaining int64         `json:"timeRemaining"` // ms until cycle expiry
	Events        []EventStatus `json:"events"`
}

// CycleStatus describes the active market cycle.
type CycleStatus struct {
	Type          string `json:"type"`
	TimeRemaining int64  `json:"timeRemaining"` // ms
}

// EventStatus describes one coin's active event.
type EventStatus struct {
	CoinID        string `json:"coinId"`
	Type          string `json:"type"`
	TimeRemaining int64  `json:"timeRemaining"` // ms
	Effect        string `json:"effect"`        // POSITIVE or NEGATIVE
}

// CoinStats summarizes one coin's price action inside a stats window.
type CoinStats struct {
	CoinID string  `json:"coinId"`
	Latest float64 `json:"latest"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
}

// MarketAggregate summarizes the whole market inside a stats window.
type MarketAggregate struct {
	Current float64 `json:"current"`
	High    float64 `json:"high"`
	Low     float64 `json:"low"`
}

// MarketStats is the stats endpoint payload.
type MarketStats struct {
	TimeRange string          `json:"timeRange"`
	Coins     []CoinStats     `json:"coins"`
	Market    MarketAggregate `json:"market"`
}

// MarketPoint is one market-wide total sampled at a tick timestamp.
type MarketPoint struct {
	At    time.Time `json:"at"`
	Total float64   `json:"total"`
}

// OHLCPoint is one chart candle. Raw ticks degenerate to o=h=l=c, n=1.
type OHLCPoint struct {
	T int64   `json:"t"` // bucket start, unix ms
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	N int     `json:"n"`
}

// LinePoint is a [timestamp_ms, close] pair.
type LinePoint [2]float64

// PriceHistoryResult is the shaped price-history payload.
type PriceHistoryResult struct {
	CoinID   string      `json:"coinId"`
	Interval string      `json:"interval"`
	Minutes  int         `json:"minutes"`
	Format   string      `json:"format"`
	Count    int         `json:"count"`
	Data     interface{} `json:"data"`
}
