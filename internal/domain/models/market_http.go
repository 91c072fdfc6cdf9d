package models

// Requests for market HTTP endpoints. Defined in domain for consistency and reuse.

// PriceHistoryRequest binds the price-history route. Minutes carries no
// default on purpose: an absent or zero value must fail validation.
type PriceHistoryRequest struct {
	CoinID   string `param:"id" json:"-" validate:"required"`
	Interval string `query:"interval" json:"interval" default:"raw" validate:"oneof=raw 1m 5m 15m 1h"`
	Minutes  int    `query:"minutes" json:"minutes" validate:"gte=1,lte=1440"`
	Format   string `query:"format" json:"format" default:"ohlc" validate:"oneof=ohlc line"`
}

type MarketStatsRequest struct {
	TimeRange string `query:"range" json:"range" default:"24H" validate:"oneof=10M 30M 1H 2H 12H 24H ALL"`
}
