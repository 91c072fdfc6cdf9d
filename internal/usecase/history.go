package usecase

import (
	"context"
	"fmt"
	"time"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/domain/repository"
	"CoinPulse/pkg/cache"
	apphttp "CoinPulse/pkg/http"
	"CoinPulse/pkg/logger"
)

const (
	minHistoryMinutes = 1
	maxHistoryMinutes = 1440

	FormatOHLC = "ohlc"
	FormatLine = "line"
)

// HistoryService is the price-history read path. It validates the
// request, then reads either raw ticks or rollup buckets and shapes
// them into chart-ready output.
type HistoryService struct {
	store    repository.MarketStore
	cache    cache.Service
	cacheTTL time.Duration
	metrics  repository.Metrics
	log      *logger.Logger
	now      func() time.Time
}

// HistoryOption configures a HistoryService.
type HistoryOption func(*HistoryService)

// WithHistoryCache enables read caching with the given TTL.
func WithHistoryCache(c cache.Service, ttl time.Duration) HistoryOption {
	return func(s *HistoryService) {
		if c != nil && ttl > 0 {
			s.cache = c
			s.cacheTTL = ttl
		}
	}
}

// WithHistoryClock sets the time source.
func WithHistoryClock(now func() time.Time) HistoryOption {
	return func(s *HistoryService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewHistoryService(store repository.MarketStore, metrics repository.Metrics, log *logger.Logger, opts ...HistoryOption) *HistoryService {
	s := &HistoryService{
		store:   store,
		metrics: metrics,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetPriceHistory serves one history query. Validation failures return
// an *apphttp.AppError before any storage read; an unknown coin maps to
// not-found.
func (s *HistoryService) GetPriceHistory(ctx context.Context, req models.PriceHistoryRequest) (*models.PriceHistoryResult, error) {
	if !repository.IsValidInterval(req.Interval) {
		return nil, apphttp.BadRequestErrorf("invalid interval %q", req.Interval)
	}
	if req.Minutes < minHistoryMinutes || req.Minutes > maxHistoryMinutes {
		return nil, apphttp.BadRequestErrorf("minutes must be between %d and %d", minHistoryMinutes, maxHistoryMinutes)
	}
	if req.Format != FormatOHLC && req.Format != FormatLine {
		return nil, apphttp.BadRequestErrorf("invalid format %q", req.Format)
	}

	exists, err := s.store.CoinExists(ctx, req.CoinID)
	if err != nil {
		return nil, fmt.Errorf("coin lookup: %w", err)
	}
	if !exists {
		return nil, apphttp.NotFoundErrorf("coin %q not found", req.CoinID)
	}

	key := cache.Key("history", req.CoinID, req.Interval, req.Minutes, req.Format)
	if s.cache != nil {
		var cached models.PriceHistoryResult
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	began := s.now()
	since := began.Add(-time.Duration(req.Minutes) * time.Minute)

	points, err := s.readPoints(ctx, req, since)
	if err != nil {
		return nil, err
	}

	result := &models.PriceHistoryResult{
		CoinID:   req.CoinID,
		Interval: req.Interval,
		Minutes:  req.Minutes,
		Format:   req.Format,
		Count:    len(points),
		Data:     shapePoints(points, req.Format),
	}

	s.metrics.RecordLatency("price_history", s.now().Sub(began).Seconds())
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, result, s.cacheTTL); err != nil {
			s.log.Warn("history cache set failed", logger.Error(err))
		}
	}
	return result, nil
}

// readPoints loads the window as OHLC points. Raw ticks become
// degenerate candles with o=h=l=c and a count of one.
func (s *HistoryService) readPoints(ctx context.Context, req models.PriceHistoryRequest, since time.Time) ([]models.OHLCPoint, error) {
	if req.Interval == repository.IntervalRaw.String() {
		ticks, err := s.store.TicksSince(ctx, req.CoinID, since)
		if err != nil {
			return nil, fmt.Errorf("read ticks: %w", err)
		}
		points := make([]models.OHLCPoint, 0, len(ticks))
		for _, t := range ticks {
			points = append(points, models.OHLCPoint{
				T: t.CreatedAt.UnixMilli(),
				O: t.Price, H: t.Price, L: t.Price, C: t.Price,
				N: 1,
			})
		}
		return points, nil
	}

	buckets, err := s.store.BucketsSince(ctx, req.CoinID, repository.Interval(req.Interval), since)
	if err != nil {
		return nil, fmt.Errorf("read buckets: %w", err)
	}
	points := make([]models.OHLCPoint, 0, len(buckets))
	for _, b := range buckets {
		points = append(points, models.OHLCPoint{
			T: b.BucketStart.UnixMilli(),
			O: b.Open, H: b.High, L: b.Low, C: b.Close,
			N: b.TickCount,
		})
	}
	return points, nil
}

// shapePoints renders the output format: line is [timestamp, close]
// pairs, ohlc is the full candle objects.
func shapePoints(points []models.OHLCPoint, format string) interface{} {
	if format == FormatLine {
		line := make([]models.LinePoint, 0, len(points))
		for _, p := range points {
			line = append(line, models.LinePoint{float64(p.T), p.C})
		}
		return line
	}
	return points
}
