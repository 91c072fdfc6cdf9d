package repository

import "time"

// Interval is a supported price-history resolution. "raw" serves ticks
// directly; the rest are rollup resolutions.
type Interval string

const (
	IntervalRaw Interval = "raw"
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
)

// Width returns the bucket width of a rollup interval, or 0 for raw.
func (i Interval) Width() time.Duration {
	switch i {
	case Interval1m:
		return time.Minute
	case Interval5m:
		return 5 * time.Minute
	case Interval15m:
		return 15 * time.Minute
	case Interval1h:
		return time.Hour
	default:
		return 0
	}
}

func (i Interval) String() string { return string(i) }

// IsValidInterval reports whether s names a supported resolution.
func IsValidInterval(s string) bool {
	switch Interval(s) {
	case IntervalRaw, Interval1m, Interval5m, Interval15m, Interval1h:
		return true
	}
	return false
}

// RollupIntervals lists the resolutions the rollup engine maintains,
// narrowest first.
func RollupIntervals() []Interval {
	return []Interval{Interval1m, Interval5m, Interval15m, Interval1h}
}
