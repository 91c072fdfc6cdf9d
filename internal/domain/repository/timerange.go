package repository

import "time"

// RangeWindow maps a stats time-range name to its lookback duration.
// ALL returns (0, true): callers treat a zero window as unbounded.
func RangeWindow(name string) (time.Duration, bool) {
	switch name {
	case "10M":
		return 10 * time.Minute, true
	case "30M":
		return 30 * time.Minute, true
	case "1H":
		return time.Hour, true
	case "2H":
		return 2 * time.Hour, true
	case "12H":
		return 12 * time.Hour, true
	case "24H":
		return 24 * time.Hour, true
	case "ALL":
		return 0, true
	}
	return 0, false
}
