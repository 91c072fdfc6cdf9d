package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestTruncateToBucket(t *testing.T) {
	in := time.Date(2024, 10, 10, 10, 12, 34, 500, time.UTC)

	got := TruncateToBucket(in, time.Minute)
	want := time.Date(2024, 10, 10, 10, 12, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("1m: got %v want %v", got, want)
	}

	got = TruncateToBucket(in, 5*time.Minute)
	want = time.Date(2024, 10, 10, 10, 10, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("5m: got %v want %v", got, want)
	}

	got = TruncateToBucket(in, time.Hour)
	want = time.Date(2024, 10, 10, 10, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("1h: got %v want %v", got, want)
	}
}
