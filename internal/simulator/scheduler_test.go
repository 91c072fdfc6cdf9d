package simulator

import (
	"testing"
	"time"

	"CoinPulse/internal/domain/models"
	"CoinPulse/pkg/logger"
)

func testCoins() []models.Coin {
	return []models.Coin{
		{ID: "btc", CurrentPrice: 50000},
		{ID: "eth", CurrentPrice: 3000},
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(logger.Nop())
	defer s.Stop()

	s.Start(testCoins())
	if !s.Running() {
		t.Fatalf("expected running after start")
	}
	cycle, events := s.Snapshot()
	if cycle == nil {
		t.Fatalf("expected an active cycle")
	}
	if len(events) != 2 {
		t.Fatalf("expected one event per coin, got %d", len(events))
	}
	if events[0].CoinID != "btc" || events[1].CoinID != "eth" {
		t.Fatalf("events not sorted by coin: %+v", events)
	}

	// Second start is a no-op.
	s.Start(testCoins())

	s.Stop()
	if s.Running() {
		t.Fatalf("expected stopped")
	}
	cycle, events = s.Snapshot()
	if cycle != nil || events != nil {
		t.Fatalf("expected cleared state after stop")
	}

	// Second stop is a no-op.
	s.Stop()
}

func TestSchedulerInputs(t *testing.T) {
	s := NewScheduler(logger.Nop())
	defer s.Stop()
	s.Start(testCoins())

	profile, cycle, event, ok := s.Inputs("btc")
	if !ok {
		t.Fatalf("expected inputs for known coin")
	}
	if profile.InitialPrice != 50000 {
		t.Fatalf("initial price not anchored: %v", profile.InitialPrice)
	}
	if profile.BaseVolatility < minBaseVolatility || profile.BaseVolatility > maxBaseVolatility {
		t.Fatalf("base volatility out of range: %v", profile.BaseVolatility)
	}
	if cycle.Type == "" {
		t.Fatalf("expected a cycle")
	}
	if event == nil {
		t.Fatalf("expected an initial event")
	}

	if _, _, _, ok := s.Inputs("doge"); ok {
		t.Fatalf("expected no inputs for unknown coin")
	}
}

func TestSchedulerCycleRotation(t *testing.T) {
	// Shrink drawn durations to a few milliseconds so rotation happens
	// within the test.
	s := NewScheduler(logger.Nop(), WithDurationScale(0.0001))
	defer s.Stop()
	s.Start(testCoins())

	first, _ := s.Snapshot()
	if first == nil {
		t.Fatalf("expected initial cycle")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		cur, _ := s.Snapshot()
		if cur != nil && cur.StartTime.After(first.StartTime) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("cycle never rotated")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSchedulerEventRotation(t *testing.T) {
	s := NewScheduler(logger.Nop(), WithDurationScale(0.0001))
	defer s.Stop()
	s.Start(testCoins()[:1])

	_, _, first, ok := s.Inputs("btc")
	if !ok || first == nil {
		t.Fatalf("expected initial event")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, _, cur, ok := s.Inputs("btc")
		if !ok {
			t.Fatalf("scheduler lost coin state")
		}
		if cur != nil && cur.StartTime.After(first.StartTime) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("event never rotated")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSchedulerStopCancelsPendingWork(t *testing.T) {
	s := NewScheduler(logger.Nop(), WithDurationScale(0.0001))
	s.Start(testCoins())
	s.Stop()

	// Give any stray timer callbacks a chance to fire.
	time.Sleep(50 * time.Millisecond)

	if s.Running() {
		t.Fatalf("expected stopped")
	}
	cycle, events := s.Snapshot()
	if cycle != nil || events != nil {
		t.Fatalf("state mutated after stop: cycle=%+v events=%+v", cycle, events)
	}
}
