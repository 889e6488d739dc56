package ratelimit

import (
	"context"
	"testing"
	"time"
)

func newTestGovernor(dailyLimit int) *Governor {
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return New(Config{DailyLimit: dailyLimit, Now: func() time.Time { return fixed }})
}

// Fires a burst of Medium requests past per-minute capacity; they spill
// into the burst bucket until the combined capacity is exhausted, at
// which point the next non-Critical request is denied and a cooldown
// begins, during which Critical is still admitted and Medium is not.
func TestGovernorCooldownSequenceAfterBurstExhaustion(t *testing.T) {
	g := newTestGovernor(40000)

	admitted := 0
	for i := 0; i < 162; i++ {
		if !g.Check(Medium) {
			t.Fatalf("request %d unexpectedly denied", i+1)
		}
		admitted++
	}
	if admitted != 162 {
		t.Fatalf("expected 162 admissions, got %d", admitted)
	}

	if g.Check(Medium) {
		t.Fatalf("request 163 should be denied")
	}

	sum := g.Summarize()
	if !sum.CooldownActive {
		t.Fatalf("expected cooldown to be active after exhaustion")
	}

	if !g.Check(Critical) {
		t.Fatalf("critical should still be admitted during cooldown")
	}
	if g.Check(Medium) {
		t.Fatalf("medium should remain denied during cooldown")
	}
}

func TestGovernorPerMinuteCapacity(t *testing.T) {
	g := newTestGovernor(40000)
	if g.perMinuteLimit != 27 {
		t.Fatalf("expected per-minute capacity 27, got %d", g.perMinuteLimit)
	}
	if g.burstLimit != 135 {
		t.Fatalf("expected burst capacity 135, got %d", g.burstLimit)
	}
}

func TestGovernorDailyExhaustionEdgeCase(t *testing.T) {
	g := newTestGovernor(5)
	g.Record(High, true) // +2
	g.Record(High, true) // +2
	g.Record(Low, true)  // +5 -> dailyUsed = 9 > limit 5

	if g.Check(Medium) {
		t.Fatalf("medium should be denied once daily budget is exhausted")
	}
	if !g.Check(Critical) {
		t.Fatalf("critical must always be admitted even when daily is exhausted")
	}

	sum := g.Summarize()
	if !sum.DailyOverBudget {
		t.Fatalf("expected DailyOverBudget to be true, got used=%d limit=%d", sum.DailyUsed, sum.DailyLimit)
	}
}

func TestGovernorRecordOnlyChargesOnSuccess(t *testing.T) {
	g := newTestGovernor(40000)
	g.Record(Low, false)
	if g.Summarize().DailyUsed != 0 {
		t.Fatalf("failed request must not charge the daily budget")
	}
	g.Record(Low, true)
	if g.Summarize().DailyUsed != Low.Cost() {
		t.Fatalf("successful request must charge cost(Low)=%d", Low.Cost())
	}
}

func TestGovernorAwaitNonCriticalNeverBlocks(t *testing.T) {
	g := newTestGovernor(40000)
	for i := 0; i < 200; i++ {
		g.Check(Medium)
	}
	// Medium is denied now (cooldown); Await must return immediately with false.
	done := make(chan bool, 1)
	go func() { done <- g.Await(context.Background(), Medium) }()
	select {
	case admitted := <-done:
		if admitted {
			t.Fatalf("expected medium to be denied, not admitted")
		}
	case <-time.After(time.Second):
		t.Fatalf("Await(Medium) blocked instead of returning immediately")
	}
}

func TestGovernorAwaitCriticalAlwaysAdmitted(t *testing.T) {
	g := newTestGovernor(40000)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if !g.Await(ctx, Critical) {
		t.Fatalf("critical await should always succeed")
	}
}
