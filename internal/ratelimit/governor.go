// Package ratelimit implements the RateGovernor: a token-bucket-with-cooldown
// gate multiplexing a scarce daily RPC quota across heterogeneous request
// priorities with burst tolerance, built on a golang.org/x/time/rate-style
// windowed counter for each of three nested buckets plus priority-weighted
// daily cost.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Priority is one of the four admission classes the governor multiplexes.
type Priority int

const (
	Low Priority = iota
	Medium
	High
	Critical
)

func (p Priority) String() string {
	switch p {
	case Critical:
		return "critical"
	case High:
		return "high"
	case Medium:
		return "medium"
	default:
		return "low"
	}
}

// Cost returns the daily-budget weight of a priority class (
// costs scale inversely with priority).
func (p Priority) Cost() int {
	switch p {
	case Critical:
		return 1
	case High:
		return 2
	case Medium:
		return 3
	default:
		return 5
	}
}

const (
	perMinuteWindow = time.Minute
	burstWindow     = 5 * time.Minute
	dailyWindow     = 24 * time.Hour
	cooldownPeriod  = 60 * time.Second
)

// Config configures a Governor's capacities. PerMinute and Burst default to
// the derived values (DailyLimit/(24*60) and 5x that) when zero.
type Config struct {
	DailyLimit int
	PerMinute  int
	Burst      int
	Now        func() time.Time // overridable clock for tests
}

// Governor is the RateGovernor: three nested counting windows (daily,
// per-minute, burst) plus a cooldown flag, all behind one mutex so that
// admission decisions are totally ordered.
type Governor struct {
	mu sync.Mutex
	now func() time.Time

	dailyLimit int
	dailyUsed  int
	dailyReset time.Time

	perMinuteLimit int
	perMinuteUsed  int
	perMinuteReset time.Time

	burstLimit int
	burstUsed  int
	burstReset time.Time

	cooldownUntil time.Time
}

// New constructs a Governor from Config, defaulting DailyLimit to 40000 and
// deriving PerMinute/Burst when unset.
func New(cfg Config) *Governor {
	if cfg.DailyLimit <= 0 {
		cfg.DailyLimit = 40000
	}
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = cfg.DailyLimit / (24 * 60)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5 * cfg.PerMinute
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}

	now := nowFn()
	return &Governor{
		now:            nowFn,
		dailyLimit:     cfg.DailyLimit,
		dailyReset:     now.Add(dailyWindow),
		perMinuteLimit: cfg.PerMinute,
		perMinuteReset: now.Add(perMinuteWindow),
		burstLimit:     cfg.Burst,
		burstReset:     now.Add(burstWindow),
	}
}

// rollWindows resets any expired counting window. Caller must hold mu.
func (g *Governor) rollWindows(now time.Time) {
	if !now.Before(g.dailyReset) {
		g.dailyUsed = 0
		g.dailyReset = now.Add(dailyWindow)
	}
	if !now.Before(g.perMinuteReset) {
		g.perMinuteUsed = 0
		g.perMinuteReset = now.Add(perMinuteWindow)
	}
	if !now.Before(g.burstReset) {
		g.burstUsed = 0
		g.burstReset = now.Add(burstWindow)
	}
}

// Check performs a non-blocking admission decision. Critical
// requests are always admitted (the daily-exhaustion edge case); all other
// priorities are denied outright during cooldown, denied once the daily
// budget is exhausted, and otherwise consume the per-minute bucket, falling
// back to the burst bucket, entering a 60s cooldown once both are spent.
func (g *Governor) Check(priority Priority) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.checkLocked(priority)
}

func (g *Governor) checkLocked(priority Priority) bool {
	now := g.now()
	g.rollWindows(now)

	if priority == Critical {
		return true
	}

	if now.Before(g.cooldownUntil) {
		return false
	}

	if g.dailyUsed >= g.dailyLimit {
		return false
	}

	if g.perMinuteUsed < g.perMinuteLimit {
		g.perMinuteUsed++
		return true
	}
	if g.burstUsed < g.burstLimit {
		g.burstUsed++
		return true
	}

	g.cooldownUntil = now.Add(cooldownPeriod)
	return false
}

// Await is Check for non-Critical priorities (they never suspend). Critical
// requests loop, sleeping until the next window reset or cooldown
// expiration, until admitted or ctx is done.
func (g *Governor) Await(ctx context.Context, priority Priority) bool {
	if priority != Critical {
		return g.Check(priority)
	}

	for {
		if g.Check(priority) {
			return true
		}
		wait := g.nextResetIn()
		if wait <= 0 {
			wait = 10 * time.Millisecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}

func (g *Governor) nextResetIn() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	candidates := []time.Time{g.perMinuteReset, g.burstReset, g.dailyReset}
	if now.Before(g.cooldownUntil) {
		candidates = append(candidates, g.cooldownUntil)
	}
	min := candidates[0]
	for _, c := range candidates[1:] {
		if c.Before(min) {
			min = c
		}
	}
	return min.Sub(now)
}

// Record updates the daily counter: cost(priority) is added iff success is
// true. Unsuccessful requests never charge the daily budget.
// Note this can push dailyUsed above dailyLimit for Critical traffic; that
// is reported as a health warning, not denied.
func (g *Governor) Record(priority Priority, success bool) {
	if !success {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	g.rollWindows(now)
	g.dailyUsed += priority.Cost()
}

// Summary is a point-in-time snapshot of the governor's internal counters,
// surfaced through the Supervisor's health snapshot.
type Summary struct {
	DailyUsed       int
	DailyLimit      int
	DailyOverBudget bool
	PerMinuteUsed   int
	PerMinuteLimit  int
	BurstUsed       int
	BurstLimit      int
	CooldownActive  bool
	CooldownUntil   time.Time
}

// Summarize returns the current Summary.
func (g *Governor) Summarize() Summary {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	g.rollWindows(now)
	return Summary{
		DailyUsed:       g.dailyUsed,
		DailyLimit:      g.dailyLimit,
		DailyOverBudget: g.dailyUsed > g.dailyLimit,
		PerMinuteUsed:   g.perMinuteUsed,
		PerMinuteLimit:  g.perMinuteLimit,
		BurstUsed:       g.burstUsed,
		BurstLimit:      g.burstLimit,
		CooldownActive:  now.Before(g.cooldownUntil),
		CooldownUntil:   g.cooldownUntil,
	}
}
