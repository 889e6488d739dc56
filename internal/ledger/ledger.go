// Package ledger implements the ProfitLedger: shared, read-mostly
// per-strategy/per-pair/per-venue/per-day profit attribution over a
// mutex-guarded map of running balances.
package ledger

import (
	"sync"
	"time"

	"github.com/r3e-network/flashcore/internal/errs"
)

// Credit is one profit attribution event: a realized profit amount,
// attributed in full to one strategy and fractionally across every venue
// and pair involved in the execution that produced it.
type Credit struct {
	StrategyID string
	Venues     []string
	Pairs      []string
	Amount     float64
	Day        string // YYYY-MM-DD, UTC
}

// Ledger is the ProfitLedger.
type Ledger struct {
	mu sync.RWMutex

	total      float64
	byStrategy map[string]float64
	byPair     map[string]float64
	byVenue    map[string]float64
	byDay      map[string]float64
}

// New constructs an empty Ledger.
func New() *Ledger {
	return &Ledger{
		byStrategy: make(map[string]float64),
		byPair:     make(map[string]float64),
		byVenue:    make(map[string]float64),
		byDay:      make(map[string]float64),
	}
}

// DayKey returns the UTC YYYY-MM-DD key for t, matching the
// ProfitAttribution.DayKey rule.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Credit applies one profit attribution under the ledger's write lock, so
// concurrent credits from different agents are serialized here.
func (l *Ledger) Credit(c Credit) error {
	if len(c.Venues) == 0 || len(c.Pairs) == 0 {
		return errs.LedgerOverflow("credit must name at least one venue and one pair")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.total += c.Amount
	l.byStrategy[c.StrategyID] += c.Amount

	perVenue := c.Amount / float64(len(c.Venues))
	for _, venue := range c.Venues {
		l.byVenue[venue] += perVenue
	}

	perPair := c.Amount / float64(len(c.Pairs))
	for _, pair := range c.Pairs {
		l.byPair[pair] += perPair
	}

	if c.Day != "" {
		l.byDay[c.Day] += c.Amount
	}

	return nil
}

// StrategyProfit returns the realized profit attributed to strategyID.
func (l *Ledger) StrategyProfit(strategyID string) (float64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.byStrategy[strategyID]
	return v, ok
}

// Total returns the grand total realized profit across all attributions.
func (l *Ledger) Total() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.total
}

// Snapshot is a point-in-time copy of the ledger's four attribution views,
// used to verify cross-dimension consistency and for the
// Supervisor's health snapshot.
type Snapshot struct {
	Total      float64
	ByStrategy map[string]float64
	ByPair     map[string]float64
	ByVenue    map[string]float64
	ByDay      map[string]float64
}

// Summarize returns a defensive-copy Snapshot.
func (l *Ledger) Summarize() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Snapshot{
		Total:      l.total,
		ByStrategy: cloneMap(l.byStrategy),
		ByPair:     cloneMap(l.byPair),
		ByVenue:    cloneMap(l.byVenue),
		ByDay:      cloneMap(l.byDay),
	}
}

func cloneMap(src map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func sum(m map[string]float64) float64 {
	var total float64
	for _, v := range m {
		total += v
	}
	return total
}

// SumByStrategy, SumByPair and SumByVenue expose the per-view totals, so
// callers (and tests) can verify they all equal Total without reaching into
// Snapshot's internals.
func (s Snapshot) SumByStrategy() float64 { return sum(s.ByStrategy) }
func (s Snapshot) SumByPair() float64     { return sum(s.ByPair) }
func (s Snapshot) SumByVenue() float64    { return sum(s.ByVenue) }
