package ledger

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// sum(by_strategy) = sum(by_pair) = sum(by_venue) = total across credits.
func TestLedgerConsistencyAcrossMultipleCredits(t *testing.T) {
	l := New()

	require.NoError(t, l.Credit(Credit{
		StrategyID: "s1",
		Venues:     []string{"A", "B"},
		Pairs:      []string{"SOL/USDC", "ETH/USDC"},
		Amount:     551,
		Day:        "2026-07-30",
	}))
	require.NoError(t, l.Credit(Credit{
		StrategyID: "s2",
		Venues:     []string{"A", "C", "D"},
		Pairs:      []string{"SOL/USDC"},
		Amount:     120,
		Day:        "2026-07-30",
	}))

	snap := l.Summarize()
	assert.True(t, approxEqual(snap.SumByStrategy(), snap.Total), "sum(by_strategy)=%v != total=%v", snap.SumByStrategy(), snap.Total)
	assert.True(t, approxEqual(snap.SumByPair(), snap.Total), "sum(by_pair)=%v != total=%v", snap.SumByPair(), snap.Total)
	assert.True(t, approxEqual(snap.SumByVenue(), snap.Total), "sum(by_venue)=%v != total=%v", snap.SumByVenue(), snap.Total)
}

func TestLedgerCreditEvenSplitAcrossVenuesAndPairs(t *testing.T) {
	l := New()
	require.NoError(t, l.Credit(Credit{
		StrategyID: "s1",
		Venues:     []string{"A", "B"},
		Pairs:      []string{"SOL/USDC"},
		Amount:     551,
		Day:        "2026-07-30",
	}))
	snap := l.Summarize()
	assert.True(t, approxEqual(snap.ByVenue["A"], 275.5) && approxEqual(snap.ByVenue["B"], 275.5), "expected even split across venues, got %+v", snap.ByVenue)
}

func TestLedgerCreditRejectsEmptyVenuesOrPairs(t *testing.T) {
	l := New()
	assert.Error(t, l.Credit(Credit{StrategyID: "s1", Amount: 10, Pairs: []string{"SOL/USDC"}}))
	assert.Error(t, l.Credit(Credit{StrategyID: "s1", Amount: 10, Venues: []string{"A"}}))
}

func TestDayKeyFormat(t *testing.T) {
	ts := time.Date(2026, 7, 30, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "2026-07-30", DayKey(ts))
}
