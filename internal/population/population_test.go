package population

import "testing"

func TestNewPopulationHasOneDefaultStrategy(t *testing.T) {
	p := New(DefaultCap, nil)
	if p.Size() != 1 {
		t.Fatalf("expected exactly one default strategy, got %d", p.Size())
	}
}

// Every strategy DNA must satisfy: 0 <= risk_score <= 1, min_profit_threshold > 0, 0 < max_slippage < 1.
func TestDefaultStrategyRespectsInvariants(t *testing.T) {
	p := New(DefaultCap, nil)
	d := p.Snapshot()[0]
	if d.RiskScore < 0 || d.RiskScore > 1 {
		t.Fatalf("risk score out of range: %v", d.RiskScore)
	}
	if d.MinProfitThreshold <= 0 {
		t.Fatalf("min profit threshold must be positive: %v", d.MinProfitThreshold)
	}
	if d.MaxSlippage <= 0 || d.MaxSlippage >= 1 {
		t.Fatalf("max slippage out of range: %v", d.MaxSlippage)
	}
}

// At exactly cap strategies, a generation event triggers exactly one
// pruning; at cap-1 it does not.
func TestPopulationNeverExceedsCapAfterEvolve(t *testing.T) {
	p := New(2, nil)
	// Grow to exactly cap via generate_for (bypasses the cadence counter).
	p.GenerateFor(MarketConditions{PairVolumes: map[string]float64{"SOL/USDC": 100}})
	if p.Size() != 2 {
		t.Fatalf("expected size 2 after one generate_for, got %d", p.Size())
	}

	// Drive the cadence counter to a multiple of 10: this triggers one more
	// generation event, which must prune back down to cap.
	for i := 0; i < generationCadence; i++ {
		if err := p.Evolve(map[string]any{"actual_profit": 1.0}); err != nil {
			t.Fatalf("evolve: %v", err)
		}
	}
	if p.Size() > p.cap {
		t.Fatalf("population exceeded cap: size=%d cap=%d", p.Size(), p.cap)
	}
}

func TestEvolveAdjustsSlippageByProfitSign(t *testing.T) {
	p := New(DefaultCap, nil)
	before := p.Snapshot()[0].MaxSlippage

	if err := p.Evolve(map[string]any{"actual_profit": 10.0}); err != nil {
		t.Fatalf("evolve: %v", err)
	}
	afterPositive := p.Snapshot()[0].MaxSlippage
	if afterPositive >= before {
		t.Fatalf("expected max_slippage to shrink on positive profit: before=%v after=%v", before, afterPositive)
	}

	if err := p.Evolve(map[string]any{"actual_profit": -5.0}); err != nil {
		t.Fatalf("evolve: %v", err)
	}
	afterNegative := p.Snapshot()[0].MaxSlippage
	if afterNegative <= afterPositive {
		t.Fatalf("expected max_slippage to grow on non-positive profit: before=%v after=%v", afterPositive, afterNegative)
	}
}

func TestEvolveUnknownStrategyIDFails(t *testing.T) {
	p := New(DefaultCap, nil)
	err := p.Evolve(map[string]any{"strategy_id": "does-not-exist"})
	if err == nil {
		t.Fatalf("expected error for unknown strategy id")
	}
}

func TestPruneWorstIsNoopAtSizeOne(t *testing.T) {
	p := New(DefaultCap, nil)
	p.PruneWorst()
	if p.Size() != 1 {
		t.Fatalf("expected prune to be a no-op at size 1, got size %d", p.Size())
	}
}

func TestBestMatchPrefersHighestCoverageTieBreaksByInsertion(t *testing.T) {
	profits := map[string]float64{}
	p := New(DefaultCap, func(id string) (float64, bool) {
		v, ok := profits[id]
		return v, ok
	})
	first := p.Snapshot()[0]

	match := p.BestMatch([]string{"SOL/USDC"})
	if match == nil || match.ID != first.ID {
		t.Fatalf("expected the only strategy to match, got %+v", match)
	}

	// A second strategy targeting SOL/USDC and ETH/USDC covers more of a
	// two-pair route; on a one-pair route both tie and the first inserted wins.
	second := p.GenerateFor(MarketConditions{PairVolumes: map[string]float64{"SOL/USDC": 200, "ETH/USDC": 100}})
	if match := p.BestMatch([]string{"SOL/USDC", "ETH/USDC"}); match == nil || match.ID != second.ID {
		t.Fatalf("expected the higher-coverage strategy to match, got %+v", match)
	}
	if match := p.BestMatch([]string{"SOL/USDC"}); match == nil || match.ID != first.ID {
		t.Fatalf("expected a coverage tie to resolve to the first-inserted strategy, got %+v", match)
	}
}

func TestGenerateForAppendsMemePairsAboveThreshold(t *testing.T) {
	p := New(DefaultCap, nil)
	child := p.GenerateFor(MarketConditions{
		PairVolumes:  map[string]float64{"SOL/USDC": 500, "ETH/USDC": 300},
		Volatilities: []float64{0.1, 0.2},
		MemeActivity: 0.9,
	})
	found := false
	for _, pair := range child.TargetPairs {
		if pair == "BONK/USDC" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected meme pairs to be appended above 0.7 activity, got %+v", child.TargetPairs)
	}
	if child.VenuePriority[0] != "meme-venue" {
		t.Fatalf("expected venue priority to favor meme venue, got %+v", child.VenuePriority)
	}
}
