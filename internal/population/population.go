// Package population implements StrategyPopulation and StrategyDNA:
// bounded online evolution of a strategy set driven by realized execution
// performance, via a clone-mutate-prune evolutionary loop built on a
// mutex-guarded in-memory collection, with the mean of observed
// volatilities taken from internal/stats.
package population

import (
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"github.com/r3e-network/flashcore/internal/errs"
	"github.com/r3e-network/flashcore/internal/stats"
)

// DefaultCap is the maximum number of strategies a population holds.
const DefaultCap = 5

// generationCadence is the "every k-th execution" evolution trigger.
const generationCadence = 10

// maxSlippageCeiling bounds max_slippage strictly below 1, so repeated
// non-positive-profit evolution steps can never push it out of range.
const maxSlippageCeiling = 0.5

// candidatePairs is the small fixed set generate() draws new target pairs
// from when mutating an existing strategy.
var candidatePairs = []string{
	"SOL/USDC", "SOL/USDT", "ETH/USDC", "BTC/USDC", "RAY/USDC", "ORCA/USDC",
}

// memePairs are appended when generate_for observes high meme-token
// activity.
var memePairs = []string{"BONK/USDC", "WIF/USDC", "POPCAT/USDC"}

// MemePairs returns the fixed set of pairs generate_for treats as
// meme-token activity, for callers (e.g. the Supervisor's evolution tick)
// that need to classify observed volume the same way.
func MemePairs() []string {
	return append([]string(nil), memePairs...)
}

// DNA is a named parameter record describing one strategy variant under
// evolution.
type DNA struct {
	ID                 string
	Version            int
	TargetPairs        []string
	VenuePriority      []string
	MinProfitThreshold float64
	MaxSlippage        float64
	RiskScore          float64
	ExecutionSpeed     float64
	Performance        map[string]any
}

func clonePerformance(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func cloneDNA(d *DNA) *DNA {
	out := *d
	out.TargetPairs = append([]string(nil), d.TargetPairs...)
	out.VenuePriority = append([]string(nil), d.VenuePriority...)
	out.Performance = clonePerformance(d.Performance)
	return &out
}

// ProfitLookup resolves a strategy's realized profit when the performance
// map lacks an actual_profit entry (the ledger is consulted as a fallback,
// per the best()/worst() rule).
type ProfitLookup func(strategyID string) (float64, bool)

// Population is the StrategyPopulation: a bounded, mutex-guarded set of DNA
// instances evolving in response to execution metrics.
type Population struct {
	mu           sync.Mutex
	cap          int
	strategies   []*DNA
	order        []string // insertion order, for stable tie-breaking
	executions   int
	profitLookup ProfitLookup
}

// New creates a Population with one implicit default strategy, per
// the invariant that a newly created population has exactly one
// default strategy.
func New(cap int, profitLookup ProfitLookup) *Population {
	if cap <= 0 {
		cap = DefaultCap
	}
	p := &Population{cap: cap, profitLookup: profitLookup}
	def := &DNA{
		ID:                 uuid.NewString(),
		Version:            1,
		TargetPairs:        []string{"SOL/USDC"},
		VenuePriority:      []string{"A", "B"},
		MinProfitThreshold: 0.005,
		MaxSlippage:        0.01,
		RiskScore:          0.2,
		ExecutionSpeed:     1000,
		Performance:        make(map[string]any),
	}
	p.strategies = append(p.strategies, def)
	p.order = append(p.order, def.ID)
	return p
}

// Size returns the current population size.
func (p *Population) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.strategies)
}

// Snapshot returns a defensive copy of every DNA in insertion order.
func (p *Population) Snapshot() []*DNA {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*DNA, len(p.strategies))
	for i, d := range p.strategies {
		out[i] = cloneDNA(d)
	}
	return out
}

// MinThreshold returns the smallest min_profit_threshold among current
// strategies, used by FlashArbAgent's pre-execution gate.
func (p *Population) MinThreshold() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.strategies) == 0 {
		return 0
	}
	min := p.strategies[0].MinProfitThreshold
	for _, d := range p.strategies[1:] {
		if d.MinProfitThreshold < min {
			min = d.MinProfitThreshold
		}
	}
	return min
}

func (p *Population) find(id string) (*DNA, int) {
	for i, d := range p.strategies {
		if d.ID == id {
			return d, i
		}
	}
	return nil, -1
}

// Evolve merges an execution's metrics into the matching strategy (or the
// first, if no strategy_id is given), adjusts max_slippage and
// execution_speed, and every generationCadence-th execution spawns a new
// strategy, pruning the worst if the population is over cap.
func (p *Population) Evolve(metrics map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.strategies) == 0 {
		return errs.StrategyNotFound("")
	}

	var target *DNA
	if id, ok := metrics["strategy_id"].(string); ok && id != "" {
		target, _ = p.find(id)
		if target == nil {
			return errs.StrategyNotFound(id)
		}
	} else {
		target = p.strategies[0]
	}

	if target.Performance == nil {
		target.Performance = make(map[string]any)
	}
	for k, v := range metrics {
		target.Performance[k] = v
	}

	profit, _ := metrics["actual_profit"].(float64)
	if profit > 0 {
		target.MaxSlippage *= 0.99
	} else {
		target.MaxSlippage = minFloat(target.MaxSlippage*1.01, maxSlippageCeiling)
	}

	if execMs, ok := metrics["execution_time_ms"].(float64); ok {
		target.ExecutionSpeed = 0.9*target.ExecutionSpeed + 0.1*execMs
	}

	p.executions++
	if p.executions%generationCadence == 0 {
		p.generateLocked()
		if len(p.strategies) > p.cap {
			p.pruneWorstLocked()
		}
	}

	return nil
}

// Generate clones the best performer, assigns a new id/version, mutates
// min_profit_threshold and max_slippage by ±5%, appends a distinct pair,
// swaps two adjacent venues, and resets its performance map.
func (p *Population) Generate() *DNA {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneDNA(p.generateLocked())
}

func (p *Population) generateLocked() *DNA {
	best := p.bestLocked()
	child := cloneDNA(best)
	child.ID = uuid.NewString()
	child.Version = best.Version + 1
	child.Performance = make(map[string]any)

	child.MinProfitThreshold *= 1 + mutationDelta()
	child.MaxSlippage *= 1 + mutationDelta()

	for _, pair := range candidatePairs {
		if !containsString(child.TargetPairs, pair) {
			child.TargetPairs = append(child.TargetPairs, pair)
			break
		}
	}

	if len(child.VenuePriority) >= 2 {
		child.VenuePriority[0], child.VenuePriority[1] = child.VenuePriority[1], child.VenuePriority[0]
	}

	p.strategies = append(p.strategies, child)
	p.order = append(p.order, child.ID)
	return child
}

// mutationDelta returns a uniform random value in [-0.05, 0.05].
func mutationDelta() float64 {
	return (rand.Float64()*2 - 1) * 0.05
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// MarketConditions summarizes recently observed market state, consumed by
// GenerateFor to build a fresh strategy tuned to current conditions.
type MarketConditions struct {
	PairVolumes  map[string]float64 // pair -> observed volume
	Volatilities []float64          // recent per-pair volatility observations
	MemeActivity float64            // 0..1
}

// GenerateFor builds a fresh DNA from observed market conditions: the
// top-3 pairs by volume become targets, average volatility tunes the
// threshold/slippage/risk/speed quartet, and meme activity above 0.7
// appends meme pairs and reorders venue priority toward meme venues.
func (p *Population) GenerateFor(conditions MarketConditions) *DNA {
	p.mu.Lock()
	defer p.mu.Unlock()

	top := topPairsByVolume(conditions.PairVolumes, 3)
	avgVol := stats.Mean(conditions.Volatilities)

	child := &DNA{
		ID:                 uuid.NewString(),
		Version:            1,
		TargetPairs:        top,
		VenuePriority:      []string{"A", "B"},
		MinProfitThreshold: 0.003 + avgVol*0.01,
		MaxSlippage:        0.005 + avgVol*0.02,
		RiskScore:          minFloat(0.9, avgVol*2),
		ExecutionSpeed:     1000 - avgVol*500,
		Performance:        make(map[string]any),
	}

	if conditions.MemeActivity > 0.7 {
		child.TargetPairs = append(child.TargetPairs, memePairs...)
		child.VenuePriority = append([]string{"meme-venue"}, child.VenuePriority...)
	}

	p.strategies = append(p.strategies, child)
	p.order = append(p.order, child.ID)
	if len(p.strategies) > p.cap {
		p.pruneWorstLocked()
	}

	return cloneDNA(child)
}

func topPairsByVolume(volumes map[string]float64, n int) []string {
	type pv struct {
		pair   string
		volume float64
	}
	pvs := make([]pv, 0, len(volumes))
	for pair, vol := range volumes {
		pvs = append(pvs, pv{pair, vol})
	}
	for i := 0; i < len(pvs); i++ {
		for j := i + 1; j < len(pvs); j++ {
			if pvs[j].volume > pvs[i].volume {
				pvs[i], pvs[j] = pvs[j], pvs[i]
			}
		}
	}
	if n > len(pvs) {
		n = len(pvs)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = pvs[i].pair
	}
	return out
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// realizedProfit resolves a strategy's profit: performance map's
// actual_profit first, then the ledger lookup, else zero.
func (p *Population) realizedProfit(d *DNA) float64 {
	if v, ok := d.Performance["actual_profit"].(float64); ok {
		return v
	}
	if p.profitLookup != nil {
		if v, ok := p.profitLookup(d.ID); ok {
			return v
		}
	}
	return 0
}

// Best returns the strategy with the highest realized profit.
func (p *Population) Best() *DNA {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneDNA(p.bestLocked())
}

func (p *Population) bestLocked() *DNA {
	best := p.strategies[0]
	bestProfit := p.realizedProfit(best)
	for _, d := range p.strategies[1:] {
		profit := p.realizedProfit(d)
		if profit > bestProfit {
			best, bestProfit = d, profit
		}
	}
	return best
}

// Worst returns the strategy with the lowest realized profit.
func (p *Population) Worst() *DNA {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneDNA(p.worstLocked())
}

func (p *Population) worstLocked() *DNA {
	worst := p.strategies[0]
	worstProfit := p.realizedProfit(worst)
	for _, d := range p.strategies[1:] {
		profit := p.realizedProfit(d)
		if profit < worstProfit {
			worst, worstProfit = d, profit
		}
	}
	return worst
}

// PruneWorst removes the strategy with minimum realized profit; a no-op at
// size <= 1.
func (p *Population) PruneWorst() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pruneWorstLocked()
}

func (p *Population) pruneWorstLocked() {
	if len(p.strategies) <= 1 {
		return
	}
	worst := p.worstLocked()
	_, idx := p.find(worst.ID)
	if idx < 0 {
		return
	}
	p.strategies = append(p.strategies[:idx], p.strategies[idx+1:]...)
	for i, id := range p.order {
		if id == worst.ID {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// BestMatch returns the strategy whose target_pairs cover the most of the
// given route pairs, ties broken by insertion order (the
// strategy-attribution rule).
func (p *Population) BestMatch(routePairs []string) *DNA {
	p.mu.Lock()
	defer p.mu.Unlock()

	var best *DNA
	bestCoverage := -1
	for _, id := range p.order {
		d, _ := p.find(id)
		if d == nil {
			continue
		}
		coverage := 0
		for _, pair := range routePairs {
			if containsString(d.TargetPairs, pair) {
				coverage++
			}
		}
		if coverage > bestCoverage {
			best, bestCoverage = d, coverage
		}
	}
	if best == nil {
		return nil
	}
	return cloneDNA(best)
}
