// Package crosschain implements the CrossChainAgent: discovery, validation,
// and bridged execution of cross-chain arbitrage opportunities through an
// observable state machine, with a 5-point independent validation pass and
// bounded-concurrency execution.
package crosschain

import (
	"context"
	"sync"
	"time"

	"github.com/r3e-network/flashcore/internal/logging"
	"github.com/r3e-network/flashcore/internal/marketdata"
	"github.com/r3e-network/flashcore/internal/txengine"
)

// State is a stage in an execution's state machine.
type State string

const (
	StateNotStarted           State = "NotStarted"
	StateValidating           State = "Validating"
	StatePreparing            State = "Preparing"
	StateExecutingSource      State = "ExecutingSource"
	StateBridging             State = "Bridging"
	StateExecutingDestination State = "ExecutingDestination"
	StateCompleted            State = "Completed"
	StateFailed               State = "Failed"
)

// Opportunity is a candidate cross-chain arbitrage route.
type Opportunity struct {
	SourceChain      string
	DestinationChain string
	Pair             string
	WalletID         string
	ProfitFraction   float64
	Input            float64
	ExpectedOutput   float64
	SourceLiquidity  float64
	DestLiquidity    float64
	EstimatedGas     float64
	EstimatedProfit  float64
	ValidUntil       time.Time
}

// Thresholds configures the validation gates.
type Thresholds struct {
	MinProfitFraction     float64
	MaxInput              float64
	MaxSourceLiquidityPct float64
	MaxDestLiquidityPct   float64
	MaxGasOfProfitPct     float64
}

// DefaultThresholds returns the documented defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinProfitFraction:     0.005,
		MaxInput:              1_000_000,
		MaxSourceLiquidityPct: 0.10,
		MaxDestLiquidityPct:   0.10,
		MaxGasOfProfitPct:     0.20,
	}
}

// failureKey identifies the (source, destination, pair) historical-failure
// bucket an opportunity belongs to.
type failureKey struct {
	Source, Destination, Pair string
}

func keyFor(o Opportunity) failureKey {
	return failureKey{Source: o.SourceChain, Destination: o.DestinationChain, Pair: o.Pair}
}

// attemptHistory holds the attempt and failure counts for one
// (source, destination, pair) key, used by validation rule 5. The counts
// are cumulative since the agent was constructed; they are not limited to
// the bounded execution history.
type attemptHistory struct {
	attempts int
	failures int
}

// Execution is one opportunity's progress through the state machine.
type Execution struct {
	Opportunity Opportunity
	State       State
	Diagnostic  string
	Record      *txengine.Record
	StartedAt   time.Time
	EndedAt     time.Time
}

const maxConcurrent = 3
const maxHistory = 1000

// Agent is the CrossChainAgent.
type Agent struct {
	engine     *txengine.Engine
	thresholds Thresholds
	feed       *marketdata.Feed
	log        *logging.Logger
	dryRun     bool

	mu         sync.Mutex
	inFlight   int
	history    []Execution
	failureLog map[failureKey]*attemptHistory
	executions int
	successes  int

	onTransition func(Execution)
}

// New constructs a CrossChainAgent. feed may be nil, in which case realized
// destination-leg prices are not fed back into market-data history.
func New(engine *txengine.Engine, thresholds Thresholds, dryRun bool, feed *marketdata.Feed, log *logging.Logger) *Agent {
	return &Agent{
		engine:     engine,
		thresholds: thresholds,
		dryRun:     dryRun,
		feed:       feed,
		log:        log,
		failureLog: make(map[failureKey]*attemptHistory),
	}
}

// OnTransition registers a callback invoked on every state transition, the
// seam the Supervisor uses to observe execution progress.
func (a *Agent) OnTransition(fn func(Execution)) { a.onTransition = fn }

// Discover reports whether an opportunity passes the discovery filter:
// adequate profit fraction, bounded input, and an unexpired validity
// window. Expired or undersized opportunities are silently dropped.
func (a *Agent) Discover(o Opportunity, now time.Time) bool {
	if !o.ValidUntil.IsZero() && now.After(o.ValidUntil) {
		return false
	}
	if o.ProfitFraction < a.thresholds.MinProfitFraction {
		return false
	}
	if o.Input > a.thresholds.MaxInput {
		return false
	}
	return true
}

// validate runs the 5 independent checks, returning the
// first failing reason, or "" if every check passes.
func (a *Agent) validate(o Opportunity) string {
	if o.ProfitFraction < a.thresholds.MinProfitFraction {
		return "recomputed profit below threshold"
	}

	if o.SourceLiquidity > 0 && o.Input/o.SourceLiquidity > a.thresholds.MaxSourceLiquidityPct {
		return "input exceeds source liquidity fraction"
	}

	if o.DestLiquidity > 0 && o.ExpectedOutput/o.DestLiquidity > a.thresholds.MaxDestLiquidityPct {
		return "expected output exceeds destination liquidity fraction"
	}

	if o.EstimatedProfit > 0 && o.EstimatedGas/o.EstimatedProfit > a.thresholds.MaxGasOfProfitPct {
		return "estimated gas exceeds profit fraction"
	}

	a.mu.Lock()
	hist := a.failureLog[keyFor(o)]
	a.mu.Unlock()
	if hist != nil {
		if hist.attempts >= 5 && float64(hist.failures)/float64(hist.attempts) > 0.5 {
			return "historical failure rate exceeds threshold"
		}
		if hist.attempts >= 3 && float64(hist.failures)/float64(hist.attempts) > 0.3 && a.log != nil {
			a.log.WithFields(map[string]interface{}{
				"pair":     o.Pair,
				"attempts": hist.attempts,
				"failures": hist.failures,
			}).Warn("historical failure rate elevated (warning threshold crossed)")
		}
	}

	return ""
}

// Execute runs one opportunity through the full state machine, rejecting
// it outright if maxConcurrent executions are already in flight.
func (a *Agent) Execute(ctx context.Context, o Opportunity) (Execution, error) {
	a.mu.Lock()
	if a.inFlight >= maxConcurrent {
		a.mu.Unlock()
		return Execution{Opportunity: o, State: StateFailed, Diagnostic: "max concurrent cross-chain executions reached"}, nil
	}
	a.inFlight++
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.inFlight--
		a.mu.Unlock()
	}()

	exec := Execution{Opportunity: o, State: StateNotStarted, StartedAt: time.Now()}
	a.transition(&exec, StateValidating, "")

	if reason := a.validate(o); reason != "" {
		a.recordAttempt(o, true)
		a.transition(&exec, StateFailed, reason)
		a.appendHistory(exec)
		return exec, nil
	}

	a.transition(&exec, StatePreparing, "")

	if a.dryRun {
		a.recordAttempt(o, false)
		a.transition(&exec, StateCompleted, "dry-run synthesized success")
		a.appendHistory(exec)
		return exec, nil
	}

	a.transition(&exec, StateExecutingSource, "")
	sourceRecord, err := a.engine.Execute(ctx, txengine.ExecuteParams{
		Type:           "swap",
		WalletID:       o.WalletID,
		Amount:         o.Input,
		Priority:       60,
		Memo:           "cross-chain source leg",
		ExpectedOutput: o.Input * (1 + o.ProfitFraction),
	})
	if err != nil {
		a.recordAttempt(o, true)
		a.transition(&exec, StateFailed, err.Error())
		a.appendHistory(exec)
		return exec, nil
	}
	exec.Record = sourceRecord

	a.transition(&exec, StateBridging, "")
	// Bridge completion is an external suspension point; the
	// engine's own confirm-and-settle step stands in for the bridge wait
	// here since the bridge transport itself is out of this core's scope.

	a.transition(&exec, StateExecutingDestination, "")
	destRecord, err := a.engine.Execute(ctx, txengine.ExecuteParams{
		Type:           "swap",
		WalletID:       o.WalletID,
		Amount:         o.ExpectedOutput,
		Priority:       60,
		Memo:           "cross-chain destination leg",
		ExpectedOutput: o.ExpectedOutput,
	})
	if err != nil {
		a.recordAttempt(o, true)
		a.transition(&exec, StateFailed, err.Error())
		a.appendHistory(exec)
		return exec, nil
	}
	exec.Record = destRecord

	if a.feed != nil && o.Input > 0 {
		a.feed.Observe(o.Pair, o.ExpectedOutput/o.Input, o.Input)
	}

	a.recordAttempt(o, false)
	a.transition(&exec, StateCompleted, "")
	a.appendHistory(exec)
	return exec, nil
}

func (a *Agent) transition(exec *Execution, next State, diagnostic string) {
	exec.State = next
	exec.Diagnostic = diagnostic
	if next == StateCompleted || next == StateFailed {
		exec.EndedAt = time.Now()
	}
	if a.onTransition != nil {
		a.onTransition(*exec)
	}
	if a.log != nil {
		a.log.WithFields(map[string]interface{}{
			"state":      string(next),
			"pair":       exec.Opportunity.Pair,
			"diagnostic": diagnostic,
		}).Info("cross-chain execution transition")
	}
}

func (a *Agent) recordAttempt(o Opportunity, failed bool) {
	key := keyFor(o)
	a.mu.Lock()
	defer a.mu.Unlock()
	hist, ok := a.failureLog[key]
	if !ok {
		hist = &attemptHistory{}
		a.failureLog[key] = hist
	}
	hist.attempts++
	if failed {
		hist.failures++
	}
}

func (a *Agent) appendHistory(exec Execution) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = append(a.history, exec)
	if len(a.history) > maxHistory {
		a.history = a.history[len(a.history)-maxHistory:]
	}
	a.executions++
	if exec.State == StateCompleted {
		a.successes++
	}
}

// History returns a defensive copy of the bounded execution history.
func (a *Agent) History() []Execution {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Execution, len(a.history))
	copy(out, a.history)
	return out
}

// Tick performs one cooperative unit of work; discovery/execution is
// reactive to Execute calls here, so tick is a no-op.
func (a *Agent) Tick(ctx context.Context) error { return nil }

// Name identifies this agent in the Supervisor's health snapshot.
func (a *Agent) Name() string { return "cross-chain" }

// InFlight reports the number of executions currently in progress.
func (a *Agent) InFlight() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inFlight
}

// ExecutionStats reports execution/success counters for the Supervisor's
// health snapshot.
func (a *Agent) ExecutionStats() (executions, successes int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.executions, a.successes
}

