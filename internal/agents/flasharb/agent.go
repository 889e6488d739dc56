// Package flasharb implements the FlashArbAgent: discovery and execution of
// atomic multi-leg DEX routes against borrowed capital, gated by a
// profit-model check and executed through the TransactionEngine.
package flasharb

import (
	"context"
	"fmt"
	"time"

	"github.com/r3e-network/flashcore/internal/errs"
	"github.com/r3e-network/flashcore/internal/ledger"
	"github.com/r3e-network/flashcore/internal/logging"
	"github.com/r3e-network/flashcore/internal/marketdata"
	"github.com/r3e-network/flashcore/internal/population"
	"github.com/r3e-network/flashcore/internal/txengine"
)

// RouteLeg is one hop of a proposed multi-leg route.
type RouteLeg struct {
	Venue            string
	Pair             string
	ExpectedPrice    float64
	ExpectedSlippage float64
	PoolRef          string
}

// Route is a proposed atomic multi-leg route, optionally spanning chains.
type Route struct {
	Legs        []RouteLeg
	CrossChain  bool
	WalletID    string
	BorrowedAmt float64
}

// Result is the outcome of one execute() call.
type Result struct {
	Success        bool
	ProfitFraction float64
	Diagnostic     string
	Fees           float64
	Elapsed        time.Duration
	Record         *txengine.Record
}

// Agent is the FlashArbAgent.
type Agent struct {
	engine     *txengine.Engine
	population *population.Population
	ledger     *ledger.Ledger
	feed       *marketdata.Feed
	log        *logging.Logger

	executions int
	successes  int
}

// New constructs a FlashArbAgent sharing the given engine, population,
// ledger, and market-data handles (the Supervisor is the sole owner of all
// four; the agent holds non-owning references). feed may be nil, in which
// case realized leg prices are not fed back into market-data history.
func New(engine *txengine.Engine, pop *population.Population, l *ledger.Ledger, feed *marketdata.Feed, log *logging.Logger) *Agent {
	return &Agent{engine: engine, population: pop, ledger: l, feed: feed, log: log}
}

// profitFraction computes the route's profit model: cumulative slippage
// is the product of (1-hop_slippage) over every leg, discounted by 0.99 if
// the route crosses chains; profit fraction compares the realized final
// value (last leg's price times cumulative slippage) against the first
// leg's price.
func profitFraction(route Route) (fraction float64, cumulativeSlippage float64) {
	cumulativeSlippage = 1.0
	for _, leg := range route.Legs {
		cumulativeSlippage *= 1 - leg.ExpectedSlippage
	}
	if route.CrossChain {
		cumulativeSlippage *= 0.99
	}

	if len(route.Legs) == 0 {
		return 0, cumulativeSlippage
	}

	first := route.Legs[0].ExpectedPrice
	last := route.Legs[len(route.Legs)-1].ExpectedPrice
	finalValue := last * cumulativeSlippage
	fraction = finalValue/first - 1
	return fraction, cumulativeSlippage
}

// Execute runs the pre-execution gate, builds an execution plan, submits it
// atomically through the TransactionEngine, and on success ledgers the
// realized profit and evolves the matched strategy.
func (a *Agent) Execute(ctx context.Context, route Route) (Result, error) {
	start := time.Now()
	a.executions++

	if len(route.Legs) == 0 {
		return Result{Success: false, Diagnostic: errs.RouteEmpty().Message, Elapsed: time.Since(start)}, nil
	}

	fraction, cumulativeSlippage := profitFraction(route)
	threshold := a.population.MinThreshold()

	if fraction <= threshold {
		return Result{
			Success:        false,
			ProfitFraction: fraction,
			Diagnostic:     errs.ProfitBelowThreshold(fraction, threshold).Message,
			Fees:           0,
			Elapsed:        time.Since(start),
		}, nil
	}

	plan := buildExecutionPlan(route, cumulativeSlippage)

	record, err := a.engine.Execute(ctx, txengine.ExecuteParams{
		Type:           "swap",
		WalletID:       route.WalletID,
		Amount:         route.BorrowedAmt,
		Priority:       70,
		Memo:           "flash-arb route",
		ExpectedOutput: route.BorrowedAmt * (1 + fraction),
		Instructions:   plan,
	})
	if err != nil {
		return Result{
			Success:        false,
			ProfitFraction: fraction,
			Diagnostic:     err.Error(),
			Elapsed:        time.Since(start),
			Record:         record,
		}, nil
	}

	a.successes++

	// Profit is the route's profit fraction applied
	// to the borrowed notional, independent of the engine's own
	// actual-output accounting (which prices an arbitrary transfer, not a
	// multi-leg route).
	profit := route.BorrowedAmt * fraction

	venues := make([]string, 0, len(route.Legs))
	pairs := make([]string, 0, len(route.Legs))
	for _, leg := range route.Legs {
		venues = append(venues, leg.Venue)
		pairs = append(pairs, leg.Pair)
	}

	if a.feed != nil {
		perLegVolume := route.BorrowedAmt / float64(len(route.Legs))
		for _, leg := range route.Legs {
			a.feed.Observe(leg.Pair, leg.ExpectedPrice, perLegVolume)
		}
	}

	strategy := a.population.BestMatch(pairs)
	strategyID := ""
	if strategy != nil {
		strategyID = strategy.ID
	}

	if a.ledger != nil {
		if err := a.ledger.Credit(ledger.Credit{
			StrategyID: strategyID,
			Venues:     venues,
			Pairs:      pairs,
			Amount:     profit,
			Day:        ledger.DayKey(time.Now()),
		}); err != nil && a.log != nil {
			a.log.WithFields(map[string]interface{}{"error": err}).Error("ledger credit failed")
		}
	}

	if err := a.population.Evolve(map[string]any{
		"strategy_id":       strategyID,
		"actual_profit":     profit,
		"execution_time_ms": float64(time.Since(start).Milliseconds()),
	}); err != nil && a.log != nil {
		a.log.WithFields(map[string]interface{}{"error": err}).Error("strategy evolution failed")
	}

	return Result{
		Success:        true,
		ProfitFraction: fraction,
		Fees:           record.Fee,
		Elapsed:        time.Since(start),
		Record:         record,
	}, nil
}

// buildExecutionPlan prepends a borrow group, interleaves a swap group per
// leg, appends a repay group, and appends bridge groups for cross-chain
// legs.
func buildExecutionPlan(route Route, cumulativeSlippage float64) []txengine.Instruction {
	plan := make([]txengine.Instruction, 0, len(route.Legs)+2)
	plan = append(plan, txengine.Instruction{Program: "flash-loan-borrow", Data: encodeAmount(route.BorrowedAmt)})

	for _, leg := range route.Legs {
		plan = append(plan, txengine.Instruction{
			Program: "swap:" + leg.Venue,
			Data:    []byte(leg.Pair),
		})
	}

	if route.CrossChain {
		plan = append(plan, txengine.Instruction{Program: "bridge", Data: encodeAmount(cumulativeSlippage)})
	}

	plan = append(plan, txengine.Instruction{Program: "flash-loan-repay", Data: encodeAmount(route.BorrowedAmt)})
	return plan
}

func encodeAmount(v float64) []byte {
	return []byte(fmt.Sprintf("%f", v))
}

// Tick performs one cooperative unit of work and returns promptly,
// satisfying the Supervisor's cooperative scheduling contract.
// FlashArbAgent's work is purely reactive to Execute calls, so its tick is
// a no-op.
func (a *Agent) Tick(ctx context.Context) error {
	return nil
}

// Name identifies this agent in the Supervisor's health snapshot.
func (a *Agent) Name() string { return "flash-arb" }

// Snapshot reports execution/success counters for the diagnostic surface.
type Snapshot struct {
	Executions int
	Successes  int
}

// Stats returns the current execution/success counters.
func (a *Agent) Stats() Snapshot {
	return Snapshot{Executions: a.executions, Successes: a.successes}
}

// ExecutionStats reports execution/success counters for the Supervisor's
// health snapshot.
func (a *Agent) ExecutionStats() (executions, successes int) {
	return a.executions, a.successes
}
