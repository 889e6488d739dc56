// Package precisionentry implements the PrecisionEntryAgent: priority
// entries against candidate launch targets under a TD3-style learned
// policy, with a reward-shaped update loop driving the policy vector.
package precisionentry

import (
	"context"
	"math"
	"time"

	"github.com/r3e-network/flashcore/internal/errs"
	"github.com/r3e-network/flashcore/internal/logging"
	"github.com/r3e-network/flashcore/internal/marketdata"
	"github.com/r3e-network/flashcore/internal/txengine"
)

// PolicyVector is the learned parameter vector driving precision-entry
// decisions: [invest-ratio, slippage-tolerance, mev-protection-threshold,
// priority-factor, risk-tolerance, entry-timing], each component in [0,1].
type PolicyVector []float64

// clone returns a defensive copy of v.
func (v PolicyVector) clone() PolicyVector {
	out := make(PolicyVector, len(v))
	copy(out, v)
	return out
}

// DefaultPolicyVector returns a fresh 6-component vector with neutral
// defaults.
func DefaultPolicyVector() PolicyVector {
	return PolicyVector{0.3, 0.01, 0.5, 0.3, 0.5, 0.5}
}

// SocialSignals carries the social-attention features a LaunchTarget
// carries alongside its token metrics.
type SocialSignals struct {
	Trending bool
}

// Target is a candidate token launch.
type Target struct {
	TokenAddress string
	Pair         string // market-data key, e.g. "<token>/USDC"; empty skips Observe
	WalletID     string
	Potential    float64 // 0..1
	Risk         float64 // 0..1
	InitialPrice float64
	Social       SocialSignals
}

// Result is the outcome of one Enter call.
type Result struct {
	Success      bool
	Skipped      bool
	Diagnostic   string
	InvestAmount float64
	Reward       float64
	Record       *txengine.Record
}

// PolicyAdvisor biases a policy vector before it is used, the seam left for
// an external intelligence/numerical layer that is out of this core's
// scope.
type PolicyAdvisor interface {
	Bias(ctx context.Context, vector PolicyVector) PolicyVector
}

// NoopAdvisor is the default PolicyAdvisor: it returns the vector
// unchanged.
type NoopAdvisor struct{}

// Bias implements PolicyAdvisor by returning vector unchanged.
func (NoopAdvisor) Bias(ctx context.Context, vector PolicyVector) PolicyVector { return vector }

// riskThreshold is the fixed token-risk gate.
const riskThreshold = 0.8

// learningRate is the TD3-style per-component update rate α.
const learningRate = 0.1

const maxRewardHistory = 1000
const trendWindow = 100

// Agent is the PrecisionEntryAgent.
type Agent struct {
	engine  *txengine.Engine
	advisor PolicyAdvisor
	feed    *marketdata.Feed
	log     *logging.Logger
	capUSD  float64

	policy  PolicyVector
	rewards []float64

	entries   int
	successes int
}

// New constructs a PrecisionEntryAgent. cap is the configured maximum
// notional for invest_amount sizing. advisor may be nil, in which case
// NoopAdvisor is used. feed may be nil, in which case realized entry
// prices are not fed back into market-data history.
func New(engine *txengine.Engine, advisor PolicyAdvisor, capUSD float64, feed *marketdata.Feed, log *logging.Logger) *Agent {
	if advisor == nil {
		advisor = NoopAdvisor{}
	}
	return &Agent{
		engine:  engine,
		advisor: advisor,
		feed:    feed,
		log:     log,
		capUSD:  capUSD,
		policy:  DefaultPolicyVector(),
	}
}

// Policy returns a defensive copy of the current policy vector.
func (a *Agent) Policy() PolicyVector { return a.policy.clone() }

// entryParams is the set of sizing/timing decisions derived from the
// policy vector for one target.
type entryParams struct {
	investAmount     float64
	slippage         float64
	useMEVProtection bool
	priority         float64
	timing           float64
}

// deriveEntryParams implements the parameter-derivation rules.
func deriveEntryParams(policy PolicyVector, capUSD float64, t Target) entryParams {
	riskFactor := 1 - math.Min(0.9, t.Risk)
	invest := capUSD * policy[0] * t.Potential * riskFactor

	slippage := policy[1]
	if slippage < 0.001 {
		slippage = 0.001
	}

	useMEV := t.Potential > policy[2] || t.Social.Trending

	var priority float64
	if t.Social.Trending {
		priority = math.Max(policy[3]*255, 200)
	} else {
		priority = policy[3] * 200
	}
	priority = clamp(priority, 0, 255)

	timing := policy[5]

	return entryParams{
		investAmount:     invest,
		slippage:         slippage,
		useMEVProtection: useMEV,
		priority:         priority,
		timing:           timing,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Enter runs the risk gate, derives entry parameters from the current
// policy vector, and (unless the sizing rounds to zero) executes through
// the TransactionEngine, updating the policy from the realized reward.
func (a *Agent) Enter(ctx context.Context, target Target) (Result, error) {
	if target.Risk > riskThreshold {
		return Result{
			Success:    false,
			Diagnostic: errs.RiskTooHigh(target.Risk, riskThreshold).Message,
		}, nil
	}

	biased := a.advisor.Bias(ctx, a.policy.clone())
	params := deriveEntryParams(biased, a.capUSD, target)

	if math.Round(params.investAmount) == 0 {
		return Result{Success: false, Skipped: true, Diagnostic: "invest amount rounds to zero"}, nil
	}

	a.entries++

	instructions := buildEntryInstructions(target, params)

	priorityInt := int(math.Round(params.priority * 100 / 255))
	start := time.Now()
	record, err := a.engine.Execute(ctx, txengine.ExecuteParams{
		Type:           "buy",
		WalletID:       target.WalletID,
		Amount:         params.investAmount,
		Priority:       priorityInt,
		Memo:           "precision entry",
		ExpectedOutput: target.InitialPrice,
		Instructions:   instructions,
	})
	elapsed := time.Since(start)

	if err != nil {
		reward := -0.1
		a.recordReward(reward)
		a.updatePolicy(reward, elapsed, params.slippage, params.useMEVProtection, params.investAmount)
		return Result{
			Success:      false,
			InvestAmount: params.investAmount,
			Reward:       reward,
			Diagnostic:   err.Error(),
			Record:       record,
		}, nil
	}

	actualEntryPrice := target.InitialPrice
	if record.ActualOutput != nil {
		actualEntryPrice = *record.ActualOutput
	}

	reward := rewardFor(target.Potential, target.InitialPrice, actualEntryPrice)
	a.recordReward(reward)
	observedSlippage := params.slippage
	if target.InitialPrice > 0 {
		observedSlippage = math.Abs(actualEntryPrice-target.InitialPrice) / target.InitialPrice
	}
	a.updatePolicy(reward, elapsed, observedSlippage, params.useMEVProtection, params.investAmount)
	a.successes++

	if a.feed != nil && target.Pair != "" {
		a.feed.Observe(target.Pair, actualEntryPrice, params.investAmount)
	}

	if a.log != nil {
		a.log.LogPolicyUpdate(ctx, reward, a.policy)
	}

	return Result{
		Success:      true,
		InvestAmount: params.investAmount,
		Reward:       reward,
		Record:       record,
	}, nil
}

// rewardFor shapes the reward: base 1.0 scaled by
// (1+potential), then a bonus/penalty depending on whether the entry price
// beat or missed the initial price, with the min/clamp applied before the
// multiply.
func rewardFor(potential, initialPrice, entryPrice float64) float64 {
	reward := 1.0 * (1 + potential)
	if initialPrice <= 0 {
		return reward
	}
	if entryPrice < initialPrice {
		bonus := 1 + math.Min(1.0, 0.5*(initialPrice/entryPrice-1))
		reward *= bonus
	} else if entryPrice > initialPrice {
		penalty := 1 - math.Min(0.5, 0.3*(entryPrice/initialPrice-1))
		reward *= penalty
	}
	return reward
}

func (a *Agent) recordReward(reward float64) {
	a.rewards = append(a.rewards, reward)
	if len(a.rewards) > maxRewardHistory {
		a.rewards = a.rewards[len(a.rewards)-maxRewardHistory:]
	}
}

// trendSignal is the average of the most recent trendWindow rewards, used
// to balance exploration/exploitation in batch training.
func (a *Agent) trendSignal() float64 {
	if len(a.rewards) == 0 {
		return 0
	}
	window := a.rewards
	if len(window) > trendWindow {
		window = window[len(window)-trendWindow:]
	}
	var sum float64
	for _, r := range window {
		sum += r
	}
	return sum / float64(len(window))
}

// updatePolicy performs one TD3-style, per-component update: each
// component moves toward the observed best direction conditioned on
// {reward sign, execution time, slippage, MEV usage, speed}, keeping every
// component within [0,1].
func (a *Agent) updatePolicy(reward float64, elapsed time.Duration, observedSlippage float64, usedMEV bool, investAmount float64) {
	fast := elapsed < 2*time.Second

	// invest-ratio: move toward the realized invest fraction of cap on a
	// positive reward, away from it on a negative one.
	if a.capUSD > 0 {
		target := investAmount / a.capUSD
		delta := learningRate * (target - a.policy[0])
		if reward < 0 {
			delta = -delta
		}
		a.policy[0] = clamp(a.policy[0]+delta, 0, 1)
	}

	// slippage-tolerance: drift toward the slippage actually observed.
	a.policy[1] = clamp(a.policy[1]+learningRate*(observedSlippage-a.policy[1]), 0, 1)

	// mev-protection-threshold: lower the threshold (so MEV protection turns
	// on more readily) when MEV protection accompanied a positive outcome or
	// its absence accompanied a negative one.
	if usedMEV && reward > 0 {
		a.policy[2] = clamp(a.policy[2]-learningRate*0.05, 0, 1)
	} else if !usedMEV && reward < 0 {
		a.policy[2] = clamp(a.policy[2]-learningRate*0.05, 0, 1)
	}

	// priority-factor: reward fast, successful fills; penalize slow ones.
	if fast && reward > 0 {
		a.policy[3] = clamp(a.policy[3]+learningRate*0.1, 0, 1)
	} else if !fast {
		a.policy[3] = clamp(a.policy[3]-learningRate*0.1, 0, 1)
	}

	// risk-tolerance: track the trend signal, nudging toward more
	// risk-tolerant policy as the trailing average improves.
	trend := a.trendSignal()
	a.policy[4] = clamp(a.policy[4]+learningRate*0.1*clamp(trend, -1, 1), 0, 1)

	// entry-timing: nudge toward immediate entry when fills are fast and
	// rewarding, toward waiting otherwise.
	if fast && reward > 0 {
		a.policy[5] = clamp(a.policy[5]-learningRate*0.1, 0, 1)
	} else {
		a.policy[5] = clamp(a.policy[5]+learningRate*0.1, 0, 1)
	}
}

func buildEntryInstructions(target Target, params entryParams) []txengine.Instruction {
	instructions := []txengine.Instruction{
		{Program: "swap:entry", Data: []byte(target.TokenAddress)},
	}
	if params.useMEVProtection {
		instructions = append([]txengine.Instruction{{Program: "mev-pad", Data: nil}}, instructions...)
		instructions = append(instructions, txengine.Instruction{Program: "mev-pad", Data: nil})
	}
	return instructions
}

// Tick is the cooperative unit of work the Supervisor drives; precision
// entry is purely reactive to Enter calls, so tick is a no-op.
func (a *Agent) Tick(ctx context.Context) error { return nil }

// Name identifies this agent in the Supervisor's health snapshot.
func (a *Agent) Name() string { return "precision-entry" }

// ExecutionStats reports execution/success counters for the Supervisor's
// health snapshot.
func (a *Agent) ExecutionStats() (executions, successes int) {
	return a.entries, a.successes
}
