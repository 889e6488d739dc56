package crosschain

import (
	"context"
	"testing"
	"time"

	"github.com/r3e-network/flashcore/internal/ratelimit"
	"github.com/r3e-network/flashcore/internal/txengine"
	"github.com/r3e-network/flashcore/internal/wallet"
)

type fakeRPC struct{}

func (fakeRPC) Submit(ctx context.Context, signedTx []byte) (string, error) { return "sig", nil }

func (fakeRPC) Confirm(ctx context.Context, signature string) (float64, *float64, error) {
	return 0, nil, nil
}

func (fakeRPC) Balance(ctx context.Context, address string) (float64, error) { return 0, nil }

func newTestAgent(t *testing.T, dryRun bool) (*Agent, string) {
	t.Helper()
	key := make([]byte, 32)
	store, err := wallet.New(t.TempDir(), key, nil)
	if err != nil {
		t.Fatalf("new wallet store: %v", err)
	}
	ref, err := store.Create("w1", "Wallet 1", wallet.PurposeTrading)
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	gov := ratelimit.New(ratelimit.Config{DailyLimit: 40000})
	engine := txengine.New(store, gov, fakeRPC{}, nil)
	engine.RegisterWallet(ref.Address)

	return New(engine, DefaultThresholds(), dryRun, nil, nil), "w1"
}

func TestValidationFailsWhenInputExceedsSourceLiquidityFraction(t *testing.T) {
	agent, walletID := newTestAgent(t, false)

	opp := Opportunity{
		SourceChain:      "solana",
		DestinationChain: "ethereum",
		Pair:             "SOL/USDC",
		WalletID:         walletID,
		ProfitFraction:   0.015,
		Input:            1000,
		SourceLiquidity:  5000, // 20% of liquidity, exceeds default 10%
		ExpectedOutput:   1015,
		DestLiquidity:    1_000_000,
		EstimatedGas:     1,
		EstimatedProfit:  15,
	}

	exec, err := agent.Execute(context.Background(), opp)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if exec.State != StateFailed {
		t.Fatalf("expected state Failed, got %v", exec.State)
	}

	history := agent.History()
	if len(history) != 1 {
		t.Fatalf("expected one history entry, got %d", len(history))
	}
	key := keyFor(opp)
	agent.mu.Lock()
	hist := agent.failureLog[key]
	agent.mu.Unlock()
	if hist == nil || hist.attempts != 1 || hist.failures != 1 {
		t.Fatalf("expected one recorded failure for key, got %+v", hist)
	}
}

func TestDiscoverDropsExpiredOpportunities(t *testing.T) {
	agent, walletID := newTestAgent(t, false)
	opp := Opportunity{
		WalletID:       walletID,
		ProfitFraction: 0.01,
		Input:          100,
		ValidUntil:     time.Now().Add(-time.Minute),
	}
	if agent.Discover(opp, time.Now()) {
		t.Fatalf("expected expired opportunity to be dropped")
	}
}

func TestDiscoverDropsBelowMinProfitOrOverMaxInput(t *testing.T) {
	agent, walletID := newTestAgent(t, false)
	low := Opportunity{WalletID: walletID, ProfitFraction: 0.001, Input: 100}
	if agent.Discover(low, time.Now()) {
		t.Fatalf("expected below-threshold profit to be dropped")
	}
	big := Opportunity{WalletID: walletID, ProfitFraction: 0.01, Input: 10_000_000}
	if agent.Discover(big, time.Now()) {
		t.Fatalf("expected oversized input to be dropped")
	}
}

func TestDryRunShortCircuitsAtPreparingWithSuccess(t *testing.T) {
	agent, walletID := newTestAgent(t, true)
	opp := Opportunity{
		SourceChain:      "solana",
		DestinationChain: "ethereum",
		Pair:             "SOL/USDC",
		WalletID:         walletID,
		ProfitFraction:   0.01,
		Input:            100,
		SourceLiquidity:  10_000,
		ExpectedOutput:   101,
		DestLiquidity:    10_000,
		EstimatedGas:     0.1,
		EstimatedProfit:  1,
	}
	exec, err := agent.Execute(context.Background(), opp)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if exec.State != StateCompleted {
		t.Fatalf("expected dry-run to complete, got %v", exec.State)
	}
}

func TestExecuteRejectsBeyondMaxConcurrent(t *testing.T) {
	agent, walletID := newTestAgent(t, true)
	agent.inFlight = maxConcurrent

	exec, err := agent.Execute(context.Background(), Opportunity{WalletID: walletID, ProfitFraction: 0.01, Input: 1})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if exec.State != StateFailed {
		t.Fatalf("expected rejection beyond max concurrent executions")
	}
}
