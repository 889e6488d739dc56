package flasharb

import (
	"context"
	"math"
	"testing"

	"github.com/r3e-network/flashcore/internal/ledger"
	"github.com/r3e-network/flashcore/internal/population"
	"github.com/r3e-network/flashcore/internal/ratelimit"
	"github.com/r3e-network/flashcore/internal/txengine"
	"github.com/r3e-network/flashcore/internal/wallet"
)

type fakeRPC struct {
	output *float64
}

func (f *fakeRPC) Submit(ctx context.Context, signedTx []byte) (string, error) { return "sig", nil }

func (f *fakeRPC) Confirm(ctx context.Context, signature string) (float64, *float64, error) {
	return 0, f.output, nil
}

func (f *fakeRPC) Balance(ctx context.Context, address string) (float64, error) { return 0, nil }

func newTestAgent(t *testing.T, output *float64) (*Agent, string, *ledger.Ledger) {
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
	engine := txengine.New(store, gov, &fakeRPC{output: output}, nil)
	engine.RegisterWallet(ref.Address)

	pop := population.New(population.DefaultCap, nil)
	l := ledger.New()
	return New(engine, pop, l, nil, nil), "w1", l
}

func approxEqual(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

// Two-leg route, happy path: profit_fraction ~ 0.00551, admitted.
func TestFlashArbHappyPathProfitableRoute(t *testing.T) {
	output := 100551.0
	agent, walletID, l := newTestAgent(t, &output)

	route := Route{
		WalletID:    walletID,
		BorrowedAmt: 100000,
		Legs: []RouteLeg{
			{Venue: "A", Pair: "SOL/USDC", ExpectedPrice: 20.00, ExpectedSlippage: 0.001},
			{Venue: "B", Pair: "SOL/USDC", ExpectedPrice: 20.15, ExpectedSlippage: 0.001},
		},
	}

	result, err := agent.Execute(context.Background(), route)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got diagnostic %q", result.Diagnostic)
	}
	if !approxEqual(result.ProfitFraction, 0.00551, 1e-4) {
		t.Fatalf("expected profit_fraction ~0.00551, got %v", result.ProfitFraction)
	}

	snap := l.Summarize()
	if !approxEqual(snap.Total, 551, 1.0) {
		t.Fatalf("expected ledger total ~551, got %v", snap.Total)
	}
	if !approxEqual(snap.ByVenue["A"], snap.Total/2, 1.0) {
		t.Fatalf("expected venue A credited half the total, got %+v", snap.ByVenue)
	}
}

// Same route but leg-2 price = 20.05; profit_fraction below threshold,
// rejected with the exact diagnostic string.
func TestFlashArbRouteBelowProfitThreshold(t *testing.T) {
	agent, walletID, _ := newTestAgent(t, nil)

	route := Route{
		WalletID:    walletID,
		BorrowedAmt: 100000,
		Legs: []RouteLeg{
			{Venue: "A", Pair: "SOL/USDC", ExpectedPrice: 20.00, ExpectedSlippage: 0.001},
			{Venue: "B", Pair: "SOL/USDC", ExpectedPrice: 20.05, ExpectedSlippage: 0.001},
		},
	}

	result, err := agent.Execute(context.Background(), route)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Success {
		t.Fatalf("expected rejection below threshold")
	}
	want := "Profit 0.050% below threshold 0.5000%"
	if result.Diagnostic != want {
		t.Fatalf("diagnostic = %q, want %q", result.Diagnostic, want)
	}
}

func TestEmptyRouteRejectedWithDiagnostic(t *testing.T) {
	agent, walletID, _ := newTestAgent(t, nil)
	result, err := agent.Execute(context.Background(), Route{WalletID: walletID})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Success {
		t.Fatalf("expected empty route to be rejected")
	}
	if result.Diagnostic == "" {
		t.Fatalf("expected a diagnostic for empty route")
	}
}

func TestCrossChainDiscountsCumulativeSlippage(t *testing.T) {
	withoutCrossChain, _ := profitFraction(Route{
		Legs: []RouteLeg{
			{ExpectedPrice: 20.00, ExpectedSlippage: 0.001},
			{ExpectedPrice: 20.15, ExpectedSlippage: 0.001},
		},
	})
	withCrossChain, _ := profitFraction(Route{
		CrossChain: true,
		Legs: []RouteLeg{
			{ExpectedPrice: 20.00, ExpectedSlippage: 0.001},
			{ExpectedPrice: 20.15, ExpectedSlippage: 0.001},
		},
	})
	if withCrossChain >= withoutCrossChain {
		t.Fatalf("expected cross-chain profit fraction to be discounted: without=%v with=%v", withoutCrossChain, withCrossChain)
	}
}
