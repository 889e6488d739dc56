package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/r3e-network/flashcore/internal/ledger"
	"github.com/r3e-network/flashcore/internal/population"
	"github.com/r3e-network/flashcore/internal/ratelimit"
	"github.com/r3e-network/flashcore/internal/supervisor"
)

func TestHealthEndpointReportsOK(t *testing.T) {
	router := NewRouter(nil, RPCConfig{}, false)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %q", body["status"])
	}
}

func TestSolanaStatusReflectsConfiguredRPC(t *testing.T) {
	router := NewRouter(nil, RPCConfig{RPCURL: "https://rpc.example", APIKey: "key", Network: "mainnet-beta"}, false)
	req := httptest.NewRequest(http.MethodGet, "/api/solana/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var status SolanaStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !status.CustomRPC || !status.APIKey || status.Network != "mainnet-beta" {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestAgentsEndpointReturnsEmptyArrayWithoutSupervisor(t *testing.T) {
	router := NewRouter(nil, RPCConfig{}, false)
	req := httptest.NewRequest(http.MethodGet, "/api/agents", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var agents []agentSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &agents); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(agents) != 0 {
		t.Fatalf("expected empty agents array, got %v", agents)
	}
}

func TestAgentsEndpointReflectsSupervisorSnapshot(t *testing.T) {
	gov := ratelimit.New(ratelimit.Config{DailyLimit: 40000})
	pop := population.New(population.DefaultCap, nil)
	l := ledger.New()
	sup := supervisor.New(nil, pop, l, gov, nil)

	router := NewRouter(sup, RPCConfig{}, false)
	req := httptest.NewRequest(http.MethodGet, "/api/agents", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var agents []agentSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &agents); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if agents == nil {
		t.Fatalf("expected a (possibly empty) JSON array, got null")
	}
}
