package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("flashcore", "test", reg)

	if m == nil {
		t.Fatal("expected metrics instance, got nil")
	}
	if m.RateLimitDecisionsTotal == nil || m.TransactionsTotal == nil || m.AgentExecutionsTotal == nil {
		t.Fatal("expected core collectors to be non-nil")
	}
}

func TestRecordRateLimitDecisionDoesNotPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("flashcore", "test", reg)
	m.RecordRateLimitDecision("Critical", true)
	m.RecordRateLimitDecision("Medium", false)
}

func TestRecordTransactionAndAgentExecution(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry("flashcore", "test", reg)

	m.RecordTransaction("swap", "confirmed", 250*time.Millisecond)
	m.RecordAgentExecution("flash-arb", true)
	m.RecordAgentExecution("flash-arb", false)
	m.SetRealizedProfit(551.0)
	m.SetPopulationSize(5)
}
