// Package httpapi exposes the core's diagnostic HTTP surface: health,
// Solana RPC configuration status, and an agent snapshot feed. This is a
// collaborator surface, not core trading logic.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/r3e-network/flashcore/internal/supervisor"
)

// SolanaStatus reports the resolved RPC configuration.
type SolanaStatus struct {
	Status    string `json:"status"`
	CustomRPC bool   `json:"customRpc"`
	APIKey    bool   `json:"apiKey"`
	Network   string `json:"network"`
	Timestamp string `json:"timestamp"`
}

// RPCConfig is the subset of resolved environment the status endpoint
// reports on, without ever echoing the raw URL or key.
type RPCConfig struct {
	RPCURL  string
	APIKey  string
	Network string
}

// NewRouter builds the diagnostic router, wiring the Supervisor's health
// snapshot and the resolved RPC configuration into their respective
// endpoints.
func NewRouter(sup *supervisor.Supervisor, rpcConfig RPCConfig, exposeMetrics bool) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/api/health", healthHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/solana/status", solanaStatusHandler(rpcConfig)).Methods(http.MethodGet)
	router.HandleFunc("/api/agents", agentsHandler(sup)).Methods(http.MethodGet)
	if exposeMetrics {
		router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
	return router
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func solanaStatusHandler(cfg RPCConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		if cfg.RPCURL == "" {
			status = "unconfigured"
		}
		writeJSON(w, http.StatusOK, SolanaStatus{
			Status:    status,
			CustomRPC: cfg.RPCURL != "",
			APIKey:    cfg.APIKey != "",
			Network:   cfg.Network,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// agentSummary is one row of the /api/agents response.
type agentSummary struct {
	Name       string `json:"name"`
	Active     bool   `json:"active"`
	Executions int    `json:"executions"`
	Successes  int    `json:"successes"`
}

func agentsHandler(sup *supervisor.Supervisor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sup == nil {
			writeJSON(w, http.StatusOK, []agentSummary{})
			return
		}
		snap := sup.Snapshot()
		out := make([]agentSummary, 0, len(snap.Agents))
		for _, a := range snap.Agents {
			out = append(out, agentSummary{
				Name:       a.Name,
				Active:     a.Active,
				Executions: a.Executions,
				Successes:  a.Successes,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}
