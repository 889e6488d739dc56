// Command orchestrator is the flashcore process entrypoint: it wires the
// wallet store, rate governor, transaction engine, strategy population,
// ledger, market-data feed, and the three trading agents behind the
// supervisor, then serves the diagnostic HTTP surface until a termination
// signal arrives.
package main

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/r3e-network/flashcore/internal/agents/crosschain"
	"github.com/r3e-network/flashcore/internal/agents/flasharb"
	"github.com/r3e-network/flashcore/internal/agents/precisionentry"
	"github.com/r3e-network/flashcore/internal/config"
	"github.com/r3e-network/flashcore/internal/httpapi"
	"github.com/r3e-network/flashcore/internal/ledger"
	"github.com/r3e-network/flashcore/internal/logging"
	"github.com/r3e-network/flashcore/internal/marketdata"
	"github.com/r3e-network/flashcore/internal/metrics"
	"github.com/r3e-network/flashcore/internal/population"
	"github.com/r3e-network/flashcore/internal/ratelimit"
	"github.com/r3e-network/flashcore/internal/rpcclient"
	"github.com/r3e-network/flashcore/internal/scheduler"
	"github.com/r3e-network/flashcore/internal/supervisor"
	"github.com/r3e-network/flashcore/internal/txengine"
	"github.com/r3e-network/flashcore/internal/wallet"
)

const (
	startupProbeTimeout = 5 * time.Second
	shutdownTimeout     = 10 * time.Second
	supervisorSchedule  = "*/5 * * * * *" // every 5 seconds
)

func main() {
	cfg := config.Load()
	log := logging.New("flashcore", cfg.LogLevel, cfg.LogFormat)

	masterKey, err := decodeMasterKey(cfg.WalletMasterKey)
	if err != nil {
		log.Fatalf("decode wallet master key: %v", err)
	}

	walletStore, err := wallet.New(cfg.WalletDir, masterKey, log)
	if err != nil {
		log.Fatalf("open wallet store: %v", err)
	}

	governor := ratelimit.New(ratelimit.Config{DailyLimit: cfg.RPCDailyLimit})

	if cfg.SolanaRPCURL == "" {
		log.Fatalf("initialize rpc client: SOLANA_RPC_URL is not configured")
	}
	rpc, err := rpcclient.New(rpcclient.Config{Endpoint: cfg.SolanaRPCURL})
	if err != nil {
		log.Fatalf("initialize rpc client: %v", err)
	}
	probeCtx, cancelProbe := context.WithTimeout(context.Background(), startupProbeTimeout)
	defer cancelProbe()
	if err := rpc.Ping(probeCtx); err != nil {
		log.Fatalf("rpc endpoint unreachable at startup: %v", err)
	}

	engine := txengine.New(walletStore, governor, rpc, log)

	pop := population.New(population.DefaultCap, nil)
	ledg := ledger.New()
	feed := marketdata.New(governor)

	systemWalletAddress := ensureSystemWallet(walletStore, cfg.SystemWallet, log)
	if systemWalletAddress != "" {
		engine.RegisterWallet(systemWalletAddress)
	}

	flashArb := flasharb.New(engine, pop, ledg, feed, log)
	precisionEntry := precisionentry.New(engine, nil, 1_000_000_000, feed, log)
	crossChain := crosschain.New(engine, crosschain.DefaultThresholds(), false, feed, log)

	sched := scheduler.New(log)
	sup := supervisor.New(engine, pop, ledg, governor, sched)
	sup.SetMarketData(feed)
	sup.Register(flashArb)
	sup.Register(precisionEntry)
	sup.Register(crossChain)
	sup.Activate(flashArb.Name())
	sup.Activate(precisionEntry.Name())
	sup.Activate(crossChain.Name())

	ctx := context.Background()
	if err := sup.Start(ctx, supervisorSchedule); err != nil {
		log.Fatalf("start supervisor: %v", err)
	}

	reportStop := make(chan struct{})
	if cfg.MetricsEnabled {
		metricsCollector := metrics.New("flashcore", "dev")
		go reportMetrics(metricsCollector, sup, reportStop)
	}

	router := httpapi.NewRouter(sup, httpapi.RPCConfig{
		RPCURL:  cfg.SolanaRPCURL,
		APIKey:  cfg.WormholeAPIKey,
		Network: "mainnet-beta",
	}, cfg.MetricsEnabled)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	go func() {
		log.Infof("flashcore listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	close(reportStop)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("http server shutdown: %v", err)
	}
	if err := sup.Stop(shutdownCtx); err != nil {
		log.Errorf("supervisor shutdown: %v", err)
	}
}

// reportMetrics periodically mirrors the supervisor's health snapshot into
// the Prometheus gauges until stop is closed.
func reportMetrics(m *metrics.Metrics, sup *supervisor.Supervisor, stop <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			snap := sup.Snapshot()
			m.SetPopulationSize(snap.PopulationSize)
			m.SetRealizedProfit(snap.TotalRealizedProfit)
			m.SetCooldownActive("rpc", snap.RateGovernor.CooldownActive)
		}
	}
}

// decodeMasterKey accepts the wallet master key as base64 or hex, requiring
// exactly 32 decoded bytes either way. An empty key is a configuration
// error (the fatal exit-code-1 path in main).
func decodeMasterKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("WALLET_MASTER_KEY is required")
	}
	if key, err := base64.StdEncoding.DecodeString(raw); err == nil && len(key) == 32 {
		return key, nil
	}
	if key, err := hex.DecodeString(raw); err == nil && len(key) == 32 {
		return key, nil
	}
	return nil, fmt.Errorf("WALLET_MASTER_KEY must decode to 32 bytes (base64 or hex)")
}

// ensureSystemWallet registers the configured system wallet id as a known
// wallet if it isn't already tracked, and returns its signing address — the
// identifier the engine's admission check keys on, distinct from the
// wallet's own id.
func ensureSystemWallet(store *wallet.Store, id string, log *logging.Logger) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if ref, ok := store.Get(id); ok {
		return ref.Address
	}
	ref, err := store.Create(id, "system", wallet.PurposeTrading)
	if err != nil {
		log.Warnf("register system wallet %s: %v", id, err)
		return ""
	}
	return ref.Address
}
