// Package config provides environment-driven configuration for the core.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds process-wide configuration resolved from the environment.
// WalletMasterKey and SolanaRPCURL have no defaults; the orchestrator treats
// the absence of either as a Configuration error, fatal at startup. Every
// other field has a default.
type Config struct {
	SolanaRPCURL   string
	SystemWallet   string
	WormholeAPIKey string
	Port           int

	LogLevel  string
	LogFormat string

	WalletDir       string
	WalletMasterKey string // base64 or hex, 32 bytes decoded

	RPCDailyLimit int
	MetricsEnabled bool
}

// Load reads a .env file if present (ignored if absent) and builds a
// Config from the environment, applying the documented defaults and
// preference order.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		SolanaRPCURL:    resolveRPCURL(),
		SystemWallet:    strings.TrimSpace(os.Getenv("SYSTEM_WALLET")),
		WormholeAPIKey:  strings.TrimSpace(os.Getenv("WORMHOLE_API_KEY")),
		Port:            envInt("PORT", 5000),
		LogLevel:        envString("LOG_LEVEL", "info"),
		LogFormat:       envString("LOG_FORMAT", "json"),
		WalletDir:       envString("WALLET_DIR", "data/wallets"),
		WalletMasterKey: strings.TrimSpace(os.Getenv("WALLET_MASTER_KEY")),
		RPCDailyLimit:   envInt("RPC_DAILY_LIMIT", 40000),
		MetricsEnabled:  envBool("METRICS_ENABLED", true),
	}
	return cfg
}

// resolveRPCURL implements the RPC endpoint preference order: SOLANA_RPC_URL,
// then INSTANT_NODES_RPC_URL, then SOLANA_RPC_API_KEY — last wins only if
// earlier entries are absent.
func resolveRPCURL() string {
	for _, key := range []string{"SOLANA_RPC_URL", "INSTANT_NODES_RPC_URL", "SOLANA_RPC_API_KEY"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
