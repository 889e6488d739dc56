// Package errs provides the core's unified, recovery-disposition-tagged
// error taxonomy.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error by recovery disposition, not by Go type.
type Kind string

const (
	KindConfiguration  Kind = "CONFIGURATION"
	KindTransient      Kind = "TRANSIENT_NETWORK"
	KindRateLimited    Kind = "RATE_LIMITED"
	KindValidation     Kind = "VALIDATION"
	KindChainFailure   Kind = "CHAIN_FAILURE"
	KindInvariant      Kind = "LOGIC_INVARIANT"
)

// Code is a stable, category-prefixed identifier for a specific error.
type Code string

const (
	CodeMissingMasterKey    Code = "CFG_1001"
	CodeMalformedAddress    Code = "CFG_1002"
	CodeRPCTimeout          Code = "NET_2001"
	CodeConnectionReset     Code = "NET_2002"
	CodeRateLimitDenied     Code = "RATE_3001"
	CodeRouteEmpty          Code = "VAL_4001"
	CodeRiskTooHigh         Code = "VAL_4002"
	CodeProfitBelowThresh   Code = "VAL_4003"
	CodeInsufficientFunds   Code = "CHAIN_5001"
	CodeSignatureRejected   Code = "CHAIN_5002"
	CodeStrategyNotFound    Code = "INV_6001"
	CodeLedgerOverflow      Code = "INV_6002"
	CodeNotInitialized      Code = "ENG_7001"
	CodeWalletNotRegistered Code = "ENG_7002"
	CodeTransactionFailed   Code = "ENG_7003"
	CodeInvalidParams       Code = "ENG_7004"
	CodeRPCUnavailable      Code = "ENG_7005"
	CodeWalletUnavailable   Code = "WAL_8001"
)

// CoreError is a structured error carrying a recovery Kind, a stable Code,
// a human-readable message, optional structured details, and an optional
// wrapped cause.
type CoreError struct {
	Kind    Kind
	Code    Code
	Message string
	Details map[string]any
	Err     error
}

func (e *CoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s/%s] %s: %v", e.Kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s/%s] %s", e.Kind, e.Code, e.Message)
}

func (e *CoreError) Unwrap() error { return e.Err }

// WithDetails adds a key/value pair to the error's detail map, returning e.
func (e *CoreError) WithDetails(key string, value any) *CoreError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New constructs a CoreError with no wrapped cause.
func New(kind Kind, code Code, message string) *CoreError {
	return &CoreError{Kind: kind, Code: code, Message: message}
}

// Wrap constructs a CoreError wrapping an existing error.
func Wrap(kind Kind, code Code, message string, err error) *CoreError {
	return &CoreError{Kind: kind, Code: code, Message: message, Err: err}
}

// Configuration errors — fatal at startup.

func MissingMasterKey() *CoreError {
	return New(KindConfiguration, CodeMissingMasterKey, "wallet master key is not configured")
}

func MalformedAddress(address string) *CoreError {
	return New(KindConfiguration, CodeMalformedAddress, "malformed wallet address").
		WithDetails("address", address)
}

// Transient network errors — retry per TransactionRecord retry budget.

func RPCTimeout(operation string, err error) *CoreError {
	return Wrap(KindTransient, CodeRPCTimeout, "RPC call timed out", err).
		WithDetails("operation", operation)
}

func ConnectionReset(operation string, err error) *CoreError {
	return Wrap(KindTransient, CodeConnectionReset, "RPC connection reset", err).
		WithDetails("operation", operation)
}

// Rate-limited — back off to the next bucket reset, no retry-counter increment.

func RateLimitDenied(priority string, retryAfter string) *CoreError {
	return New(KindRateLimited, CodeRateLimitDenied, "rate governor denied admission").
		WithDetails("priority", priority).
		WithDetails("retry_after", retryAfter)
}

// Validation — reject synchronously, never counts against retry budget.

func RouteEmpty() *CoreError {
	return New(KindValidation, CodeRouteEmpty, "route has no legs")
}

func RiskTooHigh(score float64, threshold float64) *CoreError {
	return New(KindValidation, CodeRiskTooHigh, "Token risk score exceeds threshold").
		WithDetails("risk_score", score).
		WithDetails("threshold", threshold)
}

func ProfitBelowThreshold(fraction, threshold float64) *CoreError {
	return New(KindValidation, CodeProfitBelowThresh,
		fmt.Sprintf("Profit %.3f%% below threshold %.4f%%", fraction*100, threshold*100)).
		WithDetails("profit_fraction", fraction).
		WithDetails("threshold", threshold)
}

// Chain-level failure — terminal for that record, no automatic retry.

func InsufficientFunds(required, available float64) *CoreError {
	return New(KindChainFailure, CodeInsufficientFunds, "insufficient funds").
		WithDetails("required", required).
		WithDetails("available", available)
}

func SignatureRejected(reason string) *CoreError {
	return New(KindChainFailure, CodeSignatureRejected, "chain rejected signature").
		WithDetails("reason", reason)
}

// Logic invariant violation — log, leave state unchanged, never panic.

func StrategyNotFound(id string) *CoreError {
	return New(KindInvariant, CodeStrategyNotFound, "strategy id not present in population").
		WithDetails("strategy_id", id)
}

func LedgerOverflow(detail string) *CoreError {
	return New(KindInvariant, CodeLedgerOverflow, "profit attribution overflow").
		WithDetails("detail", detail)
}

// Transaction engine failure surface.

func NotInitialized() *CoreError {
	return New(KindInvariant, CodeNotInitialized, "transaction engine not initialized")
}

func WalletNotRegistered(address string) *CoreError {
	return New(KindValidation, CodeWalletNotRegistered, "wallet not registered").
		WithDetails("address", address)
}

func TransactionFailed(reason string) *CoreError {
	return New(KindChainFailure, CodeTransactionFailed, "transaction failed").
		WithDetails("reason", reason)
}

func InvalidParams(reason string) *CoreError {
	return New(KindValidation, CodeInvalidParams, "invalid transaction parameters").
		WithDetails("reason", reason)
}

func RPCUnavailable(err error) *CoreError {
	return Wrap(KindTransient, CodeRPCUnavailable, "rpc client unavailable", err)
}

// Wallet store failure surface.

func WalletUnavailable(id string, err error) *CoreError {
	return Wrap(KindInvariant, CodeWalletUnavailable, "wallet signer unavailable", err).
		WithDetails("wallet_id", id)
}

// As extracts a *CoreError from an error chain, if present.
func As(err error) (*CoreError, bool) {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsKind reports whether err is a CoreError of the given Kind.
func IsKind(err error, kind Kind) bool {
	ce, ok := As(err)
	return ok && ce.Kind == kind
}
