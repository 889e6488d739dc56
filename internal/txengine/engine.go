// Package txengine implements the TransactionEngine: the sole path through
// which on-chain state changes, converting instruction lists into signed
// transactions, submitting them via an RPC client mediated by the
// RateGovernor, and tracking their lifecycle through a compensating saga
// (see saga.go).
package txengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/r3e-network/flashcore/internal/errs"
	"github.com/r3e-network/flashcore/internal/logging"
	"github.com/r3e-network/flashcore/internal/ratelimit"
	"github.com/r3e-network/flashcore/internal/wallet"
)

// Status is a TransactionRecord's position in the state machine described
// below.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSubmitted Status = "submitted"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// DefaultMaxRetries is the default retry budget for a failed record.
const DefaultMaxRetries = 3

// Instruction is one opaque, chain-specific program invocation. The engine
// treats its contents as bytes to be signed and submitted, not interpreted.
type Instruction struct {
	Program string
	Data    []byte
}

// ExecuteParams describes a transaction to build, sign, and submit.
type ExecuteParams struct {
	Type            string
	WalletID        string
	Amount          float64
	Priority        int // 0-100, mapped to a RateGovernor admission class
	Memo            string
	VerifyRealFunds bool
	ExpectedOutput  float64
	Instructions    []Instruction
}

// Record is a TransactionRecord: the engine's durable-in-memory view of one
// submitted (or attempted) transaction.
type Record struct {
	ID             string
	WalletID       string
	Type           string
	Status         Status
	Amount         float64
	ExpectedOutput float64
	ActualOutput   *float64
	Fee            float64
	Profit         *float64
	Signature      string
	Memo           string
	RetryCount     int
	Metadata       map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RPCClient is the chain RPC surface the engine drives. Submit returns a
// signature; Confirm blocks (briefly) until the chain acknowledges the
// transaction, reporting the realized fee and, when known, the actual
// output amount.
type RPCClient interface {
	Submit(ctx context.Context, signedTx []byte) (signature string, err error)
	Confirm(ctx context.Context, signature string) (fee float64, actualOutput *float64, err error)
	Balance(ctx context.Context, address string) (float64, error)
}

// mapPriority converts a 0-100 execution priority into a RateGovernor
// admission class: >=80 Critical, >=50 High, >=20 Medium,
// else Low.
func mapPriority(p int) ratelimit.Priority {
	switch {
	case p >= 80:
		return ratelimit.Critical
	case p >= 50:
		return ratelimit.High
	case p >= 20:
		return ratelimit.Medium
	default:
		return ratelimit.Low
	}
}

// Engine is the TransactionEngine.
type Engine struct {
	wallets  *wallet.Store
	governor *ratelimit.Governor
	rpc      RPCClient
	log      *logging.Logger

	registeredMu sync.RWMutex
	registered   map[string]bool

	recordsMu sync.Mutex
	records   map[string]*Record

	fanout chan struct{}

	maxRetries int
}

// New constructs an Engine. fanout bounds concurrent in-flight submissions
// to 8.
func New(wallets *wallet.Store, governor *ratelimit.Governor, rpc RPCClient, log *logging.Logger) *Engine {
	return &Engine{
		wallets:    wallets,
		governor:   governor,
		rpc:        rpc,
		log:        log,
		registered: make(map[string]bool),
		records:    make(map[string]*Record),
		fanout:     make(chan struct{}, 8),
		maxRetries: DefaultMaxRetries,
	}
}

// RegisterWallet idempotently admits address into the registered set.
// Exclusive: blocks concurrent reads for its duration, per the
// reader/writer discipline.
func (e *Engine) RegisterWallet(address string) {
	e.registeredMu.Lock()
	defer e.registeredMu.Unlock()
	e.registered[address] = true
}

func (e *Engine) isRegistered(address string) bool {
	e.registeredMu.RLock()
	defer e.registeredMu.RUnlock()
	return e.registered[address]
}

// Registered returns the count of registered wallet addresses.
func (e *Engine) Registered() int {
	e.registeredMu.RLock()
	defer e.registeredMu.RUnlock()
	return len(e.registered)
}

// Count returns the number of TransactionRecords tracked (any status).
func (e *Engine) Count() int {
	e.recordsMu.Lock()
	defer e.recordsMu.Unlock()
	return len(e.records)
}

// Balance queries the RPC client for wallet's balance.
func (e *Engine) Balance(ctx context.Context, walletAddress string) (float64, error) {
	if e.rpc == nil {
		return 0, errs.NotInitialized()
	}
	bal, err := e.rpc.Balance(ctx, walletAddress)
	if err != nil {
		return 0, errs.RPCUnavailable(err)
	}
	return bal, nil
}

// Execute builds, signs, submits, and confirms a transaction. It is
// blocking in the synchronous sense but never suspends on the RateGovernor:
// admission is checked once and denial is returned synchronously as a
// rate-limited error, not a retry.
func (e *Engine) Execute(ctx context.Context, params ExecuteParams) (*Record, error) {
	if e.rpc == nil || e.wallets == nil || e.governor == nil {
		return nil, errs.NotInitialized()
	}
	if params.WalletID == "" {
		return nil, errs.InvalidParams("wallet id is required")
	}

	ref, ok := e.wallets.Get(params.WalletID)
	if !ok {
		return nil, errs.WalletNotRegistered(params.WalletID)
	}
	if !e.isRegistered(ref.Address) {
		return nil, errs.WalletNotRegistered(ref.Address)
	}

	priority := mapPriority(params.Priority)
	if !e.governor.Check(priority) {
		return nil, errs.RateLimitDenied(priority.String(), "next-window-reset")
	}

	now := time.Now().UTC()
	record := &Record{
		ID:             uuid.NewString(),
		WalletID:       params.WalletID,
		Type:           params.Type,
		Status:         StatusPending,
		Amount:         params.Amount,
		ExpectedOutput: params.ExpectedOutput,
		Memo:           params.Memo,
		Metadata:       map[string]any{"execution_priority": params.Priority},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	e.storeRecord(record)

	select {
	case e.fanout <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-e.fanout }()

	var signedTx []byte
	var signature string

	s := newSaga(e.log)
	s.addStep("build", func(ctx context.Context) error {
		signedTx = buildTransaction(ref.Address, params)
		return nil
	}, nil)
	s.addStep("sign", func(ctx context.Context) error {
		signer, err := e.wallets.SignWith(params.WalletID)
		if err != nil {
			return err
		}
		sig, err := signer.Sign(signedTx)
		if err != nil {
			return err
		}
		signedTx = append(signedTx, sig...)
		return nil
	}, nil)
	s.addStep("submit", func(ctx context.Context) error {
		sig, err := e.rpc.Submit(ctx, signedTx)
		if err != nil {
			return err
		}
		signature = sig
		e.transition(record, StatusSubmitted, func(r *Record) { r.Signature = sig })
		return nil
	}, func(ctx context.Context) error {
		e.transition(record, StatusFailed, nil)
		return nil
	})
	s.addStep("await-ack", func(ctx context.Context) error {
		fee, actualOutput, err := e.rpc.Confirm(ctx, signature)
		if err != nil {
			return err
		}
		e.transition(record, StatusConfirmed, func(r *Record) {
			r.Fee = fee
			r.ActualOutput = actualOutput
			if actualOutput != nil {
				profit := *actualOutput - r.ExpectedOutput - fee
				r.Profit = &profit
			}
		})
		return nil
	}, nil)

	if err := s.run(ctx); err != nil {
		e.transition(record, StatusFailed, nil)
		e.governor.Record(priority, false)
		if e.log != nil {
			e.log.LogTransaction(ctx, record.ID, string(StatusFailed), err)
		}
		return record, errs.TransactionFailed(err.Error())
	}

	e.governor.Record(priority, true)
	if e.log != nil {
		e.log.LogTransaction(ctx, record.ID, string(StatusConfirmed), nil)
	}
	return record, nil
}

// Retry re-enters a failed record into pending, if its retry budget
// permits. The engine never retries automatically: the calling agent
// decides.
func (e *Engine) Retry(ctx context.Context, recordID string, params ExecuteParams) (*Record, error) {
	e.recordsMu.Lock()
	existing, ok := e.records[recordID]
	e.recordsMu.Unlock()
	if !ok {
		return nil, errs.InvalidParams(fmt.Sprintf("unknown record %q", recordID))
	}
	if existing.Status != StatusFailed {
		return nil, errs.InvalidParams("only failed records are eligible for retry")
	}
	if existing.RetryCount >= e.maxRetries {
		return nil, errs.InvalidParams("retry budget exhausted")
	}

	e.transition(existing, StatusPending, func(r *Record) { r.RetryCount++ })
	return e.Execute(ctx, params)
}

// Cancel transitions a pending record to cancelled.
func (e *Engine) Cancel(recordID string) error {
	e.recordsMu.Lock()
	defer e.recordsMu.Unlock()
	record, ok := e.records[recordID]
	if !ok {
		return errs.InvalidParams(fmt.Sprintf("unknown record %q", recordID))
	}
	if record.Status != StatusPending {
		return errs.InvalidParams("only pending records may be cancelled")
	}
	record.Status = StatusCancelled
	record.UpdatedAt = time.Now().UTC()
	return nil
}

func (e *Engine) storeRecord(record *Record) {
	e.recordsMu.Lock()
	defer e.recordsMu.Unlock()
	e.records[record.ID] = record
}

func (e *Engine) transition(record *Record, status Status, mutate func(*Record)) {
	e.recordsMu.Lock()
	defer e.recordsMu.Unlock()
	record.Status = status
	if mutate != nil {
		mutate(record)
	}
	record.UpdatedAt = time.Now().UTC()
}

// buildTransaction serializes params into an unsigned wire payload. The
// chain's actual instruction-encoding format is out of scope here; the
// engine treats it as opaque bytes to be signed and submitted.
func buildTransaction(fromAddress string, params ExecuteParams) []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, []byte(fromAddress)...)
	buf = append(buf, 0)
	buf = append(buf, []byte(params.Type)...)
	buf = append(buf, 0)
	buf = append(buf, []byte(params.Memo)...)
	for _, instr := range params.Instructions {
		buf = append(buf, []byte(instr.Program)...)
		buf = append(buf, instr.Data...)
	}
	return buf
}
