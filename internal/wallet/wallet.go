// Package wallet implements the WalletStore: durable, encrypted custody of
// signing keys with fast in-memory retrieval after a one-time decryption,
// persisted as one JSON file per wallet rather than a database-backed
// keystore.
package wallet

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/r3e-network/flashcore/internal/crypto"
	"github.com/r3e-network/flashcore/internal/errs"
	"github.com/r3e-network/flashcore/internal/logging"
)

// Purpose is the closed set of reasons a wallet exists, mirroring the
// original Rust wallet_manager.rs's WalletType.
type Purpose string

const (
	PurposeTrading          Purpose = "Trading"
	PurposeProfitCollection Purpose = "ProfitCollection"
	PurposeFee              Purpose = "Fee"
	PurposeContract         Purpose = "Contract"
	PurposeTemporary        Purpose = "Temporary"
)

// Ref is a named signing identity whose public material is safe to share.
type Ref struct {
	ID          string             `json:"id"`
	DisplayName string             `json:"display_name"`
	Address     string             `json:"address"`
	Purpose     Purpose            `json:"purpose"`
	Balances    map[string]float64 `json:"balances"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Signer signs arbitrary payloads with a wallet's cached private key.
type Signer interface {
	PublicKey() string
	Sign(message []byte) ([]byte, error)
}

type signer struct {
	address string
	priv    ed25519.PrivateKey
}

func (s *signer) PublicKey() string { return s.address }

func (s *signer) Sign(message []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, message), nil
}

// record is the on-disk, one-file-per-wallet representation.
type record struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Address     string    `json:"address"`
	Purpose     Purpose   `json:"purpose"`
	Ciphertext  string    `json:"ciphertext"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const walletKeyInfo = "wallet-secret"

// Store is the WalletStore: it durably persists encrypted signing keys and
// caches decrypted signers in memory.
type Store struct {
	mu        sync.RWMutex
	dir       string
	masterKey []byte
	log       *logging.Logger

	refs    map[string]*Ref
	signers map[string]Signer
}

// New constructs a Store rooted at dir, loading any wallet files already
// present. masterKey must be exactly 32 bytes; construction fails otherwise,
// per the "store fails construction if it is absent" rule.
func New(dir string, masterKey []byte, log *logging.Logger) (*Store, error) {
	if len(masterKey) != 32 {
		return nil, errs.MissingMasterKey()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create wallet dir: %w", err)
	}

	s := &Store{
		dir:       dir,
		masterKey: masterKey,
		log:       log,
		refs:      make(map[string]*Ref),
		signers:   make(map[string]Signer),
	}
	s.loadAll()
	return s, nil
}

// loadAll reads every *.json file in dir. A corrupt file is logged and
// skipped, not fatal.
func (s *Store) loadAll() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			if s.log != nil {
				s.log.WithFields(map[string]interface{}{"path": path, "error": err}).Warn("skipping unreadable wallet file")
			}
			continue
		}
		var rec record
		if err := json.Unmarshal(data, &rec); err != nil {
			if s.log != nil {
				s.log.WithFields(map[string]interface{}{"path": path, "error": err}).Warn("skipping corrupt wallet file")
			}
			continue
		}
		s.refs[rec.ID] = &Ref{
			ID:          rec.ID,
			DisplayName: rec.DisplayName,
			Address:     rec.Address,
			Purpose:     rec.Purpose,
			Balances:    make(map[string]float64),
			CreatedAt:   rec.CreatedAt,
			UpdatedAt:   rec.UpdatedAt,
		}
	}
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Create generates a fresh keypair, encrypts it, persists it, and caches it.
func (s *Store) Create(id, name string, purpose Purpose) (*Ref, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.refs[id]; exists {
		return nil, errs.InvalidParams(fmt.Sprintf("wallet %q already exists", id))
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	address := base64.RawURLEncoding.EncodeToString(pub)

	ciphertext, err := crypto.EncryptEnvelope(s.masterKey, []byte(id), walletKeyInfo, priv)
	if err != nil {
		return nil, fmt.Errorf("encrypt wallet secret: %w", err)
	}

	now := time.Now().UTC()
	rec := record{
		ID:          id,
		DisplayName: name,
		Address:     address,
		Purpose:     purpose,
		Ciphertext:  string(ciphertext),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.persist(rec); err != nil {
		return nil, err
	}

	ref := &Ref{
		ID:          id,
		DisplayName: name,
		Address:     address,
		Purpose:     purpose,
		Balances:    make(map[string]float64),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.refs[id] = ref
	s.signers[id] = &signer{address: address, priv: priv}

	return cloneRef(ref), nil
}

func (s *Store) persist(rec record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal wallet record: %w", err)
	}
	if err := os.WriteFile(s.path(rec.ID), data, 0o600); err != nil {
		return fmt.Errorf("write wallet record: %w", err)
	}
	return nil
}

// Get returns the cached WalletRef for id.
func (s *Store) Get(id string) (*Ref, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.refs[id]
	if !ok {
		return nil, false
	}
	return cloneRef(ref), true
}

// List returns a snapshot of every known WalletRef.
func (s *Store) List() []*Ref {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Ref, 0, len(s.refs))
	for _, ref := range s.refs {
		out = append(out, cloneRef(ref))
	}
	return out
}

// SignWith returns a signer handle for id, decrypting the secret on first
// use and caching it thereafter. Fails with WalletUnavailable if decryption
// does not match the expected address.
func (s *Store) SignWith(id string) (Signer, error) {
	s.mu.RLock()
	if cached, ok := s.signers[id]; ok {
		s.mu.RUnlock()
		return cached, nil
	}
	ref, ok := s.refs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, errs.WalletUnavailable(id, nil)
	}

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, errs.WalletUnavailable(id, err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errs.WalletUnavailable(id, err)
	}

	priv, err := crypto.DecryptEnvelope(s.masterKey, []byte(id), walletKeyInfo, []byte(rec.Ciphertext))
	if err != nil {
		return nil, errs.WalletUnavailable(id, err)
	}
	key := ed25519.PrivateKey(priv)
	address := base64.RawURLEncoding.EncodeToString(key.Public().(ed25519.PublicKey))
	if address != ref.Address {
		return nil, errs.WalletUnavailable(id, fmt.Errorf("decrypted key does not match recorded address"))
	}

	sgn := &signer{address: address, priv: key}
	s.mu.Lock()
	s.signers[id] = sgn
	s.mu.Unlock()

	return sgn, nil
}

// Delete removes the persisted record and cached signer for id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.refs[id]; !ok {
		return errs.WalletUnavailable(id, nil)
	}
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove wallet file: %w", err)
	}
	delete(s.refs, id)
	delete(s.signers, id)
	return nil
}

// UpdateBalance sets balance[token] for wallet id. The TransactionEngine
// does not call it; balances change only through explicit calls.
func (s *Store) UpdateBalance(ctx context.Context, id, token string, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.refs[id]
	if !ok {
		return errs.WalletUnavailable(id, nil)
	}
	ref.Balances[token] = amount
	ref.UpdatedAt = time.Now().UTC()
	return nil
}

func cloneRef(ref *Ref) *Ref {
	out := *ref
	out.Balances = make(map[string]float64, len(ref.Balances))
	for k, v := range ref.Balances {
		out.Balances[k] = v
	}
	return &out
}
