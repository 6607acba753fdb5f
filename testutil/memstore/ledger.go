// Package memstore provides in-memory repository implementations for
// unit tests. They honor the same store contracts as the PostgreSQL
// repositories: (owner, asset) uniqueness, (type, reference)
// uniqueness and hold updates by ID. Locking is a no-op; lock behavior
// is covered by the integration tests against real row locks.
package memstore

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coinpilot/exchange-ledger/internal/ledger"
)

// LedgerRepo is an in-memory ledger.Repository
type LedgerRepo struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*ledger.Account
	byOwner  map[string]uuid.UUID // ownerID:assetID -> accountID
	entries  map[uuid.UUID]*ledger.Entry
	refs     map[string]bool // type:reference
	lines    []*ledger.Line
	holds    map[uuid.UUID]*ledger.Hold
	counters map[string]int64
}

// NewLedgerRepo creates an empty in-memory ledger repository
func NewLedgerRepo() *LedgerRepo {
	return &LedgerRepo{
		accounts: make(map[uuid.UUID]*ledger.Account),
		byOwner:  make(map[string]uuid.UUID),
		entries:  make(map[uuid.UUID]*ledger.Entry),
		refs:     make(map[string]bool),
		holds:    make(map[uuid.UUID]*ledger.Hold),
		counters: make(map[string]int64),
	}
}

func (r *LedgerRepo) GetOrCreateAccount(ctx context.Context, ownerID uuid.UUID, assetID string) (*ledger.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := ownerID.String() + ":" + assetID
	if id, ok := r.byOwner[key]; ok {
		return r.accounts[id], nil
	}

	account := &ledger.Account{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		AssetID:   assetID,
		CreatedAt: time.Now(),
	}
	r.accounts[account.ID] = account
	r.byOwner[key] = account.ID
	return account, nil
}

func (r *LedgerRepo) GetAccount(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	return account, nil
}

func (r *LedgerRepo) FindAccountsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*ledger.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*ledger.Account
	for _, a := range r.accounts {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *LedgerRepo) LockAccount(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[id]; !ok {
		return ledger.ErrAccountNotFound
	}
	return nil
}

func (r *LedgerRepo) CreateEntry(ctx context.Context, entry *ledger.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.Reference != nil {
		key := entry.Type + ":" + *entry.Reference
		if r.refs[key] {
			return ledger.ErrDuplicateReference
		}
		r.refs[key] = true
	}

	r.entries[entry.ID] = entry
	r.lines = append(r.lines, entry.Lines...)
	return nil
}

func (r *LedgerRepo) GetEntry(ctx context.Context, id uuid.UUID) (*ledger.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return nil, ledger.ErrEntryNotFound
	}
	return entry, nil
}

func (r *LedgerRepo) ListLinesByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*ledger.Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*ledger.Line
	for _, l := range r.lines {
		if l.AccountID == accountID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *LedgerRepo) SumPostedByAccount(ctx context.Context, accountID uuid.UUID, assetID string) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := big.NewInt(0)
	for _, l := range r.lines {
		if l.AccountID == accountID && l.AssetID == assetID {
			sum.Add(sum, l.Amount)
		}
	}
	return sum, nil
}

func (r *LedgerRepo) SumHeldByAccount(ctx context.Context, accountID uuid.UUID, assetID string) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := big.NewInt(0)
	for _, h := range r.holds {
		if h.AccountID == accountID && h.AssetID == assetID && h.Status == ledger.HoldStatusActive {
			sum.Add(sum, h.Remaining)
		}
	}
	return sum, nil
}

func (r *LedgerRepo) CreateHold(ctx context.Context, hold *ledger.Hold) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *hold
	r.holds[hold.ID] = &copied
	return nil
}

func (r *LedgerRepo) GetHold(ctx context.Context, id uuid.UUID) (*ledger.Hold, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hold, ok := r.holds[id]
	if !ok {
		return nil, ledger.ErrHoldNotFound
	}
	copied := *hold
	return &copied, nil
}

func (r *LedgerRepo) GetHoldForUpdate(ctx context.Context, id uuid.UUID) (*ledger.Hold, error) {
	return r.GetHold(ctx, id)
}

func (r *LedgerRepo) UpdateHold(ctx context.Context, hold *ledger.Hold) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.holds[hold.ID]; !ok {
		return ledger.ErrHoldNotFound
	}
	copied := *hold
	r.holds[hold.ID] = &copied
	return nil
}

func (r *LedgerRepo) ListActiveHolds(ctx context.Context, accountID uuid.UUID, assetID string) ([]*ledger.Hold, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*ledger.Hold
	for _, h := range r.holds {
		if h.AccountID == accountID && h.AssetID == assetID && h.Status == ledger.HoldStatusActive {
			copied := *h
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *LedgerRepo) UpsertCounter(ctx context.Context, key string, delta int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[key] += delta
	return r.counters[key], nil
}

func (r *LedgerRepo) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var _ ledger.Repository = (*LedgerRepo)(nil)
