package ledger

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/coinpilot/exchange-ledger/pkg/logger"
	"github.com/coinpilot/exchange-ledger/pkg/money"
)

// Service orchestrates the ledger and hold operations. It is the only
// write path into the journal: every money-moving feature goes through
// PostEntry/CreateHold/ConsumeHold/ReleaseHold.
//
// All coordination happens through the store's row-level locks inside the
// context-carried transaction, never through in-process state, so multiple
// service instances can run safely against the same database.
type Service struct {
	repo Repository
	log  *logger.Logger
}

// NewService creates a new ledger service
func NewService(repo Repository, log *logger.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log,
	}
}

// InTx runs fn inside a single database transaction. Adapters use it to
// compose consume-then-post sequences atomically.
func (s *Service) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.repo.InTx(ctx, fn)
}

// EnsureAccount returns the account for (owner, asset), creating it on
// first use. Safe to call concurrently: creation is an atomic
// insert-or-return-existing upsert.
func (s *Service) EnsureAccount(ctx context.Context, ownerID uuid.UUID, assetID string) (*Account, error) {
	if ownerID == uuid.Nil {
		return nil, ErrInvalidOwnerID
	}
	if assetID == "" {
		return nil, ErrInvalidAssetID
	}
	return s.repo.GetOrCreateAccount(ctx, ownerID, assetID)
}

// GetAccount retrieves an account by ID
func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.repo.GetAccount(ctx, id)
}

// FindAccountsByOwner lists all accounts of an owner
func (s *Service) FindAccountsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Account, error) {
	return s.repo.FindAccountsByOwner(ctx, ownerID)
}

// PostEntry appends an immutable journal entry.
//
// The per-asset zero-sum check runs before any transaction opens; an
// imbalance is a caller bug and is logged as a critical invariant
// violation. Inside the transaction all involved accounts are locked in a
// stable order, availability is recomputed under the lock for every
// account the entry debits, and the entry plus lines are written
// atomically. A violated (type, reference) uniqueness constraint surfaces
// as ErrDuplicateReference.
func (s *Service) PostEntry(ctx context.Context, entryType string, reference *string, metadata map[string]interface{}, lines []LineInput) (*Entry, error) {
	entry := &Entry{
		ID:        uuid.New(),
		Type:      entryType,
		Reference: reference,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
		Lines:     make([]*Line, 0, len(lines)),
	}
	for _, in := range lines {
		entry.Lines = append(entry.Lines, &Line{
			ID:        uuid.New(),
			EntryID:   entry.ID,
			AccountID: in.AccountID,
			AssetID:   in.AssetID,
			Amount:    in.Amount,
		})
	}

	if err := entry.Validate(); err != nil {
		if err == ErrEntryImbalance {
			s.log.WithContext(ctx).Error("journal entry does not balance",
				"entry_type", entryType,
				"lines", len(lines),
			)
		}
		return nil, err
	}

	err := s.repo.InTx(ctx, func(txCtx context.Context) error {
		deltas := s.netDeltas(entry)

		if err := s.lockAccounts(txCtx, deltas); err != nil {
			return err
		}

		for _, d := range deltas {
			if d.change.Sign() >= 0 {
				continue
			}
			account, err := s.repo.GetAccount(txCtx, d.accountID)
			if err != nil {
				return err
			}
			// System accounts mirror externally custodied value and may
			// run a deficit; only user balances are guarded.
			if IsSystemOwner(account.OwnerID) {
				continue
			}
			available, err := s.availableLocked(txCtx, d.accountID, d.assetID)
			if err != nil {
				return err
			}
			requested := new(big.Int).Neg(d.change)
			if requested.Cmp(available) > 0 {
				return &InsufficientBalanceError{Available: available, Requested: requested}
			}
		}

		return s.repo.CreateEntry(txCtx, entry)
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// CreateHold reserves amount against the account's available balance.
// The account row lock serializes concurrent reservations: of two
// concurrent holds that jointly exceed available, exactly one succeeds.
func (s *Service) CreateHold(ctx context.Context, accountID uuid.UUID, assetID string, amount *big.Int, reason string) (*Hold, error) {
	hold := &Hold{
		ID:        uuid.New(),
		AccountID: accountID,
		AssetID:   assetID,
		Amount:    amount,
		Remaining: amount,
		Status:    HoldStatusActive,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
	if err := hold.Validate(); err != nil {
		return nil, err
	}

	err := s.repo.InTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.LockAccount(txCtx, accountID); err != nil {
			return err
		}

		available, err := s.availableLocked(txCtx, accountID, assetID)
		if err != nil {
			return err
		}
		if amount.Cmp(available) > 0 {
			return &InsufficientBalanceError{Available: available, Requested: new(big.Int).Set(amount)}
		}

		return s.repo.CreateHold(txCtx, hold)
	})
	if err != nil {
		return nil, err
	}

	return hold, nil
}

// ReleaseHold abandons the reservation. Releasing a hold that is no
// longer active is an idempotent no-op; Remaining is left untouched for
// audit but stops counting toward held.
func (s *Service) ReleaseHold(ctx context.Context, holdID uuid.UUID) error {
	return s.repo.InTx(ctx, func(txCtx context.Context) error {
		hold, err := s.repo.GetHoldForUpdate(txCtx, holdID)
		if err != nil {
			return err
		}
		if !hold.IsActive() {
			return nil
		}

		now := time.Now().UTC()
		hold.Status = HoldStatusReleased
		hold.ReleasedAt = &now
		return s.repo.UpdateHold(txCtx, hold)
	})
}

// ConsumeHold decrements the hold's remaining amount. Reaching zero
// auto-transitions the hold to consumed; otherwise it stays active for
// further partial consumptions (e.g. an order filling in several
// executions against one reservation).
//
// Consuming only shrinks the promise; the caller posts the entry that
// actually moves value in the same transaction via InTx.
func (s *Service) ConsumeHold(ctx context.Context, holdID uuid.UUID, amount *big.Int) (*Hold, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidHoldAmount
	}

	var consumed *Hold
	err := s.repo.InTx(ctx, func(txCtx context.Context) error {
		hold, err := s.repo.GetHoldForUpdate(txCtx, holdID)
		if err != nil {
			return err
		}
		if !hold.IsActive() {
			return ErrHoldNotActive
		}

		remaining, err := money.SubNonNegative(hold.Remaining, amount)
		if err != nil {
			return &HoldInsufficientRemainingError{
				Remaining: new(big.Int).Set(hold.Remaining),
				Requested: new(big.Int).Set(amount),
			}
		}

		hold.Remaining = remaining
		if remaining.Sign() == 0 {
			hold.Status = HoldStatusConsumed
		}
		if err := s.repo.UpdateHold(txCtx, hold); err != nil {
			return err
		}
		consumed = hold
		return nil
	})
	if err != nil {
		return nil, err
	}

	return consumed, nil
}

// GetHold retrieves a hold by ID
func (s *Service) GetHold(ctx context.Context, id uuid.UUID) (*Hold, error) {
	return s.repo.GetHold(ctx, id)
}

// Balances derives {posted, held, available} from journal lines and
// active holds. The result is never cached: it is recomputed from the
// underlying rows on every call.
func (s *Service) Balances(ctx context.Context, accountID uuid.UUID, assetID string) (*Balance, error) {
	posted, err := s.repo.SumPostedByAccount(ctx, accountID, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum posted balance: %w", err)
	}
	held, err := s.repo.SumHeldByAccount(ctx, accountID, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum held balance: %w", err)
	}

	available, err := money.SubNonNegative(posted, held)
	if err != nil {
		account, getErr := s.repo.GetAccount(ctx, accountID)
		if getErr == nil && IsSystemOwner(account.OwnerID) {
			// System accounts may run a deficit; nothing is spendable.
			available = big.NewInt(0)
		} else {
			// held > posted is unreachable for user accounts: every
			// admission path checks availability under the account lock
			s.log.WithContext(ctx).Error("held balance exceeds posted balance",
				"account_id", accountID.String(),
				"asset_id", assetID,
				"posted", money.Format(posted),
				"held", money.Format(held),
			)
			return nil, fmt.Errorf("balance invariant violated for account %s asset %s: %w", accountID, assetID, err)
		}
	}

	return &Balance{
		AccountID: accountID,
		AssetID:   assetID,
		Posted:    posted,
		Held:      held,
		Available: available,
	}, nil
}

// ListLinesByAccount returns the account's journal lines, newest first
func (s *Service) ListLinesByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Line, error) {
	return s.repo.ListLinesByAccount(ctx, accountID, limit, offset)
}

// UpsertCounter atomically creates or increments a named counter and
// returns the new value. Generalizes the insert-or-add pattern used by
// reward and inventory grants.
func (s *Service) UpsertCounter(ctx context.Context, key string, delta int64) (int64, error) {
	if key == "" {
		return 0, fmt.Errorf("counter key is required")
	}
	return s.repo.UpsertCounter(ctx, key, delta)
}

type accountDelta struct {
	accountID uuid.UUID
	assetID   string
	change    *big.Int
}

// netDeltas groups the entry's lines into one signed change per
// (account, asset) pair, sorted by account ID so locks are always taken
// in the same order.
func (s *Service) netDeltas(entry *Entry) []*accountDelta {
	index := make(map[string]*accountDelta)
	order := make([]*accountDelta, 0, len(entry.Lines))

	for _, line := range entry.Lines {
		key := line.AccountID.String() + ":" + line.AssetID
		d, ok := index[key]
		if !ok {
			d = &accountDelta{
				accountID: line.AccountID,
				assetID:   line.AssetID,
				change:    big.NewInt(0),
			}
			index[key] = d
			order = append(order, d)
		}
		d.change.Add(d.change, line.Amount)
	}

	// Deterministic lock order keeps concurrent entries from deadlocking
	sort.Slice(order, func(i, j int) bool {
		return lessDelta(order[i], order[j])
	})
	return order
}

func lessDelta(a, b *accountDelta) bool {
	if c := bytes.Compare(a.accountID[:], b.accountID[:]); c != 0 {
		return c < 0
	}
	return a.assetID < b.assetID
}

func (s *Service) lockAccounts(ctx context.Context, deltas []*accountDelta) error {
	locked := make(map[uuid.UUID]bool, len(deltas))
	for _, d := range deltas {
		if locked[d.accountID] {
			continue
		}
		if err := s.repo.LockAccount(ctx, d.accountID); err != nil {
			return err
		}
		locked[d.accountID] = true
	}
	return nil
}

// availableLocked recomputes available balance. Callers must hold the
// account row lock.
func (s *Service) availableLocked(ctx context.Context, accountID uuid.UUID, assetID string) (*big.Int, error) {
	posted, err := s.repo.SumPostedByAccount(ctx, accountID, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum posted balance: %w", err)
	}
	held, err := s.repo.SumHeldByAccount(ctx, accountID, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum held balance: %w", err)
	}
	available, err := money.SubNonNegative(posted, held)
	if err != nil {
		return nil, fmt.Errorf("balance invariant violated for account %s asset %s: %w", accountID, assetID, err)
	}
	return available, nil
}
