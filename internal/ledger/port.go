package ledger

import (
	"context"
	"math/big"

	"github.com/google/uuid"
)

// Repository defines the interface for ledger persistence operations.
// All mutating methods participate in the context-carried transaction
// started by InTx; row locks taken inside it last until commit/rollback.
type Repository interface {
	// Account operations
	GetOrCreateAccount(ctx context.Context, ownerID uuid.UUID, assetID string) (*Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*Account, error)
	FindAccountsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Account, error)
	// LockAccount acquires the row-level exclusive lock on the account.
	// Only meaningful inside InTx.
	LockAccount(ctx context.Context, id uuid.UUID) error

	// Journal operations (entries are immutable once created)
	CreateEntry(ctx context.Context, entry *Entry) error
	GetEntry(ctx context.Context, id uuid.UUID) (*Entry, error)
	ListLinesByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Line, error)

	// Derived balance inputs
	SumPostedByAccount(ctx context.Context, accountID uuid.UUID, assetID string) (*big.Int, error)
	SumHeldByAccount(ctx context.Context, accountID uuid.UUID, assetID string) (*big.Int, error)

	// Hold operations
	CreateHold(ctx context.Context, hold *Hold) error
	GetHold(ctx context.Context, id uuid.UUID) (*Hold, error)
	// GetHoldForUpdate retrieves the hold with a row-level lock (FOR UPDATE).
	// Only meaningful inside InTx.
	GetHoldForUpdate(ctx context.Context, id uuid.UUID) (*Hold, error)
	UpdateHold(ctx context.Context, hold *Hold) error
	ListActiveHolds(ctx context.Context, accountID uuid.UUID, assetID string) ([]*Hold, error)

	// UpsertCounter atomically creates the counter row or adds delta to the
	// existing one, returning the new value. Same conflict-resolution
	// contract as GetOrCreateAccount.
	UpsertCounter(ctx context.Context, key string, delta int64) (int64, error)

	// InTx runs fn inside a database transaction carried on the context.
	// If the context already carries a transaction, fn joins it.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
