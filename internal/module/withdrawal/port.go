package withdrawal

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for withdrawal persistence
type Repository interface {
	Create(ctx context.Context, w *Withdrawal) error
	GetByID(ctx context.Context, id uuid.UUID) (*Withdrawal, error)
	// GetByIDForUpdate retrieves the withdrawal with a row-level lock so
	// state transitions serialize. Only meaningful inside a transaction.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Withdrawal, error)
	Update(ctx context.Context, w *Withdrawal) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*Withdrawal, error)
}
