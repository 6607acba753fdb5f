package escrow

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for escrow order persistence
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	// GetByIDForUpdate retrieves the order with a row-level lock.
	// Only meaningful inside a transaction.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Order, error)
	Update(ctx context.Context, o *Order) error
	ListByParty(ctx context.Context, partyID uuid.UUID, limit, offset int) ([]*Order, error)
}
