package yield

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for yield position persistence
type Repository interface {
	Create(ctx context.Context, p *Position) error
	GetByID(ctx context.Context, id uuid.UUID) (*Position, error)
	// GetByIDForUpdate retrieves the position with a row-level lock.
	// Only meaningful inside a transaction.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Position, error)
	Update(ctx context.Context, p *Position) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*Position, error)
}
