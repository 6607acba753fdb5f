package asset

import "context"

// Repository defines the interface for asset persistence operations
type Repository interface {
	// GetByID retrieves an asset by its identifier
	GetByID(ctx context.Context, id string) (*Asset, error)

	// GetActive retrieves all active assets ordered by ID
	GetActive(ctx context.Context) ([]*Asset, error)

	// Create creates a new asset, returning ErrDuplicateAsset on an
	// existing ID
	Create(ctx context.Context, asset *Asset) error

	// Update persists the asset's mutable fields (fee, minimum, active flag)
	Update(ctx context.Context, asset *Asset) error
}

// Cache is a read-through cache over the asset registry. Asset rows
// change rarely, so a short TTL is enough to keep reads off the
// database on the hot path.
type Cache interface {
	Get(ctx context.Context, id string) (*Asset, bool, error)
	Set(ctx context.Context, asset *Asset) error
	Invalidate(ctx context.Context, id string) error
}
