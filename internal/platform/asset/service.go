package asset

import (
	"context"
	"math/big"
	"time"

	"github.com/coinpilot/exchange-ledger/pkg/logger"
	"github.com/coinpilot/exchange-ledger/pkg/money"
)

// Service provides access to the asset registry with a read-through
// cache in front of the repository
type Service struct {
	repo  Repository
	cache Cache
	log   *logger.Logger
}

// NewService creates a new asset service. The cache may be nil, in
// which case every read hits the repository.
func NewService(repo Repository, cache Cache, log *logger.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		log:   log.WithField("component", "asset"),
	}
}

// Get retrieves an asset by ID, serving from cache when possible
func (s *Service) Get(ctx context.Context, id string) (*Asset, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, id)
		if err != nil {
			// Cache trouble must not block reads
			s.log.WithError(err).Warn("asset cache read failed", "asset_id", id)
		} else if ok {
			return cached, nil
		}
	}

	asset, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, asset); err != nil {
			s.log.WithError(err).Warn("asset cache write failed", "asset_id", id)
		}
	}

	return asset, nil
}

// GetActiveRequired retrieves an asset and fails if it is disabled
func (s *Service) GetActiveRequired(ctx context.Context, id string) (*Asset, error) {
	asset, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !asset.IsActive {
		return nil, ErrAssetInactive
	}
	return asset, nil
}

// List retrieves all active assets
func (s *Service) List(ctx context.Context) ([]*Asset, error) {
	return s.repo.GetActive(ctx)
}

// Create registers a new asset
func (s *Service) Create(ctx context.Context, asset *Asset) error {
	if err := asset.Validate(); err != nil {
		return err
	}
	return s.repo.Create(ctx, asset)
}

// Update persists asset changes and drops the cached copy
func (s *Service) Update(ctx context.Context, asset *Asset) error {
	if err := asset.Validate(); err != nil {
		return err
	}
	asset.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, asset); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, asset.ID); err != nil {
			s.log.WithError(err).Warn("asset cache invalidation failed", "asset_id", asset.ID)
		}
	}
	return nil
}

// CheckWithdrawable verifies an amount can leave the platform as the
// given asset: the asset is active, the amount is a whole multiple of
// the asset's on-chain step, and meets the configured minimum.
func (s *Service) CheckWithdrawable(ctx context.Context, id string, amount *big.Int) (*Asset, error) {
	asset, err := s.GetActiveRequired(ctx, id)
	if err != nil {
		return nil, err
	}
	aligned, err := money.IsMultipleOfStep(amount, asset.Step())
	if err != nil {
		return nil, err
	}
	if !aligned {
		return nil, ErrSubStepAmount
	}
	if asset.MinWithdrawal != nil && asset.MinWithdrawal.Sign() > 0 && amount.Cmp(asset.MinWithdrawal) < 0 {
		return nil, ErrBelowMinWithdrawal
	}
	return asset, nil
}
