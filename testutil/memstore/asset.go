package memstore

import (
	"context"
	"sync"

	"github.com/coinpilot/exchange-ledger/internal/platform/asset"
)

// AssetRepo is an in-memory asset.Repository
type AssetRepo struct {
	mu     sync.Mutex
	assets map[string]*asset.Asset
}

// NewAssetRepo creates an asset repository pre-loaded with the given assets
func NewAssetRepo(assets ...*asset.Asset) *AssetRepo {
	r := &AssetRepo{assets: make(map[string]*asset.Asset)}
	for _, a := range assets {
		r.assets[a.ID] = a
	}
	return r
}

func (r *AssetRepo) GetByID(ctx context.Context, id string) (*asset.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assets[id]
	if !ok {
		return nil, asset.ErrAssetNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *AssetRepo) GetActive(ctx context.Context) ([]*asset.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*asset.Asset
	for _, a := range r.assets {
		if a.IsActive {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *AssetRepo) Create(ctx context.Context, a *asset.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assets[a.ID]; ok {
		return asset.ErrDuplicateAsset
	}
	copied := *a
	r.assets[a.ID] = &copied
	return nil
}

func (r *AssetRepo) Update(ctx context.Context, a *asset.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assets[a.ID]; !ok {
		return asset.ErrAssetNotFound
	}
	copied := *a
	r.assets[a.ID] = &copied
	return nil
}

var _ asset.Repository = (*AssetRepo)(nil)
