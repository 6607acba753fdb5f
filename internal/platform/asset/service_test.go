package asset_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinpilot/exchange-ledger/internal/platform/asset"
	"github.com/coinpilot/exchange-ledger/pkg/logger"
	"github.com/coinpilot/exchange-ledger/pkg/money"
	"github.com/coinpilot/exchange-ledger/testutil/memstore"
)

// fakeCache counts hits so tests can observe read-through behavior
type fakeCache struct {
	store   map[string]*asset.Asset
	getErr  error
	gets    int
	sets    int
	invalid int
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: make(map[string]*asset.Asset)}
}

func (c *fakeCache) Get(ctx context.Context, id string) (*asset.Asset, bool, error) {
	c.gets++
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	a, ok := c.store[id]
	return a, ok, nil
}

func (c *fakeCache) Set(ctx context.Context, a *asset.Asset) error {
	c.sets++
	c.store[a.ID] = a
	return nil
}

func (c *fakeCache) Invalidate(ctx context.Context, id string) error {
	c.invalid++
	delete(c.store, id)
	return nil
}

func newService(t *testing.T, cache asset.Cache, assets ...*asset.Asset) *asset.Service {
	t.Helper()
	return asset.NewService(memstore.NewAssetRepo(assets...), cache, logger.NewDefault("test"))
}

func TestGet_ReadThroughCache(t *testing.T) {
	cache := newFakeCache()
	svc := newService(t, cache, asset.NewAsset("BTC", "BTC", "Bitcoin", 8))
	ctx := context.Background()

	first, err := svc.Get(ctx, "BTC")
	require.NoError(t, err)
	assert.Equal(t, "BTC", first.ID)
	assert.Equal(t, 1, cache.sets)

	// Second read is served from cache
	_, err = svc.Get(ctx, "BTC")
	require.NoError(t, err)
	assert.Equal(t, 2, cache.gets)
	assert.Equal(t, 1, cache.sets)
}

func TestGet_CacheFailureFallsThrough(t *testing.T) {
	cache := newFakeCache()
	cache.getErr = errors.New("connection refused")
	svc := newService(t, cache, asset.NewAsset("BTC", "BTC", "Bitcoin", 8))

	a, err := svc.Get(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, "BTC", a.ID)
}

func TestGet_NotFound(t *testing.T) {
	svc := newService(t, nil)

	_, err := svc.Get(context.Background(), "DOGE")
	assert.ErrorIs(t, err, asset.ErrAssetNotFound)
}

func TestGetActiveRequired_Inactive(t *testing.T) {
	inactive := asset.NewAsset("XRP", "XRP", "Ripple", 6)
	inactive.IsActive = false
	svc := newService(t, nil, inactive)

	_, err := svc.GetActiveRequired(context.Background(), "XRP")
	assert.ErrorIs(t, err, asset.ErrAssetInactive)
}

func TestUpdate_InvalidatesCache(t *testing.T) {
	cache := newFakeCache()
	svc := newService(t, cache, asset.NewAsset("ETH", "ETH", "Ether", 18))
	ctx := context.Background()

	a, err := svc.Get(ctx, "ETH")
	require.NoError(t, err)
	require.Equal(t, 1, cache.sets)

	a.WithdrawFeeBps = 10
	require.NoError(t, svc.Update(ctx, a))
	assert.Equal(t, 1, cache.invalid)
}

func TestCheckWithdrawable(t *testing.T) {
	usdt := asset.NewAsset("USDT", "USDT", "Tether USD", 6).WithWithdrawFee(25)
	min, err := money.Parse("10")
	require.NoError(t, err)
	usdt.MinWithdrawal = min
	svc := newService(t, nil, usdt)
	ctx := context.Background()

	amt := func(s string) *big.Int {
		v, err := money.Parse(s)
		require.NoError(t, err)
		return v
	}

	// Step-aligned amount above the minimum passes
	a, err := svc.CheckWithdrawable(ctx, "USDT", amt("25.5"))
	require.NoError(t, err)
	assert.EqualValues(t, 25, a.WithdrawFeeBps)

	// Finer than 6 decimals is rejected
	_, err = svc.CheckWithdrawable(ctx, "USDT", amt("25.0000001"))
	assert.ErrorIs(t, err, asset.ErrSubStepAmount)

	// Below the configured minimum is rejected
	_, err = svc.CheckWithdrawable(ctx, "USDT", amt("9.999999"))
	assert.ErrorIs(t, err, asset.ErrBelowMinWithdrawal)

	// Unknown asset
	_, err = svc.CheckWithdrawable(ctx, "DOGE", amt("1"))
	assert.ErrorIs(t, err, asset.ErrAssetNotFound)
}

func TestAsset_Step(t *testing.T) {
	btc := asset.NewAsset("BTC", "BTC", "Bitcoin", 8)
	// 10^(18-8) base units per satoshi
	assert.Equal(t, "10000000000", btc.Step().String())

	points := asset.NewAsset("PTS", "PTS", "Reward Points", 0)
	assert.Equal(t, "1000000000000000000", points.Step().String())
}

func TestAsset_Validate(t *testing.T) {
	bad := asset.NewAsset("X", "X", "X", 19)
	assert.ErrorIs(t, bad.Validate(), asset.ErrInvalidDecimals)

	fee := asset.NewAsset("X", "X", "X", 6).WithWithdrawFee(10001)
	assert.ErrorIs(t, fee.Validate(), asset.ErrInvalidFeeBps)
}
