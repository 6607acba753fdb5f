package escrow_test

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinpilot/exchange-ledger/internal/events"
	"github.com/coinpilot/exchange-ledger/internal/ledger"
	"github.com/coinpilot/exchange-ledger/internal/module/escrow"
	"github.com/coinpilot/exchange-ledger/internal/platform/asset"
	"github.com/coinpilot/exchange-ledger/pkg/logger"
	"github.com/coinpilot/exchange-ledger/pkg/money"
	"github.com/coinpilot/exchange-ledger/testutil/memstore"
)

type memRepo struct {
	mu sync.Mutex
	m  map[uuid.UUID]*escrow.Order
}

func newMemRepo() *memRepo {
	return &memRepo{m: make(map[uuid.UUID]*escrow.Order)}
}

func (r *memRepo) Create(ctx context.Context, o *escrow.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *o
	r.m[o.ID] = &copied
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, id uuid.UUID) (*escrow.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.m[id]
	if !ok {
		return nil, escrow.ErrNotFound
	}
	copied := *o
	return &copied, nil
}

func (r *memRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*escrow.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *memRepo) Update(ctx context.Context, o *escrow.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[o.ID]; !ok {
		return escrow.ErrNotFound
	}
	copied := *o
	r.m[o.ID] = &copied
	return nil
}

func (r *memRepo) ListByParty(ctx context.Context, partyID uuid.UUID, limit, offset int) ([]*escrow.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*escrow.Order
	for _, o := range r.m {
		if o.SellerID == partyID || o.BuyerID == partyID {
			copied := *o
			out = append(out, &copied)
		}
	}
	return out, nil
}

// recordingPublisher captures published event types in order
type recordingPublisher struct {
	types []string
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.types = append(p.types, event.Type)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type fixture struct {
	svc       *escrow.Service
	ledgerSvc *ledger.Service
	publisher *recordingPublisher
	sellerID  uuid.UUID
	buyerID   uuid.UUID
	seller    *ledger.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewDefault("test")

	btc := asset.NewAsset("BTC", "BTC", "Bitcoin", 8)
	assetSvc := asset.NewService(memstore.NewAssetRepo(btc), nil, log)
	ledgerSvc := ledger.NewService(memstore.NewLedgerRepo(), log)
	publisher := &recordingPublisher{}
	svc := escrow.NewService(newMemRepo(), ledgerSvc, assetSvc, publisher, log)

	ctx := context.Background()
	sellerID := uuid.New()
	seller, err := ledgerSvc.EnsureAccount(ctx, sellerID, "BTC")
	require.NoError(t, err)

	treasury, err := ledgerSvc.EnsureAccount(ctx, ledger.SystemOwnerTreasury, "BTC")
	require.NoError(t, err)
	_, err = ledgerSvc.PostEntry(ctx, "deposit", nil, nil, []ledger.LineInput{
		{AccountID: seller.ID, AssetID: "BTC", Amount: amt(t, "2")},
		{AccountID: treasury.ID, AssetID: "BTC", Amount: new(big.Int).Neg(amt(t, "2"))},
	})
	require.NoError(t, err)

	return &fixture{
		svc:       svc,
		ledgerSvc: ledgerSvc,
		publisher: publisher,
		sellerID:  sellerID,
		buyerID:   uuid.New(),
		seller:    seller,
	}
}

func amt(t *testing.T, s string) *big.Int {
	t.Helper()
	v, err := money.Parse(s)
	require.NoError(t, err)
	return v
}

func TestCreateOrder_LocksSellerFunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, f.sellerID, f.buyerID, "BTC", amt(t, "1.5"), nil)
	require.NoError(t, err)
	assert.Equal(t, escrow.StatusOpen, order.Status)

	balance, err := f.ledgerSvc.Balances(ctx, f.seller.ID, "BTC")
	require.NoError(t, err)
	assert.Equal(t, "1.5", money.Format(balance.Held))
	assert.Equal(t, "0.5", money.Format(balance.Available))
}

func TestCreateOrder_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateOrder(ctx, f.sellerID, f.sellerID, "BTC", amt(t, "1"), nil)
	assert.ErrorIs(t, err, escrow.ErrSameParty)

	_, err = f.svc.CreateOrder(ctx, f.sellerID, f.buyerID, "BTC", big.NewInt(0), nil)
	assert.ErrorIs(t, err, escrow.ErrInvalidAmount)

	_, err = f.svc.CreateOrder(ctx, f.sellerID, f.buyerID, "BTC", amt(t, "3"), nil)
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
}

func TestRelease_MovesFundsToBuyer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, f.sellerID, f.buyerID, "BTC", amt(t, "1.5"), nil)
	require.NoError(t, err)

	order, err = f.svc.Release(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, escrow.StatusReleased, order.Status)

	hold, err := f.ledgerSvc.GetHold(ctx, order.HoldID)
	require.NoError(t, err)
	assert.Equal(t, ledger.HoldStatusConsumed, hold.Status)

	sellerBal, err := f.ledgerSvc.Balances(ctx, f.seller.ID, "BTC")
	require.NoError(t, err)
	assert.Equal(t, "0.5", money.Format(sellerBal.Posted))
	assert.True(t, money.IsZero(sellerBal.Held))

	buyerAccounts, err := f.ledgerSvc.FindAccountsByOwner(ctx, f.buyerID)
	require.NoError(t, err)
	require.Len(t, buyerAccounts, 1)

	buyerBal, err := f.ledgerSvc.Balances(ctx, buyerAccounts[0].ID, "BTC")
	require.NoError(t, err)
	assert.Equal(t, "1.5", money.Format(buyerBal.Posted))
}

func TestRelease_AlreadyResolved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, f.sellerID, f.buyerID, "BTC", amt(t, "1"), nil)
	require.NoError(t, err)

	_, err = f.svc.Release(ctx, order.ID)
	require.NoError(t, err)

	_, err = f.svc.Release(ctx, order.ID)
	assert.ErrorIs(t, err, escrow.ErrStateConflict)

	_, err = f.svc.Cancel(ctx, order.ID)
	assert.ErrorIs(t, err, escrow.ErrStateConflict)
}

func TestCancel_ReleasesHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, f.sellerID, f.buyerID, "BTC", amt(t, "1"), nil)
	require.NoError(t, err)

	order, err = f.svc.Cancel(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, escrow.StatusCancelled, order.Status)

	balance, err := f.ledgerSvc.Balances(ctx, f.seller.ID, "BTC")
	require.NoError(t, err)
	assert.Equal(t, "2", money.Format(balance.Available))
	// No journal movement on cancel
	assert.Equal(t, "2", money.Format(balance.Posted))
}

func TestPublishesOrderAndHoldEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, f.sellerID, f.buyerID, "BTC", amt(t, "1"), nil)
	require.NoError(t, err)
	_, err = f.svc.Release(ctx, order.ID)
	require.NoError(t, err)

	order, err = f.svc.CreateOrder(ctx, f.sellerID, f.buyerID, "BTC", amt(t, "0.5"), nil)
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, order.ID)
	require.NoError(t, err)

	assert.Contains(t, f.publisher.types, events.TypeEscrowCreated)
	assert.Contains(t, f.publisher.types, events.TypeEscrowReleased)
	assert.Contains(t, f.publisher.types, events.TypeEscrowCancelled)
	assert.Contains(t, f.publisher.types, events.TypeHoldCreated)
	assert.Contains(t, f.publisher.types, events.TypeHoldConsumed)
	assert.Contains(t, f.publisher.types, events.TypeHoldReleased)
}
