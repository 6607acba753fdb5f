package withdrawal_test

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/coinpilot/exchange-ledger/internal/events"
	"github.com/coinpilot/exchange-ledger/internal/ledger"
	"github.com/coinpilot/exchange-ledger/internal/module/withdrawal"
	"github.com/coinpilot/exchange-ledger/internal/platform/asset"
	"github.com/coinpilot/exchange-ledger/pkg/logger"
	"github.com/coinpilot/exchange-ledger/pkg/money"
	"github.com/coinpilot/exchange-ledger/testutil/memstore"
)

// memRepo is an in-memory withdrawal repository
type memRepo struct {
	mu sync.Mutex
	m  map[uuid.UUID]*withdrawal.Withdrawal
}

func newMemRepo() *memRepo {
	return &memRepo{m: make(map[uuid.UUID]*withdrawal.Withdrawal)}
}

func (r *memRepo) Create(ctx context.Context, w *withdrawal.Withdrawal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *w
	r.m[w.ID] = &copied
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, id uuid.UUID) (*withdrawal.Withdrawal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.m[id]
	if !ok {
		return nil, withdrawal.ErrNotFound
	}
	copied := *w
	return &copied, nil
}

func (r *memRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*withdrawal.Withdrawal, error) {
	return r.GetByID(ctx, id)
}

func (r *memRepo) Update(ctx context.Context, w *withdrawal.Withdrawal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[w.ID]; !ok {
		return withdrawal.ErrNotFound
	}
	copied := *w
	r.m[w.ID] = &copied
	return nil
}

func (r *memRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*withdrawal.Withdrawal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*withdrawal.Withdrawal
	for _, w := range r.m {
		if w.OwnerID == ownerID {
			copied := *w
			out = append(out, &copied)
		}
	}
	return out, nil
}

// mockPublisher records published events
type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event events.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockPublisher) Close() error { return nil }

type fixture struct {
	svc       *withdrawal.Service
	ledgerSvc *ledger.Service
	publisher *mockPublisher
	account   *ledger.Account
	ownerID   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewDefault("test")

	// USDT: 6 on-chain decimals, 25 bps withdrawal fee
	usdt := asset.NewAsset("USDT", "USDT", "Tether USD", 6).WithWithdrawFee(25)
	assetSvc := asset.NewService(memstore.NewAssetRepo(usdt), nil, log)

	ledgerSvc := ledger.NewService(memstore.NewLedgerRepo(), log)

	publisher := &mockPublisher{}
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	svc := withdrawal.NewService(newMemRepo(), ledgerSvc, assetSvc, publisher, log)

	ctx := context.Background()
	ownerID := uuid.New()
	account, err := ledgerSvc.EnsureAccount(ctx, ownerID, "USDT")
	require.NoError(t, err)

	// Fund the user from treasury
	treasury, err := ledgerSvc.EnsureAccount(ctx, ledger.SystemOwnerTreasury, "USDT")
	require.NoError(t, err)
	_, err = ledgerSvc.PostEntry(ctx, "deposit", nil, nil, []ledger.LineInput{
		{AccountID: account.ID, AssetID: "USDT", Amount: amt(t, "1000")},
		{AccountID: treasury.ID, AssetID: "USDT", Amount: neg(amt(t, "1000"))},
	})
	require.NoError(t, err)

	return &fixture{
		svc:       svc,
		ledgerSvc: ledgerSvc,
		publisher: publisher,
		account:   account,
		ownerID:   ownerID,
	}
}

func amt(t *testing.T, s string) *big.Int {
	t.Helper()
	v, err := money.Parse(s)
	require.NoError(t, err)
	return v
}

func neg(v *big.Int) *big.Int {
	return new(big.Int).Neg(v)
}

func TestRequest_ReservesAmountPlusFee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w, err := f.svc.Request(ctx, f.ownerID, "USDT", amt(t, "100"), "TXa1b2c3")
	require.NoError(t, err)

	assert.Equal(t, withdrawal.StatusRequested, w.Status)
	// 25 bps of 100 = 0.25
	assert.Equal(t, "0.25", money.Format(w.Fee))
	assert.Equal(t, "100.25", money.Format(w.Total()))

	balance, err := f.ledgerSvc.Balances(ctx, f.account.ID, "USDT")
	require.NoError(t, err)
	assert.Equal(t, "100.25", money.Format(balance.Held))
	assert.Equal(t, "899.75", money.Format(balance.Available))
	// Nothing posted yet: the journal only moves at broadcast
	assert.Equal(t, "1000", money.Format(balance.Posted))
}

func TestRequest_SubStepAmountRejected(t *testing.T) {
	f := newFixture(t)

	// USDT has 6 decimals; 7 fractional digits cannot exist on chain
	_, err := f.svc.Request(context.Background(), f.ownerID, "USDT", amt(t, "1.0000001"), "TXa1b2c3")
	assert.ErrorIs(t, err, asset.ErrSubStepAmount)
}

func TestRequest_InsufficientAvailable(t *testing.T) {
	f := newFixture(t)

	// 1000 + fee exceeds the 1000 balance
	_, err := f.svc.Request(context.Background(), f.ownerID, "USDT", amt(t, "1000"), "TXa1b2c3")
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
}

func TestFullLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w, err := f.svc.Request(ctx, f.ownerID, "USDT", amt(t, "100"), "TXa1b2c3")
	require.NoError(t, err)

	w, err = f.svc.MarkReviewed(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, withdrawal.StatusNeedsReview, w.Status)

	w, err = f.svc.Approve(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, withdrawal.StatusApproved, w.Status)

	w, err = f.svc.MarkBroadcasted(ctx, w.ID, "0xdeadbeef")
	require.NoError(t, err)
	assert.Equal(t, withdrawal.StatusBroadcasted, w.Status)
	require.NotNil(t, w.TxHash)
	assert.Equal(t, "0xdeadbeef", *w.TxHash)

	// Hold fully consumed, user debited amount + fee
	hold, err := f.ledgerSvc.GetHold(ctx, w.HoldID)
	require.NoError(t, err)
	assert.Equal(t, ledger.HoldStatusConsumed, hold.Status)

	balance, err := f.ledgerSvc.Balances(ctx, f.account.ID, "USDT")
	require.NoError(t, err)
	assert.Equal(t, "899.75", money.Format(balance.Posted))
	assert.Equal(t, "899.75", money.Format(balance.Available))
	assert.True(t, money.IsZero(balance.Held))

	w, err = f.svc.Confirm(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, withdrawal.StatusConfirmed, w.Status)
}

func TestApprove_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w, err := f.svc.Request(ctx, f.ownerID, "USDT", amt(t, "100"), "TXa1b2c3")
	require.NoError(t, err)
	_, err = f.svc.MarkReviewed(ctx, w.ID)
	require.NoError(t, err)

	first, err := f.svc.Approve(ctx, w.ID)
	require.NoError(t, err)
	second, err := f.svc.Approve(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Status, second.Status)

	// Retries stay a success after the withdrawal moved on: the caller
	// only wanted "approved or later", which still holds.
	w, err = f.svc.MarkBroadcasted(ctx, w.ID, "0xfeedface")
	require.NoError(t, err)
	again, err := f.svc.Approve(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, withdrawal.StatusBroadcasted, again.Status)
	require.NotNil(t, again.TxHash)
	assert.Equal(t, "0xfeedface", *again.TxHash)

	w, err = f.svc.Confirm(ctx, w.ID)
	require.NoError(t, err)
	again, err = f.svc.Approve(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, withdrawal.StatusConfirmed, again.Status)

	// The hold was consumed exactly once across all the retries
	hold, err := f.ledgerSvc.GetHold(ctx, w.HoldID)
	require.NoError(t, err)
	assert.Equal(t, ledger.HoldStatusConsumed, hold.Status)
	balance, err := f.ledgerSvc.Balances(ctx, f.account.ID, "USDT")
	require.NoError(t, err)
	assert.Equal(t, "899.75", money.Format(balance.Posted))
}

func TestReject_ReleasesHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w, err := f.svc.Request(ctx, f.ownerID, "USDT", amt(t, "100"), "TXa1b2c3")
	require.NoError(t, err)

	w, err = f.svc.Reject(ctx, w.ID, "suspicious destination")
	require.NoError(t, err)
	assert.Equal(t, withdrawal.StatusRejected, w.Status)
	assert.Equal(t, "suspicious destination", w.Reason)

	hold, err := f.ledgerSvc.GetHold(ctx, w.HoldID)
	require.NoError(t, err)
	assert.Equal(t, ledger.HoldStatusReleased, hold.Status)

	balance, err := f.ledgerSvc.Balances(ctx, f.account.ID, "USDT")
	require.NoError(t, err)
	assert.Equal(t, "1000", money.Format(balance.Available))
}

func TestReject_AfterApprove_Conflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w, err := f.svc.Request(ctx, f.ownerID, "USDT", amt(t, "100"), "TXa1b2c3")
	require.NoError(t, err)
	_, err = f.svc.MarkReviewed(ctx, w.ID)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, w.ID)
	require.NoError(t, err)

	_, err = f.svc.Reject(ctx, w.ID, "too late")
	assert.ErrorIs(t, err, withdrawal.ErrStateConflict)
}

func TestMarkBroadcasted_RequiresApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w, err := f.svc.Request(ctx, f.ownerID, "USDT", amt(t, "100"), "TXa1b2c3")
	require.NoError(t, err)

	_, err = f.svc.MarkBroadcasted(ctx, w.ID, "0xdeadbeef")
	assert.ErrorIs(t, err, withdrawal.ErrStateConflict)
}

func TestMarkBroadcasted_DuplicateTxHash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	broadcast := func(amount string) error {
		w, err := f.svc.Request(ctx, f.ownerID, "USDT", amt(t, amount), "TXa1b2c3")
		if err != nil {
			return err
		}
		if _, err := f.svc.MarkReviewed(ctx, w.ID); err != nil {
			return err
		}
		if _, err := f.svc.Approve(ctx, w.ID); err != nil {
			return err
		}
		_, err = f.svc.MarkBroadcasted(ctx, w.ID, "0xsamehash")
		return err
	}

	require.NoError(t, broadcast("100"))
	assert.ErrorIs(t, broadcast("50"), ledger.ErrDuplicateReference)
}

func TestPublishesEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w, err := f.svc.Request(ctx, f.ownerID, "USDT", amt(t, "100"), "TXa1b2c3")
	require.NoError(t, err)
	_, err = f.svc.Reject(ctx, w.ID, "nope")
	require.NoError(t, err)

	// Replay the happy path so the consumed hold shows up too
	w, err = f.svc.Request(ctx, f.ownerID, "USDT", amt(t, "100"), "TXa1b2c3")
	require.NoError(t, err)
	_, err = f.svc.MarkReviewed(ctx, w.ID)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, w.ID)
	require.NoError(t, err)
	_, err = f.svc.MarkBroadcasted(ctx, w.ID, "0xabc123")
	require.NoError(t, err)

	published := make([]string, 0, len(f.publisher.Calls))
	for _, call := range f.publisher.Calls {
		published = append(published, call.Arguments.Get(1).(events.Event).Type)
	}
	assert.Contains(t, published, events.TypeWithdrawalRequested)
	assert.Contains(t, published, events.TypeWithdrawalRejected)
	assert.Contains(t, published, events.TypeHoldCreated)
	assert.Contains(t, published, events.TypeHoldReleased)
	assert.Contains(t, published, events.TypeHoldConsumed)
}
