package rewards_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/coinpilot/exchange-ledger/internal/events"
	"github.com/coinpilot/exchange-ledger/internal/ledger"
	"github.com/coinpilot/exchange-ledger/internal/module/rewards"
	"github.com/coinpilot/exchange-ledger/internal/platform/asset"
	"github.com/coinpilot/exchange-ledger/pkg/logger"
	"github.com/coinpilot/exchange-ledger/pkg/money"
	"github.com/coinpilot/exchange-ledger/testutil/memstore"
)

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
	svc       *rewards.Service
	ledgerSvc *ledger.Service
	assetRepo *memstore.AssetRepo
	ownerID   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewDefault("test")

	pts := asset.NewAsset("PTS", "PTS", "Reward Points", 0)
	assetRepo := memstore.NewAssetRepo(pts)
	assetSvc := asset.NewService(assetRepo, nil, log)
	ledgerSvc := ledger.NewService(memstore.NewLedgerRepo(), log)
	svc := rewards.NewService(ledgerSvc, assetSvc, events.NopPublisher{}, log, "PTS")

	return &fixture{
		svc:       svc,
		ledgerSvc: ledgerSvc,
		assetRepo: assetRepo,
		ownerID:   uuid.New(),
	}
}

func (f *fixture) pointsBalance(t *testing.T) *big.Int {
	t.Helper()
	accounts, err := f.ledgerSvc.FindAccountsByOwner(context.Background(), f.ownerID)
	require.NoError(t, err)
	for _, account := range accounts {
		if account.AssetID == "PTS" {
			balance, err := f.ledgerSvc.Balances(context.Background(), account.ID, "PTS")
			require.NoError(t, err)
			return balance.Posted
		}
	}
	return big.NewInt(0)
}

func TestGrant_CreditsPointsAndCounter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	grant, err := f.svc.Grant(ctx, "summer-referrals", f.ownerID, 100, "referral-42")
	require.NoError(t, err)

	assert.Equal(t, int64(100), grant.Points)
	assert.Equal(t, int64(100), grant.CampaignTotal)
	assert.NotEqual(t, uuid.Nil, grant.EntryID)
	assert.Equal(t, "100", money.Format(f.pointsBalance(t)))
}

func TestGrant_AccumulatesAcrossGrants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Grant(ctx, "summer-referrals", f.ownerID, 100, "referral-1")
	require.NoError(t, err)
	grant, err := f.svc.Grant(ctx, "summer-referrals", f.ownerID, 50, "referral-2")
	require.NoError(t, err)

	assert.Equal(t, int64(150), grant.CampaignTotal)
	assert.Equal(t, "150", money.Format(f.pointsBalance(t)))
}

func TestGrant_CampaignsCountedSeparately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Grant(ctx, "summer-referrals", f.ownerID, 100, "grant-a")
	require.NoError(t, err)
	grant, err := f.svc.Grant(ctx, "launch-quests", f.ownerID, 30, "grant-b")
	require.NoError(t, err)

	assert.Equal(t, int64(30), grant.CampaignTotal)
	// Balance is the sum over campaigns
	assert.Equal(t, "130", money.Format(f.pointsBalance(t)))
}

func TestGrant_ReplayDoesNotDoublePay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Grant(ctx, "summer-referrals", f.ownerID, 100, "referral-42")
	require.NoError(t, err)

	_, err = f.svc.Grant(ctx, "summer-referrals", f.ownerID, 100, "referral-42")
	require.ErrorIs(t, err, ledger.ErrDuplicateReference)

	total, err := f.svc.CampaignTotal(ctx, "summer-referrals", f.ownerID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), total)
	assert.Equal(t, "100", money.Format(f.pointsBalance(t)))
}

func TestGrant_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Grant(ctx, "", f.ownerID, 10, "g1")
	assert.ErrorIs(t, err, rewards.ErrInvalidCampaignID)

	_, err = f.svc.Grant(ctx, "c", uuid.Nil, 10, "g1")
	assert.ErrorIs(t, err, rewards.ErrInvalidOwnerID)

	_, err = f.svc.Grant(ctx, "c", f.ownerID, 0, "g1")
	assert.ErrorIs(t, err, rewards.ErrInvalidPoints)

	_, err = f.svc.Grant(ctx, "c", f.ownerID, 10, "")
	assert.ErrorIs(t, err, rewards.ErrInvalidGrantID)
}

func TestGrant_InactiveAssetRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pts, err := f.assetRepo.GetByID(ctx, "PTS")
	require.NoError(t, err)
	pts.IsActive = false
	require.NoError(t, f.assetRepo.Update(ctx, pts))

	_, err = f.svc.Grant(ctx, "summer-referrals", f.ownerID, 10, "g1")
	assert.ErrorIs(t, err, asset.ErrAssetInactive)
}

func TestCampaignTotal_NoGrants(t *testing.T) {
	f := newFixture(t)

	total, err := f.svc.CampaignTotal(context.Background(), "summer-referrals", f.ownerID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestGrant_PublishesEvent(t *testing.T) {
	log := logger.NewDefault("test")
	pts := asset.NewAsset("PTS", "PTS", "Reward Points", 0)
	assetSvc := asset.NewService(memstore.NewAssetRepo(pts), nil, log)
	ledgerSvc := ledger.NewService(memstore.NewLedgerRepo(), log)

	publisher := &mockPublisher{}
	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e events.Event) bool {
		return e.Type == events.TypeRewardGranted && e.Subject == "referral-42"
	})).Return(nil).Once()

	svc := rewards.NewService(ledgerSvc, assetSvc, publisher, log, "PTS")

	_, err := svc.Grant(context.Background(), "summer-referrals", uuid.New(), 100, "referral-42")
	require.NoError(t, err)

	publisher.AssertExpectations(t)
}
