//go:build integration

package postgres

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinpilot/exchange-ledger/internal/ledger"
	"github.com/coinpilot/exchange-ledger/pkg/logger"
	"github.com/coinpilot/exchange-ledger/pkg/money"
	"github.com/coinpilot/exchange-ledger/testutil/testdb"
)

var testDB *testdb.TestDB

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	testDB, err = testdb.NewTestDB(ctx)
	if err != nil {
		panic("failed to create test database: " + err.Error())
	}

	code := m.Run()

	testDB.Close(ctx)
	if code != 0 {
		panic("tests failed")
	}
}

func setupTest(t *testing.T) (*ledger.Service, *LedgerRepository, context.Context) {
	ctx := context.Background()
	require.NoError(t, testDB.Reset(ctx))

	repo := NewLedgerRepository(testDB.Pool)
	svc := ledger.NewService(repo, logger.NewDefault("test"))
	return svc, repo, ctx
}

func amt(t *testing.T, s string) *big.Int {
	t.Helper()
	v, err := money.Parse(s)
	require.NoError(t, err)
	return v
}

// deposit credits the user from treasury, which runs a deficit
func deposit(t *testing.T, ctx context.Context, svc *ledger.Service, account *ledger.Account, amount string) {
	t.Helper()
	treasury, err := svc.EnsureAccount(ctx, ledger.SystemOwnerTreasury, account.AssetID)
	require.NoError(t, err)

	_, err = svc.PostEntry(ctx, "deposit", nil, nil, []ledger.LineInput{
		{AccountID: account.ID, AssetID: account.AssetID, Amount: amt(t, amount)},
		{AccountID: treasury.ID, AssetID: account.AssetID, Amount: new(big.Int).Neg(amt(t, amount))},
	})
	require.NoError(t, err)
}

func TestLedgerRepository_GetOrCreateAccount_Concurrent(t *testing.T) {
	_, repo, ctx := setupTest(t)

	ownerID := uuid.New()
	const workers = 8

	ids := make([]uuid.UUID, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			account, err := repo.GetOrCreateAccount(ctx, ownerID, "BTC")
			require.NoError(t, err)
			ids[i] = account.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		assert.Equal(t, ids[0], ids[i], "all callers must observe the same account")
	}
}

func TestLedgerRepository_CreateEntry_DuplicateReference(t *testing.T) {
	svc, _, ctx := setupTest(t)

	user, err := svc.EnsureAccount(ctx, uuid.New(), "BTC")
	require.NoError(t, err)
	deposit(t, ctx, svc, user, "10")

	treasury, err := svc.EnsureAccount(ctx, ledger.SystemOwnerTreasury, "BTC")
	require.NoError(t, err)

	reference := "0xdeadbeef"
	lines := []ledger.LineInput{
		{AccountID: user.ID, AssetID: "BTC", Amount: new(big.Int).Neg(amt(t, "1"))},
		{AccountID: treasury.ID, AssetID: "BTC", Amount: amt(t, "1")},
	}

	_, err = svc.PostEntry(ctx, "withdrawal_fund", &reference, nil, lines)
	require.NoError(t, err)

	// Replaying the same (type, reference) must hit the partial unique index
	_, err = svc.PostEntry(ctx, "withdrawal_fund", &reference, nil, lines)
	require.ErrorIs(t, err, ledger.ErrDuplicateReference)

	// A different type may reuse the reference
	_, err = svc.PostEntry(ctx, "escrow_release", &reference, nil, lines)
	require.NoError(t, err)
}

func TestService_ConcurrentHolds_OnlyOneSucceeds(t *testing.T) {
	svc, _, ctx := setupTest(t)

	user, err := svc.EnsureAccount(ctx, uuid.New(), "USDT")
	require.NoError(t, err)
	deposit(t, ctx, svc, user, "100")

	// Two reservations of 80 against 100 available: the row lock must
	// serialize them so exactly one succeeds
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateHold(ctx, user.ID, "USDT", amt(t, "80"), "withdrawal")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, insufficient int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ledger.ErrInsufficientBalance):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, insufficient)

	balance, err := svc.Balances(ctx, user.ID, "USDT")
	require.NoError(t, err)
	assert.Equal(t, "80", money.Format(balance.Held))
	assert.Equal(t, "20", money.Format(balance.Available))
}

func TestService_InTx_RollsBackAllWrites(t *testing.T) {
	svc, _, ctx := setupTest(t)

	user, err := svc.EnsureAccount(ctx, uuid.New(), "BTC")
	require.NoError(t, err)
	deposit(t, ctx, svc, user, "5")

	boom := errors.New("boom")
	err = svc.InTx(ctx, func(ctx context.Context) error {
		hold, err := svc.CreateHold(ctx, user.ID, "BTC", amt(t, "2"), "escrow")
		if err != nil {
			return err
		}
		if _, err := svc.ConsumeHold(ctx, hold.ID, amt(t, "2")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Neither the hold nor the consumption survived the rollback
	balance, err := svc.Balances(ctx, user.ID, "BTC")
	require.NoError(t, err)
	assert.Equal(t, "5", money.Format(balance.Posted))
	assert.Equal(t, "0", money.Format(balance.Held))
	assert.Equal(t, "5", money.Format(balance.Available))
}

func TestLedgerRepository_SumPosted_ExactAtScale(t *testing.T) {
	svc, repo, ctx := setupTest(t)

	user, err := svc.EnsureAccount(ctx, uuid.New(), "SHIB")
	require.NoError(t, err)

	// 20 integer digits at 18 fractional digits of scale exercises the
	// full NUMERIC(78,0) range; SUM must stay exact
	deposit(t, ctx, svc, user, "99999999999999999999.999999999999999999")
	deposit(t, ctx, svc, user, "0.000000000000000001")

	posted, err := repo.SumPostedByAccount(ctx, user.ID, "SHIB")
	require.NoError(t, err)
	assert.Equal(t, "100000000000000000000", money.Format(posted))
}
