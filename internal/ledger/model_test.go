package ledger_test

import (
	"math/big"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/coinpilot/exchange-ledger/internal/ledger"
)

func TestEntry_Validate(t *testing.T) {
	accountA := uuid.New()
	accountB := uuid.New()

	line := func(account uuid.UUID, asset string, amount int64) *ledger.Line {
		return &ledger.Line{
			ID:        uuid.New(),
			AccountID: account,
			AssetID:   asset,
			Amount:    big.NewInt(amount),
		}
	}

	tests := []struct {
		name    string
		entry   *ledger.Entry
		wantErr error
	}{
		{
			name: "balanced two-line entry",
			entry: &ledger.Entry{
				Type:  "deposit",
				Lines: []*ledger.Line{line(accountA, "BTC", 100), line(accountB, "BTC", -100)},
			},
		},
		{
			name: "balanced multi-asset entry",
			entry: &ledger.Entry{
				Type: "trade_fill",
				Lines: []*ledger.Line{
					line(accountA, "BTC", 100), line(accountB, "BTC", -100),
					line(accountB, "USDT", 5000), line(accountA, "USDT", -5000),
				},
			},
		},
		{
			name: "missing type",
			entry: &ledger.Entry{
				Lines: []*ledger.Line{line(accountA, "BTC", 1), line(accountB, "BTC", -1)},
			},
			wantErr: ledger.ErrInvalidEntryType,
		},
		{
			name: "single line",
			entry: &ledger.Entry{
				Type:  "deposit",
				Lines: []*ledger.Line{line(accountA, "BTC", 1)},
			},
			wantErr: ledger.ErrEntryTooFewLines,
		},
		{
			name: "zero amount line",
			entry: &ledger.Entry{
				Type:  "deposit",
				Lines: []*ledger.Line{line(accountA, "BTC", 0), line(accountB, "BTC", 0)},
			},
			wantErr: ledger.ErrInvalidLineAmount,
		},
		{
			name: "imbalance within one asset",
			entry: &ledger.Entry{
				Type:  "deposit",
				Lines: []*ledger.Line{line(accountA, "BTC", 100), line(accountB, "BTC", -99)},
			},
			wantErr: ledger.ErrEntryImbalance,
		},
		{
			name: "cross-asset imbalance",
			entry: &ledger.Entry{
				Type:  "trade_fill",
				Lines: []*ledger.Line{line(accountA, "BTC", 100), line(accountB, "USDT", -100)},
			},
			wantErr: ledger.ErrEntryImbalance,
		},
		{
			name: "missing account on line",
			entry: &ledger.Entry{
				Type:  "deposit",
				Lines: []*ledger.Line{line(uuid.Nil, "BTC", 1), line(accountB, "BTC", -1)},
			},
			wantErr: ledger.ErrInvalidAccountID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHold_Validate(t *testing.T) {
	base := func() *ledger.Hold {
		return &ledger.Hold{
			ID:        uuid.New(),
			AccountID: uuid.New(),
			AssetID:   "USDT",
			Amount:    big.NewInt(100),
			Remaining: big.NewInt(100),
			Status:    ledger.HoldStatusActive,
		}
	}

	assert.NoError(t, base().Validate())

	h := base()
	h.AccountID = uuid.Nil
	assert.ErrorIs(t, h.Validate(), ledger.ErrInvalidAccountID)

	h = base()
	h.Amount = big.NewInt(0)
	assert.ErrorIs(t, h.Validate(), ledger.ErrInvalidHoldAmount)

	h = base()
	h.Amount = big.NewInt(-5)
	assert.ErrorIs(t, h.Validate(), ledger.ErrInvalidHoldAmount)

	h = base()
	h.Remaining = big.NewInt(-1)
	assert.ErrorIs(t, h.Validate(), ledger.ErrInvalidHoldAmount)

	h = base()
	h.Status = "frozen"
	assert.ErrorIs(t, h.Validate(), ledger.ErrInvalidHoldStatus)

	// zero remaining is legal once fully consumed
	h = base()
	h.Remaining = big.NewInt(0)
	h.Status = ledger.HoldStatusConsumed
	assert.NoError(t, h.Validate())
}
