package asset

import (
	"math/big"
	"time"

	"github.com/coinpilot/exchange-ledger/pkg/money"
)

// Asset represents a currency or token supported by the platform. The
// ID doubles as the ledger asset identifier ("BTC", "USDT-TRC20").
type Asset struct {
	ID              string    `json:"id"`
	Symbol          string    `json:"symbol"`
	Name            string    `json:"name"`
	ChainID         *string   `json:"chain_id,omitempty"` // nil for fiat and native L1
	Decimals        int       `json:"decimals"`           // on-chain precision, at most 18
	WithdrawFeeBps  int64     `json:"withdraw_fee_bps"`
	MinWithdrawal   *big.Int  `json:"-"` // base units, zero means no minimum
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Validate validates the asset fields
func (a *Asset) Validate() error {
	if a.ID == "" {
		return ErrInvalidAssetID
	}
	if a.Symbol == "" {
		return ErrInvalidSymbol
	}
	if a.Name == "" {
		return ErrInvalidName
	}
	if a.Decimals < 0 || a.Decimals > money.Scale {
		return ErrInvalidDecimals
	}
	if a.WithdrawFeeBps < 0 || a.WithdrawFeeBps > 10000 {
		return ErrInvalidFeeBps
	}
	return nil
}

// Step returns the smallest representable increment of the asset in
// base units: 10^(18 - decimals). A 6-decimal asset has a step of
// 10^12, so sub-step ledger amounts can never reach the chain.
func (a *Asset) Step() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(money.Scale-a.Decimals)), nil)
}

// IsToken returns true if the asset lives on a chain
func (a *Asset) IsToken() bool {
	return a.ChainID != nil
}

// NewAsset creates a new active asset
func NewAsset(id, symbol, name string, decimals int) *Asset {
	now := time.Now().UTC()
	return &Asset{
		ID:            id,
		Symbol:        symbol,
		Name:          name,
		Decimals:      decimals,
		MinWithdrawal: big.NewInt(0),
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// WithChain sets the chain for a token asset
func (a *Asset) WithChain(chainID string) *Asset {
	a.ChainID = &chainID
	return a
}

// WithWithdrawFee sets the withdrawal fee in basis points
func (a *Asset) WithWithdrawFee(bps int64) *Asset {
	a.WithdrawFeeBps = bps
	return a
}
