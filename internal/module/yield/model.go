package yield

import (
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/coinpilot/exchange-ledger/pkg/money"
)

// Status represents the lifecycle state of a yield position
type Status string

const (
	StatusActive   Status = "active"
	StatusRedeemed Status = "redeemed"
)

// EntryTypeRedeem is the journal entry type posted when a position is
// redeemed
const EntryTypeRedeem = "yield_redeem"

// HoldReason marks holds created for yield subscriptions
const HoldReason = "yield"

// Position is a user's subscription to a yield product. The principal
// stays on the user's account under a hold for the life of the
// position; interest is computed and posted at redemption.
type Position struct {
	ID           uuid.UUID
	OwnerID      uuid.UUID
	AccountID    uuid.UUID
	AssetID      string
	Principal    *big.Int
	RateBps      int64 // simple interest for the full term, in basis points
	HoldID       uuid.UUID
	Status       Status
	SubscribedAt time.Time
	RedeemedAt   *time.Time
	UpdatedAt    time.Time
}

// Interest returns the interest owed on redemption: principal times
// the rate, rounded half-up at the base unit.
func (p *Position) Interest() *big.Int {
	rate := new(big.Int).Mul(big.NewInt(p.RateBps), new(big.Int).Exp(big.NewInt(10), big.NewInt(money.Scale-4), nil))
	return money.MulRound(p.Principal, rate)
}

// IsActive reports whether the position can still be redeemed
func (p *Position) IsActive() bool {
	return p.Status == StatusActive
}
