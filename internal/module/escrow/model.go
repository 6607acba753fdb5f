package escrow

import (
	"math/big"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of an escrow order
type Status string

const (
	StatusOpen      Status = "open"
	StatusReleased  Status = "released"
	StatusCancelled Status = "cancelled"
)

// EntryTypeRelease is the journal entry type posted when escrowed
// funds move to the buyer
const EntryTypeRelease = "escrow_release"

// HoldReason marks holds created for escrow orders
const HoldReason = "escrow"

// Order locks a seller's funds until the off-platform side of a P2P
// trade completes. Funds stay on the seller's account under a hold;
// they only move when the order is released.
type Order struct {
	ID        uuid.UUID
	SellerID  uuid.UUID
	BuyerID   uuid.UUID
	AccountID uuid.UUID // seller's ledger account
	AssetID   string
	Amount    *big.Int
	HoldID    uuid.UUID
	Status    Status
	Reference *string // optional external trade reference
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsOpen reports whether the order can still be released or cancelled
func (o *Order) IsOpen() bool {
	return o.Status == StatusOpen
}
