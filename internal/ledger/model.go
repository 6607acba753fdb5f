package ledger

import (
	"math/big"
	"time"

	"github.com/google/uuid"
)

// Account is the unit of balance tracking, one per (owner, asset) pair.
// Accounts are created lazily on first use and never deleted.
type Account struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	AssetID   string
	CreatedAt time.Time
	Metadata  map[string]interface{}
}

// Validate validates the account
func (a *Account) Validate() error {
	if a.OwnerID == uuid.Nil {
		return ErrInvalidOwnerID
	}
	if a.AssetID == "" {
		return ErrInvalidAssetID
	}
	return nil
}

// Entry is an immutable journal entry. Its lines must net to zero per
// asset; corrections are new entries, never updates.
type Entry struct {
	ID        uuid.UUID
	Type      string
	Reference *string // optional idempotency key, unique per (type, reference)
	Metadata  map[string]interface{}
	CreatedAt time.Time
	Lines     []*Line
}

// Line is a single signed movement inside a journal entry.
type Line struct {
	ID        uuid.UUID
	EntryID   uuid.UUID
	AccountID uuid.UUID
	AssetID   string
	Amount    *big.Int // signed, scaled by 10^18
}

// Validate validates a single line
func (l *Line) Validate() error {
	if l.AccountID == uuid.Nil {
		return ErrInvalidAccountID
	}
	if l.AssetID == "" {
		return ErrInvalidAssetID
	}
	if l.Amount == nil || l.Amount.Sign() == 0 {
		return ErrInvalidLineAmount
	}
	return nil
}

// Validate validates the entry and enforces the conservation law:
// for every asset present, the signed amounts sum to exactly zero.
func (e *Entry) Validate() error {
	if e.Type == "" {
		return ErrInvalidEntryType
	}
	if len(e.Lines) < 2 {
		return ErrEntryTooFewLines
	}

	sums := make(map[string]*big.Int)
	for _, line := range e.Lines {
		if err := line.Validate(); err != nil {
			return err
		}
		sum, ok := sums[line.AssetID]
		if !ok {
			sum = big.NewInt(0)
			sums[line.AssetID] = sum
		}
		sum.Add(sum, line.Amount)
	}

	for _, sum := range sums {
		if sum.Sign() != 0 {
			return ErrEntryImbalance
		}
	}
	return nil
}

// HoldStatus represents the lifecycle state of a hold
type HoldStatus string

const (
	HoldStatusActive   HoldStatus = "active"
	HoldStatusReleased HoldStatus = "released"
	HoldStatusConsumed HoldStatus = "consumed"
)

// Hold reserves a slice of an account's posted balance against a pending
// obligation. Remaining only ever decreases; a hold transitions exactly
// once to released or consumed.
type Hold struct {
	ID         uuid.UUID
	AccountID  uuid.UUID
	AssetID    string
	Amount     *big.Int
	Remaining  *big.Int
	Status     HoldStatus
	Reason     string
	Metadata   map[string]interface{}
	CreatedAt  time.Time
	ReleasedAt *time.Time
}

// Validate validates the hold
func (h *Hold) Validate() error {
	if h.AccountID == uuid.Nil {
		return ErrInvalidAccountID
	}
	if h.AssetID == "" {
		return ErrInvalidAssetID
	}
	if h.Amount == nil || h.Amount.Sign() <= 0 {
		return ErrInvalidHoldAmount
	}
	if h.Remaining == nil || h.Remaining.Sign() < 0 {
		return ErrInvalidHoldAmount
	}
	switch h.Status {
	case HoldStatusActive, HoldStatusReleased, HoldStatusConsumed:
	default:
		return ErrInvalidHoldStatus
	}
	return nil
}

// IsActive reports whether the hold still contributes to held balance
func (h *Hold) IsActive() bool {
	return h.Status == HoldStatusActive
}

// Balance is the derived view over journal lines and active holds.
// It is computed on demand and never stored.
type Balance struct {
	AccountID uuid.UUID
	AssetID   string
	Posted    *big.Int
	Held      *big.Int
	Available *big.Int
}

// LineInput is the caller-facing shape for composing journal entries.
type LineInput struct {
	AccountID uuid.UUID
	AssetID   string
	Amount    *big.Int // signed
}
