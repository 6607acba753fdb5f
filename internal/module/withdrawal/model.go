package withdrawal

import (
	"math/big"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a withdrawal.
// Forward path: requested -> needs_review -> approved -> broadcasted
// -> confirmed. Rejection is only possible before approval.
type Status string

const (
	StatusRequested   Status = "requested"
	StatusNeedsReview Status = "needs_review"
	StatusApproved    Status = "approved"
	StatusBroadcasted Status = "broadcasted"
	StatusConfirmed   Status = "confirmed"
	StatusRejected    Status = "rejected"
)

// EntryTypeFund is the journal entry type posted when a withdrawal is
// broadcast on chain
const EntryTypeFund = "withdrawal_fund"

// HoldReason marks holds created for pending withdrawals
const HoldReason = "withdrawal"

// Withdrawal represents an outgoing transfer request. Amount is what
// leaves the platform on chain; Fee is charged on top, so the hold
// covers Amount + Fee.
type Withdrawal struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	AccountID uuid.UUID
	AssetID   string
	Amount    *big.Int
	Fee       *big.Int
	HoldID    uuid.UUID
	Address   string
	TxHash    *string
	Status    Status
	Reason    string // populated on rejection
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Total returns the full debit against the user: amount plus fee
func (w *Withdrawal) Total() *big.Int {
	return new(big.Int).Add(w.Amount, w.Fee)
}

// IsTerminal reports whether no further transitions are possible
func (w *Withdrawal) IsTerminal() bool {
	return w.Status == StatusConfirmed || w.Status == StatusRejected
}

// PastApproval reports whether the withdrawal has already cleared the
// approval gate, whatever happened to it since
func (w *Withdrawal) PastApproval() bool {
	return w.Status == StatusApproved || w.Status == StatusBroadcasted || w.Status == StatusConfirmed
}

// CanReject reports whether the withdrawal can still be rejected.
// Once approved the funds are committed to leave and rejection would
// race the broadcast.
func (w *Withdrawal) CanReject() bool {
	return w.Status == StatusRequested || w.Status == StatusNeedsReview
}
