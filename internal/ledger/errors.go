package ledger

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/coinpilot/exchange-ledger/pkg/money"
)

// Account errors
var (
	ErrInvalidOwnerID   = errors.New("invalid owner ID")
	ErrInvalidAssetID   = errors.New("invalid asset ID")
	ErrInvalidAccountID = errors.New("invalid account ID")
	ErrAccountNotFound  = errors.New("account not found")
)

// Entry errors
var (
	ErrInvalidEntryType  = errors.New("entry type is required")
	ErrEntryTooFewLines  = errors.New("entry requires at least two lines")
	ErrInvalidLineAmount = errors.New("line amount must be non-zero")

	// ErrEntryImbalance indicates a caller composed lines that do not net
	// to zero per asset. It is a caller bug, not a user-facing condition,
	// and is logged as a critical invariant violation.
	ErrEntryImbalance = errors.New("entry lines do not net to zero per asset")

	// ErrDuplicateReference is returned when an entry with the same
	// (type, reference) idempotency key was already posted.
	ErrDuplicateReference = errors.New("entry reference already posted")

	ErrEntryNotFound = errors.New("entry not found")
)

// Hold errors
var (
	ErrInvalidHoldAmount = errors.New("hold amount must be positive")
	ErrInvalidHoldStatus = errors.New("invalid hold status")
	ErrHoldNotFound      = errors.New("hold not found")
	ErrHoldNotActive     = errors.New("hold is not active")
)

// Balance errors
var (
	// ErrInsufficientBalance is the sentinel matched by errors.Is against
	// InsufficientBalanceError values.
	ErrInsufficientBalance = errors.New("insufficient available balance")

	// ErrHoldInsufficientRemaining is the sentinel for
	// HoldInsufficientRemainingError values.
	ErrHoldInsufficientRemaining = errors.New("hold has insufficient remaining amount")
)

// InsufficientBalanceError reports a reservation or debit that exceeds the
// available (posted minus held) balance.
type InsufficientBalanceError struct {
	Available *big.Int
	Requested *big.Int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient available balance: available=%s requested=%s",
		money.Format(e.Available), money.Format(e.Requested))
}

// Is lets errors.Is(err, ErrInsufficientBalance) match
func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// HoldInsufficientRemainingError reports a consumption larger than what is
// left on the hold.
type HoldInsufficientRemainingError struct {
	Remaining *big.Int
	Requested *big.Int
}

func (e *HoldInsufficientRemainingError) Error() string {
	return fmt.Sprintf("hold has insufficient remaining amount: remaining=%s requested=%s",
		money.Format(e.Remaining), money.Format(e.Requested))
}

// Is lets errors.Is(err, ErrHoldInsufficientRemaining) match
func (e *HoldInsufficientRemainingError) Is(target error) bool {
	return target == ErrHoldInsufficientRemaining
}
