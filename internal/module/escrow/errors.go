package escrow

import "errors"

var (
	ErrNotFound        = errors.New("escrow order not found")
	ErrStateConflict   = errors.New("escrow order is already resolved")
	ErrInvalidSellerID = errors.New("invalid seller ID")
	ErrInvalidBuyerID  = errors.New("invalid buyer ID")
	ErrSameParty       = errors.New("seller and buyer cannot be the same")
	ErrInvalidAmount   = errors.New("invalid amount: must be positive")
)
