package withdrawal

import "errors"

var (
	ErrNotFound       = errors.New("withdrawal not found")
	ErrStateConflict  = errors.New("withdrawal state does not permit this operation")
	ErrInvalidOwnerID = errors.New("invalid owner ID")
	ErrInvalidAmount  = errors.New("invalid amount: must be positive")
	ErrInvalidAddress = errors.New("destination address is required")
	ErrInvalidTxHash  = errors.New("transaction hash is required")
)
