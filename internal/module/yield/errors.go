package yield

import "errors"

var (
	ErrNotFound        = errors.New("yield position not found")
	ErrStateConflict   = errors.New("yield position is already redeemed")
	ErrInvalidOwnerID  = errors.New("invalid owner ID")
	ErrInvalidAmount   = errors.New("invalid principal: must be positive")
	ErrInvalidRate     = errors.New("invalid rate: must be between 0 and 10000 basis points")
)
