package money

import "errors"

var (
	// ErrInvalidAmount is returned when a decimal string cannot be parsed
	// into a scaled amount (empty, signed, malformed, or out of range).
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNegativeResult is returned by SubNonNegative when the subtrahend
	// exceeds the minuend.
	ErrNegativeResult = errors.New("subtraction result would be negative")

	// ErrInvalidBps is returned when a basis-point rate is negative.
	ErrInvalidBps = errors.New("invalid basis points")

	// ErrZeroStep is returned when a step/tick operation receives a
	// non-positive step.
	ErrZeroStep = errors.New("step must be positive")
)
