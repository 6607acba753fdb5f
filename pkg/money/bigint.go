package money

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// Amount is a wrapper around a scaled big.Int that marshals to and from the
// human decimal form ("1.5" rather than "1500000000000000000"). It is the
// type used at JSON edges; the engine itself works with bare *big.Int.
type Amount struct {
	*big.Int
}

// NewAmount wraps a scaled big.Int.
func NewAmount(i *big.Int) *Amount {
	if i == nil {
		return nil
	}
	return &Amount{Int: i}
}

// ParseAmount parses a decimal string into an Amount.
func ParseAmount(s string) (*Amount, error) {
	v, err := Parse(s)
	if err != nil {
		return nil, err
	}
	return &Amount{Int: v}, nil
}

// UnmarshalJSON accepts "1.5", 1.5 is rejected (no floats), and null.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		a.Int = nil
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("amount must be a decimal string: %w", err)
	}

	v, err := Parse(s)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", s, err)
	}
	a.Int = v
	return nil
}

// MarshalJSON renders the amount as a decimal string.
func (a *Amount) MarshalJSON() ([]byte, error) {
	if a == nil || a.Int == nil {
		return []byte("null"), nil
	}
	return json.Marshal(Format(a.Int))
}

// ToBigInt returns the underlying scaled *big.Int.
func (a *Amount) ToBigInt() *big.Int {
	if a == nil {
		return nil
	}
	return a.Int
}

// IsNil returns true if the Amount carries no value.
func (a *Amount) IsNil() bool {
	return a == nil || a.Int == nil
}

// String renders the decimal form.
func (a *Amount) String() string {
	if a.IsNil() {
		return "0"
	}
	return Format(a.Int)
}
