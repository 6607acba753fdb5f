// Package money implements exact fixed-point decimal arithmetic for money
// paths. Amounts are *big.Int values scaled by 10^18: up to 20 integer
// digits and exactly 18 fractional digits. No floating point is used
// anywhere in this package.
package money

import (
	"math/big"
	"strings"
)

// Scale is the number of fractional digits carried by every scaled amount.
const Scale = 18

// MaxIntegerDigits bounds the integer part of a parseable amount.
const MaxIntegerDigits = 20

var (
	scaleFactor = pow10(Scale)
	bpsDivisor  = big.NewInt(10000)
)

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// Parse converts a non-negative decimal string to a scaled amount.
// It fails with ErrInvalidAmount when the string is empty, carries a sign,
// contains non-digit characters, has more than 18 fractional digits, or
// exceeds 20 integer digits.
func Parse(s string) (*big.Int, error) {
	if s == "" {
		return nil, ErrInvalidAmount
	}

	intPart := s
	fracPart := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		intPart = s[:idx]
		fracPart = s[idx+1:]
		if strings.IndexByte(fracPart, '.') >= 0 {
			return nil, ErrInvalidAmount
		}
	}

	if intPart == "" && fracPart == "" {
		return nil, ErrInvalidAmount
	}
	if !isDigits(intPart) || !isDigits(fracPart) {
		return nil, ErrInvalidAmount
	}
	if len(fracPart) > Scale {
		return nil, ErrInvalidAmount
	}
	if len(strings.TrimLeft(intPart, "0")) > MaxIntegerDigits {
		return nil, ErrInvalidAmount
	}

	// Pad the fractional part to exactly Scale digits and concatenate.
	combined := intPart + fracPart + strings.Repeat("0", Scale-len(fracPart))
	combined = strings.TrimLeft(combined, "0")
	if combined == "" {
		combined = "0"
	}

	result, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, ErrInvalidAmount
	}
	return result, nil
}

// Format converts a scaled amount back to its decimal string.
// Trailing fractional zeros are trimmed, so Format(Parse(s)) is numerically
// equal to s. Negative inputs keep their sign; they occur for signed
// journal lines.
func Format(v *big.Int) string {
	if v == nil {
		return "0"
	}

	sign := ""
	abs := v
	if v.Sign() < 0 {
		sign = "-"
		abs = new(big.Int).Neg(v)
	}

	str := abs.String()
	for len(str) <= Scale {
		str = "0" + str
	}

	pos := len(str) - Scale
	result := str[:pos] + "." + str[pos:]
	result = strings.TrimRight(result, "0")
	result = strings.TrimRight(result, ".")
	if result == "" {
		result = "0"
	}
	return sign + result
}

// Cmp compares two scaled amounts, treating nil as zero.
func Cmp(a, b *big.Int) int {
	return orZero(a).Cmp(orZero(b))
}

// Min returns the smaller of two scaled amounts.
func Min(a, b *big.Int) *big.Int {
	if Cmp(a, b) <= 0 {
		return new(big.Int).Set(orZero(a))
	}
	return new(big.Int).Set(orZero(b))
}

// Add returns a + b.
func Add(a, b *big.Int) *big.Int {
	return new(big.Int).Add(orZero(a), orZero(b))
}

// SubNonNegative returns a - b, failing with ErrNegativeResult when b > a.
// This is the only subtraction the engine uses: underflow is a checked
// error, never a silent negative.
func SubNonNegative(a, b *big.Int) (*big.Int, error) {
	a, b = orZero(a), orZero(b)
	if b.Cmp(a) > 0 {
		return nil, ErrNegativeResult
	}
	return new(big.Int).Sub(a, b), nil
}

// IsZero reports whether the amount is zero (or nil).
func IsZero(v *big.Int) bool {
	return v == nil || v.Sign() == 0
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
