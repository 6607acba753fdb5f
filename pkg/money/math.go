package money

import "math/big"

// MulRound multiplies two scaled amounts and rounds the 36-fractional-digit
// intermediate product half-up back to 18 fractional digits.
// Inputs must be non-negative.
func MulRound(a, b *big.Int) *big.Int {
	product := new(big.Int).Mul(orZero(a), orZero(b))
	quo, rem := new(big.Int).QuoRem(product, scaleFactor, new(big.Int))
	// rem*2 >= scaleFactor means the dropped digits are >= 0.5 ulp
	rem.Lsh(rem, 1)
	if rem.Cmp(scaleFactor) >= 0 {
		quo.Add(quo, big.NewInt(1))
	}
	return quo
}

// MulCeil multiplies two scaled amounts and rounds any non-zero remainder
// up. Used wherever rounding in the platform's favor is required, so fees
// are never under-collected by a sub-unit.
func MulCeil(a, b *big.Int) *big.Int {
	product := new(big.Int).Mul(orZero(a), orZero(b))
	return ceilDiv(product, scaleFactor)
}

// BpsFeeCeil computes amount * bps/10000 rounded up.
// Fails with ErrInvalidBps on a negative rate.
func BpsFeeCeil(amount *big.Int, bps int64) (*big.Int, error) {
	if bps < 0 {
		return nil, ErrInvalidBps
	}
	product := new(big.Int).Mul(orZero(amount), big.NewInt(bps))
	return ceilDiv(product, bpsDivisor), nil
}

// IsMultipleOfStep reports whether value is an exact multiple of step.
// Fails with ErrZeroStep on a non-positive step.
func IsMultipleOfStep(value, step *big.Int) (bool, error) {
	if orZero(step).Sign() <= 0 {
		return false, ErrZeroStep
	}
	rem := new(big.Int).Rem(orZero(value), step)
	return rem.Sign() == 0, nil
}

// QuantizeDownToStep rounds value down to the nearest multiple of step.
// Fails with ErrZeroStep on a non-positive step.
func QuantizeDownToStep(value, step *big.Int) (*big.Int, error) {
	if orZero(step).Sign() <= 0 {
		return nil, ErrZeroStep
	}
	quo := new(big.Int).Quo(orZero(value), step)
	return quo.Mul(quo, step), nil
}

// MulStep returns step * count for a non-negative integer count.
// Fails with ErrInvalidAmount on a negative count and ErrZeroStep on a
// non-positive step.
func MulStep(step *big.Int, count int64) (*big.Int, error) {
	if orZero(step).Sign() <= 0 {
		return nil, ErrZeroStep
	}
	if count < 0 {
		return nil, ErrInvalidAmount
	}
	return new(big.Int).Mul(step, big.NewInt(count)), nil
}

func ceilDiv(num, den *big.Int) *big.Int {
	quo, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	if rem.Sign() != 0 {
		quo.Add(quo, big.NewInt(1))
	}
	return quo
}
