package money

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_WholeNumber(t *testing.T) {
	result, err := Parse("1")
	require.NoError(t, err)

	expected, _ := new(big.Int).SetString("1000000000000000000", 10)
	assert.Equal(t, expected, result)
}

func TestParse_WithDecimals(t *testing.T) {
	result, err := Parse("1.5")
	require.NoError(t, err)

	expected, _ := new(big.Int).SetString("1500000000000000000", 10)
	assert.Equal(t, expected, result)
}

func TestParse_SmallestUnit(t *testing.T) {
	result, err := Parse("0.000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1), result)
}

func TestParse_LeadingZeros(t *testing.T) {
	result, err := Parse("000.25")
	require.NoError(t, err)

	expected, _ := new(big.Int).SetString("250000000000000000", 10)
	assert.Equal(t, expected, result)
}

func TestParse_BareFraction(t *testing.T) {
	result, err := Parse(".5")
	require.NoError(t, err)

	expected, _ := new(big.Int).SetString("500000000000000000", 10)
	assert.Equal(t, expected, result)
}

func TestParse_Zero(t *testing.T) {
	result, err := Parse("0")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(0), result)
}

func TestParse_MaxIntegerDigits(t *testing.T) {
	// 20 integer digits is the cap
	result, err := Parse("99999999999999999999")
	require.NoError(t, err)
	assert.Equal(t, "99999999999999999999", Format(result))

	_, err = Parse("100000000000000000000")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestParse_Errors(t *testing.T) {
	cases := map[string]string{
		"empty":             "",
		"negative":          "-1",
		"plus sign":         "+1",
		"letters":           "12a",
		"two dots":          "1.2.3",
		"lone dot":          ".",
		"too many decimals": "0.0000000000000000001", // 19 fractional digits
		"space":             "1 0",
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(input)
			assert.ErrorIs(t, err, ErrInvalidAmount)
		})
	}
}

func TestFormat_TrimsTrailingZeros(t *testing.T) {
	v, err := Parse("1.500000")
	require.NoError(t, err)
	assert.Equal(t, "1.5", Format(v))
}

func TestFormat_Zero(t *testing.T) {
	assert.Equal(t, "0", Format(big.NewInt(0)))
	assert.Equal(t, "0", Format(nil))
}

func TestFormat_Negative(t *testing.T) {
	v, err := Parse("2.25")
	require.NoError(t, err)
	assert.Equal(t, "-2.25", Format(new(big.Int).Neg(v)))
}

func TestParseFormat_RoundTrip(t *testing.T) {
	inputs := []string{
		"0", "1", "0.1", "1.5", "123.456",
		"0.000000000000000001",
		"99999999999999999999.999999999999999999",
		"21000000", "0.00000001", "1000.25",
	}

	for _, s := range inputs {
		v, err := Parse(s)
		require.NoError(t, err, "input %q", s)

		back, err := Parse(Format(v))
		require.NoError(t, err, "re-parse %q", Format(v))
		assert.Zero(t, v.Cmp(back), "round trip changed value for %q", s)
	}
}

func TestAdd(t *testing.T) {
	a, _ := Parse("1.1")
	b, _ := Parse("2.2")
	assert.Equal(t, "3.3", Format(Add(a, b)))
}

func TestSubNonNegative(t *testing.T) {
	a, _ := Parse("5")
	b, _ := Parse("2.5")

	result, err := SubNonNegative(a, b)
	require.NoError(t, err)
	assert.Equal(t, "2.5", Format(result))
}

func TestSubNonNegative_Underflow(t *testing.T) {
	a, _ := Parse("1")
	b, _ := Parse("1.000000000000000001")

	_, err := SubNonNegative(a, b)
	assert.ErrorIs(t, err, ErrNegativeResult)
}

func TestSubNonNegative_Exact(t *testing.T) {
	a, _ := Parse("3")
	result, err := SubNonNegative(a, a)
	require.NoError(t, err)
	assert.True(t, IsZero(result))
}

func TestMin(t *testing.T) {
	a, _ := Parse("1.5")
	b, _ := Parse("2")
	assert.Equal(t, "1.5", Format(Min(a, b)))
	assert.Equal(t, "1.5", Format(Min(b, a)))
}

func TestCmp_NilIsZero(t *testing.T) {
	a, _ := Parse("0")
	assert.Zero(t, Cmp(a, nil))
	assert.Equal(t, -1, Cmp(nil, big.NewInt(1)))
}
