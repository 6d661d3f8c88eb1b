package domain

import (
	"errors"
	"fmt"
	"math"
	"math/big"
)

// ErrInvalidAmount signals a negative monetary input where the caller forbids one.
var ErrInvalidAmount = errors.New("domain: invalid amount")

// CentsFromDecimal converts a major-unit decimal string ("12.345") into integer minor
// units, rounding half-up at two decimal places. It rejects negative values.
func CentsFromDecimal(value string) (int64, error) {
	rat, ok := new(big.Rat).SetString(value)
	if !ok {
		return 0, fmt.Errorf("%w: %q is not a decimal number", ErrInvalidAmount, value)
	}
	if rat.Sign() < 0 {
		return 0, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, value)
	}

	// Scale to minor units and round half-up on the remaining fraction.
	rat.Mul(rat, big.NewRat(100, 1))
	quo := new(big.Int)
	rem := new(big.Int)
	quo.QuoRem(rat.Num(), rat.Denom(), rem)

	rem.Mul(rem, big.NewInt(2))
	if rem.CmpAbs(rat.Denom()) >= 0 {
		quo.Add(quo, big.NewInt(1))
	}
	if !quo.IsInt64() {
		return 0, fmt.Errorf("%w: %q overflows minor units", ErrInvalidAmount, value)
	}
	return quo.Int64(), nil
}

// DecimalFromCents renders integer minor units as a two-decimal major-unit string.
func DecimalFromCents(value int64) string {
	sign := ""
	if value < 0 {
		sign = "-"
		value = -value
	}
	return fmt.Sprintf("%s%d.%02d", sign, value/100, value%100)
}

// PercentOf applies an integer percentage to an amount of minor units,
// rounding half-up to the nearest cent. Rates outside 0-100 and negative
// amounts are contract violations.
func PercentOf(amount int64, percent int64) int64 {
	if amount < 0 {
		panic(fmt.Sprintf("domain: PercentOf amount must be >= 0, got %d", amount))
	}
	if percent < 0 || percent > 100 {
		panic(fmt.Sprintf("domain: PercentOf percent must be in [0,100], got %d", percent))
	}
	product := amount * percent
	return (product + 50) / 100
}

// RoundHalfUp rounds a float to the nearest integer with ties away from zero.
// Used only at the boundary where proportional shares become whole cents.
func RoundHalfUp(value float64) int64 {
	if value >= 0 {
		return int64(math.Floor(value + 0.5))
	}
	return int64(math.Ceil(value - 0.5))
}
