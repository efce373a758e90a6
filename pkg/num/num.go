// Package num implements the checked arithmetic, fixed-point conversions, and
// rational-number helpers the settlement core needs for bit-stable surplus and
// score computations. Every lossy conversion to float64 or uint256 happens at a
// component boundary and is named accordingly (ToFloat64Lossy, ToUint256Lossy).
package num

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

// ErrOverflow is returned by checked arithmetic helpers when a uint256 result
// would not fit in 256 bits.
var ErrOverflow = errors.New("num: uint256 overflow")

// ErrDivisionByZero is returned when a checked division's divisor is zero.
var ErrDivisionByZero = errors.New("num: division by zero")

// CheckedMul multiplies two uint256 values, returning ErrOverflow if the
// product does not fit in 256 bits.
func CheckedMul(a, b *uint256.Int) (*uint256.Int, error) {
	result, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return result, nil
}

// CheckedAdd adds two uint256 values, returning ErrOverflow on overflow.
func CheckedAdd(a, b *uint256.Int) (*uint256.Int, error) {
	result, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return result, nil
}

// CheckedSub subtracts b from a, returning an error if the result would be
// negative (uint256 has no sign).
func CheckedSub(a, b *uint256.Int) (*uint256.Int, error) {
	if a.Lt(b) {
		return nil, ErrOverflow
	}
	return new(uint256.Int).Sub(a, b), nil
}

// CheckedDiv divides a by b, returning ErrDivisionByZero if b is zero.
func CheckedDiv(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, ErrDivisionByZero
	}
	return new(uint256.Int).Div(a, b), nil
}

// MulDiv computes floor(a*b/c) using arbitrary-precision big.Int internally so
// that the intermediate product never overflows 256 bits, then checks the
// final result still fits in uint256. This mirrors the "executed*price/limit"
// pattern used throughout the surplus and fee formulas.
func MulDiv(a, b, c *uint256.Int) (*uint256.Int, error) {
	if c.IsZero() {
		return nil, ErrDivisionByZero
	}
	prod := new(big.Int).Mul(a.ToBig(), b.ToBig())
	prod.Div(prod, c.ToBig())
	result, overflow := uint256.FromBig(prod)
	if overflow {
		return nil, ErrOverflow
	}
	return result, nil
}

// RatFromUint256 converts a uint256 into an exact big.Rat with denominator 1.
func RatFromUint256(v *uint256.Int) *big.Rat {
	return new(big.Rat).SetInt(v.ToBig())
}

// RatFromBigInt converts a big.Int into an exact big.Rat with denominator 1.
func RatFromBigInt(v *big.Int) *big.Rat {
	return new(big.Rat).SetInt(v)
}

// ToUint256Lossy truncates a rational toward zero and converts it to a
// uint256, clamping negative values to zero. This is the only place a
// rational is allowed to become a fixed-width integer.
func ToUint256Lossy(r *big.Rat) *uint256.Int {
	if r.Sign() <= 0 {
		return uint256.NewInt(0)
	}
	quotient := new(big.Int).Quo(r.Num(), r.Denom())
	result, overflow := uint256.FromBig(quotient)
	if overflow {
		return new(uint256.Int).SetAllOne()
	}
	return result
}

// ToFloat64Lossy converts a rational to the nearest float64. This is used only
// at test/reporting boundaries (e.g. comparing against seed-scenario floats),
// never inside the scoring pipeline itself.
func ToFloat64Lossy(r *big.Rat) float64 {
	f, _ := r.Float64()
	return f
}

// RatFromFloat64 builds an exact rational from a float64, matching the Rust
// source's `BigRational::from_float`.
func RatFromFloat64(f float64) (*big.Rat, bool) {
	r := new(big.Rat)
	return r.SetFloat64(f), r != nil
}

// MinRat returns the smaller of two rationals.
func MinRat(a, b *big.Rat) *big.Rat {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// MaxRat returns the larger of two rationals.
func MaxRat(a, b *big.Rat) *big.Rat {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

// Uint256FromDecimal parses a base-10 string into a uint256, returning false
// on malformed input rather than panicking (the codec must never panic on
// adversarial input).
func Uint256FromDecimal(s string) (*uint256.Int, bool) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, false
	}
	return v, true
}
