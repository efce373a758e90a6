package num

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
)

func TestCheckedMulOverflow(t *testing.T) {
	max := new(uint256.Int).SetAllOne()
	_, err := CheckedMul(max, uint256.NewInt(2))
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestCheckedSubUnderflow(t *testing.T) {
	_, err := CheckedSub(uint256.NewInt(1), uint256.NewInt(2))
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestCheckedDivByZero(t *testing.T) {
	_, err := CheckedDiv(uint256.NewInt(1), uint256.NewInt(0))
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestMulDivAvoidsIntermediateOverflow(t *testing.T) {
	a := new(uint256.Int).SetAllOne()
	b := uint256.NewInt(2)
	c := uint256.NewInt(2)
	got, err := MulDiv(a, b, c)
	assert.NoError(t, err)
	assert.Equal(t, a.ToBig(), got.ToBig())
}

func TestToUint256LossyClampsNegative(t *testing.T) {
	r := big.NewRat(-5, 1)
	got := ToUint256Lossy(r)
	assert.True(t, got.IsZero())
}

func TestToUint256LossyTruncatesTowardZero(t *testing.T) {
	r := big.NewRat(7, 2) // 3.5
	got := ToUint256Lossy(r)
	assert.Equal(t, uint64(3), got.Uint64())
}

func TestMinMaxRat(t *testing.T) {
	a := big.NewRat(1, 2)
	b := big.NewRat(3, 4)
	assert.Equal(t, a, MinRat(a, b))
	assert.Equal(t, b, MaxRat(a, b))
}
