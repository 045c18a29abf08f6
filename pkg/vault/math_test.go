package vault

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulDiv(t *testing.T) {
	max := new(uint256.Int).SetAllOne()

	// max * max / max needs the 512-bit intermediate
	z, err := mulDiv(max, max, max)
	require.NoError(t, err)
	assert.Equal(t, max, z)

	z, err = mulDiv(uint256.NewInt(7), uint256.NewInt(3), uint256.NewInt(2))
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(10), z)

	_, err = mulDiv(max, max, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrOverflow)

	_, err = mulDiv(uint256.NewInt(1), uint256.NewInt(1), new(uint256.Int))
	require.ErrorIs(t, err, ErrDivisionByZero)
}

func TestBpsOf(t *testing.T) {
	tests := []struct {
		amount uint64
		bps    uint64
		want   uint64
	}{
		{500, 25, 1},
		{10000, 400, 400},
		{10000, 100, 100},
		{9999, 1, 0},
		{0, 1200, 0},
		{1000, 10000, 1000},
	}
	for _, tt := range tests {
		got, err := bpsOf(uint256.NewInt(tt.amount), tt.bps)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got.Uint64(), "%d bps of %d", tt.bps, tt.amount)
	}
}

func TestCheckedArithmetic(t *testing.T) {
	max := new(uint256.Int).SetAllOne()

	_, err := checkedAdd(max, uint256.NewInt(1))
	require.ErrorIs(t, err, ErrOverflow)

	_, err = checkedSub(uint256.NewInt(1), uint256.NewInt(2))
	require.ErrorIs(t, err, ErrOverflow)

	z, err := checkedSub(uint256.NewInt(5), uint256.NewInt(2))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), z.Uint64())
}
