package vault

import (
	"github.com/holiman/uint256"
)

// FeeDenominator is the basis point denominator used by every fee
const FeeDenominator = 10000

var feeDenominator = uint256.NewInt(FeeDenominator)

// mulDiv returns floor(x * y / d) with a 512-bit intermediate product
func mulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivisionByZero
	}
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// bpsOf returns floor(amount * bps / 10000)
func bpsOf(amount *uint256.Int, bps uint64) (*uint256.Int, error) {
	return mulDiv(amount, uint256.NewInt(bps), feeDenominator)
}

func checkedAdd(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

func checkedSub(a, b *uint256.Int) (*uint256.Int, error) {
	z, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		return nil, ErrOverflow
	}
	return z, nil
}
