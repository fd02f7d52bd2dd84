package fullmath

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	// ErrDivisionByZero is returned when the denominator is zero.
	ErrDivisionByZero = errors.New("fullmath: division by zero")
	// ErrOverflow is returned when the result does not fit in 256 bits.
	ErrOverflow = errors.New("fullmath: result overflows uint256")
)

// MulDiv writes floor(a*b/denominator) into dest, using a 512-bit intermediate product.
// dest may alias any of the inputs.
func MulDiv(dest, a, b, denominator *uint256.Int) error {
	if denominator.IsZero() {
		return ErrDivisionByZero
	}
	if _, overflow := dest.MulDivOverflow(a, b, denominator); overflow {
		return ErrOverflow
	}
	return nil
}

// MulDivRoundingUp writes ceil(a*b/denominator) into dest.
func MulDivRoundingUp(dest, a, b, denominator *uint256.Int) error {
	if denominator.IsZero() {
		return ErrDivisionByZero
	}
	var rem uint256.Int
	rem.MulMod(a, b, denominator)

	if _, overflow := dest.MulDivOverflow(a, b, denominator); overflow {
		return ErrOverflow
	}
	if !rem.IsZero() {
		if dest.Eq(maxUint256) {
			return ErrOverflow
		}
		dest.AddUint64(dest, 1)
	}
	return nil
}

// DivRoundingUp writes ceil(x/y) into dest. Fails when y is zero.
func DivRoundingUp(dest, x, y *uint256.Int) error {
	if y.IsZero() {
		return ErrDivisionByZero
	}
	var rem uint256.Int
	rem.Mod(x, y)
	dest.Div(x, y)
	if !rem.IsZero() {
		dest.AddUint64(dest, 1)
	}
	return nil
}

var maxUint256 = new(uint256.Int).SetAllOne()
