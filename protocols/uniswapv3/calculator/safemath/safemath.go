package safemath

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	// ErrOverflow is returned when a checked operation exceeds the upper bound of its fixed-width type.
	ErrOverflow = errors.New("arithmetic overflow")
	// ErrUnderflow is returned when a checked operation falls below the lower bound of its fixed-width type.
	ErrUnderflow = errors.New("arithmetic underflow")

	// MaxInt256 is 2^255 - 1.
	MaxInt256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(1))
	// MinInt256 is -2^255.
	MinInt256 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 255))
	// MaxInt128 is 2^127 - 1.
	MaxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	// MinInt128 is -2^127.
	MinInt128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))

	// MaxUint128 is 2^128 - 1.
	MaxUint128 = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))
	// MaxUint160 is 2^160 - 1.
	MaxUint160 = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 160), uint256.NewInt(1))
)

// checkRange returns ErrOverflow or ErrUnderflow when x lies outside [min, max].
func checkRange(x, min, max *big.Int) error {
	if x.Cmp(max) > 0 {
		return ErrOverflow
	}
	if x.Cmp(min) < 0 {
		return ErrUnderflow
	}
	return nil
}

// AddInt256 writes x + y into dest, failing if the result leaves the int256 range.
func AddInt256(dest, x, y *big.Int) error {
	dest.Add(x, y)
	return checkRange(dest, MinInt256, MaxInt256)
}

// SubInt256 writes x - y into dest, failing if the result leaves the int256 range.
func SubInt256(dest, x, y *big.Int) error {
	dest.Sub(x, y)
	return checkRange(dest, MinInt256, MaxInt256)
}

// CheckInt256 validates that x is representable as an int256.
func CheckInt256(x *big.Int) error {
	return checkRange(x, MinInt256, MaxInt256)
}

// CheckInt128 validates that x is representable as an int128.
func CheckInt128(x *big.Int) error {
	return checkRange(x, MinInt128, MaxInt128)
}

// ToInt256 converts an unsigned 256-bit value into a signed one, failing if it exceeds 2^255 - 1.
func ToInt256(x *uint256.Int) (*big.Int, error) {
	if x.Sign() < 0 { // top bit set
		return nil, ErrOverflow
	}
	return x.ToBig(), nil
}

// WrapUint128 truncates x to its low 128 bits in place and returns it.
// This is the explicit, lossy uint128 cast used for owed-token accounting.
func WrapUint128(x *uint256.Int) *uint256.Int {
	return x.And(x, MaxUint128)
}

// AddUint128Wrap writes (x + y) mod 2^128 into dest.
func AddUint128Wrap(dest, x, y *uint256.Int) *uint256.Int {
	dest.Add(x, y)
	return WrapUint128(dest)
}

// FitsUint128 reports whether x is representable as a uint128.
func FitsUint128(x *uint256.Int) bool {
	return x.BitLen() <= 128
}

// FitsUint160 reports whether x is representable as a uint160.
func FitsUint160(x *uint256.Int) bool {
	return x.BitLen() <= 160
}
