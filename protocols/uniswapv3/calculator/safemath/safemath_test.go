package safemath

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInt256Arithmetic(t *testing.T) {
	one := big.NewInt(1)

	testCases := []struct {
		name string
		op   func(dest, x, y *big.Int) error
		x, y *big.Int
		err  error
	}{
		{"add within range", AddInt256, big.NewInt(5), big.NewInt(-7), nil},
		{"add at the max", AddInt256, new(big.Int).Sub(MaxInt256, one), one, nil},
		{"add overflows", AddInt256, MaxInt256, one, ErrOverflow},
		{"add underflows", AddInt256, MinInt256, big.NewInt(-1), ErrUnderflow},
		{"sub within range", SubInt256, big.NewInt(5), big.NewInt(7), nil},
		{"sub overflows", SubInt256, MaxInt256, big.NewInt(-1), ErrOverflow},
		{"sub underflows", SubInt256, MinInt256, one, ErrUnderflow},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.op(new(big.Int), tc.x, tc.y)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCheckInt128(t *testing.T) {
	assert.NoError(t, CheckInt128(MaxInt128))
	assert.NoError(t, CheckInt128(MinInt128))
	assert.ErrorIs(t, CheckInt128(new(big.Int).Add(MaxInt128, big.NewInt(1))), ErrOverflow)
	assert.ErrorIs(t, CheckInt128(new(big.Int).Sub(MinInt128, big.NewInt(1))), ErrUnderflow)
}

func TestToInt256(t *testing.T) {
	v, err := ToInt256(uint256.NewInt(42))
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Int64())

	top := new(uint256.Int).Lsh(uint256.NewInt(1), 255)
	_, err = ToInt256(top)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestUint128Wrapping(t *testing.T) {
	t.Run("wrap keeps the low 128 bits", func(t *testing.T) {
		x := new(uint256.Int).Lsh(uint256.NewInt(1), 128)
		x.AddUint64(x, 7)
		assert.Equal(t, uint64(7), WrapUint128(x).Uint64())
	})

	t.Run("add wraps modulo 2^128", func(t *testing.T) {
		dest := new(uint256.Int)
		AddUint128Wrap(dest, MaxUint128, uint256.NewInt(3))
		assert.Equal(t, uint64(2), dest.Uint64())
	})

	t.Run("bit width checks", func(t *testing.T) {
		assert.True(t, FitsUint128(MaxUint128))
		assert.False(t, FitsUint128(new(uint256.Int).AddUint64(MaxUint128, 1)))
		assert.True(t, FitsUint160(MaxUint160))
		assert.False(t, FitsUint160(new(uint256.Int).AddUint64(MaxUint160, 1)))
	})
}
