package swapmath

import (
	"errors"
	"math/big"
	"testing"

	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/tickbitmap"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/tickmath"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	q96 = new(uint256.Int).Lsh(uint256.NewInt(1), 96)
	e18 = big.NewInt(1_000_000_000_000_000_000)
)

func newState(amountSpecified *big.Int, liquidity *big.Int) *SwapState {
	l, _ := uint256.FromBig(liquidity)
	return &SwapState{
		AmountSpecifiedRemaining: new(big.Int).Set(amountSpecified),
		AmountCalculated:         new(big.Int),
		SqrtPriceX96:             new(uint256.Int).Set(q96),
		Liquidity:                l,
	}
}

// newTicks flips every tick in net and returns the bitmap with a Cross hook over net.
func newTicks(t *testing.T, net map[int64]*big.Int, crossed *[]int64) (*tickbitmap.Bitmap, func(int64) (*big.Int, error)) {
	t.Helper()
	bitmap, err := tickbitmap.New(60)
	require.NoError(t, err)
	for tick := range net {
		require.NoError(t, bitmap.FlipTick(tick))
	}
	return bitmap, func(tick int64) (*big.Int, error) {
		*crossed = append(*crossed, tick)
		return net[tick], nil
	}
}

func TestSwap(t *testing.T) {
	minLimit := new(uint256.Int).AddUint64(tickmath.MIN_SQRT_RATIO, 1)

	t.Run("within one range", func(t *testing.T) {
		var crossed []int64
		ticks, cross := newTicks(t, map[int64]*big.Int{
			-600: new(big.Int).Set(e18),
			600:  new(big.Int).Neg(e18),
		}, &crossed)

		fees := new(uint256.Int)
		state := newState(big.NewInt(1e15), e18)
		err := Swap(state, ticks, minLimit, true, 3000, SwapHooks{
			OnFee: func(feeAmount, liquidity *uint256.Int) error {
				assert.Equal(t, uint256.MustFromBig(e18), liquidity)
				fees.Add(fees, feeAmount)
				return nil
			},
			Cross: cross,
		})
		require.NoError(t, err)

		assert.Equal(t, 0, state.AmountSpecifiedRemaining.Sign())
		assert.Equal(t, big.NewInt(-996006981039903), state.AmountCalculated)
		assert.Equal(t, u("79149250711305166342700278159"), state.SqrtPriceX96)
		assert.Equal(t, int64(-20), state.Tick)
		assert.Equal(t, 1, state.Steps)
		assert.Equal(t, 0, state.TicksCrossed)
		assert.Empty(t, crossed)
		assert.False(t, fees.Lt(uint256.NewInt(3_000_000_000_000)), fees.Dec())
	})

	t.Run("crosses ticks until liquidity runs out", func(t *testing.T) {
		var crossed []int64
		ticks, cross := newTicks(t, map[int64]*big.Int{
			-120: new(big.Int).Set(e18),
			-60:  new(big.Int).Set(e18),
			60:   new(big.Int).Neg(e18),
			120:  new(big.Int).Neg(e18),
		}, &crossed)

		state := newState(big.NewInt(1e16), new(big.Int).Mul(e18, big.NewInt(2)))
		require.NoError(t, Swap(state, ticks, minLimit, true, 3000, SwapHooks{Cross: cross}))

		assert.Equal(t, big.NewInt(-8977092716420442), state.AmountCalculated)
		assert.Equal(t, []int64{-60, -120}, crossed)
		assert.Equal(t, 2, state.TicksCrossed)
		assert.True(t, state.Liquidity.IsZero())
		assert.Equal(t, minLimit, state.SqrtPriceX96)
		assert.Equal(t, int64(tickmath.MIN_TICK), state.Tick)
		// the remaining input could not be swapped
		assert.Equal(t, 1, state.AmountSpecifiedRemaining.Sign())
	})

	t.Run("hook errors stop the swap", func(t *testing.T) {
		ticks, _ := newTicks(t, map[int64]*big.Int{-60: new(big.Int).Set(e18)}, new([]int64))
		errCross := errors.New("cross failed")

		state := newState(big.NewInt(1e18), e18)
		err := Swap(state, ticks, minLimit, true, 3000, SwapHooks{
			Cross: func(int64) (*big.Int, error) { return nil, errCross },
		})
		assert.ErrorIs(t, err, errCross)

		errFee := errors.New("fee failed")
		state = newState(big.NewInt(1e15), e18)
		err = Swap(state, ticks, minLimit, true, 3000, SwapHooks{
			OnFee: func(_, _ *uint256.Int) error { return errFee },
		})
		assert.ErrorIs(t, err, errFee)
	})
}
