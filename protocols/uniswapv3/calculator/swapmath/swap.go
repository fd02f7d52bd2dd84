package swapmath

import (
	"fmt"
	"math/big"

	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/liquiditymath"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/safemath"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/tickmath"
	"github.com/holiman/uint256"
)

// TickSource finds the next initialized tick from tick, searching left (lte) or right.
// When none is left in the direction it returns the range boundary, uninitialized.
type TickSource interface {
	NextInitializedTick(tick int64, lte bool) (next int64, initialized bool)
}

// SwapState is the running state of a swap. Swap updates it in place.
type SwapState struct {
	// positive for exact input, negative for exact output
	AmountSpecifiedRemaining *big.Int
	AmountCalculated         *big.Int
	SqrtPriceX96             *uint256.Int
	Tick                     int64
	Liquidity                *uint256.Int

	Steps        int
	TicksCrossed int
}

// SwapHooks let the caller account for fees and tick crossings.
type SwapHooks struct {
	// OnFee receives each step's fee and the liquidity in range while it was earned.
	// feeAmount is scratch space and may be modified. Optional.
	OnFee func(feeAmount, liquidity *uint256.Int) error
	// Cross crosses an initialized tick and returns its liquidityNet. Swap does not modify it.
	Cross func(tick int64) (*big.Int, error)
}

// Swap runs steps until the specified amount is used up or the price reaches
// sqrtPriceLimitX96. The limit must already be validated against the state's price.
func Swap(state *SwapState, ticks TickSource, sqrtPriceLimitX96 *uint256.Int, zeroForOne bool, feePips uint32, hooks SwapHooks) error {
	exactInput := state.AmountSpecifiedRemaining.Sign() > 0

	var (
		stepPriceStart uint256.Int
		stepPriceNext  uint256.Int
		amountIn       uint256.Int
		amountOut      uint256.Int
		feeAmount      uint256.Int
	)

	for state.AmountSpecifiedRemaining.Sign() != 0 && !state.SqrtPriceX96.Eq(sqrtPriceLimitX96) {
		state.Steps++
		stepPriceStart.Set(state.SqrtPriceX96)

		tickNext, initialized := ticks.NextInitializedTick(state.Tick, zeroForOne)
		if err := tickmath.GetSqrtRatioAtTick(&stepPriceNext, tickNext); err != nil {
			return err
		}

		// never target past the caller's limit
		target := &stepPriceNext
		if (zeroForOne && stepPriceNext.Lt(sqrtPriceLimitX96)) || (!zeroForOne && stepPriceNext.Gt(sqrtPriceLimitX96)) {
			target = sqrtPriceLimitX96
		}

		if err := ComputeSwapStep(
			state.SqrtPriceX96, &amountIn, &amountOut, &feeAmount,
			state.SqrtPriceX96, target, state.Liquidity, state.AmountSpecifiedRemaining, feePips,
		); err != nil {
			return err
		}

		inWithFee := new(big.Int).Add(amountIn.ToBig(), feeAmount.ToBig())
		var err error
		if exactInput {
			if err = safemath.SubInt256(state.AmountSpecifiedRemaining, state.AmountSpecifiedRemaining, inWithFee); err == nil {
				err = safemath.SubInt256(state.AmountCalculated, state.AmountCalculated, amountOut.ToBig())
			}
		} else {
			if err = safemath.AddInt256(state.AmountSpecifiedRemaining, state.AmountSpecifiedRemaining, amountOut.ToBig()); err == nil {
				err = safemath.AddInt256(state.AmountCalculated, state.AmountCalculated, inWithFee)
			}
		}
		if err != nil {
			return err
		}

		if hooks.OnFee != nil {
			if err := hooks.OnFee(&feeAmount, state.Liquidity); err != nil {
				return err
			}
		}

		if state.SqrtPriceX96.Eq(&stepPriceNext) {
			if initialized {
				crossed, err := hooks.Cross(tickNext)
				if err != nil {
					return fmt.Errorf("cross tick %d: %w", tickNext, err)
				}
				// moving leftward, liquidityNet applies with the opposite sign
				liquidityNet := new(big.Int).Set(crossed)
				if zeroForOne {
					liquidityNet.Neg(liquidityNet)
				}
				if err := liquiditymath.AddDelta(state.Liquidity, state.Liquidity, liquidityNet); err != nil {
					return fmt.Errorf("cross tick %d: %w", tickNext, err)
				}
				state.TicksCrossed++
			}
			if zeroForOne {
				state.Tick = tickNext - 1
			} else {
				state.Tick = tickNext
			}
		} else if !state.SqrtPriceX96.Eq(&stepPriceStart) {
			// landed between ticks, recompute unless the price did not move
			if state.Tick, err = tickmath.GetTickAtSqrtRatio(state.SqrtPriceX96); err != nil {
				return err
			}
		}
	}
	return nil
}
