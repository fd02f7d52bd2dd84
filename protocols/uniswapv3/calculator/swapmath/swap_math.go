package swapmath

import (
	"errors"
	"math/big"
	"sync"

	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/fullmath"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/safemath"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/sqrtpricemath"
	"github.com/holiman/uint256"
)

// FeeDenominator is 100% expressed in pips (hundredths of a basis point).
const FeeDenominator = 1_000_000

var (
	ErrInvalidFee = errors.New("fee must be below 1e6 pips")

	feeDenominator = uint256.NewInt(FeeDenominator)
)

// SwapMath holds the scratch values of a single swap step.
// Instances are managed by a sync.Pool for safe concurrent use.
type SwapMath struct {
	sqrtRatioNextX96 uint256.Int
	amountIn         uint256.Int
	amountOut        uint256.Int
	feeAmount        uint256.Int

	amountRemainingAbs     uint256.Int
	amountRemainingLessFee uint256.Int
	fee                    uint256.Int
	feeComplement          uint256.Int
}

var swapMathPool = sync.Pool{
	New: func() any {
		return new(SwapMath)
	},
}

// ComputeSwapStep computes the result of swapping some amount in or out within a single price range.
//
// amountRemaining is signed: positive for exact input, negative for exact output.
// The price moves from sqrtRatioCurrentX96 toward sqrtRatioTargetX96 and stops at the target
// or when the remaining amount is used up, whichever comes first.
func ComputeSwapStep(
	// destination pointers
	sqrtRatioNextX96 *uint256.Int,
	amountIn *uint256.Int,
	amountOut *uint256.Int,
	feeAmount *uint256.Int,

	sqrtRatioCurrentX96 *uint256.Int,
	sqrtRatioTargetX96 *uint256.Int,
	liquidity *uint256.Int,
	amountRemaining *big.Int,
	feePips uint32,
) error {
	if feePips >= FeeDenominator {
		return ErrInvalidFee
	}
	if err := safemath.CheckInt256(amountRemaining); err != nil {
		return err
	}

	s := swapMathPool.Get().(*SwapMath)
	defer swapMathPool.Put(s)

	if err := s.computeSwapStep(sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, amountRemaining, feePips); err != nil {
		return err
	}

	sqrtRatioNextX96.Set(&s.sqrtRatioNextX96)
	amountIn.Set(&s.amountIn)
	amountOut.Set(&s.amountOut)
	feeAmount.Set(&s.feeAmount)
	return nil
}

func (s *SwapMath) computeSwapStep(
	sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity *uint256.Int, amountRemaining *big.Int, feePips uint32,
) error {
	zeroForOne := !sqrtRatioCurrentX96.Lt(sqrtRatioTargetX96)
	exactIn := amountRemaining.Sign() >= 0

	s.amountIn.Clear()
	s.amountOut.Clear()
	s.feeAmount.Clear()
	s.fee.SetUint64(uint64(feePips))
	s.feeComplement.SetUint64(uint64(FeeDenominator - feePips))
	s.amountRemainingAbs.SetFromBig(new(big.Int).Abs(amountRemaining))

	var err error
	if exactIn {
		if err = fullmath.MulDiv(&s.amountRemainingLessFee, &s.amountRemainingAbs, &s.feeComplement, feeDenominator); err != nil {
			return err
		}
		if zeroForOne {
			err = sqrtpricemath.GetAmount0Delta(&s.amountIn, sqrtRatioTargetX96, sqrtRatioCurrentX96, liquidity, true)
		} else {
			err = sqrtpricemath.GetAmount1Delta(&s.amountIn, sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, true)
		}
		if err != nil {
			return err
		}

		if !s.amountRemainingLessFee.Lt(&s.amountIn) {
			s.sqrtRatioNextX96.Set(sqrtRatioTargetX96)
		} else if err = sqrtpricemath.GetNextSqrtPriceFromInput(&s.sqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, &s.amountRemainingLessFee, zeroForOne); err != nil {
			return err
		}
	} else {
		if zeroForOne {
			err = sqrtpricemath.GetAmount1Delta(&s.amountOut, sqrtRatioTargetX96, sqrtRatioCurrentX96, liquidity, false)
		} else {
			err = sqrtpricemath.GetAmount0Delta(&s.amountOut, sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, false)
		}
		if err != nil {
			return err
		}

		if !s.amountRemainingAbs.Lt(&s.amountOut) {
			s.sqrtRatioNextX96.Set(sqrtRatioTargetX96)
		} else if err = sqrtpricemath.GetNextSqrtPriceFromOutput(&s.sqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, &s.amountRemainingAbs, zeroForOne); err != nil {
			return err
		}
	}

	max := sqrtRatioTargetX96.Eq(&s.sqrtRatioNextX96)

	// recompute the amounts for the price actually reached
	if zeroForOne {
		if !(max && exactIn) {
			if err = sqrtpricemath.GetAmount0Delta(&s.amountIn, &s.sqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, true); err != nil {
				return err
			}
		}
		if !(max && !exactIn) {
			if err = sqrtpricemath.GetAmount1Delta(&s.amountOut, &s.sqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, false); err != nil {
				return err
			}
		}
	} else {
		if !(max && exactIn) {
			if err = sqrtpricemath.GetAmount1Delta(&s.amountIn, sqrtRatioCurrentX96, &s.sqrtRatioNextX96, liquidity, true); err != nil {
				return err
			}
		}
		if !(max && !exactIn) {
			if err = sqrtpricemath.GetAmount0Delta(&s.amountOut, sqrtRatioCurrentX96, &s.sqrtRatioNextX96, liquidity, false); err != nil {
				return err
			}
		}
	}

	// cap the output amount to not exceed the remaining output amount
	if !exactIn && s.amountOut.Gt(&s.amountRemainingAbs) {
		s.amountOut.Set(&s.amountRemainingAbs)
	}

	if exactIn && !s.sqrtRatioNextX96.Eq(sqrtRatioTargetX96) {
		// the target was not reached, so the remainder of the input is taken as fee
		s.feeAmount.Sub(&s.amountRemainingAbs, &s.amountIn)
		return nil
	}
	return fullmath.MulDivRoundingUp(&s.feeAmount, &s.amountIn, &s.fee, &s.feeComplement)
}
