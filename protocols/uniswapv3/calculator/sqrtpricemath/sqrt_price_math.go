package sqrtpricemath

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/fullmath"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/safemath"
	"github.com/holiman/uint256"
)

// Resolution is the number of fractional bits in a Q64.96 price.
const Resolution = 96

var (
	// Q96 is the Q64.96 fixed-point number representing 1.
	Q96 = new(uint256.Int).Lsh(uint256.NewInt(1), Resolution)

	ErrLiquidityZero = errors.New("liquidity must be greater than zero")
	ErrSqrtPriceZero = errors.New("sqrt price must be greater than zero")
	// ErrPriceOverflow is returned when the next price does not fit in 160 bits.
	ErrPriceOverflow = fmt.Errorf("%w: next sqrt price exceeds uint160", safemath.ErrOverflow)
	// ErrInsufficientLiquidity is returned when an exact output exceeds what the range can provide.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity for requested output")
)

// GetNextSqrtPriceFromAmount0RoundingUp returns the price after adding or removing amount of token0.
// The result is rounded up so the price moves less than the exact value, keeping the pool solvent.
func GetNextSqrtPriceFromAmount0RoundingUp(dest, sqrtPX96, liquidity, amount *uint256.Int, add bool) error {
	if amount.IsZero() {
		dest.Set(sqrtPX96)
		return nil
	}

	var numerator1, product, denominator uint256.Int
	numerator1.Lsh(liquidity, Resolution)
	_, productOverflow := product.MulOverflow(amount, sqrtPX96)

	if add {
		if !productOverflow {
			if _, overflow := denominator.AddOverflow(&numerator1, &product); !overflow {
				return fullmath.MulDivRoundingUp(dest, &numerator1, sqrtPX96, &denominator)
			}
		}
		// liquidity << 96 / (liquidity << 96 / sqrtP + amount), never overflows in the multiply
		denominator.Div(&numerator1, sqrtPX96)
		if _, overflow := denominator.AddOverflow(&denominator, amount); overflow {
			return fmt.Errorf("%w: amount0 denominator", safemath.ErrOverflow)
		}
		return fullmath.DivRoundingUp(dest, &numerator1, &denominator)
	}

	// The output can never exceed the virtual reserves.
	if productOverflow || !numerator1.Gt(&product) {
		return ErrInsufficientLiquidity
	}
	denominator.Sub(&numerator1, &product)
	if err := fullmath.MulDivRoundingUp(dest, &numerator1, sqrtPX96, &denominator); err != nil {
		return err
	}
	if !safemath.FitsUint160(dest) {
		return ErrPriceOverflow
	}
	return nil
}

// GetNextSqrtPriceFromAmount1RoundingDown returns the price after adding or removing amount of token1.
// The result is rounded down so the price moves less than the exact value.
func GetNextSqrtPriceFromAmount1RoundingDown(dest, sqrtPX96, liquidity, amount *uint256.Int, add bool) error {
	var quotient uint256.Int
	if add {
		if safemath.FitsUint160(amount) {
			quotient.Lsh(amount, Resolution)
			quotient.Div(&quotient, liquidity)
		} else if err := fullmath.MulDiv(&quotient, amount, Q96, liquidity); err != nil {
			return err
		}
		if _, overflow := dest.AddOverflow(sqrtPX96, &quotient); overflow || !safemath.FitsUint160(dest) {
			return ErrPriceOverflow
		}
		return nil
	}

	if safemath.FitsUint160(amount) {
		quotient.Lsh(amount, Resolution)
		if err := fullmath.DivRoundingUp(&quotient, &quotient, liquidity); err != nil {
			return err
		}
	} else if err := fullmath.MulDivRoundingUp(&quotient, amount, Q96, liquidity); err != nil {
		return err
	}
	if !sqrtPX96.Gt(&quotient) {
		return ErrInsufficientLiquidity
	}
	dest.Sub(sqrtPX96, &quotient)
	return nil
}

// GetNextSqrtPriceFromInput returns the price after swapping amountIn of the input token.
func GetNextSqrtPriceFromInput(dest, sqrtPX96, liquidity, amountIn *uint256.Int, zeroForOne bool) error {
	if sqrtPX96.IsZero() {
		return ErrSqrtPriceZero
	}
	if liquidity.IsZero() {
		return ErrLiquidityZero
	}
	if zeroForOne {
		return GetNextSqrtPriceFromAmount0RoundingUp(dest, sqrtPX96, liquidity, amountIn, true)
	}
	return GetNextSqrtPriceFromAmount1RoundingDown(dest, sqrtPX96, liquidity, amountIn, true)
}

// GetNextSqrtPriceFromOutput returns the price after swapping out amountOut of the output token.
func GetNextSqrtPriceFromOutput(dest, sqrtPX96, liquidity, amountOut *uint256.Int, zeroForOne bool) error {
	if sqrtPX96.IsZero() {
		return ErrSqrtPriceZero
	}
	if liquidity.IsZero() {
		return ErrLiquidityZero
	}
	if zeroForOne {
		return GetNextSqrtPriceFromAmount1RoundingDown(dest, sqrtPX96, liquidity, amountOut, false)
	}
	return GetNextSqrtPriceFromAmount0RoundingUp(dest, sqrtPX96, liquidity, amountOut, false)
}

// GetAmount0Delta writes liquidity / sqrt(lower) - liquidity / sqrt(upper) into dest.
// The two prices may be given in either order.
func GetAmount0Delta(dest, sqrtRatioAX96, sqrtRatioBX96, liquidity *uint256.Int, roundUp bool) error {
	a, b := sqrtRatioAX96, sqrtRatioBX96
	if a.Gt(b) {
		a, b = b, a
	}
	if a.IsZero() {
		return ErrSqrtPriceZero
	}

	var numerator1, numerator2 uint256.Int
	numerator1.Lsh(liquidity, Resolution)
	numerator2.Sub(b, a)

	if roundUp {
		if err := fullmath.MulDivRoundingUp(dest, &numerator1, &numerator2, b); err != nil {
			return err
		}
		return fullmath.DivRoundingUp(dest, dest, a)
	}
	if err := fullmath.MulDiv(dest, &numerator1, &numerator2, b); err != nil {
		return err
	}
	dest.Div(dest, a)
	return nil
}

// GetAmount1Delta writes liquidity * (sqrt(upper) - sqrt(lower)) into dest.
func GetAmount1Delta(dest, sqrtRatioAX96, sqrtRatioBX96, liquidity *uint256.Int, roundUp bool) error {
	a, b := sqrtRatioAX96, sqrtRatioBX96
	if a.Gt(b) {
		a, b = b, a
	}
	var diff uint256.Int
	diff.Sub(b, a)
	if roundUp {
		return fullmath.MulDivRoundingUp(dest, liquidity, &diff, Q96)
	}
	return fullmath.MulDiv(dest, liquidity, &diff, Q96)
}

// GetAmount0DeltaSigned writes the signed token0 delta for a liquidity change into dest.
// Added liquidity rounds up (owed to the pool), removed liquidity rounds down and is negated.
func GetAmount0DeltaSigned(dest *big.Int, sqrtRatioAX96, sqrtRatioBX96 *uint256.Int, liquidityDelta *big.Int) error {
	return signedDelta(dest, sqrtRatioAX96, sqrtRatioBX96, liquidityDelta, GetAmount0Delta)
}

// GetAmount1DeltaSigned is the token1 counterpart of GetAmount0DeltaSigned.
func GetAmount1DeltaSigned(dest *big.Int, sqrtRatioAX96, sqrtRatioBX96 *uint256.Int, liquidityDelta *big.Int) error {
	return signedDelta(dest, sqrtRatioAX96, sqrtRatioBX96, liquidityDelta, GetAmount1Delta)
}

type deltaFunc func(dest, sqrtRatioAX96, sqrtRatioBX96, liquidity *uint256.Int, roundUp bool) error

func signedDelta(dest *big.Int, a, b *uint256.Int, liquidityDelta *big.Int, fn deltaFunc) error {
	if err := safemath.CheckInt128(liquidityDelta); err != nil {
		return err
	}

	negative := liquidityDelta.Sign() < 0
	liquidity, _ := uint256.FromBig(new(big.Int).Abs(liquidityDelta))

	var amount uint256.Int
	if err := fn(&amount, a, b, liquidity, !negative); err != nil {
		return err
	}
	signed, err := safemath.ToInt256(&amount)
	if err != nil {
		return err
	}
	if negative {
		signed.Neg(signed)
	}
	dest.Set(signed)
	return nil
}
