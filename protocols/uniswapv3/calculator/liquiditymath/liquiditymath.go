package liquiditymath

import (
	"fmt"
	"math/big"

	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/safemath"
	"github.com/holiman/uint256"
)

var (
	ErrLiquidityOverflow  = fmt.Errorf("%w: liquidity exceeds uint128", safemath.ErrOverflow)
	ErrLiquidityUnderflow = fmt.Errorf("%w: liquidity below zero", safemath.ErrUnderflow)
)

// AddDelta adds a signed int128 liquidity delta to an unsigned uint128 liquidity value.
// dest is left untouched on error.
func AddDelta(dest, x *uint256.Int, y *big.Int) error {
	if err := safemath.CheckInt128(y); err != nil {
		return err
	}

	abs, _ := uint256.FromBig(new(big.Int).Abs(y))
	var z uint256.Int
	if y.Sign() < 0 {
		if abs.Gt(x) {
			return ErrLiquidityUnderflow
		}
		z.Sub(x, abs)
	} else {
		z.Add(x, abs)
		if !safemath.FitsUint128(&z) {
			return ErrLiquidityOverflow
		}
	}
	dest.Set(&z)
	return nil
}
