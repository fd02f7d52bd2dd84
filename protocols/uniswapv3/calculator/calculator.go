package calculator

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/defistate/defistate-amm-go/protocols/uniswapv3"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/fullmath"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/safemath"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/swapmath"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/tickbitmap"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/tickmath"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmountIn    = errors.New("amountIn must be positive")
	ErrInvalidAmountOut   = errors.New("amountOut must be positive")
	ErrTokenMismatch      = errors.New("token mismatch")
	ErrInvalidPriceLimit  = errors.New("invalid sqrt price limit")
	ErrPoolNotInitialized = errors.New("pool is not initialized")
)

var Q96 = new(uint256.Int).Lsh(uint256.NewInt(1), 96)

var swapStatePool = sync.Pool{
	New: func() any {
		return &swapmath.SwapState{
			AmountSpecifiedRemaining: new(big.Int),
			AmountCalculated:         new(big.Int),
			SqrtPriceX96:             new(uint256.Int),
			Liquidity:                new(uint256.Int),
		}
	},
}

func resetState(s *swapmath.SwapState, amountSpecified *big.Int, pool *uniswapv3.Pool) {
	s.AmountSpecifiedRemaining.Set(amountSpecified)
	s.AmountCalculated.SetInt64(0)
	s.SqrtPriceX96.Set(pool.SqrtPriceX96)
	s.Tick = pool.Tick
	s.Liquidity.Set(pool.Liquidity)
	s.Steps = 0
	s.TicksCrossed = 0
}

// tickIndex is the part of a snapshot the swap loop needs to walk initialized ticks.
type tickIndex struct {
	bitmap *tickbitmap.Bitmap
	net    map[int64]*big.Int
}

func newTickIndex(pool *uniswapv3.Pool) (*tickIndex, error) {
	bitmap, err := tickbitmap.New(pool.TickSpacing)
	if err != nil {
		return nil, err
	}
	idx := &tickIndex{bitmap: bitmap, net: make(map[int64]*big.Int, len(pool.Ticks))}
	for _, t := range pool.Ticks {
		if t.LiquidityGross == nil || t.LiquidityGross.IsZero() {
			continue
		}
		if err := bitmap.FlipTick(t.Index); err != nil {
			return nil, fmt.Errorf("tick %d: %w", t.Index, err)
		}
		idx.net[t.Index] = t.LiquidityNet
	}
	return idx, nil
}

// direction resolves tokenIn to a swap direction.
func direction(tokenIn common.Address, pool *uniswapv3.Pool) (zeroForOne bool, err error) {
	switch tokenIn {
	case pool.Token0:
		return true, nil
	case pool.Token1:
		return false, nil
	}
	return false, fmt.Errorf("%w: token %s is not in pool %s", ErrTokenMismatch, tokenIn, pool.Address)
}

// priceLimit returns the caller's limit, or the widest limit for the direction when it is nil.
func priceLimit(limit *uint256.Int, zeroForOne bool, pool *uniswapv3.Pool) (*uint256.Int, error) {
	if limit == nil {
		if zeroForOne {
			return new(uint256.Int).AddUint64(tickmath.MIN_SQRT_RATIO, 1), nil
		}
		return new(uint256.Int).SubUint64(tickmath.MAX_SQRT_RATIO, 1), nil
	}
	if zeroForOne {
		if !limit.Lt(pool.SqrtPriceX96) || !limit.Gt(tickmath.MIN_SQRT_RATIO) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPriceLimit, limit.Dec())
		}
	} else if !limit.Gt(pool.SqrtPriceX96) || !limit.Lt(tickmath.MAX_SQRT_RATIO) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPriceLimit, limit.Dec())
	}
	return limit, nil
}

// swap runs the swap loop over a snapshot. Fee growth and tick state are not tracked,
// so the snapshot is left untouched.
func swap(state *swapmath.SwapState, pool *uniswapv3.Pool, sqrtPriceLimitX96 *uint256.Int, zeroForOne bool) error {
	ticks, err := newTickIndex(pool)
	if err != nil {
		return err
	}
	return swapmath.Swap(state, ticks.bitmap, sqrtPriceLimitX96, zeroForOne, pool.Fee, swapmath.SwapHooks{
		Cross: func(tick int64) (*big.Int, error) {
			net, ok := ticks.net[tick]
			if !ok {
				return nil, fmt.Errorf("tick %d missing from snapshot", tick)
			}
			return net, nil
		},
	})
}

func simulate(amountSpecified *big.Int, sqrtPriceLimitX96 *uint256.Int, tokenIn common.Address, pool uniswapv3.Pool) (*big.Int, uniswapv3.Pool, error) {
	if pool.SqrtPriceX96 == nil || pool.SqrtPriceX96.IsZero() {
		return nil, uniswapv3.Pool{}, ErrPoolNotInitialized
	}
	zeroForOne, err := direction(tokenIn, &pool)
	if err != nil {
		return nil, uniswapv3.Pool{}, err
	}
	limit, err := priceLimit(sqrtPriceLimitX96, zeroForOne, &pool)
	if err != nil {
		return nil, uniswapv3.Pool{}, err
	}

	state := swapStatePool.Get().(*swapmath.SwapState)
	defer swapStatePool.Put(state)
	resetState(state, amountSpecified, &pool)

	if err := swap(state, &pool, limit, zeroForOne); err != nil {
		return nil, uniswapv3.Pool{}, err
	}

	next := uniswapv3.DeepCopyPool(pool)
	next.SqrtPriceX96 = new(uint256.Int).Set(state.SqrtPriceX96)
	next.Tick = state.Tick
	next.Liquidity = new(uint256.Int).Set(state.Liquidity)
	return new(big.Int).Set(state.AmountCalculated), next, nil
}

// SimulateExactInSwap calculates the amount out and the pool's price, tick and liquidity after
// swapping amountIn of tokenIn. A nil sqrtPriceLimitX96 lets the swap run to the end of the range.
// Fee growth in the returned view is not advanced.
func SimulateExactInSwap(
	amountIn *uint256.Int,
	sqrtPriceLimitX96 *uint256.Int,
	tokenIn common.Address,
	pool uniswapv3.Pool,
) (amountOut *uint256.Int, newPoolState uniswapv3.Pool, err error) {
	if amountIn == nil || amountIn.IsZero() {
		return nil, uniswapv3.Pool{}, ErrInvalidAmountIn
	}
	specified, err := safemath.ToInt256(amountIn)
	if err != nil {
		return nil, uniswapv3.Pool{}, fmt.Errorf("%w: %w", ErrInvalidAmountIn, err)
	}

	calculated, newPoolState, err := simulate(specified, sqrtPriceLimitX96, tokenIn, pool)
	if err != nil {
		return nil, uniswapv3.Pool{}, err
	}
	// amountCalculated is the negated amount out
	amountOut, _ = uint256.FromBig(calculated.Neg(calculated))
	return amountOut, newPoolState, nil
}

// SimulateExactOutSwap calculates the amount of tokenIn required to receive amountOut.
func SimulateExactOutSwap(
	amountOut *uint256.Int,
	sqrtPriceLimitX96 *uint256.Int,
	tokenIn common.Address,
	pool uniswapv3.Pool,
) (amountIn *uint256.Int, newPoolState uniswapv3.Pool, err error) {
	if amountOut == nil || amountOut.IsZero() {
		return nil, uniswapv3.Pool{}, ErrInvalidAmountOut
	}
	specified, err := safemath.ToInt256(amountOut)
	if err != nil {
		return nil, uniswapv3.Pool{}, fmt.Errorf("%w: %w", ErrInvalidAmountOut, err)
	}

	calculated, newPoolState, err := simulate(specified.Neg(specified), sqrtPriceLimitX96, tokenIn, pool)
	if err != nil {
		return nil, uniswapv3.Pool{}, err
	}
	amountIn, _ = uint256.FromBig(calculated)
	return amountIn, newPoolState, nil
}

// GetAmountOut calculates the amount out for a given exact amount in.
func GetAmountOut(amountIn, sqrtPriceLimitX96 *uint256.Int, tokenIn common.Address, pool uniswapv3.Pool) (*uint256.Int, error) {
	amountOut, _, err := SimulateExactInSwap(amountIn, sqrtPriceLimitX96, tokenIn, pool)
	return amountOut, err
}

// GetAmountIn calculates the required amount in for a given exact amount out.
func GetAmountIn(amountOut, sqrtPriceLimitX96 *uint256.Int, tokenIn common.Address, pool uniswapv3.Pool) (*uint256.Int, error) {
	amountIn, _, err := SimulateExactOutSwap(amountOut, sqrtPriceLimitX96, tokenIn, pool)
	return amountIn, err
}

// GetVirtualReserves returns the reserves a constant-product pool with the same liquidity and
// price would hold: L/sqrtP of token0 and L*sqrtP of token1.
func GetVirtualReserves(pool uniswapv3.Pool) (reserve0, reserve1 *uint256.Int, err error) {
	if pool.SqrtPriceX96 == nil || pool.SqrtPriceX96.IsZero() {
		return nil, nil, ErrPoolNotInitialized
	}
	reserve0, reserve1 = new(uint256.Int), new(uint256.Int)
	if err := fullmath.MulDiv(reserve0, pool.Liquidity, Q96, pool.SqrtPriceX96); err != nil {
		return nil, nil, err
	}
	if err := fullmath.MulDiv(reserve1, pool.Liquidity, pool.SqrtPriceX96, Q96); err != nil {
		return nil, nil, err
	}
	return reserve0, reserve1, nil
}

// VirtualReserves is GetVirtualReserves scaled to whole tokens.
func VirtualReserves(pool uniswapv3.Pool, decimals0, decimals1 int32) (reserve0, reserve1 decimal.Decimal, err error) {
	r0, r1, err := GetVirtualReserves(pool)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	reserve0 = decimal.NewFromBigInt(r0.ToBig(), -decimals0)
	reserve1 = decimal.NewFromBigInt(r1.ToBig(), -decimals1)
	return reserve0, reserve1, nil
}

// SpotPrice returns the price of one whole token0 in token1, adjusted for decimals.
// The result is rounded to precision decimal places.
func SpotPrice(pool uniswapv3.Pool, decimals0, decimals1, precision int32) (decimal.Decimal, error) {
	if pool.SqrtPriceX96 == nil || pool.SqrtPriceX96.IsZero() {
		return decimal.Zero, ErrPoolNotInitialized
	}
	sqrtPrice := decimal.NewFromBigInt(pool.SqrtPriceX96.ToBig(), 0)
	// price = sqrtP^2 / 2^192, squared first so only the final division rounds
	num := sqrtPrice.Mul(sqrtPrice).Shift(decimals0 - decimals1)
	den := decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 192), 0)
	return num.DivRound(den, precision), nil
}

// InversePrice returns the price of one whole token1 in token0.
func InversePrice(pool uniswapv3.Pool, decimals0, decimals1, precision int32) (decimal.Decimal, error) {
	if pool.SqrtPriceX96 == nil || pool.SqrtPriceX96.IsZero() {
		return decimal.Zero, ErrPoolNotInitialized
	}
	sqrtPrice := decimal.NewFromBigInt(pool.SqrtPriceX96.ToBig(), 0)
	num := decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 192), decimals1-decimals0)
	return num.DivRound(sqrtPrice.Mul(sqrtPrice), precision), nil
}
