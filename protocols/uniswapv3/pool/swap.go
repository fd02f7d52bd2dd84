package pool

import (
	"fmt"
	"math/big"

	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/fullmath"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/safemath"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/swapmath"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/tickmath"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/position"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/tick"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// SwapResult describes the outcome of a swap.
type SwapResult struct {
	// the pool's balance deltas; positive amounts are paid to the pool, negative amounts by it
	Amount0 *big.Int
	Amount1 *big.Int
	// the pool's state after the swap
	SqrtPriceX96 *uint256.Int
	Tick         int64
	Liquidity    *uint256.Int

	Steps        int
	TicksCrossed int
}

// swapOutcome is a computed but uncommitted swap.
type swapOutcome struct {
	SwapResult
	zeroForOne          bool
	ticks               *tick.Batch
	feeGrowthGlobalX128 *uint256.Int
	protocolFee         *uint256.Int
}

// computeSwap runs the swap loop against staged state.
//
// amountSpecified is positive for exact input and negative for exact output. The swap stops
// when it is used up or the price reaches sqrtPriceLimitX96.
func (p *Pool) computeSwap(zeroForOne bool, amountSpecified *big.Int, sqrtPriceLimitX96 *uint256.Int) (*swapOutcome, error) {
	if !p.initialized() {
		return nil, ErrNotInitialized
	}
	if amountSpecified.Sign() == 0 {
		return nil, ErrZeroAmount
	}
	if err := safemath.CheckInt256(amountSpecified); err != nil {
		return nil, fmt.Errorf("amount specified: %w", err)
	}

	sqrtPriceStart := p.slot0.sqrtPriceX96
	if zeroForOne {
		if !sqrtPriceLimitX96.Lt(sqrtPriceStart) || !sqrtPriceLimitX96.Gt(tickmath.MIN_SQRT_RATIO) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPriceLimit, sqrtPriceLimitX96.Dec())
		}
	} else {
		if !sqrtPriceLimitX96.Gt(sqrtPriceStart) || !sqrtPriceLimitX96.Lt(tickmath.MAX_SQRT_RATIO) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPriceLimit, sqrtPriceLimitX96.Dec())
		}
	}

	feeProtocol := p.slot0.feeProtocol >> 4
	feeGrowthGlobal := p.feeGrowthGlobal1X128
	if zeroForOne {
		feeProtocol = p.slot0.feeProtocol % 16
		feeGrowthGlobal = p.feeGrowthGlobal0X128
	}

	out := &swapOutcome{
		zeroForOne:          zeroForOne,
		ticks:               p.ticks.Batch(),
		feeGrowthGlobalX128: new(uint256.Int).Set(feeGrowthGlobal),
		protocolFee:         new(uint256.Int),
	}
	state := &swapmath.SwapState{
		AmountSpecifiedRemaining: new(big.Int).Set(amountSpecified),
		AmountCalculated:         new(big.Int),
		SqrtPriceX96:             new(uint256.Int).Set(sqrtPriceStart),
		Tick:                     p.slot0.tick,
		Liquidity:                new(uint256.Int).Set(p.liquidity),
	}

	var (
		feeGrowthDelta uint256.Int
		protocolDelta  uint256.Int
	)
	hooks := swapmath.SwapHooks{
		OnFee: func(feeAmount, liquidity *uint256.Int) error {
			if feeProtocol > 0 {
				protocolDelta.Div(feeAmount, uint256.NewInt(uint64(feeProtocol)))
				feeAmount.Sub(feeAmount, &protocolDelta)
				safemath.AddUint128Wrap(out.protocolFee, out.protocolFee, &protocolDelta)
			}
			if liquidity.IsZero() {
				return nil
			}
			if err := fullmath.MulDiv(&feeGrowthDelta, feeAmount, position.Q128, liquidity); err != nil {
				return err
			}
			out.feeGrowthGlobalX128.Add(out.feeGrowthGlobalX128, &feeGrowthDelta)
			return nil
		},
		Cross: func(tickNext int64) (*big.Int, error) {
			g0, g1 := out.feeGrowthGlobalX128, p.feeGrowthGlobal1X128
			if !zeroForOne {
				g0, g1 = p.feeGrowthGlobal0X128, out.feeGrowthGlobalX128
			}
			return out.ticks.Cross(tickNext, g0, g1), nil
		},
	}
	if err := swapmath.Swap(state, p.bitmap, sqrtPriceLimitX96, zeroForOne, p.fee, hooks); err != nil {
		return nil, err
	}

	specifiedUsed := new(big.Int).Sub(amountSpecified, state.AmountSpecifiedRemaining)
	if zeroForOne == (amountSpecified.Sign() > 0) {
		out.Amount0, out.Amount1 = specifiedUsed, state.AmountCalculated
	} else {
		out.Amount0, out.Amount1 = state.AmountCalculated, specifiedUsed
	}
	out.SqrtPriceX96 = state.SqrtPriceX96
	out.Tick = state.Tick
	out.Liquidity = state.Liquidity
	out.Steps = state.Steps
	out.TicksCrossed = state.TicksCrossed
	return out, nil
}

func (p *Pool) commitSwap(out *swapOutcome) {
	out.ticks.Commit()
	p.slot0.sqrtPriceX96 = new(uint256.Int).Set(out.SqrtPriceX96)
	p.slot0.tick = out.Tick
	p.liquidity = new(uint256.Int).Set(out.Liquidity)

	// protocol fees wrap at 2^128 and must be collected before they do
	if out.zeroForOne {
		p.feeGrowthGlobal0X128 = out.feeGrowthGlobalX128
		safemath.AddUint128Wrap(p.protocolFees0, p.protocolFees0, out.protocolFee)
	} else {
		p.feeGrowthGlobal1X128 = out.feeGrowthGlobalX128
		safemath.AddUint128Wrap(p.protocolFees1, p.protocolFees1, out.protocolFee)
	}
}

// Swap exchanges token0 for token1 (zeroForOne) or token1 for token0. The recipient is paid
// the output first and then pays the input, both through the ledger.
//
// It returns the pool's balance deltas: positive amounts were paid in, negative amounts paid out.
func (p *Pool) Swap(recipient common.Address, zeroForOne bool, amountSpecified *big.Int, sqrtPriceLimitX96 *uint256.Int) (amount0, amount1 *big.Int, err error) {
	done := p.begin("swap")
	defer func() { done(err) }()

	out, err := p.computeSwap(zeroForOne, amountSpecified, sqrtPriceLimitX96)
	if err != nil {
		return nil, nil, err
	}

	tokenIn, tokenOut := p.token0, p.token1
	amountIn, amountOut := out.Amount0, out.Amount1
	if !zeroForOne {
		tokenIn, tokenOut = p.token1, p.token0
		amountIn, amountOut = out.Amount1, out.Amount0
	}

	s := p.newSettlement()
	if amountOut.Sign() < 0 {
		owed, _ := uint256.FromBig(new(big.Int).Neg(amountOut))
		if err := s.push(tokenOut, recipient, owed); err != nil {
			return nil, nil, s.revert(err)
		}
	}
	if amountIn.Sign() > 0 {
		owed, _ := uint256.FromBig(amountIn)
		if err := s.pull(tokenIn, recipient, owed); err != nil {
			return nil, nil, s.revert(err)
		}
	}

	p.commitSwap(out)
	p.metrics.ticksCrossed.WithLabelValues(p.address.Hex()).Add(float64(out.TicksCrossed))
	p.metrics.swapSteps.Observe(float64(out.Steps))
	p.logger.Debug("swapped",
		"pool", p.address,
		"recipient", recipient,
		"zeroForOne", zeroForOne,
		"amount0", out.Amount0.String(),
		"amount1", out.Amount1.String(),
		"sqrtPriceX96", out.SqrtPriceX96.Dec(),
		"tick", out.Tick,
		"ticksCrossed", out.TicksCrossed,
	)
	return out.Amount0, out.Amount1, nil
}

// Quote computes the result of a swap without changing the pool or moving tokens.
func (p *Pool) Quote(zeroForOne bool, amountSpecified *big.Int, sqrtPriceLimitX96 *uint256.Int) (result SwapResult, err error) {
	done := p.begin("quote")
	defer func() { done(err) }()

	out, err := p.computeSwap(zeroForOne, amountSpecified, sqrtPriceLimitX96)
	if err != nil {
		return SwapResult{}, err
	}
	return out.SwapResult, nil
}

func validFeeProtocol(fp uint8) bool {
	return fp == 0 || (fp >= 4 && fp <= 10)
}

// SetFeeProtocol sets the denominators of the protocol's share of swap fees for each token.
// Each must be 0, which switches the share off, or between 4 and 10.
func (p *Pool) SetFeeProtocol(feeProtocol0, feeProtocol1 uint8) (err error) {
	done := p.begin("set_fee_protocol")
	defer func() { done(err) }()

	if !p.initialized() {
		return ErrNotInitialized
	}
	if !validFeeProtocol(feeProtocol0) || !validFeeProtocol(feeProtocol1) {
		return fmt.Errorf("%w: %d, %d", ErrInvalidFeeProtocol, feeProtocol0, feeProtocol1)
	}
	old := p.slot0.feeProtocol
	p.slot0.feeProtocol = feeProtocol0 | feeProtocol1<<4
	p.logger.Info("fee protocol set",
		"pool", p.address,
		"old0", old%16, "old1", old>>4,
		"new0", feeProtocol0, "new1", feeProtocol1,
	)
	return nil
}

// CollectProtocol pays recipient up to the requested amounts of the accrued protocol fees.
func (p *Pool) CollectProtocol(recipient common.Address, amount0Requested, amount1Requested *uint256.Int) (amount0, amount1 *uint256.Int, err error) {
	done := p.begin("collect_protocol")
	defer func() { done(err) }()

	if !p.initialized() {
		return nil, nil, ErrNotInitialized
	}
	amount0 = minUint256(amount0Requested, p.protocolFees0)
	amount1 = minUint256(amount1Requested, p.protocolFees1)

	s := p.newSettlement()
	if err := s.push(p.token0, recipient, amount0); err != nil {
		return nil, nil, s.revert(err)
	}
	if err := s.push(p.token1, recipient, amount1); err != nil {
		return nil, nil, s.revert(err)
	}

	p.protocolFees0.Sub(p.protocolFees0, amount0)
	p.protocolFees1.Sub(p.protocolFees1, amount1)
	p.logger.Debug("protocol fees collected",
		"pool", p.address,
		"recipient", recipient,
		"amount0", amount0.Dec(),
		"amount1", amount1.Dec(),
	)
	return amount0, amount1, nil
}
