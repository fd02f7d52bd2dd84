package pool

import (
	"fmt"
	"math/big"

	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/liquiditymath"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/safemath"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/sqrtpricemath"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/tickmath"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/position"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/tick"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func (p *Pool) checkTicks(tickLower, tickUpper int64) error {
	if tickLower >= tickUpper {
		return fmt.Errorf("%w: [%d, %d]", ErrTickOrder, tickLower, tickUpper)
	}
	if tickLower < tickmath.MIN_TICK {
		return fmt.Errorf("%w: %d", ErrTickLowerOutOfRange, tickLower)
	}
	if tickUpper > tickmath.MAX_TICK {
		return fmt.Errorf("%w: %d", ErrTickUpperOutOfRange, tickUpper)
	}
	if tickLower%p.tickSpacing != 0 || tickUpper%p.tickSpacing != 0 {
		return fmt.Errorf("%w: [%d, %d], spacing %d", ErrTickMisaligned, tickLower, tickUpper, p.tickSpacing)
	}
	return nil
}

// positionChange is the staged result of changing a position's liquidity.
type positionChange struct {
	owner     common.Address
	tickLower int64
	tickUpper int64

	info    position.Info
	ticks   *tick.Batch
	flipped []int64
	// active liquidity after the change
	liquidity *uint256.Int
	// owed to the pool, negative when the pool owes the owner
	amount0 *big.Int
	amount1 *big.Int
}

// modifyPosition stages a liquidity change of a position and computes the token amounts it implies.
// Nothing is written to the pool until commit.
func (p *Pool) modifyPosition(
	owner common.Address,
	tickLower, tickUpper int64,
	current position.Info,
	liquidityDelta *big.Int,
) (*positionChange, error) {
	c := &positionChange{
		owner:     owner,
		tickLower: tickLower,
		tickUpper: tickUpper,
		ticks:     p.ticks.Batch(),
		liquidity: new(uint256.Int).Set(p.liquidity),
		amount0:   new(big.Int),
		amount1:   new(big.Int),
	}
	tickCurrent := p.slot0.tick
	fg0, fg1 := p.feeGrowthGlobal0X128, p.feeGrowthGlobal1X128

	var flippedLower, flippedUpper bool
	if liquidityDelta.Sign() != 0 {
		var err error
		if flippedLower, err = c.ticks.Update(tickLower, tickCurrent, liquidityDelta, fg0, fg1, false, p.maxLiquidityPerTick); err != nil {
			return nil, fmt.Errorf("tick %d: %w", tickLower, err)
		}
		if flippedUpper, err = c.ticks.Update(tickUpper, tickCurrent, liquidityDelta, fg0, fg1, true, p.maxLiquidityPerTick); err != nil {
			return nil, fmt.Errorf("tick %d: %w", tickUpper, err)
		}
		if flippedLower {
			c.flipped = append(c.flipped, tickLower)
		}
		if flippedUpper {
			c.flipped = append(c.flipped, tickUpper)
		}
	}

	inside0, inside1 := c.ticks.FeeGrowthInside(tickLower, tickUpper, tickCurrent, fg0, fg1)
	info, err := current.Update(liquidityDelta, inside0, inside1)
	if err != nil {
		return nil, err
	}
	c.info = info

	// clear any tick data that is no longer needed
	if liquidityDelta.Sign() < 0 {
		if flippedLower {
			c.ticks.Clear(tickLower)
		}
		if flippedUpper {
			c.ticks.Clear(tickUpper)
		}
	}

	if liquidityDelta.Sign() == 0 {
		return c, nil
	}

	var sqrtRatioLower, sqrtRatioUpper uint256.Int
	if err := tickmath.GetSqrtRatioAtTick(&sqrtRatioLower, tickLower); err != nil {
		return nil, err
	}
	if err := tickmath.GetSqrtRatioAtTick(&sqrtRatioUpper, tickUpper); err != nil {
		return nil, err
	}
	sqrtPrice := p.slot0.sqrtPriceX96

	switch {
	case tickCurrent < tickLower:
		// the range can only become active by crossing from the left, when token0 becomes
		// more valuable, so only token0 is needed
		err = sqrtpricemath.GetAmount0DeltaSigned(c.amount0, &sqrtRatioLower, &sqrtRatioUpper, liquidityDelta)
	case tickCurrent < tickUpper:
		if err = sqrtpricemath.GetAmount0DeltaSigned(c.amount0, sqrtPrice, &sqrtRatioUpper, liquidityDelta); err != nil {
			return nil, err
		}
		if err = sqrtpricemath.GetAmount1DeltaSigned(c.amount1, &sqrtRatioLower, sqrtPrice, liquidityDelta); err != nil {
			return nil, err
		}
		err = liquiditymath.AddDelta(c.liquidity, c.liquidity, liquidityDelta)
	default:
		// the range can only become active by crossing from the right, so only token1 is needed
		err = sqrtpricemath.GetAmount1DeltaSigned(c.amount1, &sqrtRatioLower, &sqrtRatioUpper, liquidityDelta)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (p *Pool) commitPosition(c *positionChange) {
	c.ticks.Commit()
	for _, t := range c.flipped {
		// checkTicks guarantees alignment, the only way FlipTick can fail
		_ = p.bitmap.FlipTick(t)
	}
	p.positions.Set(c.owner, c.tickLower, c.tickUpper, c.info)
	p.liquidity = c.liquidity
}

// toLiquidityDelta converts an unsigned liquidity amount to a signed int128 delta.
func toLiquidityDelta(amount *uint256.Int, negative bool) (*big.Int, error) {
	if amount.IsZero() {
		return nil, ErrZeroAmount
	}
	delta := amount.ToBig()
	if err := safemath.CheckInt128(delta); err != nil {
		return nil, fmt.Errorf("liquidity amount %s: %w", amount.Dec(), err)
	}
	if negative {
		delta.Neg(delta)
	}
	return delta, nil
}

// Mint adds amount of liquidity to the recipient's position over [tickLower, tickUpper).
// The recipient pays the token amounts returned, which are pulled from it through the ledger.
func (p *Pool) Mint(recipient common.Address, tickLower, tickUpper int64, amount *uint256.Int) (amount0, amount1 *uint256.Int, err error) {
	done := p.begin("mint")
	defer func() { done(err) }()

	if !p.initialized() {
		return nil, nil, ErrNotInitialized
	}
	delta, err := toLiquidityDelta(amount, false)
	if err != nil {
		return nil, nil, err
	}
	if err := p.checkTicks(tickLower, tickUpper); err != nil {
		return nil, nil, err
	}

	current, ok := p.positions.Lookup(recipient, tickLower, tickUpper)
	if !ok {
		current = position.NewInfo()
	}
	c, err := p.modifyPosition(recipient, tickLower, tickUpper, current, delta)
	if err != nil {
		return nil, nil, err
	}

	amount0, _ = uint256.FromBig(c.amount0)
	amount1, _ = uint256.FromBig(c.amount1)

	s := p.newSettlement()
	if err := s.pull(p.token0, recipient, amount0); err != nil {
		return nil, nil, s.revert(err)
	}
	if err := s.pull(p.token1, recipient, amount1); err != nil {
		return nil, nil, s.revert(err)
	}

	p.commitPosition(c)
	p.logger.Debug("minted",
		"pool", p.address,
		"owner", recipient,
		"tickLower", tickLower,
		"tickUpper", tickUpper,
		"liquidity", amount.Dec(),
		"amount0", amount0.Dec(),
		"amount1", amount1.Dec(),
	)
	return amount0, amount1, nil
}

// Burn removes amount of liquidity from the owner's position. The released token amounts
// are credited to the position's owed balances and must be claimed with Collect.
func (p *Pool) Burn(owner common.Address, tickLower, tickUpper int64, amount *uint256.Int) (amount0, amount1 *uint256.Int, err error) {
	done := p.begin("burn")
	defer func() { done(err) }()

	if !p.initialized() {
		return nil, nil, ErrNotInitialized
	}
	delta, err := toLiquidityDelta(amount, true)
	if err != nil {
		return nil, nil, err
	}
	if err := p.checkTicks(tickLower, tickUpper); err != nil {
		return nil, nil, err
	}

	current, ok := p.positions.Lookup(owner, tickLower, tickUpper)
	if !ok {
		return nil, nil, ErrPositionNotFound
	}
	c, err := p.modifyPosition(owner, tickLower, tickUpper, current, delta)
	if err != nil {
		return nil, nil, err
	}

	amount0, _ = uint256.FromBig(new(big.Int).Neg(c.amount0))
	amount1, _ = uint256.FromBig(new(big.Int).Neg(c.amount1))
	safemath.AddUint128Wrap(c.info.TokensOwed0, c.info.TokensOwed0, amount0)
	safemath.AddUint128Wrap(c.info.TokensOwed1, c.info.TokensOwed1, amount1)

	p.commitPosition(c)
	p.logger.Debug("burned",
		"pool", p.address,
		"owner", owner,
		"tickLower", tickLower,
		"tickUpper", tickUpper,
		"liquidity", amount.Dec(),
		"amount0", amount0.Dec(),
		"amount1", amount1.Dec(),
	)
	return amount0, amount1, nil
}

// Collect pays the owner up to the requested amounts of the position's owed tokens.
// It never creates a position.
func (p *Pool) Collect(owner common.Address, tickLower, tickUpper int64, amount0Requested, amount1Requested *uint256.Int) (amount0, amount1 *uint256.Int, err error) {
	done := p.begin("collect")
	defer func() { done(err) }()

	if !p.initialized() {
		return nil, nil, ErrNotInitialized
	}
	info, ok := p.positions.Lookup(owner, tickLower, tickUpper)
	if !ok || info.IsEmpty() {
		return nil, nil, ErrPositionNotFound
	}

	amount0 = minUint256(amount0Requested, info.TokensOwed0)
	amount1 = minUint256(amount1Requested, info.TokensOwed1)
	info.TokensOwed0.Sub(info.TokensOwed0, amount0)
	info.TokensOwed1.Sub(info.TokensOwed1, amount1)

	s := p.newSettlement()
	if err := s.push(p.token0, owner, amount0); err != nil {
		return nil, nil, s.revert(err)
	}
	if err := s.push(p.token1, owner, amount1); err != nil {
		return nil, nil, s.revert(err)
	}

	p.positions.Set(owner, tickLower, tickUpper, info)
	p.logger.Debug("collected",
		"pool", p.address,
		"owner", owner,
		"tickLower", tickLower,
		"tickUpper", tickUpper,
		"amount0", amount0.Dec(),
		"amount1", amount1.Dec(),
	)
	return amount0, amount1, nil
}

// Poke credits the fees a position has earned since its last update without changing its liquidity.
func (p *Pool) Poke(owner common.Address, tickLower, tickUpper int64) (info position.Info, err error) {
	done := p.begin("poke")
	defer func() { done(err) }()

	if !p.initialized() {
		return position.Info{}, ErrNotInitialized
	}
	current, ok := p.positions.Lookup(owner, tickLower, tickUpper)
	if !ok || current.Liquidity.IsZero() {
		return position.Info{}, ErrPositionNotFound
	}

	c, err := p.modifyPosition(owner, tickLower, tickUpper, current, new(big.Int))
	if err != nil {
		return position.Info{}, err
	}
	p.commitPosition(c)
	return c.info.Clone(), nil
}

func minUint256(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return new(uint256.Int).Set(a)
	}
	return new(uint256.Int).Set(b)
}
