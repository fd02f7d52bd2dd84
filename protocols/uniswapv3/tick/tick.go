package tick

import (
	"fmt"
	"math/big"

	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/liquiditymath"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/safemath"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/tickmath"
	"github.com/holiman/uint256"
)

// ErrLiquidityOverflow is returned when a tick's gross liquidity would exceed the per-tick maximum.
var ErrLiquidityOverflow = fmt.Errorf("%w: tick liquidity exceeds max liquidity per tick", safemath.ErrOverflow)

// Info is the state stored for each initialized tick.
type Info struct {
	// total position liquidity that references this tick
	LiquidityGross *uint256.Int
	// net liquidity added when the tick is crossed left to right; an int128
	LiquidityNet *big.Int
	// fee growth per unit of liquidity on the other side of this tick relative to the current tick,
	// only meaningful relative to other snapshots
	FeeGrowthOutside0X128 *uint256.Int
	FeeGrowthOutside1X128 *uint256.Int
	Initialized           bool
}

// NewInfo returns an uninitialized tick with all quantities zero.
func NewInfo() Info {
	return Info{
		LiquidityGross:        new(uint256.Int),
		LiquidityNet:          new(big.Int),
		FeeGrowthOutside0X128: new(uint256.Int),
		FeeGrowthOutside1X128: new(uint256.Int),
	}
}

// Clone returns a deep copy of i.
func (i Info) Clone() Info {
	return Info{
		LiquidityGross:        new(uint256.Int).Set(i.LiquidityGross),
		LiquidityNet:          new(big.Int).Set(i.LiquidityNet),
		FeeGrowthOutside0X128: new(uint256.Int).Set(i.FeeGrowthOutside0X128),
		FeeGrowthOutside1X128: new(uint256.Int).Set(i.FeeGrowthOutside1X128),
		Initialized:           i.Initialized,
	}
}

// TickSpacingToMaxLiquidityPerTick derives the most liquidity any single tick may reference,
// so that the liquidity of a position spanning every usable tick still fits in uint128.
func TickSpacingToMaxLiquidityPerTick(tickSpacing int64) *uint256.Int {
	minTick := (tickmath.MIN_TICK / tickSpacing) * tickSpacing
	maxTick := (tickmath.MAX_TICK / tickSpacing) * tickSpacing
	numTicks := uint64((maxTick-minTick)/tickSpacing) + 1
	return new(uint256.Int).Div(safemath.MaxUint128, uint256.NewInt(numTicks))
}

// store is the access surface shared by a Registry and its Batches.
type store interface {
	Get(tick int64) Info
	Set(tick int64, info Info)
	Clear(tick int64)
}

// update applies a liquidity delta to tick and reports whether it flipped between
// initialized and uninitialized.
func update(
	s store,
	tick, tickCurrent int64,
	liquidityDelta *big.Int,
	feeGrowthGlobal0X128, feeGrowthGlobal1X128 *uint256.Int,
	upper bool,
	maxLiquidity *uint256.Int,
) (bool, error) {
	info := s.Get(tick)

	liquidityGrossAfter := new(uint256.Int)
	if err := liquiditymath.AddDelta(liquidityGrossAfter, info.LiquidityGross, liquidityDelta); err != nil {
		return false, err
	}
	if liquidityGrossAfter.Gt(maxLiquidity) {
		return false, ErrLiquidityOverflow
	}

	flipped := liquidityGrossAfter.IsZero() != info.LiquidityGross.IsZero()

	if info.LiquidityGross.IsZero() {
		// by convention, all growth before a tick was initialized happened below it
		if tick <= tickCurrent {
			info.FeeGrowthOutside0X128.Set(feeGrowthGlobal0X128)
			info.FeeGrowthOutside1X128.Set(feeGrowthGlobal1X128)
		}
		info.Initialized = true
	}

	// when the lower (upper) tick is crossed left to right (right to left), liquidity must be added (removed)
	liquidityNet := new(big.Int)
	if upper {
		liquidityNet.Sub(info.LiquidityNet, liquidityDelta)
	} else {
		liquidityNet.Add(info.LiquidityNet, liquidityDelta)
	}
	if err := safemath.CheckInt128(liquidityNet); err != nil {
		return false, fmt.Errorf("tick %d liquidity net: %w", tick, err)
	}

	info.LiquidityGross = liquidityGrossAfter
	info.LiquidityNet = liquidityNet
	s.Set(tick, info)
	return flipped, nil
}

// cross flips the fee growth outside of tick and returns its liquidity net.
func cross(s store, tick int64, feeGrowthGlobal0X128, feeGrowthGlobal1X128 *uint256.Int) *big.Int {
	info := s.Get(tick)
	info.FeeGrowthOutside0X128.Sub(feeGrowthGlobal0X128, info.FeeGrowthOutside0X128)
	info.FeeGrowthOutside1X128.Sub(feeGrowthGlobal1X128, info.FeeGrowthOutside1X128)
	s.Set(tick, info)
	return new(big.Int).Set(info.LiquidityNet)
}

// feeGrowthInside computes the fee growth per unit of liquidity between two ticks.
// All arithmetic wraps modulo 2^256.
func feeGrowthInside(
	s store,
	tickLower, tickUpper, tickCurrent int64,
	feeGrowthGlobal0X128, feeGrowthGlobal1X128 *uint256.Int,
) (inside0, inside1 *uint256.Int) {
	lower := s.Get(tickLower)
	upper := s.Get(tickUpper)

	var below0, below1, above0, above1 uint256.Int
	if tickCurrent >= tickLower {
		below0.Set(lower.FeeGrowthOutside0X128)
		below1.Set(lower.FeeGrowthOutside1X128)
	} else {
		below0.Sub(feeGrowthGlobal0X128, lower.FeeGrowthOutside0X128)
		below1.Sub(feeGrowthGlobal1X128, lower.FeeGrowthOutside1X128)
	}
	if tickCurrent < tickUpper {
		above0.Set(upper.FeeGrowthOutside0X128)
		above1.Set(upper.FeeGrowthOutside1X128)
	} else {
		above0.Sub(feeGrowthGlobal0X128, upper.FeeGrowthOutside0X128)
		above1.Sub(feeGrowthGlobal1X128, upper.FeeGrowthOutside1X128)
	}

	inside0 = new(uint256.Int).Sub(feeGrowthGlobal0X128, &below0)
	inside0.Sub(inside0, &above0)
	inside1 = new(uint256.Int).Sub(feeGrowthGlobal1X128, &below1)
	inside1.Sub(inside1, &above1)
	return inside0, inside1
}
