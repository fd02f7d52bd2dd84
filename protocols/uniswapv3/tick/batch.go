package tick

import (
	"math/big"

	"github.com/holiman/uint256"
)

// Batch stages tick changes on top of a Registry.
type Batch struct {
	parent *Registry
	// a nil entry marks a cleared tick
	writes map[int64]*Info
}

// Get returns a copy of tick as seen through the batch.
func (b *Batch) Get(tick int64) Info {
	if staged, ok := b.writes[tick]; ok {
		if staged == nil {
			return NewInfo()
		}
		return staged.Clone()
	}
	return b.parent.Get(tick)
}

// Set stages info for tick.
func (b *Batch) Set(tick int64, info Info) {
	staged := info.Clone()
	b.writes[tick] = &staged
}

// Clear stages the deletion of tick.
func (b *Batch) Clear(tick int64) {
	b.writes[tick] = nil
}

// Commit writes every staged change to the parent registry.
func (b *Batch) Commit() {
	for tick, staged := range b.writes {
		if staged == nil {
			b.parent.Clear(tick)
			continue
		}
		b.parent.Set(tick, *staged)
	}
	clear(b.writes)
}

// Update is Registry.Update applied to the staged view.
func (b *Batch) Update(
	tick, tickCurrent int64,
	liquidityDelta *big.Int,
	feeGrowthGlobal0X128, feeGrowthGlobal1X128 *uint256.Int,
	upper bool,
	maxLiquidity *uint256.Int,
) (bool, error) {
	return update(b, tick, tickCurrent, liquidityDelta, feeGrowthGlobal0X128, feeGrowthGlobal1X128, upper, maxLiquidity)
}

// Cross is Registry.Cross applied to the staged view.
func (b *Batch) Cross(tick int64, feeGrowthGlobal0X128, feeGrowthGlobal1X128 *uint256.Int) *big.Int {
	return cross(b, tick, feeGrowthGlobal0X128, feeGrowthGlobal1X128)
}

// FeeGrowthInside is Registry.FeeGrowthInside applied to the staged view.
func (b *Batch) FeeGrowthInside(
	tickLower, tickUpper, tickCurrent int64,
	feeGrowthGlobal0X128, feeGrowthGlobal1X128 *uint256.Int,
) (*uint256.Int, *uint256.Int) {
	return feeGrowthInside(b, tickLower, tickUpper, tickCurrent, feeGrowthGlobal0X128, feeGrowthGlobal1X128)
}
