package tick

import (
	"math/big"
	"sort"

	"github.com/holiman/uint256"
)

// Registry maps tick indices to their state. Reads return deep copies so callers
// can modify them freely and write them back with Set.
//
// A Registry is not safe for concurrent use; its owner serializes access.
type Registry struct {
	ticks map[int64]Info
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ticks: make(map[int64]Info)}
}

// Get returns a copy of the state of tick, or a zero uninitialized Info if none is stored.
func (r *Registry) Get(tick int64) Info {
	info, ok := r.ticks[tick]
	if !ok {
		return NewInfo()
	}
	return info.Clone()
}

// Lookup returns the stored state of tick without creating it.
func (r *Registry) Lookup(tick int64) (Info, bool) {
	info, ok := r.ticks[tick]
	if !ok {
		return Info{}, false
	}
	return info.Clone(), true
}

// Set stores info for tick.
func (r *Registry) Set(tick int64, info Info) {
	r.ticks[tick] = info.Clone()
}

// Clear deletes all state of tick.
func (r *Registry) Clear(tick int64) {
	delete(r.ticks, tick)
}

// Len returns the number of stored ticks.
func (r *Registry) Len() int {
	return len(r.ticks)
}

// Indices returns the stored tick indices in ascending order.
func (r *Registry) Indices() []int64 {
	indices := make([]int64, 0, len(r.ticks))
	for tick := range r.ticks {
		indices = append(indices, tick)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	return indices
}

// Update applies liquidityDelta to tick, initializing it if needed, and reports whether
// the tick flipped between initialized and uninitialized.
func (r *Registry) Update(
	tick, tickCurrent int64,
	liquidityDelta *big.Int,
	feeGrowthGlobal0X128, feeGrowthGlobal1X128 *uint256.Int,
	upper bool,
	maxLiquidity *uint256.Int,
) (bool, error) {
	return update(r, tick, tickCurrent, liquidityDelta, feeGrowthGlobal0X128, feeGrowthGlobal1X128, upper, maxLiquidity)
}

// Cross transitions tick as the price moves across it and returns the liquidity net to apply.
func (r *Registry) Cross(tick int64, feeGrowthGlobal0X128, feeGrowthGlobal1X128 *uint256.Int) *big.Int {
	return cross(r, tick, feeGrowthGlobal0X128, feeGrowthGlobal1X128)
}

// FeeGrowthInside returns the all-time fee growth per unit of liquidity inside [tickLower, tickUpper).
func (r *Registry) FeeGrowthInside(
	tickLower, tickUpper, tickCurrent int64,
	feeGrowthGlobal0X128, feeGrowthGlobal1X128 *uint256.Int,
) (*uint256.Int, *uint256.Int) {
	return feeGrowthInside(r, tickLower, tickUpper, tickCurrent, feeGrowthGlobal0X128, feeGrowthGlobal1X128)
}

// Batch returns a staging view over r. Changes made through the batch are invisible to r
// until Commit; discarding the batch discards them.
func (r *Registry) Batch() *Batch {
	return &Batch{
		parent: r,
		writes: make(map[int64]*Info),
	}
}
