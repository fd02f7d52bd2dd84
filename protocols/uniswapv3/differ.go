package uniswapv3

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

type UniswapV3SystemDiff struct {
	Additions []Pool           `json:"additions,omitempty"`
	Updates   []Pool           `json:"updates,omitempty"`
	Deletions []common.Address `json:"deletions,omitempty"`
}

// IsEmpty returns true if the diff contains no changes.
func (d UniswapV3SystemDiff) IsEmpty() bool {
	return len(d.Additions) == 0 && len(d.Updates) == 0 && len(d.Deletions) == 0
}

func poolChanged(old, new Pool) bool {
	// 1. Compare core dynamic fields

	if old.Tick != new.Tick || old.FeeProtocol != new.FeeProtocol {
		return true
	}

	if !old.SqrtPriceX96.Eq(new.SqrtPriceX96) || !old.Liquidity.Eq(new.Liquidity) {
		return true
	}

	if !old.FeeGrowthGlobal0X128.Eq(new.FeeGrowthGlobal0X128) || !old.FeeGrowthGlobal1X128.Eq(new.FeeGrowthGlobal1X128) {
		return true
	}

	if !old.ProtocolFees0.Eq(new.ProtocolFees0) || !old.ProtocolFees1.Eq(new.ProtocolFees1) {
		return true
	}

	// 2. Compare ticks (order-insensitive)

	if len(old.Ticks) != len(new.Ticks) {
		return true
	}

	oldTicks := sortedTicks(old.Ticks)
	newTicks := sortedTicks(new.Ticks)
	for i := range oldTicks {
		if tickChanged(oldTicks[i], newTicks[i]) {
			return true
		}
	}

	// 3. Compare positions (order-insensitive)

	if len(old.Positions) != len(new.Positions) {
		return true
	}

	oldPositions := sortedPositions(old.Positions)
	newPositions := sortedPositions(new.Positions)
	for i := range oldPositions {
		if positionChanged(oldPositions[i], newPositions[i]) {
			return true
		}
	}

	// Everything matched
	return false
}

func tickChanged(old, new TickInfo) bool {
	return old.Index != new.Index ||
		!old.LiquidityGross.Eq(new.LiquidityGross) ||
		old.LiquidityNet.Cmp(new.LiquidityNet) != 0 ||
		!old.FeeGrowthOutside0X128.Eq(new.FeeGrowthOutside0X128) ||
		!old.FeeGrowthOutside1X128.Eq(new.FeeGrowthOutside1X128)
}

func positionChanged(old, new PositionInfo) bool {
	return old.Owner != new.Owner ||
		old.TickLower != new.TickLower ||
		old.TickUpper != new.TickUpper ||
		!old.Liquidity.Eq(new.Liquidity) ||
		!old.FeeGrowthInside0LastX128.Eq(new.FeeGrowthInside0LastX128) ||
		!old.FeeGrowthInside1LastX128.Eq(new.FeeGrowthInside1LastX128) ||
		!old.TokensOwed0.Eq(new.TokensOwed0) ||
		!old.TokensOwed1.Eq(new.TokensOwed1)
}

// sortedTicks returns a copy of ticks ordered by index so comparison is independent of slice order.
func sortedTicks(ticks []TickInfo) []TickInfo {
	sorted := make([]TickInfo, len(ticks))
	copy(sorted, ticks)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Index < sorted[j].Index
	})
	return sorted
}

// sortedPositions returns a copy of positions ordered by owner, then range.
func sortedPositions(positions []PositionInfo) []PositionInfo {
	sorted := make([]PositionInfo, len(positions))
	copy(sorted, positions)
	sort.Slice(sorted, func(i, j int) bool {
		if c := bytes.Compare(sorted[i].Owner[:], sorted[j].Owner[:]); c != 0 {
			return c < 0
		}
		if sorted[i].TickLower != sorted[j].TickLower {
			return sorted[i].TickLower < sorted[j].TickLower
		}
		return sorted[i].TickUpper < sorted[j].TickUpper
	})
	return sorted
}

// Differ calculates the difference between two states of a set of pools.
// The logic is optimized for performance using maps for O(1) average time complexity lookups.
func Differ(old, new []Pool) UniswapV3SystemDiff {
	// --- 1. Create maps for efficient lookups ---
	// The key is the pool's address, and the value is the Pool itself.
	oldPoolsMap := make(map[common.Address]Pool, len(old))
	for _, pool := range old {
		oldPoolsMap[pool.Address] = pool
	}

	newPoolsMap := make(map[common.Address]Pool, len(new))
	for _, pool := range new {
		newPoolsMap[pool.Address] = pool
	}

	var additions []Pool
	var updates []Pool
	var deletions []common.Address

	// --- 2. Identify Additions and Updates ---
	for address, newPool := range newPoolsMap {
		oldPool, exists := oldPoolsMap[address]
		if !exists {
			additions = append(additions, newPool)
		} else if poolChanged(oldPool, newPool) {
			updates = append(updates, newPool)
		}
	}

	// --- 3. Identify Deletions ---
	for address := range oldPoolsMap {
		if _, exists := newPoolsMap[address]; !exists {
			deletions = append(deletions, address)
		}
	}

	return UniswapV3SystemDiff{
		Additions: additions,
		Updates:   updates,
		Deletions: deletions,
	}
}
