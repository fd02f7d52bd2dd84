package uniswapv3

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// --- Deep Copy Helper Functions ---

func copyTickInfo(t TickInfo) TickInfo {
	return TickInfo{
		Index:                 t.Index,
		LiquidityGross:        new(uint256.Int).Set(t.LiquidityGross),
		LiquidityNet:          new(big.Int).Set(t.LiquidityNet),
		FeeGrowthOutside0X128: new(uint256.Int).Set(t.FeeGrowthOutside0X128),
		FeeGrowthOutside1X128: new(uint256.Int).Set(t.FeeGrowthOutside1X128),
	}
}

func copyPositionInfo(p PositionInfo) PositionInfo {
	return PositionInfo{
		Owner:                    p.Owner,
		TickLower:                p.TickLower,
		TickUpper:                p.TickUpper,
		Liquidity:                new(uint256.Int).Set(p.Liquidity),
		FeeGrowthInside0LastX128: new(uint256.Int).Set(p.FeeGrowthInside0LastX128),
		FeeGrowthInside1LastX128: new(uint256.Int).Set(p.FeeGrowthInside1LastX128),
		TokensOwed0:              new(uint256.Int).Set(p.TokensOwed0),
		TokensOwed1:              new(uint256.Int).Set(p.TokensOwed1),
	}
}

// DeepCopyPool creates a new Pool with its own memory for all pointer types,
// including the nested Ticks and Positions slices.
func DeepCopyPool(p Pool) Pool {
	newPool := p
	// Based on the system's contract, these are never nil.
	newPool.Liquidity = new(uint256.Int).Set(p.Liquidity)
	newPool.SqrtPriceX96 = new(uint256.Int).Set(p.SqrtPriceX96)
	newPool.FeeGrowthGlobal0X128 = new(uint256.Int).Set(p.FeeGrowthGlobal0X128)
	newPool.FeeGrowthGlobal1X128 = new(uint256.Int).Set(p.FeeGrowthGlobal1X128)
	newPool.ProtocolFees0 = new(uint256.Int).Set(p.ProtocolFees0)
	newPool.ProtocolFees1 = new(uint256.Int).Set(p.ProtocolFees1)

	if p.Ticks != nil {
		newPool.Ticks = make([]TickInfo, len(p.Ticks))
		for i, tick := range p.Ticks {
			newPool.Ticks[i] = copyTickInfo(tick)
		}
	}
	if p.Positions != nil {
		newPool.Positions = make([]PositionInfo, len(p.Positions))
		for i, position := range p.Positions {
			newPool.Positions[i] = copyPositionInfo(position)
		}
	}
	return newPool
}

// --- Patcher Implementation ---

// Patcher constructs a new state for a set of pools by applying a diff to a previous state.
func Patcher(prevState []Pool, diff UniswapV3SystemDiff) ([]Pool, error) {
	// 1. Create a map from the previous state for efficient manipulation, ensuring a deep copy.
	newStateMap := make(map[common.Address]Pool, len(prevState))
	for _, pool := range prevState {
		newStateMap[pool.Address] = DeepCopyPool(pool)
	}

	// 2. Process deletions.
	for _, address := range diff.Deletions {
		delete(newStateMap, address)
	}

	// 3. Process updates by replacing the old pool with a deep copy of the new one.
	for _, updatedPool := range diff.Updates {
		newStateMap[updatedPool.Address] = DeepCopyPool(updatedPool)
	}

	// 4. Process additions with a deep copy.
	for _, addedPool := range diff.Additions {
		newStateMap[addedPool.Address] = DeepCopyPool(addedPool)
	}

	// 5. Convert the final map back into a slice.
	finalState := make([]Pool, 0, len(newStateMap))
	for _, pool := range newStateMap {
		finalState = append(finalState, pool)
	}

	return finalState, nil
}
