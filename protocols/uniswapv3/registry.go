package uniswapv3

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// PoolViewMinimal provides a view of a single concentrated-liquidity pool's scalar state.
type PoolViewMinimal struct {
	Address      common.Address `json:"address"`
	Token0       common.Address `json:"token0"`
	Token1       common.Address `json:"token1"`
	Fee          uint32         `json:"fee"`
	TickSpacing  int64          `json:"tickSpacing"`
	Tick         int64          `json:"tick"`
	Liquidity    *uint256.Int   `json:"liquidity"`
	SqrtPriceX96 *uint256.Int   `json:"sqrtPriceX96"`

	// packed as token0 | token1<<4
	FeeProtocol          uint8        `json:"feeProtocol"`
	FeeGrowthGlobal0X128 *uint256.Int `json:"feeGrowthGlobal0X128"`
	FeeGrowthGlobal1X128 *uint256.Int `json:"feeGrowthGlobal1X128"`
	ProtocolFees0        *uint256.Int `json:"protocolFees0"`
	ProtocolFees1        *uint256.Int `json:"protocolFees1"`
}

// TickInfo represents an initialized tick of a pool.
// The presence of the object implies the tick is initialized.
type TickInfo struct {
	Index                 int64        `json:"index"`
	LiquidityGross        *uint256.Int `json:"liquidityGross"`
	LiquidityNet          *big.Int     `json:"liquidityNet"`
	FeeGrowthOutside0X128 *uint256.Int `json:"feeGrowthOutside0X128"`
	FeeGrowthOutside1X128 *uint256.Int `json:"feeGrowthOutside1X128"`
}

// PositionInfo represents a liquidity provider's position in a pool.
type PositionInfo struct {
	Owner                    common.Address `json:"owner"`
	TickLower                int64          `json:"tickLower"`
	TickUpper                int64          `json:"tickUpper"`
	Liquidity                *uint256.Int   `json:"liquidity"`
	FeeGrowthInside0LastX128 *uint256.Int   `json:"feeGrowthInside0LastX128"`
	FeeGrowthInside1LastX128 *uint256.Int   `json:"feeGrowthInside1LastX128"`
	TokensOwed0              *uint256.Int   `json:"tokensOwed0"`
	TokensOwed1              *uint256.Int   `json:"tokensOwed1"`
}

// Pool is the fully enriched view of a pool, combining the minimal
// core data with its ticks (ascending by index) and positions.
type Pool struct {
	PoolViewMinimal `json:",inline"`
	Ticks           []TickInfo     `json:"ticks"`
	Positions       []PositionInfo `json:"positions"`
}
