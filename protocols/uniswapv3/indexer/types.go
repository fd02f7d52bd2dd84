package indexer

import (
	uniswapv3 "github.com/defistate/defistate-amm-go/protocols/uniswapv3"
	"github.com/ethereum/go-ethereum/common"
)

// IndexedUniswapV3 is a read-only, indexed view of a set of pool snapshots.
type IndexedUniswapV3 interface {
	GetByAddress(address common.Address) (uniswapv3.Pool, bool)
	GetByTokens(tokenA, tokenB common.Address) []uniswapv3.Pool
	All() []uniswapv3.Pool
}
