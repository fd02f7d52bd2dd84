package indexer

import (
	"sort"

	uniswapv3 "github.com/defistate/defistate-amm-go/protocols/uniswapv3"
	"github.com/ethereum/go-ethereum/common"
)

// Indexer builds IndexedUniswapV3 views.
type Indexer struct{}

// New creates a new Indexer.
func New() *Indexer {
	return &Indexer{}
}

// Index creates an indexed Uniswap V3 system from a raw slice of pools.
func (i *Indexer) Index(pools []uniswapv3.Pool) IndexedUniswapV3 {
	return NewIndexableUniswapV3System(pools)
}

type pair struct {
	token0, token1 common.Address
}

func newPair(tokenA, tokenB common.Address) pair {
	if tokenB.Cmp(tokenA) < 0 {
		tokenA, tokenB = tokenB, tokenA
	}
	return pair{token0: tokenA, token1: tokenB}
}

// IndexableUniswapV3System provides fast, indexed access to pool snapshots.
type IndexableUniswapV3System struct {
	byAddress map[common.Address]uniswapv3.Pool
	byPair    map[pair][]uniswapv3.Pool
	all       []uniswapv3.Pool
}

// NewIndexableUniswapV3System creates a new indexed Uniswap V3 system.
// Pools sharing a token pair are ordered by fee.
func NewIndexableUniswapV3System(pools []uniswapv3.Pool) *IndexableUniswapV3System {
	byAddress := make(map[common.Address]uniswapv3.Pool, len(pools))
	byPair := make(map[pair][]uniswapv3.Pool)

	for _, p := range pools {
		byAddress[p.Address] = p
		key := newPair(p.Token0, p.Token1)
		byPair[key] = append(byPair[key], p)
	}
	for _, group := range byPair {
		sort.Slice(group, func(i, j int) bool { return group[i].Fee < group[j].Fee })
	}

	return &IndexableUniswapV3System{
		byAddress: byAddress,
		byPair:    byPair,
		all:       pools,
	}
}

// GetByAddress retrieves a pool by its address.
func (ius *IndexableUniswapV3System) GetByAddress(address common.Address) (uniswapv3.Pool, bool) {
	p, ok := ius.byAddress[address]
	return p, ok
}

// GetByTokens returns every pool trading the pair, in either token order.
func (ius *IndexableUniswapV3System) GetByTokens(tokenA, tokenB common.Address) []uniswapv3.Pool {
	group := ius.byPair[newPair(tokenA, tokenB)]
	out := make([]uniswapv3.Pool, len(group))
	copy(out, group)
	return out
}

// All returns a defensive copy of the slice of all pools.
func (ius *IndexableUniswapV3System) All() []uniswapv3.Pool {
	allCopy := make([]uniswapv3.Pool, len(ius.all))
	copy(allCopy, ius.all)
	return allCopy
}
