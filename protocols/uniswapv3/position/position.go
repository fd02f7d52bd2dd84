package position

import (
	"encoding/binary"
	"math/big"

	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/fullmath"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/liquiditymath"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/safemath"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/zeebo/blake3"
)

// Q128 is the Q128.128 fixed-point number representing 1.
var Q128 = new(uint256.Int).Lsh(uint256.NewInt(1), 128)

var keyPrefix = []byte("position")

// Key identifies a position by owner and range.
func Key(owner common.Address, tickLower, tickUpper int64) common.Hash {
	var ticks [16]byte
	binary.BigEndian.PutUint64(ticks[:8], uint64(tickLower))
	binary.BigEndian.PutUint64(ticks[8:], uint64(tickUpper))

	h := blake3.New()
	h.Write(keyPrefix)
	h.Write(owner.Bytes())
	h.Write(ticks[:])
	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

// Info is the state of a liquidity provider's position.
type Info struct {
	// liquidity owned by the position, a uint128
	Liquidity *uint256.Int
	// fee growth per unit of liquidity inside the range as of the last update
	FeeGrowthInside0LastX128 *uint256.Int
	FeeGrowthInside1LastX128 *uint256.Int
	// tokens collectible by the owner, uint128 and wrapping on overflow
	TokensOwed0 *uint256.Int
	TokensOwed1 *uint256.Int
}

// NewInfo returns an empty position.
func NewInfo() Info {
	return Info{
		Liquidity:                new(uint256.Int),
		FeeGrowthInside0LastX128: new(uint256.Int),
		FeeGrowthInside1LastX128: new(uint256.Int),
		TokensOwed0:              new(uint256.Int),
		TokensOwed1:              new(uint256.Int),
	}
}

// Clone returns a deep copy of p.
func (p Info) Clone() Info {
	return Info{
		Liquidity:                new(uint256.Int).Set(p.Liquidity),
		FeeGrowthInside0LastX128: new(uint256.Int).Set(p.FeeGrowthInside0LastX128),
		FeeGrowthInside1LastX128: new(uint256.Int).Set(p.FeeGrowthInside1LastX128),
		TokensOwed0:              new(uint256.Int).Set(p.TokensOwed0),
		TokensOwed1:              new(uint256.Int).Set(p.TokensOwed1),
	}
}

// IsEmpty reports whether the position holds neither liquidity nor owed tokens.
func (p Info) IsEmpty() bool {
	return p.Liquidity.IsZero() && p.TokensOwed0.IsZero() && p.TokensOwed1.IsZero()
}

// Update credits the fees accrued since the last snapshot and applies liquidityDelta.
// It returns the updated position and leaves p untouched. A zero delta only credits fees.
//
// Owed amounts are truncated to 128 bits, and so is their running total.
func (p Info) Update(liquidityDelta *big.Int, feeGrowthInside0X128, feeGrowthInside1X128 *uint256.Int) (Info, error) {
	next := p.Clone()

	if liquidityDelta.Sign() != 0 {
		if err := liquiditymath.AddDelta(next.Liquidity, p.Liquidity, liquidityDelta); err != nil {
			return Info{}, err
		}
	}

	owed0, err := accrued(feeGrowthInside0X128, p.FeeGrowthInside0LastX128, p.Liquidity)
	if err != nil {
		return Info{}, err
	}
	owed1, err := accrued(feeGrowthInside1X128, p.FeeGrowthInside1LastX128, p.Liquidity)
	if err != nil {
		return Info{}, err
	}

	next.FeeGrowthInside0LastX128.Set(feeGrowthInside0X128)
	next.FeeGrowthInside1LastX128.Set(feeGrowthInside1X128)
	safemath.AddUint128Wrap(next.TokensOwed0, next.TokensOwed0, owed0)
	safemath.AddUint128Wrap(next.TokensOwed1, next.TokensOwed1, owed1)
	return next, nil
}

// accrued returns uint128((inside - last) * liquidity / Q128), with the subtraction wrapping.
func accrued(inside, last, liquidity *uint256.Int) (*uint256.Int, error) {
	var growth uint256.Int
	growth.Sub(inside, last)

	owed := new(uint256.Int)
	if err := fullmath.MulDiv(owed, &growth, liquidity, Q128); err != nil {
		return nil, err
	}
	return safemath.WrapUint128(owed), nil
}
