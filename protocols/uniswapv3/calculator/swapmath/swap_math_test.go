package swapmath

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper to create a random big.Int up to a given bit length.
func newRandInt(bits int) *big.Int {
	max := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		panic(err)
	}
	return n
}

func u(s string) *uint256.Int { return uint256.MustFromDecimal(s) }

type stepResult struct {
	sqrtQ, amountIn, amountOut, feeAmount *uint256.Int
}

func computeStep(t *testing.T, current, target, liquidity *uint256.Int, remaining *big.Int, fee uint32) stepResult {
	t.Helper()
	r := stepResult{new(uint256.Int), new(uint256.Int), new(uint256.Int), new(uint256.Int)}
	require.NoError(t, ComputeSwapStep(r.sqrtQ, r.amountIn, r.amountOut, r.feeAmount, current, target, liquidity, remaining, fee))
	return r
}

func TestComputeSwapStep(t *testing.T) {
	price := u("79228162514264337593543950336")         // 1:1
	priceTarget := u("79623317895830914510639640423")   // 101:100
	farTarget := u("250541448375047931186413801569")    // 1000:100
	liquidity := u("2000000000000000000")
	e18 := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	t.Run("exact amount in that gets capped at price target in one for zero", func(t *testing.T) {
		r := computeStep(t, price, priceTarget, liquidity, e18, 600)
		assert.Equal(t, "9975124224178055", r.amountIn.Dec())
		assert.Equal(t, "5988667735148", r.feeAmount.Dec())
		assert.Equal(t, "9925619580021728", r.amountOut.Dec())
		assert.True(t, r.sqrtQ.Eq(priceTarget))

		sum := new(uint256.Int).Add(r.amountIn, r.feeAmount)
		assert.True(t, sum.Lt(uint256.MustFromBig(e18)), "entire amount is not used")
	})

	t.Run("exact amount out that gets capped at price target in one for zero", func(t *testing.T) {
		r := computeStep(t, price, priceTarget, liquidity, new(big.Int).Neg(e18), 600)
		assert.Equal(t, "9975124224178055", r.amountIn.Dec())
		assert.Equal(t, "5988667735148", r.feeAmount.Dec())
		assert.Equal(t, "9925619580021728", r.amountOut.Dec())
		assert.True(t, r.amountOut.Lt(uint256.MustFromBig(e18)), "entire amount out is not returned")
		assert.True(t, r.sqrtQ.Eq(priceTarget))
	})

	t.Run("exact amount in that is fully spent in one for zero", func(t *testing.T) {
		r := computeStep(t, price, farTarget, liquidity, e18, 600)
		assert.Equal(t, "999400000000000000", r.amountIn.Dec())
		assert.Equal(t, "600000000000000", r.feeAmount.Dec())
		assert.Equal(t, "666399946655997866", r.amountOut.Dec())
		assert.Equal(t, "118818475322642227089037862318", r.sqrtQ.Dec())
		assert.True(t, r.sqrtQ.Lt(farTarget), "price does not reach price target")
	})

	t.Run("exact amount out that is fully received in one for zero", func(t *testing.T) {
		r := computeStep(t, price, farTarget, liquidity, new(big.Int).Neg(e18), 600)
		assert.Equal(t, "2000000000000000000", r.amountIn.Dec())
		assert.Equal(t, "1200720432259356", r.feeAmount.Dec())
		assert.Equal(t, "1000000000000000000", r.amountOut.Dec())
		assert.Equal(t, "158456325028528675187087900672", r.sqrtQ.Dec())
	})

	t.Run("amount out is capped at the desired amount out", func(t *testing.T) {
		r := computeStep(t,
			u("417332158212080721273783715441582"),
			u("1452870262520218020823638996"),
			u("159344665391607089467575320103"),
			big.NewInt(-1), 1)
		assert.Equal(t, "1", r.amountIn.Dec())
		assert.Equal(t, "1", r.feeAmount.Dec())
		assert.Equal(t, "1", r.amountOut.Dec())
		assert.Equal(t, "417332158212080721273783715441581", r.sqrtQ.Dec())
	})

	t.Run("target price of 1 uses partial input amount", func(t *testing.T) {
		remaining, _ := new(big.Int).SetString("3915081100057732413702495386755767", 10)
		r := computeStep(t, uint256.NewInt(2), uint256.NewInt(1), uint256.NewInt(1), remaining, 1)
		assert.Equal(t, "39614081257132168796771975168", r.amountIn.Dec())
		assert.Equal(t, "39614120871253040049813", r.feeAmount.Dec())
		assert.Equal(t, "0", r.amountOut.Dec())
		assert.Equal(t, "1", r.sqrtQ.Dec())
	})

	t.Run("entire input amount taken as fee", func(t *testing.T) {
		r := computeStep(t, uint256.NewInt(2413), u("79887613182836312"), u("1985041575832132834610021537970"), big.NewInt(10), 1872)
		assert.Equal(t, "0", r.amountIn.Dec())
		assert.Equal(t, "10", r.feeAmount.Dec())
		assert.Equal(t, "0", r.amountOut.Dec())
		assert.Equal(t, "2413", r.sqrtQ.Dec())
	})

	sqrtP := u("20282409603651670423947251286016")
	t.Run("handles intermediate insufficient liquidity in zero for one exact output case", func(t *testing.T) {
		target := new(uint256.Int).Div(new(uint256.Int).Mul(sqrtP, uint256.NewInt(11)), uint256.NewInt(10))
		r := computeStep(t, sqrtP, target, uint256.NewInt(1024), big.NewInt(-4), 3000)
		assert.Equal(t, "0", r.amountOut.Dec())
		assert.True(t, r.sqrtQ.Eq(target))
		assert.Equal(t, "26215", r.amountIn.Dec())
		assert.Equal(t, "79", r.feeAmount.Dec())
	})

	t.Run("handles intermediate insufficient liquidity in one for zero exact output case", func(t *testing.T) {
		target := new(uint256.Int).Div(new(uint256.Int).Mul(sqrtP, uint256.NewInt(9)), uint256.NewInt(10))
		r := computeStep(t, sqrtP, target, uint256.NewInt(1024), big.NewInt(-263000), 3000)
		assert.Equal(t, "26214", r.amountOut.Dec())
		assert.True(t, r.sqrtQ.Eq(target))
		assert.Equal(t, "1", r.amountIn.Dec())
		assert.Equal(t, "1", r.feeAmount.Dec())
	})

	t.Run("rejects a fee of 100%", func(t *testing.T) {
		err := ComputeSwapStep(new(uint256.Int), new(uint256.Int), new(uint256.Int), new(uint256.Int), price, priceTarget, liquidity, e18, FeeDenominator)
		assert.ErrorIs(t, err, ErrInvalidFee)
	})
}

// TestComputeSwapStep_Invariants simulates fuzz testing by running the function
// on a large number of random inputs and verifying its mathematical properties.
func TestComputeSwapStep_Invariants(t *testing.T) {
	for i := 0; i < 1000; i++ {
		sqrtPriceRaw := uint256.MustFromBig(newRandInt(160))
		sqrtPriceTargetRaw := uint256.MustFromBig(newRandInt(160))
		liquidity := uint256.MustFromBig(newRandInt(128))
		amountRemaining := newRandInt(255)
		if i%2 == 1 {
			amountRemaining.Neg(amountRemaining)
		}
		feePips := uint32(newRandInt(20).Uint64())

		if sqrtPriceRaw.IsZero() {
			sqrtPriceRaw.SetOne()
		}
		if sqrtPriceTargetRaw.IsZero() {
			sqrtPriceTargetRaw.SetOne()
		}
		if feePips == 0 {
			feePips = 1
		}
		if feePips >= FeeDenominator {
			feePips = FeeDenominator - 1
		}

		sqrtQ, amountIn, amountOut, feeAmount := new(uint256.Int), new(uint256.Int), new(uint256.Int), new(uint256.Int)
		// skip inputs that legitimately overflow
		err := ComputeSwapStep(sqrtQ, amountIn, amountOut, feeAmount, sqrtPriceRaw, sqrtPriceTargetRaw, liquidity, amountRemaining, feePips)
		if err != nil {
			continue
		}

		sumIn, overflow := new(uint256.Int).AddOverflow(amountIn, feeAmount)
		assert.False(t, overflow)

		remainingAbs := uint256.MustFromBig(new(big.Int).Abs(amountRemaining))
		if amountRemaining.Sign() < 0 {
			assert.False(t, amountOut.Gt(remainingAbs))
		} else {
			assert.False(t, sumIn.Gt(remainingAbs))
		}

		if sqrtPriceRaw.Eq(sqrtPriceTargetRaw) {
			assert.True(t, amountIn.IsZero())
			assert.True(t, amountOut.IsZero())
			assert.True(t, feeAmount.IsZero())
			assert.True(t, sqrtQ.Eq(sqrtPriceTargetRaw))
		}

		// didn't reach price target, entire amount must be consumed
		if !sqrtQ.Eq(sqrtPriceTargetRaw) {
			if amountRemaining.Sign() < 0 {
				assert.True(t, amountOut.Eq(remainingAbs))
			} else {
				assert.True(t, sumIn.Eq(remainingAbs))
			}
		}

		// next price is between price and price target
		if !sqrtPriceTargetRaw.Gt(sqrtPriceRaw) {
			assert.False(t, sqrtQ.Gt(sqrtPriceRaw))
			assert.False(t, sqrtQ.Lt(sqrtPriceTargetRaw))
		} else {
			assert.False(t, sqrtQ.Lt(sqrtPriceRaw))
			assert.False(t, sqrtQ.Gt(sqrtPriceTargetRaw))
		}
	}
}
