package main

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/defistate/defistate-amm-go/cmd/simulator/config"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/pool"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = `
tokens:
  - {symbol: T0, address: "0x0000000000000000000000000000000000000010", decimals: 18}
  - {symbol: T1, address: "0x0000000000000000000000000000000000000011", decimals: 18}
accounts:
  - name: alice
    address: "0x000000000000000000000000000000000000a11c"
    balances: {T0: "1000000000000000000", T1: "1000000000000000000"}
  - name: bob
    address: "0x0000000000000000000000000000000000000b0b"
    balances: {T0: "1000000000000000000", T1: "1000000000000000000"}
pools:
  - {name: p, tokenA: T1, tokenB: T0, fee: 3000}
`

var (
	t0  = common.HexToAddress("0x0000000000000000000000000000000000000010")
	t1  = common.HexToAddress("0x0000000000000000000000000000000000000011")
	bob = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	q96 = new(uint256.Int).Lsh(uint256.NewInt(1), 96)
)

func newTestRunner(t *testing.T, steps string) *Runner {
	t.Helper()
	return newRunnerWithPools(t, "", steps)
}

// newRunnerWithPools adds pools to the header's before the steps.
func newRunnerWithPools(t *testing.T, pools, steps string) *Runner {
	t.Helper()
	cfg, err := config.Parse([]byte(header + pools + "steps:\n" + steps))
	require.NoError(t, err)
	r, err := NewRunner(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), prometheus.NewRegistry())
	require.NoError(t, err)
	return r
}

func TestRunner(t *testing.T) {
	r := newTestRunner(t, `
  - {op: initialize, pool: p, sqrtPriceX96: "79228162514264337593543950336"}
  - {op: mint, pool: p, account: alice, tickLower: -600, tickUpper: 600, amount: "1000000000000000000"}
  - {op: quote, pool: p, zeroForOne: true, amount: "1000000000000000"}
  - {op: swap, pool: p, account: bob, zeroForOne: true, amount: "1000000000000000"}
  - {op: poke, pool: p, account: alice, tickLower: -600, tickUpper: 600}
  - {op: burn, pool: p, account: bob, tickLower: -600, tickUpper: 600, amount: "1", expectError: true}
  - {op: set_fee_protocol, pool: p, feeProtocol0: 3, expectError: true}
`)
	reports, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 7)

	assert.Empty(t, reports[0].Diff.Additions)
	assert.Len(t, reports[0].Diff.Updates, 1, "initialize changes the pool")
	assert.True(t, decimal.NewFromInt(1).Equal(reports[0].Price), reports[0].Price.String())
	assert.True(t, decimal.NewFromInt(1).Equal(reports[0].InversePrice), reports[0].InversePrice.String())
	assert.True(t, reports[0].Reserve0.IsZero(), "no liquidity yet")

	mint := reports[1]
	assert.True(t, decimal.NewFromInt(1).Equal(mint.Reserve0), mint.Reserve0.String())
	assert.True(t, decimal.NewFromInt(1).Equal(mint.Reserve1), mint.Reserve1.String())

	quote, swap := reports[2], reports[3]
	assert.Equal(t, "1000000000000000", quote.Amount0)
	assert.Equal(t, "-996006981039903", quote.Amount1)
	assert.True(t, quote.Diff.IsEmpty(), "quotes do not change state")
	assert.Equal(t, int64(0), quote.Tick)

	assert.Equal(t, quote.Amount0, swap.Amount0)
	assert.Equal(t, quote.Amount1, swap.Amount1)
	assert.Equal(t, int64(-20), swap.Tick)
	assert.True(t, swap.Price.LessThan(decimal.NewFromInt(1)))
	assert.True(t, swap.InversePrice.GreaterThan(decimal.NewFromInt(1)))
	assert.True(t, swap.Reserve0.GreaterThan(mint.Reserve0), "token0 came in")
	assert.True(t, swap.Reserve1.LessThan(mint.Reserve1), "token1 went out")

	assert.Equal(t, "2999999999999", reports[4].Amount0)
	assert.Equal(t, "0", reports[4].Amount1)

	assert.ErrorIs(t, reports[5].Err, pool.ErrPositionNotFound)
	assert.ErrorIs(t, reports[6].Err, pool.ErrInvalidFeeProtocol)
	assert.True(t, reports[6].Diff.IsEmpty())

	assert.Equal(t, new(uint256.Int).AddUint64(uint256.NewInt(1_000_000_000_000_000_000), 996006981039903), r.Ledger().BalanceOf(t1, bob))

	views := r.View().GetByTokens(t0, t1)
	require.Len(t, views, 1)
	assert.Equal(t, int64(-20), views[0].Tick)
	assert.Len(t, views[0].Positions, 1)

	assert.Equal(t, []PositionReport{{
		Account:   "alice",
		Pool:      "p",
		TickLower: -600,
		TickUpper: 600,
		Liquidity: "1000000000000000000",
		Owed0:     "2999999999999",
		Owed1:     "0",
	}}, r.Positions())
}

func TestRunnerQuoteRoutes(t *testing.T) {
	const p5 = "  - {name: p5, tokenA: T0, tokenB: T1, fee: 500}\n"

	t.Run("exact input goes to the pool paying the most", func(t *testing.T) {
		r := newRunnerWithPools(t, p5, `
  - {op: initialize, pool: p, sqrtPriceX96: "79228162514264337593543950336"}
  - {op: initialize, pool: p5, sqrtPriceX96: "79228162514264337593543950336"}
  - {op: mint, pool: p, account: alice, tickLower: -600, tickUpper: 600, amount: "1000000000000000000"}
  - {op: mint, pool: p5, account: alice, tickLower: -600, tickUpper: 600, amount: "1000000000000000000"}
  - {op: quote, pool: p, zeroForOne: true, amount: "1000000000000000"}
  - {op: swap, pool: p5, account: bob, zeroForOne: true, amount: "1000000000000000"}
  - {op: quote, pool: p, zeroForOne: true, amount: "-100000000000000"}
`)
		reports, err := r.Run(context.Background())
		require.NoError(t, err)
		require.Len(t, reports, 7)

		quote, swap := reports[4], reports[5]
		assert.Equal(t, "p5", quote.Pool)
		assert.Equal(t, swap.Amount0, quote.Amount0)
		assert.Equal(t, swap.Amount1, quote.Amount1)
		out, ok := new(big.Int).SetString(quote.Amount1, 10)
		require.True(t, ok)
		assert.Equal(t, 1, new(big.Int).Neg(out).Cmp(big.NewInt(996006981039903)), "the lower fee pays more")

		assert.Equal(t, "p", reports[6].Pool, "exact output is priced on the named pool")
		assert.Equal(t, "-100000000000000", reports[6].Amount1)

		positions := r.Positions()
		require.Len(t, positions, 2)
		assert.Equal(t, "p", positions[0].Pool)
		assert.Equal(t, "p5", positions[1].Pool)
	})

	t.Run("uninitialized pools are skipped", func(t *testing.T) {
		r := newRunnerWithPools(t, p5, `
  - {op: initialize, pool: p, sqrtPriceX96: "79228162514264337593543950336"}
  - {op: mint, pool: p, account: alice, tickLower: -600, tickUpper: 600, amount: "1000000000000000000"}
  - {op: quote, pool: p5, zeroForOne: true, amount: "1000000000000000"}
`)
		reports, err := r.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "p", reports[2].Pool)
		assert.Equal(t, "-996006981039903", reports[2].Amount1)
	})

	t.Run("no pool can price it", func(t *testing.T) {
		r := newRunnerWithPools(t, p5, `
  - {op: quote, pool: p, zeroForOne: true, amount: "1", expectError: true}
`)
		reports, err := r.Run(context.Background())
		require.NoError(t, err)
		assert.Error(t, reports[0].Err)
		assert.Equal(t, "p", reports[0].Pool)
	})
}

func TestRunnerStopsOnUnexpectedOutcome(t *testing.T) {
	t.Run("failure", func(t *testing.T) {
		r := newTestRunner(t, `
  - {op: mint, pool: p, account: alice, tickLower: -600, tickUpper: 600, amount: "1"}
  - {op: initialize, pool: p, price: "1"}
`)
		reports, err := r.Run(context.Background())
		assert.ErrorIs(t, err, pool.ErrNotInitialized)
		assert.Empty(t, reports)
	})

	t.Run("success", func(t *testing.T) {
		r := newTestRunner(t, `
  - {op: initialize, pool: p, price: "1", expectError: true}
`)
		_, err := r.Run(context.Background())
		assert.ErrorIs(t, err, ErrUnexpectedSuccess)
	})

	t.Run("cancelled", func(t *testing.T) {
		r := newTestRunner(t, `
  - {op: initialize, pool: p, price: "1"}
`)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := r.Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestPriceToSqrtPriceX96(t *testing.T) {
	testCases := []struct {
		name      string
		price     string
		decimals0 int32
		decimals1 int32
		want      *uint256.Int
	}{
		{"parity", "1", 18, 18, q96},
		{"four", "4", 18, 18, new(uint256.Int).Lsh(q96, 1)},
		{"quarter", "0.25", 18, 18, new(uint256.Int).Rsh(q96, 1)},
		{"decimals", "1", 6, 18, new(uint256.Int).Mul(q96, uint256.NewInt(1_000_000))},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := PriceToSqrtPriceX96(decimal.RequireFromString(tc.price), tc.decimals0, tc.decimals1)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := PriceToSqrtPriceX96(decimal.Zero, 18, 18)
	assert.Error(t, err)
}

func TestParseHelpers(t *testing.T) {
	v, err := parseSigned("-15")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(-15), v)
	_, err = parseSigned("1.5")
	assert.Error(t, err)

	_, err = parseUnsigned("-1")
	assert.Error(t, err)

	all, err := parseRequested("")
	require.NoError(t, err)
	assert.Equal(t, maxUint128, all)

	limit, err := parseOptional("")
	require.NoError(t, err)
	assert.Nil(t, limit)

	_, err = parseAddress("0x12")
	assert.Error(t, err)
}
