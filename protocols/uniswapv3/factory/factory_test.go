package factory

import (
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/defistate/defistate-amm-go/ledger"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/tickmath"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tokenA = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	tokenB = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	trader = common.HexToAddress("0x0000000000000000000000000000000000007777")
)

func newTestFactory(t *testing.T, l ledger.Ledger) *Factory {
	t.Helper()
	f, err := New(&Config{
		Ledger:   l,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Registry: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	return f
}

func TestNew(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	testCases := []struct {
		name string
		cfg  *Config
	}{
		{"nil ledger", &Config{Logger: logger, Registry: prometheus.NewRegistry()}},
		{"nil logger", &Config{Ledger: ledger.NewMemory(), Registry: prometheus.NewRegistry()}},
		{"nil registry", &Config{Ledger: ledger.NewMemory(), Logger: logger}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.cfg)
			assert.Error(t, err)
		})
	}
}

func TestPoolKey(t *testing.T) {
	key := NewPoolKey(tokenA, tokenB, 3000)
	assert.Equal(t, tokenB, key.Token0, "tokens are sorted")
	assert.Equal(t, tokenA, key.Token1)
	assert.Equal(t, key, NewPoolKey(tokenB, tokenA, 3000))

	assert.Equal(t, key.ID(), NewPoolKey(tokenB, tokenA, 3000).ID(), "id is independent of token order")
	assert.NotEqual(t, key.ID(), NewPoolKey(tokenA, tokenB, 500).ID(), "fee is part of the id")
	assert.Equal(t, common.BytesToAddress(key.ID().Bytes()[12:]), key.Address())
}

func TestCreatePool(t *testing.T) {
	t.Run("uses the tier's tick spacing", func(t *testing.T) {
		f := newTestFactory(t, ledger.NewMemory())
		for fee, spacing := range DefaultFeeAmountTickSpacing {
			p, err := f.CreatePool(tokenA, tokenB, fee)
			require.NoError(t, err)
			assert.Equal(t, spacing, p.TickSpacing())
			assert.Equal(t, fee, p.Fee())
			assert.Equal(t, tokenB, p.Token0())
			assert.Equal(t, NewPoolKey(tokenA, tokenB, fee).Address(), p.Address())
		}
		assert.Len(t, f.Pools(), len(DefaultFeeAmountTickSpacing))
	})

	t.Run("rejects invalid pools", func(t *testing.T) {
		f := newTestFactory(t, ledger.NewMemory())
		_, err := f.CreatePool(tokenA, tokenA, 3000)
		assert.ErrorIs(t, err, ErrIdenticalTokens)
		_, err = f.CreatePool(common.Address{}, tokenA, 3000)
		assert.ErrorIs(t, err, ErrZeroAddress)
		_, err = f.CreatePool(tokenA, tokenB, 100)
		assert.ErrorIs(t, err, ErrFeeNotEnabled)

		_, err = f.CreatePool(tokenA, tokenB, 3000)
		require.NoError(t, err)
		_, err = f.CreatePool(tokenB, tokenA, 3000)
		assert.ErrorIs(t, err, ErrPoolExists)
	})

	t.Run("lookups", func(t *testing.T) {
		f := newTestFactory(t, ledger.NewMemory())
		p, err := f.CreatePool(tokenA, tokenB, 500)
		require.NoError(t, err)

		got, ok := f.GetPool(tokenB, tokenA, 500)
		require.True(t, ok)
		assert.Same(t, p, got)
		got, ok = f.PoolByAddress(p.Address())
		require.True(t, ok)
		assert.Same(t, p, got)
		_, ok = f.GetPool(tokenA, tokenB, 3000)
		assert.False(t, ok)
	})
}

func TestEnableFeeAmount(t *testing.T) {
	f := newTestFactory(t, ledger.NewMemory())

	assert.ErrorIs(t, f.EnableFeeAmount(1_000_000, 10), ErrInvalidFee)
	assert.ErrorIs(t, f.EnableFeeAmount(100, 0), ErrInvalidSpacing)
	assert.ErrorIs(t, f.EnableFeeAmount(100, 16384), ErrInvalidSpacing)
	assert.ErrorIs(t, f.EnableFeeAmount(3000, 1), ErrFeeEnabled)

	require.NoError(t, f.EnableFeeAmount(100, 1))
	spacing, ok := f.TickSpacing(100)
	require.True(t, ok)
	assert.Equal(t, int64(1), spacing)

	p, err := f.CreatePool(tokenA, tokenB, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.TickSpacing())
}

func TestPoolsAreIndependent(t *testing.T) {
	l := ledger.NewMemory()
	e18 := uint256.NewInt(1_000_000_000_000_000_000)
	require.NoError(t, l.Mint(tokenA, trader, e18))
	require.NoError(t, l.Mint(tokenB, trader, e18))

	f := newTestFactory(t, l)
	low, err := f.CreatePool(tokenA, tokenB, 500)
	require.NoError(t, err)
	high, err := f.CreatePool(tokenA, tokenB, 10000)
	require.NoError(t, err)

	price := new(uint256.Int).Lsh(uint256.NewInt(1), 96)
	require.NoError(t, low.Initialize(price))
	require.NoError(t, high.Initialize(price))

	_, _, err = low.Mint(trader, -100, 100, uint256.NewInt(1_000_000_000_000))
	require.NoError(t, err)
	_, _, err = high.Mint(trader, -200, 200, uint256.NewInt(1_000_000_000_000))
	require.NoError(t, err)

	limit := new(uint256.Int).AddUint64(tickmath.MIN_SQRT_RATIO, 1)
	_, _, err = low.Swap(trader, true, big.NewInt(1000), limit)
	require.NoError(t, err)

	snapshots := f.Snapshot()
	require.Len(t, snapshots, 2)
	for _, snap := range snapshots {
		if snap.Address == low.Address() {
			assert.Less(t, snap.Tick, int64(0))
			assert.False(t, snap.FeeGrowthGlobal0X128.IsZero())
		} else {
			assert.Equal(t, int64(0), snap.Tick)
			assert.True(t, snap.FeeGrowthGlobal0X128.IsZero())
		}
	}
	assert.False(t, l.BalanceOf(tokenB, low.Address()).IsZero())
	assert.False(t, l.BalanceOf(tokenB, high.Address()).IsZero())
}
