package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validScenario = `
tokens:
  - symbol: WETH
    address: "0x0000000000000000000000000000000000000010"
    decimals: 18
  - symbol: USDC
    address: "0x0000000000000000000000000000000000000011"
    decimals: 6
accounts:
  - name: alice
    address: "0x000000000000000000000000000000000000a11c"
    balances:
      WETH: "1000000000000000000"
      USDC: "1000000000"
pools:
  - name: weth-usdc
    tokenA: WETH
    tokenB: USDC
    fee: 3000
steps:
  - op: initialize
    pool: weth-usdc
    price: "2000"
  - op: mint
    pool: weth-usdc
    account: alice
    tickLower: -600
    tickUpper: 600
    amount: "1000"
  - op: swap
    pool: weth-usdc
    account: alice
    zeroForOne: true
    amount: "-5"
    expectError: true
`

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validScenario), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Tokens, 2)
	assert.Equal(t, int32(6), cfg.Tokens[1].Decimals)
	assert.Equal(t, "1000000000", cfg.Accounts[0].Balances["USDC"])
	assert.Equal(t, uint32(3000), cfg.Pools[0].Fee)

	require.Len(t, cfg.Steps, 3)
	assert.Equal(t, OpInitialize, cfg.Steps[0].Op)
	assert.Equal(t, "2000", cfg.Steps[0].Price)
	assert.Equal(t, int64(-600), cfg.Steps[1].TickLower)
	assert.True(t, cfg.Steps[2].ZeroForOne)
	assert.Equal(t, "-5", cfg.Steps[2].Amount)
	assert.True(t, cfg.Steps[2].ExpectError)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseRejectsInvalidScenarios(t *testing.T) {
	tokens := `
tokens:
  - {symbol: A, address: "0x01", decimals: 18}
  - {symbol: B, address: "0x02", decimals: 18}
`
	pools := `
pools:
  - {name: p, tokenA: A, tokenB: B, fee: 3000}
`
	testCases := []struct {
		name string
		yaml string
	}{
		{"malformed", "tokens: [\n"},
		{"one token", "tokens:\n  - {symbol: A, address: \"0x01\"}\n" + pools},
		{"duplicate token", tokens + "  - {symbol: A, address: \"0x03\"}\n" + pools},
		{"no pools", tokens},
		{"pool with unknown token", tokens + "pools:\n  - {name: p, tokenA: A, tokenB: C, fee: 3000}\n"},
		{"unknown balance token", tokens + pools + "accounts:\n  - {name: x, address: \"0x09\", balances: {C: \"1\"}}\n"},
		{"unknown op", tokens + pools + "steps:\n  - {op: flash, pool: p}\n"},
		{"unknown pool", tokens + pools + "steps:\n  - {op: poke, pool: q}\n"},
		{"unknown account", tokens + pools + "steps:\n  - {op: poke, pool: p, account: nobody}\n"},
		{"initialize without price", tokens + pools + "steps:\n  - {op: initialize, pool: p}\n"},
		{"initialize with both prices", tokens + pools + "steps:\n  - {op: initialize, pool: p, price: \"1\", sqrtPriceX96: \"1\"}\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}
