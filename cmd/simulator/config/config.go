package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Step operations.
const (
	OpInitialize      = "initialize"
	OpMint            = "mint"
	OpBurn            = "burn"
	OpCollect         = "collect"
	OpSwap            = "swap"
	OpPoke            = "poke"
	OpSetFeeProtocol  = "set_fee_protocol"
	OpCollectProtocol = "collect_protocol"
	OpQuote           = "quote"
)

var knownOps = map[string]bool{
	OpInitialize:      true,
	OpMint:            true,
	OpBurn:            true,
	OpCollect:         true,
	OpSwap:            true,
	OpPoke:            true,
	OpSetFeeProtocol:  true,
	OpCollectProtocol: true,
	OpQuote:           true,
}

// SimulatorConfig is a scenario: the tokens and accounts it starts with, the pools it
// creates and the steps it runs against them in order.
type SimulatorConfig struct {
	Tokens   []TokenConfig   `yaml:"tokens"`
	Accounts []AccountConfig `yaml:"accounts"`
	Pools    []PoolConfig    `yaml:"pools"`
	Steps    []StepConfig    `yaml:"steps"`
}

type TokenConfig struct {
	Symbol   string `yaml:"symbol"`
	Address  string `yaml:"address"`
	Decimals int32  `yaml:"decimals"`
}

type AccountConfig struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	// token symbol to balance in base units
	Balances map[string]string `yaml:"balances"`
}

type PoolConfig struct {
	Name   string `yaml:"name"`
	TokenA string `yaml:"tokenA"`
	TokenB string `yaml:"tokenB"`
	Fee    uint32 `yaml:"fee"`
	// optional, enables the fee tier when it is not one of the defaults
	TickSpacing int64 `yaml:"tickSpacing"`
}

// StepConfig is one operation. Which fields are read depends on Op.
//
// Amounts are decimal strings in base units. Swap amounts are positive for exact input and
// negative for exact output. An initialize step takes either SqrtPriceX96 or Price, the
// latter being the human price of token0 in token1.
type StepConfig struct {
	Op      string `yaml:"op"`
	Pool    string `yaml:"pool"`
	Account string `yaml:"account"`

	SqrtPriceX96 string `yaml:"sqrtPriceX96"`
	Price        string `yaml:"price"`

	TickLower int64  `yaml:"tickLower"`
	TickUpper int64  `yaml:"tickUpper"`
	Amount    string `yaml:"amount"`
	Amount0   string `yaml:"amount0"`
	Amount1   string `yaml:"amount1"`

	ZeroForOne        bool   `yaml:"zeroForOne"`
	SqrtPriceLimitX96 string `yaml:"sqrtPriceLimitX96"`

	FeeProtocol0 uint8 `yaml:"feeProtocol0"`
	FeeProtocol1 uint8 `yaml:"feeProtocol1"`

	// the step must fail; the scenario continues when it does
	ExpectError bool `yaml:"expectError"`
}

// LoadConfig reads and validates a scenario file.
func LoadConfig(path string) (*SimulatorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a scenario.
func Parse(data []byte) (*SimulatorConfig, error) {
	var cfg SimulatorConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *SimulatorConfig) validate() error {
	if len(c.Tokens) < 2 {
		return errors.New("config: at least two tokens are required")
	}
	if len(c.Pools) == 0 {
		return errors.New("config: at least one pool is required")
	}

	tokens := make(map[string]bool, len(c.Tokens))
	for _, t := range c.Tokens {
		if t.Symbol == "" || t.Address == "" {
			return errors.New("config: token symbol and address cannot be empty")
		}
		if tokens[t.Symbol] {
			return fmt.Errorf("config: duplicate token %q", t.Symbol)
		}
		if t.Decimals < 0 || t.Decimals > 77 {
			return fmt.Errorf("config: token %q decimals out of range", t.Symbol)
		}
		tokens[t.Symbol] = true
	}

	accounts := make(map[string]bool, len(c.Accounts))
	for _, a := range c.Accounts {
		if a.Name == "" || a.Address == "" {
			return errors.New("config: account name and address cannot be empty")
		}
		if accounts[a.Name] {
			return fmt.Errorf("config: duplicate account %q", a.Name)
		}
		for symbol := range a.Balances {
			if !tokens[symbol] {
				return fmt.Errorf("config: account %q holds unknown token %q", a.Name, symbol)
			}
		}
		accounts[a.Name] = true
	}

	pools := make(map[string]bool, len(c.Pools))
	for _, p := range c.Pools {
		if p.Name == "" {
			return errors.New("config: pool name cannot be empty")
		}
		if pools[p.Name] {
			return fmt.Errorf("config: duplicate pool %q", p.Name)
		}
		if !tokens[p.TokenA] || !tokens[p.TokenB] {
			return fmt.Errorf("config: pool %q references an unknown token", p.Name)
		}
		pools[p.Name] = true
	}

	for i, s := range c.Steps {
		if !knownOps[s.Op] {
			return fmt.Errorf("config: step %d: unknown op %q", i, s.Op)
		}
		if !pools[s.Pool] {
			return fmt.Errorf("config: step %d: unknown pool %q", i, s.Pool)
		}
		if s.Account != "" && !accounts[s.Account] {
			return fmt.Errorf("config: step %d: unknown account %q", i, s.Account)
		}
		if s.Op == OpInitialize && (s.SqrtPriceX96 == "") == (s.Price == "") {
			return fmt.Errorf("config: step %d: initialize takes exactly one of sqrtPriceX96 and price", i)
		}
	}
	return nil
}
