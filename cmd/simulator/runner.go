package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/defistate/defistate-amm-go/cmd/simulator/config"
	"github.com/defistate/defistate-amm-go/ledger"
	"github.com/defistate/defistate-amm-go/protocols/tokenregistry"
	tokenindexer "github.com/defistate/defistate-amm-go/protocols/tokenregistry/indexer"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/tickmath"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/factory"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/indexer"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/pool"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// pricePrecision is the number of decimal places prices are reported with.
const pricePrecision = 8

var (
	ErrUnexpectedSuccess = errors.New("step was expected to fail")
	ErrViewDiverged      = errors.New("patched view diverged from pool state")

	maxUint128 = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))
	q192       = new(big.Int).Lsh(big.NewInt(1), 192)
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// StepReport is the outcome of one scenario step.
type StepReport struct {
	Index   int
	Op      string
	Pool    string
	Account string

	// the pool's balance deltas, or the amounts a read-only step reports
	Amount0 string
	Amount1 string
	Err     error

	Tick         int64
	Price        decimal.Decimal
	InversePrice decimal.Decimal
	// the constant-product reserves matching the pool's in-range liquidity
	Reserve0 decimal.Decimal
	Reserve1 decimal.Decimal
	// the change the step made to the pool views
	Diff uniswapv3.UniswapV3SystemDiff
}

// PositionReport is one account's position in one pool at the end of a scenario.
type PositionReport struct {
	Account   string
	Pool      string
	TickLower int64
	TickUpper int64
	Liquidity string
	Owed0     string
	Owed1     string
}

// Runner executes a scenario against an in-memory ledger and a fresh factory.
//
// After every step it diffs the factory's snapshots against the view it maintains and
// patches the view forward, the way a consumer of the pool state would follow it.
type Runner struct {
	cfg     *config.SimulatorConfig
	logger  Logger
	ledger  *ledger.Memory
	factory *factory.Factory

	tokens   tokenindexer.IndexedTokenSystem
	accounts map[string]common.Address
	pools    map[string]*pool.Pool
	names    map[common.Address]string
	view     []uniswapv3.Pool
}

// NewRunner funds the scenario's accounts and creates its pools.
func NewRunner(cfg *config.SimulatorConfig, logger Logger, reg prometheus.Registerer) (*Runner, error) {
	r := &Runner{
		cfg:      cfg,
		logger:   logger,
		ledger:   ledger.NewMemory(),
		accounts: make(map[string]common.Address, len(cfg.Accounts)),
		pools:    make(map[string]*pool.Pool, len(cfg.Pools)),
		names:    make(map[common.Address]string, len(cfg.Pools)),
	}

	tokens := make([]tokenregistry.Token, 0, len(cfg.Tokens))
	for _, t := range cfg.Tokens {
		address, err := parseAddress(t.Address)
		if err != nil {
			return nil, fmt.Errorf("token %s: %w", t.Symbol, err)
		}
		tokens = append(tokens, tokenregistry.Token{Address: address, Symbol: t.Symbol, Decimals: t.Decimals})
	}
	indexed, err := tokenindexer.New().Index(tokens)
	if err != nil {
		return nil, err
	}
	r.tokens = indexed

	for _, a := range cfg.Accounts {
		address, err := parseAddress(a.Address)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", a.Name, err)
		}
		r.accounts[a.Name] = address
		for symbol, balance := range a.Balances {
			amount, err := parseUnsigned(balance)
			if err != nil {
				return nil, fmt.Errorf("account %s balance of %s: %w", a.Name, symbol, err)
			}
			if err := r.ledger.Mint(r.token(symbol), address, amount); err != nil {
				return nil, fmt.Errorf("account %s balance of %s: %w", a.Name, symbol, err)
			}
		}
	}

	f, err := factory.New(&factory.Config{
		Ledger:   r.ledger,
		Logger:   logger,
		Registry: reg,
	})
	if err != nil {
		return nil, err
	}
	r.factory = f

	for _, pc := range cfg.Pools {
		if pc.TickSpacing != 0 {
			if _, enabled := f.TickSpacing(pc.Fee); !enabled {
				if err := f.EnableFeeAmount(pc.Fee, pc.TickSpacing); err != nil {
					return nil, fmt.Errorf("pool %s: %w", pc.Name, err)
				}
			}
		}
		p, err := f.CreatePool(r.token(pc.TokenA), r.token(pc.TokenB), pc.Fee)
		if err != nil {
			return nil, fmt.Errorf("pool %s: %w", pc.Name, err)
		}
		r.pools[pc.Name] = p
		r.names[p.Address()] = pc.Name
	}

	r.view = f.Snapshot()
	return r, nil
}

// Ledger returns the ledger the scenario runs against.
func (r *Runner) Ledger() *ledger.Memory { return r.ledger }

// View returns the pool views as followed through diffs.
func (r *Runner) View() indexer.IndexedUniswapV3 {
	return indexer.New().Index(r.view)
}

// Run executes every step in order. It stops at the first step whose outcome differs from
// what the scenario expects, or when ctx is cancelled.
func (r *Runner) Run(ctx context.Context) ([]StepReport, error) {
	reports := make([]StepReport, 0, len(r.cfg.Steps))
	for i, step := range r.cfg.Steps {
		if err := ctx.Err(); err != nil {
			return reports, err
		}

		report, err := r.runStep(i, step)
		if err != nil {
			return reports, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (r *Runner) runStep(i int, step config.StepConfig) (StepReport, error) {
	p := r.pools[step.Pool]
	report := StepReport{Index: i, Op: step.Op, Pool: step.Pool, Account: step.Account}

	var (
		amount0, amount1 string
		err              error
	)
	if step.Op == config.OpQuote {
		// report the pool that priced the quote
		var route *pool.Pool
		if amount0, amount1, route, err = r.quote(p, step); err == nil {
			p, report.Pool = route, r.names[route.Address()]
		}
	} else {
		amount0, amount1, err = r.execute(p, step)
	}
	switch {
	case err != nil && !step.ExpectError:
		return report, err
	case err == nil && step.ExpectError:
		return report, ErrUnexpectedSuccess
	case err != nil:
		r.logger.Info("step failed as expected", "step", i, "op", step.Op, "error", err)
		report.Err = err
	default:
		report.Amount0, report.Amount1 = amount0, amount1
	}

	diff, err := r.follow()
	if err != nil {
		return report, err
	}
	report.Diff = diff

	view, ok := r.View().GetByAddress(p.Address())
	if !ok {
		return report, fmt.Errorf("pool %s missing from view", step.Pool)
	}
	report.Tick = view.Tick
	decimals0, decimals1 := r.decimals(view.Token0), r.decimals(view.Token1)
	if price, err := calculator.SpotPrice(view, decimals0, decimals1, pricePrecision); err == nil {
		report.Price = price
	}
	if inverse, err := calculator.InversePrice(view, decimals0, decimals1, pricePrecision); err == nil {
		report.InversePrice = inverse
	}
	if reserve0, reserve1, err := calculator.VirtualReserves(view, decimals0, decimals1); err == nil {
		report.Reserve0, report.Reserve1 = reserve0, reserve1
	}

	r.logger.Debug("step done",
		"step", i,
		"op", step.Op,
		"pool", step.Pool,
		"amount0", report.Amount0,
		"amount1", report.Amount1,
		"tick", report.Tick,
		"updates", len(diff.Updates),
	)
	return report, nil
}

// follow brings the view up to date with the factory and checks the result.
func (r *Runner) follow() (uniswapv3.UniswapV3SystemDiff, error) {
	current := r.factory.Snapshot()
	diff := uniswapv3.Differ(r.view, current)
	patched, err := uniswapv3.Patcher(r.view, diff)
	if err != nil {
		return diff, err
	}
	if residual := uniswapv3.Differ(patched, current); !residual.IsEmpty() {
		return diff, ErrViewDiverged
	}
	r.view = patched
	return diff, nil
}

// token returns the address of a symbol the config has already been validated against.
func (r *Runner) token(symbol string) common.Address {
	t, _ := r.tokens.GetBySymbol(symbol)
	return t.Address
}

func (r *Runner) decimals(address common.Address) int32 {
	t, _ := r.tokens.GetByAddress(address)
	return t.Decimals
}

// execute runs one operation and returns the amounts it reports.
func (r *Runner) execute(p *pool.Pool, step config.StepConfig) (amount0, amount1 string, err error) {
	account := r.accounts[step.Account]

	switch step.Op {
	case config.OpInitialize:
		price, err := r.initialPrice(p, step)
		if err != nil {
			return "", "", err
		}
		return "", "", p.Initialize(price)

	case config.OpMint, config.OpBurn:
		amount, err := parseUnsigned(step.Amount)
		if err != nil {
			return "", "", err
		}
		var a0, a1 *uint256.Int
		if step.Op == config.OpMint {
			a0, a1, err = p.Mint(account, step.TickLower, step.TickUpper, amount)
		} else {
			a0, a1, err = p.Burn(account, step.TickLower, step.TickUpper, amount)
		}
		if err != nil {
			return "", "", err
		}
		return a0.Dec(), a1.Dec(), nil

	case config.OpCollect, config.OpCollectProtocol:
		req0, err := parseRequested(step.Amount0)
		if err != nil {
			return "", "", err
		}
		req1, err := parseRequested(step.Amount1)
		if err != nil {
			return "", "", err
		}
		var a0, a1 *uint256.Int
		if step.Op == config.OpCollect {
			a0, a1, err = p.Collect(account, step.TickLower, step.TickUpper, req0, req1)
		} else {
			a0, a1, err = p.CollectProtocol(account, req0, req1)
		}
		if err != nil {
			return "", "", err
		}
		return a0.Dec(), a1.Dec(), nil

	case config.OpSwap:
		amount, limit, err := swapArgs(step)
		if err != nil {
			return "", "", err
		}
		a0, a1, err := p.Swap(account, step.ZeroForOne, amount, limit)
		if err != nil {
			return "", "", err
		}
		return a0.String(), a1.String(), nil

	case config.OpPoke:
		info, err := p.Poke(account, step.TickLower, step.TickUpper)
		if err != nil {
			return "", "", err
		}
		return info.TokensOwed0.Dec(), info.TokensOwed1.Dec(), nil

	case config.OpSetFeeProtocol:
		return "", "", p.SetFeeProtocol(step.FeeProtocol0, step.FeeProtocol1)
	}
	return "", "", fmt.Errorf("unknown op %q", step.Op)
}

// quote prices a swap from the followed view rather than the pool itself. Exact input is
// routed to whichever pool for the pair pays the most, exact output is priced on p.
func (r *Runner) quote(p *pool.Pool, step config.StepConfig) (amount0, amount1 string, route *pool.Pool, err error) {
	amount, err := parseSigned(step.Amount)
	if err != nil {
		return "", "", nil, err
	}
	limit, err := parseOptional(step.SqrtPriceLimitX96)
	if err != nil {
		return "", "", nil, err
	}
	abs, overflow := uint256.FromBig(new(big.Int).Abs(amount))
	if overflow {
		return "", "", nil, fmt.Errorf("amount %s overflows", amount)
	}
	tokenIn := p.Token1()
	if step.ZeroForOne {
		tokenIn = p.Token0()
	}

	var in, out *uint256.Int
	if amount.Sign() >= 0 {
		in = abs
		var best common.Address
		for _, view := range r.View().GetByTokens(p.Token0(), p.Token1()) {
			got, quoteErr := calculator.GetAmountOut(abs, limit, tokenIn, view)
			if quoteErr != nil {
				r.logger.Debug("pool skipped for quote", "pool", view.Address, "error", quoteErr)
				if err == nil {
					err = quoteErr
				}
				continue
			}
			if out == nil || got.Gt(out) {
				out, best = got, view.Address
			}
		}
		if out == nil {
			if err == nil {
				err = fmt.Errorf("no pool for %s and %s", p.Token0(), p.Token1())
			}
			return "", "", nil, err
		}
		route = r.pools[r.names[best]]
	} else {
		view, ok := r.View().GetByAddress(p.Address())
		if !ok {
			return "", "", nil, fmt.Errorf("pool %s missing from view", step.Pool)
		}
		out = abs
		if in, err = calculator.GetAmountIn(abs, limit, tokenIn, view); err != nil {
			return "", "", nil, err
		}
		route = p
	}

	// same sign convention as a swap: paid to the pool is positive
	outNeg := new(big.Int).Neg(out.ToBig())
	if step.ZeroForOne {
		return in.Dec(), outNeg.String(), route, nil
	}
	return outNeg.String(), in.Dec(), route, nil
}

// Positions reports every account's positions, in config order.
func (r *Runner) Positions() []PositionReport {
	var reports []PositionReport
	for _, a := range r.cfg.Accounts {
		for _, pc := range r.cfg.Pools {
			for _, info := range r.pools[pc.Name].Positions(r.accounts[a.Name]) {
				reports = append(reports, PositionReport{
					Account:   a.Name,
					Pool:      pc.Name,
					TickLower: info.TickLower,
					TickUpper: info.TickUpper,
					Liquidity: info.Liquidity.Dec(),
					Owed0:     info.TokensOwed0.Dec(),
					Owed1:     info.TokensOwed1.Dec(),
				})
			}
		}
	}
	return reports
}

func (r *Runner) initialPrice(p *pool.Pool, step config.StepConfig) (*uint256.Int, error) {
	if step.SqrtPriceX96 != "" {
		return parseUnsigned(step.SqrtPriceX96)
	}
	price, err := decimal.NewFromString(step.Price)
	if err != nil {
		return nil, fmt.Errorf("price %q: %w", step.Price, err)
	}
	return PriceToSqrtPriceX96(price, r.decimals(p.Token0()), r.decimals(p.Token1()))
}

// PriceToSqrtPriceX96 converts the human price of token0 in token1 to a Q64.96 square root
// price, rounding down.
func PriceToSqrtPriceX96(price decimal.Decimal, decimals0, decimals1 int32) (*uint256.Int, error) {
	if !price.IsPositive() {
		return nil, fmt.Errorf("price %s must be positive", price)
	}
	scaled := price.Shift(decimals1 - decimals0).Mul(decimal.NewFromBigInt(q192, 0)).BigInt()
	sqrtPrice, overflow := uint256.FromBig(new(big.Int).Sqrt(scaled))
	if overflow {
		return nil, fmt.Errorf("price %s overflows", price)
	}
	return sqrtPrice, nil
}

func swapArgs(step config.StepConfig) (*big.Int, *uint256.Int, error) {
	amount, err := parseSigned(step.Amount)
	if err != nil {
		return nil, nil, err
	}
	limit, err := parseOptional(step.SqrtPriceLimitX96)
	if err != nil {
		return nil, nil, err
	}
	if limit == nil {
		if step.ZeroForOne {
			limit = new(uint256.Int).AddUint64(tickmath.MIN_SQRT_RATIO, 1)
		} else {
			limit = new(uint256.Int).SubUint64(tickmath.MAX_SQRT_RATIO, 1)
		}
	}
	return amount, limit, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func parseUnsigned(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("amount %q: %w", s, err)
	}
	return v, nil
}

func parseSigned(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("amount %q is not an integer", s)
	}
	return v, nil
}

func parseOptional(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, nil
	}
	return parseUnsigned(s)
}

// parseRequested reads a collect request, where an empty amount asks for everything owed.
func parseRequested(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int).Set(maxUint128), nil
	}
	return parseUnsigned(s)
}
