package pool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/defistate/defistate-amm-go/ledger"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/swapmath"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/tickbitmap"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/tickmath"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/position"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/tick"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the parameters for creating a new Pool.
type Config struct {
	// Address is the account that holds the pool's token balances in the ledger.
	Address common.Address
	Token0  common.Address
	Token1  common.Address
	// Fee is the swap fee in hundredths of a basis point.
	Fee         uint32
	TickSpacing int64
	Ledger      ledger.Ledger
	Logger      Logger
	Registry    prometheus.Registerer
}

func (c *Config) validate() error {
	if c.Ledger == nil {
		return errors.New("config: Ledger cannot be nil")
	}
	if c.Logger == nil {
		return errors.New("config: Logger cannot be nil")
	}
	if c.Registry == nil {
		return errors.New("config: Registry cannot be nil")
	}
	if c.Token0 == c.Token1 {
		return errors.New("config: Token0 and Token1 must differ")
	}
	if c.Fee >= swapmath.FeeDenominator {
		return fmt.Errorf("config: Fee must be below %d", swapmath.FeeDenominator)
	}
	if c.TickSpacing <= 0 || c.TickSpacing > tickmath.MAX_TICK {
		return errors.New("config: TickSpacing must be between 1 and MAX_TICK")
	}
	return nil
}

// slot0 is the pool's price state.
type slot0 struct {
	// zero until the pool is initialized
	sqrtPriceX96 *uint256.Int
	tick         int64
	// protocol fee denominators for token0 and token1, packed as p0 | p1<<4
	feeProtocol uint8
}

// Pool is a single concentrated-liquidity pool. Its tick and position registries
// are owned exclusively by the pool.
//
// Every exported method is safe for concurrent use; operations on one pool are serialized
// and each one either commits fully or leaves the pool untouched.
type Pool struct {
	mu sync.Mutex

	address             common.Address
	token0              common.Address
	token1              common.Address
	fee                 uint32
	tickSpacing         int64
	maxLiquidityPerTick *uint256.Int

	ledger  ledger.Ledger
	logger  Logger
	metrics *Metrics

	slot0                slot0
	liquidity            *uint256.Int
	feeGrowthGlobal0X128 *uint256.Int
	feeGrowthGlobal1X128 *uint256.Int
	// accrued protocol fees, uint128 and wrapping
	protocolFees0 *uint256.Int
	protocolFees1 *uint256.Int

	ticks     *tick.Registry
	bitmap    *tickbitmap.Bitmap
	positions *position.Registry
}

// New creates an uninitialized pool.
func New(cfg *Config) (*Pool, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	bitmap, err := tickbitmap.New(cfg.TickSpacing)
	if err != nil {
		return nil, err
	}

	return &Pool{
		address:             cfg.Address,
		token0:              cfg.Token0,
		token1:              cfg.Token1,
		fee:                 cfg.Fee,
		tickSpacing:         cfg.TickSpacing,
		maxLiquidityPerTick: tick.TickSpacingToMaxLiquidityPerTick(cfg.TickSpacing),

		ledger:  cfg.Ledger,
		logger:  cfg.Logger,
		metrics: NewMetrics(cfg.Registry),

		slot0:                slot0{sqrtPriceX96: new(uint256.Int)},
		liquidity:            new(uint256.Int),
		feeGrowthGlobal0X128: new(uint256.Int),
		feeGrowthGlobal1X128: new(uint256.Int),
		protocolFees0:        new(uint256.Int),
		protocolFees1:        new(uint256.Int),

		ticks:     tick.NewRegistry(),
		bitmap:    bitmap,
		positions: position.NewRegistry(),
	}, nil
}

func (p *Pool) Address() common.Address { return p.address }
func (p *Pool) Token0() common.Address  { return p.token0 }
func (p *Pool) Token1() common.Address  { return p.token1 }
func (p *Pool) Fee() uint32             { return p.fee }
func (p *Pool) TickSpacing() int64      { return p.tickSpacing }

// MaxLiquidityPerTick returns the most liquidity any single tick may reference.
func (p *Pool) MaxLiquidityPerTick() *uint256.Int {
	return new(uint256.Int).Set(p.maxLiquidityPerTick)
}

// begin locks the pool and starts the duration timer for op.
// The returned function records the outcome and unlocks.
func (p *Pool) begin(op string) func(err error) {
	p.mu.Lock()
	timer := prometheus.NewTimer(p.metrics.duration.WithLabelValues(op))
	return func(err error) {
		timer.ObserveDuration()
		p.metrics.observe(p.address.Hex(), op, err)
		p.mu.Unlock()
	}
}

func (p *Pool) initialized() bool {
	return !p.slot0.sqrtPriceX96.IsZero()
}

// Initialize sets the starting price of the pool. The protocol fee starts switched off.
func (p *Pool) Initialize(sqrtPriceX96 *uint256.Int) (err error) {
	done := p.begin("initialize")
	defer func() { done(err) }()

	if p.initialized() {
		return ErrAlreadyInitialized
	}
	tick, err := tickmath.GetTickAtSqrtRatio(sqrtPriceX96)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPrecondition, err)
	}

	p.slot0 = slot0{
		sqrtPriceX96: new(uint256.Int).Set(sqrtPriceX96),
		tick:         tick,
	}
	p.logger.Debug("pool initialized", "pool", p.address, "sqrtPriceX96", sqrtPriceX96.Dec(), "tick", tick)
	return nil
}

// Position returns a copy of a position without creating it.
func (p *Pool) Position(owner common.Address, tickLower, tickUpper int64) (position.Info, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positions.Lookup(owner, tickLower, tickUpper)
}

// Positions returns copies of owner's positions, ordered by range.
func (p *Pool) Positions(owner common.Address) []uniswapv3.PositionInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries := p.positions.Positions(owner)
	infos := make([]uniswapv3.PositionInfo, 0, len(entries))
	for _, entry := range entries {
		infos = append(infos, positionInfo(entry))
	}
	return infos
}

func positionInfo(entry position.Entry) uniswapv3.PositionInfo {
	return uniswapv3.PositionInfo{
		Owner:                    entry.Owner,
		TickLower:                entry.TickLower,
		TickUpper:                entry.TickUpper,
		Liquidity:                entry.Info.Liquidity,
		FeeGrowthInside0LastX128: entry.Info.FeeGrowthInside0LastX128,
		FeeGrowthInside1LastX128: entry.Info.FeeGrowthInside1LastX128,
		TokensOwed0:              entry.Info.TokensOwed0,
		TokensOwed1:              entry.Info.TokensOwed1,
	}
}

// Snapshot returns a deep copy of the pool's state.
func (p *Pool) Snapshot() uniswapv3.Pool {
	p.mu.Lock()
	defer p.mu.Unlock()

	view := uniswapv3.Pool{
		PoolViewMinimal: uniswapv3.PoolViewMinimal{
			Address:              p.address,
			Token0:               p.token0,
			Token1:               p.token1,
			Fee:                  p.fee,
			TickSpacing:          p.tickSpacing,
			Tick:                 p.slot0.tick,
			Liquidity:            new(uint256.Int).Set(p.liquidity),
			SqrtPriceX96:         new(uint256.Int).Set(p.slot0.sqrtPriceX96),
			FeeProtocol:          p.slot0.feeProtocol,
			FeeGrowthGlobal0X128: new(uint256.Int).Set(p.feeGrowthGlobal0X128),
			FeeGrowthGlobal1X128: new(uint256.Int).Set(p.feeGrowthGlobal1X128),
			ProtocolFees0:        new(uint256.Int).Set(p.protocolFees0),
			ProtocolFees1:        new(uint256.Int).Set(p.protocolFees1),
		},
	}

	for _, index := range p.ticks.Indices() {
		info := p.ticks.Get(index)
		view.Ticks = append(view.Ticks, uniswapv3.TickInfo{
			Index:                 index,
			LiquidityGross:        info.LiquidityGross,
			LiquidityNet:          info.LiquidityNet,
			FeeGrowthOutside0X128: info.FeeGrowthOutside0X128,
			FeeGrowthOutside1X128: info.FeeGrowthOutside1X128,
		})
	}

	for _, entry := range p.positions.All() {
		view.Positions = append(view.Positions, positionInfo(entry))
	}
	return view
}
