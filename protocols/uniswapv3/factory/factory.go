package factory

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/defistate/defistate-amm-go/ledger"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/swapmath"
	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/pool"
	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/zeebo/blake3"
)

var (
	ErrIdenticalTokens = errors.New("tokens must differ")
	ErrZeroAddress     = errors.New("token cannot be the zero address")
	ErrFeeNotEnabled   = errors.New("fee amount not enabled")
	ErrFeeEnabled      = errors.New("fee amount already enabled")
	ErrInvalidFee      = errors.New("invalid fee amount")
	ErrInvalidSpacing  = errors.New("tick spacing must be in (0, 16384)")
	ErrPoolExists      = errors.New("pool already exists")
)

// maxTickSpacing keeps the tick bitmap's word index within int16 for every usable tick.
const maxTickSpacing = 16384

// DefaultFeeAmountTickSpacing is the fee tiers every factory starts with.
var DefaultFeeAmountTickSpacing = map[uint32]int64{
	500:   10,
	3000:  60,
	10000: 200,
}

var poolKeyPrefix = []byte("pool")

// PoolKey identifies a pool. Token0 sorts before Token1.
type PoolKey struct {
	Token0 common.Address
	Token1 common.Address
	Fee    uint32
}

// NewPoolKey orders the tokens and returns the key of their pool for fee.
func NewPoolKey(tokenA, tokenB common.Address, fee uint32) PoolKey {
	if tokenB.Cmp(tokenA) < 0 {
		tokenA, tokenB = tokenB, tokenA
	}
	return PoolKey{Token0: tokenA, Token1: tokenB, Fee: fee}
}

// ID is the pool's deterministic identifier.
func (k PoolKey) ID() common.Hash {
	var fee [4]byte
	binary.BigEndian.PutUint32(fee[:], k.Fee)

	h := blake3.New()
	h.Write(poolKeyPrefix)
	h.Write(k.Token0.Bytes())
	h.Write(k.Token1.Bytes())
	h.Write(fee[:])
	var id common.Hash
	h.Digest().Read(id[:])
	return id
}

// Address is the ledger account that holds the pool's balances, the low 20 bytes of its ID.
func (k PoolKey) Address() common.Address {
	return common.BytesToAddress(k.ID().Bytes()[12:])
}

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the dependencies shared by every pool the factory creates.
type Config struct {
	Ledger   ledger.Ledger
	Logger   Logger
	Registry prometheus.Registerer
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
	return nil
}

// Factory creates and tracks pools. Each pool owns its state; the factory only indexes them.
// It is safe for concurrent use.
type Factory struct {
	cfg Config

	mu                   sync.RWMutex
	feeAmountTickSpacing map[uint32]int64
	pools                map[PoolKey]*pool.Pool
	byAddress            map[common.Address]*pool.Pool
}

// New returns a factory with the default fee tiers enabled.
func New(cfg *Config) (*Factory, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	tiers := make(map[uint32]int64, len(DefaultFeeAmountTickSpacing))
	for fee, spacing := range DefaultFeeAmountTickSpacing {
		tiers[fee] = spacing
	}
	return &Factory{
		cfg:                  *cfg,
		feeAmountTickSpacing: tiers,
		pools:                make(map[PoolKey]*pool.Pool),
		byAddress:            make(map[common.Address]*pool.Pool),
	}, nil
}

// EnableFeeAmount adds a fee tier. Tiers cannot be changed or removed once enabled.
func (f *Factory) EnableFeeAmount(fee uint32, tickSpacing int64) error {
	if fee >= swapmath.FeeDenominator {
		return fmt.Errorf("%w: %d", ErrInvalidFee, fee)
	}
	if tickSpacing <= 0 || tickSpacing >= maxTickSpacing {
		return fmt.Errorf("%w: %d", ErrInvalidSpacing, tickSpacing)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.feeAmountTickSpacing[fee]; ok {
		return fmt.Errorf("%w: %d", ErrFeeEnabled, fee)
	}
	f.feeAmountTickSpacing[fee] = tickSpacing
	f.cfg.Logger.Info("fee amount enabled", "fee", fee, "tickSpacing", tickSpacing)
	return nil
}

// TickSpacing returns the tick spacing of an enabled fee tier.
func (f *Factory) TickSpacing(fee uint32) (int64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	spacing, ok := f.feeAmountTickSpacing[fee]
	return spacing, ok
}

// CreatePool creates the pool for a token pair and fee tier. The pool starts uninitialized.
func (f *Factory) CreatePool(tokenA, tokenB common.Address, fee uint32) (*pool.Pool, error) {
	if tokenA == tokenB {
		return nil, ErrIdenticalTokens
	}
	key := NewPoolKey(tokenA, tokenB, fee)
	if key.Token0 == (common.Address{}) {
		return nil, ErrZeroAddress
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tickSpacing, ok := f.feeAmountTickSpacing[fee]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrFeeNotEnabled, fee)
	}
	if _, exists := f.pools[key]; exists {
		return nil, fmt.Errorf("%w: %s/%s fee %d", ErrPoolExists, key.Token0, key.Token1, fee)
	}

	p, err := pool.New(&pool.Config{
		Address:     key.Address(),
		Token0:      key.Token0,
		Token1:      key.Token1,
		Fee:         fee,
		TickSpacing: tickSpacing,
		Ledger:      f.cfg.Ledger,
		Logger:      f.cfg.Logger,
		Registry:    f.cfg.Registry,
	})
	if err != nil {
		return nil, err
	}

	f.pools[key] = p
	f.byAddress[p.Address()] = p
	f.cfg.Logger.Info("pool created",
		"pool", p.Address(),
		"token0", key.Token0,
		"token1", key.Token1,
		"fee", fee,
		"tickSpacing", tickSpacing,
	)
	return p, nil
}

// GetPool returns the pool for a token pair and fee tier, in either token order.
func (f *Factory) GetPool(tokenA, tokenB common.Address, fee uint32) (*pool.Pool, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.pools[NewPoolKey(tokenA, tokenB, fee)]
	return p, ok
}

// PoolByAddress returns the pool holding balances at address.
func (f *Factory) PoolByAddress(address common.Address) (*pool.Pool, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.byAddress[address]
	return p, ok
}

// Pools returns every pool ordered by address.
func (f *Factory) Pools() []*pool.Pool {
	f.mu.RLock()
	pools := make([]*pool.Pool, 0, len(f.byAddress))
	for _, p := range f.byAddress {
		pools = append(pools, p)
	}
	f.mu.RUnlock()

	sort.Slice(pools, func(i, j int) bool {
		return pools[i].Address().Cmp(pools[j].Address()) < 0
	})
	return pools
}

// Snapshot returns a view of every pool, ordered by address.
func (f *Factory) Snapshot() []uniswapv3.Pool {
	pools := f.Pools()
	views := make([]uniswapv3.Pool, 0, len(pools))
	for _, p := range pools {
		views = append(views, p.Snapshot())
	}
	return views
}
