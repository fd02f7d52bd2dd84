package indexer

import (
	"errors"
	"fmt"

	tokenregistry "github.com/defistate/defistate-amm-go/protocols/tokenregistry"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrDuplicateSymbol  = errors.New("duplicate token symbol")
	ErrDuplicateAddress = errors.New("duplicate token address")
)

// Indexer builds IndexedTokenSystem views.
type Indexer struct{}

// New creates a new Indexer.
func New() *Indexer {
	return &Indexer{}
}

// Index creates an indexed token system from a raw slice of tokens.
func (i *Indexer) Index(tokens []tokenregistry.Token) (IndexedTokenSystem, error) {
	return NewIndexableTokenSystem(tokens)
}

// IndexableTokenSystem provides fast, indexed access to token data.
type IndexableTokenSystem struct {
	bySymbol  map[string]tokenregistry.Token
	byAddress map[common.Address]tokenregistry.Token
	all       []tokenregistry.Token
}

// NewIndexableTokenSystem creates a new indexed token system from a raw slice.
// Symbols and addresses must be unique.
func NewIndexableTokenSystem(tokens []tokenregistry.Token) (*IndexableTokenSystem, error) {
	bySymbol := make(map[string]tokenregistry.Token, len(tokens))
	byAddress := make(map[common.Address]tokenregistry.Token, len(tokens))

	for _, t := range tokens {
		if _, dup := bySymbol[t.Symbol]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSymbol, t.Symbol)
		}
		if _, dup := byAddress[t.Address]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAddress, t.Address)
		}
		bySymbol[t.Symbol] = t
		byAddress[t.Address] = t
	}

	return &IndexableTokenSystem{
		bySymbol:  bySymbol,
		byAddress: byAddress,
		all:       tokens,
	}, nil
}

// GetBySymbol retrieves a token by its symbol.
func (its *IndexableTokenSystem) GetBySymbol(symbol string) (tokenregistry.Token, bool) {
	t, ok := its.bySymbol[symbol]
	return t, ok
}

// GetByAddress retrieves a token by its contract address.
func (its *IndexableTokenSystem) GetByAddress(address common.Address) (tokenregistry.Token, bool) {
	t, ok := its.byAddress[address]
	return t, ok
}

// All returns a defensive copy of the slice of all tokens in the system.
func (its *IndexableTokenSystem) All() []tokenregistry.Token {
	allCopy := make([]tokenregistry.Token, len(its.all))
	copy(allCopy, its.all)
	return allCopy
}
