package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/defistate/defistate-amm-go/protocols/uniswapv3/calculator/safemath"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	// ErrInsufficientBalance is returned when a sender cannot cover a transfer.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrBalanceOverflow is returned when a credit would push a balance past 2^256 - 1.
	ErrBalanceOverflow = fmt.Errorf("%w: balance", safemath.ErrOverflow)
)

// Ledger is the external token transfer capability a pool settles against.
// Implementations must apply a transfer fully or not at all.
type Ledger interface {
	Transfer(token, from, to common.Address, amount *uint256.Int) error
	BalanceOf(token, account common.Address) *uint256.Int
}

// Memory is an in-memory Ledger. It is safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	balances map[common.Address]map[common.Address]*uint256.Int
}

// NewMemory returns an empty ledger.
func NewMemory() *Memory {
	return &Memory{
		balances: make(map[common.Address]map[common.Address]*uint256.Int),
	}
}

// Mint credits amount of token to account out of thin air. Used to seed test and scenario balances.
func (m *Memory) Mint(token, account common.Address, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	balance := m.balanceLocked(token, account)
	var next uint256.Int
	if _, overflow := next.AddOverflow(balance, amount); overflow {
		return ErrBalanceOverflow
	}
	balance.Set(&next)
	return nil
}

// Transfer moves amount of token from one account to another.
func (m *Memory) Transfer(token, from, to common.Address, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if amount.IsZero() {
		return nil
	}

	fromBalance := m.balanceLocked(token, from)
	if fromBalance.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s of %s, needs %s", ErrInsufficientBalance, from.Hex(), fromBalance.Dec(), token.Hex(), amount.Dec())
	}
	if from == to {
		return nil
	}

	toBalance := m.balanceLocked(token, to)
	var credited uint256.Int
	if _, overflow := credited.AddOverflow(toBalance, amount); overflow {
		return ErrBalanceOverflow
	}
	fromBalance.Sub(fromBalance, amount)
	toBalance.Set(&credited)
	return nil
}

// BalanceOf returns a copy of account's balance of token.
func (m *Memory) BalanceOf(token, account common.Address) *uint256.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if byAccount, ok := m.balances[token]; ok {
		if balance, ok := byAccount[account]; ok {
			return balance.Clone()
		}
	}
	return new(uint256.Int)
}

func (m *Memory) balanceLocked(token, account common.Address) *uint256.Int {
	byAccount, ok := m.balances[token]
	if !ok {
		byAccount = make(map[common.Address]*uint256.Int)
		m.balances[token] = byAccount
	}
	balance, ok := byAccount[account]
	if !ok {
		balance = new(uint256.Int)
		byAccount[account] = balance
	}
	return balance
}
