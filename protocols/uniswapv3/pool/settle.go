package pool

import (
	"errors"
	"fmt"

	"github.com/defistate/defistate-amm-go/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// leg is a transfer applied during settlement.
type leg struct {
	token        common.Address
	counterparty common.Address
	amount       *uint256.Int
	// incoming legs moved tokens into the pool
	incoming bool
}

// settlement applies the transfers of one operation against the ledger and can
// undo them if a later leg fails.
type settlement struct {
	ledger  ledger.Ledger
	pool    common.Address
	applied []leg
}

func (p *Pool) newSettlement() *settlement {
	return &settlement{ledger: p.ledger, pool: p.address}
}

// push pays amount of token from the pool to recipient.
func (s *settlement) push(token, recipient common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if err := s.ledger.Transfer(token, s.pool, recipient, amount); err != nil {
		return fmt.Errorf("pay %s to %s: %w", token, recipient, err)
	}
	s.applied = append(s.applied, leg{token: token, counterparty: recipient, amount: new(uint256.Int).Set(amount)})
	return nil
}

// pull requests amount of token from payer and verifies the pool's balance grew by at least amount.
func (s *settlement) pull(token, payer common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	before := s.ledger.BalanceOf(token, s.pool)
	if err := s.ledger.Transfer(token, payer, s.pool, amount); err != nil {
		return fmt.Errorf("pull %s from %s: %w", token, payer, err)
	}
	after := s.ledger.BalanceOf(token, s.pool)

	received := new(uint256.Int)
	if after.Gt(before) {
		received.Sub(after, before)
	}
	if !received.IsZero() {
		s.applied = append(s.applied, leg{token: token, counterparty: payer, amount: received, incoming: true})
	}
	if received.Lt(amount) {
		return fmt.Errorf("%w: %s owed %s, received %s", ErrInsufficientPayment, token, amount.Dec(), received.Dec())
	}
	return nil
}

// revert undoes every applied leg in reverse order and returns cause joined with
// any failure of the compensating transfers.
func (s *settlement) revert(cause error) error {
	errs := []error{cause}
	for i := len(s.applied) - 1; i >= 0; i-- {
		l := s.applied[i]
		from, to := s.pool, l.counterparty
		if !l.incoming {
			from, to = l.counterparty, s.pool
		}
		if err := s.ledger.Transfer(l.token, from, to, l.amount); err != nil {
			errs = append(errs, fmt.Errorf("compensate %s %s -> %s: %w", l.token, from, to, err))
		}
	}
	s.applied = nil
	return errors.Join(errs...)
}
