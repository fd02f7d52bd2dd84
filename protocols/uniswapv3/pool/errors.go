package pool

import (
	"errors"
	"fmt"
)

var (
	// ErrPrecondition is the category of every rejected request: bad ticks, zero amounts,
	// bad price limits or an uninitialized pool.
	ErrPrecondition = errors.New("precondition violated")
	// ErrInsufficientPayment is returned when the pool's balances did not grow by the amounts owed.
	ErrInsufficientPayment = errors.New("insufficient payment")
	// ErrPositionNotFound is returned for operations on a position that was never minted.
	ErrPositionNotFound = errors.New("position not found")

	ErrNotInitialized      = fmt.Errorf("%w: pool not initialized", ErrPrecondition)
	ErrAlreadyInitialized  = fmt.Errorf("%w: pool already initialized", ErrPrecondition)
	ErrZeroAmount          = fmt.Errorf("%w: amount must be greater than zero", ErrPrecondition)
	ErrTickOrder           = fmt.Errorf("%w: tickLower must be below tickUpper", ErrPrecondition)
	ErrTickLowerOutOfRange = fmt.Errorf("%w: tickLower below MIN_TICK", ErrPrecondition)
	ErrTickUpperOutOfRange = fmt.Errorf("%w: tickUpper above MAX_TICK", ErrPrecondition)
	ErrTickMisaligned      = fmt.Errorf("%w: tick is not a multiple of tick spacing", ErrPrecondition)
	ErrInvalidPriceLimit   = fmt.Errorf("%w: invalid sqrt price limit", ErrPrecondition)
	ErrInvalidFeeProtocol  = fmt.Errorf("%w: fee protocol must be 0 or between 4 and 10", ErrPrecondition)
)
