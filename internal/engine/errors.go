package engine

import (
	"errors"
	"fmt"

	"quantarena/internal/domain"
)

// Sentinel rejection reasons. Callers match with errors.Is.
var (
	ErrUnknownSymbol      = errors.New("unknown instrument")
	ErrInvalidQuantity    = errors.New("quantity must be positive")
	ErrInvalidPrice       = errors.New("price must be positive")
	ErrInsufficientCash   = errors.New("insufficient cash")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrUnsupportedOrder   = errors.New("unsupported order")
)

// OrderError is a typed submission rejection. The engine's state is untouched
// when one is returned.
type OrderError struct {
	Symbol string
	Side   domain.OrderSide
	Kind   domain.OrderKind
	Reason error
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("order rejected (%s %s %s): %v", e.Side, e.Kind, e.Symbol, e.Reason)
}

func (e *OrderError) Unwrap() error { return e.Reason }

func rejectOrder(o domain.Order, reason error) error {
	return &OrderError{Symbol: o.Symbol, Side: o.Side, Kind: o.Kind, Reason: reason}
}
