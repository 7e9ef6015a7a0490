// Package engine owns the portfolio state of a single backtest run: cash,
// positions, the pending conditional order book, and the immutable trade
// ledger. One Engine belongs to exactly one run and is never shared.
package engine

import (
	"fmt"
	"sort"
	"time"

	"quantarena/internal/config"
	"quantarena/internal/domain"
)

// Engine is the order and portfolio engine. All mutation goes through order
// submission, pending-order evaluation, and the risk-rule layer, so cash and
// holdings always reconcile against the ledger.
type Engine struct {
	trading  config.Trading
	risk     config.Risk
	universe map[string]struct{}

	cash      float64
	positions map[string]*domain.Position
	pending   []*domain.Order
	ledger    []domain.Trade
	realized  float64
	nextID    int

	diags *domain.Diagnostics
}

// New creates an Engine with the configured initial cash and the given
// tradable universe. Invalid configuration is a construction error; no
// partial engine is produced.
func New(trading config.Trading, risk config.Risk, universe []string, diags *domain.Diagnostics) (*Engine, error) {
	if err := trading.Validate(); err != nil {
		return nil, fmt.Errorf("trading config: %w", err)
	}
	if err := risk.Validate(); err != nil {
		return nil, fmt.Errorf("risk config: %w", err)
	}
	if len(universe) == 0 {
		return nil, fmt.Errorf("empty instrument universe")
	}
	if diags == nil {
		diags = &domain.Diagnostics{}
	}

	uni := make(map[string]struct{}, len(universe))
	for _, s := range universe {
		uni[s] = struct{}{}
	}
	return &Engine{
		trading:   trading,
		risk:      risk,
		universe:  uni,
		cash:      trading.InitialCash,
		positions: make(map[string]*domain.Position),
		diags:     diags,
	}, nil
}

// ---------------------------------------------------------------------------
// State accessors
// ---------------------------------------------------------------------------

// Cash returns the current cash balance.
func (e *Engine) Cash() float64 { return e.cash }

// RealizedPnL returns cumulative realized profit and loss from closed lots.
func (e *Engine) RealizedPnL() float64 { return e.realized }

// Position returns a copy of the position for symbol, if held.
func (e *Engine) Position(symbol string) (domain.Position, bool) {
	p, ok := e.positions[symbol]
	if !ok {
		return domain.Position{}, false
	}
	return *p, true
}

// Holdings returns symbol→quantity for all open positions.
func (e *Engine) Holdings() map[string]int64 {
	out := make(map[string]int64, len(e.positions))
	for sym, p := range e.positions {
		out[sym] = p.Qty
	}
	return out
}

// Positions returns copies of all open positions sorted by symbol.
func (e *Engine) Positions() []domain.Position {
	out := make([]domain.Position, 0, len(e.positions))
	for _, p := range e.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Ledger returns a copy of the trade ledger in fill order.
func (e *Engine) Ledger() []domain.Trade {
	out := make([]domain.Trade, len(e.ledger))
	copy(out, e.ledger)
	return out
}

// PendingOrders returns copies of the resting conditional orders in
// submission order.
func (e *Engine) PendingOrders() []domain.Order {
	out := make([]domain.Order, 0, len(e.pending))
	for _, o := range e.pending {
		out = append(out, *o)
	}
	return out
}

// ---------------------------------------------------------------------------
// Order lifecycle
// ---------------------------------------------------------------------------

// Submit validates and accepts an order. Market orders fill immediately at
// refPrice (the day's close) adjusted for slippage; conditional orders are
// enqueued as pending and evaluated against future bars. A rejected order has
// no effect on state and is reported with a typed reason.
func (e *Engine) Submit(o domain.Order, refPrice float64, date time.Time) (domain.Order, error) {
	if o.Qty <= 0 {
		return domain.Order{}, rejectOrder(o, ErrInvalidQuantity)
	}
	if _, ok := e.universe[o.Symbol]; !ok {
		return domain.Order{}, rejectOrder(o, ErrUnknownSymbol)
	}
	if o.Side != domain.OrderSideBuy && o.Side != domain.OrderSideSell {
		return domain.Order{}, rejectOrder(o, ErrUnsupportedOrder)
	}

	switch o.Kind {
	case domain.OrderKindMarket:
		if refPrice <= 0 {
			return domain.Order{}, rejectOrder(o, ErrInvalidPrice)
		}
	case domain.OrderKindLimit:
		if o.Price <= 0 {
			return domain.Order{}, rejectOrder(o, ErrInvalidPrice)
		}
	case domain.OrderKindStopLoss, domain.OrderKindTakeProfit:
		if o.Price <= 0 {
			return domain.Order{}, rejectOrder(o, ErrInvalidPrice)
		}
		// Stops and take-profits close long positions.
		if o.Side != domain.OrderSideSell {
			return domain.Order{}, rejectOrder(o, ErrUnsupportedOrder)
		}
	default:
		return domain.Order{}, rejectOrder(o, ErrUnsupportedOrder)
	}

	// Submission-time funds/shares check at the best available estimate.
	if o.Side == domain.OrderSideBuy {
		est := o.Price
		if o.Kind == domain.OrderKindMarket {
			est = e.execPrice(domain.OrderSideBuy, refPrice)
		}
		gross := est * float64(o.Qty)
		if gross+e.fee(gross) > e.cash {
			return domain.Order{}, rejectOrder(o, ErrInsufficientCash)
		}
	} else {
		held := int64(0)
		if p, ok := e.positions[o.Symbol]; ok {
			held = p.Qty
		}
		if o.Qty > held {
			return domain.Order{}, rejectOrder(o, ErrInsufficientShares)
		}
	}

	accepted := o
	accepted.ID = e.newOrderID()
	accepted.Status = domain.OrderStatusPending
	accepted.CreatedOn = date

	if accepted.Kind == domain.OrderKindMarket {
		price := e.execPrice(accepted.Side, refPrice)
		trade := domain.Trade{
			OrderID:   accepted.ID,
			Symbol:    accepted.Symbol,
			Side:      accepted.Side,
			Qty:       accepted.Qty,
			FillPrice: price,
			Fee:       e.fee(price * float64(accepted.Qty)),
			Date:      date,
		}
		if err := e.ApplyFill(trade); err != nil {
			return domain.Order{}, rejectOrder(o, err)
		}
		accepted.Status = domain.OrderStatusFilled
		return accepted, nil
	}

	e.pending = append(e.pending, &accepted)
	return accepted, nil
}

// Cancel permanently removes a pending order. Cancelling an unknown or
// already-resolved order is a no-op.
func (e *Engine) Cancel(orderID string) {
	for i, o := range e.pending {
		if o.ID == orderID {
			o.Status = domain.OrderStatusCancelled
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			return
		}
	}
}

// EvaluatePending checks every pending order for the bar's instrument
// against the day's full range and returns the resulting fills, consuming
// matched orders. Triggered orders that cannot be funded on the day stay
// pending and are recorded in the diagnostics log.
func (e *Engine) EvaluatePending(bar domain.Bar) []domain.Trade {
	var fills []domain.Trade
	remaining := e.pending[:0]

	for _, o := range e.pending {
		if o.Symbol != bar.Symbol || !triggered(o, bar) {
			remaining = append(remaining, o)
			continue
		}

		price := e.conditionalFillPrice(o)
		trade := domain.Trade{
			OrderID:   o.ID,
			Symbol:    o.Symbol,
			Side:      o.Side,
			Qty:       o.Qty,
			FillPrice: price,
			Fee:       e.fee(price * float64(o.Qty)),
			Date:      bar.Date,
		}
		if err := e.ApplyFill(trade); err != nil {
			// Not fundable today; the order rests until it is, as the
			// portfolio may free up cash or shares on a later day.
			e.diags.Add(bar.Date, "order %s triggered but not filled: %v", o.ID, err)
			remaining = append(remaining, o)
			continue
		}
		o.Status = domain.OrderStatusFilled
		fills = append(fills, trade)
	}

	e.pending = remaining
	return fills
}

// ExpirePending marks every still-pending order expired and clears the book.
// Called once when a run completes.
func (e *Engine) ExpirePending(date time.Time) {
	for _, o := range e.pending {
		o.Status = domain.OrderStatusExpired
		e.diags.Add(date, "order %s expired unfilled", o.ID)
	}
	e.pending = nil
}

// ApplyFill applies a fill to cash and the instrument's position and appends
// it to the ledger. The trade is rejected (state untouched) if it would drive
// cash negative or sell more than is held.
func (e *Engine) ApplyFill(t domain.Trade) error {
	gross := t.FillPrice * float64(t.Qty)

	switch t.Side {
	case domain.OrderSideBuy:
		if gross+t.Fee > e.cash {
			return ErrInsufficientCash
		}
		e.cash -= gross + t.Fee
		p, ok := e.positions[t.Symbol]
		if !ok {
			p = &domain.Position{Symbol: t.Symbol}
			e.positions[t.Symbol] = p
		}
		totalCost := p.AvgCost*float64(p.Qty) + gross
		p.Qty += t.Qty
		p.AvgCost = totalCost / float64(p.Qty)

	case domain.OrderSideSell:
		p, ok := e.positions[t.Symbol]
		if !ok || p.Qty < t.Qty {
			return ErrInsufficientShares
		}
		e.cash += gross - t.Fee
		e.realized += (t.FillPrice - p.AvgCost) * float64(t.Qty)
		p.Qty -= t.Qty
		if p.Qty == 0 {
			delete(e.positions, t.Symbol)
		}

	default:
		return ErrUnsupportedOrder
	}

	e.ledger = append(e.ledger, t)
	return nil
}

// ---------------------------------------------------------------------------
// Trigger and pricing rules
// ---------------------------------------------------------------------------

// triggered evaluates an order's condition against the bar's full range, not
// just its close.
func triggered(o *domain.Order, bar domain.Bar) bool {
	switch o.Kind {
	case domain.OrderKindLimit:
		if o.Side == domain.OrderSideBuy {
			return bar.Low <= o.Price
		}
		return bar.High >= o.Price
	case domain.OrderKindStopLoss:
		return bar.Low <= o.Price
	case domain.OrderKindTakeProfit:
		return bar.High >= o.Price
	}
	return false
}

// conditionalFillPrice prices a triggered conditional order. Fills happen at
// the trigger/limit price adjusted for slippage; limit orders are clamped so
// a limit buy never fills above its limit nor a limit sell below it.
func (e *Engine) conditionalFillPrice(o *domain.Order) float64 {
	price := e.execPrice(o.Side, o.Price)
	if o.Kind == domain.OrderKindLimit {
		if o.Side == domain.OrderSideBuy && price > o.Price {
			price = o.Price
		}
		if o.Side == domain.OrderSideSell && price < o.Price {
			price = o.Price
		}
	}
	return price
}

// execPrice shifts the executed price against the trader by the configured
// slippage.
func (e *Engine) execPrice(side domain.OrderSide, price float64) float64 {
	slip := e.trading.SlippageBps / 10000.0
	if side == domain.OrderSideBuy {
		return price * (1 + slip)
	}
	p := price * (1 - slip)
	if p < 0.01 {
		p = 0.01
	}
	return p
}

// fee computes the commission on a gross notional.
func (e *Engine) fee(notional float64) float64 {
	if notional <= 0 {
		return 0
	}
	f := e.trading.FeeRate * notional
	if f < e.trading.MinFee {
		f = e.trading.MinFee
	}
	return f
}

func (e *Engine) newOrderID() string {
	e.nextID++
	return fmt.Sprintf("ord-%06d", e.nextID)
}
