// Package domain defines the core value types shared across the simulation
// kernel: bars, orders, trades, positions, and equity points.
package domain

import "time"

// OrderSide is the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderKind distinguishes immediately-executed market orders from conditional
// orders that rest until a bar satisfies their trigger.
type OrderKind string

const (
	OrderKindMarket     OrderKind = "market"
	OrderKindLimit      OrderKind = "limit"
	OrderKindStopLoss   OrderKind = "stop_loss"
	OrderKindTakeProfit OrderKind = "take_profit"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusExpired   OrderStatus = "expired"
)

// ActionType is a strategy decision for one instrument on one day.
type ActionType string

const (
	ActionBuy  ActionType = "buy"
	ActionSell ActionType = "sell"
	ActionHold ActionType = "hold"
)

// Bar is one instrument's OHLCV record for a single trading day.
type Bar struct {
	Symbol string
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Order is a request to trade. Price is the trigger or limit price for
// conditional kinds and zero for market orders.
type Order struct {
	ID        string
	Symbol    string
	Side      OrderSide
	Kind      OrderKind
	Price     float64
	Qty       int64
	Status    OrderStatus
	CreatedOn time.Time
}

// Trade is the immutable record of a fill. Fee is always positive; the cash
// effect is FillPrice*Qty plus the fee for buys, minus it for sells.
type Trade struct {
	OrderID   string
	Symbol    string
	Side      OrderSide
	Qty       int64
	FillPrice float64
	Fee       float64
	Date      time.Time
}

// Position is a long holding in one instrument. Qty is never negative; short
// selling is not supported.
type Position struct {
	Symbol  string
	Qty     int64
	AvgCost float64
}

// EquityPoint marks total portfolio value (cash plus holdings at close) on
// one day.
type EquityPoint struct {
	Date  time.Time
	Value float64
}

// Action is one element of a strategy's decision for a day. A zero Kind means
// a market order executed at the day's close; conditional kinds rest as
// pending orders at Price.
type Action struct {
	Type   ActionType
	Symbol string
	Qty    int64
	Kind   OrderKind
	Price  float64
}
