package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order represents a trading order as submitted to the exchange.
// Monetary values are decimals; conversion to exchange strings happens
// at the boundary layer only.
type Order struct {
	ID        string // Client order ID (UUID), assigned by the executor
	Symbol    string
	Side      string          // "BUY", "SELL"
	Type      string          // "LIMIT", "MARKET"
	Price     decimal.Decimal // Limit price. Zero for market orders.
	Qty       decimal.Decimal // Order quantity in base asset.
	Status    string          // "NEW", "PARTIALLY_FILLED", "FILLED", "CANCELED"
	CreatedAt time.Time
}

const (
	SideBuy  = "BUY"
	SideSell = "SELL"

	OrderTypeLimit  = "LIMIT"
	OrderTypeMarket = "MARKET"

	OrderStatusNew             = "NEW"
	OrderStatusPartiallyFilled = "PARTIALLY_FILLED"
	OrderStatusFilled          = "FILLED"
	OrderStatusCanceled        = "CANCELED"
	OrderStatusRejected        = "REJECTED" // Never reached the exchange book
)

// IsOpen checks if the order is still active.
func (o *Order) IsOpen() bool {
	return o.Status == OrderStatusNew || o.Status == OrderStatusPartiallyFilled
}

// Intent is a trade the strategy wants executed. The executor turns an
// accepted Intent into an Order; refused intents never reach the exchange.
type Intent struct {
	Symbol    string
	Side      string          // SideBuy or SideSell
	Type      string          // OrderTypeLimit or OrderTypeMarket
	Price     decimal.Decimal // Ignored for market orders
	Qty       decimal.Decimal
	Requester string // Who is asking (strategy name, operator, ...)
	Purpose   string // Human-readable reason, recorded on the latch
}
