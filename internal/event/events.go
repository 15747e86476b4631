package event

import (
	"github.com/shopspring/decimal"
)

// Event is the unit of work flowing through the sequencer inbox.
type Event interface {
	GetSeq() uint64
	SetSeq(uint64)
	GetType() string
}

// BaseEvent carries the fields every event shares.
type BaseEvent struct {
	Seq uint64 `json:"seq"`
	Ts  int64  `json:"ts"` // Unix milliseconds at the source
}

// GetSeq returns the assigned sequence number.
func (e *BaseEvent) GetSeq() uint64 {
	return e.Seq
}

// SetSeq assigns the sequence number. Only the Emitter calls this.
func (e *BaseEvent) SetSeq(seq uint64) {
	e.Seq = seq
}

// MarketUpdateEvent is a ticker tick from a market data stream.
type MarketUpdateEvent struct {
	BaseEvent
	Symbol   string          `json:"symbol"`
	Price    decimal.Decimal `json:"price"`
	Qty      decimal.Decimal `json:"qty"` // 24h base volume
	Exchange string          `json:"exchange"`
}

func (e *MarketUpdateEvent) GetType() string { return "market_update" }

// OrderUpdateEvent is the broker's cumulative snapshot of one order: how
// much has filled so far in total and at what running average price. The
// fill service turns consecutive snapshots into deltas.
type OrderUpdateEvent struct {
	BaseEvent
	OrderID       string          `json:"order_id"`        // Exchange-side order id
	ClientOrderID string          `json:"client_order_id"` // Our UUID, when known
	Symbol        string          `json:"symbol"`
	Side          string          `json:"side"`
	Status        string          `json:"status"`
	CumQty        decimal.Decimal `json:"cum_qty"`       // Total base qty filled so far
	CumAvgPrice   decimal.Decimal `json:"cum_avg_price"` // Cumulative average fill price
}

func (e *OrderUpdateEvent) GetType() string { return "order_update" }
