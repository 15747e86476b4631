package domain

import (
	"time"
)

// OrderRecord is the persisted form of a submitted order.
// Decimal values are stored as strings; SQLite floats would lose precision.
type OrderRecord struct {
	ClientOrderID string    `gorm:"primaryKey" json:"client_order_id"`
	Symbol        string    `gorm:"index" json:"symbol"`
	Side          string    `json:"side"`
	Type          string    `json:"type"`
	Price         string    `json:"price"`
	Qty           string    `json:"qty"`
	Status        string    `json:"status"`
	Requester     string    `json:"requester"`
	Purpose       string    `json:"purpose"`
	SubmittedAt   time.Time `json:"submitted_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FillRecord is one reconciled fill delta. Rows for an order, in insertion
// order, are the prior history the next reconciliation folds over.
type FillRecord struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID     string    `gorm:"index" json:"order_id"`
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"`
	Qty         string    `json:"qty"`   // Delta quantity
	Price       string    `json:"price"` // Delta average price
	Notional    string    `json:"notional"`
	CumQty      string    `json:"cum_qty"`       // Broker cumulative at record time
	CumAvgPrice string    `json:"cum_avg_price"` // Broker cumulative average
	RecordedAt  time.Time `json:"recorded_at"`
}

// EventRecord journals order-stream events before they are processed
type EventRecord struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Seq        uint64    `gorm:"index" json:"seq"`
	Type       string    `json:"type"`
	Payload    string    `json:"payload"` // JSON snapshot of the event
	RecordedAt time.Time `json:"recorded_at"`
}

// RuntimeKV stores small runtime facts across restarts (Key-Value),
// e.g. the reason of the last shutdown for post-mortem reading.
type RuntimeKV struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
