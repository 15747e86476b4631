package domain

import (
	"context"
)

// StreamWorker defines the interface for exchange WebSocket connectors
type StreamWorker interface {
	Connect(ctx context.Context) error
	Disconnect()
	IsConnected() bool
}

// OrderPlacer is the exchange surface the executor talks to. Implemented by
// the live REST client and by the paper broker.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, order Order) error
	CancelOrder(ctx context.Context, clientOrderID, symbol string) error
}

// FillStore defines the persistence surface for order and fill records
type FillStore interface {
	SaveOrder(rec *OrderRecord) error
	UpdateOrderStatus(clientOrderID, status string) error
	AppendFill(rec *FillRecord) error
	ListFillsByOrder(orderID string) ([]FillRecord, error)
}
