package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tradeguard/internal/domain"
	"tradeguard/internal/event"

	"github.com/shopspring/decimal"
)

// PaperBroker simulates the exchange for dry runs. Placed orders fill
// against the last seen market price and come back as the same cumulative
// order snapshots the live order stream pushes, so the reconciliation
// pipeline runs unchanged in paper mode.
type PaperBroker struct {
	emit     *event.Emitter
	partials int           // cumulative snapshots emitted per order
	latency  time.Duration // delay before each snapshot

	mu     sync.RWMutex
	prices map[string]decimal.Decimal
	logger *slog.Logger
}

// NewPaperBroker creates a paper broker emitting into the given inbox.
// partials below 1 is clamped to 1; two is the useful default because it
// exercises the partial-fill path on every order.
func NewPaperBroker(emit *event.Emitter, partials int, latency time.Duration) *PaperBroker {
	if partials < 1 {
		partials = 1
	}
	return &PaperBroker{
		emit:     emit,
		partials: partials,
		latency:  latency,
		prices:   make(map[string]decimal.Decimal),
		logger:   slog.Default().With("module", "paper_broker"),
	}
}

// UpdatePrice records the latest market price for a symbol. Market orders
// fill at this price.
func (p *PaperBroker) UpdatePrice(symbol string, price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[symbol] = price
}

// PlaceOrder accepts the order and emits its fills asynchronously, the way
// a real exchange acks first and streams fills after.
func (p *PaperBroker) PlaceOrder(ctx context.Context, order domain.Order) error {
	fillPrice := order.Price
	if order.Type == domain.OrderTypeMarket {
		p.mu.RLock()
		last, ok := p.prices[order.Symbol]
		p.mu.RUnlock()
		if !ok {
			return fmt.Errorf("%w: no market price for %s yet", domain.ErrOrderRejected, order.Symbol)
		}
		fillPrice = last
	}
	if !fillPrice.IsPositive() || !order.Qty.IsPositive() {
		return fmt.Errorf("%w: non-positive price or qty", domain.ErrOrderRejected)
	}

	p.logger.Info("Paper order accepted",
		slog.String("oid", order.ID),
		slog.String("symbol", order.Symbol),
		slog.String("side", order.Side),
		slog.String("qty", order.Qty.String()),
		slog.String("price", fillPrice.String()))

	go p.emitFills(order, fillPrice)
	return nil
}

// emitFills pushes cumulative snapshots for the order. Sends block rather
// than drop; paper fills have no later snapshot to heal a gap from the
// exchange side once the order is fully emitted.
func (p *PaperBroker) emitFills(order domain.Order, fillPrice decimal.Decimal) {
	steps := decimal.NewFromInt(int64(p.partials))
	for i := 1; i <= p.partials; i++ {
		if p.latency > 0 {
			time.Sleep(p.latency)
		}

		cumQty := order.Qty.Mul(decimal.NewFromInt(int64(i))).Div(steps)
		status := domain.OrderStatusPartiallyFilled
		if i == p.partials {
			cumQty = order.Qty // exact, no division residue on the last step
			status = domain.OrderStatusFilled
		}

		ev := event.AcquireOrderUpdateEvent()
		ev.Ts = time.Now().UnixMilli()
		ev.OrderID = "paper-" + order.ID
		ev.ClientOrderID = order.ID
		ev.Symbol = order.Symbol
		ev.Side = order.Side
		ev.Status = status
		ev.CumQty = cumQty
		ev.CumAvgPrice = fillPrice

		p.emit.EmitWait(ev)
	}
}

// CancelOrder is a no-op: paper orders fill as soon as they are placed.
func (p *PaperBroker) CancelOrder(ctx context.Context, clientOrderID, symbol string) error {
	p.logger.Info("Paper cancel ignored, order already filled", slog.String("oid", clientOrderID))
	return nil
}
