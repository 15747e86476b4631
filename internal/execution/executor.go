// Package execution is the only path to the exchange. Every trade intent
// passes the shutdown gate and the intent latch here; nothing else in the
// process is allowed to place orders.
package execution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tradeguard/internal/domain"
	"tradeguard/internal/guard"
	"tradeguard/internal/infra"

	"github.com/google/uuid"
)

// Executor turns accepted intents into exchange orders.
type Executor struct {
	broker  domain.OrderPlacer
	store   domain.FillStore
	gate    *guard.ShutdownGate
	latch   *guard.MutexLatch
	ttl     time.Duration
	metrics *infra.Metrics
	logger  *slog.Logger
}

// NewExecutor creates an executor over the given broker and guards.
func NewExecutor(broker domain.OrderPlacer, store domain.FillStore, gate *guard.ShutdownGate, latch *guard.MutexLatch, ttl time.Duration, metrics *infra.Metrics) *Executor {
	return &Executor{
		broker:  broker,
		store:   store,
		gate:    gate,
		latch:   latch,
		ttl:     ttl,
		metrics: metrics,
		logger:  slog.Default().With("module", "executor"),
	}
}

// SubmitIntent places one order for the intent. The order of checks is
// fixed: gate first (a refused submission must never touch the latch),
// then latch, then ledger, then exchange. Returns the client order id.
func (e *Executor) SubmitIntent(ctx context.Context, intent domain.Intent) (string, error) {
	exit, err := e.gate.EnterSubmission("place-order")
	if err != nil {
		return "", err
	}
	defer exit()

	handle := e.latch.TryAcquire(intent.Requester, e.ttl, intent.Purpose)
	if handle == nil {
		e.metrics.IncSubmission("skipped")
		return "", domain.ErrIntentInFlight
	}
	defer handle.Release()

	order := domain.Order{
		ID:        uuid.New().String(),
		Symbol:    intent.Symbol,
		Side:      intent.Side,
		Type:      intent.Type,
		Price:     intent.Price,
		Qty:       intent.Qty,
		Status:    domain.OrderStatusNew,
		CreatedAt: time.Now(),
	}

	// Ledger first. An order the exchange knows but the ledger does not is
	// unrecoverable; the reverse costs one missed trade.
	rec := &domain.OrderRecord{
		ClientOrderID: order.ID,
		Symbol:        order.Symbol,
		Side:          order.Side,
		Type:          order.Type,
		Price:         order.Price.String(),
		Qty:           order.Qty.String(),
		Status:        order.Status,
		Requester:     intent.Requester,
		Purpose:       intent.Purpose,
		SubmittedAt:   order.CreatedAt,
	}
	if err := e.store.SaveOrder(rec); err != nil {
		e.metrics.IncSubmission("failed")
		return "", fmt.Errorf("order not submitted, ledger write failed: %w", err)
	}

	if err := e.broker.PlaceOrder(ctx, order); err != nil {
		e.metrics.IncSubmission("failed")
		if uerr := e.store.UpdateOrderStatus(order.ID, domain.OrderStatusRejected); uerr != nil {
			e.logger.Warn("Failed to mark order rejected",
				slog.String("oid", order.ID), slog.Any("error", uerr))
		}
		return "", fmt.Errorf("place order: %w", err)
	}

	e.metrics.IncSubmission("submitted")
	e.logger.Info("Intent submitted",
		slog.String("oid", order.ID),
		slog.String("symbol", order.Symbol),
		slog.String("side", order.Side),
		slog.String("qty", order.Qty.String()),
		slog.String("requester", intent.Requester))
	return order.ID, nil
}

// Cancel withdraws an open order. Cancels pass the gate (they count as
// inflight work for the drain) but not the latch: only new exposure is
// latched.
func (e *Executor) Cancel(ctx context.Context, clientOrderID, symbol string) error {
	exit, err := e.gate.EnterSubmission("cancel-order")
	if err != nil {
		return err
	}
	defer exit()

	if err := e.broker.CancelOrder(ctx, clientOrderID, symbol); err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}

	e.logger.Info("Cancel submitted", slog.String("oid", clientOrderID), slog.String("symbol", symbol))
	return nil
}
