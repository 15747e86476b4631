package service

import (
	"log/slog"
	"time"

	"tradeguard/internal/domain"
	"tradeguard/internal/event"
	"tradeguard/internal/fills"
	"tradeguard/internal/infra"

	"github.com/shopspring/decimal"
)

// FillService turns cumulative order snapshots into ledger fills and
// position updates. It runs on the sequencer thread and therefore owns
// the position book without locking.
type FillService struct {
	store   domain.FillStore
	book    *domain.PositionBook
	metrics *infra.Metrics
	logger  *slog.Logger
}

// NewFillService creates a new FillService instance
func NewFillService(store domain.FillStore, metrics *infra.Metrics) *FillService {
	return &FillService{
		store:   store,
		book:    domain.NewPositionBook(),
		metrics: metrics,
		logger:  slog.Default().With("module", "fill_service"),
	}
}

// HandleOrderUpdate folds one cumulative order snapshot into the ledger.
// The ledger rows for this order are the prior history; whatever the
// snapshot adds beyond them becomes a new fill row and a book update.
func (s *FillService) HandleOrderUpdate(ev *event.OrderUpdateEvent) {
	orderID := orderKey(ev)
	if orderID == "" {
		s.logger.Warn("Order update without any order id, skipping")
		return
	}

	history, err := s.store.ListFillsByOrder(orderID)
	if err != nil {
		// Without trustworthy history a delta would be a guess. Skipping
		// loses nothing: the next snapshot still carries the running totals.
		s.logger.Error("Failed to read fill history, skipping snapshot",
			slog.String("order_id", orderID),
			slog.Any("error", err))
		return
	}

	if ev.Status != "" {
		if err := s.store.UpdateOrderStatus(orderID, ev.Status); err != nil {
			s.logger.Warn("Failed to update order status",
				slog.String("order_id", orderID),
				slog.Any("error", err))
		}
	}

	delta := fills.DeltaFromCumulative(ev.CumQty, ev.CumAvgPrice, toPrior(history))
	if delta.IsZero() {
		s.metrics.IncFillNoop()
		s.logger.Debug("Snapshot carried no new fill",
			slog.String("order_id", orderID),
			slog.String("cum_qty", ev.CumQty.String()))
		return
	}

	rec := &domain.FillRecord{
		OrderID:     orderID,
		Symbol:      ev.Symbol,
		Side:        ev.Side,
		Qty:         delta.Qty.String(),
		Price:       delta.Price.String(),
		Notional:    delta.Notional.String(),
		CumQty:      delta.CumQty.String(),
		CumAvgPrice: delta.CumAvgPrice.String(),
		RecordedAt:  time.Now(),
	}
	if err := s.store.AppendFill(rec); err != nil {
		// The book follows the ledger. An unpersisted fill is not applied;
		// the next snapshot re-derives it against the unchanged history.
		s.logger.Error("Failed to persist fill",
			slog.String("order_id", orderID),
			slog.Any("error", err))
		return
	}

	s.applyToBook(ev, delta)
	s.metrics.IncFillRecorded()
	s.logger.Info("Fill recorded",
		slog.String("order_id", orderID),
		slog.String("symbol", ev.Symbol),
		slog.String("side", ev.Side),
		slog.String("qty", delta.Qty.String()),
		slog.String("price", delta.Price.String()),
		slog.String("cum_qty", delta.CumQty.String()))
}

func (s *FillService) applyToBook(ev *event.OrderUpdateEvent, delta fills.Delta) {
	pos := s.book.Get(ev.Symbol)
	switch ev.Side {
	case domain.SideBuy:
		pos.ApplyBuy(delta.Qty, delta.Price, ev.Seq)
	case domain.SideSell:
		if clamped := pos.ApplySell(delta.Qty, delta.Price, ev.Seq); clamped {
			s.logger.Error("Sell fill exceeded held quantity, clamped",
				slog.String("symbol", ev.Symbol),
				slog.String("qty", delta.Qty.String()))
		}
	default:
		s.logger.Warn("Unknown fill side, position not updated",
			slog.String("order_id", orderKey(ev)),
			slog.String("side", ev.Side))
	}
}

// Positions returns a copy of the current position book.
func (s *FillService) Positions() map[string]domain.Position {
	return s.book.Snapshot()
}

// VerifyPositions checks the book's invariants.
func (s *FillService) VerifyPositions() error {
	return s.book.VerifyAll()
}

// OpenNotional values the book against the given prices.
func (s *FillService) OpenNotional(prices map[string]decimal.Decimal) decimal.Decimal {
	return s.book.TotalNotional(prices)
}

// orderKey prefers our client order id; exchange-initiated updates that
// never carried one fall back to the exchange id.
func orderKey(ev *event.OrderUpdateEvent) string {
	if ev.ClientOrderID != "" {
		return ev.ClientOrderID
	}
	return ev.OrderID
}

func toPrior(history []domain.FillRecord) []fills.PriorFill {
	prior := make([]fills.PriorFill, 0, len(history))
	for _, rec := range history {
		prior = append(prior, fills.PriorFill{Qty: rec.Qty, Price: rec.Price})
	}
	return prior
}
