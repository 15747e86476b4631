package execution

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"tradeguard/internal/domain"
	"tradeguard/internal/event"
	"tradeguard/internal/guard"
	"tradeguard/internal/service"

	"github.com/shopspring/decimal"
)

type fakeStore struct {
	orders    map[string]*domain.OrderRecord
	fills     map[string][]domain.FillRecord
	saveErr   error
	appendErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders: make(map[string]*domain.OrderRecord),
		fills:  make(map[string][]domain.FillRecord),
	}
}

func (f *fakeStore) SaveOrder(rec *domain.OrderRecord) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.orders[rec.ClientOrderID] = rec
	return nil
}

func (f *fakeStore) UpdateOrderStatus(clientOrderID, status string) error {
	if rec, ok := f.orders[clientOrderID]; ok {
		rec.Status = status
	}
	return nil
}

func (f *fakeStore) AppendFill(rec *domain.FillRecord) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.fills[rec.OrderID] = append(f.fills[rec.OrderID], *rec)
	return nil
}

func (f *fakeStore) ListFillsByOrder(orderID string) ([]domain.FillRecord, error) {
	return f.fills[orderID], nil
}

type fakeBroker struct {
	placed   []domain.Order
	canceled []string
	placeErr error
}

func (f *fakeBroker) PlaceOrder(ctx context.Context, order domain.Order) error {
	if f.placeErr != nil {
		return f.placeErr
	}
	f.placed = append(f.placed, order)
	return nil
}

func (f *fakeBroker) CancelOrder(ctx context.Context, clientOrderID, symbol string) error {
	f.canceled = append(f.canceled, clientOrderID)
	return nil
}

func testIntent() domain.Intent {
	return domain.Intent{
		Symbol:    "BTCUSDT",
		Side:      domain.SideBuy,
		Type:      domain.OrderTypeLimit,
		Price:     decimal.NewFromInt(50000),
		Qty:       decimal.RequireFromString("0.1"),
		Requester: "strategy-a",
		Purpose:   "entry signal",
	}
}

func newTestExecutor(broker domain.OrderPlacer, store domain.FillStore) (*Executor, *guard.ShutdownGate, *guard.MutexLatch) {
	gate := guard.NewShutdownGate(nil, nil)
	latch := guard.NewMutexLatch("intent", nil, nil)
	return NewExecutor(broker, store, gate, latch, time.Second, nil), gate, latch
}

func TestExecutor_SubmitHappyPath(t *testing.T) {
	store := newFakeStore()
	broker := &fakeBroker{}
	exec, _, latch := newTestExecutor(broker, store)

	oid, err := exec.SubmitIntent(context.Background(), testIntent())
	if err != nil {
		t.Fatalf("SubmitIntent failed: %v", err)
	}
	if oid == "" {
		t.Fatal("empty order id")
	}

	if len(broker.placed) != 1 || broker.placed[0].ID != oid {
		t.Errorf("broker got %d orders", len(broker.placed))
	}
	rec, ok := store.orders[oid]
	if !ok {
		t.Fatal("order not in ledger")
	}
	if rec.Status != domain.OrderStatusNew || rec.Requester != "strategy-a" {
		t.Errorf("ledger record = %+v", rec)
	}

	// The latch must be free again after the submission completes
	if h := latch.TryAcquire("check", time.Second, ""); h == nil {
		t.Error("latch still held after submission")
	} else {
		h.Release()
	}
}

func TestExecutor_RefusedAfterShutdown(t *testing.T) {
	store := newFakeStore()
	broker := &fakeBroker{}
	exec, gate, _ := newTestExecutor(broker, store)

	gate.RequestShutdown("test shutdown")

	_, err := exec.SubmitIntent(context.Background(), testIntent())
	if !errors.Is(err, domain.ErrShutdownRequested) {
		t.Fatalf("expected shutdown refusal, got %v", err)
	}
	if len(broker.placed) != 0 {
		t.Error("refused intent must not reach the broker")
	}
	if len(store.orders) != 0 {
		t.Error("refused intent must not reach the ledger")
	}
}

func TestExecutor_SkippedWhileIntentInFlight(t *testing.T) {
	store := newFakeStore()
	broker := &fakeBroker{}
	exec, _, latch := newTestExecutor(broker, store)

	h := latch.TryAcquire("other-strategy", time.Minute, "slow emission")
	if h == nil {
		t.Fatal("setup: could not take latch")
	}

	_, err := exec.SubmitIntent(context.Background(), testIntent())
	if !errors.Is(err, domain.ErrIntentInFlight) {
		t.Fatalf("expected ErrIntentInFlight, got %v", err)
	}
	if len(broker.placed) != 0 {
		t.Error("skipped intent must not reach the broker")
	}

	h.Release()
	if _, err := exec.SubmitIntent(context.Background(), testIntent()); err != nil {
		t.Errorf("submission after release failed: %v", err)
	}
}

func TestExecutor_LedgerFailureStopsPlacement(t *testing.T) {
	store := newFakeStore()
	store.saveErr = fmt.Errorf("disk full")
	broker := &fakeBroker{}
	exec, _, _ := newTestExecutor(broker, store)

	if _, err := exec.SubmitIntent(context.Background(), testIntent()); err == nil {
		t.Fatal("expected error on ledger failure")
	}
	if len(broker.placed) != 0 {
		t.Error("an order the ledger does not know must never be placed")
	}
}

func TestExecutor_BrokerFailureMarksRejected(t *testing.T) {
	store := newFakeStore()
	broker := &fakeBroker{placeErr: fmt.Errorf("exchange says no")}
	exec, _, _ := newTestExecutor(broker, store)

	_, err := exec.SubmitIntent(context.Background(), testIntent())
	if err == nil {
		t.Fatal("expected placement error")
	}

	if len(store.orders) != 1 {
		t.Fatalf("ledger rows = %d, want 1", len(store.orders))
	}
	for _, rec := range store.orders {
		if rec.Status != domain.OrderStatusRejected {
			t.Errorf("status = %s, want REJECTED", rec.Status)
		}
	}
}

func TestExecutor_CancelGateGuarded(t *testing.T) {
	store := newFakeStore()
	broker := &fakeBroker{}
	exec, gate, _ := newTestExecutor(broker, store)

	if err := exec.Cancel(context.Background(), "oid-1", "BTCUSDT"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if len(broker.canceled) != 1 {
		t.Errorf("cancels = %d, want 1", len(broker.canceled))
	}

	gate.RequestShutdown("drain")
	err := exec.Cancel(context.Background(), "oid-2", "BTCUSDT")
	if !errors.Is(err, domain.ErrShutdownRequested) {
		t.Errorf("expected shutdown refusal, got %v", err)
	}
}

// TestExecutor_PaperPipeline runs an intent through the guards, the paper
// broker and the fill pipeline: cumulative snapshots in, reconciled deltas
// and a position out.
func TestExecutor_PaperPipeline(t *testing.T) {
	em := event.NewEmitter(8)
	paper := NewPaperBroker(em, 2, 0)
	paper.UpdatePrice("BTCUSDT", decimal.NewFromInt(50000))

	store := newFakeStore()
	exec, _, _ := newTestExecutor(paper, store)
	fillSvc := service.NewFillService(store, nil)

	intent := testIntent()
	intent.Type = domain.OrderTypeMarket
	oid, err := exec.SubmitIntent(context.Background(), intent)
	if err != nil {
		t.Fatalf("SubmitIntent failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		ev := readEvent(t, em.Events()).(*event.OrderUpdateEvent)
		fillSvc.HandleOrderUpdate(ev)
		event.ReleaseOrderUpdateEvent(ev)
	}

	recs := store.fills[oid]
	if len(recs) != 2 {
		t.Fatalf("fill rows = %d, want 2", len(recs))
	}
	for _, rec := range recs {
		if rec.Qty != "0.05" {
			t.Errorf("delta qty = %s, want 0.05", rec.Qty)
		}
	}

	pos := fillSvc.Positions()["BTCUSDT"]
	if !pos.Qty.Equal(decimal.RequireFromString("0.1")) {
		t.Errorf("position qty = %s, want 0.1", pos.Qty)
	}
	if !pos.AvgEntry.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("avg entry = %s, want 50000", pos.AvgEntry)
	}
	if store.orders[oid].Status != domain.OrderStatusFilled {
		t.Errorf("ledger status = %s, want FILLED", store.orders[oid].Status)
	}
}
