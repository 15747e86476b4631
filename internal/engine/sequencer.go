package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"tradeguard/internal/domain"
	"tradeguard/internal/event"
	"tradeguard/internal/execution"
	"tradeguard/internal/guard"
	"tradeguard/internal/infra"
	"tradeguard/internal/infra/storage"
	"tradeguard/internal/service"
	"tradeguard/internal/strategy"

	"github.com/shopspring/decimal"
)

// Deps wires the sequencer's collaborators. Any of them may be nil; the
// sequencer skips the corresponding step.
type Deps struct {
	Store    *storage.Storage
	Fills    *service.FillService
	Executor *execution.Executor
	Strategy strategy.Strategy
	Gate     *guard.ShutdownGate
	Latch    *guard.MutexLatch
	Metrics  *infra.Metrics

	// OnStateUpdate is called with a copy of the market state after each
	// tick. Used to feed the paper broker and anything else outside the
	// engine that wants prices.
	OnStateUpdate func(*domain.MarketState)
}

// Sequencer is the core single-threaded event processor.
type Sequencer struct {
	inbox   <-chan event.Event
	markets map[string]*domain.MarketState
	nextSeq uint64
	deps    Deps

	runCtx context.Context

	mu sync.RWMutex // Guards markets for external reads (e.g. state dumps)
}

// NewSequencer creates a new sequencer instance consuming the emitter.
func NewSequencer(emit *event.Emitter, deps Deps) *Sequencer {
	return &Sequencer{
		inbox:   emit.Events(),
		markets: make(map[string]*domain.MarketState),
		nextSeq: 1,
		deps:    deps,
		runCtx:  context.Background(),
	}
}

// Run starts the main event loop. This MUST be run in a single goroutine.
func (s *Sequencer) Run(ctx context.Context) {
	slog.Info("Sequencer started (Single-Thread Hotpath)")
	s.runCtx = ctx

	defer func() {
		if r := recover(); r != nil {
			slog.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			s.DumpState("panic_dump.json")
			// Halt after dump. A trading engine with corrupted state is
			// more dangerous stopped late than stopped now.
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Sequencer stopping...")
			return
		case ev := <-s.inbox:
			s.processEvent(ev)
		}
	}
}

func (s *Sequencer) processEvent(ev event.Event) {
	// 1. Sequence Gap Check (Halt Policy)
	if ev.GetSeq() != s.nextSeq {
		panic(fmt.Sprintf("SEQUENCE_GAP_DETECTED: expected %d, got %d", s.nextSeq, ev.GetSeq()))
	}

	// 2. Journal order events before acting on them (WAL-first). Market
	// ticks are not journaled; they are high-rate and re-derivable.
	if s.deps.Store != nil {
		if _, ok := ev.(*event.OrderUpdateEvent); ok {
			if err := s.journal(ev); err != nil {
				panic(fmt.Sprintf("PERSISTENCE_FAILURE: %v", err))
			}
		}
	}

	// 3. Logic Dispatch
	switch e := ev.(type) {
	case *event.MarketUpdateEvent:
		s.handleMarketUpdate(e)
		event.ReleaseMarketUpdateEvent(e)
	case *event.OrderUpdateEvent:
		s.handleOrderUpdate(e)
		event.ReleaseOrderUpdateEvent(e)
	default:
		slog.Warn("Unknown event type", slog.Any("type", ev.GetType()))
	}

	// 4. Increment Sequence
	s.nextSeq++
	s.deps.Metrics.IncEventProcessed()
}

func (s *Sequencer) journal(ev event.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.deps.Store.AppendEvent(&domain.EventRecord{
		Seq:        ev.GetSeq(),
		Type:       ev.GetType(),
		Payload:    string(payload),
		RecordedAt: time.Now(),
	})
}

// ReplayEvent processes an event synchronously without journaling.
// Used to rebuild state from a stored journal; the caller owns the
// events, so nothing is released back to the pool here.
func (s *Sequencer) ReplayEvent(ev event.Event) {
	// Replay must still respect sequence order
	if ev.GetSeq() != s.nextSeq {
		panic(fmt.Sprintf("REPLAY_GAP_DETECTED: expected %d, got %d", s.nextSeq, ev.GetSeq()))
	}

	switch e := ev.(type) {
	case *event.MarketUpdateEvent:
		s.handleMarketUpdate(e)
	case *event.OrderUpdateEvent:
		s.handleOrderUpdate(e)
	default:
		slog.Warn("Unknown event type in replay", slog.Any("type", ev.GetType()))
	}

	s.nextSeq++
}

func (s *Sequencer) handleMarketUpdate(e *event.MarketUpdateEvent) {
	s.mu.Lock()
	state, ok := s.markets[e.Symbol]
	if !ok {
		state = &domain.MarketState{Symbol: e.Symbol}
		s.markets[e.Symbol] = state
	}
	state.Price = e.Price
	state.Volume = e.Qty
	state.LastUpdate = e.Ts
	snapshot := *state
	s.mu.Unlock()

	if s.deps.OnStateUpdate != nil {
		s.deps.OnStateUpdate(&snapshot)
	}

	// Invoke Strategy
	if s.deps.Strategy != nil {
		intents := s.deps.Strategy.OnMarketUpdate(snapshot)
		for _, intent := range intents {
			s.submitIntent(intent)
		}
	}
}

// submitIntent hands one intent to the executor. Guard refusals are
// normal operation, not faults: a shutdown refusal means the drain has
// started, an in-flight skip means the latch is doing its job.
func (s *Sequencer) submitIntent(intent domain.Intent) {
	if s.deps.Executor == nil {
		return
	}

	oid, err := s.deps.Executor.SubmitIntent(s.runCtx, intent)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrShutdownRequested):
			slog.Info("Intent refused, shutdown in progress",
				slog.String("symbol", intent.Symbol), slog.String("side", intent.Side))
		case errors.Is(err, domain.ErrIntentInFlight):
			slog.Debug("Intent skipped, emission already in flight",
				slog.String("symbol", intent.Symbol), slog.String("requester", intent.Requester))
		default:
			slog.Error("Intent submission failed",
				slog.String("symbol", intent.Symbol), slog.Any("error", err))
		}
		return
	}

	slog.Info("STRATEGY_INTENT_SUBMITTED",
		slog.String("oid", oid),
		slog.String("symbol", intent.Symbol),
		slog.String("side", intent.Side),
		slog.String("purpose", intent.Purpose))
}

func (s *Sequencer) handleOrderUpdate(e *event.OrderUpdateEvent) {
	if s.deps.Fills == nil {
		return
	}

	s.deps.Fills.HandleOrderUpdate(e)

	// The book must stay internally consistent after every snapshot.
	// Deltas are clamped on the way in, so a violation here means the
	// accounting itself is broken and the halt policy applies.
	if err := s.deps.Fills.VerifyPositions(); err != nil {
		panic(fmt.Sprintf("POSITION_INVARIANT_VIOLATION: %v", err))
	}
}

// GetMarketState returns a snapshot of the market state (external read).
func (s *Sequencer) GetMarketState(symbol string) (domain.MarketState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.markets[symbol]
	if !ok {
		return domain.MarketState{}, false
	}
	return *state, true // Return copy
}

// DumpState writes the entire internal state to a file (for post-mortem).
func (s *Sequencer) DumpState(filename string) {
	slog.Info("Dumping internal state...", slog.String("file", filename))

	s.mu.RLock()
	markets := make(map[string]domain.MarketState, len(s.markets))
	prices := make(map[string]decimal.Decimal, len(s.markets))
	for sym, st := range s.markets {
		markets[sym] = *st
		prices[sym] = st.Price
	}
	s.mu.RUnlock()

	data := struct {
		NextSeq      uint64                        `json:"next_seq"`
		Markets      map[string]domain.MarketState `json:"markets"`
		Positions    map[string]domain.Position    `json:"positions,omitempty"`
		OpenNotional string                        `json:"open_notional,omitempty"`
		Gate         *guard.GateStatus             `json:"shutdown_gate,omitempty"`
		Latch        *guard.LatchSnapshot          `json:"intent_latch,omitempty"`
		LatchHeld    bool                          `json:"intent_latch_held"`
	}{
		NextSeq: s.nextSeq,
		Markets: markets,
	}

	if s.deps.Fills != nil {
		data.Positions = s.deps.Fills.Positions()
		data.OpenNotional = s.deps.Fills.OpenNotional(prices).String()
	}
	if s.deps.Gate != nil {
		st := s.deps.Gate.Status()
		data.Gate = &st
	}
	if s.deps.Latch != nil {
		snap, held := s.deps.Latch.Snapshot()
		data.Latch = &snap
		data.LatchHeld = held
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		slog.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	if err := os.WriteFile(filename, b, 0644); err != nil {
		slog.Error("Failed to write state dump", slog.Any("error", err))
	}
}
