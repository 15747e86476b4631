package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradeguard/internal/app"
	"tradeguard/internal/domain"
	"tradeguard/internal/engine"
	"tradeguard/internal/event"
	"tradeguard/internal/execution"
	"tradeguard/internal/guard"
	"tradeguard/internal/infra/bitget"
	"tradeguard/internal/infra/notify"
	"tradeguard/internal/service"
	"tradeguard/internal/strategy"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// Secrets may live in .env during development
	_ = godotenv.Load()

	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize("configs/config.yaml"); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	cfg := bootstrap.Config
	store := bootstrap.Storage
	metrics := bootstrap.Metrics

	// 3. Metrics listener
	if cfg.Metrics.Addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			slog.Info("✅ Metrics listener started", slog.String("addr", cfg.Metrics.Addr))
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				slog.Error("Metrics listener failed", slog.Any("error", err))
			}
		}()
	}

	// 4. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Safety core: gate and latch guard every order submission
	gate := guard.NewShutdownGate(slog.Default(), metrics)
	latch := guard.NewMutexLatch("order-intent", slog.Default(), metrics)
	notifier := notify.NewNotifier(cfg.Notify.WebhookURL,
		time.Duration(cfg.Notify.TimeoutSec)*time.Second, slog.Default())

	// A stream that escalates (auth failure, exhausted reconnect budget)
	// takes the whole agent down with it. Trading blind is not an option.
	onFatal := func(err error) {
		gate.RequestShutdown("stream fatal: " + err.Error())
		notifier.Notify(context.Background(), "stream_fatal", map[string]any{"error": err.Error()})
		stop()
	}

	// 6. Event plumbing: one emitter feeds the single-threaded sequencer
	em := event.NewEmitter(1024)

	// 7. Broker selection
	var broker domain.OrderPlacer
	var paper *execution.PaperBroker
	var client *bitget.Client
	if cfg.Trading.DryRun {
		paper = execution.NewPaperBroker(em, 2, 50*time.Millisecond)
		broker = paper
		slog.Info("📝 Dry run: paper broker active, no real orders leave this process")
	} else {
		client = bitget.NewClient(cfg)
		broker = client
	}

	// 8. Services and strategy
	fillSvc := service.NewFillService(store, metrics)
	intentTTL := time.Duration(cfg.Safety.IntentTTLMS) * time.Millisecond
	executor := execution.NewExecutor(broker, store, gate, latch, intentTTL, metrics)

	// Example Strategy: SMA Cross (3, 5) on BTC
	strat := strategy.NewSMACrossStrategy("BTC", 3, 5, decimal.RequireFromString("0.001"))

	var onState func(*domain.MarketState)
	if paper != nil {
		// The paper broker fills market orders at the last seen price
		onState = func(state *domain.MarketState) {
			paper.UpdatePrice(state.Symbol, state.Price)
		}
	}

	seq := engine.NewSequencer(em, engine.Deps{
		Store:         store,
		Fills:         fillSvc,
		Executor:      executor,
		Strategy:      strat,
		Gate:          gate,
		Latch:         latch,
		Metrics:       metrics,
		OnStateUpdate: onState,
	})

	// Start Sequencer in its own goroutine (The Hotpath Loop)
	go seq.Run(ctx)
	slog.InfoContext(ctx, "✅ Sequencer (Hotpath) started")

	// 9. Market data stream
	ticker := bitget.NewTickerWorker(cfg, em, metrics, onFatal)
	if err := ticker.Connect(ctx); err != nil {
		slog.Error("Failed to start ticker stream", slog.Any("error", err))
	}
	defer ticker.Disconnect()
	slog.InfoContext(ctx, "✅ TickerWorker started", slog.Int("symbols", len(cfg.API.Bitget.Symbols)))

	// 10. Private order stream and equity poller need real credentials
	if !cfg.Trading.DryRun {
		orders := bitget.NewOrderWorker(cfg, client.Signer(), em, metrics, onFatal)
		if err := orders.Connect(ctx); err != nil {
			slog.Error("Failed to start order stream", slog.Any("error", err))
		}
		defer orders.Disconnect()
		slog.InfoContext(ctx, "✅ OrderWorker started")

		poller := bitget.NewEquityPoller(client, "USDT", cfg.API.Equity.PollIntervalSec, metrics, nil)
		if err := poller.Start(ctx); err != nil {
			slog.Warn("Equity poller did not start cleanly", slog.Any("error", err))
		}
		defer poller.Stop()
		slog.InfoContext(ctx, "✅ EquityPoller started")
	}

	slog.InfoContext(ctx, "✨ TradeGuard fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal (or a fatal stream escalation)
	<-ctx.Done()

	slog.Info("👋 Shutting down gracefully...")
	if !gate.ShutdownRequested() {
		gate.RequestShutdown("signal received")
	}

	// Let in-flight submissions finish before the workers are torn down.
	drain := time.Duration(cfg.Safety.DrainTimeoutSec) * time.Second
	if !gate.WaitForInflightZero(drain) {
		slog.Error("Drain timed out with submissions still in flight",
			slog.Int("inflight", gate.InflightCount()))
		seq.DumpState("drain_timeout_dump.json")
		notifier.Notify(context.Background(), "drain_timeout",
			map[string]any{"inflight": gate.InflightCount(), "reason": gate.Reason()})
	}

	if err := store.SaveRuntimeValue("last_shutdown_reason", gate.Reason()); err != nil {
		slog.Warn("Failed to record shutdown reason", slog.Any("error", err))
	}
}
