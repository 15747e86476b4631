package app

import (
	"log/slog"

	"tradeguard/internal/event"
	"tradeguard/internal/infra"
	"tradeguard/internal/infra/storage"

	"github.com/prometheus/client_golang/prometheus"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Storage *storage.Storage
	Metrics *infra.Metrics
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, DB)
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("🚀 Bootstrapping TradeGuard...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Metrics registry
	b.Metrics = infra.NewMetrics(prometheus.DefaultRegisterer)

	// 4. Initialize Storage (ledger DB)
	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Ledger database initialized", slog.String("path", cfg.Storage.Path))

	// Surface how the previous run ended; a crash dump may be waiting.
	if reason, err := store.LoadRuntimeValue("last_shutdown_reason"); err == nil && reason != "" {
		slog.Info("Previous run shut down", slog.String("reason", reason))
	}

	// 5. Pre-warm the event pool so the first burst does not allocate
	event.Warmup()

	return nil
}
