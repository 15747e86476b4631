package bitget

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tradeguard/internal/infra"

	"github.com/shopspring/decimal"
)

// EquityPoller periodically fetches the spot account balances and tracks
// the quote-currency equity (available plus frozen). The gauge feeds the
// metrics endpoint; the callback lets the engine react to balance changes.
type EquityPoller struct {
	client       *Client
	quoteCoin    string
	onUpdate     func(decimal.Decimal)
	equity       decimal.Decimal
	mu           sync.RWMutex
	pollInterval time.Duration
	metrics      *infra.Metrics
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewEquityPoller creates an equity poller over the REST client.
func NewEquityPoller(client *Client, quoteCoin string, pollIntervalSec int, metrics *infra.Metrics, onUpdate func(decimal.Decimal)) *EquityPoller {
	interval := 60 * time.Second // Default: 1 minute
	if pollIntervalSec > 0 {
		interval = time.Duration(pollIntervalSec) * time.Second
	}
	if quoteCoin == "" {
		quoteCoin = "USDT"
	}
	return &EquityPoller{
		client:       client,
		quoteCoin:    quoteCoin,
		onUpdate:     onUpdate,
		equity:       decimal.Zero,
		pollInterval: interval,
		metrics:      metrics,
	}
}

// Start fetches once immediately, then polls until Stop or context end.
func (p *EquityPoller) Start(ctx context.Context) error {
	ctx, p.cancel = context.WithCancel(ctx)

	if err := p.fetchEquity(ctx); err != nil {
		slog.Warn("Initial equity fetch failed", slog.Any("error", err))
		// Continue anyway - will retry on next tick
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Equity polling panic recovered", slog.Any("panic", r))
			}
		}()

		ticker := time.NewTicker(p.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("Equity polling stopped")
				return
			case <-ticker.C:
				if err := p.fetchEquity(ctx); err != nil {
					slog.Warn("Equity fetch failed", slog.Any("error", err))
				}
			}
		}
	}()

	return nil
}

// fetchEquity fetches balances with retry logic
func (p *EquityPoller) fetchEquity(ctx context.Context) error {
	var lastErr error
	for i := 0; i < 3; i++ {
		if i > 0 {
			// Exponential backoff: 1s, 2s, 4s
			delay := time.Duration(1<<uint(i-1)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := p.doFetch(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		slog.Warn("Equity fetch attempt failed", slog.Int("attempt", i+1), slog.Any("error", err))
	}
	return lastErr
}

func (p *EquityPoller) doFetch(ctx context.Context) error {
	assets, err := p.client.GetAssets(ctx)
	if err != nil {
		return err
	}

	newEquity := decimal.Zero
	for _, a := range assets {
		if a.Coin != p.quoteCoin {
			continue
		}
		if avail, err := decimal.NewFromString(a.Available); err == nil {
			newEquity = newEquity.Add(avail)
		}
		if frozen, err := decimal.NewFromString(a.Frozen); err == nil {
			newEquity = newEquity.Add(frozen)
		}
	}

	p.mu.Lock()
	oldEquity := p.equity
	p.equity = newEquity
	p.mu.Unlock()

	f, _ := newEquity.Float64()
	p.metrics.SetEquityQuote(f)

	if !oldEquity.Equal(newEquity) {
		slog.Info("Equity updated",
			slog.String("equity", newEquity.String()),
			slog.String("old_equity", oldEquity.String()),
			slog.String("coin", p.quoteCoin),
		)
		if p.onUpdate != nil {
			p.onUpdate(newEquity)
		}
	}

	return nil
}

// Stop stops the polling
func (p *EquityPoller) Stop() {
	if p.cancel != nil {
		p.cancel()
		p.wg.Wait()
	}
}

// Equity returns the last observed quote-currency equity.
func (p *EquityPoller) Equity() decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.equity
}
