package guard

import (
	"log/slog"
	"sync"
	"time"

	"tradeguard/internal/domain"
	"tradeguard/internal/infra"
)

// ShutdownGate coordinates graceful shutdown with order submission.
// The flag is monotonic: once requested it never resets for the life of
// the process. Submissions enter through an atomic check-and-increment,
// so a submission that saw "not shutting down" is guaranteed to be counted
// before any drain wait can observe zero.
type ShutdownGate struct {
	logger  *slog.Logger
	metrics *infra.Metrics

	mu          sync.Mutex
	cond        *sync.Cond
	requested   bool
	reason      string
	requestedAt time.Time
	inflight    int

	nowFn func() time.Time
}

// GateStatus is a read-only view of the gate for logs and state dumps.
type GateStatus struct {
	Requested   bool      `json:"requested"`
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
	Inflight    int       `json:"inflight"`
}

// NewShutdownGate creates a gate. logger may be nil (slog default);
// metrics may be nil (counting disabled).
func NewShutdownGate(logger *slog.Logger, metrics *infra.Metrics) *ShutdownGate {
	if logger == nil {
		logger = slog.Default()
	}
	g := &ShutdownGate{
		logger:  logger.With(slog.String("module", "shutdown_gate")),
		metrics: metrics,
		nowFn:   time.Now,
	}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// RequestShutdown flips the gate. The first reason wins; repeat calls are
// logged and ignored. An empty reason is recorded as "unspecified".
// Safe to call from any goroutine, including signal handlers and workers.
func (g *ShutdownGate) RequestShutdown(reason string) {
	if reason == "" {
		reason = "unspecified"
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.requested {
		g.logger.Debug("Shutdown already requested",
			slog.String("reason", g.reason),
			slog.String("ignored", reason))
		return
	}

	g.requested = true
	g.reason = reason
	g.requestedAt = g.nowFn()
	g.logger.Warn("Shutdown requested",
		slog.String("reason", reason),
		slog.Int("inflight", g.inflight))

	// Wake drain waiters so they re-evaluate with the flag set.
	g.cond.Broadcast()
}

// ShutdownRequested reports whether shutdown has been requested.
func (g *ShutdownGate) ShutdownRequested() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requested
}

// Reason returns the recorded shutdown reason, empty if none yet.
func (g *ShutdownGate) Reason() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reason
}

// InflightCount returns the number of live submissions.
func (g *ShutdownGate) InflightCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inflight
}

// Status returns a consistent snapshot of the gate.
func (g *ShutdownGate) Status() GateStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return GateStatus{
		Requested:   g.requested,
		Reason:      g.reason,
		RequestedAt: g.requestedAt,
		Inflight:    g.inflight,
	}
}

// EnterSubmission registers an order submission with the gate. If shutdown
// has been requested it refuses with a domain.ShutdownError. Otherwise the
// inflight count is incremented in the same critical section as the check,
// and the returned exit func undoes it. The exit func is idempotent and
// meant for defer, so the count also drops on panic unwind:
//
//	exit, err := gate.EnterSubmission("place-order")
//	if err != nil { return err }
//	defer exit()
func (g *ShutdownGate) EnterSubmission(op string) (func(), error) {
	g.mu.Lock()

	if g.requested {
		reason := g.reason
		g.mu.Unlock()
		g.logger.Info("Submission refused",
			slog.String("op", op),
			slog.String("reason", reason))
		g.metrics.IncSubmission("refused")
		return nil, &domain.ShutdownError{Op: op, Reason: reason}
	}

	g.inflight++
	g.metrics.SetInflightSubmissions(g.inflight)
	g.mu.Unlock()

	var once sync.Once
	exit := func() {
		once.Do(func() {
			g.mu.Lock()
			g.inflight--
			g.metrics.SetInflightSubmissions(g.inflight)
			// Every exit wakes waiters; they re-check the count themselves.
			g.cond.Broadcast()
			g.mu.Unlock()
		})
	}
	return exit, nil
}

// WaitForInflightZero blocks until no submissions are inflight or the
// timeout elapses, whichever is first. Returns true when drained. The
// wait is condition-variable based: it wakes on submission exits and on
// the timeout timer, never by polling. Multiple waiters are allowed.
func (g *ShutdownGate) WaitForInflightZero(timeout time.Duration) bool {
	expired := false
	timer := time.AfterFunc(timeout, func() {
		// Taking the same mutex before broadcasting closes the window
		// where the timer could fire between the waiter's check and its
		// Wait, which would otherwise lose the wakeup.
		g.mu.Lock()
		expired = true
		g.cond.Broadcast()
		g.mu.Unlock()
	})
	defer timer.Stop()

	g.mu.Lock()
	defer g.mu.Unlock()

	for g.inflight > 0 && !expired {
		g.cond.Wait()
	}

	drained := g.inflight == 0
	if !drained {
		g.logger.Warn("Drain wait timed out",
			slog.Int("inflight", g.inflight),
			slog.Duration("timeout", timeout))
	}
	return drained
}
