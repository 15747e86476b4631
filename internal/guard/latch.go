// Package guard holds the in-process safety primitives the agent threads
// every order through: a TTL-bounded intent latch and a drain-aware
// shutdown gate. Both are plain mutex state, no background goroutines.
package guard

import (
	"log/slog"
	"sync"
	"time"

	"tradeguard/internal/infra"
)

// minTTL is the clamp for non-positive TTLs. A zero TTL latch would be
// permanently expired and useless to the holder.
const minTTL = time.Millisecond

// MutexLatch is a non-blocking, TTL-bounded mutual exclusion latch.
// It answers one question: "may I emit a trade intent right now?".
// A blocked answer means someone else is mid-emission; callers skip the
// cycle instead of queueing. Expiry is lazy: a dead holder is healed on
// the next call that touches the latch, never by a timer.
type MutexLatch struct {
	name    string
	logger  *slog.Logger
	metrics *infra.Metrics

	mu         sync.Mutex
	holder     string // empty when free
	purpose    string
	acquiredAt time.Time
	expiresAt  time.Time
	token      int64 // strictly monotonic, never reused

	nowFn func() time.Time
}

// LatchSnapshot is a read-only view of the latch for logs and state dumps.
type LatchSnapshot struct {
	Name       string    `json:"name"`
	Holder     string    `json:"holder"`
	Purpose    string    `json:"purpose"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Token      int64     `json:"token"`
}

// LatchHandle is the capability returned on successful acquisition. It is
// bound to exactly one token; once the latch expires or is re-acquired the
// handle is dead and its Release becomes a no-op.
type LatchHandle struct {
	latch *MutexLatch
	token int64
}

// Token returns the fencing token of this acquisition.
func (h *LatchHandle) Token() int64 {
	return h.token
}

// Release releases the latch if this handle still owns it.
// Safe to call more than once.
func (h *LatchHandle) Release() bool {
	return h.latch.Release(h.token)
}

// NewMutexLatch creates a named latch. logger may be nil (slog default);
// metrics may be nil (counting disabled).
func NewMutexLatch(name string, logger *slog.Logger, metrics *infra.Metrics) *MutexLatch {
	if logger == nil {
		logger = slog.Default()
	}
	return &MutexLatch{
		name:    name,
		logger:  logger.With(slog.String("latch", name)),
		metrics: metrics,
		nowFn:   time.Now,
	}
}

// TryAcquire attempts to take the latch for the given requester.
// Returns nil without blocking when another holder is live: that is an
// observable "someone else is emitting", not an error. An empty requester
// is recorded as "unknown"; a non-positive ttl is clamped to 1ms.
func (l *MutexLatch) TryAcquire(requester string, ttl time.Duration, purpose string) *LatchHandle {
	if requester == "" {
		requester = "unknown"
	}
	if ttl <= 0 {
		ttl = minTTL
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	l.expireLocked(now)

	if l.holder != "" {
		l.logger.Info("Latch busy",
			slog.String("requester", requester),
			slog.String("holder", l.holder),
			slog.String("holder_purpose", l.purpose),
			slog.Duration("remaining", l.expiresAt.Sub(now)))
		l.metrics.IncLatchAcquire("blocked")
		return nil
	}

	l.token++
	l.holder = requester
	l.purpose = purpose
	l.acquiredAt = now
	l.expiresAt = now.Add(ttl)

	l.logger.Info("Latch acquired",
		slog.String("holder", requester),
		slog.String("purpose", purpose),
		slog.Int64("token", l.token),
		slog.Duration("ttl", ttl))
	l.metrics.IncLatchAcquire("acquired")

	return &LatchHandle{latch: l, token: l.token}
}

// Release releases the latch if token is the current live acquisition.
// Stale tokens (earlier acquisitions, or a holder that already expired)
// are ignored: releasing twice or after expiry is harmless.
func (l *MutexLatch) Release(token int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.expireLocked(l.nowFn())

	if l.holder == "" || token != l.token {
		l.logger.Debug("Latch release ignored",
			slog.Int64("token", token),
			slog.Int64("current", l.token))
		return false
	}

	l.logger.Info("Latch released",
		slog.String("holder", l.holder),
		slog.Int64("token", token))
	l.holder = ""
	l.purpose = ""
	return true
}

// Snapshot returns the current latch state and whether it is held.
// Expiry is evaluated first so a snapshot never reports a dead holder.
func (l *MutexLatch) Snapshot() (LatchSnapshot, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.expireLocked(l.nowFn())

	snap := LatchSnapshot{
		Name:       l.name,
		Holder:     l.holder,
		Purpose:    l.purpose,
		AcquiredAt: l.acquiredAt,
		ExpiresAt:  l.expiresAt,
		Token:      l.token,
	}
	return snap, l.holder != ""
}

// expireLocked clears a holder whose TTL has elapsed. Must be called with
// l.mu held. The token is not reset: expiry consumes it, so a handle from
// before the expiry can never release a later acquisition.
func (l *MutexLatch) expireLocked(now time.Time) {
	if l.holder == "" || now.Before(l.expiresAt) {
		return
	}

	l.logger.Warn("Latch expired",
		slog.String("holder", l.holder),
		slog.String("purpose", l.purpose),
		slog.Int64("token", l.token),
		slog.Duration("overrun", now.Sub(l.expiresAt)))
	l.metrics.IncLatchExpired()

	l.holder = ""
	l.purpose = ""
}
