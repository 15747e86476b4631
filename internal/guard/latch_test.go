package guard

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock drives latch expiry deterministically in tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLatch(clock *fakeClock) *MutexLatch {
	l := NewMutexLatch("intent", nil, nil)
	if clock != nil {
		l.nowFn = clock.Now
	}
	return l
}

func TestMutexLatch_AcquireRelease(t *testing.T) {
	l := newTestLatch(nil)

	h := l.TryAcquire("strategy-a", time.Second, "rebalance")
	if h == nil {
		t.Fatal("First acquire should succeed")
	}
	if h.Token() != 1 {
		t.Errorf("First token = %d, want 1", h.Token())
	}

	snap, held := l.Snapshot()
	if !held {
		t.Fatal("Latch should be held")
	}
	if snap.Holder != "strategy-a" || snap.Purpose != "rebalance" {
		t.Errorf("Snapshot = %+v, want holder strategy-a purpose rebalance", snap)
	}

	if !h.Release() {
		t.Error("Release of live handle should return true")
	}
	if _, held := l.Snapshot(); held {
		t.Error("Latch should be free after release")
	}
}

func TestMutexLatch_BlocksSecondAcquirer(t *testing.T) {
	l := newTestLatch(nil)

	h1 := l.TryAcquire("strategy-a", time.Second, "entry")
	if h1 == nil {
		t.Fatal("First acquire should succeed")
	}

	if h2 := l.TryAcquire("strategy-b", time.Second, "entry"); h2 != nil {
		t.Error("Second acquire should be blocked while holder is live")
	}

	h1.Release()
	if h3 := l.TryAcquire("strategy-b", time.Second, "entry"); h3 == nil {
		t.Error("Acquire after release should succeed")
	}
}

func TestMutexLatch_Defaults(t *testing.T) {
	clock := newFakeClock()
	l := newTestLatch(clock)

	t.Run("empty requester becomes unknown", func(t *testing.T) {
		h := l.TryAcquire("", time.Second, "")
		if h == nil {
			t.Fatal("Acquire should succeed")
		}
		snap, _ := l.Snapshot()
		if snap.Holder != "unknown" {
			t.Errorf("Holder = %q, want unknown", snap.Holder)
		}
		h.Release()
	})

	t.Run("non-positive ttl clamps to epsilon", func(t *testing.T) {
		h := l.TryAcquire("a", 0, "")
		if h == nil {
			t.Fatal("Acquire with zero ttl should succeed")
		}
		// Not yet expired at the same instant
		if _, held := l.Snapshot(); !held {
			t.Error("Latch should still be held at acquisition instant")
		}
		clock.Advance(2 * time.Millisecond)
		if _, held := l.Snapshot(); held {
			t.Error("Clamped ttl should have expired after 2ms")
		}
	})
}

func TestMutexLatch_LazyExpiry(t *testing.T) {
	clock := newFakeClock()
	l := newTestLatch(clock)

	h1 := l.TryAcquire("strategy-a", 50*time.Millisecond, "entry")
	if h1 == nil {
		t.Fatal("First acquire should succeed")
	}

	// Still held just before the deadline
	clock.Advance(49 * time.Millisecond)
	if h := l.TryAcquire("strategy-b", time.Second, "entry"); h != nil {
		t.Fatal("Latch should still be held before ttl elapses")
	}

	// Past the deadline the next acquirer heals the latch and wins
	clock.Advance(2 * time.Millisecond)
	h2 := l.TryAcquire("strategy-b", time.Second, "entry")
	if h2 == nil {
		t.Fatal("Acquire after expiry should succeed")
	}
	if h2.Token() != 2 {
		t.Errorf("Token after expiry = %d, want 2 (expiry must not reset the counter)", h2.Token())
	}

	// The dead holder's handle must not release the new acquisition
	if h1.Release() {
		t.Error("Stale handle release should be ignored")
	}
	snap, held := l.Snapshot()
	if !held || snap.Holder != "strategy-b" {
		t.Errorf("New holder should be intact, got held=%v holder=%q", held, snap.Holder)
	}
}

func TestMutexLatch_TokenMonotonic(t *testing.T) {
	clock := newFakeClock()
	l := newTestLatch(clock)

	var tokens []int64
	for i := 0; i < 5; i++ {
		h := l.TryAcquire("a", 10*time.Millisecond, "")
		if h == nil {
			t.Fatalf("Acquire %d should succeed", i)
		}
		tokens = append(tokens, h.Token())
		if i%2 == 0 {
			h.Release()
		} else {
			clock.Advance(20 * time.Millisecond) // let it expire instead
		}
	}

	for i := 1; i < len(tokens); i++ {
		if tokens[i] <= tokens[i-1] {
			t.Fatalf("Tokens not strictly increasing: %v", tokens)
		}
	}
}

func TestMutexLatch_ReleaseIdempotent(t *testing.T) {
	l := newTestLatch(nil)

	h := l.TryAcquire("a", time.Second, "")
	if !h.Release() {
		t.Error("First release should return true")
	}
	if h.Release() {
		t.Error("Second release should be a no-op")
	}
	if l.Release(999) {
		t.Error("Release of unknown token should be ignored")
	}
}

func TestMutexLatch_ConcurrentAcquire(t *testing.T) {
	l := newTestLatch(nil)

	const goroutines = 64
	var acquired, blocked atomic.Int64
	var winner atomic.Value

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			<-start
			if h := l.TryAcquire("worker", time.Second, "contention"); h != nil {
				acquired.Add(1)
				winner.Store(h)
			} else {
				blocked.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	t.Logf("Contention stats: acquired=%d blocked=%d", acquired.Load(), blocked.Load())

	if acquired.Load() != 1 {
		t.Fatalf("Exactly one goroutine should win, got %d", acquired.Load())
	}
	if blocked.Load() != goroutines-1 {
		t.Fatalf("Blocked = %d, want %d", blocked.Load(), goroutines-1)
	}

	h := winner.Load().(*LatchHandle)
	if !h.Release() {
		t.Error("Winner's release should succeed")
	}
}
