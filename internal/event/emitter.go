package event

import "sync"

// Emitter assigns sequence numbers and enqueues events in one critical
// section. Producers on different goroutines can therefore never
// interleave numbering and delivery, which is what keeps the consumer's
// gap check sound: the numbers arriving on the channel are exactly
// 1, 2, 3, ... with no holes and no reordering.
type Emitter struct {
	mu  sync.Mutex
	seq uint64
	ch  chan Event
}

// NewEmitter creates an emitter with the given inbox capacity.
func NewEmitter(size int) *Emitter {
	return &Emitter{ch: make(chan Event, size)}
}

// Emit numbers ev and enqueues it. When the inbox is full the event is
// dropped, its number is not consumed, and false is returned; the caller
// still owns the event and is responsible for releasing it.
func (e *Emitter) Emit(ev Event) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	ev.SetSeq(e.seq + 1)
	select {
	case e.ch <- ev:
		e.seq++
		return true
	default:
		ev.SetSeq(0)
		return false
	}
}

// EmitWait numbers ev and enqueues it, blocking while the inbox is full.
// For producers whose events have no upstream to re-push them on a drop.
func (e *Emitter) EmitWait(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ev.SetSeq(e.seq + 1)
	e.ch <- ev
	e.seq++
}

// Events returns the consumer side of the inbox.
func (e *Emitter) Events() <-chan Event {
	return e.ch
}

// Len reports the number of queued events.
func (e *Emitter) Len() int {
	return len(e.ch)
}
