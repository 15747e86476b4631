package event

import "sync"

// Pooled events keep the hotpath allocation-free: ticker updates arrive at
// stream rate, and each would otherwise be a fresh heap object the
// sequencer drops a moment later.
//
// Ownership follows delivery. A producer that acquires an event hands it
// off once the emitter accepts it, and the sequencer releases it after
// dispatch. If the emitter refuses (inbox full), the producer still owns
// the event and releases it itself.

var (
	marketUpdatePool = sync.Pool{New: func() interface{} { return new(MarketUpdateEvent) }}
	orderUpdatePool  = sync.Pool{New: func() interface{} { return new(OrderUpdateEvent) }}
)

// AcquireMarketUpdateEvent returns a zeroed MarketUpdateEvent.
func AcquireMarketUpdateEvent() *MarketUpdateEvent {
	return marketUpdatePool.Get().(*MarketUpdateEvent)
}

// ReleaseMarketUpdateEvent zeroes ev and returns it to the pool. The
// caller must not touch ev afterwards.
func ReleaseMarketUpdateEvent(ev *MarketUpdateEvent) {
	if ev == nil {
		return
	}
	*ev = MarketUpdateEvent{}
	marketUpdatePool.Put(ev)
}

// AcquireOrderUpdateEvent returns a zeroed OrderUpdateEvent.
func AcquireOrderUpdateEvent() *OrderUpdateEvent {
	return orderUpdatePool.Get().(*OrderUpdateEvent)
}

// ReleaseOrderUpdateEvent zeroes ev and returns it to the pool. The
// caller must not touch ev afterwards.
func ReleaseOrderUpdateEvent(ev *OrderUpdateEvent) {
	if ev == nil {
		return
	}
	*ev = OrderUpdateEvent{}
	orderUpdatePool.Put(ev)
}

// Warmup primes both pools so the first burst of stream traffic does not
// pay the allocation cost. Called once at startup.
func Warmup() {
	const n = 1000

	market := make([]*MarketUpdateEvent, n)
	orders := make([]*OrderUpdateEvent, n)
	for i := range market {
		market[i] = AcquireMarketUpdateEvent()
	}
	for i := range orders {
		orders[i] = AcquireOrderUpdateEvent()
	}
	for _, ev := range market {
		ReleaseMarketUpdateEvent(ev)
	}
	for _, ev := range orders {
		ReleaseOrderUpdateEvent(ev)
	}
}
