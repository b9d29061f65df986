// Package events implements the system-wide fan-out bus. Per the
// redesign away from a dynamic callback registry, every event carries a
// typed Kind from a closed enum; each subscriber gets its own bounded
// queue, and when that queue is full the event is dropped for that
// subscriber rather than allowed to stall publishers. A slow subscriber
// stays registered; it is not removed from the bus. Grounded on the teacher's internal/events/event_bus.go
// worker-pool/bounded-channel shape, simplified to one queue per
// subscription instead of one global channel plus per-event dispatch.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Kind is the closed set of event topics the system emits.
type Kind string

const (
	KindTokenDiscovered  Kind = "token:discovered"
	KindSignalGenerated  Kind = "signal:generated"
	KindTradeOpened      Kind = "trade:opened"
	KindTradeClosed      Kind = "trade:closed"
	KindPositionUpdated  Kind = "position:updated"
	KindEngineStarted    Kind = "engine:started"
	KindEngineStopped    Kind = "engine:stopped"
	KindError            Kind = "error"
	KindTreasuryUpdated  Kind = "treasury:updated"
	KindStrategiesLoaded Kind = "strategies:loaded"
	KindEvolutionStarted Kind = "evolution:started"
	KindEvolutionBirths  Kind = "evolution:births"
	KindEvolutionDeaths  Kind = "evolution:deaths"
	KindEvolutionDone    Kind = "evolution:completed"
	KindEvolutionError   Kind = "evolution:error"
	KindSimulatorStarted Kind = "simulator:started"
	KindSimulatorStopped Kind = "simulator:stopped"
)

// Event is a single published occurrence. Payload is one of the typed
// structs in payloads.go for the matching Kind; consumers type-assert
// it themselves rather than the bus unpacking it for them.
type Event struct {
	Kind      Kind
	Timestamp time.Time
	Payload   interface{}
}

// Subscription is a bound, per-subscriber queue. A publisher never
// blocks on a subscriber: if the queue is full the event is dropped and
// counted, not delivered late.
type Subscription struct {
	ch      chan Event
	kinds   map[Kind]struct{}
	all     bool
	dropped atomic.Int64
	closed  atomic.Bool
}

// Events returns the channel to range over for delivered events. The
// channel closes when the bus Stop()s or the subscription is cancelled.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Dropped returns the count of events dropped from this subscription's
// queue because it fell behind.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// Bus routes events to subscriptions. Zero value is not usable; use
// New.
type Bus struct {
	logger *zap.Logger

	mu   sync.RWMutex
	subs map[*Subscription]struct{}

	published atomic.Int64
	delivered atomic.Int64
	dropped   atomic.Int64

	stopped atomic.Bool
}

// New constructs an empty Bus.
func New(logger *zap.Logger) *Bus {
	return &Bus{logger: logger, subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a new subscription for the given kinds (or every
// kind, if none given) with the given queue depth.
func (b *Bus) Subscribe(bufferSize int, kinds ...Kind) *Subscription {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	sub := &Subscription{ch: make(chan Event, bufferSize)}
	if len(kinds) == 0 {
		sub.all = true
	} else {
		sub.kinds = make(map[Kind]struct{}, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = struct{}{}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[sub] = struct{}{}
	return sub
}

// Unsubscribe stops delivery to sub and closes its channel.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	if sub.closed.CompareAndSwap(false, true) {
		close(sub.ch)
	}
}

// Publish fans an event out to every matching subscription. Delivery is
// non-blocking per subscriber: a full queue drops the event for that
// subscriber only, logged at debug level, and never slows down or
// blocks the publisher or any other subscriber.
func (b *Bus) Publish(kind Kind, payload interface{}) {
	if b.stopped.Load() {
		return
	}
	ev := Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
	b.published.Add(1)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		if !sub.all {
			if _, ok := sub.kinds[kind]; !ok {
				continue
			}
		}
		select {
		case sub.ch <- ev:
			b.delivered.Add(1)
		default:
			sub.dropped.Add(1)
			b.dropped.Add(1)
			if b.logger != nil {
				b.logger.Debug("event dropped, subscriber queue full",
					zap.String("kind", string(kind)))
			}
		}
	}
}

// Stats is a point-in-time snapshot of bus counters.
type Stats struct {
	Published int64
	Delivered int64
	Dropped   int64
	Subscribers int
}

// Stats returns the current counters.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	n := len(b.subs)
	b.mu.RUnlock()
	return Stats{
		Published:   b.published.Load(),
		Delivered:   b.delivered.Load(),
		Dropped:     b.dropped.Load(),
		Subscribers: n,
	}
}

// Stop closes every subscription's channel and refuses further
// publishes. Idempotent.
func (b *Bus) Stop() {
	if !b.stopped.CompareAndSwap(false, true) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		if sub.closed.CompareAndSwap(false, true) {
			close(sub.ch)
		}
	}
	b.subs = make(map[*Subscription]struct{})
}
