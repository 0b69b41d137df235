// Package stream implements §4.2 EventStream: the per-path offset sequencer
// and live pub/sub bus, and the backpressure-aware bus that sits underneath
// it and the process-wide bus in internal/manager.
package stream

import (
	"sync"

	"go.uber.org/zap"

	"github.com/iteratehq/eventbroker/internal/eventlog"
)

// BackpressureMode selects what a Subscription does when its consumer falls
// behind. Per §5 "Subscribe contract": in-process consumers (the processor
// runtime, internal/consumer) get an unbounded queue since losing an event
// would violate the hydrate/react replay guarantee; SSE subscribers get a
// bounded, drop-oldest-is-wrong/drop-newest-is-safe queue so one slow HTTP
// client can never stall appenders.
type BackpressureMode int

const (
	// Unbounded never drops; the queue grows to hold every published event
	// until the subscriber consumes it.
	Unbounded BackpressureMode = iota
	// BoundedDrop holds at most boundedBufferSize events; once full, newly
	// published events are dropped for this subscriber only.
	BoundedDrop
)

// boundedBufferSize is the per-subscriber channel size used in BoundedDrop
// mode, generalized from the teacher's SSE fan-out pattern (buffered
// channel + non-blocking send, drop on full).
const boundedBufferSize = 256

// Bus is an in-memory pub/sub fan-out of eventlog.Event, with one logical
// topic: every event Published is delivered to every live Subscription.
// EventStream uses one Bus per path; internal/manager.StreamManager uses one
// process-wide Bus for the global live feed.
type Bus struct {
	log *zap.Logger

	mu   sync.RWMutex
	subs map[int]*subscription
	next int
}

// NewBus creates an empty bus.
func NewBus(log *zap.Logger) *Bus {
	return &Bus{log: log, subs: make(map[int]*subscription)}
}

// subscription is the bus-side half of a Subscription: the queue a
// publisher writes into and the channel a subscriber reads from.
type subscription struct {
	mode BackpressureMode
	out  chan eventlog.Event

	// Unbounded mode only: a growing backlog drained by a pump goroutine,
	// so Publish never blocks on a slow unbounded subscriber either.
	mu      sync.Mutex
	cond    *sync.Cond
	backlog []eventlog.Event
	closed  bool
}

// Subscription is the subscriber-facing handle returned by Bus.Subscribe.
type Subscription struct {
	// Events yields every event published after the Subscribe call.
	Events <-chan eventlog.Event
	// Close stops delivery and releases the subscription's resources. It is
	// safe to call multiple times.
	Close func()
}

// Subscribe registers a new subscription and returns it. The subscription
// observes only events Published after this call returns — EventStream is
// responsible for subscribing before replaying history, per §4.2.
func (b *Bus) Subscribe(mode BackpressureMode) *Subscription {
	sub := &subscription{mode: mode}

	if mode == BoundedDrop {
		sub.out = make(chan eventlog.Event, boundedBufferSize)
	} else {
		sub.cond = sync.NewCond(&sub.mu)
		sub.out = make(chan eventlog.Event)
		go sub.pump()
	}

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	closeFn := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			sub.shutdown()
		})
	}

	return &Subscription{Events: sub.out, Close: closeFn}
}

// Publish delivers ev to every live subscription. It never blocks: bounded
// subscriptions drop the event when full, unbounded ones buffer it in
// memory.
func (b *Bus) Publish(ev eventlog.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		sub.deliver(ev, b.log)
	}
}

func (s *subscription) deliver(ev eventlog.Event, log *zap.Logger) {
	switch s.mode {
	case BoundedDrop:
		select {
		case s.out <- ev:
		default:
			if log != nil {
				log.Warn("dropping event for slow subscriber", zap.String("path", string(ev.Path)), zap.String("offset", ev.Offset.String()))
			}
		}
	default:
		s.mu.Lock()
		if !s.closed {
			s.backlog = append(s.backlog, ev)
			s.cond.Signal()
		}
		s.mu.Unlock()
	}
}

// pump drains an unbounded subscription's backlog into its output channel
// one event at a time, blocking on the consumer but never on the publisher.
func (s *subscription) pump() {
	for {
		s.mu.Lock()
		for len(s.backlog) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed && len(s.backlog) == 0 {
			s.mu.Unlock()
			close(s.out)
			return
		}
		ev := s.backlog[0]
		s.backlog = s.backlog[1:]
		s.mu.Unlock()

		s.out <- ev
	}
}

func (s *subscription) shutdown() {
	if s.mode == BoundedDrop {
		close(s.out)
		return
	}
	s.mu.Lock()
	s.closed = true
	s.cond.Signal()
	s.mu.Unlock()
}
