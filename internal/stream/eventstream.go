package stream

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/iteratehq/eventbroker/internal/eventlog"
	"github.com/iteratehq/eventbroker/internal/storage"
	"github.com/iteratehq/eventbroker/internal/trace"
)

// SubscribeOptions configures EventStream.Subscribe.
type SubscribeOptions struct {
	// From is exclusive: the subscription observes events with offset >
	// From. Its zero value is offset 0, which skips the first event; pass
	// eventlog.NoOffset to start from the beginning.
	From eventlog.Offset
	// HistoryOnly, when set, closes the subscription once history up to
	// the stream's offset at subscribe time has been replayed — it never
	// hands over to the live bus. Mutually exclusive with LiveOnly.
	HistoryOnly bool
	// LiveOnly, when set, skips history replay entirely and only emits
	// events published after the subscribe call. Mutually exclusive with
	// HistoryOnly.
	LiveOnly bool
	// Mode selects the bus's backpressure policy for this subscription's
	// live half. Defaults to Unbounded (the zero value) for in-process
	// consumers; SSE subscribers pass BoundedDrop (§5 "Subscribe contract").
	Mode BackpressureMode
}

// EventStream is the single source of truth for one path's offset sequence
// and live bus, per §4.2.
type EventStream struct {
	path  eventlog.StreamPath
	store storage.Store
	bus   *Bus
	log   *zap.Logger

	mu         sync.Mutex
	lastOffset eventlog.Offset
}

// New constructs the EventStream for path, deriving lastOffset from the
// store's existing history (§4.2 "Construction").
func New(st storage.Store, path eventlog.StreamPath, log *zap.Logger) (*EventStream, error) {
	last, err := st.LastOffset(path)
	if err != nil {
		return nil, fmt.Errorf("stream: derive last offset for %q: %w", path, err)
	}
	return &EventStream{
		path:       path,
		store:      st,
		bus:        NewBus(log),
		log:        log,
		lastOffset: last,
	}, nil
}

// Append assigns the next offset, persists, and publishes the event.
// Append calls are serialized by an internal lock (§5 "Per-path
// serialization"), so a single EventStream instance is safe to call
// concurrently; the serialization holds per path only as long as there is
// exactly one EventStream per path.
func (s *EventStream) Append(ctx context.Context, input eventlog.EventInput) (eventlog.Event, error) {
	if err := input.Type.Validate(); err != nil {
		return eventlog.Event{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.lastOffset.Next()
	version := input.Version
	if version == "" {
		version = eventlog.DefaultVersion
	}

	ev := eventlog.Event{
		Type:    input.Type,
		Payload: input.Payload,
		Version: version,
		Path:    s.path,
		Offset:  next,
		Trace:   trace.Capture(ctx),
	}
	ev.CreatedAt = nowUTC()

	if err := s.store.Append(ev); err != nil {
		return eventlog.Event{}, &storage.StorageFailure{Cause: err}
	}

	s.lastOffset = next
	s.bus.Publish(ev)

	return ev, nil
}

// Subscribe returns a channel of events per §4.2's handover contract: the
// bus subscription is established before history is replayed, so no event
// appended during replay is lost; events already seen during replay are
// suppressed on the live side to avoid duplicates at the boundary.
func (s *EventStream) Subscribe(ctx context.Context, opts SubscribeOptions) (<-chan eventlog.Event, func(), error) {
	out := make(chan eventlog.Event, boundedBufferSize)

	var sub *Subscription
	if !opts.HistoryOnly {
		sub = s.bus.Subscribe(opts.Mode)
	}

	closeFn := func() {
		if sub != nil {
			sub.Close()
		}
	}

	go func() {
		defer close(out)

		highestEmitted := opts.From

		if !opts.LiveOnly {
			history, err := s.store.Read(s.path, storage.ReadOptions{From: opts.From})
			if err != nil {
				if s.log != nil {
					s.log.Error("subscribe: history read failed", zap.String("path", string(s.path)), zap.Error(err))
				}
			}
			for _, ev := range history {
				select {
				case out <- ev:
					highestEmitted = ev.Offset
				case <-ctx.Done():
					return
				}
			}
		}

		if opts.HistoryOnly || sub == nil {
			return
		}

		for {
			select {
			case ev, ok := <-sub.Events:
				if !ok {
					return
				}
				if !highestEmitted.Less(ev.Offset) {
					continue
				}
				select {
				case out <- ev:
					highestEmitted = ev.Offset
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, closeFn, nil
}

// Read returns historical events only, bounded by the filter, per §4.2.
func (s *EventStream) Read(opts storage.ReadOptions) ([]eventlog.Event, error) {
	events, err := s.store.Read(s.path, opts)
	if err != nil {
		return nil, &storage.StorageFailure{Cause: err}
	}
	return events, nil
}

// Path returns the path this EventStream serves.
func (s *EventStream) Path() eventlog.StreamPath { return s.path }
