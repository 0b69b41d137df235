// Package manager implements §4.3 StreamManager: the path registry and
// cross-path multiplexer sitting on top of internal/stream.EventStream.
package manager

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/iteratehq/eventbroker/internal/eventlog"
	"github.com/iteratehq/eventbroker/internal/storage"
	"github.com/iteratehq/eventbroker/internal/stream"
)

// StreamManager owns one EventStream per path, created lazily, plus a
// process-wide bus that receives every event appended to any path.
type StreamManager struct {
	store storage.Store
	log   *zap.Logger

	mu      sync.Mutex
	streams map[eventlog.StreamPath]*stream.EventStream

	global *stream.Bus
}

// New constructs a StreamManager backed by st.
func New(st storage.Store, log *zap.Logger) *StreamManager {
	return &StreamManager{
		store:   st,
		log:     log,
		streams: make(map[eventlog.StreamPath]*stream.EventStream),
		global:  stream.NewBus(log),
	}
}

// ForPath returns (lazily creating) the EventStream for path.
func (m *StreamManager) ForPath(path eventlog.StreamPath) (*stream.EventStream, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if es, ok := m.streams[path]; ok {
		return es, nil
	}

	es, err := stream.New(m.store, path, m.log)
	if err != nil {
		return nil, err
	}
	m.streams[path] = es
	return es, nil
}

// Append delegates to path's EventStream, then republishes the resulting
// event on the global bus (§4.3: "additionally republishes ... after
// successful per-path publish").
func (m *StreamManager) Append(ctx context.Context, path eventlog.StreamPath, input eventlog.EventInput) (eventlog.Event, error) {
	es, err := m.ForPath(path)
	if err != nil {
		return eventlog.Event{}, err
	}

	ev, err := es.Append(ctx, input)
	if err != nil {
		return eventlog.Event{}, err
	}

	m.global.Publish(ev)
	return ev, nil
}

// SubscribeOptions mirrors stream.SubscribeOptions but allows an empty Path
// to mean "the process-wide live bus" per §4.3.
type SubscribeOptions struct {
	Path        eventlog.StreamPath
	From        eventlog.Offset
	HistoryOnly bool
	LiveOnly    bool
	// Mode selects the backpressure policy for this subscription's live
	// half. Defaults to stream.Unbounded for in-process consumers; SSE
	// subscribers pass stream.BoundedDrop (§5 "Subscribe contract").
	Mode stream.BackpressureMode
}

// Subscribe delegates to the named path's EventStream.Subscribe when Path
// is set; otherwise it returns live-only events from the global bus.
// Historical cross-path reading is only available via Read.
func (m *StreamManager) Subscribe(ctx context.Context, opts SubscribeOptions) (<-chan eventlog.Event, func(), error) {
	if opts.Path != "" {
		es, err := m.ForPath(opts.Path)
		if err != nil {
			return nil, nil, err
		}
		return es.Subscribe(ctx, stream.SubscribeOptions{
			From:        opts.From,
			HistoryOnly: opts.HistoryOnly,
			LiveOnly:    opts.LiveOnly,
			Mode:        opts.Mode,
		})
	}

	sub := m.global.Subscribe(opts.Mode)
	return sub.Events, sub.Close, nil
}

// ReadOptions mirrors storage.ReadOptions with an optional Path.
type ReadOptions struct {
	Path eventlog.StreamPath
	From eventlog.Offset
	To   *eventlog.Offset
}

// Read delegates to the named path's EventStream.Read when Path is set;
// otherwise it enumerates every known path and merge-reads their
// histories, each filtered by From/To, returned grouped by path in path
// order (§4.3: "no ordering guarantee beyond each path's events arrive in
// path order").
func (m *StreamManager) Read(opts ReadOptions) ([]eventlog.Event, error) {
	if opts.Path != "" {
		es, err := m.ForPath(opts.Path)
		if err != nil {
			return nil, err
		}
		return es.Read(storage.ReadOptions{From: opts.From, To: opts.To})
	}

	paths, err := m.store.ListPaths()
	if err != nil {
		return nil, fmt.Errorf("manager: list paths: %w", err)
	}

	type result struct {
		idx    int
		events []eventlog.Event
		err    error
	}

	results := make(chan result, len(paths))
	for i, p := range paths {
		go func(i int, p eventlog.StreamPath) {
			es, err := m.ForPath(p)
			if err != nil {
				results <- result{idx: i, err: err}
				return
			}
			events, err := es.Read(storage.ReadOptions{From: opts.From, To: opts.To})
			results <- result{idx: i, events: events, err: err}
		}(i, p)
	}

	byIdx := make([][]eventlog.Event, len(paths))
	for range paths {
		r := <-results
		if r.err != nil {
			return nil, r.err
		}
		byIdx[r.idx] = r.events
	}

	var all []eventlog.Event
	for _, events := range byIdx {
		all = append(all, events...)
	}
	return all, nil
}
