package storage

import (
	"sort"
	"sync"

	"github.com/iteratehq/eventbroker/internal/eventlog"
)

// MemoryStore is an in-memory Store, suitable for tests and for running the
// broker without persistence.
type MemoryStore struct {
	mu      sync.RWMutex
	streams map[eventlog.StreamPath][]eventlog.Event
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{streams: make(map[eventlog.StreamPath][]eventlog.Event)}
}

func (s *MemoryStore) Append(ev eventlog.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams[ev.Path] = append(s.streams[ev.Path], ev)
	return nil
}

func (s *MemoryStore) Read(path eventlog.StreamPath, opts ReadOptions) ([]eventlog.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.streams[path]
	out := make([]eventlog.Event, 0, len(all))
	for _, ev := range all {
		if !opts.From.Less(ev.Offset) {
			continue
		}
		if opts.To != nil && !ev.Offset.LessOrEqual(*opts.To) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *MemoryStore) LastOffset(path eventlog.StreamPath) (eventlog.Offset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.streams[path]
	if len(all) == 0 {
		return eventlog.NoOffset, nil
	}
	return all[len(all)-1].Offset, nil
}

func (s *MemoryStore) ListPaths() ([]eventlog.StreamPath, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]eventlog.StreamPath, 0, len(s.streams))
	for p := range s.streams {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })
	return paths, nil
}

func (s *MemoryStore) Close() error { return nil }
