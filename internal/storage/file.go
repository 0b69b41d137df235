package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/iteratehq/eventbroker/internal/eventlog"
)

// FileStore is a file-backed Store: one NDJSON segment file per path, with
// a bbolt sidecar caching each path's next-to-assign offset for a fast
// boot. Adapted from the teacher's FileStore (store/file_store.go), which
// gave each stream its own directory keyed by a random suffix (to support
// create/delete/TTL-expiry semantics this spec has none of); here a path
// maps deterministically to one flat segment file under dataDir, per §4.1
// "File backend layout".
type FileStore struct {
	dataDir string
	offsets *offsetCache
	writers *FilePool

	mu    sync.RWMutex
	paths map[eventlog.StreamPath]struct{}
}

// NewFileStore opens (creating if absent) a file-backed store rooted at
// dataDir.
func NewFileStore(dataDir string) (*FileStore, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("storage: data directory is required")
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("storage: create data directory: %w", err)
	}

	offsets, err := newOffsetCache(dataDir)
	if err != nil {
		return nil, err
	}

	fs := &FileStore{
		dataDir: dataDir,
		offsets: offsets,
		writers: NewFilePool(100),
		paths:   make(map[eventlog.StreamPath]struct{}),
	}

	if err := fs.discoverPaths(); err != nil {
		offsets.close()
		return nil, err
	}

	return fs, nil
}

// discoverPaths walks dataDir for existing segment files, so ListPaths
// reflects a store reopened after a restart.
func (s *FileStore) discoverPaths() error {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return fmt.Errorf("storage: read data dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, segmentExt) {
			continue
		}
		path := decodeSegmentName(strings.TrimSuffix(name, segmentExt))
		s.paths[path] = struct{}{}
	}
	return nil
}

const segmentExt = ".ndjson"

// encodeSegmentName maps a stream path to a flat filesystem-safe name:
// slashes become underscores, and a literal underscore is escaped so the
// mapping stays reversible.
func encodeSegmentName(path eventlog.StreamPath) string {
	s := string(path)
	s = strings.ReplaceAll(s, "_", "__")
	s = strings.ReplaceAll(s, "/", "_")
	return s
}

func decodeSegmentName(name string) eventlog.StreamPath {
	var out strings.Builder
	for i := 0; i < len(name); i++ {
		if name[i] == '_' {
			if i+1 < len(name) && name[i+1] == '_' {
				out.WriteByte('_')
				i++
				continue
			}
			out.WriteByte('/')
			continue
		}
		out.WriteByte(name[i])
	}
	return eventlog.StreamPath(out.String())
}

func (s *FileStore) segmentPath(path eventlog.StreamPath) string {
	return filepath.Join(s.dataDir, encodeSegmentName(path)+segmentExt)
}

// LastOffset resolves path's last-assigned offset from a line count scan
// of the segment file. It compares that count with the bbolt cache's
// recorded next-offset and, when they disagree or the cache has no entry,
// rewrites the cache from the file (§9 "Open Questions" recovery policy).
func (s *FileStore) LastOffset(path eventlog.StreamPath) (eventlog.Offset, error) {
	segPath := s.segmentPath(path)

	cachedNext, ok, err := s.offsets.get(path)
	if err != nil {
		return 0, wrapFailure(err)
	}

	lines, err := scanLineCount(segPath)
	if err != nil {
		return 0, wrapFailure(err)
	}
	nextFromFile := eventlog.Offset(lines)

	next := nextFromFile
	if ok && cachedNext == nextFromFile {
		next = cachedNext
	} else if err := s.offsets.put(path, nextFromFile); err != nil {
		return 0, wrapFailure(err)
	}

	if next == 0 {
		return eventlog.NoOffset, nil
	}
	return next - 1, nil
}

func (s *FileStore) Append(ev eventlog.Event) error {
	segPath := s.segmentPath(ev.Path)

	if err := createSegmentFile(segPath); err != nil {
		return wrapFailure(err)
	}

	f, err := s.writers.GetWriter(segPath)
	if err != nil {
		return wrapFailure(err)
	}
	if err := appendLine(f, ev); err != nil {
		return wrapFailure(err)
	}

	if err := s.offsets.put(ev.Path, ev.Offset.Next()); err != nil {
		return wrapFailure(err)
	}

	s.mu.Lock()
	s.paths[ev.Path] = struct{}{}
	s.mu.Unlock()

	return nil
}

func (s *FileStore) Read(path eventlog.StreamPath, opts ReadOptions) ([]eventlog.Event, error) {
	all, err := readAllEvents(s.segmentPath(path))
	if err != nil {
		return nil, wrapFailure(err)
	}

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

func (s *FileStore) ListPaths() ([]eventlog.StreamPath, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]eventlog.StreamPath, 0, len(s.paths))
	for p := range s.paths {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })
	return paths, nil
}

func (s *FileStore) Close() error {
	var lastErr error
	if err := s.writers.Close(); err != nil {
		lastErr = err
	}
	if err := s.offsets.close(); err != nil {
		lastErr = err
	}
	return lastErr
}
