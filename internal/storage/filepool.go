package storage

import (
	"container/list"
	"os"
	"sync"
)

// FilePool manages a bounded pool of open append-mode file handles, one per
// stream path, evicting the least-recently-used handle when the pool is
// full. The file backend keeps a writer open per active path instead of
// reopening on every Append; adapted from the teacher's file-handle pool
// (store/filepool.go), trimmed to the writer side only — the file backend
// reads by scanning the segment file directly, so no reader-side pool is
// needed here.
type FilePool struct {
	mu      sync.Mutex
	maxSize int
	files   map[string]*poolEntry
	lru     *list.List // front = most recently used
}

type poolEntry struct {
	path    string
	file    *os.File
	element *list.Element
}

// NewFilePool creates a file pool holding at most maxSize open handles.
func NewFilePool(maxSize int) *FilePool {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &FilePool{
		maxSize: maxSize,
		files:   make(map[string]*poolEntry),
		lru:     list.New(),
	}
}

// GetWriter returns an append-mode handle for path, opening and pooling it
// on first use. The caller must not close the returned file.
func (p *FilePool) GetWriter(path string) (*os.File, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if entry, ok := p.files[path]; ok {
		p.lru.MoveToFront(entry.element)
		return entry.file, nil
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	p.evictIfNeeded()

	entry := &poolEntry{path: path, file: file}
	entry.element = p.lru.PushFront(entry)
	p.files[path] = entry

	return file, nil
}

// Remove closes and evicts path's handle, if open.
func (p *FilePool) Remove(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.files[path]
	if !ok {
		return nil
	}

	p.lru.Remove(entry.element)
	delete(p.files, path)
	return entry.file.Close()
}

// Close closes every open handle in the pool.
func (p *FilePool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var lastErr error
	for path, entry := range p.files {
		if err := entry.file.Close(); err != nil {
			lastErr = err
		}
		delete(p.files, path)
	}
	p.lru.Init()

	return lastErr
}

// Size returns the number of currently open handles.
func (p *FilePool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.files)
}

// evictIfNeeded evicts the least-recently-used handle if the pool is full.
// Must be called with p.mu held.
func (p *FilePool) evictIfNeeded() {
	if len(p.files) < p.maxSize {
		return
	}

	elem := p.lru.Back()
	if elem == nil {
		return
	}

	entry := elem.Value.(*poolEntry)
	p.lru.Remove(elem)
	delete(p.files, entry.path)
	entry.file.Close()
}
