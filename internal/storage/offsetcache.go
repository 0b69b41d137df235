package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iteratehq/eventbroker/internal/eventlog"
)

// offsetCache is a bbolt-backed sidecar cache mapping each path to its next
// free offset. The NDJSON files remain the source of truth: each time
// FileStore.LastOffset resolves a path, it counts the segment's lines and
// rewrites the cached value from that count when the two disagree (§9
// "Open Questions" recovery policy). The cache therefore does not spare
// LastOffset the line scan. Adapted from the
// teacher's bbolt metadata store (store/bbolt.go), narrowed from a full
// per-stream metadata record (content type, TTL, producer epochs, closure
// state) down to the single counter the spec's data model needs.
type offsetCache struct {
	db *bbolt.DB
}

var offsetBucket = []byte("offsets")

func newOffsetCache(dataDir string) (*offsetCache, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("storage: create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "offsets.db")
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("storage: open offset cache: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(offsetBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: create offset bucket: %w", err)
	}

	return &offsetCache{db: db}, nil
}

// get returns the cached next-offset for path and whether it was found.
func (c *offsetCache) get(path eventlog.StreamPath) (eventlog.Offset, bool, error) {
	var (
		next  eventlog.Offset
		found bool
	)
	err := c.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(offsetBucket).Get([]byte(path))
		if v == nil {
			return nil
		}
		found = true
		next = eventlog.Offset(binary.BigEndian.Uint64(v))
		return nil
	})
	return next, found, err
}

// put records next as path's next-to-assign offset.
func (c *offsetCache) put(path eventlog.StreamPath, next eventlog.Offset) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(next))
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(offsetBucket).Put([]byte(path), buf)
	})
}

func (c *offsetCache) close() error {
	return c.db.Close()
}
