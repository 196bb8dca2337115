// Package reader implements the per-handle read path described in
// spec.md §4.4: each caller gets its own cache of open segment handles
// keyed by generation, so concurrent readers never contend for a shared
// file cursor. The only synchronization a reader performs against writers
// or compaction is an atomic load of the store's safe generation.
package reader

import (
	stdErrors "errors"
	"os"
	"sync"
	"sync/atomic"

	"github.com/iamNilotpal/grausdb/internal/index"
	"github.com/iamNilotpal/grausdb/internal/record"
	"github.com/iamNilotpal/grausdb/internal/segment"
	"github.com/iamNilotpal/grausdb/pkg/errors"
	"go.uber.org/zap"
)

// SafeGen is the safe-generation counter shared by every reader context
// spawned from the same store. Compaction advances it past every
// generation it retires; readers consult it before serving a lookup to
// decide whether any of their cached handles need dropping.
type SafeGen struct {
	gen atomic.Uint64
}

// Load returns the current safe generation.
func (s *SafeGen) Load() uint64 {
	return s.gen.Load()
}

// Advance raises the safe generation to gen if gen is greater than the
// current value. It is a no-op otherwise, since the safe generation only
// ever moves forward.
func (s *SafeGen) Advance(gen uint64) {
	for {
		cur := s.gen.Load()
		if gen <= cur {
			return
		}
		if s.gen.CompareAndSwap(cur, gen) {
			return
		}
	}
}

// Config encapsulates what a Context needs to construct segment handles
// and look up keys.
type Config struct {
	DataDir string
	Index   *index.Index
	SafeGen *SafeGen
	Logger  *zap.SugaredLogger

	// CacheLimit bounds how many open segment handles a single Context
	// keeps around at once. Zero means unbounded. It exists because a
	// long-lived reader that has touched every generation in a large,
	// heavily-compacted store would otherwise accumulate one handle per
	// generation it has ever seen.
	CacheLimit int
}

// Context is one caller's cache of open, read-only segment handles. Every
// clone of a store handle gets its own Context on first use. A Context may
// still be used by several goroutines at once: its mutex guards the handle
// map and is held across each read, so eviction never closes a handle that
// another goroutine is reading from.
type Context struct {
	dataDir string
	idx     *index.Index
	safeGen *SafeGen
	log     *zap.SugaredLogger

	cacheLimit int
	mu         sync.Mutex
	handles    map[uint64]*segment.Segment
}

// New creates a reader Context backed by config. The returned Context
// opens segment handles lazily, on first lookup that needs them.
func New(config *Config) *Context {
	return &Context{
		dataDir:    config.DataDir,
		idx:        config.Index,
		safeGen:    config.SafeGen,
		log:        config.Logger,
		cacheLimit: config.CacheLimit,
		handles:    make(map[uint64]*segment.Segment),
	}
}

// Get performs one point read: index lookup, handle acquisition, seek and
// decode. It returns the value bytes, or ok=false if key has no live
// entry in the index.
func (c *Context) Get(key string) (value []byte, ok bool, err error) {
	loc, found := c.idx.Get(key)
	if !found {
		return nil, false, nil
	}

	c.evictRetired()

	// mu is held from handle acquisition through the read so that no other
	// goroutine sharing this Context can evict and close seg mid-read.
	c.mu.Lock()
	seg, err := c.handle(loc.Generation)
	if err != nil {
		c.mu.Unlock()
		if stdErrors.Is(err, os.ErrNotExist) {
			return nil, false, errors.NewSegmentIDError(uint16(loc.Generation), key)
		}
		return nil, false, err
	}

	raw, err := seg.ReadAt(loc.Offset, loc.Length)
	c.mu.Unlock()
	if err != nil {
		return nil, false, err
	}

	rec, err := record.DecodeExact(raw)
	if err != nil {
		return nil, false, errors.NewStorageError(err, errors.ErrorCodeSegmentCorrupted, "index location decoded to invalid record").
			WithSegmentID(int(loc.Generation)).WithOffset(int(loc.Offset))
	}
	if rec.Kind != record.KindSet || string(rec.Key) != key {
		return nil, false, errors.NewIndexCorruptionError("Get", c.idx.Len(), nil).
			WithKey(key).WithSegmentID(uint16(loc.Generation))
	}

	return rec.Value, true, nil
}

// handle returns an open read-only handle for generation gen, opening and
// caching it on first use. The caller must hold c.mu.
func (c *Context) handle(gen uint64) (*segment.Segment, error) {
	if seg, ok := c.handles[gen]; ok {
		return seg, nil
	}

	seg, err := segment.OpenReadOnly(c.dataDir, gen)
	if err != nil {
		return nil, err
	}

	if c.cacheLimit > 0 && len(c.handles) >= c.cacheLimit {
		for evictGen, evictSeg := range c.handles {
			_ = evictSeg.Close()
			delete(c.handles, evictGen)
			break
		}
	}

	c.handles[gen] = seg
	return seg, nil
}

// evictRetired drops and closes any cached handle whose generation has
// fallen below the store's safe generation. Compaction may have already
// deleted the underlying file on disk; closing a handle to an unlinked
// file is harmless.
func (c *Context) evictRetired() {
	safe := c.safeGen.Load()
	if safe == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for gen, seg := range c.handles {
		if gen < safe {
			_ = seg.Close()
			delete(c.handles, gen)
		}
	}
}

// Close closes every cached handle. It is used when a reader Context is
// being discarded, e.g. on engine Close.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for gen, seg := range c.handles {
		if err := seg.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.handles, gen)
	}
	return firstErr
}
