// Package compaction implements the synchronous compaction algorithm from
// spec.md §4.6. It runs entirely under the Writer's lock: no coordination
// with concurrent writers is needed because none can be running, and
// readers need no coordination beyond the safe-generation bump already
// built into internal/reader.
package compaction

import (
	"github.com/iamNilotpal/grausdb/internal/index"
	"github.com/iamNilotpal/grausdb/internal/reader"
	"github.com/iamNilotpal/grausdb/internal/segment"
	"go.uber.org/zap"
)

// Config encapsulates what a Compactor needs to rewrite a store's live
// data into a fresh generation.
type Config struct {
	DataDir string
	Index   *index.Index
	SafeGen *reader.SafeGen
	Logger  *zap.SugaredLogger
}

// Compactor runs the compaction algorithm described in spec.md §4.6.
type Compactor struct {
	dataDir string
	idx     *index.Index
	safeGen *reader.SafeGen
	log     *zap.SugaredLogger
}

// New constructs a Compactor over config.
func New(config *Config) *Compactor {
	return &Compactor{
		dataDir: config.DataDir,
		idx:     config.Index,
		safeGen: config.SafeGen,
		log:     config.Logger,
	}
}

// Compact produces a new segment holding exactly one live record per key
// in the index, retires every older generation, and returns the new
// active generation and its open append handle. The caller (the Writer)
// must already hold the lock that serializes mutations; Compact performs
// no locking of its own.
func (c *Compactor) Compact(activeGen uint64) (newActiveGen uint64, newActive *segment.Segment, err error) {
	compactionGen := activeGen + 1
	newActiveGen = activeGen + 2

	compactionSeg, err := segment.CreateActive(c.dataDir, compactionGen)
	if err != nil {
		return 0, nil, err
	}

	// Snapshot the index once; entries inserted by a concurrent writer
	// cannot happen here since the caller holds the writer lock, but
	// taking one consistent snapshot keeps this pass independent of the
	// live atomic.Pointer swap machinery in package index.
	type rewrite struct {
		key string
		loc index.Location
	}
	var rewrites []rewrite

	readers := make(map[uint64]*segment.Segment)
	defer func() {
		for _, seg := range readers {
			_ = seg.Close()
		}
	}()

	var scanErr error
	c.idx.Scan(func(e index.Entry) bool {
		src, ok := readers[e.Location.Generation]
		if !ok {
			src, scanErr = segment.OpenReadOnly(c.dataDir, e.Location.Generation)
			if scanErr != nil {
				return false
			}
			readers[e.Location.Generation] = src
		}

		raw, readErr := src.ReadAt(e.Location.Offset, e.Location.Length)
		if readErr != nil {
			scanErr = readErr
			return false
		}

		newOff, appendErr := compactionSeg.Append(raw)
		if appendErr != nil {
			scanErr = appendErr
			return false
		}

		rewrites = append(rewrites, rewrite{
			key: e.Key,
			loc: index.Location{Generation: compactionGen, Offset: newOff, Length: e.Location.Length},
		})
		return true
	})
	if scanErr != nil {
		_ = compactionSeg.Close()
		return 0, nil, scanErr
	}

	for _, rw := range rewrites {
		c.idx.Insert(rw.key, rw.loc)
	}

	if err := compactionSeg.Close(); err != nil {
		return 0, nil, err
	}

	newSeg, err := segment.CreateActive(c.dataDir, newActiveGen)
	if err != nil {
		return 0, nil, err
	}

	retired, err := segment.ListGenerations(c.dataDir)
	if err != nil {
		c.log.Warnw("failed to list segments for retirement", "error", err)
		retired = nil
	}

	c.safeGen.Advance(compactionGen)

	for _, gen := range retired {
		if gen >= compactionGen {
			continue
		}
		if err := segment.RemoveGeneration(c.dataDir, gen); err != nil {
			c.log.Warnw("failed to delete retired segment, will retry next compaction", "generation", gen, "error", err)
		}
	}

	return newActiveGen, newSeg, nil
}
