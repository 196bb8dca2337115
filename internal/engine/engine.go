// Package engine wires together the record codec, segments, key index,
// reader pool, writer, and compactor into the operations spec.md §6
// names: open, get, set, remove, update_if, and clone handle.
//
// The engine is split into a Root, which owns everything shared across
// clones (the index, the writer, the safe-generation counter, the data
// directory), and a Handle, which is the lightweight, per-caller object
// returned by Open and Clone. Each Handle gets its own reader.Context,
// created lazily on first use, so two handles used from two goroutines
// never contend over a shared file cursor.
package engine

import (
	stdErrors "errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/iamNilotpal/grausdb/internal/compaction"
	"github.com/iamNilotpal/grausdb/internal/index"
	"github.com/iamNilotpal/grausdb/internal/reader"
	"github.com/iamNilotpal/grausdb/internal/record"
	"github.com/iamNilotpal/grausdb/internal/segment"
	"github.com/iamNilotpal/grausdb/internal/writer"
	"github.com/iamNilotpal/grausdb/pkg/errors"
	"github.com/iamNilotpal/grausdb/pkg/filesys"
	"github.com/iamNilotpal/grausdb/pkg/options"
	"go.uber.org/zap"
)

// ErrEngineClosed is returned when attempting to perform operations on a
// closed engine handle.
var ErrEngineClosed = stdErrors.New("operation failed: cannot access closed engine")

// Config holds the parameters needed to open a store.
type Config struct {
	Options *options.Options
	Logger  *zap.SugaredLogger
}

// root owns every piece of state shared across all handles to one logical
// store: the index, the writer lock, and the safe-generation counter.
// Exactly one root exists per call to Open; Clone hands out additional
// Handles pointing at the same root.
type root struct {
	dataDir string
	log     *zap.SugaredLogger
	opts    *options.Options

	idx     *index.Index
	safeGen *reader.SafeGen
	w       *writer.Writer

	closed atomic.Bool
}

// Handle is the engine object callers interact with. It corresponds to
// spec.md §6's "engine handle"; Clone produces additional handles that
// share the same root but own an independent reader cache.
type Handle struct {
	r *root

	readOnce sync.Once
	reads    *reader.Context
}

// Open recovers a store from dataDir, replaying every segment found there
// in generation order to rebuild the key index, then readies the active
// segment for append. If dataDir contains no segments, generation 1 is
// created empty.
func Open(ctx *Config) (*Handle, error) {
	opts := ctx.Options
	log := ctx.Logger

	if strings.TrimSpace(opts.DataDir) == "" {
		return nil, errors.NewRequiredFieldError("DataDir")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if err := filesys.CreateDir(opts.DataDir, 0o755, true); err != nil {
		return nil, errors.ClassifyDirectoryCreationError(err, opts.DataDir)
	}

	idx := index.New(&index.Config{Logger: log})
	safeGen := &reader.SafeGen{}

	gens, err := segment.ListGenerations(opts.DataDir)
	if err != nil {
		return nil, err
	}

	var uncompacted int64
	var activeGen uint64
	var activeEndOffset int64

	if len(gens) == 0 {
		activeGen = 1
	} else {
		for i, gen := range gens {
			endOffset, rerr := segment.Replay(opts.DataDir, gen, func(e segment.Entry) error {
				replayEntry(idx, &uncompacted, gen, e)
				return nil
			})
			if rerr != nil {
				return nil, rerr
			}
			if i == len(gens)-1 {
				activeGen = gen
				activeEndOffset = endOffset
			}
		}
	}

	active, err := segment.CreateActive(opts.DataDir, activeGen)
	if err != nil {
		return nil, err
	}
	if len(gens) > 0 && activeEndOffset < active.Size() {
		if terr := active.Truncate(activeEndOffset); terr != nil {
			_ = active.Close()
			return nil, terr
		}
	}

	compactor := compaction.New(&compaction.Config{
		DataDir: opts.DataDir,
		Index:   idx,
		SafeGen: safeGen,
		Logger:  log,
	})

	w := writer.New(&writer.Config{
		DataDir:             opts.DataDir,
		Index:               idx,
		SafeGen:             safeGen,
		Compactor:           compactor,
		CompactionThreshold: opts.CompactionThreshold,
		Logger:              log,
		ActiveGen:           activeGen,
		Active:              active,
		InitialUncompacted:  uncompacted,
	})

	r := &root{
		dataDir: opts.DataDir,
		log:     log,
		opts:    opts,
		idx:     idx,
		safeGen: safeGen,
		w:       w,
	}

	return &Handle{r: r}, nil
}

// replayEntry folds one decoded record from a replay pass into idx and
// the running uncompacted-bytes total, following the same accounting
// rules the live Writer uses: a Set that shadows a previous entry makes
// the previous entry's bytes uncompacted, and a Remove makes both the
// record it removes and its own bytes uncompacted.
func replayEntry(idx *index.Index, uncompacted *int64, gen uint64, e segment.Entry) {
	key := string(e.Record.Key)

	switch e.Record.Kind {
	case record.KindSet:
		loc := index.Location{Generation: gen, Offset: e.Offset, Length: e.Length}
		prev, existed := idx.Insert(key, loc)
		if existed {
			*uncompacted += int64(prev.Length)
		}
	case record.KindRemove:
		prev, existed := idx.Delete(key)
		*uncompacted += int64(e.Length)
		if existed {
			*uncompacted += int64(prev.Length)
		}
	}
}

// reader lazily constructs this handle's private reader.Context on first
// use, giving each clone its own cache per spec.md §6.
func (h *Handle) reader() *reader.Context {
	h.readOnce.Do(func() {
		h.reads = reader.New(&reader.Config{
			DataDir:    h.r.dataDir,
			Index:      h.r.idx,
			SafeGen:    h.r.safeGen,
			Logger:     h.r.log,
			CacheLimit: h.r.opts.ReaderCacheLimit,
		})
	})
	return h.reads
}

// Get returns the current value for key, or ok=false if key is absent.
func (h *Handle) Get(key []byte) (value []byte, ok bool, err error) {
	if h.r.closed.Load() {
		return nil, false, ErrEngineClosed
	}
	return h.reader().Get(string(key))
}

// Set stores value under key, replacing any previous value.
func (h *Handle) Set(key, value []byte) error {
	if h.r.closed.Load() {
		return ErrEngineClosed
	}
	return h.r.w.Set(key, value)
}

// Remove deletes key. It returns errors.ErrKeyNotFound if key is absent.
func (h *Handle) Remove(key []byte) error {
	if h.r.closed.Load() {
		return ErrEngineClosed
	}
	return h.r.w.Remove(key)
}

// UpdateIf performs the atomic read-modify-write described in spec.md
// §4.5. predicateKey may be nil, in which case it defaults to key;
// predicate may be nil, in which case no predicate check is performed.
func (h *Handle) UpdateIf(key []byte, mutate writer.Mutate, predicateKey []byte, predicate writer.Predicate) error {
	if h.r.closed.Load() {
		return ErrEngineClosed
	}
	return h.r.w.UpdateIf(key, mutate, predicateKey, predicate)
}

// Clone returns a new Handle sharing this one's index, writer, and
// directory. The clone gets its own reader cache, created lazily on its
// first Get.
func (h *Handle) Clone() *Handle {
	return &Handle{r: h.r}
}

// Close closes this handle's reader cache. The underlying store (writer,
// active segment) is only closed once, by whichever handle calls
// CloseStore; Close on an individual cloned handle just releases that
// handle's own file descriptors.
func (h *Handle) Close() error {
	if h.reads != nil {
		return h.reads.Close()
	}
	return nil
}

// CloseStore closes the underlying writer and active segment, and this
// handle's reader cache. It should be called once, by whichever handle
// owns the store's lifecycle (typically the handle Open returned).
func (h *Handle) CloseStore() error {
	if !h.r.closed.CompareAndSwap(false, true) {
		return ErrEngineClosed
	}

	err := h.r.w.Close()
	if cerr := h.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// UncompactedBytes exposes the writer's live uncompacted-byte count, for
// tests and cmd/grausctl's stat subcommand.
func (h *Handle) UncompactedBytes() int64 {
	return h.r.w.UncompactedBytes()
}

// ActiveGeneration exposes the writer's current active generation, for
// tests and cmd/grausctl's stat subcommand.
func (h *Handle) ActiveGeneration() uint64 {
	return h.r.w.ActiveGeneration()
}
