// Package writer implements the single-lock mutation path described in
// spec.md §4.5: Set, Remove, and UpdateIf all serialize through one mutex,
// and each one appends, flushes, and publishes its index update before
// releasing it. A successful mutation that pushes uncompacted bytes past
// the compaction threshold triggers compaction synchronously, still under
// the same lock.
package writer

import (
	"sync"

	"github.com/iamNilotpal/grausdb/internal/index"
	"github.com/iamNilotpal/grausdb/internal/reader"
	"github.com/iamNilotpal/grausdb/internal/record"
	"github.com/iamNilotpal/grausdb/internal/segment"
	"github.com/iamNilotpal/grausdb/pkg/errors"
	"go.uber.org/zap"
)

// Compactor is invoked by the Writer once uncompacted bytes exceed the
// configured threshold. It is implemented by internal/compaction; the
// Writer depends on it only through this interface to avoid an import
// cycle between the two packages.
type Compactor interface {
	Compact(activeGen uint64) (newActiveGen uint64, newActive *segment.Segment, err error)
}

// Config encapsulates what a Writer needs to mutate the store.
type Config struct {
	DataDir             string
	Index               *index.Index
	SafeGen             *reader.SafeGen
	Compactor           Compactor
	CompactionThreshold int64
	Logger              *zap.SugaredLogger

	// ActiveGen and Active are the generation number and open append
	// handle of the segment Writer should resume appending to, as
	// determined by recovery at Open.
	ActiveGen uint64
	Active    *segment.Segment

	// InitialUncompacted seeds the uncompacted-bytes counter with what
	// recovery already found while replaying segments: bytes of records
	// that were shadowed or removed before the store was last closed.
	InitialUncompacted int64
}

// Writer serializes every mutation against a GrausDb store behind one
// mutex, matching spec.md §4.5 and §5's linearizability requirement.
type Writer struct {
	dataDir   string
	idx       *index.Index
	safeGen   *reader.SafeGen
	compactor Compactor
	threshold int64
	log       *zap.SugaredLogger

	mu sync.Mutex

	activeGen uint64
	active    *segment.Segment

	// uncompacted tracks live-segment bytes that no longer define the
	// current index, per spec.md's definition. It is read and written
	// only under mu.
	uncompacted int64

	// reads is a private reader context the Writer uses to serve the
	// read-modify-write step of UpdateIf; it is never shared with
	// caller-facing reader contexts.
	reads *reader.Context
}

// New constructs a Writer resuming from the recovered state in config.
func New(config *Config) *Writer {
	w := &Writer{
		dataDir:     config.DataDir,
		idx:         config.Index,
		safeGen:     config.SafeGen,
		compactor:   config.Compactor,
		threshold:   config.CompactionThreshold,
		log:         config.Logger,
		activeGen:   config.ActiveGen,
		active:      config.Active,
		uncompacted: config.InitialUncompacted,
	}
	w.reads = reader.New(&reader.Config{
		DataDir: config.DataDir,
		Index:   config.Index,
		SafeGen: config.SafeGen,
		Logger:  config.Logger,
	})
	return w
}

// UncompactedBytes returns the current uncompacted byte count. Exposed for
// tests and for cmd/grausctl's stat subcommand.
func (w *Writer) UncompactedBytes() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.uncompacted
}

// Set encodes and appends a Set{key, value} record, then publishes the new
// location in the index. If key already had an entry, the length of its
// previous record is added to uncompacted_bytes.
func (w *Writer) Set(key, value []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.setLocked(key, value)
}

func (w *Writer) setLocked(key, value []byte) error {
	data := record.Encode(record.Record{Kind: record.KindSet, Key: key, Value: value})

	off, err := w.active.Append(data)
	if err != nil {
		return err
	}

	loc := index.Location{Generation: w.activeGen, Offset: off, Length: uint32(len(data))}
	prev, existed := w.idx.Insert(string(key), loc)
	if existed {
		w.uncompacted += int64(prev.Length)
	}

	return w.maybeCompact()
}

// Remove fails with errors.ErrKeyNotFound if key is absent from the index.
// Otherwise it appends a Remove record and deletes key from the index,
// adding both the new Remove record's length and the prior Set record's
// length to uncompacted_bytes.
func (w *Writer) Remove(key []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, found := w.idx.Get(string(key)); !found {
		return errors.ErrKeyNotFound
	}

	data := record.Encode(record.Record{Kind: record.KindRemove, Key: key})
	if _, err := w.active.Append(data); err != nil {
		return err
	}

	prev, existed := w.idx.Delete(string(key))
	w.uncompacted += int64(len(data))
	if existed {
		w.uncompacted += int64(prev.Length)
	}

	return w.maybeCompact()
}

// Mutate transforms a value into a new value. Predicate evaluates a
// value and reports whether the update may proceed.
type Mutate func(current []byte) []byte
type Predicate func(current []byte) bool

// UpdateIf performs the atomic read-modify-write described in spec.md
// §4.5. If predicateKey is empty, it defaults to key. If predicate is
// nil, no predicate check is performed.
func (w *Writer) UpdateIf(key []byte, mutate Mutate, predicateKey []byte, predicate Predicate) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	current, found, err := w.reads.Get(string(key))
	if err != nil {
		return err
	}
	if !found {
		return errors.ErrKeyNotFound
	}

	if predicate != nil {
		pk := predicateKey
		if len(pk) == 0 {
			pk = key
		}
		pValue, pFound, err := w.reads.Get(string(pk))
		if err != nil {
			return err
		}
		if !pFound {
			return errors.ErrKeyNotFound
		}
		if !predicate(pValue) {
			return errors.ErrPredicateNotSatisfied
		}
	}

	next := mutate(current)
	return w.setLocked(key, next)
}

// maybeCompact triggers compaction synchronously, still under the writer
// lock, when uncompacted bytes exceed the configured threshold.
func (w *Writer) maybeCompact() error {
	if w.uncompacted <= w.threshold {
		return nil
	}

	newGen, newActive, err := w.compactor.Compact(w.activeGen)
	if err != nil {
		fields := []any{"error", err, "code", errors.GetErrorCode(err)}
		if details := errors.GetErrorDetails(err); len(details) > 0 {
			fields = append(fields, "details", details)
		}
		if errors.IsStorageError(err) {
			w.log.Errorw("compaction failed with storage error", fields...)
		} else {
			w.log.Errorw("compaction failed", fields...)
		}
		return nil
	}

	if err := w.active.Close(); err != nil {
		w.log.Warnw("failed to close retired active segment after compaction", "error", err)
	}

	w.activeGen = newGen
	w.active = newActive
	w.uncompacted = 0
	return nil
}

// ActiveGeneration returns the generation the Writer currently appends
// to. Exposed for tests and diagnostics.
func (w *Writer) ActiveGeneration() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.activeGen
}

// Close closes the active segment and the Writer's private reader
// context.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	err := w.active.Close()
	if rerr := w.reads.Close(); rerr != nil && err == nil {
		err = rerr
	}
	return err
}
