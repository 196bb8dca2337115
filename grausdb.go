// Package grausdb is an embedded, thread-safe, persistent key-value store
// for byte-string keys and values, built around an append-only log, an
// in-memory key index, a lock-free concurrent read path, and a serialized
// write path with atomic single-key update.
//
// A DB is opened against a directory; it recovers any existing segments
// found there and is immediately ready for concurrent use. Multiple
// handles can share one store via Clone, each getting its own read cache.
package grausdb

import (
	"github.com/iamNilotpal/grausdb/internal/engine"
	"github.com/iamNilotpal/grausdb/internal/writer"
	"github.com/iamNilotpal/grausdb/pkg/errors"
	"github.com/iamNilotpal/grausdb/pkg/logger"
	"github.com/iamNilotpal/grausdb/pkg/options"
)

// Re-exported so callers can build predicates and mutators for UpdateIf,
// and check the sentinel error values, without importing internal
// packages directly.
type (
	// Mutate is a pure function from a key's current value to its new
	// value. It executes under the store's writer lock and must not call
	// back into the store.
	Mutate = writer.Mutate
	// Predicate evaluates a value and reports whether an UpdateIf may
	// proceed. It executes under the writer lock alongside Mutate.
	Predicate = writer.Predicate
)

var (
	// ErrKeyNotFound is returned by Remove and UpdateIf when the target
	// key has no entry in the store.
	ErrKeyNotFound = errors.ErrKeyNotFound
	// ErrPredicateNotSatisfied is returned by UpdateIf when a supplied
	// predicate evaluates to false.
	ErrPredicateNotSatisfied = errors.ErrPredicateNotSatisfied
)

// DB is a handle to a GrausDb store. It is safe for concurrent use by
// multiple goroutines without any additional synchronization: Get never
// takes the writer lock, Set/Remove/UpdateIf serialize internally.
type DB struct {
	h *engine.Handle
}

// Open recovers (or creates) a store rooted at dataDir and returns a
// ready-to-use handle. service names this instance in the structured
// logs emitted by the engine and its subsystems.
func Open(service string, dataDir string, opts ...options.OptionFunc) (*DB, error) {
	resolved := options.NewDefaultOptions()
	resolved.DataDir = dataDir
	for _, opt := range opts {
		opt(&resolved)
	}

	log := logger.New(service)
	h, err := engine.Open(&engine.Config{Options: &resolved, Logger: log})
	if err != nil {
		return nil, err
	}
	return &DB{h: h}, nil
}

// Get returns the current value stored under key, or ok=false if key has
// no live entry.
func (db *DB) Get(key []byte) (value []byte, ok bool, err error) {
	return db.h.Get(key)
}

// Set stores value under key, replacing any previous value.
func (db *DB) Set(key, value []byte) error {
	return db.h.Set(key, value)
}

// Remove deletes key from the store. It returns ErrKeyNotFound, checkable
// with errors.Is, if key is absent.
func (db *DB) Remove(key []byte) error {
	return db.h.Remove(key)
}

// UpdateIf performs an atomic read-modify-write on key: mutate computes
// the new value from the current one, executing under the store's writer
// lock so the whole read-check-write sequence is linearizable.
//
// If predicateKey is nil, it defaults to key. If predicate is non-nil, it
// is evaluated against predicateKey's current value before mutate runs;
// if it returns false, UpdateIf returns ErrPredicateNotSatisfied and
// leaves the store unchanged. Both mutate and predicate must be pure
// functions of their input bytes; they must not call back into db.
func (db *DB) UpdateIf(key []byte, mutate Mutate, predicateKey []byte, predicate Predicate) error {
	return db.h.UpdateIf(key, mutate, predicateKey, predicate)
}

// Clone returns a new handle to the same logical store, sharing the same
// index, writer lock, and data directory. Each clone gets its own reader
// cache, created lazily on first use, so it can be handed to a different
// goroutine without contending over file handles with the original.
func (db *DB) Clone() *DB {
	return &DB{h: db.h.Clone()}
}

// UncompactedBytes reports how many bytes in live segments no longer
// define a key in the index. Exposed for diagnostics and tests; it is not
// part of the store's correctness contract.
func (db *DB) UncompactedBytes() int64 {
	return db.h.UncompactedBytes()
}

// ActiveGeneration reports the generation number the store is currently
// appending to. Exposed for diagnostics and tests.
func (db *DB) ActiveGeneration() uint64 {
	return db.h.ActiveGeneration()
}

// Close releases this handle's own reader cache. It does not affect any
// other handle cloned from the same store; use CloseStore to shut the
// whole store down.
func (db *DB) Close() error {
	return db.h.Close()
}

// CloseStore closes the underlying writer and active segment for the
// whole store, along with this handle's reader cache. After it returns,
// no handle cloned from this store may be used. Call it once, from
// whichever handle owns the store's lifecycle — typically the one Open
// returned.
func (db *DB) CloseStore() error {
	return db.h.CloseStore()
}
