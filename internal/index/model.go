package index

import (
	"sync/atomic"

	"github.com/tidwall/btree"
	"go.uber.org/zap"
)

// Location contains the absolute minimum metadata required to locate a
// record on disk: which generation's log file holds it, where within that
// file it begins, and how many bytes it occupies. A Location never changes
// once written, since records themselves are never mutated in place; a key
// whose value changes simply gets a new Location pointing at a newly
// appended record.
type Location struct {
	// Generation identifies the segment file holding the record.
	Generation uint64
	// Offset is the byte position within that segment where the record's
	// tag byte begins.
	Offset int64
	// Length is the exact number of bytes the framed record occupies,
	// letting a reader fetch it with a single ReadAt.
	Length uint32
}

// Index is the in-memory map from key to the Location of its most recent
// Set record. Every live key in the store has exactly one entry here; a
// Remove deletes the entry outright rather than recording a tombstone
// location, since Get only ever needs to know whether a key is currently
// present.
//
// The map itself is an immutable, copy-on-write B-tree swapped in under an
// atomic pointer. Reads take a single atomic load and then walk the tree
// they got back without ever touching a lock; a mutation builds a modified
// copy of the tree and publishes it with a compare-and-swap, retrying if
// another goroutine published first. GrausDb's Writer already serializes
// every mutation behind its own lock, so the CAS loop here never actually
// spins in practice — but it keeps Index safe for concurrent reads without
// leaning on that guarantee, and gives lookups a lock-free fast path.
type Index struct {
	log  *zap.SugaredLogger
	tree atomic.Pointer[btree.Map[string, Location]]
}

// Config encapsulates the configuration parameters required to initialize
// an Index.
type Config struct {
	// Logger provides structured logging for Index operations.
	Logger *zap.SugaredLogger
}
