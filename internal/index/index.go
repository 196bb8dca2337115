// Package index provides the in-memory key index for GrausDb: a lock-free,
// ordered map from key to the on-disk Location of that key's latest value.
// It is consulted on every Get and updated on every Set and Remove, and
// walked in full by compaction to decide which records are still live.
//
// The index is the one piece of in-memory state the whole store depends
// on: it is rebuilt from scratch by replaying every segment at Open, and
// it is never itself persisted.
package index

import "github.com/tidwall/btree"

// New creates an empty Index ready for concurrent use. Callers populate it
// during Open by replaying segments in generation order and calling Insert
// or Delete for each record encountered.
func New(config *Config) *Index {
	idx := &Index{log: config.Logger}
	idx.tree.Store(new(btree.Map[string, Location]))
	return idx
}

// Get returns the Location of key's current value and true, or the zero
// Location and false if key has no live entry. It never blocks: a single
// atomic load retrieves the tree snapshot to search.
func (idx *Index) Get(key string) (Location, bool) {
	tree := idx.tree.Load()
	return tree.Get(key)
}

// Insert records that key now lives at loc, replacing whatever Location it
// previously held, and returns the previous Location if one existed. It is
// used for Set and for UpdateIf's mutation branch.
func (idx *Index) Insert(key string, loc Location) (Location, bool) {
	for {
		old := idx.tree.Load()
		next := old.Copy()
		prev, existed := next.Set(key, loc)
		if idx.tree.CompareAndSwap(old, next) {
			return prev, existed
		}
	}
}

// Delete removes key's entry, returning its last Location if one existed.
// It is used for Remove.
func (idx *Index) Delete(key string) (Location, bool) {
	for {
		old := idx.tree.Load()
		next := old.Copy()
		prev, existed := next.Delete(key)
		if !existed {
			return Location{}, false
		}
		if idx.tree.CompareAndSwap(old, next) {
			return prev, true
		}
	}
}

// Len returns the number of live keys currently tracked.
func (idx *Index) Len() int {
	return idx.tree.Load().Len()
}

// Entry pairs a key with its current Location, yielded by Scan.
type Entry struct {
	Key      string
	Location Location
}

// Scan walks every live entry in ascending key order, invoking visit for
// each, stopping early if visit returns false. Compaction uses this to
// decide which records are still reachable and need copying forward into
// the compaction generation. Scan operates against a single consistent
// snapshot of the tree taken at the start of the walk; concurrent Insert
// or Delete calls that happen during the scan are invisible to it,
// matching the copy-on-write semantics of the underlying tree.
func (idx *Index) Scan(visit func(Entry) bool) {
	tree := idx.tree.Load()
	tree.Scan(func(key string, loc Location) bool {
		return visit(Entry{Key: key, Location: loc})
	})
}
