package writer

import (
	stdErrors "errors"
	"testing"

	"github.com/iamNilotpal/grausdb/internal/index"
	"github.com/iamNilotpal/grausdb/internal/reader"
	"github.com/iamNilotpal/grausdb/internal/segment"
	"github.com/iamNilotpal/grausdb/pkg/errors"
	"go.uber.org/zap"
)

type noopCompactor struct {
	calls int
	next  uint64
}

func (c *noopCompactor) Compact(activeGen uint64) (uint64, *segment.Segment, error) {
	c.calls++
	return activeGen, nil, stdErrors.New("compaction not exercised in this test")
}

func newTestWriter(t *testing.T, dir string, threshold int64) (*Writer, *index.Index) {
	t.Helper()
	idx := index.New(&index.Config{})
	safeGen := &reader.SafeGen{}

	active, err := segment.CreateActive(dir, 1)
	if err != nil {
		t.Fatalf("CreateActive: %v", err)
	}

	w := New(&Config{
		DataDir:             dir,
		Index:               idx,
		SafeGen:             safeGen,
		Compactor:           &noopCompactor{},
		CompactionThreshold: threshold,
		Logger:              zap.NewNop().Sugar(),
		ActiveGen:           1,
		Active:              active,
	})
	return w, idx
}

func TestSetThenIndexLookup(t *testing.T) {
	dir := t.TempDir()
	w, idx := newTestWriter(t, dir, 1<<20)

	if err := w.Set([]byte("k"), []byte("v1")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	loc, ok := idx.Get("k")
	if !ok {
		t.Fatal("key not found in index after Set")
	}
	if loc.Generation != 1 {
		t.Fatalf("Location.Generation = %d, want 1", loc.Generation)
	}
}

func TestSetTwiceAccumulatesUncompacted(t *testing.T) {
	dir := t.TempDir()
	w, _ := newTestWriter(t, dir, 1<<20)

	if err := w.Set([]byte("k"), []byte("v1")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	before := w.UncompactedBytes()

	if err := w.Set([]byte("k"), []byte("v2")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	after := w.UncompactedBytes()

	if after <= before {
		t.Fatalf("uncompacted bytes did not grow: before=%d after=%d", before, after)
	}
}

func TestRemoveMissingKeyFails(t *testing.T) {
	dir := t.TempDir()
	w, _ := newTestWriter(t, dir, 1<<20)

	err := w.Remove([]byte("missing"))
	if !stdErrors.Is(err, errors.ErrKeyNotFound) {
		t.Fatalf("Remove error = %v, want ErrKeyNotFound", err)
	}
}

func TestSetRemoveThenMissing(t *testing.T) {
	dir := t.TempDir()
	w, idx := newTestWriter(t, dir, 1<<20)

	if err := w.Set([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := w.Remove([]byte("k")); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := idx.Get("k"); ok {
		t.Fatal("key still present in index after Remove")
	}

	err := w.Remove([]byte("k"))
	if !stdErrors.Is(err, errors.ErrKeyNotFound) {
		t.Fatalf("second Remove error = %v, want ErrKeyNotFound", err)
	}
}

func TestUpdateIfAppliesMutation(t *testing.T) {
	dir := t.TempDir()
	w, idx := newTestWriter(t, dir, 1<<20)

	if err := w.Set([]byte("ctr"), []byte{25}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	decrement := func(cur []byte) []byte {
		return []byte{cur[0] - 1}
	}
	positive := func(cur []byte) bool {
		return cur[0] > 0
	}

	if err := w.UpdateIf([]byte("ctr"), decrement, []byte("ctr"), positive); err != nil {
		t.Fatalf("UpdateIf: %v", err)
	}

	loc, _ := idx.Get("ctr")
	if loc.Generation != 1 {
		t.Fatalf("unexpected location after UpdateIf: %+v", loc)
	}

	value, ok, err := w.reads.Get("ctr")
	if err != nil || !ok || len(value) != 1 || value[0] != 24 {
		t.Fatalf("value after UpdateIf = %v, %v, %v; want [24], true, nil", value, ok, err)
	}
}

func TestUpdateIfPredicateFailureLeavesValueUnchanged(t *testing.T) {
	dir := t.TempDir()
	w, _ := newTestWriter(t, dir, 1<<20)

	if err := w.Set([]byte("ctr"), []byte{0}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	decrement := func(cur []byte) []byte { return []byte{cur[0] - 1} }
	positive := func(cur []byte) bool { return cur[0] > 0 }

	err := w.UpdateIf([]byte("ctr"), decrement, []byte("ctr"), positive)
	if !stdErrors.Is(err, errors.ErrPredicateNotSatisfied) {
		t.Fatalf("UpdateIf error = %v, want ErrPredicateNotSatisfied", err)
	}

	value, ok, err := w.reads.Get("ctr")
	if err != nil || !ok || len(value) != 1 || value[0] != 0 {
		t.Fatalf("value after rejected UpdateIf = %v, %v, %v; want [0], true, nil", value, ok, err)
	}
}

func TestUpdateIfMissingKeyFails(t *testing.T) {
	dir := t.TempDir()
	w, _ := newTestWriter(t, dir, 1<<20)

	err := w.UpdateIf([]byte("missing"), func(b []byte) []byte { return b }, nil, nil)
	if !stdErrors.Is(err, errors.ErrKeyNotFound) {
		t.Fatalf("UpdateIf error = %v, want ErrKeyNotFound", err)
	}
}

func TestUpdateIfDefaultsPredicateKeyToKey(t *testing.T) {
	dir := t.TempDir()
	w, _ := newTestWriter(t, dir, 1<<20)

	if err := w.Set([]byte("k"), []byte{5}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var observed []byte
	predicate := func(cur []byte) bool {
		observed = cur
		return true
	}
	mutate := func(cur []byte) []byte { return []byte{cur[0] + 1} }

	if err := w.UpdateIf([]byte("k"), mutate, nil, predicate); err != nil {
		t.Fatalf("UpdateIf: %v", err)
	}
	if len(observed) != 1 || observed[0] != 5 {
		t.Fatalf("predicate observed %v, want [5]", observed)
	}
}
