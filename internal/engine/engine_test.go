package engine

import (
	stdErrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/iamNilotpal/grausdb/pkg/errors"
	"github.com/iamNilotpal/grausdb/pkg/options"
	"go.uber.org/zap"
)

func openTestEngine(t *testing.T, dir string) *Handle {
	t.Helper()
	opts := options.NewDefaultOptions()
	opts.DataDir = dir
	h, err := Open(&Config{Options: &opts, Logger: zap.NewNop().Sugar()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return h
}

func TestOpenCreatesFreshStoreWithGenerationOne(t *testing.T) {
	dir := t.TempDir()
	h := openTestEngine(t, dir)
	defer h.CloseStore()

	if h.ActiveGeneration() != 1 {
		t.Fatalf("ActiveGeneration = %d, want 1", h.ActiveGeneration())
	}
	if _, ok, err := h.Get([]byte("missing")); err != nil || ok {
		t.Fatalf("Get on fresh store = %v, %v", ok, err)
	}
}

func TestSetGetRemoveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	h := openTestEngine(t, dir)
	defer h.CloseStore()

	if err := h.Set([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	value, ok, err := h.Get([]byte("k"))
	if err != nil || !ok || string(value) != "v" {
		t.Fatalf("Get = %q, %v, %v; want v, true, nil", value, ok, err)
	}

	if err := h.Remove([]byte("k")); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, err := h.Get([]byte("k")); err != nil || ok {
		t.Fatalf("Get after Remove = %v, %v; want false, nil", ok, err)
	}

	err = h.Remove([]byte("k"))
	if !stdErrors.Is(err, errors.ErrKeyNotFound) {
		t.Fatalf("second Remove = %v, want ErrKeyNotFound", err)
	}
}

func TestReopenRecoversCommittedWrites(t *testing.T) {
	dir := t.TempDir()
	h := openTestEngine(t, dir)

	if err := h.Set([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := h.Set([]byte("b"), []byte("2")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := h.Remove([]byte("a")); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := h.CloseStore(); err != nil {
		t.Fatalf("CloseStore: %v", err)
	}

	h2 := openTestEngine(t, dir)
	defer h2.CloseStore()

	if _, ok, err := h2.Get([]byte("a")); err != nil || ok {
		t.Fatalf("Get(a) after reopen = %v, %v; want false, nil", ok, err)
	}
	value, ok, err := h2.Get([]byte("b"))
	if err != nil || !ok || string(value) != "2" {
		t.Fatalf("Get(b) after reopen = %q, %v, %v; want 2, true, nil", value, ok, err)
	}
}

func TestReopenTruncatesCorruptTail(t *testing.T) {
	dir := t.TempDir()
	h := openTestEngine(t, dir)

	if err := h.Set([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := h.CloseStore(); err != nil {
		t.Fatalf("CloseStore: %v", err)
	}

	path := filepath.Join(dir, "1.log")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if err := f.Truncate(info.Size() - 2); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	f.Close()

	h2 := openTestEngine(t, dir)
	defer h2.CloseStore()

	if _, ok, err := h2.Get([]byte("a")); err != nil || ok {
		t.Fatalf("Get(a) after truncated reopen = %v, %v; want false, nil (tail record lost)", ok, err)
	}

	if err := h2.Set([]byte("b"), []byte("2")); err != nil {
		t.Fatalf("Set after recovery: %v", err)
	}
	value, ok, err := h2.Get([]byte("b"))
	if err != nil || !ok || string(value) != "2" {
		t.Fatalf("Get(b) = %q, %v, %v; want 2, true, nil", value, ok, err)
	}
}

func TestCloneSharesStateWithIndependentReaderCache(t *testing.T) {
	dir := t.TempDir()
	h := openTestEngine(t, dir)
	defer h.CloseStore()

	if err := h.Set([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	clone := h.Clone()
	value, ok, err := clone.Get([]byte("k"))
	if err != nil || !ok || string(value) != "v" {
		t.Fatalf("clone Get = %q, %v, %v; want v, true, nil", value, ok, err)
	}

	if err := clone.Set([]byte("k2"), []byte("v2")); err != nil {
		t.Fatalf("clone Set: %v", err)
	}
	value2, ok, err := h.Get([]byte("k2"))
	if err != nil || !ok || string(value2) != "v2" {
		t.Fatalf("original Get(k2) after clone Set = %q, %v, %v; want v2, true, nil", value2, ok, err)
	}

	if err := clone.Close(); err != nil {
		t.Fatalf("clone Close: %v", err)
	}
	// Original handle's reader cache, and the underlying store, remain usable.
	if _, ok, err := h.Get([]byte("k")); err != nil || !ok {
		t.Fatalf("original Get after clone Close = %v, %v", ok, err)
	}
}

func TestOpenRejectsEmptyDataDir(t *testing.T) {
	opts := options.NewDefaultOptions()
	opts.DataDir = "   "
	_, err := Open(&Config{Options: &opts, Logger: zap.NewNop().Sugar()})
	if !errors.IsValidationError(err) {
		t.Fatalf("Open with blank DataDir = %v, want a ValidationError", err)
	}
}

func TestOperationsFailAfterCloseStore(t *testing.T) {
	dir := t.TempDir()
	h := openTestEngine(t, dir)

	if err := h.Set([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := h.CloseStore(); err != nil {
		t.Fatalf("CloseStore: %v", err)
	}

	if _, _, err := h.Get([]byte("k")); !stdErrors.Is(err, ErrEngineClosed) {
		t.Fatalf("Get after CloseStore = %v, want ErrEngineClosed", err)
	}
	if err := h.Set([]byte("k2"), []byte("v2")); !stdErrors.Is(err, ErrEngineClosed) {
		t.Fatalf("Set after CloseStore = %v, want ErrEngineClosed", err)
	}
}
