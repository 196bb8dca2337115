package segment

import (
	"testing"

	"github.com/iamNilotpal/grausdb/internal/record"
)

func TestNamePath(t *testing.T) {
	if got := Name(7); got != "7.log" {
		t.Fatalf("Name(7) = %q, want 7.log", got)
	}
}

func TestListGenerationsIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()

	for _, gen := range []uint64{1, 2, 10} {
		seg, err := CreateActive(dir, gen)
		if err != nil {
			t.Fatalf("CreateActive(%d): %v", gen, err)
		}
		seg.Close()
	}

	gens, err := ListGenerations(dir)
	if err != nil {
		t.Fatalf("ListGenerations: %v", err)
	}
	want := []uint64{1, 2, 10}
	if len(gens) != len(want) {
		t.Fatalf("ListGenerations = %v, want %v", gens, want)
	}
	for i := range want {
		if gens[i] != want[i] {
			t.Fatalf("ListGenerations = %v, want %v", gens, want)
		}
	}
}

func TestAppendAndReadAt(t *testing.T) {
	dir := t.TempDir()
	seg, err := CreateActive(dir, 1)
	if err != nil {
		t.Fatalf("CreateActive: %v", err)
	}
	defer seg.Close()

	data := record.Encode(record.Record{Kind: record.KindSet, Key: []byte("k"), Value: []byte("v")})
	off, err := seg.Append(data)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if off != 0 {
		t.Fatalf("first Append offset = %d, want 0", off)
	}

	raw, err := seg.ReadAt(off, uint32(len(data)))
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	rec, err := record.DecodeExact(raw)
	if err != nil {
		t.Fatalf("DecodeExact: %v", err)
	}
	if string(rec.Key) != "k" || string(rec.Value) != "v" {
		t.Fatalf("decoded = %+v", rec)
	}
}

func TestReplayStopsCleanlyAtTruncatedTail(t *testing.T) {
	dir := t.TempDir()
	seg, err := CreateActive(dir, 1)
	if err != nil {
		t.Fatalf("CreateActive: %v", err)
	}

	good := record.Encode(record.Record{Kind: record.KindSet, Key: []byte("k1"), Value: []byte("v1")})
	if _, err := seg.Append(good); err != nil {
		t.Fatalf("Append: %v", err)
	}

	partial := record.Encode(record.Record{Kind: record.KindSet, Key: []byte("k2"), Value: []byte("v2")})
	partial = partial[:len(partial)-3]
	if _, err := seg.Append(partial); err != nil {
		t.Fatalf("Append partial: %v", err)
	}
	seg.Close()

	var entries []Entry
	endOffset, err := Replay(dir, 1, func(e Entry) error {
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay returned error for tail truncation: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Replay visited %d entries, want 1", len(entries))
	}
	if endOffset != int64(len(good)) {
		t.Fatalf("endOffset = %d, want %d", endOffset, len(good))
	}
}

func TestReplayFailsOnMidFileCorruption(t *testing.T) {
	dir := t.TempDir()
	seg, err := CreateActive(dir, 1)
	if err != nil {
		t.Fatalf("CreateActive: %v", err)
	}

	good := record.Encode(record.Record{Kind: record.KindSet, Key: []byte("k1"), Value: []byte("v1")})
	if _, err := seg.Append(good); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := seg.Append([]byte{0xFF, 0, 0, 0, 0}); err != nil {
		t.Fatalf("Append garbage: %v", err)
	}
	// Append one more well-formed record after the garbage so the failure
	// is mid-file, not a tail truncation.
	trailing := record.Encode(record.Record{Kind: record.KindSet, Key: []byte("k2"), Value: []byte("v2")})
	if _, err := seg.Append(trailing); err != nil {
		t.Fatalf("Append trailing: %v", err)
	}
	seg.Close()

	_, err = Replay(dir, 1, func(e Entry) error { return nil })
	if err == nil {
		t.Fatal("Replay succeeded on mid-file corruption, want error")
	}
}

func TestTruncate(t *testing.T) {
	dir := t.TempDir()
	seg, err := CreateActive(dir, 1)
	if err != nil {
		t.Fatalf("CreateActive: %v", err)
	}
	defer seg.Close()

	data := record.Encode(record.Record{Kind: record.KindSet, Key: []byte("k"), Value: []byte("v")})
	if _, err := seg.Append(data); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := seg.Truncate(0); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if seg.Size() != 0 {
		t.Fatalf("Size after Truncate(0) = %d, want 0", seg.Size())
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	seg, err := CreateActive(dir, 1)
	if err != nil {
		t.Fatalf("CreateActive: %v", err)
	}
	if err := seg.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := seg.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
