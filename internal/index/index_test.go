package index

import (
	"sync"
	"testing"
)

func newTestIndex() *Index {
	return New(&Config{})
}

func TestGetMissing(t *testing.T) {
	idx := newTestIndex()
	if _, ok := idx.Get("missing"); ok {
		t.Fatal("Get on empty index returned ok=true")
	}
}

func TestInsertThenGet(t *testing.T) {
	idx := newTestIndex()
	loc := Location{Generation: 1, Offset: 10, Length: 20}

	prev, existed := idx.Insert("k", loc)
	if existed {
		t.Fatalf("Insert reported existed=true on first insert, prev=%+v", prev)
	}

	got, ok := idx.Get("k")
	if !ok || got != loc {
		t.Fatalf("Get = %+v, %v; want %+v, true", got, ok, loc)
	}
}

func TestInsertReplacesPrevious(t *testing.T) {
	idx := newTestIndex()
	first := Location{Generation: 1, Offset: 0, Length: 10}
	second := Location{Generation: 1, Offset: 10, Length: 15}

	idx.Insert("k", first)
	prev, existed := idx.Insert("k", second)
	if !existed || prev != first {
		t.Fatalf("Insert prev=%+v existed=%v, want %+v true", prev, existed, first)
	}

	got, _ := idx.Get("k")
	if got != second {
		t.Fatalf("Get after replace = %+v, want %+v", got, second)
	}
}

func TestDeleteRemovesEntry(t *testing.T) {
	idx := newTestIndex()
	loc := Location{Generation: 1, Offset: 0, Length: 5}
	idx.Insert("k", loc)

	prev, existed := idx.Delete("k")
	if !existed || prev != loc {
		t.Fatalf("Delete = %+v, %v; want %+v, true", prev, existed, loc)
	}

	if _, ok := idx.Get("k"); ok {
		t.Fatal("key still present after Delete")
	}
}

func TestDeleteMissingReportsNotExisted(t *testing.T) {
	idx := newTestIndex()
	if _, existed := idx.Delete("missing"); existed {
		t.Fatal("Delete on absent key reported existed=true")
	}
}

func TestScanVisitsEveryLiveEntry(t *testing.T) {
	idx := newTestIndex()
	want := map[string]Location{
		"a": {Generation: 1, Offset: 0, Length: 1},
		"b": {Generation: 1, Offset: 1, Length: 1},
		"c": {Generation: 1, Offset: 2, Length: 1},
	}
	for k, loc := range want {
		idx.Insert(k, loc)
	}
	idx.Delete("b")
	delete(want, "b")

	got := map[string]Location{}
	idx.Scan(func(e Entry) bool {
		got[e.Key] = e.Location
		return true
	})

	if len(got) != len(want) {
		t.Fatalf("Scan visited %d entries, want %d", len(got), len(want))
	}
	for k, loc := range want {
		if got[k] != loc {
			t.Fatalf("Scan entry %q = %+v, want %+v", k, got[k], loc)
		}
	}
}

func TestConcurrentInsertsAllSurvive(t *testing.T) {
	idx := newTestIndex()
	const n = 200

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i%26))
			idx.Insert(key+string(rune(i)), Location{Generation: 1, Offset: int64(i), Length: 1})
		}(i)
	}
	wg.Wait()

	if idx.Len() != n {
		t.Fatalf("Len() = %d, want %d", idx.Len(), n)
	}
}
