package searchindex

import (
	"log/slog"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func testIndex(t *testing.T, flush FlushFunc) *Index {
	t.Helper()
	return New(slog.New(slog.DiscardHandler), flush)
}

func TestUpsertAndLookup(t *testing.T) {
	flushes := 0
	x := testIndex(t, func() { flushes++ })

	if !x.Upsert("My Note", "Alpha BETA gamma content") {
		t.Fatal("first upsert should change the index")
	}
	got, ok := x.Lookup("  my   NOTE ")
	if !ok {
		t.Fatal("lookup miss after upsert")
	}
	if got != "alpha beta gamma content" {
		t.Fatalf("content = %q, want lowercased original", got)
	}
	if flushes != 1 {
		t.Fatalf("flushes = %d, want 1", flushes)
	}
}

func TestUpsertSkipsShortAndUntitled(t *testing.T) {
	x := testIndex(t, nil)
	if x.Upsert("", "plenty of content here") {
		t.Fatal("untitled content indexed")
	}
	if x.Upsert("Note", "tiny") {
		t.Fatal("content under the minimum length indexed")
	}
	if x.Len() != 0 {
		t.Fatalf("len = %d, want 0", x.Len())
	}
}

func TestUpsertIdenticalContentOnlyRefreshes(t *testing.T) {
	flushes := 0
	x := testIndex(t, func() { flushes++ })
	x.Upsert("Note", "stable content body")
	if x.Upsert("Note", "stable content body") {
		t.Fatal("identical re-index reported a change")
	}
	if flushes != 1 {
		t.Fatalf("flushes = %d, want 1 (no flush on identical content)", flushes)
	}
	if x.Upsert("Note", "different content body") {
		if flushes != 2 {
			t.Fatalf("flushes = %d, want 2 after real change", flushes)
		}
	} else {
		t.Fatal("changed content not re-indexed")
	}
}

func TestTruncatesLongContent(t *testing.T) {
	x := testIndex(t, nil)
	x.Upsert("Big", strings.Repeat("a", MaxContentChars+500))
	got, ok := x.Lookup("Big")
	if !ok {
		t.Fatal("lookup miss")
	}
	if len(got) != MaxContentChars {
		t.Fatalf("stored length = %d, want %d", len(got), MaxContentChars)
	}
}

func TestTruncatesOnRunesNotBytes(t *testing.T) {
	x := testIndex(t, nil)
	x.Upsert("Wide", strings.Repeat("ü", MaxContentChars+500))
	got, ok := x.Lookup("Wide")
	if !ok {
		t.Fatal("lookup miss")
	}
	if !utf8.ValidString(got) {
		t.Fatal("truncation split a multi-byte rune")
	}
	if n := utf8.RuneCountInString(got); n != MaxContentChars {
		t.Fatalf("stored rune count = %d, want %d", n, MaxContentChars)
	}
}

func TestEvictsLeastRecentlyAccessed(t *testing.T) {
	x := testIndex(t, nil)
	clock := time.Unix(1000, 0)
	x.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	// Incompressible payloads so each entry actually occupies real bytes.
	payload := func(seed byte) string {
		b := make([]byte, 800*1024)
		state := uint32(seed) + 1
		for i := range b {
			state = state*1664525 + 1013904223
			b[i] = byte('a' + (state>>24)%26)
		}
		return string(b)
	}
	x.Upsert("oldest", payload(1))
	x.Upsert("middle", payload(2))
	x.Lookup("oldest") // refresh: middle is now the LRU entry
	x.Upsert("newest", payload(3))

	if x.Size() > MaxIndexBytes {
		t.Fatalf("size = %d exceeds ceiling %d", x.Size(), MaxIndexBytes)
	}
	if x.Contains("middle") {
		t.Fatal("least-recently-accessed entry survived eviction")
	}
	if !x.Contains("oldest") || !x.Contains("newest") {
		t.Fatal("recently accessed entries were evicted")
	}
}

func TestClear(t *testing.T) {
	x := testIndex(t, nil)
	x.Upsert("Note", "some indexed content")
	x.Clear()
	if x.Len() != 0 || x.Size() != 0 {
		t.Fatalf("after clear: len=%d size=%d", x.Len(), x.Size())
	}
}

func TestLoadRoundTrip(t *testing.T) {
	x := testIndex(t, nil)
	x.Upsert("First", "first note content")
	x.Upsert("Second", "second note content")

	y := testIndex(t, nil)
	y.Load(x.Export())
	if y.Len() != 2 || y.Size() != x.Size() {
		t.Fatalf("loaded len=%d size=%d, want len=2 size=%d", y.Len(), y.Size(), x.Size())
	}
	got, ok := y.Lookup("first")
	if !ok || got != "first note content" {
		t.Fatalf("lookup after load = %q, %v", got, ok)
	}
}

func TestLookupCorruptPayloadPassesThrough(t *testing.T) {
	x := testIndex(t, nil)
	x.Load(map[string]Entry{"broken": {Compressed: []byte("not deflate data")}})
	got, ok := x.Lookup("broken")
	if !ok {
		t.Fatal("corrupt entry dropped instead of passed through")
	}
	if got != "not deflate data" {
		t.Fatalf("passthrough = %q", got)
	}
}
