package tf

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/spatial/r3"
)

// ts builds a stamp at the given number of seconds past the unix epoch.
func ts(sec float64) time.Time {
	return time.Unix(0, int64(sec*float64(time.Second)))
}

func edgeRecord(parent, child string, sec, x float64) Record {
	return Record{
		Parent:    parent,
		Child:     child,
		Stamp:     ts(sec),
		Transform: Transform{Translation: r3.Vec{X: x}, Rotation: IdentityRotation()},
	}
}

func newTestBuffer() *Buffer {
	return newBuffer("world", "base_link", false, DefaultCacheDuration)
}

func TestBufferQueryEmpty(t *testing.T) {
	buf := newTestBuffer()
	if _, err := buf.Query(ts(1)); !errors.Is(err, ErrNoData) {
		t.Errorf("Query on empty buffer = %v, want ErrNoData", err)
	}
}

func TestBufferExactMatchReturnsVerbatim(t *testing.T) {
	buf := newTestBuffer()
	rec := edgeRecord("world", "base_link", 5, 1.25)
	if err := buf.Insert(rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := buf.Query(ts(5))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if diff := cmp.Diff(rec, got); diff != "" {
		t.Errorf("exact-match query drifted (-want +got):\n%s", diff)
	}
}

func TestBufferSingleRecordExtrapolation(t *testing.T) {
	buf := newTestBuffer()
	if err := buf.Insert(edgeRecord("world", "base_link", 5, 1)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if _, err := buf.Query(ts(5)); err != nil {
		t.Errorf("query at the stored stamp should succeed, got %v", err)
	}
	if _, err := buf.Query(ts(6)); !errors.Is(err, ErrExtrapolation) {
		t.Errorf("query past newest = %v, want ErrExtrapolation", err)
	}
	if _, err := buf.Query(ts(4)); !errors.Is(err, ErrExtrapolation) {
		t.Errorf("query before oldest = %v, want ErrExtrapolation", err)
	}
}

func TestBufferInterpolation(t *testing.T) {
	buf := newTestBuffer()
	if err := buf.Insert(edgeRecord("world", "base_link", 1, 1)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := buf.Insert(edgeRecord("world", "base_link", 2, 2)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := buf.Query(ts(1.5))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	vecNear(t, got.Translation, r3.Vec{X: 1.5}, floatTolerance)
	if got.Parent != "world" || got.Child != "base_link" {
		t.Errorf("synthetic record frames = %s -> %s", got.Parent, got.Child)
	}
	if !got.Stamp.Equal(ts(1.5)) {
		t.Errorf("synthetic record stamp = %v, want %v", got.Stamp, ts(1.5))
	}
}

func TestBufferLatestSentinel(t *testing.T) {
	buf := newTestBuffer()
	newest := edgeRecord("world", "base_link", 3, 7)
	for _, rec := range []Record{
		edgeRecord("world", "base_link", 1, 1),
		edgeRecord("world", "base_link", 2, 4),
		newest,
	} {
		if err := buf.Insert(rec); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	got, err := buf.Query(time.Time{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if diff := cmp.Diff(newest, got); diff != "" {
		t.Errorf("latest query (-want +got):\n%s", diff)
	}
}

func TestBufferStaticIgnoresTime(t *testing.T) {
	buf := newBuffer("base_link", "lidar", true, DefaultCacheDuration)
	rec := edgeRecord("base_link", "lidar", 1, 0.5)
	if err := buf.Insert(rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	for _, at := range []time.Time{{}, ts(0.001), ts(1e6)} {
		got, err := buf.Query(at)
		if err != nil {
			t.Fatalf("Query(%v): %v", at, err)
		}
		vecNear(t, got.Translation, r3.Vec{X: 0.5}, floatTolerance)
	}

	// Re-broadcast replaces the latched record.
	if err := buf.Insert(edgeRecord("base_link", "lidar", 2, 0.75)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := buf.Query(time.Time{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	vecNear(t, got.Translation, r3.Vec{X: 0.75}, floatTolerance)
	if buf.Len() != 1 {
		t.Errorf("static buffer holds %d records, want 1", buf.Len())
	}
}

func TestBufferEvictionOnInsert(t *testing.T) {
	buf := newBuffer("world", "base_link", false, time.Second)
	for sec := 0.0; sec <= 2.0; sec++ {
		if err := buf.Insert(edgeRecord("world", "base_link", sec, sec)); err != nil {
			t.Fatalf("Insert(%v): %v", sec, err)
		}
	}

	if buf.Len() != 2 {
		t.Fatalf("after eviction Len() = %d, want 2", buf.Len())
	}
	oldest, newest, ok := buf.Span()
	if !ok || !oldest.Equal(ts(1)) || !newest.Equal(ts(2)) {
		t.Errorf("Span() = %v..%v, want %v..%v", oldest, newest, ts(1), ts(2))
	}
	if _, err := buf.Query(ts(0.5)); !errors.Is(err, ErrExtrapolation) {
		t.Errorf("query into evicted history = %v, want ErrExtrapolation", err)
	}
}

func TestBufferRejectsStampBeyondRetention(t *testing.T) {
	buf := newBuffer("world", "base_link", false, time.Second)
	if err := buf.Insert(edgeRecord("world", "base_link", 10, 1)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	err := buf.Insert(edgeRecord("world", "base_link", 8.5, 2))
	if !errors.Is(err, ErrOutOfOrder) {
		t.Fatalf("stale insert = %v, want ErrOutOfOrder", err)
	}

	// The stored history must be untouched by the rejected insert.
	got, err := buf.Query(ts(10))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	vecNear(t, got.Translation, r3.Vec{X: 1}, floatTolerance)
	if buf.Len() != 1 {
		t.Errorf("Len() = %d after rejected insert, want 1", buf.Len())
	}
}

func TestBufferOutOfOrderWithinWindow(t *testing.T) {
	buf := newTestBuffer()
	for _, sec := range []float64{1, 3, 2} {
		if err := buf.Insert(edgeRecord("world", "base_link", sec, sec)); err != nil {
			t.Fatalf("Insert(%v): %v", sec, err)
		}
	}

	got, err := buf.Query(ts(2.5))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	vecNear(t, got.Translation, r3.Vec{X: 2.5}, floatTolerance)
}

func TestBufferDuplicateStamp(t *testing.T) {
	buf := newTestBuffer()
	rec := edgeRecord("world", "base_link", 1, 1)
	if err := buf.Insert(rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if err := buf.Insert(rec); err != nil {
		t.Errorf("identical duplicate insert = %v, want nil no-op", err)
	}
	if buf.Len() != 1 {
		t.Errorf("Len() = %d after duplicate no-op, want 1", buf.Len())
	}

	conflicting := edgeRecord("world", "base_link", 1, 9)
	if err := buf.Insert(conflicting); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("conflicting duplicate insert = %v, want ErrOutOfOrder", err)
	}
}

func TestBufferSeedAcceptsAnyStamp(t *testing.T) {
	buf := newBuffer("world", "base_link", false, time.Second)
	if err := buf.Insert(edgeRecord("world", "base_link", 1e6, 1)); err != nil {
		t.Errorf("seeding an empty buffer failed: %v", err)
	}
}
