package tf

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultCacheDuration is the retention window for dynamic edge buffers.
const DefaultCacheDuration = 10 * time.Second

// Buffer holds the time-ordered history of one parent->child edge. A dynamic
// buffer keeps a sorted slice of records bounded by the retention window; a
// static buffer latches a single record that answers every query time.
//
// Each buffer carries its own lock so inserts on one edge never stall queries
// or inserts on unrelated edges.
type Buffer struct {
	parent        string
	child         string
	static        bool
	cacheDuration time.Duration

	mu      sync.RWMutex
	records []Record // ascending by Stamp
}

func newBuffer(parent, child string, static bool, cacheDuration time.Duration) *Buffer {
	if cacheDuration <= 0 {
		cacheDuration = DefaultCacheDuration
	}
	return &Buffer{
		parent:        parent,
		child:         child,
		static:        static,
		cacheDuration: cacheDuration,
	}
}

// Parent returns the parent frame identifier of the edge.
func (b *Buffer) Parent() string { return b.parent }

// Child returns the child frame identifier of the edge.
func (b *Buffer) Child() string { return b.child }

// IsStatic reports whether the buffer latches a single timeless record.
func (b *Buffer) IsStatic() bool { return b.static }

// Len returns the number of stored records.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records)
}

// Span returns the oldest and newest stored stamps. ok is false when the
// buffer is empty.
func (b *Buffer) Span() (oldest, newest time.Time, ok bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.records) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return b.records[0].Stamp, b.records[len(b.records)-1].Stamp, true
}

// Insert appends a record to the history. A static buffer replaces its single
// latched record. A dynamic buffer accepts any stamp within the retention
// window measured from the newest stored record, keeps the slice sorted, and
// evicts the prefix that falls out of the window. Stamps older than the
// window, or duplicating a stored stamp with different values, fail with
// ErrOutOfOrder and leave the stored history untouched.
func (b *Buffer) Insert(rec Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.static {
		if len(b.records) == 0 {
			b.records = append(b.records, rec)
		} else {
			b.records[0] = rec
		}
		return nil
	}

	n := len(b.records)
	if n > 0 {
		horizon := b.records[n-1].Stamp.Add(-b.cacheDuration)
		if rec.Stamp.Before(horizon) {
			return fmt.Errorf("%w: %s -> %s stamp %s predates retention horizon %s",
				ErrOutOfOrder, b.parent, b.child,
				rec.Stamp.Format(time.RFC3339Nano), horizon.Format(time.RFC3339Nano))
		}
	}

	i := sort.Search(n, func(i int) bool { return !b.records[i].Stamp.Before(rec.Stamp) })
	if i < n && b.records[i].Stamp.Equal(rec.Stamp) {
		if b.records[i].Transform == rec.Transform {
			return nil
		}
		return fmt.Errorf("%w: %s -> %s duplicate stamp %s with different values",
			ErrOutOfOrder, b.parent, b.child, rec.Stamp.Format(time.RFC3339Nano))
	}

	b.records = append(b.records, Record{})
	copy(b.records[i+1:], b.records[i:])
	b.records[i] = rec
	b.evictLocked()
	return nil
}

// evictLocked drops every record older than newest - cacheDuration. Only the
// expired prefix is scanned, so insert stays O(1) amortized.
func (b *Buffer) evictLocked() {
	horizon := b.records[len(b.records)-1].Stamp.Add(-b.cacheDuration)
	i := 0
	for i < len(b.records) && b.records[i].Stamp.Before(horizon) {
		i++
	}
	if i > 0 {
		b.records = append(b.records[:0], b.records[i:]...)
	}
}

// Query resolves the edge transform at the requested time.
//
// A static buffer returns its latched record for any time. A zero time is the
// "latest" sentinel and returns the newest record verbatim. An exact stamp
// match returns the stored record verbatim. A time strictly between two
// stored stamps returns a synthetic interpolated record. Times outside the
// stored span fail with ErrExtrapolation, and an empty buffer with ErrNoData.
func (b *Buffer) Query(at time.Time) (Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := len(b.records)
	if n == 0 {
		return Record{}, fmt.Errorf("%w: %s -> %s", ErrNoData, b.parent, b.child)
	}
	if b.static || at.IsZero() {
		return b.records[n-1], nil
	}

	i := sort.Search(n, func(i int) bool { return !b.records[i].Stamp.Before(at) })
	if i < n && b.records[i].Stamp.Equal(at) {
		return b.records[i], nil
	}
	if i == 0 {
		return Record{}, fmt.Errorf("%w: %s -> %s queried at %s but oldest stored is %s",
			ErrExtrapolation, b.parent, b.child,
			at.Format(time.RFC3339Nano), b.records[0].Stamp.Format(time.RFC3339Nano))
	}
	if i == n {
		return Record{}, fmt.Errorf("%w: %s -> %s queried at %s but newest stored is %s",
			ErrExtrapolation, b.parent, b.child,
			at.Format(time.RFC3339Nano), b.records[n-1].Stamp.Format(time.RFC3339Nano))
	}

	lo, hi := b.records[i-1], b.records[i]
	s := float64(at.Sub(lo.Stamp)) / float64(hi.Stamp.Sub(lo.Stamp))
	return Record{
		Parent:    b.parent,
		Child:     b.child,
		Stamp:     at,
		Transform: Interpolate(lo.Transform, hi.Transform, s),
	}, nil
}
