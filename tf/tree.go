package tf

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// TreeConfig tunes a frame tree. Zero values select defaults.
type TreeConfig struct {
	// CacheDuration is the retention window applied to every dynamic edge
	// buffer. Defaults to DefaultCacheDuration.
	CacheDuration time.Duration

	// RotationTolerance bounds how far an ingested rotation's norm may stray
	// from 1. Defaults to DefaultRotationTolerance.
	RotationTolerance float64
}

// Tree maintains the parent relationship and transform history of every known
// frame. Each child frame has exactly one parent buffer; the child->buffer
// map is guarded separately from buffer contents so that discovering a new
// edge does not serialize against steady-state inserts on existing edges.
type Tree struct {
	cacheDuration time.Duration
	tolerance     float64

	mu    sync.RWMutex
	edges map[string]*Buffer // child frame -> buffer holding its parent edge
}

// NewTree creates an empty frame tree.
func NewTree(cfg TreeConfig) *Tree {
	if cfg.CacheDuration <= 0 {
		cfg.CacheDuration = DefaultCacheDuration
	}
	if cfg.RotationTolerance <= 0 {
		cfg.RotationTolerance = DefaultRotationTolerance
	}
	return &Tree{
		cacheDuration: cfg.CacheDuration,
		tolerance:     cfg.RotationTolerance,
		edges:         make(map[string]*Buffer),
	}
}

// SetTransform validates rec and inserts it into the buffer for its edge,
// creating the buffer on first observation of the child frame. A record that
// would give the child a different parent, flip the edge's static flag, or
// close a cycle fails with ErrStructuralConflict. The rotation is normalized
// before storage.
func (t *Tree) SetTransform(rec Record, static bool) error {
	if err := rec.Validate(t.tolerance); err != nil {
		return err
	}
	rec.Rotation = rec.Rotation.Normalize()

	t.mu.RLock()
	buf := t.edges[rec.Child]
	t.mu.RUnlock()

	if buf == nil {
		var err error
		if buf, err = t.registerEdge(rec, static); err != nil {
			return err
		}
	} else if err := checkEdgeCompatible(buf, rec, static); err != nil {
		return err
	}
	return buf.Insert(rec)
}

func checkEdgeCompatible(buf *Buffer, rec Record, static bool) error {
	if buf.parent != rec.Parent {
		return fmt.Errorf("%w: frame %q already has parent %q, rejecting parent %q",
			ErrStructuralConflict, rec.Child, buf.parent, rec.Parent)
	}
	if buf.static != static {
		return fmt.Errorf("%w: edge %s -> %s registered with static=%v",
			ErrStructuralConflict, rec.Parent, rec.Child, buf.static)
	}
	return nil
}

// registerEdge creates the buffer for a newly observed child frame under the
// structural lock, rejecting edges that would close a cycle.
func (t *Tree) registerEdge(rec Record, static bool) (*Buffer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if buf, ok := t.edges[rec.Child]; ok {
		// Lost a registration race; the existing buffer decides.
		if err := checkEdgeCompatible(buf, rec, static); err != nil {
			return nil, err
		}
		return buf, nil
	}

	// Walking up from the proposed parent must never reach the child.
	for cur := rec.Parent; ; {
		b, ok := t.edges[cur]
		if !ok {
			break
		}
		if b.parent == rec.Child {
			return nil, fmt.Errorf("%w: edge %s -> %s would close a cycle",
				ErrStructuralConflict, rec.Parent, rec.Child)
		}
		cur = b.parent
	}

	buf := newBuffer(rec.Parent, rec.Child, static, t.cacheDuration)
	t.edges[rec.Child] = buf
	return buf, nil
}

// ParentOf returns the recorded parent of frame. ok is false when the frame
// has never been observed as a child.
func (t *Tree) ParentOf(frame string) (parent string, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	buf, ok := t.edges[frame]
	if !ok {
		return "", false
	}
	return buf.parent, true
}

// pathToRoot returns the edge buffers from frame up to the root of its
// connected component, ordered frame-outward.
func (t *Tree) pathToRoot(frame string) []*Buffer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var path []*Buffer
	for cur := frame; ; {
		buf, ok := t.edges[cur]
		if !ok {
			return path
		}
		path = append(path, buf)
		cur = buf.parent
	}
}

// LookupTransform resolves the transform between two frames at the given
// time, returning the pose of `to` expressed in `from` coordinates: applying
// the result maps points in the `to` frame into the `from` frame. A zero time
// requests the latest available data on every edge in the chain.
//
// The two frames are walked to their lowest common ancestor and the per-edge
// query results composed; any per-edge failure (ErrNoData, ErrExtrapolation)
// aborts the lookup and propagates unchanged. Frames in disjoint components
// fail with ErrConnectivity.
func (t *Tree) LookupTransform(from, to string, at time.Time) (Record, error) {
	if from == to {
		return Record{Parent: from, Child: to, Stamp: at, Transform: Identity()}, nil
	}

	fromPath := t.pathToRoot(from)
	toPath := t.pathToRoot(to)

	// Edges to climb on each side to reach the first shared ancestor.
	fromIndex := map[string]int{from: 0}
	for i, b := range fromPath {
		fromIndex[b.parent] = i + 1
	}
	fromEdges, toEdges := -1, -1
	if n, ok := fromIndex[to]; ok {
		fromEdges, toEdges = n, 0
	} else {
		for i, b := range toPath {
			if n, ok := fromIndex[b.parent]; ok {
				fromEdges, toEdges = n, i+1
				break
			}
		}
	}
	if fromEdges < 0 {
		return Record{}, fmt.Errorf("%w: no common ancestor between %q and %q; known frames: %s",
			ErrConnectivity, from, to, strings.Join(t.FrameNames(), ", "))
	}

	fromToAncestor, err := composeChain(fromPath[:fromEdges], at)
	if err != nil {
		return Record{}, err
	}
	toToAncestor, err := composeChain(toPath[:toEdges], at)
	if err != nil {
		return Record{}, err
	}

	return Record{
		Parent:    from,
		Child:     to,
		Stamp:     at,
		Transform: fromToAncestor.Inverse().Mul(toToAncestor),
	}, nil
}

// composeChain accumulates the child->parent edge transforms along a path
// walked toward the root, yielding the transform from the path's first child
// frame into its last parent frame.
func composeChain(path []*Buffer, at time.Time) (Transform, error) {
	acc := Identity()
	for _, buf := range path {
		rec, err := buf.Query(at)
		if err != nil {
			return Transform{}, err
		}
		acc = rec.Transform.Mul(acc)
	}
	return acc, nil
}

// LookupTransformFull resolves `from` at fromTime against `to` at a possibly
// different toTime by bridging both lookups through fixed, a frame assumed
// valid at both times. It is LookupTransform run once per time and combined
// through the fixed frame.
func (t *Tree) LookupTransformFull(from string, fromTime time.Time, to string, toTime time.Time, fixed string) (Record, error) {
	tf1, err := t.LookupTransform(from, fixed, fromTime)
	if err != nil {
		return Record{}, err
	}
	tf2, err := t.LookupTransform(to, fixed, toTime)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Parent:    from,
		Child:     to,
		Stamp:     fromTime,
		Transform: tf2.Transform.Mul(tf1.Transform.Inverse()),
	}, nil
}

// CanTransform reports whether LookupTransform would succeed for the given
// frames and time.
func (t *Tree) CanTransform(from, to string, at time.Time) bool {
	_, err := t.LookupTransform(from, to, at)
	return err == nil
}

// FrameNames returns every known frame identifier, sorted.
func (t *Tree) FrameNames() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	seen := make(map[string]struct{}, len(t.edges)*2)
	for child, buf := range t.edges {
		seen[child] = struct{}{}
		seen[buf.parent] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AllFramesAsString renders the parent relationship of every known frame,
// one line per child, for diagnostics.
func (t *Tree) AllFramesAsString() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	children := make([]string, 0, len(t.edges))
	for child := range t.edges {
		children = append(children, child)
	}
	sort.Strings(children)
	var sb strings.Builder
	for _, child := range children {
		fmt.Fprintf(&sb, "frame %s exists with parent %s\n", child, t.edges[child].parent)
	}
	return sb.String()
}
