package tf

import "errors"

// Error kinds returned by the tree and its buffers. Callers match them with
// errors.Is; the wrapped messages carry the edge and timing detail.
var (
	// ErrNoData marks a query against an edge that has never stored a record.
	ErrNoData = errors.New("tf: no transform data")

	// ErrExtrapolation marks a query time outside an edge's stored history,
	// either older than the retained window or ahead of the newest record.
	ErrExtrapolation = errors.New("tf: time outside stored history")

	// ErrConnectivity marks a lookup between frames with no common ancestor.
	ErrConnectivity = errors.New("tf: frames are not connected")

	// ErrOutOfOrder marks an insert whose stamp violates the buffer's
	// monotonicity or retention constraint.
	ErrOutOfOrder = errors.New("tf: transform out of order")

	// ErrStructuralConflict marks an edge registration that would give a
	// frame a second parent or close a cycle.
	ErrStructuralConflict = errors.New("tf: conflicting frame tree edge")

	// ErrInvalidRecord marks a malformed record on ingestion or broadcast.
	ErrInvalidRecord = errors.New("tf: invalid transform record")
)
