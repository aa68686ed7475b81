package tf

import (
	"fmt"
	"math"
	"time"
)

// DefaultRotationTolerance is how far a rotation's norm may stray from 1
// before the record is rejected as malformed.
const DefaultRotationTolerance = 1e-3

// Record is an immutable snapshot of the transform between a child frame and
// its parent frame at one instant. The Transform maps child-frame coordinates
// into the parent frame. A zero Stamp is the "latest available" sentinel on
// queries; stored records always carry a concrete stamp.
type Record struct {
	Parent string
	Child  string
	Stamp  time.Time
	Transform
}

// Validate checks the record against the ingestion constraints: both frame
// identifiers present and distinct, all components finite, and the rotation a
// unit quaternion within tol. A tol of zero uses DefaultRotationTolerance.
func (r Record) Validate(tol float64) error {
	if tol <= 0 {
		tol = DefaultRotationTolerance
	}
	if r.Parent == "" || r.Child == "" {
		return fmt.Errorf("%w: missing frame identifier (parent=%q child=%q)", ErrInvalidRecord, r.Parent, r.Child)
	}
	if r.Parent == r.Child {
		return fmt.Errorf("%w: frame %q cannot be its own parent", ErrInvalidRecord, r.Child)
	}
	for _, v := range []float64{
		r.Translation.X, r.Translation.Y, r.Translation.Z,
		r.Rotation.X, r.Rotation.Y, r.Rotation.Z, r.Rotation.W,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite component in %s -> %s", ErrInvalidRecord, r.Parent, r.Child)
		}
	}
	if n := r.Rotation.Norm(); math.Abs(n-1) > tol {
		return fmt.Errorf("%w: rotation norm %.6g outside unit tolerance %.2g on %s -> %s",
			ErrInvalidRecord, n, tol, r.Parent, r.Child)
	}
	return nil
}

// Inverse returns the record describing the reverse edge: parent and child
// swapped, transform inverted, stamp unchanged.
func (r Record) Inverse() Record {
	return Record{
		Parent:    r.Child,
		Child:     r.Parent,
		Stamp:     r.Stamp,
		Transform: r.Transform.Inverse(),
	}
}

func (r Record) String() string {
	return fmt.Sprintf("%s -> %s @ %s t=(%.3f, %.3f, %.3f) q=(%.3f, %.3f, %.3f, %.3f)",
		r.Parent, r.Child, r.Stamp.Format(time.RFC3339Nano),
		r.Translation.X, r.Translation.Y, r.Translation.Z,
		r.Rotation.X, r.Rotation.Y, r.Rotation.Z, r.Rotation.W)
}
