package tf

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// slerpDotThreshold is the dot product above which two rotations are treated
// as coincident and spherical interpolation falls back to a linear blend.
const slerpDotThreshold = 1.0 - 1e-9

// Rotation is a quaternion in (x, y, z, w) component order. Rotations stored
// in the tree are unit quaternions; Normalize enforces that on ingestion.
type Rotation struct {
	X, Y, Z, W float64
}

// IdentityRotation returns the no-op rotation.
func IdentityRotation() Rotation {
	return Rotation{W: 1}
}

func (r Rotation) number() quat.Number {
	return quat.Number{Real: r.W, Imag: r.X, Jmag: r.Y, Kmag: r.Z}
}

func rotationFromNumber(q quat.Number) Rotation {
	return Rotation{X: q.Imag, Y: q.Jmag, Z: q.Kmag, W: q.Real}
}

// Norm returns the quaternion magnitude.
func (r Rotation) Norm() float64 {
	return quat.Abs(r.number())
}

// Normalize returns r scaled to unit length. A zero quaternion normalizes to
// the identity rotation rather than propagating NaNs.
func (r Rotation) Normalize() Rotation {
	n := r.Norm()
	if n == 0 {
		return IdentityRotation()
	}
	return Rotation{X: r.X / n, Y: r.Y / n, Z: r.Z / n, W: r.W / n}
}

// Dot returns the four-component dot product with o.
func (r Rotation) Dot(o Rotation) float64 {
	return r.X*o.X + r.Y*o.Y + r.Z*o.Z + r.W*o.W
}

// Mul composes rotations: (r.Mul(o)).Rotate(v) == r.Rotate(o.Rotate(v)).
func (r Rotation) Mul(o Rotation) Rotation {
	return rotationFromNumber(quat.Mul(r.number(), o.number()))
}

// Inverse returns the reverse rotation. Valid for unit quaternions, where the
// inverse is the conjugate.
func (r Rotation) Inverse() Rotation {
	return rotationFromNumber(quat.Conj(r.number()))
}

// Rotate applies the rotation to v via the sandwich product q v q*.
func (r Rotation) Rotate(v r3.Vec) r3.Vec {
	q := r.number()
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	out := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vec{X: out.Imag, Y: out.Jmag, Z: out.Kmag}
}

func (r Rotation) negated() Rotation {
	return Rotation{X: -r.X, Y: -r.Y, Z: -r.Z, W: -r.W}
}

// Slerp interpolates from r toward o along the shortest great-circle arc.
// s=0 yields r and s=1 yields o. When the quaternions lie in opposite
// hemispheres one operand is negated so the short path is taken, and when the
// angular distance is near zero the result degrades to a normalized linear
// blend to avoid dividing by a vanishing sine.
func (r Rotation) Slerp(o Rotation, s float64) Rotation {
	d := r.Dot(o)
	if d < 0 {
		o = o.negated()
		d = -d
	}
	if d > slerpDotThreshold {
		return Rotation{
			X: r.X + s*(o.X-r.X),
			Y: r.Y + s*(o.Y-r.Y),
			Z: r.Z + s*(o.Z-r.Z),
			W: r.W + s*(o.W-r.W),
		}.Normalize()
	}
	theta := math.Acos(math.Min(d, 1))
	sinTheta := math.Sin(theta)
	wa := math.Sin((1-s)*theta) / sinTheta
	wb := math.Sin(s*theta) / sinTheta
	return Rotation{
		X: wa*r.X + wb*o.X,
		Y: wa*r.Y + wb*o.Y,
		Z: wa*r.Z + wb*o.Z,
		W: wa*r.W + wb*o.W,
	}.Normalize()
}

// Transform is a rigid transform mapping coordinates in a child frame into
// its parent frame: rotate, then translate.
type Transform struct {
	Translation r3.Vec
	Rotation    Rotation
}

// Identity returns the transform that maps every point to itself.
func Identity() Transform {
	return Transform{Rotation: IdentityRotation()}
}

// Mul composes transforms: (a.Mul(b)).Apply(v) == a.Apply(b.Apply(v)).
func (t Transform) Mul(o Transform) Transform {
	return Transform{
		Translation: r3.Add(t.Translation, t.Rotation.Rotate(o.Translation)),
		Rotation:    t.Rotation.Mul(o.Rotation),
	}
}

// Inverse returns the transform mapping parent coordinates back into the
// child frame.
func (t Transform) Inverse() Transform {
	inv := t.Rotation.Inverse()
	return Transform{
		Translation: r3.Scale(-1, inv.Rotate(t.Translation)),
		Rotation:    inv,
	}
}

// Apply maps a point from the child frame into the parent frame.
func (t Transform) Apply(v r3.Vec) r3.Vec {
	return r3.Add(t.Rotation.Rotate(v), t.Translation)
}

// Interpolate blends a toward b by fraction s in [0,1]: translation is
// interpolated component-wise, rotation along the shortest arc.
func Interpolate(a, b Transform, s float64) Transform {
	return Transform{
		Translation: r3.Add(r3.Scale(1-s, a.Translation), r3.Scale(s, b.Translation)),
		Rotation:    a.Rotation.Slerp(b.Rotation, s),
	}
}
