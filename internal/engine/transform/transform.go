// Package transform provides object transforms and an index-addressed
// transform hierarchy.
package transform

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Default orientation axes of a freshly created transform.
var (
	DefaultView  = mgl32.Vec3{0, 0, -1}
	DefaultUp    = mgl32.Vec3{0, 1, 0}
	DefaultRight = mgl32.Vec3{1, 0, 0}
)

// Transform is a position, scale and orthonormal orientation basis.
//
// Orientation is stored as the three axes rather than as angles; Rotation
// only records the Euler angles (degrees) applied through ApplyEulerDegrees.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Vec3
	Scale    mgl32.Vec3

	View  mgl32.Vec3
	Up    mgl32.Vec3
	Right mgl32.Vec3
}

// New returns an identity transform.
func New() Transform {
	return Transform{
		Scale: mgl32.Vec3{1, 1, 1},
		View:  DefaultView,
		Up:    DefaultUp,
		Right: DefaultRight,
	}
}

// At returns an identity transform moved to position.
func At(position mgl32.Vec3) Transform {
	t := New()
	t.Position = position
	return t
}

// RotationMatrix returns the orientation basis as a matrix. Columns are
// right, up and backward (-view).
func (t Transform) RotationMatrix() mgl32.Mat4 {
	back := t.View.Mul(-1)
	return mgl32.Mat4{
		t.Right[0], t.Right[1], t.Right[2], 0,
		t.Up[0], t.Up[1], t.Up[2], 0,
		back[0], back[1], back[2], 0,
		0, 0, 0, 1,
	}
}

// Matrix returns translate(position) * rotate * scale(scale).
func (t Transform) Matrix() mgl32.Mat4 {
	tr := mgl32.Translate3D(t.Position[0], t.Position[1], t.Position[2])
	sc := mgl32.Scale3D(t.Scale[0], t.Scale[1], t.Scale[2])
	return tr.Mul4(t.RotationMatrix()).Mul4(sc)
}

// RotateAroundVec rotates the position around pivot by angle radians about
// axis, and rotates the orientation axes by the same rotation. Both the
// position and the orientation accumulate across calls.
func (t *Transform) RotateAroundVec(axis mgl32.Vec3, angle float32, pivot mgl32.Vec3) {
	if axis.Len() == 0 {
		return
	}
	q := mgl32.QuatRotate(angle, axis.Normalize())

	t.Position = pivot.Add(q.Rotate(t.Position.Sub(pivot)))
	t.View = q.Rotate(t.View).Normalize()
	t.Up = q.Rotate(t.Up).Normalize()
	t.Right = q.Rotate(t.Right).Normalize()
}

// RotateAround rotates the transform about axis through its own position.
func (t *Transform) RotateAround(axis mgl32.Vec3, angle float32) {
	t.RotateAroundVec(axis, angle, t.Position)
}

// ApplyEulerDegrees rotates about the world origin by -z around Z, then y
// around Y, then x around X, and records the angles in Rotation.
func (t *Transform) ApplyEulerDegrees(x, y, z float32) {
	var origin mgl32.Vec3
	t.RotateAroundVec(mgl32.Vec3{0, 0, 1}, mgl32.DegToRad(-z), origin)
	t.RotateAroundVec(mgl32.Vec3{0, 1, 0}, mgl32.DegToRad(y), origin)
	t.RotateAroundVec(mgl32.Vec3{1, 0, 0}, mgl32.DegToRad(x), origin)
	t.Rotation = t.Rotation.Add(mgl32.Vec3{x, y, z})
}

// Orient replaces the orientation axes with the default axes rotated by q.
func (t *Transform) Orient(q mgl32.Quat) {
	q = q.Normalize()
	t.View = q.Rotate(DefaultView)
	t.Up = q.Rotate(DefaultUp)
	t.Right = q.Rotate(DefaultRight)
}

// Forward returns the normalized view axis.
func (t Transform) Forward() mgl32.Vec3 {
	return t.View.Normalize()
}
