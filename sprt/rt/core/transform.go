package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Transform is a node's local transform. Rotation holds Euler angles in
// degrees about X, Y and Z.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Vec3
	Scale    mgl32.Vec3
}

func NewTransform() Transform {
	return Transform{Scale: mgl32.Vec3{1, 1, 1}}
}

func TransformAt(x, y, z float32) Transform {
	t := NewTransform()
	t.Position = mgl32.Vec3{x, y, z}
	return t
}

// Local is T * R * S.
func (t Transform) Local() mgl32.Mat4 {
	translate := mgl32.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z())
	rotate := EulerZXY(t.Rotation)
	scale := mgl32.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z())

	return translate.Mul4(rotate).Mul4(scale)
}

// EulerZXY composes Rz * Rx * Ry, so a vector is rotated about Y first, then
// X, then Z.
func EulerZXY(deg mgl32.Vec3) mgl32.Mat4 {
	rx := mgl32.HomogRotate3DX(mgl32.DegToRad(deg.X()))
	ry := mgl32.HomogRotate3DY(mgl32.DegToRad(deg.Y()))
	rz := mgl32.HomogRotate3DZ(mgl32.DegToRad(deg.Z()))
	return rz.Mul4(rx).Mul4(ry)
}
