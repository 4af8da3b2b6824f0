package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

// near compares with an absolute tolerance; mgl32's ApproxEqual is relative
// and fails on near-zero components.
func near(a, b mgl32.Vec3, eps float32) bool { return a.Sub(b).Len() < eps }

func nearMat(a, b mgl32.Mat4, eps float32) bool {
	for i := range a {
		if d := a[i] - b[i]; d > eps || d < -eps {
			return false
		}
	}
	return true
}

func TestTransform_Local(t *testing.T) {
	tr := Transform{
		Position: mgl32.Vec3{1, 2, 3},
		Scale:    mgl32.Vec3{2, 2, 2},
	}
	p := tr.Local().Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	if !near(p.Vec3(), mgl32.Vec3{3, 2, 3}, 1e-5) {
		t.Errorf("expected (3,2,3), got %v", p)
	}
}

func TestEulerZXY_Order(t *testing.T) {
	// Y is applied first, then X.
	r := EulerZXY(mgl32.Vec3{90, 90, 0})
	v := r.Mul4x1(mgl32.Vec4{1, 0, 0, 0}).Vec3()
	if !near(v, mgl32.Vec3{0, 1, 0}, 1e-5) {
		t.Errorf("expected (0,1,0), got %v", v)
	}

	// A single axis matches the plain rotation.
	rz := EulerZXY(mgl32.Vec3{0, 0, 90})
	if !nearMat(rz, mgl32.HomogRotate3DZ(mgl32.DegToRad(90)), 1e-5) {
		t.Errorf("z-only rotation mismatch: %v", rz)
	}
}

func TestCamera_ForwardAndProjection(t *testing.T) {
	c := NewCamera()
	if !near(c.Forward(), mgl32.Vec3{0, 0, -1}, 1e-5) {
		t.Errorf("yaw 0 should look down -Z, got %v", c.Forward())
	}
	c.Yaw = 90
	if !near(c.Forward(), mgl32.Vec3{1, 0, 0}, 1e-5) {
		t.Errorf("yaw 90 should look down +X, got %v", c.Forward())
	}

	c.Pitch = 120
	c.ClampPitch()
	if c.Pitch != 89 {
		t.Errorf("pitch not clamped: %v", c.Pitch)
	}

	// A point on the near plane maps to depth 0.
	c = NewCamera()
	c.Position = mgl32.Vec3{}
	clip := c.Projection(1).Mul4(c.View()).Mul4x1(mgl32.Vec4{0, 0, -c.Near, 1})
	if d := clip.Z() / clip.W(); d < -1e-4 || d > 1e-4 {
		t.Errorf("near plane depth = %v, want 0", d)
	}
}

func TestLight_UniformUsesNodeWorld(t *testing.T) {
	l := Light{Position: mgl32.Vec3{0, 1, 0}, Direction: mgl32.Vec3{0, 0, -1}, Range: 10, Intensity: 1}
	world := mgl32.Translate3D(5, 0, 0)
	u := l.Uniform(&world)
	if !near(u.Position, mgl32.Vec3{5, 1, 0}, 1e-5) {
		t.Errorf("light position %v", u.Position)
	}
	if !near(u.Direction, mgl32.Vec3{0, 0, -1}, 1e-5) {
		t.Errorf("translation must not change direction, got %v", u.Direction)
	}

	sun := Light{Direction: mgl32.Vec3{0, -1, 0}}
	if !sun.Directional() {
		t.Errorf("zero range light should be directional")
	}
	vp := sun.ViewProj(nil)
	if vp == (mgl32.Mat4{}) {
		t.Errorf("straight-down light produced a degenerate view")
	}
}
