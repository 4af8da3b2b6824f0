package app

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/sprender"
	"github.com/gekko3d/sprender/sprt/rt/core"
)

// FlyCamera drives a core.Camera from keyboard and mouse: WASD moves,
// space and control climb and sink, shift sprints, and mouse look is active
// while the cursor is captured.
type FlyCamera struct {
	Camera      *core.Camera
	Speed       float32
	Sensitivity float32
	Boost       float32
}

func NewFlyCamera(cam *core.Camera) *FlyCamera {
	return &FlyCamera{Camera: cam, Speed: 5, Sensitivity: 0.1, Boost: 4}
}

func (f *FlyCamera) Update(in sprender.InputState, dt float32) {
	if dt <= 0 {
		return
	}
	cam := f.Camera

	if in.Captured() {
		dx, dy := in.MouseDelta()
		cam.Yaw += float32(dx) * f.Sensitivity
		cam.Pitch -= float32(dy) * f.Sensitivity
		cam.ClampPitch()
	}

	var move mgl32.Vec3
	axis := func(pos, neg sprender.Key) float32 {
		var v float32
		if in.Down(pos) {
			v++
		}
		if in.Down(neg) {
			v--
		}
		return v
	}
	forward, right := cam.Forward(), cam.Right()
	move = move.Add(forward.Mul(axis(sprender.KeyW, sprender.KeyS)))
	move = move.Add(right.Mul(axis(sprender.KeyD, sprender.KeyA)))
	move = move.Add(mgl32.Vec3{0, 1, 0}.Mul(axis(sprender.KeySpace, sprender.KeyControl)))
	if move.Len() == 0 {
		return
	}

	speed := f.Speed
	if in.Down(sprender.KeyShift) {
		speed *= f.Boost
	}
	cam.Position = cam.Position.Add(move.Normalize().Mul(speed * dt))
}
