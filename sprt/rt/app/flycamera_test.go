package app

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"

	"github.com/gekko3d/sprender"
	"github.com/gekko3d/sprender/sprt/rt/core"
)

type fakeInput struct {
	down     map[sprender.Key]bool
	dx, dy   float64
	captured bool
}

func (f *fakeInput) Down(k sprender.Key) bool       { return f.down[k] }
func (f *fakeInput) Pressed(sprender.Key) bool      { return false }
func (f *fakeInput) Released(sprender.Key) bool     { return false }
func (f *fakeInput) MouseDelta() (float64, float64) { return f.dx, f.dy }
func (f *fakeInput) Captured() bool                 { return f.captured }

func keys(ks ...sprender.Key) map[sprender.Key]bool {
	m := make(map[sprender.Key]bool, len(ks))
	for _, k := range ks {
		m[k] = true
	}
	return m
}

func newFly() *FlyCamera {
	cam := core.NewCamera()
	cam.Position = mgl32.Vec3{}
	return NewFlyCamera(cam)
}

func TestFlyCameraMoves(t *testing.T) {
	f := newFly()
	f.Update(&fakeInput{down: keys(sprender.KeyW)}, 1)
	assert.InDelta(t, -5, f.Camera.Position.Z(), 1e-5)

	f = newFly()
	f.Update(&fakeInput{down: keys(sprender.KeyD, sprender.KeyShift)}, 0.5)
	assert.InDelta(t, 10, f.Camera.Position.X(), 1e-5)

	f = newFly()
	f.Update(&fakeInput{down: keys(sprender.KeySpace)}, 1)
	assert.InDelta(t, 5, f.Camera.Position.Y(), 1e-5)
}

func TestFlyCameraDiagonalIsNormalized(t *testing.T) {
	f := newFly()
	f.Update(&fakeInput{down: keys(sprender.KeyW, sprender.KeyD)}, 1)
	assert.InDelta(t, 5, f.Camera.Position.Len(), 1e-5)
}

func TestFlyCameraOpposingKeysCancel(t *testing.T) {
	f := newFly()
	f.Update(&fakeInput{down: keys(sprender.KeyW, sprender.KeyS)}, 1)
	assert.Equal(t, mgl32.Vec3{}, f.Camera.Position)
}

func TestFlyCameraLookNeedsCapture(t *testing.T) {
	f := newFly()
	f.Update(&fakeInput{dx: 100, dy: 50}, 1)
	assert.Zero(t, f.Camera.Yaw)
	assert.Zero(t, f.Camera.Pitch)

	f.Update(&fakeInput{dx: 100, dy: -50, captured: true}, 1)
	assert.InDelta(t, 10, f.Camera.Yaw, 1e-5)
	assert.InDelta(t, 5, f.Camera.Pitch, 1e-5)

	f.Update(&fakeInput{dy: -10000, captured: true}, 1)
	assert.Equal(t, float32(89), f.Camera.Pitch)
}

func TestFlyCameraIgnoresZeroDt(t *testing.T) {
	f := newFly()
	f.Update(&fakeInput{down: keys(sprender.KeyW), dx: 10, captured: true}, 0)
	assert.Equal(t, mgl32.Vec3{}, f.Camera.Position)
	assert.Zero(t, f.Camera.Yaw)
}
