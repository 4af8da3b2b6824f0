package core

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

var worldUp = mgl32.Vec3{0, 1, 0}

// DepthZeroToOne remaps OpenGL clip depth [-1, 1] to the [0, 1] range WebGPU
// expects.
var DepthZeroToOne = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// Camera is a Y-up yaw/pitch camera. Angles are in degrees; yaw 0 looks
// down -Z.
type Camera struct {
	Position mgl32.Vec3
	Yaw      float32
	Pitch    float32
	FovY     float32
	Near     float32
	Far      float32
}

func NewCamera() *Camera {
	return &Camera{
		Position: mgl32.Vec3{0, 2, 10},
		FovY:     60,
		Near:     0.1,
		Far:      500,
	}
}

func (c *Camera) Forward() mgl32.Vec3 {
	yaw := mgl32.DegToRad(c.Yaw)
	pitch := mgl32.DegToRad(c.Pitch)
	return mgl32.Vec3{
		math32.Sin(yaw) * math32.Cos(pitch),
		math32.Sin(pitch),
		-math32.Cos(yaw) * math32.Cos(pitch),
	}.Normalize()
}

func (c *Camera) Right() mgl32.Vec3 {
	return c.Forward().Cross(worldUp).Normalize()
}

func (c *Camera) View() mgl32.Mat4 {
	eye := c.Position
	return mgl32.LookAtV(eye, eye.Add(c.Forward()), worldUp)
}

func (c *Camera) Projection(aspect float32) mgl32.Mat4 {
	if aspect <= 0 {
		aspect = 1
	}
	return DepthZeroToOne.Mul4(mgl32.Perspective(mgl32.DegToRad(c.FovY), aspect, c.Near, c.Far))
}

// ClampPitch keeps the camera off the poles.
func (c *Camera) ClampPitch() {
	if c.Pitch > 89.0 {
		c.Pitch = 89.0
	}
	if c.Pitch < -89.0 {
		c.Pitch = -89.0
	}
}
