package core

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/sprender/sprt/rt/gpu"
	"github.com/gekko3d/sprender/sprt/rt/pool"
)

// Light is a point light when Range > 0, otherwise directional.
type Light struct {
	Position   mgl32.Vec3
	Direction  mgl32.Vec3
	Color      mgl32.Vec3
	Range      float32
	Intensity  float32
	CastShadow bool
	// ShadowExtent is the half size of a directional light's shadow box.
	ShadowExtent float32

	// Node, when set, places the light: Position and Direction are then in
	// the node's local space.
	Node      pool.Handle
	ShadowMap gpu.Texture
}

func (l *Light) Directional() bool { return l.Range <= 0 }

// World returns position and direction in world space.
func (l *Light) World(world *mgl32.Mat4) (mgl32.Vec3, mgl32.Vec3) {
	pos, dir := l.Position, l.Direction
	if world != nil {
		pos = world.Mul4x1(pos.Vec4(1)).Vec3()
		dir = world.Mul4x1(dir.Vec4(0)).Vec3()
	}
	if dir.Len() < 1e-6 {
		dir = mgl32.Vec3{0, -1, 0}
	}
	return pos, dir.Normalize()
}

// ViewProj is the shadow camera: orthographic for directional lights,
// a 90 degree perspective out to Range otherwise.
func (l *Light) ViewProj(world *mgl32.Mat4) mgl32.Mat4 {
	pos, dir := l.World(world)
	up := worldUp
	if math32.Abs(dir.Dot(up)) > 0.99 {
		up = mgl32.Vec3{0, 0, 1}
	}
	view := mgl32.LookAtV(pos, pos.Add(dir), up)

	var proj mgl32.Mat4
	if l.Directional() {
		s := l.ShadowExtent
		if s <= 0 {
			s = 20
		}
		proj = mgl32.Ortho(-s, s, -s, s, 0.1, 4*s)
	} else {
		proj = mgl32.Perspective(mgl32.DegToRad(90), 1, 0.1, l.Range)
	}
	return DepthZeroToOne.Mul4(proj).Mul4(view)
}

func (l *Light) Uniform(world *mgl32.Mat4) gpu.LightUniform {
	pos, dir := l.World(world)
	return gpu.LightUniform{
		Position:   pos,
		Range:      l.Range,
		Color:      l.Color,
		Intensity:  l.Intensity,
		Direction:  dir,
		CastShadow: l.CastShadow,
		ViewProj:   l.ViewProj(world),
	}
}
