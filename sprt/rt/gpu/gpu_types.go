package gpu

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Byte sizes of the uniform structs as declared in the WGSL sources.
const (
	CameraSize = 288
	ModelSize  = 128
	LightSize  = 112

	// LightStrideMin is the smallest light slot stride the main shader
	// supports; the light array is declared with this stride or larger.
	LightStrideMin = 256
)

// CameraUniform mirrors `struct Camera` in mesh.wgsl.
type CameraUniform struct {
	View          mgl32.Mat4
	Proj          mgl32.Mat4
	ViewProj      mgl32.Mat4
	LightViewProj mgl32.Mat4
	Position      mgl32.Vec3
	LightCount    uint32
	// ShadowLight is the light slot index sampled for shadows, -1 for none.
	ShadowLight int32
}

func (c *CameraUniform) Put(dst []byte) {
	putMat4(dst[0:], c.View)
	putMat4(dst[64:], c.Proj)
	putMat4(dst[128:], c.ViewProj)
	putMat4(dst[192:], c.LightViewProj)
	putVec3(dst[256:], c.Position)
	binary.LittleEndian.PutUint32(dst[268:], c.LightCount)
	binary.LittleEndian.PutUint32(dst[272:], uint32(c.ShadowLight))
	clear(dst[276:CameraSize])
}

// ModelUniform mirrors `struct Model`.
type ModelUniform struct {
	Model  mgl32.Mat4
	Normal mgl32.Mat4
}

// NewModelUniform derives the normal matrix from the world matrix.
func NewModelUniform(world mgl32.Mat4) ModelUniform {
	return ModelUniform{Model: world, Normal: world.Inv().Transpose()}
}

func (m *ModelUniform) Put(dst []byte) {
	putMat4(dst[0:], m.Model)
	putMat4(dst[64:], m.Normal)
}

// LightUniform mirrors `struct Light`.
type LightUniform struct {
	Position   mgl32.Vec3
	Range      float32
	Color      mgl32.Vec3
	Intensity  float32
	Direction  mgl32.Vec3
	CastShadow bool
	ViewProj   mgl32.Mat4
}

func (l *LightUniform) Put(dst []byte) {
	putVec3(dst[0:], l.Position)
	putF32(dst[12:], l.Range)
	putVec3(dst[16:], l.Color)
	putF32(dst[28:], l.Intensity)
	putVec3(dst[32:], l.Direction)
	var cast uint32
	if l.CastShadow {
		cast = 1
	}
	binary.LittleEndian.PutUint32(dst[44:], cast)
	putMat4(dst[48:], l.ViewProj)
}

// MaterialParams mirrors `struct MaterialParams`.
type MaterialParams struct {
	BaseColor mgl32.Vec4
	// Flags bit 0: normal map bound, bit 1: emissive map bound.
	Flags uint32
}

const MaterialParamsSize = 32

func (p *MaterialParams) Bytes() []byte {
	buf := make([]byte, MaterialParamsSize)
	for i := 0; i < 4; i++ {
		putF32(buf[i*4:], p.BaseColor[i])
	}
	binary.LittleEndian.PutUint32(buf[16:], p.Flags)
	return buf
}

// Stride rounds size up to a multiple of align. align must be a power of two.
func Stride(size, align uint64) uint64 {
	if align == 0 {
		return size
	}
	return (size + align - 1) &^ (align - 1)
}

func putMat4(dst []byte, m mgl32.Mat4) {
	for i, v := range m {
		putF32(dst[i*4:], v)
	}
}

func putVec3(dst []byte, v mgl32.Vec3) {
	putF32(dst[0:], v[0])
	putF32(dst[4:], v[1])
	putF32(dst[8:], v[2])
}

func putF32(dst []byte, v float32) {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
}
