package gpu_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"

	"github.com/gekko3d/sprender/sprt/rt/gpu"
)

func f32At(b []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
}

func TestStride(t *testing.T) {
	assert.Equal(t, uint64(256), gpu.Stride(112, 256))
	assert.Equal(t, uint64(512), gpu.Stride(288, 256))
	assert.Equal(t, uint64(256), gpu.Stride(256, 256))
	assert.Equal(t, uint64(7), gpu.Stride(7, 0))
}

func TestCameraUniform_Layout(t *testing.T) {
	c := gpu.CameraUniform{
		View:        mgl32.Ident4(),
		Position:    mgl32.Vec3{1, 2, 3},
		LightCount:  4,
		ShadowLight: -1,
	}
	buf := make([]byte, gpu.CameraSize)
	c.Put(buf)

	assert.Equal(t, float32(1), f32At(buf, 0))
	assert.Equal(t, float32(2), f32At(buf, 260))
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(buf[268:]))
	assert.Equal(t, int32(-1), int32(binary.LittleEndian.Uint32(buf[272:])))
}

func TestLightUniform_Layout(t *testing.T) {
	l := gpu.LightUniform{
		Position:   mgl32.Vec3{1, 2, 3},
		Range:      9,
		Color:      mgl32.Vec3{0.5, 0.5, 0.5},
		Intensity:  2,
		Direction:  mgl32.Vec3{0, -1, 0},
		CastShadow: true,
		ViewProj:   mgl32.Translate3D(7, 0, 0),
	}
	buf := make([]byte, gpu.LightSize)
	l.Put(buf)

	assert.Equal(t, float32(9), f32At(buf, 12))
	assert.Equal(t, float32(2), f32At(buf, 28))
	assert.Equal(t, float32(-1), f32At(buf, 36))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(buf[44:]))
	assert.Equal(t, float32(7), f32At(buf, 48+12*4))
}

func TestModelUniform_NormalMatrix(t *testing.T) {
	m := gpu.NewModelUniform(mgl32.Scale3D(2, 2, 2))
	assert.InDelta(t, 0.5, m.Normal.At(0, 0), 1e-6)
}
