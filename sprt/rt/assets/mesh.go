package assets

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/sprender/sprt/rt/gpu"
)

// Vertex matches the mesh pipeline's vertex layout.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	UV       [2]float32
}

type MeshData struct {
	Label    string
	Vertices []Vertex
	Indices  []uint32
}

func (m *MeshData) Validate() error {
	if len(m.Vertices) == 0 {
		return fmt.Errorf("mesh %q: no vertices", m.Label)
	}
	if len(m.Indices) == 0 || len(m.Indices)%3 != 0 {
		return fmt.Errorf("mesh %q: index count %d is not a positive multiple of 3", m.Label, len(m.Indices))
	}
	for i, idx := range m.Indices {
		if int(idx) >= len(m.Vertices) {
			return fmt.Errorf("mesh %q: index %d at %d out of range (%d vertices)", m.Label, idx, i, len(m.Vertices))
		}
	}
	return nil
}

func (m *MeshData) Bounds() [2]mgl32.Vec3 {
	if len(m.Vertices) == 0 {
		return [2]mgl32.Vec3{}
	}
	lo := mgl32.Vec3(m.Vertices[0].Position)
	hi := lo
	for _, v := range m.Vertices[1:] {
		for k := 0; k < 3; k++ {
			lo[k] = min(lo[k], v.Position[k])
			hi[k] = max(hi[k], v.Position[k])
		}
	}
	return [2]mgl32.Vec3{lo, hi}
}

// VertexBytes packs the vertices in the layout of gpu.VertexStride.
func (m *MeshData) VertexBytes() []byte {
	buf := make([]byte, len(m.Vertices)*gpu.VertexStride)
	for i, v := range m.Vertices {
		off := i * gpu.VertexStride
		fields := [8]float32{v.Position[0], v.Position[1], v.Position[2], v.Normal[0], v.Normal[1], v.Normal[2], v.UV[0], v.UV[1]}
		for k, f := range fields {
			binary.LittleEndian.PutUint32(buf[off+k*4:], math.Float32bits(f))
		}
	}
	return buf
}

// IndexBytes packs indices as 16-bit when every vertex is addressable, 32-bit
// otherwise. The result is padded to a multiple of 4 bytes.
func (m *MeshData) IndexBytes() ([]byte, gpu.IndexFormat) {
	if len(m.Vertices) <= math.MaxUint16 {
		n := len(m.Indices) * 2
		buf := make([]byte, (n+3)&^3)
		for i, idx := range m.Indices {
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(idx))
		}
		return buf, gpu.IndexUint16
	}
	buf := make([]byte, len(m.Indices)*4)
	for i, idx := range m.Indices {
		binary.LittleEndian.PutUint32(buf[i*4:], idx)
	}
	return buf, gpu.IndexUint32
}

// MaterialDesc names up to three textures: albedo, normal, emissive. Empty
// paths use the default texture for that slot.
type MaterialDesc struct {
	Label        string
	TexturePaths [3]string
	BaseColor    [4]float32
}

// MeshPrimitive is one drawable piece of a model: geometry plus the
// material it is drawn with.
type MeshPrimitive struct {
	Mesh     MeshData
	Material MaterialDesc
}

// MeshSource is what a model loader (e.g. a glTF reader) hands the engine.
type MeshSource interface {
	Name() string
	Meshes() ([]MeshPrimitive, error)
}

var ErrEmptySource = errors.New("mesh source has no primitives")

// StaticSource is an in-memory MeshSource.
type StaticSource struct {
	Label string
	Parts []MeshPrimitive
}

func (s *StaticSource) Name() string { return s.Label }

func (s *StaticSource) Meshes() ([]MeshPrimitive, error) {
	if len(s.Parts) == 0 {
		return nil, fmt.Errorf("%s: %w", s.Label, ErrEmptySource)
	}
	return s.Parts, nil
}
