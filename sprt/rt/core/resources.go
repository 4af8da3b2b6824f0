package core

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/sprender/sprt/rt/gpu"
	"github.com/gekko3d/sprender/sprt/rt/pool"
)

// Texture slots of a Material.
const (
	TextureAlbedo = iota
	TextureNormal
	TextureEmissive
	TextureSlots
)

type Mesh struct {
	Label       string
	Vertex      gpu.Buffer
	Index       gpu.Buffer
	IndexFormat gpu.IndexFormat
	IndexCount  uint32
	VertexCount uint32
	Bounds      [2]mgl32.Vec3
}

type Material struct {
	Label        string
	TexturePaths [TextureSlots]string
	Textures     [TextureSlots]gpu.Texture
	BaseColor    mgl32.Vec4
	Params       gpu.Buffer
	BindGroup    gpu.BindGroup
}

// RenderMesh pairs a mesh with a material. The handles are authoritative;
// the pointers are refreshed by Resolve and never trusted on their own.
type RenderMesh struct {
	Mesh     pool.Handle
	Material pool.Handle
	Node     pool.Handle

	mesh     *Mesh
	material *Material
}

// Resolve refreshes the cached pointers. ok is false when either handle no
// longer resolves, in which case the cache is cleared.
func (rm *RenderMesh) Resolve(meshes *pool.Table[Mesh], materials *pool.Table[Material]) (*Mesh, *Material, bool) {
	rm.mesh = meshes.Get(rm.Mesh)
	rm.material = materials.Get(rm.Material)
	if rm.mesh == nil || rm.material == nil {
		rm.mesh, rm.material = nil, nil
		return nil, nil, false
	}
	return rm.mesh, rm.material, true
}

type Capacities struct {
	Meshes       uint32
	Materials    uint32
	Lights       uint32
	RenderMeshes uint32
}

// Resources holds one table per resource kind.
type Resources struct {
	Meshes       *pool.Table[Mesh]
	Materials    *pool.Table[Material]
	Lights       *pool.Table[Light]
	RenderMeshes *pool.Table[RenderMesh]
}

func NewResources(c Capacities) *Resources {
	return &Resources{
		Meshes:       pool.NewTable[Mesh]("meshes", c.Meshes),
		Materials:    pool.NewTable[Material]("materials", c.Materials),
		Lights:       pool.NewTable[Light]("lights", c.Lights),
		RenderMeshes: pool.NewTable[RenderMesh]("render meshes", c.RenderMeshes),
	}
}

func (r *Resources) SetDebug(enabled bool) {
	r.Meshes.Pool().SetDebug(enabled)
	r.Materials.Pool().SetDebug(enabled)
	r.Lights.Pool().SetDebug(enabled)
	r.RenderMeshes.Pool().SetDebug(enabled)
}
