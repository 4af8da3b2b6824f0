package app

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/sprender"
	"github.com/gekko3d/sprender/sprt/rt/assets"
	"github.com/gekko3d/sprender/sprt/rt/core"
	"github.com/gekko3d/sprender/sprt/rt/gpu"
	"github.com/gekko3d/sprender/sprt/rt/pool"
)

type LightDesc struct {
	Position     mgl32.Vec3
	Direction    mgl32.Vec3
	Color        mgl32.Vec3
	Range        float32
	Intensity    float32
	CastShadow   bool
	ShadowExtent float32
}

type NodeDesc struct {
	Transform core.Transform
	Parent    pool.Handle
	Link      core.Link
}

// Engine is the renderer context. Every table, the scene graph and the GPU
// helpers hang off it; nothing is global. All methods must be called from
// the render thread.
type Engine struct {
	Config sprender.Config
	Log    sprender.Logger

	Device    gpu.Device
	Resources *core.Resources
	Scene     *core.SceneGraph
	Camera    *core.Camera
	Batcher   *core.FrameBatcher
	Streamer  *gpu.UniformStreamer
	Frames    *FrameOrchestrator
	Textures  *assets.TextureCache
	Profiler  *Profiler
	Overlay   Overlay

	instanceGroup gpu.BindGroup
	lightGroup    gpu.BindGroup
	frameGroup    gpu.BindGroup
	frameShadow   gpu.Texture
	dummyShadow   gpu.Texture
	shadowLight   pool.Handle
	stallWarned   bool
}

func NewEngine(cfg sprender.Config, dev gpu.Device, log sprender.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log = sprender.OrNop(log)

	e := &Engine{
		Config: cfg,
		Log:    log,
		Device: dev,
		Resources: core.NewResources(core.Capacities{
			Meshes:       cfg.Pools.Meshes,
			Materials:    cfg.Pools.Materials,
			Lights:       cfg.Pools.Lights,
			RenderMeshes: cfg.Pools.RenderMeshes,
		}),
		Scene:    core.NewSceneGraph(cfg.Pools.Nodes, log),
		Camera:   core.NewCamera(),
		Batcher:  core.NewFrameBatcher(cfg.Pools.Materials, cfg.Pools.RenderMeshes),
		Textures: assets.NewTextureCache(dev),
		Profiler: NewProfiler(),
	}
	e.Resources.SetDebug(cfg.Debug)
	e.Scene.SetDebug(cfg.Debug)

	var err error
	e.Streamer, err = gpu.NewUniformStreamer(dev, gpu.StreamerConfig{
		Alignment: cfg.MinUniformAlignment,
		Models:    cfg.Pools.RenderMeshes,
		Lights:    cfg.Pools.Lights,
		MaxIdle:   cfg.Staging.MaxIdle,
	}, log)
	if err != nil {
		return nil, err
	}
	if pb, ok := dev.(gpu.PipelineBuilder); ok {
		if err := pb.BuildPipelines(e.Streamer.Stride(), cfg.Pools.Lights); err != nil {
			return nil, err
		}
	}
	if e.Frames, err = NewFrameOrchestrator(dev, log); err != nil {
		return nil, err
	}

	if e.instanceGroup, err = dev.CreateBindGroup(gpu.BindGroupDesc{
		Label:   "InstanceBG",
		Layout:  gpu.LayoutInstance,
		Entries: []gpu.BindEntry{{Binding: 0, Buffer: e.Streamer.Models, Size: gpu.ModelSize}},
	}); err != nil {
		return nil, fmt.Errorf("instance bind group: %w", err)
	}
	if e.lightGroup, err = dev.CreateBindGroup(gpu.BindGroupDesc{
		Label:   "ShadowLightBG",
		Layout:  gpu.LayoutShadowLight,
		Entries: []gpu.BindEntry{{Binding: 0, Buffer: e.Streamer.Lights, Size: gpu.LightSize}},
	}); err != nil {
		return nil, fmt.Errorf("shadow light bind group: %w", err)
	}
	if e.dummyShadow, err = dev.CreateTexture(gpu.TextureDesc{
		Label:  "NoShadow",
		Width:  1,
		Height: 1,
		Format: gpu.FormatDepth32,
		Usage:  gpu.TextureSampled | gpu.TextureRenderTarget,
	}); err != nil {
		return nil, fmt.Errorf("placeholder shadow map: %w", err)
	}
	if err := e.ensureFrameGroup(e.dummyShadow); err != nil {
		return nil, err
	}

	log.Infof("engine ready: %d meshes, %d materials, %d lights, %d render meshes, %d nodes",
		cfg.Pools.Meshes, cfg.Pools.Materials, cfg.Pools.Lights, cfg.Pools.RenderMeshes, cfg.Pools.Nodes)
	return e, nil
}

// ensureFrameGroup rebuilds the frame bind group when the bound shadow map
// changes.
func (e *Engine) ensureFrameGroup(shadow gpu.Texture) error {
	if e.frameGroup != nil && e.frameShadow == shadow {
		return nil
	}
	bg, err := e.Device.CreateBindGroup(gpu.BindGroupDesc{
		Label:  "FrameBG",
		Layout: gpu.LayoutFrame,
		Entries: []gpu.BindEntry{
			{Binding: 0, Buffer: e.Streamer.Camera, Size: gpu.CameraSize},
			{Binding: 1, Buffer: e.Streamer.Lights},
			{Binding: 2, Texture: shadow},
			{Binding: 3, Sampler: gpu.SamplerShadowCompare},
		},
	})
	if err != nil {
		return fmt.Errorf("frame bind group: %w", err)
	}
	if e.frameGroup != nil {
		e.frameGroup.Release()
	}
	e.frameGroup, e.frameShadow = bg, shadow
	return nil
}

// loadFailed reports a resource load error. Debug builds stop here.
func (e *Engine) loadFailed(what string, err error) error {
	err = fmt.Errorf("load %s: %w", what, err)
	e.Log.Warnf("%v", err)
	if e.Config.Debug {
		panic(err)
	}
	return err
}

func (e *Engine) CreateMesh(data assets.MeshData) (pool.Handle, error) {
	if err := data.Validate(); err != nil {
		return pool.Invalid, err
	}
	vb, err := e.Device.CreateBuffer(gpu.BufferDesc{
		Label:    data.Label + " vertices",
		Usage:    gpu.BufferVertex | gpu.BufferCopyDst,
		Contents: data.VertexBytes(),
	})
	if err != nil {
		return pool.Invalid, fmt.Errorf("mesh %q vertex buffer: %w", data.Label, err)
	}
	indices, format := data.IndexBytes()
	ib, err := e.Device.CreateBuffer(gpu.BufferDesc{
		Label:    data.Label + " indices",
		Usage:    gpu.BufferIndex | gpu.BufferCopyDst,
		Contents: indices,
	})
	if err != nil {
		vb.Release()
		return pool.Invalid, fmt.Errorf("mesh %q index buffer: %w", data.Label, err)
	}

	h, err := e.Resources.Meshes.Insert(core.Mesh{
		Label:       data.Label,
		Vertex:      vb,
		Index:       ib,
		IndexFormat: format,
		IndexCount:  uint32(len(data.Indices)),
		VertexCount: uint32(len(data.Vertices)),
		Bounds:      data.Bounds(),
	})
	if err != nil {
		vb.Release()
		ib.Release()
		return pool.Invalid, err
	}
	return h, nil
}

func (e *Engine) CreateMaterial(desc assets.MaterialDesc) (pool.Handle, error) {
	textures, err := e.Textures.Material(desc)
	if err != nil {
		return pool.Invalid, e.loadFailed(fmt.Sprintf("material %q", desc.Label), err)
	}

	params := gpu.MaterialParams{BaseColor: mgl32.Vec4(desc.BaseColor)}
	if params.BaseColor == (mgl32.Vec4{}) {
		params.BaseColor = mgl32.Vec4{1, 1, 1, 1}
	}
	if desc.TexturePaths[core.TextureNormal] != "" {
		params.Flags |= 1
	}
	if desc.TexturePaths[core.TextureEmissive] != "" {
		params.Flags |= 2
	}
	pb, err := e.Device.CreateBuffer(gpu.BufferDesc{
		Label:    desc.Label + " params",
		Usage:    gpu.BufferUniform | gpu.BufferCopyDst,
		Contents: params.Bytes(),
	})
	if err != nil {
		return pool.Invalid, fmt.Errorf("material %q params: %w", desc.Label, err)
	}
	bg, err := e.Device.CreateBindGroup(gpu.BindGroupDesc{
		Label:  desc.Label + " material",
		Layout: gpu.LayoutMaterial,
		Entries: []gpu.BindEntry{
			{Binding: 0, Buffer: pb, Size: gpu.MaterialParamsSize},
			{Binding: 1, Texture: textures[core.TextureAlbedo]},
			{Binding: 2, Texture: textures[core.TextureNormal]},
			{Binding: 3, Texture: textures[core.TextureEmissive]},
			{Binding: 4, Sampler: gpu.SamplerLinearRepeat},
		},
	})
	if err != nil {
		pb.Release()
		return pool.Invalid, fmt.Errorf("material %q bind group: %w", desc.Label, err)
	}

	h, err := e.Resources.Materials.Insert(core.Material{
		Label:        desc.Label,
		TexturePaths: desc.TexturePaths,
		Textures:     textures,
		BaseColor:    params.BaseColor,
		Params:       pb,
		BindGroup:    bg,
	})
	if err != nil {
		bg.Release()
		pb.Release()
		return pool.Invalid, err
	}
	return h, nil
}

// CreateLight adds a light. Only one light casts shadows at a time; further
// casters are accepted without a shadow.
func (e *Engine) CreateLight(desc LightDesc) (pool.Handle, error) {
	l := core.Light{
		Position:     desc.Position,
		Direction:    desc.Direction,
		Color:        desc.Color,
		Range:        desc.Range,
		Intensity:    desc.Intensity,
		CastShadow:   desc.CastShadow,
		ShadowExtent: desc.ShadowExtent,
	}
	if l.CastShadow {
		if cur := e.Resources.Lights.Get(e.shadowLight); cur != nil {
			e.Log.Warnf("light: shadow caster %v already exists, new light will not cast", e.shadowLight)
			l.CastShadow = false
		} else {
			size := e.Config.Shadow.MapSize
			tex, err := e.Device.CreateTexture(gpu.TextureDesc{
				Label:  "ShadowMap",
				Width:  size,
				Height: size,
				Format: gpu.FormatDepth32,
				Usage:  gpu.TextureSampled | gpu.TextureRenderTarget,
			})
			if err != nil {
				return pool.Invalid, fmt.Errorf("shadow map: %w", err)
			}
			l.ShadowMap = tex
		}
	}

	h, err := e.Resources.Lights.Insert(l)
	if err != nil {
		if l.ShadowMap != nil {
			l.ShadowMap.Release()
		}
		return pool.Invalid, err
	}
	if l.ShadowMap != nil {
		e.shadowLight = h
	}
	return h, nil
}

func (e *Engine) CreateRenderMesh(mesh, material pool.Handle) (pool.Handle, error) {
	if !e.Resources.Meshes.Valid(mesh) {
		return pool.Invalid, fmt.Errorf("render mesh: mesh %v: %w", mesh, pool.ErrInvalidHandle)
	}
	if !e.Resources.Materials.Valid(material) {
		return pool.Invalid, fmt.Errorf("render mesh: material %v: %w", material, pool.ErrInvalidHandle)
	}
	return e.Resources.RenderMeshes.Insert(core.RenderMesh{Mesh: mesh, Material: material})
}

// ErrAlreadyLinked is returned when a render mesh or light is already carried
// by a live node.
var ErrAlreadyLinked = errors.New("already linked to a node")

// CreateSceneNode creates a node and points its linked render mesh or light
// back at it. A target can be carried by one node at a time.
func (e *Engine) CreateSceneNode(desc NodeDesc) (pool.Handle, error) {
	switch desc.Link.Kind {
	case core.LinkRenderMesh:
		rm := e.Resources.RenderMeshes.Get(desc.Link.Target)
		if rm == nil {
			return pool.Invalid, fmt.Errorf("node link: render mesh %v: %w", desc.Link.Target, pool.ErrInvalidHandle)
		}
		if e.linkedBy(rm.Node, desc.Link) {
			return pool.Invalid, fmt.Errorf("node link: render mesh %v: %w %v", desc.Link.Target, ErrAlreadyLinked, rm.Node)
		}
	case core.LinkLight:
		l := e.Resources.Lights.Get(desc.Link.Target)
		if l == nil {
			return pool.Invalid, fmt.Errorf("node link: light %v: %w", desc.Link.Target, pool.ErrInvalidHandle)
		}
		if e.linkedBy(l.Node, desc.Link) {
			return pool.Invalid, fmt.Errorf("node link: light %v: %w %v", desc.Link.Target, ErrAlreadyLinked, l.Node)
		}
	}

	h, err := e.Scene.CreateNode(desc.Transform, desc.Parent, desc.Link)
	if err != nil {
		return pool.Invalid, err
	}
	switch desc.Link.Kind {
	case core.LinkRenderMesh:
		e.Resources.RenderMeshes.Get(desc.Link.Target).Node = h
	case core.LinkLight:
		e.Resources.Lights.Get(desc.Link.Target).Node = h
	}
	return h, nil
}

// Spawn creates a render mesh and a node carrying it.
func (e *Engine) Spawn(mesh, material pool.Handle, t core.Transform, parent pool.Handle) (pool.Handle, error) {
	rm, err := e.CreateRenderMesh(mesh, material)
	if err != nil {
		return pool.Invalid, err
	}
	node, err := e.CreateSceneNode(NodeDesc{Transform: t, Parent: parent, Link: core.RenderMeshLink(rm)})
	if err != nil {
		e.Resources.RenderMeshes.Remove(rm)
		return pool.Invalid, err
	}
	return node, nil
}

// LoadModel turns every primitive of src into a mesh, a material (shared
// between identical descriptors) and a child node under a new root. On
// failure everything created so far is destroyed.
func (e *Engine) LoadModel(src assets.MeshSource, t core.Transform, parent pool.Handle) (pool.Handle, error) {
	parts, err := src.Meshes()
	if err != nil {
		return pool.Invalid, e.loadFailed("model "+src.Name(), err)
	}
	root, err := e.CreateSceneNode(NodeDesc{Transform: t, Parent: parent})
	if err != nil {
		return pool.Invalid, err
	}

	var meshes, materials []pool.Handle
	byDesc := make(map[assets.MaterialDesc]pool.Handle)
	fail := func(err error) (pool.Handle, error) {
		_ = e.DestroyNode(root)
		for _, h := range meshes {
			e.DestroyMesh(h)
		}
		for _, h := range materials {
			e.DestroyMaterial(h)
		}
		return pool.Invalid, fmt.Errorf("model %s: %w", src.Name(), err)
	}

	for _, p := range parts {
		mesh, err := e.CreateMesh(p.Mesh)
		if err != nil {
			return fail(err)
		}
		meshes = append(meshes, mesh)

		mat, ok := byDesc[p.Material]
		if !ok {
			if mat, err = e.CreateMaterial(p.Material); err != nil {
				return fail(err)
			}
			byDesc[p.Material] = mat
			materials = append(materials, mat)
		}
		if _, err := e.Spawn(mesh, mat, core.NewTransform(), root); err != nil {
			return fail(err)
		}
	}
	e.Log.Debugf("model %s: %d primitives, %d materials", src.Name(), len(parts), len(materials))
	return root, nil
}

func (e *Engine) Mesh(h pool.Handle) *core.Mesh             { return e.Resources.Meshes.Get(h) }
func (e *Engine) Material(h pool.Handle) *core.Material     { return e.Resources.Materials.Get(h) }
func (e *Engine) Light(h pool.Handle) *core.Light           { return e.Resources.Lights.Get(h) }
func (e *Engine) RenderMesh(h pool.Handle) *core.RenderMesh { return e.Resources.RenderMeshes.Get(h) }
func (e *Engine) Node(h pool.Handle) *core.SceneNode        { return e.Scene.Node(h) }

// DestroyNode destroys node's subtree together with the render meshes and
// lights linked from it.
func (e *Engine) DestroyNode(h pool.Handle) error {
	return e.Scene.Destroy(h, func(l core.Link) {
		switch l.Kind {
		case core.LinkRenderMesh:
			e.Resources.RenderMeshes.Remove(l.Target)
		case core.LinkLight:
			e.removeLight(l.Target)
		}
	})
}

func (e *Engine) DestroyRenderMesh(h pool.Handle) bool {
	rm := e.Resources.RenderMeshes.Get(h)
	if rm == nil {
		return false
	}
	e.unlinkNode(rm.Node, core.RenderMeshLink(h))
	return e.Resources.RenderMeshes.Remove(h)
}

func (e *Engine) DestroyLight(h pool.Handle) bool {
	l := e.Resources.Lights.Get(h)
	if l == nil {
		return false
	}
	e.unlinkNode(l.Node, core.LightLink(h))
	return e.removeLight(h)
}

func (e *Engine) removeLight(h pool.Handle) bool {
	l := e.Resources.Lights.Get(h)
	if l == nil {
		return false
	}
	if l.ShadowMap != nil {
		l.ShadowMap.Release()
	}
	if h == e.shadowLight {
		e.shadowLight = pool.Invalid
	}
	return e.Resources.Lights.Remove(h)
}

// DestroyMesh frees a mesh. Render meshes still naming it are skipped by
// the batcher until destroyed.
func (e *Engine) DestroyMesh(h pool.Handle) bool {
	m := e.Resources.Meshes.Get(h)
	if m == nil {
		return false
	}
	m.Vertex.Release()
	m.Index.Release()
	return e.Resources.Meshes.Remove(h)
}

// DestroyMaterial frees a material. Shared textures stay in the cache.
func (e *Engine) DestroyMaterial(h pool.Handle) bool {
	m := e.Resources.Materials.Get(h)
	if m == nil {
		return false
	}
	m.BindGroup.Release()
	m.Params.Release()
	return e.Resources.Materials.Remove(h)
}

// linkedBy reports whether node is live and still carries link.
func (e *Engine) linkedBy(node pool.Handle, link core.Link) bool {
	n := e.Scene.Node(node)
	return n != nil && n.Link == link
}

func (e *Engine) unlinkNode(node pool.Handle, link core.Link) {
	if n := e.Scene.Node(node); n != nil && n.Link == link {
		n.Link = core.Link{}
	}
}

func (e *Engine) worldOf(node pool.Handle) *mgl32.Mat4 {
	if node.IsNil() {
		return nil
	}
	w, ok := e.Scene.World(node)
	if !ok {
		return nil
	}
	return &w
}

// Frame renders one frame into target. It services map callbacks, drains
// the dirty worklist, streams all uniforms, batches and records the passes,
// then submits. A frame that fails after its copies were flushed leaves
// nothing behind in the encoder.
func (e *Engine) Frame(target, depth gpu.Texture, aspect float32) error {
	if target == nil || depth == nil {
		return errors.New("frame: missing color or depth target")
	}
	p := e.Profiler
	p.BeginScope("frame")
	defer p.EndScope("frame")

	e.Device.Poll()
	e.checkStalledMaps()

	p.BeginScope("scene")
	updated := e.Scene.Update()
	p.EndScope("scene")
	p.SetCount("updated", updated)

	p.BeginScope("upload")
	if err := e.Streamer.Begin(); err != nil {
		p.EndScope("upload")
		return err
	}
	shadow, err := e.writeUniforms(aspect)
	if err == nil {
		e.Batcher.Sort(e.Resources)
		shadowTex := e.dummyShadow
		if shadow != nil {
			shadowTex = shadow.Map
		}
		err = e.ensureFrameGroup(shadowTex)
	}
	if err != nil {
		// nothing was recorded yet, the staging buffer goes straight back
		p.EndScope("upload")
		e.Streamer.Retire()
		return err
	}
	e.Streamer.Flush(e.Frames.Encoder())
	p.EndScope("upload")

	p.BeginScope("record")
	err = e.Frames.Run(FrameInputs{
		Target:        target,
		Depth:         depth,
		ClearColor:    e.Config.ClearColor,
		FrameGroup:    e.frameGroup,
		InstanceGroup: e.instanceGroup,
		Offsets:       e.Streamer,
		Shadow:        shadow,
		Overlay:       e.Overlay,
	}, e.Resources, e.Batcher)
	p.EndScope("record")
	e.Streamer.Retire()

	stats := e.Frames.Stats()
	p.SetCount("draws", stats.Draws)
	p.SetCount("shadow", stats.ShadowDraws)
	p.SetCount("materials", stats.MaterialBinds)
	p.SetCount("staging", e.Streamer.Stats().Staging.Alive)
	return err
}

// checkStalledMaps warns once when more staging buffers are waiting on map
// callbacks than the pool keeps idle.
func (e *Engine) checkStalledMaps() {
	pending := e.Streamer.Stats().Staging.Pending
	limit := e.Config.Staging.MaxIdle
	switch {
	case pending > limit && !e.stallWarned:
		e.Log.Warnf("staging: %d buffers waiting on map callbacks (max idle %d)", pending, limit)
		e.stallWarned = true
	case pending <= limit:
		e.stallWarned = false
	}
}

// writeUniforms fills the camera, light and model blocks for this frame and
// returns the shadow inputs, or nil when no light casts.
func (e *Engine) writeUniforms(aspect float32) (*ShadowInputs, error) {
	var shadow *ShadowInputs
	shadowSlot := int32(-1)
	var lightVP mgl32.Mat4

	lights := e.Resources.Lights
	hw := lights.Pool().HighWater()
	var zero gpu.LightUniform
	for id := uint32(1); id < hw; id++ {
		h := pool.Handle{ID: id}
		l := lights.Get(h)
		if l == nil {
			if err := e.Streamer.WriteLight(id, &zero); err != nil {
				return nil, err
			}
			continue
		}
		u := l.Uniform(e.worldOf(l.Node))
		if err := e.Streamer.WriteLight(id, &u); err != nil {
			return nil, err
		}
		if l.CastShadow && l.ShadowMap != nil && shadow == nil {
			off, err := e.Streamer.LightOffset(id)
			if err != nil {
				return nil, err
			}
			shadow = &ShadowInputs{Map: l.ShadowMap, LightGroup: e.lightGroup, LightOffset: off}
			shadowSlot = int32(id - 1)
			lightVP = u.ViewProj
		}
	}

	view, proj := e.Camera.View(), e.Camera.Projection(aspect)
	cam := gpu.CameraUniform{
		View:          view,
		Proj:          proj,
		ViewProj:      proj.Mul4(view),
		LightViewProj: lightVP,
		Position:      e.Camera.Position,
		LightCount:    max(hw, 1) - 1,
		ShadowLight:   shadowSlot,
	}
	if err := e.Streamer.WriteCamera(&cam); err != nil {
		return nil, err
	}

	var err error
	e.Resources.RenderMeshes.Each(func(h pool.Handle, rm *core.RenderMesh) bool {
		world := mgl32.Ident4()
		if w := e.worldOf(rm.Node); w != nil {
			world = *w
		}
		m := gpu.NewModelUniform(world)
		err = e.Streamer.WriteModel(h.ID, &m)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	return shadow, nil
}

func (e *Engine) Release() {
	e.Resources.Meshes.Each(func(h pool.Handle, _ *core.Mesh) bool {
		e.DestroyMesh(h)
		return true
	})
	e.Resources.Materials.Each(func(h pool.Handle, _ *core.Material) bool {
		e.DestroyMaterial(h)
		return true
	})
	e.Resources.Lights.Each(func(h pool.Handle, _ *core.Light) bool {
		e.removeLight(h)
		return true
	})
	for _, g := range []gpu.BindGroup{e.frameGroup, e.instanceGroup, e.lightGroup} {
		if g != nil {
			g.Release()
		}
	}
	if e.dummyShadow != nil {
		e.dummyShadow.Release()
	}
	e.Textures.Release()
	e.Streamer.Release()
}
