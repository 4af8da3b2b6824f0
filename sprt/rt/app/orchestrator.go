package app

import (
	"errors"
	"fmt"

	"github.com/gekko3d/sprender"
	"github.com/gekko3d/sprender/sprt/rt/core"
	"github.com/gekko3d/sprender/sprt/rt/gpu"
	"github.com/gekko3d/sprender/sprt/rt/pool"
)

type FrameState uint8

const (
	FrameIdle FrameState = iota
	FrameShadowPass
	FrameMainPass
	FrameOverlayPass
	FrameSubmitted
)

func (s FrameState) String() string {
	switch s {
	case FrameIdle:
		return "idle"
	case FrameShadowPass:
		return "shadow"
	case FrameMainPass:
		return "main"
	case FrameOverlayPass:
		return "overlay"
	case FrameSubmitted:
		return "submitted"
	}
	return "unknown"
}

// Overlay appends draws into the main pass after the scene. Prepare runs
// first and may upload; Draw only records.
type Overlay interface {
	Prepare(dev gpu.Device, target gpu.Texture) error
	Draw(pass gpu.RenderPass) error
}

type FrameStats struct {
	Draws         int
	ShadowDraws   int
	MaterialBinds int
	VertexBinds   int
	IndexBinds    int
}

// ModelOffsets maps a render-mesh id to its dynamic offset in the model
// uniform buffer.
type ModelOffsets interface {
	ModelOffset(id uint32) (uint32, error)
}

type ShadowInputs struct {
	Map         gpu.Texture
	LightGroup  gpu.BindGroup
	LightOffset uint32
}

// FrameInputs is everything one frame's passes read. Uniform copies for the
// frame must already be recorded into the orchestrator's encoder.
type FrameInputs struct {
	Target     gpu.Texture
	Depth      gpu.Texture
	ClearColor [4]float64

	FrameGroup    gpu.BindGroup
	InstanceGroup gpu.BindGroup
	Offsets       ModelOffsets
	// Shadow is nil when no light casts.
	Shadow  *ShadowInputs
	Overlay Overlay
}

// FrameOrchestrator records the frame's passes into one encoder and submits
// it. An encoder is always open between frames, so uniform copies for the
// next frame have somewhere to go.
type FrameOrchestrator struct {
	dev   gpu.Device
	log   sprender.Logger
	enc   gpu.CommandEncoder
	state FrameState
	frame uint64
	stats FrameStats

	// OnTransition, when set, sees every state change.
	OnTransition func(from, to FrameState)
}

func NewFrameOrchestrator(dev gpu.Device, log sprender.Logger) (*FrameOrchestrator, error) {
	o := &FrameOrchestrator{dev: dev, log: sprender.OrNop(log)}
	if err := o.openEncoder(); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *FrameOrchestrator) State() FrameState { return o.state }

// Encoder is the encoder the next frame records into.
func (o *FrameOrchestrator) Encoder() gpu.CommandEncoder { return o.enc }

func (o *FrameOrchestrator) Stats() FrameStats { return o.stats }

func (o *FrameOrchestrator) Frames() uint64 { return o.frame }

func (o *FrameOrchestrator) openEncoder() error {
	enc, err := o.dev.CreateCommandEncoder(fmt.Sprintf("frame-%d", o.frame+1))
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	o.enc = enc
	return nil
}

// Discard drops the open encoder together with any copies already recorded
// into it and opens a fresh one. Callers use it when a frame is abandoned
// after its uniform copies were flushed.
func (o *FrameOrchestrator) Discard() error {
	if o.enc != nil {
		o.enc.Release()
		o.enc = nil
	}
	return o.openEncoder()
}

func (o *FrameOrchestrator) to(s FrameState) {
	from := o.state
	o.state = s
	if o.OnTransition != nil {
		o.OnTransition(from, s)
	}
}

// bindTracker skips vertex and index rebinds of the same buffer within one
// pass.
type bindTracker struct {
	vb, ib gpu.Buffer
	stats  *FrameStats
}

func (t *bindTracker) bind(pass gpu.RenderPass, m *core.Mesh) {
	if t.vb != m.Vertex {
		pass.SetVertexBuffer(0, m.Vertex)
		t.vb = m.Vertex
		t.stats.VertexBinds++
	}
	if t.ib != m.Index {
		pass.SetIndexBuffer(m.Index, m.IndexFormat)
		t.ib = m.Index
		t.stats.IndexBinds++
	}
}

// Run records the shadow, main and overlay passes and submits the encoder.
// On any error, including missing targets, the encoder is dropped with
// whatever was recorded into it and a fresh one opened, leaving the
// orchestrator idle.
func (o *FrameOrchestrator) Run(in FrameInputs, res *core.Resources, batch *core.FrameBatcher) error {
	if o.state != FrameIdle {
		return fmt.Errorf("frame orchestrator: run in state %s", o.state)
	}
	if in.Target == nil || in.Depth == nil {
		err := errors.New("frame orchestrator: missing color or depth target")
		if derr := o.Discard(); derr != nil {
			err = errors.Join(err, derr)
		}
		return err
	}
	o.stats = FrameStats{}

	err := o.record(in, res, batch)
	if err == nil {
		err = o.submit()
	}
	if err != nil {
		o.log.Errorf("frame %d: %v", o.frame+1, err)
		if o.state != FrameSubmitted {
			if derr := o.Discard(); derr != nil {
				err = errors.Join(err, derr)
			}
		}
		o.to(FrameIdle)
		return err
	}
	o.to(FrameIdle)
	return nil
}

func (o *FrameOrchestrator) record(in FrameInputs, res *core.Resources, batch *core.FrameBatcher) error {
	if in.Shadow != nil {
		o.to(FrameShadowPass)
		if err := o.shadowPass(in, res, batch); err != nil {
			return err
		}
	}

	o.to(FrameMainPass)
	clearColor := in.ClearColor
	pass := o.enc.BeginRenderPass(gpu.RenderPassDesc{
		Label: "main",
		Color: &gpu.ColorTarget{Texture: in.Target, Clear: &clearColor},
		Depth: &gpu.DepthTarget{Texture: in.Depth, Clear: true},
	})
	if err := o.mainDraws(pass, in, res, batch); err != nil {
		_ = pass.End()
		return err
	}

	o.to(FrameOverlayPass)
	if in.Overlay != nil {
		if err := in.Overlay.Prepare(o.dev, in.Target); err != nil {
			_ = pass.End()
			return fmt.Errorf("overlay prepare: %w", err)
		}
		if err := in.Overlay.Draw(pass); err != nil {
			_ = pass.End()
			return fmt.Errorf("overlay draw: %w", err)
		}
	}
	if err := pass.End(); err != nil {
		return fmt.Errorf("end main pass: %w", err)
	}
	return nil
}

func (o *FrameOrchestrator) shadowPass(in FrameInputs, res *core.Resources, batch *core.FrameBatcher) error {
	sh := in.Shadow
	pass := o.enc.BeginRenderPass(gpu.RenderPassDesc{
		Label: "shadow",
		Depth: &gpu.DepthTarget{Texture: sh.Map, Clear: true},
	})
	pass.SetPipeline(gpu.PipelineShadow)
	pass.SetBindGroup(gpu.ShadowGroupLight, sh.LightGroup, []uint32{sh.LightOffset})

	t := bindTracker{stats: &o.stats}
	var err error
	batch.Materials(func(_ pool.Handle, run []pool.Handle) bool {
		for _, h := range run {
			rm := res.RenderMeshes.Get(h)
			if rm == nil {
				continue
			}
			mesh, _, ok := rm.Resolve(res.Meshes, res.Materials)
			if !ok {
				continue
			}
			var off uint32
			if off, err = in.Offsets.ModelOffset(h.ID); err != nil {
				return false
			}
			t.bind(pass, mesh)
			pass.SetBindGroup(gpu.ShadowGroupInstance, in.InstanceGroup, []uint32{off})
			pass.DrawIndexed(mesh.IndexCount, 1)
			o.stats.ShadowDraws++
		}
		return true
	})
	if err != nil {
		_ = pass.End()
		return fmt.Errorf("shadow pass: %w", err)
	}
	if err := pass.End(); err != nil {
		return fmt.Errorf("end shadow pass: %w", err)
	}
	return nil
}

func (o *FrameOrchestrator) mainDraws(pass gpu.RenderPass, in FrameInputs, res *core.Resources, batch *core.FrameBatcher) error {
	pass.SetPipeline(gpu.PipelineMesh)
	pass.SetBindGroup(gpu.MeshGroupFrame, in.FrameGroup, nil)

	t := bindTracker{stats: &o.stats}
	var err error
	batch.Materials(func(mh pool.Handle, run []pool.Handle) bool {
		mat := res.Materials.Get(mh)
		if mat == nil || mat.BindGroup == nil {
			return true
		}
		pass.SetBindGroup(gpu.MeshGroupMaterial, mat.BindGroup, nil)
		o.stats.MaterialBinds++
		for _, h := range run {
			rm := res.RenderMeshes.Get(h)
			if rm == nil {
				continue
			}
			mesh, _, ok := rm.Resolve(res.Meshes, res.Materials)
			if !ok {
				continue
			}
			var off uint32
			if off, err = in.Offsets.ModelOffset(h.ID); err != nil {
				return false
			}
			t.bind(pass, mesh)
			pass.SetBindGroup(gpu.MeshGroupInstance, in.InstanceGroup, []uint32{off})
			pass.DrawIndexed(mesh.IndexCount, 1)
			o.stats.Draws++
		}
		return true
	})
	if err != nil {
		return fmt.Errorf("main pass: %w", err)
	}
	return nil
}

func (o *FrameOrchestrator) submit() error {
	cmd, err := o.enc.Finish()
	if err != nil {
		return fmt.Errorf("finish encoder: %w", err)
	}
	o.dev.Submit(cmd)
	o.frame++
	o.to(FrameSubmitted)
	return o.openEncoder()
}
