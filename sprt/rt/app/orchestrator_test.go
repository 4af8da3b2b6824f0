package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/sprender/sprt/rt/core"
	"github.com/gekko3d/sprender/sprt/rt/gpu"
	"github.com/gekko3d/sprender/sprt/rt/gpu/gputest"
	"github.com/gekko3d/sprender/sprt/rt/pool"
)

type strideOffsets struct{}

func (strideOffsets) ModelOffset(id uint32) (uint32, error) { return (id - 1) * 256, nil }

type recordingOverlay struct {
	prepared, drawn int
	prepareErr      error
}

func (o *recordingOverlay) Prepare(gpu.Device, gpu.Texture) error {
	o.prepared++
	return o.prepareErr
}

func (o *recordingOverlay) Draw(pass gpu.RenderPass) error {
	o.drawn++
	pass.Draw(6, 1)
	return nil
}

type scene struct {
	res    *core.Resources
	batch  *core.FrameBatcher
	meshA  pool.Handle
	meshB  pool.Handle
	m, m2  pool.Handle
	inputs FrameInputs
}

func newScene(t *testing.T) *scene {
	t.Helper()
	s := &scene{
		res:   core.NewResources(core.Capacities{Meshes: 4, Materials: 4, Lights: 2, RenderMeshes: 8}),
		batch: core.NewFrameBatcher(4, 8),
	}
	var err error
	s.meshA, err = s.res.Meshes.Insert(core.Mesh{Label: "A", Vertex: &gputest.Buffer{Label: "A.vb"}, Index: &gputest.Buffer{Label: "A.ib"}, IndexCount: 36})
	require.NoError(t, err)
	s.meshB, err = s.res.Meshes.Insert(core.Mesh{Label: "B", Vertex: &gputest.Buffer{Label: "B.vb"}, Index: &gputest.Buffer{Label: "B.ib"}, IndexCount: 6})
	require.NoError(t, err)
	s.m, err = s.res.Materials.Insert(core.Material{Label: "M", BindGroup: &gputest.BindGroup{Label: "M"}})
	require.NoError(t, err)
	s.m2, err = s.res.Materials.Insert(core.Material{Label: "M2", BindGroup: &gputest.BindGroup{Label: "M2"}})
	require.NoError(t, err)

	s.inputs = FrameInputs{
		Target:        &gputest.Texture{Label: "swap", W: 64, H: 64},
		Depth:         &gputest.Texture{Label: "depth", W: 64, H: 64, Fmt: gpu.FormatDepth32},
		FrameGroup:    &gputest.BindGroup{Label: "frame"},
		InstanceGroup: &gputest.BindGroup{Label: "instance"},
		Offsets:       strideOffsets{},
	}
	return s
}

func (s *scene) add(t *testing.T, mesh, mat pool.Handle) pool.Handle {
	t.Helper()
	h, err := s.res.RenderMeshes.Insert(core.RenderMesh{Mesh: mesh, Material: mat})
	require.NoError(t, err)
	return h
}

func TestOrchestratorBatchesByMaterial(t *testing.T) {
	dev := gputest.NewDevice()
	o, err := NewFrameOrchestrator(dev, nil)
	require.NoError(t, err)
	s := newScene(t)

	// M, M2, M: the two M instances draw back to back under one bind
	s.add(t, s.meshA, s.m)
	s.add(t, s.meshA, s.m2)
	s.add(t, s.meshA, s.m)
	require.Equal(t, 3, s.batch.Sort(s.res))

	dev.Reset()
	require.NoError(t, o.Run(s.inputs, s.res, s.batch))

	var groups []string
	var offsets [][]uint32
	for _, c := range dev.Filter(gputest.OpSetBindGroup) {
		groups = append(groups, c.BindGroup.Label)
		if c.BindGroup.Label == "instance" {
			offsets = append(offsets, c.Offsets)
		}
	}
	assert.Equal(t, []string{"frame", "M", "instance", "instance", "M2", "instance"}, groups)
	assert.Equal(t, [][]uint32{{0}, {512}, {256}}, offsets)

	st := o.Stats()
	assert.Equal(t, 3, st.Draws)
	assert.Equal(t, 2, st.MaterialBinds)
	assert.Equal(t, 1, st.VertexBinds, "same mesh bound once per pass")
	assert.Equal(t, 1, st.IndexBinds)
	assert.Zero(t, st.ShadowDraws)
}

func TestOrchestratorRebindsOnMeshChange(t *testing.T) {
	dev := gputest.NewDevice()
	o, err := NewFrameOrchestrator(dev, nil)
	require.NoError(t, err)
	s := newScene(t)
	s.add(t, s.meshA, s.m)
	s.add(t, s.meshB, s.m)
	s.add(t, s.meshB, s.m)
	s.batch.Sort(s.res)

	require.NoError(t, o.Run(s.inputs, s.res, s.batch))
	assert.Equal(t, 2, o.Stats().VertexBinds)
	draws := dev.Filter(gputest.OpDrawIndexed)
	require.Len(t, draws, 3)
	assert.Equal(t, uint32(36), draws[0].Count)
	assert.Equal(t, uint32(6), draws[1].Count)
}

func TestOrchestratorPassOrderAndStates(t *testing.T) {
	dev := gputest.NewDevice()
	o, err := NewFrameOrchestrator(dev, nil)
	require.NoError(t, err)
	var states []FrameState
	o.OnTransition = func(_, to FrameState) { states = append(states, to) }

	s := newScene(t)
	s.add(t, s.meshA, s.m)
	s.add(t, s.meshB, s.m2)
	s.batch.Sort(s.res)
	overlay := &recordingOverlay{}
	s.inputs.Overlay = overlay
	s.inputs.Shadow = &ShadowInputs{
		Map:         &gputest.Texture{Label: "shadow-map", Fmt: gpu.FormatDepth32},
		LightGroup:  &gputest.BindGroup{Label: "light"},
		LightOffset: 256,
	}

	dev.Reset()
	require.NoError(t, o.Run(s.inputs, s.res, s.batch))

	assert.Equal(t, []FrameState{FrameShadowPass, FrameMainPass, FrameOverlayPass, FrameSubmitted, FrameIdle}, states)
	assert.Equal(t, FrameIdle, o.State())

	passes := dev.Filter(gputest.OpBeginPass)
	require.Len(t, passes, 2)
	assert.Equal(t, "shadow", passes[0].Label)
	assert.Equal(t, "shadow-map", passes[0].Depth.Label)
	assert.Nil(t, passes[0].Color)
	assert.Equal(t, "main", passes[1].Label)
	assert.Equal(t, "swap", passes[1].Color.Label)

	pipelines := dev.Filter(gputest.OpSetPipeline)
	require.Len(t, pipelines, 2)
	assert.Equal(t, gpu.PipelineShadow, pipelines[0].Pipeline)
	assert.Equal(t, gpu.PipelineMesh, pipelines[1].Pipeline)

	light := dev.Filter(gputest.OpSetBindGroup)[0]
	assert.Equal(t, "light", light.BindGroup.Label)
	assert.Equal(t, []uint32{256}, light.Offsets)

	assert.Equal(t, 2, o.Stats().ShadowDraws)
	assert.Equal(t, 2, o.Stats().Draws)
	assert.Equal(t, 1, overlay.prepared)
	assert.Equal(t, 1, overlay.drawn)

	// the overlay draw lands in the main pass, which then ends; submit opens
	// the next encoder
	ops := dev.Ops()
	tail := ops[len(ops)-5:]
	assert.Equal(t, []gputest.Op{gputest.OpDraw, gputest.OpEndPass, gputest.OpFinish, gputest.OpSubmit, gputest.OpCreateEncoder}, tail)
	assert.Equal(t, uint64(1), o.Frames())
}

func TestOrchestratorSkipsUnresolvedEntries(t *testing.T) {
	dev := gputest.NewDevice()
	o, err := NewFrameOrchestrator(dev, nil)
	require.NoError(t, err)
	s := newScene(t)
	s.add(t, s.meshA, s.m)
	gone := s.add(t, s.meshB, s.m)
	s.batch.Sort(s.res)
	// removed after sorting: the run still names it
	s.res.RenderMeshes.Remove(gone)

	require.NoError(t, o.Run(s.inputs, s.res, s.batch))
	assert.Equal(t, 1, o.Stats().Draws)
}

func TestOrchestratorRecoversFromError(t *testing.T) {
	dev := gputest.NewDevice()
	o, err := NewFrameOrchestrator(dev, nil)
	require.NoError(t, err)
	s := newScene(t)
	s.add(t, s.meshA, s.m)
	s.batch.Sort(s.res)

	s.inputs.Overlay = &recordingOverlay{prepareErr: gputest.ErrInjected}
	err = o.Run(s.inputs, s.res, s.batch)
	require.ErrorIs(t, err, gputest.ErrInjected)
	assert.Equal(t, FrameIdle, o.State())
	assert.Zero(t, dev.Submitted)

	s.inputs.Overlay = nil
	require.NoError(t, o.Run(s.inputs, s.res, s.batch))
	assert.Equal(t, 1, dev.Submitted)

	s.inputs.Depth = nil
	assert.Error(t, o.Run(s.inputs, s.res, s.batch))
	assert.Len(t, dev.Filter(gputest.OpDropEncoder), 2, "failed frames drop their encoder")
	assert.Equal(t, FrameIdle, o.State())
	assert.Empty(t, dev.Violations)
}

func TestOrchestratorDiscardDropsFlushedCopies(t *testing.T) {
	dev := gputest.NewDevice()
	o, err := NewFrameOrchestrator(dev, nil)
	require.NoError(t, err)
	s := newScene(t)
	s.add(t, s.meshA, s.m)
	s.batch.Sort(s.res)

	staging, err := dev.CreateStagingBuffer("staging", 64)
	require.NoError(t, err)
	dst := &gputest.Buffer{Label: "dst", Data: make([]byte, 64)}
	o.Encoder().CopyBufferToBuffer(staging, 0, dst, 0, 64)
	staging.Unmap()
	require.NoError(t, staging.MapAsync(func(bool) {}))

	require.NoError(t, o.Discard())
	require.NoError(t, o.Run(s.inputs, s.res, s.batch))
	assert.Empty(t, dev.Violations, "copies recorded before Discard are never submitted")
	assert.Equal(t, 1, dev.Submitted)
}

func TestFrameStateString(t *testing.T) {
	assert.Equal(t, "shadow", FrameShadowPass.String())
	assert.Equal(t, "submitted", FrameSubmitted.String())
	assert.Equal(t, "unknown", FrameState(42).String())
}
