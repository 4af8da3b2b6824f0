package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/sprender/sprt/rt/shaders"
)

// Bind group indices per pipeline.
const (
	MeshGroupFrame    = 0
	MeshGroupMaterial = 1
	MeshGroupInstance = 2

	ShadowGroupLight    = 0
	ShadowGroupInstance = 1

	OverlayGroupAtlas = 0
)

// VertexStride is the size of assets.Vertex: position, normal, uv.
const VertexStride = 32

// OverlayVertexStride is the size of one overlay vertex: pos, uv, rgba.
const OverlayVertexStride = 32

// PipelineBuilder is implemented by devices that compile the fixed pipelines
// once the uniform light stride is known.
type PipelineBuilder interface {
	BuildPipelines(lightStride uint64, maxLights uint32) error
}

func uniformEntry(binding uint32, vis wgpu.ShaderStage, minSize uint64, dynamic bool) wgpu.BindGroupLayoutEntry {
	return wgpu.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: vis,
		Buffer: wgpu.BufferBindingLayout{
			Type:             wgpu.BufferBindingTypeUniform,
			MinBindingSize:   minSize,
			HasDynamicOffset: dynamic,
		},
	}
}

func textureEntry(binding uint32, sampleType wgpu.TextureSampleType) wgpu.BindGroupLayoutEntry {
	return wgpu.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: wgpu.ShaderStageFragment,
		Texture: wgpu.TextureBindingLayout{
			SampleType:    sampleType,
			ViewDimension: wgpu.TextureViewDimension2D,
			Multisampled:  false,
		},
	}
}

func samplerEntry(binding uint32, kind wgpu.SamplerBindingType) wgpu.BindGroupLayoutEntry {
	return wgpu.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: wgpu.ShaderStageFragment,
		Sampler:    wgpu.SamplerBindingLayout{Type: kind},
	}
}

func (d *WGPUDevice) createLayouts() error {
	vf := wgpu.ShaderStageVertex | wgpu.ShaderStageFragment
	descs := map[BindLayout]*wgpu.BindGroupLayoutDescriptor{
		LayoutFrame: {
			Label: "FrameBGL",
			Entries: []wgpu.BindGroupLayoutEntry{
				uniformEntry(0, vf, CameraSize, false),
				uniformEntry(1, wgpu.ShaderStageFragment, 0, false),
				textureEntry(2, wgpu.TextureSampleTypeDepth),
				samplerEntry(3, wgpu.SamplerBindingTypeComparison),
			},
		},
		LayoutMaterial: {
			Label: "MaterialBGL",
			Entries: []wgpu.BindGroupLayoutEntry{
				uniformEntry(0, wgpu.ShaderStageFragment, MaterialParamsSize, false),
				textureEntry(1, wgpu.TextureSampleTypeFloat),
				textureEntry(2, wgpu.TextureSampleTypeFloat),
				textureEntry(3, wgpu.TextureSampleTypeFloat),
				samplerEntry(4, wgpu.SamplerBindingTypeFiltering),
			},
		},
		LayoutInstance: {
			Label:   "InstanceBGL",
			Entries: []wgpu.BindGroupLayoutEntry{uniformEntry(0, vf, ModelSize, true)},
		},
		LayoutShadowLight: {
			Label:   "ShadowLightBGL",
			Entries: []wgpu.BindGroupLayoutEntry{uniformEntry(0, wgpu.ShaderStageVertex, LightSize, true)},
		},
		LayoutOverlay: {
			Label: "OverlayBGL",
			Entries: []wgpu.BindGroupLayoutEntry{
				textureEntry(0, wgpu.TextureSampleTypeFloat),
				samplerEntry(1, wgpu.SamplerBindingTypeFiltering),
			},
		},
	}
	d.layouts = make(map[BindLayout]*wgpu.BindGroupLayout, len(descs))
	for kind, desc := range descs {
		l, err := d.Device.CreateBindGroupLayout(desc)
		if err != nil {
			return fmt.Errorf("create %s: %w", desc.Label, err)
		}
		d.layouts[kind] = l
	}
	return nil
}

func (d *WGPUDevice) createSamplers() error {
	descs := map[SamplerKind]*wgpu.SamplerDescriptor{
		SamplerLinearRepeat: {
			Label:         "LinearRepeat",
			AddressModeU:  wgpu.AddressModeRepeat,
			AddressModeV:  wgpu.AddressModeRepeat,
			AddressModeW:  wgpu.AddressModeRepeat,
			MagFilter:     wgpu.FilterModeLinear,
			MinFilter:     wgpu.FilterModeLinear,
			MipmapFilter:  wgpu.MipmapFilterModeLinear,
			LodMaxClamp:   32.0,
			MaxAnisotropy: 1,
		},
		SamplerLinearClamp: {
			Label:         "LinearClamp",
			AddressModeU:  wgpu.AddressModeClampToEdge,
			AddressModeV:  wgpu.AddressModeClampToEdge,
			AddressModeW:  wgpu.AddressModeClampToEdge,
			MagFilter:     wgpu.FilterModeLinear,
			MinFilter:     wgpu.FilterModeLinear,
			MipmapFilter:  wgpu.MipmapFilterModeNearest,
			LodMaxClamp:   32.0,
			MaxAnisotropy: 1,
		},
		SamplerShadowCompare: {
			Label:         "ShadowCompare",
			AddressModeU:  wgpu.AddressModeClampToEdge,
			AddressModeV:  wgpu.AddressModeClampToEdge,
			AddressModeW:  wgpu.AddressModeClampToEdge,
			MagFilter:     wgpu.FilterModeLinear,
			MinFilter:     wgpu.FilterModeLinear,
			MipmapFilter:  wgpu.MipmapFilterModeNearest,
			LodMaxClamp:   32.0,
			MaxAnisotropy: 1,
			Compare:       wgpu.CompareFunctionLessEqual,
		},
	}
	d.samplers = make(map[SamplerKind]*wgpu.Sampler, len(descs))
	for kind, desc := range descs {
		s, err := d.Device.CreateSampler(desc)
		if err != nil {
			return fmt.Errorf("create sampler %s: %w", desc.Label, err)
		}
		d.samplers[kind] = s
	}
	return nil
}

func (d *WGPUDevice) shaderModule(label, code string) (*wgpu.ShaderModule, error) {
	m, err := d.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: code},
	})
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", label, err)
	}
	return m, nil
}

func (d *WGPUDevice) pipelineLayout(label string, groups ...BindLayout) (*wgpu.PipelineLayout, error) {
	layouts := make([]*wgpu.BindGroupLayout, len(groups))
	for i, g := range groups {
		layouts[i] = d.layouts[g]
	}
	pl, err := d.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	return pl, nil
}

func depthState(write bool, compare wgpu.CompareFunction) *wgpu.DepthStencilState {
	return &wgpu.DepthStencilState{
		Format:            wgpu.TextureFormatDepth32Float,
		DepthWriteEnabled: write,
		DepthCompare:      compare,
		StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
	}
}

var multisampleOff = wgpu.MultisampleState{Count: 1, Mask: 0xFFFFFFFF}

// BuildPipelines compiles the mesh, shadow and overlay pipelines.
func (d *WGPUDevice) BuildPipelines(lightStride uint64, maxLights uint32) error {
	meshModule, err := d.shaderModule("MeshShader", shaders.Mesh(lightStride, maxLights))
	if err != nil {
		return err
	}
	defer meshModule.Release()
	shadowModule, err := d.shaderModule("ShadowShader", shaders.ShadowWGSL)
	if err != nil {
		return err
	}
	defer shadowModule.Release()
	overlayModule, err := d.shaderModule("OverlayShader", shaders.OverlayWGSL)
	if err != nil {
		return err
	}
	defer overlayModule.Release()

	meshLayout, err := d.pipelineLayout("MeshPL", LayoutFrame, LayoutMaterial, LayoutInstance)
	if err != nil {
		return err
	}
	shadowLayout, err := d.pipelineLayout("ShadowPL", LayoutShadowLight, LayoutInstance)
	if err != nil {
		return err
	}
	overlayLayout, err := d.pipelineLayout("OverlayPL", LayoutOverlay)
	if err != nil {
		return err
	}

	meshVertex := wgpu.VertexBufferLayout{
		ArrayStride: VertexStride,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes: []wgpu.VertexAttribute{
			{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
			{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
			{Format: wgpu.VertexFormatFloat32x2, Offset: 24, ShaderLocation: 2},
		},
	}

	mesh, err := d.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "MeshPipeline",
		Layout: meshLayout,
		Vertex: wgpu.VertexState{
			Module:     meshModule,
			EntryPoint: "vs_main",
			Buffers:    []wgpu.VertexBufferLayout{meshVertex},
		},
		Fragment: &wgpu.FragmentState{
			Module:     meshModule,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{Format: d.colorFormat, WriteMask: wgpu.ColorWriteMaskAll},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeBack,
		},
		DepthStencil: depthState(true, wgpu.CompareFunctionLess),
		Multisample:  multisampleOff,
	})
	if err != nil {
		return fmt.Errorf("create mesh pipeline: %w", err)
	}
	d.pipelines[PipelineMesh] = mesh

	shadowDepth := depthState(true, wgpu.CompareFunctionLess)
	shadowDepth.DepthBias = 2
	shadowDepth.DepthBiasSlopeScale = 2.0
	shadow, err := d.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "ShadowPipeline",
		Layout: shadowLayout,
		Vertex: wgpu.VertexState{
			Module:     shadowModule,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: VertexStride,
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes:  meshVertex.Attributes[:1],
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeBack,
		},
		DepthStencil: shadowDepth,
		Multisample:  multisampleOff,
	})
	if err != nil {
		return fmt.Errorf("create shadow pipeline: %w", err)
	}
	d.pipelines[PipelineShadow] = shadow

	overlay, err := d.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "OverlayPipeline",
		Layout: overlayLayout,
		Vertex: wgpu.VertexState{
			Module:     overlayModule,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: OverlayVertexStride,
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes: []wgpu.VertexAttribute{
					{Format: wgpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
					{Format: wgpu.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
					{Format: wgpu.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 2},
				},
			}},
		},
		Fragment: &wgpu.FragmentState{
			Module:     overlayModule,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    d.colorFormat,
				WriteMask: wgpu.ColorWriteMaskAll,
				Blend: &wgpu.BlendState{
					Color: wgpu.BlendComponent{
						Operation: wgpu.BlendOperationAdd,
						SrcFactor: wgpu.BlendFactorSrcAlpha,
						DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
					},
					Alpha: wgpu.BlendComponent{
						Operation: wgpu.BlendOperationAdd,
						SrcFactor: wgpu.BlendFactorOne,
						DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
					},
				},
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		DepthStencil: depthState(false, wgpu.CompareFunctionAlways),
		Multisample:  multisampleOff,
	})
	if err != nil {
		return fmt.Errorf("create overlay pipeline: %w", err)
	}
	d.pipelines[PipelineOverlay] = overlay

	d.log.Debugf("pipelines built: light stride %d, %d lights", lightStride, maxLights)
	return nil
}
