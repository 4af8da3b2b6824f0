package gpu

// The renderer core records into these interfaces only. wgpu_backend.go
// implements them over cogentcore/webgpu; gputest fakes them for tests.

type BufferUsage uint32

const (
	BufferVertex BufferUsage = 1 << iota
	BufferIndex
	BufferUniform
	BufferCopySrc
	BufferCopyDst
	BufferMapWrite
)

type IndexFormat uint8

const (
	IndexUint32 IndexFormat = iota
	IndexUint16
)

type TextureFormat uint8

const (
	FormatRGBA8 TextureFormat = iota
	FormatR8
	FormatDepth32
)

type TextureUsage uint32

const (
	TextureSampled TextureUsage = 1 << iota
	TextureCopyDst
	TextureRenderTarget
)

// BindLayout names one of the fixed bind group layouts the pipelines are built
// against.
type BindLayout uint8

const (
	// LayoutFrame: camera, light array, shadow map, comparison sampler.
	LayoutFrame BindLayout = iota
	// LayoutMaterial: params, albedo, normal, emissive, filtering sampler.
	LayoutMaterial
	// LayoutInstance: one model uniform read at a dynamic offset.
	LayoutInstance
	// LayoutShadowLight: one light uniform read at a dynamic offset.
	LayoutShadowLight
	// LayoutOverlay: glyph atlas and sampler.
	LayoutOverlay
)

type PipelineKind uint8

const (
	PipelineMesh PipelineKind = iota
	PipelineShadow
	PipelineOverlay
)

func (k PipelineKind) String() string {
	switch k {
	case PipelineMesh:
		return "mesh"
	case PipelineShadow:
		return "shadow"
	case PipelineOverlay:
		return "overlay"
	}
	return "unknown"
}

type Limits struct {
	MinUniformBufferOffsetAlignment uint32
	MaxTextureDimension2D           uint32
}

type BufferDesc struct {
	Label string
	Size  uint64
	Usage BufferUsage
	// Contents, when set, is uploaded at creation and Size may be left zero.
	Contents []byte
}

type TextureDesc struct {
	Label  string
	Width  uint32
	Height uint32
	Format TextureFormat
	Usage  TextureUsage
	// Levels holds tightly packed pixel data per mip level, level 0 first.
	// Empty means the texture starts undefined (render targets).
	Levels [][]byte
}

// SamplerKind selects one of the device's shared samplers.
type SamplerKind uint8

const (
	SamplerNone SamplerKind = iota
	SamplerLinearRepeat
	SamplerLinearClamp
	SamplerShadowCompare
)

type BindEntry struct {
	Binding uint32
	Buffer  Buffer
	Offset  uint64
	// Size is the bound range; for dynamic-offset bindings it is one element.
	Size    uint64
	Texture Texture
	Sampler SamplerKind
}

type BindGroupDesc struct {
	Label   string
	Layout  BindLayout
	Entries []BindEntry
}

type ColorTarget struct {
	Texture Texture
	// Clear, when non-nil, clears to the given RGBA; nil loads.
	Clear *[4]float64
}

type DepthTarget struct {
	Texture Texture
	Clear   bool
}

type RenderPassDesc struct {
	Label string
	Color *ColorTarget
	Depth *DepthTarget
}

type Device interface {
	Limits() Limits
	CreateBuffer(desc BufferDesc) (Buffer, error)
	// CreateStagingBuffer returns a MapWrite|CopySrc buffer that is already
	// mapped.
	CreateStagingBuffer(label string, size uint64) (StagingBuffer, error)
	WriteBuffer(dst Buffer, offset uint64, data []byte) error
	CreateTexture(desc TextureDesc) (Texture, error)
	CreateBindGroup(desc BindGroupDesc) (BindGroup, error)
	CreateCommandEncoder(label string) (CommandEncoder, error)
	Submit(cmd CommandBuffer)
	// Poll services pending map callbacks without blocking.
	Poll()
}

type Buffer interface {
	Size() uint64
	Release()
}

type StagingBuffer interface {
	Buffer
	// MappedRange is the whole buffer; only valid while mapped.
	MappedRange() []byte
	Unmap()
	// MapAsync requests write access again. done runs from a later Poll.
	MapAsync(done func(ok bool)) error
}

type Texture interface {
	Width() uint32
	Height() uint32
	Format() TextureFormat
	Release()
}

type BindGroup interface {
	Release()
}

type CommandBuffer interface {
	Release()
}

type CommandEncoder interface {
	CopyBufferToBuffer(src Buffer, srcOffset uint64, dst Buffer, dstOffset uint64, size uint64)
	BeginRenderPass(desc RenderPassDesc) RenderPass
	Finish() (CommandBuffer, error)
	// Release drops an encoder that will not be finished. It is a no-op
	// after Finish.
	Release()
}

type RenderPass interface {
	SetPipeline(kind PipelineKind)
	SetBindGroup(group uint32, bg BindGroup, dynamicOffsets []uint32)
	SetVertexBuffer(slot uint32, buf Buffer)
	SetIndexBuffer(buf Buffer, format IndexFormat)
	DrawIndexed(indexCount, instanceCount uint32)
	Draw(vertexCount, instanceCount uint32)
	End() error
}

// Surface is the swap chain collaborator.
type Surface interface {
	// Acquire returns the frame's color target. Present must follow.
	Acquire() (Texture, error)
	Present()
	Resize(width, height uint32)
	Size() (uint32, uint32)
}
