package gpu

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/sprender"
)

// WGPUDevice implements Device over cogentcore/webgpu.
type WGPUDevice struct {
	Adapter *wgpu.Adapter
	Device  *wgpu.Device
	Queue   *wgpu.Queue

	colorFormat wgpu.TextureFormat
	limits      Limits
	log         sprender.Logger

	layouts   map[BindLayout]*wgpu.BindGroupLayout
	pipelines map[PipelineKind]*wgpu.RenderPipeline
	samplers  map[SamplerKind]*wgpu.Sampler
}

// NewWGPUDevice wraps an opened device. colorFormat is the surface format the
// mesh and overlay pipelines render into.
func NewWGPUDevice(adapter *wgpu.Adapter, device *wgpu.Device, colorFormat wgpu.TextureFormat, log sprender.Logger) (*WGPUDevice, error) {
	supported := adapter.GetLimits()
	d := &WGPUDevice{
		Adapter:     adapter,
		Device:      device,
		Queue:       device.GetQueue(),
		colorFormat: colorFormat,
		limits: Limits{
			MinUniformBufferOffsetAlignment: supported.Limits.MinUniformBufferOffsetAlignment,
			MaxTextureDimension2D:           supported.Limits.MaxTextureDimension2D,
		},
		log:       sprender.OrNop(log),
		pipelines: map[PipelineKind]*wgpu.RenderPipeline{},
	}
	if err := d.createLayouts(); err != nil {
		return nil, err
	}
	if err := d.createSamplers(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *WGPUDevice) Limits() Limits { return d.limits }

func (d *WGPUDevice) CreateBuffer(desc BufferDesc) (Buffer, error) {
	usage := toWGPUBufferUsage(desc.Usage)
	if len(desc.Contents) > 0 {
		buf, err := d.Device.CreateBufferInit(&wgpu.BufferInitDescriptor{
			Label:    desc.Label,
			Contents: desc.Contents,
			Usage:    usage,
		})
		if err != nil {
			return nil, fmt.Errorf("create buffer %q: %w", desc.Label, err)
		}
		return &wgpuBuffer{buf: buf, size: uint64(len(desc.Contents))}, nil
	}
	buf, err := d.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create buffer %q: %w", desc.Label, err)
	}
	return &wgpuBuffer{buf: buf, size: desc.Size}, nil
}

func (d *WGPUDevice) CreateStagingBuffer(label string, size uint64) (StagingBuffer, error) {
	buf, err := d.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label,
		Size:             size,
		Usage:            wgpu.BufferUsageMapWrite | wgpu.BufferUsageCopySrc,
		MappedAtCreation: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer %q: %w", label, err)
	}
	return &wgpuBuffer{buf: buf, size: size, mapped: true}, nil
}

func (d *WGPUDevice) WriteBuffer(dst Buffer, offset uint64, data []byte) error {
	return d.Queue.WriteBuffer(dst.(*wgpuBuffer).buf, offset, data)
}

func (d *WGPUDevice) CreateTexture(desc TextureDesc) (Texture, error) {
	levels := uint32(max(1, len(desc.Levels)))
	format := toWGPUTextureFormat(desc.Format)
	tex, err := d.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: levels,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         toWGPUTextureUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("create texture %q: %w", desc.Label, err)
	}

	bpp := bytesPerPixel(desc.Format)
	for level, pixels := range desc.Levels {
		w := max(1, desc.Width>>level)
		h := max(1, desc.Height>>level)
		if uint32(len(pixels)) != w*h*bpp {
			tex.Release()
			return nil, fmt.Errorf("texture %q level %d: %d bytes, want %d", desc.Label, level, len(pixels), w*h*bpp)
		}
		d.Queue.WriteTexture(
			&wgpu.ImageCopyTexture{
				Texture:  tex,
				MipLevel: uint32(level),
				Origin:   wgpu.Origin3D{},
				Aspect:   wgpu.TextureAspectAll,
			},
			pixels,
			&wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  w * bpp,
				RowsPerImage: h,
			},
			&wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		)
	}

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("texture view %q: %w", desc.Label, err)
	}
	return &wgpuTexture{tex: tex, view: view, w: desc.Width, h: desc.Height, format: desc.Format}, nil
}

func (d *WGPUDevice) CreateBindGroup(desc BindGroupDesc) (BindGroup, error) {
	layout, ok := d.layouts[desc.Layout]
	if !ok {
		return nil, fmt.Errorf("bind group %q: unknown layout %d", desc.Label, desc.Layout)
	}
	entries := make([]wgpu.BindGroupEntry, 0, len(desc.Entries))
	for _, e := range desc.Entries {
		entry := wgpu.BindGroupEntry{Binding: e.Binding}
		switch {
		case e.Buffer != nil:
			entry.Buffer = e.Buffer.(*wgpuBuffer).buf
			entry.Offset = e.Offset
			entry.Size = e.Size
			if entry.Size == 0 {
				entry.Size = wgpu.WholeSize
			}
		case e.Texture != nil:
			entry.TextureView = e.Texture.(*wgpuTexture).view
		case e.Sampler != SamplerNone:
			entry.Sampler = d.samplers[e.Sampler]
		default:
			return nil, fmt.Errorf("bind group %q: empty entry for binding %d", desc.Label, e.Binding)
		}
		entries = append(entries, entry)
	}
	bg, err := d.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group %q: %w", desc.Label, err)
	}
	return &wgpuBindGroup{bg: bg}, nil
}

func (d *WGPUDevice) CreateCommandEncoder(label string) (CommandEncoder, error) {
	enc, err := d.Device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	return &wgpuEncoder{dev: d, enc: enc}, nil
}

func (d *WGPUDevice) Submit(cmd CommandBuffer) {
	cb := cmd.(*wgpuCommandBuffer)
	d.Queue.Submit(cb.cb)
	cb.Release()
}

func (d *WGPUDevice) Poll() {
	d.Device.Poll(false, nil)
}

func (d *WGPUDevice) Release() {
	for _, p := range d.pipelines {
		p.Release()
	}
	for _, s := range d.samplers {
		s.Release()
	}
	for _, l := range d.layouts {
		l.Release()
	}
	d.Device.Release()
	d.Adapter.Release()
}

type wgpuBuffer struct {
	buf    *wgpu.Buffer
	size   uint64
	mapped bool
}

func (b *wgpuBuffer) Size() uint64 { return b.size }
func (b *wgpuBuffer) Release()     { b.buf.Release() }

func (b *wgpuBuffer) MappedRange() []byte {
	if !b.mapped {
		return nil
	}
	return b.buf.GetMappedRange(0, uint(b.size))
}

func (b *wgpuBuffer) Unmap() {
	if !b.mapped {
		return
	}
	b.buf.Unmap()
	b.mapped = false
}

func (b *wgpuBuffer) MapAsync(done func(ok bool)) error {
	if b.mapped {
		return errors.New("buffer already mapped")
	}
	return b.buf.MapAsync(wgpu.MapModeWrite, 0, b.size, func(status wgpu.BufferMapAsyncStatus) {
		ok := status == wgpu.BufferMapAsyncStatusSuccess
		b.mapped = ok
		done(ok)
	})
}

type wgpuTexture struct {
	tex    *wgpu.Texture
	view   *wgpu.TextureView
	w, h   uint32
	format TextureFormat
}

func (t *wgpuTexture) Width() uint32         { return t.w }
func (t *wgpuTexture) Height() uint32        { return t.h }
func (t *wgpuTexture) Format() TextureFormat { return t.format }

func (t *wgpuTexture) Release() {
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.tex != nil {
		t.tex.Release()
		t.tex = nil
	}
}

type wgpuBindGroup struct {
	bg *wgpu.BindGroup
}

func (g *wgpuBindGroup) Release() { g.bg.Release() }

type wgpuCommandBuffer struct {
	cb *wgpu.CommandBuffer
}

func (c *wgpuCommandBuffer) Release() { c.cb.Release() }

type wgpuEncoder struct {
	dev *WGPUDevice
	enc *wgpu.CommandEncoder
}

func (e *wgpuEncoder) CopyBufferToBuffer(src Buffer, srcOffset uint64, dst Buffer, dstOffset uint64, size uint64) {
	e.enc.CopyBufferToBuffer(src.(*wgpuBuffer).buf, srcOffset, dst.(*wgpuBuffer).buf, dstOffset, size)
}

func (e *wgpuEncoder) BeginRenderPass(desc RenderPassDesc) RenderPass {
	rp := &wgpu.RenderPassDescriptor{Label: desc.Label}
	if c := desc.Color; c != nil {
		att := wgpu.RenderPassColorAttachment{
			View:    c.Texture.(*wgpuTexture).view,
			LoadOp:  wgpu.LoadOpLoad,
			StoreOp: wgpu.StoreOpStore,
		}
		if c.Clear != nil {
			att.LoadOp = wgpu.LoadOpClear
			att.ClearValue = wgpu.Color{R: c.Clear[0], G: c.Clear[1], B: c.Clear[2], A: c.Clear[3]}
		}
		rp.ColorAttachments = []wgpu.RenderPassColorAttachment{att}
	}
	if dt := desc.Depth; dt != nil {
		load := wgpu.LoadOpLoad
		if dt.Clear {
			load = wgpu.LoadOpClear
		}
		rp.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            dt.Texture.(*wgpuTexture).view,
			DepthLoadOp:     load,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		}
	}
	return &wgpuPass{dev: e.dev, pass: e.enc.BeginRenderPass(rp)}
}

func (e *wgpuEncoder) Finish() (CommandBuffer, error) {
	cb, err := e.enc.Finish(nil)
	e.enc.Release()
	e.enc = nil
	if err != nil {
		return nil, fmt.Errorf("finish encoder: %w", err)
	}
	return &wgpuCommandBuffer{cb: cb}, nil
}

func (e *wgpuEncoder) Release() {
	if e.enc != nil {
		e.enc.Release()
		e.enc = nil
	}
}

type wgpuPass struct {
	dev  *WGPUDevice
	pass *wgpu.RenderPassEncoder
}

func (p *wgpuPass) SetPipeline(kind PipelineKind) {
	pl, ok := p.dev.pipelines[kind]
	if !ok {
		p.dev.log.Errorf("pipeline %s not built", kind)
		return
	}
	p.pass.SetPipeline(pl)
}

func (p *wgpuPass) SetBindGroup(group uint32, bg BindGroup, dynamicOffsets []uint32) {
	p.pass.SetBindGroup(group, bg.(*wgpuBindGroup).bg, dynamicOffsets)
}

func (p *wgpuPass) SetVertexBuffer(slot uint32, buf Buffer) {
	p.pass.SetVertexBuffer(slot, buf.(*wgpuBuffer).buf, 0, wgpu.WholeSize)
}

func (p *wgpuPass) SetIndexBuffer(buf Buffer, format IndexFormat) {
	f := wgpu.IndexFormatUint32
	if format == IndexUint16 {
		f = wgpu.IndexFormatUint16
	}
	p.pass.SetIndexBuffer(buf.(*wgpuBuffer).buf, f, 0, wgpu.WholeSize)
}

func (p *wgpuPass) DrawIndexed(indexCount, instanceCount uint32) {
	p.pass.DrawIndexed(indexCount, instanceCount, 0, 0, 0)
}

func (p *wgpuPass) Draw(vertexCount, instanceCount uint32) {
	p.pass.Draw(vertexCount, instanceCount, 0, 0)
}

func (p *wgpuPass) End() error {
	err := p.pass.End()
	p.pass.Release()
	return err
}

// WGPUSurface implements Surface over a configured wgpu.Surface.
type WGPUSurface struct {
	surface *wgpu.Surface
	adapter *wgpu.Adapter
	device  *wgpu.Device
	config  *wgpu.SurfaceConfiguration
	frame   *wgpuTexture
}

func NewWGPUSurface(surface *wgpu.Surface, adapter *wgpu.Adapter, device *wgpu.Device, config *wgpu.SurfaceConfiguration) *WGPUSurface {
	surface.Configure(adapter, device, config)
	return &WGPUSurface{surface: surface, adapter: adapter, device: device, config: config}
}

func (s *WGPUSurface) Acquire() (Texture, error) {
	tex, err := s.surface.GetCurrentTexture()
	if err != nil {
		return nil, fmt.Errorf("acquire surface texture: %w", err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("surface view: %w", err)
	}
	s.frame = &wgpuTexture{tex: tex, view: view, w: s.config.Width, h: s.config.Height, format: FormatRGBA8}
	return s.frame, nil
}

func (s *WGPUSurface) Present() {
	s.surface.Present()
	if s.frame != nil {
		s.frame.Release()
		s.frame = nil
	}
}

func (s *WGPUSurface) Resize(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	s.config.Width = width
	s.config.Height = height
	s.surface.Configure(s.adapter, s.device, s.config)
}

func (s *WGPUSurface) Size() (uint32, uint32) { return s.config.Width, s.config.Height }

func (s *WGPUSurface) Format() wgpu.TextureFormat { return s.config.Format }

func toWGPUBufferUsage(u BufferUsage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	if u&BufferVertex != 0 {
		out |= wgpu.BufferUsageVertex
	}
	if u&BufferIndex != 0 {
		out |= wgpu.BufferUsageIndex
	}
	if u&BufferUniform != 0 {
		out |= wgpu.BufferUsageUniform
	}
	if u&BufferCopySrc != 0 {
		out |= wgpu.BufferUsageCopySrc
	}
	if u&BufferCopyDst != 0 {
		out |= wgpu.BufferUsageCopyDst
	}
	if u&BufferMapWrite != 0 {
		out |= wgpu.BufferUsageMapWrite
	}
	return out
}

func toWGPUTextureUsage(u TextureUsage) wgpu.TextureUsage {
	var out wgpu.TextureUsage
	if u&TextureSampled != 0 {
		out |= wgpu.TextureUsageTextureBinding
	}
	if u&TextureCopyDst != 0 {
		out |= wgpu.TextureUsageCopyDst
	}
	if u&TextureRenderTarget != 0 {
		out |= wgpu.TextureUsageRenderAttachment
	}
	return out
}

func toWGPUTextureFormat(f TextureFormat) wgpu.TextureFormat {
	switch f {
	case FormatR8:
		return wgpu.TextureFormatR8Unorm
	case FormatDepth32:
		return wgpu.TextureFormatDepth32Float
	}
	return wgpu.TextureFormatRGBA8Unorm
}

func bytesPerPixel(f TextureFormat) uint32 {
	switch f {
	case FormatR8:
		return 1
	case FormatDepth32:
		return 4
	}
	return 4
}
