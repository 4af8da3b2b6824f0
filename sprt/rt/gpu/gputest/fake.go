// Package gputest is an in-memory gpu.Device that records every command so
// frame recording can be checked without a GPU.
package gputest

import (
	"errors"
	"fmt"

	"github.com/gekko3d/sprender/sprt/rt/gpu"
)

type Op string

const (
	OpWriteBuffer   Op = "WriteBuffer"
	OpCopy          Op = "CopyBufferToBuffer"
	OpBeginPass     Op = "BeginRenderPass"
	OpSetPipeline   Op = "SetPipeline"
	OpSetBindGroup  Op = "SetBindGroup"
	OpSetVertex     Op = "SetVertexBuffer"
	OpSetIndex      Op = "SetIndexBuffer"
	OpDrawIndexed   Op = "DrawIndexed"
	OpDraw          Op = "Draw"
	OpEndPass       Op = "EndPass"
	OpFinish        Op = "Finish"
	OpSubmit        Op = "Submit"
	OpCreateEncoder Op = "CreateEncoder"
	OpDropEncoder   Op = "DropEncoder"
)

var ErrInjected = errors.New("gputest: injected failure")

type Command struct {
	Op      Op
	Encoder int
	Label   string

	Pipeline  gpu.PipelineKind
	Group     uint32
	BindGroup *BindGroup
	Offsets   []uint32

	Buffer    *Buffer
	Src       *Buffer
	SrcOffset uint64
	DstOffset uint64
	Size      uint64

	Count     uint32
	Instances uint32

	Color *Texture
	Depth *Texture
}

type Device struct {
	Align uint32

	Commands   []Command
	Buffers    []*Buffer
	Textures   []*Texture
	BindGroups []*BindGroup
	Submitted  int
	Polls      int
	// Violations collects submits that WebGPU validation would reject, such
	// as copies out of a buffer whose map is still pending.
	Violations []string

	// HoldMaps keeps MapAsync callbacks queued across Poll.
	HoldMaps bool
	// FailMaps makes every map callback report failure.
	FailMaps bool
	// FailTextures makes CreateTexture return ErrInjected.
	FailTextures bool

	pendingMaps []func()
	encoders    int
}

func NewDevice() *Device {
	return &Device{Align: 256}
}

func (d *Device) Limits() gpu.Limits {
	return gpu.Limits{MinUniformBufferOffsetAlignment: d.Align, MaxTextureDimension2D: 8192}
}

func (d *Device) CreateBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	size := desc.Size
	if size == 0 {
		size = uint64(len(desc.Contents))
	}
	b := &Buffer{Label: desc.Label, Usage: desc.Usage, Data: make([]byte, size)}
	copy(b.Data, desc.Contents)
	d.Buffers = append(d.Buffers, b)
	return b, nil
}

func (d *Device) CreateStagingBuffer(label string, size uint64) (gpu.StagingBuffer, error) {
	b := &Buffer{
		Label:   label,
		Usage:   gpu.BufferMapWrite | gpu.BufferCopySrc,
		Data:    make([]byte, size),
		Mapped:  true,
		dev:     d,
		staging: true,
	}
	d.Buffers = append(d.Buffers, b)
	return b, nil
}

func (d *Device) WriteBuffer(dst gpu.Buffer, offset uint64, data []byte) error {
	b := dst.(*Buffer)
	if offset+uint64(len(data)) > uint64(len(b.Data)) {
		return fmt.Errorf("gputest: write of %d bytes at %d overflows %s (%d)", len(data), offset, b.Label, len(b.Data))
	}
	copy(b.Data[offset:], data)
	d.Commands = append(d.Commands, Command{Op: OpWriteBuffer, Buffer: b, DstOffset: offset, Size: uint64(len(data))})
	return nil
}

func (d *Device) CreateTexture(desc gpu.TextureDesc) (gpu.Texture, error) {
	if d.FailTextures {
		return nil, ErrInjected
	}
	t := &Texture{Label: desc.Label, W: desc.Width, H: desc.Height, Fmt: desc.Format, Usage: desc.Usage, Levels: len(desc.Levels)}
	d.Textures = append(d.Textures, t)
	return t, nil
}

func (d *Device) CreateBindGroup(desc gpu.BindGroupDesc) (gpu.BindGroup, error) {
	bg := &BindGroup{Label: desc.Label, Layout: desc.Layout, Entries: desc.Entries}
	d.BindGroups = append(d.BindGroups, bg)
	return bg, nil
}

func (d *Device) CreateCommandEncoder(label string) (gpu.CommandEncoder, error) {
	d.encoders++
	d.Commands = append(d.Commands, Command{Op: OpCreateEncoder, Encoder: d.encoders, Label: label})
	return &Encoder{dev: d, ID: d.encoders}, nil
}

func (d *Device) Submit(cmd gpu.CommandBuffer) {
	cb := cmd.(*CommandBuffer)
	for _, src := range cb.sources {
		if src.MapPending || src.Mapped {
			d.Violations = append(d.Violations, fmt.Sprintf("encoder %d copies from %s while it is mapped or mapping", cb.Encoder, src.Label))
		}
		if src.Released {
			d.Violations = append(d.Violations, fmt.Sprintf("encoder %d copies from released %s", cb.Encoder, src.Label))
		}
	}
	d.Submitted++
	d.Commands = append(d.Commands, Command{Op: OpSubmit, Encoder: cb.Encoder})
}

// Poll fires queued map callbacks unless HoldMaps is set.
func (d *Device) Poll() {
	d.Polls++
	if d.HoldMaps {
		return
	}
	d.CompleteMaps()
}

// CompleteMaps fires every queued map callback now.
func (d *Device) CompleteMaps() {
	pending := d.pendingMaps
	d.pendingMaps = nil
	for _, fn := range pending {
		fn()
	}
}

func (d *Device) PendingMaps() int { return len(d.pendingMaps) }

// Ops lists the recorded op names in order.
func (d *Device) Ops() []Op {
	ops := make([]Op, len(d.Commands))
	for i, c := range d.Commands {
		ops[i] = c.Op
	}
	return ops
}

// Filter returns the recorded commands of the given ops, in order.
func (d *Device) Filter(ops ...Op) []Command {
	var out []Command
	for _, c := range d.Commands {
		for _, op := range ops {
			if c.Op == op {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func (d *Device) Reset() { d.Commands = nil }

type Buffer struct {
	Label    string
	Usage    gpu.BufferUsage
	Data     []byte
	Mapped   bool
	Released bool
	// MapPending is set between MapAsync and its callback.
	MapPending bool

	dev     *Device
	staging bool
}

func (b *Buffer) Size() uint64 { return uint64(len(b.Data)) }
func (b *Buffer) Release()     { b.Released = true }

func (b *Buffer) MappedRange() []byte {
	if !b.Mapped {
		return nil
	}
	return b.Data
}

func (b *Buffer) Unmap() { b.Mapped = false }

func (b *Buffer) MapAsync(done func(ok bool)) error {
	if !b.staging {
		return errors.New("gputest: MapAsync on a non-staging buffer")
	}
	if b.Mapped || b.MapPending {
		return errors.New("gputest: buffer already mapped")
	}
	b.MapPending = true
	b.dev.pendingMaps = append(b.dev.pendingMaps, func() {
		b.MapPending = false
		ok := !b.dev.FailMaps
		b.Mapped = ok
		done(ok)
	})
	return nil
}

type Texture struct {
	Label    string
	W, H     uint32
	Fmt      gpu.TextureFormat
	Usage    gpu.TextureUsage
	Levels   int
	Released bool
}

func (t *Texture) Width() uint32             { return t.W }
func (t *Texture) Height() uint32            { return t.H }
func (t *Texture) Format() gpu.TextureFormat { return t.Fmt }
func (t *Texture) Release()                  { t.Released = true }

type BindGroup struct {
	Label    string
	Layout   gpu.BindLayout
	Entries  []gpu.BindEntry
	Released bool
}

func (g *BindGroup) Release() { g.Released = true }

type CommandBuffer struct {
	Encoder int
	sources []*Buffer
}

func (c *CommandBuffer) Release() {}

type Encoder struct {
	ID       int
	Dropped  bool
	dev      *Device
	finished bool
	sources  []*Buffer
}

func (e *Encoder) record(c Command) {
	c.Encoder = e.ID
	e.dev.Commands = append(e.dev.Commands, c)
}

func (e *Encoder) CopyBufferToBuffer(src gpu.Buffer, srcOffset uint64, dst gpu.Buffer, dstOffset uint64, size uint64) {
	s := src.(*Buffer)
	e.sources = append(e.sources, s)
	e.record(Command{Op: OpCopy, Src: s, SrcOffset: srcOffset, Buffer: dst.(*Buffer), DstOffset: dstOffset, Size: size})
}

func (e *Encoder) BeginRenderPass(desc gpu.RenderPassDesc) gpu.RenderPass {
	c := Command{Op: OpBeginPass, Label: desc.Label}
	if desc.Color != nil && desc.Color.Texture != nil {
		c.Color = desc.Color.Texture.(*Texture)
	}
	if desc.Depth != nil && desc.Depth.Texture != nil {
		c.Depth = desc.Depth.Texture.(*Texture)
	}
	e.record(c)
	return &Pass{enc: e, label: desc.Label}
}

func (e *Encoder) Finish() (gpu.CommandBuffer, error) {
	if e.finished || e.Dropped {
		return nil, errors.New("gputest: encoder already finished or dropped")
	}
	e.finished = true
	e.record(Command{Op: OpFinish})
	return &CommandBuffer{Encoder: e.ID, sources: e.sources}, nil
}

// Release drops an unfinished encoder and everything recorded into it.
func (e *Encoder) Release() {
	if e.finished || e.Dropped {
		return
	}
	e.Dropped = true
	e.record(Command{Op: OpDropEncoder})
}

type Pass struct {
	enc   *Encoder
	label string
	ended bool
}

func (p *Pass) SetPipeline(kind gpu.PipelineKind) {
	p.enc.record(Command{Op: OpSetPipeline, Label: p.label, Pipeline: kind})
}

func (p *Pass) SetBindGroup(group uint32, bg gpu.BindGroup, dynamicOffsets []uint32) {
	var offs []uint32
	if len(dynamicOffsets) > 0 {
		offs = append(offs, dynamicOffsets...)
	}
	p.enc.record(Command{Op: OpSetBindGroup, Label: p.label, Group: group, BindGroup: bg.(*BindGroup), Offsets: offs})
}

func (p *Pass) SetVertexBuffer(slot uint32, buf gpu.Buffer) {
	p.enc.record(Command{Op: OpSetVertex, Label: p.label, Group: slot, Buffer: buf.(*Buffer)})
}

func (p *Pass) SetIndexBuffer(buf gpu.Buffer, format gpu.IndexFormat) {
	p.enc.record(Command{Op: OpSetIndex, Label: p.label, Buffer: buf.(*Buffer)})
}

func (p *Pass) DrawIndexed(indexCount, instanceCount uint32) {
	p.enc.record(Command{Op: OpDrawIndexed, Label: p.label, Count: indexCount, Instances: instanceCount})
}

func (p *Pass) Draw(vertexCount, instanceCount uint32) {
	p.enc.record(Command{Op: OpDraw, Label: p.label, Count: vertexCount, Instances: instanceCount})
}

func (p *Pass) End() error {
	if p.ended {
		return errors.New("gputest: pass ended twice")
	}
	p.ended = true
	p.enc.record(Command{Op: OpEndPass, Label: p.label})
	return nil
}

// Surface hands out one texture per Acquire and counts presents.
type Surface struct {
	W, H      uint32
	Acquired  int
	Presented int
}

func (s *Surface) Acquire() (gpu.Texture, error) {
	s.Acquired++
	return &Texture{Label: fmt.Sprintf("surface-%d", s.Acquired), W: s.W, H: s.H, Fmt: gpu.FormatRGBA8, Usage: gpu.TextureRenderTarget}, nil
}

func (s *Surface) Present()                    { s.Presented++ }
func (s *Surface) Resize(width, height uint32) { s.W, s.H = width, height }
func (s *Surface) Size() (uint32, uint32)      { return s.W, s.H }
