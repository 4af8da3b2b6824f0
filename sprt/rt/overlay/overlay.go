package overlay

import (
	"fmt"

	"github.com/gekko3d/sprender"
	"github.com/gekko3d/sprender/sprt/rt/gpu"
)

// TextOverlay draws screen-space text into the main pass after the scene.
// Items persist until Clear.
type TextOverlay struct {
	atlas *Atlas
	items []Item
	log   sprender.Logger

	texture   gpu.Texture
	bindGroup gpu.BindGroup
	vertices  gpu.Buffer
	count     uint32
}

func NewTextOverlay(fontData []byte, size float64, log sprender.Logger) (*TextOverlay, error) {
	a, err := NewAtlas(fontData, size)
	if err != nil {
		return nil, err
	}
	return &TextOverlay{atlas: a, log: sprender.OrNop(log)}, nil
}

func (o *TextOverlay) Atlas() *Atlas { return o.atlas }

func (o *TextOverlay) Print(text string, x, y, scale float32, color [4]float32) {
	o.items = append(o.items, Item{Text: text, X: x, Y: y, Scale: scale, Color: color})
}

func (o *TextOverlay) Clear() { o.items = o.items[:0] }

// VertexCount is the number of vertices the last Prepare uploaded.
func (o *TextOverlay) VertexCount() uint32 { return o.count }

func (o *TextOverlay) Prepare(dev gpu.Device, target gpu.Texture) error {
	if o.texture == nil {
		if err := o.uploadAtlas(dev); err != nil {
			return err
		}
	}

	data := BuildVertices(o.atlas, o.items, target.Width(), target.Height())
	o.count = uint32(len(data) / gpu.OverlayVertexStride)
	if o.count == 0 {
		return nil
	}

	if o.vertices == nil || o.vertices.Size() < uint64(len(data)) {
		size := uint64(gpu.OverlayVertexStride * 6 * 64)
		for size < uint64(len(data)) {
			size *= 2
		}
		if o.vertices != nil {
			o.vertices.Release()
		}
		buf, err := dev.CreateBuffer(gpu.BufferDesc{
			Label: "OverlayVertices",
			Size:  size,
			Usage: gpu.BufferVertex | gpu.BufferCopyDst,
		})
		if err != nil {
			o.vertices = nil
			return fmt.Errorf("overlay: vertex buffer: %w", err)
		}
		o.vertices = buf
		o.log.Debugf("overlay vertex buffer grown to %d bytes", size)
	}
	return dev.WriteBuffer(o.vertices, 0, data)
}

func (o *TextOverlay) Draw(pass gpu.RenderPass) error {
	if o.count == 0 {
		return nil
	}
	pass.SetPipeline(gpu.PipelineOverlay)
	pass.SetBindGroup(gpu.OverlayGroupAtlas, o.bindGroup, nil)
	pass.SetVertexBuffer(0, o.vertices)
	pass.Draw(o.count, 1)
	return nil
}

func (o *TextOverlay) uploadAtlas(dev gpu.Device) error {
	img := o.atlas.Image
	tex, err := dev.CreateTexture(gpu.TextureDesc{
		Label:  "GlyphAtlas",
		Width:  uint32(img.Bounds().Dx()),
		Height: uint32(img.Bounds().Dy()),
		Format: gpu.FormatR8,
		Usage:  gpu.TextureSampled | gpu.TextureCopyDst,
		Levels: [][]byte{img.Pix},
	})
	if err != nil {
		return fmt.Errorf("overlay: atlas texture: %w", err)
	}
	bg, err := dev.CreateBindGroup(gpu.BindGroupDesc{
		Label:  "OverlayBG",
		Layout: gpu.LayoutOverlay,
		Entries: []gpu.BindEntry{
			{Binding: 0, Texture: tex},
			{Binding: 1, Sampler: gpu.SamplerLinearClamp},
		},
	})
	if err != nil {
		tex.Release()
		return fmt.Errorf("overlay: atlas bind group: %w", err)
	}
	o.texture, o.bindGroup = tex, bg
	return nil
}

func (o *TextOverlay) Release() {
	if o.vertices != nil {
		o.vertices.Release()
		o.vertices = nil
	}
	if o.bindGroup != nil {
		o.bindGroup.Release()
		o.bindGroup = nil
	}
	if o.texture != nil {
		o.texture.Release()
		o.texture = nil
	}
}
