package overlay

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/sprender/sprt/rt/gpu"
	"github.com/gekko3d/sprender/sprt/rt/gpu/gputest"
)

func newAtlas(t *testing.T) *Atlas {
	t.Helper()
	data, err := FontData("")
	require.NoError(t, err)
	a, err := NewAtlas(data, 16)
	require.NoError(t, err)
	return a
}

func floatAt(buf []byte, i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
}

func TestAtlasGlyphs(t *testing.T) {
	a := newAtlas(t)
	assert.Greater(t, a.CellW, 2)
	assert.Greater(t, a.CellH, 2)
	assert.Equal(t, columns*a.CellW, a.Image.Bounds().Dx())

	g := a.Glyph('A')
	assert.True(t, g.Visible)
	assert.Greater(t, g.Advance, float32(0))
	assert.Less(t, g.U0, g.U1)
	assert.Less(t, g.V0, g.V1)

	assert.False(t, a.Glyph(' ').Visible)
	assert.Equal(t, a.Glyph('?'), a.Glyph('é'))

	var inked int
	for _, p := range a.Image.Pix {
		if p > 0 {
			inked++
		}
	}
	assert.NotZero(t, inked, "atlas has no coverage")
}

func TestBuildVertices(t *testing.T) {
	a := newAtlas(t)
	white := [4]float32{1, 1, 1, 1}

	buf := BuildVertices(a, []Item{{Text: "A B", X: 0, Y: 0, Color: white}}, 200, 100)
	require.Len(t, buf, 2*6*gpu.OverlayVertexStride)
	// first vertex is the top-left corner of the first cell
	assert.Equal(t, float32(-1), floatAt(buf, 0))
	assert.Equal(t, float32(1), floatAt(buf, 1))
	assert.Equal(t, float32(1), floatAt(buf, 7))

	lines := BuildVertices(a, []Item{{Text: "A\nA", X: 10, Y: 0, Color: white}}, 200, 100)
	require.Len(t, lines, 2*6*gpu.OverlayVertexStride)
	second := lines[6*gpu.OverlayVertexStride:]
	assert.Equal(t, floatAt(lines, 0), floatAt(second, 0), "newline returns to item X")
	assert.Less(t, floatAt(second, 1), floatAt(lines, 1), "newline moves down")

	assert.Nil(t, BuildVertices(a, []Item{{Text: "A"}}, 0, 100))
	assert.Empty(t, BuildVertices(a, []Item{{Text: "   "}}, 200, 100))
}

func TestTextOverlayPrepareAndDraw(t *testing.T) {
	dev := gputest.NewDevice()
	data, err := FontData("")
	require.NoError(t, err)
	o, err := NewTextOverlay(data, 14, nil)
	require.NoError(t, err)
	target := &gputest.Texture{W: 640, H: 480}

	// nothing printed: atlas uploads, no draw
	require.NoError(t, o.Prepare(dev, target))
	require.Len(t, dev.Textures, 1)
	assert.Equal(t, gpu.FormatR8, dev.Textures[0].Fmt)
	require.Len(t, dev.BindGroups, 1)
	assert.Equal(t, gpu.LayoutOverlay, dev.BindGroups[0].Layout)
	assert.Zero(t, o.VertexCount())

	o.Print("fps 60", 8, 8, 1, [4]float32{1, 1, 0, 1})
	require.NoError(t, o.Prepare(dev, target))
	assert.Equal(t, uint32(5*6), o.VertexCount())
	assert.Len(t, dev.Textures, 1, "atlas uploaded once")
	assert.Len(t, dev.Filter(gputest.OpWriteBuffer), 1)

	enc, err := dev.CreateCommandEncoder("frame")
	require.NoError(t, err)
	pass := enc.BeginRenderPass(gpu.RenderPassDesc{Label: "main"})
	require.NoError(t, o.Draw(pass))
	require.NoError(t, pass.End())

	draws := dev.Filter(gputest.OpSetPipeline, gputest.OpSetBindGroup, gputest.OpSetVertex, gputest.OpDraw)
	require.Len(t, draws, 4)
	assert.Equal(t, gpu.PipelineOverlay, draws[0].Pipeline)
	assert.Equal(t, uint32(gpu.OverlayGroupAtlas), draws[1].Group)
	assert.Equal(t, uint32(30), draws[3].Count)

	o.Clear()
	require.NoError(t, o.Prepare(dev, target))
	assert.Zero(t, o.VertexCount())

	o.Release()
	assert.True(t, dev.Textures[0].Released)
}

func TestTextOverlayGrowsBuffer(t *testing.T) {
	dev := gputest.NewDevice()
	data, _ := FontData("")
	o, err := NewTextOverlay(data, 12, nil)
	require.NoError(t, err)
	target := &gputest.Texture{W: 1920, H: 1080}

	o.Print("x", 0, 0, 1, [4]float32{1, 1, 1, 1})
	require.NoError(t, o.Prepare(dev, target))
	first := o.vertices

	long := make([]byte, 200)
	for i := range long {
		long[i] = 'W'
	}
	o.Print(string(long), 0, 20, 1, [4]float32{1, 1, 1, 1})
	require.NoError(t, o.Prepare(dev, target))
	assert.NotSame(t, first, o.vertices)
	assert.True(t, first.(*gputest.Buffer).Released)
	assert.GreaterOrEqual(t, o.vertices.Size(), uint64(201*6*gpu.OverlayVertexStride))
}
