package overlay

import (
	"encoding/binary"
	"math"

	"github.com/gekko3d/sprender/sprt/rt/gpu"
)

// Item is one string placed in pixels from the top-left of the target.
type Item struct {
	Text  string
	X, Y  float32
	Scale float32
	Color [4]float32
}

// BuildVertices lays out items as two triangles per visible glyph in clip
// space. Newlines return to the item's X one cell lower.
func BuildVertices(a *Atlas, items []Item, width, height uint32) []byte {
	if width == 0 || height == 0 {
		return nil
	}
	sx, sy := 2/float32(width), 2/float32(height)
	var out []byte
	for _, it := range items {
		scale := it.Scale
		if scale <= 0 {
			scale = 1
		}
		cw, ch := float32(a.CellW)*scale, float32(a.CellH)*scale
		x, y := it.X, it.Y
		for _, r := range it.Text {
			if r == '\n' {
				x, y = it.X, y+ch
				continue
			}
			g := a.Glyph(r)
			if g.Visible {
				x0, y0 := x*sx-1, 1-y*sy
				x1, y1 := (x+cw)*sx-1, 1-(y+ch)*sy
				quad := [6][4]float32{
					{x0, y0, g.U0, g.V0},
					{x0, y1, g.U0, g.V1},
					{x1, y0, g.U1, g.V0},
					{x1, y0, g.U1, g.V0},
					{x0, y1, g.U0, g.V1},
					{x1, y1, g.U1, g.V1},
				}
				for _, v := range quad {
					out = appendVertex(out, v, it.Color)
				}
			}
			x += g.Advance * scale
		}
	}
	return out
}

func appendVertex(out []byte, v [4]float32, c [4]float32) []byte {
	var buf [gpu.OverlayVertexStride]byte
	for i, f := range [8]float32{v[0], v[1], v[2], v[3], c[0], c[1], c[2], c[3]} {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return append(out, buf[:]...)
}
