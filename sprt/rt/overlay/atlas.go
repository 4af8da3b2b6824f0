package overlay

import (
	"fmt"
	"image"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	firstRune = ' '
	lastRune  = '~'
	columns   = 16
)

type Glyph struct {
	U0, V0, U1, V1 float32
	Advance        float32
	Visible        bool
}

// Atlas is a fixed-cell ASCII glyph sheet rendered once into an R8 image.
type Atlas struct {
	Image  *image.Alpha
	CellW  int
	CellH  int
	glyphs [lastRune - firstRune + 1]Glyph
}

// FontData returns the font file at path, or Go Regular when path is empty.
func FontData(path string) ([]byte, error) {
	if path == "" {
		return goregular.TTF, nil
	}
	return os.ReadFile(path)
}

func NewAtlas(ttf []byte, size float64) (*Atlas, error) {
	f, err := opentype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("overlay: parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("overlay: font face: %w", err)
	}
	defer face.Close()

	m := face.Metrics()
	a := &Atlas{CellH: (m.Ascent + m.Descent).Ceil() + 2}
	var widest fixed.Int26_6
	for r := rune(firstRune); r <= lastRune; r++ {
		if adv, ok := face.GlyphAdvance(r); ok && adv > widest {
			widest = adv
		}
	}
	a.CellW = widest.Ceil() + 2

	n := int(lastRune - firstRune + 1)
	rows := (n + columns - 1) / columns
	w, h := columns*a.CellW, rows*a.CellH
	a.Image = image.NewAlpha(image.Rect(0, 0, w, h))

	d := &font.Drawer{Dst: a.Image, Src: image.White, Face: face}
	for i := 0; i < n; i++ {
		r := firstRune + rune(i)
		cx, cy := (i%columns)*a.CellW, (i/columns)*a.CellH
		d.Dot = fixed.P(cx+1, cy+1+m.Ascent.Ceil())
		d.DrawString(string(r))

		bounds, adv, ok := face.GlyphBounds(r)
		a.glyphs[i] = Glyph{
			U0:      float32(cx) / float32(w),
			V0:      float32(cy) / float32(h),
			U1:      float32(cx+a.CellW) / float32(w),
			V1:      float32(cy+a.CellH) / float32(h),
			Advance: float32(adv) / 64,
			Visible: ok && bounds.Max.X > bounds.Min.X && bounds.Max.Y > bounds.Min.Y,
		}
	}
	return a, nil
}

// Glyph returns the atlas entry for r; runes outside the sheet map to '?'.
func (a *Atlas) Glyph(r rune) Glyph {
	if r < firstRune || r > lastRune {
		r = '?'
	}
	return a.glyphs[r-firstRune]
}
