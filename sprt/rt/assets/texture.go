package assets

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/anthonynsimon/bild/transform"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// LoadImage decodes any registered format and returns it as tightly packed
// RGBA with a zero origin.
func LoadImage(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return ToRGBA(img), nil
}

func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) && rgba.Stride == 4*b.Dx() {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// MipChain returns pixel data for img and each successive half-size level
// down to 1x1.
func MipChain(img *image.RGBA) [][]byte {
	levels := [][]byte{img.Pix}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	cur := img
	for w > 1 || h > 1 {
		w, h = max(w/2, 1), max(h/2, 1)
		cur = transform.Resize(cur, w, h, transform.Linear)
		levels = append(levels, cur.Pix)
	}
	return levels
}

// Solid is a 1x1 image of one colour, used for unset material slots.
func Solid(c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.SetRGBA(0, 0, c)
	return img
}
