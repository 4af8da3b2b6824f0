package assets

import (
	"fmt"
	"image"
	"image/color"

	"github.com/google/uuid"

	"github.com/gekko3d/sprender/sprt/rt/gpu"
)

type AssetID string

func newAssetID() AssetID {
	return AssetID(uuid.NewString())
}

// Slot defaults for materials with no texture path set.
var (
	DefaultAlbedo   = color.RGBA{255, 255, 255, 255}
	DefaultNormal   = color.RGBA{128, 128, 255, 255}
	DefaultEmissive = color.RGBA{0, 0, 0, 255}
)

type CachedTexture struct {
	ID      AssetID
	Path    string
	Texture gpu.Texture
}

// TextureCache uploads each image path once and hands out the same texture
// to every material that names it.
type TextureCache struct {
	dev    gpu.Device
	byPath map[string]*CachedTexture
	solids map[color.RGBA]gpu.Texture
	load   func(string) (*image.RGBA, error)
}

func NewTextureCache(dev gpu.Device) *TextureCache {
	return &TextureCache{
		dev:    dev,
		byPath: make(map[string]*CachedTexture),
		solids: make(map[color.RGBA]gpu.Texture),
		load:   LoadImage,
	}
}

func (c *TextureCache) Len() int { return len(c.byPath) }

func (c *TextureCache) Lookup(path string) (*CachedTexture, bool) {
	t, ok := c.byPath[path]
	return t, ok
}

func (c *TextureCache) Load(path string) (*CachedTexture, error) {
	if t, ok := c.byPath[path]; ok {
		return t, nil
	}
	img, err := c.load(path)
	if err != nil {
		return nil, err
	}
	id := newAssetID()
	tex, err := c.upload(string(id), img)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", path, err)
	}
	t := &CachedTexture{ID: id, Path: path, Texture: tex}
	c.byPath[path] = t
	return t, nil
}

// Solid returns a shared 1x1 texture of the given colour.
func (c *TextureCache) Solid(col color.RGBA) (gpu.Texture, error) {
	if t, ok := c.solids[col]; ok {
		return t, nil
	}
	label := fmt.Sprintf("solid-%02x%02x%02x%02x", col.R, col.G, col.B, col.A)
	t, err := c.upload(label, Solid(col))
	if err != nil {
		return nil, err
	}
	c.solids[col] = t
	return t, nil
}

// Material resolves the three slot textures for a material description.
func (c *TextureCache) Material(desc MaterialDesc) ([3]gpu.Texture, error) {
	var out [3]gpu.Texture
	defaults := [3]color.RGBA{DefaultAlbedo, DefaultNormal, DefaultEmissive}
	for i, p := range desc.TexturePaths {
		if p == "" {
			t, err := c.Solid(defaults[i])
			if err != nil {
				return out, err
			}
			out[i] = t
			continue
		}
		t, err := c.Load(p)
		if err != nil {
			return out, err
		}
		out[i] = t.Texture
	}
	return out, nil
}

func (c *TextureCache) upload(label string, img *image.RGBA) (gpu.Texture, error) {
	b := img.Bounds()
	return c.dev.CreateTexture(gpu.TextureDesc{
		Label:  label,
		Width:  uint32(b.Dx()),
		Height: uint32(b.Dy()),
		Format: gpu.FormatRGBA8,
		Usage:  gpu.TextureSampled | gpu.TextureCopyDst,
		Levels: MipChain(img),
	})
}

func (c *TextureCache) Release() {
	for _, t := range c.byPath {
		t.Texture.Release()
	}
	for _, t := range c.solids {
		t.Release()
	}
	clear(c.byPath)
	clear(c.solids)
}
