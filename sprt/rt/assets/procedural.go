package assets

import (
	"github.com/chewxy/math32"
)

// Cube is an axis aligned cube centred on the origin with per-face normals.
func Cube(size float32) MeshData {
	h := size / 2
	faces := []struct {
		n, u, v [3]float32
	}{
		{n: [3]float32{0, 0, 1}, u: [3]float32{1, 0, 0}, v: [3]float32{0, 1, 0}},
		{n: [3]float32{0, 0, -1}, u: [3]float32{-1, 0, 0}, v: [3]float32{0, 1, 0}},
		{n: [3]float32{1, 0, 0}, u: [3]float32{0, 0, -1}, v: [3]float32{0, 1, 0}},
		{n: [3]float32{-1, 0, 0}, u: [3]float32{0, 0, 1}, v: [3]float32{0, 1, 0}},
		{n: [3]float32{0, 1, 0}, u: [3]float32{1, 0, 0}, v: [3]float32{0, 0, -1}},
		{n: [3]float32{0, -1, 0}, u: [3]float32{1, 0, 0}, v: [3]float32{0, 0, 1}},
	}

	m := MeshData{Label: "cube"}
	for _, f := range faces {
		base := uint32(len(m.Vertices))
		for _, c := range [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}} {
			var p [3]float32
			for k := 0; k < 3; k++ {
				p[k] = (f.n[k] + c[0]*f.u[k] + c[1]*f.v[k]) * h
			}
			m.Vertices = append(m.Vertices, Vertex{
				Position: p,
				Normal:   f.n,
				UV:       [2]float32{(c[0] + 1) / 2, 1 - (c[1]+1)/2},
			})
		}
		m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return m
}

// Plane is a square in the XZ plane facing +Y, split into div x div quads.
func Plane(size float32, div int) MeshData {
	if div < 1 {
		div = 1
	}
	m := MeshData{Label: "plane"}
	step := size / float32(div)
	h := size / 2
	for z := 0; z <= div; z++ {
		for x := 0; x <= div; x++ {
			m.Vertices = append(m.Vertices, Vertex{
				Position: [3]float32{-h + float32(x)*step, 0, -h + float32(z)*step},
				Normal:   [3]float32{0, 1, 0},
				UV:       [2]float32{float32(x) / float32(div), float32(z) / float32(div)},
			})
		}
	}
	row := uint32(div + 1)
	for z := uint32(0); z < uint32(div); z++ {
		for x := uint32(0); x < uint32(div); x++ {
			i := z*row + x
			m.Indices = append(m.Indices, i, i+row, i+1, i+1, i+row, i+row+1)
		}
	}
	return m
}

// UVSphere builds a sphere from rings latitude bands and segments longitude
// slices.
func UVSphere(radius float32, rings, segments int) MeshData {
	rings = max(rings, 2)
	segments = max(segments, 3)
	m := MeshData{Label: "sphere"}
	for r := 0; r <= rings; r++ {
		v := float32(r) / float32(rings)
		phi := v * math32.Pi
		for s := 0; s <= segments; s++ {
			u := float32(s) / float32(segments)
			theta := u * 2 * math32.Pi
			n := [3]float32{
				math32.Sin(phi) * math32.Cos(theta),
				math32.Cos(phi),
				-math32.Sin(phi) * math32.Sin(theta),
			}
			m.Vertices = append(m.Vertices, Vertex{
				Position: [3]float32{n[0] * radius, n[1] * radius, n[2] * radius},
				Normal:   n,
				UV:       [2]float32{u, v},
			})
		}
	}
	row := uint32(segments + 1)
	for r := uint32(0); r < uint32(rings); r++ {
		for s := uint32(0); s < uint32(segments); s++ {
			a := r*row + s
			b := a + row
			m.Indices = append(m.Indices, a, b, a+1, a+1, b, b+1)
		}
	}
	return m
}
