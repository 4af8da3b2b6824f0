package core

import (
	"github.com/gekko3d/sprender/sprt/rt/pool"
)

// FrameBatcher groups live render meshes by material each frame. The sorted
// buffer is sized once for the worst case, one row per material id with room
// for every render mesh, so Sort never allocates.
type FrameBatcher struct {
	sorted [][]pool.Handle
	counts []uint32
	total  int
}

func NewFrameBatcher(materials, renderMeshes uint32) *FrameBatcher {
	b := &FrameBatcher{
		sorted: make([][]pool.Handle, materials+1),
		counts: make([]uint32, materials+1),
	}
	flat := make([]pool.Handle, int(materials+1)*int(renderMeshes))
	for m := range b.sorted {
		b.sorted[m] = flat[m*int(renderMeshes) : (m+1)*int(renderMeshes)]
	}
	return b
}

// Sort rebuilds the runs from the render-mesh table. Entries whose mesh or
// material does not resolve are skipped. Within a run, render meshes keep
// allocation order.
func (b *FrameBatcher) Sort(res *Resources) int {
	clear(b.counts)
	b.total = 0

	res.RenderMeshes.Each(func(h pool.Handle, rm *RenderMesh) bool {
		if !res.Meshes.Valid(rm.Mesh) || !res.Materials.Valid(rm.Material) {
			return true
		}
		m := rm.Material.ID
		if int(m) >= len(b.sorted) || int(b.counts[m]) >= len(b.sorted[m]) {
			return true
		}
		b.sorted[m][b.counts[m]] = h
		b.counts[m]++
		b.total++
		return true
	})
	return b.total
}

// Run is the render meshes using material from the last Sort. The slice
// aliases the batcher's buffer.
func (b *FrameBatcher) Run(material pool.Handle) []pool.Handle {
	if int(material.ID) >= len(b.sorted) {
		return nil
	}
	return b.sorted[material.ID][:b.counts[material.ID]]
}

func (b *FrameBatcher) Count(material pool.Handle) int {
	if int(material.ID) >= len(b.counts) {
		return 0
	}
	return int(b.counts[material.ID])
}

func (b *FrameBatcher) Total() int { return b.total }

// Materials visits the non-empty runs in material id order until fn returns
// false.
func (b *FrameBatcher) Materials(fn func(material pool.Handle, run []pool.Handle) bool) {
	for m := 1; m < len(b.sorted); m++ {
		if b.counts[m] == 0 {
			continue
		}
		if !fn(pool.Handle{ID: uint32(m)}, b.sorted[m][:b.counts[m]]) {
			return
		}
	}
}
