package core

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/sprender/sprt/rt/pool"
)

func newTestResources() *Resources {
	return NewResources(Capacities{Meshes: 8, Materials: 4, Lights: 2, RenderMeshes: 32})
}

func mustInsert[T any](t *testing.T, tab *pool.Table[T], v T) pool.Handle {
	t.Helper()
	h, err := tab.Insert(v)
	require.NoError(t, err)
	return h
}

func TestFrameBatcher_GroupsByMaterial(t *testing.T) {
	res := newTestResources()
	mesh := mustInsert(t, res.Meshes, Mesh{Label: "cube"})
	m := mustInsert(t, res.Materials, Material{Label: "M"})
	m2 := mustInsert(t, res.Materials, Material{Label: "M2"})

	r1 := mustInsert(t, res.RenderMeshes, RenderMesh{Mesh: mesh, Material: m})
	r2 := mustInsert(t, res.RenderMeshes, RenderMesh{Mesh: mesh, Material: m2})
	r3 := mustInsert(t, res.RenderMeshes, RenderMesh{Mesh: mesh, Material: m})

	b := NewFrameBatcher(4, 32)
	assert.Equal(t, 3, b.Sort(res))

	assert.Equal(t, []pool.Handle{r1, r3}, b.Run(m))
	assert.Equal(t, []pool.Handle{r2}, b.Run(m2))
	assert.Equal(t, 2, b.Count(m))

	var order []pool.Handle
	b.Materials(func(mat pool.Handle, run []pool.Handle) bool {
		order = append(order, mat)
		return true
	})
	assert.Equal(t, []pool.Handle{m, m2}, order)
}

func TestFrameBatcher_SkipsUnresolvedEntries(t *testing.T) {
	res := newTestResources()
	mesh := mustInsert(t, res.Meshes, Mesh{})
	mat := mustInsert(t, res.Materials, Material{})

	ok := mustInsert(t, res.RenderMeshes, RenderMesh{Mesh: mesh, Material: mat})
	mustInsert(t, res.RenderMeshes, RenderMesh{Mesh: pool.Invalid, Material: mat})
	mustInsert(t, res.RenderMeshes, RenderMesh{Mesh: mesh, Material: pool.Handle{ID: 3}})

	b := NewFrameBatcher(4, 32)
	assert.Equal(t, 1, b.Sort(res))
	assert.Equal(t, []pool.Handle{ok}, b.Run(mat))

	res.Meshes.Remove(mesh)
	assert.Equal(t, 0, b.Sort(res), "entries whose mesh was freed drop out")
	assert.Empty(t, b.Run(mat))
}

func TestFrameBatcher_Completeness(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	res := newTestResources()
	mesh := mustInsert(t, res.Meshes, Mesh{})
	var mats []pool.Handle
	for i := 0; i < 4; i++ {
		mats = append(mats, mustInsert(t, res.Materials, Material{}))
	}

	var live []pool.Handle
	for i := 0; i < 32; i++ {
		h := mustInsert(t, res.RenderMeshes, RenderMesh{Mesh: mesh, Material: mats[rng.Intn(len(mats))]})
		live = append(live, h)
	}
	for i := 0; i < 10; i++ {
		k := rng.Intn(len(live))
		res.RenderMeshes.Remove(live[k])
		live = append(live[:k], live[k+1:]...)
	}

	b := NewFrameBatcher(4, 32)
	require.Equal(t, len(live), b.Sort(res))

	seen := map[pool.Handle]int{}
	b.Materials(func(mat pool.Handle, run []pool.Handle) bool {
		prev := uint32(0)
		for _, h := range run {
			seen[h]++
			rm := res.RenderMeshes.Get(h)
			require.NotNil(t, rm)
			assert.Equal(t, mat, rm.Material)
			assert.Greater(t, h.ID, prev, "runs keep allocation order")
			prev = h.ID
		}
		return true
	})
	for _, h := range live {
		assert.Equal(t, 1, seen[h], "render mesh %v must appear exactly once", h)
	}
}

func TestRenderMesh_Resolve(t *testing.T) {
	res := newTestResources()
	mesh := mustInsert(t, res.Meshes, Mesh{IndexCount: 36})
	mat := mustInsert(t, res.Materials, Material{Label: "stone"})
	rm := RenderMesh{Mesh: mesh, Material: mat}

	me, ma, ok := rm.Resolve(res.Meshes, res.Materials)
	require.True(t, ok)
	assert.Equal(t, uint32(36), me.IndexCount)
	assert.Equal(t, "stone", ma.Label)

	res.Materials.Remove(mat)
	_, _, ok = rm.Resolve(res.Meshes, res.Materials)
	assert.False(t, ok)
}
