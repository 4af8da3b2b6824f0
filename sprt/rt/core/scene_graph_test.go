package core

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/sprender/sprt/rt/pool"
)

func translation(m mgl32.Mat4) mgl32.Vec3 { return m.Col(3).Vec3() }

func TestSceneGraph_ChildFollowsParent(t *testing.T) {
	g := NewSceneGraph(16, nil)

	r, err := g.CreateNode(TransformAt(1, 0, 0), pool.Invalid, Link{})
	require.NoError(t, err)
	c, err := g.CreateNode(TransformAt(2, 0, 0), r, Link{})
	require.NoError(t, err)

	assert.Equal(t, 1, g.Pending(), "child is covered by its queued parent")
	assert.Equal(t, 2, g.Update())

	w, ok := g.World(c)
	require.True(t, ok)
	if !near(translation(w), mgl32.Vec3{3, 0, 0}, 1e-5) {
		t.Errorf("child world = %v, want (3,0,0)", translation(w))
	}

	require.NoError(t, g.SetPosition(r, mgl32.Vec3{0, 5, 0}))
	assert.True(t, g.IsDirty(c))
	g.Update()
	w, _ = g.World(c)
	assert.True(t, near(translation(w), mgl32.Vec3{2, 5, 0}, 1e-5), "got %v", translation(w))
}

func TestSceneGraph_UpdateIsIdempotent(t *testing.T) {
	g := NewSceneGraph(8, nil)
	r, _ := g.CreateNode(TransformAt(1, 2, 3), pool.Invalid, Link{})
	c, _ := g.CreateNode(TransformAt(0, 1, 0), r, Link{})
	g.Update()
	before, _ := g.World(c)

	assert.Equal(t, 0, g.Update())
	after, _ := g.World(c)
	assert.Equal(t, before, after)
	assert.False(t, g.IsDirty(c))
}

func TestSceneGraph_MarkDirtySkipsCoveredNodes(t *testing.T) {
	g := NewSceneGraph(8, nil)
	r, _ := g.CreateNode(NewTransform(), pool.Invalid, Link{})
	a, _ := g.CreateNode(NewTransform(), r, Link{})
	b, _ := g.CreateNode(NewTransform(), a, Link{})
	g.Update()

	g.MarkDirty(a)
	g.MarkDirty(b)
	g.MarkDirty(a)
	assert.Equal(t, 1, g.Pending())

	// A queued descendant is recomputed once even when its ancestor joins later.
	g.Update()
	g.MarkDirty(b)
	g.MarkDirty(r)
	assert.Equal(t, 2, g.Pending())
	assert.Equal(t, 3, g.Update())
}

func TestSceneGraph_MatchesFullRecompute(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	g := NewSceneGraph(128, nil)

	var nodes []pool.Handle
	for i := 0; i < 100; i++ {
		parent := pool.Invalid
		if len(nodes) > 0 && rng.Intn(4) != 0 {
			parent = nodes[rng.Intn(len(nodes))]
		}
		tr := TransformAt(rng.Float32()*4-2, rng.Float32()*4-2, rng.Float32()*4-2)
		tr.Rotation = mgl32.Vec3{rng.Float32() * 360, rng.Float32() * 360, rng.Float32() * 360}
		h, err := g.CreateNode(tr, parent, Link{})
		require.NoError(t, err)
		nodes = append(nodes, h)
	}
	g.Update()

	for round := 0; round < 20; round++ {
		for k := 0; k < 10; k++ {
			h := nodes[rng.Intn(len(nodes))]
			switch rng.Intn(3) {
			case 0:
				g.SetPosition(h, mgl32.Vec3{rng.Float32(), rng.Float32(), rng.Float32()})
			case 1:
				g.SetRotation(h, mgl32.Vec3{0, rng.Float32() * 180, 0})
			case 2:
				p := nodes[rng.Intn(len(nodes))]
				if err := g.SetParent(h, p); err != nil && !errors.Is(err, ErrCycle) {
					t.Fatalf("reparent: %v", err)
				}
			}
		}
		g.Update()
		incremental := map[pool.Handle]mgl32.Mat4{}
		for _, h := range nodes {
			incremental[h], _ = g.World(h)
		}

		g.UpdateAll()
		for _, h := range nodes {
			full, _ := g.World(h)
			if !nearMat(full, incremental[h], 1e-4) {
				t.Fatalf("round %d: node %v incremental %v != full %v", round, h, incremental[h], full)
			}
		}
	}
}

func TestSceneGraph_SetParentRejectsCycles(t *testing.T) {
	g := NewSceneGraph(8, nil)
	r, _ := g.CreateNode(NewTransform(), pool.Invalid, Link{})
	c, _ := g.CreateNode(NewTransform(), r, Link{})
	gc, _ := g.CreateNode(NewTransform(), c, Link{})

	assert.ErrorIs(t, g.SetParent(r, gc), ErrCycle)
	assert.ErrorIs(t, g.SetParent(c, c), ErrCycle)

	require.NoError(t, g.SetParent(gc, pool.Invalid))
	assert.ElementsMatch(t, []pool.Handle{r, gc}, g.Roots())
	assert.Empty(t, g.Children(c))
}

func TestSceneGraph_ChildrenPromoteAndDemote(t *testing.T) {
	g := NewSceneGraph(8, nil)
	r, _ := g.CreateNode(NewTransform(), pool.Invalid, Link{})
	a, _ := g.CreateNode(NewTransform(), r, Link{})
	assert.Equal(t, ChildSingle, g.Node(r).Children.Kind())

	b, _ := g.CreateNode(NewTransform(), r, Link{})
	assert.Equal(t, ChildList, g.Node(r).Children.Kind())
	assert.Equal(t, []pool.Handle{a, b}, g.Children(r))

	require.NoError(t, g.SetParent(a, pool.Invalid))
	assert.Equal(t, ChildSingle, g.Node(r).Children.Kind())
	assert.Equal(t, []pool.Handle{b}, g.Children(r))

	require.NoError(t, g.SetParent(b, a))
	assert.Equal(t, ChildNone, g.Node(r).Children.Kind())
}

func TestSceneGraph_Destroy(t *testing.T) {
	g := NewSceneGraph(8, nil)
	r, _ := g.CreateNode(NewTransform(), pool.Invalid, Link{})
	c, _ := g.CreateNode(NewTransform(), r, RenderMeshLink(pool.Handle{ID: 7}))
	gc, _ := g.CreateNode(NewTransform(), c, LightLink(pool.Handle{ID: 2}))
	g.MarkDirty(gc)

	var unlinked []Link
	require.NoError(t, g.Destroy(c, func(l Link) { unlinked = append(unlinked, l) }))

	assert.Equal(t, []Link{LightLink(pool.Handle{ID: 2}), RenderMeshLink(pool.Handle{ID: 7})}, unlinked)
	assert.Nil(t, g.Node(c))
	assert.Nil(t, g.Node(gc))
	assert.Empty(t, g.Children(r))
	assert.Equal(t, uint32(1), g.Len())
	assert.NotPanics(t, func() { g.Update() })

	assert.ErrorIs(t, g.Destroy(c, nil), pool.ErrInvalidHandle)
}

func TestSceneGraph_InvalidParent(t *testing.T) {
	g := NewSceneGraph(2, nil)
	_, err := g.CreateNode(NewTransform(), pool.Handle{ID: 2}, Link{})
	assert.ErrorIs(t, err, pool.ErrInvalidHandle)

	g.CreateNode(NewTransform(), pool.Invalid, Link{})
	g.CreateNode(NewTransform(), pool.Invalid, Link{})
	h, err := g.CreateNode(NewTransform(), pool.Invalid, Link{})
	assert.ErrorIs(t, err, pool.ErrExhausted)
	assert.True(t, h.IsNil())
}
