package core

import (
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/sprender/sprt/rt/pool"
)

type LinkKind uint8

const (
	LinkEmpty LinkKind = iota
	LinkRenderMesh
	LinkLight
)

func (k LinkKind) String() string {
	switch k {
	case LinkRenderMesh:
		return "render-mesh"
	case LinkLight:
		return "light"
	}
	return "empty"
}

// Link is what a node carries: nothing, a render mesh or a light.
type Link struct {
	Kind   LinkKind
	Target pool.Handle
}

func RenderMeshLink(h pool.Handle) Link { return Link{Kind: LinkRenderMesh, Target: h} }
func LightLink(h pool.Handle) Link      { return Link{Kind: LinkLight, Target: h} }

type ChildKind uint8

const (
	ChildNone ChildKind = iota
	ChildSingle
	ChildList
)

// Children stores a single child inline and only spills to a slice once a
// second child arrives.
type Children struct {
	kind   ChildKind
	single pool.Handle
	list   []pool.Handle
}

func (c *Children) Kind() ChildKind { return c.kind }

func (c *Children) Len() int {
	switch c.kind {
	case ChildSingle:
		return 1
	case ChildList:
		return len(c.list)
	}
	return 0
}

func (c *Children) Each(fn func(pool.Handle)) {
	switch c.kind {
	case ChildSingle:
		fn(c.single)
	case ChildList:
		for _, h := range c.list {
			fn(h)
		}
	}
}

// Handles returns a copy of the children in insertion order.
func (c *Children) Handles() []pool.Handle {
	out := make([]pool.Handle, 0, c.Len())
	c.Each(func(h pool.Handle) { out = append(out, h) })
	return out
}

func (c *Children) add(h pool.Handle) {
	switch c.kind {
	case ChildNone:
		c.kind = ChildSingle
		c.single = h
	case ChildSingle:
		c.kind = ChildList
		c.list = []pool.Handle{c.single, h}
		c.single = pool.Invalid
	case ChildList:
		c.list = append(c.list, h)
	}
}

func (c *Children) remove(h pool.Handle) bool {
	switch c.kind {
	case ChildSingle:
		if c.single != h {
			return false
		}
		c.kind = ChildNone
		c.single = pool.Invalid
		return true
	case ChildList:
		i := slices.Index(c.list, h)
		if i < 0 {
			return false
		}
		c.list = slices.Delete(c.list, i, i+1)
		if len(c.list) == 1 {
			c.kind = ChildSingle
			c.single = c.list[0]
			c.list = nil
		}
		return true
	}
	return false
}

type SceneNode struct {
	Transform Transform
	World     mgl32.Mat4
	Parent    pool.Handle
	Children  Children
	Link      Link
}
