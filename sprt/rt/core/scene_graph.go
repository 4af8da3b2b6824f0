package core

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/sprender"
	"github.com/gekko3d/sprender/sprt/rt/pool"
)

var ErrCycle = errors.New("scene graph: node would become its own ancestor")

// SceneGraph owns the node table and the dirty worklist. A node is in the
// worklist at most once, and never while one of its ancestors is.
type SceneGraph struct {
	nodes *pool.Table[SceneNode]
	dirty []pool.Handle
	// listed marks ids currently in dirty; updated stamps ids recomputed in
	// the current Update pass.
	listed  []bool
	updated []uint64
	pass    uint64
	log     sprender.Logger
}

func NewSceneGraph(capacity uint32, log sprender.Logger) *SceneGraph {
	return &SceneGraph{
		nodes:   pool.NewTable[SceneNode]("scene nodes", capacity),
		listed:  make([]bool, capacity+1),
		updated: make([]uint64, capacity+1),
		log:     sprender.OrNop(log),
	}
}

func (g *SceneGraph) SetDebug(enabled bool) { g.nodes.Pool().SetDebug(enabled) }

func (g *SceneGraph) Len() uint32 { return g.nodes.Len() }

// Node returns the node for h, or nil. The pointer is only good until the
// node is destroyed.
func (g *SceneGraph) Node(h pool.Handle) *SceneNode { return g.nodes.Get(h) }

func (g *SceneGraph) get(h pool.Handle) (*SceneNode, error) {
	n := g.nodes.Get(h)
	if n == nil {
		return nil, fmt.Errorf("scene node %v: %w", h, pool.ErrInvalidHandle)
	}
	return n, nil
}

// CreateNode allocates a node under parent (pool.Invalid for a root) and
// marks it dirty.
func (g *SceneGraph) CreateNode(t Transform, parent pool.Handle, link Link) (pool.Handle, error) {
	var p *SceneNode
	if !parent.IsNil() {
		var err error
		if p, err = g.get(parent); err != nil {
			return pool.Invalid, err
		}
	}
	h, err := g.nodes.Insert(SceneNode{
		Transform: t,
		World:     mgl32.Ident4(),
		Parent:    parent,
		Link:      link,
	})
	if err != nil {
		return pool.Invalid, err
	}
	if p != nil {
		p.Children.add(h)
	}
	g.MarkDirty(h)
	return h, nil
}

// SetParent moves node under parent, or makes it a root when parent is
// pool.Invalid.
func (g *SceneGraph) SetParent(node, parent pool.Handle) error {
	n, err := g.get(node)
	if err != nil {
		return err
	}
	if n.Parent == parent {
		return nil
	}
	var p *SceneNode
	if !parent.IsNil() {
		if p, err = g.get(parent); err != nil {
			return err
		}
		for a := parent; !a.IsNil(); {
			if a == node {
				return fmt.Errorf("reparent %v under %v: %w", node, parent, ErrCycle)
			}
			an := g.nodes.Get(a)
			if an == nil {
				break
			}
			a = an.Parent
		}
	}
	if old := g.nodes.Get(n.Parent); old != nil {
		old.Children.remove(node)
	}
	n.Parent = parent
	if p != nil {
		p.Children.add(node)
	}
	g.MarkDirty(node)
	return nil
}

func (g *SceneGraph) SetTransform(node pool.Handle, t Transform) error {
	n, err := g.get(node)
	if err != nil {
		return err
	}
	n.Transform = t
	g.MarkDirty(node)
	return nil
}

func (g *SceneGraph) SetPosition(node pool.Handle, pos mgl32.Vec3) error {
	n, err := g.get(node)
	if err != nil {
		return err
	}
	n.Transform.Position = pos
	g.MarkDirty(node)
	return nil
}

func (g *SceneGraph) SetRotation(node pool.Handle, euler mgl32.Vec3) error {
	n, err := g.get(node)
	if err != nil {
		return err
	}
	n.Transform.Rotation = euler
	g.MarkDirty(node)
	return nil
}

func (g *SceneGraph) SetScale(node pool.Handle, scale mgl32.Vec3) error {
	n, err := g.get(node)
	if err != nil {
		return err
	}
	n.Transform.Scale = scale
	g.MarkDirty(node)
	return nil
}

// MarkDirty queues node for recomputation unless it or an ancestor is
// already queued.
func (g *SceneGraph) MarkDirty(node pool.Handle) {
	if !g.nodes.Valid(node) {
		return
	}
	for a := node; !a.IsNil(); {
		if g.listed[a.ID] {
			return
		}
		n := g.nodes.Get(a)
		if n == nil {
			break
		}
		a = n.Parent
	}
	g.listed[node.ID] = true
	g.dirty = append(g.dirty, node)
}

// IsDirty reports whether node waits for the next Update, directly or
// through an ancestor.
func (g *SceneGraph) IsDirty(node pool.Handle) bool {
	for a := node; !a.IsNil(); {
		if g.listed[a.ID] {
			return true
		}
		n := g.nodes.Get(a)
		if n == nil {
			return false
		}
		a = n.Parent
	}
	return false
}

// Pending is the current worklist length.
func (g *SceneGraph) Pending() int { return len(g.dirty) }

func (g *SceneGraph) depth(h pool.Handle) int {
	d := 0
	for n := g.nodes.Get(h); n != nil && !n.Parent.IsNil(); n = g.nodes.Get(n.Parent) {
		d++
	}
	return d
}

// Update recomputes the world matrix of every queued node and its whole
// subtree, shallowest entries first, then clears the worklist. It returns the
// number of nodes recomputed.
func (g *SceneGraph) Update() int {
	if len(g.dirty) == 0 {
		return 0
	}
	g.pass++
	sort.SliceStable(g.dirty, func(i, j int) bool {
		return g.depth(g.dirty[i]) < g.depth(g.dirty[j])
	})

	count := 0
	for _, h := range g.dirty {
		g.listed[h.ID] = false
		n := g.nodes.Get(h)
		if n == nil || g.updated[h.ID] == g.pass {
			continue
		}
		count += g.updateWorldTransform(h, n)
	}
	g.dirty = g.dirty[:0]
	return count
}

func (g *SceneGraph) updateWorldTransform(h pool.Handle, n *SceneNode) int {
	local := n.Transform.Local()
	if p := g.nodes.Get(n.Parent); p != nil {
		n.World = p.World.Mul4(local)
	} else {
		n.World = local
	}
	g.updated[h.ID] = g.pass

	count := 1
	n.Children.Each(func(c pool.Handle) {
		if child := g.nodes.Get(c); child != nil {
			count += g.updateWorldTransform(c, child)
		}
	})
	return count
}

// UpdateAll recomputes every node from the roots down and clears the
// worklist.
func (g *SceneGraph) UpdateAll() int {
	for _, h := range g.dirty {
		g.listed[h.ID] = false
	}
	g.dirty = g.dirty[:0]
	g.pass++

	count := 0
	g.nodes.Each(func(h pool.Handle, n *SceneNode) bool {
		if g.nodes.Get(n.Parent) == nil {
			count += g.updateWorldTransform(h, n)
		}
		return true
	})
	return count
}

// World is the node's world matrix as of the last Update.
func (g *SceneGraph) World(node pool.Handle) (mgl32.Mat4, bool) {
	n := g.nodes.Get(node)
	if n == nil {
		return mgl32.Ident4(), false
	}
	return n.World, true
}

func (g *SceneGraph) Parent(node pool.Handle) pool.Handle {
	if n := g.nodes.Get(node); n != nil {
		return n.Parent
	}
	return pool.Invalid
}

func (g *SceneGraph) Children(node pool.Handle) []pool.Handle {
	if n := g.nodes.Get(node); n != nil {
		return n.Children.Handles()
	}
	return nil
}

// Roots lists parentless nodes in id order.
func (g *SceneGraph) Roots() []pool.Handle {
	var roots []pool.Handle
	g.nodes.Each(func(h pool.Handle, n *SceneNode) bool {
		if n.Parent.IsNil() {
			roots = append(roots, h)
		}
		return true
	})
	return roots
}

// Destroy removes node and its subtree, children first. onUnlink, when not
// nil, is called with each destroyed node's non-empty link.
func (g *SceneGraph) Destroy(node pool.Handle, onUnlink func(Link)) error {
	n, err := g.get(node)
	if err != nil {
		return err
	}
	if p := g.nodes.Get(n.Parent); p != nil {
		p.Children.remove(node)
	}
	g.destroy(node, onUnlink)
	return nil
}

func (g *SceneGraph) destroy(h pool.Handle, onUnlink func(Link)) {
	n := g.nodes.Get(h)
	if n == nil {
		return
	}
	for _, c := range n.Children.Handles() {
		g.destroy(c, onUnlink)
	}
	if g.listed[h.ID] {
		g.listed[h.ID] = false
		if i := slices.Index(g.dirty, h); i >= 0 {
			g.dirty = slices.Delete(g.dirty, i, i+1)
		}
	}
	link := n.Link
	g.nodes.Remove(h)
	if onUnlink != nil && link.Kind != LinkEmpty {
		onUnlink(link)
	}
}
