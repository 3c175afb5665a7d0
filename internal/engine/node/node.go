// Package node implements the bone hierarchy: an index-addressed arena of
// nodes with layered local transforms (rest, morph, keyframe, IK, append)
// and cached global transforms.
package node

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/mmdanim/pkg/encoding"
	mmath "github.com/Faultbox/mmdanim/pkg/math"
	"github.com/Faultbox/mmdanim/pkg/rig"
)

// None marks an absent node reference.
const None = -1

// Node is one bone. Parent, Child, Next and Prev are arena indices.
type Node struct {
	Name  string
	Index int

	Parent int
	Child  int
	Next   int
	Prev   int

	InitTranslate mgl32.Vec3
	InitRotate    mgl32.Quat
	InitScale     mgl32.Vec3

	// Current values; reset to Init* every frame, then edited by bone morphs.
	Translate mgl32.Vec3
	Rotate    mgl32.Quat
	Scale     mgl32.Vec3

	// Keyframe overlay.
	AnimTranslate mgl32.Vec3
	AnimRotate    mgl32.Quat

	BaseAnimTranslate mgl32.Vec3
	BaseAnimRotate    mgl32.Quat

	// IK overlay. EnableIK is set on nodes that are links of an IK chain.
	IKRotate mgl32.Quat
	EnableIK bool

	AppendSource    int
	AppendWeight    float32
	AppendRotate    bool
	AppendTranslate bool
	AppendLocal     bool

	appendRotation    mgl32.Quat
	appendTranslation mgl32.Vec3

	DeformDepth  int
	AfterPhysics bool

	Local       mgl32.Mat4
	Global      mgl32.Mat4
	InverseInit mgl32.Mat4
}

// AnimateTranslate is the keyframe translation layered on the current one.
func (n *Node) AnimateTranslate() mgl32.Vec3 {
	return n.AnimTranslate.Add(n.Translate)
}

// AnimateRotate is the keyframe rotation layered on the current one.
func (n *Node) AnimateRotate() mgl32.Quat {
	return n.AnimRotate.Mul(n.Rotate)
}

// HasAppend reports whether the node inherits motion from another node.
func (n *Node) HasAppend() bool {
	return n.AppendSource != None && (n.AppendRotate || n.AppendTranslate)
}

// AppendRotation returns the rotation inherited at the last UpdateAppend.
func (n *Node) AppendRotation() mgl32.Quat { return n.appendRotation }

// AppendTranslation returns the translation inherited at the last UpdateAppend.
func (n *Node) AppendTranslation() mgl32.Vec3 { return n.appendTranslation }

// Graph owns every node of a model.
type Graph struct {
	nodes  []Node
	roots  []int
	sorted []int
	byName map[string]int
}

// New builds a graph from validated bone descriptions. Children are linked
// in declaration order.
func New(bones []rig.Bone) *Graph {
	g := &Graph{
		nodes:  make([]Node, len(bones)),
		byName: make(map[string]int, len(bones)),
	}

	lastChild := make([]int, len(bones))
	for i := range bones {
		b := &bones[i]
		n := &g.nodes[i]
		*n = Node{
			Name:         b.Name,
			Index:        i,
			Parent:       b.Parent,
			Child:        None,
			Next:         None,
			Prev:         None,
			InitRotate:   mgl32.QuatIdent(),
			InitScale:    mgl32.Vec3{1, 1, 1},
			AppendSource: None,
			DeformDepth:  b.DeformDepth,
			AfterPhysics: b.AfterPhysics,
		}
		if b.HasAppend() {
			n.AppendSource = b.AppendParent
			n.AppendWeight = b.AppendWeight
			n.AppendRotate = b.AppendRotate
			n.AppendTranslate = b.AppendTranslate
			n.AppendLocal = b.AppendLocal
		}

		n.InitTranslate = b.Position
		if b.Parent != None {
			n.InitTranslate = b.Position.Sub(bones[b.Parent].Position)
		}
		lastChild[i] = None
		if key := encoding.NormalizeName(b.Name); key != "" {
			if _, dup := g.byName[key]; !dup {
				g.byName[key] = i
			}
		}
	}

	for i := range g.nodes {
		p := g.nodes[i].Parent
		if p == None {
			g.roots = append(g.roots, i)
			continue
		}
		if lastChild[p] == None {
			g.nodes[p].Child = i
		} else {
			g.nodes[lastChild[p]].Next = i
			g.nodes[i].Prev = lastChild[p]
		}
		lastChild[p] = i
	}

	g.sorted = make([]int, len(g.nodes))
	for i := range g.sorted {
		g.sorted[i] = i
	}
	sort.SliceStable(g.sorted, func(a, b int) bool {
		return g.nodes[g.sorted[a]].DeformDepth < g.nodes[g.sorted[b]].DeformDepth
	})

	g.BeginUpdate()
	for i := range g.nodes {
		g.nodes[i].AnimRotate = mgl32.QuatIdent()
		g.nodes[i].BaseAnimRotate = mgl32.QuatIdent()
		g.UpdateLocal(i)
	}
	g.UpdateRoots()
	for i := range g.nodes {
		g.nodes[i].InverseInit = g.nodes[i].Global.Inv()
	}
	return g
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Node returns the node at index i.
func (g *Graph) Node(i int) *Node { return &g.nodes[i] }

// Roots returns the indices of parentless nodes.
func (g *Graph) Roots() []int { return g.roots }

// Sorted returns node indices ordered by deform depth. Nodes with equal
// depth keep declaration order.
func (g *Graph) Sorted() []int { return g.sorted }

// Find returns the index of the named node or None.
func (g *Graph) Find(name string) int {
	if i, ok := g.byName[encoding.NormalizeName(name)]; ok {
		return i
	}
	return None
}

// BeginUpdate resets every node's current values to its rest values and
// clears the IK and append overlays. Keyframe overlays are kept.
func (g *Graph) BeginUpdate() {
	for i := range g.nodes {
		n := &g.nodes[i]
		n.Translate = n.InitTranslate
		n.Rotate = n.InitRotate
		n.Scale = n.InitScale
		n.IKRotate = mgl32.QuatIdent()
		n.appendRotation = mgl32.QuatIdent()
		n.appendTranslation = mgl32.Vec3{}
	}
}

// UpdateLocal recomputes the local matrix of node i from its layers.
func (g *Graph) UpdateLocal(i int) {
	n := &g.nodes[i]

	t := n.AnimateTranslate()
	if n.AppendTranslate {
		t = t.Add(n.appendTranslation)
	}

	r := n.AnimateRotate()
	if n.EnableIK {
		r = n.IKRotate.Mul(r)
	}
	if n.AppendRotate {
		r = r.Mul(n.appendRotation)
	}

	n.Local = mmath.Compose(t, r, n.Scale)
}

// UpdateGlobal recomputes the global matrix of node i and its subtree.
func (g *Graph) UpdateGlobal(i int) {
	n := &g.nodes[i]
	if n.Parent == None {
		n.Global = n.Local
	} else {
		n.Global = g.nodes[n.Parent].Global.Mul4(n.Local)
	}
	g.UpdateChildren(i)
}

// UpdateChildren recomputes the globals of i's descendants.
func (g *Graph) UpdateChildren(i int) {
	for c := g.nodes[i].Child; c != None; c = g.nodes[c].Next {
		g.UpdateGlobal(c)
	}
}

// UpdateRoots recomputes every global transform from the roots down.
func (g *Graph) UpdateRoots() {
	for _, r := range g.roots {
		g.UpdateGlobal(r)
	}
}

// UpdateAppend copies a weighted share of the source node's motion into
// node i's append overlay and refreshes its local matrix. The caller
// refreshes globals.
func (g *Graph) UpdateAppend(i int) {
	n := &g.nodes[i]
	if !n.HasAppend() {
		return
	}
	src := &g.nodes[n.AppendSource]
	chained := !n.AppendLocal && src.HasAppend()

	if n.AppendRotate {
		var q mgl32.Quat
		if chained {
			q = src.appendRotation
		} else {
			q = src.AnimateRotate()
		}
		if src.EnableIK {
			q = src.IKRotate.Mul(q)
		}
		n.appendRotation = mmath.Weighted(q, n.AppendWeight)
	}

	if n.AppendTranslate {
		var t mgl32.Vec3
		if chained {
			t = src.appendTranslation
		} else {
			t = src.AnimateTranslate().Sub(src.InitTranslate)
		}
		n.appendTranslation = t.Mul(n.AppendWeight)
	}

	g.UpdateLocal(i)
}

// SetGlobal overwrites node i's global matrix without touching children.
func (g *Graph) SetGlobal(i int, m mgl32.Mat4) {
	g.nodes[i].Global = m
}

// SetLocal overwrites node i's local matrix.
func (g *Graph) SetLocal(i int, m mgl32.Mat4) {
	g.nodes[i].Local = m
}

// ParentGlobal returns the global matrix of i's parent, or identity.
func (g *Graph) ParentGlobal(i int) mgl32.Mat4 {
	if p := g.nodes[i].Parent; p != None {
		return g.nodes[p].Global
	}
	return mgl32.Ident4()
}

// SkinTransform returns the matrix that maps rest-pose model space to
// node i's current pose.
func (g *Graph) SkinTransform(i int) mgl32.Mat4 {
	n := &g.nodes[i]
	return n.Global.Mul4(n.InverseInit)
}

// SaveBaseAnimation snapshots every node's keyframe overlay.
func (g *Graph) SaveBaseAnimation() {
	for i := range g.nodes {
		n := &g.nodes[i]
		n.BaseAnimTranslate = n.AnimTranslate
		n.BaseAnimRotate = n.AnimRotate
	}
}

// LoadBaseAnimation restores the keyframe overlays saved by SaveBaseAnimation.
func (g *Graph) LoadBaseAnimation() {
	for i := range g.nodes {
		n := &g.nodes[i]
		n.AnimTranslate = n.BaseAnimTranslate
		n.AnimRotate = n.BaseAnimRotate
	}
}

// ClearBaseAnimation resets the saved overlays to rest.
func (g *Graph) ClearBaseAnimation() {
	for i := range g.nodes {
		n := &g.nodes[i]
		n.BaseAnimTranslate = mgl32.Vec3{}
		n.BaseAnimRotate = mgl32.QuatIdent()
	}
}

// ResetAnimation clears every keyframe overlay.
func (g *Graph) ResetAnimation() {
	for i := range g.nodes {
		n := &g.nodes[i]
		n.AnimTranslate = mgl32.Vec3{}
		n.AnimRotate = mgl32.QuatIdent()
	}
}
