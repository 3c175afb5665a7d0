package anim

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/mmdanim/internal/engine/morph"
	"github.com/Faultbox/mmdanim/internal/engine/node"
	mmath "github.com/Faultbox/mmdanim/pkg/math"
	"github.com/Faultbox/mmdanim/pkg/rig"
)

// PoseNode is one bone of a static pose.
type PoseNode struct {
	Translate mgl32.Vec3
	Rotate    mgl32.Quat
}

// Pose is a single-frame set of bone overlays and morph weights.
type Pose struct {
	Name   string
	Nodes  map[string]PoseNode
	Morphs map[string]float32
}

// Apply writes the pose into the keyframe overlays, blending from the base
// animation by weight like Animation.Evaluate. It returns the names that
// matched nothing. ms may be nil.
func (p *Pose) Apply(g *node.Graph, ms *morph.System, weight float32) []string {
	var unbound []string
	for _, name := range sortedNames(p.Nodes) {
		i := g.Find(name)
		if i == node.None {
			unbound = append(unbound, name)
			continue
		}
		pn := p.Nodes[name]
		n := g.Node(i)
		n.AnimTranslate = mmath.Mix(n.BaseAnimTranslate, pn.Translate, weight)
		n.AnimRotate = mmath.Slerp(n.BaseAnimRotate, pn.Rotate, weight)
	}
	for _, name := range sortedNames(p.Morphs) {
		i := rig.None
		if ms != nil {
			i = ms.Find(name)
		}
		if i == rig.None {
			unbound = append(unbound, name)
			continue
		}
		m := ms.Morph(i)
		m.Weight = m.BaseWeight + (p.Morphs[name]-m.BaseWeight)*weight
	}
	return unbound
}
