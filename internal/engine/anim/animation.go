package anim

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/mmdanim/internal/engine/ik"
	"github.com/Faultbox/mmdanim/internal/engine/morph"
	"github.com/Faultbox/mmdanim/internal/engine/node"
	"github.com/Faultbox/mmdanim/pkg/encoding"
	mmath "github.com/Faultbox/mmdanim/pkg/math"
	"github.com/Faultbox/mmdanim/pkg/rig"
)

type nodeTrack struct {
	name  string
	node  int
	keys  []NodeKey
	cache int
}

func (tr *nodeTrack) evaluate(t float32, c Curve) (mgl32.Vec3, mgl32.Quat) {
	k0, k1, s := segment(tr.keys, t, &tr.cache)
	if s == 0 {
		return k0.Translate, k0.Rotate
	}
	ease := mgl32.Vec3{
		c.ease(k1.TranslateX, s),
		c.ease(k1.TranslateY, s),
		c.ease(k1.TranslateZ, s),
	}
	translate := k0.Translate.Add(mmath.MulElem(k1.Translate.Sub(k0.Translate), ease))
	rotate := mmath.Slerp(k0.Rotate, k1.Rotate, c.ease(k1.Rotation, s))
	return translate, rotate
}

type morphTrack struct {
	name  string
	morph int
	keys  []MorphKey
	cache int
}

func (tr *morphTrack) evaluate(t float32) float32 {
	k0, k1, s := segment(tr.keys, t, &tr.cache)
	return k0.Weight + (k1.Weight-k0.Weight)*s
}

type ikTrack struct {
	name   string
	solver *ik.Solver
	keys   []IKKey
	cache  int
}

// evaluate holds the state of the last key at or before t; before the
// first key the first key's state applies.
func (tr *ikTrack) evaluate(t float32) bool {
	k0, _, _ := segment(tr.keys, t, &tr.cache)
	return k0.Enabled
}

// Animation is a motion bound to one model.
type Animation struct {
	Curve Curve

	name     string
	graph    *node.Graph
	morphs   *morph.System
	nodes    []nodeTrack
	weights  []morphTrack
	iks      []ikTrack
	unbound  []string
	maxFrame int32
}

// Bind resolves m's tracks against a model's nodes, morphs and IK solvers.
// Tracks without a matching target are skipped and reported by Unbound.
// ms may be nil for models without morphs.
func Bind(m *Motion, g *node.Graph, ms *morph.System, solvers []*ik.Solver, log *zap.Logger) *Animation {
	if log == nil {
		log = zap.NewNop()
	}
	a := &Animation{
		Curve:    DefaultCurve(),
		name:     m.Name,
		graph:    g,
		morphs:   ms,
		maxFrame: m.MaxFrame(),
	}

	for _, name := range sortedNames(m.Nodes) {
		keys := m.Nodes[name]
		i := g.Find(name)
		if i == node.None || len(keys) == 0 {
			a.unbound = append(a.unbound, name)
			continue
		}
		a.nodes = append(a.nodes, nodeTrack{name: name, node: i, keys: sorted(keys)})
	}

	for _, name := range sortedNames(m.Morphs) {
		keys := m.Morphs[name]
		i := rig.None
		if ms != nil {
			i = ms.Find(name)
		}
		if i == rig.None || len(keys) == 0 {
			a.unbound = append(a.unbound, name)
			continue
		}
		a.weights = append(a.weights, morphTrack{name: name, morph: i, keys: sorted(keys)})
	}

	byName := make(map[string]*ik.Solver, len(solvers))
	for _, s := range solvers {
		byName[encoding.NormalizeName(s.Name())] = s
	}
	for _, name := range sortedNames(m.IK) {
		keys := m.IK[name]
		s, ok := byName[encoding.NormalizeName(name)]
		if !ok || len(keys) == 0 {
			a.unbound = append(a.unbound, name)
			continue
		}
		a.iks = append(a.iks, ikTrack{name: name, solver: s, keys: sorted(keys)})
	}

	log.Debug("motion bound",
		zap.String("motion", m.Name),
		zap.Int("node_tracks", len(a.nodes)),
		zap.Int("morph_tracks", len(a.weights)),
		zap.Int("ik_tracks", len(a.iks)),
		zap.Strings("unbound", a.unbound),
		zap.Int32("max_frame", a.maxFrame))
	return a
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Name returns the motion name.
func (a *Animation) Name() string { return a.name }

// MaxFrame returns the last keyed frame.
func (a *Animation) MaxFrame() int32 { return a.maxFrame }

// Unbound returns the track names that matched nothing in the model.
func (a *Animation) Unbound() []string { return a.unbound }

// Evaluate writes the pose at frame into the keyframe overlays. A weight
// below 1 blends from the saved base animation towards the motion; IK
// switches keep their base state unless weight is 1.
func (a *Animation) Evaluate(frame, weight float32) {
	for i := range a.nodes {
		tr := &a.nodes[i]
		t, r := tr.evaluate(frame, a.Curve)
		n := a.graph.Node(tr.node)
		if weight == 1 {
			n.AnimTranslate = t
			n.AnimRotate = r
			continue
		}
		n.AnimTranslate = mmath.Mix(n.BaseAnimTranslate, t, weight)
		n.AnimRotate = mmath.Slerp(n.BaseAnimRotate, r, weight)
	}

	for i := range a.weights {
		tr := &a.weights[i]
		w := tr.evaluate(frame)
		m := a.morphs.Morph(tr.morph)
		if weight == 1 {
			m.Weight = w
			continue
		}
		m.Weight = m.BaseWeight + (w-m.BaseWeight)*weight
	}

	for i := range a.iks {
		tr := &a.iks[i]
		on := tr.evaluate(frame)
		if weight < 1 {
			on = tr.solver.BaseEnabled()
		}
		tr.solver.Enabled = on
	}
}
