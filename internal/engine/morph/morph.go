// Package morph blends vertex, UV, material and bone morphs into per-frame
// accumulators.
package morph

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/tiendc/go-deepcopy"

	"github.com/Faultbox/mmdanim/internal/engine/node"
	"github.com/Faultbox/mmdanim/pkg/encoding"
	mmath "github.com/Faultbox/mmdanim/pkg/math"
	"github.com/Faultbox/mmdanim/pkg/rig"
)

// Morph is a named blend target and its current weight.
type Morph struct {
	Name       string
	Weight     float32
	BaseWeight float32
	desc       rig.Morph
}

// Type returns the payload kind.
func (m *Morph) Type() rig.MorphType { return m.desc.Type }

// System owns every morph of a model and the accumulators they write.
type System struct {
	graph  *node.Graph
	morphs []Morph
	byName map[string]int

	positions []mgl32.Vec3
	uvs       []mgl32.Vec4

	base      []rig.Material
	mul       []Factor
	add       []Factor
	materials []Material
}

// New creates the morph system for a validated model. Bone morphs write to g.
func New(m *rig.Model, g *node.Graph) (*System, error) {
	s := &System{
		graph:     g,
		morphs:    make([]Morph, len(m.Morphs)),
		byName:    make(map[string]int, len(m.Morphs)),
		positions: make([]mgl32.Vec3, len(m.Vertices)),
		uvs:       make([]mgl32.Vec4, len(m.Vertices)),
		mul:       make([]Factor, len(m.Materials)),
		add:       make([]Factor, len(m.Materials)),
		materials: make([]Material, len(m.Materials)),
	}
	if err := deepcopy.Copy(&s.base, m.Materials); err != nil {
		return nil, err
	}
	for i := range m.Morphs {
		s.morphs[i] = Morph{Name: m.Morphs[i].Name, desc: m.Morphs[i]}
		key := encoding.NormalizeName(m.Morphs[i].Name)
		if _, dup := s.byName[key]; !dup {
			s.byName[key] = i
		}
	}
	s.BeginFrame()
	s.EndFrame()
	return s, nil
}

// Len returns the number of morphs.
func (s *System) Len() int { return len(s.morphs) }

// Morph returns morph i.
func (s *System) Morph(i int) *Morph { return &s.morphs[i] }

// Find returns the index of the named morph or rig.None.
func (s *System) Find(name string) int {
	if i, ok := s.byName[encoding.NormalizeName(name)]; ok {
		return i
	}
	return rig.None
}

// Positions returns the accumulated per-vertex position deltas.
func (s *System) Positions() []mgl32.Vec3 { return s.positions }

// UVs returns the accumulated per-vertex UV deltas.
func (s *System) UVs() []mgl32.Vec4 { return s.uvs }

// Materials returns the post-morph materials as of the last EndFrame.
func (s *System) Materials() []Material { return s.materials }

// BeginFrame clears the accumulators. Bone morphs write straight into the
// node graph, whose own BeginUpdate clears them.
func (s *System) BeginFrame() {
	clear(s.positions)
	clear(s.uvs)
	for i := range s.mul {
		s.mul[i] = MulIdentity()
		s.add[i] = Factor{}
	}
}

// Apply blends morph i into the accumulators at the given weight.
func (s *System) Apply(i int, weight float32) {
	if weight == 0 || i < 0 || i >= len(s.morphs) {
		return
	}
	d := &s.morphs[i].desc
	switch d.Type {
	case rig.MorphPosition:
		for _, o := range d.Positions {
			s.positions[o.Vertex] = s.positions[o.Vertex].Add(o.Offset.Mul(weight))
		}
	case rig.MorphUV:
		for _, o := range d.UVs {
			s.uvs[o.Vertex] = s.uvs[o.Vertex].Add(o.Offset.Mul(weight))
		}
	case rig.MorphMaterial:
		for k := range d.Materials {
			s.applyMaterial(&d.Materials[k], weight)
		}
	case rig.MorphBone:
		for _, o := range d.Bones {
			n := s.graph.Node(o.Bone)
			n.Translate = n.Translate.Add(o.Translate.Mul(weight))
			n.Rotate = mmath.Weighted(o.Rotate, weight).Mul(n.Rotate).Normalize()
		}
	case rig.MorphGroup:
		for _, g := range d.Group {
			if g.Morph != rig.None {
				s.Apply(g.Morph, g.Weight*weight)
			}
		}
	}
}

func (s *System) applyMaterial(o *rig.MaterialOffset, weight float32) {
	val := factorOf(o)
	first, last := o.Material, o.Material+1
	if o.Material == rig.None {
		first, last = 0, len(s.mul)
	}
	for mi := first; mi < last; mi++ {
		switch o.Op {
		case rig.MaterialMul:
			s.mul[mi].Mul(val, weight)
		case rig.MaterialAdd:
			s.add[mi].Add(val, weight)
		}
	}
}

// EndFrame folds the factor tables into the live materials.
func (s *System) EndFrame() {
	for i := range s.materials {
		s.materials[i].compose(&s.base[i], &s.mul[i], &s.add[i])
	}
}

// Update applies every morph at its current weight.
func (s *System) Update() {
	s.BeginFrame()
	for i := range s.morphs {
		s.Apply(i, s.morphs[i].Weight)
	}
	s.EndFrame()
}

// SaveBaseAnimation snapshots every morph weight.
func (s *System) SaveBaseAnimation() {
	for i := range s.morphs {
		s.morphs[i].BaseWeight = s.morphs[i].Weight
	}
}

// LoadBaseAnimation restores the weights saved by SaveBaseAnimation.
func (s *System) LoadBaseAnimation() {
	for i := range s.morphs {
		s.morphs[i].Weight = s.morphs[i].BaseWeight
	}
}

// ClearBaseAnimation zeroes the saved weights.
func (s *System) ClearBaseAnimation() {
	for i := range s.morphs {
		s.morphs[i].BaseWeight = 0
	}
}

// ResetWeights zeroes every current weight.
func (s *System) ResetWeights() {
	for i := range s.morphs {
		s.morphs[i].Weight = 0
	}
}
