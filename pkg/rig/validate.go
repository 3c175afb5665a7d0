package rig

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownSkinning is returned for a vertex with an unsupported skin mode.
	ErrUnknownSkinning = errors.New("unknown skinning mode")
	// ErrUnknownMorphType is returned for a morph the engine cannot apply.
	ErrUnknownMorphType = errors.New("unsupported morph type")
)

// RepairKind classifies a load-time fix applied to a rig.
type RepairKind string

const (
	RepairParentRange  RepairKind = "parent-range"
	RepairParentCycle  RepairKind = "parent-cycle"
	RepairAppendRange  RepairKind = "append-range"
	RepairAppendCycle  RepairKind = "append-cycle"
	RepairIKRange      RepairKind = "ik-range"
	RepairVertexBone   RepairKind = "vertex-bone"
	RepairMorphOffset  RepairKind = "morph-offset"
	RepairGroupCycle   RepairKind = "group-cycle"
	RepairBodyBone     RepairKind = "body-bone"
	RepairBodyGroup    RepairKind = "body-group"
	RepairJointBody    RepairKind = "joint-body"
	RepairSubMeshRange RepairKind = "submesh-range"
)

// Repair records one fix made by Validate.
type Repair struct {
	Kind   RepairKind
	Index  int
	Detail string
}

func (r Repair) String() string {
	return fmt.Sprintf("%s #%d: %s", r.Kind, r.Index, r.Detail)
}

// Validate checks the model in place. Broken references are repaired and
// reported; unsupported skin modes and morph types are errors.
func (m *Model) Validate() ([]Repair, error) {
	for i := range m.Vertices {
		if mode := m.Vertices[i].Mode; mode < BDEF1 || mode > QDEF {
			return nil, fmt.Errorf("vertex %d: %w (%d)", i, ErrUnknownSkinning, mode)
		}
	}
	for i := range m.Morphs {
		switch m.Morphs[i].Type {
		case MorphPosition, MorphUV, MorphMaterial, MorphBone, MorphGroup:
		default:
			return nil, fmt.Errorf("morph %d %q: %w (%s)", i, m.Morphs[i].Name, ErrUnknownMorphType, m.Morphs[i].Type)
		}
	}

	var repairs []Repair
	repairs = m.repairBones(repairs)
	repairs = m.repairIK(repairs)
	repairs = m.repairVertices(repairs)
	repairs = m.repairMorphs(repairs)
	repairs = m.repairPhysics(repairs)
	repairs = m.repairSubMeshes(repairs)
	return repairs, nil
}

func (m *Model) validBone(i int) bool {
	return i >= 0 && i < len(m.Bones)
}

func (m *Model) repairBones(repairs []Repair) []Repair {
	for i := range m.Bones {
		b := &m.Bones[i]
		if b.Parent != None && (!m.validBone(b.Parent) || b.Parent == i) {
			repairs = append(repairs, Repair{RepairParentRange, i, fmt.Sprintf("parent %d dropped", b.Parent)})
			b.Parent = None
		}
		if (b.AppendRotate || b.AppendTranslate) && b.AppendParent != None &&
			(!m.validBone(b.AppendParent) || b.AppendParent == i) {
			repairs = append(repairs, Repair{RepairAppendRange, i, fmt.Sprintf("append source %d dropped", b.AppendParent)})
			b.AppendParent = None
		}
	}

	parent := func(i int) int { return m.Bones[i].Parent }
	for _, i := range cutCycles(len(m.Bones), parent) {
		repairs = append(repairs, Repair{RepairParentCycle, i, fmt.Sprintf("parent %d closes a loop", m.Bones[i].Parent)})
		m.Bones[i].Parent = None
	}

	appendSrc := func(i int) int {
		if !m.Bones[i].HasAppend() {
			return None
		}
		return m.Bones[i].AppendParent
	}
	for _, i := range cutCycles(len(m.Bones), appendSrc) {
		repairs = append(repairs, Repair{RepairAppendCycle, i, fmt.Sprintf("append source %d closes a loop", m.Bones[i].AppendParent)})
		m.Bones[i].AppendParent = None
	}
	return repairs
}

// cutCycles walks the single-successor graph next and returns one node
// per cycle whose outgoing edge should be dropped.
func cutCycles(n int, next func(int) int) []int {
	const (
		unseen = iota
		onPath
		done
	)
	state := make([]int, n)
	var cuts []int
	for start := 0; start < n; start++ {
		if state[start] != unseen {
			continue
		}
		var path []int
		cur := start
		for cur != None && state[cur] == unseen {
			state[cur] = onPath
			path = append(path, cur)
			nxt := next(cur)
			if nxt != None && state[nxt] == onPath {
				cuts = append(cuts, cur)
				break
			}
			cur = nxt
		}
		for _, p := range path {
			state[p] = done
		}
	}
	return cuts
}

func (m *Model) repairIK(repairs []Repair) []Repair {
	for i := range m.Bones {
		ik := m.Bones[i].IK
		if ik == nil {
			continue
		}
		if !m.validBone(ik.Target) {
			repairs = append(repairs, Repair{RepairIKRange, i, fmt.Sprintf("target %d out of range, IK removed", ik.Target)})
			m.Bones[i].IK = nil
			continue
		}
		links := ik.Links[:0]
		for _, l := range ik.Links {
			if !m.validBone(l.Bone) {
				repairs = append(repairs, Repair{RepairIKRange, i, fmt.Sprintf("link bone %d dropped", l.Bone)})
				continue
			}
			links = append(links, l)
		}
		ik.Links = links
		if len(ik.Links) == 0 {
			repairs = append(repairs, Repair{RepairIKRange, i, "no chain links, IK removed"})
			m.Bones[i].IK = nil
		}
	}
	return repairs
}

func (m *Model) repairVertices(repairs []Repair) []Repair {
	for i := range m.Vertices {
		v := &m.Vertices[i]
		for k := range v.Bones {
			// Unused slots still index the transform table.
			if v.Bones[k] == None && v.Weights[k] == 0 {
				v.Bones[k] = 0
				continue
			}
			if !m.validBone(v.Bones[k]) {
				repairs = append(repairs, Repair{RepairVertexBone, i, fmt.Sprintf("bone %d in slot %d", v.Bones[k], k)})
				v.Bones[k] = 0
				v.Weights[k] = 0
			}
		}
	}
	return repairs
}

func (m *Model) repairMorphs(repairs []Repair) []Repair {
	for i := range m.Morphs {
		mo := &m.Morphs[i]
		switch mo.Type {
		case MorphPosition:
			kept := mo.Positions[:0]
			for _, o := range mo.Positions {
				if o.Vertex >= 0 && o.Vertex < len(m.Vertices) {
					kept = append(kept, o)
				} else {
					repairs = append(repairs, Repair{RepairMorphOffset, i, fmt.Sprintf("vertex %d dropped", o.Vertex)})
				}
			}
			mo.Positions = kept
		case MorphUV:
			kept := mo.UVs[:0]
			for _, o := range mo.UVs {
				if o.Vertex >= 0 && o.Vertex < len(m.Vertices) {
					kept = append(kept, o)
				} else {
					repairs = append(repairs, Repair{RepairMorphOffset, i, fmt.Sprintf("vertex %d dropped", o.Vertex)})
				}
			}
			mo.UVs = kept
		case MorphMaterial:
			kept := mo.Materials[:0]
			for _, o := range mo.Materials {
				if o.Material == None || (o.Material >= 0 && o.Material < len(m.Materials)) {
					kept = append(kept, o)
				} else {
					repairs = append(repairs, Repair{RepairMorphOffset, i, fmt.Sprintf("material %d dropped", o.Material)})
				}
			}
			mo.Materials = kept
		case MorphBone:
			kept := mo.Bones[:0]
			for _, o := range mo.Bones {
				if m.validBone(o.Bone) {
					kept = append(kept, o)
				} else {
					repairs = append(repairs, Repair{RepairMorphOffset, i, fmt.Sprintf("bone %d dropped", o.Bone)})
				}
			}
			mo.Bones = kept
		case MorphGroup:
			for k := range mo.Group {
				g := &mo.Group[k]
				if g.Morph != None && (g.Morph < 0 || g.Morph >= len(m.Morphs)) {
					repairs = append(repairs, Repair{RepairMorphOffset, i, fmt.Sprintf("member %d dropped", g.Morph)})
					g.Morph = None
				}
			}
		}
	}
	return m.repairGroupCycles(repairs)
}

// repairGroupCycles severs group members that lead back to a morph already
// on the expansion path.
func (m *Model) repairGroupCycles(repairs []Repair) []Repair {
	const (
		unseen = iota
		onPath
		done
	)
	state := make([]int, len(m.Morphs))
	var visit func(i int)
	visit = func(i int) {
		state[i] = onPath
		if m.Morphs[i].Type == MorphGroup {
			for k := range m.Morphs[i].Group {
				g := &m.Morphs[i].Group[k]
				if g.Morph == None {
					continue
				}
				switch state[g.Morph] {
				case onPath:
					repairs = append(repairs, Repair{RepairGroupCycle, i, fmt.Sprintf("member %d closes a loop", g.Morph)})
					g.Morph = None
				case unseen:
					visit(g.Morph)
				}
			}
		}
		state[i] = done
	}
	for i := range m.Morphs {
		if state[i] == unseen {
			visit(i)
		}
	}
	return repairs
}

func (m *Model) repairPhysics(repairs []Repair) []Repair {
	for i := range m.RigidBodies {
		rb := &m.RigidBodies[i]
		if rb.Bone != None && !m.validBone(rb.Bone) {
			repairs = append(repairs, Repair{RepairBodyBone, i, fmt.Sprintf("bone %d dropped", rb.Bone)})
			rb.Bone = None
		}
		if rb.Group > MaxBodyGroup {
			repairs = append(repairs, Repair{RepairBodyGroup, i, fmt.Sprintf("group %d clamped to %d", rb.Group, MaxBodyGroup)})
			rb.Group = MaxBodyGroup
		}
	}
	kept := m.Joints[:0]
	for i, j := range m.Joints {
		okA := j.BodyA >= 0 && j.BodyA < len(m.RigidBodies)
		okB := j.BodyB >= 0 && j.BodyB < len(m.RigidBodies)
		if !okA || !okB || j.BodyA == j.BodyB {
			repairs = append(repairs, Repair{RepairJointBody, i, fmt.Sprintf("bodies %d/%d, joint dropped", j.BodyA, j.BodyB)})
			continue
		}
		kept = append(kept, j)
	}
	m.Joints = kept
	return repairs
}

func (m *Model) repairSubMeshes(repairs []Repair) []Repair {
	for i := range m.SubMeshes {
		sm := &m.SubMeshes[i]
		if sm.Material < 0 || sm.Material >= len(m.Materials) {
			repairs = append(repairs, Repair{RepairSubMeshRange, i, fmt.Sprintf("material %d reset to 0", sm.Material)})
			sm.Material = 0
		}
		if sm.BeginIndex < 0 || sm.BeginIndex > len(m.Indices) || sm.VertexCount < 0 {
			repairs = append(repairs, Repair{RepairSubMeshRange, i, "index run emptied"})
			sm.BeginIndex, sm.VertexCount = 0, 0
		}
		if sm.BeginIndex+sm.VertexCount > len(m.Indices) {
			repairs = append(repairs, Repair{RepairSubMeshRange, i, "index run clipped"})
			sm.VertexCount = max(0, len(m.Indices)-sm.BeginIndex)
		}
	}
	return repairs
}
