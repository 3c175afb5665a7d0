package rig

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func chain(n int) []Bone {
	bones := make([]Bone, n)
	for i := range bones {
		bones[i] = Bone{Name: string(rune('a' + i)), Position: mgl32.Vec3{float32(i), 0, 0}, Parent: i - 1, AppendParent: None}
	}
	return bones
}

func countKind(repairs []Repair, kind RepairKind) int {
	n := 0
	for _, r := range repairs {
		if r.Kind == kind {
			n++
		}
	}
	return n
}

func TestValidate_ParentCycle(t *testing.T) {
	m := &Model{Bones: chain(3)}
	m.Bones[0].Parent = 2 // 0 -> 2 -> 1 -> 0

	repairs, err := m.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := countKind(repairs, RepairParentCycle); got != 1 {
		t.Fatalf("expected 1 parent-cycle repair, got %d (%v)", got, repairs)
	}

	// Every bone must now reach a root
	for i := range m.Bones {
		seen := map[int]bool{}
		for cur := i; cur != None; cur = m.Bones[cur].Parent {
			if seen[cur] {
				t.Fatalf("bone %d still on a loop", i)
			}
			seen[cur] = true
		}
	}
}

func TestValidate_ParentRange(t *testing.T) {
	m := &Model{Bones: chain(2)}
	m.Bones[1].Parent = 7
	m.Bones[0].Parent = 0

	repairs, err := m.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := countKind(repairs, RepairParentRange); got != 2 {
		t.Errorf("expected 2 parent-range repairs, got %d", got)
	}
	if m.Bones[0].Parent != None || m.Bones[1].Parent != None {
		t.Errorf("expected both parents dropped, got %d, %d", m.Bones[0].Parent, m.Bones[1].Parent)
	}
}

func TestValidate_AppendCycle(t *testing.T) {
	m := &Model{Bones: chain(2)}
	m.Bones[0].AppendRotate, m.Bones[0].AppendParent, m.Bones[0].AppendWeight = true, 1, 1
	m.Bones[1].AppendRotate, m.Bones[1].AppendParent, m.Bones[1].AppendWeight = true, 0, 1

	repairs, err := m.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := countKind(repairs, RepairAppendCycle); got != 1 {
		t.Errorf("expected 1 append-cycle repair, got %d", got)
	}
	if m.Bones[0].HasAppend() && m.Bones[1].HasAppend() {
		t.Error("append loop survived validation")
	}
}

func TestValidate_GroupCycle(t *testing.T) {
	m := &Model{Morphs: []Morph{
		{Name: "a", Type: MorphGroup, Group: []GroupOffset{{Morph: 1, Weight: 1}}},
		{Name: "b", Type: MorphGroup, Group: []GroupOffset{{Morph: 0, Weight: 1}, {Morph: 2, Weight: 0.5}}},
		{Name: "c", Type: MorphPosition},
	}}

	repairs, err := m.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := countKind(repairs, RepairGroupCycle); got != 1 {
		t.Fatalf("expected 1 group-cycle repair, got %d", got)
	}
	if m.Morphs[1].Group[0].Morph != None {
		t.Errorf("expected back edge b->a severed, got %d", m.Morphs[1].Group[0].Morph)
	}
	if m.Morphs[1].Group[1].Morph != 2 {
		t.Errorf("expected b->c kept, got %d", m.Morphs[1].Group[1].Morph)
	}
}

func TestValidate_UnknownSkinning(t *testing.T) {
	m := &Model{Vertices: []Vertex{{Mode: SkinMode(9)}}}
	_, err := m.Validate()
	if !errors.Is(err, ErrUnknownSkinning) {
		t.Errorf("expected ErrUnknownSkinning, got %v", err)
	}
}

func TestValidate_UnsupportedMorph(t *testing.T) {
	m := &Model{Morphs: []Morph{{Name: "flip", Type: MorphFlip}}}
	_, err := m.Validate()
	if !errors.Is(err, ErrUnknownMorphType) {
		t.Errorf("expected ErrUnknownMorphType, got %v", err)
	}
}

func TestValidate_IndexRepairs(t *testing.T) {
	m := &Model{
		Bones:     chain(2),
		Vertices:  []Vertex{{Mode: BDEF2, Bones: [4]int{0, 5, None, None}, Weights: [4]float32{0.5, 0.5, 0, 0}}},
		Materials: []Material{{Name: "m"}},
		Morphs: []Morph{
			{Name: "pos", Type: MorphPosition, Positions: []PositionOffset{{Vertex: 0}, {Vertex: 3}}},
			{Name: "mat", Type: MorphMaterial, Materials: []MaterialOffset{{Material: None}, {Material: 4}}},
		},
		RigidBodies: []RigidBody{{Bone: 9}},
		Joints:      []Joint{{BodyA: 0, BodyB: 2}},
	}
	m.Bones[1].IK = &IK{Target: 0, Links: []IKLink{{Bone: 12}}}

	repairs, err := m.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if m.Vertices[0].Bones[1] != 0 || m.Vertices[0].Weights[1] != 0 {
		t.Errorf("vertex bone not repaired: %v %v", m.Vertices[0].Bones, m.Vertices[0].Weights)
	}
	if len(m.Morphs[0].Positions) != 1 || len(m.Morphs[1].Materials) != 1 {
		t.Errorf("morph offsets not filtered: %d positions, %d materials", len(m.Morphs[0].Positions), len(m.Morphs[1].Materials))
	}
	if m.Bones[1].IK != nil {
		t.Error("expected IK without valid links removed")
	}
	if m.RigidBodies[0].Bone != None {
		t.Errorf("expected body bone dropped, got %d", m.RigidBodies[0].Bone)
	}
	if len(m.Joints) != 0 {
		t.Errorf("expected joint dropped, got %d", len(m.Joints))
	}
	if len(repairs) != 7 {
		t.Errorf("expected 7 repairs, got %d: %v", len(repairs), repairs)
	}
}

func TestValidate_SubMeshRuns(t *testing.T) {
	tests := []struct {
		name  string
		in    SubMesh
		want  SubMesh
		fixes int
	}{
		{"in range", SubMesh{BeginIndex: 3, VertexCount: 3}, SubMesh{BeginIndex: 3, VertexCount: 3}, 0},
		{"clipped", SubMesh{BeginIndex: 3, VertexCount: 6}, SubMesh{BeginIndex: 3, VertexCount: 3}, 1},
		{"begin past end", SubMesh{BeginIndex: 9, VertexCount: 3}, SubMesh{}, 1},
		{"negative count", SubMesh{BeginIndex: 0, VertexCount: -3}, SubMesh{}, 1},
		{"bad material", SubMesh{Material: 2, VertexCount: 6}, SubMesh{VertexCount: 6}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Model{
				Materials: []Material{{Name: "m"}},
				Indices:   []uint32{0, 1, 2, 2, 1, 0},
				SubMeshes: []SubMesh{tt.in},
			}
			repairs, err := m.Validate()
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if got := m.SubMeshes[0]; got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
			if got := countKind(repairs, RepairSubMeshRange); got != tt.fixes {
				t.Errorf("got %d repairs, want %d: %v", got, tt.fixes, repairs)
			}
		})
	}
}

func TestClone(t *testing.T) {
	m := &Model{Bones: chain(2)}
	m.Bones[1].IK = &IK{Target: 0, Links: []IKLink{{Bone: 0}}}

	c, err := m.Clone()
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	c.Bones[0].Name = "changed"
	c.Bones[1].IK.Links[0].Bone = 1
	if m.Bones[0].Name != "a" {
		t.Error("clone shares bone slice with original")
	}
	if m.Bones[1].IK.Links[0].Bone != 0 {
		t.Error("clone shares IK links with original")
	}
}

func TestBounds(t *testing.T) {
	m := &Model{Vertices: []Vertex{
		{Position: mgl32.Vec3{1, -2, 3}},
		{Position: mgl32.Vec3{-1, 4, 0}},
	}}
	lo, hi := m.Bounds()
	if lo != (mgl32.Vec3{-1, -2, 0}) || hi != (mgl32.Vec3{1, 4, 3}) {
		t.Errorf("Bounds: got %v %v", lo, hi)
	}
}

func TestValidate_BodyGroup(t *testing.T) {
	tests := []struct {
		group uint8
		want  uint8
		fixes int
	}{
		{0, 0, 0},
		{MaxBodyGroup, MaxBodyGroup, 0},
		{16, MaxBodyGroup, 1},
		{255, MaxBodyGroup, 1},
	}
	for _, tt := range tests {
		m := &Model{RigidBodies: []RigidBody{{Bone: None, Group: tt.group}}}
		repairs, err := m.Validate()
		if err != nil {
			t.Fatalf("Validate: %v", err)
		}
		if got := m.RigidBodies[0].Group; got != tt.want {
			t.Errorf("group %d: got %d, want %d", tt.group, got, tt.want)
		}
		if got := countKind(repairs, RepairBodyGroup); got != tt.fixes {
			t.Errorf("group %d: got %d repairs, want %d", tt.group, got, tt.fixes)
		}
	}
}

func TestValidate_UnusedVertexSlots(t *testing.T) {
	m := &Model{
		Bones: chain(2),
		Vertices: []Vertex{
			{Mode: BDEF4, Bones: [4]int{0, 1, None, None}, Weights: [4]float32{0.5, 0.5, 0, 0}},
			{Mode: SDEF, Bones: [4]int{1, None, None, None}, Weights: [4]float32{1, 0, 0, 0}},
		},
	}
	repairs, err := m.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(repairs) != 0 {
		t.Errorf("expected no repairs, got %v", repairs)
	}
	for i, v := range m.Vertices {
		for k, b := range v.Bones {
			if !m.validBone(b) {
				t.Errorf("vertex %d slot %d: bone %d left out of range", i, k, b)
			}
		}
	}
}
