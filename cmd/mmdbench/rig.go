package main

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	mmath "github.com/Faultbox/mmdanim/pkg/math"
	"github.com/Faultbox/mmdanim/pkg/rig"
)

// Bone names used by the procedural rig and motion.
const (
	boneCenter = "センター"
	boneUpper  = "上半身"
	boneLegL   = "左足"
	boneKneeL  = "左ひざ"
	boneAnkleL = "左足首"
	boneLegIKL = "左足ＩＫ"
	boneTwist  = "上半身2"
	hairPrefix = "髪"
)

// builder accumulates a rig.Model.
type builder struct {
	m *rig.Model
}

func (b *builder) bone(name string, pos mgl32.Vec3, parent int) int {
	b.m.Bones = append(b.m.Bones, rig.Bone{Name: name, Position: pos, Parent: parent, AppendParent: rig.None})
	return len(b.m.Bones) - 1
}

// tube adds a ring-segmented cylinder around the segment from bone a to
// bone b, skinned with mode along its length.
func (b *builder) tube(a, c int, radius float32, rings, sides int, mode rig.SkinMode, material int) {
	pa, pc := b.m.Bones[a].Position, b.m.Bones[c].Position
	axis := pc.Sub(pa)
	side := mmath.Normalize(axis.Cross(mmath.AxisZ))
	if side.Len() == 0 {
		side = mmath.AxisX
	}

	base := len(b.m.Vertices)
	for r := 0; r <= rings; r++ {
		f := float32(r) / float32(rings)
		center := pa.Add(axis.Mul(f))
		for s := 0; s < sides; s++ {
			angle := float32(s) / float32(sides) * 2 * math.Pi
			n := mgl32.QuatRotate(angle, mmath.Normalize(axis)).Rotate(side)
			v := rig.Vertex{
				Position: center.Add(n.Mul(radius)),
				Normal:   n,
				UV:       mgl32.Vec2{float32(s) / float32(sides), f},
				Mode:     mode,
				Bones:    [4]int{a, c, rig.None, rig.None},
				Weights:  [4]float32{1 - f, f},
			}
			switch mode {
			case rig.BDEF1:
				v.Bones = [4]int{a, rig.None, rig.None, rig.None}
				v.Weights = [4]float32{1}
			case rig.SDEF:
				v.SDEFC = center
				v.SDEFR0 = pa
				v.SDEFR1 = pc
			case rig.BDEF4, rig.QDEF:
				v.Bones = [4]int{a, c, a, c}
				v.Weights = [4]float32{(1 - f) / 2, f / 2, (1 - f) / 2, f / 2}
			}
			b.m.Vertices = append(b.m.Vertices, v)
		}
	}

	begin := len(b.m.Indices)
	for r := 0; r < rings; r++ {
		for s := 0; s < sides; s++ {
			i0 := uint32(base + r*sides + s)
			i1 := uint32(base + r*sides + (s+1)%sides)
			i2 := i0 + uint32(sides)
			i3 := i1 + uint32(sides)
			b.m.Indices = append(b.m.Indices, i0, i2, i1, i1, i2, i3)
		}
	}
	b.m.SubMeshes = append(b.m.SubMeshes, rig.SubMesh{BeginIndex: begin, VertexCount: len(b.m.Indices) - begin, Material: material})
}

// proceduralRig builds a small humanoid: a spine with an appended twist
// bone, one leg with a knee IK chain, and a dynamic hair strand of n
// segments hanging from the head. Every skinning mode is used.
func proceduralRig(hair int, detail int) *rig.Model {
	b := &builder{m: &rig.Model{Name: "procedural", IndexSize: 4}}
	b.m.Materials = []rig.Material{
		{Name: "body", Diffuse: mgl32.Vec3{0.9, 0.8, 0.7}, Alpha: 1, Specular: mgl32.Vec3{0.1, 0.1, 0.1}, SpecularPower: 5, Ambient: mgl32.Vec3{0.5, 0.4, 0.4}, EdgeColor: mgl32.Vec4{0, 0, 0, 1}, EdgeSize: 1},
		{Name: "hair", Diffuse: mgl32.Vec3{0.2, 0.2, 0.3}, Alpha: 1, SpecularPower: 20, EdgeColor: mgl32.Vec4{0, 0, 0, 1}, EdgeSize: 1},
	}

	center := b.bone(boneCenter, mgl32.Vec3{0, 8, 0}, rig.None)
	upper := b.bone(boneUpper, mgl32.Vec3{0, 10, 0}, center)
	head := b.bone("頭", mgl32.Vec3{0, 15, 0}, upper)
	twist := b.bone(boneTwist, mgl32.Vec3{0, 12, 0}, upper)
	b.m.Bones[twist].AppendParent = upper
	b.m.Bones[twist].AppendRotate = true
	b.m.Bones[twist].AppendWeight = 0.5
	b.m.Bones[twist].DeformDepth = 1

	leg := b.bone(boneLegL, mgl32.Vec3{1, 8, 0}, center)
	knee := b.bone(boneKneeL, mgl32.Vec3{1, 4, 0.2}, leg)
	ankle := b.bone(boneAnkleL, mgl32.Vec3{1, 0.5, 0}, knee)
	legIK := b.bone(boneLegIKL, mgl32.Vec3{1, 0.5, 0}, rig.None)
	b.m.Bones[legIK].IK = &rig.IK{
		Target:     ankle,
		Iterations: 40,
		LimitAngle: mgl32.DegToRad(114.5916),
		Links:      []rig.IKLink{{Bone: knee, Knee: true}, {Bone: leg}},
	}

	b.tube(center, upper, 1.2, 2*detail, 8*detail, rig.BDEF2, 0)
	b.tube(upper, head, 1.0, 2*detail, 8*detail, rig.SDEF, 0)
	b.tube(leg, knee, 0.6, 2*detail, 6*detail, rig.QDEF, 0)
	b.tube(knee, ankle, 0.5, 2*detail, 6*detail, rig.BDEF4, 0)

	prev := head
	for i := 0; i < hair; i++ {
		y := float32(15 - 1.5*float32(i+1))
		h := b.bone(fmt.Sprintf("%s%d", hairPrefix, i+1), mgl32.Vec3{0, y, -1.2}, prev)
		b.m.Bones[h].AfterPhysics = i == hair-1
		b.tube(prev, h, 0.3, detail, 4*detail, rig.BDEF1, 1)

		b.m.RigidBodies = append(b.m.RigidBodies, rig.RigidBody{
			Name: b.m.Bones[h].Name, Bone: h, Group: 2, Mask: 0xFFFF &^ (1 << 0),
			Shape: rig.ShapeCapsule, Size: mgl32.Vec3{0.3, 1.0, 0},
			Position: mgl32.Vec3{0, y + 0.75, -1.2}, Mass: 0.5,
			LinearDamping: 0.5, AngularDamping: 0.5, Friction: 0.5,
			Mode: rig.PhysicsDynamic,
		})
		prev = h
	}
	b.m.RigidBodies = append(b.m.RigidBodies, rig.RigidBody{
		Name: "頭", Bone: head, Group: 0, Mask: 0xFFFF,
		Shape: rig.ShapeSphere, Size: mgl32.Vec3{1.5, 0, 0},
		Position: mgl32.Vec3{0, 15.5, 0}, Mode: rig.PhysicsKinematic,
	})
	anchor := len(b.m.RigidBodies) - 1
	for i := 0; i < hair; i++ {
		a := anchor
		if i > 0 {
			a = i - 1
		}
		rb := b.m.RigidBodies[i]
		b.m.Joints = append(b.m.Joints, rig.Joint{
			Name: rb.Name, BodyA: a, BodyB: i,
			Position:   rb.Position.Add(mgl32.Vec3{0, 0.75, 0}),
			AngularMin: mgl32.Vec3{-0.5, 0, -0.5},
			AngularMax: mgl32.Vec3{0.5, 0, 0.5},
		})
	}

	b.m.Morphs = []rig.Morph{
		{Name: "膨らみ", Type: rig.MorphPosition, Positions: bulge(b.m, 0.1)},
		{Name: "暗い", Type: rig.MorphMaterial, Materials: []rig.MaterialOffset{{
			Material: rig.None, Op: rig.MaterialMul,
			Diffuse: mgl32.Vec3{0.5, 0.5, 0.5}, Alpha: 1, Specular: mgl32.Vec3{1, 1, 1},
			SpecularPower: 1, Ambient: mgl32.Vec3{0.5, 0.5, 0.5}, EdgeColor: mgl32.Vec4{1, 1, 1, 1}, EdgeSize: 1,
			TextureFactor: mgl32.Vec4{1, 1, 1, 1}, SphereTextureFactor: mgl32.Vec4{1, 1, 1, 1}, ToonTextureFactor: mgl32.Vec4{1, 1, 1, 1},
		}}},
		{Name: "うなずき", Type: rig.MorphBone, Bones: []rig.BoneOffset{{Bone: head, Rotate: mgl32.QuatRotate(0.3, mmath.AxisX)}}},
		{Name: "全部", Type: rig.MorphGroup, Group: []rig.GroupOffset{{Morph: 0, Weight: 0.5}, {Morph: 2, Weight: 1}}},
	}
	return b.m
}

// bulge pushes every vertex out along its normal.
func bulge(m *rig.Model, amount float32) []rig.PositionOffset {
	out := make([]rig.PositionOffset, len(m.Vertices))
	for i := range m.Vertices {
		out[i] = rig.PositionOffset{Vertex: i, Offset: m.Vertices[i].Normal.Mul(amount)}
	}
	return out
}
