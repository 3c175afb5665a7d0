// Package rig describes a skinned, rigged MMD model in memory: mesh,
// materials, bones, IK, morphs and rigid bodies. It is the hand-off point
// between a file parser and the animation engine.
//
// Indices between elements are plain ints; None (-1) means "no element".
package rig

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/tiendc/go-deepcopy"
)

// None marks an absent bone, morph, material or body reference.
const None = -1

// SkinMode selects how a vertex is deformed by its bones.
type SkinMode int

const (
	BDEF1 SkinMode = iota
	BDEF2
	BDEF4
	SDEF
	QDEF
)

func (m SkinMode) String() string {
	switch m {
	case BDEF1:
		return "BDEF1"
	case BDEF2:
		return "BDEF2"
	case BDEF4:
		return "BDEF4"
	case SDEF:
		return "SDEF"
	case QDEF:
		return "QDEF"
	default:
		return "unknown"
	}
}

// Vertex is a rest-pose vertex with its skinning weights.
// BDEF2 and SDEF read only Weights[0]; the second weight is 1 - Weights[0].
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
	Mode     SkinMode
	Bones    [4]int
	Weights  [4]float32

	// SDEF parameters, model space
	SDEFC  mgl32.Vec3
	SDEFR0 mgl32.Vec3
	SDEFR1 mgl32.Vec3
}

// SphereMode selects how a sphere texture combines with the base texture.
type SphereMode int

const (
	SphereNone SphereMode = iota
	SphereMul
	SphereAdd
	SphereSub
)

// Material is the morph-affected part of a material.
type Material struct {
	Name          string
	Diffuse       mgl32.Vec3
	Alpha         float32
	Specular      mgl32.Vec3
	SpecularPower float32
	Ambient       mgl32.Vec3
	EdgeColor     mgl32.Vec4
	EdgeSize      float32

	Texture       string
	SphereTexture string
	SphereMode    SphereMode
	ToonTexture   string
	BothFace      bool
}

// SubMesh is a run of indices drawn with one material.
type SubMesh struct {
	BeginIndex  int
	VertexCount int
	Material    int
}

// Bone is a node of the skeleton. Position is the bind-pose position in
// model space.
type Bone struct {
	Name         string
	Position     mgl32.Vec3
	Parent       int
	DeformDepth  int
	AfterPhysics bool

	AppendRotate    bool
	AppendTranslate bool
	AppendLocal     bool
	AppendParent    int
	AppendWeight    float32

	IK *IK
}

// HasAppend reports whether the bone inherits motion from another bone.
func (b *Bone) HasAppend() bool {
	return (b.AppendRotate || b.AppendTranslate) && b.AppendParent != None
}

// IK is the IK setup owned by a handle bone. Target is the chain end that
// is pulled toward the handle; Links run from the target's parent toward
// the chain root.
type IK struct {
	Target     int
	Iterations int
	LimitAngle float32 // radians per iteration
	Links      []IKLink
}

// IKLink is one joint of an IK chain with optional Euler limits (radians).
// Knee links bend about X only, within [0.5, 180] degrees.
type IKLink struct {
	Bone  int
	Limit bool
	Knee  bool
	Min   mgl32.Vec3
	Max   mgl32.Vec3
}

// MorphType tags the payload a morph carries.
type MorphType int

const (
	MorphPosition MorphType = iota
	MorphUV
	MorphMaterial
	MorphBone
	MorphGroup
	MorphFlip
	MorphImpulse
)

func (t MorphType) String() string {
	switch t {
	case MorphPosition:
		return "position"
	case MorphUV:
		return "uv"
	case MorphMaterial:
		return "material"
	case MorphBone:
		return "bone"
	case MorphGroup:
		return "group"
	case MorphFlip:
		return "flip"
	case MorphImpulse:
		return "impulse"
	default:
		return "unknown"
	}
}

// Morph is a named blend target. Only the payload matching Type is read.
type Morph struct {
	Name      string
	Type      MorphType
	Positions []PositionOffset
	UVs       []UVOffset
	Materials []MaterialOffset
	Bones     []BoneOffset
	Group     []GroupOffset
}

type PositionOffset struct {
	Vertex int
	Offset mgl32.Vec3
}

type UVOffset struct {
	Vertex int
	Offset mgl32.Vec4
}

// MaterialOp is how a material offset combines with the accumulated value.
type MaterialOp int

const (
	MaterialMul MaterialOp = iota
	MaterialAdd
)

// MaterialOffset changes one material, or all of them when Material is None.
type MaterialOffset struct {
	Material            int
	Op                  MaterialOp
	Diffuse             mgl32.Vec3
	Alpha               float32
	Specular            mgl32.Vec3
	SpecularPower       float32
	Ambient             mgl32.Vec3
	EdgeColor           mgl32.Vec4
	EdgeSize            float32
	TextureFactor       mgl32.Vec4
	SphereTextureFactor mgl32.Vec4
	ToonTextureFactor   mgl32.Vec4
}

type BoneOffset struct {
	Bone      int
	Translate mgl32.Vec3
	Rotate    mgl32.Quat
}

type GroupOffset struct {
	Morph  int
	Weight float32
}

// ShapeType is the collision shape of a rigid body.
type ShapeType int

const (
	ShapeSphere ShapeType = iota
	ShapeBox
	ShapeCapsule
)

// PhysicsMode says who drives a rigid body.
type PhysicsMode int

const (
	// PhysicsKinematic bodies follow their bone.
	PhysicsKinematic PhysicsMode = iota
	// PhysicsDynamic bodies are simulated and drive their bone.
	PhysicsDynamic
	// PhysicsDynamicFollowBone bodies drive the bone's rotation only.
	PhysicsDynamicFollowBone
)

// MaxBodyGroup is the highest collision group; Mask holds one bit per group.
const MaxBodyGroup = 15

// RigidBody is a collision body optionally bound to a bone. Position and
// Rotation (Euler XYZ, radians) are in model space.
type RigidBody struct {
	Name           string
	Bone           int
	Group          uint8
	Mask           uint16
	Shape          ShapeType
	Size           mgl32.Vec3
	Position       mgl32.Vec3
	Rotation       mgl32.Vec3
	Mass           float32
	LinearDamping  float32
	AngularDamping float32
	Restitution    float32
	Friction       float32
	Mode           PhysicsMode
}

// Joint is a 6-DOF spring constraint between two rigid bodies.
type Joint struct {
	Name          string
	BodyA         int
	BodyB         int
	Position      mgl32.Vec3
	Rotation      mgl32.Vec3
	LinearMin     mgl32.Vec3
	LinearMax     mgl32.Vec3
	AngularMin    mgl32.Vec3
	AngularMax    mgl32.Vec3
	SpringLinear  mgl32.Vec3
	SpringAngular mgl32.Vec3
}

// Model is a complete rig description.
type Model struct {
	Name        string
	Vertices    []Vertex
	Indices     []uint32
	IndexSize   int // bytes per index in the source file: 1, 2 or 4
	Materials   []Material
	SubMeshes   []SubMesh
	Bones       []Bone
	Morphs      []Morph
	RigidBodies []RigidBody
	Joints      []Joint
}

// Clone returns a deep copy of the model.
func (m *Model) Clone() (*Model, error) {
	var out Model
	if err := deepcopy.Copy(&out, m); err != nil {
		return nil, err
	}
	return &out, nil
}

// Bounds returns the axis-aligned bounding box of the rest mesh.
func (m *Model) Bounds() (lo, hi mgl32.Vec3) {
	if len(m.Vertices) == 0 {
		return
	}
	lo = m.Vertices[0].Position
	hi = lo
	for i := 1; i < len(m.Vertices); i++ {
		p := m.Vertices[i].Position
		for k := 0; k < 3; k++ {
			lo[k] = min(lo[k], p[k])
			hi[k] = max(hi[k], p[k])
		}
	}
	return
}

// FindBone returns the index of the named bone or None.
func (m *Model) FindBone(name string) int {
	for i := range m.Bones {
		if m.Bones[i].Name == name {
			return i
		}
	}
	return None
}
