package physics

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/mmdanim/internal/engine/node"
	mmath "github.com/Faultbox/mmdanim/pkg/math"
	"github.com/Faultbox/mmdanim/pkg/rig"
)

// RigidBody binds one simulator body to a node.
type RigidBody struct {
	Name  string
	Mode  rig.PhysicsMode
	Node  int // node.None for bodies anchored to the root
	Group uint16
	Mask  uint16

	body      Body
	kinematic *kinematicState
	active    activeState // nil for kinematic-mode bodies
	activated bool
}

// Body returns the simulator body.
func (rb *RigidBody) Body() Body { return rb.body }

// Activated reports whether the body is currently simulated.
func (rb *RigidBody) Activated() bool { return rb.activated }

// restTransform is the body's rest world matrix: T(pos) * Rz*Ry*Rx.
func restTransform(pos, rot mgl32.Vec3) mgl32.Mat4 {
	return mgl32.Translate3D(pos[0], pos[1], pos[2]).Mul4(mmath.QuatFromEulerZYX(rot).Mat4())
}

func shapeOf(s rig.ShapeType) Shape {
	switch s {
	case rig.ShapeBox:
		return ShapeBox
	case rig.ShapeCapsule:
		return ShapeCapsule
	default:
		return ShapeSphere
	}
}

// newRigidBody picks the motion states for desc. Unbound bodies follow
// node 0 while kinematic and never write back.
func newRigidBody(g *node.Graph, desc *rig.RigidBody) *RigidBody {
	rb := &RigidBody{
		Name:  desc.Name,
		Mode:  desc.Mode,
		Node:  desc.Bone,
		Group: 1 << desc.Group,
		Mask:  desc.Mask,
	}

	anchor := desc.Bone
	if anchor == rig.None && g.Len() > 0 {
		anchor = 0
	}

	rest := restTransform(desc.Position, desc.Rotation)
	offset := rest
	if anchor != node.None {
		offset = g.Node(anchor).Global.Inv().Mul4(rest)
	}
	rb.kinematic = &kinematicState{graph: g, node: anchor, offset: offset}

	switch {
	case desc.Mode == rig.PhysicsKinematic:
	case desc.Bone == rig.None:
		rb.active = newDefaultState(rest)
	case desc.Mode == rig.PhysicsDynamicFollowBone:
		rb.active = newBoneMergeState(g, desc.Bone, offset)
	default:
		rb.active = newDynamicState(g, desc.Bone, offset)
	}
	return rb
}

func (rb *RigidBody) bodyDesc(desc *rig.RigidBody) BodyDesc {
	bd := BodyDesc{
		Name:           desc.Name,
		Shape:          shapeOf(desc.Shape),
		Size:           desc.Size,
		LinearDamping:  desc.LinearDamping,
		AngularDamping: desc.AngularDamping,
		Restitution:    desc.Restitution,
		Friction:       desc.Friction,
		Kinematic:      true,
	}
	if desc.Mode != rig.PhysicsKinematic {
		bd.Mass = desc.Mass
	}
	return bd
}

// setActivation switches between the kinematic and active states. The
// active state takes over from the body's current pose.
func (rb *RigidBody) setActivation(on bool) {
	if rb.active == nil {
		on = false
	}
	if on == rb.activated {
		return
	}
	rb.activated = on
	if on {
		rb.active.SetWorldTransform(rb.body.Transform())
		rb.body.SetKinematic(false)
		rb.body.SetMotionState(rb.active)
		return
	}
	rb.body.SetKinematic(true)
	rb.body.SetMotionState(rb.kinematic)
}

func (rb *RigidBody) reset() {
	if rb.active != nil {
		rb.active.reset()
	}
}

// reflect writes the simulated pose to the node's global matrix and
// reports whether it did.
func (rb *RigidBody) reflect(g *node.Graph) bool {
	if rb.active == nil || rb.Node == node.None {
		return false
	}
	var m mgl32.Mat4
	var ok bool
	if rb.activated {
		m, ok = rb.active.nodeGlobal()
	} else {
		m, ok = rb.body.Transform().Mul4(rb.kinematic.offset.Inv()), true
	}
	if ok {
		g.SetGlobal(rb.Node, m)
	}
	return ok
}
