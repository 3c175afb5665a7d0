package xpbd

import (
	"math"

	"github.com/akmonengine/feather/actor"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/mmdanim/internal/engine/physics"
)

// body wraps a feather rigid body. Feather has no kinematic type, so a
// kinematic body is a static one that is moved along its motion state
// every substep. Switching swaps the material, which carries the mass.
type body struct {
	id    uint32
	desc  physics.BodyDesc
	state physics.MotionState
	rb    *actor.RigidBody
	plane *actor.Plane

	kinematic bool
	// immovable bodies have no mass and stay static when released.
	immovable bool
	dynamic   actor.Material
	fixed     actor.Material

	// Kinematic path for the current Step.
	from, to actor.Transform

	group, mask uint16
	added       bool
}

func newBody(id uint32, desc physics.BodyDesc, state physics.MotionState, shape actor.ShapeInterface) *body {
	b := &body{id: id, desc: desc, state: state}
	t := transformOf(state.WorldTransform())

	mass := float64(desc.Mass)
	b.plane, _ = shape.(*actor.Plane)
	b.immovable = mass <= 0 || b.plane != nil
	if b.plane != nil {
		b.rb = actor.NewRigidBody(t, shape, actor.BodyTypeStatic, 0)
	} else {
		if b.immovable {
			mass = 1
		}
		b.rb = actor.NewRigidBody(t, shape, actor.BodyTypeDynamic, mass/shape.ComputeMass(1))
	}
	b.rb.Id = b

	b.dynamic = b.rb.Material
	b.fixed = actor.NewRigidBody(t, shape, actor.BodyTypeStatic, 0).Material
	for _, m := range []*actor.Material{&b.dynamic, &b.fixed} {
		m.Restitution = float64(desc.Restitution)
		m.StaticFriction = float64(desc.Friction)
		m.DynamicFriction = float64(desc.Friction)
		m.LinearDamping = damping(desc.LinearDamping)
		m.AngularDamping = damping(desc.AngularDamping)
	}

	b.setPose(state.WorldTransform())
	b.SetKinematic(desc.Kinematic)
	return b
}

// damping converts a per-second velocity loss fraction to feather's
// exponential decay rate.
func damping(d float32) float64 {
	if d <= 0 {
		return 0
	}
	return -math.Log(1 - math.Min(float64(d), 0.999))
}

func (b *body) setPose(m mgl32.Mat4) {
	t := transformOf(m)
	b.rb.Transform = t
	b.rb.PreviousTransform = t
	b.from, b.to = t, t
	b.reshape()
}

// reshape refreshes the broad phase bounds after the body was moved
// outside feather's integrator.
func (b *body) reshape() {
	if b.plane != nil {
		placePlane(b.plane, b.rb.Transform)
		return
	}
	b.rb.Shape.ComputeAABB(b.rb.Transform)
}

// follow moves a kinematic body to frac along its path for this Step and
// derives the velocity the move implies, so contacts see it.
func (b *body) follow(frac float32, h float64) {
	cur := b.rb.Transform
	pos := b.from.Position.Add(b.to.Position.Sub(b.from.Position).Mul(float64(frac)))
	rot := mgl64.QuatSlerp(b.from.Rotation, b.to.Rotation, float64(frac)).Normalize()

	b.rb.PreviousTransform = cur
	b.rb.Velocity = pos.Sub(cur.Position).Mul(1 / h)
	b.rb.AngularVelocity = rotationVector(rot.Mul(cur.Rotation.Conjugate())).Mul(1 / h)
	b.rb.PresolveVelocity = b.rb.Velocity
	b.rb.PresolveAngularVelocity = b.rb.AngularVelocity
	b.rb.Transform = actor.Transform{Position: pos, Rotation: rot, InverseRotation: rot.Inverse()}
	b.reshape()
}

// moves reports whether the solver may displace the body.
func (b *body) moves() bool {
	return b.rb.BodyType == actor.BodyTypeDynamic
}

func (b *body) invMass() float64 {
	if !b.moves() {
		return 0
	}
	return 1 / b.rb.Material.GetMass()
}

func (b *body) invInertia() mgl64.Mat3 {
	if !b.moves() {
		return mgl64.Mat3{}
	}
	return b.rb.GetInverseInertiaWorld()
}

// worldPoint maps a body-local point to world space.
func (b *body) worldPoint(p mgl64.Vec3) mgl64.Vec3 {
	return b.rb.Transform.Position.Add(b.rb.Transform.Rotation.Rotate(p))
}

// rotateBy applies a small world-space rotation vector.
func (b *body) rotateBy(w mgl64.Vec3) {
	t := &b.rb.Transform
	dq := mgl64.Quat{W: 0, V: w.Mul(0.5)}.Mul(t.Rotation)
	t.Rotation = t.Rotation.Add(dq).Normalize()
	t.InverseRotation = t.Rotation.Inverse()
}

func (b *body) SetMotionState(s physics.MotionState) {
	b.state = s
	b.setPose(s.WorldTransform())
}

func (b *body) SetKinematic(on bool) {
	b.kinematic = on
	if on || b.immovable {
		b.rb.BodyType = actor.BodyTypeStatic
		b.rb.Material = b.fixed
	} else {
		b.rb.BodyType = actor.BodyTypeDynamic
		b.rb.Material = b.dynamic
	}
	if on {
		b.rb.Velocity, b.rb.AngularVelocity = mgl64.Vec3{}, mgl64.Vec3{}
	}
	b.rb.WakeUp()
}

func (b *body) Kinematic() bool { return b.kinematic }

func (b *body) Transform() mgl32.Mat4 { return matrixOf(b.rb.Transform) }

func (b *body) proxy() physics.Proxy {
	return physics.Proxy{Body: b, Group: b.group, Mask: b.mask}
}
