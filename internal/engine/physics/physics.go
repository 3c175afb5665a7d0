// Package physics keeps rigid bodies in step with the bone hierarchy.
//
// The simulator itself sits behind the Simulator interface. Each rig rigid
// body owns two motion states, one that drives the body from its bone
// (kinematic) and one that writes the simulated pose back to the bone
// (active). The Bridge switches between them on reset and update.
package physics

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrBodyCreate is returned when the simulator rejects a rigid body.
	ErrBodyCreate = errors.New("physics: rigid body creation failed")
	// ErrJointCreate is returned when the simulator rejects a joint.
	ErrJointCreate = errors.New("physics: joint creation failed")
)

// MotionState is the callback a simulator uses to read and write a body's
// world transform.
type MotionState interface {
	// WorldTransform is read when a body is attached and before every
	// substep while the body is kinematic.
	WorldTransform() mgl32.Mat4
	// SetWorldTransform is called after each substep for simulated bodies.
	SetWorldTransform(m mgl32.Mat4)
}

// Shape selects a collision shape.
type Shape int

const (
	ShapeSphere Shape = iota
	ShapeBox
	ShapeCapsule
	// ShapePlane is an infinite static plane through the body origin with
	// its normal along the body's local +Y.
	ShapePlane
)

// BodyDesc describes a body for Simulator.NewBody. Size holds the radius
// in X for spheres, half extents for boxes and radius and height in X, Y
// for capsules.
type BodyDesc struct {
	Name           string
	Shape          Shape
	Size           mgl32.Vec3
	Mass           float32
	LinearDamping  float32
	AngularDamping float32
	Restitution    float32
	Friction       float32
	Kinematic      bool
}

// JointDesc describes a 6-DOF spring joint. Frame is the joint's world
// transform at creation time; limits are expressed in that frame.
type JointDesc struct {
	Name          string
	Frame         mgl32.Mat4
	LinearMin     mgl32.Vec3
	LinearMax     mgl32.Vec3
	AngularMin    mgl32.Vec3
	AngularMax    mgl32.Vec3
	SpringLinear  mgl32.Vec3
	SpringAngular mgl32.Vec3
}

// Body is a simulator-owned rigid body.
type Body interface {
	// SetMotionState swaps the callback and syncs the body to its pose.
	SetMotionState(s MotionState)
	// SetKinematic toggles whether the body follows its motion state.
	SetKinematic(on bool)
	Kinematic() bool
	// Transform is the body's current world transform.
	Transform() mgl32.Mat4
}

// Joint is a simulator-owned constraint between two bodies.
type Joint interface{}

// Proxy is what the collision filter sees of a body.
type Proxy struct {
	Body  Body
	Group uint16
	Mask  uint16
}

// Filter decides whether two bodies may collide.
type Filter func(a, b Proxy) bool

// Simulator is a rigid body world.
type Simulator interface {
	NewBody(desc BodyDesc, state MotionState) (Body, error)
	NewJoint(desc JointDesc, a, b Body) (Joint, error)

	AddRigidBody(b Body, group, mask uint16)
	RemoveRigidBody(b Body)
	AddJoint(j Joint)
	RemoveJoint(j Joint)

	SetGravity(g mgl32.Vec3)
	SetFilter(f Filter)

	// Step advances the world by dt in fixedStep increments, running at
	// most maxSubSteps of them and carrying the remainder over.
	Step(dt float32, maxSubSteps int, fixedStep float32)

	// ClearContacts drops cached contact pairs involving b.
	ClearContacts(b Body)
	// ResetVelocity zeroes b's linear and angular velocity.
	ResetVelocity(b Body)

	Close() error
}
