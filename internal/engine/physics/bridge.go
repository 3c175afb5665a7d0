package physics

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/mmdanim/internal/engine/node"
	"github.com/Faultbox/mmdanim/pkg/rig"
)

// Bridge owns a model's rigid bodies and joints. A Bridge built without a
// World has no bodies and every method is a no-op.
type Bridge struct {
	world  *World
	graph  *node.Graph
	bodies []*RigidBody
	joints []Joint
	log    *zap.Logger

	written []int
}

// NewBridge creates and registers the bodies and joints of m. The graph
// must hold the rest pose. A body or joint the simulator rejects fails
// the whole build; anything already registered is removed again.
func NewBridge(w *World, g *node.Graph, m *rig.Model, log *zap.Logger) (*Bridge, error) {
	if log == nil {
		log = zap.NewNop()
	}
	b := &Bridge{world: w, graph: g, log: log}
	if w == nil {
		log.Debug("no physics world, rigid bodies ignored", zap.Int("bodies", len(m.RigidBodies)))
		return b, nil
	}
	sim := w.sim

	for i := range m.RigidBodies {
		desc := &m.RigidBodies[i]
		rb := newRigidBody(g, desc)
		body, err := sim.NewBody(rb.bodyDesc(desc), rb.kinematic)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("rigid body %d %q: %w: %v", i, desc.Name, ErrBodyCreate, err)
		}
		rb.body = body
		sim.AddRigidBody(body, rb.Group, rb.Mask)
		b.bodies = append(b.bodies, rb)
	}

	for i := range m.Joints {
		desc := &m.Joints[i]
		a, c := b.bodies[desc.BodyA], b.bodies[desc.BodyB]
		j, err := sim.NewJoint(JointDesc{
			Name:          desc.Name,
			Frame:         restTransform(desc.Position, desc.Rotation),
			LinearMin:     desc.LinearMin,
			LinearMax:     desc.LinearMax,
			AngularMin:    desc.AngularMin,
			AngularMax:    desc.AngularMax,
			SpringLinear:  desc.SpringLinear,
			SpringAngular: desc.SpringAngular,
		}, a.body, c.body)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("joint %d %q: %w: %v", i, desc.Name, ErrJointCreate, err)
		}
		sim.AddJoint(j)
		b.joints = append(b.joints, j)
	}

	log.Debug("physics bound",
		zap.Int("bodies", len(b.bodies)),
		zap.Int("joints", len(b.joints)))
	return b, nil
}

// Enabled reports whether the bridge has a world.
func (b *Bridge) Enabled() bool { return b.world != nil }

// Bodies returns the bound rigid bodies in rig order.
func (b *Bridge) Bodies() []*RigidBody { return b.bodies }

// ResetPose snaps every body to its node's current pose, runs one settle
// step, reads the result back and discards contacts and velocities.
func (b *Bridge) ResetPose() {
	if b.world == nil {
		return
	}
	for _, rb := range b.bodies {
		rb.setActivation(false)
	}
	for _, rb := range b.bodies {
		rb.reset()
	}

	b.world.step(b.world.cfg.SettleStep)
	b.reflect()

	sim := b.world.sim
	for _, rb := range b.bodies {
		sim.ClearContacts(rb.body)
		sim.ResetVelocity(rb.body)
	}
}

// Update activates dynamic bodies, advances the simulation by elapsed
// seconds and writes the result into the graph.
func (b *Bridge) Update(elapsed float32) {
	if b.world == nil {
		return
	}
	for _, rb := range b.bodies {
		rb.setActivation(true)
	}
	b.world.step(elapsed)
	b.reflect()
}

// reflect copies body poses into node globals, rebuilds those nodes'
// locals against their parents and propagates root-down.
func (b *Bridge) reflect() {
	b.written = b.written[:0]
	for _, rb := range b.bodies {
		if rb.reflect(b.graph) {
			b.written = append(b.written, rb.Node)
		}
	}
	for _, i := range b.written {
		b.graph.SetLocal(i, b.graph.ParentGlobal(i).Inv().Mul4(b.graph.Node(i).Global))
	}
	b.graph.UpdateRoots()
}

// Close removes joints then bodies from the simulator.
func (b *Bridge) Close() {
	if b.world == nil {
		return
	}
	sim := b.world.sim
	for _, j := range b.joints {
		sim.RemoveJoint(j)
	}
	for _, rb := range b.bodies {
		sim.RemoveRigidBody(rb.body)
	}
	b.joints = nil
	b.bodies = nil
}
