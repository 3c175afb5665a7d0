// Package xpbd satisfies physics.Simulator on top of the feather rigid
// body engine.
//
// Feather supplies the bodies, shapes, broad and narrow phase and the
// contact solver. This package drives its substep pipeline itself so it
// can filter collision pairs, move kinematic bodies along their motion
// states and solve 6-DOF spring joints, none of which feather has.
package xpbd

import (
	"errors"
	"fmt"

	"github.com/akmonengine/feather"
	"github.com/akmonengine/feather/actor"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/mmdanim/internal/engine/physics"
)

const (
	// DefaultIterations is the number of joint passes per substep.
	DefaultIterations = 8

	// Broad phase grid: cells about the size of a hair segment.
	gridCellSize = 2.0
	gridCells    = 4096

	epsilon = 1e-9
)

var (
	errForeignBody = errors.New("xpbd: body belongs to another simulator")
	errClosed      = errors.New("xpbd: world closed")
)

type pairKey struct{ lo, hi uint32 }

func keyOf(a, b *body) pairKey {
	if a.id > b.id {
		a, b = b, a
	}
	return pairKey{a.id, b.id}
}

// World implements physics.Simulator.
type World struct {
	Iterations int

	sim    *feather.World
	bodies []*body
	joints []*joint
	linked map[pairKey]int
	nextID uint32
	filter physics.Filter

	localTime float32
	closed    bool
}

// New returns an empty world with no gravity.
func New() *World {
	return &World{
		Iterations: DefaultIterations,
		sim: &feather.World{
			Substeps:    1,
			Workers:     feather.DEFAULT_WORKERS,
			SpatialGrid: feather.NewSpatialGrid(gridCellSize, gridCells),
			Events:      feather.NewEvents(),
		},
		linked: make(map[pairKey]int),
	}
}

func (w *World) own(b physics.Body) (*body, bool) {
	bb, ok := b.(*body)
	return bb, ok
}

// NewBody creates a body. It is not simulated until AddRigidBody.
func (w *World) NewBody(desc physics.BodyDesc, state physics.MotionState) (physics.Body, error) {
	if w.closed {
		return nil, errClosed
	}
	if state == nil {
		return nil, fmt.Errorf("xpbd: body %q has no motion state", desc.Name)
	}
	if desc.Mass < 0 || isNaN(desc.Mass) {
		return nil, fmt.Errorf("xpbd: body %q has invalid mass %v", desc.Name, desc.Mass)
	}
	if !validSize(desc.Size) {
		return nil, fmt.Errorf("xpbd: body %q has invalid size %v", desc.Name, desc.Size)
	}
	shape, err := newShape(desc)
	if err != nil {
		return nil, err
	}
	w.nextID++
	return newBody(w.nextID, desc, state, shape), nil
}

// NewJoint records the joint frame relative to both bodies' current poses.
func (w *World) NewJoint(desc physics.JointDesc, a, b physics.Body) (physics.Joint, error) {
	if w.closed {
		return nil, errClosed
	}
	ba, okA := w.own(a)
	bb, okB := w.own(b)
	if !okA || !okB {
		return nil, errForeignBody
	}
	if ba == bb {
		return nil, fmt.Errorf("xpbd: joint %q connects a body to itself", desc.Name)
	}
	return newJoint(desc, ba, bb), nil
}

func (w *World) AddRigidBody(b physics.Body, group, mask uint16) {
	bb, ok := w.own(b)
	if !ok || bb.added || w.closed {
		return
	}
	bb.group, bb.mask = group, mask
	bb.added = true
	w.bodies = append(w.bodies, bb)
	w.sim.AddBody(bb.rb)
}

func (w *World) RemoveRigidBody(b physics.Body) {
	bb, ok := w.own(b)
	if !ok || !bb.added {
		return
	}
	bb.added = false
	for i, x := range w.bodies {
		if x == bb {
			w.bodies = append(w.bodies[:i], w.bodies[i+1:]...)
			break
		}
	}
	w.sim.RemoveBody(bb.rb)
}

func (w *World) AddJoint(j physics.Joint) {
	jj, ok := j.(*joint)
	if !ok || jj.added || w.closed {
		return
	}
	jj.added = true
	w.joints = append(w.joints, jj)
	w.linked[keyOf(jj.a, jj.b)]++
}

func (w *World) RemoveJoint(j physics.Joint) {
	jj, ok := j.(*joint)
	if !ok || !jj.added {
		return
	}
	jj.added = false
	for i, x := range w.joints {
		if x == jj {
			w.joints = append(w.joints[:i], w.joints[i+1:]...)
			break
		}
	}
	k := keyOf(jj.a, jj.b)
	if w.linked[k]--; w.linked[k] <= 0 {
		delete(w.linked, k)
	}
}

func (w *World) SetGravity(g mgl32.Vec3)    { w.sim.Gravity = vec64(g) }
func (w *World) SetFilter(f physics.Filter) { w.filter = f }

// Step runs floor((carry + dt) / fixedStep) substeps, capped at
// maxSubSteps; time beyond the cap is dropped. A maxSubSteps of zero or
// less runs a single step of dt.
func (w *World) Step(dt float32, maxSubSteps int, fixedStep float32) {
	if w.closed || dt <= 0 {
		return
	}

	n := 1
	h := dt
	if maxSubSteps > 0 && fixedStep > 0 {
		w.localTime += dt
		n = int(w.localTime/fixedStep + 1e-4)
		if n > 0 {
			w.localTime -= float32(n) * fixedStep
			if w.localTime < 0 {
				w.localTime = 0
			}
		}
		if n > maxSubSteps {
			n = maxSubSteps
		}
		h = fixedStep
	}

	for _, b := range w.bodies {
		if b.kinematic {
			b.from, b.to = b.rb.Transform, transformOf(b.state.WorldTransform())
		}
	}
	for i := 0; i < n; i++ {
		w.substep(float64(h), float32(i+1)/float32(n))
	}
}

// substep is feather's pipeline with kinematic bodies moved first, joints
// solved after integration and pairs filtered between the phases.
func (w *World) substep(h float64, frac float32) {
	for _, b := range w.bodies {
		if b.kinematic {
			b.follow(frac, h)
		}
	}
	for _, rb := range w.sim.Bodies {
		rb.Integrate(h, w.sim.Gravity)
	}

	for it := 0; it < w.Iterations; it++ {
		for _, j := range w.joints {
			j.solve(h)
		}
	}
	if len(w.joints) > 0 {
		for _, b := range w.bodies {
			if b.moves() {
				b.reshape()
			}
		}
	}

	pairs := feather.BroadPhase(w.sim.SpatialGrid, w.sim.Bodies, w.sim.Workers)
	contacts := feather.NarrowPhase(w.filterPairs(pairs), w.sim.Workers)
	for _, c := range contacts {
		c.SolvePosition(h)
	}
	for _, rb := range w.sim.Bodies {
		rb.Update(h)
	}
	for _, c := range contacts {
		c.SolveVelocity(h)
	}

	for _, b := range w.bodies {
		if !b.kinematic {
			b.state.SetWorldTransform(b.Transform())
		}
	}
}

// filterPairs drops broad phase pairs that are joined or that the
// collision filter rejects.
func (w *World) filterPairs(in <-chan feather.Pair) <-chan feather.Pair {
	out := make(chan feather.Pair, cap(in))
	go func() {
		defer close(out)
		for p := range in {
			if w.collides(p.BodyA, p.BodyB) {
				out <- p
			}
		}
	}()
	return out
}

func (w *World) collides(ra, rb *actor.RigidBody) bool {
	a, okA := ra.Id.(*body)
	b, okB := rb.Id.(*body)
	if !okA || !okB {
		return true
	}
	if w.linked[keyOf(a, b)] > 0 {
		return false
	}
	return w.filter == nil || w.filter(a.proxy(), b.proxy())
}

// ClearContacts wakes b. Feather rebuilds contacts every substep, so there
// is no pair cache to drop; a woken body is always in the broad phase.
func (w *World) ClearContacts(b physics.Body) {
	if bb, ok := w.own(b); ok {
		bb.rb.WakeUp()
	}
}

func (w *World) ResetVelocity(b physics.Body) {
	bb, ok := w.own(b)
	if !ok {
		return
	}
	rb := bb.rb
	rb.Velocity, rb.AngularVelocity = mgl64.Vec3{}, mgl64.Vec3{}
	rb.PresolveVelocity, rb.PresolveAngularVelocity = rb.Velocity, rb.AngularVelocity
	rb.PreviousTransform = rb.Transform
	rb.ClearForces()
}

// Close drops every body and joint.
func (w *World) Close() error {
	w.bodies = nil
	w.joints = nil
	w.sim.Bodies = nil
	w.linked = make(map[pairKey]int)
	w.closed = true
	return nil
}
