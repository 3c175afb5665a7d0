package xpbd

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/mmdanim/internal/engine/physics"
	mmath "github.com/Faultbox/mmdanim/pkg/math"
)

// joint is a 6-DOF spring joint solved as XPBD position constraints on
// the two feather bodies. It holds the joint frame in each body's local
// space.
type joint struct {
	desc physics.JointDesc
	a, b *body

	posA, posB mgl64.Vec3
	rotA, rotB mgl64.Quat
	added      bool
}

func newJoint(desc physics.JointDesc, a, b *body) *joint {
	la := transformOf(a.Transform().Inv().Mul4(desc.Frame))
	lb := transformOf(b.Transform().Inv().Mul4(desc.Frame))
	return &joint{
		desc: desc,
		a:    a,
		b:    b,
		posA: la.Position,
		posB: lb.Position,
		rotA: la.Rotation,
		rotB: lb.Rotation,
	}
}

var unitAxes = [3]mgl64.Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

// limited reports whether [lo, hi] is a usable interval. A lower bound
// above the upper bound leaves the axis free.
func limited(lo, hi float32) bool { return lo <= hi }

func clamp(v float64, lo, hi float32) float64 {
	return min(max(v, float64(lo)), float64(hi))
}

// solve runs one position-level pass over the joint.
func (j *joint) solve(h float64) {
	a, b := j.a, j.b
	if !a.moves() && !b.moves() {
		return
	}

	frameA := a.rb.Transform.Rotation.Mul(j.rotA)
	anchorA := a.worldPoint(j.posA)
	anchorB := b.worldPoint(j.posB)

	// Linear: displacement of B's anchor in A's joint frame.
	local := frameA.Conjugate().Rotate(anchorB.Sub(anchorA))
	var excess mgl64.Vec3
	for i := 0; i < 3; i++ {
		lo, hi := j.desc.LinearMin[i], j.desc.LinearMax[i]
		if !limited(lo, hi) {
			continue
		}
		c := clamp(local[i], lo, hi)
		excess[i] = local[i] - c
		local[i] = c
	}
	if excess.Len() > epsilon {
		solvePoint(a, b, anchorA.Sub(a.rb.Transform.Position), anchorB.Sub(b.rb.Transform.Position), frameA.Rotate(excess), 0, h)
	}
	for i := 0; i < 3; i++ {
		k := float64(j.desc.SpringLinear[i])
		if k <= 0 || local[i] == 0 {
			continue
		}
		anchorA, anchorB = a.worldPoint(j.posA), b.worldPoint(j.posB)
		pull := frameA.Rotate(unitAxes[i].Mul(local[i]))
		solvePoint(a, b, anchorA.Sub(a.rb.Transform.Position), anchorB.Sub(b.rb.Transform.Position), pull, 1/k, h)
	}

	// Angular: relative rotation of B's joint frame against A's.
	frameA = a.rb.Transform.Rotation.Mul(j.rotA)
	frameB := b.rb.Transform.Rotation.Mul(j.rotB)
	euler := mmath.DecomposeXYZ(quat32(frameA.Conjugate().Mul(frameB)), mgl32.Vec3{})
	clamped := euler
	for i := 0; i < 3; i++ {
		lo, hi := j.desc.AngularMin[i], j.desc.AngularMax[i]
		if limited(lo, hi) {
			clamped[i] = mgl32.Clamp(euler[i], lo, hi)
		}
	}
	if clamped != euler {
		want := frameA.Mul(quat64(mmath.QuatFromEulerXYZ(clamped)))
		solveRotation(a, b, rotationVector(want.Mul(frameB.Conjugate())), 0, h)
	}
	for i := 0; i < 3; i++ {
		k := float64(j.desc.SpringAngular[i])
		if k <= 0 || clamped[i] == 0 {
			continue
		}
		frameA = a.rb.Transform.Rotation.Mul(j.rotA)
		solveRotation(a, b, frameA.Rotate(unitAxes[i].Mul(-float64(clamped[i]))), 1/k, h)
	}
}

// solvePoint moves two anchors so that B's anchor shifts by -err relative
// to A's. ra and rb are the anchors relative to the body centres.
// compliance is the inverse stiffness; zero makes the constraint hard.
func solvePoint(a, b *body, ra, rb, err mgl64.Vec3, compliance, h float64) {
	c := err.Len()
	if c < epsilon {
		return
	}
	n := err.Mul(1 / c)

	ia, ib := a.invInertia(), b.invInertia()
	wa := generalizedInvMass(a.invMass(), ia, ra, n)
	wb := generalizedInvMass(b.invMass(), ib, rb, n)
	denom := wa + wb + compliance/(h*h)
	if denom < epsilon {
		return
	}
	p := n.Mul(c / denom)

	if a.moves() {
		a.rb.Transform.Position = a.rb.Transform.Position.Add(p.Mul(a.invMass()))
		a.rotateBy(ia.Mul3x1(ra.Cross(p)))
	}
	if b.moves() {
		b.rb.Transform.Position = b.rb.Transform.Position.Sub(p.Mul(b.invMass()))
		b.rotateBy(ib.Mul3x1(rb.Cross(p)).Mul(-1))
	}
}

func generalizedInvMass(invMass float64, invInertia mgl64.Mat3, r, n mgl64.Vec3) float64 {
	rn := r.Cross(n)
	return invMass + invInertia.Mul3x1(rn).Dot(rn)
}

// solveRotation turns B by rot relative to A, split by inverse inertia.
func solveRotation(a, b *body, rot mgl64.Vec3, compliance, h float64) {
	theta := rot.Len()
	if theta < epsilon {
		return
	}
	n := rot.Mul(1 / theta)
	ia, ib := a.invInertia(), b.invInertia()
	wa := ia.Mul3x1(n).Dot(n)
	wb := ib.Mul3x1(n).Dot(n)
	denom := wa + wb + compliance/(h*h)
	if denom < epsilon {
		return
	}
	lambda := theta / denom
	if a.moves() {
		a.rotateBy(ia.Mul3x1(n).Mul(-lambda))
	}
	if b.moves() {
		b.rotateBy(ib.Mul3x1(n).Mul(lambda))
	}
}
