package math

import (
	"github.com/go-gl/mathgl/mgl32"
	"gonum.org/v1/gonum/num/dualquat"
	"gonum.org/v1/gonum/num/quat"
)

// DualQuatFromMat4 converts a rigid transform to a unit dual quaternion.
// Scale in m is discarded.
func DualQuatFromMat4(m mgl32.Mat4) dualquat.Number {
	r := RotationOf(m)
	rq := quat.Number{
		Real: float64(r.W),
		Imag: float64(r.V[0]),
		Jmag: float64(r.V[1]),
		Kmag: float64(r.V[2]),
	}
	t := quat.Number{Imag: float64(m[12]), Jmag: float64(m[13]), Kmag: float64(m[14])}
	return dualquat.Number{
		Real: rq,
		Dual: quat.Scale(0.5, quat.Mul(t, rq)),
	}
}

func quatDot(a, b quat.Number) float64 {
	return a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
}

// BlendDualQuats returns the normalized weighted sum of dqs as a matrix.
// Each term whose rotation lies in the opposite hemisphere from dqs[0]
// has its weight negated, so q and -q blend as the same rotation.
func BlendDualQuats(dqs []dualquat.Number, ws []float32) mgl32.Mat4 {
	if len(dqs) == 0 {
		return mgl32.Ident4()
	}
	var acc dualquat.Number
	pivot := dqs[0].Real
	for i, dq := range dqs {
		w := float64(ws[i])
		if quatDot(dq.Real, pivot) < 0 {
			w = -w
		}
		acc = dualquat.Add(acc, dualquat.Scale(w, dq))
	}

	n := quat.Abs(acc.Real)
	if n < Epsilon {
		return mgl32.Ident4()
	}
	rq := quat.Scale(1/n, acc.Real)
	dual := quat.Scale(1/n, acc.Dual)

	// t = 2 * dual * conj(real)
	t := quat.Scale(2, quat.Mul(dual, quat.Conj(rq)))

	rot := mgl32.Quat{
		W: float32(rq.Real),
		V: mgl32.Vec3{float32(rq.Imag), float32(rq.Jmag), float32(rq.Kmag)},
	}
	return SetTranslation(rot.Mat4(), mgl32.Vec3{float32(t.Imag), float32(t.Jmag), float32(t.Kmag)})
}
