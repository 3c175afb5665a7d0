package math

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	AxisX = mgl32.Vec3{1, 0, 0}
	AxisY = mgl32.Vec3{0, 1, 0}
	AxisZ = mgl32.Vec3{0, 0, 1}
)

// Slerp performs spherical linear interpolation between two quaternions,
// taking the shorter arc. t should be in range [0, 1].
func Slerp(a, b mgl32.Quat, t float32) mgl32.Quat {
	dot := a.Dot(b)

	// Negate one side to take the shorter path
	if dot < 0 {
		b = b.Scale(-1)
		dot = -dot
	}

	// Nearly parallel: fall back to normalized lerp
	if dot > 0.9995 {
		return mgl32.Quat{
			W: a.W + t*(b.W-a.W),
			V: Mix(a.V, b.V, t),
		}.Normalize()
	}

	theta0 := float32(math.Acos(float64(dot)))
	theta := theta0 * t
	sinTheta := float32(math.Sin(float64(theta)))
	sinTheta0 := float32(math.Sin(float64(theta0)))

	s0 := float32(math.Cos(float64(theta))) - dot*sinTheta/sinTheta0
	s1 := sinTheta / sinTheta0

	return a.Scale(s0).Add(b.Scale(s1))
}

// Weighted scales a rotation by weight: slerp from identity.
func Weighted(q mgl32.Quat, weight float32) mgl32.Quat {
	return Slerp(mgl32.QuatIdent(), q, weight)
}

// QuatFromEulerXYZ builds Rx * Ry * Rz from radians.
func QuatFromEulerXYZ(e mgl32.Vec3) mgl32.Quat {
	return mgl32.QuatRotate(e[0], AxisX).
		Mul(mgl32.QuatRotate(e[1], AxisY)).
		Mul(mgl32.QuatRotate(e[2], AxisZ)).
		Normalize()
}

// QuatFromEulerZYX builds Rz * Ry * Rx from radians, the order rigid body
// and joint orientations are stored in.
func QuatFromEulerZYX(e mgl32.Vec3) mgl32.Quat {
	return mgl32.QuatRotate(e[2], AxisZ).
		Mul(mgl32.QuatRotate(e[1], AxisY)).
		Mul(mgl32.QuatRotate(e[0], AxisX)).
		Normalize()
}

// ApproxEqualQuat reports whether a and b describe the same rotation.
func ApproxEqualQuat(a, b mgl32.Quat, eps float32) bool {
	d := a.Dot(b)
	if d < 0 {
		d = -d
	}
	return 1-d <= eps
}
