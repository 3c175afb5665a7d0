package xpbd

import (
	"math"

	"github.com/akmonengine/feather/actor"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"

	mmath "github.com/Faultbox/mmdanim/pkg/math"
)

// The engine works in float32; feather works in float64.

func vec64(v mgl32.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{float64(v[0]), float64(v[1]), float64(v[2])}
}

func vec32(v mgl64.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{float32(v[0]), float32(v[1]), float32(v[2])}
}

func quat64(q mgl32.Quat) mgl64.Quat {
	return mgl64.Quat{W: float64(q.W), V: vec64(q.V)}
}

func quat32(q mgl64.Quat) mgl32.Quat {
	return mgl32.Quat{W: float32(q.W), V: vec32(q.V)}
}

// transformOf splits a rigid matrix into a feather transform.
func transformOf(m mgl32.Mat4) actor.Transform {
	rot := quat64(mmath.RotationOf(m)).Normalize()
	return actor.Transform{
		Position:        vec64(mmath.Translation(m)),
		Rotation:        rot,
		InverseRotation: rot.Inverse(),
	}
}

func matrixOf(t actor.Transform) mgl32.Mat4 {
	p := vec32(t.Position)
	return mgl32.Translate3D(p[0], p[1], p[2]).Mul4(quat32(t.Rotation).Mat4())
}

// rotationVector returns axis * angle for q, taking the short way round.
func rotationVector(q mgl64.Quat) mgl64.Vec3 {
	if q.W < 0 {
		q = q.Scale(-1)
	}
	s := q.V.Len()
	if s < epsilon {
		return q.V.Mul(2)
	}
	return q.V.Mul(2 * math.Atan2(s, q.W) / s)
}
