// Package math provides the vector, rotation and curve helpers used by the
// animation engine. Storage types come from mathgl; this package adds the
// operations mathgl does not carry.
package math

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Epsilon is the length below which a vector is treated as zero.
const Epsilon = 1e-6

// Normalize returns a unit vector, or the zero vector when v has no length.
// mgl32.Vec3.Normalize divides by zero in that case.
func Normalize(v mgl32.Vec3) mgl32.Vec3 {
	l := v.Len()
	if l < Epsilon {
		return mgl32.Vec3{}
	}
	return v.Mul(1 / l)
}

// Mix linearly interpolates between two vectors.
func Mix(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return mgl32.Vec3{
		a[0] + t*(b[0]-a[0]),
		a[1] + t*(b[1]-a[1]),
		a[2] + t*(b[2]-a[2]),
	}
}

// Mix4 linearly interpolates between two 4D vectors.
func Mix4(a, b mgl32.Vec4, t float32) mgl32.Vec4 {
	return mgl32.Vec4{
		a[0] + t*(b[0]-a[0]),
		a[1] + t*(b[1]-a[1]),
		a[2] + t*(b[2]-a[2]),
		a[3] + t*(b[3]-a[3]),
	}
}

// MulElem multiplies two vectors component-wise.
func MulElem(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

// MulElem4 multiplies two 4D vectors component-wise.
func MulElem4(a, b mgl32.Vec4) mgl32.Vec4 {
	return mgl32.Vec4{a[0] * b[0], a[1] * b[1], a[2] * b[2], a[3] * b[3]}
}

// Clamp3 clamps each component of v to [lo, hi].
func Clamp3(v, lo, hi mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{
		mgl32.Clamp(v[0], lo[0], hi[0]),
		mgl32.Clamp(v[1], lo[1], hi[1]),
		mgl32.Clamp(v[2], lo[2], hi[2]),
	}
}

// Acos is a float32 arc cosine with the argument clamped to [-1, 1].
func Acos(x float32) float32 {
	return float32(math.Acos(float64(mgl32.Clamp(x, -1, 1))))
}
