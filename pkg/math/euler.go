package math

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	pi    = float32(math.Pi)
	twoPi = float32(2 * math.Pi)
)

// NormalizeAngle wraps an angle into [0, 2pi).
func NormalizeAngle(angle float32) float32 {
	ret := angle
	for ret >= twoPi {
		ret -= twoPi
	}
	for ret < 0 {
		ret += twoPi
	}
	return ret
}

// DiffAngle returns the signed difference a - b wrapped into [-pi, pi].
func DiffAngle(a, b float32) float32 {
	diff := NormalizeAngle(a) - NormalizeAngle(b)
	if diff > pi {
		return diff - twoPi
	}
	if diff < -pi {
		return diff + twoPi
	}
	return diff
}

func absf(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func asin(x float32) float32 {
	return float32(math.Asin(float64(mgl32.Clamp(x, -1, 1))))
}

func atan2(y, x float32) float32 {
	return float32(math.Atan2(float64(y), float64(x)))
}

// DecomposeXYZ splits a rotation into Euler angles (x, y, z) such that
// QuatFromEulerXYZ of the result reproduces q. Every rotation has two
// Euler triples (plus 2pi wraps); the one angularly closest to before is
// returned so successive decompositions stay continuous.
func DecomposeXYZ(q mgl32.Quat, before mgl32.Vec3) mgl32.Vec3 {
	m := q.Normalize().Mat4()
	var r mgl32.Vec3

	sy := m.At(0, 2)
	const e = 1.0e-6
	if 1-absf(sy) < e {
		// Gimbal lock: pin whichever of x, z is nearer 0 or pi
		r[1] = asin(sy)
		sx := float32(math.Sin(float64(before[0])))
		sz := float32(math.Sin(float64(before[2])))
		if absf(sx) < absf(sz) {
			if math.Cos(float64(before[0])) > 0 {
				r[0] = 0
				r[2] = asin(m.At(1, 0))
			} else {
				r[0] = pi
				r[2] = asin(-m.At(1, 0))
			}
		} else {
			if math.Cos(float64(before[2])) > 0 {
				r[2] = 0
				r[0] = asin(m.At(2, 1))
			} else {
				r[2] = pi
				r[0] = asin(-m.At(2, 1))
			}
		}
	} else {
		r[0] = atan2(-m.At(1, 2), m.At(2, 2))
		r[1] = asin(sy)
		r[2] = atan2(-m.At(0, 1), m.At(0, 0))
	}

	tests := [8]mgl32.Vec3{
		{r[0] + pi, pi - r[1], r[2] + pi},
		{r[0] + pi, pi - r[1], r[2] - pi},
		{r[0] + pi, -pi - r[1], r[2] + pi},
		{r[0] + pi, -pi - r[1], r[2] - pi},
		{r[0] - pi, pi - r[1], r[2] + pi},
		{r[0] - pi, pi - r[1], r[2] - pi},
		{r[0] - pi, -pi - r[1], r[2] + pi},
		{r[0] - pi, -pi - r[1], r[2] - pi},
	}

	minErr := angleError(r, before)
	for _, test := range tests {
		if err := angleError(test, before); err < minErr {
			minErr = err
			r = test
		}
	}
	return r
}

func angleError(a, b mgl32.Vec3) float32 {
	return absf(DiffAngle(a[0], b[0])) +
		absf(DiffAngle(a[1], b[1])) +
		absf(DiffAngle(a[2], b[2]))
}
