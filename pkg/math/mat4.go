package math

import "github.com/go-gl/mathgl/mgl32"

// Compose builds translate * rotate * scale.
func Compose(t mgl32.Vec3, r mgl32.Quat, s mgl32.Vec3) mgl32.Mat4 {
	m := r.Normalize().Mat4()
	for i := 0; i < 3; i++ {
		m[i] *= s[0]
		m[4+i] *= s[1]
		m[8+i] *= s[2]
	}
	m[12], m[13], m[14] = t[0], t[1], t[2]
	return m
}

// Translation returns the translation column of m.
func Translation(m mgl32.Mat4) mgl32.Vec3 {
	return mgl32.Vec3{m[12], m[13], m[14]}
}

// SetTranslation returns m with its translation column replaced.
func SetTranslation(m mgl32.Mat4, t mgl32.Vec3) mgl32.Mat4 {
	m[12], m[13], m[14] = t[0], t[1], t[2]
	return m
}

// TransformPoint transforms a point (w = 1) by m.
func TransformPoint(m mgl32.Mat4, p mgl32.Vec3) mgl32.Vec3 {
	return m.Mul4x1(p.Vec4(1)).Vec3()
}

// TransformDir transforms a direction by the upper 3x3 of m.
func TransformDir(m mgl32.Mat4, d mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{
		m[0]*d[0] + m[4]*d[1] + m[8]*d[2],
		m[1]*d[0] + m[5]*d[1] + m[9]*d[2],
		m[2]*d[0] + m[6]*d[1] + m[10]*d[2],
	}
}

// RotationOf extracts the rotation of an affine matrix with positive scale.
func RotationOf(m mgl32.Mat4) mgl32.Quat {
	for c := 0; c < 3; c++ {
		col := mgl32.Vec3{m[c*4], m[c*4+1], m[c*4+2]}
		l := col.Len()
		if l < Epsilon {
			continue
		}
		m[c*4] /= l
		m[c*4+1] /= l
		m[c*4+2] /= l
	}
	m[12], m[13], m[14] = 0, 0, 0
	return mgl32.Mat4ToQuat(m).Normalize()
}

// WeightedSum returns sum(ms[i] * ws[i]).
func WeightedSum(ms []mgl32.Mat4, ws []float32) mgl32.Mat4 {
	var out mgl32.Mat4
	for i := range ms {
		w := ws[i]
		for j := range out {
			out[j] += ms[i][j] * w
		}
	}
	return out
}
