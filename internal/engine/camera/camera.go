// Package camera provides the orbit camera driven by camera motions and its
// conversion to an eye/center/up view.
package camera

import (
	gomath "math"

	"github.com/go-gl/mathgl/mgl32"

	mmath "github.com/Faultbox/mmdanim/pkg/math"
)

// Camera orbits Interest at Distance. Rotate holds pitch, yaw and roll in
// radians; FOV is the vertical field of view in radians. An orthographic
// camera frames the same extent at Interest that FOV would.
type Camera struct {
	Interest     mgl32.Vec3
	Rotate       mgl32.Vec3
	Distance     float32
	FOV          float32
	Orthographic bool
}

// Default returns the camera used when no camera motion is bound.
func Default() Camera {
	return Camera{
		Interest: mgl32.Vec3{0, 10, 0},
		Distance: 50,
		FOV:      mgl32.DegToRad(30),
	}
}

// Mix interpolates every field linearly. The projection switches to b's
// only at t == 1.
func Mix(a, b Camera, t float32) Camera {
	ortho := a.Orthographic
	if t >= 1 {
		ortho = b.Orthographic
	}
	return Camera{
		Interest:     mmath.Mix(a.Interest, b.Interest, t),
		Rotate:       mmath.Mix(a.Rotate, b.Rotate, t),
		Distance:     a.Distance + (b.Distance-a.Distance)*t,
		FOV:          a.FOV + (b.FOV-a.FOV)*t,
		Orthographic: ortho,
	}
}

// orientation is Ry(yaw) * Rz(-roll) * Rx(pitch).
func (c Camera) orientation() mgl32.Mat4 {
	return mgl32.HomogRotate3DY(c.Rotate[1]).
		Mul4(mgl32.HomogRotate3DZ(-c.Rotate[2])).
		Mul4(mgl32.HomogRotate3DX(c.Rotate[0]))
}

// LookAt converts the orbit description to an eye/center/up view. The eye
// sits |Distance| behind Interest along the rotated +Z axis.
func (c Camera) LookAt() LookAt {
	d := float32(gomath.Abs(float64(c.Distance)))
	view := c.orientation().Mul4(mgl32.Translate3D(0, 0, d))
	eye := mmath.Translation(view).Add(c.Interest)
	basis := view.Mat3()
	return LookAt{
		Eye:          eye,
		Center:       basis.Mul3x1(mgl32.Vec3{0, 0, -1}).Add(eye),
		Up:           basis.Mul3x1(mmath.AxisY),
		FOV:          c.FOV,
		Distance:     d,
		Orthographic: c.Orthographic,
	}
}

// FitToBounds centres the camera on an axis-aligned box and backs off far
// enough for its larger horizontal extent.
func (c *Camera) FitToBounds(lo, hi mgl32.Vec3) {
	c.Interest = lo.Add(hi).Mul(0.5)
	size := hi.Sub(lo)
	extent := size[1]
	if size[0] > extent {
		extent = size[0]
	}
	c.Distance = extent * 1.5
	if c.Distance < 10 {
		c.Distance = 10
	}
	c.Rotate = mgl32.Vec3{}
}

// LookAt is a view ready for a view matrix. Distance is the eye's distance
// from the interest point.
type LookAt struct {
	Eye          mgl32.Vec3
	Center       mgl32.Vec3
	Up           mgl32.Vec3
	FOV          float32
	Distance     float32
	Orthographic bool
}

// ViewMatrix returns the right-handed view matrix.
func (l LookAt) ViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(l.Eye, l.Center, l.Up)
}

// Projection returns the view's projection. An orthographic view keeps the
// height a perspective view would show at the interest point.
func (l LookAt) Projection(aspect, near, far float32) mgl32.Mat4 {
	if !l.Orthographic {
		return mgl32.Perspective(l.FOV, aspect, near, far)
	}
	h := l.Distance * float32(gomath.Tan(float64(l.FOV)/2))
	w := h * aspect
	return mgl32.Ortho(-w, w, -h, h, near, far)
}
