package anim

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/mmdanim/internal/engine/camera"
)

// CameraAnimation evaluates a camera track.
type CameraAnimation struct {
	Curve Curve

	keys     []CameraKey
	cache    int
	camera   camera.Camera
	maxFrame int32
}

// BindCamera prepares m's camera track. A motion without camera keys
// yields the default camera on every frame.
func BindCamera(m *Motion) *CameraAnimation {
	return &CameraAnimation{
		Curve:    DefaultCurve(),
		keys:     sorted(m.Camera),
		camera:   camera.Default(),
		maxFrame: m.CameraMaxFrame(),
	}
}

// MaxFrame returns the last keyed camera frame.
func (c *CameraAnimation) MaxFrame() int32 { return c.maxFrame }

// Camera returns the result of the last Evaluate.
func (c *CameraAnimation) Camera() camera.Camera { return c.camera }

// Evaluate sets the camera for frame. Keys one frame apart or less are a
// cut: the earlier key holds until the later one is reached.
func (c *CameraAnimation) Evaluate(frame float32) camera.Camera {
	if len(c.keys) == 0 {
		c.camera = camera.Default()
		return c.camera
	}
	k0, k1, s := segment(c.keys, frame, &c.cache)
	if s == 0 || k1.Frame-k0.Frame <= 1 {
		c.camera = keyCamera(k0)
		return c.camera
	}

	cv := c.Curve
	interest := mgl32.Vec3{
		cv.ease(k1.InterestX, s),
		cv.ease(k1.InterestY, s),
		cv.ease(k1.InterestZ, s),
	}
	rot := cv.ease(k1.Rotation, s)
	dist := cv.ease(k1.DistanceC, s)
	fov := cv.ease(k1.FOVC, s)

	d := k1.Interest.Sub(k0.Interest)
	c.camera = camera.Camera{
		Interest: k0.Interest.Add(mgl32.Vec3{d[0] * interest[0], d[1] * interest[1], d[2] * interest[2]}),
		Rotate:   k0.Rotate.Add(k1.Rotate.Sub(k0.Rotate).Mul(rot)),
		Distance: k0.Distance + (k1.Distance-k0.Distance)*dist,
		FOV:      k0.FOV + (k1.FOV-k0.FOV)*fov,
		// The projection is not interpolated; it holds until the next key.
		Orthographic: !k0.Perspective,
	}
	return c.camera
}

func keyCamera(k CameraKey) camera.Camera {
	return camera.Camera{
		Interest: k.Interest,
		Rotate:   k.Rotate,
		Distance: k.Distance,
		FOV:      k.FOV,

		Orthographic: !k.Perspective,
	}
}
