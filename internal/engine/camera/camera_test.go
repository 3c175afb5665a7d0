package camera

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	mmath "github.com/Faultbox/mmdanim/pkg/math"
)

func TestLookAt(t *testing.T) {
	tests := []struct {
		name   string
		cam    Camera
		eye    mgl32.Vec3
		center mgl32.Vec3
		up     mgl32.Vec3
	}{
		{"default", Default(), mgl32.Vec3{0, 10, 50}, mgl32.Vec3{0, 10, 49}, mgl32.Vec3{0, 1, 0}},
		{"negative distance", Camera{Interest: mgl32.Vec3{0, 10, 0}, Distance: -50}, mgl32.Vec3{0, 10, 50}, mgl32.Vec3{0, 10, 49}, mgl32.Vec3{0, 1, 0}},
		{"yaw", Camera{Rotate: mgl32.Vec3{0, mgl32.DegToRad(90), 0}, Distance: 50}, mgl32.Vec3{50, 0, 0}, mgl32.Vec3{49, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{"roll", Camera{Rotate: mgl32.Vec3{0, 0, mgl32.DegToRad(90)}, Distance: 10}, mgl32.Vec3{0, 0, 10}, mgl32.Vec3{0, 0, 9}, mgl32.Vec3{1, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cam.LookAt()
			if got.Eye.Sub(tt.eye).Len() > 1e-4 {
				t.Errorf("eye: got %v, want %v", got.Eye, tt.eye)
			}
			if got.Center.Sub(tt.center).Len() > 1e-4 {
				t.Errorf("center: got %v, want %v", got.Center, tt.center)
			}
			if got.Up.Sub(tt.up).Len() > 1e-4 {
				t.Errorf("up: got %v, want %v", got.Up, tt.up)
			}
		})
	}
}

func TestLookAt_ViewMatrix(t *testing.T) {
	l := Default().LookAt()
	v := l.ViewMatrix()
	if p := mmath.TransformPoint(v, l.Eye); p.Len() > 1e-4 {
		t.Errorf("eye in view space: got %v, want origin", p)
	}
	// The interest point lies straight ahead on -Z.
	p := mmath.TransformPoint(v, mgl32.Vec3{0, 10, 0})
	if p.Sub(mgl32.Vec3{0, 0, -50}).Len() > 1e-3 {
		t.Errorf("interest in view space: got %v, want (0,0,-50)", p)
	}
}

func TestMix(t *testing.T) {
	a := Camera{Distance: 10, FOV: 0.2}
	b := Camera{Interest: mgl32.Vec3{4, 0, 0}, Rotate: mgl32.Vec3{0, 2, 0}, Distance: 20, FOV: 0.6}
	got := Mix(a, b, 0.5)
	want := Camera{Interest: mgl32.Vec3{2, 0, 0}, Rotate: mgl32.Vec3{0, 1, 0}, Distance: 15, FOV: 0.4}
	if !got.Interest.ApproxEqualThreshold(want.Interest, 1e-6) || got.Distance != want.Distance {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestFitToBounds(t *testing.T) {
	c := Default()
	c.Rotate = mgl32.Vec3{1, 1, 1}
	c.FitToBounds(mgl32.Vec3{-2, 0, -1}, mgl32.Vec3{2, 20, 1})
	if !c.Interest.ApproxEqualThreshold(mgl32.Vec3{0, 10, 0}, 1e-6) {
		t.Errorf("interest: got %v, want (0,10,0)", c.Interest)
	}
	if c.Distance != 30 {
		t.Errorf("distance: got %v, want 30", c.Distance)
	}
	if c.Rotate != (mgl32.Vec3{}) {
		t.Errorf("rotate: got %v, want zero", c.Rotate)
	}

	c.FitToBounds(mgl32.Vec3{}, mgl32.Vec3{1, 1, 1})
	if c.Distance != 10 {
		t.Errorf("small bounds distance: got %v, want 10", c.Distance)
	}
}

func TestProjection(t *testing.T) {
	c := Default()
	persp := c.LookAt()
	c.Orthographic = true
	ortho := c.LookAt()
	if persp.Orthographic || !ortho.Orthographic {
		t.Fatalf("orthographic flag not carried: %v %v", persp.Orthographic, ortho.Orthographic)
	}

	// A point at the top edge of the view at the interest distance lands on
	// the top of clip space under either projection.
	v := persp.ViewMatrix()
	h := c.Distance * float32(math.Tan(float64(c.FOV)/2))
	top := mmath.TransformPoint(v, c.Interest.Add(mgl32.Vec3{0, h, 0}))
	for _, l := range []LookAt{persp, ortho} {
		clip := l.Projection(1.5, 1, 100).Mul4x1(top.Vec4(1))
		if y := clip[1] / clip[3]; math.Abs(float64(y-1)) > 1e-4 {
			t.Errorf("orthographic %v: top edge at y = %v, want 1", l.Orthographic, y)
		}
	}
}

func TestMix_Projection(t *testing.T) {
	a := Camera{Distance: 10}
	b := Camera{Distance: 20, Orthographic: true}
	if Mix(a, b, 0.5).Orthographic {
		t.Error("midway: got orthographic, want perspective")
	}
	if !Mix(a, b, 1).Orthographic {
		t.Error("end: got perspective, want orthographic")
	}
}
