package xpbd

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/Faultbox/mmdanim/internal/engine/physics"
	mmath "github.com/Faultbox/mmdanim/pkg/math"
)

// pose is a settable motion state.
type pose struct{ m mgl32.Mat4 }

func (p *pose) WorldTransform() mgl32.Mat4     { return p.m }
func (p *pose) SetWorldTransform(m mgl32.Mat4) { p.m = m }

func at(x, y, z float32) *pose {
	return &pose{m: mgl32.Translate3D(x, y, z)}
}

func sphere(name string, r, mass float32) physics.BodyDesc {
	return physics.BodyDesc{Name: name, Shape: physics.ShapeSphere, Size: mgl32.Vec3{r, 0, 0}, Mass: mass}
}

func ground() physics.BodyDesc {
	return physics.BodyDesc{Name: "ground", Shape: physics.ShapePlane, Kinematic: true, Friction: 0.5}
}

func mustBody(t *testing.T, w *World, desc physics.BodyDesc, st physics.MotionState) *body {
	t.Helper()
	b, err := w.NewBody(desc, st)
	if err != nil {
		t.Fatalf("NewBody(%s): %v", desc.Name, err)
	}
	w.AddRigidBody(b, 1, 0xFFFF)
	return b.(*body)
}

func position(b *body) mgl32.Vec3 { return vec32(b.rb.Transform.Position) }

func TestStep_FreeFallSubsteps(t *testing.T) {
	tests := []struct {
		name  string
		dt    float32
		steps int
	}{
		{"settle step", 1.0 / 60.0, 2},
		{"frame step", 1.0 / 30.0, 4},
		{"capped", 1.0, 10},
	}
	const g, h = 98.0, 1.0 / 120.0

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New()
			w.SetGravity(mgl32.Vec3{0, -g, 0})
			st := at(0, 100, 0)
			b := mustBody(t, w, sphere("ball", 1, 1), st)

			w.Step(tt.dt, 10, h)

			n := float64(tt.steps)
			want := 100 - g*h*h*n*(n+1)/2
			if got := b.rb.Transform.Position.Y(); !scalar.EqualWithinAbs(got, want, 1e-3) {
				t.Errorf("y: got %v, want %v", got, want)
			}
			if got := float64(st.m.At(1, 3)); !scalar.EqualWithinAbs(got, want, 1e-3) {
				t.Errorf("motion state y: got %v, want %v", got, want)
			}
		})
	}
}

func TestStep_CarriesRemainder(t *testing.T) {
	w := New()
	w.SetGravity(mgl32.Vec3{0, -98, 0})
	b := mustBody(t, w, sphere("ball", 1, 1), at(0, 100, 0))

	w.Step(1.0/240.0, 10, 1.0/120.0)
	if y := b.rb.Transform.Position.Y(); y != 100 {
		t.Fatalf("half a fixed step moved the body to %v", y)
	}
	w.Step(1.0/240.0, 10, 1.0/120.0)
	if y := b.rb.Transform.Position.Y(); y >= 100 {
		t.Error("second half step did not complete a substep")
	}
}

func TestStep_KinematicFollowsState(t *testing.T) {
	w := New()
	w.SetGravity(mgl32.Vec3{0, -98, 0})
	st := at(0, 0, 0)
	b := mustBody(t, w, physics.BodyDesc{Name: "k", Shape: physics.ShapeSphere, Size: mgl32.Vec3{1, 0, 0}, Mass: 1, Kinematic: true}, st)

	st.m = mgl32.Translate3D(1, 0, 0).Mul4(mgl32.QuatRotate(0.5, mmath.AxisY).Mat4())
	w.Step(1.0/60.0, 10, 1.0/120.0)

	if got := position(b); !got.ApproxEqualThreshold(mgl32.Vec3{1, 0, 0}, 1e-5) {
		t.Errorf("position: got %v, want (1,0,0)", got)
	}
	if got := quat32(b.rb.Transform.Rotation); !mmath.ApproxEqualQuat(got, mgl32.QuatRotate(0.5, mmath.AxisY), 1e-5) {
		t.Errorf("rotation: got %v", got)
	}
	if got := b.rb.Velocity.X(); !scalar.EqualWithinAbs(got, 60, 1e-2) {
		t.Errorf("velocity x: got %v, want 60", got)
	}
}

func TestStep_RestsOnGround(t *testing.T) {
	tests := []struct {
		name   string
		desc   physics.BodyDesc
		start  mgl32.Mat4
		height float64
	}{
		{"sphere", sphere("ball", 1, 1), mgl32.Translate3D(0, 3, 0), 1},
		{"box", physics.BodyDesc{Name: "box", Shape: physics.ShapeBox, Size: mgl32.Vec3{1, 0.5, 1}, Mass: 1}, mgl32.Translate3D(0, 3, 0), 0.5},
		{"upright capsule", physics.BodyDesc{Name: "cap", Shape: physics.ShapeCapsule, Size: mgl32.Vec3{0.5, 2, 0}, Mass: 1}, mgl32.Translate3D(0, 4, 0), 1.5},
		{"lying capsule", physics.BodyDesc{Name: "cap", Shape: physics.ShapeCapsule, Size: mgl32.Vec3{0.5, 2, 0}, Mass: 1},
			mgl32.Translate3D(0, 3, 0).Mul4(mgl32.HomogRotate3DZ(mgl32.DegToRad(90))), 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New()
			w.SetGravity(mgl32.Vec3{0, -98, 0})
			mustBody(t, w, ground(), &pose{m: mgl32.Ident4()})
			b := mustBody(t, w, tt.desc, &pose{m: tt.start})

			for i := 0; i < 120; i++ {
				w.Step(1.0/60.0, 10, 1.0/120.0)
			}
			if y := b.rb.Transform.Position.Y(); !scalar.EqualWithinAbs(y, tt.height, 0.02) {
				t.Errorf("resting height: got %v, want %v", y, tt.height)
			}
			if v := b.rb.Velocity.Len(); v > 0.5 {
				t.Errorf("resting speed: got %v, want about 0", v)
			}
		})
	}
}

func TestStep_FilterBlocksContact(t *testing.T) {
	tests := []struct {
		name     string
		filter   physics.Filter
		separate bool
	}{
		{"no filter", nil, true},
		{"rejecting filter", func(a, b physics.Proxy) bool { return false }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New()
			w.SetFilter(tt.filter)
			a := mustBody(t, w, sphere("a", 1, 1), at(0, 0, 0))
			b := mustBody(t, w, sphere("b", 1, 1), at(1, 0, 0))

			w.Step(1.0/120.0, 10, 1.0/120.0)

			d := position(b).Sub(position(a)).Len()
			if got := d > 1.9; got != tt.separate {
				t.Errorf("distance %v: separated %v, want %v", d, got, tt.separate)
			}
		})
	}
}

func TestStep_KinematicPushesDynamic(t *testing.T) {
	w := New()
	pusher := at(-3, 0, 0)
	mustBody(t, w, physics.BodyDesc{Name: "k", Shape: physics.ShapeSphere, Size: mgl32.Vec3{1, 0, 0}, Mass: 1, Kinematic: true}, pusher)
	ball := mustBody(t, w, sphere("ball", 1, 1), at(0, 0, 0))

	for i := 0; i < 30; i++ {
		pusher.m = mgl32.Translate3D(-3+float32(i+1)*0.1, 0, 0)
		w.Step(1.0/60.0, 10, 1.0/120.0)
	}
	if x := ball.rb.Transform.Position.X(); x <= 0 {
		t.Errorf("ball x = %v, want it pushed along +x", x)
	}
}

func TestJoint_HoldsPendulumLength(t *testing.T) {
	w := New()
	w.SetGravity(mgl32.Vec3{0, -98, 0})
	pivot := mustBody(t, w, physics.BodyDesc{Name: "pivot", Shape: physics.ShapeSphere, Size: mgl32.Vec3{0.1, 0, 0}, Kinematic: true}, at(0, 10, 0))
	bob := mustBody(t, w, sphere("bob", 0.2, 1), at(2, 10, 0))

	j, err := w.NewJoint(physics.JointDesc{
		Name:       "rod",
		Frame:      mgl32.Translate3D(0, 10, 0),
		AngularMin: mgl32.Vec3{1, 1, 1},
		AngularMax: mgl32.Vec3{-1, -1, -1},
	}, pivot, bob)
	if err != nil {
		t.Fatalf("NewJoint: %v", err)
	}
	w.AddJoint(j)

	for i := 0; i < 30; i++ {
		w.Step(1.0/60.0, 10, 1.0/120.0)
	}
	if y := bob.rb.Transform.Position.Y(); y >= 10 {
		t.Errorf("bob did not swing down: y = %v", y)
	}
	if d := bob.rb.Transform.Position.Sub(pivot.rb.Transform.Position).Len(); !scalar.EqualWithinAbs(d, 2, 0.05) {
		t.Errorf("rod length: got %v, want 2", d)
	}

	w.RemoveJoint(j)
	if len(w.joints) != 0 || len(w.linked) != 0 {
		t.Errorf("joint not removed: %d joints, %d links", len(w.joints), len(w.linked))
	}
}

func TestJoint_AngularLimit(t *testing.T) {
	w := New()
	a := mustBody(t, w, physics.BodyDesc{Name: "a", Shape: physics.ShapeSphere, Size: mgl32.Vec3{1, 0, 0}, Kinematic: true}, at(0, 0, 0))
	b := mustBody(t, w, sphere("b", 1, 1), at(0, 0, 0))

	j, err := w.NewJoint(physics.JointDesc{
		Name:       "hinge",
		Frame:      mgl32.Ident4(),
		AngularMin: mgl32.Vec3{0, 0, -0.2},
		AngularMax: mgl32.Vec3{0, 0, 0.2},
	}, a, b)
	if err != nil {
		t.Fatalf("NewJoint: %v", err)
	}
	w.AddJoint(j)

	b.SetMotionState(&pose{m: mgl32.HomogRotate3DZ(0.8)})
	w.Step(1.0/120.0, 10, 1.0/120.0)

	e := mmath.DecomposeXYZ(quat32(b.rb.Transform.Rotation), mgl32.Vec3{})
	if !scalar.EqualWithinAbs(float64(e[2]), 0.2, 0.02) {
		t.Errorf("z angle: got %v, want 0.2", e[2])
	}
}

func TestSetKinematic_SwapsMass(t *testing.T) {
	w := New()
	b := mustBody(t, w, physics.BodyDesc{Name: "b", Shape: physics.ShapeBox, Size: mgl32.Vec3{1, 1, 1}, Mass: 4, Kinematic: true}, at(0, 0, 0))
	if b.moves() || b.invMass() != 0 {
		t.Fatalf("kinematic body moves: inverse mass %v", b.invMass())
	}

	b.SetKinematic(false)
	if got := b.rb.Material.GetMass(); !scalar.EqualWithinAbs(got, 4, 1e-9) {
		t.Errorf("mass: got %v, want 4", got)
	}

	massless := mustBody(t, w, physics.BodyDesc{Name: "m", Shape: physics.ShapeSphere, Size: mgl32.Vec3{1, 0, 0}}, at(5, 0, 0))
	massless.SetKinematic(false)
	if massless.moves() {
		t.Error("massless body became dynamic")
	}
}

func TestNewBody_Rejects(t *testing.T) {
	w := New()
	tests := []struct {
		name  string
		desc  physics.BodyDesc
		state physics.MotionState
	}{
		{"nil state", sphere("x", 1, 1), nil},
		{"negative mass", sphere("x", 1, -1), at(0, 0, 0)},
		{"negative size", sphere("x", -1, 1), at(0, 0, 0)},
		{"unknown shape", physics.BodyDesc{Name: "x", Shape: physics.Shape(42)}, at(0, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := w.NewBody(tt.desc, tt.state); err == nil {
				t.Error("expected error")
			}
		})
	}

	a := mustBody(t, w, sphere("a", 1, 1), at(0, 0, 0))
	if _, err := w.NewJoint(physics.JointDesc{Name: "self"}, a, a); err == nil {
		t.Error("self joint: expected error")
	}
}

func TestClose(t *testing.T) {
	w := New()
	mustBody(t, w, sphere("a", 1, 1), at(0, 0, 0))
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(w.bodies) != 0 || len(w.sim.Bodies) != 0 {
		t.Errorf("bodies after close: got %d, %d", len(w.bodies), len(w.sim.Bodies))
	}
	if _, err := w.NewBody(sphere("b", 1, 1), at(0, 0, 0)); err == nil {
		t.Error("NewBody after close: expected error")
	}
	w.Step(1, 10, 1.0/120.0)
}
