package anim

import (
	"sort"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/Faultbox/mmdanim/internal/engine/ik"
	"github.com/Faultbox/mmdanim/internal/engine/morph"
	"github.com/Faultbox/mmdanim/internal/engine/node"
	mmath "github.com/Faultbox/mmdanim/pkg/math"
	"github.com/Faultbox/mmdanim/pkg/rig"
)

func near(a, b float32, eps float64) bool {
	return scalar.EqualWithinAbs(float64(a), float64(b), eps)
}

// target is root -> arm -> hand plus an IK handle, one morph and one IK
// solver on the handle.
type target struct {
	graph   *node.Graph
	morphs  *morph.System
	solvers []*ik.Solver
}

func newTarget(t *testing.T) *target {
	t.Helper()
	m := &rig.Model{
		Bones: []rig.Bone{
			{Name: "root", Parent: rig.None, AppendParent: rig.None},
			{Name: "arm", Position: mgl32.Vec3{1, 0, 0}, Parent: 0, AppendParent: rig.None},
			{Name: "hand", Position: mgl32.Vec3{2, 0, 0}, Parent: 1, AppendParent: rig.None},
			{Name: "handIK", Position: mgl32.Vec3{2, 0, 0}, Parent: rig.None, AppendParent: rig.None},
		},
		Morphs: []rig.Morph{{Name: "smile", Type: rig.MorphPosition}},
	}
	g := node.New(m.Bones)
	ms, err := morph.New(m, g)
	if err != nil {
		t.Fatalf("morph.New: %v", err)
	}
	s := ik.New(g, 3, &rig.IK{Target: 2, Iterations: 10, LimitAngle: 1, Links: []rig.IKLink{{Bone: 1}, {Bone: 0}}})
	return &target{graph: g, morphs: ms, solvers: []*ik.Solver{s}}
}

func (tg *target) bind(m *Motion) *Animation {
	return Bind(m, tg.graph, tg.morphs, tg.solvers, nil)
}

func TestBound_IndependentOfStart(t *testing.T) {
	keys := []MorphKey{{Frame: 0}, {Frame: 10}, {Frame: 20}, {Frame: 30}}
	for _, tm := range []float32{-5, 0, 0.5, 9.99, 10, 15, 20, 29, 30, 31, 100} {
		want := sort.Search(len(keys), func(i int) bool { return float32(keys[i].Frame) > tm })
		for start := -1; start <= len(keys)+1; start++ {
			if got := bound(keys, tm, start); got != want {
				t.Errorf("t=%v start=%d: got %d, want %d", tm, start, got, want)
			}
		}
	}
}

func TestAnimation_NodeLinear(t *testing.T) {
	tg := newTarget(t)
	m := NewMotion("walk")
	m.AddNodeKey("arm", NewNodeKey(0, mgl32.Vec3{}, mgl32.QuatIdent()))
	m.AddNodeKey("arm", NewNodeKey(10, mgl32.Vec3{10, 0, 0}, mgl32.QuatRotate(mgl32.DegToRad(90), mmath.AxisY)))
	a := tg.bind(m)

	a.Evaluate(5, 1)
	n := tg.graph.Node(1)
	if !n.AnimTranslate.ApproxEqualThreshold(mgl32.Vec3{5, 0, 0}, 1e-3) {
		t.Errorf("translate: got %v, want (5,0,0)", n.AnimTranslate)
	}
	want := mgl32.QuatRotate(mgl32.DegToRad(45), mmath.AxisY)
	if !mmath.ApproxEqualQuat(n.AnimRotate, want, 1e-5) {
		t.Errorf("rotate: got %v, want %v", n.AnimRotate, want)
	}
}

func TestAnimation_HoldsOutsideKeys(t *testing.T) {
	tests := []struct {
		name  string
		frame float32
		want  mgl32.Vec3
	}{
		{"before first", 0, mgl32.Vec3{1, 0, 0}},
		{"on first", 10, mgl32.Vec3{1, 0, 0}},
		{"on last", 20, mgl32.Vec3{3, 0, 0}},
		{"after last", 50, mgl32.Vec3{3, 0, 0}},
	}
	tg := newTarget(t)
	m := NewMotion("hold")
	m.AddNodeKey("arm", NewNodeKey(20, mgl32.Vec3{3, 0, 0}, mgl32.QuatIdent()))
	m.AddNodeKey("arm", NewNodeKey(10, mgl32.Vec3{1, 0, 0}, mgl32.QuatIdent()))
	a := tg.bind(m)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a.Evaluate(tt.frame, 1)
			if got := tg.graph.Node(1).AnimTranslate; got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAnimation_PerAxisCurves(t *testing.T) {
	tg := newTarget(t)
	m := NewMotion("ease")
	m.AddNodeKey("arm", NewNodeKey(0, mgl32.Vec3{}, mgl32.QuatIdent()))
	k := NewNodeKey(10, mgl32.Vec3{10, 10, 10}, mgl32.QuatIdent())
	k.TranslateY = mmath.BezierFromBytes(127, 0, 127, 0)
	m.AddNodeKey("arm", k)
	a := tg.bind(m)

	a.Evaluate(5, 1)
	got := tg.graph.Node(1).AnimTranslate
	if !near(got[0], 5, 1e-3) || !near(got[2], 5, 1e-3) {
		t.Errorf("linear axes: got %v, want x = z = 5", got)
	}
	// y = t³ where 1-(1-t)³ = 0.5.
	if !near(got[1], 0.0878, 1e-3) {
		t.Errorf("eased axis: got %v, want 0.0878", got[1])
	}
}

func TestAnimation_CacheDoesNotChangeResult(t *testing.T) {
	m := NewMotion("dance")
	for f := int32(0); f <= 60; f += 7 {
		k := NewNodeKey(f, mgl32.Vec3{float32(f), float32(f % 3), 0}, mgl32.QuatRotate(float32(f)*0.05, mmath.AxisZ))
		k.Rotation = mmath.BezierFromBytes(64, 0, 64, 127)
		m.AddNodeKey("arm", k)
		m.AddMorphKey("smile", MorphKey{Frame: f, Weight: float32(f%2) * 0.5})
	}

	warm := newTarget(t)
	wa := warm.bind(m)
	frames := []float32{0, 1.5, 3, 6.9, 7, 13, 40, 2, 59.5, 61, 70, 0.25}
	for _, f := range frames {
		wa.Evaluate(f, 1)

		cold := newTarget(t)
		cold.bind(m).Evaluate(f, 1)

		wn, cn := warm.graph.Node(1), cold.graph.Node(1)
		if wn.AnimTranslate != cn.AnimTranslate || wn.AnimRotate != cn.AnimRotate {
			t.Errorf("frame %v: warm %v %v, cold %v %v", f, wn.AnimTranslate, wn.AnimRotate, cn.AnimTranslate, cn.AnimRotate)
		}
		if w, c := warm.morphs.Morph(0).Weight, cold.morphs.Morph(0).Weight; w != c {
			t.Errorf("frame %v morph: warm %v, cold %v", f, w, c)
		}
	}
}

func TestAnimation_MorphLinear(t *testing.T) {
	tg := newTarget(t)
	m := NewMotion("smile")
	m.AddMorphKey("smile", MorphKey{Frame: 10, Weight: 0.2})
	m.AddMorphKey("smile", MorphKey{Frame: 20, Weight: 1})
	a := tg.bind(m)

	tests := []struct {
		frame float32
		want  float32
	}{
		{0, 0.2},
		{15, 0.6},
		{17.5, 0.8},
		{25, 1},
	}
	for _, tt := range tests {
		a.Evaluate(tt.frame, 1)
		if got := tg.morphs.Morph(0).Weight; !near(got, tt.want, 1e-6) {
			t.Errorf("frame %v: got %v, want %v", tt.frame, got, tt.want)
		}
	}
}

func TestAnimation_IKHeld(t *testing.T) {
	tg := newTarget(t)
	m := NewMotion("ik")
	m.AddIKKey("handIK", IKKey{Frame: 5, Enabled: false})
	m.AddIKKey("handIK", IKKey{Frame: 10, Enabled: true})
	a := tg.bind(m)
	s := tg.solvers[0]

	tests := []struct {
		frame float32
		want  bool
	}{
		{0, false},
		{5, false},
		{9.9, false},
		{10, true},
		{99, true},
	}
	for _, tt := range tests {
		a.Evaluate(tt.frame, 1)
		if s.Enabled != tt.want {
			t.Errorf("frame %v: got %v, want %v", tt.frame, s.Enabled, tt.want)
		}
	}

	// Below full weight the saved state wins.
	s.Enabled = true
	s.SaveBaseAnimation()
	a.Evaluate(0, 0.5)
	if !s.Enabled {
		t.Error("weighted evaluate overrode the base IK state")
	}
}

func TestAnimation_WeightBlendsFromBase(t *testing.T) {
	tg := newTarget(t)
	n := tg.graph.Node(1)
	n.AnimTranslate = mgl32.Vec3{0, 4, 0}
	tg.morphs.Morph(0).Weight = 1
	tg.graph.SaveBaseAnimation()
	tg.morphs.SaveBaseAnimation()

	m := NewMotion("blend")
	m.AddNodeKey("arm", NewNodeKey(0, mgl32.Vec3{2, 0, 0}, mgl32.QuatRotate(1, mmath.AxisX)))
	m.AddMorphKey("smile", MorphKey{Frame: 0, Weight: 0})
	tg.bind(m).Evaluate(0, 0.25)

	if !n.AnimTranslate.ApproxEqualThreshold(mgl32.Vec3{0.5, 3, 0}, 1e-6) {
		t.Errorf("translate: got %v, want (0.5,3,0)", n.AnimTranslate)
	}
	if !mmath.ApproxEqualQuat(n.AnimRotate, mgl32.QuatRotate(0.25, mmath.AxisX), 1e-6) {
		t.Errorf("rotate: got %v", n.AnimRotate)
	}
	if got := tg.morphs.Morph(0).Weight; !near(got, 0.75, 1e-6) {
		t.Errorf("morph: got %v, want 0.75", got)
	}
}

func TestBind_Unbound(t *testing.T) {
	tg := newTarget(t)
	m := NewMotion("mixed")
	m.AddNodeKey("arm", NewNodeKey(3, mgl32.Vec3{}, mgl32.QuatIdent()))
	m.AddNodeKey("tail", NewNodeKey(40, mgl32.Vec3{}, mgl32.QuatIdent()))
	m.AddMorphKey("frown", MorphKey{Frame: 8})
	m.AddIKKey("footIK", IKKey{Frame: 12})
	m.Nodes["empty"] = nil

	a := tg.bind(m)
	want := []string{"empty", "tail", "frown", "footIK"}
	got := a.Unbound()
	if len(got) != len(want) {
		t.Fatalf("unbound: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("unbound[%d]: got %q, want %q", i, got[i], want[i])
		}
	}
	if a.MaxFrame() != 40 {
		t.Errorf("max frame: got %d, want 40", a.MaxFrame())
	}
}

func TestBind_NilMorphs(t *testing.T) {
	tg := newTarget(t)
	m := NewMotion("no morphs")
	m.AddMorphKey("smile", MorphKey{Frame: 0, Weight: 1})
	a := Bind(m, tg.graph, nil, nil, nil)
	a.Evaluate(0, 1)
	if len(a.Unbound()) != 1 {
		t.Errorf("unbound: got %v, want [smile]", a.Unbound())
	}
}

func TestPose_Apply(t *testing.T) {
	tg := newTarget(t)
	p := &Pose{
		Name:   "wave",
		Nodes:  map[string]PoseNode{"arm": {Translate: mgl32.Vec3{0, 2, 0}, Rotate: mgl32.QuatRotate(0.5, mmath.AxisZ)}, "ghost": {Rotate: mgl32.QuatIdent()}},
		Morphs: map[string]float32{"smile": 0.8},
	}
	unbound := p.Apply(tg.graph, tg.morphs, 1)
	if len(unbound) != 1 || unbound[0] != "ghost" {
		t.Errorf("unbound: got %v, want [ghost]", unbound)
	}
	n := tg.graph.Node(1)
	if !n.AnimTranslate.ApproxEqualThreshold(mgl32.Vec3{0, 2, 0}, 1e-6) {
		t.Errorf("translate: got %v", n.AnimTranslate)
	}
	if !mmath.ApproxEqualQuat(n.AnimRotate, mgl32.QuatRotate(0.5, mmath.AxisZ), 1e-6) {
		t.Errorf("rotate: got %v", n.AnimRotate)
	}
	if got := tg.morphs.Morph(0).Weight; !near(got, 0.8, 1e-6) {
		t.Errorf("morph: got %v, want 0.8", got)
	}
}
