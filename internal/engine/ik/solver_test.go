package ik

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/mmdanim/internal/engine/node"
	mmath "github.com/Faultbox/mmdanim/pkg/math"
	"github.com/Faultbox/mmdanim/pkg/rig"
)

// twoBoneArm builds root(0,0,0) -> mid(1,0,0) -> tip(2,0,0) and a free IK
// handle at goal. Links are [mid, root]; tip is the target.
func twoBoneArm(goal mgl32.Vec3) (*node.Graph, *Solver) {
	bones := []rig.Bone{
		{Name: "root", Position: mgl32.Vec3{0, 0, 0}, Parent: rig.None, AppendParent: rig.None},
		{Name: "mid", Position: mgl32.Vec3{1, 0, 0}, Parent: 0, AppendParent: rig.None},
		{Name: "tip", Position: mgl32.Vec3{2, 0, 0}, Parent: 1, AppendParent: rig.None},
		{Name: "handle", Position: goal, Parent: rig.None, AppendParent: rig.None},
	}
	g := node.New(bones)
	s := New(g, 3, &rig.IK{
		Target:     2,
		Iterations: 100,
		LimitAngle: 1,
		Links:      []rig.IKLink{{Bone: 1}, {Bone: 0}},
	})
	return g, s
}

func TestSolver_Solve_ReachesGoal(t *testing.T) {
	tests := []struct {
		name string
		goal mgl32.Vec3
	}{
		{"planar", mgl32.Vec3{1, 1, 0}},
		{"out of plane", mgl32.Vec3{0.5, 1.2, 0.3}},
		{"behind", mgl32.Vec3{-0.8, 0.6, -0.4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, s := twoBoneArm(tt.goal)
			s.Solve()

			tip := mmath.Translation(g.Node(2).Global)
			if d := tip.Sub(tt.goal).Len(); d >= 1e-3 {
				t.Errorf("tip %v is %v from goal %v", tip, d, tt.goal)
			}
		})
	}
}

func TestSolver_Solve_BestDistanceMonotone(t *testing.T) {
	g, s := twoBoneArm(mgl32.Vec3{0.3, 0.9, 0.7})
	s.Iterations = 8
	s.LimitAngle = 0.1
	s.Solve()

	res := s.Result()
	if res.Iterations == 0 || len(res.History) != res.Iterations {
		t.Fatalf("history length %d for %d iterations", len(res.History), res.Iterations)
	}

	best := res.History[0]
	for _, d := range res.History[1:] {
		if d < best {
			best = d
		}
	}
	if best != res.BestDistance {
		t.Errorf("BestDistance: got %v, want min of history %v", res.BestDistance, best)
	}

	// The pose left behind is the best one seen
	tip := mmath.Translation(g.Node(2).Global)
	final := tip.Sub(mmath.Translation(g.Node(3).Global)).Len()
	if final > res.BestDistance+1e-5 {
		t.Errorf("final distance %v worse than best %v", final, res.BestDistance)
	}
}

func TestSolver_Solve_Rollback(t *testing.T) {
	// Goal out of reach: progress stalls and the last pass is rejected
	g, s := twoBoneArm(mgl32.Vec3{0, 5, 0})
	s.Solve()

	res := s.Result()
	if res.Iterations >= s.Iterations {
		t.Fatalf("expected early stop, ran %d iterations", res.Iterations)
	}
	last := res.History[len(res.History)-1]
	if last < res.BestDistance {
		t.Errorf("rejected pass %v better than best %v", last, res.BestDistance)
	}
	tip := mmath.Translation(g.Node(2).Global)
	if d := tip.Sub(mgl32.Vec3{0, 5, 0}).Len(); d > res.BestDistance+1e-4 {
		t.Errorf("pose not rolled back: distance %v, best %v", d, res.BestDistance)
	}
}

func TestSolver_Solve_Disabled(t *testing.T) {
	g, s := twoBoneArm(mgl32.Vec3{1, 1, 0})
	s.Enabled = false
	s.Solve()

	if got := mmath.Translation(g.Node(2).Global); got != (mgl32.Vec3{2, 0, 0}) {
		t.Errorf("disabled solver moved the chain: tip at %v", got)
	}
	if s.Result().Iterations != 0 {
		t.Errorf("disabled solver ran %d iterations", s.Result().Iterations)
	}
}

func TestSolver_Solve_SkipsTargetLink(t *testing.T) {
	g, s := twoBoneArm(mgl32.Vec3{1, 1, 0})
	s.Links = append([]Link{{Node: 2, plane: axisNone}}, s.Links...)
	s.Solve()

	if g.Node(2).IKRotate != mgl32.QuatIdent() {
		t.Errorf("target link rotated: %v", g.Node(2).IKRotate)
	}
}

// leg builds hip(0,2,0) -> knee(0,1,0) -> ankle(0,0,0) with a knee link.
func leg(goal mgl32.Vec3) (*node.Graph, *Solver) {
	bones := []rig.Bone{
		{Name: "hip", Position: mgl32.Vec3{0, 2, 0}, Parent: rig.None, AppendParent: rig.None},
		{Name: "knee", Position: mgl32.Vec3{0, 1, 0}, Parent: 0, AppendParent: rig.None},
		{Name: "ankle", Position: mgl32.Vec3{0, 0, 0}, Parent: 1, AppendParent: rig.None},
		{Name: "leg IK", Position: goal, Parent: rig.None, AppendParent: rig.None},
	}
	g := node.New(bones)
	s := New(g, 3, &rig.IK{
		Target:     2,
		Iterations: 40,
		LimitAngle: 2,
		Links:      []rig.IKLink{{Bone: 1, Knee: true}, {Bone: 0}},
	})
	return g, s
}

func TestSolver_Knee(t *testing.T) {
	goal := mgl32.Vec3{0, 0.6, 0.4}
	g, s := leg(goal)

	if s.Links[0].plane != axisX {
		t.Fatalf("knee link should solve on the X plane, got %v", s.Links[0].plane)
	}
	s.Solve()

	knee := g.Node(1)
	r := knee.IKRotate.Mul(knee.AnimateRotate())
	if mgl32.Abs(r.V[1]) > 1e-5 || mgl32.Abs(r.V[2]) > 1e-5 {
		t.Errorf("knee rotated off its X axis: %v", r)
	}
	angle := s.Links[0].planeAngle
	if angle < kneeMin[0]-1e-6 || angle > kneeMax[0]+1e-6 {
		t.Errorf("knee angle %v outside [%v, %v]", angle, kneeMin[0], kneeMax[0])
	}
	d := mmath.Translation(g.Node(2).Global).Sub(goal).Len()
	if d >= goal.Sub(mgl32.Vec3{0, 0, 0}).Len() {
		t.Errorf("knee solve did not bring the ankle closer: %v", d)
	}
}

func TestSolver_KneeByName(t *testing.T) {
	bones := []rig.Bone{
		{Name: "左足", Position: mgl32.Vec3{0, 2, 0}, Parent: rig.None, AppendParent: rig.None},
		{Name: "左ひざ", Position: mgl32.Vec3{0, 1, 0}, Parent: 0, AppendParent: rig.None},
		{Name: "左足首", Position: mgl32.Vec3{0, 0, 0}, Parent: 1, AppendParent: rig.None},
	}
	g := node.New(bones)
	s := New(g, 2, &rig.IK{Target: 2, Iterations: 1, Links: []rig.IKLink{{Bone: 1}}})
	if !s.Links[0].Limit || s.Links[0].plane != axisX {
		t.Errorf("link named 左ひざ should get knee limits, got %+v", s.Links[0])
	}
}

func TestSolver_EulerLimits(t *testing.T) {
	_, s := twoBoneArm(mgl32.Vec3{0.2, 1.5, 0.6})
	lim := mgl32.Vec3{0.3, 0.3, 0.3}
	for i := range s.Links {
		s.Links[i].Limit = true
		s.Links[i].Min = lim.Mul(-1)
		s.Links[i].Max = lim
		s.Links[i].plane = planeAxis(s.Links[i])
	}
	s.Solve()

	for _, l := range s.Links {
		for a := 0; a < 3; a++ {
			if l.prevAngle[a] < -lim[a]-1e-5 || l.prevAngle[a] > lim[a]+1e-5 {
				t.Errorf("link %d axis %d angle %v outside limit", l.Node, a, l.prevAngle[a])
			}
		}
	}
}

func TestPlaneAxis(t *testing.T) {
	tests := []struct {
		name string
		link Link
		want axis
	}{
		{"unlimited", Link{}, axisNone},
		{"x only", Link{Limit: true, Min: mgl32.Vec3{-1, 0, 0}, Max: mgl32.Vec3{1, 0, 0}}, axisX},
		{"y only", Link{Limit: true, Max: mgl32.Vec3{0, 1, 0}}, axisY},
		{"z only", Link{Limit: true, Min: mgl32.Vec3{0, 0, -1}}, axisZ},
		{"two axes", Link{Limit: true, Min: mgl32.Vec3{-1, -1, 0}, Max: mgl32.Vec3{1, 1, 0}}, axisNone},
		{"locked", Link{Limit: true}, axisNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := planeAxis(tt.link); got != tt.want {
				t.Errorf("planeAxis: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSolver_BaseAnimation(t *testing.T) {
	_, s := twoBoneArm(mgl32.Vec3{1, 1, 0})
	s.Enabled = false
	s.SaveBaseAnimation()
	s.Enabled = true
	s.LoadBaseAnimation()
	if s.Enabled {
		t.Error("LoadBaseAnimation did not restore disabled state")
	}
	s.ClearBaseAnimation()
	if !s.BaseEnabled() {
		t.Error("ClearBaseAnimation should reset to enabled")
	}
}

func TestSolver_Solve_TwoBoneFewIterations(t *testing.T) {
	goal := mgl32.Vec3{1, 1, 0}
	g, s := twoBoneArm(goal)
	s.Iterations = 10
	s.LimitAngle = 2 * math.Pi
	s.Solve()

	tip := mmath.Translation(g.Node(2).Global)
	if d := tip.Sub(goal).Len(); d >= 1e-3 {
		t.Errorf("tip %v is %v from goal %v", tip, d, goal)
	}
	if res := s.Result(); res.BestDistance >= 1e-3 {
		t.Errorf("BestDistance: got %v, want < 1e-3", res.BestDistance)
	}
}
