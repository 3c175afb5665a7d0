// Package ik implements the cyclic-coordinate-descent IK solver used by
// MMD rigs, including single-axis (knee) links and Euler limits.
package ik

import (
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/mmdanim/internal/engine/node"
	mmath "github.com/Faultbox/mmdanim/pkg/math"
	"github.com/Faultbox/mmdanim/pkg/rig"
)

// Links turning by less than this (radians) are left alone.
const minStep = 1.0e-3 * math.Pi / 180

var (
	kneeMin = mgl32.Vec3{mgl32.DegToRad(0.5), 0, 0}
	kneeMax = mgl32.Vec3{mgl32.DegToRad(180), 0, 0}
)

type axis int

const (
	axisNone axis = iota - 1
	axisX
	axisY
	axisZ
)

func (a axis) vec() mgl32.Vec3 {
	switch a {
	case axisX:
		return mmath.AxisX
	case axisY:
		return mmath.AxisY
	default:
		return mmath.AxisZ
	}
}

// Link is one joint of the chain plus its per-solve scratch state.
type Link struct {
	Node  int
	Limit bool
	Min   mgl32.Vec3
	Max   mgl32.Vec3

	plane      axis
	prevAngle  mgl32.Vec3
	saveIK     mgl32.Quat
	planeAngle float32
}

// Result describes the last Solve call.
type Result struct {
	Iterations   int
	BestDistance float32
	// History holds the handle-to-target distance after each iteration,
	// including a final rejected one.
	History []float32
}

// Solver drives Target onto IKNode by rotating the chain links.
type Solver struct {
	graph *node.Graph

	IKNode     int
	Target     int
	Links      []Link
	Iterations int
	LimitAngle float32
	Enabled    bool

	baseEnabled bool
	result      Result
}

// New creates a solver for the IK description owned by node ikNode and
// marks every chain link as IK-driven.
func New(g *node.Graph, ikNode int, desc *rig.IK) *Solver {
	s := &Solver{
		graph:       g,
		IKNode:      ikNode,
		Target:      desc.Target,
		Iterations:  desc.Iterations,
		LimitAngle:  desc.LimitAngle,
		Enabled:     true,
		baseEnabled: true,
	}
	for _, l := range desc.Links {
		link := Link{Node: l.Bone, Limit: l.Limit, Min: l.Min, Max: l.Max}
		if l.Knee || strings.Contains(g.Node(l.Bone).Name, "ひざ") {
			link.Limit, link.Min, link.Max = true, kneeMin, kneeMax
		}
		link.plane = planeAxis(link)
		g.Node(l.Bone).EnableIK = true
		s.Links = append(s.Links, link)
	}
	return s
}

// planeAxis returns the only axis with a non-empty limit range, if any.
func planeAxis(l Link) axis {
	if !l.Limit {
		return axisNone
	}
	found := axisNone
	for a := axisX; a <= axisZ; a++ {
		if l.Min[a] == 0 && l.Max[a] == 0 {
			continue
		}
		if found != axisNone {
			return axisNone
		}
		found = a
	}
	return found
}

// Name returns the name of the handle node.
func (s *Solver) Name() string { return s.graph.Node(s.IKNode).Name }

// Result returns diagnostics for the last Solve.
func (s *Solver) Result() Result { return s.result }

// SaveBaseAnimation snapshots the enable flag.
func (s *Solver) SaveBaseAnimation() { s.baseEnabled = s.Enabled }

// LoadBaseAnimation restores the enable flag saved by SaveBaseAnimation.
func (s *Solver) LoadBaseAnimation() { s.Enabled = s.baseEnabled }

// ClearBaseAnimation resets the saved flag to enabled.
func (s *Solver) ClearBaseAnimation() { s.baseEnabled = true }

// BaseEnabled returns the saved enable flag.
func (s *Solver) BaseEnabled() bool { return s.baseEnabled }

func (s *Solver) position(i int) mgl32.Vec3 {
	return mmath.Translation(s.graph.Node(i).Global)
}

func (s *Solver) distance() float32 {
	return s.position(s.IKNode).Sub(s.position(s.Target)).Len()
}

func (s *Solver) refresh(i int) {
	s.graph.UpdateLocal(i)
	s.graph.UpdateGlobal(i)
}

// Solve rotates the chain toward the handle. It stops after Iterations
// passes or as soon as a pass fails to reduce the distance, in which case
// the best rotations seen are restored.
func (s *Solver) Solve() {
	s.result = Result{}
	if !s.Enabled || len(s.Links) == 0 {
		return
	}

	for i := range s.Links {
		l := &s.Links[i]
		l.prevAngle = mgl32.Vec3{}
		l.planeAngle = 0
		l.saveIK = mgl32.QuatIdent()
		s.graph.Node(l.Node).IKRotate = mgl32.QuatIdent()
		s.refresh(l.Node)
	}

	best := float32(math.MaxFloat32)
	for iter := 0; iter < s.Iterations; iter++ {
		s.solveCore(iter)
		s.result.Iterations = iter + 1

		dist := s.distance()
		s.result.History = append(s.result.History, dist)
		if dist < best {
			best = dist
			for i := range s.Links {
				s.Links[i].saveIK = s.graph.Node(s.Links[i].Node).IKRotate
			}
			continue
		}

		for i := range s.Links {
			s.graph.Node(s.Links[i].Node).IKRotate = s.Links[i].saveIK
			s.refresh(s.Links[i].Node)
		}
		break
	}
	s.result.BestDistance = best
}

// localVectors returns unit vectors from link i's origin to the handle and
// to the target, in link i's frame. ok is false if either is degenerate.
func (s *Solver) localVectors(link *Link) (ikVec, targetVec mgl32.Vec3, ok bool) {
	inv := s.graph.Node(link.Node).Global.Inv()
	ikVec = mmath.Normalize(mmath.TransformPoint(inv, s.position(s.IKNode)))
	targetVec = mmath.Normalize(mmath.TransformPoint(inv, s.position(s.Target)))
	zero := mgl32.Vec3{}
	return ikVec, targetVec, ikVec != zero && targetVec != zero
}

func (s *Solver) solveCore(iter int) {
	for i := range s.Links {
		link := &s.Links[i]
		if link.Node == s.Target {
			continue
		}
		if link.plane != axisNone {
			s.solvePlane(iter, link)
			continue
		}

		ikVec, targetVec, ok := s.localVectors(link)
		if !ok {
			continue
		}
		angle := mmath.Acos(targetVec.Dot(ikVec))
		if angle < minStep {
			continue
		}
		angle = mgl32.Clamp(angle, -s.LimitAngle, s.LimitAngle)

		cross := mmath.Normalize(targetVec.Cross(ikVec))
		if cross == (mgl32.Vec3{}) {
			continue
		}

		n := s.graph.Node(link.Node)
		animRot := n.AnimateRotate()
		chainRot := n.IKRotate.Mul(animRot).Mul(mgl32.QuatRotate(angle, cross))

		if link.Limit {
			xyz := mmath.DecomposeXYZ(chainRot, link.prevAngle)
			clamped := mmath.Clamp3(xyz, link.Min, link.Max)
			step := mgl32.Vec3{s.LimitAngle, s.LimitAngle, s.LimitAngle}
			clamped = mmath.Clamp3(clamped.Sub(link.prevAngle), step.Mul(-1), step).Add(link.prevAngle)
			chainRot = mmath.QuatFromEulerXYZ(clamped)
			link.prevAngle = clamped
		}

		n.IKRotate = chainRot.Mul(animRot.Inverse()).Normalize()
		s.refresh(link.Node)
	}
}

// solvePlane turns a single-axis link about its axis by the CCD angle,
// choosing the sign that brings the target closer to the handle.
func (s *Solver) solvePlane(iter int, link *Link) {
	ikVec, targetVec, ok := s.localVectors(link)
	if !ok {
		return
	}
	dot := mgl32.Clamp(targetVec.Dot(ikVec), -1, 1)
	angle := mmath.Acos(dot)
	angle = mgl32.Clamp(angle, -s.LimitAngle, s.LimitAngle)

	ax := link.plane.vec()
	dot1 := mgl32.QuatRotate(angle, ax).Rotate(targetVec).Dot(ikVec)
	dot2 := mgl32.QuatRotate(-angle, ax).Rotate(targetVec).Dot(ikVec)

	// Near-parallel planes: neither direction helps, keep the link still.
	if iter > 0 && dot1 <= dot && dot2 <= dot {
		return
	}

	newAngle := link.planeAngle
	if dot1 > dot2 {
		newAngle += angle
	} else {
		newAngle -= angle
	}

	lo, hi := link.Min[link.plane], link.Max[link.plane]
	if iter == 0 && (newAngle < lo || newAngle > hi) {
		if -newAngle > lo && -newAngle < hi {
			newAngle = -newAngle
		} else {
			half := (lo + hi) * 0.5
			if absf(half-newAngle) > absf(half+newAngle) {
				newAngle = -newAngle
			}
		}
	}
	newAngle = mgl32.Clamp(newAngle, lo, hi)
	link.planeAngle = newAngle

	n := s.graph.Node(link.Node)
	n.IKRotate = mgl32.QuatRotate(newAngle, ax).Mul(n.AnimateRotate().Inverse()).Normalize()
	s.refresh(link.Node)
}

func absf(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
