package physics

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/mmdanim/internal/engine/node"
	mmath "github.com/Faultbox/mmdanim/pkg/math"
)

// activeState is the motion state a body uses while simulated.
type activeState interface {
	MotionState
	// reset re-reads the pose from the bound node.
	reset()
	// nodeGlobal returns the node global implied by the body pose, or
	// false if the body does not drive its node.
	nodeGlobal() (mgl32.Mat4, bool)
}

// kinematicState drives a body from its node: world = node.Global * offset.
type kinematicState struct {
	graph  *node.Graph
	node   int
	offset mgl32.Mat4
}

func (s *kinematicState) WorldTransform() mgl32.Mat4 {
	if s.node == node.None {
		return s.offset
	}
	return s.graph.Node(s.node).Global.Mul4(s.offset)
}

func (s *kinematicState) SetWorldTransform(mgl32.Mat4) {}

// dynamicState lets the simulator own the pose and maps it back to the
// node as world * inverse(offset).
type dynamicState struct {
	graph     *node.Graph
	node      int
	offset    mgl32.Mat4
	invOffset mgl32.Mat4
	world     mgl32.Mat4
}

func newDynamicState(g *node.Graph, n int, offset mgl32.Mat4) *dynamicState {
	s := &dynamicState{graph: g, node: n, offset: offset, invOffset: offset.Inv()}
	s.reset()
	return s
}

func (s *dynamicState) WorldTransform() mgl32.Mat4     { return s.world }
func (s *dynamicState) SetWorldTransform(m mgl32.Mat4) { s.world = m }
func (s *dynamicState) nodeGlobal() (mgl32.Mat4, bool) { return s.world.Mul4(s.invOffset), true }
func (s *dynamicState) reset()                         { s.world = s.graph.Node(s.node).Global.Mul4(s.offset) }

// boneMergeState is a dynamicState that keeps the node's own translation
// and only takes rotation from the simulation.
type boneMergeState struct {
	dynamicState
}

func newBoneMergeState(g *node.Graph, n int, offset mgl32.Mat4) *boneMergeState {
	return &boneMergeState{dynamicState: *newDynamicState(g, n, offset)}
}

func (s *boneMergeState) nodeGlobal() (mgl32.Mat4, bool) {
	m := s.world.Mul4(s.invOffset)
	return mmath.SetTranslation(m, mmath.Translation(s.graph.Node(s.node).Global)), true
}

// defaultState holds a pose of its own. It serves unbound dynamic bodies
// and the ground plane.
type defaultState struct {
	initial mgl32.Mat4
	world   mgl32.Mat4
}

func newDefaultState(m mgl32.Mat4) *defaultState {
	return &defaultState{initial: m, world: m}
}

func (s *defaultState) WorldTransform() mgl32.Mat4     { return s.world }
func (s *defaultState) SetWorldTransform(m mgl32.Mat4) { s.world = m }
func (s *defaultState) nodeGlobal() (mgl32.Mat4, bool) { return mgl32.Mat4{}, false }
func (s *defaultState) reset()                         { s.world = s.initial }
