package model

import "github.com/Faultbox/mmdanim/internal/engine/anim"

// BeginAnimation resets every node to its rest values ahead of a frame.
// Keyframe overlays survive.
func (m *Model) BeginAnimation() {
	m.graph.BeginUpdate()
}

// EndAnimation closes a frame started by BeginAnimation.
func (m *Model) EndAnimation() {}

// UpdateMorphAnimation blends every morph at its current weight. Bone
// morphs write into the nodes' current values, so this runs after
// BeginAnimation and before UpdateNodeAnimation.
func (m *Model) UpdateMorphAnimation() {
	m.morphs.Update()
}

// UpdateNodeAnimation runs the node pass for the nodes on one side of the
// physics step: locals, globals, then append and IK in deform order.
func (m *Model) UpdateNodeAnimation(afterPhysics bool) {
	g := m.graph
	for i := 0; i < g.Len(); i++ {
		if g.Node(i).AfterPhysics == afterPhysics {
			g.UpdateLocal(i)
		}
	}
	g.UpdateRoots()

	m.updateAppendAndIK(func(i int) bool { return g.Node(i).AfterPhysics == afterPhysics })
	g.UpdateRoots()
}

func (m *Model) updateAppendAndIK(selected func(int) bool) {
	g := m.graph
	for _, i := range g.Sorted() {
		if !selected(i) {
			continue
		}
		if g.Node(i).HasAppend() {
			g.UpdateAppend(i)
			g.UpdateGlobal(i)
		}
		if s := m.ikOf[i]; s != nil && m.ik {
			s.Solve()
			g.UpdateGlobal(i)
		}
	}
}

// UpdatePhysicsAnimation steps the rigid bodies by elapsed seconds and
// writes them back into the graph.
func (m *Model) UpdatePhysicsAnimation(elapsed float32) {
	m.bridge.Update(elapsed)
}

// ResetPhysics moves every rigid body to the current pose and lets the
// simulation settle with no velocity.
func (m *Model) ResetPhysics() {
	m.bridge.ResetPose()
}

// Update skins the mesh against the current pose and morphs.
func (m *Model) Update() {
	m.skin.Update()
}

// UpdateAllAnimation runs one animation frame: keyframes at frame (nil a
// keeps the current overlays), morphs, the node pass before physics,
// physics for elapsed seconds, and the node pass after physics. Skinning
// is left to Update.
func (m *Model) UpdateAllAnimation(a *anim.Animation, frame, elapsed float32) {
	m.UpdateAllAnimationWeighted(a, frame, 1, elapsed)
}

// UpdateAllAnimationWeighted is UpdateAllAnimation with the motion blended
// over the saved base animation by weight.
func (m *Model) UpdateAllAnimationWeighted(a *anim.Animation, frame, weight, elapsed float32) {
	m.BeginAnimation()
	if a != nil {
		a.Evaluate(frame, weight)
	}
	m.UpdateMorphAnimation()
	m.UpdateNodeAnimation(false)
	m.UpdatePhysicsAnimation(elapsed)
	m.UpdateNodeAnimation(true)
	m.EndAnimation()
}

// InitializeAnimation clears every overlay and base snapshot, poses the
// model at rest with every node solved, and resets physics to that pose.
func (m *Model) InitializeAnimation() {
	m.ClearBaseAnimation()
	m.graph.ResetAnimation()
	m.morphs.ResetWeights()
	for _, s := range m.solvers {
		s.Enabled = true
	}

	m.BeginAnimation()
	m.UpdateMorphAnimation()
	g := m.graph
	for i := 0; i < g.Len(); i++ {
		g.UpdateLocal(i)
	}
	g.UpdateRoots()
	m.updateAppendAndIK(func(int) bool { return true })
	g.UpdateRoots()
	m.EndAnimation()

	m.ResetPhysics()
}

// SaveBaseAnimation snapshots node overlays, morph weights and IK
// switches as the base that weighted evaluation blends from.
func (m *Model) SaveBaseAnimation() {
	m.graph.SaveBaseAnimation()
	m.morphs.SaveBaseAnimation()
	for _, s := range m.solvers {
		s.SaveBaseAnimation()
	}
}

// LoadBaseAnimation restores the snapshot taken by SaveBaseAnimation.
func (m *Model) LoadBaseAnimation() {
	m.graph.LoadBaseAnimation()
	m.morphs.LoadBaseAnimation()
	for _, s := range m.solvers {
		s.LoadBaseAnimation()
	}
}

// ClearBaseAnimation resets the snapshot to the rest pose.
func (m *Model) ClearBaseAnimation() {
	m.graph.ClearBaseAnimation()
	m.morphs.ClearBaseAnimation()
	for _, s := range m.solvers {
		s.ClearBaseAnimation()
	}
}
