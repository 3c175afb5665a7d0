// Package model builds an animated model from a rig description and runs
// the per-frame animation pipeline over it.
package model

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/mmdanim/internal/engine/anim"
	"github.com/Faultbox/mmdanim/internal/engine/ik"
	"github.com/Faultbox/mmdanim/internal/engine/morph"
	"github.com/Faultbox/mmdanim/internal/engine/node"
	"github.com/Faultbox/mmdanim/internal/engine/physics"
	"github.com/Faultbox/mmdanim/internal/engine/physics/xpbd"
	"github.com/Faultbox/mmdanim/internal/engine/skin"
	"github.com/Faultbox/mmdanim/pkg/rig"
)

// Options configures model construction.
type Options struct {
	// Physics enables rigid bodies. Simulator defaults to the feather
	// backed xpbd simulator.
	Physics       bool
	PhysicsConfig physics.Config
	Simulator     physics.Simulator

	// IK disables every IK solver when false.
	IK bool

	// SkinWorkers is the skinning worker count; below 2 skins serially.
	SkinWorkers int

	Curve anim.Curve

	Logger *zap.Logger
}

// DefaultOptions enables physics and IK with serial skinning.
func DefaultOptions() Options {
	return Options{
		Physics:       true,
		PhysicsConfig: physics.DefaultConfig(),
		IK:            true,
		SkinWorkers:   1,
		Curve:         anim.DefaultCurve(),
	}
}

// Model is a rig with its animation state.
type Model struct {
	desc    *rig.Model
	repairs []rig.Repair

	graph   *node.Graph
	solvers []*ik.Solver
	ikOf    []*ik.Solver
	morphs  *morph.System
	skin    *skin.Engine
	world   *physics.World
	bridge  *physics.Bridge

	ik    bool
	curve anim.Curve
	log   *zap.Logger
}

// New validates a copy of src, repairing broken references, and builds
// the node graph, IK solvers, morphs, skinning and physics for it. src is
// not modified.
func New(src *rig.Model, opts Options) (*Model, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	desc, err := src.Clone()
	if err != nil {
		return nil, fmt.Errorf("copy model %q: %w", src.Name, err)
	}
	repairs, err := desc.Validate()
	if err != nil {
		return nil, fmt.Errorf("model %q: %w", desc.Name, err)
	}
	for _, r := range repairs {
		log.Warn("model repaired", zap.String("model", desc.Name), zap.Stringer("repair", r))
	}

	m := &Model{
		desc:    desc,
		repairs: repairs,
		graph:   node.New(desc.Bones),
		ik:      opts.IK,
		curve:   opts.Curve,
		log:     log,
	}
	if m.curve.Iterations <= 0 {
		m.curve = anim.DefaultCurve()
	}

	m.ikOf = make([]*ik.Solver, m.graph.Len())
	for i := range desc.Bones {
		if desc.Bones[i].IK == nil {
			continue
		}
		s := ik.New(m.graph, i, desc.Bones[i].IK)
		m.solvers = append(m.solvers, s)
		m.ikOf[i] = s
	}

	if m.morphs, err = morph.New(desc, m.graph); err != nil {
		return nil, fmt.Errorf("model %q morphs: %w", desc.Name, err)
	}
	if m.skin, err = skin.New(desc, m.graph, m.morphs); err != nil {
		return nil, fmt.Errorf("model %q skinning: %w", desc.Name, err)
	}
	m.skin.SetParallelHint(opts.SkinWorkers)

	if opts.Physics {
		sim := opts.Simulator
		if sim == nil {
			sim = xpbd.New()
		}
		if m.world, err = physics.NewWorld(sim, opts.PhysicsConfig, log.Named("physics")); err != nil {
			m.skin.Close()
			return nil, fmt.Errorf("model %q: %w", desc.Name, err)
		}
	}
	if m.bridge, err = physics.NewBridge(m.world, m.graph, desc, log.Named("physics")); err != nil {
		m.closeWorld()
		m.skin.Close()
		return nil, fmt.Errorf("model %q: %w", desc.Name, err)
	}

	m.morphs.Update()
	log.Info("model built",
		zap.String("model", desc.Name),
		zap.Int("vertices", len(desc.Vertices)),
		zap.Int("bones", len(desc.Bones)),
		zap.Int("ik_solvers", len(m.solvers)),
		zap.Int("morphs", len(desc.Morphs)),
		zap.Int("rigid_bodies", len(m.bridge.Bodies())),
		zap.Int("repairs", len(repairs)))
	return m, nil
}

func (m *Model) closeWorld() {
	if m.world == nil {
		return
	}
	if err := m.world.Close(); err != nil {
		m.log.Warn("physics world close failed", zap.Error(err))
	}
	m.world = nil
}

// Close releases the physics world and the skinning workers.
func (m *Model) Close() {
	m.bridge.Close()
	m.closeWorld()
	m.skin.Close()
}

// Name returns the model name.
func (m *Model) Name() string { return m.desc.Name }

// Repairs returns the fixes applied to the description at build time.
func (m *Model) Repairs() []rig.Repair { return m.repairs }

// Graph returns the node graph.
func (m *Model) Graph() *node.Graph { return m.graph }

// IKSolvers returns the solvers in bone order.
func (m *Model) IKSolvers() []*ik.Solver { return m.solvers }

// Morphs returns the morph system.
func (m *Model) Morphs() *morph.System { return m.morphs }

// Physics returns the physics bridge.
func (m *Model) Physics() *physics.Bridge { return m.bridge }

// SetSkinWorkers changes the skinning worker count.
func (m *Model) SetSkinWorkers(n int) { m.skin.SetParallelHint(n) }

// NodeGlobal returns node i's model-space transform.
func (m *Model) NodeGlobal(i int) mgl32.Mat4 { return m.graph.Node(i).Global }

// Positions returns the skinned positions from the last Update.
func (m *Model) Positions() []mgl32.Vec3 { return m.skin.Positions() }

// Normals returns the skinned normals from the last Update.
func (m *Model) Normals() []mgl32.Vec3 { return m.skin.Normals() }

// UVs returns the morphed UVs from the last Update.
func (m *Model) UVs() []mgl32.Vec2 { return m.skin.UVs() }

// Materials returns the morphed materials.
func (m *Model) Materials() []morph.Material { return m.morphs.Materials() }

// Indices returns the triangle list and the element size in bytes it was
// stored with.
func (m *Model) Indices() ([]uint32, int) { return m.desc.Indices, m.desc.IndexSize }

// SubMeshes returns the per-material index runs.
func (m *Model) SubMeshes() []rig.SubMesh { return m.desc.SubMeshes }

// RestBounds returns the bounding box of the undeformed mesh.
func (m *Model) RestBounds() (lo, hi mgl32.Vec3) { return m.desc.Bounds() }

// Bind resolves a motion against this model.
func (m *Model) Bind(mo *anim.Motion) *anim.Animation {
	a := anim.Bind(mo, m.graph, m.morphs, m.solvers, m.log.Named("anim"))
	a.Curve = m.curve
	return a
}

// BindCamera prepares a motion's camera track.
func (m *Model) BindCamera(mo *anim.Motion) *anim.CameraAnimation {
	c := anim.BindCamera(mo)
	c.Curve = m.curve
	return c
}

// LoadPose writes a static pose into the keyframe overlays and returns
// the names that matched nothing.
func (m *Model) LoadPose(p *anim.Pose, weight float32) []string {
	return p.Apply(m.graph, m.morphs, weight)
}
