package physics

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// Config holds simulation constants. SettleStep and FixedStep are tuned
// values, not derived ones.
type Config struct {
	Gravity     mgl32.Vec3
	Ground      bool
	SettleStep  float32
	FixedStep   float32
	MaxSubSteps int
}

// DefaultConfig returns gravity of 9.8 m/s² in model units (10 per metre)
// and the 1/60 s settle and 1/120 s fixed steps.
func DefaultConfig() Config {
	return Config{
		Gravity:     mgl32.Vec3{0, -98, 0},
		Ground:      true,
		SettleStep:  1.0 / 60.0,
		FixedStep:   1.0 / 120.0,
		MaxSubSteps: 10,
	}
}

// World wraps a Simulator with the ground plane and the collision filter.
type World struct {
	sim    Simulator
	cfg    Config
	ground Body
	exempt map[Body]struct{}
	log    *zap.Logger
}

// NewWorld takes ownership of sim.
func NewWorld(sim Simulator, cfg Config, log *zap.Logger) (*World, error) {
	if log == nil {
		log = zap.NewNop()
	}
	w := &World{
		sim:    sim,
		cfg:    cfg,
		exempt: make(map[Body]struct{}),
		log:    log,
	}
	sim.SetGravity(cfg.Gravity)
	sim.SetFilter(w.filter)

	if cfg.Ground {
		ground, err := sim.NewBody(BodyDesc{Name: "ground", Shape: ShapePlane, Friction: 0.5, Kinematic: true}, newDefaultState(mgl32.Ident4()))
		if err != nil {
			return nil, fmt.Errorf("ground plane: %w: %v", ErrBodyCreate, err)
		}
		sim.AddRigidBody(ground, 0xFFFF, 0xFFFF)
		w.ground = ground
		w.exempt[ground] = struct{}{}
	}

	log.Debug("physics world created",
		zap.Bool("ground", cfg.Ground),
		zap.Float32("fixed_step", cfg.FixedStep),
		zap.Int("max_sub_steps", cfg.MaxSubSteps))
	return w, nil
}

// Config returns the world's simulation constants.
func (w *World) Config() Config { return w.cfg }

// Simulator returns the wrapped simulator.
func (w *World) Simulator() Simulator { return w.sim }

// Ground returns the ground plane body, or nil.
func (w *World) Ground() Body { return w.ground }

// Exempt lets b overlap-test against everything regardless of group/mask.
func (w *World) Exempt(b Body) {
	w.exempt[b] = struct{}{}
}

// filter passes when either body is exempt, otherwise when each body's
// group is in the other's mask.
func (w *World) filter(a, b Proxy) bool {
	if _, ok := w.exempt[a.Body]; ok {
		return true
	}
	if _, ok := w.exempt[b.Body]; ok {
		return true
	}
	return a.Group&b.Mask != 0 && b.Group&a.Mask != 0
}

func (w *World) step(dt float32) {
	w.sim.Step(dt, w.cfg.MaxSubSteps, w.cfg.FixedStep)
}

// Close removes the ground plane and closes the simulator.
func (w *World) Close() error {
	if w.ground != nil {
		w.sim.RemoveRigidBody(w.ground)
		w.ground = nil
	}
	return w.sim.Close()
}
