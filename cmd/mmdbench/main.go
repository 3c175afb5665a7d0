// Package main runs the animation pipeline headless over a procedural rig
// and motion and reports per-frame timings.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/Faultbox/mmdanim/internal/config"
	"github.com/Faultbox/mmdanim/internal/engine/anim"
	"github.com/Faultbox/mmdanim/internal/engine/model"
	"github.com/Faultbox/mmdanim/internal/engine/physics"
	"github.com/Faultbox/mmdanim/internal/engine/physics/xpbd"
	"github.com/Faultbox/mmdanim/internal/logger"
)

// motionFPS is the keyframe rate of motion data.
const motionFPS = 30

var (
	flagHair   = flag.Int("hair", 6, "Hair segments in the procedural rig")
	flagDetail = flag.Int("detail", 4, "Mesh detail of the procedural rig")
	flagPeriod = flag.Int("period", 60, "Frames per sway cycle")
	flagCycles = flag.Int("cycles", 4, "Sway cycles in the motion")
	flagSave   = flag.Bool("save-config", false, "Write the effective config to the user config directory")
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== mmdanim bench ===")
	logger.L().Sugar().Debugf("Config: %+v", cfg)

	if *flagSave {
		if err := cfg.Save(); err != nil {
			logger.Error("saving config failed", zap.Error(err))
			os.Exit(1)
		}
		logger.Info("config saved", zap.String("dir", config.ConfigDir()))
	}

	if err := run(cfg); err != nil {
		logger.Error("bench failed", zap.Error(err))
		os.Exit(1)
	}
}

func modelOptions(cfg *config.Config) model.Options {
	opts := model.DefaultOptions()
	opts.Physics = cfg.Physics.Enabled
	opts.PhysicsConfig = physics.Config{
		Gravity:     mgl32.Vec3(cfg.Physics.Gravity),
		Ground:      cfg.Physics.Ground,
		SettleStep:  cfg.Physics.SettleStep,
		FixedStep:   cfg.Physics.FixedStep,
		MaxSubSteps: cfg.Physics.MaxSubSteps,
	}
	sim := xpbd.New()
	sim.Iterations = cfg.Physics.Iterations
	opts.Simulator = sim

	opts.IK = cfg.IK.Enabled
	opts.SkinWorkers = cfg.Skinning.Workers
	if opts.SkinWorkers == 0 {
		opts.SkinWorkers = runtime.GOMAXPROCS(0)
	}
	opts.Curve = anim.Curve{
		Epsilon:    cfg.Keyframe.BezierEpsilon,
		Iterations: cfg.Keyframe.BezierIterations,
	}
	opts.Logger = logger.Named("model")
	return opts
}

func run(cfg *config.Config) error {
	m, err := model.New(proceduralRig(*flagHair, *flagDetail), modelOptions(cfg))
	if err != nil {
		return fmt.Errorf("build model: %w", err)
	}
	defer m.Close()

	motion := proceduralMotion(*flagHair, *flagPeriod, *flagCycles)
	a := m.Bind(motion)
	cam := m.BindCamera(motion)
	if names := a.Unbound(); len(names) > 0 {
		logger.Warn("motion tracks without a target", zap.Strings("tracks", names))
	}
	m.InitializeAnimation()

	last := float32(a.MaxFrame())
	frames := cfg.Playback.Frames
	if frames == 0 {
		frames = int(last*cfg.Playback.FPS/motionFPS) + 1
	}
	elapsed := 1 / cfg.Playback.FPS
	step := elapsed * motionFPS

	log := logger.Named("bench")
	times := make([]float64, 0, frames)
	var mesh *model.Mesh
	var frame float32
	for i := 0; i < frames; i++ {
		start := time.Now()
		m.UpdateAllAnimation(a, frame, elapsed)
		m.Update()
		mesh = m.BuildMesh(mesh, model.BuildOptions{SkipInvisible: true})
		view := cam.Evaluate(frame).LookAt()
		took := time.Since(start)

		times = append(times, float64(took)/float64(time.Millisecond))
		log.Debug("frame",
			zap.Int("index", i),
			zap.Float32("frame", frame),
			zap.Duration("took", took),
			zap.Int("indices", len(mesh.Indices)),
			zap.Any("eye", view.Eye),
			zap.Any("bounds_min", mesh.Bounds.Min),
			zap.Any("bounds_max", mesh.Bounds.Max))

		frame += step
		if frame > last && cfg.Playback.Loop {
			frame = 0
			m.ResetPhysics()
		}
	}

	report(log, m, times)
	return nil
}

// report logs timing statistics in milliseconds.
func report(log *zap.Logger, m *model.Model, times []float64) {
	if len(times) == 0 {
		log.Info("no frames run")
		return
	}
	sorted := append([]float64(nil), times...)
	sort.Float64s(sorted)

	mean, std := stat.MeanStdDev(times, nil)
	log.Info("bench done",
		zap.String("model", m.Name()),
		zap.Int("frames", len(times)),
		zap.Int("vertices", len(m.Positions())),
		zap.Int("rigid_bodies", len(m.Physics().Bodies())),
		zap.Float64("mean_ms", mean),
		zap.Float64("stddev_ms", std),
		zap.Float64("p50_ms", stat.Quantile(0.5, stat.Empirical, sorted, nil)),
		zap.Float64("p95_ms", stat.Quantile(0.95, stat.Empirical, sorted, nil)),
		zap.Float64("max_ms", sorted[len(sorted)-1]))
}
