// Package config handles animation runtime configuration loading and
// management.
package config

import (
	"errors"
	"fmt"
)

// Config holds all runtime settings.
type Config struct {
	Physics  PhysicsConfig  `yaml:"physics"`
	IK       IKConfig       `yaml:"ik"`
	Skinning SkinningConfig `yaml:"skinning"`
	Keyframe KeyframeConfig `yaml:"keyframe"`
	Playback PlaybackConfig `yaml:"playback"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// PhysicsConfig holds rigid body simulation settings. Steps are seconds.
type PhysicsConfig struct {
	Enabled     bool       `yaml:"enabled"`
	Ground      bool       `yaml:"ground"`
	Gravity     [3]float32 `yaml:"gravity"`
	SettleStep  float32    `yaml:"settle_step"`
	FixedStep   float32    `yaml:"fixed_step"`
	MaxSubSteps int        `yaml:"max_sub_steps"`
	Iterations  int        `yaml:"iterations"` // joint solver passes per substep
}

// IKConfig holds IK settings.
type IKConfig struct {
	Enabled bool `yaml:"enabled"`
}

// SkinningConfig holds mesh deformation settings.
type SkinningConfig struct {
	Workers int `yaml:"workers"` // 0 uses GOMAXPROCS
}

// KeyframeConfig holds curve evaluation settings.
type KeyframeConfig struct {
	BezierIterations int     `yaml:"bezier_iterations"`
	BezierEpsilon    float32 `yaml:"bezier_epsilon"`
}

// PlaybackConfig holds frame stepping settings.
type PlaybackConfig struct {
	FPS    float32 `yaml:"fps"`
	Frames int     `yaml:"frames"` // 0 plays the motion once
	Loop   bool    `yaml:"loop"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Physics: PhysicsConfig{
			Enabled:     true,
			Ground:      true,
			Gravity:     [3]float32{0, -98, 0},
			SettleStep:  1.0 / 60.0,
			FixedStep:   1.0 / 120.0,
			MaxSubSteps: 10,
			Iterations:  8,
		},
		IK: IKConfig{
			Enabled: true,
		},
		Skinning: SkinningConfig{
			Workers: 0,
		},
		Keyframe: KeyframeConfig{
			BezierIterations: 32,
			BezierEpsilon:    1e-5,
		},
		Playback: PlaybackConfig{
			FPS:    30,
			Frames: 0,
			Loop:   false,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

var errInvalid = errors.New("invalid config")

// Validate rejects settings the runtime cannot use.
func (c *Config) Validate() error {
	switch {
	case c.Physics.FixedStep <= 0:
		return fmt.Errorf("%w: physics.fixed_step must be positive, got %v", errInvalid, c.Physics.FixedStep)
	case c.Physics.SettleStep <= 0:
		return fmt.Errorf("%w: physics.settle_step must be positive, got %v", errInvalid, c.Physics.SettleStep)
	case c.Physics.MaxSubSteps < 1:
		return fmt.Errorf("%w: physics.max_sub_steps must be at least 1, got %d", errInvalid, c.Physics.MaxSubSteps)
	case c.Physics.Iterations < 1:
		return fmt.Errorf("%w: physics.iterations must be at least 1, got %d", errInvalid, c.Physics.Iterations)
	case c.Keyframe.BezierIterations < 1:
		return fmt.Errorf("%w: keyframe.bezier_iterations must be at least 1, got %d", errInvalid, c.Keyframe.BezierIterations)
	case c.Keyframe.BezierEpsilon <= 0:
		return fmt.Errorf("%w: keyframe.bezier_epsilon must be positive, got %v", errInvalid, c.Keyframe.BezierEpsilon)
	case c.Playback.FPS <= 0:
		return fmt.Errorf("%w: playback.fps must be positive, got %v", errInvalid, c.Playback.FPS)
	case c.Skinning.Workers < 0:
		return fmt.Errorf("%w: skinning.workers must not be negative, got %d", errInvalid, c.Skinning.Workers)
	}
	return nil
}
