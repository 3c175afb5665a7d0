package config

import "flag"

var (
	flagConfig    = flag.String("config", "", "Path to config file")
	flagDebug     = flag.Bool("debug", false, "Enable debug logging")
	flagLogFile   = flag.String("log-file", "", "Write logs to this file as well")
	flagNoPhysics = flag.Bool("no-physics", false, "Disable rigid body physics")
	flagNoIK      = flag.Bool("no-ik", false, "Disable IK solving")
	flagWorkers   = flag.Int("workers", -1, "Skinning workers (0 = GOMAXPROCS)")
	flagFPS       = flag.Float64("fps", 0, "Playback frame rate")
	flagFrames    = flag.Int("frames", 0, "Number of frames to run")
	flagLoop      = flag.Bool("loop", false, "Loop the motion")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}
	if *flagNoPhysics {
		cfg.Physics.Enabled = false
	}
	if *flagNoIK {
		cfg.IK.Enabled = false
	}
	if *flagWorkers >= 0 {
		cfg.Skinning.Workers = *flagWorkers
	}
	if *flagFPS > 0 {
		cfg.Playback.FPS = float32(*flagFPS)
	}
	if *flagFrames > 0 {
		cfg.Playback.Frames = *flagFrames
	}
	if *flagLoop {
		cfg.Playback.Loop = true
	}
}
