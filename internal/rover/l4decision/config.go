package l4decision

import (
	"time"

	"github.com/banshee-data/rover.nav/internal/config"
)

// RecoveryGrace is added to the stuck and spin limits before recovery fires.
const RecoveryGrace = time.Second

// Config holds the navigator tunables. It is immutable after construction.
type Config struct {
	ThrottleSet     float64
	BrakeSet        float64
	MaxVel          float64
	MaxSteerDeg     float64
	StoppedVelocity float64

	StopForwardPixels int // forward stops at or below this many terrain pixels
	GoForwardPixels   int // stop resumes at or above this many terrain pixels

	MaxStuck             time.Duration
	MaxSpinning          time.Duration
	MaxSampleSearch      time.Duration
	SpinRecoveryThrottle float64

	SampleHeadOnDeg        float64
	SampleRotateDeg        float64
	SampleNearDist         float64
	SampleHoldDist         float64
	SamplePivotDivisor     float64
	SampleApproachFraction float64

	HomeRadius       float64
	HomeMinSamples   int
	HomeMinMappedPct float64
}

// DefaultConfig returns the built-in tunables.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		ThrottleSet:            cfg.GetThrottleSet(),
		BrakeSet:               cfg.GetBrakeSet(),
		MaxVel:                 cfg.GetMaxVel(),
		MaxSteerDeg:            cfg.GetMaxSteerDeg(),
		StoppedVelocity:        cfg.GetStoppedVelocity(),
		StopForwardPixels:      cfg.GetStopForwardPixels(),
		GoForwardPixels:        cfg.GetGoForwardPixels(),
		MaxStuck:               cfg.GetMaxStuck(),
		MaxSpinning:            cfg.GetMaxSpinning(),
		MaxSampleSearch:        cfg.GetMaxSampleSearch(),
		SpinRecoveryThrottle:   cfg.GetSpinRecoveryThrottle(),
		SampleHeadOnDeg:        cfg.GetSampleHeadOnDeg(),
		SampleRotateDeg:        cfg.GetSampleRotateDeg(),
		SampleNearDist:         cfg.GetSampleNearDist(),
		SampleHoldDist:         cfg.GetSampleHoldDist(),
		SamplePivotDivisor:     cfg.GetSamplePivotDivisor(),
		SampleApproachFraction: cfg.GetSampleApproachFraction(),
		HomeRadius:             cfg.GetHomeRadius(),
		HomeMinSamples:         cfg.GetHomeMinSamples(),
		HomeMinMappedPct:       cfg.GetHomeMinMappedPct(),
	}
}
