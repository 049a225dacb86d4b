package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for rover tuning parameters.
// Every field is optional: Get* accessors fall back to the defaults used by
// the simulator environment the thresholds were tuned against.
type TuningConfig struct {
	// Camera and perception
	FrameWidth              *int           `json:"frame_width,omitempty"`
	FrameHeight             *int           `json:"frame_height,omitempty"`
	NavigableThreshold      *[3]int        `json:"navigable_threshold,omitempty"`
	ObstacleThreshold       *[3]int        `json:"obstacle_threshold,omitempty"`
	SampleThreshold         *[3]int        `json:"sample_threshold,omitempty"`
	CalibrationSource       *[4][2]float64 `json:"calibration_source,omitempty"`
	CalibrationHalfSize     *float64       `json:"calibration_half_size,omitempty"`
	CalibrationBottomOffset *float64       `json:"calibration_bottom_offset,omitempty"`
	OverlayEnabled          *bool          `json:"overlay_enabled,omitempty"`

	// World map
	WorldSize              *int     `json:"world_size,omitempty"`
	WorldScale             *float64 `json:"world_scale,omitempty"`
	MappedConfidenceCutoff *float64 `json:"mapped_confidence_cutoff,omitempty"`
	SnapshotInterval       *string  `json:"snapshot_interval,omitempty"` // duration string like "30s"

	// Actuation
	ThrottleSet     *float64 `json:"throttle_set,omitempty"`
	BrakeSet        *float64 `json:"brake_set,omitempty"`
	MaxVel          *float64 `json:"max_vel,omitempty"`
	MaxSteerDeg     *float64 `json:"max_steer_deg,omitempty"`
	StoppedVelocity *float64 `json:"stopped_velocity,omitempty"`

	// Terrain pixel gates
	StopForwardPixels *int `json:"stop_forward_pixels,omitempty"`
	GoForwardPixels   *int `json:"go_forward_pixels,omitempty"`

	// Recovery timers
	MaxStuck             *string  `json:"max_stuck,omitempty"`
	MaxSpinning          *string  `json:"max_spinning,omitempty"`
	MaxSampleSearch      *string  `json:"max_sample_search,omitempty"`
	SpinRecoveryThrottle *float64 `json:"spin_recovery_throttle,omitempty"`

	// Sample pursuit
	SampleHeadOnDeg        *float64 `json:"sample_head_on_deg,omitempty"`
	SampleRotateDeg        *float64 `json:"sample_rotate_deg,omitempty"`
	SampleNearDist         *float64 `json:"sample_near_dist,omitempty"`
	SampleHoldDist         *float64 `json:"sample_hold_dist,omitempty"`
	SamplePivotDivisor     *float64 `json:"sample_pivot_divisor,omitempty"`
	SampleApproachFraction *float64 `json:"sample_approach_fraction,omitempty"`

	// Homecoming
	HomeRadius       *float64 `json:"home_radius,omitempty"`
	HomeMinSamples   *int     `json:"home_min_samples,omitempty"`
	HomeMinMappedPct *float64 `json:"home_min_mapped_pct,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Every accessor then reports its built-in default.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/rover/pipeline/
		"../../../../" + DefaultConfigPath, // from internal/rover/storage/sqlite/
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// JSON returns the config as compact JSON, used when recording a mission.
func (c *TuningConfig) JSON() string {
	b, err := json.Marshal(c)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.FrameWidth != nil && *c.FrameWidth <= 0 {
		return fmt.Errorf("frame_width must be positive, got %d", *c.FrameWidth)
	}
	if c.FrameHeight != nil && *c.FrameHeight <= 0 {
		return fmt.Errorf("frame_height must be positive, got %d", *c.FrameHeight)
	}

	for name, th := range map[string]*[3]int{
		"navigable_threshold": c.NavigableThreshold,
		"obstacle_threshold":  c.ObstacleThreshold,
		"sample_threshold":    c.SampleThreshold,
	} {
		if th == nil {
			continue
		}
		for _, v := range th {
			if v < 0 || v > 255 {
				return fmt.Errorf("%s values must be in [0, 255], got %v", name, *th)
			}
		}
	}

	if c.CalibrationSource != nil {
		for _, p := range c.CalibrationSource {
			if !isFinite(p[0]) || !isFinite(p[1]) {
				return fmt.Errorf("calibration_source must be finite, got %v", *c.CalibrationSource)
			}
		}
	}
	if c.CalibrationHalfSize != nil && *c.CalibrationHalfSize <= 0 {
		return fmt.Errorf("calibration_half_size must be positive, got %f", *c.CalibrationHalfSize)
	}

	if c.WorldSize != nil && *c.WorldSize <= 0 {
		return fmt.Errorf("world_size must be positive, got %d", *c.WorldSize)
	}
	if c.WorldScale != nil && *c.WorldScale <= 0 {
		return fmt.Errorf("world_scale must be positive, got %f", *c.WorldScale)
	}

	if c.ThrottleSet != nil && *c.ThrottleSet < 0 {
		return fmt.Errorf("throttle_set must be non-negative, got %f", *c.ThrottleSet)
	}
	if c.BrakeSet != nil && *c.BrakeSet < 0 {
		return fmt.Errorf("brake_set must be non-negative, got %f", *c.BrakeSet)
	}
	if c.MaxSteerDeg != nil && *c.MaxSteerDeg <= 0 {
		return fmt.Errorf("max_steer_deg must be positive, got %f", *c.MaxSteerDeg)
	}
	if c.SamplePivotDivisor != nil && *c.SamplePivotDivisor == 0 {
		return fmt.Errorf("sample_pivot_divisor must be non-zero")
	}
	if c.SampleApproachFraction != nil && (*c.SampleApproachFraction < 0 || *c.SampleApproachFraction > 1) {
		return fmt.Errorf("sample_approach_fraction must be between 0 and 1, got %f", *c.SampleApproachFraction)
	}
	if c.HomeMinMappedPct != nil && (*c.HomeMinMappedPct < 0 || *c.HomeMinMappedPct > 100) {
		return fmt.Errorf("home_min_mapped_pct must be between 0 and 100, got %f", *c.HomeMinMappedPct)
	}

	for name, d := range map[string]*string{
		"max_stuck":         c.MaxStuck,
		"max_spinning":      c.MaxSpinning,
		"max_sample_search": c.MaxSampleSearch,
		"snapshot_interval": c.SnapshotInterval,
	} {
		if d == nil || *d == "" {
			continue
		}
		parsed, err := time.ParseDuration(*d)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *d, err)
		}
		if parsed < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", name, *d)
		}
	}

	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func parseDurationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def // default on parse error
	}
	return d
}

// GetFrameWidth returns the expected camera frame width in pixels.
func (c *TuningConfig) GetFrameWidth() int {
	if c.FrameWidth == nil {
		return 320
	}
	return *c.FrameWidth
}

// GetFrameHeight returns the expected camera frame height in pixels.
func (c *TuningConfig) GetFrameHeight() int {
	if c.FrameHeight == nil {
		return 160
	}
	return *c.FrameHeight
}

// GetNavigableThreshold returns the RGB lower bound for navigable terrain.
func (c *TuningConfig) GetNavigableThreshold() [3]int {
	if c.NavigableThreshold == nil {
		return [3]int{160, 160, 160}
	}
	return *c.NavigableThreshold
}

// GetObstacleThreshold returns the RGB lower bound for obstacles.
func (c *TuningConfig) GetObstacleThreshold() [3]int {
	if c.ObstacleThreshold == nil {
		return [3]int{100, 100, 50}
	}
	return *c.ObstacleThreshold
}

// GetSampleThreshold returns the RGB lower bound for rock samples.
func (c *TuningConfig) GetSampleThreshold() [3]int {
	if c.SampleThreshold == nil {
		return [3]int{200, 150, 0}
	}
	return *c.SampleThreshold
}

// GetCalibrationSource returns the camera-space source quadrilateral.
func (c *TuningConfig) GetCalibrationSource() [4][2]float64 {
	if c.CalibrationSource == nil {
		return [4][2]float64{{14, 140}, {300, 140}, {200, 95}, {120, 95}}
	}
	return *c.CalibrationSource
}

// GetCalibrationHalfSize returns half the side of the destination square in pixels.
func (c *TuningConfig) GetCalibrationHalfSize() float64 {
	if c.CalibrationHalfSize == nil {
		return 3
	}
	return *c.CalibrationHalfSize
}

// GetCalibrationBottomOffset returns the destination square's offset from the bottom edge.
func (c *TuningConfig) GetCalibrationBottomOffset() float64 {
	if c.CalibrationBottomOffset == nil {
		return 5
	}
	return *c.CalibrationBottomOffset
}

// GetOverlayEnabled returns whether the raw-frame overlay is produced.
func (c *TuningConfig) GetOverlayEnabled() bool {
	if c.OverlayEnabled == nil {
		return true
	}
	return *c.OverlayEnabled
}

// GetWorldSize returns the side length of the world map.
func (c *TuningConfig) GetWorldSize() int {
	if c.WorldSize == nil {
		return 200
	}
	return *c.WorldSize
}

// GetWorldScale returns the rover-pixel to world-cell divisor.
func (c *TuningConfig) GetWorldScale() float64 {
	if c.WorldScale == nil {
		return 8
	}
	return *c.WorldScale
}

// GetMappedConfidenceCutoff returns the navigable evidence a cell must exceed to count as mapped.
func (c *TuningConfig) GetMappedConfidenceCutoff() float64 {
	if c.MappedConfidenceCutoff == nil {
		return 0
	}
	return *c.MappedConfidenceCutoff
}

// GetSnapshotInterval returns the interval between periodic world map snapshots.
func (c *TuningConfig) GetSnapshotInterval() time.Duration {
	return parseDurationOr(c.SnapshotInterval, 30*time.Second)
}

// GetThrottleSet returns the cruise throttle setpoint.
func (c *TuningConfig) GetThrottleSet() float64 {
	if c.ThrottleSet == nil {
		return 0.2
	}
	return *c.ThrottleSet
}

// GetBrakeSet returns the braking setpoint.
func (c *TuningConfig) GetBrakeSet() float64 {
	if c.BrakeSet == nil {
		return 10
	}
	return *c.BrakeSet
}

// GetMaxVel returns the velocity above which the rover coasts.
func (c *TuningConfig) GetMaxVel() float64 {
	if c.MaxVel == nil {
		return 2
	}
	return *c.MaxVel
}

// GetMaxSteerDeg returns the steering saturation angle in degrees.
func (c *TuningConfig) GetMaxSteerDeg() float64 {
	if c.MaxSteerDeg == nil {
		return 15
	}
	return *c.MaxSteerDeg
}

// GetStoppedVelocity returns the velocity below which the rover counts as stopped.
func (c *TuningConfig) GetStoppedVelocity() float64 {
	if c.StoppedVelocity == nil {
		return 0.2
	}
	return *c.StoppedVelocity
}

// GetStopForwardPixels returns the terrain pixel count at or below which forward driving stops.
func (c *TuningConfig) GetStopForwardPixels() int {
	if c.StopForwardPixels == nil {
		return 50
	}
	return *c.StopForwardPixels
}

// GetGoForwardPixels returns the terrain pixel count needed to resume from stop.
func (c *TuningConfig) GetGoForwardPixels() int {
	if c.GoForwardPixels == nil {
		return 100
	}
	return *c.GoForwardPixels
}

// GetMaxStuck returns how long a stall is tolerated before stuck mode.
func (c *TuningConfig) GetMaxStuck() time.Duration {
	return parseDurationOr(c.MaxStuck, 5*time.Second)
}

// GetMaxSpinning returns how long steering may stay saturated before spin recovery.
func (c *TuningConfig) GetMaxSpinning() time.Duration {
	return parseDurationOr(c.MaxSpinning, 5*time.Second)
}

// GetMaxSampleSearch returns how long a visible sample is pursued.
func (c *TuningConfig) GetMaxSampleSearch() time.Duration {
	return parseDurationOr(c.MaxSampleSearch, 20*time.Second)
}

// GetSpinRecoveryThrottle returns the gentle throttle forced by spin recovery.
func (c *TuningConfig) GetSpinRecoveryThrottle() float64 {
	if c.SpinRecoveryThrottle == nil {
		return 0.2
	}
	return *c.SpinRecoveryThrottle
}

// GetSampleHeadOnDeg returns the half-angle inside which a sample is approached directly.
func (c *TuningConfig) GetSampleHeadOnDeg() float64 {
	if c.SampleHeadOnDeg == nil {
		return 15
	}
	return *c.SampleHeadOnDeg
}

// GetSampleRotateDeg returns the half-angle inside which the rover rotates toward a sample.
func (c *TuningConfig) GetSampleRotateDeg() float64 {
	if c.SampleRotateDeg == nil {
		return 50
	}
	return *c.SampleRotateDeg
}

// GetSampleNearDist returns the distance under which a head-on approach brakes.
func (c *TuningConfig) GetSampleNearDist() float64 {
	if c.SampleNearDist == nil {
		return 15
	}
	return *c.SampleNearDist
}

// GetSampleHoldDist returns the distance under which a moving rover holds while rotating.
func (c *TuningConfig) GetSampleHoldDist() float64 {
	if c.SampleHoldDist == nil {
		return 40
	}
	return *c.SampleHoldDist
}

// GetSamplePivotDivisor returns the divisor applied to the sample angle when pivoting.
func (c *TuningConfig) GetSamplePivotDivisor() float64 {
	if c.SamplePivotDivisor == nil {
		return 4
	}
	return *c.SamplePivotDivisor
}

// GetSampleApproachFraction returns the fraction of throttle_set used to approach a sample.
func (c *TuningConfig) GetSampleApproachFraction() float64 {
	if c.SampleApproachFraction == nil {
		return 0.5
	}
	return *c.SampleApproachFraction
}

// GetHomeRadius returns the per-axis distance from start counted as home.
func (c *TuningConfig) GetHomeRadius() float64 {
	if c.HomeRadius == nil {
		return 10
	}
	return *c.HomeRadius
}

// GetHomeMinSamples returns the samples required before homecoming.
func (c *TuningConfig) GetHomeMinSamples() int {
	if c.HomeMinSamples == nil {
		return 5
	}
	return *c.HomeMinSamples
}

// GetHomeMinMappedPct returns the mapped percentage required before homecoming.
func (c *TuningConfig) GetHomeMinMappedPct() float64 {
	if c.HomeMinMappedPct == nil {
		return 95
	}
	return *c.HomeMinMappedPct
}
