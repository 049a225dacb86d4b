package l1vision

import (
	"github.com/banshee-data/rover.nav/internal/config"
)

// ThresholdsFromTuning builds the classification profiles from a TuningConfig.
func ThresholdsFromTuning(cfg *config.TuningConfig) Thresholds {
	return Thresholds{
		Navigable: rgbFrom(cfg.GetNavigableThreshold()),
		Obstacle:  rgbFrom(cfg.GetObstacleThreshold()),
		Sample:    rgbFrom(cfg.GetSampleThreshold()),
	}
}

// CalibrationFromTuning builds the rectifier calibration for the configured frame size.
func CalibrationFromTuning(cfg *config.TuningConfig) Calibration {
	var src [4]Point
	for i, p := range cfg.GetCalibrationSource() {
		src[i] = Point{X: p[0], Y: p[1]}
	}
	return NewCalibration(cfg.GetFrameWidth(), cfg.GetFrameHeight(), src,
		cfg.GetCalibrationHalfSize(), cfg.GetCalibrationBottomOffset())
}

// RectifierFromTuning solves the configured calibration.
func RectifierFromTuning(cfg *config.TuningConfig) (*Rectifier, error) {
	return NewRectifier(cfg.GetFrameWidth(), cfg.GetFrameHeight(), CalibrationFromTuning(cfg))
}

func rgbFrom(v [3]int) RGBThreshold {
	return RGBThreshold{R: uint8(v[0]), G: uint8(v[1]), B: uint8(v[2])}
}
