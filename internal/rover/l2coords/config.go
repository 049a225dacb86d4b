package l2coords

import "github.com/banshee-data/rover.nav/internal/config"

// WorldFrameFromTuning builds the world frame from a TuningConfig.
func WorldFrameFromTuning(cfg *config.TuningConfig) WorldFrame {
	return WorldFrame{Size: cfg.GetWorldSize(), Scale: cfg.GetWorldScale()}
}
