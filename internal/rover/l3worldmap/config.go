package l3worldmap

import "github.com/banshee-data/rover.nav/internal/config"

// NewFromTuning allocates an empty map sized by the TuningConfig.
func NewFromTuning(cfg *config.TuningConfig) *WorldMap {
	return New(cfg.GetWorldSize(), cfg.GetMappedConfidenceCutoff())
}
