package pipeline

import (
	"fmt"

	"github.com/banshee-data/rover.nav/internal/config"
	"github.com/banshee-data/rover.nav/internal/rover/l1vision"
	"github.com/banshee-data/rover.nav/internal/rover/l2coords"
)

// Perception is the result of one perception step.
type Perception struct {
	// Masks are the classified bird's-eye masks.
	Masks l1vision.Masks
	// Overlay is the raw-frame classification for display; nil when disabled.
	Overlay *l1vision.Frame

	Terrain l2coords.PolarReadings
	Samples l2coords.PolarReadings

	WorldObstacles l2coords.Cells
	WorldSamples   l2coords.Cells
	WorldNavigable l2coords.Cells
}

// Perceiver runs rectify, classify and the coordinate transforms.
type Perceiver struct {
	rectifier  *l1vision.Rectifier
	thresholds l1vision.Thresholds
	world      l2coords.WorldFrame
	overlay    bool
}

// NewPerceiver assembles a perceiver from prebuilt stages.
func NewPerceiver(rect *l1vision.Rectifier, th l1vision.Thresholds, world l2coords.WorldFrame, overlay bool) *Perceiver {
	return &Perceiver{rectifier: rect, thresholds: th, world: world, overlay: overlay}
}

// PerceiverFromTuning builds a perceiver from a TuningConfig. It fails only
// when the configured calibration is degenerate.
func PerceiverFromTuning(cfg *config.TuningConfig) (*Perceiver, error) {
	rect, err := l1vision.RectifierFromTuning(cfg)
	if err != nil {
		return nil, fmt.Errorf("build rectifier: %w", err)
	}
	return NewPerceiver(rect, l1vision.ThresholdsFromTuning(cfg),
		l2coords.WorldFrameFromTuning(cfg), cfg.GetOverlayEnabled()), nil
}

// Perceive processes one frame at the given pose. It does not mutate any
// shared state, so a failure leaves the mission untouched.
func (p *Perceiver) Perceive(f *l1vision.Frame, pose l2coords.Pose) (*Perception, error) {
	warped, err := p.rectifier.Warp(f)
	if err != nil {
		return nil, err
	}

	masks := l1vision.ClassifyAll(warped, p.thresholds)
	nav := l2coords.ToRoverCentric(masks.Navigable)
	obs := l2coords.ToRoverCentric(masks.Obstacle)
	smp := l2coords.ToRoverCentric(masks.Sample)

	out := &Perception{
		Masks:          masks,
		Terrain:        l2coords.ToPolarReadings(nav),
		Samples:        l2coords.ToPolarReadings(smp),
		WorldObstacles: p.world.PointsToWorld(obs, pose),
		WorldSamples:   p.world.PointsToWorld(smp, pose),
		WorldNavigable: p.world.PointsToWorld(nav, pose),
	}
	if p.overlay {
		out.Overlay = l1vision.Overlay(f, p.thresholds)
	}
	return out, nil
}
