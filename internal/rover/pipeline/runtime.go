package pipeline

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/banshee-data/rover.nav/internal/config"
	"github.com/banshee-data/rover.nav/internal/rover/l1vision"
	"github.com/banshee-data/rover.nav/internal/rover/l2coords"
	"github.com/banshee-data/rover.nav/internal/rover/l3worldmap"
	"github.com/banshee-data/rover.nav/internal/rover/l4decision"
	"github.com/banshee-data/rover.nav/internal/rover/storage/sqlite"
	"github.com/banshee-data/rover.nav/internal/timeutil"
)

// ErrInvalidTelemetry is returned when position, yaw or velocity is not a
// finite number, or a position coordinate is negative.
var ErrInvalidTelemetry = errors.New("invalid telemetry")

// Snapshot reasons written to world_map_snapshots.snapshot_reason.
const (
	ReasonPeriodic        = "periodic"
	ReasonMissionComplete = "mission_complete"
	ReasonFinal           = "final"
)

// PersistenceSink writes pipeline outputs to storage. It is an adapter, so
// implementations live outside the layer packages (e.g. storage/sqlite).
type PersistenceSink interface {
	l3worldmap.SnapshotStore
	RecordDecision(rec *sqlite.DecisionRecord) error
}

// Input is one cycle of telemetry from the rover.
type Input struct {
	// Frame is nil when no camera image arrived this cycle.
	Frame      *l1vision.Frame
	Pos        l4decision.Position
	Yaw        float64
	Vel        float64
	NearSample bool
	PickingUp  bool
}

// Output is everything the rover and the display need after one cycle.
type Output struct {
	Command         l4decision.Command
	SendPickup      bool
	MissionComplete bool
	Mode            l4decision.Mode
	Events          []l4decision.Event

	// Overlay is the raw-frame classification; nil without a frame or when disabled.
	Overlay *l1vision.Frame
	// Masks are the bird's-eye masks; nil without a frame.
	Masks *l1vision.Masks
	// WorldMap is the live map. It must only be read from the ticking goroutine.
	WorldMap *l3worldmap.WorldMap
}

// RuntimeConfig holds dependencies for a Runtime.
type RuntimeConfig struct {
	Tuning    *config.TuningConfig
	Clock     timeutil.Clock  // defaults to timeutil.RealClock
	Sink      PersistenceSink // optional
	MissionID string
	// Resume, when set, seeds the world map and the collected sample count
	// from an earlier snapshot of the same mission.
	Resume *l3worldmap.Snapshot
}

// Runtime owns one mission: the world map, the navigator and the snapshot
// cadence. Tick must be called from a single goroutine; Status and
// MapSnapshot may be called concurrently from monitors.
type Runtime struct {
	perceiver   *Perceiver
	decisionCfg l4decision.Config
	clock       timeutil.Clock
	sink        PersistenceSink
	missionID   string
	interval    time.Duration

	mu           sync.RWMutex
	worldMap     *l3worldmap.WorldMap
	nav          *l4decision.Navigator
	resumed      int // samples collected before a resume
	tick         int64
	lastSnapshot time.Time
	completeSent bool
	status       Status
}

// NewRuntime builds a runtime from the tuning config. The navigator is
// created on the first valid tick, whose position becomes the start.
func NewRuntime(cfg RuntimeConfig) (*Runtime, error) {
	tuning := cfg.Tuning
	if tuning == nil {
		tuning = config.EmptyTuningConfig()
	}
	perceiver, err := PerceiverFromTuning(tuning)
	if err != nil {
		return nil, err
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	r := &Runtime{
		perceiver:   perceiver,
		decisionCfg: l4decision.ConfigFromTuning(tuning),
		clock:       clock,
		sink:        cfg.Sink,
		missionID:   cfg.MissionID,
		interval:    tuning.GetSnapshotInterval(),
		worldMap:    l3worldmap.NewFromTuning(tuning),
	}
	if cfg.Resume != nil {
		wm, err := l3worldmap.Restore(cfg.Resume, tuning.GetMappedConfidenceCutoff())
		if err != nil {
			return nil, fmt.Errorf("resume world map: %w", err)
		}
		if wm.Size() != r.worldMap.Size() {
			return nil, fmt.Errorf("resume world map: snapshot size %d, configured %d", wm.Size(), r.worldMap.Size())
		}
		r.worldMap = wm
		r.resumed = cfg.Resume.SamplesCollected
		opsf("mission %s resumed: samples=%d mapped=%.2f%%", cfg.MissionID, r.resumed, wm.MappedPercentage())
	}
	r.status = Status{
		MissionID:        cfg.MissionID,
		Mode:             l4decision.ModeForward,
		SamplesCollected: r.resumed,
		MappedPercentage: r.worldMap.MappedPercentage(),
		WorldSize:        r.worldMap.Size(),
		Map:              r.worldMap.Stats(),
	}
	diagf("runtime ready: mission=%s world=%d snapshot_interval=%v", cfg.MissionID, r.worldMap.Size(), r.interval)
	return r, nil
}

// WorldMap returns the live map. Only the ticking goroutine may use it.
func (r *Runtime) WorldMap() *l3worldmap.WorldMap { return r.worldMap }

// Tick runs one perception and decision cycle. Invalid telemetry or an
// invalid frame is rejected before anything is mutated.
func (r *Runtime) Tick(in Input) (Output, error) {
	if err := validateTelemetry(in); err != nil {
		opsf("tick rejected: %v", err)
		return Output{}, err
	}

	pose := l2coords.Pose{X: in.Pos.X, Y: in.Pos.Y, YawDeg: in.Yaw}
	var perc *Perception
	if in.Frame != nil {
		p, err := r.perceiver.Perceive(in.Frame, pose)
		if err != nil {
			opsf("tick rejected: %v", err)
			return Output{}, fmt.Errorf("perceive frame: %w", err)
		}
		perc = p
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	if r.nav == nil {
		r.nav = l4decision.NewNavigator(r.decisionCfg, r.clock, in.Pos)
		r.nav.ResumeSamples(r.resumed)
		r.lastSnapshot = now
		diagf("mission %s start position (%.1f, %.1f)", r.missionID, in.Pos.X, in.Pos.Y)
	}

	obs := l4decision.Observation{
		Pos:        in.Pos,
		Yaw:        in.Yaw,
		Vel:        in.Vel,
		NearSample: in.NearSample,
		PickingUp:  in.PickingUp,
	}
	if perc != nil {
		r.worldMap.Update(perc.WorldObstacles, perc.WorldSamples, perc.WorldNavigable)
		obs.Terrain = &perc.Terrain
		obs.Samples = perc.Samples
		obs.SampleSighted = perc.Samples.Len() > 0
	}
	obs.MappedPercentage = r.worldMap.MappedPercentage()

	outcome := r.nav.Step(obs)
	r.tick++

	out := Output{
		Command:         outcome.Command,
		SendPickup:      outcome.SendPickup,
		MissionComplete: outcome.MissionComplete,
		Mode:            outcome.Mode,
		Events:          outcome.Events,
		WorldMap:        r.worldMap,
	}
	if perc != nil {
		out.Overlay = perc.Overlay
		out.Masks = &perc.Masks
		tracef("tick %d: terrain=%d samples=%d mapped=%.2f%% cmd=%+v events=%v",
			r.tick, perc.Terrain.Len(), perc.Samples.Len(), obs.MappedPercentage, outcome.Command, outcome.Events)
	} else {
		tracef("tick %d: no frame, cmd=%+v events=%v", r.tick, outcome.Command, outcome.Events)
	}

	r.record(now, outcome)
	r.maybeSnapshot(now, outcome)
	r.publish(now, in, perc, obs.MappedPercentage, outcome)
	return out, nil
}

func validateTelemetry(in Input) error {
	vals := []struct {
		name string
		v    float64
	}{
		{"pos.x", in.Pos.X}, {"pos.y", in.Pos.Y}, {"yaw", in.Yaw}, {"vel", in.Vel},
	}
	for _, f := range vals {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s is %v", ErrInvalidTelemetry, f.name, f.v)
		}
	}
	if in.Pos.X < 0 || in.Pos.Y < 0 {
		return fmt.Errorf("%w: negative position (%v, %v)", ErrInvalidTelemetry, in.Pos.X, in.Pos.Y)
	}
	return nil
}

func (r *Runtime) record(now time.Time, o l4decision.Outcome) {
	if r.sink == nil {
		return
	}
	events := make([]string, len(o.Events))
	for i, e := range o.Events {
		events[i] = string(e)
	}
	rec := &sqlite.DecisionRecord{
		MissionID:  r.missionID,
		Tick:       r.tick,
		UnixNanos:  now.UnixNano(),
		Mode:       string(o.Mode),
		Throttle:   o.Command.Throttle,
		Brake:      o.Command.Brake,
		Steer:      o.Command.Steer,
		SendPickup: o.SendPickup,
		Events:     events,
	}
	if err := r.sink.RecordDecision(rec); err != nil {
		opsf("record decision tick %d: %v", r.tick, err)
	}
}

func (r *Runtime) maybeSnapshot(now time.Time, o l4decision.Outcome) {
	if o.Terminal && !r.completeSent {
		r.completeSent = true
		diagf("mission %s complete at tick %d", r.missionID, r.tick)
		r.persist(now, ReasonMissionComplete)
		return
	}
	if r.interval > 0 && now.Sub(r.lastSnapshot) >= r.interval {
		r.persist(now, ReasonPeriodic)
	}
}

// persist writes a snapshot. Failures are logged and the mission continues.
func (r *Runtime) persist(now time.Time, reason string) {
	r.lastSnapshot = now
	if r.sink == nil {
		return
	}
	samples := 0
	if r.nav != nil {
		samples = r.nav.State().SamplesCollected
	}
	_, err := r.worldMap.Persist(r.sink, l3worldmap.SnapshotMeta{
		MissionID:        r.missionID,
		TakenAt:          now,
		SamplesCollected: samples,
		Reason:           reason,
	})
	if err != nil {
		opsf("snapshot %s failed: %v", reason, err)
	}
}

// Close writes the final snapshot and returns the last published status.
func (r *Runtime) Close() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persist(r.clock.Now(), ReasonFinal)
	diagf("mission %s closed after %d ticks", r.missionID, r.tick)
	return r.status.clone()
}
