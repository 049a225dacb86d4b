package l4decision

import (
	"math"
	"time"

	"github.com/banshee-data/rover.nav/internal/timeutil"
)

// Navigator runs the navigation state machine. It is not safe for
// concurrent use; the pipeline calls Step once per frame from one goroutine.
type Navigator struct {
	cfg   Config
	clock timeutil.Clock
	state RoverState
}

// NewNavigator starts in forward mode at start with the stuck stopwatch
// running and every other recovery stopwatch disarmed.
func NewNavigator(cfg Config, clock timeutil.Clock, start Position) *Navigator {
	return &Navigator{
		cfg:   cfg,
		clock: clock,
		state: RoverState{
			Pos:        start,
			StartPos:   start,
			Mode:       ModeForward,
			StuckTimer: timeutil.NewArmedStopwatch(clock.Now()),
		},
	}
}

// ResumeSamples carries over the samples collected before a restart.
func (n *Navigator) ResumeSamples(count int) {
	if count > 0 {
		n.state.SamplesCollected = count
	}
}

// State returns a copy of the current rover state.
func (n *Navigator) State() RoverState { return n.state }

// step collects the result of one Step call.
type step struct {
	now      time.Time
	events   []Event
	terminal bool
}

func (st *step) emit(e Event) { st.events = append(st.events, e) }

// Step runs one decision cycle. Each stage may end the cycle early, in
// which case later stages (including the pickup trigger) are skipped and
// any command not written this cycle holds from the previous one.
func (n *Navigator) Step(obs Observation) Outcome {
	s := &n.state
	st := &step{now: n.clock.Now()}
	prevMode := s.Mode

	s.Pos = obs.Pos
	s.Yaw = obs.Yaw
	s.Vel = obs.Vel
	s.NearSample = obs.NearSample
	s.PickingUp = obs.PickingUp
	s.SendPickup = false
	if !obs.PickingUp {
		s.PickupCounted = false
	}

	// The sample being lifted is in view by definition, but only until it
	// has been counted once for this pickup.
	if (obs.SampleSighted || obs.PickingUp) && !s.SampleVisible && !s.PickupCounted {
		s.SampleVisible = true
		s.SampleTimer.Restart(st.now)
		diagf("sample sighted: %d readings, mean angle %.1f deg, picking up %t",
			obs.Samples.Len(), obs.Samples.MeanAngleDeg(), obs.PickingUp)
	}

	n.spinRecovery(st)

	if n.homecoming(st, obs) || n.stuck(st) {
		return n.finish(st, prevMode)
	}

	if obs.Terrain == nil {
		n.command(n.cfg.ThrottleSet, 0, 0)
		st.emit(EventNoVision)
	} else {
		switch s.Mode {
		case ModeForward:
			if n.forward(st, obs) {
				return n.finish(st, prevMode)
			}
		case ModeStop:
			n.stop(st, obs)
		}
	}

	if s.NearSample && s.Vel == 0 && !s.PickingUp {
		s.SendPickup = true
		s.SampleVisible = false
		st.emit(EventPickupRequested)
	}

	return n.finish(st, prevMode)
}

// spinRecovery forces a gentle straight drive once steering has been
// saturated for longer than the spin limit. It never ends the cycle.
//
// Open-terrain driving disarms the spin stopwatch, so recovery only fires
// after a saturated turn that never reached open terrain. Driving does not
// leave the stopwatch armed at the epoch, which would fire a recovery burst
// on the cycle after every drive.
func (n *Navigator) spinRecovery(st *step) {
	s := &n.state
	if !s.SpinTimer.Exceeded(st.now, n.cfg.MaxSpinning+RecoveryGrace) {
		return
	}
	n.command(n.cfg.SpinRecoveryThrottle, 0, 0)
	s.SpinTimer.Disarm()
	st.emit(EventSpinRecovery)
	diagf("spin recovery: steering saturated for %v", n.cfg.MaxSpinning+RecoveryGrace)
}

// homecoming reports true when the rover has met its mission goals and is
// back within the home radius of its start position.
func (n *Navigator) homecoming(st *step, obs Observation) bool {
	s := &n.state
	if s.SamplesCollected < n.cfg.HomeMinSamples || obs.MappedPercentage < n.cfg.HomeMinMappedPct {
		return false
	}
	if !s.Homecoming {
		s.Homecoming = true
		diagf("returning home: samples=%d mapped=%.2f%%", s.SamplesCollected, obs.MappedPercentage)
	}
	if math.Abs(s.Pos.X-s.StartPos.X) >= n.cfg.HomeRadius || math.Abs(s.Pos.Y-s.StartPos.Y) >= n.cfg.HomeRadius {
		return false
	}
	n.command(0, n.cfg.BrakeSet, 0)
	if !s.MissionComplete {
		opsf("returned home: samples=%d mapped=%.2f%% pos=(%.1f, %.1f)",
			s.SamplesCollected, obs.MappedPercentage, s.Pos.X, s.Pos.Y)
	}
	s.MissionComplete = true
	st.terminal = true
	st.emit(EventReturnedHome)
	return true
}

// stuck runs the evasion manoeuvre while in stuck mode. It always ends the cycle.
func (n *Navigator) stuck(st *step) bool {
	s := &n.state
	if s.Mode != ModeStuck {
		return false
	}
	if s.StuckTimer.Exceeded(st.now, n.cfg.MaxStuck+RecoveryGrace) {
		s.Mode = ModeForward
		s.StuckTimer.Restart(st.now)
		st.emit(EventStuckCleared)
		return true
	}
	n.command(0, 0, -n.cfg.MaxSteerDeg)
	st.emit(EventStuckEvade)
	return true
}

// forward handles forward mode and reports whether the cycle ends here.
func (n *Navigator) forward(st *step, obs Observation) bool {
	s := &n.state

	if math.Abs(s.Command.Steer) == n.cfg.MaxSteerDeg && s.Vel > 0 && !s.SpinTimer.Armed() {
		s.SpinTimer.Arm(st.now)
		st.emit(EventSpinArmed)
		return true
	}

	if s.Vel < n.cfg.StoppedVelocity && s.Command.Throttle != 0 {
		if s.StuckTimer.Exceeded(st.now, n.cfg.MaxStuck) {
			s.Mode = ModeStuck
			st.emit(EventStallDetected)
			return true
		}
	} else {
		s.StuckTimer.Restart(st.now)
	}

	if s.SampleVisible {
		return n.pursueSample(st, obs)
	}

	if s.PickingUp {
		n.command(0, n.cfg.BrakeSet, 0)
		st.emit(EventPickupHold)
		return true
	}

	terrain := obs.Terrain
	if terrain.Len() > n.cfg.StopForwardPixels {
		throttle := n.cfg.ThrottleSet
		if s.Vel >= n.cfg.MaxVel {
			throttle = 0
		}
		n.command(throttle, 0, n.clipSteer(terrain.MeanAngleDeg()))
		s.SpinTimer.Disarm()
		st.emit(EventDrive)
		return false
	}

	n.command(0, n.cfg.BrakeSet, 0)
	s.Mode = ModeStop
	st.emit(EventTerrainLost)
	return false
}

// pursueSample steers toward a visible sample and reports whether the cycle ends here.
func (n *Navigator) pursueSample(st *step, obs Observation) bool {
	s := &n.state
	cfg := n.cfg

	if s.PickingUp {
		s.SamplesCollected++
		s.PickupCounted = true
		s.SampleVisible = false
		s.SampleTimer.Restart(st.now)
		st.emit(EventSampleCollected)
		diagf("sample collected: total=%d", s.SamplesCollected)
		return true
	}

	if s.SampleTimer.Exceeded(st.now, cfg.MaxSampleSearch) {
		s.SampleVisible = false
		s.SampleTimer.Restart(st.now)
		st.emit(EventSampleTimeout)
		diagf("sample search timed out after %v", cfg.MaxSampleSearch)
		return true
	}

	if obs.Samples.Len() == 0 {
		s.SampleVisible = false
		st.emit(EventSampleLost)
		return false
	}

	angle := obs.Samples.MeanAngleDeg()
	nearest := obs.Samples.MinDist()
	switch {
	case math.Abs(angle) < cfg.SampleHeadOnDeg:
		if nearest < cfg.SampleNearDist {
			n.command(0, cfg.BrakeSet, angle)
			st.emit(EventSampleBrake)
		} else {
			n.command(cfg.ThrottleSet*cfg.SampleApproachFraction, 0, angle)
			st.emit(EventSampleApproach)
		}
	case math.Abs(angle) < cfg.SampleRotateDeg:
		if s.Vel > 0 && nearest < cfg.SampleHoldDist {
			n.command(0, cfg.BrakeSet, 0)
			st.emit(EventSampleHold)
		} else {
			n.command(0, 0, angle/cfg.SamplePivotDivisor)
			st.emit(EventSampleRotate)
		}
	default:
		s.SampleVisible = false
		st.emit(EventSampleLost)
		diagf("lost sight of sample at %.1f deg", angle)
	}
	return false
}

// stop handles stop mode.
func (n *Navigator) stop(st *step, obs Observation) {
	s := &n.state
	switch {
	case s.Vel > n.cfg.StoppedVelocity:
		n.command(0, n.cfg.BrakeSet, 0)
		st.emit(EventStopBraking)
	case obs.Terrain.Len() < n.cfg.GoForwardPixels:
		n.command(0, 0, -n.cfg.MaxSteerDeg)
		st.emit(EventStopPivot)
	default:
		n.command(n.cfg.ThrottleSet, 0, n.clipSteer(obs.Terrain.MeanAngleDeg()))
		s.Mode = ModeForward
		st.emit(EventResumeForward)
	}
}

func (n *Navigator) command(throttle, brake, steer float64) {
	n.state.Command = Command{Throttle: throttle, Brake: brake, Steer: n.clipSteer(steer)}
}

func (n *Navigator) clipSteer(deg float64) float64 {
	if math.IsNaN(deg) {
		return 0
	}
	return math.Max(-n.cfg.MaxSteerDeg, math.Min(n.cfg.MaxSteerDeg, deg))
}

func (n *Navigator) finish(st *step, prevMode Mode) Outcome {
	s := &n.state
	if s.Mode != prevMode {
		diagf("mode %s -> %s", prevMode, s.Mode)
	}
	tracef("step: mode=%s throttle=%.2f brake=%.2f steer=%.2f events=%v",
		s.Mode, s.Command.Throttle, s.Command.Brake, s.Command.Steer, st.events)
	return Outcome{
		Command:         s.Command,
		Mode:            s.Mode,
		Events:          st.events,
		SendPickup:      s.SendPickup,
		MissionComplete: s.MissionComplete,
		Terminal:        st.terminal,
	}
}
