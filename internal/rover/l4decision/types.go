package l4decision

import (
	"github.com/banshee-data/rover.nav/internal/rover/l2coords"
	"github.com/banshee-data/rover.nav/internal/timeutil"
)

// Mode is the navigation mode.
type Mode string

const (
	ModeForward Mode = "forward"
	ModeStop    Mode = "stop"
	ModeStuck   Mode = "stuck"
)

// Event names something the navigator did during one step.
type Event string

const (
	EventSpinRecovery    Event = "spin_recovery"
	EventReturnedHome    Event = "returned_home"
	EventStuckEvade      Event = "stuck_evade"
	EventStuckCleared    Event = "stuck_cleared"
	EventNoVision        Event = "no_vision"
	EventSpinArmed       Event = "spin_armed"
	EventStallDetected   Event = "stall_detected"
	EventSampleCollected Event = "sample_collected"
	EventSampleTimeout   Event = "sample_timeout"
	EventSampleApproach  Event = "sample_approach"
	EventSampleBrake     Event = "sample_brake"
	EventSampleRotate    Event = "sample_rotate"
	EventSampleHold      Event = "sample_hold"
	EventSampleLost      Event = "sample_lost"
	EventDrive           Event = "drive"
	EventTerrainLost     Event = "terrain_lost"
	EventStopBraking     Event = "stop_braking"
	EventStopPivot       Event = "stop_pivot"
	EventResumeForward   Event = "resume_forward"
	EventPickupRequested Event = "pickup_requested"
	EventPickupHold      Event = "pickup_hold"
)

// Command is the actuator setpoint sent to the rover.
type Command struct {
	Throttle float64 `json:"throttle"`
	Brake    float64 `json:"brake"`
	Steer    float64 `json:"steer"` // degrees, positive is left
}

// Position is a world-frame location in map cells.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// RoverState is everything the navigator carries between steps.
type RoverState struct {
	Pos      Position
	StartPos Position
	Yaw      float64
	Vel      float64

	Command Command
	Mode    Mode

	StuckTimer  timeutil.Stopwatch
	SpinTimer   timeutil.Stopwatch
	SampleTimer timeutil.Stopwatch

	SamplesCollected int

	SampleVisible   bool
	PickingUp       bool
	NearSample      bool
	SendPickup      bool
	MissionComplete bool
	Homecoming      bool

	// PickupCounted latches once the current pickup has been counted and
	// clears when the rover stops reporting a pickup in progress.
	PickupCounted bool
}

// Observation is one cycle of input to the navigator.
type Observation struct {
	Pos        Position
	Yaw        float64
	Vel        float64
	NearSample bool
	PickingUp  bool

	// Terrain is nil when no frame was processed this cycle.
	Terrain *l2coords.PolarReadings
	// Samples are the sample pixel readings of this cycle.
	Samples l2coords.PolarReadings
	// SampleSighted reports that sample pixels were classified this cycle.
	SampleSighted bool

	MappedPercentage float64
}

// Outcome is the explicit result of one navigator step.
type Outcome struct {
	Command         Command `json:"command"`
	Mode            Mode    `json:"mode"`
	Events          []Event `json:"events"`
	SendPickup      bool    `json:"send_pickup"`
	MissionComplete bool    `json:"mission_complete"`
	// Terminal is set on the step that detected arrival home.
	Terminal bool `json:"terminal"`
}

// Has reports whether e occurred during the step.
func (o Outcome) Has(e Event) bool {
	for _, got := range o.Events {
		if got == e {
			return true
		}
	}
	return false
}
