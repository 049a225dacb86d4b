package l4decision

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rover.nav/internal/rover/l2coords"
	"github.com/banshee-data/rover.nav/internal/timeutil"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// readings returns n readings all at angleDeg and dist.
func readings(n int, angleDeg, dist float64) l2coords.PolarReadings {
	pr := l2coords.PolarReadings{Dists: make([]float64, n), Angles: make([]float64, n)}
	for i := 0; i < n; i++ {
		pr.Dists[i] = dist
		pr.Angles[i] = angleDeg * math.Pi / 180
	}
	return pr
}

func terrain(n int, angleDeg float64) *l2coords.PolarReadings {
	pr := readings(n, angleDeg, 50)
	return &pr
}

func newTestNavigator() (*Navigator, *timeutil.MockClock) {
	clock := timeutil.NewMockClock(t0)
	return NewNavigator(DefaultConfig(), clock, Position{X: 100, Y: 100}), clock
}

func home() Position { return Position{X: 100, Y: 100} }

func TestStep_ForwardLowTerrainStops(t *testing.T) {
	t.Parallel()
	n, _ := newTestNavigator()

	got := n.Step(Observation{Pos: home(), Vel: 1.0, Terrain: terrain(30, 0)})

	want := Outcome{
		Command: Command{Throttle: 0, Brake: 10, Steer: 0},
		Mode:    ModeStop,
		Events:  []Event{EventTerrainLost},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Step() mismatch (-want +got):\n%s", diff)
	}
}

func TestStep_StopResumesWithEnoughTerrain(t *testing.T) {
	t.Parallel()
	n, _ := newTestNavigator()
	n.state.Mode = ModeStop

	got := n.Step(Observation{Pos: home(), Vel: 0.1, Terrain: terrain(150, 0)})

	want := Outcome{
		Command: Command{Throttle: 0.2, Brake: 0, Steer: 0},
		Mode:    ModeForward,
		Events:  []Event{EventResumeForward},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Step() mismatch (-want +got):\n%s", diff)
	}
}

func TestStep_StopModeBranches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		vel     float64
		pixels  int
		want    Command
		event   Event
		endMode Mode
	}{
		{"still moving brakes", 0.5, 500, Command{Brake: 10}, EventStopBraking, ModeStop},
		{"stopped with little terrain pivots", 0.2, 99, Command{Steer: -15}, EventStopPivot, ModeStop},
		{"stopped with terrain resumes", 0, 100, Command{Throttle: 0.2, Steer: 15}, EventResumeForward, ModeForward},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			n, _ := newTestNavigator()
			n.state.Mode = ModeStop
			got := n.Step(Observation{Pos: home(), Vel: tt.vel, Terrain: terrain(tt.pixels, 40)})
			assert.Equal(t, tt.want, got.Command)
			assert.Equal(t, tt.endMode, got.Mode)
			assert.True(t, got.Has(tt.event), "events %v", got.Events)
		})
	}
}

func TestStep_ReturnedHome(t *testing.T) {
	t.Parallel()
	n, _ := newTestNavigator()
	n.state.SamplesCollected = 5

	got := n.Step(Observation{Pos: Position{X: 105, Y: 93}, Vel: 0.5, Terrain: terrain(500, 0), MappedPercentage: 96})

	want := Outcome{
		Command:         Command{Throttle: 0, Brake: 10, Steer: 0},
		Mode:            ModeForward,
		Events:          []Event{EventReturnedHome},
		MissionComplete: true,
		Terminal:        true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Step() mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, n.State().Homecoming)
}

func TestStep_HomecomingAwayFromStartKeepsDriving(t *testing.T) {
	t.Parallel()
	n, _ := newTestNavigator()
	n.state.SamplesCollected = 6

	got := n.Step(Observation{Pos: Position{X: 100, Y: 110}, Vel: 0.5, Terrain: terrain(500, 0), MappedPercentage: 99})

	assert.False(t, got.MissionComplete)
	assert.False(t, got.Terminal)
	assert.True(t, got.Has(EventDrive))
	assert.True(t, n.State().Homecoming)
}

func TestStep_HomeNotReachedWithoutGoals(t *testing.T) {
	t.Parallel()
	n, _ := newTestNavigator()
	n.state.SamplesCollected = 4

	got := n.Step(Observation{Pos: home(), Vel: 0.5, Terrain: terrain(500, 0), MappedPercentage: 100})
	assert.False(t, got.MissionComplete)
	assert.False(t, n.State().Homecoming)
}

func TestStep_StuckEvadesUntilGraceExpires(t *testing.T) {
	t.Parallel()
	n, clock := newTestNavigator()
	n.state.Mode = ModeStuck
	n.state.StuckTimer.Restart(t0)

	clock.Set(t0.Add(3 * time.Second))
	got := n.Step(Observation{Pos: home(), Terrain: terrain(500, 0)})
	want := Outcome{
		Command: Command{Throttle: 0, Brake: 0, Steer: -15},
		Mode:    ModeStuck,
		Events:  []Event{EventStuckEvade},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Step() mismatch (-want +got):\n%s", diff)
	}

	// Exactly max_stuck + 1s is not yet exceeded.
	clock.Set(t0.Add(6 * time.Second))
	got = n.Step(Observation{Pos: home(), Terrain: terrain(500, 0)})
	assert.Equal(t, ModeStuck, got.Mode)

	clock.Set(t0.Add(6*time.Second + time.Millisecond))
	got = n.Step(Observation{Pos: home(), Terrain: terrain(500, 0)})
	assert.Equal(t, ModeForward, got.Mode)
	assert.Equal(t, []Event{EventStuckCleared}, got.Events)
	assert.Equal(t, Command{Steer: -15}, got.Command, "clearing stuck issues no new command")
	assert.Equal(t, clock.Now(), n.State().StuckTimer.Started())
}

func TestStep_StallEntersStuck(t *testing.T) {
	t.Parallel()
	n, clock := newTestNavigator()

	got := n.Step(Observation{Pos: home(), Vel: 0.5, Terrain: terrain(500, 0)})
	require.Equal(t, Command{Throttle: 0.2}, got.Command)

	clock.Set(t0.Add(time.Second))
	got = n.Step(Observation{Pos: home(), Vel: 0, Terrain: terrain(500, 0)})
	assert.Equal(t, ModeForward, got.Mode, "stall shorter than max_stuck keeps driving")

	clock.Set(t0.Add(5500 * time.Millisecond))
	got = n.Step(Observation{Pos: home(), Vel: 0, Terrain: terrain(500, 0)})
	assert.Equal(t, ModeStuck, got.Mode)
	assert.Equal(t, []Event{EventStallDetected}, got.Events)
}

func TestStep_MovingRestartsStuckStopwatch(t *testing.T) {
	t.Parallel()
	n, clock := newTestNavigator()

	clock.Set(t0.Add(10 * time.Second))
	n.Step(Observation{Pos: home(), Vel: 1, Terrain: terrain(500, 0)})
	assert.Equal(t, clock.Now(), n.State().StuckTimer.Started())
}

func TestStep_SpinArmThenRecover(t *testing.T) {
	t.Parallel()
	n, clock := newTestNavigator()

	got := n.Step(Observation{Pos: home(), Vel: 0.5, Terrain: terrain(500, 40)})
	require.Equal(t, Command{Throttle: 0.2, Steer: 15}, got.Command)

	clock.Set(t0.Add(100 * time.Millisecond))
	got = n.Step(Observation{Pos: home(), Vel: 0.5, Terrain: terrain(500, 40)})
	assert.Equal(t, []Event{EventSpinArmed}, got.Events)
	assert.True(t, n.State().SpinTimer.Armed())

	// Without vision the spin stopwatch keeps running.
	clock.Set(t0.Add(6200 * time.Millisecond))
	got = n.Step(Observation{Pos: home(), Vel: 0.5})
	assert.Equal(t, []Event{EventSpinRecovery, EventNoVision}, got.Events)
	assert.Equal(t, Command{Throttle: 0.2}, got.Command)
	assert.False(t, n.State().SpinTimer.Armed())
}

func TestStep_OpenTerrainDisarmsSpin(t *testing.T) {
	t.Parallel()
	n, clock := newTestNavigator()
	n.state.SpinTimer.Arm(t0)

	clock.Set(t0.Add(time.Second))
	got := n.Step(Observation{Pos: home(), Vel: 0.5, Terrain: terrain(500, 5)})
	assert.True(t, got.Has(EventDrive))
	assert.False(t, n.State().SpinTimer.Armed())
}

func TestStep_CoastsAtMaxVelocity(t *testing.T) {
	t.Parallel()
	n, _ := newTestNavigator()

	got := n.Step(Observation{Pos: home(), Vel: 2.0, Terrain: terrain(500, -5)})
	assert.Equal(t, 0.0, got.Command.Throttle)
	assert.InDelta(t, -5, got.Command.Steer, 1e-9)
}

func TestStep_NoVisionCreeps(t *testing.T) {
	t.Parallel()
	n, _ := newTestNavigator()
	n.state.Mode = ModeStop

	got := n.Step(Observation{Pos: home(), Vel: 1})
	assert.Equal(t, Command{Throttle: 0.2}, got.Command)
	assert.Equal(t, ModeStop, got.Mode)
	assert.Equal(t, []Event{EventNoVision}, got.Events)
}

func TestStep_EmptyTerrainIsNotNoVision(t *testing.T) {
	t.Parallel()
	n, _ := newTestNavigator()

	got := n.Step(Observation{Pos: home(), Vel: 1, Terrain: &l2coords.PolarReadings{}})
	assert.Equal(t, []Event{EventTerrainLost}, got.Events)
}

func TestStep_SamplePursuit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		vel   float64
		angle float64
		dist  float64
		want  Command
		event Event
	}{
		{"head on far approaches at half throttle", 0.5, 10, 60, Command{Throttle: 0.1, Steer: 10}, EventSampleApproach},
		{"head on near brakes", 0.5, -10, 12, Command{Brake: 10, Steer: -10}, EventSampleBrake},
		{"off axis moving and close holds", 0.5, 30, 35, Command{Brake: 10}, EventSampleHold},
		{"off axis stopped pivots", 0, 30, 35, Command{Steer: 7.5}, EventSampleRotate},
		{"off axis far pivots", 0.5, -40, 80, Command{Steer: -10}, EventSampleRotate},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			n, _ := newTestNavigator()
			got := n.Step(Observation{
				Pos: home(), Vel: tt.vel, Terrain: terrain(500, 0),
				Samples: readings(20, tt.angle, tt.dist), SampleSighted: true,
			})
			assert.InDelta(t, tt.want.Throttle, got.Command.Throttle, 1e-9)
			assert.InDelta(t, tt.want.Brake, got.Command.Brake, 1e-9)
			assert.InDelta(t, tt.want.Steer, got.Command.Steer, 1e-9)
			assert.Equal(t, []Event{tt.event}, got.Events)
			assert.True(t, n.State().SampleVisible)
		})
	}
}

func TestStep_SampleLostHoldsPreviousCommand(t *testing.T) {
	t.Parallel()
	n, _ := newTestNavigator()

	prev := n.Step(Observation{Pos: home(), Vel: 0.5, Terrain: terrain(500, 3)})
	require.True(t, prev.Has(EventDrive))

	got := n.Step(Observation{
		Pos: home(), Vel: 0.5, Terrain: terrain(500, 3),
		Samples: readings(5, 80, 30), SampleSighted: true,
	})
	assert.Equal(t, []Event{EventSampleLost}, got.Events)
	assert.Equal(t, prev.Command, got.Command)
	assert.False(t, n.State().SampleVisible)
}

func TestStep_SampleCollectedOnce(t *testing.T) {
	t.Parallel()
	n, clock := newTestNavigator()

	n.Step(Observation{Pos: home(), Vel: 0.5, Terrain: terrain(500, 0), Samples: readings(10, 0, 60), SampleSighted: true})

	clock.Advance(time.Second)
	got := n.Step(Observation{Pos: home(), Vel: 0, PickingUp: true, NearSample: true, Terrain: terrain(500, 0),
		Samples: readings(10, 0, 5), SampleSighted: true})
	assert.Equal(t, []Event{EventSampleCollected}, got.Events)
	assert.Equal(t, 1, n.State().SamplesCollected)
	assert.Equal(t, clock.Now(), n.State().SampleTimer.Started())

	clock.Advance(time.Second)
	got = n.Step(Observation{Pos: home(), Vel: 0, PickingUp: true, NearSample: true, Terrain: terrain(500, 0),
		Samples: readings(10, 0, 5), SampleSighted: true})
	assert.False(t, got.Has(EventSampleCollected))
	assert.Equal(t, []Event{EventPickupHold}, got.Events)
	assert.Equal(t, Command{Throttle: 0, Brake: 10, Steer: 0}, got.Command)
	assert.Equal(t, 1, n.State().SamplesCollected)
}

// pickUpSample drives one full pickup: brake beside the sample, request the
// pickup, wait while the rover lifts it with the sample still in view, then
// drive on once it is gone.
func pickUpSample(t *testing.T, n *Navigator, clock *timeutil.MockClock, pos Position, mapped float64) {
	t.Helper()
	before := n.State().SamplesCollected
	obs := func(vel float64, near, picking, sighted bool) Observation {
		o := Observation{Pos: pos, Vel: vel, NearSample: near, PickingUp: picking,
			Terrain: terrain(500, 0), MappedPercentage: mapped}
		if sighted {
			o.Samples = readings(10, 2, 10)
			o.SampleSighted = true
		}
		return o
	}

	clock.Advance(200 * time.Millisecond)
	got := n.Step(obs(0.5, false, false, true))
	require.Equal(t, []Event{EventSampleBrake}, got.Events)

	clock.Advance(200 * time.Millisecond)
	got = n.Step(obs(0, true, false, true))
	require.Equal(t, []Event{EventSampleBrake, EventPickupRequested}, got.Events)
	require.True(t, got.SendPickup)
	require.False(t, n.State().SampleVisible)

	for i := 0; i < 5; i++ {
		clock.Advance(200 * time.Millisecond)
		got = n.Step(obs(0, true, true, true))
		if i == 0 {
			require.Equal(t, []Event{EventSampleCollected}, got.Events)
		} else {
			require.Equal(t, []Event{EventPickupHold}, got.Events, "tick %d of the pickup", i)
		}
		assert.Zero(t, got.Command.Throttle, "no throttle while lifting")
		assert.False(t, got.SendPickup)
	}

	clock.Advance(200 * time.Millisecond)
	got = n.Step(obs(0, false, false, false))
	require.Equal(t, []Event{EventDrive}, got.Events)
	assert.False(t, n.State().PickupCounted)
	require.Equal(t, before+1, n.State().SamplesCollected)
}

func TestStep_PickupSequenceCountsSampleOnce(t *testing.T) {
	t.Parallel()
	n, clock := newTestNavigator()

	pickUpSample(t, n, clock, home(), 0)
	assert.Equal(t, 1, n.State().SamplesCollected)
}

func TestStep_PickupCountedWithSampleOutOfView(t *testing.T) {
	t.Parallel()
	n, clock := newTestNavigator()

	clock.Advance(time.Second)
	got := n.Step(Observation{Pos: home(), Vel: 0, NearSample: true, PickingUp: true, Terrain: terrain(500, 0)})
	assert.Equal(t, []Event{EventSampleCollected}, got.Events)
	assert.Equal(t, 1, n.State().SamplesCollected)
}

func TestStep_CollectsSamplesThenReturnsHome(t *testing.T) {
	t.Parallel()
	n, clock := newTestNavigator()
	away := Position{X: 150, Y: 140}

	for i := 0; i < 5; i++ {
		assert.False(t, n.State().Homecoming, "goals not met after %d samples", i)
		pickUpSample(t, n, clock, away, 96)
	}
	assert.Equal(t, 5, n.State().SamplesCollected)

	clock.Advance(time.Second)
	got := n.Step(Observation{Pos: Position{X: 120, Y: 115}, Vel: 1, Terrain: terrain(500, 0), MappedPercentage: 96})
	assert.True(t, n.State().Homecoming)
	assert.False(t, got.MissionComplete)
	assert.True(t, got.Has(EventDrive))

	clock.Advance(time.Second)
	got = n.Step(Observation{Pos: Position{X: 104, Y: 97}, Vel: 1, Terrain: terrain(500, 0), MappedPercentage: 96})
	want := Outcome{
		Command:         Command{Throttle: 0, Brake: 10, Steer: 0},
		Mode:            ModeForward,
		Events:          []Event{EventReturnedHome},
		MissionComplete: true,
		Terminal:        true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Step() mismatch (-want +got):\n%s", diff)
	}
}

func TestStep_SampleSearchTimesOut(t *testing.T) {
	t.Parallel()
	n, clock := newTestNavigator()
	obs := Observation{Pos: home(), Vel: 0.5, Terrain: terrain(500, 0), Samples: readings(10, 30, 80), SampleSighted: true}

	n.Step(obs)
	clock.Set(t0.Add(20 * time.Second))
	got := n.Step(obs)
	assert.True(t, got.Has(EventSampleRotate), "exactly at the limit keeps pursuing")

	clock.Set(t0.Add(20*time.Second + time.Millisecond))
	got = n.Step(obs)
	assert.Equal(t, []Event{EventSampleTimeout}, got.Events)
	assert.False(t, n.State().SampleVisible)
}

func TestStep_PickupTrigger(t *testing.T) {
	t.Parallel()
	n, _ := newTestNavigator()

	n.Step(Observation{Pos: home(), Vel: 0.5, Terrain: terrain(500, 0), Samples: readings(10, 2, 10), SampleSighted: true})

	got := n.Step(Observation{Pos: home(), Vel: 0, NearSample: true, Terrain: terrain(500, 0),
		Samples: readings(10, 2, 10), SampleSighted: true})
	assert.Equal(t, []Event{EventSampleBrake, EventPickupRequested}, got.Events)
	assert.True(t, got.SendPickup)
	assert.False(t, n.State().SampleVisible)

	// The request is a one-cycle signal.
	got = n.Step(Observation{Pos: home(), Vel: 0, PickingUp: true, NearSample: true, Terrain: terrain(500, 0)})
	assert.False(t, got.SendPickup)
}

func TestStep_PickupSkippedAfterShortCircuit(t *testing.T) {
	t.Parallel()
	n, _ := newTestNavigator()
	n.state.Mode = ModeStuck
	n.state.StuckTimer.Restart(t0)

	got := n.Step(Observation{Pos: home(), Vel: 0, NearSample: true, Terrain: terrain(500, 0)})
	assert.False(t, got.SendPickup)
}

func TestStep_SteerNeverExceedsLimit(t *testing.T) {
	t.Parallel()
	n, clock := newTestNavigator()
	rng := rand.New(rand.NewSource(3))

	for i := 0; i < 2000; i++ {
		clock.Advance(time.Duration(rng.Intn(700)) * time.Millisecond)
		obs := Observation{
			Pos:        Position{X: rng.Float64() * 200, Y: rng.Float64() * 200},
			Vel:        rng.Float64()*3 - 0.5,
			NearSample: rng.Intn(10) == 0,
			PickingUp:  rng.Intn(20) == 0,
		}
		if rng.Intn(8) != 0 {
			obs.Terrain = terrain(rng.Intn(400), rng.Float64()*360-180)
		}
		if rng.Intn(3) == 0 {
			obs.Samples = readings(1+rng.Intn(20), rng.Float64()*180-90, rng.Float64()*100)
			obs.SampleSighted = true
		}
		got := n.Step(obs)
		if math.Abs(got.Command.Steer) > 15 {
			t.Fatalf("step %d: steer %f outside [-15, 15]", i, got.Command.Steer)
		}
		if len(got.Events) == 0 {
			t.Fatalf("step %d: no events reported", i)
		}
	}
}
