package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/banshee-data/rover.nav/internal/rover/monitor"
	"github.com/banshee-data/rover.nav/internal/rover/pipeline"
	sqlite "github.com/banshee-data/rover.nav/internal/rover/storage/sqlite"
	"github.com/banshee-data/rover.nav/internal/timeutil"
)

// replayStats summarises one pass over a session.
type replayStats struct {
	Ticks     int
	Rejected  int
	Pickups   int
	Completed bool
}

// replay feeds every session record through rt, setting clock to epoch plus
// the record offset before each tick. Records whose frame cannot be decoded
// or that the runtime rejects are counted and skipped. Commands are written
// to out one line per tick.
func replay(ctx context.Context, rt *pipeline.Runtime, clock *timeutil.MockClock, epoch time.Time,
	s *Session, plotter *monitor.MapPlotter, out io.Writer) (replayStats, error) {
	var stats replayStats
	for i, rec := range s.Records {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		clock.Set(epoch.Add(rec.Offset()))

		in, err := s.Input(i)
		if err != nil {
			logf("record %d: %v", i, err)
			stats.Rejected++
			continue
		}
		o, err := rt.Tick(in)
		if err != nil {
			logf("record %d: %v", i, err)
			stats.Rejected++
			continue
		}
		stats.Ticks++
		if o.SendPickup {
			stats.Pickups++
		}
		if o.MissionComplete {
			stats.Completed = true
		}
		if plotter != nil {
			plotter.Sample(rt)
		}
		if _, err := fmt.Fprintln(out, formatOutput(rec.T, o)); err != nil {
			return stats, fmt.Errorf("write output: %w", err)
		}
	}
	return stats, nil
}

func formatOutput(t float64, o pipeline.Output) string {
	events := make([]string, len(o.Events))
	for i, e := range o.Events {
		events[i] = string(e)
	}
	return fmt.Sprintf("t=%.3f mode=%s throttle=%.2f brake=%.2f steer=%.2f pickup=%t events=%s",
		t, o.Mode, o.Command.Throttle, o.Command.Brake, o.Command.Steer, o.SendPickup, strings.Join(events, ","))
}

// missionOutcome maps a finished replay to a stored mission outcome.
func missionOutcome(stats replayStats) string {
	if stats.Completed {
		return sqlite.OutcomeReturned
	}
	return sqlite.OutcomeEnded
}
