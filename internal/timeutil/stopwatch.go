package timeutil

import "time"

// Stopwatch is a small armed/started pair used for timed recovery logic.
//
// A disarmed stopwatch never reports an expiry. Arm records the start time;
// Restart re-arms from the current time; Disarm clears both.
type Stopwatch struct {
	armed   bool
	started time.Time
}

// NewArmedStopwatch returns a stopwatch armed at now.
func NewArmedStopwatch(now time.Time) Stopwatch {
	return Stopwatch{armed: true, started: now}
}

// Arm starts the stopwatch at now if it is not already armed.
func (s *Stopwatch) Arm(now time.Time) {
	if s.armed {
		return
	}
	s.armed = true
	s.started = now
}

// Restart arms the stopwatch at now, discarding any previous start.
func (s *Stopwatch) Restart(now time.Time) {
	s.armed = true
	s.started = now
}

// Disarm clears the stopwatch.
func (s *Stopwatch) Disarm() {
	s.armed = false
	s.started = time.Time{}
}

// Armed reports whether the stopwatch is running.
func (s Stopwatch) Armed() bool {
	return s.armed
}

// Started returns the arm time, or the zero time when disarmed.
func (s Stopwatch) Started() time.Time {
	return s.started
}

// Elapsed returns the time since the stopwatch was armed, or zero when disarmed.
func (s Stopwatch) Elapsed(now time.Time) time.Duration {
	if !s.armed {
		return 0
	}
	return now.Sub(s.started)
}

// Exceeded reports whether the stopwatch is armed and strictly more than
// limit has passed since it was armed.
func (s Stopwatch) Exceeded(now time.Time, limit time.Duration) bool {
	return s.armed && now.Sub(s.started) > limit
}
