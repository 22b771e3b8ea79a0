package telemetry

import "time"

// Stopwatch measures wall time on the monotonic clock, so system clock
// adjustments do not affect the reading.
type Stopwatch struct {
	start time.Time
	end   time.Time
}

// StartStopwatch records the start instant.
func StartStopwatch() *Stopwatch {
	return &Stopwatch{start: time.Now()}
}

// Started returns the wall clock time the stopwatch was started.
func (s *Stopwatch) Started() time.Time { return s.start.Round(0) }

// Stop freezes the reading. Later calls keep the first end instant.
func (s *Stopwatch) Stop() time.Duration {
	if s.end.IsZero() {
		s.end = time.Now()
	}
	return s.Elapsed()
}

// Elapsed returns the time since start, or the frozen reading after Stop.
func (s *Stopwatch) Elapsed() time.Duration {
	end := s.end
	if end.IsZero() {
		end = time.Now()
	}
	d := end.Sub(s.start)
	if d < 0 {
		return 0
	}
	return d
}

// Seconds is Elapsed in fractional seconds.
func (s *Stopwatch) Seconds() float64 { return s.Elapsed().Seconds() }
