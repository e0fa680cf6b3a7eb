package clock

import (
	"fmt"
	"time"
)

// Clock provides current time abstraction for deterministic tests.
// Params: none.
// Returns: current wall-clock time.
type Clock interface {
	Now() time.Time
}

// RealClock reads current UTC time from system clock.
type RealClock struct{}

// Now returns current UTC time.
func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always reports the same instant.
type Fixed time.Time

// Now returns the fixed instant in UTC.
func (f Fixed) Now() time.Time {
	return time.Time(f).UTC()
}

// RunID formats one run identifier from a timestamp.
// Layout is YYYYMMDD_HHMMSS followed by two centisecond digits, in UTC.
// Params: run start time.
// Returns: tag-safe run identifier.
func RunID(t time.Time) string {
	t = t.UTC()
	return t.Format("20060102_150405") + fmt.Sprintf("%02d", t.Nanosecond()/int(10*time.Millisecond))
}

// NewRunID reads clock c and formats the run identifier.
func NewRunID(c Clock) string {
	if c == nil {
		c = RealClock{}
	}
	return RunID(c.Now())
}
