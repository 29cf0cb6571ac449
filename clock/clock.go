// Package clock provides the wall-clock and monotonic time source consumed
// by the trace and stats subsystems. Production code uses Real; tests use
// NewFake so that span durations and interval-view bucket shifts are
// deterministic.
package clock

import (
	"time"

	"github.com/zoobzio/clockz"
)

// Clock is the time source consumed throughout this module. Now reports
// wall-clock time; NowMonotonic reports a strictly non-decreasing
// nanosecond counter independent of wall-clock adjustments.
type Clock interface {
	Now() time.Time
	NowMonotonic() int64
}

// realClock anchors a monotonic counter once at construction and derives
// every later reading from time.Since, so NowMonotonic never moves
// backwards even if the wall clock is adjusted by NTP.
type realClock struct {
	inner         clockz.Clock
	monotonicBase time.Time
}

// Real is the production clock.
var Real Clock = &realClock{
	inner:         clockz.RealClock,
	monotonicBase: time.Now(),
}

func (c *realClock) Now() time.Time { return c.inner.Now() }

func (c *realClock) NowMonotonic() int64 {
	return int64(time.Since(c.monotonicBase))
}

// Fake is a controllable clock for tests. Its wall and monotonic readings
// advance together under Advance, adding the monotonic reading the
// Converter needs.
type Fake struct {
	fake  *clockz.FakeClock
	start time.Time
}

// NewFake returns a Fake clock whose initial wall-clock reading is start.
func NewFake(start time.Time) *Fake {
	return &Fake{
		fake:  clockz.NewFakeClockAt(start),
		start: start,
	}
}

func (f *Fake) Now() time.Time { return f.fake.Now() }

func (f *Fake) NowMonotonic() int64 {
	return int64(f.fake.Now().Sub(f.start))
}

// Advance moves the fake clock forward by d, advancing both the wall and
// monotonic readings together.
func (f *Fake) Advance(d time.Duration) {
	f.fake.Advance(d)
}

// Timestamp is a wall-clock reading with second/nanosecond precision.
type Timestamp struct {
	Seconds int64
	Nanos   int32
}

// NewTimestamp converts a time.Time into a Timestamp.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())}
}

// Time converts the Timestamp back into a time.Time (UTC).
func (t Timestamp) Time() time.Time {
	return time.Unix(t.Seconds, int64(t.Nanos)).UTC()
}

// Converter anchors a monotonic-to-wall mapping once, at the moment a trace
// (or any other monotonically-timed sequence) begins, so that later events
// on the same sequence are converted consistently even if the wall clock is
// adjusted mid-trace.
type Converter struct {
	wallAtCreation time.Time
	monoAtCreation int64
}

// NewConverter captures (wall clock, monotonic clock) once.
func NewConverter(c Clock) *Converter {
	return &Converter{
		wallAtCreation: c.Now(),
		monoAtCreation: c.NowMonotonic(),
	}
}

// Convert maps a monotonic nanosecond reading taken from the same Clock
// that created this Converter into a wall-clock time.
func (tc *Converter) Convert(monotonicNanos int64) time.Time {
	delta := monotonicNanos - tc.monoAtCreation
	return tc.wallAtCreation.Add(time.Duration(delta))
}
