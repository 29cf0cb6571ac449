package clock

import (
	"testing"
	"time"
)

func TestFakeClockAdvance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFake(start)

	if !c.Now().Equal(start) {
		t.Fatalf("expected initial time %v, got %v", start, c.Now())
	}
	m0 := c.NowMonotonic()

	c.Advance(20 * time.Microsecond)

	if got := c.Now(); !got.Equal(start.Add(20 * time.Microsecond)) {
		t.Errorf("expected wall time to advance 20us, got %v", got)
	}
	if got := c.NowMonotonic() - m0; got != int64(20*time.Microsecond) {
		t.Errorf("expected monotonic delta 20us, got %dns", got)
	}
}

func TestConverterMonotonicOrdering(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFake(start)

	conv := NewConverter(c)
	t0 := c.NowMonotonic()

	c.Advance(5 * time.Millisecond)
	t1 := c.NowMonotonic()

	wall0 := conv.Convert(t0)
	wall1 := conv.Convert(t1)

	if !wall0.Equal(start) {
		t.Errorf("expected converted t0 to equal creation wall time, got %v", wall0)
	}
	if !wall1.Equal(start.Add(5 * time.Millisecond)) {
		t.Errorf("expected converted t1 to be 5ms later, got %v", wall1)
	}
	if !wall1.After(wall0) {
		t.Errorf("expected monotonically ordered conversions")
	}
}
