package view

import (
	"time"

	"github.com/driftloop/telemetry/stats"
	"github.com/driftloop/telemetry/tag"
)

// WindowKind distinguishes a View's aggregation window.
type WindowKind int

const (
	// WindowCumulative accumulates forever; snapshotting never resets
	// state.
	WindowCumulative WindowKind = iota
	// WindowInterval aggregates over a sliding window of fixed
	// duration, maintained as N+1 buckets.
	WindowInterval
)

// Window describes a View's aggregation window.
type Window struct {
	Kind     WindowKind
	Duration time.Duration // Interval only.
	Buckets  int           // Interval only; N. Zero means the default of 4.
}

// Cumulative returns the cumulative (never-reset) window.
func Cumulative() Window { return Window{Kind: WindowCumulative} }

// Interval returns a sliding window of the given total duration,
// maintained as N+1 buckets, N defaulting to 4.
func Interval(duration time.Duration) Window {
	return Window{Kind: WindowInterval, Duration: duration}
}

// IntervalN returns a sliding window like Interval, with an explicit
// bucket count N (valid range [2, 20]).
func IntervalN(duration time.Duration, n int) Window {
	return Window{Kind: WindowInterval, Duration: duration, Buckets: n}
}

// View declares how to aggregate a Measure by a set of tag columns
// over a time window.
type View struct {
	Name         string
	Description  string
	Measure      stats.Measure
	Aggregations []Aggregation
	Columns      []tag.Key
	Window       Window
}

func aggregationsEqual(a, b Aggregation) bool {
	if a.Kind != b.Kind || len(a.Bounds) != len(b.Bounds) {
		return false
	}
	for i := range a.Bounds {
		if a.Bounds[i] != b.Bounds[i] {
			return false
		}
	}
	return true
}

func (v View) equalTo(o View) bool {
	if v.Name != o.Name || v.Description != o.Description || v.Measure != o.Measure {
		return false
	}
	if v.Window != o.Window {
		return false
	}
	if len(v.Aggregations) != len(o.Aggregations) {
		return false
	}
	for i := range v.Aggregations {
		if !aggregationsEqual(v.Aggregations[i], o.Aggregations[i]) {
			return false
		}
	}
	if len(v.Columns) != len(o.Columns) {
		return false
	}
	for i := range v.Columns {
		if v.Columns[i] != o.Columns[i] {
			return false
		}
	}
	return true
}

// WindowData describes the time range a ViewData snapshot covers.
type WindowData struct {
	Kind  WindowKind
	Start time.Time // Cumulative only.
	End   time.Time
}

// Row is one aggregation cell: the tag values observed for the view's
// columns, in column order, paired with one snapshot per declared
// aggregation, in View.Aggregations order.
type Row struct {
	TagValues []tag.Value
	Data      []AggregationData
}

// ViewData is a point-in-time snapshot of a View's aggregated state.
type ViewData struct {
	View   View
	Window WindowData
	Rows   []Row
}
