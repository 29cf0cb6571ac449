package view

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/driftloop/telemetry/clock"
	"github.com/driftloop/telemetry/stats"
	"github.com/driftloop/telemetry/tag"
)

// Unknown is the sentinel tag value substituted for a view column the
// recorded tag context did not set.
var Unknown = tag.Value{}

func init() {
	v, err := tag.NewValue("UNKNOWN")
	if err != nil {
		panic(err)
	}
	Unknown = v
}

// ErrIllegalArgument covers precondition violations: registering a
// view whose name collides with a different existing view, or
// querying an unknown view name.
var ErrIllegalArgument = errors.New("view: illegal argument")

// ErrTimeWentBackwards is returned when an interval view observes a
// record or snapshot timestamp earlier than its newest bucket's start.
var ErrTimeWentBackwards = errors.New("view: time went backwards for interval view")

// viewState is the narrow shared interface the two concrete window
// implementations satisfy, collapsing what the source modeled as a
// class hierarchy (CumulativeMutableViewData / IntervalMutableViewData)
// into two plain types.
type viewState interface {
	record(values []tag.Value, value float64, now time.Time) error
	snapshot(now time.Time) ([]Row, WindowData, error)
}

type registeredView struct {
	view  View
	state viewState
}

// Engine is the view aggregation engine: it owns every registered
// view, routes measurements recorded against a subscribed measure to
// each subscribed view's state, and answers point-in-time snapshot
// queries. Engine implements stats.Sink so a stats.Recorder can enqueue
// directly into it.
type Engine struct {
	clk    clock.Clock
	logger *zap.Logger

	mu        sync.RWMutex
	views     map[string]*registeredView
	byMeasure map[string][]*registeredView

	exportersMu sync.RWMutex
	exporters   []ViewExporter
	exportStop  chan struct{}
	exportWG    sync.WaitGroup
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithLogger overrides the no-op default logger used to report
// interval-view state errors encountered while applying a batch on the
// event-queue's consumer goroutine (errors that must never propagate
// back to the producer that called Recorder.Record), and measurements
// ignored because no view subscribes to their measure.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New builds an empty Engine using clk as its time source for window
// start/end timestamps and interval bucket shifting.
func New(clk clock.Clock, opts ...Option) *Engine {
	e := &Engine{
		clk:       clk,
		logger:    zap.NewNop(),
		views:     make(map[string]*registeredView),
		byMeasure: make(map[string][]*registeredView),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegisterView registers v. Re-registering an identical view is a
// no-op; re-registering a different view under the same name fails
// with ErrIllegalArgument.
func (e *Engine) RegisterView(v View) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.views[v.Name]; ok {
		if existing.view.equalTo(v) {
			return nil
		}
		return fmt.Errorf("%w: view %q already registered with different definition", ErrIllegalArgument, v.Name)
	}

	rv := &registeredView{view: v, state: newViewState(v, e.clk, e.logger)}
	e.views[v.Name] = rv
	e.byMeasure[v.Measure.Name()] = append(e.byMeasure[v.Measure.Name()], rv)
	return nil
}

// UnregisterView removes v by name. Unregistering an unknown name is a
// no-op.
func (e *Engine) UnregisterView(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rv, ok := e.views[name]
	if !ok {
		return
	}
	delete(e.views, name)
	subs := e.byMeasure[rv.view.Measure.Name()]
	for i, s := range subs {
		if s == rv {
			e.byMeasure[rv.view.Measure.Name()] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

// GetView returns the current snapshot of the view named name.
// Unknown names fail with ErrIllegalArgument.
func (e *Engine) GetView(name string) (ViewData, error) {
	e.mu.RLock()
	rv, ok := e.views[name]
	e.mu.RUnlock()
	if !ok {
		return ViewData{}, fmt.Errorf("%w: no view named %q", ErrIllegalArgument, name)
	}

	rows, window, err := rv.state.snapshot(e.clk.Now())
	if err != nil {
		return ViewData{}, err
	}
	return ViewData{View: rv.view, Window: window, Rows: rows}, nil
}

// GetAllExportedViews returns every currently registered view's
// definition.
func (e *Engine) GetAllExportedViews() []View {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]View, 0, len(e.views))
	for _, rv := range e.views {
		out = append(out, rv.view)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Record implements stats.Sink. It is invoked on the event-queue's
// consumer goroutine, never on the recording application's own
// goroutine. Recording against a measure that no registered view
// subscribes to is ignored and logged at debug level.
func (e *Engine) Record(ctx tag.Context, batch []stats.Measurement) {
	now := e.clk.Now()

	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, m := range batch {
		subs := e.byMeasure[m.Measure.Name()]
		if len(subs) == 0 {
			e.logger.Debug("view: record against measure with no registered view ignored",
				zap.String("measure", m.Measure.Name()))
			continue
		}
		for _, rv := range subs {
			values := projectColumns(ctx, rv.view.Columns)
			if err := rv.state.record(values, m.Value, now); err != nil {
				e.logger.Warn("view: record failed",
					zap.String("view", rv.view.Name),
					zap.Error(err))
			}
		}
	}
}

// newViewState builds the concrete viewState for v's declared window
// kind.
func newViewState(v View, clk clock.Clock, logger *zap.Logger) viewState {
	switch v.Window.Kind {
	case WindowInterval:
		n := v.Window.Buckets
		if n <= 0 {
			n = defaultIntervalBuckets
		}
		bucketDuration := v.Window.Duration / time.Duration(n)
		return newIntervalState(v, n, bucketDuration, logger)
	default:
		return newCumulativeState(v, clk.Now())
	}
}

// projectColumns reads ctx's value for each of view's declared
// columns, in column order, substituting Unknown for any column the
// context didn't set.
func projectColumns(ctx tag.Context, columns []tag.Key) []tag.Value {
	values := make([]tag.Value, len(columns))
	for i, col := range columns {
		if v, ok := ctx.Value(col); ok {
			values[i] = v
		} else {
			values[i] = Unknown
		}
	}
	return values
}

// rowKey builds a map key from a tag-value vector. '\x00' cannot
// appear in a validated tag value (values are printable ASCII), so it
// is a safe separator.
func rowKey(values []tag.Value) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.String()
	}
	return strings.Join(parts, "\x00")
}

func newMutableAggregations(aggs []Aggregation) []MutableAggregation {
	out := make([]MutableAggregation, len(aggs))
	for i, a := range aggs {
		out[i] = newMutableAggregation(a)
	}
	return out
}
