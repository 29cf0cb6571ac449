package telemetry

import (
	"sync"

	"go.uber.org/zap"

	"github.com/driftloop/telemetry/clock"
	"github.com/driftloop/telemetry/internal/eventqueue"
	"github.com/driftloop/telemetry/stats"
	"github.com/driftloop/telemetry/trace"
	"github.com/driftloop/telemetry/trace/spanstore"
	"github.com/driftloop/telemetry/view"
)

// Component wires together every piece of this module into one
// process-wide handle: a shared clock, an event queue that decouples
// measurement recording from aggregation, a view engine consuming that
// queue's output, a tracer feeding a sampled span store, and the
// recorder façade applications call into. Building the pieces
// explicitly here, rather than behind package-level globals, keeps
// construction explicit and testable.
type Component struct {
	Clock    clock.Clock
	Queue    *eventqueue.Queue
	Views    *view.Engine
	Recorder *stats.Recorder
	Tracer   *trace.Tracer
	Spans    *spanstore.Store

	closeOnce sync.Once
}

// Options configures New.
type Options struct {
	// Clock overrides clock.Real. Tests use clock.NewFake.
	Clock clock.Clock
	// Logger is shared by every component that logs; a nil Logger
	// leaves each component's own no-op default in place.
	Logger *zap.Logger
	// QueueCapacity bounds the shared event queue. Zero uses the
	// queue package's own default.
	QueueCapacity int
	// TraceParams overrides the tracer's default bounds and sampler.
	TraceParams trace.TraceParams
	// SpanStoreCapacity bounds each latency/error-code ring in the
	// sampled span store. Zero uses the store's own default.
	SpanStoreCapacity int
}

// New builds a Component from opts, applying defaults for any
// zero-valued field. It panics with the error NewSafe would return
// (invalid TraceParams fields); use NewSafe to get that error instead.
func New(opts Options) *Component {
	c, err := NewSafe(opts)
	if err != nil {
		panic(err)
	}
	return c
}

// NewSafe builds a Component from opts, returning an error instead of
// panicking if opts.TraceParams is invalid.
func NewSafe(opts Options) (*Component, error) {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	queueOpts := []eventqueue.Option{eventqueue.WithLogger(logger)}
	queue := eventqueue.New(opts.QueueCapacity, queueOpts...)

	views := view.New(clk, view.WithLogger(logger))
	recorder := stats.NewRecorder(queue, views)

	tracerOpts := []trace.Option{
		trace.WithClock(clk),
		trace.WithLogger(logger),
	}
	if opts.TraceParams.DefaultSampler != nil || opts.TraceParams.MaxAttributes != 0 ||
		opts.TraceParams.MaxAnnotations != 0 || opts.TraceParams.MaxNetworkEvents != 0 ||
		opts.TraceParams.MaxLinks != 0 {
		tracerOpts = append(tracerOpts, trace.WithTraceParams(opts.TraceParams))
	}
	tracer, err := trace.NewTracerSafe(tracerOpts...)
	if err != nil {
		queue.Stop()
		views.StopExporters()
		return nil, err
	}

	spans := spanstore.New(opts.SpanStoreCapacity)
	tracer.RegisterHandler(spans)

	return &Component{
		Clock:    clk,
		Queue:    queue,
		Views:    views,
		Recorder: recorder,
		Tracer:   tracer,
		Spans:    spans,
	}, nil
}

// Close shuts down every background goroutine this Component started:
// the event queue's consumer (draining pending entries first), the
// view engine's export loop, and the tracer's ID-generator refill
// goroutines. Close is idempotent; concurrent and repeated calls all
// wait for the same shutdown to complete.
func (c *Component) Close() {
	c.closeOnce.Do(func() {
		c.Queue.Stop()
		c.Views.StopExporters()
		c.Tracer.Close()
	})
}
