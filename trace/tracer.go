package trace

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/driftloop/telemetry/clock"
)

// ErrInvalidTraceParams is returned by NewTracerSafe when a supplied
// TraceParams has a negative bound or a nil DefaultSampler.
var ErrInvalidTraceParams = errors.New("trace: invalid TraceParams")

type contextKey struct{}

var spanContextKey = contextKey{}

// FromContext returns the *Span stored in ctx, if any, and whether one
// was found.
func FromContext(ctx context.Context) (*Span, bool) {
	s, ok := ctx.Value(spanContextKey).(*Span)
	return s, ok
}

// NewContext returns a copy of ctx carrying span.
func NewContext(ctx context.Context, span *Span) context.Context {
	return context.WithValue(ctx, spanContextKey, span)
}

// Tracer starts spans and dispatches StartEndHandler notifications.
// Safe for concurrent use by multiple goroutines.
type Tracer struct {
	clk         clock.Clock
	params      TraceParams
	idGenerator IDGenerator
	logger      *zap.Logger

	handlersLock sync.RWMutex
	handlers     []StartEndHandler

	ownsIDGenerator bool
}

// Option configures a Tracer at construction, the functional-options
// shape used throughout this module.
type Option func(*Tracer)

// WithClock injects a clock, overriding clock.Real. Tests use this with
// clock.NewFake for deterministic span timing.
func WithClock(c clock.Clock) Option {
	return func(t *Tracer) { t.clk = c }
}

// WithTraceParams overrides the default bounds and sampler.
func WithTraceParams(p TraceParams) Option {
	return func(t *Tracer) { t.params = p }
}

// WithIDGenerator overrides the default crypto/rand-backed ID
// generator, e.g. with a deterministic one for tests.
func WithIDGenerator(g IDGenerator) Option {
	return func(t *Tracer) {
		t.idGenerator = g
		t.ownsIDGenerator = false
	}
}

// WithLogger overrides the no-op default logger used for debug-level
// "silently tolerated" events. A nil logger keeps the default.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Tracer) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTracerSafe builds a Tracer with the given options applied over
// defaults: clock.Real, DefaultTraceParams, and a pool-backed
// crypto/rand ID generator. It returns ErrInvalidTraceParams if the
// resulting TraceParams has a negative bound or a nil sampler, rather
// than letting a misconfigured Tracer silently drop every span.
func NewTracerSafe(opts ...Option) (*Tracer, error) {
	t := &Tracer{
		clk:             clock.Real,
		params:          DefaultTraceParams(),
		logger:          zap.NewNop(),
		ownsIDGenerator: true,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.params = t.params.withDefaults()
	if err := t.params.validate(); err != nil {
		return nil, err
	}
	if t.idGenerator == nil {
		t.idGenerator = newDefaultIDGenerator(64)
	}
	return t, nil
}

// NewTracer is the panic-on-error convenience wrapper around
// NewTracerSafe, for callers (the overwhelming majority) that only ever
// pass valid TraceParams and would rather not thread an error through
// their own construction code.
func NewTracer(opts ...Option) *Tracer {
	t, err := NewTracerSafe(opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// RegisterHandler adds h to the set notified on every span start/end.
// Handlers are called synchronously on the starting/ending goroutine,
// StartEndHandler implementations must be fast and must not block.
func (t *Tracer) RegisterHandler(h StartEndHandler) {
	if h == nil {
		return
	}
	t.handlersLock.Lock()
	defer t.handlersLock.Unlock()
	t.handlers = append(t.handlers, h)
}

// RegisterExporter wraps exporter in a StartEndHandler and registers
// it, so Exporters and direct handlers (trace/spanstore.Store) share
// the same dispatch path.
func (t *Tracer) RegisterExporter(exporter Exporter) {
	t.RegisterHandler(&exporterAdapter{exporter: exporter})
}

func (t *Tracer) snapshotHandlers() []StartEndHandler {
	t.handlersLock.RLock()
	defer t.handlersLock.RUnlock()
	if len(t.handlers) == 0 {
		return nil
	}
	out := make([]StartEndHandler, len(t.handlers))
	copy(out, t.handlers)
	return out
}

// StartOptions configures an individual StartSpan call.
type StartOptions struct {
	// Sampler overrides the Tracer's default sampler for this span.
	Sampler Sampler
	// RecordEvents forces recording on regardless of the sampling
	// decision.
	RecordEvents bool
}

// StartSpan starts a new span named name, child of whatever span is
// found in ctx (if any), and returns a context carrying the new span
// alongside the span itself.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...StartOptions) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	var o StartOptions
	if len(opts) > 0 {
		o = opts[0]
	}

	sc := SpanContext{
		TraceID: t.idGenerator.NewTraceID(),
		SpanID:  t.idGenerator.NewSpanID(),
	}

	var parentSpanID SpanID
	hasParentSpanID := false
	hasRemoteParent := false

	sampler := o.Sampler
	if sampler == nil {
		sampler = t.params.DefaultSampler
	}

	params := SamplingParameters{Name: name}

	if parent, ok := FromContext(ctx); ok {
		parentCtx := parent.Context()
		sc.TraceID = parentCtx.TraceID
		parentSpanID = parentCtx.SpanID
		hasParentSpanID = true

		params.HasParent = true
		params.ParentContext = parentCtx
	}
	params.TraceID = sc.TraceID
	params.SpanID = sc.SpanID

	decision := sampler.ShouldSample(params)
	sc.TraceOptions = sc.TraceOptions.WithSampled(decision.Sample)

	options := SpanOptions(0)
	if decision.Sample || o.RecordEvents {
		options |= RecordEvents
	}

	span := &Span{
		context:         sc,
		parentSpanID:    parentSpanID,
		hasParentSpanID: hasParentSpanID,
		hasRemoteParent: hasRemoteParent,
		name:            name,
		options:         options,
		startNanoTime:   t.clk.NowMonotonic(),
		traceParams:     t.params,
		converter:       clock.NewConverter(t.clk),
		clk:             t.clk,
		logger:          t.logger,
	}
	if options&RecordEvents != 0 {
		span.attributes = newBoundedAttributeMap(t.params.MaxAttributes)
		span.annotations = newBoundedQueue[timedAnnotation](t.params.MaxAnnotations)
		span.messageEvents = newBoundedQueue[timedMessageEvent](t.params.MaxNetworkEvents)
		span.links = newBoundedQueue[Link](t.params.MaxLinks)
	} else {
		span.attributes = newBoundedAttributeMap(1)
		span.annotations = newBoundedQueue[timedAnnotation](1)
		span.messageEvents = newBoundedQueue[timedMessageEvent](1)
		span.links = newBoundedQueue[Link](1)
	}

	handlers := t.snapshotHandlers()
	span.handler = &fanoutHandler{handlers: handlers, logger: t.logger}

	for _, h := range handlers {
		t.safeOnStart(h, span)
	}

	return NewContext(ctx, span), span
}

func (t *Tracer) safeOnStart(h StartEndHandler, span *Span) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Warn("trace: StartEndHandler.OnStart panicked", zap.Any("recover", r))
		}
	}()
	h.OnStart(span)
}

// fanoutHandler dispatches a single span's End notification to every
// handler registered with the Tracer at the time the span started,
// recovering from and logging any handler panic so one misbehaving
// handler can't take down the recording goroutine.
type fanoutHandler struct {
	handlers []StartEndHandler
	logger   *zap.Logger
}

func (f *fanoutHandler) OnStart(*Span) {}

func (f *fanoutHandler) OnEnd(span *Span) {
	for _, h := range f.handlers {
		f.safeOnEnd(h, span)
	}
}

func (f *fanoutHandler) safeOnEnd(h StartEndHandler, span *Span) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Warn("trace: StartEndHandler.OnEnd panicked", zap.Any("recover", r))
		}
	}()
	h.OnEnd(span)
}

// Close releases resources owned by the Tracer, namely its default ID
// generator's background refill goroutines.
func (t *Tracer) Close() {
	if t.ownsIDGenerator {
		if g, ok := t.idGenerator.(*randIDGenerator); ok {
			g.close()
		}
	}
}
