package trace

import (
	"context"
	"testing"
	"time"

	"github.com/driftloop/telemetry/clock"
)

func TestStartSpanNoParentIsSampledWithAlwaysSample(t *testing.T) {
	tracer := NewTracer(WithTraceParams(TraceParams{
		MaxAttributes:    32,
		MaxAnnotations:   32,
		MaxNetworkEvents: 128,
		MaxLinks:         128,
		DefaultSampler:   AlwaysSample(),
	}))
	defer tracer.Close()

	ctx, span := tracer.StartSpan(context.Background(), "root")

	if span.Name() != "root" {
		t.Fatalf("Name() = %q, want root", span.Name())
	}
	if !span.Context().TraceID.IsValid() {
		t.Error("expected a valid TraceID")
	}
	if !span.Context().SpanID.IsValid() {
		t.Error("expected a valid SpanID")
	}
	if span.hasParentSpanID {
		t.Error("root span should have no parent")
	}
	if !span.Context().IsSampled() {
		t.Error("expected sampled span with AlwaysSample")
	}

	got, ok := FromContext(ctx)
	if !ok || got != span {
		t.Error("expected StartSpan's returned context to carry the new span")
	}
}

func TestStartSpanWithParentSharesTraceID(t *testing.T) {
	tracer := NewTracer(WithTraceParams(TraceParams{
		MaxAttributes:  32,
		MaxAnnotations: 32,
		DefaultSampler: AlwaysSample(),
	}))
	defer tracer.Close()

	parentCtx, parent := tracer.StartSpan(context.Background(), "parent")
	_, child := tracer.StartSpan(parentCtx, "child")

	if child.Context().TraceID != parent.Context().TraceID {
		t.Error("child should share the parent's TraceID")
	}
	if !child.hasParentSpanID || child.parentSpanID != parent.Context().SpanID {
		t.Error("child should record the parent's SpanID")
	}
}

func TestNeverSampleDoesNotRecord(t *testing.T) {
	tracer := NewTracer(WithTraceParams(DefaultTraceParams()))
	defer tracer.Close()

	_, span := tracer.StartSpan(context.Background(), "unsampled")

	if span.Context().IsSampled() {
		t.Error("NeverSample should not set the sampled bit")
	}
	if span.IsRecordingEvents() {
		t.Error("an unsampled span should not record by default")
	}
	if _, err := span.ToSpanData(); err != ErrSpanNotRecording {
		t.Errorf("ToSpanData() err = %v, want ErrSpanNotRecording", err)
	}
}

func TestForceRecordEventsOverridesSampler(t *testing.T) {
	tracer := NewTracer()
	defer tracer.Close()

	_, span := tracer.StartSpan(context.Background(), "forced", StartOptions{RecordEvents: true})

	if !span.IsRecordingEvents() {
		t.Error("RecordEvents option should force recording regardless of sampler")
	}
}

func TestRegisteredHandlerSeesStartAndEnd(t *testing.T) {
	tracer := NewTracer(WithTraceParams(TraceParams{DefaultSampler: AlwaysSample()}))
	defer tracer.Close()

	var started, ended []*Span
	tracer.RegisterHandler(recordingHandler{
		onStart: func(s *Span) { started = append(started, s) },
		onEnd:   func(s *Span) { ended = append(ended, s) },
	})

	_, span := tracer.StartSpan(context.Background(), "op")
	span.End()

	if len(started) != 1 || started[0] != span {
		t.Error("expected OnStart to fire exactly once for the new span")
	}
	if len(ended) != 1 || ended[0] != span {
		t.Error("expected OnEnd to fire exactly once for the ended span")
	}
}

func TestHandlerPanicIsContained(t *testing.T) {
	tracer := NewTracer(WithTraceParams(TraceParams{DefaultSampler: AlwaysSample()}))
	defer tracer.Close()

	var sawSecond bool
	tracer.RegisterHandler(recordingHandler{
		onEnd: func(*Span) { panic("boom") },
	})
	tracer.RegisterHandler(recordingHandler{
		onEnd: func(*Span) { sawSecond = true },
	})

	_, span := tracer.StartSpan(context.Background(), "op")
	span.End()

	if !sawSecond {
		t.Error("a panicking handler must not prevent later handlers from running")
	}
}

func TestFakeClockProducesDeterministicDuration(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	tracer := NewTracer(WithClock(fake), WithTraceParams(TraceParams{DefaultSampler: AlwaysSample()}))
	defer tracer.Close()

	_, span := tracer.StartSpan(context.Background(), "timed")
	fake.Advance(5 * time.Second)
	span.End()

	data, err := span.ToSpanData()
	if err != nil {
		t.Fatalf("ToSpanData: %v", err)
	}
	if got := data.EndTime.Sub(data.StartTime); got != 5*time.Second {
		t.Errorf("span duration = %v, want 5s", got)
	}
}

type recordingHandler struct {
	onStart func(*Span)
	onEnd   func(*Span)
}

func (h recordingHandler) OnStart(s *Span) {
	if h.onStart != nil {
		h.onStart(s)
	}
}

func (h recordingHandler) OnEnd(s *Span) {
	if h.onEnd != nil {
		h.onEnd(s)
	}
}
