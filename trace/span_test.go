package trace

import (
	"context"
	"fmt"
	"testing"
)

func newRecordingTracer() *Tracer {
	return NewTracer(WithTraceParams(TraceParams{
		MaxAttributes:    3,
		MaxAnnotations:   2,
		MaxNetworkEvents: 2,
		MaxLinks:         2,
		DefaultSampler:   AlwaysSample(),
	}))
}

func TestAttributeEvictionDropsLeastRecentlyTouched(t *testing.T) {
	tracer := newRecordingTracer()
	defer tracer.Close()
	_, span := tracer.StartSpan(context.Background(), "attrs")

	span.AddAttributes(map[string]AttributeValue{"a": StringAttribute("1")})
	span.AddAttributes(map[string]AttributeValue{"b": StringAttribute("2")})
	span.AddAttributes(map[string]AttributeValue{"c": StringAttribute("3")})
	// Touch "a" so it's no longer the least-recently-touched entry.
	span.attributes.get("a")
	// Overflow: "b" is now the least-recently-touched and should be evicted.
	span.AddAttributes(map[string]AttributeValue{"d": StringAttribute("4")})

	data, err := span.ToSpanData()
	if err != nil {
		t.Fatalf("ToSpanData: %v", err)
	}
	if data.Attributes.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", data.Attributes.Dropped)
	}
	keys := map[string]bool{}
	for _, a := range data.Attributes.Items {
		keys[a.Key] = true
	}
	if keys["b"] {
		t.Error("expected 'b' to have been evicted")
	}
	if !keys["a"] || !keys["c"] || !keys["d"] {
		t.Errorf("expected a, c, d to survive, got %v", keys)
	}
}

func TestAnnotationRingDropsOldest(t *testing.T) {
	tracer := newRecordingTracer()
	defer tracer.Close()
	_, span := tracer.StartSpan(context.Background(), "annos")

	for i := 0; i < 5; i++ {
		span.AddAnnotation(fmt.Sprintf("event-%d", i), nil)
	}

	data, err := span.ToSpanData()
	if err != nil {
		t.Fatalf("ToSpanData: %v", err)
	}
	if data.Annotations.Dropped != 3 {
		t.Errorf("Dropped = %d, want 3", data.Annotations.Dropped)
	}
	if len(data.Annotations.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(data.Annotations.Items))
	}
	if data.Annotations.Items[0].Annotation.Description != "event-3" {
		t.Errorf("oldest surviving annotation = %q, want event-3", data.Annotations.Items[0].Annotation.Description)
	}
}

func TestMutationAfterEndIsNoOp(t *testing.T) {
	tracer := newRecordingTracer()
	defer tracer.Close()
	_, span := tracer.StartSpan(context.Background(), "frozen")
	span.End()

	span.AddAttributes(map[string]AttributeValue{"late": StringAttribute("x")})
	span.AddAnnotation("late", nil)
	span.AddLink(Link{})

	data, err := span.ToSpanData()
	if err != nil {
		t.Fatalf("ToSpanData: %v", err)
	}
	if len(data.Attributes.Items) != 0 {
		t.Errorf("expected no attributes to be recorded after End, got %d", len(data.Attributes.Items))
	}
	if len(data.Annotations.Items) != 0 {
		t.Errorf("expected no annotations to be recorded after End, got %d", len(data.Annotations.Items))
	}
}

func TestDoubleEndIsIdempotent(t *testing.T) {
	tracer := newRecordingTracer()
	defer tracer.Close()
	_, span := tracer.StartSpan(context.Background(), "double-end")

	span.End(EndOptions{Status: Status{Code: Internal, Message: "first"}, HasStatus: true})
	span.End(EndOptions{Status: Status{Code: OK}, HasStatus: true})

	data, err := span.ToSpanData()
	if err != nil {
		t.Fatalf("ToSpanData: %v", err)
	}
	if data.Status.Code != Internal {
		t.Errorf("Status.Code = %v, want Internal (first End wins)", data.Status.Code)
	}
}

func TestEndWithoutStatusDefaultsToOK(t *testing.T) {
	tracer := newRecordingTracer()
	defer tracer.Close()
	_, span := tracer.StartSpan(context.Background(), "default-status")
	span.End()

	data, err := span.ToSpanData()
	if err != nil {
		t.Fatalf("ToSpanData: %v", err)
	}
	if !data.Status.IsOK() {
		t.Errorf("Status = %+v, want OK", data.Status)
	}
	if !data.HasEndTime {
		t.Error("expected HasEndTime after End")
	}
}

func TestNonRecordingSpanIgnoresMutations(t *testing.T) {
	tracer := NewTracer()
	defer tracer.Close()
	_, span := tracer.StartSpan(context.Background(), "unsampled")

	span.AddAttributes(map[string]AttributeValue{"x": BoolAttribute(true)})
	span.AddAnnotation("ignored", nil)

	if _, err := span.ToSpanData(); err != ErrSpanNotRecording {
		t.Errorf("ToSpanData err = %v, want ErrSpanNotRecording", err)
	}
}
