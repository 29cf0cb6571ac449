package trace

import (
	"encoding/binary"
	"math"
)

// SamplingParameters is everything a Sampler needs to decide whether a new
// span should be sampled.
type SamplingParameters struct {
	ParentContext SpanContext
	HasParent bool
	TraceID TraceID
	SpanID SpanID
	Name string
	Links []Link
}

// SamplingDecision is a Sampler's verdict.
type SamplingDecision struct {
	Sample bool
}

// Sampler decides whether a span should be recorded and exported.
type Sampler interface {
	ShouldSample(p SamplingParameters) SamplingDecision
}

type alwaysSample struct{}

func (alwaysSample) ShouldSample(SamplingParameters) SamplingDecision {
	return SamplingDecision{Sample: true}
}

// AlwaysSample returns a Sampler that samples every span.
func AlwaysSample() Sampler { return alwaysSample{} }

type neverSample struct{}

func (neverSample) ShouldSample(SamplingParameters) SamplingDecision {
	return SamplingDecision{Sample: false}
}

// NeverSample returns a Sampler that samples no spans. This is
// TraceParams' default.
func NeverSample() Sampler { return neverSample{} }

// probabilitySampler samples a fraction of traces, decided deterministically
// from the low 8 bytes of the trace ID so that every span within one trace
// makes the same decision.
type probabilitySampler struct {
	threshold uint64
}

// ProbabilitySampler returns a Sampler that samples approximately
// fraction of traces (fraction is clamped to [0,1]). The decision is
// derived from the trace ID, not a random draw, so it is stable for every
// span of a given trace.
func ProbabilitySampler(fraction float64) Sampler {
	if fraction < 0 {
 fraction = 0
	}
	if fraction > 1 {
 fraction = 1
	}
	return &probabilitySampler{threshold: uint64(fraction * math.MaxUint64)}
}

func (s *probabilitySampler) ShouldSample(p SamplingParameters) SamplingDecision {
	// A sampled parent always propagates its decision.
	if p.HasParent && p.ParentContext.IsSampled() {
		return SamplingDecision{Sample: true}
	}
	x := binary.BigEndian.Uint64(p.TraceID[8:])
	return SamplingDecision{Sample: x < s.threshold}
}
