package trace

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
)

// TraceID identifies a trace. It is valid iff any byte is nonzero.
type TraceID [16]byte

// IsValid reports whether t has at least one nonzero byte.
func (t TraceID) IsValid() bool {
	return t != TraceID{}
}

// String renders t as lowercase hex.
func (t TraceID) String() string {
	return hex.EncodeToString(t[:])
}

// Compare orders two TraceIDs lexicographically by comparing the high
// 8 bytes first, then the low 8 bytes.
func (t TraceID) Compare(other TraceID) int {
	if c := bytes.Compare(t[:8], other[:8]); c != 0 {
		return c
	}
	return bytes.Compare(t[8:], other[8:])
}

// SpanID identifies a span within a trace.
type SpanID [8]byte

// IsValid reports whether s has at least one nonzero byte.
func (s SpanID) IsValid() bool {
	return s != SpanID{}
}

// String renders s as lowercase hex.
func (s SpanID) String() string {
	return hex.EncodeToString(s[:])
}

// TraceOptions carries per-trace flags. Currently a single sampled bit.
type TraceOptions uint32

// sampledBit is the bitmask identifying a sampled trace.
const sampledBit TraceOptions = 1

// IsSampled reports whether the sampled bit is set.
func (o TraceOptions) IsSampled() bool {
	return o&sampledBit != 0
}

// WithSampled returns a copy of o with the sampled bit set to sampled.
func (o TraceOptions) WithSampled(sampled bool) TraceOptions {
	if sampled {
		return o | sampledBit
	}
	return o &^ sampledBit
}

// SpanContext is the portable identity of a span: (TraceID, SpanID,
// TraceOptions).
type SpanContext struct {
	TraceID      TraceID
	SpanID       SpanID
	TraceOptions TraceOptions
}

// IsSampled reports whether this span context's trace is sampled.
func (sc SpanContext) IsSampled() bool {
	return sc.TraceOptions.IsSampled()
}

// Equal reports whether two SpanContexts are identical.
func (sc SpanContext) Equal(other SpanContext) bool {
	return sc.TraceID == other.TraceID && sc.SpanID == other.SpanID && sc.TraceOptions == other.TraceOptions
}

// IDGenerator produces new trace and span identifiers. The default
// implementation (newDefaultIDGenerator) is a pluggable random source;
// tests can substitute a deterministic one.
type IDGenerator interface {
	NewTraceID() TraceID
	NewSpanID() SpanID
}

// randIDGenerator generates identifiers from crypto/rand, amortized
// through a background-refilled idPool rather than calling rand.Read
// directly on every NewTraceID/NewSpanID call.
type randIDGenerator struct {
	traceIDs *idPool[TraceID]
	spanIDs  *idPool[SpanID]
}

// newDefaultIDGenerator builds the default crypto/rand-backed generator.
// poolSize controls how many IDs are kept pre-generated; callers with many
// goroutines starting spans concurrently should size it to roughly the
// number of concurrent span-starters.
func newDefaultIDGenerator(poolSize int) *randIDGenerator {
	if poolSize <= 0 {
		poolSize = 64
	}
	return &randIDGenerator{
		traceIDs: newIDPool(poolSize, func() TraceID {
			var id TraceID
			for {
				_, _ = rand.Read(id[:])
				if id.IsValid() {
					return id
				}
			}
		}),
		spanIDs: newIDPool(poolSize, func() SpanID {
			var id SpanID
			for {
				_, _ = rand.Read(id[:])
				if id.IsValid() {
					return id
				}
			}
		}),
	}
}

func (g *randIDGenerator) NewTraceID() TraceID { return g.traceIDs.get() }
func (g *randIDGenerator) NewSpanID() SpanID   { return g.spanIDs.get() }

func (g *randIDGenerator) close() {
	g.traceIDs.close()
	g.spanIDs.close()
}
