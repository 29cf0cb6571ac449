// Package telemetry wires together distributed tracing and stats
// aggregation into one module: package trace records spans and feeds
// a sampled span store, package stats and package view record
// measurements and aggregate them into views, and this package's
// Component ties both halves to a shared clock and event queue.
//
// Most callers only need:
//
//	c := telemetry.New(telemetry.Options{})
//	defer c.Close()
//
//	ctx, span := c.Tracer.StartSpan(context.Background(), "handle-request")
//	defer span.End()
//
//	c.Recorder.Record(tag.Context{}, stats.M(requestCount, 1))
//
// Use NewSafe instead of New when a caller-supplied trace.TraceParams
// needs to be validated rather than trusted.
package telemetry
