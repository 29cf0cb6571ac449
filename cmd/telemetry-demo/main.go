// telemetry-demo wires up a Component and drives a handful of
// requests through it, printing the resulting span and view data.
// It exists to exercise every component end to end, not as a
// production reference.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/driftloop/telemetry"
	"github.com/driftloop/telemetry/stats"
	"github.com/driftloop/telemetry/tag"
	"github.com/driftloop/telemetry/trace"
	"github.com/driftloop/telemetry/view"
)

func main() {
	c := telemetry.New(telemetry.Options{
		TraceParams: trace.TraceParams{DefaultSampler: trace.AlwaysSample()},
	})
	defer c.Close()

	c.Spans.Register("handle-request")

	latency, err := stats.Float64("demo/request_latency", "request handling latency", "ms")
	if err != nil {
		panic(err)
	}
	methodKey, err := tag.NewKey("method")
	if err != nil {
		panic(err)
	}

	err = c.Views.RegisterView(view.View{
		Name:         "demo/request_latency",
		Description:  "request latency distribution by method",
		Measure:      latency,
		Aggregations: []view.Aggregation{view.HistogramAggregation([]float64{1, 5, 10, 50, 100}), view.CountAggregation()},
		Columns:      []tag.Key{methodKey},
		Window:       view.Cumulative(),
	})
	if err != nil {
		panic(err)
	}

	methodValue, err := tag.NewValue("GET")
	if err != nil {
		panic(err)
	}
	ctx := tag.NewBuilder().Put(methodKey, methodValue).Build()

	for i := 0; i < 20; i++ {
		handleRequest(c, ctx, latency, i)
	}

	// Give the async event queue a moment to drain the last batch
	// before snapshotting.
	time.Sleep(10 * time.Millisecond)

	data, err := c.Views.GetView("demo/request_latency")
	if err != nil {
		panic(err)
	}
	for _, row := range data.Rows {
		fmt.Printf("row=%v\n", row.TagValues)
		for _, d := range row.Data {
			fmt.Printf("  %+v\n", d)
		}
	}

	summary := c.Spans.GetSummary()
	for name, s := range summary {
		fmt.Printf("span %s: active=%d\n", name, s.NumActiveSpans)
	}
}

func handleRequest(c *telemetry.Component, ctx tag.Context, latency stats.Measure, i int) {
	_, span := c.Tracer.StartSpan(context.Background(), "handle-request")
	defer span.End()

	span.AddAttributes(map[string]trace.AttributeValue{
		"request.index": trace.Int64Attribute(int64(i)),
	})

	elapsed := time.Duration(5+rand.Intn(80)) * time.Millisecond
	time.Sleep(elapsed)

	c.Recorder.Record(ctx, stats.M(latency, float64(elapsed.Milliseconds())))
}
