package stats

import (
	"github.com/driftloop/telemetry/internal/eventqueue"
	"github.com/driftloop/telemetry/tag"
)

// Sink is the measurement-routing half of the view aggregation engine,
// consumed here only through this narrow interface so that package
// stats never imports package view: the dependency runs the other
// way, view.Engine implements Sink.
type Sink interface {
	Record(ctx tag.Context, batch []Measurement)
}

// Recorder is the stats recorder façade: it packages a tag context
// (captured by reference, since TagContexts are immutable, so no copy is
// needed) and a measurement batch into an event-queue entry, then
// enqueues it without waiting for aggregation to happen.
type Recorder struct {
	queue *eventqueue.Queue
	sink  Sink
}

// NewRecorder builds a Recorder that enqueues onto queue and, once the
// queue's consumer goroutine runs the entry, hands the batch to sink.
func NewRecorder(queue *eventqueue.Queue, sink Sink) *Recorder {
	return &Recorder{queue: queue, sink: sink}
}

// recordEntry is the event-queue Entry that carries one Record call's
// tag context and measurement batch across to the consumer goroutine.
type recordEntry struct {
	sink  Sink
	ctx   tag.Context
	batch []Measurement
}

func (e recordEntry) Process() {
	e.sink.Record(e.ctx, e.batch)
}

// Record enqueues batch to be applied, under ctx, to every view
// subscribed to each measurement's measure. It never blocks waiting
// for the aggregation engine.
func (r *Recorder) Record(ctx tag.Context, batch ...Measurement) {
	if len(batch) == 0 {
		return
	}
	cp := make([]Measurement, len(batch))
	copy(cp, batch)
	r.queue.Enqueue(recordEntry{sink: r.sink, ctx: ctx, batch: cp})
}
