package trace

// StartEndHandler is notified when a span starts and ends, on the
// calling thread, so implementations must be thread-safe and fast:
// they sit directly on the recording critical path. The
// sampled-span store (trace/spanstore) is the canonical consumer.
type StartEndHandler interface {
	OnStart(span *Span)
	OnEnd(span *Span)
}

// Exporter receives finalized span snapshots once a span has ended.
// Exporting to an external backend (Zipkin, Stackdriver,...) is out of
// scope for this module: Exporter is the seam where such a
// thing would attach; none ship here.
type Exporter interface {
	ExportSpan(data *SpanData)
}

// exporterAdapter makes an Exporter satisfy StartEndHandler so the
// Tracer can dispatch to exporters and direct handlers (like
// trace/spanstore.Store) through the same list.
type exporterAdapter struct {
	exporter Exporter
}

func (a *exporterAdapter) OnStart(*Span) {}

func (a *exporterAdapter) OnEnd(span *Span) {
	data, err := span.toSpanData()
	if err != nil {
		// Not recording; nothing to export.
		return
	}
	a.exporter.ExportSpan(data)
}
