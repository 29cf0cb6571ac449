// Package trace implements spans: hierarchical, timed units of work with
// bounded attribute/annotation/event/link storage. A Span is mutable
// until End, after which it is frozen and snapshot-readable only.
package trace

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/driftloop/telemetry/clock"
)

// SpanOptions are the per-span recording options.
type SpanOptions uint32

// RecordEvents, when set, makes the span retain attributes, annotations,
// events and links in memory. A span without this option records
// nothing and ToSpanData fails.
const RecordEvents SpanOptions = 1 << 0

// ErrSpanNotRecording is returned by ToSpanData when the span was
// started without RecordEvents.
var ErrSpanNotRecording = errors.New("trace: span is not recording events")

// Span is a single timed operation within a trace. Its identity fields
// are immutable from construction; its event/attribute/link containers
// and status are guarded by mu and mutable until End is called.
type Span struct {
	// Immutable identity.
	context         SpanContext
	parentSpanID    SpanID
	hasParentSpanID bool
	hasRemoteParent bool
	name            string
	options         SpanOptions
	startNanoTime   int64
	traceParams     TraceParams
	converter       *clock.Converter
	clk             clock.Clock
	handler         StartEndHandler
	logger          *zap.Logger

	mu            sync.Mutex
	attributes    *boundedAttributeMap
	annotations   *boundedQueue[timedAnnotation]
	messageEvents *boundedQueue[timedMessageEvent]
	links         *boundedQueue[Link]
	status        Status
	hasStatus     bool
	endNanoTime   int64
	hasEnded      bool
}

// Context returns the span's SpanContext.
func (s *Span) Context() SpanContext { return s.context }

// Name returns the span's name.
func (s *Span) Name() string { return s.name }

// IsRecordingEvents reports whether this span was started with
// RecordEvents set.
func (s *Span) IsRecordingEvents() bool {
	return s.options&RecordEvents != 0
}

func (s *Span) recording() bool {
	return s.IsRecordingEvents()
}

// AddAttributes merges attrs into the span's bounded attribute map.
// Eviction, when the map overflows its capacity, removes the
// least-recently-touched entry. A no-op if the span isn't recording,
// and a no-op logged at debug level if the span has already ended.
func (s *Span) AddAttributes(attrs map[string]AttributeValue) {
	if !s.recording() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasEnded {
		s.logger.Debug("trace: AddAttributes on ended span ignored", zap.String("span", s.name))
		return
	}
	for k, v := range attrs {
		s.attributes.put(k, v)
	}
}

// AddAnnotation appends a timed annotation built from description and
// attrs to the span's annotation ring.
func (s *Span) AddAnnotation(description string, attrs map[string]AttributeValue) {
	s.addAnnotation(NewAnnotation(description, attrs))
}

// AddAnnotationValue appends an already-built Annotation.
func (s *Span) AddAnnotationValue(a Annotation) {
	s.addAnnotation(a)
}

func (s *Span) addAnnotation(a Annotation) {
	if !s.recording() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasEnded {
		s.logger.Debug("trace: AddAnnotation on ended span ignored", zap.String("span", s.name))
		return
	}
	s.annotations.add(timedAnnotation{time: s.clk.NowMonotonic(), annotation: a})
}

// AddMessageEvent appends ev to the message-event ring.
func (s *Span) AddMessageEvent(ev MessageEvent) {
	if !s.recording() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasEnded {
		s.logger.Debug("trace: AddMessageEvent on ended span ignored", zap.String("span", s.name))
		return
	}
	s.messageEvents.add(timedMessageEvent{time: s.clk.NowMonotonic(), event: ev})
}

// AddLink appends link to the links ring.
func (s *Span) AddLink(link Link) {
	if !s.recording() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasEnded {
		s.logger.Debug("trace: AddLink on ended span ignored", zap.String("span", s.name))
		return
	}
	s.links.add(link)
}

// EndOptions configures End.
type EndOptions struct {
	// Status becomes the span's final status when HasStatus is true.
	// When HasStatus is false, End uses StatusOK and ignores Status.
	Status    Status
	HasStatus bool
}

// End marks the span finished: it sets status (OK if none was given),
// records the end time, and invokes the StartEndHandler's OnEnd exactly
// once. Calling End more than once, or mutating the span afterwards, is
// a no-op logged at debug level.
func (s *Span) End(opts ...EndOptions) {
	s.mu.Lock()
	if s.hasEnded {
		s.mu.Unlock()
		if s.logger != nil {
			s.logger.Debug("trace: End called more than once", zap.String("span", s.name))
		}
		return
	}
	status := StatusOK
	if len(opts) > 0 && opts[0].HasStatus {
		status = opts[0].Status
	}
	s.status = status
	s.hasStatus = true
	s.endNanoTime = s.clk.NowMonotonic()
	s.hasEnded = true
	s.mu.Unlock()

	if s.handler != nil {
		s.handler.OnEnd(s)
	}
}

// HasEnded reports whether End has been called.
func (s *Span) HasEnded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasEnded
}

// ToSpanData produces a frozen snapshot of the span's current state,
// converting monotonic times to wall-clock timestamps via the span's
// TimestampConverter. Fails with ErrSpanNotRecording if the span wasn't
// started with RecordEvents.
func (s *Span) ToSpanData() (*SpanData, error) {
	return s.toSpanData()
}

func (s *Span) toSpanData() (*SpanData, error) {
	if !s.recording() {
		return nil, ErrSpanNotRecording
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data := &SpanData{
		Context:         s.context,
		ParentSpanID:    s.parentSpanID,
		HasParentSpanID: s.hasParentSpanID,
		HasRemoteParent: s.hasRemoteParent,
		Name:            s.name,
		StartTime:       s.converter.Convert(s.startNanoTime),
		Status:          s.status,
		HasStatus:       s.hasStatus,
	}

	attrs := s.attributes.snapshot()
	data.Attributes.Items = make([]Attribute, 0, len(attrs))
	for k, v := range attrs {
		data.Attributes.Items = append(data.Attributes.Items, Attribute{Key: k, Value: v})
	}
	data.Attributes.Dropped = s.attributes.dropped()

	for _, ta := range s.annotations.snapshot() {
		data.Annotations.Items = append(data.Annotations.Items, TimedAnnotation{
			Time:       s.converter.Convert(ta.time),
			Annotation: ta.annotation,
		})
	}
	data.Annotations.Dropped = s.annotations.dropped()

	for _, tm := range s.messageEvents.snapshot() {
		data.MessageEvents.Items = append(data.MessageEvents.Items, TimedMessageEvent{
			Time:  s.converter.Convert(tm.time),
			Event: tm.event,
		})
	}
	data.MessageEvents.Dropped = s.messageEvents.dropped()

	data.Links.Items = s.links.snapshot()
	data.Links.Dropped = s.links.dropped()

	if s.hasEnded {
		data.EndTime = s.converter.Convert(s.endNanoTime)
		data.HasEndTime = true
	}

	return data, nil
}
