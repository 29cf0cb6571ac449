package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/driftloop/telemetry/internal/eventqueue"
	"github.com/driftloop/telemetry/tag"
)

type captureSink struct {
	mu    sync.Mutex
	calls []struct {
		ctx   tag.Context
		batch []Measurement
	}
}

func (s *captureSink) Record(ctx tag.Context, batch []Measurement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, struct {
		ctx   tag.Context
		batch []Measurement
	}{ctx, batch})
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func TestRecordDoesNotBlockAndReachesSink(t *testing.T) {
	measure, err := Float64("stats_test/recorder/a", "desc", "1")
	if err != nil {
		t.Fatalf("Float64: %v", err)
	}

	queue := eventqueue.New(8)
	defer queue.Stop()

	sink := &captureSink{}
	recorder := NewRecorder(queue, sink)

	recorder.Record(tag.Empty, M(measure, 42))

	deadline := time.Now().Add(time.Second)
	for sink.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if sink.count() != 1 {
		t.Fatalf("sink.count() = %d, want 1", sink.count())
	}
}

func TestRecordWithEmptyBatchIsNoOp(t *testing.T) {
	queue := eventqueue.New(8)
	defer queue.Stop()

	sink := &captureSink{}
	recorder := NewRecorder(queue, sink)
	recorder.Record(tag.Empty)

	time.Sleep(10 * time.Millisecond)
	if sink.count() != 0 {
		t.Errorf("sink.count() = %d, want 0 for an empty batch", sink.count())
	}
}
