// Package eventqueue implements the single-producer-interface,
// single-consumer-thread ingestion pipe shared by the stats recorder
// and, optionally, any other component that wants to move work off a
// hot caller thread. Enqueue never blocks the caller; on overflow the
// oldest pending entry is dropped and a counter is incremented, never
// propagated as an error.
//
// Built as a bounded Go channel acting as the ring, with one goroutine
// draining it in FIFO order, a stop channel, and a WaitGroup for
// drain-on-shutdown.
package eventqueue

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Entry is a unit of work enqueued by a producer and executed, exactly
// once, on the queue's single consumer goroutine.
type Entry interface {
	Process()
}

// Queue is the bounded, asynchronous fan-in pipe. The zero value is not
// usable; construct with New.
type Queue struct {
	entries chan Entry
	stop    chan struct{}
	done    chan struct{}
	dropped atomic.Uint64
	logger  *zap.Logger
	started sync.Once
	stopped sync.Once
}

// Option configures a Queue at construction.
type Option func(*Queue)

// WithLogger sets the logger used to report entries that panic while
// being processed. A nil logger (the default) discards these reports.
func WithLogger(logger *zap.Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// New creates a Queue with the given bounded capacity and starts its
// consumer goroutine. capacity must be > 0.
func New(capacity int, opts ...Option) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	q := &Queue{
		entries: make(chan Entry, capacity),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.started.Do(func() { go q.run() })
	return q
}

// Enqueue submits entry for processing on the consumer goroutine.
// It never blocks: if the queue is full, the oldest pending entry is
// dropped to make room and the drop counter is incremented. Enqueue
// after Stop is a no-op (the entry is counted as dropped).
func (q *Queue) Enqueue(entry Entry) {
	if entry == nil {
		return
	}
	select {
	case <-q.stop:
		q.dropped.Add(1)
		return
	default:
	}
	select {
	case q.entries <- entry:
		return
	default:
	}
	// Full: drop the oldest pending entry, then retry once. Because
	// the consumer may drain concurrently, a failed retry just means
	// the consumer won the race and made room or emptied the queue
	// entirely; either way the entry still needs a home or a drop.
	select {
	case <-q.entries:
		q.dropped.Add(1)
	default:
	}
	select {
	case q.entries <- entry:
	default:
		q.dropped.Add(1)
	}
}

// Dropped returns the total number of entries dropped due to overflow
// since construction.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Depth returns the number of entries currently pending.
func (q *Queue) Depth() int {
	return len(q.entries)
}

// Stop signals the consumer goroutine to drain any pending entries and
// exit, then blocks until it has done so. Stop is idempotent.
func (q *Queue) Stop() {
	q.stopped.Do(func() {
		close(q.stop)
	})
	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		select {
		case e := <-q.entries:
			q.process(e)
		case <-q.stop:
			q.drain()
			return
		}
	}
}

// drain processes every entry still sitting in the channel before the
// consumer goroutine exits, so a Stop never silently discards work that
// was already accepted by Enqueue.
func (q *Queue) drain() {
	for {
		select {
		case e := <-q.entries:
			q.process(e)
		default:
			return
		}
	}
}

func (q *Queue) process(e Entry) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("eventqueue: entry panicked", zap.Any("recover", r))
		}
	}()
	e.Process()
}
