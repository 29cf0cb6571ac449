package view

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/driftloop/telemetry/tag"
)

// defaultIntervalBuckets is N; a view's bucket queue holds exactly N+1
// buckets unless configured otherwise.
const defaultIntervalBuckets = 4

type intervalBucket struct {
	start time.Time
	rows  map[string]*cumulativeRow
}

func newIntervalBucket(start time.Time) *intervalBucket {
	return &intervalBucket{start: start, rows: make(map[string]*cumulativeRow)}
}

// intervalState implements viewState for the Interval window: a queue
// of exactly N+1 buckets, each covering duration/N, with fractional
// blending of the oldest bucket on snapshot.
type intervalState struct {
	view           View
	n              int
	bucketDuration time.Duration
	logger         *zap.Logger

	mu      sync.Mutex
	buckets []*intervalBucket // oldest first; always len == n+1 after refresh
}

func newIntervalState(v View, n int, bucketDuration time.Duration, logger *zap.Logger) *intervalState {
	return &intervalState{view: v, n: n, bucketDuration: bucketDuration, logger: logger}
}

// refresh shifts the bucket queue forward to cover now. It must be
// called with s.mu held.
func (s *intervalState) refresh(now time.Time) error {
	if len(s.buckets) == 0 {
		s.rebuild(now)
		return nil
	}

	newest := s.buckets[len(s.buckets)-1]
	if now.Before(newest.start) {
		return ErrTimeWentBackwards
	}

	elapsed := now.Sub(newest.start)
	if elapsed < s.bucketDuration {
		return nil
	}

	shiftCount := int64(elapsed / s.bucketDuration)
	if shiftCount >= int64(s.n+1) {
		s.rebuild(now)
		return nil
	}

	for i := int64(0); i < shiftCount; i++ {
		prevStart := s.buckets[len(s.buckets)-1].start
		s.buckets = append(s.buckets, newIntervalBucket(prevStart.Add(s.bucketDuration)))
	}
	if len(s.buckets) > s.n+1 {
		s.buckets = s.buckets[len(s.buckets)-(s.n+1):]
	}
	return nil
}

// rebuild discards the bucket queue and starts a fresh one of exactly
// n+1 buckets, spaced bucketDuration apart, with the newest bucket
// starting at now.
func (s *intervalState) rebuild(now time.Time) {
	s.buckets = make([]*intervalBucket, 0, s.n+1)
	for i := s.n; i >= 0; i-- {
		s.buckets = append(s.buckets, newIntervalBucket(now.Add(-time.Duration(i)*s.bucketDuration)))
	}
}

func (s *intervalState) record(values []tag.Value, value float64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refresh(now); err != nil {
		return err
	}

	newest := s.buckets[len(s.buckets)-1]
	key := rowKey(values)
	row, ok := newest.rows[key]
	if !ok {
		row = &cumulativeRow{values: values, aggs: newMutableAggregations(s.view.Aggregations)}
		newest.rows[key] = row
	}
	for _, agg := range row.aggs {
		agg.add(value)
	}
	return nil
}

// snapshot blends the head bucket's retained fraction with every
// interior bucket and the tail bucket at full weight.
func (s *intervalState) snapshot(now time.Time) ([]Row, WindowData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refresh(now); err != nil {
		return nil, WindowData{}, err
	}

	tail := s.buckets[len(s.buckets)-1]
	ft := float64(now.Sub(tail.start)) / float64(s.bucketDuration)
	if ft < 0 {
		ft = 0
	}
	if ft > 1 {
		ft = 1
	}
	headRetained := 1 - ft

	keys := make(map[string][]tag.Value)
	for _, b := range s.buckets {
		for key, row := range b.rows {
			if _, ok := keys[key]; !ok {
				keys[key] = row.values
			}
		}
	}

	rows := make([]Row, 0, len(keys))
	for key, values := range keys {
		accs := newMutableAggregations(s.view.Aggregations)
		for i, b := range s.buckets {
			row, ok := b.rows[key]
			if !ok {
				continue
			}
			weight := 1.0
			if i == 0 {
				weight = headRetained
			}
			for j, acc := range accs {
				if err := acc.combine(row.aggs[j], weight); err != nil {
					if !errors.Is(err, ErrUnsupportedCombine) {
						return nil, WindowData{}, err
					}
					// The head bucket can't blend a Range/StdDev
					// accumulator at a fractional weight. Drop just
					// this column's contribution from this bucket
					// rather than failing the whole view snapshot.
					s.logger.Warn("view: dropping partial bucket for unsupported combine",
						zap.String("view", s.view.Name),
						zap.Float64("weight", weight))
				}
			}
		}
		data := make([]AggregationData, len(accs))
		for i, acc := range accs {
			data[i] = acc.snapshot()
		}
		rows = append(rows, Row{TagValues: values, Data: data})
	}

	return rows, WindowData{Kind: WindowInterval, End: now}, nil
}
