package view

import (
	"sync"
	"time"

	"github.com/driftloop/telemetry/tag"
)

// cumulativeRow is one aggregation cell for a cumulative view: the tag
// values that identify it plus one accumulator per declared
// aggregation.
type cumulativeRow struct {
	values []tag.Value
	aggs   []MutableAggregation
}

// cumulativeState implements viewState for the Cumulative window: a
// single map from tag vector to accumulators, never reset by
// snapshotting.
type cumulativeState struct {
	view  View
	start time.Time

	mu   sync.Mutex
	rows map[string]*cumulativeRow
}

func newCumulativeState(v View, start time.Time) *cumulativeState {
	return &cumulativeState{view: v, start: start, rows: make(map[string]*cumulativeRow)}
}

func (s *cumulativeState) record(values []tag.Value, value float64, _ time.Time) error {
	key := rowKey(values)

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[key]
	if !ok {
		row = &cumulativeRow{values: values, aggs: newMutableAggregations(s.view.Aggregations)}
		s.rows[key] = row
	}
	for _, agg := range row.aggs {
		agg.add(value)
	}
	return nil
}

func (s *cumulativeState) snapshot(now time.Time) ([]Row, WindowData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]Row, 0, len(s.rows))
	for _, row := range s.rows {
		data := make([]AggregationData, len(row.aggs))
		for i, agg := range row.aggs {
			data[i] = agg.snapshot()
		}
		rows = append(rows, Row{TagValues: row.values, Data: data})
	}
	return rows, WindowData{Kind: WindowCumulative, Start: s.start, End: now}, nil
}
