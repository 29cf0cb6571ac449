// Package spanstore implements the sampled span store: a bounded,
// queryable sample of recently completed spans, kept per registered
// span name and split by latency bucket and by canonical error code.
// It hooks the trace package's StartEndHandler contract the same way
// any span-completion listener would, but classifies and buckets
// instead of buffering a flat list.
package spanstore

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/driftloop/telemetry/trace"
)

// numLatencyBuckets is the fixed latency-bucket count.
const numLatencyBuckets = 9

// latencyBucketBounds are the lower bounds of each latency bucket, in
// nanoseconds; the last bucket is unbounded above.
var latencyBucketBounds = [numLatencyBuckets]int64{
	0,
	int64(10 * time.Microsecond),
	int64(100 * time.Microsecond),
	int64(1 * time.Millisecond),
	int64(10 * time.Millisecond),
	int64(100 * time.Millisecond),
	int64(1 * time.Second),
	int64(10 * time.Second),
	int64(100 * time.Second),
}

// latencyBucketFor returns the index of the bucket containing latency,
// per the half-open bounds [bounds[i], bounds[i+1]) with the final
// bucket open-ended above.
func latencyBucketFor(latency time.Duration) int {
	n := int64(latency)
	for i := numLatencyBuckets - 1; i >= 0; i-- {
		if n >= latencyBucketBounds[i] {
			return i
		}
	}
	return 0
}

// perNameState is the per-registered-name bucket set: one ring per
// latency bucket, one ring per observed canonical error code, and a
// live count of spans currently between OnStart and OnEnd.
type perNameState struct {
	mu           sync.RWMutex
	active       int
	latency      [numLatencyBuckets]*ring
	errorBuckets map[trace.CanonicalCode]*ring
}

func newPerNameState(capacity int) *perNameState {
	s := &perNameState{errorBuckets: make(map[trace.CanonicalCode]*ring)}
	for i := range s.latency {
		s.latency[i] = newRing(capacity)
	}
	return s
}

// Store is the sampled span store. Registration is an idempotent set
// operation; a span is eligible for sampling iff its name is
// registered at the moment its OnEnd fires. The set of registered names
// is guarded by one RWMutex; each name's state and each ring have their
// own locks.
type Store struct {
	mu                sync.RWMutex
	names             map[string]*perNameState
	perBucketCapacity int
}

// New builds an empty Store. perBucketCapacity bounds how many spans
// are retained per (name, latency-bucket) and per (name, error-code)
// ring.
func New(perBucketCapacity int) *Store {
	if perBucketCapacity <= 0 {
		perBucketCapacity = 32
	}
	return &Store{
		names:             make(map[string]*perNameState),
		perBucketCapacity: perBucketCapacity,
	}
}

// Register adds names to the set of span names this store samples.
// Registering an already-registered name is a no-op.
func (st *Store) Register(names ...string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, name := range names {
		if _, ok := st.names[name]; !ok {
			st.names[name] = newPerNameState(st.perBucketCapacity)
		}
	}
}

// Unregister removes names from the sampled set, discarding their
// buckets. Unregistering a name that isn't registered is a no-op.
func (st *Store) Unregister(names ...string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, name := range names {
		delete(st.names, name)
	}
}

func (st *Store) stateFor(name string) *perNameState {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.names[name]
}

// OnStart implements trace.StartEndHandler. It tracks live span counts
// for GetSummary's NumActiveSpans; it does not retain the span.
func (st *Store) OnStart(span *trace.Span) {
	state := st.stateFor(span.Name())
	if state == nil {
		return
	}
	state.mu.Lock()
	state.active++
	state.mu.Unlock()
}

// OnEnd implements trace.StartEndHandler. A span whose name is
// registered is classified by latency (if its status is OK) or by
// canonical error code (otherwise) and appended to the matching ring,
// evicting the oldest entry on overflow.
func (st *Store) OnEnd(span *trace.Span) {
	state := st.stateFor(span.Name())
	if state == nil {
		return
	}

	data, err := span.ToSpanData()

	state.mu.Lock()
	if state.active > 0 {
		state.active--
	}
	state.mu.Unlock()

	if err != nil || !data.HasEndTime {
		return
	}

	if data.Status.IsOK() {
		latency := data.EndTime.Sub(data.StartTime)
		state.latency[latencyBucketFor(latency)].add(data)
		return
	}

	state.mu.Lock()
	bucket, ok := state.errorBuckets[data.Status.Code]
	if !ok {
		bucket = newRing(st.perBucketCapacity)
		state.errorBuckets[data.Status.Code] = bucket
	}
	state.mu.Unlock()
	bucket.add(data)
}

// LatencyFilter selects spans by name and an inclusive-lower,
// exclusive-upper latency range.
type LatencyFilter struct {
	Name     string
	LowerNs  int64
	UpperNs  int64
	MaxSpans int
}

// GetLatencySampledSpans returns sampled spans for filter.Name whose
// latency falls in [LowerNs, UpperNs), drawn from every bucket whose
// range overlaps the filter. MaxSpans == 0 means no limit. Order is
// unspecified.
func (st *Store) GetLatencySampledSpans(filter LatencyFilter) []*trace.SpanData {
	state := st.stateFor(filter.Name)
	if state == nil {
		return nil
	}

	var out []*trace.SpanData
	for i := 0; i < numLatencyBuckets; i++ {
		lo := latencyBucketBounds[i]
		hi := int64(1<<63 - 1)
		if i+1 < numLatencyBuckets {
			hi = latencyBucketBounds[i+1]
		}
		if filter.UpperNs != 0 && lo >= filter.UpperNs {
			continue
		}
		if hi <= filter.LowerNs && filter.LowerNs != 0 {
			continue
		}
		for _, data := range state.latency[i].snapshot() {
			latency := int64(data.EndTime.Sub(data.StartTime))
			if latency < filter.LowerNs {
				continue
			}
			if filter.UpperNs != 0 && latency >= filter.UpperNs {
				continue
			}
			out = append(out, data)
			if filter.MaxSpans > 0 && len(out) >= filter.MaxSpans {
				return out
			}
		}
	}
	return out
}

// ErrorFilter selects spans by name and, optionally, a specific
// canonical error code; HasCode == false means "any non-OK code".
type ErrorFilter struct {
	Name     string
	Code     trace.CanonicalCode
	HasCode  bool
	MaxSpans int
}

// GetErrorSampledSpans returns sampled error spans matching filter.
func (st *Store) GetErrorSampledSpans(filter ErrorFilter) []*trace.SpanData {
	state := st.stateFor(filter.Name)
	if state == nil {
		return nil
	}

	state.mu.RLock()
	var rings []*ring
	if filter.HasCode {
		if r, ok := state.errorBuckets[filter.Code]; ok {
			rings = append(rings, r)
		}
	} else {
		for _, r := range state.errorBuckets {
			rings = append(rings, r)
		}
	}
	state.mu.RUnlock()

	var out []*trace.SpanData
	for _, r := range rings {
		for _, data := range r.snapshot() {
			out = append(out, data)
			if filter.MaxSpans > 0 && len(out) >= filter.MaxSpans {
				return out
			}
		}
	}
	return out
}

// Summary is the per-registered-name snapshot returned by GetSummary.
type Summary struct {
	Name                string
	NumActiveSpans      int
	LatencyBucketCounts [numLatencyBuckets]int
	ErrorBucketCounts   map[trace.CanonicalCode]int
}

// GetSummary returns a Summary for every currently registered name.
func (st *Store) GetSummary() map[string]Summary {
	st.mu.RLock()
	names := make([]string, 0, len(st.names))
	states := make(map[string]*perNameState, len(st.names))
	for name, state := range st.names {
		names = append(names, name)
		states[name] = state
	}
	st.mu.RUnlock()

	out := make(map[string]Summary, len(names))
	for _, name := range names {
		state := states[name]
		state.mu.RLock()
		summary := Summary{
			Name:              name,
			NumActiveSpans:    state.active,
			ErrorBucketCounts: make(map[trace.CanonicalCode]int, len(state.errorBuckets)),
		}
		for code, r := range state.errorBuckets {
			summary.ErrorBucketCounts[code] = r.size()
		}
		state.mu.RUnlock()
		for i := 0; i < numLatencyBuckets; i++ {
			summary.LatencyBucketCounts[i] = state.latency[i].size()
		}
		out[name] = summary
	}
	return out
}

// String renders the summary as a human-readable multi-line report,
// sorted by name, for debugging inspection.
func (st *Store) String() string {
	summaries := st.GetSummary()
	names := make([]string, 0, len(summaries))
	for name := range summaries {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		s := summaries[name]
		fmt.Fprintf(&b, "%s: active=%d\n", s.Name, s.NumActiveSpans)
		for i, count := range s.LatencyBucketCounts {
			if count == 0 {
				continue
			}
			fmt.Fprintf(&b, "  latency[%d]=%d\n", i, count)
		}
		codes := make([]trace.CanonicalCode, 0, len(s.ErrorBucketCounts))
		for code := range s.ErrorBucketCounts {
			codes = append(codes, code)
		}
		sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
		for _, code := range codes {
			fmt.Fprintf(&b, "  error[%d]=%d\n", code, s.ErrorBucketCounts[code])
		}
	}
	return b.String()
}
