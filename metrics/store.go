// Package metrics provides bounded in-memory metric time series, windowed
// statistics, threshold alerting, and a background collector that samples
// host metrics and evaluates alert rules on a fixed interval.
package metrics

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultCapacity is the per-series point limit when none is configured.
const DefaultCapacity = 1000

// exportTail is how many trailing points per series Export includes.
const exportTail = 100

// Point is a single recorded observation. Immutable once recorded.
type Point struct {
	Timestamp time.Time         `json:"timestamp"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// Stats summarises the points of one series inside a trailing window.
type Stats struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Avg    float64 `json:"avg"`
	Median float64 `json:"median"`
	Latest float64 `json:"latest"`
}

// series is a fixed-capacity ring buffer of points. Oldest evicted first.
type series struct {
	buf   []Point
	head  int // index of the oldest point
	count int
}

func (s *series) push(p Point) {
	if s.count < len(s.buf) {
		s.buf[(s.head+s.count)%len(s.buf)] = p
		s.count++
		return
	}
	// Full: overwrite the oldest slot.
	s.buf[s.head] = p
	s.head = (s.head + 1) % len(s.buf)
}

// snapshot returns the points oldest-first.
func (s *series) snapshot() []Point {
	out := make([]Point, s.count)
	for i := 0; i < s.count; i++ {
		out[i] = s.buf[(s.head+i)%len(s.buf)]
	}
	return out
}

// Store holds bounded time series keyed by metric name.
// All methods are safe for concurrent use; the whole store shares one mutex,
// which also guarantees the FIFO-eviction invariant under concurrent writers.
type Store struct {
	mu       sync.Mutex
	capacity int
	series   map[string]*series
}

// NewStore creates a store with the given per-series capacity.
// Non-positive capacity falls back to DefaultCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		series:   make(map[string]*series),
	}
}

// Record appends a point with the current UTC timestamp. It never fails;
// when the series is at capacity the oldest point is evicted.
func (st *Store) Record(name string, value float64, labels map[string]string) {
	st.RecordAt(name, time.Now().UTC(), value, labels)
}

// RecordAt appends a point with an explicit timestamp. Points must be
// appended in non-decreasing timestamp order per series — Stats treats the
// most recently inserted point as the latest.
func (st *Store) RecordAt(name string, ts time.Time, value float64, labels map[string]string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.series[name]
	if !ok {
		s = &series{buf: make([]Point, st.capacity)}
		st.series[name] = s
	}
	s.push(Point{Timestamp: ts, Value: value, Labels: labels})
}

// Stats computes aggregates over points whose timestamp is within the
// trailing window. Returns ok=false when the series has no points in range.
func (st *Store) Stats(name string, window time.Duration) (Stats, bool) {
	st.mu.Lock()
	s, ok := st.series[name]
	if !ok {
		st.mu.Unlock()
		return Stats{}, false
	}
	points := s.snapshot()
	st.mu.Unlock()

	cutoff := time.Now().UTC().Add(-window)
	values := make([]float64, 0, len(points))
	for _, p := range points {
		if !p.Timestamp.Before(cutoff) {
			values = append(values, p.Value)
		}
	}
	if len(values) == 0 {
		return Stats{}, false
	}

	out := Stats{
		Count:  len(values),
		Min:    values[0],
		Max:    values[0],
		Latest: values[len(values)-1],
	}
	sum := 0.0
	for _, v := range values {
		if v < out.Min {
			out.Min = v
		}
		if v > out.Max {
			out.Max = v
		}
		sum += v
	}
	out.Avg = sum / float64(len(values))
	out.Median = median(values)
	return out, true
}

// Points returns a copy of the retained points for one series, oldest-first.
func (st *Store) Points(name string) []Point {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.series[name]
	if !ok {
		return nil
	}
	return s.snapshot()
}

// Names returns the recorded metric names, sorted.
func (st *Store) Names() []string {
	st.mu.Lock()
	names := make([]string, 0, len(st.series))
	for name := range st.series {
		names = append(names, name)
	}
	st.mu.Unlock()
	sort.Strings(names)
	return names
}

// exportPoint is the wire shape of one exported point.
type exportPoint struct {
	Timestamp string            `json:"timestamp"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// Export dumps the last 100 points of every series as a JSON document
// keyed by metric name, timestamps in RFC 3339.
func (st *Store) Export() ([]byte, error) {
	st.mu.Lock()
	dump := make(map[string][]Point, len(st.series))
	for name, s := range st.series {
		points := s.snapshot()
		if len(points) > exportTail {
			points = points[len(points)-exportTail:]
		}
		dump[name] = points
	}
	st.mu.Unlock()

	out := make(map[string][]exportPoint, len(dump))
	for name, points := range dump {
		eps := make([]exportPoint, len(points))
		for i, p := range points {
			eps[i] = exportPoint{
				Timestamp: p.Timestamp.Format(time.RFC3339Nano),
				Value:     p.Value,
				Labels:    p.Labels,
			}
		}
		out[name] = eps
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("metrics: export: %w", err)
	}
	return b, nil
}

// median of a non-empty value slice. Even counts average the middle pair.
func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
