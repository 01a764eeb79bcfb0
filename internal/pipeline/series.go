// Package pipeline turns raw valve, accumulator and pressure samples into
// valve events and pressure cycles. Everything here is a pure function of
// its inputs.
package pipeline

import (
	"math"
	"sort"
	"time"

	"github.com/ntentasd/bopstack-api/pkg/types"
)

// Series is a time ordered run of finite samples. Equal timestamps keep
// their input order.
type Series struct {
	times  []time.Time
	values []float64
}

func NewSeries(entries []types.Entry) Series {
	kept := make([]types.Entry, 0, len(entries))
	for _, e := range entries {
		if math.IsNaN(e.Value) || math.IsInf(e.Value, 0) {
			continue
		}
		kept = append(kept, e)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Timestamp.Before(kept[j].Timestamp)
	})

	s := Series{
		times:  make([]time.Time, len(kept)),
		values: make([]float64, len(kept)),
	}
	for i, e := range kept {
		s.times[i] = e.Timestamp
		s.values[i] = e.Value
	}
	return s
}

func (s Series) Len() int { return len(s.times) }

func (s Series) At(i int) types.Entry {
	return types.Entry{Timestamp: s.times[i], Value: s.values[i]}
}

func (s Series) Time(i int) time.Time { return s.times[i] }

func (s Series) Value(i int) float64 { return s.values[i] }

func (s Series) Values() []float64 {
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}

// Scale multiplies every value by f.
func (s Series) Scale(f float64) Series {
	out := Series{times: s.times, values: make([]float64, len(s.values))}
	for i, v := range s.values {
		out.values[i] = v * f
	}
	return out
}

// Between returns the samples with from <= t <= to.
func (s Series) Between(from, to time.Time) Series {
	lo := s.firstAtOrAfter(from)
	hi := s.firstAfter(to)
	if hi < lo {
		hi = lo
	}
	return Series{times: s.times[lo:hi], values: s.values[lo:hi]}
}

// Since returns the samples with from <= t < to.
func (s Series) Since(from, to time.Time) Series {
	lo := s.firstAtOrAfter(from)
	hi := s.firstAtOrAfter(to)
	if hi < lo {
		hi = lo
	}
	return Series{times: s.times[lo:hi], values: s.values[lo:hi]}
}

// AtOrBefore returns the last sample at or before t.
func (s Series) AtOrBefore(t time.Time) (types.Entry, bool) {
	i := s.firstAfter(t) - 1
	if i < 0 {
		return types.Entry{}, false
	}
	return s.At(i), true
}

// AtOrAfter returns the first sample at or after t.
func (s Series) AtOrAfter(t time.Time) (types.Entry, bool) {
	i := s.firstAtOrAfter(t)
	if i >= len(s.times) {
		return types.Entry{}, false
	}
	return s.At(i), true
}

func (s Series) firstAtOrAfter(t time.Time) int {
	return sort.Search(len(s.times), func(i int) bool {
		return !s.times[i].Before(t)
	})
}

func (s Series) firstAfter(t time.Time) int {
	return sort.Search(len(s.times), func(i int) bool {
		return s.times[i].After(t)
	})
}

func round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
