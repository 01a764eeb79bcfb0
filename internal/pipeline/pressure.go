package pipeline

import (
	"math"
	"sort"
	"time"

	"github.com/ntentasd/bopstack-api/internal/profile"
	"github.com/ntentasd/bopstack-api/pkg/types"
)

const (
	wellOpenFrac = 2.0
	minTopPoints = 5
)

// TopQuartileMean is a peak estimator that ignores single sample spikes:
// the mean of the values at or above the 75th percentile. Fewer than five
// finite values give their plain mean, none gives NaN.
func TopQuartileMean(values []float64) float64 {
	arr := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			arr = append(arr, v)
		}
	}
	if len(arr) == 0 {
		return math.NaN()
	}
	if len(arr) < minTopPoints {
		return mean(arr)
	}

	thr := percentile(arr, 75)
	var sum float64
	var n int
	for _, v := range arr {
		if v >= thr {
			sum += v
			n++
		}
	}
	if n == 0 {
		return maxOf(arr)
	}
	return sum / float64(n)
}

// percentile interpolates linearly between the closest ranks.
func percentile(values []float64, p float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func maxOf(values []float64) float64 {
	m := math.Inf(-1)
	for _, v := range values {
		m = math.Max(m, v)
	}
	return m
}

func minOf(values []float64) float64 {
	m := math.Inf(1)
	for _, v := range values {
		m = math.Min(m, v)
	}
	return m
}

// AssignMaxPressure returns the top quartile mean of series over
// [t-pre*W, t+post*W] for each event.
func AssignMaxPressure(events []types.Event, series Series, classes map[string]types.ValveClass, profiles profile.Profiles, pre, post float64) []float64 {
	out := make([]float64, len(events))
	for i, ev := range events {
		w := profiles.Window(classes[ev.Valve])
		from, to := ev.Timestamp.Add(-scale(w, pre)), ev.Timestamp.Add(scale(w, post))
		out[i] = TopQuartileMean(series.Between(from, to).Values())
	}
	return out
}

// AssignMaxWellPressure windows the well pressure by the event state. An
// OPEN looks 2W ahead, a CLOSE runs until the valve's next OPEN (or the
// end of the series) and anything else uses the event window.
func AssignMaxWellPressure(events []types.Event, transitions []types.Transition, well Series, classes map[string]types.ValveClass, profiles profile.Profiles) []float64 {
	opens := make(map[string][]time.Time)
	for _, tr := range transitions {
		if tr.State == types.StateOpen {
			opens[tr.Valve] = append(opens[tr.Valve], tr.Timestamp)
		}
	}
	for v := range opens {
		ts := opens[v]
		sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
	}

	out := make([]float64, len(events))
	for i, ev := range events {
		w := profiles.Window(classes[ev.Valve])
		from := ev.Timestamp.Add(-scale(w, preFrac))

		var to time.Time
		switch ev.State {
		case types.StateOpen:
			to = ev.Timestamp.Add(scale(w, wellOpenFrac))
		case types.StateClose:
			next, ok := nextAfter(opens[ev.Valve], ev.Timestamp)
			switch {
			case ok:
				to = next
			case well.Len() > 0:
				to = well.Time(well.Len() - 1)
			default:
				to = ev.Timestamp
			}
		default:
			to = ev.Timestamp.Add(scale(w, postFrac))
		}

		out[i] = TopQuartileMean(well.Between(from, to).Values())
	}
	return out
}

func nextAfter(sorted []time.Time, t time.Time) (time.Time, bool) {
	i := sort.Search(len(sorted), func(i int) bool { return sorted[i].After(t) })
	if i >= len(sorted) {
		return time.Time{}, false
	}
	return sorted[i], true
}
