package pipeline

import (
	"math"
	"sort"
	"time"

	"github.com/ntentasd/bopstack-api/pkg/types"
)

func DecodePod(v float64) types.Pod {
	switch v {
	case 1, 2:
		return types.PodBlue
	case 3, 4:
		return types.PodYellow
	default:
		return types.PodUnknown
	}
}

// PodAt returns the pod active at t, Unknown before the first indicator
// sample.
func PodAt(pod Series, t time.Time) types.Pod {
	e, ok := pod.AtOrBefore(t)
	if !ok {
		return types.PodUnknown
	}
	return DecodePod(e.Value)
}

// AnnotateAccumulator tags each accumulator sample with the active pod and
// the instantaneous flow rate from the previous sample. Rates that cannot
// be computed take the next valid rate.
func AnnotateAccumulator(acc Series, pod Series) []types.AccumulatorSample {
	out := make([]types.AccumulatorSample, acc.Len())
	for i := 0; i < acc.Len(); i++ {
		e := acc.At(i)
		rate := math.NaN()
		if i > 0 {
			prev := acc.At(i - 1)
			dt := e.Timestamp.Sub(prev.Timestamp).Seconds()
			if dt > 0 {
				rate = (e.Value - prev.Value) / (dt / 60)
			}
		}
		out[i] = types.AccumulatorSample{
			Timestamp:       e.Timestamp,
			Gallons:         types.Float(e.Value),
			ActivePod:       PodAt(pod, e.Timestamp),
			InstFlowRateGPM: types.Float(rate),
		}
	}

	next := types.NaN()
	for i := len(out) - 1; i >= 0; i-- {
		if out[i].InstFlowRateGPM.IsNaN() {
			out[i].InstFlowRateGPM = next
			continue
		}
		next = out[i].InstFlowRateGPM
	}
	return out
}

// instRateAt returns the instantaneous rate of the last annotated sample at
// or before t.
func instRateAt(samples []types.AccumulatorSample, t time.Time) types.Float {
	i := sort.Search(len(samples), func(i int) bool {
		return samples[i].Timestamp.After(t)
	})
	if i == 0 {
		return types.NaN()
	}
	return samples[i-1].InstFlowRateGPM
}
