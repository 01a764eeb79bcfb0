package pipeline

import (
	"math"
	"sort"

	"github.com/ntentasd/bopstack-api/pkg/types"
)

const (
	DefaultWetThreshold  = 700.0
	DefaultRareThreshold = 5000.0
	topStressCount       = 5
)

type statsKey struct {
	valve string
	state types.State
	pod   types.Pod
}

// aggregate skips NaN values.
type aggregate struct {
	n        int
	sum      float64
	min, max float64
}

func (a *aggregate) add(v types.Float) {
	if v.IsNaN() {
		return
	}
	f := float64(v)
	if a.n == 0 {
		a.min, a.max = f, f
	}
	a.n++
	a.sum += f
	a.min = math.Min(a.min, f)
	a.max = math.Max(a.max, f)
}

func (a *aggregate) mean() types.Float { return a.or(a.sum / float64(a.n)) }
func (a *aggregate) lo() types.Float   { return a.or(a.min) }
func (a *aggregate) hi() types.Float   { return a.or(a.max) }

func (a *aggregate) total() types.Float {
	return types.Float(round(a.sum, 2))
}

func (a *aggregate) or(v float64) types.Float {
	if a.n == 0 {
		return types.NaN()
	}
	return types.Float(round(v, 2))
}

// Stats groups events by valve, state and pod.
func Stats(events []types.Event) []types.StatsRow {
	type group struct {
		delta, pressure, well, flow, depletion aggregate
		count                                  int
		recent                                 types.Event
	}

	groups := make(map[statsKey]*group)
	for _, ev := range events {
		k := statsKey{ev.Valve, ev.State, ev.ActivePod}
		g, ok := groups[k]
		if !ok {
			g = &group{}
			groups[k] = g
		}
		if !ev.DeltaGal.IsNaN() {
			g.count++
		}
		g.delta.add(ev.DeltaGal)
		g.pressure.add(ev.MaxPressure)
		g.well.add(ev.MaxWellPressure)
		g.flow.add(ev.FlowRateGPM)
		g.depletion.add(ev.DepletionPct)
		if !ev.Timestamp.Before(g.recent.Timestamp) {
			g.recent = ev
		}
	}

	keys := make([]statsKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.valve != b.valve {
			return a.valve < b.valve
		}
		if a.state != b.state {
			return a.state < b.state
		}
		return a.pod < b.pod
	})

	out := make([]types.StatsRow, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		out = append(out, types.StatsRow{
			Valve:                k.valve,
			State:                k.state,
			ActivePod:            k.pod,
			Count:                g.count,
			AvgDeltaGal:          g.delta.mean(),
			MinDeltaGal:          g.delta.lo(),
			MaxDeltaGal:          g.delta.hi(),
			TotalVolumeGal:       g.delta.total(),
			AvgPressure:          g.pressure.mean(),
			MinPressure:          g.pressure.lo(),
			MaxPressure:          g.pressure.hi(),
			AvgWellPressure:      g.well.mean(),
			MinWellPressure:      g.well.lo(),
			MaxWellPressure:      g.well.hi(),
			AvgFlowGPM:           g.flow.mean(),
			TotalDepletionPct:    g.depletion.total(),
			MostRecentStatusCode: g.recent.StatusCode,
		})
	}
	return out
}

// PodOverview splits accumulator time and event volume between the Blue
// and Yellow pods. Time between two samples goes to the pod of the earlier
// one.
func PodOverview(events []types.Event, acc []types.AccumulatorSample) []types.PodUsage {
	pods := []types.Pod{types.PodBlue, types.PodYellow}
	seconds := make(map[types.Pod]float64)
	flow := make(map[types.Pod]float64)
	count := make(map[types.Pod]int)

	var prev *types.AccumulatorSample
	for i := range acc {
		s := &acc[i]
		if s.ActivePod != types.PodBlue && s.ActivePod != types.PodYellow {
			continue
		}
		if prev != nil {
			seconds[prev.ActivePod] += s.Timestamp.Sub(prev.Timestamp).Seconds()
		}
		prev = s
	}

	for _, ev := range events {
		if ev.ActivePod != types.PodBlue && ev.ActivePod != types.PodYellow {
			continue
		}
		count[ev.ActivePod]++
		if !ev.DeltaGal.IsNaN() {
			flow[ev.ActivePod] += float64(ev.DeltaGal)
		}
	}

	out := make([]types.PodUsage, 0, len(pods))
	for _, p := range pods {
		out = append(out, types.PodUsage{
			Pod:      p,
			TimeMin:  types.Float(round(seconds[p]/60, 1)),
			FlowGal:  types.Float(round(flow[p], 1)),
			EventCnt: count[p],
		})
	}
	return out
}

// SummarizeCycles counts wet and dry cycles per valve and picks the rare
// and most stressful ones.
func SummarizeCycles(cycles []types.Cycle, wet, rare float64) types.CycleSummary {
	sum := types.CycleSummary{
		WetThreshold:  wet,
		RareThreshold: rare,
		Valves:        []types.ValveCycleSummary{},
		RareCycles:    []types.Cycle{},
		TopStress:     []types.Cycle{},
	}

	index := make(map[string]int)
	for _, c := range cycles {
		i, ok := index[c.Valve]
		if !ok {
			i = len(sum.Valves)
			index[c.Valve] = i
			sum.Valves = append(sum.Valves, types.ValveCycleSummary{Valve: c.Valve})
		}
		vs := &sum.Valves[i]

		if float64(c.MaxWellPressure) > wet {
			vs.WetCycles++
		} else {
			vs.DryCycles++
		}
		if float64(c.MaxWellPressure) >= rare {
			vs.MinutesAboveRare += c.DurationMin
			sum.RareCycles = append(sum.RareCycles, c)
		}
	}
	for i := range sum.Valves {
		sum.Valves[i].MinutesAboveRare = types.Float(round(float64(sum.Valves[i].MinutesAboveRare), 2))
	}

	ranked := make([]types.Cycle, len(cycles))
	copy(ranked, cycles)
	sort.SliceStable(ranked, func(i, j int) bool {
		return stress(ranked[i]) > stress(ranked[j])
	})
	if len(ranked) > topStressCount {
		ranked = ranked[:topStressCount]
	}
	sum.TopStress = append(sum.TopStress, ranked...)

	return sum
}

func stress(c types.Cycle) float64 {
	return float64(c.MaxWellPressure) * float64(c.DurationMin)
}
