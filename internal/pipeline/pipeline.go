package pipeline

import (
	"time"

	"github.com/ntentasd/bopstack-api/internal/profile"
	"github.com/ntentasd/bopstack-api/pkg/types"
)

// Inputs are the raw samples of one rig and range, keyed by valve name or
// EDS channel.
type Inputs struct {
	Valves       map[string][]types.Entry
	Accumulator  []types.Entry
	Pod          []types.Entry
	Pressure     map[string][]types.Entry
	WellPressure []types.Entry
	EDS          map[string][]types.Entry
}

type Config struct {
	Profiles    profile.Profiles            `json:"profiles"`
	Classes     map[string]types.ValveClass `json:"classes"`
	StackOrder  []string                    `json:"stack_order"`
	EDSWindow   time.Duration               `json:"eds_window"`
	EDSChannels []string                    `json:"eds_channels"`
	// AccumulatorScale converts raw accumulator readings to gallons. Zero
	// leaves them as is.
	AccumulatorScale float64 `json:"accumulator_scale"`
	WetThreshold     float64 `json:"wet_threshold"`
	RareThreshold    float64 `json:"rare_threshold"`
}

func (c Config) withDefaults() Config {
	if c.Profiles == nil {
		c.Profiles = profile.Default()
	}
	if c.EDSWindow <= 0 {
		c.EDSWindow = DefaultEDSWindow
	}
	if c.AccumulatorScale == 0 {
		c.AccumulatorScale = 1
	}
	if c.WetThreshold == 0 {
		c.WetThreshold = DefaultWetThreshold
	}
	if c.RareThreshold == 0 {
		c.RareThreshold = DefaultRareThreshold
	}
	return c
}

// Run computes the full report. It is deterministic in its inputs.
func Run(in Inputs, cfg Config) *types.Report {
	cfg = cfg.withDefaults()

	acc := NewSeries(in.Accumulator).Scale(cfg.AccumulatorScale)
	pod := NewSeries(in.Pod)
	well := NewSeries(in.WellPressure)

	transitions := Transitions(in.Valves, cfg.Classes, cfg.Profiles, cfg.StackOrder)
	events := ExtractRamps(transitions, acc, cfg.Classes, cfg.Profiles)

	annotated := AnnotateAccumulator(acc, pod)
	annotatePressure(events, in.Pressure, cfg)

	wellMax := AssignMaxWellPressure(events, transitions, well, cfg.Classes, cfg.Profiles)
	for i := range events {
		ev := &events[i]
		ev.MaxWellPressure = types.Float(wellMax[i])
		ev.FlowCategory = profile.ClassifyFlow(float64(ev.DeltaGal), ev.ValveClass, cfg.Profiles)
		ev.DepletionPct = types.Float(profile.EstimateDepletion(cfg.Profiles, ev.ValveClass, ev.State, ev.FlowCategory))
		ev.ActivePod = PodAt(pod, ev.Timestamp)

		ev.DurationMin = types.Float(ev.EndTime.Sub(ev.StartTime).Minutes())
		if ev.DurationMin != 0 {
			ev.FlowRateGPM = ev.DeltaGal / ev.DurationMin
		}
		ev.InstFlowRateGPM = instRateAt(annotated, ev.Timestamp)
	}

	cycles := ReconstructCycles(transitions, cfg.StackOrder, well)

	progress := make(map[string]Series, len(in.EDS))
	for ch, entries := range in.EDS {
		progress[ch] = NewSeries(entries)
	}
	decode := make(map[string]profile.DecodeTable, len(in.Valves))
	for valve := range in.Valves {
		decode[valve] = cfg.Profiles.Lookup(cfg.Classes[valve]).Decode
	}
	eds := BuildEDSLog(EDSInputs{
		Progress:    progress,
		Channels:    cfg.EDSChannels,
		Pod:         pod,
		Accumulator: acc,
		Valves:      in.Valves,
		Decode:      decode,
		StackOrder:  cfg.StackOrder,
	}, cfg.EDSWindow)

	report := &types.Report{
		Events:       nonNilEvents(events),
		Cycles:       nonNilCycles(cycles),
		Accumulator:  annotated,
		Stats:        Stats(events),
		Pods:         PodOverview(events, annotated),
		CycleSummary: SummarizeCycles(cycles, cfg.WetThreshold, cfg.RareThreshold),
		EDS:          eds,
	}
	if report.EDS.Triggers == nil {
		report.EDS.Triggers = []types.EDSTrigger{}
	}
	if report.EDS.ValveEvents == nil {
		report.EDS.ValveEvents = []types.EDSValveEvent{}
	}
	return report
}

// annotatePressure fills MaxPressure from each valve's own regulator
// series. Valves without one keep NaN.
func annotatePressure(events []types.Event, pressure map[string][]types.Entry, cfg Config) {
	byValve := make(map[string][]int)
	for i, ev := range events {
		byValve[ev.Valve] = append(byValve[ev.Valve], i)
	}

	for valve, idx := range byValve {
		entries, ok := pressure[valve]
		if !ok {
			continue
		}
		series := NewSeries(entries)
		subset := make([]types.Event, len(idx))
		for j, i := range idx {
			subset[j] = events[i]
		}
		values := AssignMaxPressure(subset, series, cfg.Classes, cfg.Profiles, preFrac, postFrac)
		for j, i := range idx {
			events[i].MaxPressure = types.Float(values[j])
		}
	}
}

func nonNilEvents(events []types.Event) []types.Event {
	if events == nil {
		return []types.Event{}
	}
	return events
}

func nonNilCycles(cycles []types.Cycle) []types.Cycle {
	if cycles == nil {
		return []types.Cycle{}
	}
	return cycles
}
