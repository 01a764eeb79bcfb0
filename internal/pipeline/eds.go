package pipeline

import (
	"sort"
	"time"

	"github.com/ntentasd/bopstack-api/internal/profile"
	"github.com/ntentasd/bopstack-api/pkg/types"
)

const DefaultEDSWindow = 15 * time.Minute

// podChannel is the EDS channel each pod indicator value drives.
var podChannel = map[int]string{1: "Ba", 2: "Bb", 3: "Ya", 4: "Yb"}

// EDSInputs carries the raw series the command log reads.
type EDSInputs struct {
	Progress    map[string]Series
	Channels    []string
	Pod         Series
	Accumulator Series
	Valves      map[string][]types.Entry
	Decode      map[string]profile.DecodeTable
	StackOrder  []string
}

// BuildEDSLog finds emergency disconnect commands and the valve activity
// that followed each one. A command is a progress channel leaving zero
// while the active pod drives that channel. Its window closes after
// window or at the next command, whichever comes first.
func BuildEDSLog(in EDSInputs, window time.Duration) types.EDSLog {
	if window <= 0 {
		window = DefaultEDSWindow
	}

	channels := in.Channels
	if len(channels) == 0 {
		for ch := range in.Progress {
			channels = append(channels, ch)
		}
		sort.Strings(channels)
	}

	var triggers []types.EDSTrigger
	for _, ch := range channels {
		prog, ok := in.Progress[ch]
		if !ok {
			continue
		}
		prev := 0.0
		for i := 0; i < prog.Len(); i++ {
			e := prog.At(i)
			fired := prev == 0 && e.Value > 0
			prev = e.Value
			if !fired {
				continue
			}

			podSample, ok := in.Pod.AtOrBefore(e.Timestamp)
			if !ok {
				continue
			}
			code, ok := profile.StatusCode(podSample.Value)
			if !ok || podChannel[code] != ch {
				continue
			}
			triggers = append(triggers, types.EDSTrigger{
				Channel:      ch,
				CommandTime:  e.Timestamp,
				PodAtCommand: DecodePod(podSample.Value),
				CommandValue: e.Value,
			})
		}
	}

	sort.SliceStable(triggers, func(i, j int) bool {
		return triggers[i].CommandTime.Before(triggers[j].CommandTime)
	})

	log := types.EDSLog{Triggers: triggers}
	for i := range log.Triggers {
		tr := &log.Triggers[i]
		tr.Number = i + 1

		end := tr.CommandTime.Add(window)
		if i+1 < len(log.Triggers) && log.Triggers[i+1].CommandTime.Before(end) {
			end = log.Triggers[i+1].CommandTime
		}
		tr.WindowEnd = end

		tr.TotalVolumeGal = types.NaN()
		if vols := in.Accumulator.Since(tr.CommandTime, end).Values(); len(vols) > 0 {
			tr.TotalVolumeGal = types.Float(round(maxOf(vols)-minOf(vols), 2))
		}

		log.ValveEvents = append(log.ValveEvents, valveActivity(in, tr.CommandTime, end)...)
	}
	return log
}

// valveActivity lists raw status code changes in [from, to). The first
// sample in the window has nothing to compare against.
func valveActivity(in EDSInputs, from, to time.Time) []types.EDSValveEvent {
	var out []types.EDSValveEvent
	for _, valve := range valveOrder(in.Valves, in.StackOrder) {
		window := NewSeries(in.Valves[valve]).Since(from, to)
		for i := 1; i < window.Len(); i++ {
			prev, cur := window.At(i-1), window.At(i)
			if cur.Value == prev.Value {
				continue
			}
			code, ok := profile.StatusCode(cur.Value)
			if !ok {
				continue
			}

			label := "OTHER"
			if st, ok := profile.Decode(code, in.Decode[valve]); ok {
				label = string(st)
			}
			out = append(out, types.EDSValveEvent{
				CommandTime:         from,
				Valve:               valve,
				ValveEvent:          label,
				EventTime:           cur.Timestamp,
				SecondsAfterCommand: int(cur.Timestamp.Sub(from).Seconds()),
				StatusCode:          code,
			})
		}
	}
	return out
}
