package pipeline

import (
	"sort"

	"github.com/ntentasd/bopstack-api/internal/profile"
	"github.com/ntentasd/bopstack-api/pkg/types"
)

type decoded struct {
	entry    types.Entry
	code     int
	state    types.State
	function types.State
}

// Transitions decodes the raw status samples of each valve and returns the
// state changes, stably ordered by timestamp. Samples without a state are
// dropped before the comparison, so a change across an undecodable sample
// is still reported.
func Transitions(valves map[string][]types.Entry, classes map[string]types.ValveClass, profiles profile.Profiles, stackOrder []string) []types.Transition {
	var out []types.Transition

	for _, valve := range valveOrder(valves, stackOrder) {
		vp := profiles.Lookup(classes[valve])
		samples := decodeValve(valves[valve], vp)

		for i := 1; i < len(samples); i++ {
			prev, cur := samples[i-1], samples[i]
			if cur.state == prev.state {
				continue
			}
			out = append(out, types.Transition{
				Valve:             valve,
				Timestamp:         cur.entry.Timestamp,
				PrevState:         prev.state,
				State:             cur.state,
				PrevFunctionState: prev.function,
				FunctionState:     cur.function,
				PrevStatusCode:    prev.code,
				StatusCode:        cur.code,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func decodeValve(entries []types.Entry, vp profile.ValveClassProfile) []decoded {
	sorted := make([]types.Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	out := make([]decoded, 0, len(sorted))
	for _, e := range sorted {
		code, ok := profile.StatusCode(e.Value)
		if !ok {
			continue
		}
		state, ok := profile.Decode(code, vp.Decode)
		if !ok {
			continue
		}
		function, _ := profile.Decode(code, vp.Function)
		out = append(out, decoded{entry: e, code: code, state: state, function: function})
	}
	return out
}

// valveOrder lists the valves present in samples: stack order first, then
// any others by name.
func valveOrder(samples map[string][]types.Entry, stackOrder []string) []string {
	seen := make(map[string]bool, len(samples))
	out := make([]string, 0, len(samples))
	for _, v := range stackOrder {
		if _, ok := samples[v]; ok && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}

	var rest []string
	for v := range samples {
		if !seen[v] {
			rest = append(rest, v)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
