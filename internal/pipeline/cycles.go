package pipeline

import (
	"sort"
	"time"

	"github.com/ntentasd/bopstack-api/pkg/types"
)

// history is the OPEN/CLOSE sequence of one valve, ordered by time.
type history struct {
	times  []time.Time
	states []types.State
}

func (h history) stateAt(t time.Time) (types.State, bool) {
	i := sort.Search(len(h.times), func(i int) bool { return h.times[i].After(t) }) - 1
	if i < 0 {
		return types.StateNone, false
	}
	return h.states[i], true
}

// closesBetween reports a CLOSE strictly inside (from, to).
func (h history) closesBetween(from, to time.Time) bool {
	i := sort.Search(len(h.times), func(i int) bool { return h.times[i].After(from) })
	for ; i < len(h.times) && h.times[i].Before(to); i++ {
		if h.states[i] == types.StateClose {
			return true
		}
	}
	return false
}

func (h history) nextOpen(t time.Time) (time.Time, bool) {
	i := sort.Search(len(h.times), func(i int) bool { return h.times[i].After(t) })
	for ; i < len(h.times); i++ {
		if h.states[i] == types.StateOpen {
			return h.times[i], true
		}
	}
	return time.Time{}, false
}

func buildHistories(transitions []types.Transition) map[string]history {
	sorted := make([]types.Transition, 0, len(transitions))
	for _, tr := range transitions {
		if tr.State == types.StateOpen || tr.State == types.StateClose {
			sorted = append(sorted, tr)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	out := make(map[string]history)
	for _, tr := range sorted {
		h := out[tr.Valve]
		h.times = append(h.times, tr.Timestamp)
		h.states = append(h.states, tr.State)
		out[tr.Valve] = h
	}
	return out
}

// ReconstructCycles pairs every CLOSE of a valve with its next OPEN. A pair
// is kept only when no valve lower in the stack was closed at the CLOSE or
// closed before the OPEN, and the well pressure has samples in between.
func ReconstructCycles(transitions []types.Transition, stackOrder []string, well Series) []types.Cycle {
	histories := buildHistories(transitions)

	var out []types.Cycle
	for idx, valve := range stackOrder {
		h, ok := histories[valve]
		if !ok {
			continue
		}
		lower := stackOrder[idx+1:]

		for i, state := range h.states {
			if state != types.StateClose {
				continue
			}
			closeAt := h.times[i]
			openAt, ok := h.nextOpen(closeAt)
			if !ok {
				continue
			}
			if blockedBelow(histories, lower, closeAt, openAt) {
				continue
			}

			slice := well.Between(closeAt, openAt)
			if slice.Len() == 0 {
				continue
			}
			values := slice.Values()

			out = append(out, types.Cycle{
				ID:              CycleID(valve, closeAt, openAt),
				Valve:           valve,
				CloseTime:       closeAt,
				OpenTime:        openAt,
				DurationMin:     types.Float(round(openAt.Sub(closeAt).Minutes(), 2)),
				MinWellPressure: types.Float(round(minOf(values), 2)),
				MaxWellPressure: types.Float(round(maxOf(values), 2)),
				AvgWellPressure: types.Float(round(mean(values), 2)),
			})
		}
	}
	return out
}

func blockedBelow(histories map[string]history, lower []string, closeAt, openAt time.Time) bool {
	for _, lv := range lower {
		h, ok := histories[lv]
		if !ok {
			continue
		}
		// no history before the close counts as OPEN
		if st, ok := h.stateAt(closeAt); ok && st == types.StateClose {
			return true
		}
		if h.closesBetween(closeAt, openAt) {
			return true
		}
	}
	return false
}
