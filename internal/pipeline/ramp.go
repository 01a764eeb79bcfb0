package pipeline

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ntentasd/bopstack-api/internal/profile"
	"github.com/ntentasd/bopstack-api/pkg/types"
)

const (
	preFrac  = 0.8
	postFrac = 0.2
)

type interval struct {
	start, end time.Time
}

// IntervalSet holds accepted closed intervals, sorted and pairwise disjoint.
type IntervalSet struct {
	ivs []interval
}

// Overlaps reports whether [start, end] touches any interval in the set.
func (s *IntervalSet) Overlaps(start, end time.Time) bool {
	// ends are sorted because the intervals are disjoint
	i := sort.Search(len(s.ivs), func(i int) bool {
		return !s.ivs[i].end.Before(start)
	})
	return i < len(s.ivs) && !s.ivs[i].start.After(end)
}

// Insert adds [start, end]. The caller checks Overlaps first.
func (s *IntervalSet) Insert(start, end time.Time) {
	i := sort.Search(len(s.ivs), func(i int) bool {
		return s.ivs[i].start.After(start)
	})
	s.ivs = append(s.ivs, interval{})
	copy(s.ivs[i+1:], s.ivs[i:])
	s.ivs[i] = interval{start: start, end: end}
}

func (s *IntervalSet) Len() int { return len(s.ivs) }

// eventWindow returns [t-0.8W, t+0.2W].
func eventWindow(t time.Time, w time.Duration) (time.Time, time.Time) {
	return t.Add(-scale(w, preFrac)), t.Add(scale(w, postFrac))
}

func scale(d time.Duration, f float64) time.Duration {
	return time.Duration(math.Round(float64(d) * f))
}

// ExtractRamps attributes an accumulator volume change to each transition,
// in the order given. A transition whose window overlaps one already
// accepted is skipped, and so is one whose window holds no samples.
func ExtractRamps(transitions []types.Transition, acc Series, classes map[string]types.ValveClass, profiles profile.Profiles) []types.Event {
	var (
		used IntervalSet
		out  []types.Event
	)

	for _, tr := range transitions {
		class := classes[tr.Valve]
		t0, t1 := eventWindow(tr.Timestamp, profiles.Window(class))

		if used.Overlaps(t0, t1) {
			continue
		}

		slice := acc.Between(t0, t1)
		if slice.Len() == 0 {
			continue
		}

		first, last := slice.At(0), slice.At(slice.Len()-1)
		start, _ := acc.AtOrBefore(first.Timestamp)
		end, _ := acc.AtOrAfter(last.Timestamp)

		out = append(out, types.Event{
			ID:                EventID(tr.Valve, tr.Timestamp),
			Timestamp:         tr.Timestamp,
			Valve:             tr.Valve,
			ValveClass:        class,
			PrevState:         tr.PrevState,
			State:             tr.State,
			PrevFunctionState: tr.PrevFunctionState,
			FunctionState:     tr.FunctionState,
			StatusCode:        tr.StatusCode,
			WindowStart:       t0,
			WindowEnd:         t1,
			StartTime:         first.Timestamp,
			EndTime:           last.Timestamp,
			StartGal:          types.Float(start.Value),
			EndGal:            types.Float(end.Value),
			DeltaGal:          types.Float(end.Value - start.Value),
			MaxPressure:       types.NaN(),
			MaxWellPressure:   types.NaN(),
			DurationMin:       types.NaN(),
			FlowRateGPM:       types.NaN(),
			InstFlowRateGPM:   types.NaN(),
			ActivePod:         types.PodUnknown,
		})
		used.Insert(t0, t1)
	}

	return out
}

func EventID(valve string, t time.Time) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("bopstack:event:"+valve+":"+t.UTC().Format(time.RFC3339Nano)))
}

func CycleID(valve string, closeAt, openAt time.Time) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("bopstack:cycle:"+valve+":"+
		closeAt.UTC().Format(time.RFC3339Nano)+":"+openAt.UTC().Format(time.RFC3339Nano)))
}
