package pipeline_test

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"
	"time"

	Pl "github.com/ntentasd/bopstack-api/internal/pipeline"
	"github.com/ntentasd/bopstack-api/internal/profile"
	"github.com/ntentasd/bopstack-api/pkg/types"
)

// scenario: a CLOSE at 34 s over a 100 -> 112 gal ramp (10..40 s) and an
// OPEN at 124 s over a 112 -> 117 gal ramp (100..130 s).
func scenario() (Pl.Inputs, Pl.Config) {
	var acc, well []types.Entry
	for sec := 0; sec <= 200; sec++ {
		acc = append(acc, pt(float64(sec), rampValue(sec)))
		well = append(well, pt(float64(sec), 1000))
	}

	in := Pl.Inputs{
		Valves: map[string][]types.Entry{
			"Upper Annular": {pt(0, 513), pt(34, 514), pt(124, 513)},
		},
		Accumulator: acc,
		Pod:         []types.Entry{pt(0, 1)},
		Pressure: map[string][]types.Entry{
			"Upper Annular": {pt(30, 1500), pt(34, 1600)},
		},
		WellPressure: well,
	}
	cfg := Pl.Config{
		Profiles:   profile.Default(),
		Classes:    map[string]types.ValveClass{"Upper Annular": types.ClassAnnular},
		StackOrder: []string{"Upper Annular"},
	}
	return in, cfg
}

func rampValue(sec int) float64 {
	switch {
	case sec <= 10:
		return 100
	case sec <= 40:
		return float64(500+2*(sec-10)) / 5
	case sec <= 100:
		return 112
	case sec <= 130:
		return float64(672+(sec-100)) / 6
	default:
		return 117
	}
}

func TestRun(t *testing.T) {
	in, cfg := scenario()
	report := Pl.Run(in, cfg)

	t.Run("One event per edge", func(t *testing.T) {
		assertInt(t, len(report.Events), 2)
		assertTime(t, report.Events[0].Timestamp, at(34))
		assertTime(t, report.Events[1].Timestamp, at(124))
	})

	t.Run("Close edge takes the first ramp", func(t *testing.T) {
		ev := report.Events[0]
		if ev.State != types.StateClose || ev.PrevState != types.StateOpen {
			t.Fatalf("got %q -> %q, want OPEN -> CLOSE", ev.PrevState, ev.State)
		}
		assertTime(t, ev.StartTime, at(10))
		assertTime(t, ev.EndTime, at(40))
		assertFloat(t, float64(ev.DeltaGal), 12)
		assertFloat(t, float64(ev.DurationMin), 0.5)
		assertFloat(t, float64(ev.FlowRateGPM), 24)

		// 12 gal is above the Annular mid bound of 7
		if ev.FlowCategory != types.FlowHigh {
			t.Errorf("got flow %s, want High", ev.FlowCategory)
		}
		assertFloat(t, float64(ev.DepletionPct), 0.75)
		assertFloat(t, float64(ev.MaxPressure), 1550)
		assertFloat(t, float64(ev.MaxWellPressure), 1000)
		if ev.ActivePod != types.PodBlue {
			t.Errorf("got pod %q, want Blue Pod", ev.ActivePod)
		}
		// 0.4 gal/s on the ramp
		assertFloat(t, float64(ev.InstFlowRateGPM), 24)
	})

	t.Run("Open edge takes the second ramp", func(t *testing.T) {
		ev := report.Events[1]
		assertFloat(t, float64(ev.DeltaGal), 5)
		if ev.FlowCategory != types.FlowMid {
			t.Errorf("got flow %s, want Mid", ev.FlowCategory)
		}
		assertFloat(t, float64(ev.DepletionPct), 0.1)
		if !ev.MaxPressure.IsNaN() {
			t.Errorf("got max pressure %v, want NaN", ev.MaxPressure)
		}
		assertFloat(t, float64(ev.InstFlowRateGPM), 10)
	})

	t.Run("One sealed cycle", func(t *testing.T) {
		assertInt(t, len(report.Cycles), 1)
		c := report.Cycles[0]
		assertFloat(t, float64(c.DurationMin), 1.5)
		assertFloat(t, float64(c.AvgWellPressure), 1000)
		assertInt(t, report.CycleSummary.Valves[0].WetCycles, 1)
	})

	t.Run("Statistics and pods", func(t *testing.T) {
		assertInt(t, len(report.Stats), 2)
		assertString(t, string(report.Stats[0].State), "CLOSE")
		assertFloat(t, float64(report.Stats[0].TotalVolumeGal), 12)
		assertInt(t, report.Stats[0].MostRecentStatusCode, 514)

		assertInt(t, len(report.Pods), 2)
		assertFloat(t, float64(report.Pods[0].FlowGal), 17)
		assertFloat(t, float64(report.Pods[0].TimeMin), 3.3)
		assertInt(t, report.Pods[1].EventCnt, 0)
	})

	t.Run("Accumulator is annotated", func(t *testing.T) {
		assertInt(t, len(report.Accumulator), 201)
	})
}

func TestRunIdempotent(t *testing.T) {
	in, cfg := scenario()

	first, err := json.Marshal(Pl.Run(in, cfg))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := json.Marshal(Pl.Run(in, cfg))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("two runs over the same input differ")
	}
}

func TestRunEmpty(t *testing.T) {
	report := Pl.Run(Pl.Inputs{}, Pl.Config{})

	assertInt(t, len(report.Events), 0)
	assertInt(t, len(report.Cycles), 0)

	raw, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	assertStringContains(t, string(raw), `"events":[]`)
}

func TestAccumulatorScale(t *testing.T) {
	in, cfg := scenario()
	for i := range in.Accumulator {
		in.Accumulator[i].Value *= 10
	}
	cfg.AccumulatorScale = 0.1

	report := Pl.Run(in, cfg)
	assertInt(t, len(report.Events), 2)
	assertFloat(t, float64(report.Events[0].DeltaGal), 12)
}

// Helpers //

var epoch = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func at(sec float64) time.Time {
	return epoch.Add(time.Duration(sec * float64(time.Second)))
}

func pt(sec, value float64) types.Entry {
	return types.Entry{Timestamp: at(sec), Value: value}
}

func series(entries ...types.Entry) Pl.Series {
	return Pl.NewSeries(entries)
}

func edge(valve string, sec float64, from, to types.State) types.Transition {
	return types.Transition{Valve: valve, Timestamp: at(sec), PrevState: from, State: to}
}

func assertTransition(t testing.TB, got types.Transition, valve string, sec float64, from, to types.State) {
	t.Helper()
	if got.Valve != valve || !got.Timestamp.Equal(at(sec)) || got.PrevState != from || got.State != to {
		t.Errorf("got %s@%s %q->%q, want %s@%s %q->%q",
			got.Valve, got.Timestamp, got.PrevState, got.State, valve, at(sec), from, to)
	}
}

func assertFloat(t testing.TB, got, want float64) {
	t.Helper()
	if math.IsNaN(got) || math.Abs(got-want) > 1e-6 {
		t.Errorf("got %v, want %v", got, want)
	}
}

func assertInt(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("did not get correct value, got %d, want %d", got, want)
	}
}

func assertString(t testing.TB, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func assertStringContains(t testing.TB, full, want string) {
	t.Helper()
	if !bytes.Contains([]byte(full), []byte(want)) {
		t.Errorf("Did not find %q in %q", want, full)
	}
}

func assertTime(t testing.TB, got, want time.Time) {
	t.Helper()
	if !got.Equal(want) {
		t.Errorf("got time %s, want %s", got, want)
	}
}
