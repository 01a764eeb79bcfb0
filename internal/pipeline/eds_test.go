package pipeline_test

import (
	"testing"
	"time"

	Pl "github.com/ntentasd/bopstack-api/internal/pipeline"
	"github.com/ntentasd/bopstack-api/internal/profile"
	"github.com/ntentasd/bopstack-api/pkg/types"
)

func TestBuildEDSLog(t *testing.T) {
	in := Pl.EDSInputs{
		Progress: map[string]Pl.Series{
			"Ba": series(pt(0, 0), pt(100, 5), pt(200, 10), pt(300, 0), pt(400, 3)),
			"Bb": series(pt(500, 2)),
		},
		Channels:    []string{"Ba", "Bb", "Ya", "Yb"},
		Pod:         series(pt(0, 1)),
		Accumulator: series(pt(90, 50), pt(120, 48), pt(250, 41), pt(399, 45), pt(450, 44)),
		Valves: map[string][]types.Entry{
			"Upper Annular": {pt(50, 513), pt(110, 513), pt(150, 514), pt(390, 256)},
			"Test Ram":      {pt(420, 513), pt(430, 4242)},
		},
		Decode: map[string]profile.DecodeTable{
			"Upper Annular": profile.RamDecode(),
			"Test Ram":      profile.RamDecode(),
		},
		StackOrder: []string{"Upper Annular", "Test Ram"},
	}

	log := Pl.BuildEDSLog(in, 15*time.Minute)

	t.Run("Triggers on the pod's own channel", func(t *testing.T) {
		assertInt(t, len(log.Triggers), 2)

		first := log.Triggers[0]
		assertInt(t, first.Number, 1)
		assertString(t, first.Channel, "Ba")
		assertTime(t, first.CommandTime, at(100))
		if first.PodAtCommand != types.PodBlue {
			t.Errorf("got pod %q, want Blue Pod", first.PodAtCommand)
		}
		assertFloat(t, first.CommandValue, 5)

		assertTime(t, log.Triggers[1].CommandTime, at(400))
	})

	t.Run("Window ends at the next command", func(t *testing.T) {
		assertTime(t, log.Triggers[0].WindowEnd, at(400))
		assertTime(t, log.Triggers[1].WindowEnd, at(1300))
	})

	t.Run("Volume is the range inside the window", func(t *testing.T) {
		// 48, 41, 45
		assertFloat(t, float64(log.Triggers[0].TotalVolumeGal), 7)
		assertFloat(t, float64(log.Triggers[1].TotalVolumeGal), 0)
	})

	t.Run("Valve code changes follow each command", func(t *testing.T) {
		assertInt(t, len(log.ValveEvents), 3)

		ev := log.ValveEvents[0]
		assertString(t, ev.Valve, "Upper Annular")
		assertString(t, ev.ValveEvent, "CLOSE")
		assertInt(t, ev.SecondsAfterCommand, 50)
		assertInt(t, ev.StatusCode, 514)

		assertString(t, log.ValveEvents[1].ValveEvent, "VENT")
		assertInt(t, log.ValveEvents[1].SecondsAfterCommand, 290)

		other := log.ValveEvents[2]
		assertString(t, other.Valve, "Test Ram")
		assertString(t, other.ValveEvent, "OTHER")
		assertTime(t, other.CommandTime, at(400))
	})

	t.Run("No pod indicator means no command", func(t *testing.T) {
		noPod := in
		noPod.Pod = Pl.NewSeries(nil)
		got := Pl.BuildEDSLog(noPod, 0)
		assertInt(t, len(got.Triggers), 0)
	})
}
