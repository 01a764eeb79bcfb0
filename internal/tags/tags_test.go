package tags_test

import (
	"errors"
	"testing"

	Tg "github.com/ntentasd/bopstack-api/internal/tags"
	"github.com/ntentasd/bopstack-api/pkg/types"
)

func TestResolve(t *testing.T) {
	t.Run("Drillmax layout", func(t *testing.T) {
		rt, err := Tg.Resolve("Drillmax")
		assertNoError(t, err)

		assertString(t, rt.AccumulatorTag, "pi-no:Drillmax.BOP.CBM.HPU_MAINACC_ACC_NoReset")
		assertString(t, rt.PodTag, "pi-no:Drillmax.BOP.CBM.ActiveSem")
		assertString(t, rt.WellPressureTag, "pi-no:Drillmax.BOP.CBM.ScaledValue12")
		assertString(t, rt.EDSTags["Ya"], "pi-no:Drillmax.BOP.CBM.YaEDSProgress")

		lbs := findValve(t, rt, "Lower Blind Shear")
		assertString(t, lbs.StatusTag, "pi-no:Drillmax.BOP.CBM.Valve_Status70")
		assertString(t, lbs.PressureTag, "pi-no:Drillmax.BOP.CBM.ScaledValue11")

		ua := findValve(t, rt, "Upper Annular")
		assertString(t, ua.PressureTag, "pi-no:Drillmax.BOP.CBM.ScaledValue8")
	})

	t.Run("Transocean layout", func(t *testing.T) {
		rt, err := Tg.Resolve("TransoceanDPS")
		assertNoError(t, err)

		assertString(t, rt.AccumulatorTag, "pi-no:TransoceanDPS.BOP.Div_Hpu.HPU_MAINACC_ACC_NONRST")
		assertString(t, rt.PodTag, "pi-no:TransoceanDPS.BOP.CBM.ActiveSem_CBM")
		assertString(t, rt.WellPressureTag, "pi-no:TransoceanDPS.BOP.DCP.ScaledValue48")
		assertString(t, rt.EDSTags["Bb"], "pi-no:TransoceanDPS.BOP.SEM_Bb.BbEDSProgress")

		lbs := findValve(t, rt, "Lower Blind Shear")
		assertString(t, lbs.StatusTag, "pi-no:TransoceanDPS.BOP.CBM.Valve_Status14")

		lmrp := findValve(t, rt, "LMRP Connector")
		assertString(t, lmrp.PressureTag, "pi-no:TransoceanDPS.BOP.DCP.ScaledValue16")
		if lmrp.Class != types.ClassConnector {
			t.Errorf("got class %q, want Connector", lmrp.Class)
		}

		mpr := findValve(t, rt, "Middle Pipe Ram")
		assertString(t, mpr.PressureTag, "pi-no:TransoceanDPS.BOP.DCP.ScaledValue18")
	})

	t.Run("Aliases resolve", func(t *testing.T) {
		rt, err := Tg.Resolve("stdmx")
		assertNoError(t, err)
		assertString(t, rt.Rig, Tg.Drillmax)
	})

	t.Run("Unknown rig", func(t *testing.T) {
		_, err := Tg.Resolve("Atlantis")
		if !errors.Is(err, Tg.ErrUnknownRig) {
			t.Errorf("got error %v, want ErrUnknownRig", err)
		}
	})

	t.Run("Stack order is preserved", func(t *testing.T) {
		rt, err := Tg.Resolve("TODTH")
		assertNoError(t, err)

		got := rt.StackOrder()
		if len(got) != len(Tg.StackOrder) {
			t.Fatalf("got %d valves, want %d", len(got), len(Tg.StackOrder))
		}
		for i := range got {
			assertString(t, got[i], Tg.StackOrder[i])
		}
	})
}

func TestTagIDs(t *testing.T) {
	rt, err := Tg.Resolve("Drillmax")
	assertNoError(t, err)

	ids := rt.TagIDs()
	seen := make(map[string]bool)
	for _, id := range ids {
		if seen[id] {
			t.Errorf("duplicate tag %q", id)
		}
		seen[id] = true
	}

	// 11 status, accumulator, pod, 3 distinct regulator pressures, well, 4 EDS
	if len(ids) != 21 {
		t.Errorf("got %d tags, want 21", len(ids))
	}
}

// Helpers //

func findValve(t testing.TB, rt *Tg.RigTags, name string) Tg.Valve {
	t.Helper()
	for _, v := range rt.Valves {
		if v.Name == name {
			return v
		}
	}
	t.Fatalf("valve %q not found", name)
	return Tg.Valve{}
}

func assertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func assertString(t testing.TB, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
