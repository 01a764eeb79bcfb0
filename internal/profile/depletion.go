package profile

import (
	"math"

	"github.com/ntentasd/bopstack-api/pkg/types"
)

// ClassifyFlow buckets a volume delta by the class thresholds. Bounds are
// inclusive.
func ClassifyFlow(delta float64, class types.ValveClass, profiles Profiles) types.FlowCategory {
	th := profiles.Lookup(class).Thresholds
	switch {
	case math.IsNaN(delta):
		return types.FlowLow
	case delta <= th.LowMax:
		return types.FlowLow
	case delta <= th.MidMax:
		return types.FlowMid
	default:
		return types.FlowHigh
	}
}

// EstimateDepletion returns the depletion percentage of one stroke. OPEN is
// the open stroke and any other decoded state is the close stroke. Classes
// without weights and the empty state deplete nothing.
func EstimateDepletion(profiles Profiles, class types.ValveClass, state types.State, flow types.FlowCategory) float64 {
	vp, ok := profiles[class]
	if !ok || state == types.StateNone {
		return 0
	}
	w := vp.Weights

	if state == types.StateShear && w.Shear > 0 {
		return w.Shear
	}

	high := flow == types.FlowHigh
	if state == types.StateOpen {
		if high {
			return w.HighOpen
		}
		return w.NormalOpen
	}
	if high {
		return w.HighClose
	}
	return w.NormalClose
}
