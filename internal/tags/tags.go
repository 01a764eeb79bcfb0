// Package tags resolves a rig name to the historian tags the analysis reads.
package tags

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ntentasd/bopstack-api/pkg/types"
)

var ErrUnknownRig = errors.New("unknown rig")

const (
	Drillmax      = "Drillmax"
	TransoceanDPS = "TransoceanDPS"
	TransoceanDTH = "TransoceanDTH"
	TransoceanDPT = "TransoceanDPT"
)

// AccumulatorScale converts raw accumulator readings (tenths of a gallon)
// to gallons.
const AccumulatorScale = 0.1

var aliases = map[string]string{
	"STDMX": Drillmax,
	"TODPS": TransoceanDPS,
	"TODTH": TransoceanDTH,
	"TODPT": TransoceanDPT,
}

// EDSChannels are the emergency disconnect progress channels, one per
// controller (Blue a/b, Yellow a/b).
var EDSChannels = []string{"Ba", "Bb", "Ya", "Yb"}

// StackOrder lists the valves top to bottom.
var StackOrder = []string{
	"Upper Annular",
	"Lower Annular",
	"LMRP Connector",
	"Upper Blind Shear",
	"Casing Shear Ram",
	"Lower Blind Shear",
	"Upper Pipe Ram",
	"Middle Pipe Ram",
	"Lower Pipe Ram",
	"Test Ram",
	"Wellhead Connector",
}

var valveClasses = map[string]types.ValveClass{
	"Upper Annular":      types.ClassAnnular,
	"Lower Annular":      types.ClassAnnular,
	"Upper Pipe Ram":     types.ClassPipeRam,
	"Middle Pipe Ram":    types.ClassPipeRam,
	"Lower Pipe Ram":     types.ClassPipeRam,
	"Test Ram":           types.ClassPipeRam,
	"Upper Blind Shear":  types.ClassShearRam,
	"Lower Blind Shear":  types.ClassShearRam,
	"Casing Shear Ram":   types.ClassCasingShear,
	"LMRP Connector":     types.ClassConnector,
	"Wellhead Connector": types.ClassConnector,
}

// ValveClasses returns a copy of the static valve to class mapping.
func ValveClasses() map[string]types.ValveClass {
	out := make(map[string]types.ValveClass, len(valveClasses))
	for k, v := range valveClasses {
		out[k] = v
	}
	return out
}

type Valve struct {
	Name          string           `json:"name"`
	Class         types.ValveClass `json:"class"`
	StatusTag     string           `json:"status_tag"`
	PressureTag   string           `json:"pressure_tag"`
	StatusChannel int              `json:"status_channel"`
}

type RigTags struct {
	Rig              string            `json:"rig"`
	Valves           []Valve           `json:"valves"`
	AccumulatorTag   string            `json:"accumulator_tag"`
	AccumulatorScale float64           `json:"accumulator_scale"`
	PodTag           string            `json:"pod_tag"`
	WellPressureTag  string            `json:"well_pressure_tag"`
	EDSTags          map[string]string `json:"eds_tags"`
}

type layout struct {
	statusChannels  map[string]int
	accumulator     string
	pod             string
	pressureBase    string
	pressure        map[string]int
	defaultPressure int
	wellPressure    int
	edsTag          func(rig, ch string) string
}

var standardChannels = map[string]int{
	"Upper Annular":      1,
	"Lower Annular":      5,
	"LMRP Connector":     2,
	"Upper Blind Shear":  6,
	"Casing Shear Ram":   7,
	"Lower Blind Shear":  14,
	"Upper Pipe Ram":     8,
	"Middle Pipe Ram":    9,
	"Lower Pipe Ram":     10,
	"Test Ram":           74,
	"Wellhead Connector": 11,
}

func drillmaxLayout() layout {
	channels := make(map[string]int, len(standardChannels))
	for k, v := range standardChannels {
		channels[k] = v
	}
	channels["Lower Blind Shear"] = 70

	return layout{
		statusChannels: channels,
		accumulator:    "pi-no:%s.BOP.CBM.HPU_MAINACC_ACC_NoReset",
		pod:            "pi-no:%s.BOP.CBM.ActiveSem",
		pressureBase:   "pi-no:%s.BOP.CBM",
		pressure: map[string]int{
			"Upper Annular":      8,
			"Lower Annular":      8,
			"Wellhead Connector": 10,
			"LMRP Connector":     10,
		},
		defaultPressure: 11,
		wellPressure:    12,
		edsTag: func(rig, ch string) string {
			return fmt.Sprintf("pi-no:%s.BOP.CBM.%sEDSProgress", rig, ch)
		},
	}
}

func transoceanLayout() layout {
	return layout{
		statusChannels: standardChannels,
		accumulator:    "pi-no:%s.BOP.Div_Hpu.HPU_MAINACC_ACC_NONRST",
		pod:            "pi-no:%s.BOP.CBM.ActiveSem_CBM",
		pressureBase:   "pi-no:%s.BOP.DCP",
		pressure: map[string]int{
			"Upper Annular":      12,
			"Lower Annular":      14,
			"Wellhead Connector": 20,
			"LMRP Connector":     16,
		},
		defaultPressure: 18,
		wellPressure:    48,
		edsTag: func(rig, ch string) string {
			return fmt.Sprintf("pi-no:%s.BOP.SEM_%s.%sEDSProgress", rig, ch, ch)
		},
	}
}

// Canonical maps an alias or a case-insensitive rig name to its canonical
// name.
func Canonical(rig string) (string, error) {
	if name, ok := aliases[strings.ToUpper(rig)]; ok {
		return name, nil
	}
	for _, name := range Rigs() {
		if strings.EqualFold(name, rig) {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRig, rig)
}

func Rigs() []string {
	return []string{TransoceanDPS, TransoceanDTH, TransoceanDPT, Drillmax}
}

func Aliases() map[string]string {
	out := make(map[string]string, len(aliases))
	for k, v := range aliases {
		out[k] = v
	}
	return out
}

func Resolve(rig string) (*RigTags, error) {
	name, err := Canonical(rig)
	if err != nil {
		return nil, err
	}

	l := transoceanLayout()
	if name == Drillmax {
		l = drillmaxLayout()
	}

	base := fmt.Sprintf(l.pressureBase, name)
	statusPrefix := fmt.Sprintf("pi-no:%s.BOP.CBM.Valve_Status", name)

	rt := &RigTags{
		Rig:              name,
		AccumulatorTag:   fmt.Sprintf(l.accumulator, name),
		AccumulatorScale: AccumulatorScale,
		PodTag:           fmt.Sprintf(l.pod, name),
		WellPressureTag:  fmt.Sprintf("%s.ScaledValue%d", base, l.wellPressure),
		EDSTags:          make(map[string]string, len(EDSChannels)),
	}

	for _, v := range StackOrder {
		n := l.defaultPressure
		if p, ok := l.pressure[v]; ok {
			n = p
		}
		rt.Valves = append(rt.Valves, Valve{
			Name:          v,
			Class:         valveClasses[v],
			StatusTag:     fmt.Sprintf("%s%d", statusPrefix, l.statusChannels[v]),
			PressureTag:   fmt.Sprintf("%s.ScaledValue%d", base, n),
			StatusChannel: l.statusChannels[v],
		})
	}

	for _, ch := range EDSChannels {
		rt.EDSTags[ch] = l.edsTag(name, ch)
	}

	return rt, nil
}

// TagIDs lists every distinct tag of the rig in a stable order.
func (rt *RigTags) TagIDs() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(tag string) {
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}

	for _, v := range rt.Valves {
		add(v.StatusTag)
	}
	add(rt.AccumulatorTag)
	add(rt.PodTag)
	for _, v := range rt.Valves {
		add(v.PressureTag)
	}
	add(rt.WellPressureTag)

	channels := make([]string, 0, len(rt.EDSTags))
	for ch := range rt.EDSTags {
		channels = append(channels, ch)
	}
	sort.Strings(channels)
	for _, ch := range channels {
		add(rt.EDSTags[ch])
	}

	return out
}

func (rt *RigTags) StackOrder() []string {
	out := make([]string, 0, len(rt.Valves))
	for _, v := range rt.Valves {
		out = append(out, v.Name)
	}
	return out
}

func (rt *RigTags) Classes() map[string]types.ValveClass {
	out := make(map[string]types.ValveClass, len(rt.Valves))
	for _, v := range rt.Valves {
		out[v.Name] = v.Class
	}
	return out
}
