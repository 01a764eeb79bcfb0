// Package types
package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entry is a single raw sample of one tag.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

type ValveClass string

const (
	ClassAnnular     ValveClass = "Annular"
	ClassPipeRam     ValveClass = "Pipe Ram"
	ClassShearRam    ValveClass = "Shear Ram"
	ClassCasingShear ValveClass = "Casing Shear"
	ClassConnector   ValveClass = "Connector"
)

var ErrInvalidValveClass = fmt.Errorf("invalid valve class")

var ValveClasses = []ValveClass{
	ClassAnnular,
	ClassPipeRam,
	ClassShearRam,
	ClassCasingShear,
	ClassConnector,
}

// ToValveClass accepts the display name or a snake_case key.
func ToValveClass(class string) (ValveClass, error) {
	switch class {
	case "Annular", "annular":
		return ClassAnnular, nil
	case "Pipe Ram", "pipe_ram":
		return ClassPipeRam, nil
	case "Shear Ram", "shear_ram":
		return ClassShearRam, nil
	case "Casing Shear", "casing_shear":
		return ClassCasingShear, nil
	case "Connector", "connector":
		return ClassConnector, nil
	default:
		return "", ErrInvalidValveClass
	}
}

// State is a decoded valve state. The empty State means the status code
// had no entry in the decode table.
type State string

const (
	StateNone        State = ""
	StateOpen        State = "OPEN"
	StateClose       State = "CLOSE"
	StateVent        State = "VENT"
	StateError       State = "ERROR"
	StateLatch       State = "LATCH"
	StateUnlatch     State = "UNLATCH"
	StateOpenVent    State = "OPEN VENT"
	StateCloseVent   State = "CLOSE VENT"
	StateLatchVent   State = "LATCH VENT"
	StateUnlatchVent State = "UNLATCH VENT"
	StateShear       State = "SHEAR"
)

type Pod string

const (
	PodBlue    Pod = "Blue Pod"
	PodYellow  Pod = "Yellow Pod"
	PodUnknown Pod = "Unknown"
)

// Transition is a decoded state change of one valve.
type Transition struct {
	Valve             string    `json:"valve"`
	Timestamp         time.Time `json:"timestamp"`
	PrevState         State     `json:"prev_state"`
	State             State     `json:"state"`
	PrevFunctionState State     `json:"prev_function_state"`
	FunctionState     State     `json:"function_state"`
	PrevStatusCode    int       `json:"prev_status_code"`
	StatusCode        int       `json:"status_code"`
}

// Event is one valve actuation with the accumulator volume attributed to it.
type Event struct {
	ID                uuid.UUID    `json:"id"`
	Timestamp         time.Time    `json:"timestamp"`
	Valve             string       `json:"valve"`
	ValveClass        ValveClass   `json:"valve_class"`
	PrevState         State        `json:"prev_state"`
	State             State        `json:"state"`
	PrevFunctionState State        `json:"prev_function_state"`
	FunctionState     State        `json:"function_state"`
	StatusCode        int          `json:"status_code"`
	WindowStart       time.Time    `json:"window_start"`
	WindowEnd         time.Time    `json:"window_end"`
	StartTime         time.Time    `json:"start_time"`
	EndTime           time.Time    `json:"end_time"`
	StartGal          Float        `json:"start_gal"`
	EndGal            Float        `json:"end_gal"`
	DeltaGal          Float        `json:"delta_gal"`
	FlowCategory      FlowCategory `json:"flow_category"`
	MaxPressure       Float        `json:"max_pressure"`
	MaxWellPressure   Float        `json:"max_well_pressure"`
	DurationMin       Float        `json:"duration_min"`
	FlowRateGPM       Float        `json:"flow_rate_gpm"`
	InstFlowRateGPM   Float        `json:"inst_flow_rate_gpm"`
	ActivePod         Pod          `json:"active_pod"`
	DepletionPct      Float        `json:"depletion_pct"`
}

// Cycle is a CLOSE→OPEN interval during which the valve held well pressure.
type Cycle struct {
	ID              uuid.UUID `json:"id"`
	Valve           string    `json:"valve"`
	CloseTime       time.Time `json:"close_time"`
	OpenTime        time.Time `json:"open_time"`
	DurationMin     Float     `json:"duration_min"`
	MinWellPressure Float     `json:"min_well_pressure"`
	MaxWellPressure Float     `json:"max_well_pressure"`
	AvgWellPressure Float     `json:"avg_well_pressure"`
}

// AccumulatorSample is an accumulator reading tagged with the active pod.
type AccumulatorSample struct {
	Timestamp       time.Time `json:"timestamp"`
	Gallons         Float     `json:"gallons"`
	ActivePod       Pod       `json:"active_pod"`
	InstFlowRateGPM Float     `json:"inst_flow_rate_gpm"`
}

type StatsRow struct {
	Valve                string `json:"valve"`
	State                State  `json:"state"`
	ActivePod            Pod    `json:"active_pod"`
	Count                int    `json:"count"`
	AvgDeltaGal          Float  `json:"avg_delta_gal"`
	MinDeltaGal          Float  `json:"min_delta_gal"`
	MaxDeltaGal          Float  `json:"max_delta_gal"`
	TotalVolumeGal       Float  `json:"total_volume_gal"`
	AvgPressure          Float  `json:"avg_pressure"`
	MinPressure          Float  `json:"min_pressure"`
	MaxPressure          Float  `json:"max_pressure"`
	AvgWellPressure      Float  `json:"avg_well_pressure"`
	MinWellPressure      Float  `json:"min_well_pressure"`
	MaxWellPressure      Float  `json:"max_well_pressure"`
	AvgFlowGPM           Float  `json:"avg_flow_gpm"`
	TotalDepletionPct    Float  `json:"total_depletion_pct"`
	MostRecentStatusCode int    `json:"most_recent_status_code"`
}

type PodUsage struct {
	Pod      Pod   `json:"pod"`
	TimeMin  Float `json:"time_min"`
	FlowGal  Float `json:"flow_gal"`
	EventCnt int   `json:"event_count"`
}

type ValveCycleSummary struct {
	Valve            string `json:"valve"`
	WetCycles        int    `json:"wet_cycles"`
	DryCycles        int    `json:"dry_cycles"`
	MinutesAboveRare Float  `json:"minutes_above_rare"`
}

type CycleSummary struct {
	WetThreshold  float64             `json:"wet_threshold"`
	RareThreshold float64             `json:"rare_threshold"`
	Valves        []ValveCycleSummary `json:"valves"`
	RareCycles    []Cycle             `json:"rare_cycles"`
	TopStress     []Cycle             `json:"top_stress"`
}

type EDSTrigger struct {
	Number         int       `json:"number"`
	Channel        string    `json:"channel"`
	CommandTime    time.Time `json:"command_time"`
	PodAtCommand   Pod       `json:"pod_at_command"`
	CommandValue   float64   `json:"command_value"`
	WindowEnd      time.Time `json:"window_end"`
	TotalVolumeGal Float     `json:"total_volume_gal"`
}

type EDSValveEvent struct {
	CommandTime         time.Time `json:"command_time"`
	Valve               string    `json:"valve"`
	ValveEvent          string    `json:"valve_event"`
	EventTime           time.Time `json:"event_time"`
	SecondsAfterCommand int       `json:"seconds_after_command"`
	StatusCode          int       `json:"status_code"`
}

type EDSLog struct {
	Triggers    []EDSTrigger    `json:"triggers"`
	ValveEvents []EDSValveEvent `json:"valve_events"`
}

// FetchFailure records a tag whose fetch exhausted its retries.
type FetchFailure struct {
	Tag   string `json:"tag"`
	Error string `json:"error"`
}

// Report is the full result of one batch analysis.
type Report struct {
	Rig           string              `json:"rig"`
	Start         time.Time           `json:"start"`
	End           time.Time           `json:"end"`
	Events        []Event             `json:"events"`
	Cycles        []Cycle             `json:"cycles"`
	Accumulator   []AccumulatorSample `json:"accumulator"`
	Stats         []StatsRow          `json:"stats"`
	Pods          []PodUsage          `json:"pods"`
	CycleSummary  CycleSummary        `json:"cycle_summary"`
	EDS           EDSLog              `json:"eds"`
	FetchFailures []FetchFailure      `json:"fetch_failures,omitempty"`
}
