package types

import "fmt"

// FlowCategory is ordered: FlowLow < FlowMid < FlowHigh.
type FlowCategory int

const (
	FlowLow FlowCategory = iota
	FlowMid
	FlowHigh
)

var ErrInvalidFlowCategory = fmt.Errorf("invalid flow category")

func (f FlowCategory) String() string {
	switch f {
	case FlowLow:
		return "Low"
	case FlowMid:
		return "Mid"
	case FlowHigh:
		return "High"
	default:
		return "Unknown"
	}
}

func ToFlowCategory(category string) (FlowCategory, error) {
	switch category {
	case "Low":
		return FlowLow, nil
	case "Mid":
		return FlowMid, nil
	case "High":
		return FlowHigh, nil
	default:
		return -1, ErrInvalidFlowCategory
	}
}

func (f FlowCategory) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *FlowCategory) UnmarshalText(b []byte) error {
	c, err := ToFlowCategory(string(b))
	if err != nil {
		return err
	}
	*f = c
	return nil
}
