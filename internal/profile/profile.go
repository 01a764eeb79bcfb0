// Package profile holds the per valve class configuration: window lengths,
// flow thresholds, depletion weights and status code decode tables.
package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ntentasd/bopstack-api/pkg/types"
)

// FallbackClass backs any lookup for a class missing from Profiles.
const FallbackClass = types.ClassPipeRam

type Thresholds struct {
	LowMax float64 `json:"low_max"`
	MidMax float64 `json:"mid_max"`
}

// Weights are depletion percentages per stroke. A zero Shear means the
// class cannot shear.
type Weights struct {
	NormalOpen  float64 `json:"normal_open"`
	NormalClose float64 `json:"normal_close"`
	HighOpen    float64 `json:"high_open"`
	HighClose   float64 `json:"high_close"`
	Shear       float64 `json:"shear,omitempty"`
}

type ValveClassProfile struct {
	WindowSec  float64     `json:"window_sec"`
	Thresholds Thresholds  `json:"thresholds"`
	Weights    Weights     `json:"weights"`
	Decode     DecodeTable `json:"decode"`
	Function   DecodeTable `json:"function"`
}

type Profiles map[types.ValveClass]ValveClassProfile

func Default() Profiles {
	return Profiles{
		types.ClassAnnular: {
			WindowSec:  30,
			Thresholds: Thresholds{LowMax: 3, MidMax: 7},
			Weights:    Weights{NormalOpen: 0.1, NormalClose: 0.5, HighOpen: 0.75, HighClose: 0.75},
			Decode:     RamDecode(),
			Function:   RamFunction(),
		},
		types.ClassPipeRam: {
			WindowSec:  60,
			Thresholds: Thresholds{LowMax: 5, MidMax: 10},
			Weights:    Weights{NormalOpen: 0.08, NormalClose: 0.45, HighOpen: 1.25, HighClose: 1.25},
			Decode:     RamDecode(),
			Function:   RamFunction(),
		},
		types.ClassShearRam: {
			WindowSec:  90,
			Thresholds: Thresholds{LowMax: 6, MidMax: 15},
			Weights:    Weights{NormalOpen: 0.05, NormalClose: 0.05, HighOpen: 0.25, HighClose: 0.25, Shear: 100},
			Decode:     RamDecode(),
			Function:   RamFunction(),
		},
		types.ClassCasingShear: {
			WindowSec:  120,
			Thresholds: Thresholds{LowMax: 8, MidMax: 18},
			Weights:    Weights{NormalOpen: 0.05, NormalClose: 0.05, HighOpen: 0.25, HighClose: 0.25, Shear: 100},
			Decode:     RamDecode(),
			Function:   RamFunction(),
		},
		types.ClassConnector: {
			WindowSec:  120,
			Thresholds: Thresholds{LowMax: 2, MidMax: 5},
			Weights:    Weights{NormalOpen: 1.25, NormalClose: 1.25, HighOpen: 3.5, HighClose: 3.5},
			Decode:     ConnectorDecode(),
			Function:   ConnectorFunction(),
		},
	}
}

// Lookup returns the profile of class, falling back to the Pipe Ram profile
// of p and then of Default.
func (p Profiles) Lookup(class types.ValveClass) ValveClassProfile {
	if vp, ok := p[class]; ok {
		return vp
	}
	if vp, ok := p[FallbackClass]; ok {
		return vp
	}
	return Default()[FallbackClass]
}

func (p Profiles) Window(class types.ValveClass) time.Duration {
	return time.Duration(p.Lookup(class).WindowSec * float64(time.Second))
}

// WithWindow returns a copy of p with the window of class replaced.
func (p Profiles) WithWindow(class types.ValveClass, seconds float64) Profiles {
	out := make(Profiles, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	vp := out.Lookup(class)
	vp.WindowSec = seconds
	out[class] = vp
	return out
}

var ErrInvalidProfile = errors.New("invalid valve class profile")

func (p Profiles) Validate() error {
	for class, vp := range p {
		if _, err := types.ToValveClass(string(class)); err != nil {
			return fmt.Errorf("profile %q: %w", class, err)
		}
		if vp.WindowSec <= 0 {
			return fmt.Errorf("%w: %q window must be positive", ErrInvalidProfile, class)
		}
		if vp.Thresholds.LowMax > vp.Thresholds.MidMax {
			return fmt.Errorf("%w: %q low_max above mid_max", ErrInvalidProfile, class)
		}
	}
	return nil
}

// LoadFile overlays the JSON profiles in path on top of Default, field by
// field. Classes and fields left out of the file keep their defaults.
func LoadFile(path string) (Profiles, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}

	var overrides map[string]json.RawMessage
	if err := json.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}

	profiles := Default()
	for key, msg := range overrides {
		class, err := types.ToValveClass(key)
		if err != nil {
			return nil, fmt.Errorf("profile %q: %w", key, err)
		}
		vp := profiles.Lookup(class)
		vp.Decode, vp.Function = nil, nil
		if err := json.Unmarshal(msg, &vp); err != nil {
			return nil, fmt.Errorf("decode profile %s: %w", class, err)
		}
		base := profiles.Lookup(class)
		if vp.Decode == nil {
			vp.Decode = base.Decode
		}
		if vp.Function == nil {
			vp.Function = base.Function
		}
		profiles[class] = vp
	}

	if err := profiles.Validate(); err != nil {
		return nil, err
	}
	return profiles, nil
}
