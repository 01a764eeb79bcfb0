package profile

import (
	"math"

	"github.com/ntentasd/bopstack-api/pkg/types"
)

// DecodeTable maps a raw status code to a valve state.
type DecodeTable map[int]types.State

func Decode(code int, table DecodeTable) (types.State, bool) {
	state, ok := table[code]
	return state, ok
}

// DecodeValue decodes a raw sample value. Anything that is not an exact
// integer has no state.
func DecodeValue(v float64, table DecodeTable) (types.State, bool) {
	code, ok := StatusCode(v)
	if !ok {
		return types.StateNone, false
	}
	return Decode(code, table)
}

func StatusCode(v float64) (int, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, false
	}
	if v > math.MaxInt32 || v < math.MinInt32 {
		return 0, false
	}
	return int(v), true
}

func RamDecode() DecodeTable {
	return DecodeTable{
		256:  types.StateVent,
		513:  types.StateOpen,
		514:  types.StateClose,
		515:  types.StateOpen,
		516:  types.StateClose,
		1025: types.StateOpen,
		1026: types.StateClose,
		1027: types.StateOpen,
		1028: types.StateClose,
		4096: types.StateError,
	}
}

func RamFunction() DecodeTable {
	t := RamDecode()
	t[515] = types.StateOpenVent
	t[516] = types.StateCloseVent
	t[1027] = types.StateOpenVent
	t[1028] = types.StateCloseVent
	return t
}

func ConnectorDecode() DecodeTable {
	return DecodeTable{
		256:  types.StateVent,
		513:  types.StateLatch,
		514:  types.StateUnlatch,
		515:  types.StateLatch,
		516:  types.StateUnlatch,
		1025: types.StateLatch,
		1026: types.StateUnlatch,
		1027: types.StateLatch,
		1028: types.StateUnlatch,
		4096: types.StateError,
	}
}

func ConnectorFunction() DecodeTable {
	t := ConnectorDecode()
	t[515] = types.StateLatchVent
	t[516] = types.StateUnlatchVent
	t[1027] = types.StateLatchVent
	t[1028] = types.StateUnlatchVent
	return t
}
