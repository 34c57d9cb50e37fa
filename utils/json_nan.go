package utils

import (
	"encoding/json"
	"math"
	"strconv"
)

// NullFloat encodes NaN and infinities as JSON null.
type NullFloat float64

func (f NullFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(v, 'g', -1, 64)), nil
}

func (f *NullFloat) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = NullFloat(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = NullFloat(v)
	return nil
}

// NullFloats converts a series for JSON encoding.
func NullFloats(values []float64) []NullFloat {
	out := make([]NullFloat, len(values))
	for i, v := range values {
		out[i] = NullFloat(v)
	}
	return out
}
