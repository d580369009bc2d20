// Package series holds the optional numeric type shared by the profile stages.
package series

import (
	"encoding/json"
	"math"

	"gopkg.in/yaml.v3"
)

// Value is a float that may be undefined.
// A defined Value never holds NaN or ±Inf.
type Value struct {
	V     float64
	Valid bool
}

// Undefined is the zero Value.
var Undefined = Value{}

// Of returns a defined Value for finite f and Undefined otherwise.
func Of(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Undefined
	}
	return Value{V: f, Valid: true}
}

// Or returns the value, or fallback when undefined.
func (v Value) Or(fallback float64) float64 {
	if !v.Valid {
		return fallback
	}
	return v.V
}

// MarshalJSON encodes undefined values as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.V)
}

// UnmarshalJSON decodes null as undefined.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Undefined
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Of(f)
	return nil
}

// MarshalYAML encodes undefined values as null.
func (v Value) MarshalYAML() (interface{}, error) {
	if !v.Valid {
		return nil, nil
	}
	return v.V, nil
}

// UnmarshalYAML decodes a scalar or null.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!null" || node.Value == "" || node.Value == "~" || node.Value == "null" {
		*v = Undefined
		return nil
	}
	var f float64
	if err := node.Decode(&f); err != nil {
		return err
	}
	*v = Of(f)
	return nil
}

// Series is an index-aligned sequence of optional values.
type Series []Value

// FromFloats wraps fs, treating non-finite numbers as undefined.
func FromFloats(fs []float64) Series {
	s := make(Series, len(fs))
	for i, f := range fs {
		s[i] = Of(f)
	}
	return s
}

// Defined returns the defined entries in order.
func (s Series) Defined() []float64 {
	out := make([]float64, 0, len(s))
	for _, v := range s {
		if v.Valid {
			out = append(out, v.V)
		}
	}
	return out
}

// CountDefined returns the number of defined entries.
func (s Series) CountDefined() int {
	n := 0
	for _, v := range s {
		if v.Valid {
			n++
		}
	}
	return n
}

// Floats returns the series with undefined entries replaced by fallback.
func (s Series) Floats(fallback float64) []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		out[i] = v.Or(fallback)
	}
	return out
}

// First returns the first defined entry and its index, or -1.
func (s Series) First() (Value, int) {
	for i, v := range s {
		if v.Valid {
			return v, i
		}
	}
	return Undefined, -1
}

// Last returns the last defined entry and its index, or -1.
func (s Series) Last() (Value, int) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i].Valid {
			return s[i], i
		}
	}
	return Undefined, -1
}
