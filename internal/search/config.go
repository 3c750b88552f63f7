package search

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ValueKind discriminates the variants of a Value.
type ValueKind int

const (
	// KindUnset marks a parameter that belongs to an inactive branch.
	KindUnset ValueKind = iota
	// KindNumber is a decoded range value.
	KindNumber
	// KindLabel is a selected choice branch.
	KindLabel
)

// Value is a tagged parameter value. The zero Value is unset; there is no
// nil sentinel anywhere in the contract.
type Value struct {
	kind  ValueKind
	num   float64
	label string
}

// Number returns a numeric value.
func Number(v float64) Value { return Value{kind: KindNumber, num: v} }

// Label returns a categorical value.
func Label(s string) Value { return Value{kind: KindLabel, label: s} }

// Unset returns the explicit "not active in this configuration" marker.
func Unset() Value { return Value{} }

// Kind reports the variant of the value.
func (v Value) Kind() ValueKind { return v.kind }

// IsUnset reports whether the parameter is inactive.
func (v Value) IsUnset() bool { return v.kind == KindUnset }

// Float returns the numeric value and whether the value is numeric.
func (v Value) Float() (float64, bool) { return v.num, v.kind == KindNumber }

// Str returns the label and whether the value is categorical.
func (v Value) Str() (string, bool) { return v.label, v.kind == KindLabel }

func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return fmt.Sprintf("%g", v.num)
	case KindLabel:
		return v.label
	default:
		return "unset"
	}
}

// MarshalJSON emits the tagged form, keeping unset distinct from null:
// {"kind":"number","value":1.5}, {"kind":"label","value":"rbf"} or
// {"kind":"unset"}.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(struct {
			Kind  string  `json:"kind"`
			Value float64 `json:"value"`
		}{"number", v.num})
	case KindLabel:
		return json.Marshal(struct {
			Kind  string `json:"kind"`
			Value string `json:"value"`
		}{"label", v.label})
	default:
		return json.Marshal(struct {
			Kind string `json:"kind"`
		}{"unset"})
	}
}

// UnmarshalJSON accepts the tagged form produced by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var tagged struct {
		Kind  string          `json:"kind"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	switch tagged.Kind {
	case "number":
		var f float64
		if err := json.Unmarshal(tagged.Value, &f); err != nil {
			return err
		}
		*v = Number(f)
	case "label":
		var s string
		if err := json.Unmarshal(tagged.Value, &s); err != nil {
			return err
		}
		*v = Label(s)
	case "unset":
		*v = Unset()
	default:
		return fmt.Errorf("unknown value kind %q", tagged.Kind)
	}
	return nil
}

// Configuration is one fully specified point in the search space: a flat
// mapping over the union of parameter names across all branches, with
// parameters of inactive branches carrying the unset marker. This keeps the
// objective function's signature stable across branches.
type Configuration map[string]Value

// Clone returns an independent copy.
func (c Configuration) Clone() Configuration {
	out := make(Configuration, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

func (c Configuration) String() string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%s", k, c[k])
	}
	b.WriteByte('}')
	return b.String()
}
