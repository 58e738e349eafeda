package optimizer

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParamKind discriminates the value types a parameter dimension can hold.
type ParamKind int

const (
	KindFloat ParamKind = iota
	KindInt
	KindBool
	KindString
	KindFloats // fixed-length numeric list, aggregated elementwise
)

// ParamValue is one scalar or list value of a trial parameter.
type ParamValue struct {
	Kind   ParamKind
	Float  float64
	Int    int
	Bool   bool
	Str    string
	Floats []float64
}

// FloatValue wraps a float parameter value.
func FloatValue(v float64) ParamValue { return ParamValue{Kind: KindFloat, Float: v} }

// IntValue wraps an integer parameter value.
func IntValue(v int) ParamValue { return ParamValue{Kind: KindInt, Int: v} }

// BoolValue wraps a boolean parameter value.
func BoolValue(v bool) ParamValue { return ParamValue{Kind: KindBool, Bool: v} }

// StringValue wraps a categorical string parameter value.
func StringValue(v string) ParamValue { return ParamValue{Kind: KindString, Str: v} }

// FloatsValue wraps a numeric list parameter value.
func FloatsValue(v []float64) ParamValue {
	c := make([]float64, len(v))
	copy(c, v)
	return ParamValue{Kind: KindFloats, Floats: c}
}

// Numeric reports whether the value participates in elementwise averaging
// and feature standardization, returning its float form when scalar.
func (v ParamValue) Numeric() (float64, bool) {
	switch v.Kind {
	case KindFloat:
		return v.Float, true
	case KindInt:
		return float64(v.Int), true
	default:
		return 0, false
	}
}

// String renders the value for tables, CSV cells and dedup keys.
func (v ParamValue) String() string {
	switch v.Kind {
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindInt:
		return strconv.Itoa(v.Int)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindString:
		return v.Str
	case KindFloats:
		parts := make([]string, len(v.Floats))
		for i, f := range v.Floats {
			parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		return "[" + strings.Join(parts, " ") + "]"
	}
	return ""
}

// Equal compares two values for exact equality, the relation duplicate
// pruning is defined over.
func (v ParamValue) Equal(o ParamValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindFloats:
		if len(v.Floats) != len(o.Floats) {
			return false
		}
		for i := range v.Floats {
			if v.Floats[i] != o.Floats[i] {
				return false
			}
		}
		return true
	default:
		return v.Float == o.Float && v.Int == o.Int && v.Bool == o.Bool && v.Str == o.Str
	}
}

// Dimension is one parameter of the search space: either a fixed value
// passed through unchanged, or a finite set of admissible choices.
type Dimension struct {
	Name    string
	Fixed   *ParamValue
	Choices []ParamValue
}

// ParamSpace is an ordered parameter space definition. Every searched
// dimension is treated as categorical.
type ParamSpace struct {
	dims []Dimension
}

// NewParamSpace returns an empty parameter space.
func NewParamSpace() *ParamSpace { return &ParamSpace{} }

// Fixed adds a dimension held at one value for every trial.
func (s *ParamSpace) Fixed(name string, value ParamValue) *ParamSpace {
	v := value
	s.dims = append(s.dims, Dimension{Name: name, Fixed: &v})
	return s
}

// Choice adds a searched dimension with the given admissible values.
func (s *ParamSpace) Choice(name string, values ...ParamValue) *ParamSpace {
	s.dims = append(s.dims, Dimension{Name: name, Choices: values})
	return s
}

// Dimensions returns the dimensions in declaration order.
func (s *ParamSpace) Dimensions() []Dimension { return s.dims }

// SearchDimensions returns only the dimensions with more than a fixed
// value to explore.
func (s *ParamSpace) SearchDimensions() []Dimension {
	var out []Dimension
	for _, d := range s.dims {
		if d.Fixed == nil {
			out = append(out, d)
		}
	}
	return out
}

// FixedDimensions returns the dimensions held at a single value.
func (s *ParamSpace) FixedDimensions() []Dimension {
	var out []Dimension
	for _, d := range s.dims {
		if d.Fixed != nil {
			out = append(out, d)
		}
	}
	return out
}

// Params is a concrete parameter assignment.
type Params map[string]ParamValue

// Key returns a canonical representation of the assignment, stable across
// map iteration order, used for exact-equality duplicate detection.
func (p Params) Key() string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		v := p[name]
		fmt.Fprintf(&b, "%s=%d:%s;", name, v.Kind, v.String())
	}
	return b.String()
}

// Clone returns an independent copy of the assignment.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Trial is one scored parameter assignment. Fold is set only on the single
// best validated trial of a fold.
type Trial struct {
	Params Params
	Score  float64
	Fold   *int
}

// Key returns the trial's canonical parameter key.
func (t *Trial) Key() string { return t.Params.Key() }

// Attributed reports whether the trial carries a fold attribution.
func (t *Trial) Attributed() bool { return t.Fold != nil }
