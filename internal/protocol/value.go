// Package protocol models acquisition parameters and reference protocols
// for MRI compliance checking.
package protocol

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the type of a parameter value.
type Kind int

const (
	// KindUnspecified marks a parameter that was absent or unreadable.
	KindUnspecified Kind = iota
	KindNumber
	KindString
	KindBool
	KindList
)

// Value is a single acquisition parameter value. Exactly one of the payload
// fields is meaningful, selected by Kind. Fields are exported so datasets
// containing values can be gob-encoded for the scan cache.
type Value struct {
	Kind Kind
	Num  float64
	Str  string
	Bool bool
	List []string
}

// Unspecified returns the zero value for a missing parameter.
func Unspecified() Value {
	return Value{Kind: KindUnspecified}
}

// Number wraps a numeric parameter value.
func Number(f float64) Value {
	return Value{Kind: KindNumber, Num: f}
}

// String wraps a textual parameter value.
func String(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// Boolean wraps a boolean parameter value.
func Boolean(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

// List wraps a multi-valued parameter (e.g. ImageType, ShimSetting).
func List(items []string) Value {
	return Value{Kind: KindList, List: items}
}

// FromAny converts a decoded JSON/YAML scalar into a Value. Numeric strings
// stay strings: sidecar files are expected to carry numbers as numbers.
func FromAny(v any) Value {
	switch x := v.(type) {
	case nil:
		return Unspecified()
	case float64:
		return Number(x)
	case float32:
		return Number(float64(x))
	case int:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case bool:
		return Boolean(x)
	case string:
		return String(x)
	case []any:
		items := make([]string, 0, len(x))
		for _, item := range x {
			items = append(items, FromAny(item).Key(defaultKeyDecimals))
		}
		return List(items)
	case []string:
		return List(x)
	default:
		return String(fmt.Sprint(x))
	}
}

// defaultKeyDecimals is the rounding applied when a value is used as a map
// key without an explicit precision.
const defaultKeyDecimals = 3

// IsSpecified reports whether the value carries actual data.
func (v Value) IsSpecified() bool {
	return v.Kind != KindUnspecified
}

// Key returns a canonical string for grouping and counting values.
// Numbers are rounded to the given number of decimals first so that
// 2.2999999 and 2.3 count as the same observation.
func (v Value) Key(decimals int) string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(roundTo(v.Num, decimals), 'g', -1, 64)
	case KindString:
		return v.Str
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindList:
		items := append([]string(nil), v.List...)
		sort.Strings(items)
		return strings.Join(items, "|")
	default:
		return "Unspecified"
	}
}

// String renders the value for reports and logs.
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case KindString:
		return v.Str
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindList:
		return strings.Join(v.List, ", ")
	default:
		return "Unspecified"
	}
}

// Equal compares two values. Numbers are rounded to decimals and then
// compared with relative tolerance rtol. Lists compare order-insensitively.
// Two unspecified values are equal; a specified value never matches an
// unspecified one.
func (v Value) Equal(other Value, rtol float64, decimals int) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNumber:
		a := roundTo(v.Num, decimals)
		b := roundTo(other.Num, decimals)
		return closeEnough(a, b, rtol)
	case KindString:
		return strings.EqualFold(strings.TrimSpace(v.Str), strings.TrimSpace(other.Str))
	case KindBool:
		return v.Bool == other.Bool
	case KindList:
		return v.Key(decimals) == other.Key(decimals)
	default:
		return true
	}
}

// roundTo rounds x to the given number of decimal places. Negative decimals
// round to the left of the decimal point, matching the CLI contract.
func roundTo(x float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(x*pow) / pow
}

// closeEnough reports whether a and b agree within relative tolerance rtol.
func closeEnough(a, b, rtol float64) bool {
	if a == b {
		return true
	}
	diff := math.Abs(a - b)
	scale := math.Max(math.Abs(a), math.Abs(b))
	return diff <= rtol*scale
}
