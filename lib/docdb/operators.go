package docdb

import (
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Operator is a comparison operator of a filter condition
type Operator string

const (
	OpEq  Operator = "$eq"
	OpNe  Operator = "$ne"
	OpGt  Operator = "$gt"
	OpGte Operator = "$gte"
	OpLt  Operator = "$lt"
	OpLte Operator = "$lte"
	OpIn  Operator = "$in"
	OpNin Operator = "$nin"
)

// modStrict switches $in and $nin of a field to strict equality in the JSON filter form
const modStrict = "$strict"

// predicateFunc decides a single condition.
// field is the document's value, present reports whether the document has the field at all.
type predicateFunc func(field any, present bool, value any, strict bool) bool

// operators is read-only after package initialization
var operators = map[Operator]predicateFunc{
	OpEq: func(field any, present bool, value any, _ bool) bool {
		return present && equal(field, value)
	},
	OpNe: func(field any, present bool, value any, _ bool) bool {
		return !present || !equal(field, value)
	},
	OpGt: func(field any, present bool, value any, _ bool) bool {
		c, ok := compareOrdered(field, value)
		return present && ok && c > 0
	},
	OpGte: func(field any, present bool, value any, _ bool) bool {
		c, ok := compareOrdered(field, value)
		return present && ok && c >= 0
	},
	OpLt: func(field any, present bool, value any, _ bool) bool {
		c, ok := compareOrdered(field, value)
		return present && ok && c < 0
	},
	OpLte: func(field any, present bool, value any, _ bool) bool {
		c, ok := compareOrdered(field, value)
		return present && ok && c <= 0
	},
	OpIn: func(field any, present bool, value any, strict bool) bool {
		return present && member(field, value, strict)
	},
	OpNin: func(field any, present bool, value any, strict bool) bool {
		return !present || !member(field, value, strict)
	},
}

// SupportedOperator reports whether op is a known operator
func SupportedOperator(op Operator) bool {
	_, ok := operators[op]
	return ok
}

// --------------------------------------------------------------------------
// Comparison helpers
// --------------------------------------------------------------------------

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// equal compares numbers numerically and everything else structurally
func equal(a, b any) bool {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA || okB {
		return okA && okB && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

// compareOrdered compares two numbers or two strings.
// The bool is false for every other combination, ordering operators then do not match.
func compareOrdered(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA && okB {
		return strings.Compare(sa, sb), true
	}
	return 0, false
}

// member reports whether the field value (any element, if it holds a list) matches one of the candidates.
// Loose matching tests whether the element's string form contains the candidate's string form.
func member(field, value any, strict bool) bool {
	elems, ok := field.([]any)
	if !ok {
		elems = []any{field}
	}
	candidates, ok := value.([]any)
	if !ok {
		candidates = []any{value}
	}

	for _, e := range elems {
		for _, c := range candidates {
			if strict {
				if equal(e, c) {
					return true
				}
			} else if strings.Contains(looseString(e), looseString(c)) {
				return true
			}
		}
	}
	return false
}

// looseString renders a value the way JavaScript's String() does
func looseString(v any) string {
	if f, ok := toFloat(v); ok {
		return numberString(f)
	}
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			if e != nil {
				parts[i] = looseString(e)
			}
		}
		return strings.Join(parts, ",")
	case map[string]any:
		return "[object Object]"
	}
	return ""
}

// numberString formats f like JavaScript: plain decimals for 1e-6 <= |f| < 1e21,
// exponent form without zero padding ("1e+21", "1.5e-7") outside that range.
func numberString(f float64) string {
	switch {
	case f == 0:
		return "0"
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	if abs := math.Abs(f); abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "e")
	sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
	return mantissa + "e" + sign + digits
}

// --------------------------------------------------------------------------
// Sorting
// --------------------------------------------------------------------------

// sortRank orders values of different kinds: missing < null < bool < number < string < other
func sortRank(v any, present bool) int {
	if !present {
		return 0
	}
	if _, ok := toFloat(v); ok {
		return 3
	}
	switch v.(type) {
	case nil:
		return 1
	case bool:
		return 2
	case string:
		return 4
	}
	return 5
}

// compareForSort is a total preorder over field values, used for stable sorting
func compareForSort(a any, aPresent bool, b any, bPresent bool) int {
	ra, rb := sortRank(a, aPresent), sortRank(b, bPresent)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch ra {
	case 2:
		ba, bb := a.(bool), b.(bool)
		if ba == bb {
			return 0
		}
		if !ba {
			return -1
		}
		return 1
	case 3, 4:
		c, _ := compareOrdered(a, b)
		return c
	}
	return 0
}
