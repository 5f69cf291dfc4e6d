package types

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/kivadb/kivadb/pkg"
	"github.com/pkg/errors"
)

// Record maps field names to dynamically typed values.
// Values are one of: nil, bool, int, float64, string, []any, map[string]any.
type Record = pkg.Map[string, any]

func CopyRecord(r Record) Record {
	c := make(Record, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
	KindUnknown
)

var kind_names = map[Kind]string{
	KindNull:   "null",
	KindBool:   "bool",
	KindInt:    "int",
	KindFloat:  "float",
	KindString: "string",
	KindList:   "list",
	KindMap:    "map",
}

func (k Kind) String() string {
	if name, ok := kind_names[k]; ok {
		return name
	}
	return "unknown"
}

func ParseKind(name string) (Kind, error) {
	for kind, kind_name := range kind_names {
		if kind_name == strings.ToLower(name) {
			return kind, nil
		}
	}
	return KindUnknown, errors.Errorf("unknown value kind %q", name)
}

func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return KindInt
	case float32, float64:
		return KindFloat
	case string:
		return KindString
	case []any:
		return KindList
	case map[string]any, Record:
		return KindMap
	}
	return KindUnknown
}

// AsFloat widens any numeric value to float64.
func AsFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

// AsInt narrows integer-kinded values and integral floats to int.
func AsInt(v any) (int, bool) {
	if KindOf(v) == KindInt {
		f, _ := AsFloat(v)
		return int(f), true
	}
	if f, ok := AsFloat(v); ok && f == float64(int(f)) {
		return int(f), true
	}
	return 0, false
}

// CanonicalKey normalizes numeric values so that e.g. int(1) and the
// float64(1) produced by json decoding land on the same map key.
func CanonicalKey(v any) any {
	if i, ok := AsInt(v); ok {
		return i
	}
	if f, ok := AsFloat(v); ok {
		return f
	}
	return v
}

// Compare orders two values of compatible dynamic types. The second return
// is false when the pair has no defined ordering; predicates treat that as
// a non-match rather than an error.
func Compare(a, b any) (int, bool) {
	if af, a_num := AsFloat(a); a_num {
		bf, b_num := AsFloat(b)
		if !b_num {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	switch a := a.(type) {
	case string:
		if b, ok := b.(string); ok {
			return strings.Compare(a, b), true
		}
	case bool:
		if b, ok := b.(bool); ok {
			switch {
			case a == b:
				return 0, true
			case b:
				return -1, true
			}
			return 1, true
		}
	}
	return 0, false
}

// Equal reports dynamic equality: numbers compare across int/float, lists
// and maps compare deeply, mismatched kinds are simply unequal.
func Equal(a, b any) bool {
	if af, ok := AsFloat(a); ok {
		bf, b_num := AsFloat(b)
		return b_num && af == bf
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch a.(type) {
	case string, bool:
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// TotalLess is a deterministic total order over arbitrary values: comparable
// pairs order naturally, everything else falls back to kind rank and then a
// printed form. Used for primary-key ordering and as the sort tie-breaker
// for mixed-type fields.
func TotalLess(a, b any) bool {
	if c, ok := Compare(a, b); ok {
		return c < 0
	}
	ka, kb := KindOf(a), KindOf(b)
	if ka != kb {
		return ka < kb
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

// Hashable reports whether a value may be used as a hash-index key.
func Hashable(v any) bool {
	switch KindOf(v) {
	case KindNull, KindBool, KindInt, KindFloat, KindString:
		return true
	}
	return false
}

// Orderable reports whether a value participates in the natural ordering
// used by ordered indexes.
func Orderable(v any) bool {
	switch KindOf(v) {
	case KindBool, KindInt, KindFloat, KindString:
		return true
	}
	return false
}

// Coerce converts a value to the representation expected for kind, when the
// conversion is lossless. Needed on decode paths where json has already
// collapsed all numbers to float64.
func Coerce(kind Kind, v any) (any, bool) {
	switch kind {
	case KindNull:
		return nil, v == nil
	case KindBool:
		b, ok := v.(bool)
		return b, ok
	case KindInt:
		i, ok := AsInt(v)
		return i, ok
	case KindFloat:
		f, ok := AsFloat(v)
		return f, ok
	case KindString:
		s, ok := v.(string)
		return s, ok
	case KindList:
		l, ok := v.([]any)
		return l, ok
	case KindMap:
		switch m := v.(type) {
		case map[string]any:
			return m, true
		case Record:
			return map[string]any(m), true
		}
	}
	return nil, false
}
