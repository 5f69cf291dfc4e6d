package query

import (
	"strings"

	"github.com/kivadb/kivadb/internal/types"
)

// FieldRef names a record field and builds comparison conditions against it.
// Obtain one with F or Table.Field.
type FieldRef struct {
	Name string
}

func F(name string) FieldRef { return FieldRef{Name: name} }

func (f FieldRef) compare(op Op, value any, eval func(types.Record) bool) *Condition {
	return &Condition{eval: eval, field: f.Name, op: op, value: value}
}

func (f FieldRef) Eq(value any) *Condition {
	return f.compare(OpEq, value, func(r types.Record) bool {
		return types.Equal(r.Get(f.Name), value)
	})
}

func (f FieldRef) Ne(value any) *Condition {
	return f.compare(OpNe, value, func(r types.Record) bool {
		return !types.Equal(r.Get(f.Name), value)
	})
}

// Ordering comparisons evaluate to false when the field is missing or the
// pair of values has no defined order. They never panic.

func (f FieldRef) Lt(value any) *Condition {
	return f.compare(OpLt, value, func(r types.Record) bool {
		c, ok := types.Compare(r.Get(f.Name), value)
		return ok && c < 0
	})
}

func (f FieldRef) Le(value any) *Condition {
	return f.compare(OpLe, value, func(r types.Record) bool {
		c, ok := types.Compare(r.Get(f.Name), value)
		return ok && c <= 0
	})
}

func (f FieldRef) Gt(value any) *Condition {
	return f.compare(OpGt, value, func(r types.Record) bool {
		c, ok := types.Compare(r.Get(f.Name), value)
		return ok && c > 0
	})
}

func (f FieldRef) Ge(value any) *Condition {
	return f.compare(OpGe, value, func(r types.Record) bool {
		c, ok := types.Compare(r.Get(f.Name), value)
		return ok && c >= 0
	})
}

func (f FieldRef) IsIn(values []any) *Condition {
	vals := make([]any, len(values))
	copy(vals, values)
	return &Condition{eval: func(r types.Record) bool {
		v := r.Get(f.Name)
		for _, candidate := range vals {
			if types.Equal(v, candidate) {
				return true
			}
		}
		return false
	}}
}

// Contains matches string fields containing a substring and list fields
// containing an equal element.
func (f FieldRef) Contains(item any) *Condition {
	return &Condition{eval: func(r types.Record) bool {
		switch v := r.Get(f.Name).(type) {
		case string:
			s, ok := item.(string)
			return ok && strings.Contains(v, s)
		case []any:
			for _, el := range v {
				if types.Equal(el, item) {
					return true
				}
			}
		}
		return false
	}}
}

func (f FieldRef) StartsWith(prefix string) *Condition {
	return &Condition{eval: func(r types.Record) bool {
		v, ok := r.Get(f.Name).(string)
		return ok && strings.HasPrefix(v, prefix)
	}}
}

func (f FieldRef) EndsWith(suffix string) *Condition {
	return &Condition{eval: func(r types.Record) bool {
		v, ok := r.Get(f.Name).(string)
		return ok && strings.HasSuffix(v, suffix)
	}}
}

func (f FieldRef) IsNull() *Condition {
	return &Condition{eval: func(r types.Record) bool {
		return r.Get(f.Name) == nil
	}}
}

func (f FieldRef) IsNotNull() *Condition {
	return &Condition{eval: func(r types.Record) bool {
		return r.Get(f.Name) != nil
	}}
}

// Between is the inclusive range test low <= field <= high. Missing fields
// and incomparable values evaluate to false.
func (f FieldRef) Between(low, high any) *Condition {
	return &Condition{eval: func(r types.Record) bool {
		v := r.Get(f.Name)
		if v == nil {
			return false
		}
		cl, ok := types.Compare(v, low)
		if !ok || cl < 0 {
			return false
		}
		ch, ok := types.Compare(v, high)
		return ok && ch <= 0
	}}
}
