package conn

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/kivadb/kivadb/internal/query"
	"github.com/kivadb/kivadb/internal/table"
	"github.com/kivadb/kivadb/internal/types"
)

// ParseWhere translates a wire `where` document into a condition tree.
//
//	{"age": 30}                        equality
//	{"age": {"gt": 21, "lte": 65}}     operator map
//	{"or": [{...}, {...}]}             disjunction
//	{"not": {...}}                     negation
//
// Multiple fields and multiple operators combine with AND. An empty or
// missing document means no filter.
func ParseWhere(t *table.Table, doc map[string]any) (*query.Condition, error) {
	if len(doc) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(doc))
	for key := range doc {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	conds := make([]*query.Condition, 0, len(keys))
	for _, key := range keys {
		value := doc[key]
		switch key {
		case "or":
			list, ok := value.([]any)
			if !ok {
				return nil, errors.New(`"or" expects a list of where documents`)
			}
			subs := make([]*query.Condition, 0, len(list))
			for _, el := range list {
				sub_doc, ok := el.(map[string]any)
				if !ok {
					return nil, errors.New(`"or" expects a list of where documents`)
				}
				sub, err := ParseWhere(t, sub_doc)
				if err != nil {
					return nil, err
				}
				if sub != nil {
					subs = append(subs, sub)
				}
			}
			conds = append(conds, query.Or(subs...))
		case "not":
			sub_doc, ok := value.(map[string]any)
			if !ok {
				return nil, errors.New(`"not" expects a where document`)
			}
			sub, err := ParseWhere(t, sub_doc)
			if err != nil {
				return nil, err
			}
			if sub != nil {
				conds = append(conds, query.Not(sub))
			}
		default:
			cond, err := fieldCondition(t, key, value)
			if err != nil {
				return nil, err
			}
			conds = append(conds, cond)
		}
	}
	if len(conds) == 1 {
		return conds[0], nil
	}
	return query.And(conds...), nil
}

func fieldCondition(t *table.Table, field string, value any) (*query.Condition, error) {
	f := t.Field(field)
	ops, ok := value.(map[string]any)
	if !ok {
		return f.Eq(coerceValue(t, field, value)), nil
	}

	op_names := make([]string, 0, len(ops))
	for op := range ops {
		op_names = append(op_names, op)
	}
	sort.Strings(op_names)

	conds := make([]*query.Condition, 0, len(op_names))
	for _, op := range op_names {
		arg := ops[op]
		switch op {
		case "eq":
			conds = append(conds, f.Eq(coerceValue(t, field, arg)))
		case "ne":
			conds = append(conds, f.Ne(coerceValue(t, field, arg)))
		case "lt":
			conds = append(conds, f.Lt(coerceValue(t, field, arg)))
		case "lte":
			conds = append(conds, f.Le(coerceValue(t, field, arg)))
		case "gt":
			conds = append(conds, f.Gt(coerceValue(t, field, arg)))
		case "gte":
			conds = append(conds, f.Ge(coerceValue(t, field, arg)))
		case "in":
			list, ok := arg.([]any)
			if !ok {
				return nil, errors.Errorf(`"in" on field %q expects a list`, field)
			}
			vals := make([]any, len(list))
			for i, el := range list {
				vals[i] = coerceValue(t, field, el)
			}
			conds = append(conds, f.IsIn(vals))
		case "contains":
			conds = append(conds, f.Contains(arg))
		case "startsWith":
			s, ok := arg.(string)
			if !ok {
				return nil, errors.Errorf(`"startsWith" on field %q expects a string`, field)
			}
			conds = append(conds, f.StartsWith(s))
		case "endsWith":
			s, ok := arg.(string)
			if !ok {
				return nil, errors.Errorf(`"endsWith" on field %q expects a string`, field)
			}
			conds = append(conds, f.EndsWith(s))
		case "between":
			bounds, ok := arg.([]any)
			if !ok || len(bounds) != 2 {
				return nil, errors.Errorf(`"between" on field %q expects [low, high]`, field)
			}
			conds = append(conds, f.Between(
				coerceValue(t, field, bounds[0]),
				coerceValue(t, field, bounds[1]),
			))
		case "isNull":
			want, ok := arg.(bool)
			if !ok {
				return nil, errors.Errorf(`"isNull" on field %q expects a bool`, field)
			}
			if want {
				conds = append(conds, f.IsNull())
			} else {
				conds = append(conds, f.IsNotNull())
			}
		case "notNull":
			want, ok := arg.(bool)
			if !ok {
				return nil, errors.Errorf(`"notNull" on field %q expects a bool`, field)
			}
			if want {
				conds = append(conds, f.IsNotNull())
			} else {
				conds = append(conds, f.IsNull())
			}
		default:
			return nil, errors.Errorf("unknown where operator %q on field %q", op, field)
		}
	}
	if len(conds) == 1 {
		return conds[0], nil
	}
	return query.And(conds...), nil
}

// coerceValue undoes json number widening using the table schema when the
// field is declared, falling back to the canonical numeric form.
func coerceValue(t *table.Table, field string, value any) any {
	if kind, ok := t.FieldKind(field); ok {
		if coerced, ok := types.Coerce(kind, value); ok {
			return coerced
		}
	}
	return types.CanonicalKey(value)
}
