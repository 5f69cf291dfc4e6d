// Package query implements the composable condition algebra and the
// post-filter pipeline (ordering, pagination, projection) applied to
// selected records.
package query

import "github.com/kivadb/kivadb/internal/types"

type Op int

const (
	OpNone Op = iota
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

// Condition is an immutable boolean predicate over a record. Conditions built
// from a single field comparison keep their (field, op, value) shape so the
// table engine can plan index use; combinator results carry no plan shape.
//
// A Condition has no boolean conversion: it is only consumable as the typed
// `where` argument of table operations.
type Condition struct {
	eval  func(types.Record) bool
	field string
	op    Op
	value any
}

func (c *Condition) Match(record types.Record) bool {
	return c.eval(record)
}

// Plan returns the single-comparison shape of the condition, when it has one.
func (c *Condition) Plan() (field string, op Op, value any, ok bool) {
	if c.op == OpNone {
		return "", OpNone, nil, false
	}
	return c.field, c.op, c.value, true
}

func (c *Condition) And(other *Condition) *Condition {
	return &Condition{eval: func(r types.Record) bool {
		return c.Match(r) && other.Match(r)
	}}
}

func (c *Condition) Or(other *Condition) *Condition {
	return &Condition{eval: func(r types.Record) bool {
		return c.Match(r) || other.Match(r)
	}}
}

func Not(c *Condition) *Condition {
	return &Condition{eval: func(r types.Record) bool {
		return !c.Match(r)
	}}
}

func And(conds ...*Condition) *Condition {
	return &Condition{eval: func(r types.Record) bool {
		for _, c := range conds {
			if !c.Match(r) {
				return false
			}
		}
		return true
	}}
}

func Or(conds ...*Condition) *Condition {
	return &Condition{eval: func(r types.Record) bool {
		for _, c := range conds {
			if c.Match(r) {
				return true
			}
		}
		return false
	}}
}
