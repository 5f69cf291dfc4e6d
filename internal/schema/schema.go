// Package schema defines the optional per-table field contract and its
// validation rules. A table without a schema accepts arbitrary record shapes.
package schema

import (
	"fmt"
	"sort"

	"github.com/kivadb/kivadb/internal/types"
)

// Schema maps field names to the value kind each record must carry.
type Schema map[string]types.Kind

func New(fields map[string]types.Kind) Schema {
	s := make(Schema, len(fields))
	for name, kind := range fields {
		s[name] = kind
	}
	return s
}

// EnsurePrimaryKey inserts the primary-key field with int kind when the
// caller's schema omits it.
func (s Schema) EnsurePrimaryKey(pk string) {
	if _, ok := s[pk]; !ok {
		s[pk] = types.KindInt
	}
}

// FieldNames returns the schema's fields in sorted order.
func (s Schema) FieldNames() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s Schema) Clone() Schema {
	if s == nil {
		return nil
	}
	return New(s)
}

// Validate checks a record against the schema: every declared field must be
// present with a matching kind, and the record may not carry undeclared
// fields. Fields are checked in sorted order so the reported error is
// deterministic. A nil schema validates anything.
func (s Schema) Validate(record types.Record) error {
	if s == nil {
		return nil
	}
	for _, field := range s.FieldNames() {
		value, ok := record[field]
		if !ok {
			return &Error{Kind: MissingField, Field: field, Want: s[field]}
		}
		if got := types.KindOf(value); got != s[field] {
			return &Error{Kind: TypeMismatch, Field: field, Want: s[field], Got: got}
		}
	}
	extra := make([]string, 0)
	for field := range record {
		if _, ok := s[field]; !ok {
			extra = append(extra, field)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return &Error{Kind: UnknownField, Field: extra[0]}
	}
	return nil
}

type ErrorKind int

const (
	MissingField ErrorKind = iota
	TypeMismatch
	UnknownField
)

func (k ErrorKind) String() string {
	switch k {
	case MissingField:
		return "missing field"
	case TypeMismatch:
		return "type mismatch"
	case UnknownField:
		return "unknown field"
	}
	return "schema error"
}

// Error reports why a record failed schema validation.
type Error struct {
	Kind  ErrorKind
	Field string
	Want  types.Kind
	Got   types.Kind
}

func (e *Error) Error() string {
	switch e.Kind {
	case MissingField:
		return fmt.Sprintf("missing field %q as defined in schema", e.Field)
	case TypeMismatch:
		return fmt.Sprintf("field %q expects type %q, got %q", e.Field, e.Want, e.Got)
	case UnknownField:
		return fmt.Sprintf("field %q is not defined in the schema", e.Field)
	}
	return fmt.Sprintf("schema validation failed on field %q", e.Field)
}
