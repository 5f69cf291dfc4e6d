package schema_test

import (
	"errors"
	"testing"

	. "github.com/kivadb/kivadb/internal/schema"
	"github.com/kivadb/kivadb/internal/types"
	"gotest.tools/assert"
)

func personSchema() Schema {
	return New(map[string]types.Kind{
		"id":   types.KindInt,
		"name": types.KindString,
		"age":  types.KindInt,
	})
}

func TestValidate(t *testing.T) {
	t.Run("valid record", func(t *testing.T) {
		err := personSchema().Validate(types.Record{"id": 1, "name": "Alice", "age": 30})
		assert.NilError(t, err)
	})

	t.Run("missing field", func(t *testing.T) {
		err := personSchema().Validate(types.Record{"id": 1, "name": "Alice"})
		assert.ErrorContains(t, err, `missing field "age"`)

		var schema_err *Error
		assert.Assert(t, errors.As(err, &schema_err))
		assert.Equal(t, schema_err.Kind, MissingField)
	})

	t.Run("type mismatch", func(t *testing.T) {
		err := personSchema().Validate(types.Record{"id": 1, "name": "Alice", "age": "30"})
		assert.ErrorContains(t, err, `field "age" expects type "int", got "string"`)

		var schema_err *Error
		assert.Assert(t, errors.As(err, &schema_err))
		assert.Equal(t, schema_err.Kind, TypeMismatch)
	})

	t.Run("unknown field", func(t *testing.T) {
		err := personSchema().Validate(types.Record{
			"id": 1, "name": "Alice", "age": 30, "email": "a@b.c",
		})
		assert.ErrorContains(t, err, `field "email" is not defined in the schema`)

		var schema_err *Error
		assert.Assert(t, errors.As(err, &schema_err))
		assert.Equal(t, schema_err.Kind, UnknownField)
	})

	t.Run("nil schema validates anything", func(t *testing.T) {
		var s Schema
		assert.NilError(t, s.Validate(types.Record{"whatever": []any{1, 2}}))
	})
}

func TestEnsurePrimaryKey(t *testing.T) {
	s := New(map[string]types.Kind{"name": types.KindString})
	s.EnsurePrimaryKey("id")
	assert.Equal(t, s["id"], types.KindInt)

	// an existing declaration is left alone
	s2 := New(map[string]types.Kind{"id": types.KindString})
	s2.EnsurePrimaryKey("id")
	assert.Equal(t, s2["id"], types.KindString)
}

func TestClone(t *testing.T) {
	s := personSchema()
	c := s.Clone()
	c["extra"] = types.KindBool
	assert.Assert(t, !hasField(s, "extra"))

	var nil_schema Schema
	assert.Assert(t, nil_schema.Clone() == nil)
}

func hasField(s Schema, field string) bool {
	_, ok := s[field]
	return ok
}
