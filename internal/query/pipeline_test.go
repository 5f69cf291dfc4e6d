package query_test

import (
	"testing"

	. "github.com/kivadb/kivadb/internal/query"
	"github.com/kivadb/kivadb/internal/types"
	"gotest.tools/assert"
	is "gotest.tools/assert/cmp"
)

func people() []types.Record {
	return []types.Record{
		{"id": 1, "name": "Carol", "age": 35},
		{"id": 2, "name": "Alice", "age": 30},
		{"id": 3, "name": "Bob", "age": 30},
		{"id": 4, "name": "Dave", "age": 25},
	}
}

func names(recs []types.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Get("name").(string)
	}
	return out
}

func TestOrder(t *testing.T) {
	t.Run("ascending", func(t *testing.T) {
		got := Order(people(), []string{"age"})
		assert.DeepEqual(t, names(got), []string{"Dave", "Alice", "Bob", "Carol"})
	})

	t.Run("descending", func(t *testing.T) {
		got := Order(people(), []string{"-age"})
		assert.Equal(t, got[0].Get("name"), "Carol")
		assert.Equal(t, got[3].Get("name"), "Dave")
	})

	t.Run("multi key, earlier keys dominate", func(t *testing.T) {
		got := Order(people(), []string{"age", "-name"})
		assert.DeepEqual(t, names(got), []string{"Dave", "Bob", "Alice", "Carol"})
	})

	t.Run("stable on ties", func(t *testing.T) {
		got := Order(people(), []string{"age"})
		// Alice (id 2) precedes Bob (id 3): input order preserved on equal age
		assert.Equal(t, got[1].Get("id"), 2)
		assert.Equal(t, got[2].Get("id"), 3)
	})

	t.Run("missing fields sort first", func(t *testing.T) {
		recs := []types.Record{{"id": 1, "v": 5}, {"id": 2}}
		got := Order(recs, []string{"v"})
		assert.Equal(t, got[0].Get("id"), 2)
	})

	t.Run("input untouched", func(t *testing.T) {
		in := people()
		Order(in, []string{"age"})
		assert.Equal(t, in[0].Get("name"), "Carol")
	})
}

func TestTopK(t *testing.T) {
	t.Run("matches full sort prefix", func(t *testing.T) {
		full := Order(people(), []string{"age"})
		top := TopK(people(), "age", 2)
		assert.DeepEqual(t, names(top), names(full[:2]))
	})

	t.Run("descending", func(t *testing.T) {
		top := TopK(people(), "-age", 1)
		assert.Equal(t, top[0].Get("name"), "Carol")
	})

	t.Run("k at least n degrades to full sort", func(t *testing.T) {
		top := TopK(people(), "age", 10)
		assert.Assert(t, is.Len(top, 4))
		assert.Equal(t, top[0].Get("name"), "Dave")
	})

	t.Run("k of zero", func(t *testing.T) {
		assert.Assert(t, is.Len(TopK(people(), "age", 0), 0))
	})
}

func TestSlice(t *testing.T) {
	recs := people()
	assert.Assert(t, is.Len(Slice(recs, 2, 0), 2))
	assert.Assert(t, is.Len(Slice(recs, 0, 0), 4))
	assert.Assert(t, is.Len(Slice(recs, -1, 0), 4))
	assert.Assert(t, is.Len(Slice(recs, 10, 2), 2))
	assert.Assert(t, is.Len(Slice(recs, 2, 10), 0))
	assert.Equal(t, Slice(recs, 2, 1)[0].Get("name"), "Alice")
}

func TestProject(t *testing.T) {
	t.Run("nil spec passes through", func(t *testing.T) {
		recs := people()
		got := Project(recs, nil)
		assert.Equal(t, got[0].Get("id"), 1)
		assert.Equal(t, len(got[0]), 3)
	})

	t.Run("named columns", func(t *testing.T) {
		got := Project(people(), Cols("name"))
		assert.Equal(t, len(got[0]), 1)
		assert.Equal(t, got[0].Get("name"), "Carol")
	})

	t.Run("aliases", func(t *testing.T) {
		got := Project(people(), AliasCols(Alias{As: "years", Field: "age"}))
		assert.Equal(t, got[0].Get("years"), 35)
		assert.Assert(t, !got[0].Has("age"))
	})

	t.Run("map form", func(t *testing.T) {
		got := Project(people(), MapCols(map[string]string{"who": "name", "years": "age"}))
		assert.Equal(t, got[1].Get("who"), "Alice")
		assert.Equal(t, got[1].Get("years"), 30)
	})

	t.Run("missing fields project as null", func(t *testing.T) {
		got := Project(people(), Cols("name", "email"))
		assert.Assert(t, got[0].Has("email"))
		assert.Assert(t, got[0].Get("email") == nil)
	})
}
