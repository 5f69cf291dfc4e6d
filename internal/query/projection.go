package query

import (
	"sort"

	"github.com/kivadb/kivadb/internal/types"
)

// Alias maps an output column name to the record field it reads from.
type Alias struct {
	As    string
	Field string
}

// ColumnSpec selects and renames record fields for output.
type ColumnSpec struct {
	pairs []Alias
}

// Cols projects the named fields under their own names.
func Cols(names ...string) *ColumnSpec {
	pairs := make([]Alias, len(names))
	for i, name := range names {
		pairs[i] = Alias{As: name, Field: name}
	}
	return &ColumnSpec{pairs: pairs}
}

// AliasCols projects (alias, field) pairs in the given order.
func AliasCols(pairs ...Alias) *ColumnSpec {
	return &ColumnSpec{pairs: append([]Alias{}, pairs...)}
}

// MapCols projects an alias -> field mapping; aliases are emitted in sorted
// order so output shape is deterministic.
func MapCols(m map[string]string) *ColumnSpec {
	aliases := make([]string, 0, len(m))
	for alias := range m {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	pairs := make([]Alias, len(aliases))
	for i, alias := range aliases {
		pairs[i] = Alias{As: alias, Field: m[alias]}
	}
	return &ColumnSpec{pairs: pairs}
}

// Project builds new records containing only the requested fields under
// their (possibly renamed) keys. A nil spec returns the records unchanged;
// missing fields project as null.
func Project(records []types.Record, columns *ColumnSpec) []types.Record {
	if columns == nil {
		return records
	}
	result := make([]types.Record, len(records))
	for i, rec := range records {
		projected := make(types.Record, len(columns.pairs))
		for _, pair := range columns.pairs {
			projected[pair.As] = rec.Get(pair.Field)
		}
		result[i] = projected
	}
	return result
}
