package table

import (
	"fmt"

	"github.com/kivadb/kivadb/internal/index"
	"github.com/kivadb/kivadb/pkg"
)

// CreateIndex builds a secondary index on the field by replaying all
// existing records, then keeps it consistent incrementally. Calling it again
// for the same field is a no-op. Failures (unknown kind, a value the index
// cannot key) are logged and the half-built index discarded; the table keeps
// operating via full scans for that field. Index creation never corrupts
// table state and never propagates an error.
func (t *Table) CreateIndex(field string, kind index.Kind) {
	created := false
	pkg.LockWrap(t, func() {
		if t.indexes.Has(field) {
			return
		}
		idx, err := index.New(kind)
		if err != nil {
			t.log.Error("index creation failed",
				"op", "INDEX", "table", t.Name, "field", field, "kind", string(kind), "err", err)
			return
		}
		if !t.buildIndexLocked(idx, field) {
			return
		}
		t.indexes.Set(field, idx)
		created = true
	})
	if created {
		t.log.Info("index created",
			"op", "INDEX", "table", t.Name, "field", field, "kind", string(kind))
	}
}

// buildIndexLocked replays current records into a fresh index. The index
// structures panic on values they cannot key; only here is that recovered,
// because the index is not yet visible to anything.
func (t *Table) buildIndexLocked(idx index.Index, field string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("index build failed",
				"op", "INDEX", "table", t.Name, "field", field, "err", fmt.Sprint(r))
			ok = false
		}
	}()
	for _, kr := range t.scanLocked() {
		if kr.rec.Has(field) {
			idx.Insert(kr.key, kr.rec.Get(field))
		}
	}
	return true
}
