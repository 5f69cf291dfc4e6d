// Package table implements the record store: schema-checked records keyed by
// a primary key, secondary indexes maintained on every mutation, and CRUD
// operations scoped by a table-level writer-preference rwlock.
package table

import (
	"io"
	"log/slog"
	"sort"

	"github.com/pkg/errors"
	sorted "github.com/tobshub/go-sortedmap"

	"github.com/kivadb/kivadb/internal/index"
	"github.com/kivadb/kivadb/internal/query"
	"github.com/kivadb/kivadb/internal/schema"
	"github.com/kivadb/kivadb/internal/types"
	"github.com/kivadb/kivadb/pkg"
)

// Record maps field names to dynamically typed values. Records handed to
// callers on read are copies; the table owns its stored records exclusively.
type Record = types.Record

type Table struct {
	Name       string
	primaryKey string
	schema     schema.Schema

	// rows is kept ordered by primary key so full scans are deterministic.
	rows    *sorted.SortedMap[any, Record]
	indexes pkg.Map[string, index.Index]

	lock *pkg.RWLock
	log  *slog.Logger
}

// New creates a table. The schema may be nil, in which case any record shape
// is accepted; a non-nil schema gets the primary-key field auto-inserted
// with int kind when omitted. The logger is observational only; nil
// discards.
func New(name, primaryKey string, s schema.Schema, log *slog.Logger) *Table {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s != nil {
		s.EnsurePrimaryKey(primaryKey)
	}
	t := &Table{
		Name:       name,
		primaryKey: primaryKey,
		schema:     s,
		indexes:    pkg.Map[string, index.Index]{},
		lock:       pkg.NewRWLock(),
		log:        log,
	}
	t.rows = sorted.New[any, Record](0, func(a, b Record) bool {
		return types.TotalLess(a.Get(primaryKey), b.Get(primaryKey))
	})
	return t
}

func (t *Table) GetLocker() *pkg.RWLock { return t.lock }

// Field returns a comparison builder for the named field, for composing
// where conditions.
func (t *Table) Field(name string) query.FieldRef { return query.F(name) }

type keyedRecord struct {
	key any
	rec Record
}

// scanLocked snapshots all rows in primary-key order. Caller must hold the
// lock.
func (t *Table) scanLocked() []keyedRecord {
	out := make([]keyedRecord, 0, t.rows.Len())
	iter, err := t.rows.IterCh()
	if err != nil {
		// IterCh errors only on an empty map
		return out
	}
	defer iter.Close()
	for rec := range iter.Records() {
		out = append(out, keyedRecord{key: rec.Key, rec: rec.Val})
	}
	return out
}

func (t *Table) nextKeyLocked() int {
	max := 0
	for _, kr := range t.scanLocked() {
		if n, ok := types.AsInt(kr.key); ok && n > max {
			max = n
		}
	}
	return max + 1
}

// Insert stores a record. The primary key is auto-assigned as
// max(existing)+1 (starting at 1) when absent; an explicit key that already
// exists fails with ErrDuplicateKey. Schema validation runs before the
// mutation is committed, and every index covering a field of the record is
// updated under the same writer lock.
func (t *Table) Insert(record Record) error {
	var err error
	pkg.LockWrap(t, func() { err = t.insertLocked(record) })
	if err != nil {
		return err
	}
	t.log.Debug("record inserted",
		"op", "INSERT", "table", t.Name, "pk", record.Get(t.primaryKey))
	return nil
}

func (t *Table) insertLocked(record Record) error {
	if !record.Has(t.primaryKey) {
		record.Set(t.primaryKey, t.nextKeyLocked())
	} else {
		record.Set(t.primaryKey, types.CanonicalKey(record.Get(t.primaryKey)))
		if t.rows.Has(record.Get(t.primaryKey)) {
			return errors.Wrapf(ErrDuplicateKey,
				"record with key %v already exists in table %q", record.Get(t.primaryKey), t.Name)
		}
	}
	if err := t.schema.Validate(record); err != nil {
		return err
	}
	key := record.Get(t.primaryKey)
	if !t.rows.Insert(key, record) {
		t.rows.Replace(key, record)
	}
	for field, idx := range t.indexes {
		if record.Has(field) {
			idx.Insert(key, record.Get(field))
		}
	}
	return nil
}

// SelectOptions carry the optional query arguments. Limit <= 0 means no
// limit.
type SelectOptions struct {
	Columns *query.ColumnSpec
	Where   *query.Condition
	OrderBy []string
	Limit   int
	Offset  int
}

// Select returns copies of matching records. Candidates come from an index
// when the condition is a single planable comparison on an indexed field,
// otherwise from a full scan; either way the condition is re-evaluated
// against each candidate, since an index only narrows. Ordering, pagination
// and projection run after the lock is released, on copied data.
func (t *Table) Select(opts SelectOptions) []Record {
	var matched []Record
	pkg.RLockWrap(t, func() {
		for _, kr := range t.candidatesLocked(opts.Where) {
			if opts.Where == nil || opts.Where.Match(kr.rec) {
				matched = append(matched, types.CopyRecord(kr.rec))
			}
		}
	})

	if len(opts.OrderBy) == 1 && opts.Limit > 0 && opts.Offset >= 0 &&
		opts.Offset+opts.Limit < len(matched) {
		matched = query.TopK(matched, opts.OrderBy[0], opts.Offset+opts.Limit)
	} else {
		matched = query.Order(matched, opts.OrderBy)
	}
	matched = query.Slice(matched, opts.Limit, opts.Offset)
	results := query.Project(matched, opts.Columns)

	t.log.Debug("records selected",
		"op", "SELECT", "table", t.Name, "count", len(results))
	return results
}

// candidatesLocked picks between an index lookup and a full scan. Index
// candidates are returned in primary-key order so downstream slicing stays
// deterministic.
func (t *Table) candidatesLocked(where *query.Condition) []keyedRecord {
	if where == nil {
		return t.scanLocked()
	}
	field, op, value, planable := where.Plan()
	if !planable {
		return t.scanLocked()
	}
	idx, ok := t.indexes[field]
	if !ok {
		return t.scanLocked()
	}
	pks, ok := searchPlan(idx, op, value)
	if !ok {
		return t.scanLocked()
	}
	keys := pks.Items()
	sort.Slice(keys, func(i, j int) bool { return types.TotalLess(keys[i], keys[j]) })
	out := make([]keyedRecord, 0, len(keys))
	for _, pk := range keys {
		if rec, found := t.rows.Get(pk); found {
			out = append(out, keyedRecord{key: pk, rec: rec})
		}
	}
	return out
}

func searchPlan(idx index.Index, op query.Op, value any) (pkg.Set[any], bool) {
	ranger, ranged := idx.(index.Ranger)
	if op == query.OpEq {
		if ranged && !types.Orderable(value) {
			return nil, false
		}
		if !types.Hashable(value) {
			return nil, false
		}
		return idx.Search(value), true
	}
	if !ranged || !types.Orderable(value) {
		return nil, false
	}
	switch op {
	case query.OpLt:
		return ranger.SearchLT(value), true
	case query.OpLe:
		return ranger.SearchLTE(value), true
	case query.OpGt:
		return ranger.SearchGT(value), true
	case query.OpGe:
		return ranger.SearchGTE(value), true
	}
	return nil, false
}

// Update merges changes into every matching record. The operation is
// two-phase: merged copies of all matches are staged and validated first,
// and nothing is written unless every one of them passes, so callers never
// observe a partially applied update. Indexes are refreshed only for fields
// whose value actually changed. Zero matches fail with ErrRecordNotFound.
func (t *Table) Update(changes Record, where *query.Condition) (int, error) {
	var count int
	var err error
	pkg.LockWrap(t, func() { count, err = t.updateLocked(changes, where) })
	if err != nil {
		return 0, err
	}
	t.log.Debug("records updated",
		"op", "UPDATE", "table", t.Name, "count", count)
	return count, nil
}

func (t *Table) updateLocked(changes Record, where *query.Condition) (int, error) {
	type staged struct {
		key      any
		old, rec Record
	}
	matches := pkg.Filter(t.scanLocked(), func(kr keyedRecord) bool {
		return where == nil || where.Match(kr.rec)
	})
	var updates []staged
	for _, kr := range matches {
		merged := types.CopyRecord(kr.rec)
		for field, value := range changes {
			merged.Set(field, value)
		}
		if err := t.schema.Validate(merged); err != nil {
			return 0, err
		}
		updates = append(updates, staged{key: kr.key, old: kr.rec, rec: merged})
	}
	if len(updates) == 0 {
		return 0, errors.Wrapf(ErrRecordNotFound,
			"no records match the update criteria in table %q", t.Name)
	}
	for _, u := range updates {
		t.rows.Replace(u.key, u.rec)
		for field, idx := range t.indexes {
			oldValue, hadOld := u.old[field]
			newValue, hasNew := u.rec[field]
			switch {
			case !hasNew:
				continue
			case !hadOld:
				idx.Insert(u.key, newValue)
			case !types.Equal(oldValue, newValue):
				idx.Update(u.key, oldValue, newValue)
			}
		}
	}
	return len(updates), nil
}

// Delete removes every matching record, updating indexes first. Zero matches
// fail with ErrRecordNotFound.
func (t *Table) Delete(where *query.Condition) (int, error) {
	var count int
	var err error
	pkg.LockWrap(t, func() { count, err = t.deleteLocked(where) })
	if err != nil {
		return 0, err
	}
	t.log.Debug("records deleted",
		"op", "DELETE", "table", t.Name, "count", count)
	return count, nil
}

func (t *Table) deleteLocked(where *query.Condition) (int, error) {
	doomed := pkg.Filter(t.scanLocked(), func(kr keyedRecord) bool {
		return where == nil || where.Match(kr.rec)
	})
	if len(doomed) == 0 {
		return 0, errors.Wrapf(ErrRecordNotFound,
			"no records match the deletion criteria in table %q", t.Name)
	}
	for _, kr := range doomed {
		for field, idx := range t.indexes {
			if kr.rec.Has(field) {
				idx.Delete(kr.key, kr.rec.Get(field))
			}
		}
		t.rows.Delete(kr.key)
	}
	return len(doomed), nil
}

// All returns copies of every record in primary-key order.
func (t *Table) All() []Record {
	var out []Record
	pkg.RLockWrap(t, func() {
		for _, kr := range t.scanLocked() {
			out = append(out, types.CopyRecord(kr.rec))
		}
	})
	return out
}

// Copy returns a primary-key -> record-copy snapshot.
func (t *Table) Copy() map[any]Record {
	out := map[any]Record{}
	pkg.RLockWrap(t, func() {
		for _, kr := range t.scanLocked() {
			out[kr.key] = types.CopyRecord(kr.rec)
		}
	})
	return out
}

// Columns derives column names from the schema when present, otherwise from
// the union of fields across current records, sorted.
func (t *Table) Columns() []string {
	if t.schema != nil {
		return t.schema.FieldNames()
	}
	cols := pkg.NewSet[string]()
	pkg.RLockWrap(t, func() {
		for _, kr := range t.scanLocked() {
			for field := range kr.rec {
				cols.Add(field)
			}
		}
	})
	names := cols.Items()
	sort.Strings(names)
	return names
}

func (t *Table) Count() int {
	var n int
	pkg.RLockWrap(t, func() { n = t.rows.Len() })
	return n
}

// Size is an alias for Count.
func (t *Table) Size() int { return t.Count() }

func (t *Table) IndexedFields() []string {
	var fields []string
	pkg.RLockWrap(t, func() { fields = t.indexes.Keys() })
	sort.Strings(fields)
	return fields
}

func (t *Table) HasIndex(field string) bool {
	var ok bool
	pkg.RLockWrap(t, func() { ok = t.indexes.Has(field) })
	return ok
}

func (t *Table) SchemaFields() []string {
	if t.schema == nil {
		return []string{}
	}
	return t.schema.FieldNames()
}

// Schema returns a copy of the table's schema, or nil.
func (t *Table) Schema() schema.Schema { return t.schema.Clone() }

// FieldKind reports the declared kind of a schema field.
func (t *Table) FieldKind(field string) (types.Kind, bool) {
	if t.schema == nil {
		return types.KindUnknown, false
	}
	kind, ok := t.schema[field]
	return kind, ok
}

func (t *Table) PrimaryKeyName() string { return t.primaryKey }
