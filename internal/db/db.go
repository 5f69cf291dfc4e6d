// Package db holds the multi-table catalog and its persistence and backup
// collaborators. The catalog routes by table name and knows nothing about
// the table engine's internals.
package db

import (
	"io"
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/kivadb/kivadb/internal/schema"
	"github.com/kivadb/kivadb/internal/table"
	"github.com/kivadb/kivadb/pkg"
)

var (
	ErrTableExists   = errors.New("table already exists")
	ErrTableNotFound = errors.New("table does not exist")
)

type DB struct {
	tables pkg.Map[string, *table.Table]
	lock   *pkg.RWLock
	log    *slog.Logger

	// changes counts mutating operations, for backup/persistence debounce.
	changes atomic.Int64
}

func New(log *slog.Logger) *DB {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &DB{
		tables: pkg.Map[string, *table.Table]{},
		lock:   pkg.NewRWLock(),
		log:    log,
	}
}

func (db *DB) GetLocker() *pkg.RWLock { return db.lock }

func (db *DB) Logger() *slog.Logger { return db.log }

func (db *DB) CreateTable(name, primaryKey string, s schema.Schema) (*table.Table, error) {
	var t *table.Table
	var err error
	pkg.LockWrap(db, func() {
		if db.tables.Has(name) {
			err = errors.Wrapf(ErrTableExists, "table %q", name)
			return
		}
		t = table.New(name, primaryKey, s, db.log)
		db.tables.Set(name, t)
	})
	if err != nil {
		return nil, err
	}
	db.MarkChanged()
	db.log.Info("table created", "table", name, "primary_key", primaryKey)
	return t, nil
}

func (db *DB) DropTable(name string) error {
	var err error
	pkg.LockWrap(db, func() {
		if !db.tables.Has(name) {
			err = errors.Wrapf(ErrTableNotFound, "table %q", name)
			return
		}
		db.tables.Delete(name)
	})
	if err != nil {
		return err
	}
	db.MarkChanged()
	db.log.Info("table dropped", "table", name)
	return nil
}

func (db *DB) GetTable(name string) (*table.Table, error) {
	var t *table.Table
	pkg.RLockWrap(db, func() { t = db.tables.Get(name) })
	if t == nil {
		return nil, errors.Wrapf(ErrTableNotFound, "table %q", name)
	}
	return t, nil
}

func (db *DB) ListTables() []string {
	var names []string
	pkg.RLockWrap(db, func() { names = db.tables.Keys() })
	sort.Strings(names)
	return names
}

// MarkChanged records that catalog or table state changed; the backup and
// persistence tickers compare this counter against the value they last
// wrote.
func (db *DB) MarkChanged() { db.changes.Add(1) }

func (db *DB) Changes() int64 { return db.changes.Load() }
