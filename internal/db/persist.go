package db

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/kivadb/kivadb/internal/schema"
	"github.com/kivadb/kivadb/internal/types"
)

// Serialized form: {"tables": {name: {primary_key, schema, records}}}.
// Indexes are never serialized; they only ever live in memory and are
// rebuilt after load by whoever wants them.
type tableState struct {
	PrimaryKey string            `json:"primary_key"`
	Schema     map[string]string `json:"schema"`
	Records    []types.Record    `json:"records"`
}

type dbState struct {
	Tables map[string]tableState `json:"tables"`
}

// ValidatePath resolves path and, when allowedDir is non-empty, rejects
// anything outside it before any file is touched.
func ValidatePath(path, allowedDir string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrapf(err, "resolving path %q", path)
	}
	if allowedDir == "" {
		return abs, nil
	}
	allowed, err := filepath.Abs(allowedDir)
	if err != nil {
		return "", errors.Wrapf(err, "resolving allowed dir %q", allowedDir)
	}
	if abs != allowed && !strings.HasPrefix(abs, allowed+string(filepath.Separator)) {
		return "", errors.Errorf("path %q is outside the allowed directory %q", path, allowedDir)
	}
	return abs, nil
}

func snapshot(db *DB) (*dbState, error) {
	state := &dbState{Tables: map[string]tableState{}}
	for _, name := range db.ListTables() {
		t, err := db.GetTable(name)
		if err != nil {
			return nil, err
		}
		ts := tableState{
			PrimaryKey: t.PrimaryKeyName(),
			Records:    t.All(),
		}
		if s := t.Schema(); s != nil {
			ts.Schema = map[string]string{}
			for field, kind := range s {
				ts.Schema[field] = kind.String()
			}
		}
		state.Tables[name] = ts
	}
	return state, nil
}

// Save writes the database state as JSON. Pass allowedDir to confine where
// files may land, or "" to allow any path.
func Save(db *DB, path, allowedDir string) error {
	validated, err := ValidatePath(path, allowedDir)
	if err != nil {
		return err
	}
	state, err := snapshot(db)
	if err != nil {
		return err
	}
	data, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "marshalling database state")
	}
	if err := os.WriteFile(validated, data, 0644); err != nil {
		return errors.Wrapf(err, "writing database to %q", validated)
	}
	db.log.Debug("database saved", "path", validated, "tables", len(state.Tables))
	return nil
}

// Load reads a Save snapshot and rebuilds the catalog through repeated
// Insert calls, the sole entry point for reconstructing table state. Record
// values are coerced per the table schema, since json collapses all numbers
// to float64.
func Load(path, allowedDir string, log *slog.Logger) (*DB, error) {
	validated, err := ValidatePath(path, allowedDir)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(validated)
	if err != nil {
		return nil, errors.Wrapf(err, "opening database file %q", validated)
	}
	defer f.Close()

	var state dbState
	if err := json.NewDecoder(f).Decode(&state); err != nil {
		return nil, errors.Wrapf(err, "decoding database file %q", validated)
	}

	db := New(log)
	for name, ts := range state.Tables {
		var s schema.Schema
		if ts.Schema != nil {
			s = schema.Schema{}
			for field, kindName := range ts.Schema {
				kind, err := types.ParseKind(kindName)
				if err != nil {
					return nil, errors.Wrapf(err, "table %q schema field %q", name, field)
				}
				s[field] = kind
			}
		}
		t, err := db.CreateTable(name, ts.PrimaryKey, s)
		if err != nil {
			return nil, err
		}
		for _, record := range ts.Records {
			if err := t.Insert(coerceRecord(s, record)); err != nil {
				return nil, errors.Wrapf(err, "restoring record into table %q", name)
			}
		}
	}
	db.log.Info("database loaded", "path", validated, "tables", len(state.Tables))
	return db, nil
}

// coerceRecord undoes json number widening using the schema's declared
// kinds. Without a schema only the numeric canonical form is applied.
func coerceRecord(s schema.Schema, record types.Record) types.Record {
	out := make(types.Record, len(record))
	for field, value := range record {
		if s != nil {
			if kind, ok := s[field]; ok {
				if coerced, ok := types.Coerce(kind, value); ok {
					out[field] = coerced
					continue
				}
			}
			out[field] = value
			continue
		}
		out[field] = types.CanonicalKey(value)
	}
	return out
}
