// Package opaquedemo is a reference implementation of value.OpaqueObject:
// a host-defined opaque value backed by a SQL database handle, storing
// single scalar cells addressed by key in a sqlite table.
//
// A Record holds no *variable.Variable children of its own — the scalar
// it wraps lives in the database, not on the Asteria heap — so its
// EnumerateChildren is the empty case internal/gc must still be able to
// call against every opaque value, regardless of what that value holds.
package opaquedemo

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
	"gopkg.in/yaml.v3"

	"github.com/asteria-lang/asteria/internal/value"
)

// Store is a SQLite-backed table of named scalar cells. Opening a Store
// against ":memory:" gives an embedder a disposable opaque-value backend
// for tests; a real path persists cells across process restarts.
type Store struct {
	db *sql.DB
}

// Open creates or attaches to a SQLite database at path and ensures the
// backing table exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opaquedemo: opening database: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS cells (
		key  TEXT PRIMARY KEY,
		data TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("opaquedemo: creating table: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores v under key, overwriting any prior cell. Only scalar
// categories (null, boolean, integer, real, string) round-trip through
// value.Value.MarshalYAML; array, object, function, and opaque payloads
// are rejected since this demo store has nowhere to keep the Variable
// children they would carry.
func (s *Store) Put(key string, v value.Value) error {
	switch v.Tag() {
	case value.Null, value.Boolean, value.Integer, value.Real, value.String:
	default:
		return fmt.Errorf("opaquedemo: cannot persist a %s cell", v.TypeOf())
	}
	enc, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("opaquedemo: encoding cell %q: %w", key, err)
	}
	_, err = s.db.Exec(`INSERT INTO cells (key, data) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data`, key, string(enc))
	if err != nil {
		return fmt.Errorf("opaquedemo: storing cell %q: %w", key, err)
	}
	return nil
}

// Record wraps a single named cell as a value.OpaqueObject: scripts that
// receive a Record as an Opaque Value can inspect it via typeof/the
// builtin inspector, but the cell's content is read lazily from the
// database on demand rather than cached on the Go side.
func (s *Store) Record(key string) *Record {
	return &Record{store: s, key: key}
}

// Record is the OpaqueObject handed to the engine for a single cell.
type Record struct {
	store *Store
	key   string
}

func (r *Record) TypeName() string { return "opaquedemo.Record" }

// Inspect reads the current cell contents back out of the database so
// the debug representation always reflects the persisted value, not a
// stale snapshot taken when the Record was created.
func (r *Record) Inspect() string {
	var raw string
	err := r.store.db.QueryRow(`SELECT data FROM cells WHERE key = ?`, r.key).Scan(&raw)
	switch {
	case err == sql.ErrNoRows:
		return fmt.Sprintf("opaquedemo.Record(%q: <absent>)", r.key)
	case err != nil:
		return fmt.Sprintf("opaquedemo.Record(%q: <error: %v>)", r.key, err)
	default:
		return fmt.Sprintf("opaquedemo.Record(%q: %s)", r.key, raw)
	}
}

// EnumerateChildren never calls fn: a Record's state lives in the
// database, not on the Asteria Variable heap, so it has no children for
// the collector to trace into.
func (r *Record) EnumerateChildren(fn func(v any) bool) {}

// Key reports the cell name this Record addresses.
func (r *Record) Key() string { return r.key }
