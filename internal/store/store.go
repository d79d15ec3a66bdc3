// Package store implements the Persistence Store (spec §4.A): a
// SQLite-backed record of every task, its hand-off chain, its
// stage-scoped todos, its dependency edges, its group membership, and
// the free-form workshop chat history, plus a generic scoped
// key/value settings table.
//
// Grounded on the teacher's memory.Store (internal/memory/store.go):
// same driver (modernc.org/sqlite), the same WAL/busy_timeout/
// foreign_keys pragma set applied in New, and the same exec/query
// hook-injection pattern that lets tests swap the underlying
// *sql.DB calls without a mocking library. Where the teacher persists
// one denormalized table per entity, this store follows spec §6's
// literal table layout (tasks, handoffs, todos, task_dependencies,
// task_groups, settings, workshop_sessions, workshop_messages)
// instead, since the spec names that layout explicitly.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection, mirroring
// memory.openDB.
var openDB = sql.Open

// Store is the SQLite-backed Persistence Store.
type Store struct {
	db     *sql.DB
	hooks  storeHooks
	logger *zap.Logger
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

type queryer interface {
	Query(query string, args ...any) (*sql.Rows, error)
}

type storeHooks struct {
	exec  func(db execer, query string, args ...any) (sql.Result, error)
	query func(db queryer, query string, args ...any) (*sql.Rows, error)
}

func defaultStoreHooks() storeHooks {
	return storeHooks{
		exec: func(db execer, query string, args ...any) (sql.Result, error) {
			return db.Exec(query, args...)
		},
		query: func(db queryer, query string, args ...any) (*sql.Rows, error) {
			return db.Query(query, args...)
		},
	}
}

func (s *Store) execHook(db execer, query string, args ...any) (sql.Result, error) {
	if s.hooks.exec != nil {
		return s.hooks.exec(db, query, args...)
	}
	return db.Exec(query, args...)
}

func (s *Store) queryHook(db queryer, query string, args ...any) (*sql.Rows, error) {
	if s.hooks.query != nil {
		return s.hooks.query(db, query, args...)
	}
	return db.Query(query, args...)
}

// New opens (creating if needed) the project's pipeline.db, applies
// the teacher's pragma set, and runs migrations. A nil logger
// disables corrupt-blob warnings (falls back to a no-op logger).
func New(projectRoot string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dir := filepath.Join(projectRoot, ".pipeline")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	db, err := openDB("sqlite", filepath.Join(dir, "pipeline.db"))
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, hooks: defaultStoreHooks(), logger: logger}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("store: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
