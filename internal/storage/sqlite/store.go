// Package sqlite implements storage.Store over the pure-Go, WASM-backed
// ncruces/go-sqlite3 driver. Grounded on the teacher's internal/storage/sqlite
// package: driver registered under the name "sqlite3" (see the teacher's
// internal/storage/sqlite/external_deps.go), PRAGMA-driven durability setup,
// and a flock-guarded open path for the cross-process migration race the
// teacher's migrations.go comment describes (GH#720 in the teacher) —
// generalized here to an explicit file lock rather than a bare SQL
// "BEGIN EXCLUSIVE", since our migration runner also needs to create the
// database file itself on first run.
package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/alioshr/task-orchestrator-sub000/internal/idgen"
	"github.com/alioshr/task-orchestrator-sub000/internal/obslog"
	"github.com/alioshr/task-orchestrator-sub000/internal/orcherr"
	"github.com/alioshr/task-orchestrator-sub000/internal/storage"
	"github.com/gofrs/flock"
)

// Store is the sqlite-backed storage.Store implementation.
type Store struct {
	db   *sql.DB
	path string
}

var _ storage.Store = (*Store)(nil)

// Open opens (creating if absent) the sqlite database at path, applies the
// durability pragmas from spec §4.1 (WAL journaling, 5s busy timeout,
// referential checks on, normal sync), and runs pending migrations under a
// cross-process advisory lock.
func Open(ctx context.Context, path string) (*Store, error) {
	lockPath := path + ".lock"
	fl := flock.New(lockPath)
	locked, err := fl.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil || !locked {
		return nil, orcherr.Wrap(orcherr.Storage, err, "acquire bootstrap lock for %s", path)
	}
	defer fl.Unlock()

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.Storage, err, "open sqlite database %s", path)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, orcherr.Wrap(orcherr.Storage, err, "apply pragma %q", p)
		}
	}

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, orcherr.Wrap(orcherr.Storage, err, "run migrations")
	}

	obslog.Infof("sqlite store opened at %s", path)

	return &Store{db: db, path: path}, nil
}

func (s *Store) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, wrapExecErr(err)
	}
	return res, nil
}

func (s *Store) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.Storage, err, "query")
	}
	return rows, nil
}

func (s *Store) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, query, args...)
}

func (s *Store) GenerateID() string { return idgen.New() }

func (s *Store) Now() string { return idgen.Now() }

func (s *Store) Path() string { return s.path }

func (s *Store) UnderlyingDB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// wrapExecErr distinguishes unique/check constraint violations (CONFLICT)
// from everything else (STORAGE), grounded on the teacher's
// isUniqueConstraintError error-string matching in internal/storage/sqlite/issues.go —
// the ncruces driver, like the teacher's mattn/modernc drivers, surfaces
// SQLite constraint failures as plain error strings rather than a typed
// sentinel, so substring matching is the idiom the pack itself uses.
func wrapExecErr(err error) error {
	if isConstraintError(err) {
		return orcherr.Wrap(orcherr.Conflict, err, "constraint violation")
	}
	return orcherr.Wrap(orcherr.Storage, err, "exec")
}

func isConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return containsAny(msg,
		"UNIQUE constraint failed",
		"constraint failed: UNIQUE",
		"CHECK constraint failed",
		"FOREIGN KEY constraint failed",
	)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
