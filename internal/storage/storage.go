// Package storage wraps the embedded SQL engine behind the narrow interface
// the spec calls "a transactional key/row engine supporting ordered scans,
// predicate filters, and atomic multi-row updates" (spec §1, §4.1).
//
// Grounded on the teacher's internal/storage.Storage/Transaction split
// (internal/storage/storage.go): a handful of primitives (exec, query,
// query-row, run-in-transaction) rather than a generic ORM-style mapper.
// Repositories own their own SQL and Scan calls, exactly as the teacher's
// internal/storage/sqlite/*.go does.
package storage

import (
	"context"
	"database/sql"
)

// Queryer is the minimal surface both a *sql.DB and a *sql.Tx satisfy. Every
// repository method takes a Queryer so it can run standalone or nested
// inside a caller's transaction without a second code path.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the process-wide handle shared by all repositories.
type Store interface {
	Queryer

	// RunInTransaction runs fn inside BEGIN/COMMIT, rolling back on any
	// error or panic propagated out of fn. A call made while already
	// inside a transaction (tracked via ctx) is flattened: fn runs against
	// the existing transaction and no nested BEGIN is issued.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx Queryer) error) error

	// GenerateID returns a fresh 32-hex entity identifier.
	GenerateID() string

	// Now returns the current timestamp as RFC 3339 UTC with millisecond
	// precision.
	Now() string

	// Path returns the on-disk database file path.
	Path() string

	// UnderlyingDB exposes the raw *sql.DB for migration/bootstrap code
	// that needs DDL outside the Store abstraction. Direct use bypasses
	// the Store's transaction bookkeeping; prefer RunInTransaction for
	// anything that isn't schema setup.
	UnderlyingDB() *sql.DB

	Close() error
}
