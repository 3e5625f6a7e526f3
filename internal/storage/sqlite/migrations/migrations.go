// Package migrations holds the individual, ordered migration scripts run by
// the sqlite storage adapter. Grounded on the teacher's
// internal/storage/sqlite/migrations package: one exported Migrate* func per
// file, each idempotent and taking the raw *sql.DB (or, here, the
// transaction-scoped executor the runner hands it).
package migrations

import (
	"context"
	"database/sql"
)

// Executor is satisfied by *sql.Tx; migrations run inside the runner's
// managed transaction and never open their own.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Script is one registered migration.
type Script struct {
	Version int
	Name    string
	// Run applies the migration. Foreign key enforcement is off for the
	// duration of the script only for migrations that set NeedsFKDisabled.
	Run func(ctx context.Context, db Executor) error
	// NeedsFKDisabled marks migrations that rebuild tables referenced by
	// foreign keys and must run with referential checks off, restored by
	// the runner immediately after (spec §4.2: migration #3).
	NeedsFKDisabled bool
}

// All returns the ordered list of migrations. Append-only: never reorder or
// remove a prior entry, only add new ones with the next version number.
func All() []Script {
	return []Script{
		{Version: 1, Name: "initial_schema", Run: InitialSchema},
		{Version: 2, Name: "seed_builtin_templates", Run: SeedBuiltinTemplates},
		{Version: 3, Name: "pipeline_v3_refactor", Run: PipelineV3Refactor, NeedsFKDisabled: true},
	}
}
