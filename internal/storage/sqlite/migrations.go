package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/alioshr/task-orchestrator-sub000/internal/orcherr"
	"github.com/alioshr/task-orchestrator-sub000/internal/storage/sqlite/migrations"
)

// RunMigrations ensures the _migrations bookkeeping table exists, then
// applies every script from migrations.All() not yet recorded there, each in
// its own transaction. Grounded on spec §4.2 and the teacher's migration
// runner: already-applied migrations are left untouched if a later one
// fails, since each script commits independently.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS _migrations (
		    version    INTEGER PRIMARY KEY,
		    name       TEXT NOT NULL,
		    applied_at TEXT NOT NULL
		)
	`); err != nil {
		return orcherr.Wrap(orcherr.Storage, err, "create _migrations table")
	}

	applied := map[int]bool{}
	rows, err := db.QueryContext(ctx, `SELECT version FROM _migrations`)
	if err != nil {
		return orcherr.Wrap(orcherr.Storage, err, "read applied migrations")
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return orcherr.Wrap(orcherr.Storage, err, "scan applied migration version")
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return orcherr.Wrap(orcherr.Storage, err, "iterate applied migrations")
	}
	rows.Close()

	for _, script := range migrations.All() {
		if applied[script.Version] {
			continue
		}
		if err := applyMigration(ctx, db, script); err != nil {
			return orcherr.Wrap(orcherr.Storage, err, "migration %d (%s)", script.Version, script.Name)
		}
	}
	return nil
}

// applyMigration runs one script inside its own transaction. Scripts that
// need referential checks disabled have PRAGMA foreign_keys toggled off
// around the transaction — SQLite refuses to change that pragma while a
// transaction is open, so the toggle brackets BeginTx/Commit rather than
// living inside it.
func applyMigration(ctx context.Context, db *sql.DB, script migrations.Script) error {
	if script.NeedsFKDisabled {
		if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = OFF`); err != nil {
			return err
		}
		defer db.ExecContext(ctx, `PRAGMA foreign_keys = ON`)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := script.Run(ctx, tx); err != nil {
		tx.Rollback()
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO _migrations (version, name, applied_at) VALUES (?, ?, ?)
	`, script.Version, script.Name, time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}
