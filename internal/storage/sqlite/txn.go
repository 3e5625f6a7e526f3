package sqlite

import (
	"context"
	"database/sql"

	"github.com/alioshr/task-orchestrator-sub000/internal/orcherr"
	"github.com/alioshr/task-orchestrator-sub000/internal/storage"
)

type txKey struct{}

// RunInTransaction runs fn inside BEGIN/COMMIT. If ctx already carries an
// open transaction (a nested call from within another RunInTransaction),
// fn runs against that same transaction and no new BEGIN is issued — the
// "nested calls are flattened" rule from spec §4.1.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx storage.Queryer) error) error {
	if existing, ok := ctx.Value(txKey{}).(storage.Queryer); ok {
		return fn(ctx, existing)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return orcherr.Wrap(orcherr.Storage, err, "begin transaction")
	}

	txCtx := context.WithValue(ctx, txKey{}, storage.Queryer(tx))

	if err := runAndRecover(txCtx, tx, fn); err != nil {
		return err
	}
	return nil
}

func runAndRecover(ctx context.Context, tx *sql.Tx, fn func(ctx context.Context, tx storage.Queryer) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return orcherr.Wrap(orcherr.Storage, err, "rollback after %v failed: %v", err, rbErr)
		}
		if _, ok := orcherr.As(err); !ok {
			return wrapExecErr(err)
		}
		return err
	}

	if cErr := tx.Commit(); cErr != nil {
		return orcherr.Wrap(orcherr.Storage, cErr, "commit transaction")
	}
	return nil
}
