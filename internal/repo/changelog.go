package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/alioshr/task-orchestrator-sub000/internal/orcherr"
	"github.com/alioshr/task-orchestrator-sub000/internal/storage"
	"github.com/alioshr/task-orchestrator-sub000/internal/types"
	"github.com/alioshr/task-orchestrator-sub000/internal/validation"
)

// ChangelogRepo implements the append-only Changelog (spec §4.5). Entries
// are never updated or deleted individually — only as a side effect of
// deleting their Atom/Molecule parent.
type ChangelogRepo struct {
	db storage.Store
}

// NewChangelogRepo builds a ChangelogRepo over db.
func NewChangelogRepo(db storage.Store) *ChangelogRepo { return &ChangelogRepo{db: db} }

// Append validates that the parent and referenced task exist and the
// summary length is in (0, 4096], then inserts the entry.
func (r *ChangelogRepo) Append(ctx context.Context, parentType types.ChangelogParentType, parentID, taskID, summary string) (*types.ChangelogEntry, error) {
	if err := validation.ChangelogSummary(summary); err != nil {
		return nil, err
	}

	var out *types.ChangelogEntry
	err := r.db.RunInTransaction(ctx, func(ctx context.Context, tx storage.Queryer) error {
		if err := checkParentExists(ctx, tx, parentType, parentID); err != nil {
			return err
		}
		if err := checkTaskExists(ctx, tx, taskID); err != nil {
			return err
		}

		now := r.db.Now()
		id := r.db.GenerateID()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO changelog (id, parent_type, parent_id, task_id, summary, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id, parentType, parentID, taskID, summary, now)
		if err != nil {
			return err
		}

		out = &types.ChangelogEntry{ID: id, ParentType: parentType, ParentID: parentID, TaskID: taskID, Summary: summary, CreatedAt: now}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListForParent returns every Changelog entry for (parentType, parentID)
// ordered oldest-first (append-only provenance order).
func (r *ChangelogRepo) ListForParent(ctx context.Context, parentType types.ChangelogParentType, parentID string) ([]types.ChangelogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, parent_type, parent_id, task_id, summary, created_at
		FROM changelog WHERE parent_type = ? AND parent_id = ? ORDER BY created_at
	`, parentType, parentID)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.Storage, err, "list changelog for %s %s", parentType, parentID)
	}
	defer rows.Close()

	var out []types.ChangelogEntry
	for rows.Next() {
		var c types.ChangelogEntry
		if err := rows.Scan(&c.ID, &c.ParentType, &c.ParentID, &c.TaskID, &c.Summary, &c.CreatedAt); err != nil {
			return nil, orcherr.Wrap(orcherr.Storage, err, "scan changelog row")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func checkParentExists(ctx context.Context, tx storage.Queryer, parentType types.ChangelogParentType, parentID string) error {
	table := "atoms"
	if parentType == types.ChangelogParentMolecule {
		table = "molecules"
	}
	var count int
	row := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE id = ?", parentID)
	if err := row.Scan(&count); err != nil {
		return orcherr.Wrap(orcherr.Storage, err, "check changelog parent %s %s", parentType, parentID)
	}
	if count == 0 {
		return orcherr.New(orcherr.NotFound, "%s %s not found", parentType, parentID)
	}
	return nil
}

func checkTaskExists(ctx context.Context, tx storage.Queryer, taskID string) error {
	var id string
	row := tx.QueryRowContext(ctx, `SELECT id FROM tasks WHERE id = ?`, taskID)
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return orcherr.New(orcherr.NotFound, "task %s not found", taskID)
		}
		return orcherr.Wrap(orcherr.Storage, err, "check task %s exists", taskID)
	}
	return nil
}
