package workflow

import (
	"context"

	"github.com/alioshr/task-orchestrator-sub000/internal/orcherr"
	"github.com/alioshr/task-orchestrator-sub000/internal/storage"
	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

// Unblock implements spec §4.6 "unblock": removes blockerIDs (including
// NO_OP) from entity/id's blockedBy set. Idempotent — ids not present are
// silently ignored. blockedReason is cleared once NO_OP is no longer among
// the remaining blockers.
func (e *Engine) Unblock(ctx context.Context, entity types.ContainerType, id string, expectedVersion int, blockerIDs []string) (*types.TransitionResult, error) {
	if len(blockerIDs) == 0 {
		return nil, orcherr.New(orcherr.Validation, "unblock requires at least one blocker id")
	}

	var result *types.TransitionResult
	err := e.db.RunInTransaction(ctx, func(ctx context.Context, tx storage.Queryer) error {
		row, err := loadStatusRow(ctx, tx, entity, id)
		if err != nil {
			return err
		}
		if row.version != expectedVersion {
			return orcherr.New(orcherr.Conflict, "%s %s version mismatch (expected %d)", entity, id, expectedVersion)
		}

		remaining := row.blockedBy
		for _, b := range blockerIDs {
			remaining, _ = removeBlocker(remaining, b)
		}
		row.blockedBy = remaining
		if !containsNoOp(remaining) {
			row.blockedReason = ""
		}

		if err := saveStatusRow(ctx, tx, entity, row, expectedVersion, e.db.Now()); err != nil {
			return err
		}

		result = &types.TransitionResult{From: row.status, To: row.status}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
