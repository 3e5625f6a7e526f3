package workflow

import (
	"context"

	"github.com/alioshr/task-orchestrator-sub000/internal/orcherr"
	"github.com/alioshr/task-orchestrator-sub000/internal/storage"
	"github.com/alioshr/task-orchestrator-sub000/internal/types"
	"github.com/alioshr/task-orchestrator-sub000/internal/validation"
)

// Block implements spec §4.6 "block": adds blockerIDs (peer entity ids, or
// the NO_OP sentinel) to entity/id's blockedBy set. Idempotent — blockers
// already present are not duplicated. reason is required when NO_OP is
// among blockerIDs and is stored as blockedReason.
func (e *Engine) Block(ctx context.Context, entity types.ContainerType, id string, expectedVersion int, blockerIDs []string, reason string) (*types.TransitionResult, error) {
	if len(blockerIDs) == 0 {
		return nil, orcherr.New(orcherr.Validation, "block requires at least one blocker id")
	}
	for _, b := range blockerIDs {
		if err := validation.Blocker(b); err != nil {
			return nil, err
		}
	}
	hasNoOp := containsNoOp(blockerIDs)
	if hasNoOp {
		if err := validation.NonEmptyTrimmed("reason", reason); err != nil {
			return nil, orcherr.New(orcherr.Validation, "blocking with NO_OP requires a non-empty reason")
		}
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

		v := e.validator(entity)
		if v.IsTerminal(row.status) {
			return orcherr.New(orcherr.Validation, "%s %s is in a terminal state and cannot be blocked", entity, id)
		}

		for _, b := range blockerIDs {
			if b == types.NoOpBlocker {
				continue
			}
			if err := assertBlockerNotTerminal(ctx, tx, e, b); err != nil {
				return err
			}
		}

		row.blockedBy = addBlockers(row.blockedBy, blockerIDs)
		if hasNoOp {
			row.blockedReason = reason
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

// assertBlockerNotTerminal refuses a block request whose blocker id names
// an entity already in a terminal state, per spec §4.6: a finished blocker
// can never legitimately block anything.
func assertBlockerNotTerminal(ctx context.Context, tx storage.Queryer, e *Engine, blockerID string) error {
	for _, entity := range []types.ContainerType{types.ContainerFeature, types.ContainerTask} {
		row, err := loadStatusRow(ctx, tx, entity, blockerID)
		if err != nil {
			if orcherr.Is(err, orcherr.NotFound) {
				continue
			}
			return err
		}
		if e.validator(entity).IsTerminal(row.status) {
			return orcherr.New(orcherr.Validation, "blocker %s is in a terminal state and cannot block another entity", blockerID)
		}
		return nil
	}
	return orcherr.New(orcherr.NotFound, "blocker %s not found", blockerID)
}
