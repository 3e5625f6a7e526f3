package workflow

import (
	"context"

	"github.com/alioshr/task-orchestrator-sub000/internal/orcherr"
	"github.com/alioshr/task-orchestrator-sub000/internal/pipeline"
	"github.com/alioshr/task-orchestrator-sub000/internal/storage"
	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

// Engine implements the transition operations of spec §4.6 against the
// locked pipeline Config resolved at bootstrap.
type Engine struct {
	db  storage.Store
	cfg pipeline.Config
}

// NewEngine builds an Engine over db using the resolved pipeline cfg.
func NewEngine(db storage.Store, cfg pipeline.Config) *Engine {
	return &Engine{db: db, cfg: cfg}
}

func (e *Engine) validator(entity types.ContainerType) pipeline.Validator {
	return pipeline.ValidatorFor(e.cfg, entity)
}

// Advance implements spec §4.6 "advance".
func (e *Engine) Advance(ctx context.Context, entity types.ContainerType, id string, expectedVersion int) (*types.TransitionResult, error) {
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
			return orcherr.New(orcherr.Validation, "%s %s is in a terminal state and cannot advance", entity, id)
		}
		if len(row.blockedBy) > 0 {
			return orcherr.New(orcherr.Validation, "%s %s is blocked; unblock or terminate it first", entity, id)
		}

		to := e.cfg.For(entity).Next(row.status)
		if to == "" {
			return orcherr.New(orcherr.Validation, "%s %s has no next state from %s", entity, id, row.status)
		}

		from := row.status
		row.status = to
		now := e.db.Now()
		if err := saveStatusRow(ctx, tx, entity, row, expectedVersion, now); err != nil {
			return err
		}

		result = &types.TransitionResult{From: from, To: to}

		if entity == types.ContainerTask {
			featureTransition, err := applyTaskParentCascades(ctx, tx, e, row.featureID, to)
			if err != nil {
				return err
			}
			result.FeatureTransition = featureTransition
		}

		if v.IsTerminal(to) {
			unblocked, err := autoUnblock(ctx, tx, id, now)
			if err != nil {
				return err
			}
			result.UnblockedEntities = unblocked
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// applyTaskParentCascades implements spec §4.6 steps 6-7 for Task.Advance:
// auto-advance the parent Feature NEW->ACTIVE when the task just became
// ACTIVE, and auto-close the parent Feature when every sibling task is
// terminal and at least one is CLOSED.
func applyTaskParentCascades(ctx context.Context, tx storage.Queryer, e *Engine, featureID string, taskTo types.Status) (string, error) {
	if featureID == "" {
		return "", nil
	}

	feature, err := loadStatusRow(ctx, tx, types.ContainerFeature, featureID)
	if err != nil {
		return "", err
	}

	if taskTo == types.StatusActive && feature.status == types.StatusNew {
		next := e.cfg.For(types.ContainerFeature).Next(feature.status)
		if next == types.StatusActive {
			feature.status = next
			if err := saveStatusRow(ctx, tx, types.ContainerFeature, feature, feature.version, e.db.Now()); err != nil {
				return "", err
			}
			return "feature " + featureID + " auto-advanced to ACTIVE", nil
		}
	}

	if taskTo == types.StatusClosed {
		allTerminal, anyClosed, err := siblingTaskStatus(ctx, tx, e, featureID)
		if err != nil {
			return "", err
		}
		if allTerminal && anyClosed && feature.status != types.StatusClosed {
			feature.status = types.StatusClosed
			if err := saveStatusRow(ctx, tx, types.ContainerFeature, feature, feature.version, e.db.Now()); err != nil {
				return "", err
			}
			return "feature " + featureID + " auto-advanced to CLOSED", nil
		}
	}

	return "", nil
}

func siblingTaskStatus(ctx context.Context, tx storage.Queryer, e *Engine, featureID string) (allTerminal, anyClosed bool, err error) {
	rows, err := tx.QueryContext(ctx, `SELECT status FROM tasks WHERE feature_id = ?`, featureID)
	if err != nil {
		return false, false, orcherr.Wrap(orcherr.Storage, err, "load sibling tasks for feature %s", featureID)
	}
	defer rows.Close()

	v := e.validator(types.ContainerTask)
	allTerminal = true
	for rows.Next() {
		var s types.Status
		if err := rows.Scan(&s); err != nil {
			return false, false, orcherr.Wrap(orcherr.Storage, err, "scan sibling task status")
		}
		if !v.IsTerminal(s) {
			allTerminal = false
		}
		if s == types.StatusClosed {
			anyClosed = true
		}
	}
	return allTerminal, anyClosed, rows.Err()
}

// Revert implements spec §4.6 "revert".
func (e *Engine) Revert(ctx context.Context, entity types.ContainerType, id string, expectedVersion int) (*types.TransitionResult, error) {
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
			return orcherr.New(orcherr.Validation, "%s %s is in a terminal state and cannot revert", entity, id)
		}

		to := e.cfg.For(entity).Prev(row.status)
		if to == "" {
			return orcherr.New(orcherr.Validation, "%s %s is already at the first state", entity, id)
		}

		from := row.status
		row.status = to
		if err := saveStatusRow(ctx, tx, entity, row, expectedVersion, e.db.Now()); err != nil {
			return err
		}

		result = &types.TransitionResult{From: from, To: to}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Terminate implements spec §4.6 "terminate".
func (e *Engine) Terminate(ctx context.Context, entity types.ContainerType, id string, expectedVersion int) (*types.TransitionResult, error) {
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
			return orcherr.New(orcherr.Validation, "%s %s is already in a terminal state", entity, id)
		}

		from := row.status
		row.status = pipeline.ExitState
		if err := saveStatusRow(ctx, tx, entity, row, expectedVersion, e.db.Now()); err != nil {
			return err
		}

		result = &types.TransitionResult{From: from, To: pipeline.ExitState}

		dependents, err := findDependents(ctx, tx, id)
		if err != nil {
			return err
		}
		result.AffectedDependents = dependents

		if entity == types.ContainerTask && row.featureID != "" {
			featureTransition, err := applyTaskParentTerminateCascade(ctx, tx, e, row.featureID)
			if err != nil {
				return err
			}
			result.FeatureTransition = featureTransition
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// applyTaskParentTerminateCascade implements spec §4.6 step 4 for
// Task.Terminate: if all sibling tasks are terminal, set the parent
// Feature to WILL_NOT_IMPLEMENT when all are WILL_NOT_IMPLEMENT, else to
// CLOSED when at least one sibling is CLOSED.
func applyTaskParentTerminateCascade(ctx context.Context, tx storage.Queryer, e *Engine, featureID string) (string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT status FROM tasks WHERE feature_id = ?`, featureID)
	if err != nil {
		return "", orcherr.Wrap(orcherr.Storage, err, "load sibling tasks for feature %s", featureID)
	}
	defer rows.Close()

	v := e.validator(types.ContainerTask)
	allTerminal := true
	anyClosed := false
	allExit := true
	for rows.Next() {
		var s types.Status
		if err := rows.Scan(&s); err != nil {
			return "", orcherr.Wrap(orcherr.Storage, err, "scan sibling task status")
		}
		if !v.IsTerminal(s) {
			allTerminal = false
		}
		if s == types.StatusClosed {
			anyClosed = true
		}
		if s != pipeline.ExitState {
			allExit = false
		}
	}
	if err := rows.Err(); err != nil {
		return "", orcherr.Wrap(orcherr.Storage, err, "iterate sibling tasks")
	}
	if !allTerminal {
		return "", nil
	}

	feature, err := loadStatusRow(ctx, tx, types.ContainerFeature, featureID)
	if err != nil {
		return "", err
	}
	if v.IsTerminal(feature.status) {
		return "", nil
	}

	var to types.Status
	switch {
	case allExit:
		to = pipeline.ExitState
	case anyClosed:
		to = types.StatusClosed
	default:
		return "", nil
	}

	feature.status = to
	if err := saveStatusRow(ctx, tx, types.ContainerFeature, feature, feature.version, e.db.Now()); err != nil {
		return "", err
	}
	return "feature " + featureID + " auto-advanced to " + string(to), nil
}

// autoUnblock implements spec §4.6 step 8, "Completion auto-unblock": find
// every entity listing id in blockedBy and remove it from their set,
// returning the affected ids. Callers only invoke this once id has reached
// a terminal/completion state — advancing through an intermediate state
// must not unblock id's dependents.
func autoUnblock(ctx context.Context, tx storage.Queryer, id string, now string) ([]string, error) {
	dependents, err := findDependentRows(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	var unblocked []string
	for _, dep := range dependents {
		row, err := loadStatusRow(ctx, tx, dep.entity, dep.id)
		if err != nil {
			return nil, err
		}

		filtered, changed := removeBlocker(row.blockedBy, id)
		if !changed {
			continue
		}
		row.blockedBy = filtered
		if !containsNoOp(filtered) {
			row.blockedReason = ""
		}
		if err := saveStatusRow(ctx, tx, dep.entity, row, row.version, now); err != nil {
			return nil, err
		}
		unblocked = append(unblocked, dep.id)
	}
	return unblocked, nil
}

func containsNoOp(blockedBy []string) bool {
	for _, b := range blockedBy {
		if b == types.NoOpBlocker {
			return true
		}
	}
	return false
}
