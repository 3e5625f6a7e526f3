// Package workflow implements the transition operations of spec §4.6:
// advance, revert, terminate, block, unblock — each running inside one
// transaction with optimistic concurrency, blocker bookkeeping, and
// parent/child cascades. Grounded on the repo package's transactional
// update style (explicit column-list UPDATE + RowsAffected-based conflict
// detection), generalized here across the two status-bearing tables
// (features, tasks) via a small table-driven row accessor rather than
// duplicating the five operations once per entity kind.
package workflow

import (
	"context"
	"database/sql"
	"errors"

	"github.com/alioshr/task-orchestrator-sub000/internal/jsonarr"
	"github.com/alioshr/task-orchestrator-sub000/internal/orcherr"
	"github.com/alioshr/task-orchestrator-sub000/internal/storage"
	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

// statusRow is the subset of a Feature or Task's columns the workflow
// engine reads and writes, independent of which table backs it.
type statusRow struct {
	id            string
	featureID     string // set only for tasks; identifies the parent to cascade into
	status        types.Status
	blockedBy     []string
	blockedReason string
	version       int
}

func tableFor(entity types.ContainerType) string {
	if entity == types.ContainerTask {
		return "tasks"
	}
	return "features"
}

func loadStatusRow(ctx context.Context, q storage.Queryer, entity types.ContainerType, id string) (*statusRow, error) {
	table := tableFor(entity)
	columns := "id, status, blocked_by, blocked_reason, version"
	if entity == types.ContainerTask {
		columns = "id, feature_id, status, blocked_by, blocked_reason, version"
	}

	row := q.QueryRowContext(ctx, "SELECT "+columns+" FROM "+table+" WHERE id = ?", id)

	var r statusRow
	var blockedByRaw string
	var err error
	if entity == types.ContainerTask {
		err = row.Scan(&r.id, &r.featureID, &r.status, &blockedByRaw, &r.blockedReason, &r.version)
	} else {
		err = row.Scan(&r.id, &r.status, &blockedByRaw, &r.blockedReason, &r.version)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, orcherr.New(orcherr.NotFound, "%s %s not found", entity, id)
		}
		return nil, orcherr.Wrap(orcherr.Storage, err, "load %s %s", entity, id)
	}

	r.blockedBy = jsonarr.Decode(blockedByRaw)
	return &r, nil
}

// saveStatusRow writes status, blockedBy and blockedReason back under an optimistic
// version check, bumping version by 1. expectedVersion is whatever version
// the caller last observed for this row (it may differ from r.version if
// the row changed earlier in the same transaction).
func saveStatusRow(ctx context.Context, q storage.Queryer, entity types.ContainerType, r *statusRow, expectedVersion int, now string) error {
	table := tableFor(entity)
	res, err := q.ExecContext(ctx, `
		UPDATE `+table+` SET status = ?, blocked_by = ?, blocked_reason = ?, version = version + 1, modified_at = ?
		WHERE id = ? AND version = ?
	`, r.status, jsonarr.Encode(r.blockedBy), r.blockedReason, now, r.id, expectedVersion)
	if err != nil {
		return orcherr.Wrap(orcherr.Storage, err, "save %s %s", entity, r.id)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return orcherr.New(orcherr.Conflict, "%s %s version mismatch (expected %d)", entity, r.id, expectedVersion)
	}
	r.version = expectedVersion + 1
	return nil
}

// dependent is one feature/task whose blockedBy array contains a target id.
type dependent struct {
	id     string
	entity types.ContainerType
}

// findDependentRows returns every feature/task whose blockedBy array
// contains targetID, together with which table each came from.
func findDependentRows(ctx context.Context, q storage.Queryer, targetID string) ([]dependent, error) {
	var out []dependent
	tables := []struct {
		name   string
		entity types.ContainerType
	}{
		{"features", types.ContainerFeature},
		{"tasks", types.ContainerTask},
	}
	for _, t := range tables {
		rows, err := q.QueryContext(ctx, "SELECT id, blocked_by FROM "+t.name+" WHERE blocked_by LIKE '%' || ? || '%'", targetID)
		if err != nil {
			return nil, orcherr.Wrap(orcherr.Storage, err, "scan %s for dependents of %s", t.name, targetID)
		}
		for rows.Next() {
			var id, raw string
			if err := rows.Scan(&id, &raw); err != nil {
				rows.Close()
				return nil, orcherr.Wrap(orcherr.Storage, err, "scan dependent row")
			}
			for _, b := range jsonarr.Decode(raw) {
				if b == targetID {
					out = append(out, dependent{id: id, entity: t.entity})
					break
				}
			}
		}
		rows.Close()
	}
	return out, nil
}

// findDependents returns just the ids from findDependentRows, for callers
// that only need the AffectedDependents list (e.g. Terminate).
func findDependents(ctx context.Context, q storage.Queryer, targetID string) ([]string, error) {
	rows, err := findDependentRows(ctx, q, targetID)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.id
	}
	return out, nil
}

func removeBlocker(blockedBy []string, blockerID string) ([]string, bool) {
	out := blockedBy[:0]
	changed := false
	for _, b := range blockedBy {
		if b == blockerID {
			changed = true
			continue
		}
		out = append(out, b)
	}
	return out, changed
}

func addBlockers(blockedBy []string, newBlockers []string) []string {
	seen := make(map[string]bool, len(blockedBy))
	for _, b := range blockedBy {
		seen[b] = true
	}
	out := append([]string{}, blockedBy...)
	for _, b := range newBlockers {
		if !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	}
	return out
}
