package repo

import (
	"context"

	"github.com/alioshr/task-orchestrator-sub000/internal/orcherr"
	"github.com/alioshr/task-orchestrator-sub000/internal/storage"
	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

// deleteOwnedRows removes an entity's sections and tags — the cleanup
// every entity kind needs before (or instead of) deleting its own row,
// per spec §3 invariant 6.
func deleteOwnedRows(ctx context.Context, tx storage.Queryer, entityType types.EntityType, entityID string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE entity_type = ? AND entity_id = ?`, entityType, entityID); err != nil {
		return orcherr.Wrap(orcherr.Storage, err, "delete sections for %s %s", entityType, entityID)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE entity_type = ? AND entity_id = ?`, entityType, entityID); err != nil {
		return orcherr.Wrap(orcherr.Storage, err, "delete tags for %s %s", entityType, entityID)
	}
	return nil
}

// stripRelationReferences removes entityID from every blockedBy/relatedTo
// array across features and tasks, both sides of the relation (spec §3
// invariant 6: "removes ... any dependency/relation rows in which it
// appears (either side)").
func stripRelationReferences(ctx context.Context, tx storage.Queryer, entityID, now string) error {
	for _, table := range []string{"features", "tasks"} {
		if err := stripRelationColumn(ctx, tx, table, "blocked_by", entityID, now); err != nil {
			return err
		}
		if err := stripRelationColumn(ctx, tx, table, "related_to", entityID, now); err != nil {
			return err
		}
	}
	return nil
}

func stripRelationColumn(ctx context.Context, tx storage.Queryer, table, column, entityID, now string) error {
	rows, err := tx.QueryContext(ctx, "SELECT id, "+column+" FROM "+table+" WHERE "+column+" LIKE '%' || ? || '%'", entityID)
	if err != nil {
		return orcherr.Wrap(orcherr.Storage, err, "scan %s.%s for relation cleanup", table, column)
	}

	type row struct {
		id  string
		raw string
	}
	var candidates []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.raw); err != nil {
			rows.Close()
			return orcherr.Wrap(orcherr.Storage, err, "scan %s.%s row", table, column)
		}
		candidates = append(candidates, r)
	}
	rows.Close()

	for _, c := range candidates {
		items := decodeJSONArray(c.raw)
		filtered := items[:0]
		changed := false
		for _, item := range items {
			if item == entityID {
				changed = true
				continue
			}
			filtered = append(filtered, item)
		}
		if !changed {
			continue
		}
		if _, err := tx.ExecContext(ctx, "UPDATE "+table+" SET "+column+" = ?, version = version + 1, modified_at = ? WHERE id = ?", encodeJSONArray(filtered), now, c.id); err != nil {
			return orcherr.Wrap(orcherr.Storage, err, "strip %s reference from %s.%s", entityID, table, column)
		}
	}
	return nil
}
