package repo

import (
	"context"
	"sort"

	"github.com/alioshr/task-orchestrator-sub000/internal/orcherr"
	"github.com/alioshr/task-orchestrator-sub000/internal/storage"
	"github.com/alioshr/task-orchestrator-sub000/internal/types"
	"github.com/alioshr/task-orchestrator-sub000/internal/validation"
)

// TagRepo implements the tag-specific operations of spec §4.5: listing tag
// usage counts, finding what references a tag, and renaming/merging a tag
// across every entity that carries it.
type TagRepo struct {
	db storage.Store
}

// NewTagRepo builds a TagRepo over db.
func NewTagRepo(db storage.Store) *TagRepo { return &TagRepo{db: db} }

// replaceTags swaps the full tag set for (entityType, entityId) inside the
// caller's transaction, normalizing and deduplicating first (spec §3
// invariant 4: "Writes replace the full tag set for the entity").
func replaceTags(ctx context.Context, tx storage.Queryer, entityType types.EntityType, entityID string, tags []string) error {
	normalized := validation.NormalizeTags(tags)

	if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE entity_type = ? AND entity_id = ?`, entityType, entityID); err != nil {
		return orcherr.Wrap(orcherr.Storage, err, "clear tags for %s %s", entityType, entityID)
	}
	for _, t := range normalized {
		if _, err := tx.ExecContext(ctx, `INSERT INTO tags (entity_type, entity_id, tag) VALUES (?, ?, ?)`, entityType, entityID, t); err != nil {
			return orcherr.Wrap(orcherr.Storage, err, "insert tag %q for %s %s", t, entityType, entityID)
		}
	}
	return nil
}

func loadTags(ctx context.Context, tx storage.Queryer, entityType types.EntityType, entityID string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT tag FROM tags WHERE entity_type = ? AND entity_id = ? ORDER BY tag`, entityType, entityID)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.Storage, err, "load tags for %s %s", entityType, entityID)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, orcherr.Wrap(orcherr.Storage, err, "scan tag")
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// List groups all tags optionally scoped to entityType, counting how many
// rows reference each, sorted by (count desc, tag asc) per spec §4.5.
func (r *TagRepo) List(ctx context.Context, entityType *types.EntityType) ([]types.TagCount, error) {
	query := `SELECT tag, COUNT(*) FROM tags`
	var args []any
	if entityType != nil {
		query += ` WHERE entity_type = ?`
		args = append(args, *entityType)
	}
	query += ` GROUP BY tag`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.Storage, err, "list tags")
	}
	defer rows.Close()

	var out []types.TagCount
	for rows.Next() {
		var tc types.TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, orcherr.Wrap(orcherr.Storage, err, "scan tag count")
		}
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, orcherr.Wrap(orcherr.Storage, err, "iterate tag counts")
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	return out, nil
}

// Usage finds every (entityType, entityId) referencing lower(trim(tag)).
func (r *TagRepo) Usage(ctx context.Context, tag string) ([]types.TagUsage, error) {
	normalized := validation.NormalizeTag(tag)

	rows, err := r.db.QueryContext(ctx, `SELECT entity_type, entity_id FROM tags WHERE tag = ?`, normalized)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.Storage, err, "find tag usage")
	}
	defer rows.Close()

	var out []types.TagUsage
	for rows.Next() {
		var u types.TagUsage
		if err := rows.Scan(&u.EntityType, &u.EntityID); err != nil {
			return nil, orcherr.Wrap(orcherr.Storage, err, "scan tag usage row")
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Rename renames every occurrence of oldTag to newTag, merging (deleting
// the old row) where the target already has newTag. dryRun returns the
// affected usage list without mutating anything.
func (r *TagRepo) Rename(ctx context.Context, oldTag, newTag string, dryRun bool) ([]types.TagUsage, error) {
	oldNorm := validation.NormalizeTag(oldTag)
	newNorm := validation.NormalizeTag(newTag)

	if oldNorm == "" || newNorm == "" {
		return nil, orcherr.New(orcherr.Validation, "tag names must not be empty")
	}
	if oldNorm == newNorm {
		return nil, orcherr.New(orcherr.Validation, "old and new tag names must differ")
	}

	affected, err := r.Usage(ctx, oldNorm)
	if err != nil {
		return nil, err
	}
	if dryRun || len(affected) == 0 {
		return affected, nil
	}

	err = r.db.RunInTransaction(ctx, func(ctx context.Context, tx storage.Queryer) error {
		for _, u := range affected {
			var exists int
			row := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tags WHERE entity_type = ? AND entity_id = ? AND tag = ?`, u.EntityType, u.EntityID, newNorm)
			if err := row.Scan(&exists); err != nil {
				return orcherr.Wrap(orcherr.Storage, err, "check existing tag %q on %s %s", newNorm, u.EntityType, u.EntityID)
			}

			if exists > 0 {
				if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE entity_type = ? AND entity_id = ? AND tag = ?`, u.EntityType, u.EntityID, oldNorm); err != nil {
					return orcherr.Wrap(orcherr.Storage, err, "merge-delete tag %q on %s %s", oldNorm, u.EntityType, u.EntityID)
				}
				continue
			}

			if _, err := tx.ExecContext(ctx, `UPDATE tags SET tag = ? WHERE entity_type = ? AND entity_id = ? AND tag = ?`, newNorm, u.EntityType, u.EntityID, oldNorm); err != nil {
				return orcherr.Wrap(orcherr.Storage, err, "rename tag %q to %q on %s %s", oldNorm, newNorm, u.EntityType, u.EntityID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return affected, nil
}
