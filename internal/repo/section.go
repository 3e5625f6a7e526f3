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

// SectionRepo implements the Section-specific operations of spec §4.5.
type SectionRepo struct {
	db storage.Store
}

// NewSectionRepo builds a SectionRepo over db.
func NewSectionRepo(db storage.Store) *SectionRepo { return &SectionRepo{db: db} }

// Add inserts a new Section under (entityType, entityID). If ordinal is
// nil, it is assigned max(ordinal)+1 (0 for the first). An explicit,
// already-taken ordinal fails CONFLICT.
func (r *SectionRepo) Add(ctx context.Context, entityType types.EntityType, entityID, title, usage, content string, format types.ContentFormat, ordinal *int, tags string) (*types.Section, error) {
	if err := validation.Title("title", title); err != nil {
		return nil, err
	}
	if format == "" {
		format = types.FormatPlainText
	}
	if err := validation.ContentFormat(format); err != nil {
		return nil, err
	}

	var out *types.Section
	err := r.db.RunInTransaction(ctx, func(ctx context.Context, tx storage.Queryer) error {
		resolved := 0
		if ordinal != nil {
			resolved = *ordinal
			var exists int
			row := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sections WHERE entity_type = ? AND entity_id = ? AND ordinal = ?`, entityType, entityID, resolved)
			if err := row.Scan(&exists); err != nil {
				return orcherr.Wrap(orcherr.Storage, err, "check ordinal %d taken for %s %s", resolved, entityType, entityID)
			}
			if exists > 0 {
				return orcherr.New(orcherr.Conflict, "ordinal %d already in use under %s %s", resolved, entityType, entityID)
			}
		} else {
			var max sql.NullInt64
			row := tx.QueryRowContext(ctx, `SELECT MAX(ordinal) FROM sections WHERE entity_type = ? AND entity_id = ?`, entityType, entityID)
			if err := row.Scan(&max); err != nil {
				return orcherr.Wrap(orcherr.Storage, err, "compute next ordinal for %s %s", entityType, entityID)
			}
			if max.Valid {
				resolved = int(max.Int64) + 1
			}
		}

		now := r.db.Now()
		id := r.db.GenerateID()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sections (id, entity_type, entity_id, title, usage, content, format, ordinal, tags, version, created_at, modified_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		`, id, entityType, entityID, title, usage, content, format, resolved, tags, now, now)
		if err != nil {
			return err
		}

		out = &types.Section{
			ID: id, EntityType: entityType, EntityID: entityID, Title: title, Usage: usage,
			Content: content, Format: format, Ordinal: resolved, Tags: tags, Version: 1, CreatedAt: now, ModifiedAt: now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches one Section by id.
func (r *SectionRepo) Get(ctx context.Context, id string) (*types.Section, error) {
	return r.get(ctx, r.db, id)
}

func (r *SectionRepo) get(ctx context.Context, q storage.Queryer, id string) (*types.Section, error) {
	var s types.Section
	row := q.QueryRowContext(ctx, `
		SELECT id, entity_type, entity_id, title, usage, content, format, ordinal, tags, version, created_at, modified_at
		FROM sections WHERE id = ?
	`, id)
	if err := row.Scan(&s.ID, &s.EntityType, &s.EntityID, &s.Title, &s.Usage, &s.Content, &s.Format, &s.Ordinal, &s.Tags, &s.Version, &s.CreatedAt, &s.ModifiedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, orcherr.New(orcherr.NotFound, "section %s not found", id)
		}
		return nil, orcherr.Wrap(orcherr.Storage, err, "get section %s", id)
	}
	return &s, nil
}

// List returns all Sections under (entityType, entityID) ordered by
// ordinal.
func (r *SectionRepo) List(ctx context.Context, entityType types.EntityType, entityID string) ([]types.Section, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, entity_type, entity_id, title, usage, content, format, ordinal, tags, version, created_at, modified_at
		FROM sections WHERE entity_type = ? AND entity_id = ? ORDER BY ordinal
	`, entityType, entityID)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.Storage, err, "list sections for %s %s", entityType, entityID)
	}
	defer rows.Close()

	var out []types.Section
	for rows.Next() {
		var s types.Section
		if err := rows.Scan(&s.ID, &s.EntityType, &s.EntityID, &s.Title, &s.Usage, &s.Content, &s.Format, &s.Ordinal, &s.Tags, &s.Version, &s.CreatedAt, &s.ModifiedAt); err != nil {
			return nil, orcherr.Wrap(orcherr.Storage, err, "scan section row")
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpdateText is the targeted path updating only content, version and
// modified_at.
func (r *SectionRepo) UpdateText(ctx context.Context, id, content string, expectedVersion int) (*types.Section, error) {
	var out *types.Section
	err := r.db.RunInTransaction(ctx, func(ctx context.Context, tx storage.Queryer) error {
		now := r.db.Now()
		res, err := tx.ExecContext(ctx, `
			UPDATE sections SET content = ?, version = version + 1, modified_at = ? WHERE id = ? AND version = ?
		`, content, now, id, expectedVersion)
		if err != nil {
			return err
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			if _, err := r.get(ctx, tx, id); err != nil {
				return err
			}
			return orcherr.New(orcherr.Conflict, "section %s version mismatch (expected %d)", id, expectedVersion)
		}
		refreshed, err := r.get(ctx, tx, id)
		if err != nil {
			return err
		}
		out = refreshed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Reorder assigns ordinals 0..len(orderedIDs)-1 to the given ids in order,
// failing (and rolling back entirely) if any id does not belong to parent.
// Ordinals are staged through negative placeholders first: the
// UNIQUE(entity_type, entity_id, ordinal) constraint is checked per
// statement (SQLite has no deferrable unique constraints), so writing
// final values directly would collide whenever two sections swap
// positions.
func (r *SectionRepo) Reorder(ctx context.Context, entityType types.EntityType, entityID string, orderedIDs []string) error {
	return r.db.RunInTransaction(ctx, func(ctx context.Context, tx storage.Queryer) error {
		for i, id := range orderedIDs {
			res, err := tx.ExecContext(ctx, `
				UPDATE sections SET ordinal = ? WHERE id = ? AND entity_type = ? AND entity_id = ?
			`, -(i + 1), id, entityType, entityID)
			if err != nil {
				return orcherr.Wrap(orcherr.Storage, err, "stage reorder of section %s", id)
			}
			if rows, _ := res.RowsAffected(); rows == 0 {
				return orcherr.New(orcherr.Validation, "section %s does not belong to %s %s", id, entityType, entityID)
			}
		}
		for i, id := range orderedIDs {
			if _, err := tx.ExecContext(ctx, `
				UPDATE sections SET ordinal = ? WHERE id = ? AND entity_type = ? AND entity_id = ?
			`, i, id, entityType, entityID); err != nil {
				return orcherr.Wrap(orcherr.Storage, err, "reorder section %s", id)
			}
		}
		return nil
	})
}

// BulkDelete removes every section whose id is in ids, in one transaction.
func (r *SectionRepo) BulkDelete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.RunInTransaction(ctx, func(ctx context.Context, tx storage.Queryer) error {
		placeholders := ""
		args := make([]any, len(ids))
		for i, id := range ids {
			if i > 0 {
				placeholders += ","
			}
			placeholders += "?"
			args[i] = id
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM sections WHERE id IN ("+placeholders+")", args...); err != nil {
			return orcherr.Wrap(orcherr.Storage, err, "bulk delete sections")
		}
		return nil
	})
}
