package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/alioshr/task-orchestrator-sub000/internal/orcherr"
	"github.com/alioshr/task-orchestrator-sub000/internal/search"
	"github.com/alioshr/task-orchestrator-sub000/internal/storage"
	"github.com/alioshr/task-orchestrator-sub000/internal/types"
	"github.com/alioshr/task-orchestrator-sub000/internal/validation"
)

// FeatureRepo is the Feature entity repository (spec §4.5).
type FeatureRepo struct {
	db storage.Store
}

// NewFeatureRepo builds a FeatureRepo over db.
func NewFeatureRepo(db storage.Store) *FeatureRepo { return &FeatureRepo{db: db} }

func entitySearchVector(name, summary, description string) string {
	return strings.ToLower(strings.Join([]string{name, summary, description}, " "))
}

// FeatureCreate carries the fields accepted at creation.
type FeatureCreate struct {
	ProjectID   string
	Name        string
	Summary     string
	Description string
	Priority    types.Priority
	Tags        []string
}

// Create validates and inserts a new Feature in the pipeline's initial
// (NEW) state at version 1.
func (r *FeatureRepo) Create(ctx context.Context, in FeatureCreate) (*types.Feature, error) {
	if err := validation.Title("name", in.Name); err != nil {
		return nil, err
	}
	priority := in.Priority
	if priority == "" {
		priority = types.PriorityMedium
	}
	if err := validation.Priority(priority); err != nil {
		return nil, err
	}

	var out *types.Feature
	err := r.db.RunInTransaction(ctx, func(ctx context.Context, tx storage.Queryer) error {
		now := r.db.Now()
		id := r.db.GenerateID()
		vector := entitySearchVector(in.Name, in.Summary, in.Description)

		_, err := tx.ExecContext(ctx, `
			INSERT INTO features (id, project_id, name, summary, description, status, priority,
				blocked_by, blocked_reason, related_to, version, created_at, modified_at, search_vector)
			VALUES (?, ?, ?, ?, ?, ?, ?, '[]', '', '[]', 1, ?, ?, ?)
		`, id, nullable(in.ProjectID), in.Name, in.Summary, in.Description, types.StatusNew, priority, now, now, vector)
		if err != nil {
			return err
		}
		if err := replaceTags(ctx, tx, types.EntityFeature, id, in.Tags); err != nil {
			return err
		}

		out = &types.Feature{
			ID: id, ProjectID: in.ProjectID, Name: in.Name, Summary: in.Summary, Description: in.Description,
			Status: types.StatusNew, Priority: priority, Version: 1, CreatedAt: now, ModifiedAt: now,
			SearchVector: vector, Tags: validation.NormalizeTags(in.Tags),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches one Feature by id, including its tags.
func (r *FeatureRepo) Get(ctx context.Context, id string) (*types.Feature, error) {
	return r.get(ctx, r.db, id)
}

func (r *FeatureRepo) get(ctx context.Context, q storage.Queryer, id string) (*types.Feature, error) {
	var f types.Feature
	var projectID sql.NullString
	var blockedBy, relatedTo string

	row := q.QueryRowContext(ctx, `
		SELECT id, project_id, name, summary, description, status, priority,
			blocked_by, blocked_reason, related_to, version, created_at, modified_at, search_vector
		FROM features WHERE id = ?
	`, id)
	if err := row.Scan(&f.ID, &projectID, &f.Name, &f.Summary, &f.Description, &f.Status, &f.Priority,
		&blockedBy, &f.BlockedReason, &relatedTo, &f.Version, &f.CreatedAt, &f.ModifiedAt, &f.SearchVector); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, orcherr.New(orcherr.NotFound, "feature %s not found", id)
		}
		return nil, orcherr.Wrap(orcherr.Storage, err, "get feature %s", id)
	}

	f.ProjectID = projectID.String
	f.BlockedBy = decodeJSONArray(blockedBy)
	f.RelatedTo = decodeJSONArray(relatedTo)

	tags, err := loadTags(ctx, q, types.EntityFeature, id)
	if err != nil {
		return nil, err
	}
	f.Tags = tags
	return &f, nil
}

// FeatureUpdate carries the optional fields an Update call may change.
type FeatureUpdate struct {
	Name        *string
	Summary     *string
	Description *string
	Priority    *types.Priority
	Tags        *[]string
}

// Update applies a FeatureUpdate under an optimistic-concurrency check.
// Status changes go through the workflow engine, not this path.
func (r *FeatureRepo) Update(ctx context.Context, id string, expectedVersion int, upd FeatureUpdate) (*types.Feature, error) {
	var out *types.Feature
	err := r.db.RunInTransaction(ctx, func(ctx context.Context, tx storage.Queryer) error {
		current, err := r.get(ctx, tx, id)
		if err != nil {
			return err
		}

		name, summary, description, priority := current.Name, current.Summary, current.Description, current.Priority
		if upd.Name != nil {
			if err := validation.Title("name", *upd.Name); err != nil {
				return err
			}
			name = *upd.Name
		}
		if upd.Summary != nil {
			summary = *upd.Summary
		}
		if upd.Description != nil {
			description = *upd.Description
		}
		if upd.Priority != nil {
			if err := validation.Priority(*upd.Priority); err != nil {
				return err
			}
			priority = *upd.Priority
		}
		vector := entitySearchVector(name, summary, description)

		now := r.db.Now()
		res, err := tx.ExecContext(ctx, `
			UPDATE features SET name = ?, summary = ?, description = ?, priority = ?, version = version + 1,
				modified_at = ?, search_vector = ?
			WHERE id = ? AND version = ?
		`, name, summary, description, priority, now, vector, id, expectedVersion)
		if err != nil {
			return err
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return orcherr.New(orcherr.Conflict, "feature %s version mismatch (expected %d)", id, expectedVersion)
		}

		if upd.Tags != nil {
			if err := replaceTags(ctx, tx, types.EntityFeature, id, *upd.Tags); err != nil {
				return err
			}
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

// Delete removes a Feature. Refuses with HAS_CHILDREN when tasks exist
// unless cascade is true.
func (r *FeatureRepo) Delete(ctx context.Context, id string, cascade bool) error {
	return r.db.RunInTransaction(ctx, func(ctx context.Context, tx storage.Queryer) error {
		if _, err := r.get(ctx, tx, id); err != nil {
			return err
		}

		var taskCount int
		row := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE feature_id = ?`, id)
		if err := row.Scan(&taskCount); err != nil {
			return orcherr.Wrap(orcherr.Storage, err, "count tasks for feature %s", id)
		}
		if taskCount > 0 && !cascade {
			return orcherr.New(orcherr.HasChildren, "%d task(s) still exist", taskCount)
		}

		return deleteFeatureCascade(ctx, tx, id, r.db.Now())
	})
}

// deleteFeatureCascade deletes a feature and, child-first, every task it
// owns, along with each entity's sections/tags and any relation references
// to it (spec §3 invariant 6).
func deleteFeatureCascade(ctx context.Context, tx storage.Queryer, featureID, now string) error {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM tasks WHERE feature_id = ?`, featureID)
	if err != nil {
		return orcherr.Wrap(orcherr.Storage, err, "list tasks for cascade delete of feature %s", featureID)
	}
	var taskIDs []string
	for rows.Next() {
		var tid string
		if err := rows.Scan(&tid); err != nil {
			rows.Close()
			return orcherr.Wrap(orcherr.Storage, err, "scan task id")
		}
		taskIDs = append(taskIDs, tid)
	}
	rows.Close()

	for _, tid := range taskIDs {
		if err := deleteOwnedRows(ctx, tx, types.EntityTask, tid); err != nil {
			return err
		}
		if err := stripRelationReferences(ctx, tx, tid, now); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, tid); err != nil {
			return orcherr.Wrap(orcherr.Storage, err, "delete task %s", tid)
		}
	}

	if err := deleteOwnedRows(ctx, tx, types.EntityFeature, featureID); err != nil {
		return err
	}
	if err := stripRelationReferences(ctx, tx, featureID, now); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM features WHERE id = ?`, featureID); err != nil {
		return orcherr.Wrap(orcherr.Storage, err, "delete feature %s", featureID)
	}
	return nil
}

// Search lists Features matching opts, ordered by created_at descending.
// Tag filtering requires ANY listed tag (spec §9 asymmetry note).
func (r *FeatureRepo) Search(ctx context.Context, opts types.SearchOptions) ([]types.Feature, error) {
	fragments, args := search.Build(opts, types.EntityFeature, false)

	query := `
		SELECT id, project_id, name, summary, description, status, priority,
			blocked_by, blocked_reason, related_to, version, created_at, modified_at, search_vector
		FROM features
	`
	if len(fragments) > 0 {
		query += " WHERE " + strings.Join(fragments, " AND ")
	}
	query += " ORDER BY created_at DESC "

	pagClause, pagArgs := search.Paginate(opts.Limit, opts.Offset)
	query += pagClause
	args = append(args, pagArgs...)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.Storage, err, "search features")
	}
	defer rows.Close()

	var out []types.Feature
	for rows.Next() {
		var f types.Feature
		var projectID sql.NullString
		var blockedBy, relatedTo string
		if err := rows.Scan(&f.ID, &projectID, &f.Name, &f.Summary, &f.Description, &f.Status, &f.Priority,
			&blockedBy, &f.BlockedReason, &relatedTo, &f.Version, &f.CreatedAt, &f.ModifiedAt, &f.SearchVector); err != nil {
			return nil, orcherr.Wrap(orcherr.Storage, err, "scan feature row")
		}
		f.ProjectID = projectID.String
		f.BlockedBy = decodeJSONArray(blockedBy)
		f.RelatedTo = decodeJSONArray(relatedTo)
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, orcherr.Wrap(orcherr.Storage, err, "iterate feature rows")
	}

	for i := range out {
		tags, err := loadTags(ctx, r.db, types.EntityFeature, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Tags = tags
	}
	return out, nil
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
