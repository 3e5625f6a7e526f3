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

// TaskRepo is the Task entity repository (spec §4.5).
type TaskRepo struct {
	db storage.Store
}

// NewTaskRepo builds a TaskRepo over db.
func NewTaskRepo(db storage.Store) *TaskRepo { return &TaskRepo{db: db} }

// TaskCreate carries the fields accepted at creation. ProjectID is never
// accepted here — it is derived from the parent Feature (spec §3
// invariant 7).
type TaskCreate struct {
	FeatureID   string
	Name        string
	Summary     string
	Description string
	Priority    types.Priority
	Complexity  int
	Tags        []string
}

// Create validates and inserts a new Task in the pipeline's initial (NEW)
// state at version 1, deriving ProjectID from the parent Feature.
func (r *TaskRepo) Create(ctx context.Context, in TaskCreate) (*types.Task, error) {
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
	complexity := in.Complexity
	if complexity == 0 {
		complexity = 1
	}
	if err := validation.Complexity(complexity); err != nil {
		return nil, err
	}

	var out *types.Task
	err := r.db.RunInTransaction(ctx, func(ctx context.Context, tx storage.Queryer) error {
		var projectID sql.NullString
		row := tx.QueryRowContext(ctx, `SELECT project_id FROM features WHERE id = ?`, in.FeatureID)
		if err := row.Scan(&projectID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return orcherr.New(orcherr.NotFound, "feature %s not found", in.FeatureID)
			}
			return orcherr.Wrap(orcherr.Storage, err, "load parent feature %s", in.FeatureID)
		}

		now := r.db.Now()
		id := r.db.GenerateID()
		vector := entitySearchVector(in.Name, in.Summary, in.Description)

		_, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (id, feature_id, project_id, name, summary, description, status, priority,
				complexity, blocked_by, blocked_reason, related_to, version, created_at, modified_at, search_vector)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, '[]', '', '[]', 1, ?, ?, ?)
		`, id, in.FeatureID, projectID, in.Name, in.Summary, in.Description, types.StatusNew, priority, complexity, now, now, vector)
		if err != nil {
			return err
		}
		if err := replaceTags(ctx, tx, types.EntityTask, id, in.Tags); err != nil {
			return err
		}

		out = &types.Task{
			ID: id, FeatureID: in.FeatureID, ProjectID: projectID.String, Name: in.Name, Summary: in.Summary,
			Description: in.Description, Status: types.StatusNew, Priority: priority, Complexity: complexity,
			Version: 1, CreatedAt: now, ModifiedAt: now, SearchVector: vector, Tags: validation.NormalizeTags(in.Tags),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches one Task by id, including its tags.
func (r *TaskRepo) Get(ctx context.Context, id string) (*types.Task, error) {
	return r.get(ctx, r.db, id)
}

func (r *TaskRepo) get(ctx context.Context, q storage.Queryer, id string) (*types.Task, error) {
	var t types.Task
	var projectID sql.NullString
	var blockedBy, relatedTo string

	row := q.QueryRowContext(ctx, `
		SELECT id, feature_id, project_id, name, summary, description, status, priority, complexity,
			blocked_by, blocked_reason, related_to, version, created_at, modified_at, search_vector
		FROM tasks WHERE id = ?
	`, id)
	if err := row.Scan(&t.ID, &t.FeatureID, &projectID, &t.Name, &t.Summary, &t.Description, &t.Status, &t.Priority,
		&t.Complexity, &blockedBy, &t.BlockedReason, &relatedTo, &t.Version, &t.CreatedAt, &t.ModifiedAt, &t.SearchVector); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, orcherr.New(orcherr.NotFound, "task %s not found", id)
		}
		return nil, orcherr.Wrap(orcherr.Storage, err, "get task %s", id)
	}

	t.ProjectID = projectID.String
	t.BlockedBy = decodeJSONArray(blockedBy)
	t.RelatedTo = decodeJSONArray(relatedTo)

	tags, err := loadTags(ctx, q, types.EntityTask, id)
	if err != nil {
		return nil, err
	}
	t.Tags = tags
	return &t, nil
}

// TaskUpdate carries the optional fields an Update call may change.
type TaskUpdate struct {
	Name        *string
	Summary     *string
	Description *string
	Priority    *types.Priority
	Complexity  *int
	Tags        *[]string
}

// Update applies a TaskUpdate under an optimistic-concurrency check.
// Status changes go through the workflow engine, not this path.
func (r *TaskRepo) Update(ctx context.Context, id string, expectedVersion int, upd TaskUpdate) (*types.Task, error) {
	var out *types.Task
	err := r.db.RunInTransaction(ctx, func(ctx context.Context, tx storage.Queryer) error {
		current, err := r.get(ctx, tx, id)
		if err != nil {
			return err
		}

		name, summary, description := current.Name, current.Summary, current.Description
		priority, complexity := current.Priority, current.Complexity
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
		if upd.Complexity != nil {
			if err := validation.Complexity(*upd.Complexity); err != nil {
				return err
			}
			complexity = *upd.Complexity
		}
		vector := entitySearchVector(name, summary, description)

		now := r.db.Now()
		res, err := tx.ExecContext(ctx, `
			UPDATE tasks SET name = ?, summary = ?, description = ?, priority = ?, complexity = ?,
				version = version + 1, modified_at = ?, search_vector = ?
			WHERE id = ? AND version = ?
		`, name, summary, description, priority, complexity, now, vector, id, expectedVersion)
		if err != nil {
			return err
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return orcherr.New(orcherr.Conflict, "task %s version mismatch (expected %d)", id, expectedVersion)
		}

		if upd.Tags != nil {
			if err := replaceTags(ctx, tx, types.EntityTask, id, *upd.Tags); err != nil {
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

// Delete removes a Task. Tasks have no children of their own kind, so
// cascade only ever touches the task's own sections/tags/relations.
func (r *TaskRepo) Delete(ctx context.Context, id string) error {
	return r.db.RunInTransaction(ctx, func(ctx context.Context, tx storage.Queryer) error {
		if _, err := r.get(ctx, tx, id); err != nil {
			return err
		}
		if err := deleteOwnedRows(ctx, tx, types.EntityTask, id); err != nil {
			return err
		}
		if err := stripRelationReferences(ctx, tx, id, r.db.Now()); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
			return orcherr.Wrap(orcherr.Storage, err, "delete task %s", id)
		}
		return nil
	})
}

// Search lists Tasks matching opts, ordered by created_at descending. Tag
// filtering requires ANY listed tag (spec §9 asymmetry note).
func (r *TaskRepo) Search(ctx context.Context, opts types.SearchOptions) ([]types.Task, error) {
	fragments, args := search.Build(opts, types.EntityTask, false)

	query := `
		SELECT id, feature_id, project_id, name, summary, description, status, priority, complexity,
			blocked_by, blocked_reason, related_to, version, created_at, modified_at, search_vector
		FROM tasks
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
		return nil, orcherr.Wrap(orcherr.Storage, err, "search tasks")
	}
	defer rows.Close()

	var out []types.Task
	for rows.Next() {
		var t types.Task
		var projectID sql.NullString
		var blockedBy, relatedTo string
		if err := rows.Scan(&t.ID, &t.FeatureID, &projectID, &t.Name, &t.Summary, &t.Description, &t.Status, &t.Priority,
			&t.Complexity, &blockedBy, &t.BlockedReason, &relatedTo, &t.Version, &t.CreatedAt, &t.ModifiedAt, &t.SearchVector); err != nil {
			return nil, orcherr.Wrap(orcherr.Storage, err, "scan task row")
		}
		t.ProjectID = projectID.String
		t.BlockedBy = decodeJSONArray(blockedBy)
		t.RelatedTo = decodeJSONArray(relatedTo)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, orcherr.Wrap(orcherr.Storage, err, "iterate task rows")
	}

	for i := range out {
		tags, err := loadTags(ctx, r.db, types.EntityTask, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Tags = tags
	}
	return out, nil
}
