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

// ProjectRepo is the top-level board repository (spec §4.5).
type ProjectRepo struct {
	db storage.Store
}

// NewProjectRepo builds a ProjectRepo over db.
func NewProjectRepo(db storage.Store) *ProjectRepo { return &ProjectRepo{db: db} }

func projectSearchVector(name, summary, description string) string {
	return strings.ToLower(strings.Join([]string{name, summary, description}, " "))
}

// Create validates and inserts a new Project at version 1.
func (r *ProjectRepo) Create(ctx context.Context, name, summary, description string, tags []string) (*types.Project, error) {
	if err := validation.Title("name", name); err != nil {
		return nil, err
	}

	var out *types.Project
	err := r.db.RunInTransaction(ctx, func(ctx context.Context, tx storage.Queryer) error {
		now := r.db.Now()
		id := r.db.GenerateID()
		vector := projectSearchVector(name, summary, description)

		_, err := tx.ExecContext(ctx, `
			INSERT INTO projects (id, name, summary, description, legacy_status, version, created_at, modified_at, search_vector)
			VALUES (?, ?, ?, ?, '', 1, ?, ?, ?)
		`, id, name, summary, description, now, now, vector)
		if err != nil {
			return err
		}

		if err := replaceTags(ctx, tx, types.EntityProject, id, tags); err != nil {
			return err
		}

		p := &types.Project{
			ID: id, Name: name, Summary: summary, Description: description,
			Version: 1, CreatedAt: now, ModifiedAt: now, SearchVector: vector,
			Tags: validation.NormalizeTags(tags),
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches one Project by id, including its tags.
func (r *ProjectRepo) Get(ctx context.Context, id string) (*types.Project, error) {
	return r.get(ctx, r.db, id)
}

func (r *ProjectRepo) get(ctx context.Context, q storage.Queryer, id string) (*types.Project, error) {
	var p types.Project
	row := q.QueryRowContext(ctx, `
		SELECT id, name, summary, description, legacy_status, version, created_at, modified_at, search_vector
		FROM projects WHERE id = ?
	`, id)
	if err := row.Scan(&p.ID, &p.Name, &p.Summary, &p.Description, &p.LegacyStatus, &p.Version, &p.CreatedAt, &p.ModifiedAt, &p.SearchVector); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, orcherr.New(orcherr.NotFound, "project %s not found", id)
		}
		return nil, orcherr.Wrap(orcherr.Storage, err, "get project %s", id)
	}

	tags, err := loadTags(ctx, q, types.EntityProject, id)
	if err != nil {
		return nil, err
	}
	p.Tags = tags
	return &p, nil
}

// ProjectUpdate carries the optional fields an Update call may change; a
// nil pointer means "leave unchanged".
type ProjectUpdate struct {
	Name        *string
	Summary     *string
	Description *string
	Tags        *[]string
}

// Update applies a ProjectUpdate under an optimistic-concurrency check
// against expectedVersion, rebuilding the search vector if any text field
// changed.
func (r *ProjectRepo) Update(ctx context.Context, id string, expectedVersion int, upd ProjectUpdate) (*types.Project, error) {
	var out *types.Project
	err := r.db.RunInTransaction(ctx, func(ctx context.Context, tx storage.Queryer) error {
		current, err := r.get(ctx, tx, id)
		if err != nil {
			return err
		}

		name, summary, description := current.Name, current.Summary, current.Description
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
		vector := projectSearchVector(name, summary, description)

		now := r.db.Now()
		res, err := tx.ExecContext(ctx, `
			UPDATE projects SET name = ?, summary = ?, description = ?, version = version + 1, modified_at = ?, search_vector = ?
			WHERE id = ? AND version = ?
		`, name, summary, description, now, vector, id, expectedVersion)
		if err != nil {
			return err
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return orcherr.New(orcherr.Conflict, "project %s version mismatch (expected %d)", id, expectedVersion)
		}

		if upd.Tags != nil {
			if err := replaceTags(ctx, tx, types.EntityProject, id, *upd.Tags); err != nil {
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

// Delete removes a Project. Refuses with HAS_CHILDREN (count string
// attached) when features exist, unless cascade is true.
func (r *ProjectRepo) Delete(ctx context.Context, id string, cascade bool) error {
	return r.db.RunInTransaction(ctx, func(ctx context.Context, tx storage.Queryer) error {
		if _, err := r.get(ctx, tx, id); err != nil {
			return err
		}

		var featureCount int
		row := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM features WHERE project_id = ?`, id)
		if err := row.Scan(&featureCount); err != nil {
			return orcherr.Wrap(orcherr.Storage, err, "count features for project %s", id)
		}

		if featureCount > 0 {
			if !cascade {
				return orcherr.New(orcherr.HasChildren, "%d feature(s) still exist", featureCount)
			}

			rows, err := tx.QueryContext(ctx, `SELECT id FROM features WHERE project_id = ?`, id)
			if err != nil {
				return orcherr.Wrap(orcherr.Storage, err, "list features for cascade delete of project %s", id)
			}
			var featureIDs []string
			for rows.Next() {
				var fid string
				if err := rows.Scan(&fid); err != nil {
					rows.Close()
					return orcherr.Wrap(orcherr.Storage, err, "scan feature id")
				}
				featureIDs = append(featureIDs, fid)
			}
			rows.Close()

			for _, fid := range featureIDs {
				if err := deleteFeatureCascade(ctx, tx, fid, r.db.Now()); err != nil {
					return err
				}
			}
		}

		if err := deleteOwnedRows(ctx, tx, types.EntityProject, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
			return orcherr.Wrap(orcherr.Storage, err, "delete project %s", id)
		}
		return nil
	})
}

// Search lists Projects matching opts, ordered by modified_at descending
// (spec §4.5: "order by created_at (entities) or modified_at (projects)
// descending"). Tag filtering on Project requires ALL listed tags (spec
// §9 asymmetry note).
func (r *ProjectRepo) Search(ctx context.Context, opts types.SearchOptions) ([]types.Project, error) {
	fragments, args := search.Build(opts, types.EntityProject, true)

	query := `
		SELECT id, name, summary, description, legacy_status, version, created_at, modified_at, search_vector
		FROM projects
	`
	if len(fragments) > 0 {
		query += " WHERE " + strings.Join(fragments, " AND ")
	}
	query += " ORDER BY modified_at DESC "

	pagClause, pagArgs := search.Paginate(opts.Limit, opts.Offset)
	query += pagClause
	args = append(args, pagArgs...)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.Storage, err, "search projects")
	}
	defer rows.Close()

	var out []types.Project
	var ids []string
	for rows.Next() {
		var p types.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Summary, &p.Description, &p.LegacyStatus, &p.Version, &p.CreatedAt, &p.ModifiedAt, &p.SearchVector); err != nil {
			return nil, orcherr.Wrap(orcherr.Storage, err, "scan project row")
		}
		out = append(out, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, orcherr.Wrap(orcherr.Storage, err, "iterate project rows")
	}

	for i := range out {
		tags, err := loadTags(ctx, r.db, types.EntityProject, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Tags = tags
	}
	return out, nil
}
