package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/alioshr/task-orchestrator-sub000/internal/obslog"
	"github.com/alioshr/task-orchestrator-sub000/internal/orcherr"
	"github.com/alioshr/task-orchestrator-sub000/internal/storage"
	"github.com/alioshr/task-orchestrator-sub000/internal/types"
	"github.com/alioshr/task-orchestrator-sub000/internal/validation"
)

// AtomRepo implements the Atom repository (spec §4.5).
type AtomRepo struct {
	db storage.Store
}

// NewAtomRepo builds an AtomRepo over db.
func NewAtomRepo(db storage.Store) *AtomRepo { return &AtomRepo{db: db} }

// AtomCreate carries the fields accepted at creation.
type AtomCreate struct {
	ProjectID     string
	Paths         []string
	Knowledge     string
	RelatedAtoms  []string
	MoleculeID    string
	CreatedByTask string
}

// Create validates field caps and, if MoleculeID is set, that the
// molecule belongs to the same project (INVARIANT_VIOLATION otherwise).
func (r *AtomRepo) Create(ctx context.Context, in AtomCreate) (*types.Atom, error) {
	if err := validation.AtomPaths(in.Paths); err != nil {
		return nil, err
	}
	if err := validation.Knowledge(in.Knowledge); err != nil {
		return nil, err
	}
	if err := validation.RelatedRefs("relatedAtoms", in.RelatedAtoms, types.MaxRelatedAtoms); err != nil {
		return nil, err
	}

	var out *types.Atom
	err := r.db.RunInTransaction(ctx, func(ctx context.Context, tx storage.Queryer) error {
		if in.MoleculeID != "" {
			if err := checkMoleculeProject(ctx, tx, in.MoleculeID, in.ProjectID); err != nil {
				return err
			}
		}

		now := r.db.Now()
		id := r.db.GenerateID()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO atoms (id, project_id, paths, knowledge, related_atoms, molecule_id,
				created_by_task, updated_by_task, version, created_at, modified_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		`, id, in.ProjectID, encodeJSONArray(in.Paths), in.Knowledge, encodeJSONArray(in.RelatedAtoms),
			nullable(in.MoleculeID), nullable(in.CreatedByTask), nullable(in.CreatedByTask), now, now)
		if err != nil {
			return err
		}

		out = &types.Atom{
			ID: id, ProjectID: in.ProjectID, Paths: in.Paths, Knowledge: in.Knowledge,
			RelatedAtoms: in.RelatedAtoms, MoleculeID: in.MoleculeID, CreatedByTask: in.CreatedByTask,
			UpdatedByTask: in.CreatedByTask, Version: 1, CreatedAt: now, ModifiedAt: now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func checkMoleculeProject(ctx context.Context, tx storage.Queryer, moleculeID, projectID string) error {
	var moleculeProject string
	row := tx.QueryRowContext(ctx, `SELECT project_id FROM molecules WHERE id = ?`, moleculeID)
	if err := row.Scan(&moleculeProject); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return orcherr.New(orcherr.NotFound, "molecule %s not found", moleculeID)
		}
		return orcherr.Wrap(orcherr.Storage, err, "load molecule %s", moleculeID)
	}
	if moleculeProject != projectID {
		return orcherr.New(orcherr.InvariantViolation, "molecule %s belongs to a different project than atom", moleculeID)
	}
	return nil
}

// Get fetches one Atom by id.
func (r *AtomRepo) Get(ctx context.Context, id string) (*types.Atom, error) {
	return r.get(ctx, r.db, id)
}

func (r *AtomRepo) get(ctx context.Context, q storage.Queryer, id string) (*types.Atom, error) {
	var a types.Atom
	var paths, related string
	var moleculeID, createdBy, updatedBy sql.NullString

	row := q.QueryRowContext(ctx, `
		SELECT id, project_id, paths, knowledge, related_atoms, molecule_id, created_by_task, updated_by_task, version, created_at, modified_at
		FROM atoms WHERE id = ?
	`, id)
	if err := row.Scan(&a.ID, &a.ProjectID, &paths, &a.Knowledge, &related, &moleculeID, &createdBy, &updatedBy, &a.Version, &a.CreatedAt, &a.ModifiedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, orcherr.New(orcherr.NotFound, "atom %s not found", id)
		}
		return nil, orcherr.Wrap(orcherr.Storage, err, "get atom %s", id)
	}

	a.Paths = decodeJSONArray(paths)
	a.RelatedAtoms = decodeJSONArray(related)
	a.MoleculeID = moleculeID.String
	a.CreatedByTask = createdBy.String
	a.UpdatedByTask = updatedBy.String
	return &a, nil
}

// ListByProject returns every Atom belonging to projectID, for glob lookup
// (spec §4.7: "paths are short lists, total atoms are expected to be
// small").
func (r *AtomRepo) ListByProject(ctx context.Context, projectID string) ([]types.Atom, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, paths, knowledge, related_atoms, molecule_id, created_by_task, updated_by_task, version, created_at, modified_at
		FROM atoms WHERE project_id = ?
	`, projectID)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.Storage, err, "list atoms for project %s", projectID)
	}
	defer rows.Close()

	var out []types.Atom
	for rows.Next() {
		var a types.Atom
		var paths, related string
		var moleculeID, createdBy, updatedBy sql.NullString
		if err := rows.Scan(&a.ID, &a.ProjectID, &paths, &a.Knowledge, &related, &moleculeID, &createdBy, &updatedBy, &a.Version, &a.CreatedAt, &a.ModifiedAt); err != nil {
			return nil, orcherr.Wrap(orcherr.Storage, err, "scan atom row")
		}
		a.Paths = decodeJSONArray(paths)
		a.RelatedAtoms = decodeJSONArray(related)
		a.MoleculeID = moleculeID.String
		a.CreatedByTask = createdBy.String
		a.UpdatedByTask = updatedBy.String
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateKnowledge applies an overwrite or append knowledge-blob update to
// an Atom, mirroring the Molecule behavior (spec §4.5).
func (r *AtomRepo) UpdateKnowledge(ctx context.Context, id string, expectedVersion int, mode types.KnowledgeUpdateMode, text, taskID string) (*types.Atom, error) {
	var out *types.Atom
	err := r.db.RunInTransaction(ctx, func(ctx context.Context, tx storage.Queryer) error {
		current, err := r.get(ctx, tx, id)
		if err != nil {
			return err
		}

		if current.Version != expectedVersion {
			return orcherr.New(orcherr.Conflict, "atom %s version mismatch (expected %d)", id, expectedVersion)
		}
		if isDuplicateKnowledgeUpdate(current.Knowledge, mode, text) {
			obslog.Infof("atom %s: knowledge update resubmits identical content", id)
		}

		newKnowledge := text
		if mode == types.KnowledgeAppend {
			newKnowledge = appendKnowledge(current.Knowledge, text, r.db.Now(), taskID)
		}
		if err := validation.Knowledge(newKnowledge); err != nil {
			return err
		}

		now := r.db.Now()
		res, err := tx.ExecContext(ctx, `
			UPDATE atoms SET knowledge = ?, updated_by_task = ?, version = version + 1, modified_at = ?
			WHERE id = ? AND version = ?
		`, newKnowledge, nullable(taskID), now, id, expectedVersion)
		if err != nil {
			return err
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return orcherr.New(orcherr.Conflict, "atom %s version mismatch (expected %d)", id, expectedVersion)
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

// Delete removes an Atom and its changelog rows.
func (r *AtomRepo) Delete(ctx context.Context, id string) error {
	return r.db.RunInTransaction(ctx, func(ctx context.Context, tx storage.Queryer) error {
		if _, err := r.get(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM changelog WHERE parent_type = ? AND parent_id = ?`, types.ChangelogParentAtom, id); err != nil {
			return orcherr.Wrap(orcherr.Storage, err, "delete changelog for atom %s", id)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM atoms WHERE id = ?`, id); err != nil {
			return orcherr.Wrap(orcherr.Storage, err, "delete atom %s", id)
		}
		return nil
	})
}
