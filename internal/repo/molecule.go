package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/alioshr/task-orchestrator-sub000/internal/obslog"
	"github.com/alioshr/task-orchestrator-sub000/internal/orcherr"
	"github.com/alioshr/task-orchestrator-sub000/internal/storage"
	"github.com/alioshr/task-orchestrator-sub000/internal/types"
	"github.com/alioshr/task-orchestrator-sub000/internal/validation"
)

// MoleculeRepo implements the Molecule repository (spec §4.5).
type MoleculeRepo struct {
	db storage.Store
}

// NewMoleculeRepo builds a MoleculeRepo over db.
func NewMoleculeRepo(db storage.Store) *MoleculeRepo { return &MoleculeRepo{db: db} }

// Create validates and inserts a new Molecule.
func (r *MoleculeRepo) Create(ctx context.Context, projectID, name, knowledge string, relatedMolecules []string) (*types.Molecule, error) {
	if err := validation.MoleculeName(name); err != nil {
		return nil, err
	}
	if err := validation.Knowledge(knowledge); err != nil {
		return nil, err
	}
	if err := validation.RelatedRefs("relatedMolecules", relatedMolecules, types.MaxRelatedMolecules); err != nil {
		return nil, err
	}

	now := r.db.Now()
	id := r.db.GenerateID()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO molecules (id, project_id, name, knowledge, related_molecules, version, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
	`, id, projectID, name, knowledge, encodeJSONArray(relatedMolecules), now, now)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.Storage, err, "insert molecule")
	}

	return &types.Molecule{
		ID: id, ProjectID: projectID, Name: name, Knowledge: knowledge,
		RelatedMolecules: relatedMolecules, Version: 1, CreatedAt: now, ModifiedAt: now,
	}, nil
}

// Get fetches one Molecule by id.
func (r *MoleculeRepo) Get(ctx context.Context, id string) (*types.Molecule, error) {
	return r.get(ctx, r.db, id)
}

func (r *MoleculeRepo) get(ctx context.Context, q storage.Queryer, id string) (*types.Molecule, error) {
	var m types.Molecule
	var related string
	row := q.QueryRowContext(ctx, `
		SELECT id, project_id, name, knowledge, related_molecules, version, created_at, modified_at
		FROM molecules WHERE id = ?
	`, id)
	if err := row.Scan(&m.ID, &m.ProjectID, &m.Name, &m.Knowledge, &related, &m.Version, &m.CreatedAt, &m.ModifiedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, orcherr.New(orcherr.NotFound, "molecule %s not found", id)
		}
		return nil, orcherr.Wrap(orcherr.Storage, err, "get molecule %s", id)
	}
	m.RelatedMolecules = decodeJSONArray(related)
	return &m, nil
}

// UpdateKnowledge applies an overwrite or append knowledge-blob update
// (spec §4.5: append prefixes the new text with a
// "---[<ISO-timestamp> task:<taskId>]---" separator line).
func (r *MoleculeRepo) UpdateKnowledge(ctx context.Context, id string, expectedVersion int, mode types.KnowledgeUpdateMode, text, taskID string) (*types.Molecule, error) {
	var out *types.Molecule
	err := r.db.RunInTransaction(ctx, func(ctx context.Context, tx storage.Queryer) error {
		current, err := r.get(ctx, tx, id)
		if err != nil {
			return err
		}

		if current.Version != expectedVersion {
			return orcherr.New(orcherr.Conflict, "molecule %s version mismatch (expected %d)", id, expectedVersion)
		}
		if isDuplicateKnowledgeUpdate(current.Knowledge, mode, text) {
			obslog.Infof("molecule %s: knowledge update resubmits identical content", id)
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
			UPDATE molecules SET knowledge = ?, version = version + 1, modified_at = ? WHERE id = ? AND version = ?
		`, newKnowledge, now, id, expectedVersion)
		if err != nil {
			return err
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return orcherr.New(orcherr.Conflict, "molecule %s version mismatch (expected %d)", id, expectedVersion)
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

func appendKnowledge(existing, addition, timestamp, taskID string) string {
	separator := "---[" + timestamp + " task:" + taskID + "]---\n"
	if existing == "" {
		return separator + addition
	}
	return existing + "\n" + separator + addition
}

// isDuplicateKnowledgeUpdate reports whether mode/text resubmits the same
// content already present: an overwrite identical to the current blob, or
// an append whose text hashes the same as the most recently appended
// chunk. The update still applies and version still bumps either way (spec
// §8: every successful UpdateKnowledge call bumps version) — this only
// flags the resubmission for the caller's visibility.
func isDuplicateKnowledgeUpdate(existing string, mode types.KnowledgeUpdateMode, text string) bool {
	if mode == types.KnowledgeOverwrite {
		return hashKnowledge(existing) == hashKnowledge(text)
	}
	return hashKnowledge(lastAppendedChunk(existing)) == hashKnowledge(text)
}

func lastAppendedChunk(existing string) string {
	idx := strings.LastIndex(existing, "\n---[")
	if idx < 0 {
		return existing
	}
	rest := existing[idx+1:]
	nl := strings.Index(rest, "\n")
	if nl < 0 {
		return ""
	}
	return rest[nl+1:]
}

func hashKnowledge(s string) uint64 {
	h, err := hashstructure.Hash(s, hashstructure.FormatV2, nil)
	if err != nil {
		return 0
	}
	return h
}

// Delete removes a Molecule. With cascade=false, member atoms are orphaned
// (molecule_id set to null); with cascade=true, member atoms and their
// changelog rows are removed (spec §4.5).
func (r *MoleculeRepo) Delete(ctx context.Context, id string, cascade bool) error {
	return r.db.RunInTransaction(ctx, func(ctx context.Context, tx storage.Queryer) error {
		if _, err := r.get(ctx, tx, id); err != nil {
			return err
		}

		if !cascade {
			if _, err := tx.ExecContext(ctx, `UPDATE atoms SET molecule_id = NULL WHERE molecule_id = ?`, id); err != nil {
				return orcherr.Wrap(orcherr.Storage, err, "orphan atoms of molecule %s", id)
			}
		} else {
			rows, err := tx.QueryContext(ctx, `SELECT id FROM atoms WHERE molecule_id = ?`, id)
			if err != nil {
				return orcherr.Wrap(orcherr.Storage, err, "list atoms of molecule %s", id)
			}
			var atomIDs []string
			for rows.Next() {
				var aid string
				if err := rows.Scan(&aid); err != nil {
					rows.Close()
					return orcherr.Wrap(orcherr.Storage, err, "scan atom id")
				}
				atomIDs = append(atomIDs, aid)
			}
			rows.Close()

			for _, aid := range atomIDs {
				if _, err := tx.ExecContext(ctx, `DELETE FROM changelog WHERE parent_type = ? AND parent_id = ?`, types.ChangelogParentAtom, aid); err != nil {
					return orcherr.Wrap(orcherr.Storage, err, "delete changelog for atom %s", aid)
				}
				if _, err := tx.ExecContext(ctx, `DELETE FROM atoms WHERE id = ?`, aid); err != nil {
					return orcherr.Wrap(orcherr.Storage, err, "delete atom %s", aid)
				}
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM changelog WHERE parent_type = ? AND parent_id = ?`, types.ChangelogParentMolecule, id); err != nil {
			return orcherr.Wrap(orcherr.Storage, err, "delete changelog for molecule %s", id)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM molecules WHERE id = ?`, id); err != nil {
			return orcherr.Wrap(orcherr.Storage, err, "delete molecule %s", id)
		}
		return nil
	})
}
