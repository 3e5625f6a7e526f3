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

// TemplateRepo manages Templates and their TemplateSections, and applies a
// template's sections onto a target entity's section list (spec §3:
// "applying a template clones its sections into the target's section
// list").
type TemplateRepo struct {
	db       storage.Store
	sections *SectionRepo
}

// NewTemplateRepo builds a TemplateRepo over db.
func NewTemplateRepo(db storage.Store) *TemplateRepo {
	return &TemplateRepo{db: db, sections: NewSectionRepo(db)}
}

// Create inserts a new, enabled, non-built-in Template.
func (r *TemplateRepo) Create(ctx context.Context, name, description string) (*types.Template, error) {
	if err := validation.Title("name", name); err != nil {
		return nil, err
	}

	now := r.db.Now()
	id := r.db.GenerateID()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO templates (id, name, description, is_built_in, is_protected, is_enabled, version, created_at, modified_at)
		VALUES (?, ?, ?, 0, 0, 1, 1, ?, ?)
	`, id, name, description, now, now)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.Storage, err, "insert template")
	}

	return &types.Template{ID: id, Name: name, Description: description, IsEnabled: true, Version: 1, CreatedAt: now, ModifiedAt: now}, nil
}

// Get fetches one Template by id.
func (r *TemplateRepo) Get(ctx context.Context, id string) (*types.Template, error) {
	var t types.Template
	var isBuiltIn, isProtected, isEnabled int
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, is_built_in, is_protected, is_enabled, version, created_at, modified_at
		FROM templates WHERE id = ?
	`, id)
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &isBuiltIn, &isProtected, &isEnabled, &t.Version, &t.CreatedAt, &t.ModifiedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, orcherr.New(orcherr.NotFound, "template %s not found", id)
		}
		return nil, orcherr.Wrap(orcherr.Storage, err, "get template %s", id)
	}
	t.IsBuiltIn, t.IsProtected, t.IsEnabled = isBuiltIn != 0, isProtected != 0, isEnabled != 0
	return &t, nil
}

// ListSections returns a Template's TemplateSections ordered by ordinal.
func (r *TemplateRepo) ListSections(ctx context.Context, templateID string) ([]types.TemplateSection, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, template_id, title, usage, content, format, ordinal
		FROM template_sections WHERE template_id = ? ORDER BY ordinal
	`, templateID)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.Storage, err, "list template sections for %s", templateID)
	}
	defer rows.Close()

	var out []types.TemplateSection
	for rows.Next() {
		var ts types.TemplateSection
		if err := rows.Scan(&ts.ID, &ts.TemplateID, &ts.Title, &ts.Usage, &ts.Content, &ts.Format, &ts.Ordinal); err != nil {
			return nil, orcherr.Wrap(orcherr.Storage, err, "scan template section row")
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

// AddSection appends a new TemplateSection to a non-protected Template.
func (r *TemplateRepo) AddSection(ctx context.Context, templateID, title, usage, content string, format types.ContentFormat) (*types.TemplateSection, error) {
	tmpl, err := r.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if tmpl.IsProtected {
		return nil, orcherr.New(orcherr.Validation, "template %s is protected and cannot be modified", templateID)
	}
	if format == "" {
		format = types.FormatPlainText
	}

	var max sql.NullInt64
	row := r.db.QueryRowContext(ctx, `SELECT MAX(ordinal) FROM template_sections WHERE template_id = ?`, templateID)
	if err := row.Scan(&max); err != nil {
		return nil, orcherr.Wrap(orcherr.Storage, err, "compute next template section ordinal")
	}
	ordinal := 0
	if max.Valid {
		ordinal = int(max.Int64) + 1
	}

	id := r.db.GenerateID()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO template_sections (id, template_id, title, usage, content, format, ordinal)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, templateID, title, usage, content, format, ordinal)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.Storage, err, "insert template section")
	}

	return &types.TemplateSection{ID: id, TemplateID: templateID, Title: title, Usage: usage, Content: content, Format: format, Ordinal: ordinal}, nil
}

// Apply clones every section of templateID onto (entityType, entityID),
// appending after whatever sections already exist there.
func (r *TemplateRepo) Apply(ctx context.Context, templateID string, entityType types.EntityType, entityID string) ([]types.Section, error) {
	tmpl, err := r.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if !tmpl.IsEnabled {
		return nil, orcherr.New(orcherr.Validation, "template %s is disabled", templateID)
	}

	tmplSections, err := r.ListSections(ctx, templateID)
	if err != nil {
		return nil, err
	}

	var out []types.Section
	for _, ts := range tmplSections {
		sec, err := r.sections.Add(ctx, entityType, entityID, ts.Title, ts.Usage, ts.Content, ts.Format, nil, "")
		if err != nil {
			return nil, err
		}
		out = append(out, *sec)
	}
	return out, nil
}
