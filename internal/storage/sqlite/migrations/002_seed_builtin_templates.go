package migrations

import (
	"context"
	"time"
)

// SeedBuiltinTemplates inserts the default, protected "Standard Task"
// template shipped with the engine. Mirrors the teacher's built-in-molecule
// seeding in internal/molecules.getBuiltinMolecules, generalized from a
// template-catalog loader to a one-time migration insert since the spec's
// Template entity (§3) lives in SQL rows, not a JSONL catalog file.
func SeedBuiltinTemplates(ctx context.Context, db Executor) error {
	now := time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")

	const templateID = "00000000000000000000000000000001"
	if _, err := db.ExecContext(ctx, `
		INSERT OR IGNORE INTO templates
			(id, name, description, is_built_in, is_protected, is_enabled, version, created_at, modified_at)
		VALUES (?, ?, ?, 1, 1, 1, 1, ?, ?)
	`, templateID, "Standard Task", "Default section scaffold for tasks.", now, now); err != nil {
		return err
	}

	sections := []struct {
		id, title, usage, content string
		ordinal                   int
	}{
		{"00000000000000000000000000000011", "Context", "Why this task exists", "", 0},
		{"00000000000000000000000000000012", "Approach", "How it will be implemented", "", 1},
		{"00000000000000000000000000000013", "Verification", "How completion will be checked", "", 2},
	}
	for _, sec := range sections {
		if _, err := db.ExecContext(ctx, `
			INSERT OR IGNORE INTO template_sections
				(id, template_id, title, usage, content, format, ordinal)
			VALUES (?, ?, ?, ?, ?, 'PLAIN_TEXT', ?)
		`, sec.id, templateID, sec.title, sec.usage, sec.content, sec.ordinal); err != nil {
			return err
		}
	}

	return nil
}
