package migrations

import "context"

// PipelineV3Refactor rebuilds the tasks table to drop the migration-era
// "dependencies" column, folding any dependency IDs it still carries into
// blocked_by first. Runs with referential checks disabled (NeedsFKDisabled)
// because SQLite's table-rebuild-to-drop-a-column idiom recreates the table
// under a temporary name, which would otherwise trip the tasks->features FK
// mid-rebuild. Grounded on the teacher's migrations package, which performs
// the same "disable FK, rebuild, re-enable" dance for its own schema-refactor
// migrations.
//
// Reconciliation rule (spec §9 open question, decided): where a task has both
// a non-empty legacy dependencies array and a non-empty blocked_by array,
// blocked_by wins and dependencies is discarded; where blocked_by is empty
// and dependencies is not, dependencies becomes the new blocked_by.
func PipelineV3Refactor(ctx context.Context, db Executor) error {
	stmts := []string{
		`CREATE TABLE tasks_v3 (
		    id             TEXT PRIMARY KEY,
		    feature_id     TEXT NOT NULL,
		    project_id     TEXT,
		    name           TEXT NOT NULL,
		    summary        TEXT NOT NULL DEFAULT '',
		    description    TEXT NOT NULL DEFAULT '',
		    status         TEXT NOT NULL,
		    priority       TEXT NOT NULL DEFAULT 'MEDIUM',
		    complexity     INTEGER NOT NULL DEFAULT 1,
		    blocked_by     TEXT NOT NULL DEFAULT '[]',
		    blocked_reason TEXT NOT NULL DEFAULT '',
		    related_to     TEXT NOT NULL DEFAULT '[]',
		    version        INTEGER NOT NULL DEFAULT 1,
		    created_at     TEXT NOT NULL,
		    modified_at    TEXT NOT NULL,
		    search_vector  TEXT NOT NULL DEFAULT '',
		    FOREIGN KEY (feature_id) REFERENCES features(id) ON DELETE CASCADE
		)`,
		`INSERT INTO tasks_v3
		    (id, feature_id, project_id, name, summary, description, status, priority,
		     complexity, blocked_by, blocked_reason, related_to, version, created_at, modified_at, search_vector)
		 SELECT
		    id, feature_id, project_id, name, summary, description, status, priority,
		    complexity,
		    CASE WHEN blocked_by = '[]' AND dependencies != '[]' THEN dependencies ELSE blocked_by END,
		    blocked_reason, related_to, version, created_at, modified_at, search_vector
		 FROM tasks`,
		`DROP TABLE tasks`,
		`ALTER TABLE tasks_v3 RENAME TO tasks`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_feature ON tasks(feature_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
