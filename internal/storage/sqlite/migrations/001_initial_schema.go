package migrations

import "context"

const initialSchemaDDL = `
CREATE TABLE IF NOT EXISTS projects (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL UNIQUE,
    summary       TEXT NOT NULL DEFAULT '',
    description   TEXT NOT NULL DEFAULT '',
    legacy_status TEXT NOT NULL DEFAULT '',
    version       INTEGER NOT NULL DEFAULT 1,
    created_at    TEXT NOT NULL,
    modified_at   TEXT NOT NULL,
    search_vector TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_projects_modified_at ON projects(modified_at);

CREATE TABLE IF NOT EXISTS molecules (
    id                 TEXT PRIMARY KEY,
    project_id         TEXT NOT NULL,
    name               TEXT NOT NULL,
    knowledge          TEXT NOT NULL DEFAULT '',
    related_molecules  TEXT NOT NULL DEFAULT '[]',
    version            INTEGER NOT NULL DEFAULT 1,
    created_at         TEXT NOT NULL,
    modified_at        TEXT NOT NULL,
    FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_molecules_project ON molecules(project_id);

CREATE TABLE IF NOT EXISTS features (
    id             TEXT PRIMARY KEY,
    project_id     TEXT,
    name           TEXT NOT NULL,
    summary        TEXT NOT NULL DEFAULT '',
    description    TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL,
    priority       TEXT NOT NULL DEFAULT 'MEDIUM',
    blocked_by     TEXT NOT NULL DEFAULT '[]',
    blocked_reason TEXT NOT NULL DEFAULT '',
    related_to     TEXT NOT NULL DEFAULT '[]',
    version        INTEGER NOT NULL DEFAULT 1,
    created_at     TEXT NOT NULL,
    modified_at    TEXT NOT NULL,
    search_vector  TEXT NOT NULL DEFAULT '',
    FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_features_project ON features(project_id);
CREATE INDEX IF NOT EXISTS idx_features_status ON features(status);
CREATE INDEX IF NOT EXISTS idx_features_created_at ON features(created_at);

CREATE TABLE IF NOT EXISTS tasks (
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
    dependencies   TEXT NOT NULL DEFAULT '[]',
    version        INTEGER NOT NULL DEFAULT 1,
    created_at     TEXT NOT NULL,
    modified_at    TEXT NOT NULL,
    search_vector  TEXT NOT NULL DEFAULT '',
    FOREIGN KEY (feature_id) REFERENCES features(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_tasks_feature ON tasks(feature_id);
CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at);

CREATE TABLE IF NOT EXISTS sections (
    id          TEXT PRIMARY KEY,
    entity_type TEXT NOT NULL,
    entity_id   TEXT NOT NULL,
    title       TEXT NOT NULL,
    usage       TEXT NOT NULL DEFAULT '',
    content     TEXT NOT NULL DEFAULT '',
    format      TEXT NOT NULL DEFAULT 'PLAIN_TEXT',
    ordinal     INTEGER NOT NULL,
    tags        TEXT NOT NULL DEFAULT '',
    version     INTEGER NOT NULL DEFAULT 1,
    created_at  TEXT NOT NULL,
    modified_at TEXT NOT NULL,
    UNIQUE (entity_type, entity_id, ordinal)
);

CREATE INDEX IF NOT EXISTS idx_sections_parent ON sections(entity_type, entity_id);

CREATE TABLE IF NOT EXISTS tags (
    entity_type TEXT NOT NULL,
    entity_id   TEXT NOT NULL,
    tag         TEXT NOT NULL,
    PRIMARY KEY (entity_type, entity_id, tag)
);

CREATE INDEX IF NOT EXISTS idx_tags_tag ON tags(tag);
CREATE INDEX IF NOT EXISTS idx_tags_entity ON tags(entity_type, entity_id);

CREATE TABLE IF NOT EXISTS templates (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    description  TEXT NOT NULL DEFAULT '',
    is_built_in  INTEGER NOT NULL DEFAULT 0,
    is_protected INTEGER NOT NULL DEFAULT 0,
    is_enabled   INTEGER NOT NULL DEFAULT 1,
    version      INTEGER NOT NULL DEFAULT 1,
    created_at   TEXT NOT NULL,
    modified_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS template_sections (
    id          TEXT PRIMARY KEY,
    template_id TEXT NOT NULL,
    title       TEXT NOT NULL,
    usage       TEXT NOT NULL DEFAULT '',
    content     TEXT NOT NULL DEFAULT '',
    format      TEXT NOT NULL DEFAULT 'PLAIN_TEXT',
    ordinal     INTEGER NOT NULL,
    FOREIGN KEY (template_id) REFERENCES templates(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_template_sections_template ON template_sections(template_id);

CREATE TABLE IF NOT EXISTS atoms (
    id               TEXT PRIMARY KEY,
    project_id       TEXT NOT NULL,
    paths            TEXT NOT NULL DEFAULT '[]',
    knowledge        TEXT NOT NULL DEFAULT '',
    related_atoms    TEXT NOT NULL DEFAULT '[]',
    molecule_id      TEXT,
    created_by_task  TEXT,
    updated_by_task  TEXT,
    version          INTEGER NOT NULL DEFAULT 1,
    created_at       TEXT NOT NULL,
    modified_at      TEXT NOT NULL,
    FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE,
    FOREIGN KEY (molecule_id) REFERENCES molecules(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_atoms_project ON atoms(project_id);
CREATE INDEX IF NOT EXISTS idx_atoms_molecule ON atoms(molecule_id);

CREATE TABLE IF NOT EXISTS changelog (
    id          TEXT PRIMARY KEY,
    parent_type TEXT NOT NULL,
    parent_id   TEXT NOT NULL,
    task_id     TEXT NOT NULL,
    summary     TEXT NOT NULL,
    created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_changelog_parent ON changelog(parent_type, parent_id);

CREATE TABLE IF NOT EXISTS _pipeline_config (
    id          INTEGER PRIMARY KEY CHECK (id = 1),
    config_json TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);
`

// InitialSchema creates every table the v1 data model needs. The
// "dependencies" column on tasks is a migration-era leftover (spec §9: "Task-level
// dependencies vs. v3 blockedBy arrays coexist in migration-era data") kept
// only so historical rows populated by a pre-v3 writer remain readable;
// migration #3 is what actually reconciles it against blocked_by.
func InitialSchema(ctx context.Context, db Executor) error {
	_, err := db.ExecContext(ctx, initialSchemaDDL)
	return err
}
