// Package types defines the entity and value types shared by the storage,
// repository, pipeline and workflow layers.
package types

// ContainerType identifies one of the three status-bearing (or stateless,
// for Project) hierarchy levels.
type ContainerType string

const (
	ContainerProject ContainerType = "project"
	ContainerFeature ContainerType = "feature"
	ContainerTask    ContainerType = "task"
)

// EntityType extends ContainerType with the one additional owner (Template)
// a Section can attach to.
type EntityType string

const (
	EntityProject  EntityType = "project"
	EntityFeature  EntityType = "feature"
	EntityTask     EntityType = "task"
	EntityTemplate EntityType = "template"
)

// Status is a member of the closed catalog defined in spec §4.3.
type Status string

const (
	StatusNew              Status = "NEW"
	StatusActive           Status = "ACTIVE"
	StatusToBeTested       Status = "TO_BE_TESTED"
	StatusReadyToProd      Status = "READY_TO_PROD"
	StatusClosed           Status = "CLOSED"
	StatusWillNotImplement Status = "WILL_NOT_IMPLEMENT"
)

// Priority is the fixed three-value priority enum for Features and Tasks.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// ContentFormat is the fixed enum of Section content encodings.
type ContentFormat string

const (
	FormatPlainText ContentFormat = "PLAIN_TEXT"
	FormatMarkdown  ContentFormat = "MARKDOWN"
	FormatJSON      ContentFormat = "JSON"
	FormatCode      ContentFormat = "CODE"
)

// ChangelogParentType is the fixed enum of Changelog parent kinds.
type ChangelogParentType string

const (
	ChangelogParentAtom     ChangelogParentType = "atom"
	ChangelogParentMolecule ChangelogParentType = "molecule"
)

// KnowledgeUpdateMode selects how an Atom/Molecule knowledge blob update is
// applied.
type KnowledgeUpdateMode string

const (
	KnowledgeOverwrite KnowledgeUpdateMode = "overwrite"
	KnowledgeAppend    KnowledgeUpdateMode = "append"
)

// NoOpBlocker is the sentinel blocker value meaning "blocked for a reason
// with no peer entity", per spec §3 invariant 8.
const NoOpBlocker = "NO_OP"

// Project is the top-level board. Stateless in the v3 model; LegacyStatus
// is carried for backward data but never validated (spec §9 open question).
type Project struct {
	ID           string
	Name         string
	Summary      string
	Description  string
	LegacyStatus string
	Version      int
	CreatedAt    string
	ModifiedAt   string
	SearchVector string
	Tags         []string
}

// Feature is owned by a Project (nullable ProjectID allowed for orphans
// created during migration).
type Feature struct {
	ID            string
	ProjectID     string
	Name          string
	Summary       string
	Description   string
	Status        Status
	Priority      Priority
	BlockedBy     []string
	BlockedReason string
	RelatedTo     []string
	Version       int
	CreatedAt     string
	ModifiedAt    string
	SearchVector  string
	Tags          []string
}

// Task is owned by a Feature; ProjectID is derived from the Feature at
// creation time and never user-supplied (spec §3 invariant 7).
type Task struct {
	ID            string
	FeatureID     string
	ProjectID     string
	Name          string
	Summary       string
	Description   string
	Status        Status
	Priority      Priority
	Complexity    int
	BlockedBy     []string
	BlockedReason string
	RelatedTo     []string
	Version       int
	CreatedAt     string
	ModifiedAt    string
	SearchVector  string
	Tags          []string
}

// Section is owned by exactly one entity (Project | Feature | Task |
// Template); (EntityType, EntityID, Ordinal) is unique.
type Section struct {
	ID         string
	EntityType EntityType
	EntityID   string
	Title      string
	Usage      string
	Content    string
	Format     ContentFormat
	Ordinal    int
	Tags       string
	Version    int
	CreatedAt  string
	ModifiedAt string
}

// Template is a blueprint for bulk-creating Sections under a target entity.
type Template struct {
	ID          string
	Name        string
	Description string
	IsBuiltIn   bool
	IsProtected bool
	IsEnabled   bool
	Version     int
	CreatedAt   string
	ModifiedAt  string
}

// TemplateSection is one section blueprint within a Template, cloned into
// the target entity's section list when the template is applied.
type TemplateSection struct {
	ID         string
	TemplateID string
	Title      string
	Usage      string
	Content    string
	Format     ContentFormat
	Ordinal    int
}

// Atom is a knowledge record scoped to a Project: an ordered list of file
// path glob patterns plus an optional knowledge blob.
type Atom struct {
	ID            string
	ProjectID     string
	Paths         []string
	Knowledge     string
	RelatedAtoms  []string
	MoleculeID    string
	CreatedByTask string
	UpdatedByTask string
	Version       int
	CreatedAt     string
	ModifiedAt    string
}

// Molecule groups Atoms within a Project.
type Molecule struct {
	ID               string
	ProjectID        string
	Name             string
	Knowledge        string
	RelatedMolecules []string
	Version          int
	CreatedAt        string
	ModifiedAt       string
}

// ChangelogEntry is an append-only provenance record attached to an Atom or
// Molecule.
type ChangelogEntry struct {
	ID         string
	ParentType ChangelogParentType
	ParentID   string
	TaskID     string
	Summary    string
	CreatedAt  string
}

// Limits mirrors the field-length/count caps from spec §3.
const (
	MaxAtomPaths           = 20
	MaxAtomPathLen         = 512
	MaxKnowledgeBytes      = 32 * 1024
	MaxRelatedAtoms        = 50
	MaxRelatedMolecules    = 50
	MaxMoleculeNameLen     = 255
	MaxChangelogSummaryLen = 4096
)
