// Package repo implements the entity repositories (spec §4.5): CRUD for
// Project, Feature, Task, Section, Tag, Atom, Molecule, Changelog and
// Template, enforcing field invariants, optimistic versioning, cascades,
// tag normalization and search-vector maintenance. Grounded on the
// teacher's internal/storage/sqlite/*.go files (issues.go, labels, epics):
// hand-written column-list INSERT/Scan per entity rather than a generic
// queryOne[T]/queryAll[T] (Go's lack of first-class row-to-struct mapping
// without reflection makes the explicit form the idiom the teacher uses
// throughout).
package repo

import "github.com/alioshr/task-orchestrator-sub000/internal/jsonarr"

func encodeJSONArray(items []string) string { return jsonarr.Encode(items) }

func decodeJSONArray(raw string) []string { return jsonarr.Decode(raw) }
