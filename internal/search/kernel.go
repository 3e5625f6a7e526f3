// Package search implements the shared predicate builder used by every
// search* repository entry point (spec §4.9). Grounded on the teacher's
// internal/queries/search.go dynamic-query-building shape (accumulate SQL
// fragments and a parallel args slice, then join), adapted from the
// teacher's FTS5/BM25 machinery (out of scope here per spec's explicit
// Non-goal on full-text ranking) to a parameterized substring-over-a-
// denormalized-column predicate list, per spec §9's "dynamic SQL assembly"
// design note.
package search

import (
	"strings"

	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

// Predicate is one parameterized WHERE fragment and its bind values.
type Predicate struct {
	Fragment string
	Args     []any
}

// Build turns SearchOptions into an ordered predicate list plus a combined
// args slice ready to append after any caller-supplied leading predicates
// (e.g. a hierarchy scope the caller already knows, like "project_id = ?").
// tagAll selects the Project tag semantics (entity must have ALL listed
// tags); false selects the Feature/Task semantics (ANY listed tag) — the
// asymmetry spec §9 records as intentionally preserved, not a bug.
func Build(opts types.SearchOptions, entityType types.EntityType, tagAll bool) ([]string, []any) {
	var fragments []string
	var args []any

	if q := strings.TrimSpace(opts.Query); q != "" {
		fragments = append(fragments, "search_vector LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(strings.ToLower(q))+"%")
	}

	if frag, a := enumFragment("status", opts.Status); frag != "" {
		fragments = append(fragments, frag)
		args = append(args, a...)
	}
	if frag, a := enumFragment("priority", opts.Priority); frag != "" {
		fragments = append(fragments, frag)
		args = append(args, a...)
	}

	if opts.ProjectID != "" {
		fragments = append(fragments, "project_id = ?")
		args = append(args, opts.ProjectID)
	}
	if opts.FeatureID != "" {
		fragments = append(fragments, "feature_id = ?")
		args = append(args, opts.FeatureID)
	}

	if frag, a := tagFragment(opts.Tags, entityType, tagAll); frag != "" {
		fragments = append(fragments, frag)
		args = append(args, a...)
	}

	return fragments, args
}

// Paginate renders the deterministic LIMIT/OFFSET clause. Limit <= 0 means
// "no cap"; negative offsets are clamped to 0.
func Paginate(limit, offset int) (string, []any) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		return "LIMIT -1 OFFSET ?", []any{offset}
	}
	return "LIMIT ? OFFSET ?", []any{limit, offset}
}

func enumFragment(column string, f types.EnumFilter) (string, []any) {
	var parts []string
	var args []any

	if len(f.Include) > 0 {
		parts = append(parts, column+" IN ("+placeholders(len(f.Include))+")")
		for _, v := range f.Include {
			args = append(args, v)
		}
	}
	if len(f.Exclude) > 0 {
		parts = append(parts, column+" NOT IN ("+placeholders(len(f.Exclude))+")")
		for _, v := range f.Exclude {
			args = append(args, v)
		}
	}
	if len(parts) == 0 {
		return "", nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", args
}

// tagFragment builds an EXISTS-based filter against the tags table,
// correlated to the calling query's own "id" column. All semantics
// requires a matching row per listed tag (COUNT DISTINCT equal to the
// number of listed tags); Any semantics requires at least one.
func tagFragment(tags []string, entityType types.EntityType, all bool) (string, []any) {
	if len(tags) == 0 {
		return "", nil
	}

	args := make([]any, 0, len(tags)+2)
	args = append(args, entityType)
	for _, t := range tags {
		args = append(args, t)
	}

	if all {
		args = append(args, len(tags))
		return `(
			SELECT COUNT(DISTINCT tag) FROM tags
			WHERE tags.entity_type = ? AND tags.entity_id = id
			  AND tag IN (` + placeholders(len(tags)) + `)
		) = ?`, args
	}

	return `EXISTS (
		SELECT 1 FROM tags
		WHERE tags.entity_type = ? AND tags.entity_id = id
		  AND tag IN (` + placeholders(len(tags)) + `)
	)`, args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// escapeLike escapes LIKE wildcard characters (%, _, \) in untrusted user
// input before it is wrapped with leading/trailing '%' for substring
// matching (spec §9 design note).
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
