package validation

import (
	"strings"

	"github.com/alioshr/task-orchestrator-sub000/internal/orcherr"
	"github.com/alioshr/task-orchestrator-sub000/internal/types"
)

// Title validates a required entity title/name field (Project.Name,
// Feature.Name, Task.Name, Section.Title, Template.Name). Molecule names
// go through MoleculeName instead.
func Title(field, value string) error {
	return NonEmptyTrimmed(field, value)
}

// Summary validates an entity's free-form summary has a non-empty value
// after trimming. Callers that treat summary as optional should skip this.
func Summary(value string) error {
	return NonEmptyTrimmed("summary", value)
}

// Priority validates a Priority enum value.
func Priority(p types.Priority) error {
	switch p {
	case types.PriorityHigh, types.PriorityMedium, types.PriorityLow:
		return nil
	default:
		return orcherr.New(orcherr.Validation, "priority %q is not a recognized value", p)
	}
}

// ContentFormat validates a Section content format enum value.
func ContentFormat(f types.ContentFormat) error {
	switch f {
	case types.FormatPlainText, types.FormatMarkdown, types.FormatJSON, types.FormatCode:
		return nil
	default:
		return orcherr.New(orcherr.Validation, "content format %q is not a recognized value", f)
	}
}

// Complexity validates a Task's complexity is in 1..10 (spec §3).
func Complexity(c int) error {
	return IntRange("complexity", c, 1, 10)
}

// AtomPaths validates the glob pattern list carried by an Atom: 1..20
// entries, each ≤512 chars, relative (no leading '/'), and not containing
// ".." path-traversal segments (spec §3, §8).
func AtomPaths(paths []string) error {
	if err := CountRange("paths", len(paths), 1, types.MaxAtomPaths); err != nil {
		return err
	}
	for _, p := range paths {
		if err := NonEmptyTrimmed("path", p); err != nil {
			return err
		}
		if err := MaxLen("path", p, types.MaxAtomPathLen); err != nil {
			return err
		}
		if strings.HasPrefix(p, "/") {
			return orcherr.New(orcherr.Validation, "path %q must be relative", p)
		}
		for _, seg := range strings.Split(p, "/") {
			if seg == ".." {
				return orcherr.New(orcherr.Validation, "path %q must not contain '..'", p)
			}
		}
	}
	return nil
}

// RelatedRefs validates a related-atom or related-molecule reference list
// against its spec cap.
func RelatedRefs(field string, refs []string, max int) error {
	if len(refs) > max {
		return orcherr.New(orcherr.Validation, "%s must not exceed %d entries", field, max)
	}
	return nil
}

// Knowledge validates an Atom/Molecule knowledge blob's byte length.
func Knowledge(text string) error {
	if len(text) > types.MaxKnowledgeBytes {
		return orcherr.New(orcherr.Validation, "knowledge must not exceed %d bytes", types.MaxKnowledgeBytes)
	}
	return nil
}

// MoleculeName validates a Molecule's name field.
func MoleculeName(name string) error {
	if err := NonEmptyTrimmed("name", name); err != nil {
		return err
	}
	return MaxLen("name", name, types.MaxMoleculeNameLen)
}

// ChangelogSummary validates a Changelog entry's summary: non-empty and
// within the byte cap (spec §4.5: "summary length is in (0, 4096]").
func ChangelogSummary(summary string) error {
	if err := NonEmptyTrimmed("summary", summary); err != nil {
		return err
	}
	if len(summary) > types.MaxChangelogSummaryLen {
		return orcherr.New(orcherr.Validation, "summary must not exceed %d bytes", types.MaxChangelogSummaryLen)
	}
	return nil
}

// NormalizeTag lowercases and trims a single tag value.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// NormalizeTags normalizes and deduplicates a tag slice, preserving first
// occurrence order (spec §3 invariant 4).
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		n := NormalizeTag(t)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// Blocker validates a single blockedBy entry: either a non-empty peer id or
// the NO_OP sentinel. NO_OP additionally requires a non-empty reason,
// checked by the caller since the reason is carried separately.
func Blocker(id string) error {
	return NonEmptyTrimmed("blocker", id)
}
