// Package jsonarr encodes/decodes the JSON-array TEXT columns used across
// the schema (blockedBy, relatedTo, relatedAtoms, relatedMolecules, paths),
// per spec §6: "Status columns and blockedBy/relatedTo JSON arrays are
// stored as text."
package jsonarr

import "encoding/json"

// Encode renders a string slice as the JSON array text stored in a TEXT
// column. A nil slice encodes as "[]", never SQL NULL.
func Encode(items []string) string {
	if items == nil {
		items = []string{}
	}
	raw, _ := json.Marshal(items)
	return string(raw)
}

// Decode parses a TEXT column back into a string slice. A blank or
// malformed column degrades to nil rather than erroring, since these
// columns are never user-editable outside the repositories that own them.
func Decode(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
