// Package validation composes small, single-purpose field checks into
// validator chains, grounded on the teacher's internal/validation/issue.go
// Chain() pattern. Generalized to a generic Validator[T] since this domain
// validates many distinct entity shapes (Project, Feature, Task, Section,
// Atom, Molecule) rather than the teacher's single Issue type.
package validation

import (
	"strings"

	"github.com/alioshr/task-orchestrator-sub000/internal/orcherr"
)

// Validator checks a value of type T and returns a VALIDATION_ERROR-coded
// *orcherr.Error on failure.
type Validator[T any] func(v T) error

// Chain composes validators in order; the first failure short-circuits the
// rest.
func Chain[T any](validators ...Validator[T]) Validator[T] {
	return func(v T) error {
		for _, val := range validators {
			if err := val(v); err != nil {
				return err
			}
		}
		return nil
	}
}

// NonEmptyTrimmed fails if trimming whitespace from field leaves it empty.
func NonEmptyTrimmed(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return orcherr.New(orcherr.Validation, "%s must not be empty", field)
	}
	return nil
}

// MaxLen fails if value exceeds max runes.
func MaxLen(field, value string, max int) error {
	if len([]rune(value)) > max {
		return orcherr.New(orcherr.Validation, "%s must not exceed %d characters", field, max)
	}
	return nil
}

// IntRange fails if value is outside [min, max].
func IntRange(field string, value, min, max int) error {
	if value < min || value > max {
		return orcherr.New(orcherr.Validation, "%s must be between %d and %d", field, min, max)
	}
	return nil
}

// CountRange fails if count is outside [min, max].
func CountRange(field string, count, min, max int) error {
	if count < min || count > max {
		return orcherr.New(orcherr.Validation, "%s must contain between %d and %d entries", field, min, max)
	}
	return nil
}
