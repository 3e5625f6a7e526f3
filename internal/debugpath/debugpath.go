// Package debugpath prints resolved storage paths to stderr when
// TASK_ORCHESTRATOR_DEBUG_PATHS=1 is set, mirroring the teacher's
// internal/debug gated-print idiom (no-op unless explicitly enabled).
package debugpath

import (
	"fmt"
	"os"
)

const envVar = "TASK_ORCHESTRATOR_DEBUG_PATHS"

// Enabled reports whether debug path printing is turned on.
func Enabled() bool {
	return os.Getenv(envVar) == "1"
}

// Printf writes a formatted diagnostic line to stderr, but only when
// Enabled() is true.
func Printf(format string, args ...any) {
	if !Enabled() {
		return
	}
	fmt.Fprintf(os.Stderr, format, args...)
}
