// Package result defines the immutable outcome of one sandboxed run.
package result

// ExecutionResult captures everything the scoring layer needs about one run.
// It is produced exactly once per run and never mutated afterwards; in-sandbox
// faults (timeouts, guard trips, resource caps) are normalized into its fields
// instead of surfacing as errors.
type ExecutionResult struct {
	ExitCode          int    `json:"exit_code"`
	Stdout            string `json:"stdout"`
	Stderr            string `json:"stderr"`
	DurationMs        int64  `json:"duration_ms"`
	TimedOut          bool   `json:"timed_out"`
	ResourceViolation bool   `json:"resource_violation"`
}
