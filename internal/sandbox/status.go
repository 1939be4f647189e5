package sandbox

// Status is the engine lifecycle state. Execution is refused in every state
// except Ready; a failed audit can only be crossed with an explicit, logged
// override.
type Status string

const (
	// StatusAuditPending means no audit has run against the current manifest.
	StatusAuditPending Status = "AuditPending"
	// StatusReady means the audit passed (or was explicitly overridden or
	// skipped) and submissions may run.
	StatusReady Status = "Ready"
	// StatusAuditFailed means at least one canary found a hole in the guard.
	StatusAuditFailed Status = "AuditFailed"
	// StatusAborted is terminal; the engine refuses all further work.
	StatusAborted Status = "Aborted"
)
