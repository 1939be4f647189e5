// Package limits enforces per-run CPU/memory/file/process caps with
// platform-specific mechanisms: rlimits applied by the sandbox-init helper on
// Linux, kernel job objects on Windows, and an explicit reduced-guarantee
// watchdog fallback everywhere else or when the platform mechanism is
// unavailable.
package limits

import (
	"os"
	"os/exec"

	"aibugbench/internal/sandbox/spec"
)

// Guarantee is the enforcement level a limiter provides. A fallback limiter
// must report GuaranteeReduced; claiming full enforcement it cannot deliver
// is never acceptable.
type Guarantee string

const (
	GuaranteeFull    Guarantee = "full"
	GuaranteeReduced Guarantee = "reduced"
)

// Config controls how limiters are constructed.
type Config struct {
	// HelperPath locates the sandbox-init binary (Linux). Resolved via PATH
	// when relative.
	HelperPath string
	// SeccompProfile is an optional syscall filter profile the helper loads.
	SeccompProfile string
	EnableSeccomp  bool
}

// Limiter enforces resource caps for a single child process. One limiter is
// created per run and closed when the run finishes.
type Limiter interface {
	// Apply configures cmd before it starts (helper wrapping on Linux).
	Apply(cmd *exec.Cmd) error
	// Attach enforces post-start limits on the running process (job object
	// assignment on Windows). It runs immediately after spawn.
	Attach(pid int) error
	// Violation reports whether the exited process was killed or capped by
	// an enforced resource limit.
	Violation(state *os.ProcessState) bool
	// Guarantee reports the enforcement level this limiter provides.
	Guarantee() Guarantee
	// Close releases kernel resources held for the run.
	Close() error
}

// InitRequest is the JSON contract between the engine and the sandbox-init
// helper: the real run spec plus everything the helper applies before exec.
type InitRequest struct {
	RunSpec        spec.RunSpec `json:"RunSpec"`
	SeccompProfile string       `json:"SeccompProfile,omitempty"`
}

type watchdogLimiter struct{}

// NewWatchdog returns the reduced-guarantee fallback: no hard caps, only the
// executor's wall-clock watchdog with full process-tree termination. Callers
// must log the reduced guarantee when selecting it.
func NewWatchdog() Limiter {
	return watchdogLimiter{}
}

func (watchdogLimiter) Apply(*exec.Cmd) error            { return nil }
func (watchdogLimiter) Attach(int) error                 { return nil }
func (watchdogLimiter) Violation(*os.ProcessState) bool  { return false }
func (watchdogLimiter) Guarantee() Guarantee             { return GuaranteeReduced }
func (watchdogLimiter) Close() error                     { return nil }
