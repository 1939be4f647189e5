// Package sandbox is the engine facade: it wires the workspace manager,
// guard generator, executor and auditor together behind a single
// audit-gated API for running untrusted code.
package sandbox

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"aibugbench/internal/sandbox/audit"
	"aibugbench/internal/sandbox/executor"
	"aibugbench/internal/sandbox/guard"
	"aibugbench/internal/sandbox/result"
	"aibugbench/internal/sandbox/spec"
	"aibugbench/internal/sandbox/workspace"
	appErr "aibugbench/pkg/errors"
	"aibugbench/pkg/utils/logger"
)

// Config assembles an engine.
type Config struct {
	// WorkRoot hosts all session directories. os.TempDir when empty.
	WorkRoot string
	// PythonPath is the interpreter for submissions and canaries.
	PythonPath string
	// HelperPath locates the sandbox-init binary (Linux).
	HelperPath     string
	EnableSeccomp  bool
	SeccompProfile string

	// DefaultMemoryMB and DefaultTimeoutS apply when a request leaves them
	// zero. DefaultMemoryMB must be one of the allowed memory steps.
	DefaultMemoryMB int64
	DefaultTimeoutS int64

	// UnsafeSkipAudit makes the engine Ready without any verification.
	// Intended for trusted-input development loops only; selecting it is
	// logged loudly at startup.
	UnsafeSkipAudit bool

	OutputMB             int64
	OpenFiles            int64
	PIDs                 int64
	StdoutStderrMaxBytes int64
}

// ExecuteRequest describes one submission run.
type ExecuteRequest struct {
	SubmissionID string
	// SourceDir is copied into the session work directory.
	SourceDir string
	// Command is the argv to run, typically the interpreter plus entry file.
	Command []string
	// MemoryMB must be an allowed step; zero means the engine default.
	MemoryMB int64
	// TimeoutS caps wall-clock time; zero means the engine default.
	TimeoutS     int64
	AllowNetwork bool
}

// Engine gates all execution behind the audit state machine.
type Engine struct {
	cfg  Config
	ws   *workspace.Manager
	exec *executor.Executor

	mu       sync.Mutex
	status   Status
	manifest guard.Manifest
	report   *audit.Report
}

// New builds an engine with the default guard manifest, in AuditPending
// state unless UnsafeSkipAudit is set.
func New(cfg Config) (*Engine, error) {
	if cfg.PythonPath == "" {
		cfg.PythonPath = "python3"
	}
	if cfg.DefaultMemoryMB == 0 {
		cfg.DefaultMemoryMB = 512
	}
	if !spec.MemoryAllowed(cfg.DefaultMemoryMB) {
		return nil, appErr.LimitError("memory_mb", cfg.DefaultMemoryMB)
	}
	if cfg.DefaultTimeoutS <= 0 {
		cfg.DefaultTimeoutS = 30
	}

	ws, err := workspace.NewManager(cfg.WorkRoot)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		cfg: cfg,
		ws:  ws,
		exec: executor.New(executor.Config{
			HelperPath:           cfg.HelperPath,
			SeccompProfile:       cfg.SeccompProfile,
			EnableSeccomp:        cfg.EnableSeccomp,
			StdoutStderrMaxBytes: cfg.StdoutStderrMaxBytes,
			OutputMB:             cfg.OutputMB,
			OpenFiles:            cfg.OpenFiles,
			PIDs:                 cfg.PIDs,
		}),
		status:   StatusAuditPending,
		manifest: guard.DefaultManifest(),
	}
	if cfg.UnsafeSkipAudit {
		e.status = StatusReady
		logger.Warn(context.Background(),
			"SECURITY: sandbox audit skipped by configuration, guard effectiveness is UNVERIFIED")
	}
	return e, nil
}

// Status returns the current lifecycle state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Report returns the last audit report, or nil if no audit has run.
func (e *Engine) Report() *audit.Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.report
}

// SetManifest replaces the guard manifest. Any previous audit verdict is
// invalidated: the engine drops back to AuditPending.
func (e *Engine) SetManifest(m guard.Manifest) error {
	if err := m.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status == StatusAborted {
		return appErr.New(appErr.EngineAborted)
	}
	e.manifest = m
	e.report = nil
	e.status = StatusAuditPending
	return nil
}

// Audit runs the canary suite against the current manifest and moves the
// engine to Ready or AuditFailed. A failed audit returns the error listing
// every failed check; the report remains available either way.
func (e *Engine) Audit(ctx context.Context) (audit.Report, error) {
	e.mu.Lock()
	if e.status == StatusAborted {
		e.mu.Unlock()
		return audit.Report{}, appErr.New(appErr.EngineAborted)
	}
	manifest := e.manifest
	e.mu.Unlock()

	auditor := audit.New(e.ws, e.exec, e.cfg.PythonPath, manifest)
	report, err := auditor.Verify(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.report = &report
	if err != nil {
		e.status = StatusAuditFailed
		return report, err
	}
	if !report.OverallPass {
		e.status = StatusAuditFailed
		return report, appErr.AuditError(report.FailedChecks())
	}
	e.status = StatusReady
	return report, nil
}

// Override forces a Ready state after a failed audit. It refuses an empty
// reason and logs the decision loudly; there is no quiet path past a failed
// audit.
func (e *Engine) Override(ctx context.Context, reason string) error {
	if reason == "" {
		return appErr.New(appErr.OverrideRefused).
			WithMessage("audit override requires an explicit reason")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusAuditFailed {
		return appErr.Newf(appErr.OverrideRefused, "override only applies to a failed audit, state is %s", e.status)
	}
	logger.Warn(ctx, "SECURITY: failed sandbox audit overridden, known holes remain open",
		zap.String("reason", reason),
		zap.Strings("failed_checks", e.report.FailedChecks()))
	e.status = StatusReady
	return nil
}

// Abort moves the engine to the terminal Aborted state.
func (e *Engine) Abort(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status == StatusAborted {
		return
	}
	e.status = StatusAborted
	logger.Warn(ctx, "sandbox engine aborted, all further execution refused")
}

// Execute runs one submission in a fresh session. It refuses unless the
// engine is Ready, validates the memory step, installs the guard, runs the
// command and tears the session down. In-sandbox outcomes come back in the
// result; errors are engine faults.
func (e *Engine) Execute(ctx context.Context, req ExecuteRequest) (result.ExecutionResult, error) {
	e.mu.Lock()
	status := e.status
	manifest := e.manifest
	e.mu.Unlock()

	switch status {
	case StatusReady:
	case StatusAborted:
		return result.ExecutionResult{}, appErr.New(appErr.EngineAborted)
	default:
		return result.ExecutionResult{}, appErr.Newf(appErr.AuditRequired, "execution refused in state %s", status)
	}

	if len(req.Command) == 0 {
		return result.ExecutionResult{}, appErr.ValidationError("command", "required")
	}
	memoryMB := req.MemoryMB
	if memoryMB == 0 {
		memoryMB = e.cfg.DefaultMemoryMB
	}
	if !spec.MemoryAllowed(memoryMB) {
		return result.ExecutionResult{}, appErr.LimitError("memory_mb", memoryMB)
	}
	timeoutS := req.TimeoutS
	if timeoutS <= 0 {
		timeoutS = e.cfg.DefaultTimeoutS
	}

	session, err := e.ws.Create(ctx, "", workspace.CreateOptions{
		SubmissionID:   req.SubmissionID,
		SourceDir:      req.SourceDir,
		NetworkAllowed: req.AllowNetwork,
		MemoryMB:       memoryMB,
		TimeoutS:       timeoutS,
	})
	if err != nil {
		return result.ExecutionResult{}, err
	}
	defer e.ws.Teardown(ctx, session)

	ctx = logger.WithRunID(ctx, session.RunID)
	ctx = logger.WithSubmissionID(ctx, req.SubmissionID)

	if _, err := guard.Install(session.GuardDir, manifest); err != nil {
		return result.ExecutionResult{}, err
	}

	return e.exec.Run(ctx, session, req.Command, time.Duration(timeoutS)*time.Second)
}

// EnforcementGuarantee reports the resource-limit enforcement level on this
// host, for startup banners.
func (e *Engine) EnforcementGuarantee() string {
	return string(e.exec.EnforcementGuarantee())
}
