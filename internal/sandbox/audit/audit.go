// Package audit verifies, with live canary processes, that the installed
// guard actually blocks what the manifest says it blocks. A sandbox is not
// trusted until this verification passes.
package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"aibugbench/internal/sandbox/guard"
	"aibugbench/internal/sandbox/result"
	"aibugbench/internal/sandbox/workspace"
	appErr "aibugbench/pkg/errors"
	"aibugbench/pkg/utils/logger"
)

const (
	auditMemoryMB     int64 = 512
	auditCheckTimeout       = 15 * time.Second
)

// Runner executes one command inside a session. Satisfied by the process
// executor; tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, session *workspace.Session, command []string, timeout time.Duration) (result.ExecutionResult, error)
}

// Workspaces provisions and destroys sessions. Satisfied by the workspace
// manager.
type Workspaces interface {
	Create(ctx context.Context, runID string, opts workspace.CreateOptions) (*workspace.Session, error)
	Teardown(ctx context.Context, session *workspace.Session)
}

// Check records the outcome of one canary probe.
type Check struct {
	Name       string           `json:"name"`
	Capability guard.Capability `json:"capability,omitempty"`
	Program    string           `json:"program"`
	// ExpectMarker is the guard error label the probe must produce. Empty for
	// the baseline probe, which must instead run cleanly.
	ExpectMarker string `json:"expect_marker,omitempty"`
	Passed       bool   `json:"passed"`
	// Actual summarizes what the probe observed, for operator diagnosis.
	Actual string `json:"actual"`
}

// Report is the full audit outcome.
type Report struct {
	Checks      []Check   `json:"checks"`
	OverallPass bool      `json:"overall_pass"`
	GeneratedAt time.Time `json:"generated_at"`
}

// FailedChecks lists the names of every check that did not pass.
func (r Report) FailedChecks() []string {
	var failed []string
	for _, c := range r.Checks {
		if !c.Passed {
			failed = append(failed, c.Name)
		}
	}
	return failed
}

// Auditor runs the canary suite in a disposable session.
type Auditor struct {
	ws       Workspaces
	run      Runner
	python   string
	manifest guard.Manifest
}

// New creates an auditor probing the given manifest with the given
// interpreter.
func New(ws Workspaces, run Runner, python string, manifest guard.Manifest) *Auditor {
	if python == "" {
		python = "python3"
	}
	return &Auditor{ws: ws, run: run, python: python, manifest: manifest}
}

// Verify provisions a disposable session with the guard installed, runs every
// applicable canary, and returns the report. A canary passes only when the
// child exits non-zero AND its stderr carries the expected guard marker; any
// other outcome, including a crashed or missing interpreter, counts as a
// failure. The error return is reserved for engine faults that prevented the
// audit from running at all.
func (a *Auditor) Verify(ctx context.Context) (Report, error) {
	report := Report{GeneratedAt: time.Now().UTC()}

	session, err := a.ws.Create(ctx, "audit-"+uuid.NewString(), workspace.CreateOptions{
		SubmissionID: "audit",
		MemoryMB:     auditMemoryMB,
		TimeoutS:     int64(auditCheckTimeout / time.Second),
	})
	if err != nil {
		return report, appErr.Wrap(err, appErr.AuditRunError)
	}
	defer a.ws.Teardown(ctx, session)

	if _, err := guard.Install(session.GuardDir, a.manifest); err != nil {
		return report, appErr.Wrap(err, appErr.AuditRunError)
	}

	for _, c := range canaries(a.manifest) {
		check, err := a.probe(ctx, session, c)
		if err != nil {
			return report, err
		}
		report.Checks = append(report.Checks, check)
	}

	report.OverallPass = len(report.FailedChecks()) == 0
	logger.Info(ctx, "sandbox audit finished",
		zap.Bool("overall_pass", report.OverallPass),
		zap.Int("checks", len(report.Checks)),
		zap.Strings("failed", report.FailedChecks()))
	return report, nil
}

func (a *Auditor) probe(ctx context.Context, session *workspace.Session, c canary) (Check, error) {
	check := Check{
		Name:         c.name,
		Capability:   c.capability,
		Program:      c.program,
		ExpectMarker: c.expectMarker,
	}
	res, err := a.run.Run(ctx, session, []string{a.python, "-c", c.program}, auditCheckTimeout)
	if err != nil {
		return check, appErr.Wrapf(err, appErr.AuditRunError, "canary %q could not run: %v", c.name, err)
	}

	if c.expectMarker == "" {
		check.Passed = res.ExitCode == 0
		check.Actual = summarize(res)
		return check, nil
	}
	check.Passed = res.ExitCode != 0 && strings.Contains(res.Stderr, c.expectMarker)
	check.Actual = summarize(res)
	return check, nil
}

func summarize(res result.ExecutionResult) string {
	s := strings.TrimSpace(res.Stderr)
	if len(s) > 300 {
		s = s[:300]
	}
	return fmt.Sprintf("exit=%d stderr=%q", res.ExitCode, s)
}
