package audit_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"aibugbench/internal/sandbox/audit"
	"aibugbench/internal/sandbox/guard"
	"aibugbench/internal/sandbox/result"
	"aibugbench/internal/sandbox/workspace"
)

// fakeRunner simulates a guarded interpreter: the baseline program runs
// clean, every hostile program dies with the right marker on stderr. Faults
// are injected per program substring.
type fakeRunner struct {
	faults map[string]result.ExecutionResult
	runs   int
}

func (f *fakeRunner) Run(ctx context.Context, session *workspace.Session, command []string, timeout time.Duration) (result.ExecutionResult, error) {
	f.runs++
	program := command[len(command)-1]
	for needle, res := range f.faults {
		if strings.Contains(program, needle) {
			return res, nil
		}
	}
	if strings.Contains(program, `print("ok")`) {
		return result.ExecutionResult{ExitCode: 0, Stdout: "ok\n"}, nil
	}
	return result.ExecutionResult{
		ExitCode: 1,
		Stderr:   "Traceback (most recent call last):\n" + markerFor(program) + ": blocked\n",
	}, nil
}

func markerFor(program string) string {
	switch {
	case strings.Contains(program, "eval"):
		return guard.Marker(guard.CapabilityDynamicCode)
	case strings.Contains(program, "subprocess"):
		return guard.Marker(guard.CapabilityProcessSpawn)
	case strings.Contains(program, "pickle"):
		return guard.Marker(guard.CapabilityDeserialization)
	case strings.Contains(program, "ctypes"):
		return guard.Marker(guard.CapabilityFFI)
	case strings.Contains(program, "pardir"):
		return guard.Marker(guard.CapabilityFileAccess)
	case strings.Contains(program, "socket"):
		return guard.Marker(guard.CapabilityNetwork)
	case strings.Contains(program, "importlib"):
		return guard.Marker(guard.CapabilityGuardRemoval)
	}
	return "unexpected"
}

func newWorkspaces(t *testing.T) *workspace.Manager {
	t.Helper()
	m, err := workspace.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestVerifyAllBlocked(t *testing.T) {
	runner := &fakeRunner{}
	auditor := audit.New(newWorkspaces(t), runner, "python3", guard.DefaultManifest())

	report, err := auditor.Verify(context.Background())
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !report.OverallPass {
		t.Fatalf("OverallPass = false, failed: %v", report.FailedChecks())
	}
	// baseline plus one hostile probe per capability
	if want := 1 + len(guard.AllCapabilities); len(report.Checks) != want {
		t.Errorf("ran %d checks, want %d", len(report.Checks), want)
	}
	if runner.runs != len(report.Checks) {
		t.Errorf("runner invoked %d times for %d checks", runner.runs, len(report.Checks))
	}
}

func TestVerifyDetectsOpenHole(t *testing.T) {
	// The network probe succeeds instead of dying: a hole.
	runner := &fakeRunner{faults: map[string]result.ExecutionResult{
		"socket": {ExitCode: 0, Stdout: "connected\n"},
	}}
	auditor := audit.New(newWorkspaces(t), runner, "python3", guard.DefaultManifest())

	report, err := auditor.Verify(context.Background())
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if report.OverallPass {
		t.Fatal("OverallPass = true with an open network hole")
	}
	failed := report.FailedChecks()
	if len(failed) != 1 || failed[0] != "socket-blocked" {
		t.Errorf("failed checks = %v, want exactly socket-blocked", failed)
	}
}

func TestVerifyWrongMarkerFails(t *testing.T) {
	// The probe dies, but for the wrong reason: still a failure.
	runner := &fakeRunner{faults: map[string]result.ExecutionResult{
		"eval": {ExitCode: 1, Stderr: "MemoryError\n"},
	}}
	auditor := audit.New(newWorkspaces(t), runner, "python3", guard.DefaultManifest())

	report, err := auditor.Verify(context.Background())
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if report.OverallPass {
		t.Fatal("a crash without the guard marker must not count as blocked")
	}
}

func TestVerifyBrokenBaselineFails(t *testing.T) {
	runner := &fakeRunner{faults: map[string]result.ExecutionResult{
		`print("ok")`: {ExitCode: 1, Stderr: "interpreter exploded\n"},
	}}
	auditor := audit.New(newWorkspaces(t), runner, "python3", guard.DefaultManifest())

	report, err := auditor.Verify(context.Background())
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if report.OverallPass {
		t.Fatal("a broken baseline must fail the audit")
	}
	found := false
	for _, f := range report.FailedChecks() {
		if f == "baseline" {
			found = true
		}
	}
	if !found {
		t.Errorf("baseline not among failed checks: %v", report.FailedChecks())
	}
}

func TestVerifyPartialManifest(t *testing.T) {
	runner := &fakeRunner{}
	m := guard.Manifest{Blocked: []guard.Capability{guard.CapabilityNetwork}}
	auditor := audit.New(newWorkspaces(t), runner, "python3", m)

	report, err := auditor.Verify(context.Background())
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(report.Checks) != 2 {
		t.Errorf("ran %d checks, want baseline plus network probe", len(report.Checks))
	}
}
