//go:build unix

package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"aibugbench/internal/sandbox/limits"
	"aibugbench/internal/sandbox/spec"
	"aibugbench/internal/sandbox/workspace"
)

// testExecutor runs under the watchdog limiter so the tests do not need the
// sandbox-init helper on PATH.
func testExecutor(cfg Config) *Executor {
	e := New(cfg)
	e.newLimiter = func(spec.ResourceLimit) (limits.Limiter, error) {
		return limits.NewWatchdog(), nil
	}
	return e
}

func testSession(t *testing.T) *workspace.Session {
	t.Helper()
	m, err := workspace.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	session, err := m.Create(context.Background(), "", workspace.CreateOptions{MemoryMB: 512})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { m.Teardown(context.Background(), session) })
	return session
}

func TestRunCapturesOutput(t *testing.T) {
	e := testExecutor(Config{})
	session := testSession(t)

	res, err := e.Run(context.Background(), session,
		[]string{"/bin/sh", "-c", "echo out; echo err >&2"}, 10*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, stderr %q", res.ExitCode, res.Stderr)
	}
	if res.Stdout != "out\n" {
		t.Errorf("Stdout = %q", res.Stdout)
	}
	if res.Stderr != "err\n" {
		t.Errorf("Stderr = %q", res.Stderr)
	}
	if res.TimedOut || res.ResourceViolation {
		t.Errorf("unexpected flags: %+v", res)
	}
}

func TestRunNonzeroExitIsNotAnError(t *testing.T) {
	e := testExecutor(Config{})
	session := testSession(t)

	res, err := e.Run(context.Background(), session,
		[]string{"/bin/sh", "-c", "exit 3"}, 10*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
}

func TestRunTimeoutKillsProcess(t *testing.T) {
	e := testExecutor(Config{})
	session := testSession(t)

	start := time.Now()
	res, err := e.Run(context.Background(), session,
		[]string{"/bin/sh", "-c", "sleep 30"}, 500*time.Millisecond)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.TimedOut {
		t.Fatal("TimedOut = false, want true")
	}
	if res.ExitCode == 0 {
		t.Error("timed-out run must not report exit code 0")
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("kill took %v, watchdog did not fire", elapsed)
	}
}

func TestRunTimeoutLeavesNoDescendants(t *testing.T) {
	e := testExecutor(Config{})
	session := testSession(t)

	res, err := e.Run(context.Background(), session,
		[]string{"/bin/sh", "-c", "sleep 300 & echo $! > child.pid; wait"},
		500*time.Millisecond)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.TimedOut {
		t.Fatal("TimedOut = false, want true")
	}

	data, err := os.ReadFile(filepath.Join(session.WorkDir, "child.pid"))
	if err != nil {
		t.Fatalf("child pid not recorded: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("parse child pid %q: %v", data, err)
	}

	// The child may linger as a zombie until init reaps it.
	deadline := time.Now().Add(5 * time.Second)
	for {
		if err := syscall.Kill(pid, 0); errors.Is(err, syscall.ESRCH) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("descendant %d survived the timeout kill", pid)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// sigkillLimiter mirrors the platform limiter's signal heuristic: any SIGKILL
// death looks like a limit kill. The executor must still tell its own kills
// apart from real limit kills.
type sigkillLimiter struct {
	limits.Limiter
}

func (sigkillLimiter) Violation(state *os.ProcessState) bool {
	if state == nil {
		return false
	}
	status, ok := state.Sys().(syscall.WaitStatus)
	return ok && status.Signaled() && status.Signal() == syscall.SIGKILL
}

func sigkillExecutor(cfg Config) *Executor {
	e := New(cfg)
	e.newLimiter = func(spec.ResourceLimit) (limits.Limiter, error) {
		return sigkillLimiter{limits.NewWatchdog()}, nil
	}
	return e
}

func TestRunContextCancelIsNotAViolation(t *testing.T) {
	e := sigkillExecutor(Config{})
	session := testSession(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	res, err := e.Run(ctx, session,
		[]string{"/bin/sh", "-c", "sleep 30"}, time.Minute)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ResourceViolation {
		t.Error("canceled run reported as a resource violation")
	}
	if res.TimedOut {
		t.Error("canceled run must not report a timeout")
	}
	if res.ExitCode == 0 {
		t.Error("killed run must not report exit code 0")
	}
}

func TestRunLimitKillIsAViolation(t *testing.T) {
	e := sigkillExecutor(Config{})
	session := testSession(t)

	res, err := e.Run(context.Background(), session,
		[]string{"/bin/sh", "-c", "kill -9 $$"}, 10*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.ResourceViolation {
		t.Error("SIGKILL outside the executor must count as a resource violation")
	}
	if res.TimedOut {
		t.Error("limit kill must not report a timeout")
	}
}

func TestRunEnvironmentIsScrubbed(t *testing.T) {
	t.Setenv("LEAKED_SECRET", "value")
	e := testExecutor(Config{})
	session := testSession(t)

	res, err := e.Run(context.Background(), session,
		[]string{"/bin/sh", "-c", `echo "sec=${LEAKED_SECRET:-none} home=$HOME"`}, 10*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(res.Stdout, "sec=none") {
		t.Errorf("caller secret reached the child: %q", res.Stdout)
	}
	if !strings.Contains(res.Stdout, "home="+session.HomeDir) {
		t.Errorf("HOME not redirected into the sandbox: %q", res.Stdout)
	}
}

func TestRunWorkDirIsSessionWorkDir(t *testing.T) {
	e := testExecutor(Config{})
	session := testSession(t)

	res, err := e.Run(context.Background(), session,
		[]string{"/bin/sh", "-c", "pwd"}, 10*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != session.WorkDir {
		t.Errorf("pwd = %q, want %q", strings.TrimSpace(res.Stdout), session.WorkDir)
	}
}

func TestRunOutputTruncated(t *testing.T) {
	e := testExecutor(Config{StdoutStderrMaxBytes: 100})
	session := testSession(t)

	res, err := e.Run(context.Background(), session,
		[]string{"/bin/sh", "-c", "i=0; while [ $i -lt 100 ]; do echo 0123456789; i=$((i+1)); done"},
		10*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Stdout) != 100 {
		t.Errorf("retained %d bytes of stdout, want 100", len(res.Stdout))
	}
}

func TestRunStartFailure(t *testing.T) {
	e := testExecutor(Config{})
	session := testSession(t)

	if _, err := e.Run(context.Background(), session,
		[]string{"/nonexistent/interpreter"}, 10*time.Second); err == nil {
		t.Fatal("Run must surface an error when the process cannot start")
	}
}

func TestRunValidation(t *testing.T) {
	e := testExecutor(Config{})

	if _, err := e.Run(context.Background(), nil, []string{"true"}, time.Second); err == nil {
		t.Fatal("nil session must be rejected")
	}
	if _, err := e.Run(context.Background(), testSession(t), nil, time.Second); err == nil {
		t.Fatal("empty command must be rejected")
	}
}
