// Package executor spawns the sandboxed child process, captures its output,
// enforces the wall-clock timeout and guarantees full process-tree cleanup.
package executor

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"aibugbench/internal/sandbox/env"
	"aibugbench/internal/sandbox/limits"
	"aibugbench/internal/sandbox/result"
	"aibugbench/internal/sandbox/spec"
	"aibugbench/internal/sandbox/workspace"
	appErr "aibugbench/pkg/errors"
	"aibugbench/pkg/utils/logger"
)

const (
	defaultStdoutStderrMaxBytes int64 = 64 * 1024
	defaultOutputMB             int64 = 16
	defaultOpenFiles            int64 = 128
	defaultPIDs                 int64 = 32
)

// Config controls executor behavior.
type Config struct {
	// HelperPath locates the sandbox-init binary (Linux rlimit application).
	HelperPath     string
	SeccompProfile string
	EnableSeccomp  bool

	// StdoutStderrMaxBytes caps how much captured output is retained.
	StdoutStderrMaxBytes int64
	// OutputMB / OpenFiles / PIDs are the per-run caps beyond memory and CPU.
	OutputMB  int64
	OpenFiles int64
	PIDs      int64
}

// Executor runs one sandboxed command per call. It is safe for concurrent
// use; every run gets its own limiter and buffers.
type Executor struct {
	cfg        Config
	newLimiter func(spec.ResourceLimit) (limits.Limiter, error)
}

// New creates an executor.
func New(cfg Config) *Executor {
	if cfg.StdoutStderrMaxBytes <= 0 {
		cfg.StdoutStderrMaxBytes = defaultStdoutStderrMaxBytes
	}
	if cfg.OutputMB <= 0 {
		cfg.OutputMB = defaultOutputMB
	}
	if cfg.OpenFiles <= 0 {
		cfg.OpenFiles = defaultOpenFiles
	}
	if cfg.PIDs <= 0 {
		cfg.PIDs = defaultPIDs
	}
	e := &Executor{cfg: cfg}
	e.newLimiter = func(lim spec.ResourceLimit) (limits.Limiter, error) {
		return limits.New(limits.Config{
			HelperPath:     cfg.HelperPath,
			SeccompProfile: cfg.SeccompProfile,
			EnableSeccomp:  cfg.EnableSeccomp,
		}, lim)
	}
	return e
}

// EnforcementGuarantee reports the level the platform limiter provides on
// this host, probing construction once.
func (e *Executor) EnforcementGuarantee() limits.Guarantee {
	l, err := e.newLimiter(spec.ResourceLimit{})
	if err != nil {
		return limits.GuaranteeReduced
	}
	defer func() { _ = l.Close() }()
	return l.Guarantee()
}

// Run executes command inside the session and returns a populated result on
// every in-sandbox outcome: success, failure, guard trip, timeout or resource
// kill. Only engine-internal faults (the process could not be started at all)
// surface as errors.
func (e *Executor) Run(ctx context.Context, session *workspace.Session, command []string, timeout time.Duration) (result.ExecutionResult, error) {
	if session == nil {
		return result.ExecutionResult{}, appErr.ValidationError("session", "required")
	}
	if len(command) == 0 {
		return result.ExecutionResult{}, appErr.ValidationError("command", "required")
	}

	envMap := env.Build(env.Options{
		Root:           session.Root,
		HomeDir:        session.HomeDir,
		TmpDir:         session.TmpDir,
		GuardDir:       session.GuardDir,
		NetworkAllowed: session.NetworkAllowed,
	})
	session.Env = envMap

	timeoutS := int64(timeout / time.Second)
	if timeout%time.Second != 0 {
		timeoutS++
	}
	lim := spec.ResourceLimit{
		CPUTimeS:  timeoutS,
		WallTimeS: timeoutS,
		MemoryMB:  session.MemoryMB,
		OutputMB:  e.cfg.OutputMB,
		OpenFiles: e.cfg.OpenFiles,
		PIDs:      e.cfg.PIDs,
	}

	limiter, err := e.newLimiter(lim)
	if err != nil {
		logger.Warn(ctx, "platform resource limiter unavailable, falling back to watchdog (no hard memory cap)",
			zap.Error(err))
		limiter = limits.NewWatchdog()
	}
	defer func() { _ = limiter.Close() }()

	cmd := exec.Command(command[0], command[1:]...)
	cmd.Dir = session.WorkDir
	cmd.Env = env.Encode(envMap)
	setSysProcAttr(cmd)

	stdout := newBoundedBuffer(e.cfg.StdoutStderrMaxBytes)
	stderr := newBoundedBuffer(e.cfg.StdoutStderrMaxBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := limiter.Apply(cmd); err != nil {
		return result.ExecutionResult{}, appErr.Wrap(err, appErr.ExecSystemError)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return result.ExecutionResult{}, appErr.Wrapf(err, appErr.ExecStartFailed, "start sandboxed process: %v", err)
	}
	pid := cmd.Process.Pid

	if err := limiter.Attach(pid); err != nil {
		logger.Warn(ctx, "resource limit attachment failed, enforcement is reduced for this run",
			zap.Int("pid", pid), zap.Error(err))
	}

	// cancelled and timedOut distinguish the executor's own SIGKILL from a
	// limit kill; Violation cannot tell them apart by signal alone.
	var timedOut, cancelled atomic.Bool
	done := make(chan struct{})
	go func() {
		var timer <-chan time.Time
		if timeout > 0 {
			timer = time.After(timeout)
		}
		select {
		case <-ctx.Done():
			cancelled.Store(true)
			killTree(ctx, pid)
		case <-timer:
			timedOut.Store(true)
			killTree(ctx, pid)
		case <-done:
		}
	}()

	waitErr := cmd.Wait()
	close(done)

	violation := limiter.Violation(cmd.ProcessState) && !timedOut.Load() && !cancelled.Load()
	if timedOut.Load() || violation {
		// A successful guard bypass could have left reparented descendants
		// that the group kill missed.
		killDescendants(ctx, pid)
	}

	res := result.ExecutionResult{
		ExitCode:          exitCodeFromErr(waitErr, cmd.ProcessState),
		Stdout:            stdout.String(),
		Stderr:            stderr.String(),
		DurationMs:        time.Since(start).Milliseconds(),
		TimedOut:          timedOut.Load(),
		ResourceViolation: violation,
	}
	if res.TimedOut && res.ExitCode == 0 {
		res.ExitCode = -1
	}

	logger.Debug(ctx, "sandboxed run finished",
		zap.Int("exit_code", res.ExitCode),
		zap.Int64("duration_ms", res.DurationMs),
		zap.Bool("timed_out", res.TimedOut),
		zap.Bool("resource_violation", res.ResourceViolation))
	return res, nil
}

func exitCodeFromErr(err error, state *os.ProcessState) int {
	if state != nil {
		return state.ExitCode()
	}
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// boundedBuffer keeps the first max bytes written and discards the rest, so a
// submission flooding stdout cannot exhaust engine memory.
type boundedBuffer struct {
	max int64
	buf bytes.Buffer
}

func newBoundedBuffer(max int64) *boundedBuffer {
	return &boundedBuffer{max: max}
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	if remain := b.max - int64(b.buf.Len()); remain > 0 {
		if int64(len(p)) > remain {
			b.buf.Write(p[:remain])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	return b.buf.String()
}
