//go:build linux

package limits

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"syscall"

	"aibugbench/internal/sandbox/spec"
	appErr "aibugbench/pkg/errors"
)

type posixLimiter struct {
	cfg Config
	lim spec.ResourceLimit
}

// New returns the rlimit-based limiter. The caps are applied by the
// sandbox-init helper inside the child immediately before it execs the
// interpreter; that is the only point at which a Go parent can set rlimits
// for a child it spawns.
func New(cfg Config, lim spec.ResourceLimit) (Limiter, error) {
	if cfg.HelperPath == "" {
		cfg.HelperPath = "sandbox-init"
	}
	path, err := exec.LookPath(cfg.HelperPath)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.FeatureUnavailable, "sandbox-init helper not found: %v", err)
	}
	cfg.HelperPath = path
	return &posixLimiter{cfg: cfg, lim: lim}, nil
}

// Apply rewraps cmd to run under the helper. The real command, work
// directory, scrubbed environment and limits travel to the helper as JSON on
// its stdin; the helper re-opens /dev/null as the child's stdin after
// decoding.
func (l *posixLimiter) Apply(cmd *exec.Cmd) error {
	if cmd.Stdin != nil {
		return appErr.New(appErr.ExecSystemError).WithMessage("stdin is already bound; the helper owns stdin")
	}
	req := InitRequest{
		RunSpec: spec.RunSpec{
			WorkDir: cmd.Dir,
			Cmd:     cmd.Args,
			Env:     cmd.Env,
			Limits:  l.lim,
		},
	}
	if l.cfg.EnableSeccomp {
		req.SeccompProfile = l.cfg.SeccompProfile
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return appErr.Wrapf(err, appErr.ExecSystemError, "encode init request: %v", err)
	}
	cmd.Path = l.cfg.HelperPath
	cmd.Args = []string{l.cfg.HelperPath}
	cmd.Stdin = bytes.NewReader(payload)
	return nil
}

func (l *posixLimiter) Attach(pid int) error { return nil }

// Violation maps limit-kill signals to a resource violation. SIGKILL also
// arrives from the executor's own timeout and cancellation kills; the
// executor masks those with its timed-out and cancelled flags.
func (l *posixLimiter) Violation(state *os.ProcessState) bool {
	if state == nil {
		return false
	}
	status, ok := state.Sys().(syscall.WaitStatus)
	if !ok || !status.Signaled() {
		return false
	}
	switch status.Signal() {
	case syscall.SIGKILL, syscall.SIGXCPU, syscall.SIGXFSZ:
		return true
	}
	return false
}

func (l *posixLimiter) Guarantee() Guarantee { return GuaranteeFull }

func (l *posixLimiter) Close() error { return nil }
