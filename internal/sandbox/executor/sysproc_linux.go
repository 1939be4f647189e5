//go:build linux

package executor

import (
	"os/exec"
	"syscall"
)

// setSysProcAttr puts the child in its own process group so the watchdog can
// kill the whole group, and arranges for the kernel to deliver SIGKILL if the
// engine itself dies first.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
}
