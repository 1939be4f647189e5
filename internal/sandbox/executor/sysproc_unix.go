//go:build unix && !linux

package executor

import (
	"os/exec"
	"syscall"
)

// setSysProcAttr puts the child in its own process group so the watchdog can
// kill the whole group.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
