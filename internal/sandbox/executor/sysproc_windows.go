//go:build windows

package executor

import "os/exec"

// setSysProcAttr is a no-op on Windows; tree termination is handled by the
// job object's kill-on-close flag plus the descendant sweep.
func setSysProcAttr(cmd *exec.Cmd) {}
