//go:build windows

package executor

import (
	"context"
	"os"

	"go.uber.org/zap"

	"aibugbench/pkg/utils/logger"
)

// killTree sweeps descendants first, then terminates the child itself. The
// job object's kill-on-close flag is the backstop for anything missed here.
func killTree(ctx context.Context, pid int) {
	killDescendants(ctx, pid)
	proc, err := os.FindProcess(pid)
	if err != nil {
		return
	}
	if err := proc.Kill(); err != nil {
		logger.Warn(ctx, "process kill failed", zap.Int("pid", pid), zap.Error(err))
	}
}
