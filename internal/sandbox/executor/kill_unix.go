//go:build unix

package executor

import (
	"context"
	"syscall"

	"go.uber.org/zap"

	"aibugbench/pkg/utils/logger"
)

// killTree terminates the child's process group and then sweeps for
// descendants that escaped by reparenting into a new group.
func killTree(ctx context.Context, pid int) {
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
		logger.Warn(ctx, "process group kill failed", zap.Int("pid", pid), zap.Error(err))
	}
	killDescendants(ctx, pid)
}
