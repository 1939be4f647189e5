package executor

import (
	"context"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"aibugbench/pkg/utils/logger"
)

// killDescendants walks the live process table, collects every transitive
// descendant of pid, and kills each one individually. This catches processes
// that left the group with setsid or were reparented after their parent died.
func killDescendants(ctx context.Context, pid int) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		logger.Warn(ctx, "process table scan failed", zap.Error(err))
		return
	}
	children := make(map[int32][]int32, len(procs))
	for _, p := range procs {
		ppid, err := p.PpidWithContext(ctx)
		if err != nil {
			continue
		}
		children[ppid] = append(children[ppid], p.Pid)
	}

	stack := []int32{int32(pid)}
	var targets []int32
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, child := range children[cur] {
			targets = append(targets, child)
			stack = append(stack, child)
		}
	}
	for _, target := range targets {
		p, err := process.NewProcessWithContext(ctx, target)
		if err != nil {
			continue
		}
		if err := p.KillWithContext(ctx); err != nil {
			logger.Debug(ctx, "descendant kill failed", zap.Int32("pid", target), zap.Error(err))
		}
	}
}
