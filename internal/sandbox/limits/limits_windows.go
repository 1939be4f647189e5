//go:build windows

package limits

import (
	"os"
	"os/exec"
	"unsafe"

	"golang.org/x/sys/windows"

	"aibugbench/internal/sandbox/spec"
	appErr "aibugbench/pkg/errors"
)

type jobLimiter struct {
	job windows.Handle
}

// New creates a kernel job object capping per-process memory and active
// process count. Breakaway stays disabled (the flags are simply not set) and
// kill-on-close guarantees the whole tree dies with the job handle.
func New(cfg Config, lim spec.ResourceLimit) (Limiter, error) {
	job, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.FeatureUnavailable, "create job object: %v", err)
	}
	info := windows.JOBOBJECT_EXTENDED_LIMIT_INFORMATION{
		BasicLimitInformation: windows.JOBOBJECT_BASIC_LIMIT_INFORMATION{
			LimitFlags: windows.JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE,
		},
	}
	if lim.MemoryMB > 0 {
		info.BasicLimitInformation.LimitFlags |= windows.JOB_OBJECT_LIMIT_PROCESS_MEMORY
		info.ProcessMemoryLimit = uintptr(lim.MemoryMB * 1024 * 1024)
	}
	if lim.PIDs > 0 {
		info.BasicLimitInformation.LimitFlags |= windows.JOB_OBJECT_LIMIT_ACTIVE_PROCESS
		info.BasicLimitInformation.ActiveProcessLimit = uint32(lim.PIDs)
	}
	if _, err := windows.SetInformationJobObject(job,
		windows.JobObjectExtendedLimitInformation,
		uintptr(unsafe.Pointer(&info)), uint32(unsafe.Sizeof(info))); err != nil {
		_ = windows.CloseHandle(job)
		return nil, appErr.Wrapf(err, appErr.FeatureUnavailable, "configure job object: %v", err)
	}
	return &jobLimiter{job: job}, nil
}

func (l *jobLimiter) Apply(cmd *exec.Cmd) error { return nil }

// Attach assigns the freshly spawned process to the job, immediately after
// creation and before any submitted code has had a chance to spawn children.
func (l *jobLimiter) Attach(pid int) error {
	handle, err := windows.OpenProcess(
		windows.PROCESS_SET_QUOTA|windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return appErr.Wrapf(err, appErr.FeatureUnavailable, "open process %d: %v", pid, err)
	}
	defer windows.CloseHandle(handle)
	if err := windows.AssignProcessToJobObject(l.job, handle); err != nil {
		return appErr.Wrapf(err, appErr.FeatureUnavailable, "assign process to job object: %v", err)
	}
	return nil
}

// Violation maps the NT status a job kill carries to a resource violation.
func (l *jobLimiter) Violation(state *os.ProcessState) bool {
	if state == nil {
		return false
	}
	switch uint32(state.ExitCode()) {
	case 0xC0000017, // STATUS_NO_MEMORY
		0xC000013A: // STATUS_CONTROL_C_EXIT, reported on job termination
		return true
	}
	return false
}

func (l *jobLimiter) Guarantee() Guarantee { return GuaranteeFull }

// Close releases the job handle; with kill-on-close set this also terminates
// anything still running inside the job.
func (l *jobLimiter) Close() error {
	if l.job == 0 {
		return nil
	}
	err := windows.CloseHandle(l.job)
	l.job = 0
	return err
}
