// Package spec defines the execution specification and resource limits.
package spec

// AllowedMemoryMB is the closed set of memory limit values a run may request.
var AllowedMemoryMB = []int64{128, 256, 512, 1024, 2048, 4096}

// MemoryAllowed reports whether mb is in the allowed set.
func MemoryAllowed(mb int64) bool {
	for _, v := range AllowedMemoryMB {
		if v == mb {
			return true
		}
	}
	return false
}

// ResourceLimit describes hard limits enforced on the child process.
type ResourceLimit struct {
	CPUTimeS  int64
	WallTimeS int64
	MemoryMB  int64
	OutputMB  int64
	OpenFiles int64
	PIDs      int64
}

// RunSpec is the unified execution specification for one sandboxed run.
type RunSpec struct {
	RunID          string
	WorkDir        string
	Cmd            []string
	Env            []string
	NetworkAllowed bool
	Limits         ResourceLimit
}
