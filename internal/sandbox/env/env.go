// Package env builds the explicit environment map for a sandboxed child.
// The map starts from nothing and carries only a whitelist; the caller's
// environment (and any secrets in it) never reaches the child. Nothing here
// mutates the engine's own process environment, so there is no restore step.
package env

import (
	"fmt"
	"os"
	"runtime"
	"sort"
)

// Marker variables the guard module reads at interpreter startup.
const (
	SandboxRootVar  = "AIBUGBENCH_SANDBOX_ROOT"
	AllowNetworkVar = "AIBUGBENCH_ALLOW_NETWORK"
)

const defaultPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"

// Options describe one sandbox session to build an environment for.
type Options struct {
	Root           string
	HomeDir        string
	TmpDir         string
	GuardDir       string
	NetworkAllowed bool
}

// Build returns the child environment map: sandbox home/temp overrides, the
// bytecode-cache disable flag, the guard module on the interpreter search
// path, the sandbox markers, and the few platform variables a process cannot
// run without.
func Build(opts Options) map[string]string {
	env := map[string]string{
		"HOME":                    opts.HomeDir,
		"TMPDIR":                  opts.TmpDir,
		"PYTHONDONTWRITEBYTECODE": "1",
		"PYTHONPATH":              opts.GuardDir,
		SandboxRootVar:            opts.Root,
		"LANG":                    "C.UTF-8",
		"LC_ALL":                  "C.UTF-8",
	}

	if opts.NetworkAllowed {
		env[AllowNetworkVar] = "1"
	} else {
		env[AllowNetworkVar] = "0"
	}

	// PATH is the single value carried over from the caller: the interpreter
	// still has to be found. Everything else is constructed.
	if path := os.Getenv("PATH"); path != "" {
		env["PATH"] = path
	} else {
		env["PATH"] = defaultPath
	}

	if runtime.GOOS == "windows" {
		env["USERPROFILE"] = opts.HomeDir
		env["TEMP"] = opts.TmpDir
		env["TMP"] = opts.TmpDir
		if root := os.Getenv("SYSTEMROOT"); root != "" {
			env["SYSTEMROOT"] = root
		}
	}

	return env
}

// Encode flattens a map into the sorted KEY=VALUE form process-spawn APIs
// accept.
func Encode(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s=%s", k, env[k]))
	}
	return out
}
