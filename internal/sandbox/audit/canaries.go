package audit

import "aibugbench/internal/sandbox/guard"

// canary is one hostile probe. Each program attempts exactly the operation
// its capability guards and nothing else, so a failure points at one hole.
type canary struct {
	name         string
	capability   guard.Capability
	program      string
	expectMarker string
}

// canaries returns the probe suite for a manifest: a baseline sanity probe
// that must run cleanly, plus one hostile probe per blocked capability.
func canaries(m guard.Manifest) []canary {
	suite := []canary{{
		name:    "baseline",
		program: `print("ok")`,
	}}

	hostile := []canary{
		{
			name:       "eval-blocked",
			capability: guard.CapabilityDynamicCode,
			program:    `eval("1+1")`,
		},
		{
			name:       "subprocess-blocked",
			capability: guard.CapabilityProcessSpawn,
			program: "import subprocess\n" +
				`subprocess.run(["true"])`,
		},
		{
			name:       "pickle-blocked",
			capability: guard.CapabilityDeserialization,
			program:    "import pickle",
		},
		{
			name:       "ctypes-blocked",
			capability: guard.CapabilityFFI,
			program:    "import ctypes",
		},
		{
			name:       "escape-write-blocked",
			capability: guard.CapabilityFileAccess,
			program: "import os\n" +
				`open(os.path.join(os.environ["AIBUGBENCH_SANDBOX_ROOT"], os.pardir, "escape.txt"), "w")`,
		},
		{
			name:       "socket-blocked",
			capability: guard.CapabilityNetwork,
			program: "import socket\n" +
				"socket.socket()",
		},
		{
			name:       "reload-blocked",
			capability: guard.CapabilityGuardRemoval,
			program: "import importlib\n" +
				"importlib.reload(importlib)",
		},
	}
	for _, c := range hostile {
		if !m.Blocks(c.capability) {
			continue
		}
		c.expectMarker = guard.Marker(c.capability)
		suite = append(suite, c)
	}
	return suite
}
