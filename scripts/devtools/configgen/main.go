// configgen emits a ready-to-edit bench-runner config and the default
// seccomp profile, with optional overrides merged on top of the defaults.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

func main() {
	outputDir := flag.String("output-dir", "configs", "Directory to write generated files")
	overridesPath := flag.String("overrides", "", "Optional YAML file merged over the defaults")
	flag.Parse()

	config := defaultConfig()
	if *overridesPath != "" {
		overrides, err := loadYAML(*overridesPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load overrides failed: %v\n", err)
			os.Exit(1)
		}
		merged, err := mergeMap(config, normalizeValue(overrides))
		if err != nil {
			fmt.Fprintf(os.Stderr, "merge overrides failed: %v\n", err)
			os.Exit(1)
		}
		config = merged
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create output directory failed: %v\n", err)
		os.Exit(1)
	}

	configPath := filepath.Join(*outputDir, "bench_runner.yaml")
	if err := writeYAML(configPath, config); err != nil {
		fmt.Fprintf(os.Stderr, "write config failed: %v\n", err)
		os.Exit(1)
	}

	profilePath := filepath.Join(*outputDir, "seccomp_default.json")
	if err := os.WriteFile(profilePath, []byte(defaultSeccompProfile), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write seccomp profile failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("wrote %s\nwrote %s\n", configPath, profilePath)
}

func defaultConfig() interface{} {
	return map[string]interface{}{
		"logger": map[string]interface{}{
			"level":  "info",
			"format": "console",
		},
		"sandbox": map[string]interface{}{
			"workRoot":             "",
			"pythonPath":           "python3",
			"helperPath":           "sandbox-init",
			"seccompProfile":       "configs/seccomp_default.json",
			"enableSeccomp":        false,
			"stdoutStderrMaxBytes": 65536,
			"outputMB":             16,
			"openFiles":            128,
			"pids":                 32,
		},
		"run": map[string]interface{}{
			"submissionsRoot": "submissions",
			"command":         "python3 run.py",
			"memoryMB":        512,
			"timeoutS":        30,
			"allowNetwork":    false,
			"poolSize":        2,
		},
	}
}

func loadYAML(path string) (interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read yaml failed: %w", err)
	}

	var value interface{}
	if err := yaml.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("parse yaml failed: %w", err)
	}
	return value, nil
}

func writeYAML(path string, value interface{}) error {
	data, err := yaml.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal yaml failed: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write yaml failed: %w", err)
	}
	return nil
}

func normalizeValue(value interface{}) interface{} {
	switch typed := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(typed))
		for k, v := range typed {
			out[k] = normalizeValue(v)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(typed))
		for k, v := range typed {
			key, ok := k.(string)
			if !ok {
				key = fmt.Sprintf("%v", k)
			}
			out[key] = normalizeValue(v)
		}
		return out
	case []interface{}:
		out := make([]interface{}, 0, len(typed))
		for _, item := range typed {
			out = append(out, normalizeValue(item))
		}
		return out
	default:
		return value
	}
}

func mergeMap(base interface{}, override interface{}) (interface{}, error) {
	baseMap, ok := base.(map[string]interface{})
	if !ok {
		return nil, errors.New("base config is not a map")
	}
	overrideMap, ok := override.(map[string]interface{})
	if !ok {
		return nil, errors.New("override config is not a map")
	}

	merged := make(map[string]interface{}, len(baseMap))
	for k, v := range baseMap {
		merged[k] = v
	}

	for key, overrideValue := range overrideMap {
		baseValue, exists := merged[key]
		if !exists {
			merged[key] = overrideValue
			continue
		}

		baseChild, baseIsMap := baseValue.(map[string]interface{})
		overrideChild, overrideIsMap := overrideValue.(map[string]interface{})
		if baseIsMap && overrideIsMap {
			combined, err := mergeMap(baseChild, overrideChild)
			if err != nil {
				return nil, err
			}
			merged[key] = combined
			continue
		}
		merged[key] = overrideValue
	}
	return merged, nil
}

// defaultSeccompProfile allows everything except the syscalls an interpreter
// has no business making: kernel module loading, rebooting, raw io access and
// bpf. The guard module handles the language-level surface; this is the
// OS-level backstop.
const defaultSeccompProfile = `{
  "defaultAction": "SCMP_ACT_ALLOW",
  "syscalls": [
    {
      "names": [
        "init_module",
        "finit_module",
        "delete_module",
        "kexec_load",
        "kexec_file_load",
        "reboot",
        "swapon",
        "swapoff",
        "mount",
        "umount2",
        "pivot_root",
        "chroot",
        "iopl",
        "ioperm",
        "bpf",
        "ptrace",
        "process_vm_readv",
        "process_vm_writev"
      ],
      "action": "SCMP_ACT_KILL_PROCESS"
    }
  ]
}
`
