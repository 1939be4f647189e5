package main

import (
	"fmt"
	"os"

	"github.com/google/shlex"
	"gopkg.in/yaml.v3"

	"aibugbench/internal/sandbox"
	"aibugbench/internal/sandbox/spec"
	"aibugbench/pkg/utils/logger"
)

const (
	defaultCommand  = "python3 run.py"
	defaultMemoryMB = 512
	defaultTimeoutS = 30
	defaultPoolSize = 2
)

// SandboxConfig holds sandbox engine settings.
type SandboxConfig struct {
	WorkRoot             string `yaml:"workRoot"`
	PythonPath           string `yaml:"pythonPath"`
	HelperPath           string `yaml:"helperPath"`
	SeccompProfile       string `yaml:"seccompProfile"`
	EnableSeccomp        bool   `yaml:"enableSeccomp"`
	StdoutStderrMaxBytes int64  `yaml:"stdoutStderrMaxBytes"`
	OutputMB             int64  `yaml:"outputMB"`
	OpenFiles            int64  `yaml:"openFiles"`
	PIDs                 int64  `yaml:"pids"`
}

// RunConfig holds batch run settings.
type RunConfig struct {
	SubmissionsRoot string `yaml:"submissionsRoot"`
	Command         string `yaml:"command"`
	MemoryMB        int64  `yaml:"memoryMB"`
	TimeoutS        int64  `yaml:"timeoutS"`
	AllowNetwork    bool   `yaml:"allowNetwork"`
	PoolSize        int    `yaml:"poolSize"`
}

// AppConfig holds bench-runner config.
type AppConfig struct {
	Logger  logger.Config `yaml:"logger"`
	Sandbox SandboxConfig `yaml:"sandbox"`
	Run     RunConfig     `yaml:"run"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Run.SubmissionsRoot == "" {
		return nil, fmt.Errorf("run.submissionsRoot is required")
	}
	if cfg.Run.Command == "" {
		cfg.Run.Command = defaultCommand
	}
	if cfg.Run.MemoryMB == 0 {
		cfg.Run.MemoryMB = defaultMemoryMB
	}
	if !spec.MemoryAllowed(cfg.Run.MemoryMB) {
		return nil, fmt.Errorf("run.memoryMB %d is not an allowed value %v", cfg.Run.MemoryMB, spec.AllowedMemoryMB)
	}
	if cfg.Run.TimeoutS <= 0 {
		cfg.Run.TimeoutS = defaultTimeoutS
	}
	if cfg.Run.PoolSize <= 0 {
		cfg.Run.PoolSize = defaultPoolSize
	}
	return &cfg, nil
}

// parsedCommand splits the configured command line into argv.
func (r RunConfig) parsedCommand() ([]string, error) {
	argv, err := shlex.Split(r.Command)
	if err != nil {
		return nil, fmt.Errorf("parse run.command: %w", err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("run.command is empty")
	}
	return argv, nil
}

func (s SandboxConfig) toEngineConfig(defaultMemoryMB, defaultTimeoutS int64, unsafeSkipAudit bool) sandbox.Config {
	return sandbox.Config{
		WorkRoot:             s.WorkRoot,
		PythonPath:           s.PythonPath,
		HelperPath:           s.HelperPath,
		EnableSeccomp:        s.EnableSeccomp,
		SeccompProfile:       s.SeccompProfile,
		DefaultMemoryMB:      defaultMemoryMB,
		DefaultTimeoutS:      defaultTimeoutS,
		UnsafeSkipAudit:      unsafeSkipAudit,
		OutputMB:             s.OutputMB,
		OpenFiles:            s.OpenFiles,
		PIDs:                 s.PIDs,
		StdoutStderrMaxBytes: s.StdoutStderrMaxBytes,
	}
}
