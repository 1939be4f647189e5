package limits_test

import (
	"os/exec"
	"testing"

	"aibugbench/internal/sandbox/limits"
)

func TestWatchdogGuarantee(t *testing.T) {
	l := limits.NewWatchdog()
	defer func() { _ = l.Close() }()

	if got := l.Guarantee(); got != limits.GuaranteeReduced {
		t.Fatalf("Guarantee = %s, want %s", got, limits.GuaranteeReduced)
	}
}

func TestWatchdogIsTransparent(t *testing.T) {
	l := limits.NewWatchdog()

	cmd := exec.Command("true")
	if err := l.Apply(cmd); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if cmd.Path == "" || cmd.Args[0] != "true" {
		t.Error("watchdog limiter must not rewrite the command")
	}
	if err := l.Attach(12345); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if l.Violation(nil) {
		t.Error("watchdog limiter never reports violations")
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
