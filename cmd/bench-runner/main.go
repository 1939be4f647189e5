// bench-runner executes a directory of untrusted code submissions inside the
// sandbox engine and writes one JSON outcome per submission to stdout. All
// logging goes to stderr so stdout stays machine-readable.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"aibugbench/internal/runner"
	"aibugbench/internal/sandbox"
	"aibugbench/internal/sandbox/audit"
	"aibugbench/internal/sandbox/limits"
	"aibugbench/pkg/utils/logger"
)

const defaultConfigPath = "configs/bench_runner.yaml"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	submissionsRoot := flag.String("submissions", "", "Override run.submissionsRoot")
	allowNetwork := flag.Bool("allow-network", false, "Allow outbound network access for submissions")
	unsafeSkipAudit := flag.Bool("unsafe-skip-audit", false, "Skip the sandbox self-audit (UNSAFE, trusted input only)")
	trusted := flag.Bool("trusted", false, "Suppress interactive prompts; a failed audit still aborts")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return 1
	}
	if *submissionsRoot != "" {
		appCfg.Run.SubmissionsRoot = *submissionsRoot
	}
	if *allowNetwork {
		appCfg.Run.AllowNetwork = true
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := sandbox.New(appCfg.Sandbox.toEngineConfig(appCfg.Run.MemoryMB, appCfg.Run.TimeoutS, *unsafeSkipAudit))
	if err != nil {
		logger.Error(ctx, "init sandbox engine failed", zap.Error(err))
		return 1
	}

	if g := eng.EnforcementGuarantee(); g != string(limits.GuaranteeFull) {
		logger.Warn(ctx, "resource limit enforcement is REDUCED on this host: no hard memory or CPU caps, wall-clock watchdog only")
	}

	if !*unsafeSkipAudit {
		if !auditGate(ctx, eng, *trusted, os.Stdin) {
			return 1
		}
	}

	command, err := appCfg.Run.parsedCommand()
	if err != nil {
		logger.Error(ctx, "invalid run command", zap.Error(err))
		return 1
	}

	subs, err := runner.Discover(appCfg.Run.SubmissionsRoot)
	if err != nil {
		logger.Error(ctx, "discover submissions failed", zap.Error(err))
		return 1
	}
	if len(subs) == 0 {
		logger.Warn(ctx, "no submissions found", zap.String("root", appCfg.Run.SubmissionsRoot))
		return 0
	}
	for i := range subs {
		subs[i].Command = command
		subs[i].MemoryMB = appCfg.Run.MemoryMB
		subs[i].TimeoutS = appCfg.Run.TimeoutS
		subs[i].AllowNetwork = appCfg.Run.AllowNetwork
	}

	logger.Info(ctx, "running submissions",
		zap.Int("count", len(subs)),
		zap.Int("pool_size", appCfg.Run.PoolSize),
		zap.Strings("command", command))

	pool := runner.NewPool(eng, appCfg.Run.PoolSize)
	outcomes := pool.RunAll(ctx, subs)

	enc := json.NewEncoder(os.Stdout)
	for _, outcome := range outcomes {
		if err := enc.Encode(outcome); err != nil {
			logger.Error(ctx, "write outcome failed", zap.Error(err))
			return 1
		}
	}
	return 0
}

// auditEngine is the gate's view of the engine.
type auditEngine interface {
	Audit(ctx context.Context) (audit.Report, error)
	Override(ctx context.Context, reason string) error
	Abort(ctx context.Context)
}

// auditGate runs the self-audit and decides whether execution may proceed.
// A failed audit aborts the run unless the operator types the override
// confirmation. Trusted mode only suppresses that prompt; it never weakens
// enforcement, so under --trusted a failed audit always aborts.
func auditGate(ctx context.Context, eng auditEngine, trusted bool, confirm io.Reader) bool {
	report, err := eng.Audit(ctx)
	if err == nil {
		logger.Info(ctx, "sandbox audit passed", zap.Int("checks", len(report.Checks)))
		return true
	}

	fmt.Fprintln(os.Stderr, "SANDBOX AUDIT FAILED")
	fmt.Fprintf(os.Stderr, "failed checks: %s\n", strings.Join(report.FailedChecks(), ", "))
	fmt.Fprintln(os.Stderr, "the guard does not block everything the manifest claims; untrusted code could escape")

	if trusted {
		logger.Error(ctx, "aborting after failed audit (trusted mode suppresses the prompt, not enforcement)", zap.Error(err))
		eng.Abort(ctx)
		return false
	}

	fmt.Fprint(os.Stderr, "type 'override' to run anyway, anything else aborts: ")
	line, readErr := bufio.NewReader(confirm).ReadString('\n')
	if readErr != nil || strings.TrimSpace(line) != "override" {
		logger.Error(ctx, "aborting after failed audit", zap.Error(err))
		eng.Abort(ctx)
		return false
	}
	if overrideErr := eng.Override(ctx, "operator confirmed override after failed audit"); overrideErr != nil {
		logger.Error(ctx, "audit override refused", zap.Error(overrideErr))
		return false
	}
	return true
}
