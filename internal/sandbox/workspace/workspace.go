// Package workspace manages the ephemeral per-run sandbox directory
// lifecycle: create, populate, expose, destroy.
package workspace

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"aibugbench/internal/sandbox/pathguard"
	appErr "aibugbench/pkg/errors"
	"aibugbench/pkg/utils/logger"
)

// State is the session lifecycle state.
type State string

const (
	StateActive    State = "Active"
	StateDestroyed State = "Destroyed"
)

// Session is the isolated execution context for one run of submitted code.
// Its root is a fresh, unique path under the manager's work root and is never
// reused across runs.
type Session struct {
	RunID        string
	SubmissionID string
	Root         string
	WorkDir      string
	HomeDir      string
	TmpDir       string
	GuardDir     string

	NetworkAllowed bool
	MemoryMB       int64
	TimeoutS       int64

	// Env is the resolved child environment, filled in by the executor.
	Env map[string]string

	state State
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// CreateOptions describe what to provision into a new session.
type CreateOptions struct {
	SubmissionID string
	// SourceDir is copied read-only into the session work directory.
	// Empty means an empty work directory.
	SourceDir      string
	NetworkAllowed bool
	MemoryMB       int64
	TimeoutS       int64
}

// Manager allocates and destroys sessions under a single work root.
type Manager struct {
	workRoot string
}

// NewManager creates a manager rooted at workRoot (os.TempDir when empty).
func NewManager(workRoot string) (*Manager, error) {
	if workRoot == "" {
		workRoot = os.TempDir()
	}
	info, err := os.Stat(workRoot)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.WorkspaceRootInvalid, "stat work root %q: %v", workRoot, err)
	}
	if !info.IsDir() {
		return nil, appErr.Newf(appErr.WorkspaceRootInvalid, "work root %q is not a directory", workRoot)
	}
	return &Manager{workRoot: workRoot}, nil
}

// Create allocates a unique session root with isolated home/tmp/guard
// subdirectories and copies the submission sources in. On any failure the
// partial directory is removed before the error is returned.
func (m *Manager) Create(ctx context.Context, runID string, opts CreateOptions) (*Session, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	root := filepath.Join(m.workRoot, "aibugbench-"+runID)
	if _, err := os.Stat(root); err == nil {
		return nil, appErr.Newf(appErr.WorkspaceCreateFailed, "session root %q already exists", root)
	}

	session := &Session{
		RunID:          runID,
		SubmissionID:   opts.SubmissionID,
		Root:           root,
		WorkDir:        filepath.Join(root, "work"),
		HomeDir:        filepath.Join(root, "home"),
		TmpDir:         filepath.Join(root, "tmp"),
		GuardDir:       filepath.Join(root, ".guard"),
		NetworkAllowed: opts.NetworkAllowed,
		MemoryMB:       opts.MemoryMB,
		TimeoutS:       opts.TimeoutS,
		state:          StateActive,
	}

	for _, dir := range []string{root, session.WorkDir, session.HomeDir, session.TmpDir, session.GuardDir} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			m.cleanupPartial(ctx, root)
			return nil, appErr.WorkspaceError(err, "create")
		}
	}

	if opts.SourceDir != "" {
		if err := copyTree(opts.SourceDir, session.WorkDir); err != nil {
			m.cleanupPartial(ctx, root)
			return nil, appErr.Wrap(err, appErr.WorkspacePopulateFailed)
		}
	}

	logger.Debug(ctx, "sandbox session created",
		zap.String("root", root),
		zap.String("submission_id", opts.SubmissionID))
	return session, nil
}

// Teardown removes the session root recursively. It is idempotent and never
// returns an error: an already-gone path is not a fault, and removal failures
// are logged for the operator instead of raised.
func (m *Manager) Teardown(ctx context.Context, session *Session) {
	if session == nil || session.Root == "" {
		return
	}
	if err := os.RemoveAll(session.Root); err != nil {
		logger.Warn(ctx, "sandbox teardown incomplete",
			zap.String("root", session.Root), zap.Error(err))
		return
	}
	session.state = StateDestroyed
	logger.Debug(ctx, "sandbox session destroyed", zap.String("root", session.Root))
}

func (m *Manager) cleanupPartial(ctx context.Context, root string) {
	if err := os.RemoveAll(root); err != nil {
		logger.Warn(ctx, "partial workspace cleanup failed",
			zap.String("root", root), zap.Error(err))
	}
}

// copyTree copies src recursively into dst. Regular files and directories
// only; anything else in a submission is skipped.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		ok, err := pathguard.Allow(dst, target)
		if err != nil {
			return err
		}
		if !ok {
			return appErr.Newf(appErr.PathOutsideSandbox, "submission entry %q escapes the work directory", rel)
		}
		if d.IsDir() {
			if rel == "." {
				return nil
			}
			return os.MkdirAll(target, 0755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
