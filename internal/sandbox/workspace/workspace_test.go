package workspace_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"aibugbench/internal/sandbox/workspace"
)

func newManager(t *testing.T) (*workspace.Manager, string) {
	t.Helper()
	workRoot := t.TempDir()
	m, err := workspace.NewManager(workRoot)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, workRoot
}

func TestCreateLayout(t *testing.T) {
	m, workRoot := newManager(t)

	session, err := m.Create(context.Background(), "run-1", workspace.CreateOptions{
		SubmissionID: "sub-1",
		MemoryMB:     512,
		TimeoutS:     30,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer m.Teardown(context.Background(), session)

	if session.State() != workspace.StateActive {
		t.Errorf("state = %s, want Active", session.State())
	}
	if filepath.Dir(session.Root) != workRoot {
		t.Errorf("session root %q not under work root %q", session.Root, workRoot)
	}
	for name, dir := range map[string]string{
		"work":  session.WorkDir,
		"home":  session.HomeDir,
		"tmp":   session.TmpDir,
		"guard": session.GuardDir,
	} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("%s dir: %v", name, err)
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", name)
		}
	}
}

func TestCreateUniqueRoots(t *testing.T) {
	m, _ := newManager(t)

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		session, err := m.Create(context.Background(), "", workspace.CreateOptions{})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if seen[session.Root] {
			t.Fatalf("session root %q reused", session.Root)
		}
		seen[session.Root] = true
		m.Teardown(context.Background(), session)
	}
}

func TestCreateCopiesSubmission(t *testing.T) {
	m, _ := newManager(t)

	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "pkg"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(src, "run.py"), []byte("print('hi')\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(src, "pkg", "util.py"), []byte("x = 1\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	session, err := m.Create(context.Background(), "run-copy", workspace.CreateOptions{SourceDir: src})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer m.Teardown(context.Background(), session)

	data, err := os.ReadFile(filepath.Join(session.WorkDir, "run.py"))
	if err != nil {
		t.Fatalf("read copied entry: %v", err)
	}
	if string(data) != "print('hi')\n" {
		t.Errorf("copied content mismatch: %q", data)
	}
	if _, err := os.Stat(filepath.Join(session.WorkDir, "pkg", "util.py")); err != nil {
		t.Errorf("nested file not copied: %v", err)
	}
}

func TestCreateMissingSource(t *testing.T) {
	m, workRoot := newManager(t)

	_, err := m.Create(context.Background(), "run-bad", workspace.CreateOptions{
		SourceDir: filepath.Join(workRoot, "does-not-exist"),
	})
	if err == nil {
		t.Fatal("Create with missing source dir must fail")
	}
	if _, statErr := os.Stat(filepath.Join(workRoot, "aibugbench-run-bad")); !os.IsNotExist(statErr) {
		t.Error("partial session root left behind after failed create")
	}
}

func TestTeardownRemovesEverything(t *testing.T) {
	m, _ := newManager(t)

	session, err := m.Create(context.Background(), "run-td", workspace.CreateOptions{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := os.WriteFile(filepath.Join(session.TmpDir, "scratch.bin"), []byte("data"), 0644); err != nil {
		t.Fatalf("write scratch: %v", err)
	}

	m.Teardown(context.Background(), session)

	if _, err := os.Stat(session.Root); !os.IsNotExist(err) {
		t.Error("session root still present after teardown")
	}
	if session.State() != workspace.StateDestroyed {
		t.Errorf("state = %s, want Destroyed", session.State())
	}

	// Idempotent on an already-destroyed session.
	m.Teardown(context.Background(), session)
}

func TestNewManagerRejectsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := workspace.NewManager(file); err == nil {
		t.Fatal("NewManager must reject a non-directory work root")
	}
}
