package pathguard_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"aibugbench/internal/sandbox/pathguard"
)

func TestAllowInsideRoot(t *testing.T) {
	root := t.TempDir()
	cases := []string{
		filepath.Join(root, "data.txt"),
		filepath.Join(root, "sub", "dir", "file.py"),
		root,
	}
	for _, candidate := range cases {
		ok, err := pathguard.Allow(root, candidate)
		if err != nil {
			t.Fatalf("Allow(%q): %v", candidate, err)
		}
		if !ok {
			t.Errorf("Allow(%q) = false, want true", candidate)
		}
	}
}

func TestAllowOutsideRoot(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()
	cases := []string{
		other,
		filepath.Join(other, "file.txt"),
		filepath.Join(root, "..", "escape.txt"),
	}
	for _, candidate := range cases {
		ok, err := pathguard.Allow(root, candidate)
		if err != nil {
			t.Fatalf("Allow(%q): %v", candidate, err)
		}
		if ok {
			t.Errorf("Allow(%q) = true, want false", candidate)
		}
	}
}

func TestAllowPrefixSibling(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "box")
	sibling := filepath.Join(parent, "boxes", "file.txt")
	if err := os.MkdirAll(root, 0700); err != nil {
		t.Fatalf("mkdir root: %v", err)
	}

	ok, err := pathguard.Allow(root, sibling)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if ok {
		t.Error("sibling directory sharing a name prefix must not be allowed")
	}
}

func TestAllowSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation needs privileges on windows")
	}
	root := t.TempDir()
	outside := t.TempDir()

	link := filepath.Join(root, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	ok, err := pathguard.Allow(root, filepath.Join(link, "file.txt"))
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if ok {
		t.Error("path through an escaping symlink must not be allowed")
	}
}

func TestAllowNonexistentDeepPath(t *testing.T) {
	root := t.TempDir()
	candidate := filepath.Join(root, "a", "b", "c", "d.txt")

	ok, err := pathguard.Allow(root, candidate)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if !ok {
		t.Error("nonexistent path under root must be allowed")
	}
}
