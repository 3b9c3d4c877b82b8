package repocache

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestCheckout_EnsureClonesOnce(t *testing.T) {
	sourceDir := t.TempDir()
	setupTestRepo(t, sourceDir)

	dir := filepath.Join(t.TempDir(), "data", "repo")
	checkout := New(dir, "", "")

	if checkout.Exists() {
		t.Fatal("Exists() = true before clone")
	}

	if err := checkout.Ensure(context.Background(), sourceDir); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "README.md")); err != nil {
		t.Errorf("expected working tree with README.md: %v", err)
	}

	// Second call is a no-op
	if err := checkout.Ensure(context.Background(), "/nonexistent/source"); err != nil {
		t.Errorf("Ensure() on existing checkout error = %v", err)
	}
}

func TestCheckout_HasBranch(t *testing.T) {
	dir := t.TempDir()
	setupTestRepo(t, dir)
	runGit(t, dir, "branch", "upstream-merge-101")

	checkout := New(dir, "", "")

	ok, err := checkout.HasBranch("upstream-merge-101")
	if err != nil {
		t.Fatalf("HasBranch() error = %v", err)
	}
	if !ok {
		t.Error("HasBranch(upstream-merge-101) = false, want true")
	}

	ok, err = checkout.HasBranch("upstream-merge-102")
	if err != nil {
		t.Fatalf("HasBranch() error = %v", err)
	}
	if ok {
		t.Error("HasBranch(upstream-merge-102) = true, want false")
	}
}

func TestCheckout_HasBranchNotARepo(t *testing.T) {
	_, err := New(t.TempDir(), "", "").HasBranch("main")
	if err == nil {
		t.Error("HasBranch() error = nil, want error outside a repository")
	}
}

func setupTestRepo(t *testing.T, dir string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	runGit(t, dir, "init")
	runGit(t, dir, "config", "user.email", "test@test.com")
	runGit(t, dir, "config", "user.name", "Test")

	readme := filepath.Join(dir, "README.md")
	if err := os.WriteFile(readme, []byte("# Test"), 0644); err != nil {
		t.Fatalf("failed to write README: %v", err)
	}

	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "initial")
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v failed: %v: %s", args, err, output)
	}
}
