package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDirectorySize(t *testing.T) {
	dir := t.TempDir()
	if got := DirectorySize(filepath.Join(dir, "missing")); got != 0 {
		t.Fatalf("DirectorySize(missing)=%d, want 0", got)
	}

	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a"), make([]byte, 100), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "b"), make([]byte, 28), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := DirectorySize(dir); got != 128 {
		t.Fatalf("DirectorySize()=%d, want 128", got)
	}
}

func TestDirectorySizeSymlinks(t *testing.T) {
	dir := t.TempDir()
	blobs := filepath.Join(dir, "blobs")
	if err := os.MkdirAll(blobs, 0o755); err != nil {
		t.Fatal(err)
	}
	blob := filepath.Join(blobs, "abc123")
	if err := os.WriteFile(blob, make([]byte, 64), 0o644); err != nil {
		t.Fatal(err)
	}

	snapshot := filepath.Join(dir, "snapshots", "rev")
	if err := os.MkdirAll(snapshot, 0o755); err != nil {
		t.Fatal(err)
	}
	// hub cache layout: snapshot entries are file symlinks into blobs
	if err := os.Symlink(blob, filepath.Join(snapshot, "weights.safetensors")); err != nil {
		t.Fatal(err)
	}
	// a directory link pointing back up must not recurse
	if err := os.Symlink(dir, filepath.Join(snapshot, "loop")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(blobs, "missing"), filepath.Join(snapshot, "dangling")); err != nil {
		t.Fatal(err)
	}

	if got := DirectorySize(snapshot); got != 64 {
		t.Fatalf("DirectorySize()=%d, want 64 (linked file only)", got)
	}
}

func TestFileSize(t *testing.T) {
	dir := t.TempDir()
	if got := FileSize(filepath.Join(dir, "missing")); got != -1 {
		t.Fatalf("FileSize(missing)=%d, want -1", got)
	}
	path := filepath.Join(dir, "f")
	if err := os.WriteFile(path, []byte("12345"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := FileSize(path); got != 5 {
		t.Fatalf("FileSize()=%d, want 5", got)
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := SanitizeFilename("org/model:v1"); got != "org_model_v1" {
		t.Fatalf("SanitizeFilename()=%q, want org_model_v1", got)
	}
}

func TestWithinRoot(t *testing.T) {
	root := t.TempDir()

	if !WithinRoot(root, filepath.Join(root, "org", "model")) {
		t.Fatal("nested path rejected")
	}
	if WithinRoot(root, filepath.Join(root, "..", "escape")) {
		t.Fatal("escaping path accepted")
	}
	// the root itself is not a deletable target
	if WithinRoot(root, root) {
		t.Fatal("root itself accepted")
	}
}
