package fsutil

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// DirectorySize returns the total size in bytes of all regular files under
// path. File symlinks are sized through the link (hub cache snapshots link
// individual files into the blob store) but directory symlinks are never
// followed, so link cycles cannot recurse. Best-effort: unreadable entries
// and broken links are skipped, and a missing path yields 0.
func DirectorySize(path string) int64 {
	var total int64
	entries, err := os.ReadDir(path)
	if err != nil {
		return 0
	}
	for _, entry := range entries {
		sub := filepath.Join(path, entry.Name())
		info, err := entry.Info() // lstat, does not follow symlinks
		if err != nil {
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 {
			target, err := os.Stat(sub)
			if err == nil && target.Mode().IsRegular() {
				total += target.Size()
			}
			continue
		}
		if info.IsDir() {
			total += DirectorySize(sub)
		} else if info.Mode().IsRegular() {
			total += info.Size()
		}
	}
	return total
}

// FileSize returns the size of the file at path, or -1 if it does not exist.
func FileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return -1
	}
	return info.Size()
}

// EnsureDir creates the directory (and parents) if it does not exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}

var invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// SanitizeFilename replaces characters that are not safe in file names.
func SanitizeFilename(name string) string {
	return invalidFilenameChars.ReplaceAllString(name, "_")
}

// WithinRoot reports whether path resolves to a location under root. Used to
// reject delete/rename requests that escape the models directory.
func WithinRoot(root, path string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return false
	}
	// The root itself does not count as inside: deleting or renaming the
	// whole tree is never a valid request.
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
