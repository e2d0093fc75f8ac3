package config

import (
	"os"
	"path/filepath"
	"strings"
)

// SamePath returns true if a and b refer to the same filesystem entry.
// It handles case-insensitive filesystems (e.g. macOS APFS) and symlinks
// by comparing device+inode via os.SameFile. Falls back to exact string
// comparison when either path cannot be stat'd.
func SamePath(a, b string) bool {
	if a == b {
		return true
	}
	infoA, errA := os.Stat(a)
	infoB, errB := os.Stat(b)
	if errA != nil || errB != nil {
		return false
	}
	return os.SameFile(infoA, infoB)
}

// ExpandPath expands a leading ~/ and makes p absolute.
func ExpandPath(p string) string {
	if p == "" {
		return ""
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
