// Package catalog lists and manages finished recording files. It keeps no
// index: every query scans the save directory, and filesystem failures
// degrade to empty results or a false return instead of an error.
package catalog

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/zhubert/screenrec/capture"
	"github.com/zhubert/screenrec/exec"
	"github.com/zhubert/screenrec/logger"
	"github.com/zhubert/screenrec/paths"
)

// openTimeout bounds launching the OS handler. The handler detaches, so this
// only covers the launcher itself.
const openTimeout = 10 * time.Second

// RecordingFile is one finished recording.
type RecordingFile struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// Catalog scans and manipulates a recordings directory.
type Catalog struct {
	executor exec.CommandExecutor
	goos     string
	log      *slog.Logger
}

// New returns a Catalog that launches files through executor. A nil executor
// means the default one.
func New(executor exec.CommandExecutor) *Catalog {
	return newCatalog(executor, runtime.GOOS, nil)
}

func newCatalog(executor exec.CommandExecutor, goos string, log *slog.Logger) *Catalog {
	if executor == nil {
		executor = exec.GetDefaultExecutor()
	}
	if log == nil {
		log = logger.WithComponent("catalog")
	}
	return &Catalog{executor: executor, goos: goos, log: log}
}

// List returns the recordings in dir, newest first. An empty dir means the
// default recordings directory. A missing or unreadable directory yields an
// empty slice.
func (c *Catalog) List(dir string) []RecordingFile {
	if dir == "" {
		d, err := paths.RecordingsDir()
		if err != nil {
			c.log.Debug("no default recordings directory", "error", err)
			return []RecordingFile{}
		}
		dir = d
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Debug("failed to read recordings directory", "dir", dir, "error", err)
		}
		return []RecordingFile{}
	}

	files := make([]RecordingFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isRecording(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		files = append(files, RecordingFile{
			Name:    entry.Name(),
			Path:    filepath.Join(dir, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	slices.SortStableFunc(files, func(a, b RecordingFile) int {
		if n := b.ModTime.Compare(a.ModTime); n != 0 {
			return n
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return files
}

func isRecording(name string) bool {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	return capture.IsContainer(strings.ToLower(ext))
}

// Delete removes the recording at path. It refuses directories and reports
// any failure as false.
func (c *Catalog) Delete(path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		c.log.Debug("delete failed", "path", path, "error", err)
		return false
	}
	if info.IsDir() {
		c.log.Debug("refusing to delete directory", "path", path)
		return false
	}
	if err := os.Remove(path); err != nil {
		c.log.Debug("delete failed", "path", path, "error", err)
		return false
	}
	c.log.Info("recording deleted", "path", path)
	return true
}

// Open hands path to the system's default application.
func (c *Catalog) Open(ctx context.Context, path string) bool {
	if _, err := os.Stat(path); err != nil {
		c.log.Debug("open failed", "path", path, "error", err)
		return false
	}
	return c.launch(ctx, path)
}

// OpenFolder reveals dir, or the default recordings directory when dir is
// empty, in the system file manager.
func (c *Catalog) OpenFolder(ctx context.Context, dir string) bool {
	if dir == "" {
		d, err := ResolveDefaultDirectory()
		if err != nil {
			c.log.Debug("open folder failed", "error", err)
			return false
		}
		dir = d
	}
	return c.launch(ctx, dir)
}

func (c *Catalog) launch(ctx context.Context, target string) bool {
	name, args := openCommand(c.goos, target)
	ctx, cancel := context.WithTimeout(ctx, openTimeout)
	defer cancel()

	if _, stderr, err := c.executor.Run(ctx, name, args...); err != nil {
		c.log.Warn("failed to open", "target", target, "launcher", name, "error", err, "stderr", string(stderr))
		return false
	}
	return true
}

// openCommand returns the launcher that opens target with its default
// application.
func openCommand(goos, target string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{target}
	case "windows":
		// The empty argument is the window title start expects first.
		return "cmd", []string{"/c", "start", "", target}
	default:
		return "xdg-open", []string{target}
	}
}

// ResolveDefaultDirectory returns the platform's default recordings
// directory, creating it if needed. Calling it again is harmless.
func ResolveDefaultDirectory() (string, error) {
	dir, err := paths.RecordingsDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create recordings directory %s: %w", dir, err)
	}
	return dir, nil
}

// FormatSize renders a byte count for display.
func FormatSize(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.0f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// Total returns the combined size of files.
func Total(files []RecordingFile) int64 {
	var n int64
	for _, f := range files {
		n += f.Size
	}
	return n
}
