// Package cli checks that the external tools a recording needs are installed.
package cli

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/zhubert/screenrec/exec"
)

// versionTimeout bounds each version query.
const versionTimeout = 5 * time.Second

// Prerequisite represents an external CLI tool
type Prerequisite struct {
	Name        string // Command name (e.g., "ffmpeg")
	Required    bool   // Whether recording is impossible without it
	Description string // Human-readable description
	VersionFlag string // Flag that prints the version; empty tries common flags
	InstallHint string // How to install it on this platform
}

// DefaultPrerequisites returns the tools used on goos. encoder is the
// configured encoder binary; empty means ffmpeg.
func DefaultPrerequisites(goos, encoder string) []Prerequisite {
	if encoder == "" {
		encoder = "ffmpeg"
	}
	prereqs := []Prerequisite{
		{
			Name:        encoder,
			Required:    true,
			Description: "FFmpeg video encoder",
			VersionFlag: "-version",
			InstallHint: InstallHint(goos),
		},
	}
	if goos == "linux" {
		prereqs = append(prereqs, Prerequisite{
			Name:        "xrandr",
			Required:    false, // Only used to size the capture region
			Description: "X display resolution query (optional, falls back to 1920x1080)",
			VersionFlag: "--version",
			InstallHint: "sudo apt install x11-xserver-utils",
		})
	}
	return prereqs
}

// InstallHint returns platform-specific FFmpeg install guidance.
func InstallHint(goos string) string {
	switch goos {
	case "darwin":
		return "brew install ffmpeg"
	case "windows":
		return "winget install ffmpeg (or download from https://ffmpeg.org/download.html and add it to PATH)"
	case "linux":
		return "sudo apt install ffmpeg (or your distribution's package manager)"
	default:
		return "see https://ffmpeg.org/download.html"
	}
}

// CheckResult contains the result of checking a prerequisite
type CheckResult struct {
	Prerequisite Prerequisite
	Found        bool
	Path         string // Path to the executable if found
	Version      string // Version string if available
	Error        error
}

// Checker looks tools up through a CommandExecutor.
type Checker struct {
	executor exec.CommandExecutor
}

// NewChecker returns a Checker. A nil executor means the default one.
func NewChecker(executor exec.CommandExecutor) *Checker {
	if executor == nil {
		executor = exec.GetDefaultExecutor()
	}
	return &Checker{executor: executor}
}

// Check verifies that a CLI tool is available in PATH
func (c *Checker) Check(ctx context.Context, prereq Prerequisite) CheckResult {
	result := CheckResult{Prerequisite: prereq}

	path, err := c.executor.LookPath(prereq.Name)
	if err != nil {
		result.Error = fmt.Errorf("%s not found in PATH", prereq.Name)
		return result
	}

	result.Found = true
	result.Path = path
	result.Version = c.version(ctx, prereq)
	return result
}

// CheckAll verifies all prerequisites and returns results
func (c *Checker) CheckAll(ctx context.Context, prereqs []Prerequisite) []CheckResult {
	results := make([]CheckResult, len(prereqs))
	for i, prereq := range prereqs {
		results[i] = c.Check(ctx, prereq)
	}
	return results
}

// ValidateRequired checks that all required prerequisites are met
// Returns nil if all required tools are found, otherwise returns an error
// describing what's missing
func (c *Checker) ValidateRequired(ctx context.Context, prereqs []Prerequisite) error {
	var missing []string

	for _, prereq := range prereqs {
		if !prereq.Required {
			continue
		}
		if _, err := c.executor.LookPath(prereq.Name); err != nil {
			missing = append(missing, fmt.Sprintf("  - %s (%s)\n    Install: %s",
				prereq.Name, prereq.Description, prereq.InstallHint))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required CLI tools:\n%s", strings.Join(missing, "\n"))
	}

	return nil
}

// version attempts to get the version of a CLI tool
func (c *Checker) version(ctx context.Context, prereq Prerequisite) string {
	// Different tools use different version flags
	flags := []string{"--version", "-version", "-v"}
	if prereq.VersionFlag != "" {
		flags = []string{prereq.VersionFlag}
	}

	for _, flag := range flags {
		vctx, cancel := context.WithTimeout(ctx, versionTimeout)
		output, err := c.executor.CombinedOutput(vctx, prereq.Name, flag)
		cancel()
		if err != nil {
			continue
		}
		// Return first line of output, trimmed
		first, _, _ := strings.Cut(string(output), "\n")
		version := strings.TrimSpace(first)
		if version == "" {
			continue
		}
		// Limit length to avoid overly long version strings
		if len(version) > 100 {
			version = version[:100] + "..."
		}
		return version
	}

	return ""
}

// FormatCheckResults formats check results for display
func FormatCheckResults(results []CheckResult) string {
	var sb strings.Builder

	sb.WriteString("Prerequisites:\n")
	for _, r := range results {
		status := "✓"
		if !r.Found {
			if r.Prerequisite.Required {
				status = "✗"
			} else {
				status = "○"
			}
		}

		fmt.Fprintf(&sb, "  %s %s", status, r.Prerequisite.Name)
		if r.Found && r.Version != "" {
			fmt.Fprintf(&sb, " (%s)", r.Version)
		} else if !r.Found {
			if r.Prerequisite.Required {
				sb.WriteString(" [REQUIRED]")
			} else {
				sb.WriteString(" [optional]")
			}
			if r.Prerequisite.InstallHint != "" {
				fmt.Fprintf(&sb, "\n      install: %s", r.Prerequisite.InstallHint)
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// CurrentPrerequisites returns DefaultPrerequisites for the running OS.
func CurrentPrerequisites(encoder string) []Prerequisite {
	return DefaultPrerequisites(runtime.GOOS, encoder)
}
