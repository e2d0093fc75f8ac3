package capture

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/zhubert/screenrec/exec"
	"github.com/zhubert/screenrec/logger"
)

// FallbackResolution is used when the display cannot be queried.
var FallbackResolution = Resolution{Width: 1920, Height: 1080}

// displayQueryTimeout bounds each query command.
const displayQueryTimeout = 3 * time.Second

// Resolution is a display size in pixels.
type Resolution struct {
	Width  int
	Height int
}

// String formats the resolution the way ffmpeg's -s flag expects.
func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// DisplayResolver reports the primary display resolution.
type DisplayResolver interface {
	Resolution(ctx context.Context) Resolution
}

// StaticResolver always returns the same resolution.
type StaticResolver Resolution

// Resolution returns r.
func (r StaticResolver) Resolution(context.Context) Resolution {
	return Resolution(r)
}

// SystemResolver asks the OS for the primary display size using its
// standard tools. The first answer is cached for the process lifetime.
type SystemResolver struct {
	executor exec.CommandExecutor
	goos     string
	log      *slog.Logger

	mu     sync.Mutex
	cached *Resolution
}

// NewSystemResolver returns a resolver for the running OS. A nil executor
// uses the package default.
func NewSystemResolver(executor exec.CommandExecutor) *SystemResolver {
	return newSystemResolver(executor, runtime.GOOS, logger.WithComponent("capture"))
}

func newSystemResolver(executor exec.CommandExecutor, goos string, log *slog.Logger) *SystemResolver {
	if executor == nil {
		executor = exec.GetDefaultExecutor()
	}
	return &SystemResolver{executor: executor, goos: goos, log: log}
}

// Resolution returns the cached resolution, querying once on first use.
func (r *SystemResolver) Resolution(ctx context.Context) Resolution {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil {
		return *r.cached
	}

	res, err := r.query(ctx)
	if err != nil {
		r.log.Warn("display query failed, using fallback", "error", err, "fallback", FallbackResolution.String())
		res = FallbackResolution
	} else {
		r.log.Debug("display resolution", "resolution", res.String())
	}
	r.cached = &res
	return res
}

func (r *SystemResolver) query(ctx context.Context) (Resolution, error) {
	ctx, cancel := context.WithTimeout(ctx, displayQueryTimeout)
	defer cancel()

	switch r.goos {
	case "linux":
		if out, err := r.executor.Output(ctx, "xrandr", "--current"); err == nil {
			if res, ok := parseXrandr(string(out)); ok {
				return res, nil
			}
		}
		out, err := r.executor.Output(ctx, "xdpyinfo")
		if err != nil {
			return Resolution{}, fmt.Errorf("xrandr and xdpyinfo unavailable: %w", err)
		}
		if res, ok := parseXdpyinfo(string(out)); ok {
			return res, nil
		}
		return Resolution{}, fmt.Errorf("no dimensions in xdpyinfo output")
	case "darwin":
		out, err := r.executor.Output(ctx, "system_profiler", "SPDisplaysDataType")
		if err != nil {
			return Resolution{}, fmt.Errorf("system_profiler: %w", err)
		}
		if res, ok := parseSystemProfiler(string(out)); ok {
			return res, nil
		}
		return Resolution{}, fmt.Errorf("no resolution in system_profiler output")
	case "windows":
		out, err := r.executor.Output(ctx, "wmic", "path", "Win32_VideoController", "get",
			"CurrentHorizontalResolution,CurrentVerticalResolution")
		if err != nil {
			return Resolution{}, fmt.Errorf("wmic: %w", err)
		}
		if res, ok := parseWmic(string(out)); ok {
			return res, nil
		}
		return Resolution{}, fmt.Errorf("no resolution in wmic output")
	}
	return Resolution{}, fmt.Errorf("display query not supported on %s", r.goos)
}

var (
	xrandrPrimaryRe = regexp.MustCompile(`connected primary (\d+)x(\d+)`)
	xrandrCurrentRe = regexp.MustCompile(`current (\d+) x (\d+)`)
	xdpyinfoRe      = regexp.MustCompile(`dimensions:\s+(\d+)x(\d+) pixels`)
	profilerRe      = regexp.MustCompile(`Resolution:\s+(\d+) x (\d+)`)
)

func parseXrandr(out string) (Resolution, bool) {
	if res, ok := matchResolution(xrandrPrimaryRe, out); ok {
		return res, true
	}
	return matchResolution(xrandrCurrentRe, out)
}

func parseXdpyinfo(out string) (Resolution, bool) {
	return matchResolution(xdpyinfoRe, out)
}

func parseSystemProfiler(out string) (Resolution, bool) {
	return matchResolution(profilerRe, out)
}

// parseWmic reads the first data row of the two-column wmic table.
func parseWmic(out string) (Resolution, bool) {
	for line := range strings.Lines(out) {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		w, errW := strconv.Atoi(fields[0])
		h, errH := strconv.Atoi(fields[1])
		if errW == nil && errH == nil && w > 0 && h > 0 {
			return Resolution{Width: w, Height: h}, true
		}
	}
	return Resolution{}, false
}

func matchResolution(re *regexp.Regexp, out string) (Resolution, bool) {
	m := re.FindStringSubmatch(out)
	if m == nil {
		return Resolution{}, false
	}
	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	if w <= 0 || h <= 0 {
		return Resolution{}, false
	}
	return Resolution{Width: w, Height: h}, true
}
