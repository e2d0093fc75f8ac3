// Package capture builds the encoder command line for a screen recording.
//
// Everything here is a pure function of its inputs except the display
// resolution, which comes from a DisplayResolver. SystemResolver caches its
// first answer, so two builds with the same options in one process produce
// identical arguments.
package capture

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"time"
)

// DefaultContainer is the file format used when none is configured.
const DefaultContainer = "mp4"

// Containers lists the output formats the catalog recognizes.
var Containers = []string{"mp4", "mkv"}

// fileNameLayout renders Recording_<year>-<month>-<day>_<hour>-<minute>-<second>.
const fileNameLayout = "2006-01-02_15-04-05"

// Options are the per-session recording settings. They are captured when a
// session starts and never change while it runs.
type Options struct {
	FrameRate int
	Quality   Quality
	Audio     bool
	SaveDir   string
	Container string
}

// Validate checks the options before anything is spawned.
func (o Options) Validate() error {
	if o.FrameRate <= 0 {
		return fmt.Errorf("frame rate must be positive, got %d", o.FrameRate)
	}
	if o.SaveDir == "" {
		return fmt.Errorf("save directory is required")
	}
	if o.Container != "" && !IsContainer(o.Container) {
		return fmt.Errorf("unsupported container %q", o.Container)
	}
	return nil
}

// ContainerOrDefault returns the configured container or DefaultContainer.
func (o Options) ContainerOrDefault() string {
	if o.Container == "" {
		return DefaultContainer
	}
	return o.Container
}

// IsContainer reports whether ext (without dot) is a supported container.
func IsContainer(ext string) bool {
	return slices.Contains(Containers, ext)
}

// OutputFileName returns the recording file name for a session started at t.
func OutputFileName(t time.Time, container string) string {
	return "Recording_" + t.Format(fileNameLayout) + "." + container
}

// OutputPath joins the save directory with the timestamped file name.
func OutputPath(opts Options, t time.Time) string {
	return filepath.Join(opts.SaveDir, OutputFileName(t, opts.ContainerOrDefault()))
}

// BuildArgs returns the encoder arguments for one recording. Token order is
// fixed: capture inputs, video codec, optional audio codec, then the output.
func BuildArgs(p Platform, opts Options, res Resolution, outputPath string) []string {
	fps := strconv.Itoa(opts.FrameRate)
	var args []string

	switch p.Backend {
	case "x11grab":
		args = append(args, "-f", p.Backend, "-r", fps, "-s", res.String(), "-i", p.Input)
		if opts.Audio {
			args = append(args, "-f", p.AudioBackend, "-i", p.AudioInput)
		}
	case "avfoundation":
		input := "1:none"
		if opts.Audio {
			input = "1:0"
		}
		args = append(args, "-f", p.Backend, "-r", fps, "-i", input)
	case "gdigrab":
		args = append(args, "-f", p.Backend, "-r", fps, "-i", p.Input)
		if opts.Audio {
			args = append(args, "-f", p.AudioBackend, "-i", p.AudioInput)
		}
	}

	args = append(args,
		"-c:v", "libx264",
		"-crf", opts.Quality.CRF(),
		"-preset", "ultrafast",
		"-pix_fmt", "yuv420p",
	)
	if opts.Audio {
		args = append(args, "-c:a", "aac", "-b:a", "128k")
	}
	return append(args, "-y", outputPath)
}

// Builder binds a platform and display resolver so callers only supply
// per-session options.
type Builder struct {
	Platform Platform
	Resolver DisplayResolver
}

// NewBuilder returns a Builder for the running OS backed by the system
// display resolver.
func NewBuilder() *Builder {
	return &Builder{
		Platform: CurrentPlatform(),
		Resolver: NewSystemResolver(nil),
	}
}

// Build queries the display resolution and returns the encoder arguments.
func (b *Builder) Build(ctx context.Context, opts Options, outputPath string) []string {
	return BuildArgs(b.Platform, opts, b.Resolver.Resolution(ctx), outputPath)
}
