package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/zhubert/screenrec/catalog"
)

// Formatter writes human-readable command output.
type Formatter struct {
	w io.Writer
}

// NewFormatter returns a Formatter writing to w.
func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

// Error prints msg with the error style.
func (f *Formatter) Error(msg string) {
	fmt.Fprintf(f.w, "✗ %s\n", msg)
}

// Info prints msg with the info style.
func (f *Formatter) Info(msg string) {
	fmt.Fprintf(f.w, "%s\n", msg)
}

// Success prints msg with the success style.
func (f *Formatter) Success(msg string) {
	fmt.Fprintf(f.w, "✓ %s\n", msg)
}

// Warning prints msg with the warning style.
func (f *Formatter) Warning(msg string) {
	fmt.Fprintf(f.w, "! %s\n", msg)
}

// RecordingList prints files newest first with size and modification time.
func (f *Formatter) RecordingList(dir string, files []catalog.RecordingFile) {
	fmt.Fprintf(f.w, "Recordings in %s:\n\n", dir)
	for _, file := range files {
		fmt.Fprintf(f.w, "  %-40s %10s  %s\n", file.Name, catalog.FormatSize(file.Size), file.ModTime.Format(time.DateTime))
	}
	fmt.Fprintf(f.w, "\n%d recording(s), %s total\n", len(files), catalog.FormatSize(catalog.Total(files)))
}

// SetupCheck prints one prerequisite result line.
func (f *Formatter) SetupCheck(name string, ok bool, detail string) {
	if ok {
		fmt.Fprintf(f.w, "  ✓ %s: %s\n", name, detail)
	} else {
		fmt.Fprintf(f.w, "  ✗ %s: %s\n", name, detail)
	}
}
