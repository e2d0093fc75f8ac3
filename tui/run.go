package tui

import (
	"context"
	"errors"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/zhubert/screenrec/capture"
)

// IsTTY returns true if stdout is connected to a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Run records one or more sessions. On a terminal it runs the interactive
// screen in alternate screen mode; otherwise it falls back to RunPlain,
// which stops when ctx is cancelled.
func Run(ctx context.Context, rec Recorder, opts capture.Options, countdown time.Duration, installHint string) error {
	if !IsTTY() {
		return RunPlain(ctx, rec, opts, countdown, installHint, os.Stdout)
	}
	p := tea.NewProgram(NewModel(rec, opts, countdown, installHint), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		// Interrupted from outside; make sure the encoder finalizes.
		rec.Stop()
		return nil
	}
	return err
}
