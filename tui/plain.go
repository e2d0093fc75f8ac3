package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/zhubert/screenrec/capture"
	"github.com/zhubert/screenrec/process"
	"github.com/zhubert/screenrec/session"
)

// RunPlain records without a terminal UI. It counts down, starts recording,
// prints each state change to out, and stops when ctx is cancelled. It
// returns once the session has left the active states.
func RunPlain(ctx context.Context, rec Recorder, opts capture.Options, countdown time.Duration, installHint string, out io.Writer) error {
	updates, unsubscribe := rec.Subscribe()
	defer unsubscribe()

	for remaining := int((countdown + time.Second - 1) / time.Second); remaining > 0; remaining-- {
		fmt.Fprintf(out, "Starting in %d…\n", remaining)
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "Cancelled.")
			return nil
		case <-time.After(time.Second):
		}
	}

	res := rec.Start(context.WithoutCancel(ctx), opts)
	if !res.OK {
		return errors.New(startFailure(res, installHint))
	}
	fmt.Fprintf(out, "Recording to %s (Ctrl+C to stop)\n", res.OutputPath)

	last := session.StateIdle
	stopRequested := false
	for {
		select {
		case <-ctx.Done():
			if !stopRequested {
				stopRequested = true
				ctx = context.Background()
				fmt.Fprintln(out, "Stopping…")
				go rec.Stop()
			}
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			if snap.State == last {
				continue
			}
			last = snap.State
			switch snap.State {
			case session.StatePaused:
				fmt.Fprintf(out, "Paused at %s\n", FormatElapsed(snap.Elapsed))
			case session.StateSaved:
				fmt.Fprintf(out, "Saved %s (%s)\n", snap.OutputPath, FormatElapsed(snap.Elapsed))
				if snap.ErrorKind == process.KindProcessCrashed {
					fmt.Fprintf(out, "Encoder exited with code %d; the file may be incomplete.\n", snap.ExitCode)
				}
				return nil
			case session.StateError:
				return fmt.Errorf("recording failed: %w", snap.Err)
			case session.StateIdle:
				return nil
			}
		}
	}
}
