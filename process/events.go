package process

import (
	"bytes"
)

// EventKind identifies what an Event reports.
type EventKind int

const (
	// EventOutput carries one diagnostic line from the encoder.
	EventOutput EventKind = iota
	// EventTerminated is published exactly once per session after the
	// encoder exits, whatever the cause.
	EventTerminated
	// EventError reports a spawn failure. No EventTerminated follows it.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventOutput:
		return "output"
	case EventTerminated:
		return "terminated"
	case EventError:
		return "error"
	}
	return "unknown"
}

// Event is a notification from the supervisor. Within one session all
// EventOutput events are delivered before EventTerminated.
type Event struct {
	Kind      EventKind
	SessionID string

	// Line is set for EventOutput.
	Line string

	// ExitCode, OutputPath, Requested and Forced are set for EventTerminated.
	// ExitCode is -1 when the encoder was killed by a signal.
	ExitCode   int
	OutputPath string
	Requested  bool
	Forced     bool

	// Err is set for EventError.
	Err error
}

// Crashed reports whether a terminated encoder exited on its own with a
// failure code. The recording file may still be usable.
func (e Event) Crashed() bool {
	return e.Kind == EventTerminated && !e.Requested && e.ExitCode != 0
}

// scanEncoderLines splits on either \r or \n. ffmpeg rewrites its progress
// line with carriage returns, so each rewrite becomes its own line. Empty
// lines are dropped.
func scanEncoderLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) && (data[start] == '\r' || data[start] == '\n') {
		start++
	}
	if i := bytes.IndexAny(data[start:], "\r\n"); i >= 0 {
		return start + i + 1, data[start : start+i], nil
	}
	if atEOF && start < len(data) {
		return len(data), data[start:], nil
	}
	return start, nil, nil
}
