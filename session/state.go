package session

import (
	"time"

	"github.com/zhubert/screenrec/capture"
	"github.com/zhubert/screenrec/process"
)

// State is the user-facing recording status.
type State int

const (
	// StateIdle means no encoder is owned.
	StateIdle State = iota

	// StateStarting is set as soon as a start is requested, before the
	// encoder is confirmed running.
	StateStarting

	// StateRecording means the encoder is capturing.
	StateRecording

	// StatePaused means the encoder is suspended, or paused cosmetically on
	// platforms that cannot suspend it.
	StatePaused

	// StateStopping means a stop was requested and the encoder has not been
	// reaped yet.
	StateStopping

	// StateError is shown after a failed start.
	StateError

	// StateSaved is shown after the encoder exits, carrying the file name.
	StateSaved
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRecording:
		return "recording"
	case StatePaused:
		return "paused"
	case StateStopping:
		return "stopping"
	case StateError:
		return "error"
	case StateSaved:
		return "saved"
	default:
		return "unknown"
	}
}

// Active reports whether an encoder is owned in this state.
func (s State) Active() bool {
	switch s {
	case StateStarting, StateRecording, StatePaused, StateStopping:
		return true
	}
	return false
}

// Snapshot is a consistent copy of the controller state.
type Snapshot struct {
	State      State
	SessionID  string
	OutputPath string
	Options    capture.Options
	Elapsed    time.Duration

	// LastLine is the most recent encoder diagnostic line.
	LastLine string

	// SavedFile is the base name of the finished recording in StateSaved.
	SavedFile string
	ExitCode  int
	Forced    bool

	// ErrorKind and Err describe a failed start (StateError) or an encoder
	// that exited with a failure code (StateSaved).
	ErrorKind process.ErrorKind
	Err       error

	// Suspended is false during a cosmetic pause, when the encoder keeps
	// capturing even though the state is Paused.
	Suspended bool
}

// StartResult is the outcome of Controller.Start.
type StartResult struct {
	OK         bool
	SessionID  string
	OutputPath string
	ErrorKind  process.ErrorKind
	Err        error
}
