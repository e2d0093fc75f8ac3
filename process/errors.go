package process

import (
	"errors"
)

var (
	// ErrAlreadyRunning is returned by Start while an encoder is owned.
	ErrAlreadyRunning = errors.New("a recording is already in progress")

	// ErrEncoderUnavailable is returned when the encoder binary fails its
	// liveness probe. Never retried automatically.
	ErrEncoderUnavailable = errors.New("encoder not available")

	// ErrSpawnFailure is returned when process creation fails after a
	// successful probe.
	ErrSpawnFailure = errors.New("failed to start encoder")

	// ErrDirectoryUnwritable is returned when the save directory cannot be
	// created.
	ErrDirectoryUnwritable = errors.New("save directory is not writable")

	// ErrInvalidOptions is returned when the requested options fail validation.
	ErrInvalidOptions = errors.New("invalid recording options")

	// ErrNotRunning is returned by Pause and Resume when no encoder is owned.
	ErrNotRunning = errors.New("no recording in progress")

	// ErrPauseUnsupported is returned by Pause on platforms that cannot
	// suspend the encoder, unless cosmetic pausing is enabled.
	ErrPauseUnsupported = errors.New("pausing is not supported on this platform")

	// ErrSupervisorExists is returned by NewSupervisor while another
	// supervisor is still open.
	ErrSupervisorExists = errors.New("a supervisor is already open")

	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("supervisor closed")
)

// ErrorKind names a failure category in results handed to the interface layer.
type ErrorKind string

const (
	KindNone                ErrorKind = ""
	KindAlreadyRunning      ErrorKind = "AlreadyRunning"
	KindEncoderUnavailable  ErrorKind = "EncoderUnavailable"
	KindSpawnFailure        ErrorKind = "SpawnFailure"
	KindDirectoryUnwritable ErrorKind = "DirectoryUnwritable"
	KindInvalidOptions      ErrorKind = "InvalidOptions"
	KindProcessCrashed      ErrorKind = "ProcessCrashed"
	KindUnknown             ErrorKind = "Unknown"
)

var kindBySentinel = []struct {
	err  error
	kind ErrorKind
}{
	{ErrAlreadyRunning, KindAlreadyRunning},
	{ErrEncoderUnavailable, KindEncoderUnavailable},
	{ErrSpawnFailure, KindSpawnFailure},
	{ErrDirectoryUnwritable, KindDirectoryUnwritable},
	{ErrInvalidOptions, KindInvalidOptions},
}

// KindOf maps err to its ErrorKind. A nil error maps to KindNone.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, s := range kindBySentinel {
		if errors.Is(err, s.err) {
			return s.kind
		}
	}
	return KindUnknown
}
