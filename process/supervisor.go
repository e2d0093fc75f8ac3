// Package process owns the lifetime of the external encoder that performs a
// screen recording. At most one encoder runs at a time. The supervisor
// spawns it, relays its diagnostic output, suspends and resumes it, and
// stops it gracefully with a bounded forced fallback.
package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	osexec "os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zhubert/screenrec/capture"
	"github.com/zhubert/screenrec/exec"
	"github.com/zhubert/screenrec/logger"
)

const (
	// DefaultBinary is the encoder looked up on PATH.
	DefaultBinary = "ffmpeg"

	// DefaultStopTimeout bounds how long Stop waits for a graceful exit
	// before killing the encoder.
	DefaultStopTimeout = 6 * time.Second

	// probeTimeout bounds the "-version" liveness check.
	probeTimeout = 5 * time.Second

	// eventBufferSize is the capacity of the event channel. Output lines are
	// dropped when it is full; EventTerminated is never dropped.
	eventBufferSize = 64

	// quitCommand asks ffmpeg to finalize the container and exit.
	quitCommand = "q"
)

// commandFunc creates the encoder command. Tests replace it to run a fake
// encoder.
var commandFunc = osexec.Command

// active guards the one-supervisor-per-process rule.
var active atomic.Bool

// State is the supervisor's view of the encoder.
type State int

const (
	// StateUnowned means no encoder is running.
	StateUnowned State = iota
	// StateRunning means the encoder is capturing.
	StateRunning
	// StatePaused means the encoder is suspended (or cosmetically paused).
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateUnowned:
		return "unowned"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	}
	return "unknown"
}

// Config configures a Supervisor. Zero values fall back to defaults.
type Config struct {
	// Binary is the encoder executable. Defaults to DefaultBinary.
	Binary string

	// Builder turns options into encoder arguments. Defaults to
	// capture.NewBuilder().
	Builder *capture.Builder

	// Executor runs the liveness probe. Defaults to exec.GetDefaultExecutor().
	Executor exec.CommandExecutor

	// StopTimeout defaults to DefaultStopTimeout.
	StopTimeout time.Duration

	// AllowCosmeticPause lets Pause succeed on platforms that cannot suspend
	// the encoder. Capture continues and only bookkeeping changes.
	AllowCosmeticPause bool

	// EncoderLog tees encoder output to a per-session file under the logs
	// directory.
	EncoderLog bool

	Log *slog.Logger
	Now func() time.Time
}

// Recording describes the session owned by a running encoder.
type Recording struct {
	SessionID  string
	OutputPath string
	Options    capture.Options
	StartedAt  time.Time
	PID        int
}

// StopResult reports how a Stop call ended.
type StopResult struct {
	// OK is false when no encoder was owned.
	OK bool
	// Forced is true when the encoder had to be killed after StopTimeout.
	Forced     bool
	ExitCode   int
	OutputPath string
}

// Supervisor owns at most one encoder process.
type Supervisor struct {
	binary      string
	builder     *capture.Builder
	executor    exec.CommandExecutor
	stopTimeout time.Duration
	cosmetic    bool
	encoderLog  bool
	log         *slog.Logger
	now         func() time.Time

	// opMu serializes Start, Stop, Pause and Resume.
	opMu sync.Mutex

	mu        sync.Mutex
	cmd       *osexec.Cmd
	stdin     io.WriteCloser
	state     State
	suspended bool
	requested bool
	forced    bool
	current   Recording
	waitDone  chan struct{}
	exitCode  int
	closed    bool

	events   chan Event
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// NewSupervisor creates the process-wide supervisor. It fails with
// ErrSupervisorExists until the previous supervisor is closed.
func NewSupervisor(cfg Config) (*Supervisor, error) {
	if !active.CompareAndSwap(false, true) {
		return nil, ErrSupervisorExists
	}

	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}
	if cfg.Builder == nil {
		cfg.Builder = capture.NewBuilder()
	}
	if cfg.Executor == nil {
		cfg.Executor = exec.GetDefaultExecutor()
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	if cfg.Log == nil {
		cfg.Log = logger.WithComponent("process")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Supervisor{
		binary:      cfg.Binary,
		builder:     cfg.Builder,
		executor:    cfg.Executor,
		stopTimeout: cfg.StopTimeout,
		cosmetic:    cfg.AllowCosmeticPause,
		encoderLog:  cfg.EncoderLog,
		log:         cfg.Log,
		now:         cfg.Now,
		events:      make(chan Event, eventBufferSize),
		shutdown:    make(chan struct{}),
	}, nil
}

// Events returns the channel on which output, termination and spawn error
// events are published. It is closed by Close.
func (s *Supervisor) Events() <-chan Event {
	return s.events
}

// Probe reports whether the encoder binary answers "-version". Any failure,
// including a missing binary or a timeout, yields false.
func (s *Supervisor) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	_, stderr, err := s.executor.Run(ctx, s.binary, "-version")
	if err != nil {
		s.log.Warn("encoder probe failed", "binary", s.binary, "error", err, "stderr", string(stderr))
		return false
	}
	return true
}

// CanSuspend reports whether Pause actually halts capture on this platform.
func (s *Supervisor) CanSuspend() bool {
	return suspendSupported && s.builder.Platform.CanSuspend
}

// State returns the current ownership state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Suspended reports whether the encoder is currently stopped by a signal.
// It is false during a cosmetic pause.
func (s *Supervisor) Suspended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suspended
}

// Current returns the owned recording, if any.
func (s *Supervisor) Current() (Recording, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.state != StateUnowned
}

// Start launches the encoder for opts. The checks run in order: ownership,
// option validation, encoder probe, save directory creation, spawn. Each
// failure maps to its own sentinel error.
func (s *Supervisor) Start(ctx context.Context, opts capture.Options) (Recording, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Recording{}, ErrClosed
	}
	if s.state != StateUnowned {
		s.mu.Unlock()
		return Recording{}, ErrAlreadyRunning
	}
	s.mu.Unlock()

	if err := opts.Validate(); err != nil {
		return Recording{}, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}

	if !s.Probe(ctx) {
		return Recording{}, ErrEncoderUnavailable
	}

	if err := os.MkdirAll(opts.SaveDir, 0755); err != nil {
		return Recording{}, fmt.Errorf("%w: %v", ErrDirectoryUnwritable, err)
	}

	sessionID := uuid.NewString()
	startedAt := s.now()
	outputPath := capture.OutputPath(opts, startedAt)
	args := s.builder.Build(ctx, opts, outputPath)
	log := s.log.With("sessionID", sessionID)

	cmd := commandFunc(s.binary, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return Recording{}, s.spawnFailed(sessionID, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		return Recording{}, s.spawnFailed(sessionID, err)
	}

	log.Info("starting encoder", "binary", s.binary, "output", outputPath, "args", args)
	if err := cmd.Start(); err != nil {
		stdin.Close()
		return Recording{}, s.spawnFailed(sessionID, err)
	}

	rec := Recording{
		SessionID:  sessionID,
		OutputPath: outputPath,
		Options:    opts,
		StartedAt:  startedAt,
		PID:        cmd.Process.Pid,
	}

	waitDone := make(chan struct{})
	s.mu.Lock()
	s.cmd = cmd
	s.stdin = stdin
	s.state = StateRunning
	s.suspended = false
	s.requested = false
	s.forced = false
	s.current = rec
	s.waitDone = waitDone
	s.mu.Unlock()

	s.wg.Add(1)
	go s.supervise(cmd, stderr, rec, waitDone, log)

	log.Info("encoder started", "pid", rec.PID)
	return rec, nil
}

func (s *Supervisor) spawnFailed(sessionID string, err error) error {
	s.log.Error("failed to spawn encoder", "sessionID", sessionID, "error", err)
	wrapped := fmt.Errorf("%w: %v", ErrSpawnFailure, err)
	select {
	case s.events <- Event{Kind: EventError, SessionID: sessionID, Err: wrapped}:
	default:
	}
	return wrapped
}

// supervise relays encoder output, then reaps the process. It is the sole
// caller of cmd.Wait.
func (s *Supervisor) supervise(cmd *osexec.Cmd, stderr io.Reader, rec Recording, waitDone chan struct{}, log *slog.Logger) {
	defer s.wg.Done()

	tee := s.openEncoderLog(rec.SessionID, log)

	scanner := bufio.NewScanner(stderr)
	scanner.Split(scanEncoderLines)
	for scanner.Scan() {
		line := scanner.Text()
		if tee != nil {
			fmt.Fprintln(tee, line)
		}
		select {
		case s.events <- Event{Kind: EventOutput, SessionID: rec.SessionID, Line: line}:
		default:
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		log.Debug("encoder output read ended", "error", err)
	}
	if tee != nil {
		tee.Close()
	}

	waitErr := cmd.Wait()
	exitCode := 0
	if waitErr != nil {
		var exitErr *osexec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	s.mu.Lock()
	requested := s.requested
	forced := s.forced
	if s.stdin != nil {
		s.stdin.Close()
		s.stdin = nil
	}
	s.cmd = nil
	s.state = StateUnowned
	s.suspended = false
	s.current = Recording{}
	s.exitCode = exitCode
	s.mu.Unlock()
	close(waitDone)

	if requested {
		log.Info("encoder exited", "exitCode", exitCode, "forced", forced)
	} else {
		log.Warn("encoder exited unexpectedly", "exitCode", exitCode, "error", waitErr)
	}

	s.publish(Event{
		Kind:       EventTerminated,
		SessionID:  rec.SessionID,
		ExitCode:   exitCode,
		OutputPath: rec.OutputPath,
		Requested:  requested,
		Forced:     forced,
	})
}

func (s *Supervisor) openEncoderLog(sessionID string, log *slog.Logger) *os.File {
	if !s.encoderLog {
		return nil
	}
	path, err := logger.EncoderLogPath(sessionID)
	if err != nil {
		log.Warn("encoder log disabled", "error", err)
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Warn("encoder log disabled", "path", path, "error", err)
		return nil
	}
	return f
}

// publish delivers ev unless the supervisor is shutting down.
func (s *Supervisor) publish(ev Event) {
	select {
	case s.events <- ev:
	case <-s.shutdown:
	}
}

// Stop asks the encoder to finish the file and exit. If it has not exited
// within StopTimeout it is killed. Stop returns only after the process has
// been reaped.
func (s *Supervisor) Stop() StopResult {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.stopLocked()
}

func (s *Supervisor) stopLocked() StopResult {
	s.mu.Lock()
	if s.state == StateUnowned || s.cmd == nil {
		s.mu.Unlock()
		return StopResult{}
	}
	cmd := s.cmd
	stdin := s.stdin
	waitDone := s.waitDone
	outputPath := s.current.OutputPath
	wasSuspended := s.suspended
	s.requested = true
	log := s.log.With("sessionID", s.current.SessionID)
	s.mu.Unlock()

	// A stopped process cannot read the quit command.
	if wasSuspended {
		if err := resumeProcess(cmd.Process); err != nil {
			log.Warn("failed to resume encoder before stop", "error", err)
		}
	}

	log.Debug("requesting graceful encoder exit")
	if stdin != nil {
		if _, err := io.WriteString(stdin, quitCommand); err != nil {
			log.Debug("failed to write quit command", "error", err)
		}
	}

	forced := false
	select {
	case <-waitDone:
	case <-time.After(s.stopTimeout):
		log.Warn("encoder did not exit in time, killing", "timeout", s.stopTimeout)
		s.mu.Lock()
		s.forced = true
		s.mu.Unlock()
		forced = true
		if err := cmd.Process.Kill(); err != nil {
			log.Debug("kill failed", "error", err)
		}
		<-waitDone
	}

	s.mu.Lock()
	exitCode := s.exitCode
	s.mu.Unlock()

	return StopResult{OK: true, Forced: forced, ExitCode: exitCode, OutputPath: outputPath}
}

// Pause suspends the encoder. Pausing an already paused encoder is a no-op
// that reports success. On platforms that cannot suspend, Pause fails with
// ErrPauseUnsupported unless cosmetic pausing is allowed.
func (s *Supervisor) Pause() (bool, error) {
	return s.transition(StateRunning, StatePaused, suspendProcess)
}

// Resume continues a paused encoder. Resuming a running encoder is a no-op
// that reports success.
func (s *Supervisor) Resume() (bool, error) {
	return s.transition(StatePaused, StateRunning, resumeProcess)
}

func (s *Supervisor) transition(from, to State, signal func(*os.Process) error) (bool, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateUnowned:
		return false, ErrNotRunning
	case to:
		return true, nil
	}

	log := s.log.With("sessionID", s.current.SessionID)

	if !s.CanSuspend() {
		if !s.cosmetic {
			return false, ErrPauseUnsupported
		}
		log.Debug("cosmetic state change, encoder keeps capturing", "state", to)
		s.state = to
		return true, nil
	}

	if err := signal(s.cmd.Process); err != nil {
		log.Error("failed to signal encoder", "state", to, "error", err)
		return false, err
	}
	s.state = to
	s.suspended = to == StatePaused
	log.Info("encoder state changed", "from", from, "to", to)
	return true, nil
}

// Close stops any running encoder, closes the event channel and releases the
// process-wide slot so a new supervisor can be created.
func (s *Supervisor) Close() {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.stopLocked()
	close(s.shutdown)
	s.wg.Wait()
	close(s.events)
	active.Store(false)
}
