package session

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/zhubert/screenrec/capture"
	"github.com/zhubert/screenrec/logger"
	"github.com/zhubert/screenrec/process"
)

const (
	// DefaultSavedDisplay is how long StateSaved is shown before reverting.
	DefaultSavedDisplay = 4 * time.Second

	// DefaultErrorDisplay is how long StateError is shown before reverting.
	DefaultErrorDisplay = 4 * time.Second

	// settleTimeout bounds how long Stop waits for the termination event
	// after the supervisor has reaped the encoder.
	settleTimeout = 5 * time.Second
)

// Supervisor is the subset of *process.Supervisor the controller drives.
type Supervisor interface {
	Probe(ctx context.Context) bool
	Start(ctx context.Context, opts capture.Options) (process.Recording, error)
	Stop() process.StopResult
	Pause() (bool, error)
	Resume() (bool, error)
	CanSuspend() bool
	Suspended() bool
	Events() <-chan process.Event
}

var _ Supervisor = (*process.Supervisor)(nil)

// Config configures a Controller.
type Config struct {
	Supervisor   Supervisor
	SavedDisplay time.Duration
	ErrorDisplay time.Duration

	// OnSaved is called after a recording file has been finalized, outside
	// the controller lock.
	OnSaved func(path string)

	Log *slog.Logger
	Now func() time.Time
}

// Controller is the recording state machine.
type Controller struct {
	sup          Supervisor
	savedDisplay time.Duration
	errorDisplay time.Duration
	onSaved      func(string)
	log          *slog.Logger
	now          func() time.Time

	mu    sync.Mutex
	state State
	rec   process.Recording
	opts  capture.Options

	// accumulated is the elapsed time of finished running spans.
	// runningSince is zero unless a span is open.
	accumulated  time.Duration
	runningSince time.Time

	lastLine  string
	savedFile string
	exitCode  int
	forced    bool
	errKind   process.ErrorKind
	err       error

	// generation increments on every start so stale revert timers and
	// events from earlier sessions are ignored.
	generation uint64
	revert     *time.Timer

	// early holds a termination that arrived before Start returned.
	early *process.Event

	// settled is closed once the current session's termination has been
	// applied, or when its start failed.
	settled chan struct{}

	subs   map[chan Snapshot]struct{}
	closed bool

	loopDone chan struct{}
}

// NewController creates a controller and starts consuming supervisor events.
func NewController(cfg Config) *Controller {
	if cfg.SavedDisplay <= 0 {
		cfg.SavedDisplay = DefaultSavedDisplay
	}
	if cfg.ErrorDisplay <= 0 {
		cfg.ErrorDisplay = DefaultErrorDisplay
	}
	if cfg.Log == nil {
		cfg.Log = logger.WithComponent("session")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	c := &Controller{
		sup:          cfg.Supervisor,
		savedDisplay: cfg.SavedDisplay,
		errorDisplay: cfg.ErrorDisplay,
		onSaved:      cfg.OnSaved,
		log:          cfg.Log,
		now:          cfg.Now,
		subs:         make(map[chan Snapshot]struct{}),
		loopDone:     make(chan struct{}),
	}
	go c.consume()
	return c
}

// ProbeEncoder reports whether the encoder binary is usable.
func (c *Controller) ProbeEncoder(ctx context.Context) bool {
	return c.sup.Probe(ctx)
}

// CanSuspend reports whether pausing actually halts capture.
func (c *Controller) CanSuspend() bool {
	return c.sup.CanSuspend()
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:      c.state,
		SessionID:  c.rec.SessionID,
		OutputPath: c.rec.OutputPath,
		Options:    c.opts,
		Elapsed:    c.elapsedLocked(),
		LastLine:   c.lastLine,
		SavedFile:  c.savedFile,
		ExitCode:   c.exitCode,
		Forced:     c.forced,
		ErrorKind:  c.errKind,
		Err:        c.err,
	}
	if c.state == StatePaused {
		snap.Suspended = c.sup.Suspended()
	}
	return snap
}

func (c *Controller) elapsedLocked() time.Duration {
	if c.runningSince.IsZero() {
		return c.accumulated
	}
	return c.accumulated + c.now().Sub(c.runningSince)
}

// freezeLocked folds the open running span into the accumulated total.
func (c *Controller) freezeLocked() {
	if c.runningSince.IsZero() {
		return
	}
	c.accumulated += c.now().Sub(c.runningSince)
	c.runningSince = time.Time{}
}

// Subscribe returns a channel of snapshots and a function that cancels the
// subscription. The channel is closed on cancel or Close.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	c.subs[ch] = struct{}{}
	ch <- c.snapshotLocked()
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if _, ok := c.subs[ch]; ok {
				delete(c.subs, ch)
				close(ch)
			}
		})
	}
}

// notifyLocked hands every subscriber the newest snapshot, replacing one it
// has not read yet.
func (c *Controller) notifyLocked() {
	if c.closed {
		return
	}
	snap := c.snapshotLocked()
	for ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// setStateLocked records a transition and notifies subscribers.
func (c *Controller) setStateLocked(s State) {
	if c.state != s {
		c.log.Debug("state changed", "from", c.state, "to", s, "sessionID", c.rec.SessionID)
	}
	c.state = s
	c.notifyLocked()
}

// Start requests a new recording. The state becomes Starting immediately and
// then Recording, or Error if the supervisor refuses. A start while a
// session is active is rejected with AlreadyRunning and changes nothing.
func (c *Controller) Start(ctx context.Context, opts capture.Options) StartResult {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return StartResult{ErrorKind: process.KindUnknown, Err: process.ErrClosed}
	}
	if c.state.Active() {
		c.mu.Unlock()
		return StartResult{ErrorKind: process.KindAlreadyRunning, Err: process.ErrAlreadyRunning}
	}

	c.generation++
	gen := c.generation
	c.stopRevertLocked()
	c.rec = process.Recording{}
	c.opts = opts
	c.accumulated = 0
	c.runningSince = time.Time{}
	c.lastLine = ""
	c.savedFile = ""
	c.exitCode = 0
	c.forced = false
	c.errKind = process.KindNone
	c.err = nil
	c.early = nil
	c.settled = make(chan struct{})
	c.setStateLocked(StateStarting)
	c.mu.Unlock()

	rec, err := c.sup.Start(ctx, opts)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || c.closed {
		return StartResult{ErrorKind: process.KindUnknown, Err: process.ErrClosed}
	}

	if err != nil {
		kind := process.KindOf(err)
		c.log.Warn("start failed", "kind", kind, "error", err)
		c.errKind = kind
		c.err = err
		c.settleLocked()
		c.setStateLocked(StateError)
		c.scheduleRevertLocked(c.errorDisplay)
		return StartResult{ErrorKind: kind, Err: err}
	}

	c.rec = rec
	c.runningSince = c.now()
	c.log.Info("recording started", "sessionID", rec.SessionID, "output", rec.OutputPath)
	c.setStateLocked(StateRecording)

	if c.early != nil && c.early.SessionID == rec.SessionID {
		ev := *c.early
		c.early = nil
		c.terminatedLocked(ev)
		if c.onSaved != nil {
			go c.onSaved(ev.OutputPath)
		}
	}

	return StartResult{OK: true, SessionID: rec.SessionID, OutputPath: rec.OutputPath}
}

// Stop requests the encoder to finish and blocks until it has exited and
// its termination has been applied, so the state is Saved when Stop returns
// and a new Start can succeed. The state is Stopping meanwhile.
func (c *Controller) Stop() process.StopResult {
	c.mu.Lock()
	if c.state != StateRecording && c.state != StatePaused {
		c.mu.Unlock()
		return process.StopResult{}
	}
	c.freezeLocked()
	c.setStateLocked(StateStopping)
	settled := c.settled
	sessionID := c.rec.SessionID
	c.mu.Unlock()

	res := c.sup.Stop()
	c.log.Info("stop finished", "ok", res.OK, "forced", res.Forced, "exitCode", res.ExitCode)

	// The supervisor releases the encoder before it publishes the
	// termination event.
	select {
	case <-settled:
	case <-c.loopDone:
	case <-time.After(settleTimeout):
		c.log.Warn("termination not observed after stop", "sessionID", sessionID)
	}
	return res
}

// Pause suspends the recording. Pausing while already paused reports
// success without signalling the encoder again. It fails when nothing is
// recording, or with process.ErrPauseUnsupported on platforms that cannot
// suspend the encoder unless cosmetic pausing was enabled.
func (c *Controller) Pause() (bool, error) {
	return c.toggle(StateRecording, StatePaused, c.sup.Pause)
}

// Resume continues a paused recording. Resuming while recording reports
// success.
func (c *Controller) Resume() (bool, error) {
	return c.toggle(StatePaused, StateRecording, c.sup.Resume)
}

// TogglePause pauses a recording session or resumes a paused one.
func (c *Controller) TogglePause() (bool, error) {
	if c.Snapshot().State == StatePaused {
		return c.Resume()
	}
	return c.Pause()
}

func (c *Controller) toggle(from, to State, call func() (bool, error)) (bool, error) {
	c.mu.Lock()
	switch c.state {
	case to:
		c.mu.Unlock()
		return true, nil
	case from:
	default:
		c.mu.Unlock()
		return false, process.ErrNotRunning
	}
	gen := c.generation
	c.mu.Unlock()

	ok, err := call()
	if !ok || err != nil {
		if err == nil {
			err = errors.New("encoder refused state change")
		}
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation || c.state != from {
		// The session ended while the signal was in flight.
		return false, process.ErrNotRunning
	}
	if to == StatePaused {
		c.freezeLocked()
	} else {
		c.runningSince = c.now()
	}
	c.setStateLocked(to)
	return true, nil
}

// consume applies supervisor events until the event channel closes.
func (c *Controller) consume() {
	defer close(c.loopDone)
	for ev := range c.sup.Events() {
		c.handle(ev)
	}
}

func (c *Controller) handle(ev process.Event) {
	c.mu.Lock()

	switch ev.Kind {
	case process.EventOutput:
		if ev.SessionID == c.rec.SessionID || c.state == StateStarting {
			c.lastLine = ev.Line
			c.notifyLocked()
		}
		c.mu.Unlock()

	case process.EventTerminated:
		if c.state == StateStarting && c.rec.SessionID == "" {
			// Start has not returned yet; it applies this once it does.
			c.early = &ev
			c.mu.Unlock()
			return
		}
		if ev.SessionID != c.rec.SessionID || !c.state.Active() {
			c.log.Debug("ignoring stale termination", "sessionID", ev.SessionID)
			c.mu.Unlock()
			return
		}
		c.terminatedLocked(ev)
		onSaved := c.onSaved
		c.mu.Unlock()
		if onSaved != nil {
			onSaved(ev.OutputPath)
		}

	case process.EventError:
		// Start reports spawn failures itself.
		c.log.Debug("encoder error event", "sessionID", ev.SessionID, "error", ev.Err)
		c.mu.Unlock()

	default:
		c.mu.Unlock()
	}
}

func (c *Controller) terminatedLocked(ev process.Event) {
	defer c.settleLocked()
	c.freezeLocked()
	c.savedFile = filepath.Base(ev.OutputPath)
	c.exitCode = ev.ExitCode
	c.forced = ev.Forced
	if ev.Crashed() {
		c.errKind = process.KindProcessCrashed
		c.log.Warn("encoder exited unexpectedly", "sessionID", ev.SessionID, "exitCode", ev.ExitCode)
	}
	c.log.Info("recording saved", "sessionID", ev.SessionID, "output", ev.OutputPath, "elapsed", c.accumulated)
	c.setStateLocked(StateSaved)
	c.scheduleRevertLocked(c.savedDisplay)
}

func (c *Controller) settleLocked() {
	if c.settled != nil {
		close(c.settled)
		c.settled = nil
	}
}

func (c *Controller) stopRevertLocked() {
	if c.revert != nil {
		c.revert.Stop()
		c.revert = nil
	}
}

// scheduleRevertLocked returns the controller to Idle after d unless a new
// session starts first.
func (c *Controller) scheduleRevertLocked(d time.Duration) {
	c.stopRevertLocked()
	gen := c.generation
	c.revert = time.AfterFunc(d, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.generation || (c.state != StateSaved && c.state != StateError) {
			return
		}
		c.revert = nil
		c.setStateLocked(StateIdle)
	})
}

// Close stops any active recording, cancels pending timers and closes all
// subscriber channels. The supervisor itself is left open; closing it ends
// event consumption.
func (c *Controller) Close() {
	c.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.stopRevertLocked()
	for ch := range c.subs {
		delete(c.subs, ch)
		close(ch)
	}
}

// Done is closed once the supervisor's event channel has been drained.
func (c *Controller) Done() <-chan struct{} {
	return c.loopDone
}
