package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/zhubert/screenrec/capture"
	"github.com/zhubert/screenrec/process"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// fakeSupervisor records calls and lets tests inject events.
type fakeSupervisor struct {
	mu         sync.Mutex
	events     chan process.Event
	startErr   error
	probeOK    bool
	canSuspend bool
	suspended  bool
	paused     bool
	running    bool
	starts     int
	pauses     int
	resumes    int
	nextID     int
	current    process.Recording

	// publishDelay is how long after Stop returns the termination arrives.
	publishDelay time.Duration
}

func newFakeSupervisor() *fakeSupervisor {
	return &fakeSupervisor{
		events:       make(chan process.Event, 16),
		probeOK:      true,
		canSuspend:   true,
		publishDelay: 10 * time.Millisecond,
	}
}

func (f *fakeSupervisor) Probe(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probeOK
}

func (f *fakeSupervisor) Start(_ context.Context, opts capture.Options) (process.Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.running {
		return process.Recording{}, process.ErrAlreadyRunning
	}
	if f.startErr != nil {
		return process.Recording{}, f.startErr
	}
	f.nextID++
	f.running = true
	f.current = process.Recording{
		SessionID:  fmt.Sprintf("sess-%d", f.nextID),
		OutputPath: opts.SaveDir + "/Recording_2026-03-01_10-00-00.mp4",
		Options:    opts,
	}
	return f.current, nil
}

func (f *fakeSupervisor) Stop() process.StopResult {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return process.StopResult{}
	}
	f.running = false
	f.paused = false
	f.suspended = false
	rec := f.current
	f.mu.Unlock()

	// Like the real supervisor, ownership is released before the
	// termination event is published.
	go func() {
		time.Sleep(f.publishDelay)
		f.events <- process.Event{Kind: process.EventTerminated, SessionID: rec.SessionID, OutputPath: rec.OutputPath, Requested: true}
	}()
	return process.StopResult{OK: true, OutputPath: rec.OutputPath}
}

// crash simulates the encoder exiting on its own.
func (f *fakeSupervisor) crash(code int) {
	f.mu.Lock()
	f.running = false
	rec := f.current
	f.mu.Unlock()
	f.events <- process.Event{Kind: process.EventTerminated, SessionID: rec.SessionID, OutputPath: rec.OutputPath, ExitCode: code}
}

func (f *fakeSupervisor) Pause() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return false, process.ErrNotRunning
	}
	if !f.canSuspend {
		return false, process.ErrPauseUnsupported
	}
	f.pauses++
	f.paused = true
	f.suspended = true
	return true, nil
}

func (f *fakeSupervisor) Resume() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return false, process.ErrNotRunning
	}
	f.resumes++
	f.paused = false
	f.suspended = false
	return true, nil
}

func (f *fakeSupervisor) CanSuspend() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canSuspend
}

func (f *fakeSupervisor) Suspended() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.suspended
}

func (f *fakeSupervisor) Events() <-chan process.Event {
	return f.events
}

func newTestController(t *testing.T, sup *fakeSupervisor, clock *fakeClock, cfg Config) *Controller {
	t.Helper()
	cfg.Supervisor = sup
	cfg.Now = clock.Now
	cfg.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewController(cfg)
	t.Cleanup(func() {
		c.Close()
		close(sup.events)
		<-c.Done()
	})
	return c
}

func testOptions() capture.Options {
	return capture.Options{FrameRate: 30, Quality: capture.QualityHigh, Audio: true, SaveDir: "/tmp/recs"}
}

// waitForState polls until the controller reaches want.
func waitForState(t *testing.T, c *Controller, want State) Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if snap := c.Snapshot(); snap.State == want {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %v, last %v", want, c.Snapshot().State)
	return Snapshot{}
}

func TestController_StartRejectsSecondStart(t *testing.T) {
	sup := newFakeSupervisor()
	c := newTestController(t, sup, newFakeClock(), Config{})

	res := c.Start(context.Background(), testOptions())
	if !res.OK {
		t.Fatalf("Start failed: %+v", res)
	}
	if res.OutputPath != "/tmp/recs/Recording_2026-03-01_10-00-00.mp4" {
		t.Errorf("OutputPath = %q", res.OutputPath)
	}
	if got := c.Snapshot().State; got != StateRecording {
		t.Errorf("State = %v, want recording", got)
	}

	second := c.Start(context.Background(), testOptions())
	if second.OK || second.ErrorKind != process.KindAlreadyRunning {
		t.Errorf("second Start = %+v, want AlreadyRunning", second)
	}
	if sup.starts != 1 {
		t.Errorf("supervisor Start called %d times, want 1", sup.starts)
	}
}

func TestController_EncoderUnavailable(t *testing.T) {
	sup := newFakeSupervisor()
	sup.startErr = process.ErrEncoderUnavailable
	c := newTestController(t, sup, newFakeClock(), Config{ErrorDisplay: 20 * time.Millisecond})

	res := c.Start(context.Background(), testOptions())
	if res.OK || res.ErrorKind != process.KindEncoderUnavailable {
		t.Fatalf("Start = %+v, want EncoderUnavailable", res)
	}
	snap := c.Snapshot()
	if snap.State != StateError || !errors.Is(snap.Err, process.ErrEncoderUnavailable) {
		t.Errorf("snapshot = %+v, want error state", snap)
	}

	waitForState(t, c, StateIdle)
}

func TestController_ElapsedExcludesPause(t *testing.T) {
	sup := newFakeSupervisor()
	clock := newFakeClock()
	c := newTestController(t, sup, clock, Config{})

	if res := c.Start(context.Background(), testOptions()); !res.OK {
		t.Fatalf("Start: %+v", res)
	}

	clock.Advance(10 * time.Second)
	if ok, err := c.Pause(); !ok || err != nil {
		t.Fatalf("Pause = %v, %v", ok, err)
	}
	if got := c.Snapshot().Elapsed; got != 10*time.Second {
		t.Errorf("Elapsed at pause = %v, want 10s", got)
	}

	clock.Advance(time.Minute)
	if got := c.Snapshot().Elapsed; got != 10*time.Second {
		t.Errorf("Elapsed while paused = %v, want frozen at 10s", got)
	}

	if ok, err := c.Resume(); !ok || err != nil {
		t.Fatalf("Resume = %v, %v", ok, err)
	}
	clock.Advance(5 * time.Second)
	if got := c.Snapshot().Elapsed; got != 15*time.Second {
		t.Errorf("Elapsed after resume = %v, want 15s", got)
	}
}

func TestController_PauseResumeTwice(t *testing.T) {
	sup := newFakeSupervisor()
	c := newTestController(t, sup, newFakeClock(), Config{})

	c.Start(context.Background(), testOptions())

	for i := range 2 {
		if ok, err := c.Pause(); !ok || err != nil {
			t.Fatalf("Pause #%d = %v, %v", i+1, ok, err)
		}
	}
	snap := c.Snapshot()
	if snap.State != StatePaused || !snap.Suspended {
		t.Errorf("snapshot = %+v, want suspended pause", snap)
	}
	for i := range 2 {
		if ok, err := c.Resume(); !ok || err != nil {
			t.Fatalf("Resume #%d = %v, %v", i+1, ok, err)
		}
	}
	if sup.pauses != 1 || sup.resumes != 1 {
		t.Errorf("supervisor pauses=%d resumes=%d, want 1 each", sup.pauses, sup.resumes)
	}
}

func TestController_PauseWithoutSession(t *testing.T) {
	c := newTestController(t, newFakeSupervisor(), newFakeClock(), Config{})

	if ok, err := c.Pause(); ok || !errors.Is(err, process.ErrNotRunning) {
		t.Errorf("Pause = %v, %v; want false, ErrNotRunning", ok, err)
	}
	if ok, _ := c.Resume(); ok {
		t.Error("Resume without a session should fail")
	}
	if res := c.Stop(); res.OK {
		t.Error("Stop without a session should report OK=false")
	}
}

func TestController_PauseUnsupported(t *testing.T) {
	sup := newFakeSupervisor()
	sup.canSuspend = false
	c := newTestController(t, sup, newFakeClock(), Config{})

	c.Start(context.Background(), testOptions())
	ok, err := c.Pause()
	if ok || !errors.Is(err, process.ErrPauseUnsupported) {
		t.Errorf("Pause = %v, %v; want false, ErrPauseUnsupported", ok, err)
	}
	if got := c.Snapshot().State; got != StateRecording {
		t.Errorf("State = %v, want recording", got)
	}
}

func TestController_StopSavesThenReverts(t *testing.T) {
	sup := newFakeSupervisor()
	clock := newFakeClock()
	saved := make(chan string, 1)
	c := newTestController(t, sup, clock, Config{
		SavedDisplay: 30 * time.Millisecond,
		OnSaved:      func(path string) { saved <- path },
	})

	c.Start(context.Background(), testOptions())
	clock.Advance(3 * time.Second)

	res := c.Stop()
	if !res.OK {
		t.Fatalf("Stop = %+v", res)
	}

	snap := waitForState(t, c, StateSaved)
	if snap.SavedFile != "Recording_2026-03-01_10-00-00.mp4" {
		t.Errorf("SavedFile = %q", snap.SavedFile)
	}
	if snap.Elapsed != 3*time.Second {
		t.Errorf("Elapsed = %v, want 3s", snap.Elapsed)
	}
	if snap.ErrorKind != process.KindNone {
		t.Errorf("ErrorKind = %q, want none", snap.ErrorKind)
	}

	select {
	case p := <-saved:
		if p != "/tmp/recs/Recording_2026-03-01_10-00-00.mp4" {
			t.Errorf("OnSaved path = %q", p)
		}
	case <-time.After(time.Second):
		t.Error("OnSaved was not called")
	}

	waitForState(t, c, StateIdle)
}

func TestController_StopSettlesBeforeReturning(t *testing.T) {
	sup := newFakeSupervisor()
	sup.publishDelay = 50 * time.Millisecond
	c := newTestController(t, sup, newFakeClock(), Config{SavedDisplay: time.Hour})

	for i := range 3 {
		if res := c.Start(context.Background(), testOptions()); !res.OK {
			t.Fatalf("Start #%d: %+v", i+1, res)
		}
		if res := c.Stop(); !res.OK {
			t.Fatalf("Stop #%d: %+v", i+1, res)
		}
		if got := c.Snapshot().State; got != StateSaved {
			t.Fatalf("State after Stop #%d = %v, want saved", i+1, got)
		}
	}
	if sup.starts != 3 {
		t.Errorf("supervisor Start called %d times, want 3", sup.starts)
	}
}

func TestController_CrashIsSavedWithKind(t *testing.T) {
	sup := newFakeSupervisor()
	c := newTestController(t, sup, newFakeClock(), Config{SavedDisplay: time.Hour})

	c.Start(context.Background(), testOptions())
	sup.crash(1)

	snap := waitForState(t, c, StateSaved)
	if snap.ExitCode != 1 || snap.ErrorKind != process.KindProcessCrashed {
		t.Errorf("snapshot = %+v, want crashed exit 1", snap)
	}

	// A new session may start while the saved banner is still showing.
	if res := c.Start(context.Background(), testOptions()); !res.OK {
		t.Fatalf("Start after crash: %+v", res)
	}
	if got := c.Snapshot().State; got != StateRecording {
		t.Errorf("State = %v, want recording", got)
	}
}

func TestController_RevertSkippedAfterNewStart(t *testing.T) {
	sup := newFakeSupervisor()
	c := newTestController(t, sup, newFakeClock(), Config{SavedDisplay: 50 * time.Millisecond})

	c.Start(context.Background(), testOptions())
	c.Stop()
	waitForState(t, c, StateSaved)

	c.Start(context.Background(), testOptions())
	time.Sleep(150 * time.Millisecond)
	if got := c.Snapshot().State; got != StateRecording {
		t.Errorf("State = %v, want recording (stale revert must not fire)", got)
	}
}

func TestController_StaleTerminationIgnored(t *testing.T) {
	sup := newFakeSupervisor()
	c := newTestController(t, sup, newFakeClock(), Config{})

	c.Start(context.Background(), testOptions())
	sup.events <- process.Event{Kind: process.EventTerminated, SessionID: "someone-else"}
	sup.events <- process.Event{Kind: process.EventOutput, SessionID: c.Snapshot().SessionID, Line: "frame=10"}

	deadline := time.Now().Add(2 * time.Second)
	for c.Snapshot().LastLine != "frame=10" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	snap := c.Snapshot()
	if snap.LastLine != "frame=10" {
		t.Errorf("LastLine = %q", snap.LastLine)
	}
	if snap.State != StateRecording {
		t.Errorf("State = %v, want recording", snap.State)
	}
}

func TestController_Subscribe(t *testing.T) {
	sup := newFakeSupervisor()
	c := newTestController(t, sup, newFakeClock(), Config{})

	ch, cancel := c.Subscribe()
	defer cancel()

	if first := <-ch; first.State != StateIdle {
		t.Errorf("initial snapshot state = %v, want idle", first.State)
	}

	c.Start(context.Background(), testOptions())

	// Starting may have been replaced by Recording; the newest always wins.
	select {
	case snap := <-ch:
		if snap.State != StateRecording {
			t.Errorf("snapshot state = %v, want recording", snap.State)
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}

	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateStarting, "starting"},
		{StateRecording, "recording"},
		{StatePaused, "paused"},
		{StateStopping, "stopping"},
		{StateError, "error"},
		{StateSaved, "saved"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
