// Package tui is the terminal front end for a recording session. On a
// terminal it runs a Bubble Tea screen with a pre-roll countdown and live
// status; elsewhere it falls back to plain line output.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/zhubert/screenrec/capture"
	"github.com/zhubert/screenrec/process"
	"github.com/zhubert/screenrec/session"
)

// refreshInterval is how often the elapsed timer is redrawn.
const refreshInterval = 500 * time.Millisecond

// Recorder is the subset of *session.Controller the front end drives.
type Recorder interface {
	Start(ctx context.Context, opts capture.Options) session.StartResult
	Stop() process.StopResult
	TogglePause() (bool, error)
	Snapshot() session.Snapshot
	Subscribe() (<-chan session.Snapshot, func())
	CanSuspend() bool
}

var _ Recorder = (*session.Controller)(nil)

type phase int

const (
	phaseCountdown phase = iota
	phaseSession
)

type (
	countdownMsg struct{}
	refreshMsg   struct{}
	snapshotMsg  session.Snapshot
	startedMsg   session.StartResult
	stoppedMsg   process.StopResult
	pauseMsg     struct{ err error }
	subClosedMsg struct{}
)

// Model is the Bubble Tea model for the recording screen.
type Model struct {
	rec         Recorder
	opts        capture.Options
	countdown   time.Duration
	remaining   int
	phase       phase
	snap        session.Snapshot
	updates     <-chan session.Snapshot
	unsubscribe func()
	keys        keyMap
	help        help.Model
	notice      string
	quitting    bool
	stopping    bool
	installHint string
}

// NewModel returns a model that counts down for countdown and then starts
// recording opts. installHint is shown when the encoder is unavailable.
func NewModel(rec Recorder, opts capture.Options, countdown time.Duration, installHint string) Model {
	updates, unsubscribe := rec.Subscribe()
	return Model{
		rec:         rec,
		opts:        opts,
		countdown:   countdown,
		remaining:   int((countdown + time.Second - 1) / time.Second),
		updates:     updates,
		unsubscribe: unsubscribe,
		keys:        defaultKeys,
		help:        help.New(),
		snap:        rec.Snapshot(),
		installHint: installHint,
	}
}

// Init starts the countdown, or recording right away when there is none.
func (m Model) Init() tea.Cmd {
	if m.remaining <= 0 {
		return tea.Batch(m.waitForSnapshot(), m.start())
	}
	return tea.Batch(m.waitForSnapshot(), countdownTick())
}

func countdownTick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return countdownMsg{} })
}

func refreshTick() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg { return refreshMsg{} })
}

func (m Model) waitForSnapshot() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return subClosedMsg{}
		}
		return snapshotMsg(snap)
	}
}

func (m Model) start() tea.Cmd {
	rec, opts := m.rec, m.opts
	return func() tea.Msg {
		return startedMsg(rec.Start(context.Background(), opts))
	}
}

func (m Model) stop() tea.Cmd {
	rec := m.rec
	return func() tea.Msg {
		return stoppedMsg(rec.Stop())
	}
}

func (m Model) togglePause() tea.Cmd {
	rec := m.rec
	return func() tea.Msg {
		_, err := rec.TogglePause()
		return pauseMsg{err: err}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case countdownMsg:
		if m.phase != phaseCountdown || m.quitting {
			return m, nil
		}
		m.remaining--
		if m.remaining > 0 {
			return m, countdownTick()
		}
		m.phase = phaseSession
		return m, m.start()

	case startedMsg:
		m.phase = phaseSession
		if !msg.OK {
			m.notice = startFailure(session.StartResult(msg), m.installHint)
			return m, nil
		}
		m.notice = ""
		return m, refreshTick()

	case refreshMsg:
		if m.snap.State == session.StateRecording || m.snap.State == session.StatePaused {
			return m, refreshTick()
		}
		return m, nil

	case snapshotMsg:
		m.snap = session.Snapshot(msg)
		if m.quitting && !m.snap.State.Active() {
			return m, m.quit()
		}
		return m, m.waitForSnapshot()

	case stoppedMsg:
		m.stopping = false
		if m.quitting && !m.snap.State.Active() {
			return m, m.quit()
		}
		return m, nil

	case pauseMsg:
		m.notice = ""
		if errors.Is(msg.err, process.ErrPauseUnsupported) {
			m.notice = "Pausing is not supported on this platform."
		} else if msg.err != nil {
			m.notice = msg.err.Error()
		}
		return m, nil

	case subClosedMsg:
		return m, m.quit()
	}

	return m, nil
}

func (m Model) quit() tea.Cmd {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	return tea.Quit
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	state := m.snap.State
	recording := state == session.StateRecording || state == session.StatePaused

	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.quitting {
			return m, nil
		}
		m.quitting = true
		if m.phase == phaseCountdown || !state.Active() {
			return m, m.quit()
		}
		if recording && !m.stopping {
			m.stopping = true
			return m, m.stop()
		}
		// Starting or Stopping: quit once the session settles.
		return m, nil

	case key.Matches(msg, m.keys.Stop):
		if recording && !m.stopping {
			m.stopping = true
			return m, m.stop()
		}

	case key.Matches(msg, m.keys.Pause):
		if recording && !m.stopping {
			return m, m.togglePause()
		}

	case key.Matches(msg, m.keys.Record):
		if m.phase == phaseSession && !state.Active() {
			m.phase = phaseCountdown
			m.notice = ""
			m.remaining = int((m.countdown + time.Second - 1) / time.Second)
			if m.remaining <= 0 {
				m.phase = phaseSession
				return m, m.start()
			}
			return m, countdownTick()
		}
	}
	return m, nil
}

func startFailure(res session.StartResult, installHint string) string {
	switch res.ErrorKind {
	case process.KindEncoderUnavailable:
		msg := "FFmpeg was not found or does not run."
		if installHint != "" {
			msg += " Install it with: " + installHint
		}
		return msg
	case process.KindAlreadyRunning:
		return "A recording is already in progress."
	case process.KindDirectoryUnwritable:
		return "Cannot create the save folder: " + errString(res.Err)
	default:
		return "Could not start recording: " + errString(res.Err)
	}
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// View renders the screen.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.badge())
	if m.phase == phaseSession && m.snap.State != session.StateIdle {
		b.WriteString("  ")
		b.WriteString(timerStyle.Render(FormatElapsed(m.snap.Elapsed)))
	}
	b.WriteString("\n\n")

	switch {
	case m.phase == phaseCountdown:
		fmt.Fprintf(&b, "%s\n", dimStyle.Render(fmt.Sprintf("%d fps · %s quality · audio %s", m.opts.FrameRate, m.opts.Quality, onOff(m.opts.Audio))))
	case m.snap.State == session.StateSaved:
		fmt.Fprintf(&b, "Saved %s\n", m.snap.SavedFile)
		if m.snap.ErrorKind == process.KindProcessCrashed {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Encoder exited with code %d; the file may be incomplete.", m.snap.ExitCode)))
			b.WriteString("\n")
		}
	case m.snap.OutputPath != "":
		fmt.Fprintf(&b, "%s\n", m.snap.OutputPath)
	}

	if m.snap.State == session.StatePaused && !m.snap.Suspended {
		b.WriteString(errorStyle.Render("Capture continues while paused on this platform."))
		b.WriteString("\n")
	}
	if line := m.snap.LastLine; line != "" && m.snap.State.Active() {
		b.WriteString(dimStyle.Render(truncate(line, 72)))
		b.WriteString("\n")
	}
	if m.notice != "" {
		b.WriteString(errorStyle.Render(m.notice))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.activeKeys()))
	return boxStyle.Render(b.String()) + "\n"
}

func (m Model) badge() string {
	if m.phase == phaseCountdown {
		return countdownBadge.Render(fmt.Sprintf("Starting in %d", m.remaining))
	}
	switch m.snap.State {
	case session.StateRecording:
		return recBadge.Render("● REC")
	case session.StatePaused:
		return pausedBadge.Render("❚❚ PAUSED")
	case session.StateStarting:
		return countdownBadge.Render("Starting…")
	case session.StateStopping:
		return pausedBadge.Render("Saving…")
	case session.StateSaved:
		return savedBadge.Render("✓ SAVED")
	case session.StateError:
		return recBadge.Render("✗ ERROR")
	default:
		return idleBadge.Render("IDLE")
	}
}

func (m Model) activeKeys() keyMap {
	k := m.keys
	state := m.snap.State
	recording := m.phase == phaseSession && (state == session.StateRecording || state == session.StatePaused)
	k.Pause.SetEnabled(recording)
	k.Stop.SetEnabled(recording)
	k.Record.SetEnabled(m.phase == phaseSession && !state.Active())
	return k
}

// FormatElapsed renders d as HH:MM:SS.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
