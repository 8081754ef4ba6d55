package ui

import (
	"fmt"
	"strings"

	"github.com/BioHazard786/pairlink/internal/negotiation"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type snapshotMsg negotiation.Snapshot

type sessionEndedMsg struct{}

// SessionModel shows a negotiation as it progresses. It reads snapshots
// until the stream is closed.
type SessionModel struct {
	states <-chan negotiation.Snapshot
	hangup func()

	snapshot negotiation.Snapshot
	spinner  spinner.Model
	bar      progress.Model

	ended    bool
	quitting bool
}

// NewSessionModel creates the model. hangup is called when the user
// presses h or quits.
func NewSessionModel(room string, states <-chan negotiation.Snapshot, hangup func()) *SessionModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &SessionModel{
		states:   states,
		hangup:   hangup,
		snapshot: negotiation.Snapshot{Room: room},
		spinner:  s,
		bar: progress.New(
			progress.WithGradient(ProgressStart, ProgressEnd),
			progress.WithWidth(30),
			progress.WithoutPercentage(),
		),
	}
}

func (m *SessionModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen())
}

func (m *SessionModel) listen() tea.Cmd {
	return func() tea.Msg {
		s, ok := <-m.states
		if !ok {
			return sessionEndedMsg{}
		}
		return snapshotMsg(s)
	}
}

func (m *SessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "h":
			m.hangup()
		case "q", "ctrl+c":
			m.hangup()
			m.quitting = true
			return m, tea.Quit
		}

	case snapshotMsg:
		m.snapshot = negotiation.Snapshot(msg)
		return m, m.listen()

	case sessionEndedMsg:
		m.ended = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.bar.Width = max(10, min(30, msg.Width-40))
	}
	return m, nil
}

// Snapshot returns the last snapshot the model received.
func (m *SessionModel) Snapshot() negotiation.Snapshot {
	return m.snapshot
}

func (m *SessionModel) View() string {
	if m.quitting {
		return ""
	}
	s := m.snapshot

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s %s  %s\n\n", IconRoom, BoldStyle.Render(s.Room), StatusStyle.Render(s.State.String()))

	status := m.spinner.View()
	if m.ended || (s.State == negotiation.Closed && !s.PeerHungUp) {
		status = MutedStyle.Render("●")
	}
	fmt.Fprintf(&b, "%s %s %s\n\n", status, m.bar.ViewAs(Progress(s)), describe(s))

	fmt.Fprintf(&b, "  %s  %s  %s  %s  %s\n",
		flag("media", s.MediaReady),
		flag("peer", s.ChannelReady),
		flag("initiator", s.Initiator),
		flag("started", s.Started),
		flag("remote sdp", s.RemoteDescription),
	)
	if s.Connection != "" {
		fmt.Fprintf(&b, "  %s connection %s\n", IconConnect, s.Connection)
	}
	if s.Err != nil {
		b.WriteString("\n" + ErrorBoxStyle.Render(s.Err.Error()) + "\n")
	}

	b.WriteString("\n" + MutedStyle.Render("h hang up • q quit"))
	return b.String()
}

// Progress maps a snapshot onto [0, 1] for the progress bar.
func Progress(s negotiation.Snapshot) float64 {
	switch {
	case s.Connection == "connected":
		return 1
	case s.RemoteDescription:
		return 0.85
	case s.Started:
		return 0.7
	case s.State == negotiation.Ready:
		return 0.5
	case s.State == negotiation.WaitingForPeer, s.PeerHungUp:
		return 0.25
	}
	return 0
}

func describe(s negotiation.Snapshot) string {
	switch s.State {
	case negotiation.Idle:
		return "starting"
	case negotiation.WaitingForPeer:
		return IconWaiting + " waiting for a peer to join"
	case negotiation.Ready:
		if !s.MediaReady {
			return "peer present, waiting for local media"
		}
		return "peer present"
	case negotiation.Negotiating:
		if s.Initiator {
			return "offer sent, negotiating"
		}
		return "answering, negotiating"
	case negotiation.Closed:
		if s.PeerHungUp {
			return IconWaiting + " peer hung up, waiting in room for the next one"
		}
		return "session closed"
	}
	return ""
}

func flag(name string, on bool) string {
	if on {
		return SuccessStyle.Render("✓ " + name)
	}
	return MutedStyle.Render("· " + name)
}

// FormatSnapshot is the one-line rendering used in plain output mode.
func FormatSnapshot(s negotiation.Snapshot) string {
	line := fmt.Sprintf("[%s] %s", s.State, describe(s))
	if s.Connection != "" {
		line += " (" + s.Connection + ")"
	}
	if s.Err != nil {
		line += ": " + s.Err.Error()
	}
	return line
}

// RunSession runs the interactive view until the snapshot stream ends or
// the user quits.
func RunSession(room string, states <-chan negotiation.Snapshot, hangup func()) error {
	_, err := tea.NewProgram(NewSessionModel(room, states, hangup)).Run()
	return err
}
