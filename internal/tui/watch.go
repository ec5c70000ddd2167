// Package tui provides the interactive live session view.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kspervik/agentmeter/internal/render"
	"github.com/kspervik/agentmeter/internal/report"
)

// ReportLoadedMsg is sent when a report rebuild finishes.
type ReportLoadedMsg struct {
	Report *report.SessionReport
	Err    error
}

// tickMsg drives the refresh loop.
type tickMsg time.Time

// ReportSource builds a session report from durable state.
type ReportSource interface {
	BuildReport(sessionID string, now time.Time) (*report.SessionReport, error)
}

// SessionLister lists active sessions, most recently touched first.
type SessionLister interface {
	ActiveSessions() ([]string, error)
}

// Watch is the Bubble Tea model for the live session view.
type Watch struct {
	reports  ReportSource
	sessions SessionLister

	sessionID string // pinned session; empty follows the most recent
	interval  time.Duration

	report  *report.SessionReport
	err     error
	loaded  bool
	width   int
	spinner spinner.Model
}

// NewWatch creates the live view. With an empty sessionID it follows
// whichever session was most recently active.
func NewWatch(reports ReportSource, sessions SessionLister, sessionID string, interval time.Duration) *Watch {
	if interval < time.Second {
		interval = 2 * time.Second
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(render.ColorAccent)

	return &Watch{
		reports:   reports,
		sessions:  sessions,
		sessionID: sessionID,
		interval:  interval,
		spinner:   sp,
	}
}

func (w *Watch) Init() tea.Cmd {
	return tea.Batch(w.spinner.Tick, w.load())
}

func (w *Watch) load() tea.Cmd {
	return func() tea.Msg {
		id := w.sessionID
		if id == "" {
			active, err := w.sessions.ActiveSessions()
			if err != nil {
				return ReportLoadedMsg{Err: err}
			}
			if len(active) == 0 {
				return ReportLoadedMsg{Err: fmt.Errorf("no active session")}
			}
			id = active[0]
		}
		r, err := w.reports.BuildReport(id, time.Now())
		return ReportLoadedMsg{Report: r, Err: err}
	}
}

func (w *Watch) tick() tea.Cmd {
	return tea.Tick(w.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (w *Watch) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return w, tea.Quit
		case "r":
			return w, w.load()
		}

	case tea.WindowSizeMsg:
		w.width = msg.Width

	case ReportLoadedMsg:
		w.loaded = true
		w.err = msg.Err
		if msg.Err == nil {
			w.report = msg.Report
		}
		return w, w.tick()

	case tickMsg:
		return w, w.load()

	case spinner.TickMsg:
		var cmd tea.Cmd
		w.spinner, cmd = w.spinner.Update(msg)
		return w, cmd
	}

	return w, nil
}

func (w *Watch) View() string {
	var b strings.Builder

	if !w.loaded {
		b.WriteString("\n  " + w.spinner.View() + " Reading session state...\n")
		return b.String()
	}

	if w.err != nil {
		b.WriteString("\n  " + lipgloss.NewStyle().Foreground(render.ColorOrange).Render(w.err.Error()) + "\n")
		b.WriteString(footer())
		return b.String()
	}

	b.WriteString("\n")
	b.WriteString(render.RenderSession(w.report))
	b.WriteString(footer())
	return b.String()
}

func footer() string {
	return "\n" + lipgloss.NewStyle().Foreground(render.ColorTextMuted).
		Render("  r refresh · q quit") + "\n"
}
