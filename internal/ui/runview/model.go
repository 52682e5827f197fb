// Package runview renders a live sync run from its event stream.
package runview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/syncbridge/internal/engine"
	"github.com/nhle/syncbridge/internal/keys"
	"github.com/nhle/syncbridge/internal/model"
	"github.com/nhle/syncbridge/internal/theme"
)

// maxVisibleItems bounds the scrolling outcome feed.
const maxVisibleItems = 12

// eventMsg wraps one engine event for the Bubble Tea loop.
type eventMsg struct {
	event engine.Event
}

// streamClosedMsg is sent when the event channel is exhausted.
type streamClosedMsg struct{}

// Model is the Bubble Tea model for a streaming sync run.
type Model struct {
	tenantID string
	events   <-chan engine.Event

	keys     *keys.KeyMap
	spinner  spinner.Model
	progress progress.Model

	phase   string
	current int
	total   int

	items []model.ItemOutcome
	logs  []string

	result *model.RunResult
	errMsg string
	done   bool

	width int
}

// New creates a run view over the event stream of one run.
func New(tenantID string, events <-chan engine.Event) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorBlue)

	return Model{
		tenantID: tenantID,
		events:   events,
		keys:     keys.DefaultKeyMap(),
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient()),
		width:    80,
	}
}

// Init starts the spinner and begins consuming the event stream.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

// waitForEvent blocks on the next engine event.
func waitForEvent(events <-chan engine.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg{event: e}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Cancel):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Close):
			if m.done {
				return m, tea.Quit
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = msg.Width - 20
		if m.progress.Width > 60 {
			m.progress.Width = 60
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m.apply(msg.event)
		return m, waitForEvent(m.events)

	case streamClosedMsg:
		m.done = true
		return m, nil
	}

	return m, nil
}

// apply folds one engine event into the view state.
func (m *Model) apply(e engine.Event) {
	switch e := e.(type) {
	case engine.LogEvent:
		m.logs = append(m.logs, e.Message)
		if len(m.logs) > maxVisibleItems {
			m.logs = m.logs[len(m.logs)-maxVisibleItems:]
		}

	case engine.ProgressEvent:
		m.phase = e.Phase
		m.current = e.Current
		m.total = e.Total

	case engine.ItemEvent:
		m.items = append(m.items, e.Outcome)
		if len(m.items) > maxVisibleItems {
			m.items = m.items[len(m.items)-maxVisibleItems:]
		}

	case engine.CompleteEvent:
		m.result = e.Result
		m.done = true

	case engine.ErrorEvent:
		m.errMsg = e.Message
		m.done = true
	}
}

// View renders the run.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(theme.HeaderStyle.Render("syncbridge run: " + m.tenantID))
	b.WriteString("\n\n")

	if !m.done {
		b.WriteString(m.spinner.View())
		if m.phase != "" {
			b.WriteString(fmt.Sprintf(
				" %s  %d/%d\n", theme.PhaseLabel(m.phase), m.current, m.total,
			))
			if m.total > 0 {
				b.WriteString(m.progress.ViewAs(float64(m.current) / float64(m.total)))
				b.WriteString("\n")
			}
		} else {
			b.WriteString(" starting...\n")
		}
		b.WriteString("\n")
	}

	for _, item := range m.items {
		label := theme.ActionStyle(string(item.Action)).Render(
			fmt.Sprintf("%-14s", item.Action),
		)
		line := fmt.Sprintf("%s %s", label, item.Title)
		if item.Detail != "" {
			line += theme.LogStyle.Render("  " + item.Detail)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if len(m.logs) > 0 {
		b.WriteString("\n")
		for _, line := range m.logs {
			b.WriteString(theme.LogStyle.Render(line))
			b.WriteString("\n")
		}
	}

	if m.done {
		b.WriteString("\n")
		switch {
		case m.errMsg != "":
			b.WriteString(theme.ErrorStyle.Render("run failed: " + m.errMsg))
		case m.result != nil:
			b.WriteString(theme.StatusBarStyle.Render(m.result.Summary()))
		}
		b.WriteString("\n")
		b.WriteString(theme.HelpStyle.Render("press q to close"))
		b.WriteString("\n")
	}

	return b.String()
}
