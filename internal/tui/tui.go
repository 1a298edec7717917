// Package tui provides a terminal user interface for watching a sync run.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"caldavsync/progress"
)

// Model renders the live state of a progress.Channel as the sync engine
// posts to it. One sync run per Model: construct a fresh one for each
// invocation of the demo CLI's sync command.
//
// Grounded on the teacher's internal/tui.Model: a single struct holding
// both data and lipgloss styles, updated through bubbletea's Msg/Cmd
// loop rather than by polling. Generalized from task-list browsing to
// sync-progress watching, since that is all the demo CLI's TUI needs.
type Model struct {
	ch  *progress.Channel
	ctx context.Context

	current progress.SyncEvent
	history []string
	done    bool

	headerStyle lipgloss.Style
	phaseStyle  lipgloss.Style
	detailStyle lipgloss.Style
	errorStyle  lipgloss.Style
}

type eventMsg progress.SyncEvent

type waitErrMsg struct{ err error }

// New builds a Model that watches ch until it observes a Finished event.
func New(ctx context.Context, ch *progress.Channel) *Model {
	return &Model{
		ch:      ch,
		ctx:     ctx,
		current: ch.Current(),
		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		phaseStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")),
		detailStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),
		errorStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")),
	}
}

func (m *Model) Init() tea.Cmd {
	return m.waitForNext()
}

func (m *Model) waitForNext() tea.Cmd {
	return func() tea.Msg {
		ev, err := m.ch.Wait(m.ctx)
		if err != nil {
			return waitErrMsg{err}
		}
		return eventMsg(ev)
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
		return m, nil

	case eventMsg:
		m.current = progress.SyncEvent(msg)
		if m.current.Phase == progress.InProgress {
			line := fmt.Sprintf("%s: %d done — %s", m.current.Calendar, m.current.ItemsDone, m.current.Details)
			m.history = append(m.history, line)
			if len(m.history) > 10 {
				m.history = m.history[len(m.history)-10:]
			}
		}
		if m.current.Phase == progress.Finished {
			m.done = true
			return m, tea.Quit
		}
		return m, m.waitForNext()

	case waitErrMsg:
		m.done = true
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.headerStyle.Render("caldavsync"))
	b.WriteString("\n\n")
	b.WriteString(m.phaseStyle.Render("phase: " + m.current.Phase.String()))
	b.WriteString("\n\n")

	for _, line := range m.history {
		b.WriteString(m.detailStyle.Render(line))
		b.WriteString("\n")
	}

	if m.current.Phase == progress.Finished {
		if m.current.Success {
			b.WriteString("\nsync completed successfully\n")
		} else {
			b.WriteString("\n" + m.errorStyle.Render("sync completed with errors — see log for details") + "\n")
		}
	}

	b.WriteString(m.detailStyle.Render("\nq: quit"))
	return b.String()
}

// Done reports whether the watched sync has reached a terminal state
// (Finished, or the context was cancelled).
func (m *Model) Done() bool {
	return m.done
}
