// Package tui is the live mission board behind `agent watch`.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"career-agent/internal/display"
	"career-agent/internal/mission"
	"career-agent/internal/supervisor"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

type notificationMsg supervisor.Notification

type streamClosedMsg struct{}

// WatchModel shows the latest status and progress of each mission seen on
// the notification stream.
type WatchModel struct {
	userID  string
	notes   <-chan supervisor.Notification
	order   []string
	latest  map[string]supervisor.Notification
	changes int
	closed  bool
}

func NewWatchModel(userID string, notes <-chan supervisor.Notification) *WatchModel {
	return &WatchModel{
		userID: userID,
		notes:  notes,
		latest: map[string]supervisor.Notification{},
	}
}

func (m *WatchModel) Init() tea.Cmd {
	return m.next()
}

func (m *WatchModel) next() tea.Cmd {
	notes := m.notes
	return func() tea.Msg {
		n, ok := <-notes
		if !ok {
			return streamClosedMsg{}
		}
		return notificationMsg(n)
	}
}

func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	case notificationMsg:
		n := supervisor.Notification(msg)
		if _, seen := m.latest[n.MissionID]; !seen {
			m.order = append(m.order, n.MissionID)
		}
		m.latest[n.MissionID] = n
		m.changes++
		return m, m.next()
	case streamClosedMsg:
		m.closed = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *WatchModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Missions for %s", m.userID)))
	b.WriteString("\n")

	var rows []string
	if len(m.order) == 0 {
		rows = append(rows, footerStyle.Render("Waiting for missions..."))
	}
	for _, id := range m.order {
		n := m.latest[id]
		marker := " "
		if n.Status == mission.StatusNeedsReview {
			marker = "!"
		}
		rows = append(rows, fmt.Sprintf("%s %-36s %s %s", marker, id, display.ProgressBar(n.Progress, 20), display.Badge(n.Status)))
	}
	b.WriteString(boxStyle.Render(strings.Join(rows, "\n")))
	b.WriteString("\n")
	b.WriteString(footerStyle.Render(fmt.Sprintf("%d update(s) · q to quit", m.changes)))
	b.WriteString("\n")
	return b.String()
}

// Latest returns the last notification seen for id.
func (m *WatchModel) Latest(id string) (supervisor.Notification, bool) {
	n, ok := m.latest[id]
	return n, ok
}
