package display

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"career-agent/internal/mission"
	"career-agent/internal/supervisor"
)

const maxValueLength = 100

var (
	badgeRunning   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	badgeReview    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	badgeCompleted = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	badgeFailed    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	badgeDefault   = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	headingStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

func badgeStyle(st mission.Status) lipgloss.Style {
	switch st {
	case mission.StatusRunning, mission.StatusExecuting, mission.StatusApproved:
		return badgeRunning
	case mission.StatusNeedsReview:
		return badgeReview
	case mission.StatusCompleted:
		return badgeCompleted
	case mission.StatusFailed, mission.StatusRejected:
		return badgeFailed
	default:
		return badgeDefault
	}
}

// Badge renders a status in its color.
func Badge(st mission.Status) string {
	return badgeStyle(st).Render(string(st))
}

// FormatStatus renders a mission for the terminal; long values are cut.
func FormatStatus(v supervisor.StatusView) string {
	return formatStatus(v, maxValueLength)
}

// FormatStatusFull is FormatStatus without truncation, for logs.
func FormatStatusFull(v supervisor.StatusView) string {
	return formatStatus(v, -1)
}

func formatStatus(v supervisor.StatusView, limit int) string {
	var sb strings.Builder
	sb.WriteString(headingStyle.Render(fmt.Sprintf("Mission %s (%s)", v.ID, v.Kind)))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  Status:   %s  %s\n", Badge(v.Status), ProgressBar(v.Progress, 20)))
	if v.CurrentStep != "" {
		sb.WriteString(fmt.Sprintf("  Step:     %s\n", v.CurrentStep))
	}
	if v.RequiresApproval {
		sb.WriteString(fmt.Sprintf("  Review:   %s\n", v.ApprovalReason))
	}
	if v.Error != "" {
		sb.WriteString(fmt.Sprintf("  Error:    %s\n", formatValueForDisplay(v.Error, limit)))
	}
	if len(v.Events) > 0 {
		sb.WriteString(FormatEvents(v.Events, limit))
	}
	if len(v.Artifacts) > 0 {
		sb.WriteString(FormatArtifacts(v.Artifacts, limit))
	}
	if len(v.OutputData) > 0 {
		sb.WriteString("Output:\n")
		keys := make([]string, 0, len(v.OutputData))
		for k := range v.OutputData {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("  %s: %s\n", k, formatValueForDisplay(v.OutputData[k], limit)))
		}
	}
	return sb.String()
}

func FormatEvents(events []mission.Event, limit int) string {
	var sb strings.Builder
	sb.WriteString("Events:\n")
	for _, ev := range events {
		sb.WriteString(fmt.Sprintf("  %s [%-13s] %s\n",
			mutedStyle.Render(ev.Timestamp.Format("15:04:05")), ev.Kind, formatValueForDisplay(ev.Message, limit)))
	}
	return sb.String()
}

func FormatArtifacts(artifacts []mission.Artifact, limit int) string {
	var sb strings.Builder
	sb.WriteString("Artifacts:\n")
	for _, a := range artifacts {
		sb.WriteString(fmt.Sprintf("  - %s (%s)\n", a.Name, a.Kind))
		sb.WriteString(fmt.Sprintf("    %s\n", formatValueForDisplay(a.Content, limit)))
	}
	return sb.String()
}

// FormatSummaries renders a mission list as a table.
func FormatSummaries(list []mission.Summary) string {
	if len(list) == 0 {
		return "No missions found."
	}
	var sb strings.Builder
	sb.WriteString(headingStyle.Render(fmt.Sprintf("%-36s  %-12s  %-14s  %4s  %s", "ID", "KIND", "STATUS", "PCT", "STEP")))
	sb.WriteString("\n")
	for _, s := range list {
		status := badgeStyle(s.Status).Width(14).Render(string(s.Status))
		step := s.CurrentStep
		if s.Error != "" {
			step = formatValueForDisplay("error: "+s.Error, 40)
		}
		sb.WriteString(fmt.Sprintf("%-36s  %-12s  %s  %3d%%  %s\n", s.ID, s.Kind, status, s.Progress, step))
	}
	return sb.String()
}

// FormatResult is the one-line notice printed when a run ends.
func FormatResult(r supervisor.MissionResult) string {
	line := fmt.Sprintf("[Mission %s %s] %s", r.MissionID, r.Kind, Badge(r.Status))
	if r.Status == mission.StatusNeedsReview {
		line += " - waiting for review"
	}
	if r.Error != "" {
		line += ": " + formatValueForDisplay(r.Error, maxValueLength)
	}
	return line
}

func FormatNotification(n supervisor.Notification) string {
	return fmt.Sprintf("[%s] %s %d%%", n.MissionID, Badge(n.Status), n.Progress)
}

// ProgressBar draws progress as a fixed-width bar.
func ProgressBar(progress, width int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	filled := progress * width / 100
	return fmt.Sprintf("[%s%s] %3d%%", strings.Repeat("#", filled), strings.Repeat(".", width-filled), progress)
}

// Limit a value's stdout length (limit < 0 means no limit).
func formatValueForDisplay(value any, limit int) string {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			s = fmt.Sprintf("%v", v)
		} else {
			s = string(b)
		}
	default:
		s = fmt.Sprintf("%v", v)
	}
	s = strings.ReplaceAll(s, "\n", "\\n")
	if limit >= 0 && len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
