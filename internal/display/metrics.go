package display

import (
	"fmt"
	"strings"

	"career-agent/internal/metrics"
)

func FormatRunMetrics(rm *metrics.RunMetrics) string {
	if rm == nil {
		return "No metrics available."
	}
	var sb strings.Builder
	sb.WriteString("Run metrics:\n")
	sb.WriteString(fmt.Sprintf("- Total: %d ms  (outcome=%s)\n", rm.DurationMs, rm.Outcome))
	for _, s := range rm.Steps {
		status := "ok"
		if !s.Success {
			status = "err"
		}
		if s.Success && !s.Persisted {
			status = "unsaved"
		}
		sb.WriteString(fmt.Sprintf("    • %-16s %5d ms  [%s]\n", s.Step, s.DurationMs, status))
	}
	if n := rm.PersistFailures(); n > 0 {
		sb.WriteString(fmt.Sprintf("- %d step(s) not persisted\n", n))
	}
	return sb.String()
}
