package display

import (
	"strings"
	"testing"

	"career-agent/internal/metrics"
	"career-agent/internal/mission"
	"career-agent/internal/supervisor"
)

func TestFormatStatus(t *testing.T) {
	view := supervisor.StatusView{
		ID:               "m-1",
		Kind:             mission.KindTailor,
		Status:           mission.StatusNeedsReview,
		Progress:         80,
		CurrentStep:      "review",
		RequiresApproval: true,
		ApprovalReason:   "Review the tailored resume",
		Events:           []mission.Event{mission.LogEvent("Analyzed job posting", nil)},
		Artifacts:        []mission.Artifact{{Kind: mission.ArtifactMarkdown, Name: "tailored_resume", Content: "# Jane\nGo engineer"}},
		OutputData:       map[string]any{"job_title": "Backend Engineer"},
	}

	out := FormatStatus(view)

	for _, want := range []string{
		"Mission m-1 (tailor)",
		"needs_review",
		"80%",
		"Step:     review",
		"Review:   Review the tailored resume",
		"Analyzed job posting",
		"tailored_resume (markdown)",
		`# Jane\nGo engineer`,
		"job_title: Backend Engineer",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("status output is missing %q:\n%s", want, out)
		}
	}
}

func TestFormatStatus_TruncatesLongValues(t *testing.T) {
	long := strings.Repeat("a", 200)
	view := supervisor.StatusView{
		ID:        "m-2",
		Status:    mission.StatusCompleted,
		Artifacts: []mission.Artifact{{Kind: mission.ArtifactText, Name: "draft", Content: long}},
	}

	short := FormatStatus(view)
	if !strings.Contains(short, "...") {
		t.Errorf("Expected long artifact content to be truncated with '...'")
	}
	if strings.Contains(short, long) {
		t.Errorf("Expected long artifact content to be truncated, but the full string was found.")
	}
	if !strings.Contains(FormatStatusFull(view), long) {
		t.Errorf("Expected the full rendering to keep the whole artifact")
	}
}

func TestFormatSummaries(t *testing.T) {
	if got := FormatSummaries(nil); got != "No missions found." {
		t.Errorf("unexpected empty table: %q", got)
	}
	out := FormatSummaries([]mission.Summary{
		{ID: "a", Kind: mission.KindDraft, Status: mission.StatusRunning, Progress: 60, CurrentStep: "generate"},
		{ID: "b", Kind: mission.KindSkillGap, Status: mission.StatusFailed, Error: "no stored jobs found"},
	})
	for _, want := range []string{"KIND", "draft", "running", " 60%", "generate", "skill_gap", "error: no stored jobs found"} {
		if !strings.Contains(out, want) {
			t.Errorf("table is missing %q:\n%s", want, out)
		}
	}
}

func TestFormatResult(t *testing.T) {
	out := FormatResult(supervisor.MissionResult{MissionID: "x", Kind: mission.KindDraft, Status: mission.StatusNeedsReview})
	if !strings.Contains(out, "waiting for review") {
		t.Errorf("expected a review hint, got %q", out)
	}
	out = FormatResult(supervisor.MissionResult{MissionID: "x", Kind: mission.KindDraft, Status: mission.StatusFailed, Error: "boom"})
	if !strings.Contains(out, "failed") || !strings.HasSuffix(out, ": boom") {
		t.Errorf("unexpected failure line %q", out)
	}
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		progress int
		want     string
	}{
		{0, "[..........]   0%"},
		{50, "[#####.....]  50%"},
		{100, "[##########] 100%"},
		{150, "[##########] 100%"},
		{-5, "[..........]   0%"},
	}
	for _, tt := range tests {
		if got := ProgressBar(tt.progress, 10); got != tt.want {
			t.Errorf("ProgressBar(%d) = %q, want %q", tt.progress, got, tt.want)
		}
	}
}

func TestFormatRunMetrics(t *testing.T) {
	if got := FormatRunMetrics(nil); got != "No metrics available." {
		t.Errorf("unexpected nil rendering %q", got)
	}
	rm := &metrics.RunMetrics{
		DurationMs: 42,
		Outcome:    "suspended",
		Steps: []metrics.StepMetrics{
			{Step: "analyze", DurationMs: 10, Success: true, Persisted: true},
			{Step: "match", DurationMs: 12, Success: true},
			{Step: "generate", DurationMs: 20, Err: "boom"},
		},
	}
	out := FormatRunMetrics(rm)
	for _, want := range []string{"outcome=suspended", "analyze", "[ok]", "[unsaved]", "[err]", "1 step(s) not persisted"} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output is missing %q:\n%s", want, out)
		}
	}
}
