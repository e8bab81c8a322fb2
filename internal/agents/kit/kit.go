// Package kit holds what every mission kind's steps share: the collaborator
// bundle and helpers for reading mission state.
package kit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"career-agent/internal/browser"
	"career-agent/internal/config"
	"career-agent/internal/mission"
	"career-agent/internal/retrieval"
	"career-agent/internal/utils"
)

// Generator is the slice of the LLM client steps use.
type Generator interface {
	Complete(ctx context.Context, prompt, system string) (string, error)
	CompleteJSON(ctx context.Context, prompt, system string, schema any) (string, error)
}

type Deps struct {
	LLM       Generator
	Knowledge *retrieval.Index
	Browser   *browser.Client
	Jobs      JobSource
	Config    config.MissionConfig
}

// Validate reports missing collaborators. Jobs falls back to the sample
// listings when unset.
func (d *Deps) Validate() error {
	switch {
	case d.LLM == nil:
		return fmt.Errorf("agent deps: llm is required")
	case d.Knowledge == nil:
		return fmt.Errorf("agent deps: knowledge index is required")
	case d.Browser == nil:
		return fmt.Errorf("agent deps: browser is required")
	}
	if d.Jobs == nil {
		d.Jobs = SampleSource{}
	}
	if d.Config.AnswerConcurrency <= 0 {
		d.Config.AnswerConcurrency = 1
	}
	return nil
}

// IndexResume loads input resume_text into the user's knowledge base,
// replacing an earlier copy.
func IndexResume(deps Deps, m *mission.Mission) int {
	text := utils.OptString(m.Input, "resume_text", "")
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return deps.Knowledge.SetDocument(m.UserID, "resume", text)
}

// Feedback returns reviewer feedback carried into a regeneration.
func Feedback(m *mission.Mission) string {
	if m.Feedback != "" {
		return m.Feedback
	}
	s, _ := m.Context["feedback"].(string)
	return s
}

// Edited returns the reviewer's edited content, if any.
func Edited(m *mission.Mission) (string, bool) {
	s, ok := m.Context["edited_content"].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// FeedbackBlock renders feedback for a prompt, or nothing.
func FeedbackBlock(m *mission.Mission) string {
	fb := Feedback(m)
	if fb == "" {
		return ""
	}
	return "\nA reviewer rejected the previous version with this feedback; address it:\n" + fb + "\n"
}

// Decode reads context key into out. Values may be live Go values or, after
// a store round trip, generic JSON maps, so both go through JSON.
func Decode(m *mission.Mission, key string, out any) error {
	v, ok := m.Context[key]
	if !ok {
		return fmt.Errorf("context has no %q", key)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode context %q: %w", key, err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode context %q: %w", key, err)
	}
	return nil
}

// Generic converts v to its JSON-generic form (maps, slices, float64) so the
// mission carries the same values in memory as after a reload.
func Generic(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

// Text returns an artifact's content as a string.
func Text(a mission.Artifact) string {
	if s, ok := a.Content.(string); ok {
		return s
	}
	b, _ := json.Marshal(a.Content)
	return string(b)
}
