package mission

import (
	"fmt"
	"time"
)

// Delta is a step's partial update. Zero-valued fields are absent: an empty
// Status, a nil pointer and a nil map all leave the mission untouched.
type Delta struct {
	Status           Status
	CurrentStep      string
	Progress         *int
	Context          map[string]any // replaces the whole context
	Events           []Event        // appended
	Artifacts        []Artifact     // appended
	OutputData       map[string]any
	RequiresApproval *bool
	ApprovalReason   *string
	Feedback         *string
	Error            *string
	CompletedAt      *time.Time
}

func Ptr[T any](v T) *T { return &v }

// Fail is the delta a step returns to fail without returning an error.
func Fail(reason string) Delta {
	return Delta{Status: StatusFailed, Error: Ptr(reason)}
}

// Merge folds d into m. It is all-or-nothing: on error m is unchanged.
func Merge(m *Mission, d Delta, now time.Time) error {
	status := m.Status
	if d.Status != "" {
		st, err := d.Status.Normalize()
		if err != nil {
			return err
		}
		if !CanTransition(m.Status, st) {
			return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, m.Status, st)
		}
		status = st
	}

	m.Status = status
	if d.CurrentStep != "" {
		m.CurrentStep = d.CurrentStep
	}
	if d.Progress != nil {
		p := clampProgress(*d.Progress)
		if p > m.Progress {
			m.Progress = p
		}
	}
	if d.Context != nil {
		m.Context = cloneMap(d.Context)
	}
	for _, ev := range d.Events {
		if ev.Timestamp.IsZero() {
			ev.Timestamp = now
		}
		ev.Data = cloneMap(ev.Data)
		m.Events = append(m.Events, ev)
	}
	for _, a := range d.Artifacts {
		if a.ID == "" {
			a = NewArtifact(a.Kind, a.Name, a.Content)
		}
		a.Content = cloneValue(a.Content)
		m.Artifacts = append(m.Artifacts, a)
	}
	if d.OutputData != nil {
		m.OutputData = cloneMap(d.OutputData)
	}
	if d.RequiresApproval != nil {
		m.RequiresApproval = *d.RequiresApproval
	}
	if d.ApprovalReason != nil {
		m.ApprovalReason = *d.ApprovalReason
	}
	if d.Feedback != nil {
		m.Feedback = *d.Feedback
	}
	if d.Error != nil {
		m.Error = *d.Error
	}
	if d.CompletedAt != nil {
		t := *d.CompletedAt
		m.CompletedAt = &t
	}
	if m.Status == StatusCompleted && m.CompletedAt == nil {
		t := now
		m.CompletedAt = &t
	}
	m.UpdatedAt = now
	return nil
}

// Reopen restarts a mission for regeneration. It is the only path that lowers
// progress or leaves a terminal status.
func Reopen(m *Mission, feedback string, now time.Time) {
	m.Status = StatusRunning
	m.Progress = 0
	m.CurrentStep = ""
	m.OutputData = nil
	m.RequiresApproval = false
	m.ApprovalReason = ""
	m.Feedback = feedback
	m.Error = ""
	m.CompletedAt = nil
	m.UpdatedAt = now
}

// ContextWith copies base and sets the given pairs on the copy. Steps use it
// to build the replacement context for a Delta.
func ContextWith(base map[string]any, kv map[string]any) map[string]any {
	out := cloneMap(base)
	if out == nil {
		out = make(map[string]any, len(kv))
	}
	for k, v := range kv {
		out[k] = v
	}
	return out
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
