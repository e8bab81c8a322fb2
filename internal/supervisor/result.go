package supervisor

import (
	"career-agent/internal/metrics"
	"career-agent/internal/mission"
	"career-agent/internal/runner"
)

// MissionResult reports the end of one run: a suspension at a gate, a
// completion, a failure or a cancellation.
type MissionResult struct {
	MissionID string              `json:"mission_id"`
	Kind      mission.Kind        `json:"kind"`
	Status    mission.Status      `json:"status"`
	Outcome   runner.Outcome      `json:"outcome"`
	Error     string              `json:"error,omitempty"`
	Metrics   *metrics.RunMetrics `json:"metrics,omitempty"`
}

// Decision is a reviewer's answer to a suspended mission.
type Decision struct {
	Approved      bool   `json:"approved"`
	Feedback      string `json:"feedback,omitempty"`
	EditedContent string `json:"edited_content,omitempty"`
}

// StatusView is what callers polling a mission see.
type StatusView struct {
	ID               string             `json:"id"`
	Kind             mission.Kind       `json:"kind"`
	Status           mission.Status     `json:"status"`
	Progress         int                `json:"progress"`
	CurrentStep      string             `json:"current_step,omitempty"`
	Events           []mission.Event    `json:"events"`
	Artifacts        []mission.Artifact `json:"artifacts"`
	OutputData       map[string]any     `json:"output_data,omitempty"`
	RequiresApproval bool               `json:"requires_approval"`
	ApprovalReason   string             `json:"approval_reason,omitempty"`
	Error            string             `json:"error,omitempty"`
}

func viewOf(m *mission.Mission) StatusView {
	return StatusView{
		ID:               m.ID,
		Kind:             m.Kind,
		Status:           m.Status,
		Progress:         m.Progress,
		CurrentStep:      m.CurrentStep,
		Events:           m.Events,
		Artifacts:        m.Artifacts,
		OutputData:       m.OutputData,
		RequiresApproval: m.RequiresApproval,
		ApprovalReason:   m.ApprovalReason,
		Error:            m.Error,
	}
}

// Notification is one observed change of a mission's status or progress.
type Notification struct {
	MissionID string         `json:"mission_id"`
	Status    mission.Status `json:"status"`
	Progress  int            `json:"progress"`
}

type Page struct {
	Limit  int
	Offset int
}
