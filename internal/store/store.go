// Package store persists mission records. JSON-shaped fields are stored
// serialized and decoded symmetrically on read, so callers see the same
// shapes from every implementation (numbers in maps come back as float64).
package store

import (
	"context"
	"errors"
	"time"

	"career-agent/internal/mission"
)

var (
	ErrNotFound = errors.New("mission not found")
	ErrExists   = errors.New("mission already exists")
)

const DefaultListLimit = 20

type Store interface {
	Create(ctx context.Context, m *mission.Mission) error
	Get(ctx context.Context, id string) (*mission.Mission, error)
	Update(ctx context.Context, id string, f Fields) error
	List(ctx context.Context, filter Filter) ([]mission.Summary, error)
	Close() error
}

// Fields is a partial update; nil fields are left unchanged. Identity
// fields (id, user, kind, created_at) cannot be updated.
type Fields struct {
	Status           *mission.Status
	CurrentStep      *string
	Progress         *int
	Context          *map[string]any
	Events           *[]mission.Event
	Artifacts        *[]mission.Artifact
	OutputData       *map[string]any
	RequiresApproval *bool
	ApprovalReason   *string
	Feedback         *string
	Error            *string
	CompletedAt      *time.Time
	ClearCompletedAt bool
	UpdatedAt        *time.Time
}

// Snapshot returns Fields carrying every mutable field of m.
func Snapshot(m *mission.Mission) Fields {
	c := m.Clone()
	f := Fields{
		Status:           &c.Status,
		CurrentStep:      &c.CurrentStep,
		Progress:         &c.Progress,
		Context:          &c.Context,
		Events:           &c.Events,
		Artifacts:        &c.Artifacts,
		OutputData:       &c.OutputData,
		RequiresApproval: &c.RequiresApproval,
		ApprovalReason:   &c.ApprovalReason,
		Feedback:         &c.Feedback,
		Error:            &c.Error,
		UpdatedAt:        &c.UpdatedAt,
	}
	if c.CompletedAt != nil {
		f.CompletedAt = c.CompletedAt
	} else {
		f.ClearCompletedAt = true
	}
	return f
}

// Apply writes the present fields onto m.
func (f Fields) Apply(m *mission.Mission) {
	if f.Status != nil {
		m.Status = *f.Status
	}
	if f.CurrentStep != nil {
		m.CurrentStep = *f.CurrentStep
	}
	if f.Progress != nil {
		m.Progress = *f.Progress
	}
	if f.Context != nil {
		m.Context = *f.Context
	}
	if f.Events != nil {
		m.Events = *f.Events
	}
	if f.Artifacts != nil {
		m.Artifacts = *f.Artifacts
	}
	if f.OutputData != nil {
		m.OutputData = *f.OutputData
	}
	if f.RequiresApproval != nil {
		m.RequiresApproval = *f.RequiresApproval
	}
	if f.ApprovalReason != nil {
		m.ApprovalReason = *f.ApprovalReason
	}
	if f.Feedback != nil {
		m.Feedback = *f.Feedback
	}
	if f.Error != nil {
		m.Error = *f.Error
	}
	if f.CompletedAt != nil {
		t := *f.CompletedAt
		m.CompletedAt = &t
	} else if f.ClearCompletedAt {
		m.CompletedAt = nil
	}
	if f.UpdatedAt != nil {
		m.UpdatedAt = *f.UpdatedAt
	}
}

type Filter struct {
	UserID string
	Status mission.Status // empty matches any
	Limit  int
	Offset int
}

func (f Filter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

func (f Filter) offset() int {
	if f.Offset < 0 {
		return 0
	}
	return f.Offset
}
