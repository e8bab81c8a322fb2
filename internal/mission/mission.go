package mission

import (
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventLog          EventKind = "log"
	EventStatusChange EventKind = "status_change"
	EventArtifact     EventKind = "artifact"
	EventReview       EventKind = "hitl"
	EventError        EventKind = "error"
)

type Event struct {
	Kind      EventKind      `json:"type"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// LogEvent builds an unstamped log event; Merge stamps it.
func LogEvent(message string, data map[string]any) Event {
	return Event{Kind: EventLog, Message: message, Data: data}
}

func NewEvent(kind EventKind, message string, data map[string]any) Event {
	return Event{Kind: kind, Message: message, Data: data}
}

type ArtifactKind string

const (
	ArtifactMarkdown ArtifactKind = "markdown"
	ArtifactJSON     ArtifactKind = "json"
	ArtifactText     ArtifactKind = "text"
)

type Artifact struct {
	ID      string       `json:"id"`
	Kind    ArtifactKind `json:"type"`
	Name    string       `json:"name"`
	Content any          `json:"content"`
}

func NewArtifact(kind ArtifactKind, name string, content any) Artifact {
	return Artifact{ID: uuid.New().String(), Kind: kind, Name: name, Content: content}
}

// Mission is one execution record. ID, UserID and Kind never change after
// creation.
type Mission struct {
	ID               string         `json:"id"`
	UserID           string         `json:"user_id"`
	Kind             Kind           `json:"kind"`
	Status           Status         `json:"status"`
	CurrentStep      string         `json:"current_step,omitempty"`
	Progress         int            `json:"progress"`
	Input            map[string]any `json:"input_data,omitempty"`
	Context          map[string]any `json:"context,omitempty"`
	Events           []Event        `json:"events"`
	Artifacts        []Artifact     `json:"artifacts"`
	OutputData       map[string]any `json:"output_data,omitempty"`
	RequiresApproval bool           `json:"requires_approval"`
	ApprovalReason   string         `json:"approval_reason,omitempty"`
	Feedback         string         `json:"feedback,omitempty"`
	Error            string         `json:"error,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
}

// New returns a pending mission with a fresh id.
func New(kind Kind, userID string, input map[string]any, now time.Time) *Mission {
	return &Mission{
		ID:        uuid.New().String(),
		UserID:    userID,
		Kind:      kind,
		Status:    StatusPending,
		Input:     cloneMap(input),
		Context:   map[string]any{},
		Events:    []Event{},
		Artifacts: []Artifact{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Summary is the list projection of a mission; it omits input and context.
type Summary struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	Kind             Kind       `json:"kind"`
	Status           Status     `json:"status"`
	CurrentStep      string     `json:"current_step,omitempty"`
	Progress         int        `json:"progress"`
	RequiresApproval bool       `json:"requires_approval"`
	Error            string     `json:"error,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

func (m *Mission) Summary() Summary {
	return Summary{
		ID:               m.ID,
		UserID:           m.UserID,
		Kind:             m.Kind,
		Status:           m.Status,
		CurrentStep:      m.CurrentStep,
		Progress:         m.Progress,
		RequiresApproval: m.RequiresApproval,
		Error:            m.Error,
		CreatedAt:        m.CreatedAt,
		CompletedAt:      m.CompletedAt,
	}
}

// Clone returns a deep copy so a step can never reach the runner's state.
func (m *Mission) Clone() *Mission {
	if m == nil {
		return nil
	}
	c := *m
	c.Input = cloneMap(m.Input)
	c.Context = cloneMap(m.Context)
	c.OutputData = cloneMap(m.OutputData)
	c.Events = make([]Event, len(m.Events))
	for i, ev := range m.Events {
		ev.Data = cloneMap(ev.Data)
		c.Events[i] = ev
	}
	c.Artifacts = make([]Artifact, len(m.Artifacts))
	for i, a := range m.Artifacts {
		a.Content = cloneValue(a.Content)
		c.Artifacts[i] = a
	}
	if m.CompletedAt != nil {
		t := *m.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// LatestArtifact returns the most recently appended artifact with the given
// name, or the last artifact when name is empty.
func (m *Mission) LatestArtifact(name string) (Artifact, bool) {
	for i := len(m.Artifacts) - 1; i >= 0; i-- {
		if name == "" || m.Artifacts[i].Name == name {
			return m.Artifacts[i], true
		}
	}
	return Artifact{}, false
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = cloneValue(x)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, x := range t {
			out[i] = cloneMap(x)
		}
		return out
	default:
		return v
	}
}
