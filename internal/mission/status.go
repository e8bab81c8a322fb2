package mission

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the canonical, persisted form of a mission's lifecycle state.
type Status string

const (
	StatusPending     Status = "pending"
	StatusRunning     Status = "running"
	StatusExecuting   Status = "executing"
	StatusNeedsReview Status = "needs_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

var (
	ErrUnknownStatus     = errors.New("unknown mission status")
	ErrIllegalTransition = errors.New("illegal status transition")
)

var statusAliases = map[string]Status{
	"pending":          StatusPending,
	"queued":           StatusPending,
	"running":          StatusRunning,
	"executing":        StatusExecuting,
	"needs_review":     StatusNeedsReview,
	"waiting_approval": StatusNeedsReview,
	"awaiting_review":  StatusNeedsReview,
	"approved":         StatusApproved,
	"rejected":         StatusRejected,
	"completed":        StatusCompleted,
	"succeeded":        StatusCompleted,
	"failed":           StatusFailed,
}

// ParseStatus maps any accepted spelling (NEEDS_REVIEW, needs-review,
// "Waiting Approval") onto its canonical value.
func ParseStatus(raw string) (Status, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if st, ok := statusAliases[key]; ok {
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
}

// Normalize is ParseStatus for a value that is already typed.
func (s Status) Normalize() (Status, error) { return ParseStatus(string(s)) }

func (s Status) String() string { return string(s) }

// IsTerminal reports whether no further steps may run.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsActive reports whether a runner is stepping the mission.
func (s Status) IsActive() bool {
	return s == StatusRunning || s == StatusExecuting
}

var transitions = map[Status][]Status{
	StatusPending:     {StatusRunning, StatusExecuting, StatusNeedsReview, StatusCompleted, StatusFailed},
	StatusRunning:     {StatusRunning, StatusExecuting, StatusNeedsReview, StatusCompleted, StatusFailed},
	StatusExecuting:   {StatusRunning, StatusExecuting, StatusNeedsReview, StatusCompleted, StatusFailed},
	StatusNeedsReview: {StatusApproved, StatusRejected, StatusFailed},
	StatusApproved:    {StatusRunning, StatusExecuting, StatusCompleted, StatusFailed},
	StatusRejected:    {StatusRunning, StatusExecuting, StatusCompleted, StatusFailed},
}

// CanTransition is the single source of truth for status moves. A status may
// always be restated; terminal statuses have no outgoing edges.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
