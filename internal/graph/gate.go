package graph

import (
	"context"

	"career-agent/internal/mission"
)

// GateContextKey records which gate suspended the mission, so a later
// process can resume after it.
const GateContextKey = "_gate"

// EditedContextKey holds the reviewer's edit on an approved mission. It is
// set only for the approval that carried it.
const EditedContextKey = "edited_content"

// ReviewProgress is the progress a suspended mission reports.
const ReviewProgress = 80

// GatePolicy decides whether a human must review the current state.
type GatePolicy func(m *mission.Mission) (required bool, reason string)

func Always(reason string) GatePolicy {
	return func(*mission.Mission) (bool, string) { return true, reason }
}

func When(pred func(m *mission.Mission) bool, reason string) GatePolicy {
	return func(m *mission.Mission) (bool, string) {
		if pred(m) {
			return true, reason
		}
		return false, ""
	}
}

// Gate builds an approval step named name.
func Gate(name string, policy GatePolicy) Step {
	return StepFunc(func(_ context.Context, m *mission.Mission) (mission.Delta, error) {
		required, reason := policy(m)
		if !required {
			return mission.Delta{}, nil
		}
		return mission.Delta{
			Status:           mission.StatusNeedsReview,
			Progress:         mission.Ptr(ReviewProgress),
			RequiresApproval: mission.Ptr(true),
			ApprovalReason:   mission.Ptr(reason),
			Context:          mission.ContextWith(m.Context, map[string]any{GateContextKey: name}),
			Events: []mission.Event{
				mission.NewEvent(mission.EventReview, "Waiting for review: "+reason, map[string]any{"gate": name}),
			},
		}, nil
	})
}

// AfterGate routes to next once the mission is no longer waiting for review.
func AfterGate(m *mission.Mission) string {
	if m.Status == mission.StatusNeedsReview {
		return "wait"
	}
	return "continue"
}

// AddGate declares a gate step and its routing to next.
func (b *Builder) AddGate(name string, policy GatePolicy, next string) *Builder {
	b.AddStep(name, Gate(name, policy))
	return b.AddConditionalEdges(name, AfterGate, map[string]string{
		"wait":     End,
		"continue": next,
	})
}

// EditableArtifact names the artifact a reviewer's edit revises. Graphs
// without one record edits as a plain "edited_content" artifact.
func (b *Builder) EditableArtifact(name string) *Builder {
	b.g.editable = name
	return b
}

func (g *Graph) EditableArtifact() string { return g.editable }
