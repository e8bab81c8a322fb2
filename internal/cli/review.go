package cli

import (
	"context"
	"fmt"

	"career-agent/internal/display"
	"career-agent/internal/listener"
	"career-agent/internal/mission"
	"career-agent/internal/supervisor"
)

// reviewPrompt shows a suspended mission's newest artifact in full and asks
// the reviewer for a decision.
func reviewPrompt(ctx context.Context, console *listener.Console, sup *supervisor.Supervisor, id string) (supervisor.Decision, error) {
	view, err := sup.GetStatus(ctx, id)
	if err != nil {
		return supervisor.Decision{}, err
	}
	if view.Status != mission.StatusNeedsReview {
		return supervisor.Decision{}, fmt.Errorf("%w: %s is %s", supervisor.ErrNotAwaitingApproval, id, view.Status)
	}

	console.BeginInteractive()
	console.PrintAbove(fmt.Sprintf("Mission %s (%s) needs review: %s", view.ID, view.Kind, view.ApprovalReason))
	if n := len(view.Artifacts); n > 0 {
		console.PrintAbove(display.FormatArtifacts(view.Artifacts[n-1:], -1))
	}
	console.EndInteractive()

	approved, err := console.AskYesNo("Approve this result?")
	if err != nil {
		return supervisor.Decision{}, err
	}
	d := supervisor.Decision{Approved: approved}

	console.BeginInteractive()
	defer console.EndInteractive()
	if approved {
		d.EditedContent, err = console.Ask("Edited content (blank keeps it as is): ")
	} else {
		d.Feedback, err = console.Ask("What should change? ")
	}
	if err != nil {
		return supervisor.Decision{}, err
	}
	return d, nil
}
