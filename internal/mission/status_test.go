package mission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	testCases := []struct {
		raw  string
		want Status
	}{
		{"pending", StatusPending},
		{"RUNNING", StatusRunning},
		{"NEEDS_REVIEW", StatusNeedsReview},
		{"needs-review", StatusNeedsReview},
		{"Waiting Approval", StatusNeedsReview},
		{" completed ", StatusCompleted},
		{"FAILED", StatusFailed},
	}
	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := ParseStatus(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := ParseStatus("done-ish")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestTerminalStatusesHaveNoExit(t *testing.T) {
	all := []Status{StatusPending, StatusRunning, StatusExecuting, StatusNeedsReview,
		StatusApproved, StatusRejected, StatusCompleted, StatusFailed}
	for _, from := range []Status{StatusCompleted, StatusFailed} {
		for _, to := range all {
			if to == from {
				continue
			}
			assert.False(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCanTransition(t *testing.T) {
	testCases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusRunning, true},
		{StatusRunning, StatusExecuting, true},
		{StatusExecuting, StatusRunning, true},
		{StatusExecuting, StatusNeedsReview, true},
		{StatusNeedsReview, StatusApproved, true},
		{StatusNeedsReview, StatusRejected, true},
		{StatusNeedsReview, StatusRunning, false},
		{StatusNeedsReview, StatusCompleted, false},
		{StatusApproved, StatusRunning, true},
		{StatusApproved, StatusCompleted, true},
		{StatusRejected, StatusRunning, true},
		{StatusPending, StatusApproved, false},
		{StatusRunning, StatusFailed, true},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("job-finder")
	require.NoError(t, err)
	assert.Equal(t, KindJobSearch, k)

	k, err = ParseKind("LinkedIn")
	require.NoError(t, err)
	assert.Equal(t, KindDraft, k)

	_, err = ParseKind("tax_return")
	assert.Error(t, err)
}
