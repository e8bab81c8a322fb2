package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"career-agent/internal/mission"
	"career-agent/internal/store"
)

func seed(t *testing.T, st store.Store, userID string) *mission.Mission {
	t.Helper()
	m := mission.New(mission.KindDraft, userID, input(), time.Now())
	require.NoError(t, st.Create(context.Background(), m))
	return m
}

func setProgress(t *testing.T, st store.Store, m *mission.Mission, status mission.Status, progress int) {
	t.Helper()
	require.NoError(t, mission.Merge(m, mission.Delta{Status: status, Progress: mission.Ptr(progress)}, time.Now()))
	require.NoError(t, st.Update(context.Background(), m.ID, store.Snapshot(m)))
}

func TestPollReportsOnlyChanges(t *testing.T) {
	s, st := newSupervisor(t, kinds{})
	ctx := context.Background()
	m := seed(t, st, "u1")
	seed(t, st, "someone-else")

	out := make(chan Notification, 10)
	last := map[string]observed{}

	require.True(t, s.poll(ctx, "u1", last, out))
	require.Len(t, out, 1)
	first := <-out
	assert.Equal(t, Notification{MissionID: m.ID, Status: mission.StatusPending, Progress: 0}, first)

	require.True(t, s.poll(ctx, "u1", last, out))
	assert.Empty(t, out)

	// Two updates between polls coalesce into the latest one.
	setProgress(t, st, m, mission.StatusRunning, 20)
	setProgress(t, st, m, mission.StatusRunning, 40)
	require.True(t, s.poll(ctx, "u1", last, out))
	require.Len(t, out, 1)
	assert.Equal(t, Notification{MissionID: m.ID, Status: mission.StatusRunning, Progress: 40}, <-out)

	setProgress(t, st, m, mission.StatusNeedsReview, 40)
	require.True(t, s.poll(ctx, "u1", last, out))
	require.Len(t, out, 1)
	assert.Equal(t, mission.StatusNeedsReview, (<-out).Status)
}

func TestWatchStreamsUntilCancelled(t *testing.T) {
	s, st := newSupervisor(t, kinds{})
	m := seed(t, st, "u1")

	ctx, cancel := context.WithCancel(context.Background())
	notes := s.Watch(ctx, "u1", 10*time.Millisecond)

	select {
	case n := <-notes:
		assert.Equal(t, m.ID, n.MissionID)
		assert.Equal(t, mission.StatusPending, n.Status)
	case <-time.After(time.Second):
		t.Fatal("no initial notification")
	}

	setProgress(t, st, m, mission.StatusRunning, 50)
	select {
	case n := <-notes:
		assert.Equal(t, 50, n.Progress)
	case <-time.After(time.Second):
		t.Fatal("progress change not reported")
	}

	cancel()
	for range notes {
	}
}
