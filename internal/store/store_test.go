package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"career-agent/internal/mission"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "missions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sq,
	}
}

var base = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

func TestCreateGetRoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			m := mission.New(mission.KindTailor, "u1", map[string]any{"job_url": "https://jobs/1", "count": 3}, base)
			require.NoError(t, s.Create(ctx, m))

			got, err := s.Get(ctx, m.ID)
			require.NoError(t, err)
			assert.Equal(t, m.ID, got.ID)
			assert.Equal(t, mission.KindTailor, got.Kind)
			assert.Equal(t, mission.StatusPending, got.Status)
			assert.Equal(t, "https://jobs/1", got.Input["job_url"])
			assert.Equal(t, float64(3), got.Input["count"], "numbers decode as JSON numbers")
			assert.True(t, base.Equal(got.CreatedAt))
			assert.Nil(t, got.CompletedAt)
			assert.NotNil(t, got.Events)

			assert.ErrorIs(t, s.Create(ctx, m), ErrExists)
		})
	}
}

func TestGetMissing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(context.Background(), "nope")
			assert.ErrorIs(t, err, ErrNotFound)
			err = s.Update(context.Background(), "nope", Fields{Progress: mission.Ptr(5)})
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestUpdatePartialFields(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			m := mission.New(mission.KindDraft, "u1", nil, base)
			require.NoError(t, s.Create(ctx, m))

			status := mission.StatusRunning
			events := []mission.Event{{Kind: mission.EventLog, Message: "gathered", Timestamp: base}}
			require.NoError(t, s.Update(ctx, m.ID, Fields{
				Status:  &status,
				Events:  &events,
				Context: &map[string]any{"topic": "go"},
			}))

			got, err := s.Get(ctx, m.ID)
			require.NoError(t, err)
			assert.Equal(t, mission.StatusRunning, got.Status)
			require.Len(t, got.Events, 1)
			assert.Equal(t, "gathered", got.Events[0].Message)
			assert.Equal(t, "go", got.Context["topic"])
			assert.Zero(t, got.Progress, "absent fields are untouched")
		})
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			m := mission.New(mission.KindSkillGap, "u1", nil, base)
			require.NoError(t, s.Create(ctx, m))

			m.Status = mission.StatusCompleted
			m.Progress = 100
			m.OutputData = map[string]any{"summary": "done"}
			m.Artifacts = append(m.Artifacts, mission.NewArtifact(mission.ArtifactMarkdown, "report", "# Report"))
			done := base.Add(time.Minute)
			m.CompletedAt = &done
			require.NoError(t, s.Update(ctx, m.ID, Snapshot(m)))

			got, err := s.Get(ctx, m.ID)
			require.NoError(t, err)
			assert.Equal(t, 100, got.Progress)
			assert.Equal(t, "done", got.OutputData["summary"])
			require.Len(t, got.Artifacts, 1)
			assert.Equal(t, "# Report", got.Artifacts[0].Content)
			require.NotNil(t, got.CompletedAt)
			assert.True(t, done.Equal(*got.CompletedAt))
		})
	}
}

func TestListFiltersAndPages(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var ids []string
			for i := 0; i < 5; i++ {
				m := mission.New(mission.KindInterview, "alice", map[string]any{"secret": i}, base.Add(time.Duration(i)*time.Minute))
				if i%2 == 0 {
					m.Status = mission.StatusCompleted
				}
				require.NoError(t, s.Create(ctx, m))
				ids = append(ids, m.ID)
			}
			require.NoError(t, s.Create(ctx, mission.New(mission.KindInterview, "bob", nil, base)))

			page, err := s.List(ctx, Filter{UserID: "alice", Limit: 2})
			require.NoError(t, err)
			require.Len(t, page, 2)
			assert.Equal(t, ids[4], page[0].ID, "newest first")
			assert.Equal(t, ids[3], page[1].ID)

			page, err = s.List(ctx, Filter{UserID: "alice", Limit: 2, Offset: 4})
			require.NoError(t, err)
			require.Len(t, page, 1)
			assert.Equal(t, ids[0], page[0].ID)

			done, err := s.List(ctx, Filter{UserID: "alice", Status: mission.StatusCompleted})
			require.NoError(t, err)
			assert.Len(t, done, 3)

			all, err := s.List(ctx, Filter{})
			require.NoError(t, err)
			assert.Len(t, all, 6)
		})
	}
}

func TestRetryOnBusyStopsOnOtherErrors(t *testing.T) {
	calls := 0
	err := retryOnBusy(context.Background(), 3, func() error {
		calls++
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls)
}
