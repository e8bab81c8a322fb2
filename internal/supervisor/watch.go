package supervisor

import (
	"context"
	"time"

	"career-agent/internal/mission"
	"career-agent/internal/store"
)

const watchPageSize = 500

type observed struct {
	status   mission.Status
	progress int
}

// Watch polls the store every interval and emits a Notification for each of
// userID's missions whose status or progress changed since the previous
// poll. Intermediate changes between polls are not reported. The channel
// closes when ctx is done.
func (s *Supervisor) Watch(ctx context.Context, userID string, interval time.Duration) <-chan Notification {
	out := make(chan Notification, 16)
	if interval <= 0 {
		interval = time.Second
	}
	go func() {
		defer close(out)
		last := map[string]observed{}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if !s.poll(ctx, userID, last, out) {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return out
}

func (s *Supervisor) poll(ctx context.Context, userID string, last map[string]observed, out chan<- Notification) bool {
	list, err := s.store.List(ctx, store.Filter{UserID: userID, Limit: watchPageSize})
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		s.log.Warn("watch poll failed", "user_id", userID, "error", err)
		return true
	}
	// Oldest first so notifications follow launch order.
	for i := len(list) - 1; i >= 0; i-- {
		sum := list[i]
		now := observed{status: sum.Status, progress: sum.Progress}
		if prev, seen := last[sum.ID]; seen && prev == now {
			continue
		}
		last[sum.ID] = now
		select {
		case out <- Notification{MissionID: sum.ID, Status: sum.Status, Progress: sum.Progress}:
		case <-ctx.Done():
			return false
		}
	}
	return true
}
