package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"career-agent/internal/mission"
)

// Memory keeps each record as encoded JSON so reads decode the same way the
// SQLite store does.
type Memory struct {
	mu      sync.RWMutex
	records map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{records: map[string][]byte{}}
}

func (s *Memory) Create(_ context.Context, m *mission.Mission) error {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode mission: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[m.ID]; ok {
		return fmt.Errorf("%w: %s", ErrExists, m.ID)
	}
	s.records[m.ID] = b
	return nil
}

func (s *Memory) Get(_ context.Context, id string) (*mission.Mission, error) {
	s.mu.RLock()
	b, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return decodeMission(b)
}

func (s *Memory) Update(_ context.Context, id string, f Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	m, err := decodeMission(b)
	if err != nil {
		return err
	}
	f.Apply(m)
	out, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode mission: %w", err)
	}
	s.records[id] = out
	return nil
}

func (s *Memory) List(_ context.Context, filter Filter) ([]mission.Summary, error) {
	s.mu.RLock()
	var all []*mission.Mission
	for _, b := range s.records {
		m, err := decodeMission(b)
		if err != nil {
			s.mu.RUnlock()
			return nil, err
		}
		if filter.UserID != "" && m.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && m.Status != filter.Status {
			continue
		}
		all = append(all, m)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	out := []mission.Summary{}
	for i := filter.offset(); i < len(all) && len(out) < filter.limit(); i++ {
		out = append(out, all[i].Summary())
	}
	return out, nil
}

func (s *Memory) Close() error { return nil }

func decodeMission(b []byte) (*mission.Mission, error) {
	var m mission.Mission
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode mission: %w", err)
	}
	if m.Events == nil {
		m.Events = []mission.Event{}
	}
	if m.Artifacts == nil {
		m.Artifacts = []mission.Artifact{}
	}
	return &m, nil
}
