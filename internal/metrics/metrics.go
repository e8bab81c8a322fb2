package metrics

import "time"

type StepMetrics struct {
	Step       string    `json:"step"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	DurationMs int64     `json:"duration_ms"`
	Success    bool      `json:"success"`
	Persisted  bool      `json:"persisted"`
	Err        string    `json:"err,omitempty"`
}

// RunMetrics covers one runner invocation; a mission that suspends and
// resumes produces one RunMetrics per invocation.
type RunMetrics struct {
	MissionID  string        `json:"mission_id"`
	Start      time.Time     `json:"start"`
	End        time.Time     `json:"end"`
	DurationMs int64         `json:"duration_ms"`
	Outcome    string        `json:"outcome"`
	Steps      []StepMetrics `json:"steps"`
}

// Compute derived fields for a step.
func (s *StepMetrics) Finalize() {
	s.DurationMs = s.End.Sub(s.Start).Milliseconds()
}

func (r *RunMetrics) Finalize(end time.Time) {
	r.End = end
	r.DurationMs = r.End.Sub(r.Start).Milliseconds()
}

// PersistFailures counts steps whose merged state did not reach the store.
func (r *RunMetrics) PersistFailures() int {
	n := 0
	for _, s := range r.Steps {
		if s.Success && !s.Persisted {
			n++
		}
	}
	return n
}
