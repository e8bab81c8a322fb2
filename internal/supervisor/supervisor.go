// Package supervisor launches missions, applies review decisions and keeps
// at most one active run per mission id.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"career-agent/internal/graph"
	"career-agent/internal/logger"
	"career-agent/internal/mission"
	"career-agent/internal/runner"
	"career-agent/internal/store"
)

var (
	ErrMissionActive       = errors.New("mission has an active run")
	ErrNotAwaitingApproval = errors.New("mission is not awaiting approval")
	ErrNoActiveRun         = errors.New("no mission is currently running")
	ErrShuttingDown        = errors.New("supervisor is shutting down")

	errCancelled = errors.New("mission cancelled")
)

const (
	defaultMaxRegenerations = 3
	resultBuffer            = 100

	// Context key counting rejections that triggered a regeneration.
	regenerationsKey = "_regenerations"
)

// Kinds resolves a mission kind to its graph and validates launch input.
type Kinds interface {
	Graph(kind mission.Kind) (*graph.Graph, bool)
	ValidateInput(kind mission.Kind, input map[string]any) error
}

type run struct {
	cancel context.CancelCauseFunc
	done   chan struct{}
	seq    uint64
}

type Supervisor struct {
	store            store.Store
	kinds            Kinds
	runner           *runner.Runner
	now              func() time.Time
	log              *slog.Logger
	maxRegenerations int

	mu      sync.Mutex
	active  map[string]*run
	seq     uint64
	closing bool
	wg      sync.WaitGroup

	results chan MissionResult
}

type Option func(*Supervisor)

func WithLogger(l *slog.Logger) Option { return func(s *Supervisor) { s.log = l } }

func WithClock(now func() time.Time) Option { return func(s *Supervisor) { s.now = now } }

// WithRunner replaces the runner built from the store.
func WithRunner(r *runner.Runner) Option { return func(s *Supervisor) { s.runner = r } }

// WithMaxRegenerations bounds how many rejections re-run a mission before
// a rejection becomes final.
func WithMaxRegenerations(n int) Option { return func(s *Supervisor) { s.maxRegenerations = n } }

func New(st store.Store, kinds Kinds, opts ...Option) *Supervisor {
	s := &Supervisor{
		store:            st,
		kinds:            kinds,
		now:              time.Now,
		maxRegenerations: defaultMaxRegenerations,
		active:           map[string]*run{},
		results:          make(chan MissionResult, resultBuffer),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Log
	}
	if s.runner == nil {
		s.runner = runner.New(st, runner.WithClock(s.now), runner.WithLogger(s.log))
	}
	return s
}

// Results delivers one MissionResult per finished run. Results are dropped
// when nobody drains the channel.
func (s *Supervisor) Results() <-chan MissionResult { return s.results }

// Launch creates a mission and starts running it in the background.
func (s *Supervisor) Launch(ctx context.Context, kind mission.Kind, userID string, input map[string]any) (string, error) {
	g, ok := s.kinds.Graph(kind)
	if !ok {
		return "", fmt.Errorf("no graph registered for mission kind %q", kind)
	}
	if err := s.kinds.ValidateInput(kind, input); err != nil {
		return "", err
	}
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("user id is required")
	}

	m := mission.New(kind, userID, input, s.now())
	r, err := s.reserve(m.ID)
	if err != nil {
		return "", err
	}
	if err := s.store.Create(ctx, m); err != nil {
		s.release(m.ID)
		return "", fmt.Errorf("create mission: %w", err)
	}
	s.log.Info("mission launched", "mission_id", m.ID, "kind", string(kind), "user_id", userID)

	s.start(m.ID, m.Kind, r, func(runCtx context.Context) (*runner.Result, error) {
		start := mission.Delta{Status: mission.StatusRunning, Progress: mission.Ptr(0), CurrentStep: "initializing"}
		if err := mission.Merge(m, start, s.now()); err != nil {
			return nil, err
		}
		s.persist(runCtx, m)
		return s.runner.Run(runCtx, g, m)
	})
	return m.ID, nil
}

func (s *Supervisor) GetStatus(ctx context.Context, id string) (StatusView, error) {
	m, err := s.store.Get(ctx, id)
	if err != nil {
		return StatusView{}, err
	}
	return viewOf(m), nil
}

// Get returns the full stored mission record.
func (s *Supervisor) Get(ctx context.Context, id string) (*mission.Mission, error) {
	return s.store.Get(ctx, id)
}

func (s *Supervisor) List(ctx context.Context, userID string, status mission.Status, page Page) ([]mission.Summary, error) {
	if status != "" {
		st, err := status.Normalize()
		if err != nil {
			return nil, err
		}
		status = st
	}
	return s.store.List(ctx, store.Filter{UserID: userID, Status: status, Limit: page.Limit, Offset: page.Offset})
}

// Decide records a review decision. Approval resumes the graph after the
// gate; rejection re-runs it from the entry step with the feedback, until
// the regeneration budget is spent and the rejection becomes final. The
// returned status is the recorded decision; runs continue in the background.
func (s *Supervisor) Decide(ctx context.Context, id string, d Decision) (mission.Status, error) {
	r, err := s.reserveForDecision(ctx, id)
	if err != nil {
		return "", err
	}
	started := false
	defer func() {
		if !started {
			s.release(id)
		}
	}()

	m, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if m.Status != mission.StatusNeedsReview {
		return "", fmt.Errorf("%w: %s is %s", ErrNotAwaitingApproval, id, m.Status)
	}
	g, ok := s.kinds.Graph(m.Kind)
	if !ok {
		return "", fmt.Errorf("no graph registered for mission kind %q", m.Kind)
	}

	decision := mission.StatusRejected
	msg := "Rejected by reviewer"
	if d.Approved {
		decision, msg = mission.StatusApproved, "Approved by reviewer"
	}
	if d.Feedback != "" {
		msg += ": " + d.Feedback
	}
	delta := mission.Delta{
		Status:           decision,
		RequiresApproval: mission.Ptr(false),
		ApprovalReason:   mission.Ptr(""),
		Events:           []mission.Event{mission.NewEvent(mission.EventStatusChange, msg, map[string]any{"approved": d.Approved})},
	}
	kv := map[string]any{}
	if d.Feedback != "" {
		delta.Feedback = mission.Ptr(d.Feedback)
		kv["feedback"] = d.Feedback
	}
	next := mission.ContextWith(m.Context, kv)
	// An edit belongs to the approval that carried it, never to a later round.
	delete(next, graph.EditedContextKey)
	switch {
	case d.EditedContent == "":
	case d.Approved:
		next[graph.EditedContextKey] = d.EditedContent
		delta.Artifacts = []mission.Artifact{editedRevision(g, m, d.EditedContent)}
	default:
		s.log.Warn("edited content ignored on rejection", "mission_id", id)
	}
	delta.Context = next
	if err := mission.Merge(m, delta, s.now()); err != nil {
		return "", err
	}

	if d.Approved {
		gate, _ := m.Context[graph.GateContextKey].(string)
		if gate == "" {
			gate = m.CurrentStep
		}
		if err := s.store.Update(ctx, id, store.Snapshot(m)); err != nil {
			return "", fmt.Errorf("record decision: %w", err)
		}
		s.log.Info("mission approved", "mission_id", id, "resume_after", gate)
		started = true
		s.start(id, m.Kind, r, func(runCtx context.Context) (*runner.Result, error) {
			return s.runner.Resume(runCtx, g, m, gate)
		})
		return decision, nil
	}

	regenerations := regenerationCount(m)
	if regenerations >= s.maxRegenerations {
		final := mission.Delta{
			Status:   mission.StatusCompleted,
			Progress: mission.Ptr(100),
			OutputData: map[string]any{
				"rejected":      true,
				"feedback":      d.Feedback,
				"regenerations": regenerations,
			},
		}
		if err := mission.Merge(m, final, s.now()); err != nil {
			return "", err
		}
		if err := s.store.Update(ctx, id, store.Snapshot(m)); err != nil {
			return "", fmt.Errorf("record decision: %w", err)
		}
		s.log.Info("mission rejected, regeneration budget spent", "mission_id", id, "regenerations", regenerations)
		return decision, nil
	}

	mission.Reopen(m, d.Feedback, s.now())
	m.Context = mission.ContextWith(m.Context, map[string]any{regenerationsKey: regenerations + 1})
	if err := s.store.Update(ctx, id, store.Snapshot(m)); err != nil {
		return "", fmt.Errorf("record decision: %w", err)
	}
	s.log.Info("mission rejected, regenerating", "mission_id", id, "attempt", regenerations+1)
	started = true
	s.start(id, m.Kind, r, func(runCtx context.Context) (*runner.Result, error) {
		return s.runner.Run(runCtx, g, m)
	})
	return decision, nil
}

// editedRevision is the reviewer's edit as a new revision of the graph's
// editable artifact.
func editedRevision(g *graph.Graph, m *mission.Mission, content string) mission.Artifact {
	name := g.EditableArtifact()
	if name == "" {
		return mission.NewArtifact(mission.ArtifactText, graph.EditedContextKey, content)
	}
	kind := mission.ArtifactText
	if prev, ok := m.LatestArtifact(name); ok {
		kind = prev.Kind
	}
	return mission.NewArtifact(kind, name, content)
}

func regenerationCount(m *mission.Mission) int {
	switch v := m.Context[regenerationsKey].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// Cancel stops the active run of id. The mission is recorded as failed.
func (s *Supervisor) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.active[id]
	if !ok || r.cancel == nil {
		return fmt.Errorf("%w: %s", ErrNoActiveRun, id)
	}
	r.cancel(errCancelled)
	return nil
}

// CancelMostRecent cancels the most recently started active run.
func (s *Supervisor) CancelMostRecent() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		latestID string
		latest   *run
	)
	for id, r := range s.active {
		if r.cancel != nil && (latest == nil || r.seq > latest.seq) {
			latestID, latest = id, r
		}
	}
	if latest == nil {
		return "", ErrNoActiveRun
	}
	latest.cancel(errCancelled)
	return latestID, nil
}

// Active lists mission ids with a run in progress.
func (s *Supervisor) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	return ids
}

// Wait blocks until id has no active run.
func (s *Supervisor) Wait(ctx context.Context, id string) error {
	s.mu.Lock()
	r, ok := s.active[id]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown cancels every run without recording a failure and waits for
// them to stop. Stored state stays as last persisted.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	for _, r := range s.active {
		if r.cancel != nil {
			r.cancel(ErrShuttingDown)
		}
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// reserve claims the run slot of id before any state is read, so two
// callers can never both start a run.
func (s *Supervisor) reserve(id string) (*run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return nil, ErrShuttingDown
	}
	if _, busy := s.active[id]; busy {
		return nil, fmt.Errorf("%w: %s", ErrMissionActive, id)
	}
	s.seq++
	r := &run{done: make(chan struct{}), seq: s.seq}
	s.active[id] = r
	return r, nil
}

// reserveForDecision claims the run slot of id. A run that has just
// persisted its suspension still holds the slot until it returns, so a
// mission already waiting for review waits for that run instead of failing.
func (s *Supervisor) reserveForDecision(ctx context.Context, id string) (*run, error) {
	r, err := s.reserve(id)
	if !errors.Is(err, ErrMissionActive) {
		return r, err
	}
	m, gerr := s.store.Get(ctx, id)
	if gerr != nil || m.Status != mission.StatusNeedsReview {
		return nil, err
	}
	if werr := s.Wait(ctx, id); werr != nil {
		return nil, werr
	}
	return s.reserve(id)
}

func (s *Supervisor) release(id string) {
	s.mu.Lock()
	r, ok := s.active[id]
	delete(s.active, id)
	s.mu.Unlock()
	if ok {
		close(r.done)
	}
}

func (s *Supervisor) start(id string, kind mission.Kind, r *run, body func(ctx context.Context) (*runner.Result, error)) {
	ctx, cancel := context.WithCancelCause(context.Background())
	s.mu.Lock()
	r.cancel = cancel
	if s.closing {
		cancel(ErrShuttingDown)
	}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(id)
		defer cancel(nil)

		res, err := s.invoke(ctx, id, body)
		s.finish(ctx, id, kind, res, err)
	}()
}

func (s *Supervisor) invoke(ctx context.Context, id string, body func(ctx context.Context) (*runner.Result, error)) (res *runner.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("mission %s panicked: %v", id, rec)
		}
	}()
	return body(ctx)
}

func (s *Supervisor) finish(ctx context.Context, id string, kind mission.Kind, res *runner.Result, runErr error) {
	log := s.log.With("mission_id", id, "kind", string(kind))
	result := MissionResult{MissionID: id, Kind: kind}
	if runErr != nil {
		result.Error = runErr.Error()
	}

	var m *mission.Mission
	if res != nil {
		m = res.Mission
		result.Outcome = res.Outcome
		result.Metrics = res.Metrics
	}

	switch {
	case res == nil:
		// The run never got going; record the failure on the stored copy.
		result.Outcome = runner.OutcomeFailed
		reason := "run produced no result"
		if runErr != nil {
			reason = runErr.Error()
		}
		result.Error = reason
		m = s.recordFailure(id, reason, log)
	case res.Outcome == runner.OutcomeCancelled:
		if errors.Is(context.Cause(ctx), errCancelled) {
			if err := mission.Merge(m, mission.Fail(errCancelled.Error()), s.now()); err == nil {
				s.persist(context.Background(), m)
			}
			result.Error = errCancelled.Error()
			log.Warn("mission cancelled", "step", m.CurrentStep)
		} else {
			log.Info("run stopped for shutdown", "step", m.CurrentStep)
		}
	case runErr != nil:
		log.Error("mission failed", "step", m.CurrentStep, "error", runErr)
	default:
		log.Info("run finished", "outcome", string(res.Outcome), "status", string(m.Status), "progress", m.Progress)
	}
	if m != nil {
		result.Status = m.Status
	}

	select {
	case s.results <- result:
	default:
		log.Warn("result channel full, dropping result")
	}
}

func (s *Supervisor) recordFailure(id, reason string, log *slog.Logger) *mission.Mission {
	ctx := context.Background()
	m, err := s.store.Get(ctx, id)
	if err != nil {
		log.Error("load mission to record failure", "error", err)
		return nil
	}
	if m.Status.IsTerminal() {
		return m
	}
	if err := mission.Merge(m, mission.Fail(reason), s.now()); err != nil {
		log.Error("record failure", "error", err)
		return m
	}
	s.persist(ctx, m)
	return m
}

func (s *Supervisor) persist(ctx context.Context, m *mission.Mission) {
	if err := s.store.Update(ctx, m.ID, store.Snapshot(m)); err != nil {
		s.log.Error("persist mission state", "mission_id", m.ID, "error", err)
	}
}
