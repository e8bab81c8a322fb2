// Package runner drives one step graph for one mission until it completes,
// fails, or suspends at an approval gate. State is merged and persisted after
// every step. The runner does not guard against two runs of the same mission;
// callers hold that policy.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"career-agent/internal/graph"
	"career-agent/internal/logger"
	"career-agent/internal/metrics"
	"career-agent/internal/mission"
	"career-agent/internal/store"
)

const (
	defaultMaxSteps    = 100
	defaultStepTimeout = 10 * time.Minute
)

// Persister is the slice of the mission store the runner writes through.
type Persister interface {
	Update(ctx context.Context, id string, f store.Fields) error
}

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeSuspended Outcome = "suspended"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

type Result struct {
	Mission *mission.Mission
	Outcome Outcome
	Metrics *metrics.RunMetrics
}

type Runner struct {
	store       Persister
	now         func() time.Time
	log         *slog.Logger
	maxSteps    int
	stepTimeout time.Duration
}

type Option func(*Runner)

func WithClock(now func() time.Time) Option { return func(r *Runner) { r.now = now } }

func WithLogger(l *slog.Logger) Option { return func(r *Runner) { r.log = l } }

// WithMaxSteps bounds how many steps one invocation may execute, so a router
// cycle fails the mission instead of spinning forever.
func WithMaxSteps(n int) Option { return func(r *Runner) { r.maxSteps = n } }

func WithStepTimeout(d time.Duration) Option { return func(r *Runner) { r.stepTimeout = d } }

func New(p Persister, opts ...Option) *Runner {
	r := &Runner{
		store:       p,
		now:         time.Now,
		maxSteps:    defaultMaxSteps,
		stepTimeout: defaultStepTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Log
	}
	return r
}

// Run executes g from its entry step.
func (r *Runner) Run(ctx context.Context, g *graph.Graph, m *mission.Mission) (*Result, error) {
	return r.execute(ctx, g, m, g.Entry())
}

// Resume re-enters g at the successor of after, evaluated against the
// mission's current state. A missing successor completes the mission.
func (r *Runner) Resume(ctx context.Context, g *graph.Graph, m *mission.Mission, after string) (*Result, error) {
	if _, ok := g.Step(after); !ok {
		return nil, fmt.Errorf("resume %s: unknown step %q", g.Name(), after)
	}
	next, ok, err := g.Next(after, m)
	if err != nil {
		return nil, fmt.Errorf("resume %s after %q: %w", g.Name(), after, err)
	}
	if !ok {
		state := m.Clone()
		res := r.newResult(state)
		r.complete(ctx, state, res)
		res.Metrics.Outcome = string(res.Outcome)
		res.Metrics.Finalize(r.now())
		return res, nil
	}
	return r.execute(ctx, g, m, next)
}

func (r *Runner) newResult(state *mission.Mission) *Result {
	return &Result{
		Mission: state,
		Metrics: &metrics.RunMetrics{MissionID: state.ID, Start: r.now()},
	}
}

func (r *Runner) execute(ctx context.Context, g *graph.Graph, m *mission.Mission, start string) (res *Result, err error) {
	state := m.Clone()
	res = r.newResult(state)
	log := r.log.With("mission_id", state.ID, "kind", string(state.Kind), "graph", g.Name())
	defer func() {
		res.Metrics.Outcome = string(res.Outcome)
		res.Metrics.Finalize(r.now())
	}()

	current := start
	for executed := 0; ; executed++ {
		if executed >= r.maxSteps {
			reason := fmt.Sprintf("step limit of %d exceeded at %q", r.maxSteps, current)
			r.fail(ctx, state, current, reason, res)
			return res, errors.New(reason)
		}
		if cerr := ctx.Err(); cerr != nil {
			res.Outcome = OutcomeCancelled
			return res, cerr
		}
		step, ok := g.Step(current)
		if !ok {
			reason := fmt.Sprintf("graph %s has no step %q", g.Name(), current)
			r.fail(ctx, state, current, reason, res)
			return res, errors.New(reason)
		}

		state.CurrentStep = current
		sm := metrics.StepMetrics{Step: current, Start: r.now()}
		delta, serr := r.invoke(ctx, step, current, state.Clone())
		sm.End = r.now()
		sm.Finalize()
		sm.Success = serr == nil

		if serr != nil {
			sm.Err = serr.Error()
			res.Metrics.Steps = append(res.Metrics.Steps, sm)
			if ctx.Err() != nil {
				log.Warn("run cancelled during step", "step", current)
				res.Outcome = OutcomeCancelled
				return res, ctx.Err()
			}
			log.Error("step failed", "step", current, "error", serr)
			r.fail(ctx, state, current, serr.Error(), res)
			return res, fmt.Errorf("step %q: %w", current, serr)
		}

		delta.CurrentStep = current
		if delta.Context != nil {
			if cerr := g.CheckContext(delta.Context); cerr != nil {
				sm.Success, sm.Err = false, cerr.Error()
				res.Metrics.Steps = append(res.Metrics.Steps, sm)
				r.fail(ctx, state, current, cerr.Error(), res)
				return res, fmt.Errorf("step %q: %w", current, cerr)
			}
		}
		if merr := mission.Merge(state, delta, r.now()); merr != nil {
			sm.Success, sm.Err = false, merr.Error()
			res.Metrics.Steps = append(res.Metrics.Steps, sm)
			r.fail(ctx, state, current, merr.Error(), res)
			return res, fmt.Errorf("step %q: %w", current, merr)
		}
		sm.Persisted = r.persist(ctx, state, log)
		res.Metrics.Steps = append(res.Metrics.Steps, sm)
		log.Debug("step merged", "step", current, "status", string(state.Status), "progress", state.Progress)

		switch {
		case state.Status == mission.StatusNeedsReview:
			log.Info("mission suspended for review", "step", current, "reason", state.ApprovalReason)
			res.Outcome = OutcomeSuspended
			return res, nil
		case state.Status == mission.StatusFailed:
			res.Outcome = OutcomeFailed
			return res, fmt.Errorf("step %q failed the mission: %s", current, state.Error)
		case state.Status == mission.StatusCompleted:
			res.Outcome = OutcomeCompleted
			return res, nil
		}

		next, ok, nerr := g.Next(current, state)
		if nerr != nil {
			r.fail(ctx, state, current, nerr.Error(), res)
			return res, nerr
		}
		if !ok {
			r.complete(ctx, state, res)
			return res, nil
		}
		current = next
	}
}

// invoke runs one step with a timeout and turns a panic into an error.
func (r *Runner) invoke(ctx context.Context, step graph.Step, name string, snapshot *mission.Mission) (delta mission.Delta, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in step %s: %v", name, rec)
		}
	}()
	stepCtx := ctx
	if r.stepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, r.stepTimeout)
		defer cancel()
	}
	return step.Run(stepCtx, snapshot)
}

func (r *Runner) complete(ctx context.Context, state *mission.Mission, res *Result) {
	if !state.Status.IsTerminal() {
		if err := mission.Merge(state, mission.Delta{Status: mission.StatusCompleted, Progress: mission.Ptr(100)}, r.now()); err != nil {
			r.fail(ctx, state, state.CurrentStep, err.Error(), res)
			return
		}
		r.persist(ctx, state, r.log.With("mission_id", state.ID))
	}
	res.Outcome = OutcomeCompleted
	if state.Status == mission.StatusFailed {
		res.Outcome = OutcomeFailed
	}
}

func (r *Runner) fail(ctx context.Context, state *mission.Mission, step, reason string, res *Result) {
	d := mission.Fail(reason)
	d.CurrentStep = step
	if err := mission.Merge(state, d, r.now()); err != nil {
		state.Status = mission.StatusFailed
		state.Error = reason
		state.UpdatedAt = r.now()
	}
	r.persist(ctx, state, r.log.With("mission_id", state.ID))
	res.Outcome = OutcomeFailed
}

// persist writes the full merged state. A failure is logged and the run
// goes on; the next successful write carries the cumulative state.
func (r *Runner) persist(ctx context.Context, state *mission.Mission, log *slog.Logger) bool {
	if err := r.store.Update(ctx, state.ID, store.Snapshot(state)); err != nil {
		log.Error("persist mission state", "step", state.CurrentStep, "error", err)
		return false
	}
	return true
}
