// Package kittest runs mission kinds end to end against offline
// collaborators.
package kittest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"career-agent/internal/agents/kit"
	"career-agent/internal/browser"
	"career-agent/internal/config"
	"career-agent/internal/graph"
	"career-agent/internal/llm_client"
	"career-agent/internal/mission"
	"career-agent/internal/parser"
	"career-agent/internal/retrieval"
	"career-agent/internal/runner"
	"career-agent/internal/store"
	"career-agent/internal/supervisor"
)

// Deps wires a stub LLM answering with rules, an empty knowledge index, a
// dry-run browser and the sample job listings.
func Deps(t *testing.T, rules ...llm_client.StubRule) (kit.Deps, *llm_client.Stub) {
	t.Helper()
	stub := llm_client.NewStub(rules...)
	deps := kit.Deps{
		LLM:       llm_client.NewWithProvider(stub, llm_client.Config{Backend: "stub"}),
		Knowledge: retrieval.NewIndex(),
		Browser:   browser.NewClient(time.Second),
		Config:    config.Default().Missions,
	}
	require.NoError(t, deps.Validate())
	return deps, stub
}

// Definition returns the builtin definition of kind.
func Definition(t *testing.T, kind mission.Kind) parser.KindDefinition {
	t.Helper()
	reg, err := parser.BuiltinKinds()
	require.NoError(t, err)
	def, ok := reg.GetDefinition(string(kind))
	require.True(t, ok, "kind %s", kind)
	return def
}

// Harness persists missions in memory, runs graphs over them and routes
// review decisions through a supervisor sharing the same store and runner.
type Harness struct {
	Store  *store.Memory
	Runner *runner.Runner
}

func NewHarness() *Harness {
	st := store.NewMemory()
	return &Harness{Store: st, Runner: runner.New(st)}
}

// Launch creates a running mission.
func (h *Harness) Launch(t *testing.T, kind mission.Kind, input map[string]any) *mission.Mission {
	t.Helper()
	m := mission.New(kind, "u1", input, time.Now())
	require.NoError(t, h.Store.Create(context.Background(), m))
	require.NoError(t, mission.Merge(m, mission.Delta{Status: mission.StatusRunning, Progress: mission.Ptr(0)}, time.Now()))
	return m
}

func (h *Harness) Run(t *testing.T, g *graph.Graph, m *mission.Mission) (*runner.Result, error) {
	t.Helper()
	return h.Runner.Run(context.Background(), g, m)
}

// Approve approves a suspended mission and returns the stored record once
// the resumed run has finished.
func (h *Harness) Approve(t *testing.T, g *graph.Graph, m *mission.Mission, edited string) (*runner.Result, error) {
	t.Helper()
	return h.decide(t, g, m, supervisor.Decision{Approved: true, EditedContent: edited})
}

// Reject rejects a suspended mission and returns the stored record once
// the regeneration has finished.
func (h *Harness) Reject(t *testing.T, g *graph.Graph, m *mission.Mission, feedback string) (*runner.Result, error) {
	t.Helper()
	return h.decide(t, g, m, supervisor.Decision{Feedback: feedback})
}

func (h *Harness) decide(t *testing.T, g *graph.Graph, m *mission.Mission, d supervisor.Decision) (*runner.Result, error) {
	t.Helper()
	require.Equal(t, mission.StatusNeedsReview, m.Status)
	sup := supervisor.New(h.Store, oneKind{kind: m.Kind, g: g}, supervisor.WithRunner(h.Runner))
	t.Cleanup(func() { _ = sup.Shutdown(context.Background()) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := sup.Decide(ctx, m.ID, d)
	require.NoError(t, err)
	require.NoError(t, sup.Wait(ctx, m.ID))

	got, err := h.Store.Get(ctx, m.ID)
	require.NoError(t, err)
	res := &runner.Result{Mission: got, Outcome: runner.OutcomeCompleted}
	select {
	case r := <-sup.Results():
		res.Outcome, res.Metrics = r.Outcome, r.Metrics
		if r.Error != "" {
			return res, errors.New(r.Error)
		}
	default:
	}
	return res, nil
}

type oneKind struct {
	kind mission.Kind
	g    *graph.Graph
}

func (k oneKind) Graph(kind mission.Kind) (*graph.Graph, bool) { return k.g, kind == k.kind }

func (oneKind) ValidateInput(mission.Kind, map[string]any) error { return nil }
