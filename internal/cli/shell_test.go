package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"career-agent/internal/agents"
	"career-agent/internal/agents/kittest"
	"career-agent/internal/config"
	"career-agent/internal/listener"
	"career-agent/internal/llm_client"
	"career-agent/internal/logger"
	"career-agent/internal/mission"
	"career-agent/internal/parser"
	"career-agent/internal/store"
	"career-agent/internal/supervisor"
)

func testApp(t *testing.T) *app {
	t.Helper()
	deps, _ := kittest.Deps(t, llm_client.StubRule{Match: "linkedin post about", Reply: "Proud of the new release."})
	defs, err := parser.BuiltinKinds()
	require.NoError(t, err)
	reg, err := agents.NewRegistry(defs, deps)
	require.NoError(t, err)
	st := store.NewMemory()
	a := &app{
		cfg:        config.Default(),
		store:      st,
		kinds:      reg,
		log:        logger.Log,
		supervisor: supervisor.New(st, reg),
	}
	t.Cleanup(a.Close)
	return a
}

func onlyMission(t *testing.T, a *app) mission.Summary {
	t.Helper()
	list, err := a.supervisor.List(context.Background(), "u1", "", supervisor.Page{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	return list[0]
}

func waitFor(t *testing.T, a *app, id string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.supervisor.Wait(ctx, id))
}

func TestShellLaunchAndApprove(t *testing.T) {
	a := testApp(t)
	var out bytes.Buffer
	sh := newShell(context.Background(), a, listener.NewScripted(&out), "u1")
	ctx := context.Background()

	require.NoError(t, sh.handle(ctx, `launch linkedin topic="release notes"`))
	m := onlyMission(t, a)
	assert.Equal(t, mission.KindDraft, m.Kind)
	waitFor(t, a, m.ID)

	require.NoError(t, sh.handle(ctx, "status "+m.ID))
	assert.Contains(t, out.String(), "needs_review")
	assert.Contains(t, out.String(), "Proud of the new release.")

	require.NoError(t, sh.handle(ctx, "approve "+m.ID))
	waitFor(t, a, m.ID)

	got, err := a.supervisor.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, mission.StatusCompleted, got.Status)
	assert.Equal(t, "Proud of the new release.", got.OutputData["content"])
	assert.Equal(t, "release notes", got.Input["topic"])
}

func TestShellReviewRejectsWithFeedback(t *testing.T) {
	a := testApp(t)
	var out bytes.Buffer
	ctx := context.Background()

	id, err := a.supervisor.Launch(ctx, mission.KindDraft, "u1", map[string]any{"topic": "Go"})
	require.NoError(t, err)
	waitFor(t, a, id)

	sh := newShell(ctx, a, listener.NewScripted(&out, "n", "more numbers"), "u1")
	require.NoError(t, sh.handle(ctx, "review "+id))
	waitFor(t, a, id)

	got, err := a.supervisor.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, mission.StatusNeedsReview, got.Status)
	assert.Equal(t, "more numbers", got.Feedback)
	assert.Contains(t, out.String(), "linkedin_post")
}

func TestShellErrors(t *testing.T) {
	a := testApp(t)
	sh := newShell(context.Background(), a, listener.NewScripted(&bytes.Buffer{}), "u1")
	ctx := context.Background()

	assert.ErrorContains(t, sh.handle(ctx, "launch"), "usage")
	assert.ErrorContains(t, sh.handle(ctx, "launch nonsense"), "unknown mission kind")
	assert.ErrorContains(t, sh.handle(ctx, "launch tailor"), "job_description")
	assert.ErrorContains(t, sh.handle(ctx, "reject abc"), "feedback")
	assert.ErrorContains(t, sh.handle(ctx, "dance"), "unknown command")
	assert.ErrorIs(t, sh.handle(ctx, "cancel"), supervisor.ErrNoActiveRun)
	assert.ErrorIs(t, sh.handle(ctx, "exit"), errQuit)
	assert.NoError(t, sh.handle(ctx, "help"))
	assert.NoError(t, sh.handle(ctx, "list"))
}

func TestShellRunStopsAtExit(t *testing.T) {
	a := testApp(t)
	var out bytes.Buffer
	sh := newShell(context.Background(), a, listener.NewScripted(&out, "help", "", "exit", "list"), "u1")

	require.NoError(t, sh.run(context.Background()))
	assert.Contains(t, out.String(), "Commands:")
	assert.NotContains(t, out.String(), "No missions found.")
}

func TestSplitWords(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"status abc", []string{"status", "abc"}},
		{`launch draft topic="go rewrite" tone=casual`, []string{"launch", "draft", "topic=go rewrite", "tone=casual"}},
		{`launch tailor {"job_description": "Go dev", "company": "Initech"}`, []string{"launch", "tailor", `{"job_description": "Go dev", "company": "Initech"}`}},
		{"   ", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, splitWords(tt.line), tt.line)
	}
}

func TestParseInput(t *testing.T) {
	dir := t.TempDir()
	resume := filepath.Join(dir, "resume.md")
	require.NoError(t, os.WriteFile(resume, []byte("# Experience\nGo"), 0o600))

	input, err := parseInput(`{"company": "Initech", "role": "SRE"}`, []string{"role=Backend", "resume_text=@" + resume})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"company":     "Initech",
		"role":        "Backend",
		"resume_text": "# Experience\nGo",
	}, input)

	_, err = parseInput("[1,2]", nil)
	assert.Error(t, err)
	_, err = parseInput("", []string{"novalue"})
	assert.ErrorContains(t, err, "key=value")
	_, err = parseInput("", []string{"x=@" + filepath.Join(dir, "missing")})
	assert.Error(t, err)

	raw, pairs := splitLaunchArgs([]string{`{"topic": "go"}`})
	assert.Equal(t, `{"topic": "go"}`, raw)
	assert.Empty(t, pairs)
}
