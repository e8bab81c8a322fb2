package agents

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"career-agent/internal/agents/apply"
	"career-agent/internal/agents/draft"
	"career-agent/internal/agents/kit"
	"career-agent/internal/agents/kittest"
	"career-agent/internal/agents/tailor"
	"career-agent/internal/graph"
	"career-agent/internal/llm_client"
	"career-agent/internal/mission"
	"career-agent/internal/parser"
	"career-agent/internal/store"
	"career-agent/internal/supervisor"
)

// statusLog records every status the supervisor and runner write.
type statusLog struct {
	*store.Memory
	mu       sync.Mutex
	statuses []mission.Status
}

func (s *statusLog) Update(ctx context.Context, id string, f store.Fields) error {
	if f.Status != nil {
		s.mu.Lock()
		s.statuses = append(s.statuses, *f.Status)
		s.mu.Unlock()
	}
	return s.Memory.Update(ctx, id, f)
}

// transitions returns the recorded statuses with repeats collapsed.
func (s *statusLog) transitions() []mission.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []mission.Status
	for _, st := range s.statuses {
		if len(out) == 0 || out[len(out)-1] != st {
			out = append(out, st)
		}
	}
	return out
}

func newSupervisor(t *testing.T, deps kit.Deps) (*supervisor.Supervisor, *statusLog) {
	t.Helper()
	defs, err := parser.BuiltinKinds()
	require.NoError(t, err)
	reg, err := NewRegistry(defs, deps)
	require.NoError(t, err)
	st := &statusLog{Memory: store.NewMemory()}
	sup := supervisor.New(st, reg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = sup.Shutdown(ctx)
	})
	return sup, st
}

func settle(t *testing.T, sup *supervisor.Supervisor, id string) *mission.Mission {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sup.Wait(ctx, id))
	m, err := sup.Get(ctx, id)
	require.NoError(t, err)
	return m
}

func decide(t *testing.T, sup *supervisor.Supervisor, id string, d supervisor.Decision) *mission.Mission {
	t.Helper()
	_, err := sup.Decide(context.Background(), id, d)
	require.NoError(t, err)
	return settle(t, sup, id)
}

func countArtifacts(m *mission.Mission, name string) int {
	n := 0
	for _, a := range m.Artifacts {
		if a.Name == name {
			n++
		}
	}
	return n
}

func latestContent(t *testing.T, m *mission.Mission, name string) any {
	t.Helper()
	a, ok := m.LatestArtifact(name)
	require.True(t, ok, "artifact %s", name)
	return a.Content
}

func tailorInput() map[string]any {
	return map[string]any{
		"job_description": "Initech is hiring a Go engineer to run Kubernetes services.",
		"job_title":       "Go Engineer",
		"company":         "Initech",
		"resume_text":     "# Experience\nAcme - built Go services on Kubernetes\n\n# Skills\nGo, Kubernetes",
	}
}

func tailorRules() []llm_client.StubRule {
	return []llm_client.StubRule{
		{Match: "cover letter", Reply: "Dear Initech,"},
		{Match: "quantify the impact", Reply: "# Resume v2"},
		{Match: "tailor a resume", Reply: "# Resume v1"},
	}
}

func TestTailorRegeneratesThenFinalizesTheNewResume(t *testing.T) {
	deps, _ := kittest.Deps(t, tailorRules()...)
	sup, _ := newSupervisor(t, deps)
	ctx := context.Background()

	id, err := sup.Launch(ctx, mission.KindTailor, "u1", tailorInput())
	require.NoError(t, err)
	m := settle(t, sup, id)
	require.Equal(t, mission.StatusNeedsReview, m.Status)
	assert.Equal(t, "# Resume v1", latestContent(t, m, tailor.ArtifactResume))

	m = decide(t, sup, id, supervisor.Decision{Feedback: "quantify the impact", EditedContent: "# edit for a rejected round"})
	require.Equal(t, mission.StatusNeedsReview, m.Status)
	assert.Equal(t, "# Resume v2", latestContent(t, m, tailor.ArtifactResume))
	assert.NotContains(t, m.Context, graph.EditedContextKey)
	assert.Equal(t, "quantify the impact", m.Feedback)

	m = decide(t, sup, id, supervisor.Decision{Approved: true})
	assert.Equal(t, mission.StatusCompleted, m.Status)
	assert.Equal(t, "# Resume v2", m.OutputData["resume_markdown"])
	assert.Equal(t, false, m.OutputData["edited"])
	assert.Equal(t, 2, countArtifacts(m, tailor.ArtifactResume))
}

func TestTailorEditRevisesTheResume(t *testing.T) {
	deps, _ := kittest.Deps(t, tailorRules()...)
	sup, _ := newSupervisor(t, deps)

	id, err := sup.Launch(context.Background(), mission.KindTailor, "u1", tailorInput())
	require.NoError(t, err)
	settle(t, sup, id)

	m := decide(t, sup, id, supervisor.Decision{Approved: true, EditedContent: "# Resume EDITED"})
	assert.Equal(t, mission.StatusCompleted, m.Status)
	assert.Equal(t, "# Resume EDITED", m.OutputData["resume_markdown"])
	assert.Equal(t, "Dear Initech,", m.OutputData["cover_letter"])

	assert.Equal(t, "# Resume EDITED", latestContent(t, m, tailor.ArtifactResume))
	assert.Equal(t, mission.ArtifactMarkdown, m.Artifacts[len(m.Artifacts)-1].Kind)
	assert.Equal(t, 1, countArtifacts(m, tailor.ArtifactCoverLetter))
	assert.Equal(t, "Dear Initech,", latestContent(t, m, tailor.ArtifactCoverLetter))
}

func TestDraftStatusesAcrossReviewRounds(t *testing.T) {
	deps, _ := kittest.Deps(t,
		llm_client.StubRule{Match: "more numbers", Reply: "Latency down 40%."},
		llm_client.StubRule{Match: "linkedin post about", Reply: "We shipped."},
	)
	sup, st := newSupervisor(t, deps)

	id, err := sup.Launch(context.Background(), mission.KindDraft, "u1", map[string]any{"topic": "release"})
	require.NoError(t, err)
	m := settle(t, sup, id)
	assert.Equal(t, "We shipped.", latestContent(t, m, draft.ArtifactPost))

	m = decide(t, sup, id, supervisor.Decision{Feedback: "more numbers"})
	assert.Equal(t, "Latency down 40%.", latestContent(t, m, draft.ArtifactPost))

	m = decide(t, sup, id, supervisor.Decision{Approved: true, EditedContent: "Latency down 41%."})
	assert.Equal(t, mission.StatusCompleted, m.Status)
	assert.Equal(t, "Latency down 41%.", m.OutputData["content"])
	assert.Equal(t, true, m.OutputData["edited"])
	assert.Equal(t, "Latency down 41%.", latestContent(t, m, draft.ArtifactPost))
	assert.Equal(t, 3, countArtifacts(m, draft.ArtifactPost))

	assert.Equal(t, []mission.Status{
		mission.StatusRunning, mission.StatusExecuting, mission.StatusNeedsReview,
		mission.StatusRunning, mission.StatusExecuting, mission.StatusNeedsReview,
		mission.StatusApproved, mission.StatusExecuting, mission.StatusCompleted,
	}, st.transitions())
}

func TestApplicationRegeneratesAnswersThenSubmitsEdits(t *testing.T) {
	deps, _ := kittest.Deps(t,
		llm_client.StubRule{Match: "question: first name", Reply: `{"answer": "Jane", "confidence": 0.95}`},
		llm_client.StubRule{Match: "mention kubernetes", Reply: `{"answer": "Go and Kubernetes.", "confidence": 0.9}`},
		llm_client.StubRule{Match: "question: why do you want", Reply: `{"answer": "Go.", "confidence": 0.9}`},
	)
	sup, _ := newSupervisor(t, deps)

	id, err := sup.Launch(context.Background(), mission.KindApplication, "u1", map[string]any{
		"job_url": "https://boards.greenhouse.io/initech/jobs/101",
		"form_html": `<form>
<label for="first_name">First name</label><input id="first_name" required>
<label for="why">Why do you want to join?</label><textarea id="why"></textarea>
</form>`,
		"resume_text": "# Experience\nAcme - Go developer",
	})
	require.NoError(t, err)
	m := settle(t, sup, id)
	require.Equal(t, mission.StatusNeedsReview, m.Status)
	assert.Equal(t, "Go.", m.Context["answers"].(map[string]any)["why"])

	m = decide(t, sup, id, supervisor.Decision{Feedback: "mention Kubernetes"})
	require.Equal(t, mission.StatusNeedsReview, m.Status)
	assert.Equal(t, "Go and Kubernetes.", m.Context["answers"].(map[string]any)["why"])
	assert.Empty(t, deps.Browser.Submissions())

	m = decide(t, sup, id, supervisor.Decision{Approved: true, EditedContent: `{"first_name": "Janet"}`})
	assert.Equal(t, mission.StatusCompleted, m.Status)
	assert.EqualValues(t, 1, m.OutputData["edited_answers"])
	assert.Equal(t, `{"first_name": "Janet"}`, latestContent(t, m, apply.ArtifactAnswerEdits))
	assert.Equal(t, 2, countArtifacts(m, apply.ArtifactAnswers))

	subs := deps.Browser.Submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, "Janet", subs[0].Submission.Answers["first_name"])
	assert.Equal(t, "Go and Kubernetes.", subs[0].Submission.Answers["why"])
}
