package gap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"career-agent/internal/agents/kit"
	"career-agent/internal/agents/kittest"
	"career-agent/internal/llm_client"
	"career-agent/internal/mission"
	"career-agent/internal/retrieval"
	"career-agent/internal/runner"
)

func seedJobs(deps kit.Deps) {
	deps.Knowledge.Add("u1",
		retrieval.Chunk{Type: retrieval.ChunkJob, Title: "Go Dev", Content: "Go, Kubernetes, PostgreSQL"},
		retrieval.Chunk{Type: retrieval.ChunkJob, Title: "Platform", Content: "Golang, Terraform, AWS"},
	)
}

func TestSkillGapWithKeywordFallback(t *testing.T) {
	deps, _ := kittest.Deps(t)
	seedJobs(deps)
	g, err := New(kittest.Definition(t, mission.KindSkillGap), deps)
	require.NoError(t, err)
	h := kittest.NewHarness()

	res, err := h.Run(t, g, h.Launch(t, mission.KindSkillGap, map[string]any{
		"target_role": "platform engineer",
		"resume_text": "# Skills\nGo, Kubernetes",
	}))
	require.NoError(t, err)
	assert.Equal(t, runner.OutcomeCompleted, res.Outcome)

	out := res.Mission.OutputData
	assert.Equal(t, 50, out["match_percent"])
	assert.Equal(t, []string{"go", "kubernetes"}, out["matched"])
	assert.Equal(t, []string{"aws", "postgresql", "terraform"}, out["missing"])

	report, ok := res.Mission.LatestArtifact("skill_gap_report")
	require.True(t, ok)
	assert.Equal(t, mission.ArtifactMarkdown, report.Kind)
}

func TestSkillGapUsesModelSkills(t *testing.T) {
	deps, stub := kittest.Deps(t, llm_client.StubRule{Match: "job posting:", Reply: `{"skills": ["Golang", "Rust"]}`})
	seedJobs(deps)
	g, err := New(kittest.Definition(t, mission.KindSkillGap), deps)
	require.NoError(t, err)
	h := kittest.NewHarness()

	res, err := h.Run(t, g, h.Launch(t, mission.KindSkillGap, map[string]any{"resume_text": "# Skills\nGo"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"go"}, res.Mission.OutputData["matched"])
	assert.Equal(t, []string{"rust"}, res.Mission.OutputData["missing"])

	extractions := 0
	for _, c := range stub.Calls() {
		if c.JSON {
			extractions++
		}
	}
	assert.Equal(t, 2, extractions)
}

func TestSkillGapWithoutJobsFails(t *testing.T) {
	deps, _ := kittest.Deps(t)
	g, err := New(kittest.Definition(t, mission.KindSkillGap), deps)
	require.NoError(t, err)
	h := kittest.NewHarness()

	res, err := h.Run(t, g, h.Launch(t, mission.KindSkillGap, map[string]any{}))
	require.Error(t, err)
	assert.Equal(t, mission.StatusFailed, res.Mission.Status)
	assert.Contains(t, res.Mission.Error, "no stored jobs")
}

func TestCompare(t *testing.T) {
	an := compare([]SkillCount{{"go", 3}, {"aws", 1}}, []string{"go"})
	assert.Equal(t, 75, an.MatchPercent)
	assert.Equal(t, []string{"aws"}, an.Missing)

	assert.Equal(t, 0, compare(nil, nil).MatchPercent)
}

func TestScanSkills(t *testing.T) {
	assert.Equal(t, []string{"go", "kubernetes", "postgresql"}, scanSkills("Golang on k8s with Postgres and go"))
}
