package apply

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"career-agent/internal/agents/kittest"
	"career-agent/internal/config"
	"career-agent/internal/llm_client"
	"career-agent/internal/mission"
	"career-agent/internal/runner"
	"career-agent/internal/utils"
)

const fullForm = `<form>
<label for="first_name">First name</label><input id="first_name" required>
<label for="why">Why do you want to join?</label><textarea id="why"></textarea>
<label for="salary">Expected salary</label><input id="salary">
<select id="visa"><option>Yes</option><option>No</option></select>
</form>`

const plainForm = `<form>
<label for="first_name">First name</label><input id="first_name" required>
<label for="why">Why do you want to join?</label><textarea id="why"></textarea>
</form>`

var rules = []llm_client.StubRule{
	{Match: "question: first name", Reply: `{"answer": "Jane", "confidence": 0.95}`},
	{Match: "question: why do you want", Reply: `{"answer": "I like Go.", "confidence": 0.8}`},
	{Match: "question: expected salary", Reply: `{"answer": "100k", "confidence": 0.9}`},
	{Match: "question: visa", Reply: `{"answer": "No", "confidence": 0.9}`},
}

func input(form string) map[string]any {
	return map[string]any{
		"job_url":     "https://boards.greenhouse.io/initech/jobs/101",
		"form_html":   form,
		"job_title":   "Go Engineer",
		"resume_text": "# Experience\nAcme - Go developer",
	}
}

func TestApplicationReviewThenSubmitWithEdits(t *testing.T) {
	deps, _ := kittest.Deps(t, rules...)
	g, err := New(kittest.Definition(t, mission.KindApplication), deps)
	require.NoError(t, err)
	h := kittest.NewHarness()

	res, err := h.Run(t, g, h.Launch(t, mission.KindApplication, input(fullForm)))
	require.NoError(t, err)
	require.Equal(t, runner.OutcomeSuspended, res.Outcome)

	m := res.Mission
	assert.Equal(t, "greenhouse", m.Context["ats"])
	assert.ElementsMatch(t, []string{"salary", "visa"}, utils.GetStringSlice(m.Context, "low_confidence"))
	answers := m.Context["answers"].(map[string]any)
	assert.Equal(t, "Jane", answers["first_name"])
	assert.Empty(t, deps.Browser.Submissions(), "nothing is sent before approval")

	res, err = h.Approve(t, g, m, `{"salary": "Negotiable"}`)
	require.NoError(t, err)
	assert.Equal(t, runner.OutcomeCompleted, res.Outcome)
	assert.EqualValues(t, 1, res.Mission.OutputData["edited_answers"])
	assert.Equal(t, true, res.Mission.OutputData["dry_run"])

	subs := deps.Browser.Submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, "Negotiable", subs[0].Submission.Answers["salary"])
	assert.Equal(t, "No", subs[0].Submission.Answers["visa"])
}

func TestLowConfidencePolicySkipsReviewWhenAllAnswersAreConfident(t *testing.T) {
	deps, _ := kittest.Deps(t, rules...)
	deps.Config.ApplicationReview = config.ReviewLowConfidence
	g, err := New(kittest.Definition(t, mission.KindApplication), deps)
	require.NoError(t, err)
	h := kittest.NewHarness()

	res, err := h.Run(t, g, h.Launch(t, mission.KindApplication, input(plainForm)))
	require.NoError(t, err)
	assert.Equal(t, runner.OutcomeCompleted, res.Outcome)
	for _, ev := range res.Mission.Events {
		assert.NotEqual(t, mission.EventReview, ev.Kind)
	}
	assert.Len(t, deps.Browser.Submissions(), 1)
}

func TestFailedAnswerIsFlaggedNotFatal(t *testing.T) {
	deps, stub := kittest.Deps(t, rules...)
	deps.Config.ApplicationReview = config.ReviewLowConfidence
	deps.Config.AnswerConcurrency = 1
	stub.FailNext(errors.New("model unavailable"))
	g, err := New(kittest.Definition(t, mission.KindApplication), deps)
	require.NoError(t, err)
	h := kittest.NewHarness()

	res, err := h.Run(t, g, h.Launch(t, mission.KindApplication, input(plainForm)))
	require.NoError(t, err)
	assert.Equal(t, runner.OutcomeSuspended, res.Outcome)
	assert.Len(t, utils.GetStringSlice(res.Mission.Context, "low_confidence"), 1)
}

func TestAllAnswersFailingFailsMission(t *testing.T) {
	deps, stub := kittest.Deps(t, rules...)
	stub.FailNext(errors.New("down"), errors.New("down"))
	g, err := New(kittest.Definition(t, mission.KindApplication), deps)
	require.NoError(t, err)
	h := kittest.NewHarness()

	res, err := h.Run(t, g, h.Launch(t, mission.KindApplication, input(plainForm)))
	require.Error(t, err)
	assert.Equal(t, mission.StatusFailed, res.Mission.Status)
	assert.Equal(t, StepAnswer, res.Mission.CurrentStep)
}

func TestFormWithoutQuestionsFails(t *testing.T) {
	deps, _ := kittest.Deps(t)
	g, err := New(kittest.Definition(t, mission.KindApplication), deps)
	require.NoError(t, err)
	h := kittest.NewHarness()

	res, err := h.Run(t, g, h.Launch(t, mission.KindApplication, input(`<form><input type="submit"></form>`)))
	require.Error(t, err)
	assert.Contains(t, res.Mission.Error, "no application questions")
}
