// Package apply fills a job application form from the user's knowledge base
// and submits it once a reviewer has seen the answers.
package apply

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"career-agent/internal/agents/kit"
	"career-agent/internal/browser"
	"career-agent/internal/config"
	"career-agent/internal/graph"
	"career-agent/internal/mission"
	"career-agent/internal/parser"
	"career-agent/internal/retrieval"
	"career-agent/internal/utils"
)

const (
	StepDetectATS = "detect_ats"
	StepLoadKB    = "load_kb"
	StepFillForm  = "fill_form"
	StepAnswer    = "answer"
	StepReview    = "review"
	StepSubmit    = "submit"

	ArtifactAnswers = "application_answers"
	// Reviewer overrides, a JSON object of field id to answer.
	ArtifactAnswerEdits = "answer_edits"

	// Answers the model rates below this need a human.
	confidenceThreshold = 0.6
)

const answerSystem = "You fill in job applications for the candidate using only their background. Reply with JSON only."

type Answer struct {
	QuestionID string  `json:"question_id"`
	Label      string  `json:"label"`
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
	Sensitive  bool    `json:"sensitive,omitempty"`
	Error      string  `json:"error,omitempty"`
}

func (a Answer) needsReview() bool {
	return a.Sensitive || a.Error != "" || strings.TrimSpace(a.Answer) == "" || a.Confidence < confidenceThreshold
}

type agent struct {
	deps kit.Deps
}

func New(def parser.KindDefinition, deps kit.Deps) (*graph.Graph, error) {
	a := &agent{deps: deps}
	return graph.New(def.Name).
		AddFunc(StepDetectATS, a.detectATS).
		AddFunc(StepLoadKB, a.loadKB).
		AddFunc(StepFillForm, a.fillForm).
		AddFunc(StepAnswer, a.answer).
		AddGate(StepReview, reviewPolicy(deps.Config), StepSubmit).
		AddFunc(StepSubmit, a.submit).
		SetEntry(StepDetectATS).
		Chain(StepDetectATS, StepLoadKB, StepFillForm, StepAnswer, StepReview).
		ContextKeys(def.ContextKeys...).
		EditableArtifact(ArtifactAnswerEdits).
		Build()
}

func reviewPolicy(cfg config.MissionConfig) graph.GatePolicy {
	if cfg.ApplicationReview == config.ReviewLowConfidence {
		return graph.When(func(m *mission.Mission) bool {
			return len(utils.GetStringSlice(m.Context, "low_confidence")) > 0
		}, "Some answers are low confidence or sensitive")
	}
	return graph.Always("Review the application before submitting")
}

func (a *agent) detectATS(_ context.Context, m *mission.Mission) (mission.Delta, error) {
	jobURL, err := utils.GetString(m.Input, "job_url")
	if err != nil {
		return mission.Delta{}, err
	}
	ats := browser.DetectATS(jobURL)
	return mission.Delta{
		Progress: mission.Ptr(10),
		Context:  mission.ContextWith(m.Context, map[string]any{"ats": string(ats)}),
		Events:   []mission.Event{mission.LogEvent("Detected applicant tracking system: "+string(ats), nil)},
	}, nil
}

func (a *agent) loadKB(ctx context.Context, m *mission.Mission) (mission.Delta, error) {
	kit.IndexResume(a.deps, m)
	query := strings.Join([]string{
		utils.OptString(m.Input, "job_title", ""),
		utils.OptString(m.Input, "company", ""),
	}, " ")
	chunks, err := a.deps.Knowledge.Retrieve(ctx, m.UserID, query, nil)
	if err != nil {
		return mission.Delta{}, fmt.Errorf("load knowledge base: %w", err)
	}
	return mission.Delta{
		Status:   mission.StatusExecuting,
		Progress: mission.Ptr(20),
		Context:  mission.ContextWith(m.Context, map[string]any{"knowledge": retrieval.FormatForPrompt(chunks)}),
		Events:   []mission.Event{mission.LogEvent(fmt.Sprintf("Loaded %d knowledge base sections", len(chunks)), nil)},
	}, nil
}

func (a *agent) fillForm(ctx context.Context, m *mission.Mission) (mission.Delta, error) {
	html := utils.OptString(m.Input, "form_html", "")
	if html == "" {
		jobURL, _ := utils.GetString(m.Input, "job_url")
		page, err := a.deps.Browser.Fetch(ctx, jobURL)
		if err != nil {
			return mission.Delta{}, fmt.Errorf("open application form: %w", err)
		}
		html = page
	}
	questions, err := browser.ParseForm(html)
	if err != nil {
		return mission.Delta{}, err
	}
	if len(questions) == 0 {
		return mission.Fail("no application questions found on the form"), nil
	}
	return mission.Delta{
		Status:   mission.StatusExecuting,
		Progress: mission.Ptr(40),
		Context:  mission.ContextWith(m.Context, map[string]any{"questions": kit.Generic(questions)}),
		Events:   []mission.Event{mission.LogEvent(fmt.Sprintf("Found %d form fields", len(questions)), nil)},
	}, nil
}

// answer asks the model about every field concurrently. A failed field is
// recorded and left for the reviewer; it does not fail the batch.
func (a *agent) answer(ctx context.Context, m *mission.Mission) (mission.Delta, error) {
	var questions []browser.Question
	if err := kit.Decode(m, "questions", &questions); err != nil {
		return mission.Delta{}, err
	}
	knowledge, _ := m.Context["knowledge"].(string)

	answers := make([]Answer, len(questions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.deps.Config.AnswerConcurrency)
	var mu sync.Mutex
	failures := 0
	for i, q := range questions {
		g.Go(func() error {
			ans, err := a.answerOne(gctx, q, knowledge, kit.FeedbackBlock(m))
			if err != nil {
				mu.Lock()
				failures++
				mu.Unlock()
				ans = Answer{QuestionID: q.ID, Label: q.Label, Error: err.Error()}
			}
			ans.Sensitive = utils.IsSensitiveQuestion(q.Label)
			answers[i] = ans
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return mission.Delta{}, err
	}
	if len(questions) > 0 && failures == len(questions) {
		return mission.Delta{}, fmt.Errorf("could not answer any of %d questions: %s", len(questions), answers[0].Error)
	}

	byID := make(map[string]any, len(answers))
	var low []string
	for _, ans := range answers {
		byID[ans.QuestionID] = ans.Answer
		if ans.needsReview() {
			low = append(low, ans.QuestionID)
		}
	}
	return mission.Delta{
		Status:   mission.StatusExecuting,
		Progress: mission.Ptr(70),
		Context: mission.ContextWith(m.Context, map[string]any{
			"answers":        byID,
			"low_confidence": kit.Generic(low),
		}),
		Artifacts: []mission.Artifact{mission.NewArtifact(mission.ArtifactJSON, ArtifactAnswers, kit.Generic(answers))},
		Events: []mission.Event{mission.LogEvent(fmt.Sprintf("Answered %d questions", len(answers)), map[string]any{
			"low_confidence": len(low),
			"failed":         failures,
		})},
	}, nil
}

func (a *agent) answerOne(ctx context.Context, q browser.Question, knowledge, feedback string) (Answer, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Application question: %s\nField type: %s\n", q.Label, q.Kind)
	if len(q.Options) > 0 {
		fmt.Fprintf(&sb, "Choose one of: %s\n", strings.Join(q.Options, " | "))
	}
	fmt.Fprintf(&sb, "\nCandidate background:\n%s\n%s\nReturn {\"answer\": string, \"confidence\": number between 0 and 1}.", knowledge, feedback)

	raw, err := a.deps.LLM.CompleteJSON(ctx, sb.String(), answerSystem, nil)
	if err != nil {
		return Answer{}, err
	}
	ans := Answer{QuestionID: q.ID, Label: q.Label}
	var reply struct {
		Answer     string  `json:"answer"`
		Confidence float64 `json:"confidence"`
	}
	if err := parser.DecodeLLMJSON(raw, &reply, "answer"); err != nil {
		return ans, nil
	}
	ans.Answer = strings.TrimSpace(reply.Answer)
	ans.Confidence = reply.Confidence
	return ans, nil
}

func (a *agent) submit(ctx context.Context, m *mission.Mission) (mission.Delta, error) {
	answers := map[string]string{}
	if err := kit.Decode(m, "answers", &answers); err != nil {
		return mission.Delta{}, err
	}
	edits := 0
	if edited, ok := kit.Edited(m); ok {
		var overrides map[string]string
		if err := json.Unmarshal([]byte(parser.CleanJSON(edited)), &overrides); err != nil {
			return mission.Delta{}, fmt.Errorf("edited answers must be a JSON object of field id to answer: %w", err)
		}
		for id, v := range overrides {
			answers[id] = v
			edits++
		}
	}

	jobURL, _ := utils.GetString(m.Input, "job_url")
	ats, _ := m.Context["ats"].(string)
	receipt, err := a.deps.Browser.Submit(ctx, browser.Submission{
		URL:     jobURL,
		ATS:     browser.ATS(ats),
		Answers: answers,
		Resume:  utils.OptString(m.Input, "resume_text", ""),
	})
	if err != nil {
		return mission.Delta{}, fmt.Errorf("submit application: %w", err)
	}

	ids := make([]string, 0, len(answers))
	for id := range answers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return mission.Delta{
		Status:   mission.StatusExecuting,
		Progress: mission.Ptr(90),
		Context:  mission.ContextWith(m.Context, map[string]any{"submission": kit.Generic(receipt)}),
		OutputData: map[string]any{
			"receipt_id":     receipt.ID,
			"ats":            ats,
			"dry_run":        receipt.DryRun,
			"answered":       ids,
			"edited_answers": edits,
		},
		Events: []mission.Event{mission.LogEvent("Application submitted (dry run)", map[string]any{"receipt_id": receipt.ID})},
	}, nil
}
