// Package tailor rewrites the user's resume and a cover letter for one job,
// using the resume sections that best match the posting.
package tailor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"career-agent/internal/agents/kit"
	"career-agent/internal/graph"
	"career-agent/internal/mission"
	"career-agent/internal/parser"
	"career-agent/internal/retrieval"
	"career-agent/internal/utils"
)

const (
	StepAnalyze  = "analyze"
	StepMatch    = "match"
	StepGenerate = "generate"
	StepReview   = "review"
	StepFinalize = "finalize"

	ArtifactResume      = "tailored_resume"
	ArtifactCoverLetter = "cover_letter"
)

const (
	analyzeSystem = "You analyze job descriptions for a job seeker. Reply with JSON only."
	writerSystem  = "You are an expert resume writer. Use only facts from the candidate's background; never invent employers, titles or dates."
)

type JobAnalysis struct {
	Title          string   `json:"title"`
	Company        string   `json:"company"`
	RequiredSkills []string `json:"required_skills"`
	NiceToHave     []string `json:"nice_to_have"`
	Keywords       []string `json:"keywords"`
}

type agent struct {
	deps kit.Deps
}

func New(def parser.KindDefinition, deps kit.Deps) (*graph.Graph, error) {
	a := &agent{deps: deps}
	return graph.New(def.Name).
		AddFunc(StepAnalyze, a.analyze).
		AddFunc(StepMatch, a.match).
		AddFunc(StepGenerate, a.generate).
		AddGate(StepReview, graph.Always("Review the tailored resume and cover letter"), StepFinalize).
		AddFunc(StepFinalize, a.finalize).
		SetEntry(StepAnalyze).
		Chain(StepAnalyze, StepMatch, StepGenerate, StepReview).
		ContextKeys(def.ContextKeys...).
		EditableArtifact(ArtifactResume).
		Build()
}

func (a *agent) analyze(ctx context.Context, m *mission.Mission) (mission.Delta, error) {
	desc, err := utils.GetString(m.Input, "job_description")
	if err != nil {
		return mission.Delta{}, err
	}
	indexed := kit.IndexResume(a.deps, m)

	prompt := "Job description:\n" + desc + "\n\nReturn {\"title\", \"company\", \"required_skills\": [], \"nice_to_have\": [], \"keywords\": []}."
	raw, err := a.deps.LLM.CompleteJSON(ctx, prompt, analyzeSystem, nil)
	if err != nil {
		return mission.Delta{}, fmt.Errorf("analyze job: %w", err)
	}
	var ja JobAnalysis
	if derr := parser.DecodeLLMJSON(raw, &ja); derr != nil {
		ja = JobAnalysis{}
	}
	if ja.Title == "" {
		ja.Title = utils.OptString(m.Input, "job_title", "")
	}
	if ja.Company == "" {
		ja.Company = utils.OptString(m.Input, "company", "")
	}
	if len(ja.Keywords) == 0 {
		ja.Keywords = topTerms(desc, 10)
	}

	data := map[string]any{"keywords": strings.Join(ja.Keywords, ", ")}
	if indexed > 0 {
		data["resume_chunks"] = indexed
	}
	return mission.Delta{
		Progress: mission.Ptr(20),
		Context:  mission.ContextWith(m.Context, map[string]any{"job_analysis": kit.Generic(ja)}),
		Events:   []mission.Event{mission.LogEvent("Analyzed job description", data)},
	}, nil
}

func (a *agent) match(ctx context.Context, m *mission.Mission) (mission.Delta, error) {
	var ja JobAnalysis
	if err := kit.Decode(m, "job_analysis", &ja); err != nil {
		return mission.Delta{}, err
	}
	query := strings.Join(append(append([]string{ja.Title}, ja.RequiredSkills...), ja.Keywords...), " ")
	chunks, err := a.deps.Knowledge.Retrieve(ctx, m.UserID, query, nil)
	if err != nil {
		return mission.Delta{}, fmt.Errorf("retrieve resume: %w", err)
	}
	if len(chunks) == 0 {
		return mission.Fail("no resume content in the knowledge base; pass resume_text or load a resume first"), nil
	}
	return mission.Delta{
		Status:   mission.StatusExecuting,
		Progress: mission.Ptr(40),
		Context:  mission.ContextWith(m.Context, map[string]any{"matched": kit.Generic(chunks)}),
		Events:   []mission.Event{mission.LogEvent(fmt.Sprintf("Matched %d resume sections", len(chunks)), nil)},
	}, nil
}

func (a *agent) generate(ctx context.Context, m *mission.Mission) (mission.Delta, error) {
	var ja JobAnalysis
	var chunks []retrieval.Chunk
	if err := errors.Join(kit.Decode(m, "job_analysis", &ja), kit.Decode(m, "matched", &chunks)); err != nil {
		return mission.Delta{}, err
	}
	background := retrieval.FormatForPrompt(chunks)
	desc := utils.OptString(m.Input, "job_description", "")

	resumePrompt := fmt.Sprintf("Tailor a resume in Markdown for %s at %s.\n\nJob description:\n%s\n\nCandidate background:\n%s\n%s",
		orDefault(ja.Title, "this role"), orDefault(ja.Company, "the company"), desc, background, kit.FeedbackBlock(m))
	resume, err := a.deps.LLM.Complete(ctx, resumePrompt, writerSystem)
	if err != nil {
		return mission.Delta{}, fmt.Errorf("generate resume: %w", err)
	}
	letterPrompt := fmt.Sprintf("Write a short cover letter for %s at %s.\n\nEmphasize: %s\n\nCandidate background:\n%s\n%s",
		orDefault(ja.Title, "this role"), orDefault(ja.Company, "the company"), strings.Join(ja.Keywords, ", "), background, kit.FeedbackBlock(m))
	letter, err := a.deps.LLM.Complete(ctx, letterPrompt, writerSystem)
	if err != nil {
		return mission.Delta{}, fmt.Errorf("generate cover letter: %w", err)
	}

	return mission.Delta{
		Status:   mission.StatusExecuting,
		Progress: mission.Ptr(60),
		Context: mission.ContextWith(m.Context, map[string]any{
			"resume_markdown": resume,
			"cover_letter":    letter,
		}),
		Artifacts: []mission.Artifact{
			mission.NewArtifact(mission.ArtifactMarkdown, ArtifactResume, resume),
			mission.NewArtifact(mission.ArtifactMarkdown, ArtifactCoverLetter, letter),
		},
		Events: []mission.Event{mission.LogEvent("Generated tailored resume and cover letter", nil)},
	}, nil
}

func (a *agent) finalize(_ context.Context, m *mission.Mission) (mission.Delta, error) {
	resume, _ := m.Context["resume_markdown"].(string)
	letter, _ := m.Context["cover_letter"].(string)
	edited, wasEdited := kit.Edited(m)
	if wasEdited {
		resume = edited
	}
	var ja JobAnalysis
	if err := kit.Decode(m, "job_analysis", &ja); err != nil {
		return mission.Delta{}, err
	}
	return mission.Delta{
		Status:   mission.StatusExecuting,
		Progress: mission.Ptr(90),
		OutputData: map[string]any{
			"resume_markdown": resume,
			"cover_letter":    letter,
			"job_title":       ja.Title,
			"company":         ja.Company,
			"edited":          wasEdited,
		},
		Events: []mission.Event{mission.LogEvent("Finalized application documents", nil)},
	}, nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

var commonWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "you": true, "our": true, "are": true,
	"will": true, "have": true, "your": true, "this": true, "that": true, "from": true, "who": true,
	"work": true, "team": true, "years": true, "experience": true, "about": true, "we": true,
	"a": true, "an": true, "of": true, "to": true, "in": true, "on": true, "is": true, "as": true,
}

// topTerms ranks the description's words by frequency, ties broken by first
// appearance.
func topTerms(text string, n int) []string {
	counts := map[string]int{}
	var order []string
	for _, f := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '+' || r == '#')
	}) {
		if len(f) < 2 || commonWords[f] {
			continue
		}
		if counts[f] == 0 {
			order = append(order, f)
		}
		counts[f]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > n {
		order = order[:n]
	}
	return order
}
