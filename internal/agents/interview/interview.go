// Package interview prepares the user for an interview with one company.
package interview

import (
	"context"
	"fmt"
	"strings"

	"career-agent/internal/agents/kit"
	"career-agent/internal/graph"
	"career-agent/internal/mission"
	"career-agent/internal/parser"
	"career-agent/internal/retrieval"
	"career-agent/internal/utils"
)

const (
	StepResearch  = "research"
	StepQuestions = "questions"
	StepGuide     = "guide"
)

const coachSystem = "You are an interview coach. Be concrete and tailor everything to the company and role."

type Question struct {
	Question string `json:"question"`
	Category string `json:"category"`
	Tip      string `json:"tip,omitempty"`
}

type agent struct {
	deps kit.Deps
}

func New(def parser.KindDefinition, deps kit.Deps) (*graph.Graph, error) {
	a := &agent{deps: deps}
	return graph.New(def.Name).
		AddFunc(StepResearch, a.research).
		AddFunc(StepQuestions, a.questions).
		AddFunc(StepGuide, a.guide).
		SetEntry(StepResearch).
		Chain(StepResearch, StepQuestions, StepGuide).
		ContextKeys(def.ContextKeys...).
		Build()
}

func (a *agent) research(ctx context.Context, m *mission.Mission) (mission.Delta, error) {
	company, err := utils.GetString(m.Input, "company")
	if err != nil {
		return mission.Delta{}, err
	}
	role, err := utils.GetString(m.Input, "role")
	if err != nil {
		return mission.Delta{}, err
	}
	prompt := fmt.Sprintf("Summarize what a candidate for %s at %s should know: products, business model, engineering culture, recent news.\n", role, company)
	if desc := utils.OptString(m.Input, "job_description", ""); desc != "" {
		prompt += "\nJob description:\n" + desc + "\n"
	}
	notes, err := a.deps.LLM.Complete(ctx, prompt, coachSystem)
	if err != nil {
		return mission.Delta{}, fmt.Errorf("research company: %w", err)
	}
	return mission.Delta{
		Progress: mission.Ptr(30),
		Context:  mission.ContextWith(m.Context, map[string]any{"research": notes}),
		Events:   []mission.Event{mission.LogEvent("Researched "+company, nil)},
	}, nil
}

func (a *agent) questions(ctx context.Context, m *mission.Mission) (mission.Delta, error) {
	role := utils.OptString(m.Input, "role", "")
	kind := utils.OptString(m.Input, "interview_type", "mixed")
	research, _ := m.Context["research"].(string)

	prompt := fmt.Sprintf("List likely %s interview questions for %s.\nCompany notes:\n%s\n\nReturn {\"questions\": [{\"question\", \"category\", \"tip\"}]}.", kind, role, research)
	raw, err := a.deps.LLM.CompleteJSON(ctx, prompt, coachSystem, nil)
	if err != nil {
		return mission.Delta{}, fmt.Errorf("generate questions: %w", err)
	}
	var reply struct {
		Questions []Question `json:"questions"`
	}
	var qs []Question
	if derr := parser.DecodeLLMJSON(raw, &reply, "questions"); derr == nil {
		qs = reply.Questions
	}
	if len(qs) == 0 {
		qs = defaultQuestions(role, utils.OptString(m.Input, "company", ""))
	}
	return mission.Delta{
		Status:    mission.StatusExecuting,
		Progress:  mission.Ptr(60),
		Context:   mission.ContextWith(m.Context, map[string]any{"questions": kit.Generic(qs)}),
		Artifacts: []mission.Artifact{mission.NewArtifact(mission.ArtifactJSON, "interview_questions", kit.Generic(qs))},
		Events:    []mission.Event{mission.LogEvent(fmt.Sprintf("Prepared %d practice questions", len(qs)), nil)},
	}, nil
}

func (a *agent) guide(ctx context.Context, m *mission.Mission) (mission.Delta, error) {
	var qs []Question
	if err := kit.Decode(m, "questions", &qs); err != nil {
		return mission.Delta{}, err
	}
	research, _ := m.Context["research"].(string)
	stories, err := a.deps.Knowledge.Retrieve(ctx, m.UserID, utils.OptString(m.Input, "role", ""), map[retrieval.ChunkType]int{
		retrieval.ChunkExperience: 3,
		retrieval.ChunkProject:    2,
	})
	if err != nil {
		return mission.Delta{}, fmt.Errorf("load experience: %w", err)
	}

	var list strings.Builder
	for i, q := range qs {
		fmt.Fprintf(&list, "%d. [%s] %s\n", i+1, q.Category, q.Question)
	}
	prompt := fmt.Sprintf("Write an interview preparation guide in Markdown for %s at %s.\n\nCompany notes:\n%s\n\nPractice questions:\n%s\nCandidate stories to draw on:\n%s",
		utils.OptString(m.Input, "role", ""), utils.OptString(m.Input, "company", ""), research, list.String(), retrieval.FormatForPrompt(stories))
	guide, err := a.deps.LLM.Complete(ctx, prompt, coachSystem)
	if err != nil {
		return mission.Delta{}, fmt.Errorf("write guide: %w", err)
	}
	return mission.Delta{
		Status:    mission.StatusExecuting,
		Progress:  mission.Ptr(90),
		Context:   mission.ContextWith(m.Context, map[string]any{"guide": guide}),
		Artifacts: []mission.Artifact{mission.NewArtifact(mission.ArtifactMarkdown, "interview_guide", guide)},
		OutputData: map[string]any{
			"guide":          guide,
			"question_count": len(qs),
		},
		Events: []mission.Event{mission.LogEvent("Interview guide ready", nil)},
	}, nil
}

func defaultQuestions(role, company string) []Question {
	return []Question{
		{Question: "Tell me about yourself.", Category: "behavioral"},
		{Question: fmt.Sprintf("Why do you want to work at %s?", company), Category: "motivation"},
		{Question: "Describe a difficult technical problem you solved.", Category: "behavioral", Tip: "Use the STAR format."},
		{Question: fmt.Sprintf("What would your first 90 days as %s look like?", role), Category: "role"},
		{Question: "Tell me about a time you disagreed with a teammate.", Category: "behavioral"},
	}
}
