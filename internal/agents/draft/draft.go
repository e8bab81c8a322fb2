// Package draft writes a LinkedIn post about the user's recent work.
package draft

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"career-agent/internal/agents/kit"
	"career-agent/internal/graph"
	"career-agent/internal/mission"
	"career-agent/internal/parser"
	"career-agent/internal/retrieval"
	"career-agent/internal/utils"
)

const (
	StepGather   = "gather"
	StepGenerate = "generate"
	StepReview   = "review"
	StepPublish  = "publish"

	ArtifactPost = "linkedin_post"

	// LinkedIn's post limit.
	maxPostChars = 3000
)

const writerSystem = "You write authentic, specific LinkedIn posts for a professional. No hashtag spam, no emojis unless asked."

type agent struct {
	deps kit.Deps
}

func New(def parser.KindDefinition, deps kit.Deps) (*graph.Graph, error) {
	a := &agent{deps: deps}
	return graph.New(def.Name).
		AddFunc(StepGather, a.gather).
		AddFunc(StepGenerate, a.generate).
		AddGate(StepReview, graph.Always("Review the post before publishing"), StepPublish).
		AddFunc(StepPublish, a.publish).
		SetEntry(StepGather).
		Chain(StepGather, StepGenerate, StepReview).
		ContextKeys(def.ContextKeys...).
		EditableArtifact(ArtifactPost).
		Build()
}

func (a *agent) gather(ctx context.Context, m *mission.Mission) (mission.Delta, error) {
	topic, err := utils.GetString(m.Input, "topic")
	if err != nil {
		return mission.Delta{}, err
	}
	var sb strings.Builder
	for _, item := range utils.GetStringSlice(m.Input, "achievements") {
		fmt.Fprintf(&sb, "- %s\n", item)
	}
	chunks, err := a.deps.Knowledge.Retrieve(ctx, m.UserID, topic, map[retrieval.ChunkType]int{
		retrieval.ChunkExperience: 2,
		retrieval.ChunkProject:    2,
	})
	if err != nil {
		return mission.Delta{}, fmt.Errorf("gather material: %w", err)
	}
	if len(chunks) > 0 {
		sb.WriteString("\n" + retrieval.FormatForPrompt(chunks))
	}
	return mission.Delta{
		Progress: mission.Ptr(20),
		Context:  mission.ContextWith(m.Context, map[string]any{"material": strings.TrimSpace(sb.String())}),
		Events:   []mission.Event{mission.LogEvent("Gathered material for the post", map[string]any{"sections": len(chunks)})},
	}, nil
}

func (a *agent) generate(ctx context.Context, m *mission.Mission) (mission.Delta, error) {
	material, _ := m.Context["material"].(string)
	prompt := fmt.Sprintf("Write a LinkedIn post about: %s\nTone: %s\nAudience: %s\nKeep it under %d characters.\n\nMaterial:\n%s\n%s",
		utils.OptString(m.Input, "topic", ""),
		utils.OptString(m.Input, "tone", "professional"),
		utils.OptString(m.Input, "audience", "my network"),
		maxPostChars, material, kit.FeedbackBlock(m))
	post, err := a.deps.LLM.Complete(ctx, prompt, writerSystem)
	if err != nil {
		return mission.Delta{}, fmt.Errorf("generate post: %w", err)
	}
	post = truncate(strings.TrimSpace(post), maxPostChars)
	return mission.Delta{
		Status:    mission.StatusExecuting,
		Progress:  mission.Ptr(60),
		Context:   mission.ContextWith(m.Context, map[string]any{"draft": post}),
		Artifacts: []mission.Artifact{mission.NewArtifact(mission.ArtifactMarkdown, ArtifactPost, post)},
		Events:    []mission.Event{mission.LogEvent(fmt.Sprintf("Drafted post (%d characters)", utf8.RuneCountInString(post)), nil)},
	}, nil
}

// publish records the final text. Posting to LinkedIn is left to the user.
func (a *agent) publish(_ context.Context, m *mission.Mission) (mission.Delta, error) {
	final, _ := m.Context["draft"].(string)
	edited, wasEdited := kit.Edited(m)
	if wasEdited {
		final = truncate(strings.TrimSpace(edited), maxPostChars)
	}
	return mission.Delta{
		Status:   mission.StatusExecuting,
		Progress: mission.Ptr(90),
		Context:  mission.ContextWith(m.Context, map[string]any{"final_content": final}),
		OutputData: map[string]any{
			"content":    final,
			"characters": utf8.RuneCountInString(final),
			"edited":     wasEdited,
			"published":  false,
		},
		Events: []mission.Event{mission.LogEvent("Post ready to publish", nil)},
	}, nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
