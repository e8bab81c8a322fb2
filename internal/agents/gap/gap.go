// Package gap compares the skills stored job postings ask for with the
// skills on the user's resume.
package gap

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"career-agent/internal/agents/kit"
	"career-agent/internal/graph"
	"career-agent/internal/mission"
	"career-agent/internal/parser"
	"career-agent/internal/retrieval"
	"career-agent/internal/utils"
)

const (
	StepFetchJobs     = "fetch_jobs"
	StepExtractSkills = "extract_skills"
	StepAnalyze       = "analyze"
	StepReport        = "report"

	maxJobs            = 10
	extractConcurrency = 4
)

const (
	extractSystem = "You extract concrete technical skills from job postings. Reply with JSON only."
	reportSystem  = "You are a career coach writing a concise skill gap report in Markdown."
)

type SkillCount struct {
	Skill string `json:"skill"`
	Count int    `json:"count"`
}

type Analysis struct {
	MatchPercent int      `json:"match_percent"`
	Matched      []string `json:"matched"`
	Missing      []string `json:"missing"`
}

type agent struct {
	deps kit.Deps
}

func New(def parser.KindDefinition, deps kit.Deps) (*graph.Graph, error) {
	a := &agent{deps: deps}
	return graph.New(def.Name).
		AddFunc(StepFetchJobs, a.fetchJobs).
		AddFunc(StepExtractSkills, a.extractSkills).
		AddFunc(StepAnalyze, a.analyze).
		AddFunc(StepReport, a.report).
		SetEntry(StepFetchJobs).
		Chain(StepFetchJobs, StepExtractSkills, StepAnalyze, StepReport).
		ContextKeys(def.ContextKeys...).
		Build()
}

func (a *agent) fetchJobs(ctx context.Context, m *mission.Mission) (mission.Delta, error) {
	kit.IndexResume(a.deps, m)
	role := utils.OptString(m.Input, "target_role", "")
	jobs, err := a.deps.Knowledge.Retrieve(ctx, m.UserID, role, map[retrieval.ChunkType]int{retrieval.ChunkJob: maxJobs})
	if err != nil {
		return mission.Delta{}, fmt.Errorf("fetch jobs: %w", err)
	}
	if len(jobs) == 0 {
		return mission.Fail("no stored jobs found; run a job_search mission first"), nil
	}
	return mission.Delta{
		Progress: mission.Ptr(20),
		Context:  mission.ContextWith(m.Context, map[string]any{"jobs": kit.Generic(jobs)}),
		Events:   []mission.Event{mission.LogEvent(fmt.Sprintf("Loaded %d stored jobs", len(jobs)), nil)},
	}, nil
}

// extractSkills asks the model for each posting's skills in parallel and
// falls back to a keyword scan when a reply is unusable.
func (a *agent) extractSkills(ctx context.Context, m *mission.Mission) (mission.Delta, error) {
	var jobs []retrieval.Chunk
	if err := kit.Decode(m, "jobs", &jobs); err != nil {
		return mission.Delta{}, err
	}

	perJob := make([][]string, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(extractConcurrency)
	for i, job := range jobs {
		g.Go(func() error {
			skills, err := a.skillsOf(gctx, job)
			if err != nil {
				return fmt.Errorf("extract skills from %q: %w", job.Title, err)
			}
			perJob[i] = skills
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return mission.Delta{}, err
	}

	counts := map[string]int{}
	for _, skills := range perJob {
		for _, s := range skills {
			counts[s]++
		}
	}
	required := make([]SkillCount, 0, len(counts))
	for s, n := range counts {
		required = append(required, SkillCount{Skill: s, Count: n})
	}
	sort.Slice(required, func(i, j int) bool {
		if required[i].Count != required[j].Count {
			return required[i].Count > required[j].Count
		}
		return required[i].Skill < required[j].Skill
	})

	resume, err := a.deps.Knowledge.Retrieve(ctx, m.UserID, "", retrieval.DefaultLimits())
	if err != nil {
		return mission.Delta{}, fmt.Errorf("load resume: %w", err)
	}
	var text strings.Builder
	for _, c := range resume {
		text.WriteString(c.Title + "\n" + c.Content + "\n")
	}
	have := scanSkills(text.String())

	return mission.Delta{
		Status:   mission.StatusExecuting,
		Progress: mission.Ptr(40),
		Context: mission.ContextWith(m.Context, map[string]any{
			"required_skills": kit.Generic(required),
			"user_skills":     kit.Generic(have),
		}),
		Events: []mission.Event{mission.LogEvent(fmt.Sprintf("Extracted %d distinct skills from %d jobs", len(required), len(jobs)), nil)},
	}, nil
}

func (a *agent) skillsOf(ctx context.Context, job retrieval.Chunk) ([]string, error) {
	prompt := "Job posting:\n" + job.Content + "\n\nReturn {\"skills\": [...]} listing required technical skills in lowercase."
	raw, err := a.deps.LLM.CompleteJSON(ctx, prompt, extractSystem, nil)
	if err != nil {
		return nil, err
	}
	var reply struct {
		Skills []string `json:"skills"`
	}
	if derr := parser.DecodeLLMJSON(raw, &reply, "skills"); derr != nil || len(reply.Skills) == 0 {
		return scanSkills(job.Title + " " + job.Content), nil
	}
	return normalize(reply.Skills), nil
}

func (a *agent) analyze(_ context.Context, m *mission.Mission) (mission.Delta, error) {
	var required []SkillCount
	var have []string
	if err := kit.Decode(m, "required_skills", &required); err != nil {
		return mission.Delta{}, err
	}
	if err := kit.Decode(m, "user_skills", &have); err != nil {
		return mission.Delta{}, err
	}
	an := compare(required, have)
	return mission.Delta{
		Status:   mission.StatusExecuting,
		Progress: mission.Ptr(70),
		Context:  mission.ContextWith(m.Context, map[string]any{"gap": kit.Generic(an)}),
		Events: []mission.Event{mission.LogEvent(fmt.Sprintf("Resume covers %d%% of requested skills", an.MatchPercent), map[string]any{
			"missing": strings.Join(an.Missing, ", "),
		})},
	}, nil
}

// compare weights each required skill by how many postings ask for it.
func compare(required []SkillCount, have []string) Analysis {
	owned := map[string]bool{}
	for _, s := range have {
		owned[s] = true
	}
	an := Analysis{Matched: []string{}, Missing: []string{}}
	total, hit := 0, 0
	for _, r := range required {
		total += r.Count
		if owned[r.Skill] {
			hit += r.Count
			an.Matched = append(an.Matched, r.Skill)
		} else {
			an.Missing = append(an.Missing, r.Skill)
		}
	}
	if total > 0 {
		an.MatchPercent = int(math.Round(float64(hit) * 100 / float64(total)))
	}
	return an
}

func (a *agent) report(ctx context.Context, m *mission.Mission) (mission.Delta, error) {
	var an Analysis
	if err := kit.Decode(m, "gap", &an); err != nil {
		return mission.Delta{}, err
	}
	prompt := fmt.Sprintf("Write a skill gap report for a candidate targeting %s.\nMatch: %d%%\nSkills they have: %s\nSkills to learn, most requested first: %s\nSuggest a learning plan for the top three gaps.",
		utils.OptString(m.Input, "target_role", "their next role"),
		an.MatchPercent, strings.Join(an.Matched, ", "), strings.Join(an.Missing, ", "))
	report, err := a.deps.LLM.Complete(ctx, prompt, reportSystem)
	if err != nil {
		return mission.Delta{}, fmt.Errorf("write report: %w", err)
	}
	return mission.Delta{
		Status:    mission.StatusExecuting,
		Progress:  mission.Ptr(90),
		Artifacts: []mission.Artifact{mission.NewArtifact(mission.ArtifactMarkdown, "skill_gap_report", report)},
		OutputData: map[string]any{
			"match_percent": an.MatchPercent,
			"matched":       an.Matched,
			"missing":       an.Missing,
			"report":        report,
		},
		Events: []mission.Event{mission.LogEvent("Wrote skill gap report", nil)},
	}, nil
}

// Skills recognised by the keyword scan, with their aliases.
var knownSkills = map[string][]string{
	"go":         {"go", "golang"},
	"python":     {"python"},
	"java":       {"java"},
	"typescript": {"typescript"},
	"react":      {"react"},
	"graphql":    {"graphql"},
	"kubernetes": {"kubernetes", "k8s"},
	"docker":     {"docker"},
	"terraform":  {"terraform"},
	"aws":        {"aws"},
	"gcp":        {"gcp"},
	"postgresql": {"postgresql", "postgres"},
	"sql":        {"sql"},
	"redis":      {"redis"},
	"kafka":      {"kafka"},
	"grpc":       {"grpc"},
	"spark":      {"spark"},
	"airflow":    {"airflow"},
	"prometheus": {"prometheus"},
	"ci/cd":      {"ci/cd", "cicd"},
}

var (
	aliasOnce sync.Once
	aliasOf   map[string]string
)

func aliases() map[string]string {
	aliasOnce.Do(func() {
		aliasOf = map[string]string{}
		for canon, names := range knownSkills {
			for _, n := range names {
				aliasOf[n] = canon
			}
		}
	})
	return aliasOf
}

// scanSkills finds the known skills mentioned in text.
func scanSkills(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '/' || r == '+' || r == '#')
	})
	al := aliases()
	known := words[:0]
	for _, w := range words {
		if _, ok := al[w]; ok {
			known = append(known, w)
		}
	}
	return normalize(known)
}

// normalize lowercases, maps aliases to one name, dedupes and sorts.
func normalize(in []string) []string {
	al := aliases()
	seen := map[string]bool{}
	out := []string{}
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if canon, ok := al[s]; ok {
			s = canon
		}
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
