// Package jobsearch finds postings matching the user's criteria and stores
// the new ones in their knowledge base for later missions.
package jobsearch

import (
	"context"
	"fmt"
	"strings"

	"career-agent/internal/agents/kit"
	"career-agent/internal/browser"
	"career-agent/internal/graph"
	"career-agent/internal/mission"
	"career-agent/internal/parser"
	"career-agent/internal/retrieval"
	"career-agent/internal/utils"
)

const (
	StepParseCriteria = "parse_criteria"
	StepScrape        = "scrape"
	StepDeduplicate   = "deduplicate"
	StepStore         = "store"
	StepNotify        = "notify"

	defaultLimit = 20
)

const criteriaSystem = "You turn job search requests into search keywords. Reply with JSON only."

type agent struct {
	deps kit.Deps
}

func New(def parser.KindDefinition, deps kit.Deps) (*graph.Graph, error) {
	a := &agent{deps: deps}
	return graph.New(def.Name).
		AddFunc(StepParseCriteria, a.parseCriteria).
		AddFunc(StepScrape, a.scrape).
		AddFunc(StepDeduplicate, a.deduplicate).
		AddFunc(StepStore, a.store).
		AddFunc(StepNotify, a.notify).
		SetEntry(StepParseCriteria).
		Chain(StepParseCriteria, StepScrape, StepDeduplicate, StepStore, StepNotify).
		ContextKeys(def.ContextKeys...).
		Build()
}

func (a *agent) parseCriteria(ctx context.Context, m *mission.Mission) (mission.Delta, error) {
	query, err := utils.GetString(m.Input, "query")
	if err != nil {
		return mission.Delta{}, err
	}
	c := kit.Criteria{
		Query:    query,
		Location: utils.OptString(m.Input, "location", ""),
		Remote:   utils.OptBool(m.Input, "remote", false),
		Limit:    utils.OptInt(m.Input, "limit", defaultLimit),
	}

	prompt := fmt.Sprintf("Job search request: %q\nReturn {\"keywords\": [...]} with 1-5 short keywords a matching posting would contain.", query)
	raw, err := a.deps.LLM.CompleteJSON(ctx, prompt, criteriaSystem, nil)
	if err != nil {
		return mission.Delta{}, fmt.Errorf("parse criteria: %w", err)
	}
	var reply struct {
		Keywords []string `json:"keywords"`
	}
	if err := parser.DecodeLLMJSON(raw, &reply, "keywords"); err == nil {
		c.Keywords = cleanKeywords(reply.Keywords)
	}
	if len(c.Keywords) == 0 {
		c.Keywords = cleanKeywords(strings.Fields(query))
	}

	return mission.Delta{
		Progress: mission.Ptr(10),
		Context:  mission.ContextWith(m.Context, map[string]any{"criteria": kit.Generic(c)}),
		Events: []mission.Event{mission.LogEvent("Parsed search criteria", map[string]any{
			"keywords": strings.Join(c.Keywords, ", "),
		})},
	}, nil
}

func (a *agent) scrape(ctx context.Context, m *mission.Mission) (mission.Delta, error) {
	var c kit.Criteria
	if err := kit.Decode(m, "criteria", &c); err != nil {
		return mission.Delta{}, err
	}
	source := a.deps.Jobs
	if urls := utils.GetStringSlice(m.Input, "sources"); len(urls) > 0 {
		source = kit.BoardSource{Browser: a.deps.Browser, URLs: urls}
	}
	listings, err := source.Search(ctx, c)
	if err != nil {
		return mission.Delta{}, fmt.Errorf("search jobs: %w", err)
	}
	return mission.Delta{
		Status:   mission.StatusExecuting,
		Progress: mission.Ptr(40),
		Context:  mission.ContextWith(m.Context, map[string]any{"listings": kit.Generic(listings)}),
		Events:   []mission.Event{mission.LogEvent(fmt.Sprintf("Found %d listings", len(listings)), nil)},
	}, nil
}

func listingKey(l browser.Listing) string {
	if l.URL != "" {
		return strings.TrimSuffix(strings.ToLower(l.URL), "/")
	}
	return strings.ToLower(l.Title + "|" + l.Company)
}

// deduplicate drops repeats within this search and postings already stored
// by an earlier one.
func (a *agent) deduplicate(_ context.Context, m *mission.Mission) (mission.Delta, error) {
	var listings []browser.Listing
	if err := kit.Decode(m, "listings", &listings); err != nil {
		return mission.Delta{}, err
	}
	seen := map[string]struct{}{}
	jobs := make([]browser.Listing, 0, len(listings))
	for _, l := range listings {
		key := listingKey(l)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if a.deps.Knowledge.Has(m.UserID, retrieval.ChunkJob, "key", key) {
			continue
		}
		jobs = append(jobs, l)
	}
	removed := len(listings) - len(jobs)
	return mission.Delta{
		Status:   mission.StatusExecuting,
		Progress: mission.Ptr(60),
		Context: mission.ContextWith(m.Context, map[string]any{
			"jobs":               kit.Generic(jobs),
			"duplicates_removed": removed,
		}),
		Events: []mission.Event{mission.LogEvent(fmt.Sprintf("%d new jobs, %d duplicates removed", len(jobs), removed), nil)},
	}, nil
}

func (a *agent) store(_ context.Context, m *mission.Mission) (mission.Delta, error) {
	var jobs []browser.Listing
	if err := kit.Decode(m, "jobs", &jobs); err != nil {
		return mission.Delta{}, err
	}
	for _, j := range jobs {
		a.deps.Knowledge.Add(m.UserID, retrieval.Chunk{
			Type:    retrieval.ChunkJob,
			Title:   j.Title,
			Content: strings.TrimSpace(j.Title + " at " + j.Company + "\n" + j.Location + "\n" + j.Description),
			Metadata: map[string]string{
				"key":     listingKey(j),
				"url":     j.URL,
				"company": j.Company,
				"ats":     string(browser.DetectATS(j.URL)),
			},
		})
	}
	d := mission.Delta{
		Status:   mission.StatusExecuting,
		Progress: mission.Ptr(80),
		Context:  mission.ContextWith(m.Context, map[string]any{"stored": len(jobs)}),
		Events:   []mission.Event{mission.LogEvent(fmt.Sprintf("Stored %d jobs", len(jobs)), nil)},
	}
	if len(jobs) > 0 {
		d.Artifacts = []mission.Artifact{mission.NewArtifact(mission.ArtifactJSON, "jobs", kit.Generic(jobs))}
	}
	return d, nil
}

func (a *agent) notify(_ context.Context, m *mission.Mission) (mission.Delta, error) {
	var jobs []browser.Listing
	if err := kit.Decode(m, "jobs", &jobs); err != nil {
		return mission.Delta{}, err
	}
	query := utils.OptString(m.Input, "query", "")
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d new jobs for %q", len(jobs), query)
	for _, j := range jobs {
		fmt.Fprintf(&sb, "\n- %s", j.Title)
		if j.Company != "" {
			fmt.Fprintf(&sb, " (%s)", j.Company)
		}
	}
	dups, _ := utils.GetInt(m.Context, "duplicates_removed")
	return mission.Delta{
		Status:   mission.StatusExecuting,
		Progress: mission.Ptr(90),
		OutputData: map[string]any{
			"query":              query,
			"jobs_found":         len(jobs),
			"duplicates_removed": dups,
			"jobs":               kit.Generic(jobs),
		},
		Events: []mission.Event{mission.LogEvent(sb.String(), nil)},
	}, nil
}

func cleanKeywords(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, k := range in {
		k = strings.ToLower(strings.Trim(strings.TrimSpace(k), ".,;:!?\"'()"))
		if len(k) < 2 || seen[k] || stopWords[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

var stopWords = map[string]bool{
	"jobs": true, "job": true, "role": true, "roles": true, "in": true, "for": true,
	"and": true, "the": true, "a": true, "an": true, "position": true, "positions": true,
}
