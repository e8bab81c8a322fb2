// Package agents maps each mission kind to its step graph.
package agents

import (
	"errors"
	"fmt"

	"career-agent/internal/agents/apply"
	"career-agent/internal/agents/draft"
	"career-agent/internal/agents/gap"
	"career-agent/internal/agents/interview"
	"career-agent/internal/agents/jobsearch"
	"career-agent/internal/agents/kit"
	"career-agent/internal/agents/tailor"
	"career-agent/internal/graph"
	"career-agent/internal/mission"
	"career-agent/internal/parser"
)

type buildFunc func(def parser.KindDefinition, deps kit.Deps) (*graph.Graph, error)

var builders = map[mission.Kind]buildFunc{
	mission.KindJobSearch:   jobsearch.New,
	mission.KindTailor:      tailor.New,
	mission.KindApplication: apply.New,
	mission.KindDraft:       draft.New,
	mission.KindSkillGap:    gap.New,
	mission.KindInterview:   interview.New,
}

// Registry holds one built graph per kind. Graphs carry no run state, so a
// Registry is shared by every mission.
type Registry struct {
	defs   *parser.KindRegistry
	graphs map[mission.Kind]*graph.Graph
}

func NewRegistry(defs *parser.KindRegistry, deps kit.Deps) (*Registry, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	r := &Registry{defs: defs, graphs: make(map[mission.Kind]*graph.Graph, len(builders))}
	var errs []error
	for _, kind := range mission.AllKinds() {
		def, ok := defs.GetDefinition(string(kind))
		if !ok {
			errs = append(errs, fmt.Errorf("kind %s has no definition", kind))
			continue
		}
		g, err := builders[kind](def, deps)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		r.graphs[kind] = g
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) Graph(kind mission.Kind) (*graph.Graph, bool) {
	g, ok := r.graphs[kind]
	return g, ok
}

func (r *Registry) ValidateInput(kind mission.Kind, input map[string]any) error {
	return r.defs.ValidateInput(string(kind), input)
}

func (r *Registry) Definitions() *parser.KindRegistry { return r.defs }
