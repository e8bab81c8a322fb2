// Package graph declares step graphs: named steps, an entry point,
// unconditional edges and router-driven conditional edges. A built Graph has
// no runtime state and is shared by every run of its mission kind.
package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"career-agent/internal/mission"
)

// End is the routing sentinel for "stop here".
const End = "__end__"

// Step produces a partial update from a private snapshot of the mission.
type Step interface {
	Run(ctx context.Context, snapshot *mission.Mission) (mission.Delta, error)
}

type StepFunc func(ctx context.Context, snapshot *mission.Mission) (mission.Delta, error)

func (f StepFunc) Run(ctx context.Context, snapshot *mission.Mission) (mission.Delta, error) {
	return f(ctx, snapshot)
}

// Router inspects merged state and returns a route label.
type Router func(m *mission.Mission) string

type conditional struct {
	router Router
	routes map[string]string
}

// Context keys every graph accepts; the supervisor writes them around
// approval decisions.
var reservedContextKeys = map[string]bool{
	"feedback":       true,
	EditedContextKey: true,
}

type Graph struct {
	name        string
	entry       string
	order       []string
	steps       map[string]Step
	edges       map[string]string
	conds       map[string]conditional
	contextKeys map[string]bool
	editable    string
}

func (g *Graph) Name() string  { return g.name }
func (g *Graph) Entry() string { return g.entry }

// Steps returns step names in declaration order.
func (g *Graph) Steps() []string { return append([]string(nil), g.order...) }

func (g *Graph) Step(name string) (Step, bool) {
	s, ok := g.steps[name]
	return s, ok
}

// Next resolves the successor of from against the merged state. ok is false
// when the graph ends: no outgoing edge, or a router returned End.
func (g *Graph) Next(from string, m *mission.Mission) (string, bool, error) {
	if to, found := g.edges[from]; found {
		return to, to != End, nil
	}
	c, found := g.conds[from]
	if !found {
		return "", false, nil
	}
	label := c.router(m)
	to, found := c.routes[label]
	if !found {
		return "", false, fmt.Errorf("router after %q returned unmapped route %q", from, label)
	}
	return to, to != End, nil
}

// CheckContext rejects context keys the graph does not document. Graphs
// declared without context keys accept anything.
func (g *Graph) CheckContext(ctx map[string]any) error {
	if len(g.contextKeys) == 0 {
		return nil
	}
	var unknown []string
	for k := range ctx {
		if g.contextKeys[k] || reservedContextKeys[k] || strings.HasPrefix(k, "_") {
			continue
		}
		unknown = append(unknown, k)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("undocumented context keys for %s: %s", g.name, strings.Join(unknown, ", "))
	}
	return nil
}

// Builder accumulates a graph declaration; errors surface from Build.
type Builder struct {
	g    *Graph
	errs []error
}

func New(name string) *Builder {
	return &Builder{g: &Graph{
		name:        name,
		steps:       map[string]Step{},
		edges:       map[string]string{},
		conds:       map[string]conditional{},
		contextKeys: map[string]bool{},
	}}
}

func (b *Builder) AddStep(name string, s Step) *Builder {
	switch {
	case name == "" || name == End:
		b.errs = append(b.errs, fmt.Errorf("invalid step name %q", name))
	case b.g.steps[name] != nil:
		b.errs = append(b.errs, fmt.Errorf("duplicate step %q", name))
	case s == nil:
		b.errs = append(b.errs, fmt.Errorf("step %q is nil", name))
	default:
		b.g.steps[name] = s
		b.g.order = append(b.g.order, name)
	}
	return b
}

func (b *Builder) AddFunc(name string, fn StepFunc) *Builder {
	return b.AddStep(name, fn)
}

func (b *Builder) SetEntry(name string) *Builder {
	b.g.entry = name
	return b
}

func (b *Builder) AddEdge(from, to string) *Builder {
	if _, dup := b.g.edges[from]; dup {
		b.errs = append(b.errs, fmt.Errorf("step %q already has an edge", from))
		return b
	}
	b.g.edges[from] = to
	return b
}

func (b *Builder) AddConditionalEdges(from string, router Router, routes map[string]string) *Builder {
	if router == nil || len(routes) == 0 {
		b.errs = append(b.errs, fmt.Errorf("conditional edge from %q needs a router and routes", from))
		return b
	}
	if _, dup := b.g.conds[from]; dup {
		b.errs = append(b.errs, fmt.Errorf("step %q already has conditional edges", from))
		return b
	}
	cp := make(map[string]string, len(routes))
	for k, v := range routes {
		cp[k] = v
	}
	b.g.conds[from] = conditional{router: router, routes: cp}
	return b
}

// Chain adds unconditional edges through names in order.
func (b *Builder) Chain(names ...string) *Builder {
	for i := 0; i+1 < len(names); i++ {
		b.AddEdge(names[i], names[i+1])
	}
	return b
}

func (b *Builder) ContextKeys(keys ...string) *Builder {
	for _, k := range keys {
		b.g.contextKeys[k] = true
	}
	return b
}

func (b *Builder) Build() (*Graph, error) {
	errs := append([]error(nil), b.errs...)
	g := b.g
	if g.entry == "" {
		errs = append(errs, errors.New("entry step not set"))
	} else if _, ok := g.steps[g.entry]; !ok {
		errs = append(errs, fmt.Errorf("entry step %q is not declared", g.entry))
	}
	for from, to := range g.edges {
		if _, ok := g.steps[from]; !ok {
			errs = append(errs, fmt.Errorf("edge from undeclared step %q", from))
		}
		if _, ok := g.steps[to]; !ok && to != End {
			errs = append(errs, fmt.Errorf("edge %q -> undeclared step %q", from, to))
		}
		if _, both := g.conds[from]; both {
			errs = append(errs, fmt.Errorf("step %q has both an edge and conditional edges", from))
		}
	}
	for from, c := range g.conds {
		if _, ok := g.steps[from]; !ok {
			errs = append(errs, fmt.Errorf("conditional edges from undeclared step %q", from))
		}
		for label, to := range c.routes {
			if _, ok := g.steps[to]; !ok && to != End {
				errs = append(errs, fmt.Errorf("route %q from %q targets undeclared step %q", label, from, to))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("graph %s: %w", g.name, err)
	}
	return g, nil
}

// MustBuild panics on an invalid declaration. Graphs are static, so an
// error here is a programming mistake.
func (b *Builder) MustBuild() *Graph {
	g, err := b.Build()
	if err != nil {
		panic(err)
	}
	return g
}
