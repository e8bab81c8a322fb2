package llm_client

import (
	"context"
	"strings"
	"sync"
)

// StubRule answers any prompt containing Match (case-insensitive).
type StubRule struct {
	Match string
	Reply string
}

type StubCall struct {
	Prompt string
	System string
	JSON   bool
}

// Stub is an offline backend with canned replies. Unmatched text prompts get
// an echo of the prompt's first line; unmatched JSON prompts get "{}".
type Stub struct {
	mu       sync.Mutex
	rules    []StubRule
	failures []error
	calls    []StubCall
}

func NewStub(rules ...StubRule) *Stub {
	return &Stub{rules: rules}
}

// FailNext queues errors returned, in order, by the next calls.
func (s *Stub) FailNext(errs ...error) *Stub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, errs...)
	return s
}

func (s *Stub) Calls() []StubCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StubCall(nil), s.calls...)
}

func (s *Stub) Init(Config) error { return nil }

func (s *Stub) DefaultModel() string { return "stub" }

func (s *Stub) AllowedModelOrDefault(string) string { return "stub" }

func (s *Stub) Generate(ctx context.Context, prompt, system, _ string) (string, error) {
	return s.reply(ctx, prompt, system, false)
}

func (s *Stub) GenerateJSON(ctx context.Context, prompt, system, _ string, _ any) (string, error) {
	return s.reply(ctx, prompt, system, true)
}

func (s *Stub) reply(ctx context.Context, prompt, system string, asJSON bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, StubCall{Prompt: prompt, System: system, JSON: asJSON})
	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		return "", err
	}
	haystack := strings.ToLower(system + "\n" + prompt)
	for _, r := range s.rules {
		if strings.Contains(haystack, strings.ToLower(r.Match)) {
			return r.Reply, nil
		}
	}
	if asJSON {
		return "{}", nil
	}
	first, _, _ := strings.Cut(strings.TrimSpace(prompt), "\n")
	return "Draft: " + first, nil
}
