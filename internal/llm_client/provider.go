package llm_client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotInitialized = errors.New("llm client not initialized")

type Config struct {
	Backend     string
	Model       string
	OllamaHost  string
	APIKey      string
	MaxRetries  int
	BaseBackoff time.Duration
	Timeout     time.Duration
}

type Provider interface {
	Init(cfg Config) error
	DefaultModel() string
	AllowedModelOrDefault(model string) string
	Generate(ctx context.Context, prompt, system, model string) (string, error)
	GenerateJSON(ctx context.Context, prompt, system, model string, schema any) (string, error)
}

// NewProvider builds and initializes the backend named by cfg.Backend.
func NewProvider(cfg Config) (Provider, string, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = "gemini"
	}
	var p Provider
	switch backend {
	case "ollama":
		p = &ollamaProvider{}
	case "gemini":
		p = &geminiProvider{}
	case "stub":
		p = NewStub()
	default:
		return nil, "", fmt.Errorf("unsupported LLM backend: %s", backend)
	}
	if err := p.Init(cfg); err != nil {
		return nil, "", err
	}
	return p, backend, nil
}
