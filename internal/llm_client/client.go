package llm_client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ollama/ollama/api"
	"google.golang.org/genai"

	"career-agent/internal/logger"
)

const (
	defaultMaxRetries  = 3
	defaultBaseBackoff = time.Second
	defaultTimeout     = 60 * time.Second
)

// Client wraps a Provider with per-attempt timeouts and bounded retry.
// Transient failures (rate limits, server errors, timeouts) are retried with
// backoff; anything else fails on the first attempt.
type Client struct {
	provider    Provider
	backend     string
	model       string
	maxRetries  int
	baseBackoff time.Duration
	timeout     time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	log         *slog.Logger
}

type Option func(*Client)

// WithSleep replaces the backoff wait; tests use it to skip real delays.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.log = l } }

// New builds the configured backend.
func New(cfg Config, opts ...Option) (*Client, error) {
	p, backend, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	c := NewWithProvider(p, cfg, opts...)
	c.backend = backend
	return c, nil
}

func NewWithProvider(p Provider, cfg Config, opts ...Option) *Client {
	c := &Client{
		provider:    p,
		backend:     cfg.Backend,
		model:       cfg.Model,
		maxRetries:  cfg.MaxRetries,
		baseBackoff: cfg.BaseBackoff,
		timeout:     cfg.Timeout,
		sleep:       sleepCtx,
	}
	if c.maxRetries <= 0 {
		c.maxRetries = defaultMaxRetries
	}
	if c.baseBackoff <= 0 {
		c.baseBackoff = defaultBaseBackoff
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Log
	}
	return c
}

func (c *Client) Backend() string { return c.backend }

func (c *Client) Model() string { return c.provider.AllowedModelOrDefault(c.model) }

// Complete returns generated text for prompt under an optional system prompt.
func (c *Client) Complete(ctx context.Context, prompt, system string) (string, error) {
	return c.withRetry(ctx, "complete", func(ctx context.Context) (string, error) {
		return c.provider.Generate(ctx, prompt, system, c.model)
	})
}

// CompleteJSON asks the backend for a JSON document; schema may be nil.
func (c *Client) CompleteJSON(ctx context.Context, prompt, system string, schema any) (string, error) {
	return c.withRetry(ctx, "complete_json", func(ctx context.Context) (string, error) {
		return c.provider.GenerateJSON(ctx, prompt, system, c.model, schema)
	})
}

func (c *Client) withRetry(ctx context.Context, op string, call func(ctx context.Context) (string, error)) (string, error) {
	if c.provider == nil {
		return "", ErrNotInitialized
	}
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		out, err := call(attemptCtx)
		cancel()
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		delay, retry := c.backoff(err, attempt)
		if !retry || attempt == c.maxRetries-1 {
			break
		}
		c.log.Warn("llm call failed, retrying", "op", op, "attempt", attempt+1, "delay", delay, "error", err)
		if serr := c.sleep(ctx, delay); serr != nil {
			return "", serr
		}
	}
	return "", fmt.Errorf("llm %s: %w", op, lastErr)
}

// backoff classifies err. Rate limits back off exponentially; other
// transient failures wait the base delay.
func (c *Client) backoff(err error, attempt int) (time.Duration, bool) {
	code := statusCode(err)
	switch {
	case code == http.StatusTooManyRequests:
		return c.baseBackoff << uint(attempt), true
	case code >= 500:
		return c.baseBackoff, true
	case code >= 400:
		return 0, false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return c.baseBackoff, true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return c.baseBackoff, true
	}
	return 0, false
}

// IsTransient reports whether err would be retried.
func IsTransient(err error) bool {
	c := &Client{baseBackoff: defaultBaseBackoff}
	_, retry := c.backoff(err, 0)
	return retry
}

func statusCode(err error) int {
	var gerr genai.APIError
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	var gperr *genai.APIError
	if errors.As(err, &gperr) && gperr != nil {
		return gperr.Code
	}
	var oerr api.StatusError
	if errors.As(err, &oerr) {
		return oerr.StatusCode
	}
	var operr *api.StatusError
	if errors.As(err, &operr) && operr != nil {
		return operr.StatusCode
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
