package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"career-agent/internal/agents"
	"career-agent/internal/agents/kit"
	"career-agent/internal/browser"
	"career-agent/internal/config"
	"career-agent/internal/llm_client"
	"career-agent/internal/logger"
	"career-agent/internal/parser"
	"career-agent/internal/retrieval"
	"career-agent/internal/store"
	"career-agent/internal/supervisor"
)

const browserTimeout = 30 * time.Second

// app is everything one process invocation needs.
type app struct {
	cfg        config.Config
	store      store.Store
	supervisor *supervisor.Supervisor
	kinds      *agents.Registry
	log        *slog.Logger
	closers    []io.Closer
}

func newApp(ctx context.Context, configPath string, inMemory bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}

	logCloser, err := logger.Init(logger.Options{File: cfg.Log.File, Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a.closers = append(a.closers, logCloser)
	a.log = logger.Log

	llm, err := llm_client.New(llm_client.Config{
		Backend:     cfg.LLM.Backend,
		Model:       cfg.LLM.Model,
		OllamaHost:  cfg.LLM.OllamaHost,
		APIKey:      cfg.LLM.APIKey,
		MaxRetries:  cfg.LLM.MaxRetries,
		BaseBackoff: cfg.LLM.BaseBackoff,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init llm client: %w", err)
	}
	a.log.Info("llm client ready", "backend", llm.Backend(), "model", llm.Model())

	web := browser.NewClient(browserTimeout)
	deps := kit.Deps{
		LLM:       llm,
		Knowledge: retrieval.NewIndex(),
		Browser:   web,
		Config:    cfg.Missions,
	}
	if len(cfg.Missions.JobSources) > 0 {
		deps.Jobs = kit.BoardSource{Browser: web, URLs: cfg.Missions.JobSources}
	} else {
		deps.Jobs = kit.SampleSource{}
	}

	defs, err := parser.BuiltinKinds()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.kinds, err = agents.NewRegistry(defs, deps)
	if err != nil {
		a.Close()
		return nil, err
	}

	if inMemory {
		a.store = store.NewMemory()
	} else {
		db, err := store.OpenSQLite(ctx, cfg.Database)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = db
	}
	a.closers = append(a.closers, a.store)

	a.supervisor = supervisor.New(a.store, a.kinds,
		supervisor.WithLogger(a.log),
		supervisor.WithMaxRegenerations(cfg.Missions.MaxRegenerations),
	)
	return a, nil
}

// Close stops running missions, then releases the store and the log file.
func (a *app) Close() {
	if a.supervisor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.supervisor.Shutdown(ctx); err != nil {
			a.log.Warn("shutdown did not finish", "error", err)
		}
		cancel()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil && a.log != nil {
		a.log.Warn("close resources", "error", err)
	}
}
