// Package config assembles runtime settings from, in increasing priority:
// built-in defaults, an optional YAML file, a .env file, and the process
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database string        `yaml:"database"`
	Log      LogConfig     `yaml:"log"`
	LLM      LLMConfig     `yaml:"llm"`
	Watch    WatchConfig   `yaml:"watch"`
	Missions MissionConfig `yaml:"missions"`
}

type LogConfig struct {
	File   string `yaml:"file"`
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type LLMConfig struct {
	Backend     string        `yaml:"backend"`
	Model       string        `yaml:"model"`
	OllamaHost  string        `yaml:"ollama_host"`
	APIKey      string        `yaml:"-"`
	MaxRetries  int           `yaml:"max_retries"`
	BaseBackoff time.Duration `yaml:"base_backoff"`
	Timeout     time.Duration `yaml:"timeout"`
}

type WatchConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type MissionConfig struct {
	MaxRegenerations  int      `yaml:"max_regenerations"`
	AnswerConcurrency int      `yaml:"answer_concurrency"`
	ApplicationReview string   `yaml:"application_review"`
	JobSources        []string `yaml:"job_sources"`
}

const (
	ReviewAlways        = "always"
	ReviewLowConfidence = "low_confidence"
)

func Default() Config {
	return Config{
		Database: "missions.db",
		Log:      LogConfig{File: "agent.log", Level: "info", Format: "text"},
		LLM: LLMConfig{
			Backend:     "gemini",
			MaxRetries:  3,
			BaseBackoff: time.Second,
			Timeout:     60 * time.Second,
		},
		Watch: WatchConfig{Interval: 2 * time.Second},
		Missions: MissionConfig{
			MaxRegenerations:  3,
			AnswerConcurrency: 4,
			ApplicationReview: ReviewAlways,
		},
	}
}

// Load builds the configuration. path may be empty, in which case
// AGENT_CONFIG names the YAML file, if any. A missing .env is not an error.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path == "" {
		path = os.Getenv("AGENT_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	setString(&c.Database, "AGENT_DB_PATH")
	setString(&c.Log.File, "AGENT_LOG_FILE")
	setString(&c.Log.Level, "AGENT_LOG_LEVEL")
	setString(&c.Log.Format, "AGENT_LOG_FORMAT")
	setString(&c.LLM.Backend, "LLM_BACKEND")
	setString(&c.LLM.Model, "LLM_MODEL")
	setString(&c.LLM.OllamaHost, "OLLAMA_HOST")
	setString(&c.LLM.APIKey, "GEMINI_API_KEY")

	if v := strings.TrimSpace(os.Getenv("LLM_MAX_RETRIES")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LLM_MAX_RETRIES: %w", err)
		}
		c.LLM.MaxRetries = n
	}
	if v := strings.TrimSpace(os.Getenv("AGENT_WATCH_INTERVAL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("AGENT_WATCH_INTERVAL: %w", err)
		}
		c.Watch.Interval = d
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.LLM.Backend) {
	case "gemini", "ollama", "stub":
	default:
		errs = append(errs, fmt.Errorf("unsupported llm backend %q", c.LLM.Backend))
	}
	if c.LLM.MaxRetries < 0 {
		errs = append(errs, errors.New("llm.max_retries must not be negative"))
	}
	if c.Watch.Interval <= 0 {
		errs = append(errs, errors.New("watch.interval must be positive"))
	}
	if c.Missions.MaxRegenerations < 0 {
		errs = append(errs, errors.New("missions.max_regenerations must not be negative"))
	}
	if c.Missions.AnswerConcurrency <= 0 {
		errs = append(errs, errors.New("missions.answer_concurrency must be positive"))
	}
	switch c.Missions.ApplicationReview {
	case ReviewAlways, ReviewLowConfidence:
	default:
		errs = append(errs, fmt.Errorf("missions.application_review must be %q or %q", ReviewAlways, ReviewLowConfidence))
	}
	return errors.Join(errs...)
}
