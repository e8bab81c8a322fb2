package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadOverlaysYAMLOnDefaults(t *testing.T) {
	path := writeConfig(t, `
database: /tmp/agent/missions.db
llm:
  backend: ollama
  base_backoff: 250ms
watch:
  interval: 5s
missions:
  application_review: low_confidence
  job_sources:
    - https://boards.example.com/golang
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/agent/missions.db", cfg.Database)
	assert.Equal(t, "ollama", cfg.LLM.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.LLM.BaseBackoff)
	assert.Equal(t, 3, cfg.LLM.MaxRetries, "unset keys keep defaults")
	assert.Equal(t, 5*time.Second, cfg.Watch.Interval)
	assert.Equal(t, ReviewLowConfidence, cfg.Missions.ApplicationReview)
	assert.Equal(t, []string{"https://boards.example.com/golang"}, cfg.Missions.JobSources)
}

func TestEnvironmentWins(t *testing.T) {
	path := writeConfig(t, "llm:\n  backend: ollama\n")
	t.Setenv("LLM_BACKEND", "stub")
	t.Setenv("AGENT_DB_PATH", "env.db")
	t.Setenv("LLM_MAX_RETRIES", "7")
	t.Setenv("AGENT_WATCH_INTERVAL", "750ms")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "stub", cfg.LLM.Backend)
	assert.Equal(t, "env.db", cfg.Database)
	assert.Equal(t, 7, cfg.LLM.MaxRetries)
	assert.Equal(t, 750*time.Millisecond, cfg.Watch.Interval)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{"unknown backend", "llm:\n  backend: gpt-local\n"},
		{"bad review policy", "missions:\n  application_review: sometimes\n"},
		{"zero concurrency", "missions:\n  answer_concurrency: 0\n"},
		{"malformed yaml", "llm: [backend\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
