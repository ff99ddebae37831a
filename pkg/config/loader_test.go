package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoader(env ...string) *loader {
	l := NewService().(*loader)
	l.lookupEnv = func() []string { return env }
	return l
}

func TestLoader_Load(t *testing.T) {
	t.Run("Should load defaults when no sources are provided", func(t *testing.T) {
		cfg, err := newTestLoader().Load(t.Context())
		require.NoError(t, err)
		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, 6, cfg.Planner.DefaultMaxSteps)
		assert.Equal(t, 12, cfg.Planner.MaxStepsCap)
		assert.Equal(t, 15, cfg.Planner.MinDurationMinutes)
		assert.Equal(t, 240, cfg.Planner.MaxDurationMinutes)
		assert.Equal(t, "primary", cfg.Calendar.DefaultCalendarID)
	})

	t.Run("Should let environment override YAML and YAML override defaults", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "plansync.yaml")
		content := "server:\n  port: 8080\nllm:\n  provider: mock\n  timeout: 5s\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		l := newTestLoader("SERVER_PORT=9090", "LLM_API_KEY=secret", "OAUTH_SCOPES=a,b")
		cfg, err := l.Load(t.Context(), NewYAMLProvider(path))
		require.NoError(t, err)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "mock", cfg.LLM.Provider)
		assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
		assert.Equal(t, "secret", cfg.LLM.APIKey.Value())
		assert.Equal(t, "[REDACTED]", cfg.LLM.APIKey.String())
		assert.Equal(t, []string{"a", "b"}, cfg.Credentials.Scopes)
		assert.Equal(t, SourceEnv, l.GetSource("server.port"))
		assert.Equal(t, SourceYAML, l.GetSource("llm.provider"))
		assert.Equal(t, SourceDefault, l.GetSource("calendar.base_url"))
	})

	t.Run("Should apply CLI overrides", func(t *testing.T) {
		cfg, err := newTestLoader().Load(t.Context(), NewCLIProvider(map[string]any{
			"database.driver": "postgres",
			"database.host":   "db",
		}))
		require.NoError(t, err)
		assert.Equal(t, "postgres", cfg.Database.Driver)
		assert.Equal(t, "db", cfg.Database.Host)
	})

	t.Run("Should let CLI flags win over the environment", func(t *testing.T) {
		l := newTestLoader("SERVER_PORT=9090")
		cfg, err := l.Load(t.Context(), NewCLIProvider(map[string]any{"server.port": 7000}))
		require.NoError(t, err)
		assert.Equal(t, 7000, cfg.Server.Port)
		assert.Equal(t, SourceCLI, l.GetSource("server.port"))
	})

	t.Run("Should reject invalid planner bounds", func(t *testing.T) {
		_, err := newTestLoader("PLANNER_DEFAULT_MAX_STEPS=20").Load(t.Context())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_steps_cap")
	})

	t.Run("Should reject unknown providers", func(t *testing.T) {
		_, err := newTestLoader("LLM_PROVIDER=nope").Load(t.Context())
		assert.Error(t, err)
	})

	t.Run("Should require redis for oauth credentials", func(t *testing.T) {
		_, err := newTestLoader("CREDENTIALS_SOURCE=oauth", "OAUTH_CLIENT_ID=id").Load(t.Context())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis")
	})
}

func TestGenerateEnvMappings(t *testing.T) {
	t.Run("Should map nested struct tags to dotted paths", func(t *testing.T) {
		lookup := make(map[string]string)
		for _, m := range GenerateEnvMappings() {
			lookup[m.EnvVar] = m.ConfigPath
		}
		assert.Equal(t, "planner.max_steps_cap", lookup["PLANNER_MAX_STEPS_CAP"])
		assert.Equal(t, "database.password", lookup["DB_PASSWORD"])
	})
}
