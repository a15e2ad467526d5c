package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "resume-agent", cfg.App.Name)
	require.Equal(t, 24, cfg.Session.TTLHours)
	require.Equal(t, 10000, cfg.Session.CacheMaxSize)
	require.Equal(t, 10, cfg.RateLimit.RequestsPerMinute)
	require.Equal(t, 24000, cfg.LLM.PromptRuneBudget)
	require.Equal(t, 12, cfg.LLM.MaxHistoryTurns)
	require.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[app]
port = 9090

[session]
ttl_hours = 48

[ratelimit]
requests_per_minute = 25
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.App.Port)
	require.Equal(t, 48, cfg.Session.TTLHours)
	require.Equal(t, 25, cfg.RateLimit.RequestsPerMinute)
	// Untouched sections keep their defaults.
	require.Equal(t, "resume-agent", cfg.App.Name)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("APP_PORT", "7070")
	t.Setenv("LLM_BASE_URL", "http://llm.internal:8000/v1")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.App.Port)
	require.Equal(t, "http://llm.internal:8000/v1", cfg.LLM.BaseURL)
}

func TestMySQLDSN(t *testing.T) {
	cfg := defaultConfig()
	cfg.MySQL.User = "u"
	cfg.MySQL.Password = "p"
	cfg.MySQL.Host = "db"
	cfg.MySQL.Port = 3307
	cfg.MySQL.DB = "resume"
	cfg.MySQL.Params = "parseTime=True"

	require.Equal(t, "u:p@tcp(db:3307)/resume?parseTime=True", cfg.MySQLDSN())
}
